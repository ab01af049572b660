package diag

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap/zapcore"
)

const (
	logName     = "rtkbatch.log"
	archivePref = "rtkbatch-"
	defaultMax  = 10 << 20
	defaultKeep = 5
)

// RunLog 是批处理事件日志的落盘端（zapcore.WriteSyncer）。
// 当前文件为 <dir>/rtkbatch.log；写满 maxBytes 后归档为 rtkbatch-<UTC 时间戳>.log，
// 只保留最近 keep 份归档。watch 模式下同一进程会跑很多轮，没有上限会把磁盘写满。
type RunLog struct {
	mu       sync.Mutex
	dir      string
	maxBytes int64
	keep     int
	f        *os.File
	size     int64
}

var _ zapcore.WriteSyncer = (*RunLog)(nil)

// NewRunLog 懒打开：首条日志写入时才创建目录与文件。maxBytes/keep <= 0 取默认值。
func NewRunLog(dir string, maxBytes int64, keep int) *RunLog {
	if maxBytes <= 0 {
		maxBytes = defaultMax
	}
	if keep <= 0 {
		keep = defaultKeep
	}
	return &RunLog{dir: dir, maxBytes: maxBytes, keep: keep}
}

// Path 返回当前日志文件路径。
func (l *RunLog) Path() string { return filepath.Join(l.dir, logName) }

// Write 追加一条已编码事件；zap 保证 p 为完整一行，因此归档边界总落在行尾。
func (l *RunLog) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.f == nil {
		if err := l.open(); err != nil {
			return 0, err
		}
	}
	if l.size > 0 && l.size+int64(len(p)) > l.maxBytes {
		if err := l.archive(); err != nil {
			return 0, err
		}
	}
	n, err := l.f.Write(p)
	l.size += int64(n)
	return n, err
}

func (l *RunLog) Sync() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.f == nil {
		return nil
	}
	return l.f.Sync()
}

func (l *RunLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.f == nil {
		return nil
	}
	err := l.f.Close()
	l.f = nil
	return err
}

func (l *RunLog) open() error {
	if err := os.MkdirAll(l.dir, 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(l.Path(), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	l.f, l.size = f, 0
	if st, err := f.Stat(); err == nil {
		l.size = st.Size()
	}
	return nil
}

// archive 关闭当前文件、改名归档、清理超额归档后重新打开。
func (l *RunLog) archive() error {
	if l.f != nil {
		_ = l.f.Close()
		l.f = nil
	}
	// 纳秒精度，避免同一秒内的两次归档互相覆盖
	name := archivePref + time.Now().UTC().Format("20060102-150405.000000000") + ".log"
	if err := os.Rename(l.Path(), filepath.Join(l.dir, name)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("archive run log: %w", err)
	}
	l.prune()
	return l.open()
}

// prune 删除超出 keep 的最旧归档；时间戳格式保证字典序即时间序。
func (l *RunLog) prune() {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		return
	}
	var archives []string
	for _, e := range entries {
		n := e.Name()
		if !e.IsDir() && strings.HasPrefix(n, archivePref) && strings.HasSuffix(n, ".log") {
			archives = append(archives, n)
		}
	}
	if len(archives) <= l.keep {
		return
	}
	sort.Strings(archives)
	for _, n := range archives[:len(archives)-l.keep] {
		_ = os.Remove(filepath.Join(l.dir, n))
	}
}
