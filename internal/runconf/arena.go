package runconf

import (
	"errors"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
)

// ErrArenaClosed: Arena 已关闭后仍申请租约。
var ErrArenaClosed = errors.New("runconf: arena closed")

// Arena: 单次运行的临时目录；Close 删除整个目录。
type Arena struct {
	dir    string
	mu     sync.Mutex
	closed bool
}

// NewArena 在 parent（空串表示系统临时目录）下创建私有目录。
func NewArena(parent string) (*Arena, error) {
	dir, err := os.MkdirTemp(parent, "rtkbatch-*")
	if err != nil {
		return nil, err
	}
	return &Arena{dir: dir}, nil
}

// Dir 返回临时目录路径。
func (a *Arena) Dir() string { return a.dir }

// Lease: 单个配置文件的使用权；Release 幂等。
type Lease struct {
	Path string
	once sync.Once
	err  error
}

// Create 以唯一文件名 <uuid>.conf 写入 data。
func (a *Arena) Create(data []byte) (*Lease, error) {
	a.mu.Lock()
	closed := a.closed
	a.mu.Unlock()
	if closed {
		return nil, ErrArenaClosed
	}
	p := filepath.Join(a.dir, uuid.NewString()+".conf")
	if err := os.WriteFile(p, data, 0o600); err != nil {
		return nil, err
	}
	return &Lease{Path: p}, nil
}

// Release 删除租约文件；文件已不存在视为成功。
func (l *Lease) Release() error {
	l.once.Do(func() {
		if err := os.Remove(l.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
			l.err = err
		}
	})
	return l.err
}

// Close 删除整个目录（含未释放的租约）；可重复调用。
func (a *Arena) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return nil
	}
	a.closed = true
	return os.RemoveAll(a.dir)
}
