package runconf

import (
	"bytes"
	"fmt"
	"os"
	"strings"
)

// Source: 运行配置来源，按组渲染为字节内容。
type Source interface {
	// Render 返回针对某一日期组的配置内容；erpPath 为空表示该组无区间文件。
	Render(erpPath string) ([]byte, error)
}

// Assemble 渲染 src；每个分发单元各自调用，结果互不共享。
func Assemble(src Source, erpPath string) ([]byte, error) {
	if src == nil {
		return nil, fmt.Errorf("runconf: nil source")
	}
	return src.Render(erpPath)
}

type mapping struct{ set Settings }

// FromSettings 以内存映射为来源：逐项输出 key=value，ERP 键原位覆盖或追加。
func FromSettings(s Settings) Source { return mapping{set: s.Clone()} }

func (m mapping) Render(erpPath string) ([]byte, error) {
	set := m.set
	if erpPath != "" {
		set = set.Clone()
		set.Set(ERPKey, erpPath)
	}
	var b bytes.Buffer
	for _, kv := range set {
		b.WriteString(kv.Key)
		b.WriteByte('=')
		b.WriteString(kv.Value)
		b.WriteByte('\n')
	}
	return b.Bytes(), nil
}

type file struct {
	path     string
	lines    []string
	preserve bool
}

// FromFile 以现有配置文件为来源（立即读取，文件缺失即报错）。
// 渲染时逐字节复制每一行（含原有行尾，CRLF 与末行无换行均保持）；
// 键为 ERPKey 的行被替换为组内区间文件并沿用该行行尾，
// preserveERP 为 true 时保留原行且不追加。
func FromFile(path string, preserveERP bool) (Source, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	lines := strings.SplitAfter(string(b), "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return file{path: path, lines: lines, preserve: preserveERP}, nil
}

func (f file) Render(erpPath string) ([]byte, error) {
	override := erpPath != "" && !f.preserve
	replaced := false
	eol := "\n"
	for _, line := range f.lines {
		if strings.HasSuffix(line, "\r\n") {
			eol = "\r\n"
			break
		}
	}
	var b bytes.Buffer
	for _, line := range f.lines {
		body, end := splitEOL(line)
		if override && lineKey(body) == ERPKey {
			b.WriteString(ERPKey + "=" + erpPath + end)
			replaced = true
			continue
		}
		b.WriteString(line)
	}
	if override && !replaced {
		if n := len(f.lines); n > 0 && !strings.HasSuffix(f.lines[n-1], "\n") {
			b.WriteString(eol)
		}
		b.WriteString(ERPKey + "=" + erpPath + eol)
	}
	return b.Bytes(), nil
}

// splitEOL 拆出行尾（"\r\n"、"\n" 或空）。
func splitEOL(line string) (body, eol string) {
	switch {
	case strings.HasSuffix(line, "\r\n"):
		return line[:len(line)-2], "\r\n"
	case strings.HasSuffix(line, "\n"):
		return line[:len(line)-1], "\n"
	default:
		return line, ""
	}
}

// lineKey 返回首个 '=' 之前的文本（裁剪空白）；注释行与无 '=' 的行返回空串。
func lineKey(line string) string {
	t := strings.TrimSpace(line)
	if strings.HasPrefix(t, "#") {
		return ""
	}
	k, _, ok := strings.Cut(t, "=")
	if !ok {
		return ""
	}
	return strings.TrimSpace(k)
}
