// Package runconf 组装每次求解调用使用的 key=value 运行配置，并管理其临时落盘。
package runconf

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"rtkbatch/pkg/contract"
)

// ERPKey: 运行配置中指向地球定向参数文件的键。
const ERPKey = "file-eopfile"

// Setting: 一条配置项。
type Setting struct {
	Key   string
	Value string
}

// Settings: 保持插入顺序的配置映射；键唯一。
type Settings []Setting

// Get 返回 key 的值。
func (s Settings) Get(key string) (string, bool) {
	for _, kv := range s {
		if kv.Key == key {
			return kv.Value, true
		}
	}
	return "", false
}

// Set 原位覆盖已存在的键，否则追加到末尾。
func (s *Settings) Set(key, value string) {
	for i := range *s {
		if (*s)[i].Key == key {
			(*s)[i].Value = value
			return
		}
	}
	*s = append(*s, Setting{Key: key, Value: value})
}

// Clone 返回独立副本。
func (s Settings) Clone() Settings { return append(Settings(nil), s...) }

// Merge 按 over 的顺序覆盖/追加，返回新映射。
func (s Settings) Merge(over Settings) Settings {
	out := s.Clone()
	for _, kv := range over {
		out.Set(kv.Key, kv.Value)
	}
	return out
}

// UnmarshalYAML 从 YAML 映射节点解码并保留键顺序；标量值按原文保存。
func (s *Settings) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind == yaml.ScalarNode && n.Tag == "!!null" {
		*s = nil
		return nil
	}
	if n.Kind != yaml.MappingNode {
		return fmt.Errorf("%w: settings: line %d: expected mapping", contract.ErrInvalidInput, n.Line)
	}
	out := make(Settings, 0, len(n.Content)/2)
	for i := 0; i+1 < len(n.Content); i += 2 {
		k, v := n.Content[i], n.Content[i+1]
		if v.Kind != yaml.ScalarNode {
			return fmt.Errorf("%w: settings: line %d: value of %q must be a scalar", contract.ErrInvalidInput, v.Line, k.Value)
		}
		key := strings.TrimSpace(k.Value)
		if key == "" || strings.ContainsAny(key, "=\n") {
			return fmt.Errorf("%w: settings: line %d: bad key %q", contract.ErrInvalidInput, k.Line, k.Value)
		}
		if _, dup := out.Get(key); dup {
			return fmt.Errorf("%w: settings: duplicate key %q", contract.ErrInvalidInput, key)
		}
		val := v.Value
		if v.Tag == "!!null" {
			val = ""
		}
		out = append(out, Setting{Key: key, Value: val})
	}
	*s = out
	return nil
}

// MarshalYAML 输出为有序映射。
func (s Settings) MarshalYAML() (any, error) {
	n := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	for _, kv := range s {
		n.Content = append(n.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: kv.Key},
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: kv.Value},
		)
	}
	return n, nil
}

// ParseSettings 解析 key=value 文本；空行与 '#' 注释行被忽略，值两侧空白被裁剪。
// 值中的行尾注释（" #..."）保留原样，由求解器自行处理。
func ParseSettings(r io.Reader) (Settings, error) {
	var out Settings
	sc := bufio.NewScanner(r)
	for ln := 1; sc.Scan(); ln++ {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		k, v, ok := strings.Cut(line, "=")
		if !ok || strings.TrimSpace(k) == "" {
			return nil, fmt.Errorf("%w: settings line %d: %q", contract.ErrInvalidInput, ln, line)
		}
		out.Set(strings.TrimSpace(k), strings.TrimSpace(v))
	}
	return out, sc.Err()
}

// DefaultSettings 返回内置的后处理动态定位参数表。
func DefaultSettings() Settings {
	return Settings{
		{"pos1-posmode", "kinematic"},
		{"pos1-frequency", "l1+l2"},
		{"pos1-soltype", "forward"},
		{"pos1-elmask", "15"},
		{"pos1-snrmask_r", "off"},
		{"pos1-dynamics", "off"},
		{"pos1-tidecorr", "off"},
		{"pos1-ionoopt", "brdc"},
		{"pos1-tropopt", "saas"},
		{"pos1-sateph", "brdc"},
		{"pos1-navsys", "1"},
		{"pos2-armode", "continuous"},
		{"pos2-gloarmode", "off"},
		{"pos2-arthres", "3"},
		{"pos2-elmaskar", "0"},
		{"out-solformat", "llh"},
		{"out-outhead", "on"},
		{"out-timesys", "gpst"},
		{"out-timeform", "hms"},
		{"stats-eratio1", "100"},
		{"stats-eratio2", "100"},
		{"ant2-postype", "rinexhead"},
		{"misc-timeinterp", "off"},
	}
}
