package contract

import (
	"encoding/json"
	"fmt"

	"cloud.google.com/go/civil"
)

// partialWire: PartialGroup 的序列化形态。
// fan-out 类别输出列表；单例与区间类别每个日期至多一个文件，输出为单个路径。
type partialWire struct {
	Date  civil.Date       `json:"date" yaml:"date"`
	Files map[Category]any `json:"files" yaml:"files"`
}

func (p PartialGroup) wire() partialWire {
	files := make(map[Category]any, len(p.Files))
	for c, fs := range p.Files {
		switch {
		case len(fs) == 0:
		case c.Policy() == FanOut || len(fs) > 1:
			files[c] = fs
		default:
			files[c] = fs[0]
		}
	}
	return partialWire{Date: p.Date, Files: files}
}

func (p PartialGroup) MarshalJSON() ([]byte, error) { return json.Marshal(p.wire()) }

func (p PartialGroup) MarshalYAML() (any, error) { return p.wire(), nil }

// UnmarshalJSON 同时接受列表与单个路径。
func (p *PartialGroup) UnmarshalJSON(b []byte) error {
	var w struct {
		Date  civil.Date                  `json:"date"`
		Files map[Category]json.RawMessage `json:"files"`
	}
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	p.Date, p.Files = w.Date, nil
	for c, raw := range w.Files {
		var list []string
		if err := json.Unmarshal(raw, &list); err != nil {
			var one string
			if json.Unmarshal(raw, &one) != nil {
				return fmt.Errorf("no_match %s %s: %w", w.Date, c, err)
			}
			list = []string{one}
		}
		if p.Files == nil {
			p.Files = make(map[Category][]string, len(w.Files))
		}
		p.Files[c] = list
	}
	return nil
}
