package filesystem

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"rtkbatch/pkg/contract"
)

// Format: 报告序列化格式。
type Format string

const (
	JSON Format = "json"
	YAML Format = "yaml"
)

// FormatFor 由显式格式或文件扩展名推断格式；默认 JSON。
func FormatFor(explicit, path string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(explicit)) {
	case "json":
		return JSON, nil
	case "yaml", "yml":
		return YAML, nil
	case "":
	default:
		return "", fmt.Errorf("%w: report format %q", contract.ErrInvalidInput, explicit)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return YAML, nil
	default:
		return JSON, nil
	}
}

// EncodeReport 序列化报告；nil 列表输出为空数组，便于下游稳定解析。
func EncodeReport(rep contract.Report, f Format) ([]byte, error) {
	if rep.Done == nil {
		rep.Done = []string{}
	}
	if rep.NoExists == nil {
		rep.NoExists = []string{}
	}
	if rep.NoMatch == nil {
		rep.NoMatch = []contract.PartialGroup{}
	}
	switch f {
	case YAML:
		var buf bytes.Buffer
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(rep); err != nil {
			return nil, err
		}
		if err := enc.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	default:
		b, err := json.MarshalIndent(rep, "", "  ")
		if err != nil {
			return nil, err
		}
		return append(b, '\n'), nil
	}
}

// WriteReport 序列化并通过 w 落盘。
func WriteReport(ctx context.Context, w contract.Writer, id contract.ArtifactID, rep contract.Report, f Format) error {
	b, err := EncodeReport(rep, f)
	if err != nil {
		return err
	}
	return w.Write(ctx, id, bytes.NewReader(b))
}
