package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"rtkbatch/pkg/contract"
)

// EnvPrefix: 环境变量前缀。
const EnvPrefix = "RTKBATCH_"

// DefaultFile: 未显式指定时查找的配置文件名（当前目录）。
const DefaultFile = "rtkbatch.yaml"

// Defaults 返回带有安全默认值的 Config 雏形。
// 注意：输入与输出目录不设默认（必须由 YAML/ENV/CLI 提供）。
func Defaults() Config {
	return Config{
		Concurrency:  1,
		ResultSuffix: ".pos",
		Logging:      Logging{Level: "info"},
		Solver: Solver{
			Binary: "rnx2rtkp",
			Runner: "exec",
		},
		Scanner: Component{Name: "fs"},
	}
}

// LoadYAML 从文件路径或原始 YAML 解析 Config（严格拒绝未知字段）。
func LoadYAML(path string, raw []byte) (Config, error) {
	var cfg Config
	var r io.Reader
	switch {
	case len(raw) > 0:
		r = bytes.NewReader(raw)
	case path != "":
		f, err := os.Open(path)
		if err != nil {
			return cfg, err
		}
		defer f.Close()
		r = f
	default:
		return cfg, errors.New("no config source provided")
	}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		if errors.Is(err, io.EOF) {
			// 空文件等价于空配置
			return Config{}, nil
		}
		return cfg, fmt.Errorf("%w: %v", contract.ErrInvalidInput, err)
	}
	return cfg, nil
}

// ResolvePath 决定配置文件路径：显式参数 → RTKBATCH_CONFIG_FILE → ./rtkbatch.yaml（存在时）。
// 均不可用时返回空串。
func ResolvePath(explicit string, environ []string) string {
	if strings.TrimSpace(explicit) != "" {
		return explicit
	}
	for _, kv := range environ {
		if v, ok := strings.CutPrefix(kv, EnvPrefix+"CONFIG_FILE="); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	if st, err := os.Stat(DefaultFile); err == nil && st.Mode().IsRegular() {
		return DefaultFile
	}
	return ""
}

// Merge 按优先级合并（后者覆盖前者）。
// 仅标量/字符串/列表/原样 YAML 为“替换”；solver.settings 按键覆盖。
func Merge(base, over Config) Config {
	out := base
	// 输入按类别整体替换
	for c, roots := range over.Inputs.ByCategory() {
		out.Inputs.Set(c, cloneStrings(roots))
	}
	if over.Recursive != nil {
		out.Recursive = Bool(*over.Recursive)
	}
	if over.RequireAll != nil {
		out.RequireAll = Bool(*over.RequireAll)
	}
	if strings.TrimSpace(over.OutputDir) != "" {
		out.OutputDir = strings.TrimSpace(over.OutputDir)
	}
	if over.ResultSuffix != "" {
		out.ResultSuffix = over.ResultSuffix
	}
	if over.Concurrency != 0 {
		out.Concurrency = over.Concurrency
	}
	if over.LaunchRate != 0 {
		out.LaunchRate = over.LaunchRate
	}
	// 特殊：Interval 的 0 与负数同义（不传 -ti），以非零判断“存在”。
	if over.Interval != 0 {
		out.Interval = over.Interval
	}
	if over.Verbose != nil {
		out.Verbose = Bool(*over.Verbose)
	}
	if strings.TrimSpace(over.Logging.Level) != "" {
		out.Logging.Level = strings.TrimSpace(over.Logging.Level)
	}

	// Solver
	if strings.TrimSpace(over.Solver.Binary) != "" {
		out.Solver.Binary = strings.TrimSpace(over.Solver.Binary)
	}
	if strings.TrimSpace(over.Solver.ConfFile) != "" {
		out.Solver.ConfFile = strings.TrimSpace(over.Solver.ConfFile)
	}
	if over.Solver.PreserveERP != nil {
		out.Solver.PreserveERP = Bool(*over.Solver.PreserveERP)
	}
	if len(over.Solver.Settings) > 0 {
		out.Solver.Settings = out.Solver.Settings.Merge(over.Solver.Settings)
	}
	if over.Solver.Runner != "" {
		out.Solver.Runner = over.Solver.Runner
	}
	if over.Solver.Options.Kind != 0 {
		out.Solver.Options = over.Solver.Options
	}

	// 组件名（空不覆盖）与 Options（完整替换）
	if over.Scanner.Name != "" {
		out.Scanner.Name = over.Scanner.Name
	}
	if over.Scanner.Options.Kind != 0 {
		out.Scanner.Options = over.Scanner.Options
	}

	if strings.TrimSpace(over.Report.Path) != "" {
		out.Report.Path = strings.TrimSpace(over.Report.Path)
	}
	if strings.TrimSpace(over.Report.Format) != "" {
		out.Report.Format = strings.TrimSpace(over.Report.Format)
	}
	return out
}

// EnvOverlay 从环境变量构建一个 Config 覆盖（仅解析有限键集合）。
// 规则：前缀 RTKBATCH_；集合之外的键忽略；数值/布尔无法解析时报错。
// 支持：INPUTS_{ROVER,BASE,NAV,SP3,CLK,ERP}（逗号分隔）、RECURSIVE、REQUIRE_ALL、OUTPUT_DIR、
// RESULT_SUFFIX、CONCURRENCY、LAUNCH_RATE、INTERVAL、VERBOSE、LOG_LEVEL、
// SOLVER_{BINARY,CONF_FILE,PRESERVE_ERP,RUNNER}、REPORT_{PATH,FORMAT}
func EnvOverlay(environ []string) (Config, error) {
	var over Config
	for _, kv := range environ {
		if !strings.HasPrefix(kv, EnvPrefix) {
			continue
		}
		eq := strings.IndexByte(kv, '=')
		if eq <= len(EnvPrefix) {
			continue
		}
		key := strings.TrimPrefix(kv[:eq], EnvPrefix)
		val := strings.TrimSpace(kv[eq+1:])
		if val == "" {
			// 空值视为未设置，避免清空文件配置
			continue
		}
		var err error
		switch key {
		case "RECURSIVE":
			over.Recursive, err = parseBool(key, val)
		case "REQUIRE_ALL":
			over.RequireAll, err = parseBool(key, val)
		case "OUTPUT_DIR":
			over.OutputDir = val
		case "RESULT_SUFFIX":
			over.ResultSuffix = val
		case "CONCURRENCY":
			over.Concurrency, err = parseInt(key, val)
		case "LAUNCH_RATE":
			over.LaunchRate, err = parseInt(key, val)
		case "INTERVAL":
			over.Interval, err = strconv.ParseFloat(val, 64)
			if err != nil {
				err = fmt.Errorf("%w: %s%s=%q", contract.ErrInvalidInput, EnvPrefix, key, val)
			}
		case "VERBOSE":
			over.Verbose, err = parseBool(key, val)
		case "LOG_LEVEL":
			over.Logging.Level = val
		case "SOLVER_BINARY":
			over.Solver.Binary = val
		case "SOLVER_CONF_FILE":
			over.Solver.ConfFile = val
		case "SOLVER_PRESERVE_ERP":
			over.Solver.PreserveERP, err = parseBool(key, val)
		case "SOLVER_RUNNER":
			over.Solver.Runner = val
		case "REPORT_PATH":
			over.Report.Path = val
		case "REPORT_FORMAT":
			over.Report.Format = val
		default:
			if name, ok := strings.CutPrefix(key, "INPUTS_"); ok {
				c, perr := contract.ParseCategory(name)
				if perr != nil {
					// 未知类别同样属于集合之外的键
					continue
				}
				over.Inputs.Set(c, splitComma(val))
			}
		}
		if err != nil {
			return Config{}, err
		}
	}
	return over, nil
}

func parseInt(key, val string) (int, error) {
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("%w: %s%s=%q", contract.ErrInvalidInput, EnvPrefix, key, val)
	}
	return n, nil
}

func parseBool(key, val string) (*bool, error) {
	b, err := strconv.ParseBool(val)
	if err != nil {
		return nil, fmt.Errorf("%w: %s%s=%q", contract.ErrInvalidInput, EnvPrefix, key, val)
	}
	return &b, nil
}

func cloneStrings(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}

// splitComma 按逗号拆分并裁剪空白，丢弃空项。
func splitComma(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := parts[:0]
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}
