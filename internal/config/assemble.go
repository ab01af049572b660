package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"rtkbatch/internal/diag"
	"rtkbatch/internal/engine"
	"rtkbatch/internal/rate"
	"rtkbatch/internal/runconf"
	"rtkbatch/pkg/contract"
	"rtkbatch/pkg/registry"
	wfs "rtkbatch/plugins/writer/filesystem"
)

// Validate 对最小必要边界做静态校验（均为致命的输入错误）。
func Validate(cfg Config) error {
	in := cfg.Inputs.ByCategory()
	if len(in) == 0 {
		return fmt.Errorf("%w: config: inputs empty", contract.ErrInvalidInput)
	}
	for c, roots := range in {
		for _, r := range roots {
			if strings.TrimSpace(r) == "" {
				return fmt.Errorf("%w: config: %s input path cannot be empty", contract.ErrInvalidInput, c)
			}
		}
	}
	if strings.TrimSpace(cfg.OutputDir) == "" {
		return fmt.Errorf("%w: config: output_dir not set", contract.ErrInvalidInput)
	}
	if cfg.Concurrency < 1 {
		return fmt.Errorf("%w: config: concurrency must be >= 1", contract.ErrInvalidInput)
	}
	if err := (rate.Limits{PerMinute: cfg.LaunchRate}).Validate(); err != nil {
		return fmt.Errorf("config: launch_rate: %w", err)
	}
	if strings.ContainsAny(cfg.ResultSuffix, `/\`) {
		return fmt.Errorf("%w: config: result_suffix %q contains a path separator", contract.ErrInvalidInput, cfg.ResultSuffix)
	}
	if strings.TrimSpace(cfg.Solver.Binary) == "" {
		return fmt.Errorf("%w: config: solver.binary not set", contract.ErrInvalidInput)
	}
	if name := effName(cfg.Solver.Runner, Defaults().Solver.Runner); registry.Runner[name] == nil {
		return fmt.Errorf("%w: config: runner %q not registered", contract.ErrInvalidInput, name)
	}
	if name := effName(cfg.Scanner.Name, Defaults().Scanner.Name); registry.Scanner[name] == nil {
		return fmt.Errorf("%w: config: scanner %q not registered", contract.ErrInvalidInput, name)
	}
	if _, err := wfs.FormatFor(cfg.Report.Format, cfg.Report.Path); err != nil {
		return fmt.Errorf("config: report: %w", err)
	}
	return nil
}

// Assemble 构造 engine.Components 与 engine.Settings。
// 目录输入在此展开为文件列表；展开为空的类别记一条告警并视为未提供
// （require_all 时改为输入错误）。
// 严格 Options 解析在 registry（工厂）层进行；此处只传原样 YAML。
func Assemble(ctx context.Context, cfg Config, logger *diag.Logger) (engine.Components, engine.Settings, error) {
	if err := Validate(cfg); err != nil {
		return engine.Components{}, engine.Settings{}, err
	}
	d := Defaults()

	sc, err := registry.Scanner[effName(cfg.Scanner.Name, d.Scanner.Name)](&cfg.Scanner.Options)
	if err != nil {
		return engine.Components{}, engine.Settings{}, fmt.Errorf("scanner: %w", err)
	}
	inputs, empty, err := ExpandInputs(ctx, sc, cfg.Inputs, On(cfg.Recursive))
	if err != nil {
		return engine.Components{}, engine.Settings{}, err
	}
	for _, c := range empty {
		roots := strings.Join(cfg.Inputs.ByCategory()[c], ", ")
		if On(cfg.RequireAll) {
			return engine.Components{}, engine.Settings{}, fmt.Errorf("%w: inputs.%s: no files under %s", contract.ErrInvalidInput, c, roots)
		}
		logger.WarnWithKV("config", string(diag.CodeEmpty), "category has no files; not required", "", "",
			map[string]string{"category": string(c), "roots": roots})
	}

	var src runconf.Source
	if cfg.Solver.ConfFile != "" {
		src, err = runconf.FromFile(cfg.Solver.ConfFile, On(cfg.Solver.PreserveERP))
		if err != nil {
			return engine.Components{}, engine.Settings{}, fmt.Errorf("%w: solver.conf_file: %v", contract.ErrInvalidInput, err)
		}
	} else {
		src = runconf.FromSettings(runconf.DefaultSettings().Merge(cfg.Solver.Settings))
	}

	runner, err := registry.Runner[effName(cfg.Solver.Runner, d.Solver.Runner)](&cfg.Solver.Options)
	if err != nil {
		return engine.Components{}, engine.Settings{}, fmt.Errorf("runner: %w", err)
	}

	comp := engine.Components{
		Extractors: registry.Extractors(),
		Runner:     runner,
	}
	set := engine.Settings{
		Inputs:      inputs,
		OutputDir:   cfg.OutputDir,
		Suffix:      cfg.ResultSuffix,
		Binary:      cfg.Solver.Binary,
		Interval:    cfg.Interval,
		Source:      src,
		Concurrency: cfg.Concurrency,
		Verbose:     On(cfg.Verbose),
		Gate:        rate.NewGate(rate.Limits{PerMinute: cfg.LaunchRate}),
	}
	return comp, set, nil
}

// ExpandInputs 将各类别的文件/目录根展开为有序文件列表。
// 给了输入根却展开为空的类别不进入结果（即不参与完整性判定），按规范顺序在 empty 中返回。
func ExpandInputs(ctx context.Context, sc contract.Expander, in Inputs, recursive bool) (out engine.Inputs, empty []contract.Category, err error) {
	out = make(engine.Inputs)
	byCat := in.ByCategory()
	for _, c := range contract.Categories {
		roots := byCat[c]
		if len(roots) == 0 {
			continue
		}
		files, err := sc.Expand(ctx, roots, recursive)
		if err != nil {
			return nil, nil, fmt.Errorf("inputs.%s: %w", c, err)
		}
		if len(files) == 0 {
			empty = append(empty, c)
			continue
		}
		out[c] = files
	}
	return out, empty, nil
}

// ReportSink 按 report.path 构造报告 Writer 与工件标识；Path 为空时返回 nil Writer。
func ReportSink(cfg Config) (contract.Writer, contract.ArtifactID, wfs.Format, error) {
	if strings.TrimSpace(cfg.Report.Path) == "" {
		return nil, "", "", nil
	}
	f, err := wfs.FormatFor(cfg.Report.Format, cfg.Report.Path)
	if err != nil {
		return nil, "", "", err
	}
	dir, name := filepath.Split(filepath.Clean(cfg.Report.Path))
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, "", "", err
	}
	var n yaml.Node
	if err := n.Encode(map[string]string{"dir": dir}); err != nil {
		return nil, "", "", err
	}
	w, err := registry.Writer["fs"](&n)
	if err != nil {
		return nil, "", "", err
	}
	return w, contract.ArtifactID(name), f, nil
}

func effName(got, def string) string {
	if got == "" {
		return def
	}
	return got
}
