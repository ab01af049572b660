package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	cfgpkg "rtkbatch/internal/config"
	"rtkbatch/internal/diag"
	"rtkbatch/internal/engine"
	"rtkbatch/pkg/contract"
	rexec "rtkbatch/plugins/runner/exec"
	wfs "rtkbatch/plugins/writer/filesystem"
)

var engineRun = engine.Run

// runFlags: run/watch 共享的命令行覆盖项。
type runFlags struct {
	config      string
	inputs      map[contract.Category]*[]string
	out         string
	conf        string
	preserveERP bool
	interval    float64
	concurrency int
	launchRate  int
	binary      string
	runner      string
	suffix      string
	recursive   bool
	requireAll  bool
	verbose     bool
	report      string
	reportFmt   string
	metricsFile string
	logLevel    string
	status      bool
}

func (f *runFlags) bind(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringVar(&f.config, "config", "", "YAML 配置文件；缺省读取 RTKBATCH_CONFIG_FILE 或 ./rtkbatch.yaml（若存在）")
	f.inputs = make(map[contract.Category]*[]string, len(contract.Categories))
	for _, c := range contract.Categories {
		v := new([]string)
		f.inputs[c] = v
		fs.StringSliceVar(v, string(c), nil, fmt.Sprintf("%s 输入（文件或目录，可重复或逗号分隔）", c))
	}
	fs.StringVarP(&f.out, "out", "o", "", "结果输出目录（须已存在）")
	fs.StringVarP(&f.conf, "conf", "k", "", "求解器 key=value 配置文件（设置后忽略 solver.settings）")
	fs.BoolVar(&f.preserveERP, "preserve-erp", false, "保留配置文件中已有的 file-eopfile 行")
	fs.Float64Var(&f.interval, "interval", 0, "求解器输出间隔（秒）；<=0 不传 -ti")
	fs.IntVarP(&f.concurrency, "concurrency", "j", 0, "同时运行的求解器进程数")
	fs.IntVar(&f.launchRate, "launch-rate", 0, "每分钟最多启动的求解器进程数（0 不限）")
	fs.StringVar(&f.binary, "binary", "", "求解器可执行文件")
	fs.StringVar(&f.runner, "runner", "", "求解器调用实现（exec|mock）")
	fs.StringVar(&f.suffix, "suffix", "", "结果文件后缀")
	fs.BoolVarP(&f.recursive, "recursive", "r", false, "递归扫描目录输入")
	fs.BoolVar(&f.requireAll, "require-all", false, "任一类别的输入根中没有文件时报错（默认告警并视为未提供）")
	fs.BoolVarP(&f.verbose, "verbose", "v", false, "透传求解器输出")
	fs.StringVar(&f.report, "report", "", "报告文件路径（.json|.yaml）；缺省打印到标准输出")
	fs.StringVar(&f.reportFmt, "report-format", "", "报告格式（json|yaml）；缺省按扩展名")
	fs.StringVar(&f.metricsFile, "metrics-file", "", "运行结束后写出 prometheus 文本指标")
	fs.StringVar(&f.logLevel, "log-level", "", "日志级别（debug|info|warn|error）")
	fs.BoolVar(&f.status, "status", true, "终端状态提示（stderr）。TTY 动态刷新；非 TTY 打点输出")
}

// overlay 将显式给出的旗标转为最高优先级的 Config 覆盖。
func (f *runFlags) overlay(cmd *cobra.Command) cfgpkg.Config {
	var over cfgpkg.Config
	changed := cmd.Flags().Changed
	for c, v := range f.inputs {
		if changed(string(c)) {
			over.Inputs.Set(c, *v)
		}
	}
	over.OutputDir = f.out
	over.Solver.ConfFile = f.conf
	if changed("preserve-erp") {
		over.Solver.PreserveERP = cfgpkg.Bool(f.preserveERP)
	}
	if changed("interval") {
		over.Interval = f.interval
		if f.interval == 0 {
			// 显式 0：关闭 -ti
			over.Interval = -1
		}
	}
	over.Concurrency = f.concurrency
	over.LaunchRate = f.launchRate
	over.Solver.Binary = f.binary
	over.Solver.Runner = f.runner
	over.ResultSuffix = f.suffix
	if changed("recursive") {
		over.Recursive = cfgpkg.Bool(f.recursive)
	}
	if changed("require-all") {
		over.RequireAll = cfgpkg.Bool(f.requireAll)
	}
	if changed("verbose") {
		over.Verbose = cfgpkg.Bool(f.verbose)
	}
	over.Report.Path = f.report
	over.Report.Format = f.reportFmt
	over.Logging.Level = f.logLevel
	return over
}

// loadConfig: Defaults → YAML 文件 → ENV → CLI。
func loadConfig(cmd *cobra.Command, f *runFlags) (cfgpkg.Config, error) {
	cfg := cfgpkg.Defaults()
	environ := os.Environ()
	if path := cfgpkg.ResolvePath(f.config, environ); path != "" {
		base, err := cfgpkg.LoadYAML(path, nil)
		if err != nil {
			return cfg, fmt.Errorf("%w: config %s: %v", contract.ErrInvalidInput, path, err)
		}
		cfg = cfgpkg.Merge(cfg, base)
	}
	overEnv, err := cfgpkg.EnvOverlay(environ)
	if err != nil {
		return cfg, err
	}
	cfg = cfgpkg.Merge(cfg, overEnv)
	cfg = cfgpkg.Merge(cfg, f.overlay(cmd))
	if err := cfgpkg.Validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func newRunCmd() *cobra.Command {
	f := &runFlags{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Correlate inputs by date, dispatch the solver and write the report",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd, f)
			if err != nil {
				return configErr(err)
			}
			logger := diag.NewLogger(uuid.NewString(), cfg.Logging.Level)
			defer func() { _ = logger.Sync() }()
			term := diag.NewTerminal(cmd.ErrOrStderr(), f.status)
			diag.SetTerminal(term)
			defer diag.SetTerminal(nil)

			code, err := runOnce(cmd.Context(), cmd, cfg, logger)
			if f.metricsFile != "" {
				if merr := diag.WriteMetrics(f.metricsFile); merr != nil {
					fprintf(cmd.ErrOrStderr(), "提示：指标写出失败（已跳过）：%v\n", merr)
				}
			}
			if code == exitOK {
				return nil
			}
			return &exitError{code: code, err: err}
		},
	}
	f.bind(cmd)
	return cmd
}

// runOnce 装配并执行一次批处理，落盘/打印报告，返回退出码。
func runOnce(ctx context.Context, cmd *cobra.Command, cfg cfgpkg.Config, logger *diag.Logger) (int, error) {
	start := time.Now()
	comp, set, err := cfgpkg.Assemble(ctx, cfg, logger)
	if err != nil {
		logger.Error("config", string(diag.Classify(err)), "assemble failed", &start)
		return exitConfig, err
	}
	if r, ok := comp.Runner.(*rexec.Runner); ok {
		comp.Runner = solverOutput(r, cmd, cfg)
	}
	logger.DebugStart("config", "effective", "", "", map[string]string{
		"categories":  categoriesOf(set.Inputs),
		"concurrency": strconv.Itoa(set.Concurrency),
		"binary":      set.Binary,
		"runner":      cfg.Solver.Runner,
		"output_dir":  set.OutputDir,
	})

	rep, err := engineRun(ctx, comp, set, logger)
	if err != nil && !errors.Is(err, context.Canceled) {
		code := diag.Classify(err)
		logger.Error("engine", string(code), "run failed", &start)
		if code == diag.CodeInvalid {
			return exitConfig, err
		}
		return exitRuntime, err
	}
	if werr := emitReport(context.WithoutCancel(ctx), cmd, cfg, rep); werr != nil {
		logger.Error("report", string(diag.Classify(werr)), "report write failed", &start)
		return exitRuntime, werr
	}
	if err != nil {
		// 取消：报告已输出，按运行期错误退出
		return exitRuntime, err
	}
	if !rep.Complete() {
		return exitIncomplete, nil
	}
	return exitOK, nil
}

// solverOutput: verbose 时求解器输出走命令的输出流；报告打印到标准输出时
// 求解器 stdout 改走 stderr，保证 stdout 只含报告。
func solverOutput(r *rexec.Runner, cmd *cobra.Command, cfg cfgpkg.Config) *rexec.Runner {
	if strings.TrimSpace(cfg.Report.Path) == "" {
		return r.WithOutput(cmd.ErrOrStderr(), cmd.ErrOrStderr())
	}
	return r.WithOutput(cmd.OutOrStdout(), cmd.ErrOrStderr())
}

// emitReport: report.path 非空时经 Writer 原子落盘，否则打印到标准输出。
func emitReport(ctx context.Context, cmd *cobra.Command, cfg cfgpkg.Config, rep contract.Report) error {
	w, id, format, err := cfgpkg.ReportSink(cfg)
	if err != nil {
		return err
	}
	if w == nil {
		// 未配置报告路径：写到标准输出
		if format, err = wfs.FormatFor(cfg.Report.Format, ""); err != nil {
			return err
		}
		w = contract.StreamWriter(cmd.OutOrStdout())
	}
	return wfs.WriteReport(ctx, w, id, rep, format)
}

func categoriesOf(in engine.Inputs) string {
	var parts []string
	for _, c := range in.Supplied() {
		parts = append(parts, fmt.Sprintf("%s:%d", c, len(in[c])))
	}
	return strings.Join(parts, ",")
}
