// Package engine 是唯一的并发点：日期提取与关联、分发规划、有界并发分发、结果核对。
//
// - 单点并发：仅此层管理并发；提取器、求解器调用等原子组件均为同步实现。
// - 运行私有：关联表、运行配置与报告只属于创建它们的那次运行。
// - 部分失败不报错：单文件提取失败进入 Skipped，求解失败只体现为 no_exists，
//   期望输出重名的单元进入 Collisions。
package engine

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"rtkbatch/internal/diag"
	"rtkbatch/internal/rate"
	"rtkbatch/internal/runconf"
	"rtkbatch/pkg/contract"
)

// Components 聚合运行所需的原子组件。
type Components struct {
	Extractors map[contract.Category]contract.Extractor
	Runner     contract.Runner
}

// Settings 运行期配置（最小必要）。
type Settings struct {
	Inputs    Inputs
	OutputDir string
	// Suffix: 结果文件后缀，空串取 DefaultSuffix。
	Suffix string
	Binary string
	// Interval: 求解器输出采样间隔（秒）；<=0 省略。
	Interval float64
	// Source: 运行配置来源（映射或文件）。
	Source      runconf.Source
	Concurrency int
	Verbose     bool
	// Gate: 求解器启动节流（可选）。
	Gate rate.Gate
	// TempDir: 临时运行配置的父目录；空串使用系统临时目录。
	TempDir string
}

// Run 执行一次完整批处理：Correlate → Plan → Dispatch → Reconcile。
// 仅结构性问题（组件缺失、输出目录不存在等）返回错误；其余失败体现在报告中。
// ctx 取消时停止启动新任务，并返回已结束部分的报告与 ctx 错误。
func Run(ctx context.Context, comp Components, set Settings, logger *diag.Logger) (contract.Report, error) {
	if err := sanity(comp, set); err != nil {
		return contract.Report{}, fmt.Errorf("sanity: %w", err)
	}
	start := time.Now()
	diag.GetTerminal().RunStart(max(set.Concurrency, 1), set.Binary)

	ctm := logger.Start("correlator", "correlate")
	c, err := Correlate(ctx, comp.Extractors, set.Inputs, set.Concurrency, logger)
	if err != nil {
		logger.Error("correlator", string(diag.Classify(err)), "correlate failed", ctm.Since())
		return contract.Report{}, fmt.Errorf("correlate: %w", err)
	}
	ctm.Finish("correlate", int64(len(c.Dates)))

	units, collisions := Plan(c, set.OutputDir, set.Suffix)
	for _, col := range collisions {
		logger.WarnWithKV("planner", string(diag.CodeInvalid), "output collides with an earlier unit; not dispatched", col.Output, col.Date.String(),
			map[string]string{"input": col.Input, "kept": col.Kept})
	}
	diag.GetTerminal().Planned(len(c.Dates), len(c.Partial), len(units), len(c.Skipped))

	arena, err := runconf.NewArena(set.TempDir)
	if err != nil {
		return contract.Report{}, fmt.Errorf("arena: %w", err)
	}
	logger.DebugStart("runconf", "arena", arena.Dir(), "", nil)
	// 任一路径返回（含 panic）都清理临时目录
	defer func() {
		if cerr := arena.Close(); cerr != nil {
			logger.Error("runconf", string(diag.Classify(cerr)), "arena cleanup failed", nil)
		}
	}()

	d := &Dispatcher{
		Runner:      comp.Runner,
		Source:      set.Source,
		Arena:       arena,
		Gate:        set.Gate,
		Binary:      set.Binary,
		Interval:    set.Interval,
		Verbose:     set.Verbose,
		Concurrency: set.Concurrency,
		Logger:      logger,
	}
	dtm := logger.Start("dispatcher", "dispatch")
	derr := d.Dispatch(ctx, units)
	dtm.Finish("dispatch", int64(len(units)))

	rep := Reconcile(Expected(units), c.Partial)
	rep.Skipped = c.Skipped
	rep.Replaced = c.Replaced
	rep.Collisions = collisions
	logger.InfoFinish("engine", "run", start, int64(len(rep.Done)))
	diag.GetTerminal().RunFinish(rep.Complete(), len(rep.Done), len(rep.NoExists), len(rep.NoMatch), time.Since(start))
	if derr != nil {
		return rep, derr
	}
	return rep, nil
}

// sanity 校验分发前必须成立的结构性条件。
func sanity(comp Components, set Settings) error {
	if comp.Runner == nil {
		return fmt.Errorf("%w: runner is nil", contract.ErrInvalidInput)
	}
	if set.Source == nil {
		return fmt.Errorf("%w: run-config source is nil", contract.ErrInvalidInput)
	}
	if strings.TrimSpace(set.Binary) == "" {
		return fmt.Errorf("%w: solver binary is empty", contract.ErrInvalidInput)
	}
	if set.Concurrency < 0 {
		return fmt.Errorf("%w: concurrency must be >= 0", contract.ErrInvalidInput)
	}
	if len(set.Inputs.Supplied()) == 0 {
		return fmt.Errorf("%w: no input files", contract.ErrInvalidInput)
	}
	for c := range set.Inputs {
		if !c.Valid() {
			return fmt.Errorf("%w: unknown category %q", contract.ErrInvalidInput, c)
		}
	}
	st, err := os.Stat(set.OutputDir)
	if err != nil {
		return fmt.Errorf("%w: output dir: %v", contract.ErrInvalidInput, err)
	}
	if !st.IsDir() {
		return fmt.Errorf("%w: output dir %s", contract.ErrNotDirectory, set.OutputDir)
	}
	return nil
}
