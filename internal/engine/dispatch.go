package engine

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"rtkbatch/internal/diag"
	"rtkbatch/internal/rate"
	"rtkbatch/internal/runconf"
	"rtkbatch/pkg/contract"
	"rtkbatch/pkg/gnsstime"
)

// Dispatcher 在有界并发下为每个单元渲染私有运行配置并调用求解器。
type Dispatcher struct {
	Runner   contract.Runner
	Source   runconf.Source
	Arena    *runconf.Arena
	Gate     rate.Gate // 可为 nil
	Binary   string
	Interval float64
	Verbose  bool
	// Concurrency: 同时运行的求解器进程上限（<1 视为 1）。
	Concurrency int
	Logger      *diag.Logger
}

// Dispatch 执行全部单元。单元失败只记录日志（结果以输出文件是否存在为准）。
// ctx 取消后不再启动新进程；已启动的进程运行至自然结束。返回时所有单元均已结束。
func (d *Dispatcher) Dispatch(ctx context.Context, units []contract.DispatchUnit) error {
	var g errgroup.Group
	g.SetLimit(max(d.Concurrency, 1))
	for _, u := range units {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			d.one(ctx, u)
			return nil
		})
	}
	_ = g.Wait()
	return ctx.Err()
}

func (d *Dispatcher) one(ctx context.Context, u contract.DispatchUnit) {
	fileID := u.Output
	batch := u.Date.String() + "#" + strconv.Itoa(u.Index)
	if ctx.Err() != nil {
		return
	}
	// 先过闸门再落盘运行配置，排队中的单元不占临时文件
	if d.Gate != nil && !d.Gate.Try() {
		var kv map[string]string
		if s, ok := d.Gate.(rate.Snapshoter); ok && d.Logger.Enabled("debug") {
			kv = map[string]string{"tokens": strconv.Itoa(s.Snapshot())}
		}
		d.Logger.DebugStart("gate", "wait", fileID, batch, kv)
		if err := d.Gate.Wait(ctx); err != nil {
			d.fail("gate", err, fileID, batch, nil)
			return
		}
	}
	data, err := runconf.Assemble(d.Source, u.ERP)
	if err != nil {
		d.fail("runconf", err, fileID, batch, nil)
		return
	}
	lease, err := d.Arena.Create(data)
	if err != nil {
		d.fail("runconf", err, fileID, batch, nil)
		return
	}
	defer func() {
		if err := lease.Release(); err != nil {
			d.fail("runconf", err, fileID, batch, nil)
		}
	}()

	inv := contract.Invocation{
		Argv:    Argv(d.Binary, d.Interval, lease.Path, u),
		Output:  u.Output,
		Verbose: d.Verbose,
	}
	week, dow := gnsstime.GPSWeek(u.Date)
	tm := d.Logger.StartWithKV("dispatcher", "run", fileID, batch, map[string]string{
		"inputs":   strconv.Itoa(len(u.Inputs)),
		"gps_week": fmt.Sprintf("%04d%d", week, dow),
		"mjd":      strconv.Itoa(gnsstime.MJD(u.Date)),
	})
	diag.Inflight(1)
	start := time.Now()
	// 已启动的求解器不随运行取消而终止
	res, err := d.Runner.Run(context.WithoutCancel(ctx), inv)
	diag.Inflight(-1)
	if err != nil {
		d.fail("dispatcher", err, fileID, batch, nil)
		diag.GetTerminal().UnitFinish(u.Output, false, time.Since(start))
		return
	}
	if res.ExitCode != 0 {
		// 退出码不参与成功判定，仅记录
		d.Logger.WarnWithKV("dispatcher", string(diag.CodeExec), "solver exited non-zero", fileID, batch,
			map[string]string{"exit_code": strconv.Itoa(res.ExitCode)})
	}
	tm.Finish("run", 1)
	diag.IncOp("dispatcher", "run", "success")
	diag.GetTerminal().UnitFinish(u.Output, exists(u.Output), res.Duration)
}

func (d *Dispatcher) fail(comp string, err error, fileID, batch string, kv map[string]string) {
	code := diag.Classify(err)
	if kv == nil {
		kv = map[string]string{}
	}
	kv["err"] = err.Error()
	d.Logger.ErrorWithKV(comp, string(code), fmt.Sprintf("%s failed", comp), nil, fileID, batch, kv)
	diag.IncOp(comp, "run", "error")
	diag.IncError(comp, string(code))
}
