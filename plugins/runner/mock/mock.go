// Package mock 提供进程内的求解器替身：按 argv 中的 -o 生成（或故意不生成）结果文件。
// 用于演练运行与端到端测试，不启动任何子进程。
package mock

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"rtkbatch/pkg/contract"
)

// Options 定义可选项。
type Options struct {
	// Content: 写入结果文件的内容；默认 "% mock solution\n"。
	Content string `yaml:"content" json:"content"`
	// Skip: 输出基名匹配任一 glob 时不生成结果（模拟求解失败）。
	Skip []string `yaml:"skip" json:"skip"`
	// FailEvery: 每第 N 次调用不生成结果；0 表示关闭。
	FailEvery int `yaml:"fail_every" json:"fail_every"`
	// ExitCode: 模拟的退出码（不影响结果文件是否生成）。
	ExitCode int `yaml:"exit_code" json:"exit_code"`
	// Delay: 每次调用的模拟耗时。
	Delay time.Duration `yaml:"delay" json:"delay"`
	// CheckInputs: 为 true 时校验 -k 配置文件与全部输入文件在调用期间存在。
	CheckInputs bool `yaml:"check_inputs" json:"check_inputs"`
}

// Call: 一次被记录的调用；Config 为调用期间读取到的配置文件内容。
type Call struct {
	Argv   []string
	Config string
}

// Runner 实现 contract.Runner，并发安全。
type Runner struct {
	opts  Options
	count atomic.Int64

	mu    sync.Mutex
	calls []Call
	// inflight/peak: 并发观测（测试用）。
	inflight atomic.Int64
	peak     atomic.Int64
}

var _ contract.Runner = (*Runner)(nil)

// New 构造 Runner；opts 可为 nil。
func New(opts *Options) (*Runner, error) {
	r := &Runner{}
	if opts != nil {
		r.opts = *opts
	}
	if r.opts.Content == "" {
		r.opts.Content = "% mock solution\n"
	}
	if r.opts.FailEvery < 0 {
		return nil, fmt.Errorf("%w: fail_every must be >= 0", contract.ErrInvalidInput)
	}
	for _, p := range r.opts.Skip {
		if _, err := filepath.Match(p, ""); err != nil {
			return nil, fmt.Errorf("%w: bad skip pattern %q", contract.ErrInvalidInput, p)
		}
	}
	return r, nil
}

// Run 记录调用；按选项决定是否写出 -o 指定的结果文件。
func (r *Runner) Run(ctx context.Context, inv contract.Invocation) (contract.Result, error) {
	start := time.Now()
	n := r.count.Add(1)
	cur := r.inflight.Add(1)
	defer r.inflight.Add(-1)
	for {
		p := r.peak.Load()
		if cur <= p || r.peak.CompareAndSwap(p, cur) {
			break
		}
	}

	args := parse(inv.Argv)
	call := Call{Argv: append([]string(nil), inv.Argv...)}
	if args.conf != "" {
		if b, err := os.ReadFile(args.conf); err == nil {
			call.Config = string(b)
		} else if r.opts.CheckInputs {
			return contract.Result{ExitCode: -1}, fmt.Errorf("mock: config not readable: %w", err)
		}
	}
	if r.opts.CheckInputs {
		for _, in := range args.inputs {
			if _, err := os.Stat(in); err != nil {
				return contract.Result{ExitCode: -1}, fmt.Errorf("mock: input missing: %w", err)
			}
		}
	}
	r.mu.Lock()
	r.calls = append(r.calls, call)
	r.mu.Unlock()

	if r.opts.Delay > 0 {
		t := time.NewTimer(r.opts.Delay)
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
		}
	}
	if args.output != "" && !r.skip(n, args.output) {
		if err := os.WriteFile(args.output, []byte(r.opts.Content), 0o644); err != nil {
			// 与真实求解器一致：写不出结果不算调用失败
			return contract.Result{ExitCode: 1, Duration: time.Since(start)}, nil
		}
	}
	return contract.Result{ExitCode: r.opts.ExitCode, Duration: time.Since(start)}, nil
}

func (r *Runner) skip(n int64, output string) bool {
	if r.opts.FailEvery > 0 && n%int64(r.opts.FailEvery) == 0 {
		return true
	}
	base := filepath.Base(output)
	for _, p := range r.opts.Skip {
		if ok, _ := filepath.Match(p, base); ok {
			return true
		}
	}
	return false
}

// Calls 返回已记录调用的副本（按完成记录顺序）。
func (r *Runner) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Call(nil), r.calls...)
}

// Peak 返回观测到的最大并发调用数。
func (r *Runner) Peak() int { return int(r.peak.Load()) }

type argv struct {
	conf   string
	output string
	inputs []string
}

// parse 解析 [bin, (-ti x), -k conf, inputs..., -o out]。
func parse(a []string) argv {
	var out argv
	for i := 1; i < len(a); i++ {
		switch a[i] {
		case "-ti":
			i++
		case "-k":
			if i+1 < len(a) {
				out.conf = a[i+1]
			}
			i++
		case "-o":
			if i+1 < len(a) {
				out.output = a[i+1]
			}
			i++
		default:
			out.inputs = append(out.inputs, a[i])
		}
	}
	return out
}
