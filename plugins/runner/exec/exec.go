// Package exec 以子进程方式调用外部定位求解器（argv 契约，无 stdin）。
package exec

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	osexec "os/exec"
	"time"

	"rtkbatch/pkg/contract"
)

// Options: 子进程环境（均可选）。
type Options struct {
	// Dir: 子进程工作目录；为空继承当前目录。
	Dir string `yaml:"dir" json:"dir"`
	// Env: 追加到继承环境之后的 KEY=VALUE 项。
	Env []string `yaml:"env" json:"env"`
	// Timeout: 单次调用上限；0 表示不限。超时的进程会被终止，输出按缺失处理。
	Timeout time.Duration `yaml:"timeout" json:"timeout"`
}

// Runner 实现 contract.Runner。
type Runner struct {
	dir     string
	env     []string
	timeout time.Duration
	// stdout/stderr: Verbose 时的透传目标。
	stdout io.Writer
	stderr io.Writer
}

var _ contract.Runner = (*Runner)(nil)

// waitDelay: 进程退出后等待孙进程释放输出管道的上限。
const waitDelay = 2 * time.Second

// New 创建 Runner；opts 可为 nil。
func New(opts *Options) *Runner {
	r := &Runner{stdout: os.Stdout, stderr: os.Stderr}
	if opts != nil {
		r.dir = opts.Dir
		r.env = append([]string(nil), opts.Env...)
		r.timeout = opts.Timeout
	}
	return r
}

// WithOutput 替换 Verbose 模式下的透传目标（测试与终端重定向用）。
func (r *Runner) WithOutput(stdout, stderr io.Writer) *Runner {
	cp := *r
	cp.stdout, cp.stderr = stdout, stderr
	return &cp
}

// Run 启动子进程并等待其退出。非零退出码记入 Result 而非错误；
// 仅在进程无法启动（如可执行文件不存在）时返回错误。
func (r *Runner) Run(ctx context.Context, inv contract.Invocation) (contract.Result, error) {
	res := contract.Result{ExitCode: -1}
	if len(inv.Argv) == 0 || inv.Argv[0] == "" {
		return res, fmt.Errorf("%w: empty argv", contract.ErrInvalidInput)
	}
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}
	cmd := osexec.CommandContext(ctx, inv.Argv[0], inv.Argv[1:]...)
	cmd.Dir = r.dir
	if len(r.env) > 0 {
		cmd.Env = append(os.Environ(), r.env...)
	}
	// 静默模式下 Stdout/Stderr 为 nil，即重定向到空设备
	if inv.Verbose {
		cmd.Stdout, cmd.Stderr = r.stdout, r.stderr
		cmd.WaitDelay = waitDelay
	}

	start := time.Now()
	err := cmd.Run()
	res.Duration = time.Since(start)
	if err == nil {
		res.ExitCode = 0
		return res, nil
	}
	var exitErr *osexec.ExitError
	if errors.As(err, &exitErr) {
		// 已运行但非零退出（或被超时终止）
		res.ExitCode = exitErr.ExitCode()
		return res, nil
	}
	return res, fmt.Errorf("start %s: %w", inv.Argv[0], err)
}
