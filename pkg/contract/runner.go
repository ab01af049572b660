package contract

import (
	"context"
	"time"
)

// Invocation: 一次外部进程调用（argv 形式，无 stdin）。
type Invocation struct {
	// Argv[0] 为可执行文件。
	Argv []string
	// Output: 本次调用声明的输出文件（仅用于诊断与模拟实现）。
	Output string
	// Verbose: 为 true 时透传子进程标准输出/错误，否则丢弃。
	Verbose bool
}

// Result: 子进程结束信息；ExitCode 不参与成功判定。
type Result struct {
	ExitCode int
	Duration time.Duration
}

// Runner: 同步执行一次外部求解器调用，直到子进程退出。
// 进程无法启动时返回错误；非零退出码不是错误。
type Runner interface {
	Run(ctx context.Context, inv Invocation) (Result, error)
}
