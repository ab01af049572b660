package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"rtkbatch/pkg/contract"
)

// 退出码：0 全部产出；2 报告含 no_exists/no_match；3 配置/输入错误；1 运行期错误。
const (
	exitOK         = 0
	exitRuntime    = 1
	exitIncomplete = 2
	exitConfig     = 3
)

// exitError 携带退出码；cobra 只负责传递。
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit %d", e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error { return e.err }

func configErr(err error) error { return &exitError{code: exitConfig, err: err} }

func main() {
	// 在任何 ENV 读取前，尝试加载工作目录下的 .env（不覆盖已有 ENV）。
	_ = loadDotEnv(".env")
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := execute(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// execute 构造命令树并执行，返回退出码。
func execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	root := newRootCmd(stdout, stderr)
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	if err == nil {
		return exitOK
	}
	var ee *exitError
	if errors.As(err, &ee) {
		if ee.err != nil && !errors.Is(ee.err, context.Canceled) {
			fprintf(stderr, "rtkbatch: %v\n", ee.err)
		}
		return ee.code
	}
	fprintf(stderr, "rtkbatch: %v\n", err)
	// cobra 自身的参数错误同样视为配置错误
	if errors.Is(err, contract.ErrInvalidInput) || isUsageErr(err) {
		return exitConfig
	}
	return exitRuntime
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:           "rtkbatch",
		Short:         "Group GNSS files by calendar date and post-process each group with an external solver",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error { return usageError{err} })
	root.AddCommand(
		newRunCmd(),
		newWatchCmd(),
		newScanCmd(),
		newInitConfigCmd(),
	)
	return root
}

// isUsageErr: pflag 的解析错误没有导出类型，经 FlagErrorFunc 包装后识别。
func isUsageErr(err error) bool {
	var u usageError
	return errors.As(err, &u)
}

type usageError struct{ error }

func (u usageError) Unwrap() error { return u.error }

func fprintf(w io.Writer, format string, a ...any) { _, _ = fmt.Fprintf(w, format, a...) }
