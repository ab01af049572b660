package diag

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"time"

	"rtkbatch/pkg/contract"
)

// Code 是最小错误分类代码。
// 仅用于日志/指标汇总，与退出码解耦。
type Code string

const (
	CodeUnknown Code = "unknown"
	CodeInvalid Code = "invalid" // 输入/配置形状非法
	CodeFormat  Code = "format"  // 文件修订不受支持
	CodeEmpty   Code = "empty"   // 文件中无可识别日期
	CodeIO      Code = "io"
	CodeExec    Code = "exec" // 外部进程无法启动或异常退出
	CodeCancel  Code = "cancel"
)

// Classify 将错误归为最小分类。
// 说明：仅依赖哨兵错误与标准库错误类型，不做字符串匹配。
func Classify(err error) Code {
	if err == nil {
		return CodeUnknown
	}
	// 取消/超时优先
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return CodeCancel
	}
	if errors.Is(err, contract.ErrInvalidInput) ||
		errors.Is(err, contract.ErrPathInvalid) ||
		errors.Is(err, contract.ErrNotDirectory) {
		return CodeInvalid
	}
	if errors.Is(err, contract.ErrUnsupportedRevision) {
		return CodeFormat
	}
	if errors.Is(err, contract.ErrEmpty) {
		return CodeEmpty
	}
	var xerr *exec.ExitError
	if errors.As(err, &xerr) || errors.Is(err, exec.ErrNotFound) {
		return CodeExec
	}
	var perr *os.PathError
	if errors.Is(err, contract.ErrUnreadable) || errors.As(err, &perr) {
		return CodeIO
	}
	return CodeUnknown
}

// NowUTC 返回 RFC3339 UTC 时间字符串。
func NowUTC() string { return time.Now().UTC().Format(time.RFC3339) }
