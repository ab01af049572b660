package contract

import "errors"

// 最小错误分类（哨兵）；上层仅通过 errors.Is 判定。
var (
	// ErrInvalidInput: 调用形状/参数非法（致命，分发前返回）。
	ErrInvalidInput = errors.New("invalid input")
	// ErrNotDirectory: 扫描目标不是目录。
	ErrNotDirectory = errors.New("not a directory")
	// ErrPathInvalid: 目标标识映射为无效/越界路径（例如绝对路径或 '..' 逃逸）。
	ErrPathInvalid = errors.New("path invalid")

	// 以下为单文件提取失败的标签；批处理对其一律“跳过该文件”。
	ErrEmpty               = errors.New("no date found")
	ErrUnsupportedRevision = errors.New("unsupported revision")
	ErrUnreadable          = errors.New("unreadable")
)

// ExtractError: 携带面向用户的消息与分类标签的提取错误。
// Error() 仅返回 Msg（例如 "Unknown version rinex 4.00"）。
type ExtractError struct {
	Kind  error
	Msg   string
	Cause error // 可为 nil
}

func (e *ExtractError) Error() string { return e.Msg }

func (e *ExtractError) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Cause}
}

// Unsupported 构造“版本不支持”错误。
func Unsupported(format, version string) error {
	return &ExtractError{Kind: ErrUnsupportedRevision, Msg: "Unknown version " + format + " " + version}
}

// Empty 构造“无可识别日期”错误。
func Empty(msg string) error {
	return &ExtractError{Kind: ErrEmpty, Msg: msg}
}

// Unreadable 包装 I/O 失败。
func Unreadable(err error) error {
	return &ExtractError{Kind: ErrUnreadable, Msg: err.Error(), Cause: err}
}

// Outcome 将提取错误映射为标签：ok|empty|unsupported|unreadable|error。
func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrEmpty):
		return "empty"
	case errors.Is(err, ErrUnsupportedRevision):
		return "unsupported"
	case errors.Is(err, ErrUnreadable):
		return "unreadable"
	default:
		return "error"
	}
}
