package contract

import (
	"context"
	"io"
)

// ArtifactID: 产物标识，即相对 Writer 根目录的路径；标准输出时为空。
type ArtifactID string

// Writer 持久化运行产物（报告、指标快照）。
// 同一 ArtifactID 只有一个写者；内容按字节透传；ctx 取消时尽快返回，错误原样上抛。
type Writer interface {
	Write(ctx context.Context, id ArtifactID, r io.Reader) error
}

// WriterFunc 将普通函数适配为 Writer。
type WriterFunc func(ctx context.Context, id ArtifactID, r io.Reader) error

func (f WriterFunc) Write(ctx context.Context, id ArtifactID, r io.Reader) error { return f(ctx, id, r) }

// StreamWriter 把产物直接拷到 out，忽略 id。
func StreamWriter(out io.Writer) Writer {
	return WriterFunc(func(ctx context.Context, _ ArtifactID, r io.Reader) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		_, err := io.Copy(out, r)
		return err
	})
}
