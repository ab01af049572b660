package contract

import (
	"context"

	"cloud.google.com/go/civil"
)

// Extractor: 从单个文件的头部/内容中提取日期（或覆盖的日期序列）。
// 约束：
//  1. 只读文件，不解释日期以外的语义；
//  2. 成功时返回非空升序日期；
//  3. 失败时返回包装了 ErrEmpty / ErrUnsupportedRevision / ErrUnreadable 的错误；
//  4. 无内部并发，可被多个 goroutine 同时调用。
type Extractor interface {
	Extract(ctx context.Context, path string) ([]civil.Date, error)
}

// ExtractorFunc 让普通函数满足 Extractor。
type ExtractorFunc func(ctx context.Context, path string) ([]civil.Date, error)

func (f ExtractorFunc) Extract(ctx context.Context, path string) ([]civil.Date, error) {
	return f(ctx, path)
}
