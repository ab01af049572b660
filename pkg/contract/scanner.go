package contract

import "context"

// Scanner: 目录扫描协作者。
// 约束：
//  1. dir 不是目录时返回包装 ErrNotDirectory 的错误；
//  2. 返回稳定顺序（字典序）的常规文件路径；
//  3. 不在内部起并发。
type Scanner interface {
	Scan(ctx context.Context, dir string, recursive bool) ([]string, error)
}

// Expander: 在 Scanner 之上将文件/目录混合的根展开为文件列表。
// 保持根的先后顺序；重复路径仅保留首次出现。
type Expander interface {
	Scanner
	Expand(ctx context.Context, roots []string, recursive bool) ([]string, error)
}
