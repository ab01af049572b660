package contract

import (
	"path"
	"path/filepath"
	"strings"
)

// PathKey 返回用于去重的路径键：统一为正斜杠并清理 . / .. 片段。
// 相对路径保持相对，不做隐式绝对化；同一文件经不同写法给出时得到同一键。
func PathKey(p string) string {
	return path.Clean(strings.ReplaceAll(p, "\\", "/"))
}

// OutputPath 返回 fan-out 文件对应的期望求解输出：outDir/<基名><suffix>。
func OutputPath(outDir, input, suffix string) string {
	return filepath.Join(outDir, filepath.Base(input)+suffix)
}
