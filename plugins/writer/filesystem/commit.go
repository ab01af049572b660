package filesystem

import (
	"os"
	"runtime"
)

// commit 将同目录临时文件替换为最终报告。os.Rename 在 Windows 上
// 走 MoveFileEx(REPLACE_EXISTING)，两端语义一致：读者要么看到旧报告，要么看到新报告。
func commit(tmpPath, dest string) error {
	if err := os.Rename(tmpPath, dest); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	return nil
}

// flushDir 尽力把目录项落盘；Windows 不支持对目录 fsync，直接跳过。
func flushDir(dir string) {
	if runtime.GOOS == "windows" {
		return
	}
	d, err := os.Open(dir)
	if err != nil {
		return
	}
	_ = d.Sync()
	_ = d.Close()
}
