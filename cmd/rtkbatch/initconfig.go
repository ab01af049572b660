package main

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	cfgpkg "rtkbatch/internal/config"
)

func newInitConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init-config [DIR]",
		Short: "Write rtkbatch.yaml and .env templates into DIR (default: current directory); existing files are kept",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) == 1 {
				dir = args[0]
			}
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return configErr(err)
			}
			b, err := cfgpkg.TemplateYAML()
			if err != nil {
				return err
			}
			cfgPath := filepath.Join(dir, cfgpkg.DefaultFile)
			if err := writeNew(cfgPath, b); err != nil {
				return configErr(err)
			}
			// .env 模板失败不影响主流程
			if err := writeNew(filepath.Join(dir, ".env"), []byte(cfgpkg.EnvTemplate)); err != nil {
				fprintf(cmd.ErrOrStderr(), "提示：.env 生成失败（已跳过）：%v\n", err)
			}
			fprintf(cmd.OutOrStdout(), "%s\n", cfgPath)
			return nil
		},
	}
}

// writeNew 仅创建新文件；已存在时跳过（不覆盖、不合并）。
func writeNew(path string, b []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return nil
		}
		return err
	}
	if _, err := f.Write(b); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
