package main

import (
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"rtkbatch/pkg/registry"
)

func newScanCmd() *cobra.Command {
	var (
		recursive bool
		patterns  []string
		exclude   []string
	)
	cmd := &cobra.Command{
		Use:   "scan DIR",
		Short: "List the files a directory input would contribute, in dispatch order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var opts yaml.Node
			if err := opts.Encode(map[string][]string{"patterns": patterns, "exclude_dir_names": exclude}); err != nil {
				return err
			}
			sc, err := registry.Scanner["fs"](&opts)
			if err != nil {
				return configErr(err)
			}
			files, err := sc.Scan(cmd.Context(), args[0], recursive)
			if err != nil {
				return configErr(err)
			}
			for _, f := range files {
				fprintf(cmd.OutOrStdout(), "%s\n", f)
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&recursive, "recursive", "r", false, "递归扫描")
	cmd.Flags().StringSliceVar(&patterns, "pattern", nil, "文件基名 glob，可重复")
	cmd.Flags().StringSliceVar(&exclude, "exclude-dir", nil, "跳过的目录名，可重复")
	return cmd
}
