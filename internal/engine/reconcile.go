package engine

import (
	"os"

	"rtkbatch/pkg/contract"
)

// Reconcile 按存在性将期望输出划分为 done / no_exists（保持输入顺序），
// 不完整组原样复制到 no_match。除存在性检查外不做 I/O，且从不失败。
func Reconcile(expected []string, partial []contract.PartialGroup) contract.Report {
	rep := contract.Report{
		Done:     []string{},
		NoExists: []string{},
		NoMatch:  append([]contract.PartialGroup{}, partial...),
	}
	for _, p := range expected {
		if exists(p) {
			rep.Done = append(rep.Done, p)
		} else {
			rep.NoExists = append(rep.NoExists, p)
		}
	}
	return rep
}

func exists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}
