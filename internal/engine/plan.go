package engine

import (
	"strconv"

	"rtkbatch/pkg/contract"
)

// DefaultSuffix: 期望输出文件的默认后缀。
const DefaultSuffix = ".pos"

// Plan 为每个完整组生成分发单元：按日期升序，组内按 fan-out 文件的输入顺序。
// fan-out 类别未提供时每组一个单元，以规范顺序中第一个文件的基名命名输出。
// 期望输出与已规划单元重复的单元不分发，作为冲突返回；因此返回的单元输出两两不同。
func Plan(c *Correlation, outDir, suffix string) ([]contract.DispatchUnit, []contract.Collision) {
	units := plan(c, outDir, suffix)
	owner := make(map[string]string, len(units))
	kept := units[:0]
	var collisions []contract.Collision
	for _, u := range units {
		key := contract.PathKey(u.Output)
		if first, dup := owner[key]; dup {
			collisions = append(collisions, contract.Collision{Date: u.Date, Input: u.Inputs[0], Output: u.Output, Kept: first})
			continue
		}
		owner[key] = u.Inputs[0]
		kept = append(kept, u)
	}
	return kept, collisions
}

func plan(c *Correlation, outDir, suffix string) []contract.DispatchUnit {
	if suffix == "" {
		suffix = DefaultSuffix
	}
	var units []contract.DispatchUnit
	for _, d := range c.Dates {
		g := c.Groups[d]
		var shared []string
		for _, cat := range contract.Categories {
			if cat.Policy() == contract.Singleton && g.First(cat) != "" {
				shared = append(shared, g.First(cat))
			}
		}
		erp := g.First(contract.ERP)

		primaries := g.Files[contract.Rover]
		if len(primaries) == 0 {
			// 无 fan-out 文件：单次运行
			inputs := append([]string(nil), shared...)
			if erp != "" {
				inputs = append(inputs, erp)
			}
			name := shared
			if len(name) == 0 {
				name = []string{erp}
			}
			units = append(units, contract.DispatchUnit{
				Date: d, Inputs: inputs, ERP: erp, Output: contract.OutputPath(outDir, name[0], suffix),
			})
			continue
		}
		for i, p := range primaries {
			inputs := make([]string, 0, len(shared)+2)
			inputs = append(inputs, p)
			inputs = append(inputs, shared...)
			if erp != "" {
				inputs = append(inputs, erp)
			}
			units = append(units, contract.DispatchUnit{
				Date: d, Index: i, Inputs: inputs, ERP: erp, Output: contract.OutputPath(outDir, p, suffix),
			})
		}
	}
	return units
}

// Argv 生成求解器命令行：
// [binary, -ti <interval>, -k <conf>, inputs..., -o <output>]；interval<=0 时省略 -ti 及其值。
func Argv(binary string, interval float64, conf string, u contract.DispatchUnit) []string {
	argv := make([]string, 0, len(u.Inputs)+7)
	argv = append(argv, binary)
	if interval > 0 {
		argv = append(argv, "-ti", strconv.FormatFloat(interval, 'f', -1, 64))
	}
	argv = append(argv, "-k", conf)
	argv = append(argv, u.Inputs...)
	return append(argv, "-o", u.Output)
}

// Expected 返回单元的期望输出路径（保持单元顺序）。
func Expected(units []contract.DispatchUnit) []string {
	out := make([]string, len(units))
	for i, u := range units {
		out[i] = u.Output
	}
	return out
}
