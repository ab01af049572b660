// Package erp 实现 IGS ERP（地球定向参数）文件的日期区间提取。
package erp

import (
	"bufio"
	"context"
	"os"
	"sort"
	"strconv"
	"strings"

	"cloud.google.com/go/civil"

	"rtkbatch/pkg/contract"
	"rtkbatch/pkg/gnsstime"
)

// SupportedVersion: 唯一支持的格式版本。
const SupportedVersion = "2"

// minMJD 过滤表头中的数字行（1900-01-01 之前的 MJD 视为非数据行）。
const minMJD = 15020

// Orientation 提取 ERP 文件覆盖的全部日期。
type Orientation struct{}

var _ contract.Extractor = Orientation{}

// Extract 要求首个非空行为 "version 2"；之后每个首列可解析为 MJD 的行贡献一天。
// 结果升序去重；空文件或缺少版本行返回 ErrEmpty。
func (Orientation) Extract(ctx context.Context, path string) ([]civil.Date, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, contract.Unreadable(err)
	}
	defer f.Close()
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 4096), 1024*1024)

	version := ""
	seen := map[civil.Date]struct{}{}
	for sc.Scan() {
		fs := strings.Fields(sc.Text())
		if len(fs) == 0 {
			continue
		}
		if version == "" {
			if !strings.EqualFold(fs[0], "version") || len(fs) < 2 {
				return nil, contract.Empty("erp: version header not found")
			}
			version = fs[1]
			if version != SupportedVersion {
				return nil, contract.Unsupported("erp", version)
			}
			continue
		}
		mjd, err := strconv.ParseFloat(fs[0], 64)
		if err != nil || mjd < minMJD {
			continue
		}
		seen[gnsstime.FromMJD(mjd)] = struct{}{}
	}
	if err := sc.Err(); err != nil {
		return nil, contract.Unreadable(err)
	}
	if version == "" {
		return nil, contract.Empty("erp: empty file")
	}
	if len(seen) == 0 {
		return nil, contract.Empty("erp: no data rows")
	}
	out := make([]civil.Date, 0, len(seen))
	for d := range seen {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out, nil
}
