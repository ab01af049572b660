package rinex

import (
	"context"
	"strings"

	"cloud.google.com/go/civil"

	"rtkbatch/pkg/contract"
)

// Nav 提取广播星历文件首条记录的日期。
type Nav struct{}

var _ contract.Extractor = Nav{}

// Extract 读取头部之后第一条数据记录的历元。
// 2.xx：列 [2:5][5:8][8:11]，两位年份；3.xx：列 [4:8][9:11][12:14]，四位年份。
func (Nav) Extract(ctx context.Context, path string) ([]civil.Date, error) {
	f, sc, err := open(ctx, path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	h, err := readHeader(sc)
	if err != nil {
		return nil, err
	}
	if !h.complete {
		return nil, contract.Empty("rinex nav: end of header not found")
	}
	if !h.supported() {
		return nil, contract.Unsupported("rinex", h.version)
	}
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		var fields []string
		if h.major() == "2" {
			fields = []string{cols(line, 2, 5), cols(line, 5, 8), cols(line, 8, 11)}
		} else {
			fields = []string{cols(line, 4, 8), cols(line, 9, 11), cols(line, 12, 14)}
		}
		d, ok := ymd(fields)
		if !ok {
			return nil, contract.Empty("rinex nav: malformed first record")
		}
		return []civil.Date{d}, nil
	}
	if err := sc.Err(); err != nil {
		return nil, contract.Unreadable(err)
	}
	return nil, contract.Empty("rinex nav: no data record")
}
