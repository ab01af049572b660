package rinex

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"cloud.google.com/go/civil"

	"rtkbatch/pkg/contract"
	"rtkbatch/pkg/gnsstime"
)

var (
	// 2.xx："GPS WEEK: 2086  DAY: 3"
	weekDayRe = regexp.MustCompile(`(?i)GPS\s*WEEK\W*(\d{1,4})\W+DAY\W*([0-6])\b`)
	// 3.xx："GPS WEEK/DAY: 20863"
	weekDayCompactRe = regexp.MustCompile(`(?i)GPS\s*WEEK\s*/\s*DAY\W*(\d{3,4})([0-6])\b`)
)

// Clock 提取精密钟差文件的日期。
type Clock struct{}

var _ contract.Extractor = Clock{}

// Extract 由 COMMENT 行中的 GPS 周/周内日换算日期；
// 缺少该注释时退回到第一条 AS/AR 数据记录的历元。空文件返回 ErrEmpty。
func (Clock) Extract(ctx context.Context, path string) ([]civil.Date, error) {
	f, sc, err := open(ctx, path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	h, err := readHeader(sc)
	if err != nil {
		return nil, err
	}
	if len(h.lines) == 0 && !h.complete {
		return nil, contract.Empty("rinex clk: empty file")
	}
	if h.version == "" {
		return nil, contract.Empty("rinex clk: version line not found")
	}
	if !h.supported() {
		return nil, contract.Unsupported("rinex", h.version)
	}
	re := weekDayRe
	if h.major() == "3" {
		re = weekDayCompactRe
	}
	for _, l := range h.lines {
		if !strings.Contains(l, labelComment) {
			continue
		}
		m := re.FindStringSubmatch(l)
		if m == nil {
			continue
		}
		week, _ := strconv.Atoi(m[1])
		dow, _ := strconv.Atoi(m[2])
		return []civil.Date{gnsstime.FromGPSWeek(week, dow)}, nil
	}
	if !h.complete {
		return nil, contract.Empty("rinex clk: end of header not found")
	}
	for sc.Scan() {
		fs := splitFields(sc.Text())
		if len(fs) < 5 || (fs[0] != "AS" && fs[0] != "AR") {
			continue
		}
		if d, ok := ymd(fs[2:5]); ok {
			return []civil.Date{d}, nil
		}
	}
	if err := sc.Err(); err != nil {
		return nil, contract.Unreadable(err)
	}
	return nil, contract.Empty("rinex clk: no epoch found")
}

func splitFields(s string) []string { return strings.Fields(s) }
