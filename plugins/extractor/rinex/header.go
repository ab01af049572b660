// Package rinex 实现 RINEX 观测、导航与钟差文件的日期提取。
package rinex

import (
	"bufio"
	"context"
	"os"
	"strconv"
	"strings"

	"cloud.google.com/go/civil"

	"rtkbatch/pkg/contract"
	"rtkbatch/pkg/gnsstime"
)

const (
	labelVersion   = "RINEX VERSION / TYPE"
	labelEnd       = "END OF HEADER"
	labelFirstObs  = "TIME OF FIRST OBS"
	labelComment   = "COMMENT"
	maxHeaderLines = 2000
)

// header: 已扫描的头部（不含 END OF HEADER 行）。
type header struct {
	version string
	lines   []string
	// complete: 是否遇到 END OF HEADER。
	complete bool
}

// major 返回版本号主版本（"3.04" → "3"）。
func (h header) major() string {
	v := h.version
	if i := strings.IndexByte(v, '.'); i >= 0 {
		v = v[:i]
	}
	return v
}

// supported: 仅接受 2.xx 与 3.xx 两个修订族。
func (h header) supported() bool {
	m := h.major()
	return m == "2" || m == "3"
}

// find 返回第一条带标签的头部行。
func (h header) find(label string) (string, bool) {
	for _, l := range h.lines {
		if strings.Contains(l, label) {
			return l, true
		}
	}
	return "", false
}

// open 打开文件；失败统一包装为 ErrUnreadable。
func open(ctx context.Context, path string) (*os.File, *bufio.Scanner, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, contract.Unreadable(err)
	}
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 4096), 1024*1024)
	return f, sc, nil
}

// readHeader 逐行扫描直到 END OF HEADER（或文件结束）。
func readHeader(sc *bufio.Scanner) (header, error) {
	var h header
	for n := 0; sc.Scan() && n < maxHeaderLines; n++ {
		line := strings.TrimRight(sc.Text(), "\r")
		if strings.Contains(line, labelEnd) {
			h.complete = true
			break
		}
		if h.version == "" && strings.Contains(line, labelVersion) {
			if fs := strings.Fields(line); len(fs) > 0 {
				h.version = fs[0]
			}
		}
		h.lines = append(h.lines, line)
	}
	if err := sc.Err(); err != nil {
		return h, contract.Unreadable(err)
	}
	return h, nil
}

// ymd 解析前三个整数字段为日期；年份按两位年规则展开。
func ymd(fields []string) (civil.Date, bool) {
	if len(fields) < 3 {
		return civil.Date{}, false
	}
	var v [3]int
	for i := 0; i < 3; i++ {
		n, err := strconv.Atoi(strings.TrimSpace(fields[i]))
		if err != nil {
			return civil.Date{}, false
		}
		v[i] = n
	}
	return gnsstime.Date(gnsstime.PivotYear(v[0]), v[1], v[2])
}

// cols 截取定长列；越界部分返回空串。
func cols(line string, from, to int) string {
	if from >= len(line) {
		return ""
	}
	if to > len(line) {
		to = len(line)
	}
	return line[from:to]
}
