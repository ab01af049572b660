// Package sp3 实现 SP3 精密轨道文件的日期提取。
package sp3

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"cloud.google.com/go/civil"

	"rtkbatch/pkg/contract"
	"rtkbatch/pkg/gnsstime"
)

// Accepted: 唯一接受的子版本标记（首行前两个字符）。
const Accepted = "#c"

// Orbit 提取 SP3 文件首行中的起始日期。
type Orbit struct{}

var _ contract.Extractor = Orbit{}

// Extract 读取首行：[0:2] 为子版本标记，年/月/日位于 [3:7] [8:10] [11:13]。
// 空文件与非 #c 标记均为硬错误，消息回显读到的标记（可能为空）。
func (Orbit) Extract(ctx context.Context, path string) ([]civil.Date, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, contract.Unreadable(err)
	}
	defer f.Close()
	r := bufio.NewReader(f)
	line, err := r.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, contract.Unreadable(err)
	}
	line = strings.TrimRight(line, "\r\n")
	marker := line
	if len(marker) > 2 {
		marker = marker[:2]
	}
	if marker == "" {
		return nil, &contract.ExtractError{Kind: contract.ErrEmpty, Msg: "Unknown version sp3 ''"}
	}
	if marker != Accepted {
		return nil, contract.Unsupported("sp3", "'"+marker+"'")
	}
	y, ey := atoi(line, 3, 7)
	m, em := atoi(line, 8, 10)
	d, ed := atoi(line, 11, 13)
	if ey != nil || em != nil || ed != nil {
		return nil, contract.Empty("sp3: malformed start epoch")
	}
	date, ok := gnsstime.Date(y, m, d)
	if !ok {
		return nil, contract.Empty("sp3: invalid start epoch")
	}
	return []civil.Date{date}, nil
}

func atoi(line string, from, to int) (int, error) {
	if to > len(line) {
		return 0, fmt.Errorf("sp3: line too short")
	}
	return strconv.Atoi(strings.TrimSpace(line[from:to]))
}
