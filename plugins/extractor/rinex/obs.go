package rinex

import (
	"context"

	"cloud.google.com/go/civil"

	"rtkbatch/pkg/contract"
)

// Obs 提取观测文件（流动站/基准站）的首历元日期。
type Obs struct{}

var _ contract.Extractor = Obs{}

// Extract 扫描头部至 END OF HEADER，读取 TIME OF FIRST OBS 的年月日。
// 未找到头部结束标记或首历元行时返回 ErrEmpty；2.xx/3.xx 以外的版本返回 ErrUnsupportedRevision。
func (Obs) Extract(ctx context.Context, path string) ([]civil.Date, error) {
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
		return nil, contract.Empty("rinex obs: end of header not found")
	}
	if !h.supported() {
		return nil, contract.Unsupported("rinex", h.version)
	}
	line, ok := h.find(labelFirstObs)
	if !ok {
		return nil, contract.Empty("rinex obs: time of first obs not found")
	}
	d, ok := ymd(splitFields(cols(line, 0, 60)))
	if !ok {
		return nil, contract.Empty("rinex obs: malformed time of first obs")
	}
	return []civil.Date{d}, nil
}
