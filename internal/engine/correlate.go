package engine

import (
	"context"
	"fmt"
	"sort"

	"cloud.google.com/go/civil"
	"golang.org/x/sync/errgroup"

	"rtkbatch/internal/diag"
	"rtkbatch/pkg/contract"
)

// Inputs: 每个类别的有序文件列表；仅非空列表视为“已提供”。
type Inputs map[contract.Category][]string

// Supplied 按规范顺序返回已提供的类别。
func (in Inputs) Supplied() []contract.Category {
	out := make([]contract.Category, 0, len(in))
	for _, c := range contract.Categories {
		if len(in[c]) > 0 {
			out = append(out, c)
		}
	}
	return out
}

// Correlation: 关联结果（单次运行私有，构建后只读）。
type Correlation struct {
	// Supplied: 必需类别集合（规范顺序）。
	Supplied []contract.Category
	// Groups: 完整日期组；Dates 为其升序键。
	Groups map[civil.Date]contract.Group
	Dates  []civil.Date
	// Partial: 不完整日期组（发现顺序）。
	Partial []contract.PartialGroup
	// Records: 成功提取的记录（输入顺序）。
	Records  []contract.FileDateRecord
	Skipped  []contract.SkippedFile
	Replaced []contract.Replacement
}

type job struct {
	cat  contract.Category
	path string
}

type outcome struct {
	dates []civil.Date
	err   error
}

// Correlate 对每个文件调用其类别的提取器，按类别基数策略归并到日期表，
// 再按“键集合等于已提供类别集合”划分完整/不完整组。
// 单文件提取失败只记录并跳过；仅在缺少提取器或 ctx 取消时返回错误。
func Correlate(ctx context.Context, ex map[contract.Category]contract.Extractor, in Inputs, concurrency int, logger *diag.Logger) (*Correlation, error) {
	supplied := in.Supplied()
	var jobs []job
	for _, c := range supplied {
		if ex[c] == nil {
			return nil, fmt.Errorf("%w: no extractor for category %s", contract.ErrInvalidInput, c)
		}
		for _, p := range in[c] {
			jobs = append(jobs, job{cat: c, path: p})
		}
	}

	// 提取可并发；结果按下标回填，归并严格按输入顺序进行
	results := make([]outcome, len(jobs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(concurrency, 1))
	for i, j := range jobs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			tm := logger.StartWith("extractor", "extract", j.path, string(j.cat))
			ds, err := ex[j.cat].Extract(gctx, j.path)
			if err == nil && len(ds) == 0 {
				err = contract.Empty("no date extracted")
			}
			if err == nil {
				tm.Finish("extract", int64(len(ds)))
				diag.IncOp("extractor", "extract", "success")
			}
			results[i] = outcome{dates: ds, err: err}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c := &Correlation{Supplied: supplied}
	t := newTable()
	for i, j := range jobs {
		r := results[i]
		if r.err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			code := diag.Classify(r.err)
			logger.WarnWithKV("extractor", string(code), "file skipped", j.path, string(j.cat), map[string]string{"reason": r.err.Error()})
			diag.IncOp("extractor", "extract", "skip")
			diag.IncError("extractor", string(code))
			c.Skipped = append(c.Skipped, contract.SkippedFile{
				Path: j.path, Category: j.cat, Outcome: contract.Outcome(r.err), Reason: r.err.Error(),
			})
			continue
		}
		rec := contract.FileDateRecord{Path: j.path, Category: j.cat, Dates: r.dates}
		c.Records = append(c.Records, rec)
		for _, rp := range t.insert(rec) {
			logger.WarnWithKV("correlator", "", "file replaced", rp.Current, string(rp.Category), map[string]string{
				"date": rp.Date.String(), "previous": rp.Previous,
			})
			c.Replaced = append(c.Replaced, rp)
		}
	}
	c.Groups, c.Dates, c.Partial = t.split(supplied)
	return c, nil
}

// table: 日期 → 类别 → 文件；order 记录日期的发现顺序。
type table struct {
	rows  map[civil.Date]map[contract.Category][]string
	order []civil.Date
}

func newTable() *table { return &table{rows: make(map[civil.Date]map[contract.Category][]string)} }

// insert 按策略写入记录，返回发生的覆盖。
func (t *table) insert(rec contract.FileDateRecord) []contract.Replacement {
	var out []contract.Replacement
	dates := rec.Dates
	if rec.Category.Policy() != contract.Interval && len(dates) > 1 {
		dates = dates[:1]
	}
	for _, d := range dates {
		row, ok := t.rows[d]
		if !ok {
			row = make(map[contract.Category][]string)
			t.rows[d] = row
			t.order = append(t.order, d)
		}
		switch rec.Category.Policy() {
		case contract.FanOut:
			row[rec.Category] = append(row[rec.Category], rec.Path)
		default:
			// 单例/区间：后到者覆盖
			if prev := row[rec.Category]; len(prev) > 0 && prev[0] != rec.Path {
				out = append(out, contract.Replacement{Date: d, Category: rec.Category, Previous: prev[0], Current: rec.Path})
			}
			row[rec.Category] = []string{rec.Path}
		}
	}
	return out
}

// split 按已提供类别集合划分完整与不完整组。
func (t *table) split(supplied []contract.Category) (map[civil.Date]contract.Group, []civil.Date, []contract.PartialGroup) {
	groups := make(map[civil.Date]contract.Group)
	var dates []civil.Date
	var partial []contract.PartialGroup
	for _, d := range t.order {
		row := t.rows[d]
		if complete(row, supplied) {
			groups[d] = contract.Group{Date: d, Files: row}
			dates = append(dates, d)
			continue
		}
		partial = append(partial, contract.PartialGroup{Date: d, Files: row})
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	return groups, dates, partial
}

// complete: 键集合与 supplied 完全相等（行内不会出现未提供的类别）。
func complete(row map[contract.Category][]string, supplied []contract.Category) bool {
	if len(row) != len(supplied) {
		return false
	}
	for _, c := range supplied {
		if len(row[c]) == 0 {
			return false
		}
	}
	return true
}
