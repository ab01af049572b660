package contract

import (
	"fmt"
	"strings"

	"cloud.google.com/go/civil"
)

// Category: 输入文件类别（固定集合）。
type Category string

const (
	Rover Category = "rover" // 流动站观测（主观测，fan-out）
	Base  Category = "base"  // 基准站观测（次观测）
	Nav   Category = "nav"   // 广播星历
	SP3   Category = "sp3"   // 精密轨道
	Clock Category = "clk"   // 精密钟差
	ERP   Category = "erp"   // 地球定向参数（区间）
)

// Categories 为规范顺序；分发时输入文件按此顺序排列。
var Categories = []Category{Rover, Base, Nav, SP3, Clock, ERP}

// Policy: 同一日期下的基数策略。
type Policy int

const (
	// FanOut: 同一日期可有多份文件，按输入顺序保留，每份产生一次分发。
	FanOut Policy = iota
	// Singleton: 同一日期仅一份；后到者覆盖先到者（覆盖会记入报告）。
	Singleton
	// Interval: 单个文件覆盖一段连续日期，登记到其覆盖的每一天。
	Interval
)

func (p Policy) String() string {
	switch p {
	case FanOut:
		return "fan-out"
	case Singleton:
		return "singleton"
	case Interval:
		return "interval"
	default:
		return "unknown"
	}
}

// Policy 返回类别对应的基数策略。
func (c Category) Policy() Policy {
	switch c {
	case Rover:
		return FanOut
	case ERP:
		return Interval
	default:
		return Singleton
	}
}

// Valid 报告 c 是否属于固定类别集合。
func (c Category) Valid() bool {
	for _, k := range Categories {
		if k == c {
			return true
		}
	}
	return false
}

// ParseCategory 解析类别名（大小写不敏感）。
func ParseCategory(s string) (Category, error) {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	if !c.Valid() {
		return "", fmt.Errorf("%w: unknown category %q", ErrInvalidInput, s)
	}
	return c, nil
}

// FileDateRecord: 单个文件的日期提取结果（创建后只读）。
// Dates 非空且升序；非区间类别仅含一个日期。
type FileDateRecord struct {
	Path     string
	Category Category
	Dates    []civil.Date
}

// Group: 以日历日期为键的关联组。
// 单例/区间类别恰有一个路径；fan-out 类别为有序列表。
type Group struct {
	Date  civil.Date
	Files map[Category][]string
}

// Categories 按规范顺序返回组内出现的类别。
func (g Group) Categories() []Category {
	out := make([]Category, 0, len(g.Files))
	for _, c := range Categories {
		if len(g.Files[c]) > 0 {
			out = append(out, c)
		}
	}
	return out
}

// First 返回类别 c 的第一个文件；不存在时返回空串。
func (g Group) First(c Category) string {
	if fs := g.Files[c]; len(fs) > 0 {
		return fs[0]
	}
	return ""
}

// PartialGroup: 未凑齐所有已提供类别的日期组（no_match 诊断）。
type PartialGroup struct {
	Date  civil.Date            `json:"date" yaml:"date"`
	Files map[Category][]string `json:"files" yaml:"files"`
}

// DispatchUnit: 一次外部求解器调用。
type DispatchUnit struct {
	Date civil.Date
	// Index: fan-out 文件在组内的序号。
	Index int
	// Inputs: fan-out 文件、单例类别（规范顺序）、区间文件（若有）。
	Inputs []string
	// ERP: 组内的区间文件路径；为空表示无。
	ERP string
	// Output: 期望输出路径 = 输出目录 + fan-out 文件基名 + 结果后缀。
	Output string
}

// SkippedFile: 日期提取失败而被跳过的文件。
type SkippedFile struct {
	Path     string   `json:"path" yaml:"path"`
	Category Category `json:"category" yaml:"category"`
	Outcome  string   `json:"outcome" yaml:"outcome"`
	Reason   string   `json:"reason" yaml:"reason"`
}

// Replacement: 单例（或区间）类别在同一日期上发生的“后到覆盖”。
type Replacement struct {
	Date     civil.Date `json:"date" yaml:"date"`
	Category Category   `json:"category" yaml:"category"`
	Previous string     `json:"previous" yaml:"previous"`
	Current  string     `json:"current" yaml:"current"`
}

// Collision: 两个 fan-out 文件映射到同一期望输出（基名相同）。
// 后出现的单元不分发，Kept 为占用该输出的先行输入。
type Collision struct {
	Date   civil.Date `json:"date" yaml:"date"`
	Input  string     `json:"input" yaml:"input"`
	Output string     `json:"output" yaml:"output"`
	Kept   string     `json:"kept" yaml:"kept"`
}

// Report: 每次运行唯一的结果；Run 返回后不再修改。
type Report struct {
	Done       []string       `json:"done" yaml:"done"`
	NoExists   []string       `json:"no_exists" yaml:"no_exists"`
	NoMatch    []PartialGroup `json:"no_match" yaml:"no_match"`
	Skipped    []SkippedFile  `json:"skipped,omitempty" yaml:"skipped,omitempty"`
	Replaced   []Replacement  `json:"replaced,omitempty" yaml:"replaced,omitempty"`
	Collisions []Collision    `json:"collisions,omitempty" yaml:"collisions,omitempty"`
}

// Complete 报告是否所有期望输出均已产生、无未匹配组且无输出冲突。
func (r Report) Complete() bool {
	return len(r.NoExists) == 0 && len(r.NoMatch) == 0 && len(r.Collisions) == 0
}
