package contract

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"cloud.google.com/go/civil"
)

// TestPathKey 验证去重键的规范化。
func TestPathKey(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"Windows路径", "C:\\data\\obs\\rover001.20o", "C:/data/obs/rover001.20o"},
		{"清理多余斜杠", "data//obs///base.20o", "data/obs/base.20o"},
		{"处理父目录", "data/obs/../nav/brdc0010.20n", "data/nav/brdc0010.20n"},
		{"单个点", ".", "."},
		{"空串", "", "."},
		{"混合分隔符", "C:\\gnss/obs\\a.obs", "C:/gnss/obs/a.obs"},
		{"Unix绝对路径", "/srv/gnss/../igs/igs20863.sp3", "/srv/igs/igs20863.sp3"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := PathKey(tt.input); got != tt.expected {
				t.Errorf("PathKey(%q) = %q, expected %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestOutputPath(t *testing.T) {
	got := OutputPath("out", "data/rover/rov10010.20o", ".pos")
	if want := filepath.Join("out", "rov10010.20o.pos"); got != want {
		t.Fatalf("OutputPath = %q, 期望 %q", got, want)
	}
}

func TestCategoryPolicy(t *testing.T) {
	want := map[Category]Policy{
		Rover: FanOut,
		Base:  Singleton,
		Nav:   Singleton,
		SP3:   Singleton,
		Clock: Singleton,
		ERP:   Interval,
	}
	for c, p := range want {
		if c.Policy() != p {
			t.Fatalf("%s 策略期望 %s 实得 %s", c, p, c.Policy())
		}
	}
	if Category("qc").Valid() {
		t.Fatalf("未知类别不应有效")
	}
}

func TestParseCategory(t *testing.T) {
	c, err := ParseCategory(" CLK ")
	if err != nil || c != Clock {
		t.Fatalf("解析失败: %v %q", err, c)
	}
	if _, err := ParseCategory("obs"); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("未知类别应返回 ErrInvalidInput, got %v", err)
	}
}

func TestGroupCategoriesCanonicalOrder(t *testing.T) {
	g := Group{
		Date: civil.Date{Year: 2020, Month: 1, Day: 1},
		Files: map[Category][]string{
			ERP:   {"e"},
			Rover: {"r1", "r2"},
			Nav:   {"n"},
			Base:  nil,
		},
	}
	got := g.Categories()
	want := []Category{Rover, Nav, ERP}
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Fatalf("顺序错误: %v", got)
	}
	if g.First(Rover) != "r1" || g.First(SP3) != "" {
		t.Fatalf("First 结果错误")
	}
}

func TestExtractErrorOutcome(t *testing.T) {
	err := Unsupported("rinex", "4.00")
	if err.Error() != "Unknown version rinex 4.00" {
		t.Fatalf("消息错误: %q", err.Error())
	}
	if !errors.Is(err, ErrUnsupportedRevision) || Outcome(err) != "unsupported" {
		t.Fatalf("分类错误: %v", Outcome(err))
	}
	wrapped := fmt.Errorf("extract %s: %w", "x.clk", Empty("no marker"))
	if Outcome(wrapped) != "empty" {
		t.Fatalf("包装后分类错误: %v", Outcome(wrapped))
	}
	ioErr := Unreadable(&os.PathError{Op: "open", Path: "x", Err: os.ErrNotExist})
	if !errors.Is(ioErr, os.ErrNotExist) || Outcome(ioErr) != "unreadable" {
		t.Fatalf("unreadable 应保留原因")
	}
	if Outcome(nil) != "ok" || Outcome(errors.New("x")) != "error" {
		t.Fatalf("边界分类错误")
	}
}

func TestReportComplete(t *testing.T) {
	if !(Report{Done: []string{"a"}}).Complete() {
		t.Fatalf("仅 done 应视为完整")
	}
	if (Report{NoExists: []string{"a"}}).Complete() {
		t.Fatalf("no_exists 非空不应完整")
	}
	if (Report{NoMatch: []PartialGroup{{}}}).Complete() {
		t.Fatalf("no_match 非空不应完整")
	}
	if (Report{Done: []string{"a"}, Collisions: []Collision{{Output: "a"}}}).Complete() {
		t.Fatalf("存在输出冲突不应完整")
	}
}
