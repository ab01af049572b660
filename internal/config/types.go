package config

import (
	"gopkg.in/yaml.v3"

	"rtkbatch/internal/runconf"
	"rtkbatch/pkg/contract"
)

// Config: 运行期只读配置（一次解析，运行期不变）。
// YAML 使用 snake_case；未知字段在解析期失败。
type Config struct {
	Inputs Inputs `yaml:"inputs"`
	// Recursive: 目录输入是否递归扫描。
	Recursive *bool `yaml:"recursive,omitempty"`
	// RequireAll: 某个类别的输入根展开后没有文件时报错；默认只告警并把该类别视为未提供。
	RequireAll *bool `yaml:"require_all,omitempty"`
	OutputDir string `yaml:"output_dir"`
	// ResultSuffix: 结果文件后缀；空则为 ".pos"。
	ResultSuffix string `yaml:"result_suffix"`
	Concurrency  int    `yaml:"concurrency"`
	// LaunchRate: 每分钟最多启动的求解器进程数；0 表示不限。
	LaunchRate int `yaml:"launch_rate"`
	// Interval: 求解器输出间隔（秒）；<=0 时不传 -ti。
	Interval float64 `yaml:"interval"`
	Verbose  *bool   `yaml:"verbose,omitempty"`
	Logging  Logging `yaml:"logging"`

	Solver  Solver    `yaml:"solver"`
	Scanner Component `yaml:"scanner"`
	Report  Report    `yaml:"report"`
}

// Inputs: 各类别的输入根（文件或目录）。
type Inputs struct {
	Rover []string `yaml:"rover"`
	Base  []string `yaml:"base"`
	Nav   []string `yaml:"nav"`
	SP3   []string `yaml:"sp3"`
	Clk   []string `yaml:"clk"`
	ERP   []string `yaml:"erp"`
}

// ByCategory 以类别为键返回非空输入根。
func (in Inputs) ByCategory() map[contract.Category][]string {
	out := make(map[contract.Category][]string)
	for c, roots := range map[contract.Category][]string{
		contract.Rover: in.Rover,
		contract.Base:  in.Base,
		contract.Nav:   in.Nav,
		contract.SP3:   in.SP3,
		contract.Clock: in.Clk,
		contract.ERP:   in.ERP,
	} {
		if len(roots) > 0 {
			out[c] = roots
		}
	}
	return out
}

// Set 设置类别 c 的输入根。
func (in *Inputs) Set(c contract.Category, roots []string) {
	switch c {
	case contract.Rover:
		in.Rover = roots
	case contract.Base:
		in.Base = roots
	case contract.Nav:
		in.Nav = roots
	case contract.SP3:
		in.SP3 = roots
	case contract.Clock:
		in.Clk = roots
	case contract.ERP:
		in.ERP = roots
	}
}

// Logging: 仅保留日志等级可配置；输出路径与轮转策略为固定默认。
type Logging struct {
	Level string `yaml:"level"`
}

// Solver: 外部求解器与运行配置来源。
type Solver struct {
	Binary string `yaml:"binary"`
	// ConfFile: 现有 key=value 配置文件；设置后忽略 Settings。
	ConfFile    string `yaml:"conf_file"`
	PreserveERP *bool  `yaml:"preserve_erp,omitempty"`
	// Settings: 覆盖到内置参数表之上的配置项（保持顺序）。
	Settings runconf.Settings `yaml:"settings,omitempty"`
	// Runner: 注册表中的实现名（exec|mock）。
	Runner  string    `yaml:"runner"`
	Options yaml.Node `yaml:"options,omitempty"`
}

// Component: 组件名与原样 YAML Options。
type Component struct {
	Name    string    `yaml:"name"`
	Options yaml.Node `yaml:"options,omitempty"`
}

// Report: 报告落盘位置；Path 为空时不落盘。
type Report struct {
	Path   string `yaml:"path"`
	Format string `yaml:"format"`
}

// On 返回可选布尔值（nil 视为 false）。
func On(p *bool) bool { return p != nil && *p }

// Bool 返回指向 v 的指针。
func Bool(v bool) *bool { return &v }
