package config

import (
	"bytes"

	"gopkg.in/yaml.v3"

	"rtkbatch/internal/runconf"
)

// DefaultTemplateConfig 返回一个“可运行”的默认配置模板：
// - 使用 mock 求解器（本地/离线演练友好），切换到真实求解器时改为 exec；
// - 输入按类别给出示例目录，输出到 ./out；
// - 选项给出安全中性默认值。
func DefaultTemplateConfig() Config {
	d := Defaults()
	cfg := d
	cfg.Inputs = Inputs{
		Rover: []string{"data/rover"},
		Base:  []string{"data/base"},
		Nav:   []string{"data/nav"},
		SP3:   []string{"data/sp3"},
		Clk:   []string{"data/clk"},
		ERP:   []string{"data/erp"},
	}
	cfg.Recursive = Bool(false)
	cfg.OutputDir = "out"
	cfg.Interval = 30
	cfg.Verbose = Bool(false)
	cfg.Solver.Runner = "mock"
	cfg.Solver.PreserveERP = Bool(false)
	cfg.Solver.Settings = runconf.Settings{
		{Key: "pos1-posmode", Value: "kinematic"},
		{Key: "pos1-elmask", Value: "15"},
	}
	cfg.Solver.Options = mustNode(`{content: "", skip: [], fail_every: 0, exit_code: 0, delay: 0s, check_inputs: true}`)
	cfg.Scanner.Options = mustNode(`{exclude_dir_names: [.git, rejected], patterns: [], hidden: false}`)
	cfg.Report = Report{Path: "out/report.json", Format: "json"}
	return cfg
}

// TemplateYAML 渲染默认模板（缩进 2）。
func TemplateYAML() ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(DefaultTemplateConfig()); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// EnvTemplate: .env 模板；覆盖 YAML 中的同名项，CLI 参数优先于两者。
const EnvTemplate = `# rtkbatch environment overrides (RTKBATCH_*)
# RTKBATCH_CONFIG_FILE=rtkbatch.yaml
# RTKBATCH_INPUTS_ROVER=data/rover
# RTKBATCH_INPUTS_NAV=data/nav
# RTKBATCH_OUTPUT_DIR=out
# RTKBATCH_CONCURRENCY=4
# RTKBATCH_LAUNCH_RATE=0
# RTKBATCH_INTERVAL=30
# RTKBATCH_SOLVER_BINARY=rnx2rtkp
# RTKBATCH_SOLVER_RUNNER=exec
# RTKBATCH_LOG_LEVEL=info
`

func mustNode(src string) yaml.Node {
	var doc yaml.Node
	if err := yaml.Unmarshal([]byte(src), &doc); err != nil {
		panic(err)
	}
	return *doc.Content[0]
}
