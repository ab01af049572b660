package config

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"rtkbatch/internal/diag"
	"rtkbatch/internal/runconf"
	"rtkbatch/pkg/contract"
	rfs "rtkbatch/plugins/reader/filesystem"
)

const basic = `
inputs:
  rover: [obs/rover]
  nav: [nav/brdc0010.20n]
recursive: true
output_dir: out
concurrency: 4
interval: 1
logging:
  level: debug
solver:
  binary: /opt/rtklib/rnx2rtkp
  runner: mock
  settings:
    pos1-elmask: "10"
    out-solformat: xyz
  options:
    check_inputs: true
scanner:
  options:
    patterns: ["*.??o"]
report:
  path: out/report.yaml
`

// UT-CFG-01: 解析完整配置
func TestLoadYAML(t *testing.T) {
	cfg, err := LoadYAML("", []byte(basic))
	require.NoError(t, err)
	assert.Equal(t, []string{"obs/rover"}, cfg.Inputs.Rover)
	assert.True(t, On(cfg.Recursive))
	assert.Equal(t, 4, cfg.Concurrency)
	assert.Equal(t, "mock", cfg.Solver.Runner)
	// 保持映射顺序
	require.Len(t, cfg.Solver.Settings, 2)
	assert.Equal(t, "pos1-elmask", cfg.Solver.Settings[0].Key)

	full := Merge(Defaults(), cfg)
	require.NoError(t, Validate(full))
	assert.Equal(t, ".pos", full.ResultSuffix)
}

// UT-CFG-02: ENV 覆盖部分字段
func TestEnvOverlay(t *testing.T) {
	env := []string{
		"RTKBATCH_INPUTS_ROVER=a,b",
		"RTKBATCH_INPUTS_CLK=c.clk",
		"RTKBATCH_INPUTS_QC=x",
		"RTKBATCH_CONCURRENCY=3",
		"RTKBATCH_VERBOSE=true",
		"RTKBATCH_REQUIRE_ALL=1",
		"RTKBATCH_INTERVAL=0.5",
		"RTKBATCH_SOLVER_RUNNER=mock",
		"RTKBATCH_OUTPUT_DIR=",
		"OTHER_CONCURRENCY=9",
	}
	over, err := EnvOverlay(env)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, over.Inputs.Rover)
	assert.Equal(t, []string{"c.clk"}, over.Inputs.Clk)
	assert.Equal(t, 3, over.Concurrency)
	assert.True(t, On(over.Verbose))
	assert.True(t, On(over.RequireAll))
	assert.Equal(t, 0.5, over.Interval)
	assert.Equal(t, "mock", over.Solver.Runner)
	assert.Empty(t, over.OutputDir)

	_, err = EnvOverlay([]string{"RTKBATCH_CONCURRENCY=many"})
	assert.ErrorIs(t, err, contract.ErrInvalidInput)
	_, err = EnvOverlay([]string{"RTKBATCH_RECURSIVE=maybe"})
	assert.ErrorIs(t, err, contract.ErrInvalidInput)
}

// UT-CFG-03: 含非法字段
func TestLoadYAMLUnknown(t *testing.T) {
	_, err := LoadYAML("", []byte("unknown: 1\n"))
	assert.ErrorIs(t, err, contract.ErrInvalidInput)
	_, err = LoadYAML("", []byte("solver:\n  settings:\n    a: [1]\n"))
	assert.Error(t, err)
	_, err = LoadYAML("", nil)
	assert.Error(t, err)
}

func TestMergeLayers(t *testing.T) {
	file := Config{Concurrency: 2, Recursive: Bool(true), Solver: Solver{Settings: runconf.Settings{{Key: "a", Value: "1"}, {Key: "b", Value: "2"}}}}
	cli := Config{Recursive: Bool(false), Solver: Solver{Settings: runconf.Settings{{Key: "b", Value: "3"}}}}
	out := Merge(Merge(Defaults(), file), cli)
	assert.Equal(t, 2, out.Concurrency)
	assert.False(t, On(out.Recursive), "显式 false 应覆盖")
	assert.Equal(t, runconf.Settings{{Key: "a", Value: "1"}, {Key: "b", Value: "3"}}, out.Solver.Settings)
	assert.Equal(t, "rnx2rtkp", out.Solver.Binary)
	// 输入按类别整体替换
	out = Merge(Config{Inputs: Inputs{Rover: []string{"x"}, Nav: []string{"n"}}}, Config{Inputs: Inputs{Rover: []string{"y"}}})
	assert.Equal(t, Inputs{Rover: []string{"y"}, Nav: []string{"n"}}, out.Inputs)
}

func TestResolvePath(t *testing.T) {
	assert.Equal(t, "x.yaml", ResolvePath("x.yaml", nil))
	assert.Equal(t, "env.yaml", ResolvePath("", []string{"RTKBATCH_CONFIG_FILE=env.yaml"}))
	t.Chdir(t.TempDir())
	assert.Equal(t, "", ResolvePath("", nil))
	require.NoError(t, os.WriteFile(DefaultFile, []byte("concurrency: 2\n"), 0o644))
	assert.Equal(t, DefaultFile, ResolvePath("", nil))
}

// 补充覆盖: Validate 错误分支
func TestValidateErrors(t *testing.T) {
	if err := Validate(Config{}); !errors.Is(err, contract.ErrInvalidInput) {
		t.Fatal("空配置应失败")
	}
	cases := map[string]func(*Config){
		"empty-root":  func(c *Config) { c.Inputs.Nav = []string{" "} },
		"no-out":      func(c *Config) { c.OutputDir = "" },
		"conc":        func(c *Config) { c.Concurrency = 0 },
		"rate":        func(c *Config) { c.LaunchRate = -1 },
		"suffix":      func(c *Config) { c.ResultSuffix = "/x" },
		"binary":      func(c *Config) { c.Solver.Binary = "" },
		"runner":      func(c *Config) { c.Solver.Runner = "ssh" },
		"scanner":     func(c *Config) { c.Scanner.Name = "s3" },
		"report-kind": func(c *Config) { c.Report.Format = "xml" },
	}
	for name, mut := range cases {
		cfg := DefaultTemplateConfig()
		mut(&cfg)
		if err := Validate(cfg); !errors.Is(err, contract.ErrInvalidInput) {
			t.Fatalf("%s: 期望 ErrInvalidInput, got %v", name, err)
		}
	}
}

// 模板可回读并通过校验
func TestTemplateRoundTrip(t *testing.T) {
	b, err := TemplateYAML()
	require.NoError(t, err)
	cfg, err := LoadYAML("", b)
	require.NoError(t, err)
	require.NoError(t, Validate(cfg))
	assert.Equal(t, DefaultTemplateConfig().Inputs, cfg.Inputs)
	assert.Equal(t, "mock", cfg.Solver.Runner)
	assert.True(t, strings.Contains(EnvTemplate, "RTKBATCH_"))
}

func writeFiles(t *testing.T, dir string, names ...string) {
	t.Helper()
	for _, n := range names {
		p := filepath.Join(dir, n)
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte("x"), 0o644))
	}
}

func TestAssemble(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, "rover/a.20o", "rover/b.20o", "rover/sub/c.20o", "rover/notes.txt", "nav/brdc0010.20n")
	out := filepath.Join(root, "out")
	require.NoError(t, os.Mkdir(out, 0o755))

	cfg, err := LoadYAML("", []byte(basic))
	require.NoError(t, err)
	cfg = Merge(Defaults(), cfg)
	cfg.Inputs.Rover = []string{filepath.Join(root, "rover")}
	cfg.Inputs.Nav = []string{filepath.Join(root, "nav", "brdc0010.20n")}
	cfg.OutputDir = out

	comp, set, err := Assemble(context.Background(), cfg, diag.Nop())
	require.NoError(t, err)
	assert.NotNil(t, comp.Runner)
	assert.Len(t, comp.Extractors, len(contract.Categories))
	// 递归：先子目录后文件；pattern 过滤 notes.txt
	assert.Equal(t, []string{
		filepath.Join(root, "rover", "sub", "c.20o"),
		filepath.Join(root, "rover", "a.20o"),
		filepath.Join(root, "rover", "b.20o"),
	}, set.Inputs[contract.Rover])
	assert.Equal(t, 4, set.Concurrency)
	assert.Equal(t, 1.0, set.Interval)

	data, err := runconf.Assemble(set.Source, "e.erp")
	require.NoError(t, err)
	s := string(data)
	assert.Contains(t, s, "pos1-elmask=10\n")
	assert.Contains(t, s, "out-solformat=xyz\n")
	assert.Contains(t, s, runconf.ERPKey+"=e.erp\n")
}

// UT-CFG-09: 展开为空的类别视为未提供并告警；require_all 时为输入错误
func TestAssembleEmptyCategory(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, "rover/a.20o")
	require.NoError(t, os.Mkdir(filepath.Join(root, "base"), 0o755))
	cfg := Defaults()
	cfg.Inputs = Inputs{Rover: []string{filepath.Join(root, "rover")}, Base: []string{filepath.Join(root, "base")}}
	cfg.OutputDir = root

	var logs bytes.Buffer
	logger := diag.NewLoggerTo("t", "info", zapcore.AddSync(&logs))
	_, set, err := Assemble(context.Background(), cfg, logger)
	require.NoError(t, err)
	assert.Equal(t, []contract.Category{contract.Rover}, set.Inputs.Supplied())
	assert.Contains(t, logs.String(), `"category":"base"`)
	assert.Contains(t, logs.String(), `"stage":"warn"`)

	cfg.RequireAll = Bool(true)
	_, _, err = Assemble(context.Background(), cfg, diag.Nop())
	assert.ErrorIs(t, err, contract.ErrInvalidInput)
	assert.Contains(t, err.Error(), "inputs.base")
}

func TestExpandInputsEmpty(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, "rover/a.20o", "nav/brdc0010.20n")
	require.NoError(t, os.Mkdir(filepath.Join(root, "clk"), 0o755))
	require.NoError(t, os.Mkdir(filepath.Join(root, "base"), 0o755))
	sc, err := rfs.New(nil)
	require.NoError(t, err)
	in := Inputs{
		Rover: []string{filepath.Join(root, "rover")},
		Base:  []string{filepath.Join(root, "base")},
		Nav:   []string{filepath.Join(root, "nav")},
		Clk:   []string{filepath.Join(root, "clk")},
	}
	got, empty, err := ExpandInputs(context.Background(), sc, in, false)
	require.NoError(t, err)
	assert.Equal(t, []contract.Category{contract.Base, contract.Clock}, empty)
	assert.Equal(t, []contract.Category{contract.Rover, contract.Nav}, got.Supplied())
}

func TestAssembleConfFile(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, "a.20o")
	conf := filepath.Join(root, "rtk.conf")
	require.NoError(t, os.WriteFile(conf, []byte("pos1-posmode=static\nfile-eopfile=keep.erp\n"), 0o644))

	cfg := Defaults()
	cfg.Inputs.Rover = []string{filepath.Join(root, "a.20o")}
	cfg.OutputDir = root
	cfg.Solver.ConfFile = conf
	cfg.Solver.PreserveERP = Bool(true)
	_, set, err := Assemble(context.Background(), cfg, diag.Nop())
	require.NoError(t, err)
	data, err := runconf.Assemble(set.Source, "new.erp")
	require.NoError(t, err)
	assert.Contains(t, string(data), "file-eopfile=keep.erp")
	assert.NotContains(t, string(data), "new.erp")

	cfg.Solver.ConfFile = filepath.Join(root, "missing.conf")
	_, _, err = Assemble(context.Background(), cfg, diag.Nop())
	assert.ErrorIs(t, err, contract.ErrInvalidInput)
}

func TestReportSink(t *testing.T) {
	w, id, f, err := ReportSink(Config{})
	require.NoError(t, err)
	assert.Nil(t, w)

	dir := filepath.Join(t.TempDir(), "reports")
	w, id, f, err = ReportSink(Config{Report: Report{Path: filepath.Join(dir, "run.yml")}})
	require.NoError(t, err)
	require.NotNil(t, w)
	assert.Equal(t, contract.ArtifactID("run.yml"), id)
	assert.EqualValues(t, "yaml", f)
	assert.DirExists(t, dir)
}
