package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cfgpkg "rtkbatch/internal/config"
	"rtkbatch/internal/diag"
	"rtkbatch/pkg/contract"
)

// fixtures 返回 testdata/gnss 的绝对路径，并切换到临时工作目录（日志写入 logs/）。
func fixtures(t *testing.T) string {
	t.Helper()
	root, err := filepath.Abs(filepath.Join("..", "..", "testdata", "gnss"))
	require.NoError(t, err)
	t.Chdir(t.TempDir())
	return root
}

func cli(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := execute(context.Background(), args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestInitConfig(t *testing.T) {
	t.Chdir(t.TempDir())
	dir := filepath.Join("conf", "sub")
	code, out, _ := cli(t, "init-config", dir)
	require.Equal(t, exitOK, code)
	assert.Contains(t, out, cfgpkg.DefaultFile)

	cfgPath := filepath.Join(dir, cfgpkg.DefaultFile)
	_, err := cfgpkg.LoadYAML(cfgPath, nil)
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(dir, ".env"))

	// 已存在时不覆盖
	require.NoError(t, os.WriteFile(cfgPath, []byte("concurrency: 9\n"), 0o644))
	code, _, _ = cli(t, "init-config", dir)
	require.Equal(t, exitOK, code)
	b, _ := os.ReadFile(cfgPath)
	assert.Equal(t, "concurrency: 9\n", string(b))
}

// UT-CLI-01: 完整运行，报告落盘，含 no_match 时退出码为 2
func TestRunIncomplete(t *testing.T) {
	root := fixtures(t)
	out := t.TempDir()
	report := filepath.Join(out, "reports", "report.json")
	metrics := filepath.Join(out, "metrics.prom")
	code, _, stderr := cli(t, "run",
		"--rover", filepath.Join(root, "rover"),
		"--base", filepath.Join(root, "base"),
		"--nav", filepath.Join(root, "nav"),
		"--sp3", filepath.Join(root, "sp3"),
		"--clk", filepath.Join(root, "clk", "igs20863.clk"),
		"--erp", filepath.Join(root, "erp"),
		"--out", out,
		"--conf", filepath.Join(root, "rtk.conf"),
		"--runner", "mock",
		"--interval", "30",
		"-j", "2",
		"--report", report,
		"--metrics-file", metrics,
		"--status=false",
	)
	require.Equal(t, exitIncomplete, code, stderr)

	b, err := os.ReadFile(report)
	require.NoError(t, err)
	var rep contract.Report
	require.NoError(t, json.Unmarshal(b, &rep))
	assert.Equal(t, []string{filepath.Join(out, "rov10010.20o.pos"), filepath.Join(out, "rov20010.20o.pos")}, rep.Done)
	assert.Empty(t, rep.NoExists)
	require.Len(t, rep.NoMatch, 1)
	assert.Equal(t, "2020-01-02", rep.NoMatch[0].Date.String())
	assert.Len(t, rep.NoMatch[0].Files[contract.Rover], 1)
	// 区间文件在报告中是单个路径
	assert.Contains(t, string(b), `"erp": "`+filepath.Join(root, "erp", "igs20867.erp")+`"`)

	m, err := os.ReadFile(metrics)
	require.NoError(t, err)
	assert.Contains(t, string(m), "rtkbatch_op_total")
	assert.DirExists(t, "logs")
}

// 全部产出：退出码 0，报告打印到标准输出
func TestRunComplete(t *testing.T) {
	root := fixtures(t)
	out := t.TempDir()
	code, stdout, stderr := cli(t, "run",
		"--rover", filepath.Join(root, "rover", "rov10010.20o"),
		"--nav", filepath.Join(root, "nav", "brdc0010.20n"),
		"--out", out, "--runner", "mock", "--status=false",
		"--report-format", "yaml",
	)
	require.Equal(t, exitOK, code, stderr)
	assert.Contains(t, stdout, "done:")
	assert.Contains(t, stdout, "rov10010.20o.pos")
	assert.FileExists(t, filepath.Join(out, "rov10010.20o.pos"))
}

// 空目录类别不参与完整性判定：只给 rover/nav 即可完成
func TestRunEmptyCategoryNotRequired(t *testing.T) {
	root := fixtures(t)
	out := t.TempDir()
	emptyBase := t.TempDir()
	code, stdout, stderr := cli(t, "run",
		"--rover", filepath.Join(root, "rover", "rov10010.20o"),
		"--base", emptyBase,
		"--nav", filepath.Join(root, "nav", "brdc0010.20n"),
		"--out", out, "--runner", "mock", "--status=false",
	)
	require.Equal(t, exitOK, code, stderr)
	var rep contract.Report
	require.NoError(t, json.Unmarshal([]byte(stdout), &rep))
	assert.Equal(t, []string{filepath.Join(out, "rov10010.20o.pos")}, rep.Done)
	assert.Empty(t, rep.NoMatch)

	b, err := os.ReadFile(filepath.Join("logs", "rtkbatch.log"))
	require.NoError(t, err)
	assert.Contains(t, string(b), emptyBase)
}

// verbose 且报告打印到 stdout 时，求解器输出改走 stderr
func TestRunVerboseKeepsStdoutForReport(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("需要 /bin/sh")
	}
	root := fixtures(t)
	out := t.TempDir()
	solver := filepath.Join(t.TempDir(), "fake-rnx2rtkp")
	script := "#!/bin/sh\necho solver-says-hi\nwhile [ $# -gt 0 ]; do\n  if [ \"$1\" = \"-o\" ]; then shift; : > \"$1\"; fi\n  shift\ndone\n"
	require.NoError(t, os.WriteFile(solver, []byte(script), 0o755))

	code, stdout, stderr := cli(t, "run",
		"--rover", filepath.Join(root, "rover", "rov10010.20o"),
		"--nav", filepath.Join(root, "nav", "brdc0010.20n"),
		"--out", out, "--runner", "exec", "--binary", solver, "-v", "--status=false",
	)
	require.Equal(t, exitOK, code, stderr)
	var rep contract.Report
	require.NoError(t, json.Unmarshal([]byte(stdout), &rep), stdout)
	assert.Equal(t, []string{filepath.Join(out, "rov10010.20o.pos")}, rep.Done)
	assert.Contains(t, stderr, "solver-says-hi")
}

// 配置文件 + ENV + CLI 分层
func TestRunLayeredConfig(t *testing.T) {
	root := fixtures(t)
	out := t.TempDir()
	yml := "inputs:\n  rover: [" + filepath.Join(root, "rover", "rov10010.20o") + "]\n" +
		"output_dir: /nonexistent\n" +
		"solver:\n  runner: exec\n  binary: /nonexistent/rnx2rtkp\n"
	require.NoError(t, os.WriteFile("custom.yaml", []byte(yml), 0o644))
	t.Setenv("RTKBATCH_CONFIG_FILE", "custom.yaml")
	t.Setenv("RTKBATCH_SOLVER_RUNNER", "mock")
	t.Setenv("RTKBATCH_INPUTS_NAV", filepath.Join(root, "nav", "brdc0010.20n"))
	code, _, stderr := cli(t, "run", "--out", out, "--status=false")
	require.Equal(t, exitOK, code, stderr)
	assert.FileExists(t, filepath.Join(out, "rov10010.20o.pos"))
}

// UT-CLI-02: 配置/输入错误退出码为 3
func TestRunConfigErrors(t *testing.T) {
	root := fixtures(t)
	cases := map[string][]string{
		"no-inputs":    {"run", "--out", "."},
		"bad-flag":     {"run", "--no-such-flag"},
		"missing-out":  {"run", "--rover", filepath.Join(root, "rover"), "--out", filepath.Join(root, "missing"), "--runner", "mock", "--status=false"},
		"missing-conf": {"run", "--rover", filepath.Join(root, "rover"), "--out", ".", "--conf", "nope.conf", "--runner", "mock"},
		"bad-runner":   {"run", "--rover", filepath.Join(root, "rover"), "--out", ".", "--runner", "ssh"},
		"missing-clk":  {"run", "--rover", filepath.Join(root, "rover"), "--clk", filepath.Join(root, "rover", "none"), "--out", ".", "--runner", "mock"},
		"require-all":  {"run", "--rover", filepath.Join(root, "rover"), "--base", t.TempDir(), "--require-all", "--out", ".", "--runner", "mock"},
	}
	for name, args := range cases {
		t.Run(name, func(t *testing.T) {
			code, _, stderr := cli(t, args...)
			assert.Equal(t, exitConfig, code, stderr)
		})
	}
}

func TestScan(t *testing.T) {
	root := fixtures(t)
	code, out, _ := cli(t, "scan", filepath.Join(root, "clk"))
	require.Equal(t, exitOK, code)
	assert.Equal(t, filepath.Join(root, "clk", "igs20863.clk")+"\n"+filepath.Join(root, "clk", "new40010.clk")+"\n", out)

	code, out, _ = cli(t, "scan", "-r", "--pattern", "*.??o", root)
	require.Equal(t, exitOK, code)
	assert.Contains(t, out, "base0010.20o")
	assert.NotContains(t, out, "brdc0010.20n")

	code, _, _ = cli(t, "scan", filepath.Join(root, "rtk.conf"))
	assert.Equal(t, exitConfig, code)
}

func TestParseEnvLine(t *testing.T) {
	cases := []struct {
		in       string
		key, val string
		ok       bool
	}{
		{"A=1", "A", "1", true},
		{"export B = two ", "B", "two", true},
		{`C="x\ny"`, "C", "x\ny", true},
		{"D='raw\\n'", "D", `raw\n`, true},
		{"# comment", "", "", false},
		{"=novalue", "", "", false},
		{"noeq", "", "", false},
	}
	for _, tc := range cases {
		k, v, ok := parseEnvLine(tc.in)
		if ok != tc.ok || k != tc.key || v != tc.val {
			t.Fatalf("%q => (%q,%q,%v)", tc.in, k, v, ok)
		}
	}
}

func TestLoadDotEnvNoOverride(t *testing.T) {
	t.Chdir(t.TempDir())
	require.NoError(t, os.WriteFile(".env", []byte("RTKBATCH_TEST_A=file\nRTKBATCH_TEST_B=file\n"), 0o644))
	t.Setenv("RTKBATCH_TEST_A", "env")
	require.NoError(t, loadDotEnv(".env"))
	t.Cleanup(func() { _ = os.Unsetenv("RTKBATCH_TEST_B") })
	assert.Equal(t, "env", os.Getenv("RTKBATCH_TEST_A"))
	assert.Equal(t, "file", os.Getenv("RTKBATCH_TEST_B"))
	require.NoError(t, loadDotEnv("missing.env"))
}

func TestWatchDirs(t *testing.T) {
	root := fixtures(t)
	cfg := cfgpkg.Config{Inputs: cfgpkg.Inputs{
		Rover: []string{filepath.Join(root, "rover")},
		Nav:   []string{filepath.Join(root, "nav", "brdc0010.20n")},
		SP3:   []string{filepath.Join(root, "missing")},
	}}
	assert.Equal(t, []string{filepath.Join(root, "nav"), filepath.Join(root, "rover")}, watchDirs(cfg))
}

func TestRelevant(t *testing.T) {
	out, _ := filepath.Abs("out")
	ignore := []string{out}
	assert.True(t, relevant(fsnotify.Event{Name: "data/a.20o", Op: fsnotify.Create}, ignore))
	assert.False(t, relevant(fsnotify.Event{Name: "data/a.20o", Op: fsnotify.Chmod}, ignore))
	assert.False(t, relevant(fsnotify.Event{Name: "data/.tmp-1", Op: fsnotify.Create}, ignore))
	assert.False(t, relevant(fsnotify.Event{Name: filepath.Join("out", "a.pos"), Op: fsnotify.Write}, ignore))
}

// watchLoop: 文件写入后在静默期结束时触发一次，取消后返回。
func TestWatchLoop(t *testing.T) {
	dir := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	fired := make(chan struct{}, 4)
	done := make(chan error, 1)
	go func() {
		done <- watchLoop(ctx, []string{dir}, nil, 50*time.Millisecond, diag.Nop(), func(context.Context) {
			fired <- struct{}{}
		})
	}()
	// 等待监听建立
	time.Sleep(100 * time.Millisecond)
	for i := 0; i < 3; i++ {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "a.20o"), []byte{byte(i)}, 0o644))
	}
	select {
	case <-fired:
	case <-time.After(5 * time.Second):
		t.Fatal("未触发重跑")
	}
	cancel()
	select {
	case err := <-done:
		assert.True(t, errors.Is(err, context.Canceled))
	case <-time.After(5 * time.Second):
		t.Fatal("watchLoop 未退出")
	}
}

func TestWatchLoopNoDirs(t *testing.T) {
	err := watchLoop(context.Background(), nil, nil, time.Millisecond, nil, func(context.Context) {})
	assert.Error(t, err)
}

func TestExitError(t *testing.T) {
	e := configErr(contract.ErrInvalidInput)
	assert.ErrorIs(t, e, contract.ErrInvalidInput)
	assert.Equal(t, "exit 2", (&exitError{code: exitIncomplete}).Error())
	assert.Equal(t, "incomplete", exitName(exitIncomplete))
}
