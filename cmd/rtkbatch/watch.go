package main

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	cfgpkg "rtkbatch/internal/config"
	"rtkbatch/internal/diag"
)

func newWatchCmd() *cobra.Command {
	f := &runFlags{}
	var debounce time.Duration
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Run once, then re-run whenever files appear or change under the input directories",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd, f)
			if err != nil {
				return configErr(err)
			}
			logger := diag.NewLogger(uuid.NewString(), cfg.Logging.Level)
			defer func() { _ = logger.Sync() }()
			diag.SetTerminal(diag.NewTerminal(cmd.ErrOrStderr(), f.status))
			defer diag.SetTerminal(nil)

			once := func(ctx context.Context) {
				code, err := runOnce(ctx, cmd, cfg, logger)
				if err != nil && !errors.Is(err, context.Canceled) {
					fprintf(cmd.ErrOrStderr(), "rtkbatch: %v\n", err)
				}
				if f.metricsFile != "" {
					_ = diag.WriteMetrics(f.metricsFile)
				}
				logger.DebugStart("watch", "round", "", "", map[string]string{"exit": exitName(code)})
			}
			once(cmd.Context())
			err = watchLoop(cmd.Context(), watchDirs(cfg), ignoredPaths(cfg), debounce, logger, once)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			if err != nil {
				return &exitError{code: exitRuntime, err: err}
			}
			return nil
		},
	}
	f.bind(cmd)
	cmd.Flags().DurationVar(&debounce, "debounce", 2*time.Second, "最后一次文件变更后等待多久再重跑")
	return cmd
}

// watchDirs 返回需要监听的目录：目录输入本身，文件输入取其父目录（去重、排序）。
// 递归模式下同时监听已有的子目录。
func watchDirs(cfg cfgpkg.Config) []string {
	seen := map[string]struct{}{}
	add := func(d string) { seen[filepath.Clean(d)] = struct{}{} }
	for _, roots := range cfg.Inputs.ByCategory() {
		for _, r := range roots {
			st, err := os.Stat(r)
			if err != nil {
				continue
			}
			if !st.IsDir() {
				add(filepath.Dir(r))
				continue
			}
			add(r)
			if cfgpkg.On(cfg.Recursive) {
				_ = filepath.WalkDir(r, func(p string, d os.DirEntry, err error) error {
					if err == nil && d.IsDir() && p != r {
						if strings.HasPrefix(d.Name(), ".") {
							return filepath.SkipDir
						}
						add(p)
					}
					return nil
				})
			}
		}
	}
	out := make([]string, 0, len(seen))
	for d := range seen {
		out = append(out, d)
	}
	sort.Strings(out)
	return out
}

// ignoredPaths: 结果目录与报告文件，其上的事件不触发重跑。
func ignoredPaths(cfg cfgpkg.Config) []string {
	var out []string
	for _, d := range []string{cfg.OutputDir, cfg.Report.Path} {
		if strings.TrimSpace(d) == "" {
			continue
		}
		if abs, err := filepath.Abs(d); err == nil {
			out = append(out, abs)
		}
	}
	return out
}

// watchLoop 监听 dirs，在最后一次相关事件静默 debounce 之后调用 trigger。
// ignore 下的事件被丢弃。trigger 同步执行；执行期间到达的事件合并为下一轮。
// ctx 取消时返回 ctx.Err()。
func watchLoop(ctx context.Context, dirs, ignore []string, debounce time.Duration, logger *diag.Logger, trigger func(context.Context)) error {
	if len(dirs) == 0 {
		return errors.New("watch: no input directories to watch")
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()
	for _, d := range dirs {
		if err := w.Add(d); err != nil {
			return err
		}
	}
	if debounce <= 0 {
		debounce = 100 * time.Millisecond
	}

	timer := time.NewTimer(debounce)
	timer.Stop()
	defer timer.Stop()
	pending := false
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !relevant(ev, ignore) {
				continue
			}
			// 新建子目录也纳入监听
			if ev.Op&fsnotify.Create != 0 {
				if st, err := os.Stat(ev.Name); err == nil && st.IsDir() {
					_ = w.Add(ev.Name)
				}
			}
			logger.DebugStart("watch", "event", ev.Name, "", map[string]string{"op": ev.Op.String()})
			pending = true
			timer.Reset(debounce)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.ErrorWithKV("watch", string(diag.Classify(err)), "watcher error", nil, "", "", map[string]string{"err": err.Error()})
		case <-timer.C:
			if pending {
				pending = false
				trigger(ctx)
			}
		}
	}
}

// relevant: 忽略仅属性变化、隐藏文件（含原子写入的临时文件）与 ignore 下的路径。
func relevant(ev fsnotify.Event, ignore []string) bool {
	if ev.Op == fsnotify.Chmod || strings.HasPrefix(filepath.Base(ev.Name), ".") {
		return false
	}
	abs, err := filepath.Abs(ev.Name)
	if err != nil {
		return true
	}
	for _, d := range ignore {
		if abs == d || strings.HasPrefix(abs, d+string(filepath.Separator)) {
			return false
		}
	}
	return true
}

func exitName(code int) string {
	switch code {
	case exitOK:
		return "ok"
	case exitIncomplete:
		return "incomplete"
	case exitConfig:
		return "config"
	default:
		return "runtime"
	}
}
