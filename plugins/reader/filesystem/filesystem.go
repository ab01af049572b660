// Package filesystem 提供基于本地文件系统的目录扫描（contract.Scanner）。
package filesystem

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"rtkbatch/pkg/contract"
)

// Options 为 FileSystem Scanner 的可选配置（最小必要）。
type Options struct {
	// ExcludeDirNames: 递归扫描时跳过这些目录名（基名完全匹配，大小写不敏感）。
	// 例如 [".git","rejected"]。
	ExcludeDirNames []string `yaml:"exclude_dir_names" json:"exclude_dir_names"`
	// Patterns: 文件基名 glob（filepath.Match 语法）；为空表示全部接受。
	// 例如 ["*.??o","*.rnx"]。
	Patterns []string `yaml:"patterns" json:"patterns"`
	// Hidden: 是否包含以 '.' 开头的文件；默认跳过。
	Hidden bool `yaml:"hidden" json:"hidden"`
}

// FileSystem 实现 contract.Scanner。
type FileSystem struct {
	// 以小写形式保存，比较时按小写基名匹配。
	excludeDir map[string]struct{}
	patterns   []string
	hidden     bool
}

var _ contract.Expander = (*FileSystem)(nil)

// New 创建 FileSystem Scanner；非法 glob 在此处报错。
func New(opts *Options) (*FileSystem, error) {
	ex := make(map[string]struct{})
	fs := &FileSystem{excludeDir: ex}
	if opts == nil {
		return fs, nil
	}
	for _, name := range opts.ExcludeDirNames {
		if name = strings.Trim(strings.TrimSpace(name), `/\`); name != "" {
			ex[strings.ToLower(name)] = struct{}{}
		}
	}
	for _, p := range opts.Patterns {
		if _, err := filepath.Match(p, ""); err != nil {
			return nil, fmt.Errorf("%w: bad pattern %q: %v", contract.ErrInvalidInput, p, err)
		}
		fs.patterns = append(fs.patterns, p)
	}
	fs.hidden = opts.Hidden
	return fs, nil
}

// Scan 列出 dir 下的常规文件。顺序稳定：同一目录内按字典序，
// 递归时先子目录后文件。dir 不是目录时返回 contract.ErrNotDirectory。
func (s *FileSystem) Scan(ctx context.Context, dir string, recursive bool) ([]string, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", contract.ErrNotDirectory, dir)
	}
	var out []string
	if err := s.walkDir(ctx, dir, recursive, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Expand 将文件/目录混合的 roots 展开为文件列表，保持 roots 的先后顺序。
// 单文件 root 不受 Patterns 过滤；重复路径仅保留首次出现。
func (s *FileSystem) Expand(ctx context.Context, roots []string, recursive bool) ([]string, error) {
	var out []string
	seen := make(map[string]struct{})
	add := func(p string) {
		key := contract.PathKey(p)
		if _, dup := seen[key]; dup {
			return
		}
		seen[key] = struct{}{}
		out = append(out, p)
	}
	for _, root := range roots {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		if strings.TrimSpace(root) == "" {
			continue
		}
		// 跟随符号链接：指向目录或常规文件均可
		info, err := os.Stat(root)
		if err != nil {
			return nil, err
		}
		switch {
		case info.IsDir():
			files, err := s.Scan(ctx, root, recursive)
			if err != nil {
				return nil, err
			}
			for _, f := range files {
				add(f)
			}
		case info.Mode().IsRegular():
			add(root)
		default:
			return nil, fmt.Errorf("%w: not a regular file: %s", contract.ErrInvalidInput, root)
		}
	}
	return out, nil
}

func (s *FileSystem) walkDir(ctx context.Context, dir string, recursive bool, out *[]string) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	// 稳定顺序：字典序
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	// 先目录（不跟随目录符号链接）
	if recursive {
		for _, e := range entries {
			if !e.IsDir() {
				continue
			}
			if _, skip := s.excludeDir[strings.ToLower(e.Name())]; skip {
				continue
			}
			if !s.hidden && strings.HasPrefix(e.Name(), ".") {
				continue
			}
			if err := s.walkDir(ctx, filepath.Join(dir, e.Name()), recursive, out); err != nil {
				return err
			}
		}
	}
	// 再文件（允许指向常规文件的符号链接）
	for _, e := range entries {
		if e.IsDir() || !s.accept(e.Name()) {
			continue
		}
		p := filepath.Join(dir, e.Name())
		if e.Type()&os.ModeSymlink != 0 {
			t, err := os.Stat(p)
			if err != nil {
				// 悬空链接：忽略
				continue
			}
			if !t.Mode().IsRegular() {
				continue
			}
		} else if !e.Type().IsRegular() {
			// 非常规文件（设备、FIFO 等）跳过
			continue
		}
		*out = append(*out, p)
	}
	return nil
}

func (s *FileSystem) accept(name string) bool {
	if !s.hidden && strings.HasPrefix(name, ".") {
		return false
	}
	if len(s.patterns) == 0 {
		return true
	}
	lower := strings.ToLower(name)
	for _, p := range s.patterns {
		if ok, _ := filepath.Match(strings.ToLower(p), lower); ok {
			return true
		}
	}
	return false
}
