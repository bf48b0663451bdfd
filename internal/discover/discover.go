// Package discover finds indexable source files under a project root.
package discover

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	ignore "github.com/sabhiram/go-gitignore"
)

// Options selects which files are returned.
type Options struct {
	Include          []string // doublestar patterns on root-relative slash paths; empty = all
	Exclude          []string
	RespectGitignore bool
	FollowSymlinks   bool
	MaxFileSize      int64             // 0 = unlimited
	Supports         func(string) bool // typically parser.Registry.Supports; nil = all
}

var skipDirs = map[string]struct{}{
	"__pycache__":   {},
	"node_modules":  {},
	".git":          {},
	".hg":           {},
	".svn":          {},
	".tuindex":      {},
	"venv":          {},
	".venv":         {},
	".tox":          {},
	".mypy_cache":   {},
	".pytest_cache": {},
}

// Filter decides whether a root-relative path should be indexed. It is
// shared by Files and the server's watch mode.
type Filter struct {
	root string
	opts Options
	gi   *ignore.GitIgnore
}

// NewFilter validates the patterns in opts and loads root/.gitignore when
// RespectGitignore is set.
func NewFilter(root string, opts Options) (*Filter, error) {
	for _, p := range append(append([]string{}, opts.Include...), opts.Exclude...) {
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("discover: invalid pattern %q", p)
		}
	}
	f := &Filter{root: root, opts: opts}
	if opts.RespectGitignore {
		f.gi = loadGitignore(root)
	}
	return f, nil
}

// Match reports whether rel (relative to the root, either separator)
// passes the include, exclude, gitignore and language checks.
func (f *Filter) Match(rel string) bool {
	rel = filepath.ToSlash(rel)
	if rel == "" || rel == "." || strings.HasPrefix(rel, "../") {
		return false
	}
	if f.opts.Supports != nil && !f.opts.Supports(rel) {
		return false
	}
	if f.gi != nil && f.gi.MatchesPath(rel) {
		return false
	}
	for _, p := range f.opts.Exclude {
		if ok, _ := doublestar.Match(p, rel); ok {
			return false
		}
	}
	if len(f.opts.Include) == 0 {
		return true
	}
	for _, p := range f.opts.Include {
		if ok, _ := doublestar.Match(p, rel); ok {
			return true
		}
	}
	return false
}

// MatchAbs is Match for an absolute path.
func (f *Filter) MatchAbs(path string) bool {
	rel, err := filepath.Rel(f.root, path)
	if err != nil {
		return false
	}
	return f.Match(rel)
}

// Files walks root and returns the absolute paths of matching files,
// sorted. Hidden entries and well-known dependency directories are skipped.
func Files(ctx context.Context, root string, opts Options) ([]string, error) {
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("discover: %w", err)
	}
	f, err := NewFilter(root, opts)
	if err != nil {
		return nil, err
	}

	var results []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		name := d.Name()
		if d.IsDir() {
			if path == root {
				return nil
			}
			if _, skip := skipDirs[name]; skip || strings.HasPrefix(name, ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(name, ".") {
			return nil
		}
		if d.Type()&os.ModeSymlink != 0 && !opts.FollowSymlinks {
			return nil
		}
		if !d.Type().IsRegular() && d.Type()&os.ModeSymlink == 0 {
			return nil
		}
		if !f.MatchAbs(path) {
			return nil
		}
		if opts.MaxFileSize > 0 {
			info, err := os.Stat(path)
			if err != nil || info.IsDir() || info.Size() > opts.MaxFileSize {
				return nil
			}
		}
		results = append(results, path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("discover: walk %s: %w", root, err)
	}

	sort.Strings(results)
	return results, nil
}

func loadGitignore(root string) *ignore.GitIgnore {
	gi, err := ignore.CompileIgnoreFile(filepath.Join(root, ".gitignore"))
	if err != nil {
		return nil
	}
	return gi
}
