// Package config holds tuindex settings: hard defaults, optionally
// overridden by a .tuindex.kdl file in the project root.
package config

import (
	"path/filepath"
	"runtime"
	"time"

	"github.com/jward/tuindex/internal/discover"
)

// FileName is the project configuration file looked up in the root.
const FileName = ".tuindex.kdl"

// Config is the full configuration.
type Config struct {
	Project    Project
	Cache      Cache
	Index      Index
	Build      Build
	Server     Server
	Completion Completion
	Include    []string // doublestar patterns, relative to Project.Root; empty = everything
	Exclude    []string
}

type Project struct {
	Root string
	Name string
}

type Cache struct {
	Dir      string // relative paths are resolved against Project.Root
	Compress bool
}

type Index struct {
	Path             string // SQLite file
	RespectGitignore bool
	FollowSymlinks   bool
	MaxFileSize      int64 // bytes; 0 = unlimited
}

type Build struct {
	Workers    int
	Flags      []string
	ScriptsDir string // optional Risor symbol scripts
}

type Server struct {
	Network       string
	Addr          string
	IdleTimeout   time.Duration // 0 = never
	Watch         bool
	WatchDebounce time.Duration
}

type Completion struct {
	MaxResults    int
	MinSimilarity float64
}

// Default returns the configuration used when no file is present.
func Default(root string) *Config {
	if abs, err := filepath.Abs(root); err == nil {
		root = abs
	}
	return &Config{
		Project: Project{Root: root, Name: filepath.Base(root)},
		Cache:   Cache{Dir: filepath.Join(".tuindex", "cache")},
		Index: Index{
			Path:             filepath.Join(".tuindex", "index.db"),
			RespectGitignore: true,
			MaxFileSize:      4 * 1024 * 1024,
		},
		Build: Build{Workers: runtime.NumCPU()},
		Server: Server{
			Network:       "tcp",
			Addr:          "127.0.0.1:7421",
			WatchDebounce: 200 * time.Millisecond,
		},
		Completion: Completion{MaxResults: 50, MinSimilarity: 0.7},
		Include:    []string{},
		Exclude:    defaultExclusions(),
	}
}

// CacheDir returns the absolute cache directory.
func (c *Config) CacheDir() string { return c.resolve(c.Cache.Dir) }

// IndexPath returns the absolute SQLite path.
func (c *Config) IndexPath() string { return c.resolve(c.Index.Path) }

// ScriptsDir returns the absolute scripts directory, or "" when unset.
func (c *Config) ScriptsDir() string {
	if c.Build.ScriptsDir == "" {
		return ""
	}
	return c.resolve(c.Build.ScriptsDir)
}

// DiscoverOptions maps the index and pattern settings onto file discovery.
func (c *Config) DiscoverOptions() discover.Options {
	return discover.Options{
		Include:          c.Include,
		Exclude:          c.Exclude,
		RespectGitignore: c.Index.RespectGitignore,
		FollowSymlinks:   c.Index.FollowSymlinks,
		MaxFileSize:      c.Index.MaxFileSize,
	}
}

func (c *Config) resolve(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.Project.Root, p)
}

func defaultExclusions() []string {
	return []string{
		"**/.git/**",
		"**/.tuindex/**",
		"**/node_modules/**",
		"**/vendor/**",
		"**/target/**",
		"**/dist/**",
		"**/build/**",
		"**/__pycache__/**",
		"**/.venv/**",
		"**/*.min.js",
	}
}
