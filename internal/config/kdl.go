package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	kdl "github.com/sblinch/kdl-go"
	"github.com/sblinch/kdl-go/document"
)

// Load returns the configuration for root: defaults, overridden by
// root/.tuindex.kdl when it exists.
func Load(root string) (*Config, error) {
	cfg := Default(root)
	base := cfg.Project.Root
	content, err := os.ReadFile(filepath.Join(base, FileName))
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", FileName, err)
	}
	if err := apply(cfg, string(content)); err != nil {
		return nil, err
	}
	if !filepath.IsAbs(cfg.Project.Root) {
		cfg.Project.Root = filepath.Clean(filepath.Join(base, cfg.Project.Root))
	}
	return cfg, nil
}

// Parse applies KDL content over the defaults for root.
func Parse(root, content string) (*Config, error) {
	cfg := Default(root)
	if err := apply(cfg, content); err != nil {
		return nil, err
	}
	return cfg, nil
}

func apply(cfg *Config, content string) error {
	doc, err := kdl.Parse(strings.NewReader(content))
	if err != nil {
		return fmt.Errorf("config: parse KDL: %w", err)
	}

	for _, n := range doc.Nodes {
		switch nodeName(n) {
		case "project":
			for _, cn := range n.Children {
				assignSimpleString(cn, "root", func(v string) { cfg.Project.Root = v })
				assignSimpleString(cn, "name", func(v string) { cfg.Project.Name = v })
			}
		case "cache":
			for _, cn := range n.Children {
				switch nodeName(cn) {
				case "dir":
					if s, ok := firstStringArg(cn); ok {
						cfg.Cache.Dir = s
					}
				case "compress":
					if b, ok := firstBoolArg(cn); ok {
						cfg.Cache.Compress = b
					}
				}
			}
		case "index":
			for _, cn := range n.Children {
				switch nodeName(cn) {
				case "path":
					if s, ok := firstStringArg(cn); ok {
						cfg.Index.Path = s
					}
				case "respect_gitignore":
					if b, ok := firstBoolArg(cn); ok {
						cfg.Index.RespectGitignore = b
					}
				case "follow_symlinks":
					if b, ok := firstBoolArg(cn); ok {
						cfg.Index.FollowSymlinks = b
					}
				case "max_file_size":
					if v, ok := firstIntArg(cn); ok {
						cfg.Index.MaxFileSize = int64(v)
					}
					if s, ok := firstStringArg(cn); ok {
						sz, err := parseSize(s)
						if err != nil {
							return fmt.Errorf("config: index.max_file_size: %w", err)
						}
						cfg.Index.MaxFileSize = sz
					}
				}
			}
		case "build":
			for _, cn := range n.Children {
				switch nodeName(cn) {
				case "workers":
					if v, ok := firstIntArg(cn); ok && v > 0 {
						cfg.Build.Workers = v
					}
				case "flags":
					cfg.Build.Flags = collectStringArgs(cn)
				case "scripts_dir":
					if s, ok := firstStringArg(cn); ok {
						cfg.Build.ScriptsDir = s
					}
				}
			}
		case "server":
			for _, cn := range n.Children {
				switch nodeName(cn) {
				case "network":
					if s, ok := firstStringArg(cn); ok {
						cfg.Server.Network = s
					}
				case "addr":
					if s, ok := firstStringArg(cn); ok {
						cfg.Server.Addr = s
					}
				case "idle_timeout":
					d, err := durationArg(cn)
					if err != nil {
						return fmt.Errorf("config: server.idle_timeout: %w", err)
					}
					cfg.Server.IdleTimeout = d
				case "watch":
					if b, ok := firstBoolArg(cn); ok {
						cfg.Server.Watch = b
					}
				case "watch_debounce":
					d, err := durationArg(cn)
					if err != nil {
						return fmt.Errorf("config: server.watch_debounce: %w", err)
					}
					cfg.Server.WatchDebounce = d
				}
			}
		case "completion":
			for _, cn := range n.Children {
				switch nodeName(cn) {
				case "max_results":
					if v, ok := firstIntArg(cn); ok {
						cfg.Completion.MaxResults = v
					}
				case "min_similarity":
					if v, ok := firstFloatArg(cn); ok {
						cfg.Completion.MinSimilarity = v
					}
				}
			}
		case "include":
			cfg.Include = append(cfg.Include, collectStringArgs(n)...)
		case "exclude":
			// An exclude block replaces the defaults.
			cfg.Exclude = collectStringArgs(n)
		}
	}
	return nil
}

func nodeName(n *document.Node) string {
	if n == nil || n.Name == nil {
		return ""
	}
	return n.Name.NodeNameString()
}

func firstIntArg(n *document.Node) (int, bool) {
	if len(n.Arguments) == 0 {
		return 0, false
	}
	switch v := n.Arguments[0].Value.(type) {
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}

func firstStringArg(n *document.Node) (string, bool) {
	if len(n.Arguments) == 0 {
		return "", false
	}
	if s, ok := n.Arguments[0].Value.(string); ok {
		return s, true
	}
	return "", false
}

func firstBoolArg(n *document.Node) (bool, bool) {
	if len(n.Arguments) == 0 {
		return false, false
	}
	if b, ok := n.Arguments[0].Value.(bool); ok {
		return b, true
	}
	return false, false
}

func firstFloatArg(n *document.Node) (float64, bool) {
	if len(n.Arguments) == 0 {
		return 0, false
	}
	switch v := n.Arguments[0].Value.(type) {
	case float64:
		return v, true
	case int64:
		return float64(v), true
	default:
		return 0, false
	}
}

// durationArg accepts either a Go duration string ("30s") or an integer
// number of milliseconds.
func durationArg(n *document.Node) (time.Duration, error) {
	if v, ok := firstIntArg(n); ok {
		return time.Duration(v) * time.Millisecond, nil
	}
	if s, ok := firstStringArg(n); ok {
		return time.ParseDuration(s)
	}
	return 0, fmt.Errorf("expected duration")
}

// collectStringArgs reads inline arguments (exclude "a" "b") or, failing
// that, a block of children (exclude { "a"; "b" }).
func collectStringArgs(n *document.Node) []string {
	if n == nil {
		return nil
	}
	out := make([]string, 0, len(n.Arguments))
	for _, a := range n.Arguments {
		if s, ok := a.Value.(string); ok {
			out = append(out, s)
		}
	}
	if len(out) == 0 && len(n.Children) > 0 {
		for _, child := range n.Children {
			if s, ok := firstStringArg(child); ok {
				out = append(out, s)
			} else if child.Name != nil {
				if s, ok := child.Name.Value.(string); ok {
					out = append(out, s)
				}
			}
		}
	}
	return out
}

func assignSimpleString(n *document.Node, target string, set func(string)) {
	if nodeName(n) == target {
		if s, ok := firstStringArg(n); ok {
			set(s)
		}
	}
}

// parseSize handles size strings like "10MB", "500KB", "1GB".
func parseSize(s string) (int64, error) {
	s = strings.ToUpper(strings.TrimSpace(s))

	var multiplier int64 = 1
	numStr := s
	switch {
	case strings.HasSuffix(s, "GB"):
		multiplier = 1024 * 1024 * 1024
		numStr = strings.TrimSuffix(s, "GB")
	case strings.HasSuffix(s, "MB"):
		multiplier = 1024 * 1024
		numStr = strings.TrimSuffix(s, "MB")
	case strings.HasSuffix(s, "KB"):
		multiplier = 1024
		numStr = strings.TrimSuffix(s, "KB")
	case strings.HasSuffix(s, "B"):
		numStr = strings.TrimSuffix(s, "B")
	}

	num, err := strconv.ParseInt(strings.TrimSpace(numStr), 10, 64)
	if err != nil {
		return 0, err
	}
	return num * multiplier, nil
}
