package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jward/tuindex/internal/config"
)

// errHandled wraps errors that outputError already reported, so main
// doesn't print them twice.
type errHandled struct{ err error }

func (e errHandled) Error() string { return e.err.Error() }
func (e errHandled) Unwrap() error { return e.err }

func main() {
	if err := newRootCmd().Execute(); err != nil {
		var handled errHandled
		if !errors.As(err, &handled) {
			fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		}
		os.Exit(1)
	}
}

// cli holds the persistent flags shared by every command.
type cli struct {
	db       string
	format   string
	logLevel string
	logger   *slog.Logger
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:           "tuindex",
		Short:         "Incremental multi-language source indexer",
		Long:          "tuindex parses source files into cached translation units, resolves symbols across files and keeps a SQLite symbol index for queries.",
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := validateFormat(c.format); err != nil {
				return err
			}
			logger, err := newLogger(cmd.ErrOrStderr(), c.logLevel)
			if err != nil {
				return err
			}
			c.logger = logger
			return nil
		},
	}
	root.PersistentFlags().StringVar(&c.db, "db", "", "database path (default: index path from .tuindex.kdl)")
	root.PersistentFlags().StringVar(&c.format, "format", "json", "output format: json|text")
	root.PersistentFlags().StringVar(&c.logLevel, "log-level", "warn", "log level: debug|info|warn|error")

	root.AddCommand(c.indexCmd())
	root.AddCommand(c.queryCmd())
	root.AddCommand(c.serveCmd())
	return root
}

func newLogger(w io.Writer, level string) (*slog.Logger, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: l})), nil
}

// loadConfig reads the project configuration for the repository containing
// dir and applies --db.
func (c *cli) loadConfig(dir string) (*config.Config, error) {
	cfg, err := config.Load(findRepoRoot(dir))
	if err != nil {
		return nil, err
	}
	if c.db != "" {
		cfg.Index.Path = c.db
	}
	return cfg, nil
}

// resolveTargetDir returns the absolute path of the directory to work on.
func resolveTargetDir(args []string) (string, error) {
	dir := "."
	if len(args) > 0 {
		dir = args[0]
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolving path %q: %w", dir, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("directory not found: %s", abs)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("not a directory: %s", abs)
	}
	return abs, nil
}

// findRepoRoot walks up from startDir looking for a .git directory or a
// .tuindex.kdl file. Returns startDir if neither is found.
func findRepoRoot(startDir string) string {
	dir := startDir
	for {
		if info, err := os.Stat(filepath.Join(dir, ".git")); err == nil && info.IsDir() {
			return dir
		}
		if _, err := os.Stat(filepath.Join(dir, config.FileName)); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return startDir
		}
		dir = parent
	}
}

// splitList splits a comma-separated flag value, dropping empty items.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
