package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jward/tuindex"
	"github.com/jward/tuindex/internal/config"
)

type indexFlags struct {
	force      bool
	compress   bool
	workers    int
	scriptsDir string
}

func (c *cli) indexCmd() *cobra.Command {
	var f indexFlags
	cmd := &cobra.Command{
		Use:   "index [path]",
		Short: "Index a directory",
		Long:  "Parses supported files under path (default: current directory), reusing cached translation units, resolves symbols and rebuilds the SQLite index.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runIndex(cmd, args, f)
		},
	}
	cmd.Flags().BoolVar(&f.force, "force", false, "delete the cache and database and reindex from scratch")
	cmd.Flags().BoolVar(&f.compress, "compress", false, "store cached documents gzip-compressed")
	cmd.Flags().IntVar(&f.workers, "workers", 0, "parallel parse workers (default: from config)")
	cmd.Flags().StringVar(&f.scriptsDir, "scripts-dir", "", "load symbol scripts from disk instead of the embedded set")
	return cmd
}

func (c *cli) runIndex(cmd *cobra.Command, args []string, f indexFlags) error {
	out, errOut := cmd.OutOrStdout(), cmd.ErrOrStderr()

	target, err := resolveTargetDir(args)
	if err != nil {
		return c.outputError(out, errOut, "index", err)
	}
	cfg, err := c.loadConfig(target)
	if err != nil {
		return c.outputError(out, errOut, "index", err)
	}
	if cmd.Flags().Changed("compress") {
		cfg.Cache.Compress = f.compress
	}
	if f.workers > 0 {
		cfg.Build.Workers = f.workers
	}
	if f.scriptsDir != "" {
		cfg.Build.ScriptsDir = f.scriptsDir
	}

	dbPath := cfg.IndexPath()
	if f.force {
		if err := removeIndex(cfg); err != nil {
			return c.outputError(out, errOut, "index", err)
		}
		c.logger.Info("index.cleared", "database", dbPath, "cache", cfg.CacheDir())
	}

	engine, err := c.openEngine(cfg)
	if err != nil {
		return c.outputError(out, errOut, "index", err)
	}
	defer engine.Close()

	res, err := engine.IndexDirectory(cmd.Context(), target, cfg.DiscoverOptions(), cfg.Build.Flags)
	if err != nil {
		return c.outputError(out, errOut, "index", fmt.Errorf("indexing: %w", err))
	}

	return c.outputResult(out, CLIResult{
		Command: "index",
		Results: CLIIndexSummary{
			Root:       target,
			Database:   dbPath,
			Files:      res.Files,
			Parsed:     res.Parsed,
			Reused:     res.Reused,
			Resolved:   res.Resolved,
			Unresolved: res.Unresolved,
			Symbols:    res.Symbols,
			DurationMS: res.Duration.Milliseconds(),
		},
	})
}

// openEngine creates an Engine for cfg, using the embedded symbol scripts
// unless a scripts directory is configured.
func (c *cli) openEngine(cfg *config.Config) (*tuindex.Engine, error) {
	opts := []tuindex.Option{tuindex.WithLogger(c.logger)}
	if cfg.ScriptsDir() == "" {
		opts = append(opts, tuindex.WithScriptsFS(tuindex.Scripts()))
	}
	engine, err := tuindex.Open(cfg, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating engine: %w", err)
	}
	return engine, nil
}

// removeIndex deletes the database (with its WAL files) and the cache.
func removeIndex(cfg *config.Config) error {
	db := cfg.IndexPath()
	for _, p := range []string{db, db + "-wal", db + "-shm"} {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("removing database for --force: %w", err)
		}
	}
	if err := os.RemoveAll(cfg.CacheDir()); err != nil {
		return fmt.Errorf("removing cache for --force: %w", err)
	}
	return nil
}
