// Package builder turns source files into documents, parsing only what the
// content cache cannot supply.
package builder

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jward/tuindex/internal/ast"
	"github.com/jward/tuindex/internal/cache"
	"github.com/jward/tuindex/internal/parser"
)

// Builder parses or reuses documents for a set of files.
type Builder struct {
	parser   parser.Parser
	cache    *cache.Cache
	workers  int
	compress bool
	logger   *slog.Logger

	last Stats
}

// Option configures a Builder.
type Option func(*Builder)

// WithWorkers bounds how many files are processed at once. Values below 1
// mean runtime.NumCPU().
func WithWorkers(n int) Option {
	return func(b *Builder) {
		b.workers = n
	}
}

// WithCompress stores newly parsed documents gzip-compressed.
func WithCompress(compress bool) Option {
	return func(b *Builder) {
		b.compress = compress
	}
}

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(b *Builder) {
		b.logger = l
	}
}

// New returns a Builder that parses with p and caches in c.
func New(p parser.Parser, c *cache.Cache, opts ...Option) *Builder {
	b := &Builder{parser: p, cache: c, logger: slog.Default()}
	for _, opt := range opts {
		opt(b)
	}
	if b.workers < 1 {
		b.workers = runtime.NumCPU()
	}
	return b
}

// Stats counts how a build obtained its documents.
type Stats struct {
	Files      int
	Parsed     int
	Reused     int
	Resolved   int
	Unresolved int
	Duration   time.Duration
}

// LastStats returns the counters of the most recent Build or BuildWithSymbols.
func (b *Builder) LastStats() Stats { return b.last }

// Cache returns the content cache.
func (b *Builder) Cache() *cache.Cache { return b.cache }

// Build returns one document per distinct input file, keyed by absolute,
// cleaned path. Cached documents are reused when the file's content hash
// has an entry; everything else is parsed and stored.
//
// Any per-file failure cancels the remaining work and fails the call.
func (b *Builder) Build(ctx context.Context, files []string, flags []string) (map[string]*ast.Document, error) {
	start := time.Now()
	paths, err := normalizePaths(files)
	if err != nil {
		return nil, err
	}

	results := make([]fileResult, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.workers)
	for i, p := range paths {
		g.Go(func() error {
			r, err := b.buildOne(gctx, p, flags)
			if err != nil {
				return err
			}
			results[i] = r
			return nil
		})
	}
	werr := g.Wait()
	b.saveHashes()
	if werr != nil {
		return nil, werr
	}

	docs := make(map[string]*ast.Document, len(paths))
	stats := Stats{Files: len(paths)}
	for i, p := range paths {
		docs[p] = results[i].doc
		if results[i].reused {
			stats.Reused++
		} else {
			stats.Parsed++
		}
	}
	stats.Duration = time.Since(start)
	b.last = stats
	b.logger.Info("build.done",
		"files", stats.Files,
		"parsed", stats.Parsed,
		"reused", stats.Reused,
		"duration", stats.Duration,
	)
	return docs, nil
}

// BuildEach builds every file independently. Failures are reported per file
// and do not stop the others.
func (b *Builder) BuildEach(ctx context.Context, files []string, flags []string) (map[string]*ast.Document, map[string]error) {
	docs := make(map[string]*ast.Document)
	errs := make(map[string]error)

	var paths []string
	for _, f := range files {
		abs, err := filepath.Abs(f)
		if err != nil {
			errs[f] = fmt.Errorf("resolve path %s: %w", f, err)
			continue
		}
		paths = append(paths, abs)
	}
	paths = dedupe(paths)

	results := make([]fileResult, len(paths))
	failures := make([]error, len(paths))
	var g errgroup.Group
	g.SetLimit(b.workers)
	for i, p := range paths {
		g.Go(func() error {
			results[i], failures[i] = b.buildOne(ctx, p, flags)
			return nil
		})
	}
	_ = g.Wait()
	b.saveHashes()

	for i, p := range paths {
		if failures[i] != nil {
			errs[p] = failures[i]
			b.logger.Warn("build.file_failed", "file", p, "error", failures[i])
			continue
		}
		docs[p] = results[i].doc
	}
	return docs, errs
}

type fileResult struct {
	doc    *ast.Document
	reused bool
}

func (b *Builder) buildOne(ctx context.Context, path string, flags []string) (fileResult, error) {
	if err := ctx.Err(); err != nil {
		return fileResult{}, err
	}
	hash, err := b.cache.Hash(path)
	if err != nil {
		return fileResult{}, err
	}

	doc, _, ok, err := b.cache.LoadIfPresent(hash)
	if err != nil {
		return fileResult{}, fmt.Errorf("%s: %w", path, err)
	}
	if ok {
		b.logger.Debug("build.reuse", "file", path, "hash", hash)
		return fileResult{doc: relocate(doc, path), reused: true}, nil
	}

	doc, err = b.parser.ParseFile(ctx, path, flags)
	if err != nil {
		return fileResult{}, err
	}
	doc.Normalize()
	meta := cache.Metadata{
		SourcePath:   path,
		FileHash:     hash,
		CompileFlags: flags,
	}
	if err := b.cache.Store(doc, meta, b.compress); err != nil {
		return fileResult{}, fmt.Errorf("%s: %w", path, err)
	}
	b.logger.Debug("build.parse", "file", path, "hash", hash)
	return fileResult{doc: doc}, nil
}

func (b *Builder) saveHashes() {
	if err := b.cache.SaveHashes(); err != nil {
		b.logger.Warn("build.save_hashes", "error", err)
	}
}

func normalizePaths(files []string) ([]string, error) {
	paths := make([]string, 0, len(files))
	for _, f := range files {
		abs, err := filepath.Abs(f)
		if err != nil {
			return nil, fmt.Errorf("resolve path %s: %w", f, err)
		}
		paths = append(paths, abs)
	}
	return dedupe(paths), nil
}

func dedupe(paths []string) []string {
	seen := make(map[string]bool, len(paths))
	out := paths[:0]
	for _, p := range paths {
		if seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	return out
}
