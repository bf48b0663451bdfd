package tuindex

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/jward/tuindex/internal/ast"
	"github.com/jward/tuindex/internal/builder"
	"github.com/jward/tuindex/internal/cache"
	"github.com/jward/tuindex/internal/complete"
	"github.com/jward/tuindex/internal/config"
	"github.com/jward/tuindex/internal/discover"
	"github.com/jward/tuindex/internal/frontend"
	"github.com/jward/tuindex/internal/parser"
	"github.com/jward/tuindex/internal/runtime"
	"github.com/jward/tuindex/internal/store"
	"github.com/jward/tuindex/internal/symtab"
)

// MetaScriptsHash is the index metadata key holding the hash of the symbol
// scripts the cache was built with.
const MetaScriptsHash = "scripts_hash"

// Engine composes the pipeline: builder (cache + parsers), symbol table,
// resolver, SQLite index and completion provider.
//
// An Engine is not safe for concurrent use. The query server drives it from
// a single goroutine.
type Engine struct {
	cache    *cache.Cache
	index    *store.Store
	registry *parser.Registry
	runtime  *runtime.Runtime
	builder  *builder.Builder
	logger   *slog.Logger

	scriptsDir    string
	scriptsFS     fs.FS
	workers       int
	compress      bool
	minSimilarity float64
	parsers       []registration

	// Current generation, replaced wholesale by Reload.
	docs      map[string]*ast.Document
	order     []string
	table     *symtab.Table
	completer *complete.Provider
	lastFiles []string
	lastFlags []string
}

type registration struct {
	p    parser.Parser
	exts []string
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger used by the Engine and its components.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// WithWorkers bounds parallel parsing. Values below 1 mean runtime.NumCPU().
func WithWorkers(n int) Option {
	return func(e *Engine) {
		e.workers = n
	}
}

// WithCompress stores newly parsed documents gzip-compressed.
func WithCompress(compress bool) Option {
	return func(e *Engine) {
		e.compress = compress
	}
}

// WithScriptsDir loads per-language symbol scripts from dir on disk.
func WithScriptsDir(dir string) Option {
	return func(e *Engine) {
		e.scriptsDir = dir
	}
}

// WithScriptsFS loads symbol scripts from fsys instead of disk. This
// enables embedding scripts via go:embed.
func WithScriptsFS(fsys fs.FS) Option {
	return func(e *Engine) {
		e.scriptsFS = fsys
	}
}

// WithParser registers p for exts, taking precedence over the built-in
// tree-sitter front-end for those extensions.
func WithParser(p parser.Parser, exts ...string) Option {
	return func(e *Engine) {
		e.parsers = append(e.parsers, registration{p: p, exts: exts})
	}
}

// WithMinSimilarity sets the fuzzy-suggestion threshold.
func WithMinSimilarity(v float64) Option {
	return func(e *Engine) {
		e.minSimilarity = v
	}
}

// New creates an Engine caching documents under cacheDir and mirroring
// symbols into the SQLite database at dbPath.
func New(cacheDir, dbPath string, opts ...Option) (*Engine, error) {
	idx, err := store.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("tuindex: open index: %w", err)
	}

	e := &Engine{
		cache:    cache.New(cacheDir),
		index:    idx,
		registry: parser.NewRegistry(),
		logger:   slog.Default(),
		table:    symtab.New(),
		docs:     map[string]*ast.Document{},
	}
	for _, opt := range opts {
		opt(e)
	}

	var rtOpts []runtime.RuntimeOption
	if e.scriptsFS != nil {
		rtOpts = append(rtOpts, runtime.WithRuntimeFS(e.scriptsFS))
	}
	rtOpts = append(rtOpts, runtime.WithLogger(e.logger))
	e.runtime = runtime.NewRuntime(e.scriptsDir, rtOpts...)

	frontend.Register(e.registry, frontend.New(frontend.WithRuntime(e.runtime), frontend.WithLogger(e.logger)))
	for _, r := range e.parsers {
		e.registry.Register(r.p, r.exts...)
	}

	e.builder = builder.New(e.registry, e.cache,
		builder.WithWorkers(e.workers),
		builder.WithCompress(e.compress),
		builder.WithLogger(e.logger),
	)
	e.completer = e.newCompleter(e.table)
	return e, nil
}

// Open creates an Engine from a loaded configuration.
func Open(cfg *config.Config, opts ...Option) (*Engine, error) {
	base := []Option{
		WithWorkers(cfg.Build.Workers),
		WithCompress(cfg.Cache.Compress),
		WithMinSimilarity(cfg.Completion.MinSimilarity),
	}
	if dir := cfg.ScriptsDir(); dir != "" {
		base = append(base, WithScriptsDir(dir))
	}
	return New(cfg.CacheDir(), cfg.IndexPath(), append(base, opts...)...)
}

// Close releases the index database.
func (e *Engine) Close() error {
	return e.index.Close()
}

// Store returns the underlying index for direct access.
func (e *Engine) Store() *Store {
	return e.index
}

// Cache returns the content cache.
func (e *Engine) Cache() *cache.Cache {
	return e.cache
}

// Supports reports whether some registered parser handles path.
func (e *Engine) Supports(path string) bool {
	return e.registry.Supports(path)
}

// Query returns a QueryBuilder over the persisted index. It works without
// a Reload in this process, as long as the index was built earlier.
func (e *Engine) Query() *QueryBuilder {
	return &QueryBuilder{store: e.index}
}

// ScriptsChanged reports whether the symbol scripts differ from the ones
// the cache was built with. A missing stored hash counts as changed.
func (e *Engine) ScriptsChanged() bool {
	stored, err := e.index.GetMetadata(MetaScriptsHash)
	if err != nil || stored == "" {
		return true
	}
	return stored != e.runtime.ScriptsHash()
}

// ReloadResult summarizes one Reload.
type ReloadResult struct {
	Stats
	Symbols int
}

// Reload builds files, resolves them against a fresh symbol table and
// rebuilds the index, replacing the Engine's current generation. On error
// the previous generation stays in place.
func (e *Engine) Reload(ctx context.Context, files []string, flags []string) (*ReloadResult, error) {
	if e.ScriptsChanged() {
		e.logger.Info("engine.scripts_changed", "action", "clear cache")
		if err := e.cache.Clear(); err != nil {
			return nil, fmt.Errorf("tuindex: clear cache: %w", err)
		}
	}

	res, err := e.builder.BuildWithSymbols(ctx, files, builder.SymbolOptions{Flags: flags, Index: e.index})
	if err != nil {
		return nil, fmt.Errorf("tuindex: reload: %w", err)
	}
	if err := e.index.SetMetadata(MetaScriptsHash, e.runtime.ScriptsHash()); err != nil {
		return nil, fmt.Errorf("tuindex: reload: %w", err)
	}

	e.docs = res.Documents
	e.order = res.Order
	e.table = res.Table
	e.completer = e.newCompleter(res.Table)
	e.lastFiles = append([]string(nil), files...)
	e.lastFlags = append([]string(nil), flags...)

	return &ReloadResult{Stats: res.Stats, Symbols: res.Table.Len()}, nil
}

// Refresh repeats the last Reload with the same files and flags. It is a
// no-op before the first Reload.
func (e *Engine) Refresh(ctx context.Context) (*ReloadResult, error) {
	if e.lastFiles == nil {
		return &ReloadResult{}, nil
	}
	return e.Reload(ctx, e.lastFiles, e.lastFlags)
}

// IndexDirectory discovers files under root with opts and reloads them.
// opts.Supports defaults to the Engine's parser registry.
func (e *Engine) IndexDirectory(ctx context.Context, root string, opts discover.Options, flags []string) (*ReloadResult, error) {
	if opts.Supports == nil {
		opts.Supports = e.registry.Supports
	}
	files, err := discover.Files(ctx, root, opts)
	if err != nil {
		return nil, err
	}
	return e.Reload(ctx, files, flags)
}

// Files returns the loaded files in reload order.
func (e *Engine) Files() []string {
	return append([]string(nil), e.order...)
}

// Document returns the resolved document for file, if loaded.
func (e *Engine) Document(file string) (*ast.Document, bool) {
	doc, ok := e.docs[absPath(file)]
	return doc, ok
}

// Table returns the current symbol table.
func (e *Engine) Table() *symtab.Table {
	return e.table
}

// Definition returns the location of the definition of the symbol at
// (file, line, column): a definition resolves to itself, a resolved
// reference to its target, anything else to nothing.
func (e *Engine) Definition(file string, line, column int) (ast.SourceLocation, bool) {
	doc, ok := e.Document(file)
	if !ok {
		return ast.SourceLocation{}, false
	}
	sym, ok := doc.SymbolAt(line, column)
	if !ok || sym.Target == "" {
		return ast.SourceLocation{}, false
	}
	target, ok := e.table.SymbolByID(sym.Target)
	if !ok {
		return ast.SourceLocation{}, false
	}
	return target.Loc, true
}

// References returns every location, across loaded documents, of a symbol
// sharing an identity with the symbol at (file, line, column). The identity
// is its target, else its refers-to, else its own id; the definition itself
// is included.
func (e *Engine) References(file string, line, column int) []ast.SourceLocation {
	doc, ok := e.Document(file)
	if !ok {
		return nil
	}
	sym, ok := doc.SymbolAt(line, column)
	if !ok {
		return nil
	}
	id := sym.Target
	if id == "" {
		id = sym.RefersTo
	}
	if id == "" {
		id = sym.ID()
	}

	var out []ast.SourceLocation
	seen := map[ast.SourceLocation]bool{}
	for _, path := range e.order {
		for s := range e.docs[path].AllSymbols() {
			if s.RefersTo != id && s.Target != id && s.ID() != id {
				continue
			}
			if !seen[s.Loc] {
				seen[s.Loc] = true
				out = append(out, s.Loc)
			}
		}
	}
	return out
}

// Complete returns completion items at (file, line, column). A nil prefix
// is derived from the file's live content.
func (e *Engine) Complete(file string, line, column int, prefix *string, max int) ([]complete.Item, error) {
	return e.completer.Items(absPath(file), line, column, prefix, max)
}

// Suggest returns fuzzy name matches for query.
func (e *Engine) Suggest(query string, max int) []complete.Suggestion {
	return e.completer.Suggest(query, max)
}

func (e *Engine) newCompleter(table *symtab.Table) *complete.Provider {
	return complete.New(table, complete.WithMinSimilarity(e.minSimilarity))
}

// Rebuild clears the cache and the index so the next Reload parses every
// file from source.
func (e *Engine) Rebuild() error {
	if err := e.cache.Clear(); err != nil {
		return fmt.Errorf("tuindex: clear cache: %w", err)
	}
	if err := e.index.CommitBatch(store.NewBatchedStore()); err != nil {
		return fmt.Errorf("tuindex: clear index: %w", err)
	}
	return nil
}

// LastReload returns when the index was last rebuilt, or the zero time.
func (e *Engine) LastReload() time.Time {
	v, err := e.index.GetMetadata(store.MetaLastRebuild)
	if err != nil || v == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}
	}
	return t
}

func absPath(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return filepath.Clean(p)
}
