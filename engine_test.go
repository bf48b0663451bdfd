package tuindex

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/tuindex/internal/ast"
	"github.com/jward/tuindex/internal/discover"
)

// lineParser reads "name kind line col" definition lines and
// "ref name kind line col" reference lines from .src files.
type lineParser struct {
	calls atomic.Int64
}

func (p *lineParser) ParseFile(_ context.Context, path string, _ []string) (*ast.Document, error) {
	p.calls.Add(1)
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	root := &ast.Node{Kind: "file", Loc: ast.SourceLocation{File: path, Line: 1, Column: 1}}
	doc := &ast.Document{Root: root}
	for _, line := range strings.Split(strings.TrimSpace(string(content)), "\n") {
		f := strings.Fields(line)
		switch {
		case len(f) == 4:
			l, _ := strconv.Atoi(f[2])
			c, _ := strconv.Atoi(f[3])
			doc.Symbols = append(doc.Symbols, ast.NewDefinition(f[0], ast.Kind(f[1]), ast.SourceLocation{File: path, Line: l, Column: c}))
		case len(f) == 5 && f[0] == "ref":
			l, _ := strconv.Atoi(f[3])
			c, _ := strconv.Atoi(f[4])
			root.SymbolRefs = append(root.SymbolRefs, ast.NewReference(f[1], ast.Kind(f[2]), ast.SourceLocation{File: path, Line: l, Column: c}))
		}
	}
	return doc, nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type testEnv struct {
	dir    string
	parser *lineParser
	e      *Engine
}

func newTestEngine(t *testing.T, opts ...Option) *testEnv {
	t.Helper()
	dir := t.TempDir()
	p := &lineParser{}
	opts = append([]Option{WithLogger(quietLogger()), WithParser(p, ".src")}, opts...)
	e, err := New(filepath.Join(dir, ".tuindex", "cache"), filepath.Join(dir, "index.db"), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { e.Close() })
	return &testEnv{dir: dir, parser: p, e: e}
}

func (env *testEnv) write(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(env.dir, name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

// =============================================================================
// Construction
// =============================================================================

func TestNew_CreatesIndex(t *testing.T) {
	t.Parallel()
	env := newTestEngine(t)
	require.NotNil(t, env.e.Store())
	require.NotNil(t, env.e.Query())

	c, err := env.e.Query().Counts()
	require.NoError(t, err)
	assert.Zero(t, c.Definitions)
	assert.True(t, env.e.Supports("x.src"))
	assert.True(t, env.e.Supports("x.go"))
	assert.False(t, env.e.Supports("x.txt"))
}

func TestNew_CreatesIndexDirectory(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, ".tuindex", "index.db")
	e, err := New(filepath.Join(dir, ".tuindex", "cache"), dbPath, WithLogger(quietLogger()))
	require.NoError(t, err)
	defer e.Close()
	assert.FileExists(t, dbPath)
}

func TestNew_InvalidPath(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0o644))
	_, err := New(t.TempDir(), filepath.Join(blocker, "index.db"))
	require.Error(t, err)
}

// =============================================================================
// Reload
// =============================================================================

func TestReload_EndToEnd(t *testing.T) {
	t.Parallel()
	env := newTestEngine(t)
	a := env.write(t, "a.src", "foo function 1 5\n")
	b := env.write(t, "b.src", "ref foo function 3 10\n")

	res, err := env.e.Reload(context.Background(), []string{a, b}, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Parsed)
	assert.Equal(t, 1, res.Symbols)
	assert.Equal(t, 1, res.Resolved)

	doc, ok := env.e.Document(b)
	require.True(t, ok)
	require.Len(t, doc.Root.SymbolRefs, 1)
	assert.Equal(t, "function:foo @"+a+":1:5", doc.Root.SymbolRefs[0].Target)

	refs, err := env.e.Query().ReferencesByName("foo")
	require.NoError(t, err)
	require.Len(t, refs, 1)
	assert.Equal(t, b, refs[0].File)
	assert.Equal(t, 3, refs[0].Line)
	assert.Equal(t, "function:foo @"+a+":1:5", refs[0].SymbolID)

	assert.False(t, env.e.LastReload().IsZero())
	assert.Equal(t, []string{a, b}, env.e.Files())
}

func TestReload_Incremental(t *testing.T) {
	t.Parallel()
	env := newTestEngine(t)
	a := env.write(t, "a.src", "foo function 1 5\n")
	b := env.write(t, "b.src", "bar function 1 1\n")
	ctx := context.Background()

	_, err := env.e.Reload(ctx, []string{a, b}, nil)
	require.NoError(t, err)
	assert.EqualValues(t, 2, env.parser.calls.Load())

	res, err := env.e.Reload(ctx, []string{a, b}, nil)
	require.NoError(t, err)
	assert.EqualValues(t, 2, env.parser.calls.Load(), "unchanged files are not reparsed")
	assert.Equal(t, 2, res.Reused)

	env.write(t, "b.src", "baz function 1 1\n")
	res, err = env.e.Reload(ctx, []string{a, b}, nil)
	require.NoError(t, err)
	assert.EqualValues(t, 3, env.parser.calls.Load())
	assert.Equal(t, 1, res.Parsed)

	_, err = env.e.Refresh(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 3, env.parser.calls.Load())
}

func TestReload_FailureKeepsPreviousGeneration(t *testing.T) {
	t.Parallel()
	env := newTestEngine(t)
	a := env.write(t, "a.src", "foo function 1 5\n")
	ctx := context.Background()

	_, err := env.e.Reload(ctx, []string{a}, nil)
	require.NoError(t, err)

	_, err = env.e.Reload(ctx, []string{a, filepath.Join(env.dir, "missing.src")}, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, fs.ErrNotExist))

	assert.Equal(t, []string{a}, env.e.Files())
	assert.Equal(t, 1, env.e.Table().Len())
}

func TestRefresh_BeforeReload(t *testing.T) {
	t.Parallel()
	env := newTestEngine(t)
	res, err := env.e.Refresh(context.Background())
	require.NoError(t, err)
	assert.Zero(t, res.Files)
}

func TestRebuild_ForcesReparse(t *testing.T) {
	t.Parallel()
	env := newTestEngine(t)
	a := env.write(t, "a.src", "foo function 1 5\n")
	ctx := context.Background()

	_, err := env.e.Reload(ctx, []string{a}, nil)
	require.NoError(t, err)
	require.NoError(t, env.e.Rebuild())

	c, err := env.e.Query().Counts()
	require.NoError(t, err)
	assert.Zero(t, c.Definitions)

	res, err := env.e.Reload(ctx, []string{a}, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Parsed)
}

func TestIndexDirectory(t *testing.T) {
	t.Parallel()
	env := newTestEngine(t)
	env.write(t, "a.src", "foo function 1 5\n")
	env.write(t, "notes.txt", "ignored")

	res, err := env.e.IndexDirectory(context.Background(), env.dir, discover.Options{}, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Files)
}

// =============================================================================
// Scripts
// =============================================================================

func TestScriptsChanged_ClearsCache(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	cacheDir := filepath.Join(dir, "cache")
	dbPath := filepath.Join(dir, "index.db")
	src := filepath.Join(dir, "a.src")
	require.NoError(t, os.WriteFile(src, []byte("foo function 1 5\n"), 0o644))

	open := func(script string) (*Engine, *lineParser) {
		p := &lineParser{}
		e, err := New(cacheDir, dbPath,
			WithLogger(quietLogger()),
			WithParser(p, ".src"),
			WithScriptsFS(fstest.MapFS{"symbols/go.risor": {Data: []byte(script)}}),
		)
		require.NoError(t, err)
		return e, p
	}

	e1, p1 := open("symbols")
	assert.True(t, e1.ScriptsChanged(), "no stored hash yet")
	_, err := e1.Reload(context.Background(), []string{src}, nil)
	require.NoError(t, err)
	assert.False(t, e1.ScriptsChanged())
	assert.EqualValues(t, 1, p1.calls.Load())
	require.NoError(t, e1.Close())

	e2, p2 := open("symbols")
	_, err = e2.Reload(context.Background(), []string{src}, nil)
	require.NoError(t, err)
	assert.Zero(t, p2.calls.Load(), "same scripts keep the cache")
	require.NoError(t, e2.Close())

	e3, p3 := open("nil")
	defer e3.Close()
	assert.True(t, e3.ScriptsChanged())
	_, err = e3.Reload(context.Background(), []string{src}, nil)
	require.NoError(t, err)
	assert.EqualValues(t, 1, p3.calls.Load(), "changed scripts invalidate the cache")
}

// =============================================================================
// Queries
// =============================================================================

func TestDefinitionAndReferences(t *testing.T) {
	t.Parallel()
	env := newTestEngine(t)
	a := env.write(t, "a.src", "foo function 1 5\n")
	b := env.write(t, "b.src", "ref foo function 3 10\nref foo function 4 2\nref mystery function 5 1\n")

	_, err := env.e.Reload(context.Background(), []string{a, b}, nil)
	require.NoError(t, err)

	def := ast.SourceLocation{File: a, Line: 1, Column: 5}
	loc, ok := env.e.Definition(b, 3, 12)
	require.True(t, ok)
	assert.Equal(t, def, loc)

	loc, ok = env.e.Definition(a, 1, 5)
	require.True(t, ok, "a definition resolves to itself")
	assert.Equal(t, def, loc)

	_, ok = env.e.Definition(b, 5, 1)
	assert.False(t, ok, "unresolved")
	_, ok = env.e.Definition(b, 9, 1)
	assert.False(t, ok, "no symbol")
	_, ok = env.e.Definition(filepath.Join(env.dir, "other.src"), 1, 1)
	assert.False(t, ok, "file not loaded")

	refs := env.e.References(b, 4, 2)
	assert.Equal(t, []ast.SourceLocation{
		def,
		{File: b, Line: 3, Column: 10},
		{File: b, Line: 4, Column: 2},
	}, refs)
	assert.Equal(t, refs, env.e.References(a, 1, 6))
	assert.Nil(t, env.e.References(b, 9, 9))
}

func TestQuery_PersistsAcrossReopen(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	a := filepath.Join(dir, "a.src")
	b := filepath.Join(dir, "b.src")
	require.NoError(t, os.WriteFile(a, []byte("foo function 1 5\n"), 0o644))
	require.NoError(t, os.WriteFile(b, []byte("ref foo function 3 10\n"), 0o644))

	open := func() *Engine {
		e, err := New(filepath.Join(dir, "cache"), filepath.Join(dir, "index.db"),
			WithLogger(quietLogger()), WithParser(&lineParser{}, ".src"))
		require.NoError(t, err)
		return e
	}

	e1 := open()
	_, err := e1.Reload(context.Background(), []string{a, b}, nil)
	require.NoError(t, err)
	require.NoError(t, e1.Close())

	e2 := open()
	defer e2.Close()
	locs, err := e2.Query().DefinitionAt(b, 3, 11)
	require.NoError(t, err)
	require.Len(t, locs, 1)
	assert.Equal(t, Location{File: a, Line: 1, Column: 5, Name: "foo", Kind: "function", SymbolID: "function:foo @" + a + ":1:5"}, locs[0])

	locs, err = e2.Query().DefinitionAt(a, 1, 5)
	require.NoError(t, err)
	require.Len(t, locs, 1)
	assert.Equal(t, a, locs[0].File)

	refs, err := e2.Query().ReferencesTo(locs[0].SymbolID)
	require.NoError(t, err)
	require.Len(t, refs, 1)
	assert.Equal(t, 3, refs[0].Line)

	defs, err := e2.Query().DefinitionsByName("foo")
	require.NoError(t, err)
	assert.Len(t, defs, 1)

	page, err := e2.Query().SearchSymbols("f*", DefinitionFilter{}, Sort{Field: SortByRefCount, Order: Desc}, Pagination{})
	require.NoError(t, err)
	require.Equal(t, 1, page.TotalCount)
	assert.Equal(t, 1, page.Items[0].RefCount)
}

func TestComplete_SameFileFirst(t *testing.T) {
	t.Parallel()
	env := newTestEngine(t)
	x := env.write(t, "x.src", "foo_one function 1 1\n")
	y := env.write(t, "y.src", "foo_two function 1 1\n")
	_, err := env.e.Reload(context.Background(), []string{y, x}, nil)
	require.NoError(t, err)

	prefix := "foo"
	items, err := env.e.Complete(x, 2, 1, &prefix, 10)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "foo_one", items[0].Label)
	assert.Equal(t, "foo_two", items[1].Label)

	items, err = env.e.Complete(y, 2, 1, &prefix, 10)
	require.NoError(t, err)
	assert.Equal(t, "foo_two", items[0].Label)

	sugg := env.e.Suggest("foo_on", 5)
	require.NotEmpty(t, sugg)
	assert.Equal(t, "foo_one", sugg[0].Label)
}

func TestComplete_BeforeReload(t *testing.T) {
	t.Parallel()
	env := newTestEngine(t)
	prefix := ""
	items, err := env.e.Complete(filepath.Join(env.dir, "x.src"), 1, 1, &prefix, 10)
	require.NoError(t, err)
	assert.Empty(t, items)
}
