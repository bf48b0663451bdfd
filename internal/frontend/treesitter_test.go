package frontend

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/tuindex/internal/ast"
	"github.com/jward/tuindex/internal/parser"
	"github.com/jward/tuindex/internal/resolve"
	"github.com/jward/tuindex/internal/runtime"
	"github.com/jward/tuindex/internal/symtab"
)

const goSource = `package main

type Server struct {
	Host string
}

func (s *Server) Address() string {
	return s.Host
}

func Greet(name string) string {
	return name
}

func main() {
	srv := &Server{}
	Greet(srv.Address())
}
`

const pySource = `class Greeter:
    def greet(self, name):
        return name

def main():
    g = Greeter()
    g.greet("x")
`

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func parseSrc(t *testing.T, ts *TreeSitter, path, lang, src string) *ast.Document {
	t.Helper()
	doc, err := ts.ParseSource(context.Background(), path, lang, []byte(src))
	require.NoError(t, err)
	return doc
}

func defIDs(doc *ast.Document) []string {
	var ids []string
	for _, s := range doc.Symbols {
		if s.State() == ast.Definition {
			ids = append(ids, s.ID())
		}
	}
	return ids
}

func refsNamed(doc *ast.Document, name string) []ast.Symbol {
	var out []ast.Symbol
	for s := range doc.AllSymbols() {
		if s.Name == name && s.State() != ast.Definition {
			out = append(out, s)
		}
	}
	return out
}

// --- Definitions ---

func TestParseSource_GoDefinitions(t *testing.T) {
	t.Parallel()
	doc := parseSrc(t, New(WithLogger(quietLogger())), "main.go", "go", goSource)

	assert.Equal(t, "main.go", doc.File())
	assert.Equal(t, []string{
		"type:Server @main.go:3:6",
		"method:Address @main.go:7:18",
		"function:Greet @main.go:11:6",
		"function:main @main.go:15:6",
	}, defIDs(doc))
}

func TestParseSource_GoReferences(t *testing.T) {
	t.Parallel()
	doc := parseSrc(t, New(WithLogger(quietLogger())), "main.go", "go", goSource)

	greet := refsNamed(doc, "Greet")
	require.Len(t, greet, 1)
	assert.Equal(t, ast.KindFunction, greet[0].Kind)
	assert.Equal(t, ast.SourceLocation{File: "main.go", Line: 17, Column: 2}, greet[0].Loc)
	assert.Equal(t, ast.Unresolved, greet[0].State())

	addr := refsNamed(doc, "Address")
	require.Len(t, addr, 1)
	assert.Equal(t, ast.KindMethod, addr[0].Kind)
	assert.Equal(t, 12, addr[0].Loc.Column)

	host := refsNamed(doc, "Host")
	require.Len(t, host, 2)
	assert.Equal(t, ast.KindVariable, host[0].Kind, "struct field name")
	assert.Equal(t, ast.KindField, host[1].Kind, "selector s.Host")

	server := refsNamed(doc, "Server")
	require.Len(t, server, 2)
	for _, s := range server {
		assert.Equal(t, ast.KindType, s.Kind)
	}
}

func TestParseSource_DefinitionNodesCarryExtent(t *testing.T) {
	t.Parallel()
	doc := parseSrc(t, New(WithLogger(quietLogger())), "main.go", "go", goSource)

	var found *ast.Node
	for n := range doc.Root.Walk() {
		if n.Kind == ast.KindType && n.Name == "Server" {
			found = n
		}
	}
	require.NotNil(t, found)
	require.NotNil(t, found.Extent)
	assert.True(t, found.Extent.Contains(4, 2))
	assert.False(t, found.Extent.Contains(7, 1))
}

func TestParseSource_Python(t *testing.T) {
	t.Parallel()
	doc := parseSrc(t, New(WithLogger(quietLogger())), "app.py", "python", pySource)

	assert.Equal(t, []string{
		"class:Greeter @app.py:1:7",
		"function:greet @app.py:2:9",
		"function:main @app.py:5:5",
	}, defIDs(doc))

	greet := refsNamed(doc, "greet")
	require.Len(t, greet, 1)
	assert.Equal(t, ast.KindFunction, greet[0].Kind)
	assert.Equal(t, ast.SourceLocation{File: "app.py", Line: 7, Column: 7}, greet[0].Loc)
}

func TestParseSource_CStructNeedsBody(t *testing.T) {
	t.Parallel()
	src := "struct point { int x; };\nstruct point p;\nint add(int a, int b) { return a + b; }\n"
	doc := parseSrc(t, New(WithLogger(quietLogger())), "geo.c", "c", src)

	assert.Equal(t, []string{
		"type:point @geo.c:1:8",
		"function:add @geo.c:3:5",
	}, defIDs(doc))

	uses := refsNamed(doc, "point")
	require.Len(t, uses, 1)
	assert.Equal(t, 2, uses[0].Loc.Line)
}

// --- Errors ---

func TestParseSource_SyntaxErrorIsExecution(t *testing.T) {
	t.Parallel()
	_, err := New(WithLogger(quietLogger())).ParseSource(context.Background(), "bad.go", "go", []byte("package main\nfunc (\n"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, parser.ErrExecution))
	assert.Contains(t, err.Error(), "bad.go")
}

func TestParseFile_UnknownExtension(t *testing.T) {
	t.Parallel()
	_, err := New().ParseFile(context.Background(), "notes.txt", nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, parser.ErrUnavailable))
}

func TestParseFile_MissingFile(t *testing.T) {
	t.Parallel()
	_, err := New().ParseFile(context.Background(), filepath.Join(t.TempDir(), "gone.go"), nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, fs.ErrNotExist))
}

func TestParseFile_ReadsDisk(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "main.go")
	require.NoError(t, os.WriteFile(path, []byte(goSource), 0o644))

	doc, err := New(WithLogger(quietLogger())).ParseFile(context.Background(), path, []string{"-ignored"})
	require.NoError(t, err)
	assert.Equal(t, path, doc.File())
	assert.Len(t, doc.Symbols, 4)
}

// --- Registry and scripts ---

func TestRegister_AllExtensions(t *testing.T) {
	t.Parallel()
	reg := parser.NewRegistry()
	Register(reg, New())

	for _, name := range []string{"a.go", "a.py", "a.ts", "a.js", "a.c", "a.cpp", "a.java", "a.rs", "a.rb", "a.php"} {
		assert.True(t, reg.Supports(name), name)
	}
	assert.False(t, reg.Supports("a.md"))
}

func TestParseSource_SymbolScriptFilters(t *testing.T) {
	t.Parallel()
	script := `
result := []
for _, s := range symbols {
    if s["kind"] != "function" {
        result.append(s)
    }
}
result
`
	rt := runtime.NewRuntime("", runtime.WithRuntimeFS(fstest.MapFS{
		"symbols/go.risor": {Data: []byte(script)},
	}), runtime.WithLogger(quietLogger()))

	doc := parseSrc(t, New(WithRuntime(rt), WithLogger(quietLogger())), "main.go", "go", goSource)
	assert.Equal(t, []string{
		"type:Server @main.go:3:6",
		"method:Address @main.go:7:18",
	}, defIDs(doc))
}

func TestParseSource_ResolvesAcrossFiles(t *testing.T) {
	t.Parallel()
	ts := New(WithLogger(quietLogger()))
	lib := parseSrc(t, ts, "lib.go", "go", "package main\n\nfunc Helper() int {\n\treturn 1\n}\n")
	app := parseSrc(t, ts, "app.go", "go", "package main\n\nfunc run() int {\n\treturn Helper()\n}\n")

	table := symtab.FromDocuments(lib, app)
	resolved := resolve.New(table).ResolveReferences([]*ast.Document{lib, app})

	refs := refsNamed(resolved[1], "Helper")
	require.Len(t, refs, 1)
	assert.Equal(t, "function:Helper @lib.go:3:6", refs[0].Target)
}
