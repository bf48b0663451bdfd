package runtime

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/risor-io/risor/object"
	sitter "github.com/smacker/go-tree-sitter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/tuindex/internal/ast"
)

const goTestSource = `package main

import "fmt"

func Greet(name string) string {
	return fmt.Sprintf("Hello, %s!", name)
}

func Add(a, b int) int {
	return a + b
}

type Server struct {
	Host string
	Port int
}

func (s *Server) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}
`

func quiet() RuntimeOption {
	return WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func parseGo(t *testing.T, src string) (*sitter.Tree, *sitter.Language) {
	t.Helper()
	lang, ok := ParserForLanguage("go")
	require.True(t, ok)
	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(lang)
	tree, err := parser.ParseCtx(context.Background(), nil, []byte(src))
	require.NoError(t, err)
	return tree, lang
}

// --- Language detection ---

func TestLanguageForFile(t *testing.T) {
	t.Parallel()

	tests := []struct {
		path string
		want string
		ok   bool
	}{
		{"main.go", "go", true},
		{"app.ts", "typescript", true},
		{"app.tsx", "typescript", true},
		{"app.mjs", "javascript", true},
		{"script.py", "python", true},
		{"stub.pyi", "python", true},
		{"lib.rs", "rust", true},
		{"util.h", "c", true},
		{"util.hh", "cpp", true},
		{"App.java", "java", true},
		{"index.php", "php", true},
		{"app.rb", "ruby", true},
		{"file.txt", "", false},
		{"Makefile", "", false},
		{"path/to/file.GO", "go", true},
	}
	for _, tt := range tests {
		got, ok := LanguageForFile(tt.path)
		assert.Equal(t, tt.ok, ok, tt.path)
		assert.Equal(t, tt.want, got, tt.path)
	}
}

func TestParserForLanguage(t *testing.T) {
	t.Parallel()
	for _, lang := range Languages() {
		l, ok := ParserForLanguage(lang)
		assert.True(t, ok, lang)
		assert.NotNil(t, l, lang)
		assert.NotEmpty(t, ExtensionsFor(lang), lang)
	}
	assert.Len(t, Languages(), 10)

	_, ok := ParserForLanguage("cobol")
	assert.False(t, ok)
}

// --- Host functions ---

func TestRunSource_ParseSrcAndNodeText(t *testing.T) {
	rt := NewRuntime("", quiet())
	script := `
tree := parse_src(src, "go")
root := tree.RootNode()
names := []
count := int(root.NamedChildCount())
for i := 0; i < count; i++ {
    child := root.NamedChild(i)
    if child.Type() == "function_declaration" {
        names.append(node_text(node_child(child, "name")))
    }
}
names
`
	result, err := rt.RunSource(context.Background(), script, map[string]any{"src": goTestSource})
	require.NoError(t, err)
	list, ok := result.(*object.List)
	require.True(t, ok)
	require.Len(t, list.Value(), 2)
	assert.Equal(t, "Greet", list.Value()[0].(*object.String).Value())
	assert.Equal(t, "Add", list.Value()[1].(*object.String).Value())
}

func TestRunSource_ParseFromDisk(t *testing.T) {
	dir := t.TempDir()
	goFile := filepath.Join(dir, "test.go")
	require.NoError(t, os.WriteFile(goFile, []byte(goTestSource), 0o644))

	rt := NewRuntime("", quiet())
	script := `
tree := parse(test_file, "go")
matches := query("(method_declaration name: (field_identifier) @name)", tree.RootNode())
assert(len(matches) == 1)
node_text(matches[0]["name"])
`
	result, err := rt.RunSource(context.Background(), script, map[string]any{"test_file": goFile})
	require.NoError(t, err)
	assert.Equal(t, "Address", result.(*object.String).Value())
}

func TestRunSource_QueryInvalidPattern(t *testing.T) {
	rt := NewRuntime("", quiet())
	script := `
tree := parse_src(src, "go")
query("(not_a_real_node_type @x)", tree.RootNode())
`
	_, err := rt.RunSource(context.Background(), script, map[string]any{"src": goTestSource})
	require.Error(t, err)
}

func TestRunSource_NodePos(t *testing.T) {
	rt := NewRuntime("", quiet())
	script := `
tree := parse_src(src, "go")
matches := query("(function_declaration name: (identifier) @name)", tree.RootNode())
node_pos(matches[0]["name"])
`
	result, err := rt.RunSource(context.Background(), script, map[string]any{"src": goTestSource})
	require.NoError(t, err)
	m := result.(*object.Map).Value()
	assert.EqualValues(t, 5, m["line"].(*object.Int).Value())
	assert.EqualValues(t, 6, m["column"].(*object.Int).Value())
}

// --- Script loading ---

func TestRunScript_LoadsFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "test.risor"), []byte(`1 + 1`), 0o644))

	rt := NewRuntime(dir, quiet())
	result, err := rt.RunScript(context.Background(), "test.risor", nil)
	require.NoError(t, err)
	assert.EqualValues(t, 2, result.(*object.Int).Value())
	assert.True(t, rt.HasScript("test.risor"))
	assert.False(t, rt.HasScript("other.risor"))
}

func TestRunScript_MissingFile(t *testing.T) {
	rt := NewRuntime(t.TempDir(), quiet())
	_, err := rt.RunScript(context.Background(), "nonexistent.risor", nil)
	require.Error(t, err)
}

func TestLoadScript_FromFS(t *testing.T) {
	t.Parallel()
	mapFS := fstest.MapFS{
		"symbols/go.risor": &fstest.MapFile{Data: []byte(`x := 42`)},
	}
	rt := NewRuntime("", WithRuntimeFS(mapFS))

	got, err := rt.LoadScript("/symbols/go.risor")
	require.NoError(t, err)
	assert.Equal(t, `x := 42`, got)
	assert.True(t, rt.HasScript(SymbolScriptPath("go")))

	_, err = rt.LoadScript("nonexistent.risor")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "from fs")
}

func TestImport_FSImporter(t *testing.T) {
	mapFS := fstest.MapFS{
		"lib_helpers.risor": &fstest.MapFile{Data: []byte(`
func greet(name) {
	return "hello " + name
}
`)},
	}
	rt := NewRuntime("", WithRuntimeFS(mapFS), quiet())
	script := `
import lib_helpers
lib_helpers.greet("world")
`
	result, err := rt.RunSource(context.Background(), script, nil)
	require.NoError(t, err)
	assert.Equal(t, "hello world", result.(*object.String).Value())
}

func TestImport_GlobalsAvailableInImportedModules(t *testing.T) {
	mapFS := fstest.MapFS{
		"helper.risor": &fstest.MapFile{Data: []byte(`
func do_log(msg) {
	log.Info(msg)
}
`)},
	}
	rt := NewRuntime("", WithRuntimeFS(mapFS), quiet())
	_, err := rt.RunSource(context.Background(), "import helper\nhelper.do_log(\"test message\")", nil)
	require.NoError(t, err)
}

func TestScriptsHash(t *testing.T) {
	t.Parallel()
	a := NewRuntime("", WithRuntimeFS(fstest.MapFS{"symbols/go.risor": {Data: []byte("symbols")}}))
	b := NewRuntime("", WithRuntimeFS(fstest.MapFS{"symbols/go.risor": {Data: []byte("symbols")}}))
	c := NewRuntime("", WithRuntimeFS(fstest.MapFS{"symbols/go.risor": {Data: []byte("nil")}}))

	assert.Equal(t, a.ScriptsHash(), b.ScriptsHash())
	assert.NotEqual(t, a.ScriptsHash(), c.ScriptsHash())
	assert.Len(t, a.ScriptsHash(), 64)
}

// --- Symbol scripts ---

func sampleSymbols() []ast.Symbol {
	loc := func(line, col int) ast.SourceLocation {
		return ast.SourceLocation{File: "main.go", Line: line, Column: col}
	}
	return []ast.Symbol{
		ast.NewDefinition("Greet", ast.KindFunction, loc(5, 6)),
		ast.NewDefinition("tmp", ast.KindVariable, loc(6, 2)),
		ast.NewReference("Add", ast.KindFunction, loc(7, 3)),
	}
}

func TestProcessSymbols_NoScriptIsIdentity(t *testing.T) {
	t.Parallel()
	rt := NewRuntime(t.TempDir(), quiet())
	in := sampleSymbols()
	out, err := rt.ProcessSymbols(context.Background(), SymbolInput{Language: "go", File: "main.go", Symbols: in})
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestProcessSymbols_FiltersAndRoundTrips(t *testing.T) {
	t.Parallel()
	script := `
result := []
for _, s := range symbols {
    if s["kind"] != "variable" {
        result.append(s)
    }
}
result
`
	rt := NewRuntime("", WithRuntimeFS(fstest.MapFS{"symbols/go.risor": {Data: []byte(script)}}), quiet())
	in := sampleSymbols()
	out, err := rt.ProcessSymbols(context.Background(), SymbolInput{Language: "go", File: "main.go", Symbols: in})
	require.NoError(t, err)
	assert.Equal(t, []ast.Symbol{in[0], in[2]}, out)
}

func TestProcessSymbols_AddsSymbolsFromTree(t *testing.T) {
	t.Parallel()
	script := `
result := symbols
for _, m := range query("(type_spec name: (type_identifier) @name)", root) {
    pos := node_pos(m["name"])
    result.append({"name": node_text(m["name"]), "kind": "type", "line": pos["line"], "column": pos["column"], "definition": true})
}
result
`
	rt := NewRuntime("", WithRuntimeFS(fstest.MapFS{"symbols/go.risor": {Data: []byte(script)}}), quiet())
	tree, lang := parseGo(t, goTestSource)
	defer tree.Close()

	out, err := rt.ProcessSymbols(context.Background(), SymbolInput{
		Language: "go",
		File:     "main.go",
		Tree:     tree,
		Source:   []byte(goTestSource),
		Grammar:  lang,
	})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "type:Server @main.go:13:6", out[0].ID())
	assert.Equal(t, ast.Definition, out[0].State())

	// The tree is not retained after the run.
	rt.trees.mu.RLock()
	defer rt.trees.mu.RUnlock()
	assert.Empty(t, rt.trees.byRoot)
}

func TestProcessSymbols_BadResult(t *testing.T) {
	t.Parallel()
	rt := NewRuntime("", WithRuntimeFS(fstest.MapFS{"symbols/go.risor": {Data: []byte(`42`)}}), quiet())
	_, err := rt.ProcessSymbols(context.Background(), SymbolInput{Language: "go", File: "main.go"})
	require.Error(t, err)
}
