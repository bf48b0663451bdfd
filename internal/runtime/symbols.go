package runtime

import (
	"context"
	"fmt"

	"github.com/risor-io/risor/object"
	sitter "github.com/smacker/go-tree-sitter"

	"github.com/jward/tuindex/internal/ast"
)

// SymbolInput is what a symbol script sees for one file.
type SymbolInput struct {
	Language string
	File     string
	Tree     *sitter.Tree // may be nil
	Source   []byte
	Grammar  *sitter.Language
	Symbols  []ast.Symbol
}

// ProcessSymbols runs symbols/<language>.risor over in and returns the
// symbol list the script evaluates to. Without a script the input symbols
// are returned unchanged.
//
// Script globals: symbols (list of maps with name, kind, line, column,
// target and definition keys), file_path, language and root (the tree's
// root node, or nil). A script that evaluates to nil keeps the input.
func (r *Runtime) ProcessSymbols(ctx context.Context, in SymbolInput) ([]ast.Symbol, error) {
	path := SymbolScriptPath(in.Language)
	if !r.HasScript(path) {
		return in.Symbols, nil
	}

	root := object.Object(object.Nil)
	if in.Tree != nil {
		r.trees.add(in.Tree, in.Source, in.Grammar)
		defer r.trees.remove(in.Tree)
		p, err := object.NewProxy(in.Tree.RootNode())
		if err != nil {
			return nil, fmt.Errorf("runtime: proxy root: %w", err)
		}
		root = p
	}

	result, err := r.RunScript(ctx, path, map[string]any{
		"symbols":   symbolsToList(in.Symbols),
		"file_path": in.File,
		"language":  in.Language,
		"root":      root,
	})
	if err != nil {
		return nil, err
	}
	if result == nil || result == object.Nil {
		return in.Symbols, nil
	}
	out, err := listToSymbols(result, in.File)
	if err != nil {
		return nil, fmt.Errorf("runtime: script %s: %w", path, err)
	}
	return out, nil
}

// symbolsToList converts symbols to a Risor list of maps.
func symbolsToList(syms []ast.Symbol) *object.List {
	results := make([]object.Object, 0, len(syms))
	for _, s := range syms {
		results = append(results, object.NewMap(map[string]object.Object{
			"name":       object.NewString(s.Name),
			"kind":       object.NewString(string(s.Kind)),
			"file":       object.NewString(s.Loc.File),
			"line":       object.NewInt(int64(s.Loc.Line)),
			"column":     object.NewInt(int64(s.Loc.Column)),
			"target":     object.NewString(s.Target),
			"definition": object.NewBool(s.State() == ast.Definition),
		}))
	}
	return object.NewList(results)
}

// listToSymbols converts a script result back into symbols. Entries without
// a file are placed in defaultFile.
func listToSymbols(obj object.Object, defaultFile string) ([]ast.Symbol, error) {
	list, ok := obj.(*object.List)
	if !ok {
		return nil, fmt.Errorf("expected list of symbols, got %s", obj.Type())
	}
	var out []ast.Symbol
	for i, item := range list.Value() {
		m, err := extractMap(item)
		if err != nil {
			return nil, fmt.Errorf("symbol %d: %w", i, err)
		}
		name := getString(m, "name")
		if name == "" {
			return nil, fmt.Errorf("symbol %d: missing name", i)
		}
		loc := ast.SourceLocation{
			File:   getStringDefault(m, "file", defaultFile),
			Line:   getInt(m, "line"),
			Column: getInt(m, "column"),
		}
		kind := ast.ParseKind(getStringDefault(m, "kind", string(ast.KindVariable)))
		var s ast.Symbol
		switch {
		case getBool(m, "definition"):
			s = ast.NewDefinition(name, kind, loc)
		case getString(m, "target") != "":
			s = ast.NewReference(name, kind, loc).ResolvedTo(getString(m, "target"))
		default:
			s = ast.NewReference(name, kind, loc)
		}
		out = append(out, s)
	}
	return out, nil
}

// --- Map extraction helpers ---

func extractMap(obj object.Object) (map[string]object.Object, error) {
	m, ok := obj.(*object.Map)
	if !ok {
		return nil, fmt.Errorf("expected map, got %s", obj.Type())
	}
	return m.Value(), nil
}

func getString(m map[string]object.Object, key string) string {
	v, ok := m[key]
	if !ok {
		return ""
	}
	if s, ok := v.(*object.String); ok {
		return s.Value()
	}
	return ""
}

func getStringDefault(m map[string]object.Object, key, def string) string {
	v := getString(m, key)
	if v == "" {
		return def
	}
	return v
}

func getInt(m map[string]object.Object, key string) int {
	v, ok := m[key]
	if !ok {
		return 0
	}
	if i, ok := v.(*object.Int); ok {
		return int(i.Value())
	}
	if f, ok := v.(*object.Float); ok {
		return int(f.Value())
	}
	return 0
}

func getBool(m map[string]object.Object, key string) bool {
	v, ok := m[key]
	if !ok {
		return false
	}
	if b, ok := v.(*object.Bool); ok {
		return b.Value()
	}
	return false
}
