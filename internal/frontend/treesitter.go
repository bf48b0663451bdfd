// Package frontend is a tree-sitter based parser.Parser. It turns a source
// file's concrete syntax tree into an ast.Document holding the file's
// definitions and unresolved references, optionally post-processed by a
// per-language Risor script.
package frontend

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/jward/tuindex/internal/ast"
	"github.com/jward/tuindex/internal/parser"
	"github.com/jward/tuindex/internal/runtime"
)

// TreeSitter parses every language runtime.Languages reports.
type TreeSitter struct {
	rt     *runtime.Runtime
	logger *slog.Logger
}

// Option configures a TreeSitter.
type Option func(*TreeSitter)

// WithRuntime enables symbol scripts: after conversion the document's
// symbols are passed through symbols/<language>.risor when present.
func WithRuntime(rt *runtime.Runtime) Option {
	return func(t *TreeSitter) {
		t.rt = rt
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(t *TreeSitter) {
		t.logger = l
	}
}

// New creates a TreeSitter front-end.
func New(opts ...Option) *TreeSitter {
	t := &TreeSitter{logger: slog.Default()}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Register adds t to reg for every extension of every supported language.
func Register(reg *parser.Registry, t *TreeSitter) {
	for _, lang := range runtime.Languages() {
		if _, ok := specFor(lang); ok {
			reg.Register(t, runtime.ExtensionsFor(lang)...)
		}
	}
}

// ParseFile implements parser.Parser. flags are accepted for interface
// compatibility; tree-sitter grammars take none.
func (t *TreeSitter) ParseFile(ctx context.Context, path string, flags []string) (*ast.Document, error) {
	lang, ok := runtime.LanguageForFile(path)
	if !ok {
		return nil, parser.NewUnavailable(path, "no grammar for extension")
	}
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("frontend: reading %s: %w", path, err)
	}
	return t.ParseSource(ctx, path, lang, src)
}

// ParseSource parses src as lang, recording path as the document's file.
func (t *TreeSitter) ParseSource(ctx context.Context, path, lang string, src []byte) (*ast.Document, error) {
	grammar, ok := runtime.ParserForLanguage(lang)
	if !ok {
		return nil, parser.NewUnavailable(path, "unsupported language %q", lang)
	}
	spec, ok := specFor(lang)
	if !ok {
		return nil, parser.NewUnavailable(path, "no symbol rules for %q", lang)
	}

	p := sitter.NewParser()
	defer p.Close()
	p.SetLanguage(grammar)

	tree, err := p.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, parser.NewExecution(path, err, "tree-sitter")
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.HasError() {
		at := root.StartPoint()
		if e := firstError(root); e != nil {
			at = e.StartPoint()
		}
		return nil, parser.NewExecution(path, nil, "syntax error at %d:%d", at.Row+1, at.Column+1)
	}

	doc := newConverter(path, src, spec).document(root)

	if t.rt != nil {
		syms, err := t.rt.ProcessSymbols(ctx, runtime.SymbolInput{
			Language: lang,
			File:     path,
			Tree:     tree,
			Source:   src,
			Grammar:  grammar,
			Symbols:  doc.Symbols,
		})
		if err != nil {
			return nil, parser.NewExecution(path, err, "symbol script")
		}
		doc.Symbols = syms
	}

	t.logger.Debug("frontend.parsed", "file", path, "language", lang, "symbols", len(doc.Symbols))
	return doc, nil
}
