// Package resolve links unresolved references to definitions in a symbol
// table.
//
// Resolution is purely functional. Input documents are never modified; the
// returned documents share every node, slice and subtree that did not
// change, and only the path from the root to a changed node is copied.
package resolve

import (
	"github.com/jward/tuindex/internal/ast"
	"github.com/jward/tuindex/internal/symtab"
)

// Stats counts what a Resolver has done since it was created.
type Stats struct {
	Resolved   int
	Unresolved int
}

// Resolver resolves references against one table.
type Resolver struct {
	table *symtab.Table
	stats Stats
}

// New returns a resolver backed by table.
func New(table *symtab.Table) *Resolver {
	return &Resolver{table: table}
}

// Stats returns cumulative counts.
func (r *Resolver) Stats() Stats { return r.stats }

// ResolveReferences returns one document per input, in order. A document
// with nothing to resolve is returned as the same pointer.
func (r *Resolver) ResolveReferences(docs []*ast.Document) []*ast.Document {
	out := make([]*ast.Document, len(docs))
	for i, d := range docs {
		out[i] = r.Resolve(d)
	}
	return out
}

// Resolve resolves a single document.
func (r *Resolver) Resolve(doc *ast.Document) *ast.Document {
	if doc == nil {
		return nil
	}
	syms, symsChanged := r.resolveSymbols(doc.Symbols)
	root, rootChanged := r.resolveNode(doc.Root)
	if !symsChanged && !rootChanged {
		return doc
	}
	return &ast.Document{Root: root, Symbols: syms}
}

// lookup returns the id of the first table symbol with the same name and
// kind at a different location.
func (r *Resolver) lookup(s ast.Symbol) (string, bool) {
	for _, cand := range r.table.SymbolsByName(s.Name) {
		if cand.Kind == s.Kind && cand.Loc != s.Loc {
			return cand.ID(), true
		}
	}
	return "", false
}

func (r *Resolver) resolveSymbols(in []ast.Symbol) ([]ast.Symbol, bool) {
	var out []ast.Symbol
	for i, s := range in {
		if s.Target != "" {
			continue
		}
		id, ok := r.lookup(s)
		if !ok {
			r.stats.Unresolved++
			continue
		}
		r.stats.Resolved++
		if out == nil {
			out = make([]ast.Symbol, len(in))
			copy(out, in)
		}
		out[i] = s.ResolvedTo(id)
	}
	if out == nil {
		return in, false
	}
	return out, true
}

func (r *Resolver) resolveNode(n *ast.Node) (*ast.Node, bool) {
	if n == nil {
		return nil, false
	}
	refs, refsChanged := r.resolveSymbols(n.SymbolRefs)

	var children []*ast.Node
	for i, c := range n.Children {
		nc, changed := r.resolveNode(c)
		if !changed {
			continue
		}
		if children == nil {
			children = make([]*ast.Node, len(n.Children))
			copy(children, n.Children)
		}
		children[i] = nc
	}

	if !refsChanged && children == nil {
		return n, false
	}
	cp := *n
	cp.SymbolRefs = refs
	if children != nil {
		cp.Children = children
	}
	return &cp, true
}
