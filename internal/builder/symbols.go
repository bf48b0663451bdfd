package builder

import (
	"context"
	"fmt"
	"time"

	"github.com/jward/tuindex/internal/ast"
	"github.com/jward/tuindex/internal/resolve"
	"github.com/jward/tuindex/internal/store"
	"github.com/jward/tuindex/internal/symtab"
)

// SymbolOptions controls BuildWithSymbols.
type SymbolOptions struct {
	Flags []string
	// Index, when set, is rebuilt from the resulting table and documents.
	Index *store.Store
}

// Result is one full generation: resolved documents, the table they were
// resolved against, and the input order.
type Result struct {
	Documents map[string]*ast.Document
	Table     *symtab.Table
	Order     []string
	Stats     Stats
}

// Ordered returns the documents in input order.
func (r *Result) Ordered() []*ast.Document {
	out := make([]*ast.Document, 0, len(r.Order))
	for _, p := range r.Order {
		out = append(out, r.Documents[p])
	}
	return out
}

// BuildWithSymbols builds files, populates a fresh table from every
// document in input order, resolves references against it and optionally
// rebuilds the index.
func (b *Builder) BuildWithSymbols(ctx context.Context, files []string, opts SymbolOptions) (*Result, error) {
	start := time.Now()
	docs, err := b.Build(ctx, files, opts.Flags)
	if err != nil {
		return nil, err
	}
	order, err := normalizePaths(files)
	if err != nil {
		return nil, err
	}

	ordered := make([]*ast.Document, len(order))
	for i, p := range order {
		ordered[i] = docs[p]
	}

	table := symtab.FromDocuments(ordered...)
	r := resolve.New(table)
	resolved := r.ResolveReferences(ordered)

	res := &Result{
		Documents: make(map[string]*ast.Document, len(order)),
		Table:     table,
		Order:     order,
		Stats:     b.last,
	}
	for i, p := range order {
		res.Documents[p] = resolved[i]
	}
	rs := r.Stats()
	res.Stats.Resolved = rs.Resolved
	res.Stats.Unresolved = rs.Unresolved

	if opts.Index != nil {
		if err := opts.Index.RebuildFromSymbolTable(table, resolved); err != nil {
			return nil, fmt.Errorf("rebuild index: %w", err)
		}
	}
	res.Stats.Duration = time.Since(start)
	b.last = res.Stats

	b.logger.Info("build.symbols",
		"symbols", table.Len(),
		"resolved", rs.Resolved,
		"unresolved", rs.Unresolved,
		"indexed", opts.Index != nil,
	)
	return res, nil
}
