package store

import (
	"sync"

	"github.com/jward/tuindex/internal/ast"
	"github.com/jward/tuindex/internal/symtab"
)

// BatchedStore buffers definition and reference rows in memory so a whole
// index generation can be collected first and written by CommitBatch in a
// single transaction.
//
// Thread safety: the mutex protects slice appends, so documents may be
// added from several goroutines. Row order is then the order of the Add
// calls.
type BatchedStore struct {
	mu sync.Mutex

	Definitions []Definition
	References  []Reference
}

// NewBatchedStore returns an empty batch.
func NewBatchedStore() *BatchedStore {
	return &BatchedStore{}
}

// AddDefinition buffers sym as a definition row.
func (b *BatchedStore) AddDefinition(sym ast.Symbol) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Definitions = append(b.Definitions, Definition{
		SymbolID: sym.ID(),
		Name:     sym.Name,
		Kind:     string(sym.Kind),
		File:     sym.Loc.File,
		Line:     sym.Loc.Line,
		Column:   sym.Loc.Column,
	})
}

// AddReference buffers sym as a reference row. An empty Target is stored
// as NULL.
func (b *BatchedStore) AddReference(sym ast.Symbol) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.References = append(b.References, Reference{
		Name:           sym.Name,
		Kind:           string(sym.Kind),
		File:           sym.Loc.File,
		Line:           sym.Loc.Line,
		Column:         sym.Loc.Column,
		TargetSymbolID: nullableString(sym.Target),
	})
}

// AddTable buffers every symbol in table as a definition, in insertion order.
func (b *BatchedStore) AddTable(table *symtab.Table) {
	for _, sym := range table.AllSymbols() {
		b.AddDefinition(sym)
	}
}

// AddDocument buffers the reference rows of one resolved document: every
// node SymbolRefs entry, resolved or not, and every top-level symbol that
// points at some other symbol. Top-level definitions (Target equal to their
// own id) and unresolved top-level symbols are not references.
func (b *BatchedStore) AddDocument(doc *ast.Document) {
	if doc == nil {
		return
	}
	if doc.Root != nil {
		for n := range doc.Root.Walk() {
			for _, ref := range n.SymbolRefs {
				b.AddReference(ref)
			}
		}
	}
	for _, sym := range doc.Symbols {
		if sym.State() == ast.Resolved {
			b.AddReference(sym)
		}
	}
}

// Len returns the number of buffered rows.
func (b *BatchedStore) Len() (definitions, references int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.Definitions), len(b.References)
}
