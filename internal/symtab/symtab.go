// Package symtab is the in-memory cross-file symbol table.
//
// A Table indexes the top-level symbols of every added document three ways:
// by id, by name and by file. Insertion order is kept so lookups by name
// return candidates in the order their documents were added, which is what
// makes resolution deterministic.
package symtab

import (
	"github.com/jward/tuindex/internal/ast"
)

// Table is not safe for concurrent mutation. Readers may share a Table once
// it is no longer being built.
type Table struct {
	byID   map[string]ast.Symbol
	order  []string
	byName map[string][]string
	byFile map[string][]string
}

// New returns an empty table.
func New() *Table {
	return &Table{
		byID:   make(map[string]ast.Symbol),
		byName: make(map[string][]string),
		byFile: make(map[string][]string),
	}
}

// FromDocuments builds a table from docs in order.
func FromDocuments(docs ...*ast.Document) *Table {
	t := New()
	for _, d := range docs {
		t.AddDocument(d)
	}
	return t
}

// AddDocument indexes every top-level symbol of doc. When two symbols share
// an id the first one added wins and the later one is ignored everywhere.
func (t *Table) AddDocument(doc *ast.Document) {
	if doc == nil {
		return
	}
	for _, s := range doc.Symbols {
		t.Add(s)
	}
}

// Add indexes one symbol. It reports false if the id was already present.
func (t *Table) Add(s ast.Symbol) bool {
	id := s.ID()
	if _, dup := t.byID[id]; dup {
		return false
	}
	t.byID[id] = s
	t.order = append(t.order, id)
	t.byName[s.Name] = append(t.byName[s.Name], id)
	t.byFile[s.Loc.File] = append(t.byFile[s.Loc.File], id)
	return true
}

// SymbolsByName returns every symbol with the given name in insertion order.
func (t *Table) SymbolsByName(name string) []ast.Symbol {
	return t.collect(t.byName[name])
}

// SymbolsInFile returns every symbol located in file in insertion order.
func (t *Table) SymbolsInFile(file string) []ast.Symbol {
	return t.collect(t.byFile[file])
}

// SymbolByID returns the symbol with the given id.
func (t *Table) SymbolByID(id string) (ast.Symbol, bool) {
	s, ok := t.byID[id]
	return s, ok
}

// AllSymbols returns every symbol in insertion order.
func (t *Table) AllSymbols() []ast.Symbol {
	return t.collect(t.order)
}

// Files returns each file with at least one symbol, in first-seen order.
func (t *Table) Files() []string {
	seen := make(map[string]bool, len(t.byFile))
	var out []string
	for _, id := range t.order {
		f := t.byID[id].Loc.File
		if !seen[f] {
			seen[f] = true
			out = append(out, f)
		}
	}
	return out
}

// Len returns the number of distinct symbols.
func (t *Table) Len() int { return len(t.order) }

// CombineWith returns a new table holding t's symbols followed by other's.
// Neither input is modified; on id collision t's symbol wins.
func (t *Table) CombineWith(other *Table) *Table {
	out := New()
	for _, s := range t.AllSymbols() {
		out.Add(s)
	}
	if other != nil {
		for _, s := range other.AllSymbols() {
			out.Add(s)
		}
	}
	return out
}

func (t *Table) collect(ids []string) []ast.Symbol {
	if len(ids) == 0 {
		return nil
	}
	out := make([]ast.Symbol, len(ids))
	for i, id := range ids {
		out[i] = t.byID[id]
	}
	return out
}
