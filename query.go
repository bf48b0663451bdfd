package tuindex

import (
	"fmt"

	"github.com/jward/tuindex/internal/store"
)

// QueryBuilder answers queries from the persisted symbol index.
type QueryBuilder struct {
	store *store.Store
}

// NewQueryBuilder queries s directly, without an Engine.
func NewQueryBuilder(s *Store) *QueryBuilder {
	return &QueryBuilder{store: s}
}

// Location is an indexed symbol occurrence.
type Location struct {
	File     string `json:"file"`
	Line     int    `json:"line"`
	Column   int    `json:"column"`
	Name     string `json:"name"`
	Kind     string `json:"kind"`
	SymbolID string `json:"symbol_id,omitempty"` // definitions and resolved references
}

func definitionLocation(d *store.Definition) Location {
	return Location{File: d.File, Line: d.Line, Column: d.Column, Name: d.Name, Kind: d.Kind, SymbolID: d.SymbolID}
}

func referenceLocation(r *store.Reference) Location {
	loc := Location{File: r.File, Line: r.Line, Column: r.Column, Name: r.Name, Kind: r.Kind}
	if r.Resolved() {
		loc.SymbolID = *r.TargetSymbolID
	}
	return loc
}

// DefinitionAt finds the definition(s) of the symbol at the given position.
// A resolved reference yields its target; a definition yields itself.
func (q *QueryBuilder) DefinitionAt(file string, line, col int) ([]Location, error) {
	refs, err := q.store.ReferencesAt(absPath(file), line, col)
	if err != nil {
		return nil, fmt.Errorf("definition at: %w", err)
	}

	var locations []Location
	seen := map[string]bool{}
	add := func(d *store.Definition) {
		if d != nil && !seen[d.SymbolID] {
			seen[d.SymbolID] = true
			locations = append(locations, definitionLocation(d))
		}
	}

	for _, r := range refs {
		if !r.Resolved() {
			continue
		}
		d, err := q.store.DefinitionByID(*r.TargetSymbolID)
		if err != nil {
			return nil, fmt.Errorf("definition at: %w", err)
		}
		add(d)
	}

	defs, err := q.store.DefinitionsAt(absPath(file), line, col)
	if err != nil {
		return nil, fmt.Errorf("definition at: %w", err)
	}
	for _, d := range defs {
		add(d)
	}
	return locations, nil
}

// ReferencesTo finds all locations resolved to symbolID.
func (q *QueryBuilder) ReferencesTo(symbolID string) ([]Location, error) {
	refs, err := q.store.ReferencesTo(symbolID)
	if err != nil {
		return nil, err
	}
	return referenceLocations(refs), nil
}

// ReferencesByName finds every occurrence of name, resolved or not.
func (q *QueryBuilder) ReferencesByName(name string) ([]Location, error) {
	refs, err := q.store.ReferencesByName(name)
	if err != nil {
		return nil, err
	}
	return referenceLocations(refs), nil
}

// DefinitionsByName finds every definition of name.
func (q *QueryBuilder) DefinitionsByName(name string) ([]Location, error) {
	defs, err := q.store.DefinitionsByName(name)
	if err != nil {
		return nil, err
	}
	out := make([]Location, 0, len(defs))
	for _, d := range defs {
		out = append(out, definitionLocation(d))
	}
	return out, nil
}

// SearchSymbols matches definitions by glob pattern ("*" wildcard) with
// filtering, sorting and pagination.
func (q *QueryBuilder) SearchSymbols(pattern string, filter DefinitionFilter, sort Sort, page Pagination) (*PagedResult[DefinitionResult], error) {
	return q.store.SearchDefinitions(pattern, filter, sort, page)
}

// Counts summarizes the index.
func (q *QueryBuilder) Counts() (Counts, error) {
	return q.store.Counts()
}

func referenceLocations(refs []*store.Reference) []Location {
	out := make([]Location, 0, len(refs))
	for _, r := range refs {
		out = append(out, referenceLocation(r))
	}
	return out
}
