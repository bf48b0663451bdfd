package store

import (
	"fmt"
	"strings"
)

// Pagination controls offset+limit paging on list/search results.
type Pagination struct {
	Offset int // skip this many results (default 0)
	Limit  int // max results to return (default 50, max 500)
}

const (
	DefaultLimit = 50
	MaxLimit     = 500
)

// Normalize returns a Pagination with defaults applied and bounds enforced.
func (p Pagination) Normalize() Pagination {
	if p.Offset < 0 {
		p.Offset = 0
	}
	if p.Limit <= 0 {
		p.Limit = DefaultLimit
	}
	if p.Limit > MaxLimit {
		p.Limit = MaxLimit
	}
	return p
}

// SortField specifies how to order results.
type SortField string

const (
	SortByName     SortField = "name"
	SortByKind     SortField = "kind"
	SortByFile     SortField = "file"
	SortByRefCount SortField = "ref_count"
)

// SortOrder specifies ascending or descending.
type SortOrder string

const (
	Asc  SortOrder = "asc"
	Desc SortOrder = "desc"
)

// Sort controls result ordering.
type Sort struct {
	Field SortField
	Order SortOrder
}

// DefinitionFilter narrows a search. All fields are optional.
type DefinitionFilter struct {
	Kinds      []string // match any of these kinds
	File       string   // exact file match
	PathPrefix string   // restrict to files under this path
}

// DefinitionResult is a definition plus the number of references resolved
// to it.
type DefinitionResult struct {
	Definition
	RefCount int
}

// PagedResult wraps a page of results with total count for pagination.
type PagedResult[T any] struct {
	Items      []T
	TotalCount int // total matching results (before pagination)
}

func sortColumn(field SortField) string {
	switch field {
	case SortByKind:
		return "d.kind"
	case SortByFile:
		return "d.file"
	case SortByRefCount:
		return "ref_count"
	default:
		return "d.name"
	}
}

func sortDirection(order SortOrder) string {
	if order == Desc {
		return "DESC"
	}
	return "ASC"
}

// normalizePathPrefix ensures a path prefix ends with "/" for correct LIKE matching.
func normalizePathPrefix(prefix string) string {
	if prefix == "" || strings.HasSuffix(prefix, "/") {
		return prefix
	}
	return prefix + "/"
}

// SearchDefinitions performs glob-style search on definition names. '*' is
// the wildcard; an empty pattern or "*" matches everything.
func (s *Store) SearchDefinitions(pattern string, filter DefinitionFilter, sort Sort, page Pagination) (*PagedResult[DefinitionResult], error) {
	page = page.Normalize()

	var where []string
	var args []any

	if pattern != "" && pattern != "*" {
		where = append(where, `d.name LIKE ? ESCAPE '\'`)
		args = append(args, globToLike(pattern))
	}
	if len(filter.Kinds) > 0 {
		where = append(where, "d.kind IN ("+placeholderList(len(filter.Kinds))+")")
		args = append(args, stringsToArgs(filter.Kinds)...)
	}
	if filter.File != "" {
		where = append(where, "d.file = ?")
		args = append(args, filter.File)
	}
	if prefix := normalizePathPrefix(filter.PathPrefix); prefix != "" {
		where = append(where, `d.file LIKE ? ESCAPE '\'`)
		args = append(args, escapeLike(prefix)+"%")
	}

	whereClause := ""
	if len(where) > 0 {
		whereClause = "WHERE " + strings.Join(where, " AND ")
	}

	var totalCount int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM definitions d "+whereClause, args...).Scan(&totalCount); err != nil {
		return nil, fmt.Errorf("search definitions: count: %w", err)
	}

	dataSQL := fmt.Sprintf(
		`SELECT d.id, d.symbol_id, d.name, d.kind, d.file, d.line, d."column",
			(SELECT COUNT(*) FROM "references" r WHERE r.target_symbol_id = d.symbol_id) AS ref_count
		 FROM definitions d
		 %s
		 ORDER BY %s %s, d.id ASC
		 LIMIT ? OFFSET ?`,
		whereClause, sortColumn(sort.Field), sortDirection(sort.Order),
	)
	dataArgs := append(append([]any{}, args...), page.Limit, page.Offset)

	rows, err := s.db.Query(dataSQL, dataArgs...)
	if err != nil {
		return nil, fmt.Errorf("search definitions: query: %w", err)
	}
	defer rows.Close()

	items := []DefinitionResult{}
	for rows.Next() {
		var r DefinitionResult
		if err := rows.Scan(&r.ID, &r.SymbolID, &r.Name, &r.Kind, &r.File, &r.Line, &r.Column, &r.RefCount); err != nil {
			return nil, fmt.Errorf("search definitions: scan: %w", err)
		}
		items = append(items, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("search definitions: rows: %w", err)
	}
	return &PagedResult[DefinitionResult]{Items: items, TotalCount: totalCount}, nil
}
