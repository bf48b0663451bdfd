package tuindex

import (
	"github.com/jward/tuindex/internal/builder"
	"github.com/jward/tuindex/internal/store"
)

// Public type aliases for internal types used in the Engine and
// QueryBuilder APIs. External consumers use these names; no conversion is
// needed.

type Store = store.Store
type Definition = store.Definition
type Reference = store.Reference
type Counts = store.Counts
type DefinitionFilter = store.DefinitionFilter
type DefinitionResult = store.DefinitionResult
type Pagination = store.Pagination
type Sort = store.Sort
type SortField = store.SortField
type SortOrder = store.SortOrder
type PagedResult[T any] = store.PagedResult[T]
type Stats = builder.Stats

const (
	SortByName     = store.SortByName
	SortByKind     = store.SortByKind
	SortByFile     = store.SortByFile
	SortByRefCount = store.SortByRefCount
	Asc            = store.Asc
	Desc           = store.Desc
)
