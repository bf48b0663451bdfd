package store

// Definition is one row of the definitions table.
type Definition struct {
	ID       int64
	SymbolID string
	Name     string
	Kind     string
	File     string
	Line     int
	Column   int
}

// Reference is one occurrence of a name. TargetSymbolID is nil when the
// reference was never resolved.
type Reference struct {
	ID             int64
	Name           string
	Kind           string
	File           string
	Line           int
	Column         int
	TargetSymbolID *string
}

// Resolved reports whether the reference points at a symbol id.
func (r *Reference) Resolved() bool {
	return r.TargetSymbolID != nil && *r.TargetSymbolID != ""
}

// Counts summarizes index contents.
type Counts struct {
	Definitions int
	References  int
	Resolved    int
	Files       int
}
