package ast

import "fmt"

// Symbol is a definition of, or a reference to, a name.
//
// Exactly one of three states holds, derived from Target:
//   - unresolved reference: Target is empty
//   - resolved reference:   Target is the id of another symbol
//   - definition:           Target is the symbol's own id
type Symbol struct {
	Name     string         `json:"name"`
	Kind     Kind           `json:"kind"`
	Loc      SourceLocation `json:"loc"`
	RefersTo string         `json:"refers_to,omitempty"`
	Target   string         `json:"target,omitempty"`
}

// SymbolState is the derived state of a Symbol.
type SymbolState int

const (
	Unresolved SymbolState = iota
	Resolved
	Definition
)

func (s SymbolState) String() string {
	switch s {
	case Resolved:
		return "resolved"
	case Definition:
		return "definition"
	default:
		return "unresolved"
	}
}

// SymbolID returns the deterministic id "{kind}:{name} @{file}:{line}:{column}".
// It depends only on the symbol's own kind, name and location.
func SymbolID(kind Kind, name string, loc SourceLocation) string {
	return fmt.Sprintf("%s:%s @%s:%d:%d", kind, name, loc.File, loc.Line, loc.Column)
}

// ID returns the symbol's deterministic id.
func (s Symbol) ID() string {
	return SymbolID(s.Kind, s.Name, s.Loc)
}

// State reports whether s is a definition, a resolved or an unresolved reference.
func (s Symbol) State() SymbolState {
	switch {
	case s.Target == "":
		return Unresolved
	case s.Target == s.ID():
		return Definition
	default:
		return Resolved
	}
}

// NewDefinition returns a symbol marked as the definition of its own id.
func NewDefinition(name string, kind Kind, loc SourceLocation) Symbol {
	s := Symbol{Name: name, Kind: kind, Loc: loc}
	s.Target = s.ID()
	return s
}

// NewReference returns an unresolved reference.
func NewReference(name string, kind Kind, loc SourceLocation) Symbol {
	return Symbol{Name: name, Kind: kind, Loc: loc}
}

// ResolvedTo returns a copy of s pointing at target.
func (s Symbol) ResolvedTo(target string) Symbol {
	s.Target = target
	s.RefersTo = target
	return s
}
