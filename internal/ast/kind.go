package ast

import "strings"

// Kind classifies a symbol or node. The taxonomy is open: front-ends for
// different languages may emit any string, and the well-known constants
// below are only the values the rest of the pipeline knows how to label.
type Kind string

const (
	KindFunction  Kind = "function"
	KindMethod    Kind = "method"
	KindVariable  Kind = "variable"
	KindConstant  Kind = "constant"
	KindParameter Kind = "parameter"
	KindField     Kind = "field"
	KindType      Kind = "type"
	KindClass     Kind = "class"
	KindInterface Kind = "interface"
	KindEnum      Kind = "enum"
	KindModule    Kind = "module"
	KindMacro     Kind = "macro"
)

var knownKinds = map[Kind]bool{
	KindFunction:  true,
	KindMethod:    true,
	KindVariable:  true,
	KindConstant:  true,
	KindParameter: true,
	KindField:     true,
	KindType:      true,
	KindClass:     true,
	KindInterface: true,
	KindEnum:      true,
	KindModule:    true,
	KindMacro:     true,
}

// ParseKind trims surrounding whitespace. Case is preserved because symbol
// ids embed the kind verbatim.
func ParseKind(s string) Kind {
	return Kind(strings.TrimSpace(s))
}

// Known reports whether k is one of the well-known kinds. Unknown kinds are
// still valid; this only drives presentation.
func (k Kind) Known() bool {
	return knownKinds[Kind(strings.ToLower(string(k)))]
}

func (k Kind) String() string { return string(k) }
