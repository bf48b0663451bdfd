package ast

import "iter"

// Node is one element of a parsed tree. A node exclusively owns its
// Children and SymbolRefs; trees never share subtrees across documents
// except through the resolver's copy-on-write, which only shares values
// that are never mutated afterwards.
type Node struct {
	Kind       Kind           `json:"kind"`
	Name       string         `json:"name"`
	Loc        SourceLocation `json:"loc"`
	Type       string         `json:"type,omitempty"`
	Value      string         `json:"value,omitempty"`
	Modifiers  []string       `json:"modifiers,omitempty"`
	Children   []*Node        `json:"children,omitempty"`
	SymbolRefs []Symbol       `json:"symbol_refs,omitempty"`
	USR        string         `json:"usr,omitempty"`
	Extent     *SourceExtent  `json:"extent,omitempty"`
}

// Walk returns a pre-order sequence over n and all of its descendants.
// The sequence is lazy and may be ranged over any number of times.
func (n *Node) Walk() iter.Seq[*Node] {
	return func(yield func(*Node) bool) {
		walk(n, yield)
	}
}

func walk(n *Node, yield func(*Node) bool) bool {
	if n == nil {
		return true
	}
	if !yield(n) {
		return false
	}
	for _, c := range n.Children {
		if !walk(c, yield) {
			return false
		}
	}
	return true
}

// Count returns the number of nodes in the tree rooted at n.
func (n *Node) Count() int {
	count := 0
	for range n.Walk() {
		count++
	}
	return count
}
