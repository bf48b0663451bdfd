package ast

import (
	"encoding/json"
	"fmt"
	"io"
	"iter"
)

// Document is one parsed file: the node tree plus the flat list of every
// symbol found in it. Symbols may overlap with nodes' SymbolRefs.
type Document struct {
	Root    *Node    `json:"root"`
	Symbols []Symbol `json:"symbols"`
}

// File returns the path of the document's root node.
func (d *Document) File() string {
	if d == nil || d.Root == nil {
		return ""
	}
	return d.Root.Loc.File
}

// Normalize drops empty Modifiers, Children and SymbolRefs slices from every
// node. Those fields are omitted from the encoded form when empty, so a
// normalized document compares equal to its decoded copy.
func (d *Document) Normalize() {
	if d == nil || d.Root == nil {
		return
	}
	for n := range d.Root.Walk() {
		if len(n.Modifiers) == 0 {
			n.Modifiers = nil
		}
		if len(n.Children) == 0 {
			n.Children = nil
		}
		if len(n.SymbolRefs) == 0 {
			n.SymbolRefs = nil
		}
	}
}

// AllSymbols returns a sequence of every top-level symbol followed by every
// node SymbolRefs entry, in tree order.
func (d *Document) AllSymbols() iter.Seq[Symbol] {
	return func(yield func(Symbol) bool) {
		for _, s := range d.Symbols {
			if !yield(s) {
				return
			}
		}
		if d.Root == nil {
			return
		}
		for n := range d.Root.Walk() {
			for _, s := range n.SymbolRefs {
				if !yield(s) {
					return
				}
			}
		}
	}
}

// SymbolAt returns the symbol whose name span on line covers column, the
// column range being [loc.Column, loc.Column+len(name)].
func (d *Document) SymbolAt(line, column int) (Symbol, bool) {
	for s := range d.AllSymbols() {
		if s.Loc.Line != line {
			continue
		}
		if column >= s.Loc.Column && column <= s.Loc.Column+len(s.Name) {
			return s, true
		}
	}
	return Symbol{}, false
}

// Encode writes the document as JSON.
func Encode(w io.Writer, doc *Document) error {
	if err := json.NewEncoder(w).Encode(doc); err != nil {
		return fmt.Errorf("encode document: %w", err)
	}
	return nil
}

// Decode reads one JSON document.
func Decode(r io.Reader) (*Document, error) {
	var doc Document
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	if doc.Root == nil {
		return nil, fmt.Errorf("decode document: missing root")
	}
	return &doc, nil
}

// Marshal returns the JSON form of doc.
func Marshal(doc *Document) ([]byte, error) {
	b, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("marshal document: %w", err)
	}
	return b, nil
}

// Unmarshal parses the JSON form produced by Marshal or Encode.
func Unmarshal(b []byte) (*Document, error) {
	var doc Document
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("unmarshal document: %w", err)
	}
	if doc.Root == nil {
		return nil, fmt.Errorf("unmarshal document: missing root")
	}
	return &doc, nil
}
