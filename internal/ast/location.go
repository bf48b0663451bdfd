package ast

import "fmt"

// SourceLocation is a position in a source file. Line and Column are
// 1-based; Column counts bytes from the start of the line, as tree-sitter
// reports it.
type SourceLocation struct {
	File   string `json:"file"`
	Line   int    `json:"line"`
	Column int    `json:"column"`
}

func (l SourceLocation) String() string {
	return fmt.Sprintf("%s:%d:%d", l.File, l.Line, l.Column)
}

// Before reports whether l sorts before o (file, then line, then column).
func (l SourceLocation) Before(o SourceLocation) bool {
	if l.File != o.File {
		return l.File < o.File
	}
	if l.Line != o.Line {
		return l.Line < o.Line
	}
	return l.Column < o.Column
}

// SourceExtent is the source range covered by a node.
type SourceExtent struct {
	Start SourceLocation `json:"start"`
	End   SourceLocation `json:"end"`
}

// Contains reports whether (line, column) falls inside the extent, inclusive.
func (e SourceExtent) Contains(line, column int) bool {
	if line < e.Start.Line || line > e.End.Line {
		return false
	}
	if line == e.Start.Line && column < e.Start.Column {
		return false
	}
	if line == e.End.Line && column > e.End.Column {
		return false
	}
	return true
}
