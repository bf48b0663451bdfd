package builder

import "github.com/jward/tuindex/internal/ast"

// relocate returns doc with every location in the document's own file moved
// to path. Cache entries are shared by byte-identical files, so a hit may
// carry another file's paths. Definitions keep pointing at themselves.
func relocate(doc *ast.Document, path string) *ast.Document {
	from := doc.File()
	if from == "" || from == path {
		return doc
	}
	return &ast.Document{
		Root:    relocateNode(doc.Root, from, path),
		Symbols: relocateSymbols(doc.Symbols, from, path),
	}
}

func relocateNode(n *ast.Node, from, to string) *ast.Node {
	if n == nil {
		return nil
	}
	cp := *n
	if cp.Loc.File == from {
		cp.Loc.File = to
	}
	if n.Extent != nil {
		ext := *n.Extent
		if ext.Start.File == from {
			ext.Start.File = to
		}
		if ext.End.File == from {
			ext.End.File = to
		}
		cp.Extent = &ext
	}
	cp.SymbolRefs = relocateSymbols(n.SymbolRefs, from, to)
	if n.Children != nil {
		cp.Children = make([]*ast.Node, len(n.Children))
		for i, c := range n.Children {
			cp.Children[i] = relocateNode(c, from, to)
		}
	}
	return &cp
}

func relocateSymbols(syms []ast.Symbol, from, to string) []ast.Symbol {
	if syms == nil {
		return nil
	}
	out := make([]ast.Symbol, len(syms))
	for i, s := range syms {
		isDef := s.State() == ast.Definition
		if s.Loc.File == from {
			s.Loc.File = to
		}
		if isDef {
			s.Target = s.ID()
		}
		out[i] = s
	}
	return out
}
