package frontend

import (
	sitter "github.com/smacker/go-tree-sitter"

	"github.com/jward/tuindex/internal/ast"
)

// maxValueLen bounds the leaf text kept in Node.Value. Longer leaves
// (comments, big literals) keep no value.
const maxValueLen = 80

// converter turns one concrete syntax tree into an ast.Document. It keeps
// named nodes only.
type converter struct {
	file     string
	src      []byte
	spec     *langSpec
	declared map[uint32]bool // start bytes of declaration names
	symbols  []ast.Symbol
}

func newConverter(file string, src []byte, spec *langSpec) *converter {
	return &converter{
		file:     file,
		src:      src,
		spec:     spec,
		declared: make(map[uint32]bool),
	}
}

func (c *converter) document(root *sitter.Node) *ast.Document {
	return &ast.Document{Root: c.node(root), Symbols: c.symbols}
}

// node converts n and its named descendants. Declarations are visited
// before their children so the name leaf is known not to be a reference.
func (c *converter) node(n *sitter.Node) *ast.Node {
	out := &ast.Node{Kind: ast.Kind(n.Type()), Loc: c.loc(n.StartPoint())}

	if kind, ok := c.definition(n); ok {
		if name := declName(n); name != nil {
			text := c.text(name)
			out.Kind = kind
			out.Name = text
			out.Extent = &ast.SourceExtent{Start: out.Loc, End: c.endLoc(n.EndPoint())}
			c.declared[name.StartByte()] = true
			c.symbols = append(c.symbols, ast.NewDefinition(text, kind, c.loc(name.StartPoint())))
		}
	}

	count := int(n.NamedChildCount())
	if count == 0 {
		c.leaf(n, out)
		return out
	}
	out.Children = make([]*ast.Node, 0, count)
	for i := 0; i < count; i++ {
		out.Children = append(out.Children, c.node(n.NamedChild(i)))
	}
	return out
}

func (c *converter) leaf(n *sitter.Node, out *ast.Node) {
	text := c.text(n)
	if !identTypes[n.Type()] {
		if len(text) <= maxValueLen {
			out.Value = text
		}
		return
	}
	out.Name = text
	if c.declared[n.StartByte()] {
		return
	}
	out.SymbolRefs = []ast.Symbol{ast.NewReference(text, c.refKind(n), out.Loc)}
}

func (c *converter) definition(n *sitter.Node) (ast.Kind, bool) {
	kind, ok := c.spec.defs[n.Type()]
	if !ok {
		return "", false
	}
	if c.spec.needsBody[n.Type()] && n.ChildByFieldName("body") == nil {
		return "", false
	}
	return kind, true
}

// refKind guesses what kind of symbol an identifier use refers to from its
// syntactic position.
func (c *converter) refKind(n *sitter.Node) ast.Kind {
	if typeLeaves[n.Type()] {
		return c.spec.typeRefKind
	}
	p := n.Parent()
	if p == nil {
		return ast.KindVariable
	}
	if f, ok := c.spec.methodCalls[p.Type()]; ok && same(p.ChildByFieldName(f), n) {
		return c.spec.memberCallKind
	}
	if f, ok := c.spec.calleeField(p.Type()); ok && same(p.ChildByFieldName(f), n) {
		return c.spec.callKind
	}
	if f, ok := c.spec.memberField(p.Type()); ok && same(p.ChildByFieldName(f), n) {
		if gp := p.Parent(); gp != nil {
			if cf, ok := c.spec.calleeField(gp.Type()); ok && same(gp.ChildByFieldName(cf), p) {
				return c.spec.memberCallKind
			}
		}
		if p.Type() != "scoped_identifier" {
			return ast.KindField
		}
	}
	if n.Type() == "constant" {
		return c.spec.typeRefKind
	}
	return ast.KindVariable
}

// declName finds the identifier a declaration introduces, following the
// "name" field or, for C-like declarators, the chain of "declarator" fields.
func declName(n *sitter.Node) *sitter.Node {
	cur := n
	for depth := 0; cur != nil && depth < 8; depth++ {
		if name := cur.ChildByFieldName("name"); name != nil {
			if identTypes[name.Type()] {
				return name
			}
			cur = name
			continue
		}
		d := cur.ChildByFieldName("declarator")
		if d == nil {
			return nil
		}
		if identTypes[d.Type()] {
			return d
		}
		cur = d
	}
	return nil
}

// firstError returns the first ERROR or MISSING node under n.
func firstError(n *sitter.Node) *sitter.Node {
	if n.IsError() || n.IsMissing() {
		return n
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		child := n.Child(i)
		if child.HasError() || child.IsMissing() {
			if e := firstError(child); e != nil {
				return e
			}
		}
	}
	return nil
}

func same(a, b *sitter.Node) bool {
	return a != nil && b != nil && a.StartByte() == b.StartByte() && a.EndByte() == b.EndByte()
}

func (c *converter) text(n *sitter.Node) string {
	return n.Content(c.src)
}

func (c *converter) loc(p sitter.Point) ast.SourceLocation {
	return ast.SourceLocation{File: c.file, Line: int(p.Row) + 1, Column: int(p.Column) + 1}
}

// endLoc converts an exclusive end point to the inclusive last column.
func (c *converter) endLoc(p sitter.Point) ast.SourceLocation {
	col := int(p.Column)
	if col < 1 {
		col = 1
	}
	return ast.SourceLocation{File: c.file, Line: int(p.Row) + 1, Column: col}
}
