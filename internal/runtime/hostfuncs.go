package runtime

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"unsafe"

	"github.com/risor-io/risor/object"
	sitter "github.com/smacker/go-tree-sitter"
)

// treeInfo is what host functions need to know about a parsed tree.
type treeInfo struct {
	src  []byte
	lang *sitter.Language
}

// trees remembers the source and grammar of every live tree, keyed by the
// address of its root node. smacker nodes cannot reach their tree, so
// lookups climb Parent() to the root first.
type trees struct {
	mu     sync.RWMutex
	byRoot map[uintptr]treeInfo
}

func newTrees() *trees {
	return &trees{byRoot: make(map[uintptr]treeInfo)}
}

func rootKey(n *sitter.Node) uintptr {
	for n.Parent() != nil {
		n = n.Parent()
	}
	return uintptr(unsafe.Pointer(n))
}

func (t *trees) add(tree *sitter.Tree, src []byte, lang *sitter.Language) {
	key := rootKey(tree.RootNode())
	t.mu.Lock()
	t.byRoot[key] = treeInfo{src: src, lang: lang}
	t.mu.Unlock()
}

// remove drops a tree added for a single script run.
func (t *trees) remove(tree *sitter.Tree) {
	key := rootKey(tree.RootNode())
	t.mu.Lock()
	delete(t.byRoot, key)
	t.mu.Unlock()
}

func (t *trees) lookup(n *sitter.Node) (treeInfo, bool) {
	key := rootKey(n)
	t.mu.RLock()
	info, ok := t.byRoot[key]
	t.mu.RUnlock()
	return info, ok
}

// Argument helpers. Each returns a non-nil error object on mismatch.

func stringArg(fn string, args []object.Object, i int, what string) (string, object.Object) {
	s, ok := args[i].(*object.String)
	if !ok {
		return "", object.Errorf("%s: %s must be a string, got %s", fn, what, args[i].Type())
	}
	return s.Value(), nil
}

func nodeArg(fn string, args []object.Object, i int) (*sitter.Node, object.Object) {
	p, ok := args[i].(*object.Proxy)
	if !ok {
		return nil, object.Errorf("%s: expected a node, got %s", fn, args[i].Type())
	}
	n, ok := p.Interface().(*sitter.Node)
	if !ok || n == nil {
		return nil, object.Errorf("%s: expected *sitter.Node, got %T", fn, p.Interface())
	}
	return n, nil
}

func proxyOf(fn string, v any) object.Object {
	p, err := object.NewProxy(v)
	if err != nil {
		return object.Errorf("%s: proxy: %v", fn, err)
	}
	return p
}

// builtin wraps fn with an arity check.
func builtin(name string, arity int, fn func(ctx context.Context, args []object.Object) object.Object) *object.Builtin {
	return object.NewBuiltin(name, func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != arity {
			return object.NewArgsError(name, arity, len(args))
		}
		return fn(ctx, args)
	})
}

// hostFuncs returns the tree-sitter helpers exposed to symbol scripts:
//
//	parse(path, language)        tree parsed from a file on disk
//	parse_src(source, language)  tree parsed from a string
//	node_text(node)              source text of node
//	node_child(node, field)      child by field name, or nil
//	node_pos(node)               {"line", "column"}, both 1-based
//	query(pattern, node)         list of {capture: node} maps
func (t *trees) hostFuncs() map[string]any {
	return map[string]any{
		"parse": builtin("parse", 2, func(ctx context.Context, args []object.Object) object.Object {
			path, errObj := stringArg("parse", args, 0, "path")
			if errObj != nil {
				return errObj
			}
			lang, errObj := stringArg("parse", args, 1, "language")
			if errObj != nil {
				return errObj
			}
			src, err := os.ReadFile(path)
			if err != nil {
				return object.Errorf("parse: reading %s: %v", path, err)
			}
			return t.parse(ctx, "parse", src, lang)
		}),
		"parse_src": builtin("parse_src", 2, func(ctx context.Context, args []object.Object) object.Object {
			src, errObj := stringArg("parse_src", args, 0, "source")
			if errObj != nil {
				return errObj
			}
			lang, errObj := stringArg("parse_src", args, 1, "language")
			if errObj != nil {
				return errObj
			}
			return t.parse(ctx, "parse_src", []byte(src), lang)
		}),
		"node_text": builtin("node_text", 1, func(_ context.Context, args []object.Object) object.Object {
			n, errObj := nodeArg("node_text", args, 0)
			if errObj != nil {
				return errObj
			}
			info, ok := t.lookup(n)
			if !ok {
				return object.Errorf("node_text: node belongs to an unknown tree")
			}
			return object.NewString(n.Content(info.src))
		}),
		"node_child": builtin("node_child", 2, func(_ context.Context, args []object.Object) object.Object {
			n, errObj := nodeArg("node_child", args, 0)
			if errObj != nil {
				return errObj
			}
			field, errObj := stringArg("node_child", args, 1, "field")
			if errObj != nil {
				return errObj
			}
			// A proxied nil *Node is not Risor nil.
			child := n.ChildByFieldName(field)
			if child == nil {
				return object.Nil
			}
			return proxyOf("node_child", child)
		}),
		"node_pos": builtin("node_pos", 1, func(_ context.Context, args []object.Object) object.Object {
			n, errObj := nodeArg("node_pos", args, 0)
			if errObj != nil {
				return errObj
			}
			p := n.StartPoint()
			return object.NewMap(map[string]object.Object{
				"line":   object.NewInt(int64(p.Row) + 1),
				"column": object.NewInt(int64(p.Column) + 1),
			})
		}),
		"query": builtin("query", 2, func(_ context.Context, args []object.Object) object.Object {
			pattern, errObj := stringArg("query", args, 0, "pattern")
			if errObj != nil {
				return errObj
			}
			n, errObj := nodeArg("query", args, 1)
			if errObj != nil {
				return errObj
			}
			info, ok := t.lookup(n)
			if !ok {
				return object.Errorf("query: node belongs to an unknown tree")
			}
			return runQuery(pattern, n, info)
		}),
	}
}

func (t *trees) parse(ctx context.Context, fn string, src []byte, langName string) object.Object {
	lang, ok := ParserForLanguage(langName)
	if !ok {
		return object.Errorf("%s: unsupported language %q", fn, langName)
	}
	p := sitter.NewParser()
	defer p.Close()
	p.SetLanguage(lang)

	tree, err := p.ParseCtx(ctx, nil, src)
	if err != nil {
		return object.Errorf("%s: %v", fn, err)
	}
	t.add(tree, src, lang)
	return proxyOf(fn, tree)
}

func runQuery(pattern string, n *sitter.Node, info treeInfo) object.Object {
	q, err := sitter.NewQuery([]byte(pattern), info.lang)
	if err != nil {
		return object.Errorf("query: invalid pattern: %v", err)
	}
	defer q.Close()
	qc := sitter.NewQueryCursor()
	defer qc.Close()
	qc.Exec(q, n)

	matches := []object.Object{}
	for {
		m, ok := qc.NextMatch()
		if !ok {
			break
		}
		m = qc.FilterPredicates(m, info.src)
		captures := make(map[string]object.Object, len(m.Captures))
		for _, c := range m.Captures {
			name := q.CaptureNameForId(c.Index)
			p, err := object.NewProxy(c.Node)
			if err != nil {
				return object.Errorf("query: capture %q: %v", name, err)
			}
			captures[name] = p
		}
		matches = append(matches, object.NewMap(captures))
	}
	return object.NewList(matches)
}

// scriptLog is the "log" global.
type scriptLog struct {
	logger *slog.Logger
}

func (l *scriptLog) Info(msg string)  { l.logger.Info(msg, "source", "script") }
func (l *scriptLog) Warn(msg string)  { l.logger.Warn(msg, "source", "script") }
func (l *scriptLog) Error(msg string) { l.logger.Error(msg, "source", "script") }
