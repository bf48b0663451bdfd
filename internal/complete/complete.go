// Package complete answers prefix-completion requests from a symbol table.
package complete

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/jward/tuindex/internal/ast"
	"github.com/jward/tuindex/internal/symtab"
)

// DefaultMaxResults is used when a caller passes max <= 0.
const DefaultMaxResults = 50

// Item is one completion candidate.
type Item struct {
	Label         string `json:"label"`
	Kind          string `json:"kind"`
	Detail        string `json:"detail"`
	Documentation string `json:"documentation,omitempty"`
	InsertText    string `json:"insert_text"`
}

// Provider ranks table symbols against a prefix.
type Provider struct {
	table         *symtab.Table
	readFile      func(string) ([]byte, error)
	minSimilarity float64
}

// Option configures a Provider.
type Option func(*Provider)

// WithReadFile replaces os.ReadFile for reading live file content.
func WithReadFile(fn func(string) ([]byte, error)) Option {
	return func(p *Provider) {
		p.readFile = fn
	}
}

// WithMinSimilarity sets the lowest score Suggest reports. Values outside
// (0, 1] keep MinSimilarity.
func WithMinSimilarity(v float64) Option {
	return func(p *Provider) {
		if v > 0 && v <= 1 {
			p.minSimilarity = v
		}
	}
}

// New returns a provider over table.
func New(table *symtab.Table, opts ...Option) *Provider {
	p := &Provider{table: table, readFile: os.ReadFile, minSimilarity: MinSimilarity}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Items returns completions at (file, line, column). When prefix is nil it
// is derived from the file's current content. Symbols in file sort first,
// then everything alphabetically, case-insensitively.
func (p *Provider) Items(file string, line, column int, prefix *string, max int) ([]Item, error) {
	if max <= 0 {
		max = DefaultMaxResults
	}
	var pre string
	if prefix != nil {
		pre = *prefix
	} else {
		if line < 1 || column < 1 {
			return nil, fmt.Errorf("complete: invalid position %d:%d", line, column)
		}
		pre = p.prefixAt(file, line, column)
	}

	local := make(map[string]bool)
	for _, s := range p.table.SymbolsInFile(file) {
		local[s.ID()] = true
	}

	lower := strings.ToLower(pre)
	type cand struct {
		sym   ast.Symbol
		id    string
		local bool
		key   string
	}
	var cands []cand
	for _, s := range p.table.AllSymbols() {
		key := strings.ToLower(s.Name)
		if !strings.HasPrefix(key, lower) {
			continue
		}
		id := s.ID()
		cands = append(cands, cand{sym: s, id: id, local: local[id], key: key})
	}

	sort.SliceStable(cands, func(i, j int) bool {
		a, b := cands[i], cands[j]
		if a.local != b.local {
			return a.local
		}
		if a.key != b.key {
			return a.key < b.key
		}
		if a.sym.Name != b.sym.Name {
			return a.sym.Name < b.sym.Name
		}
		return a.id < b.id
	})

	if len(cands) > max {
		cands = cands[:max]
	}
	items := make([]Item, len(cands))
	for i, c := range cands {
		items[i] = toItem(c.sym)
	}
	return items, nil
}

func toItem(s ast.Symbol) Item {
	return Item{
		Label:         s.Name,
		Kind:          string(s.Kind),
		Detail:        fmt.Sprintf("%s in %s", s.Kind, filepath.Base(s.Loc.File)),
		Documentation: fmt.Sprintf("%s:%d:%d", s.Loc.File, s.Loc.Line, s.Loc.Column),
		InsertText:    s.Name,
	}
}

// prefixAt reads the identifier ending just before column on line. Any
// problem reading the file yields an empty prefix.
func (p *Provider) prefixAt(file string, line, column int) string {
	content, err := p.readFile(file)
	if err != nil {
		return ""
	}
	text, ok := lineAt(content, line)
	if !ok {
		return ""
	}
	return PrefixBefore(text, column)
}

// PrefixBefore returns the run of identifier characters immediately before
// the 1-based column in text. Columns count bytes, like SourceLocation.
func PrefixBefore(text string, column int) string {
	end := min(column-1, len(text))
	if end <= 0 {
		return ""
	}
	start := end
	for start > 0 {
		r, size := utf8.DecodeLastRuneInString(text[:start])
		if !isIdent(r) {
			break
		}
		start -= size
	}
	return text[start:end]
}

func isIdent(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

func lineAt(content []byte, line int) (string, bool) {
	sc := bufio.NewScanner(bytes.NewReader(content))
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	n := 0
	for sc.Scan() {
		n++
		if n == line {
			return strings.TrimSuffix(sc.Text(), "\r"), true
		}
	}
	return "", false
}
