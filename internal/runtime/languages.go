package runtime

import (
	"path/filepath"
	"slices"
	"strings"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/c"
	"github.com/smacker/go-tree-sitter/cpp"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/java"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/php"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/ruby"
	"github.com/smacker/go-tree-sitter/rust"
	ts "github.com/smacker/go-tree-sitter/typescript/typescript"
)

// grammar describes one supported language.
type grammar struct {
	exts []string
	load func() *sitter.Language
}

var grammars = map[string]grammar{
	"c":          {exts: []string{".c", ".h"}, load: c.GetLanguage},
	"cpp":        {exts: []string{".cc", ".cpp", ".cxx", ".hh", ".hpp"}, load: cpp.GetLanguage},
	"go":         {exts: []string{".go"}, load: golang.GetLanguage},
	"java":       {exts: []string{".java"}, load: java.GetLanguage},
	"javascript": {exts: []string{".cjs", ".js", ".jsx", ".mjs"}, load: javascript.GetLanguage},
	"php":        {exts: []string{".php"}, load: php.GetLanguage},
	"python":     {exts: []string{".py", ".pyi"}, load: python.GetLanguage},
	"ruby":       {exts: []string{".rb"}, load: ruby.GetLanguage},
	"rust":       {exts: []string{".rs"}, load: rust.GetLanguage},
	"typescript": {exts: []string{".mts", ".ts", ".tsx"}, load: ts.GetLanguage},
}

var (
	byExt  map[string]string
	loaded map[string]*sitter.Language
	once   sync.Once
)

// loadGrammars builds the extension index and instantiates every grammar
// on first use.
func loadGrammars() {
	once.Do(func() {
		byExt = make(map[string]string)
		loaded = make(map[string]*sitter.Language, len(grammars))
		for name, g := range grammars {
			for _, ext := range g.exts {
				byExt[ext] = name
			}
			loaded[name] = g.load()
		}
	})
}

// LanguageForFile returns the language name for path's extension.
func LanguageForFile(path string) (string, bool) {
	loadGrammars()
	lang, ok := byExt[strings.ToLower(filepath.Ext(path))]
	return lang, ok
}

// ParserForLanguage returns the tree-sitter grammar for a language name.
func ParserForLanguage(lang string) (*sitter.Language, bool) {
	loadGrammars()
	l, ok := loaded[lang]
	return l, ok
}

// ExtensionsFor returns the sorted extensions mapped to lang.
func ExtensionsFor(lang string) []string {
	return slices.Clone(grammars[lang].exts)
}

// Languages returns every supported language name, sorted.
func Languages() []string {
	out := make([]string, 0, len(grammars))
	for name := range grammars {
		out = append(out, name)
	}
	slices.Sort(out)
	return out
}
