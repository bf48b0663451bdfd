package parser

import (
	"context"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/jward/tuindex/internal/ast"
)

// Registry dispatches to a Parser by file extension. It is itself a Parser.
type Registry struct {
	mu      sync.RWMutex
	parsers map[string]Parser
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{parsers: make(map[string]Parser)}
}

// Register binds p to each extension (with or without the leading dot).
// Later registrations replace earlier ones.
func (r *Registry) Register(p Parser, exts ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ext := range exts {
		r.parsers[normalizeExt(ext)] = p
	}
}

// Lookup returns the parser registered for path's extension.
func (r *Registry) Lookup(path string) (Parser, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.parsers[normalizeExt(filepath.Ext(path))]
	return p, ok
}

// Supports reports whether any parser handles path.
func (r *Registry) Supports(path string) bool {
	_, ok := r.Lookup(path)
	return ok
}

// Extensions returns the registered extensions, sorted, with leading dots.
func (r *Registry) Extensions() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.parsers))
	for ext := range r.parsers {
		out = append(out, ext)
	}
	sort.Strings(out)
	return out
}

func (r *Registry) ParseFile(ctx context.Context, path string, flags []string) (*ast.Document, error) {
	p, ok := r.Lookup(path)
	if !ok {
		return nil, NewUnavailable(path, "no parser registered for extension %q", filepath.Ext(path))
	}
	return p.ParseFile(ctx, path, flags)
}

func normalizeExt(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}
