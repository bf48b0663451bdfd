// Package cache is the content-addressed store for parsed documents.
//
// Entries are keyed by the sha256 of a file's raw bytes, so two identical
// files anywhere share one entry and a renamed file is still a hit. The
// path-to-hash mapping is only a convenience: losing it forces rehashing,
// never an incorrect result.
//
// Layout under the cache root:
//
//	ast/<hash>.json        serialized document
//	ast/<hash>.json.gz     serialized document, gzip-compressed
//	meta/<hash>.json       Metadata
//	file_hashes.json       last known hash per source path
package cache

import (
	"bytes"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/klauspost/compress/gzip"

	"github.com/jward/tuindex/internal/ast"
)

const (
	astDir      = "ast"
	metaDir     = "meta"
	hashesFile  = "file_hashes.json"
	plainSuffix = ".json"
	gzipSuffix  = ".json.gz"
	metaSuffix  = ".json"
	dirPerm     = 0o755
	filePerm    = 0o644
)

var (
	// ErrNotFound is returned by Load when no entry exists for a hash.
	ErrNotFound = errors.New("cache entry not found")
	// ErrCorrupt is returned when an entry exists but cannot be decoded or
	// fails its checksum. The recovery is to Purge and reparse.
	ErrCorrupt = errors.New("cache entry corrupt")
)

// Metadata describes one cached document.
type Metadata struct {
	SourcePath   string    `json:"source_path"`
	FileHash     string    `json:"file_hash"`
	Dependencies []string  `json:"dependencies,omitempty"`
	CompileFlags []string  `json:"compile_flags,omitempty"`
	Compressed   bool      `json:"compressed"`
	Checksum     uint64    `json:"checksum"`
	CachedAt     time.Time `json:"cached_at"`
}

// Cache stores documents under a root directory.
type Cache struct {
	root string

	mu     sync.Mutex
	hashes map[string]string
}

// New returns a Cache rooted at dir. Nothing is created on disk until the
// first write. An existing hash mapping is loaded best-effort.
func New(dir string) *Cache {
	c := &Cache{root: dir, hashes: make(map[string]string)}
	_ = c.LoadHashes()
	return c
}

// Root returns the cache root directory.
func (c *Cache) Root() string { return c.root }

// HashBytes returns the hex sha256 of b.
func HashBytes(b []byte) string {
	return fmt.Sprintf("%x", sha256.Sum256(b))
}

// Hash returns the content hash of the file at path and records it as the
// path's last known hash.
func (c *Cache) Hash(path string) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("hash %s: %w", path, err)
	}
	h := HashBytes(content)
	c.mu.Lock()
	c.hashes[path] = h
	c.mu.Unlock()
	return h, nil
}

// LastHash returns the most recently recorded hash for path.
func (c *Cache) LastHash(path string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	h, ok := c.hashes[path]
	return h, ok
}

// Store writes doc and its metadata under meta.FileHash.
func (c *Cache) Store(doc *ast.Document, meta Metadata, compress bool) error {
	if meta.FileHash == "" {
		return fmt.Errorf("cache store: metadata has no file hash")
	}
	payload, err := ast.Marshal(doc)
	if err != nil {
		return fmt.Errorf("cache store %s: %w", meta.FileHash, err)
	}
	meta.Compressed = compress
	meta.Checksum = xxhash.Sum64(payload)
	if meta.CachedAt.IsZero() {
		meta.CachedAt = time.Now().UTC()
	}

	if err := os.MkdirAll(filepath.Join(c.root, astDir), dirPerm); err != nil {
		return fmt.Errorf("cache store: create ast dir: %w", err)
	}
	if err := os.MkdirAll(filepath.Join(c.root, metaDir), dirPerm); err != nil {
		return fmt.Errorf("cache store: create meta dir: %w", err)
	}

	data := payload
	if compress {
		var buf bytes.Buffer
		zw := gzip.NewWriter(&buf)
		if _, err := zw.Write(payload); err != nil {
			return fmt.Errorf("cache store: compress: %w", err)
		}
		if err := zw.Close(); err != nil {
			return fmt.Errorf("cache store: compress: %w", err)
		}
		data = buf.Bytes()
	}

	// Only one representation may exist per hash.
	_ = os.Remove(c.astPath(meta.FileHash, !compress))
	if err := writeFileAtomic(c.astPath(meta.FileHash, compress), data); err != nil {
		return fmt.Errorf("cache store %s: %w", meta.FileHash, err)
	}

	mb, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("cache store: marshal metadata: %w", err)
	}
	if err := writeFileAtomic(c.metaPath(meta.FileHash), mb); err != nil {
		return fmt.Errorf("cache store %s: %w", meta.FileHash, err)
	}
	return nil
}

// Load returns the document and metadata stored under hash, ErrNotFound if
// there is none, or ErrCorrupt if the entry cannot be trusted.
func (c *Cache) Load(hash string) (*ast.Document, *Metadata, error) {
	mb, err := os.ReadFile(c.metaPath(hash))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil, fmt.Errorf("load %s: %w", hash, ErrNotFound)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("load %s: read metadata: %w", hash, err)
	}
	var meta Metadata
	if err := json.Unmarshal(mb, &meta); err != nil {
		return nil, nil, fmt.Errorf("load %s: metadata: %w: %v", hash, ErrCorrupt, err)
	}

	path, compressed, err := c.findAST(hash)
	if err != nil {
		return nil, nil, fmt.Errorf("load %s: %w", hash, err)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("load %s: read ast: %w", hash, err)
	}

	payload := raw
	if compressed {
		zr, err := gzip.NewReader(bytes.NewReader(raw))
		if err != nil {
			return nil, nil, fmt.Errorf("load %s: %w: %v", hash, ErrCorrupt, err)
		}
		payload, err = io.ReadAll(zr)
		zr.Close()
		if err != nil {
			return nil, nil, fmt.Errorf("load %s: %w: %v", hash, ErrCorrupt, err)
		}
	}

	if xxhash.Sum64(payload) != meta.Checksum {
		return nil, nil, fmt.Errorf("load %s: %w: checksum mismatch", hash, ErrCorrupt)
	}
	doc, err := ast.Unmarshal(payload)
	if err != nil {
		return nil, nil, fmt.Errorf("load %s: %w: %v", hash, ErrCorrupt, err)
	}
	return doc, &meta, nil
}

// LoadIfPresent is Load with absence reported as ok=false instead of an error.
// Corruption is still an error.
func (c *Cache) LoadIfPresent(hash string) (*ast.Document, *Metadata, bool, error) {
	doc, meta, err := c.Load(hash)
	if errors.Is(err, ErrNotFound) {
		return nil, nil, false, nil
	}
	if err != nil {
		return nil, nil, false, err
	}
	return doc, meta, true, nil
}

// Has reports whether an entry exists for hash without decoding it.
func (c *Cache) Has(hash string) bool {
	if _, err := os.Stat(c.metaPath(hash)); err != nil {
		return false
	}
	_, _, err := c.findAST(hash)
	return err == nil
}

// Purge removes the entry stored under hash, if any.
func (c *Cache) Purge(hash string) error {
	for _, p := range []string{c.astPath(hash, false), c.astPath(hash, true), c.metaPath(hash)} {
		if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("purge %s: %w", hash, err)
		}
	}
	return nil
}

// Clear deletes every entry and the hash mapping.
func (c *Cache) Clear() error {
	c.mu.Lock()
	c.hashes = make(map[string]string)
	c.mu.Unlock()
	for _, p := range []string{astDir, metaDir, hashesFile} {
		if err := os.RemoveAll(filepath.Join(c.root, p)); err != nil {
			return fmt.Errorf("clear cache: %w", err)
		}
	}
	return nil
}

func (c *Cache) findAST(hash string) (string, bool, error) {
	plain := c.astPath(hash, false)
	if _, err := os.Stat(plain); err == nil {
		return plain, false, nil
	}
	gz := c.astPath(hash, true)
	if _, err := os.Stat(gz); err == nil {
		return gz, true, nil
	}
	return "", false, ErrNotFound
}

func (c *Cache) astPath(hash string, compressed bool) string {
	if compressed {
		return filepath.Join(c.root, astDir, hash+gzipSuffix)
	}
	return filepath.Join(c.root, astDir, hash+plainSuffix)
}

func (c *Cache) metaPath(hash string) string {
	return filepath.Join(c.root, metaDir, hash+metaSuffix)
}

// writeFileAtomic writes via a temp file and rename so readers never see a
// partially written entry.
func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp: %w", err)
	}
	if err := os.Chmod(tmp.Name(), filePerm); err != nil {
		return fmt.Errorf("chmod temp: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename: %w", err)
	}
	return nil
}
