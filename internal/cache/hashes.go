package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
)

// SaveHashes persists the path-to-hash mapping to file_hashes.json.
func (c *Cache) SaveHashes() error {
	c.mu.Lock()
	snapshot := make(map[string]string, len(c.hashes))
	for k, v := range c.hashes {
		snapshot[k] = v
	}
	c.mu.Unlock()

	if err := os.MkdirAll(c.root, dirPerm); err != nil {
		return fmt.Errorf("save hashes: %w", err)
	}
	b, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return fmt.Errorf("save hashes: %w", err)
	}
	if err := writeFileAtomic(filepath.Join(c.root, hashesFile), b); err != nil {
		return fmt.Errorf("save hashes: %w", err)
	}
	return nil
}

// LoadHashes replaces the in-memory mapping with the persisted one. A
// missing file leaves an empty mapping and is not an error.
func (c *Cache) LoadHashes() error {
	b, err := os.ReadFile(filepath.Join(c.root, hashesFile))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load hashes: %w", err)
	}
	m := make(map[string]string)
	if err := json.Unmarshal(b, &m); err != nil {
		return fmt.Errorf("load hashes: %w", err)
	}
	c.mu.Lock()
	c.hashes = m
	c.mu.Unlock()
	return nil
}

// Paths returns every path with a recorded hash, sorted.
func (c *Cache) Paths() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	paths := make([]string, 0, len(c.hashes))
	for p := range c.hashes {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}
