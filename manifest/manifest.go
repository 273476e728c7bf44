// Package manifest persists the relative-path → fingerprint map that gates
// reprocessing of unchanged sources.
package manifest

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/lexandro/assetpipe/fingerprint"
	"github.com/lexandro/assetpipe/fsutil"
)

// Cache maps source relative paths (forward slashes) to the fingerprint they
// had when their outputs were last written. Safe for concurrent use.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]fingerprint.Fingerprint
}

// New returns an empty cache.
func New() *Cache {
	return &Cache{entries: make(map[string]fingerprint.Fingerprint)}
}

// Load reads the cache document at path. The returned cache is never nil:
// a missing file gives an empty cache and a nil error, an unreadable or
// malformed file gives an empty cache and the error for the caller to log.
func Load(path string) (*Cache, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return New(), nil
	}
	if err != nil {
		return New(), fmt.Errorf("reading cache %s: %w", path, err)
	}

	entries := make(map[string]fingerprint.Fingerprint)
	if err := json.Unmarshal(data, &entries); err != nil {
		return New(), fmt.Errorf("parsing cache %s: %w", path, err)
	}
	if entries == nil {
		// a literal "null" document
		entries = make(map[string]fingerprint.Fingerprint)
	}
	return &Cache{entries: entries}, nil
}

// IsUpToDate reports whether relativePath was last processed with fp and
// every expected output is present on disk. Any stat failure counts as
// missing.
func (c *Cache) IsUpToDate(relativePath string, fp fingerprint.Fingerprint, expectedOutputs []string) bool {
	stored, ok := c.Lookup(relativePath)
	if !ok || stored != fp {
		return false
	}
	for _, output := range expectedOutputs {
		info, err := os.Stat(output)
		if err != nil || !info.Mode().IsRegular() {
			return false
		}
	}
	return true
}

// Record upserts the fingerprint for relativePath.
func (c *Cache) Record(relativePath string, fp fingerprint.Fingerprint) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[relativePath] = fp
}

// Lookup returns the stored fingerprint for relativePath.
func (c *Cache) Lookup(relativePath string) (fingerprint.Fingerprint, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	fp, ok := c.entries[relativePath]
	return fp, ok
}

// Len returns the number of entries.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Paths returns all entry paths in sorted order.
func (c *Cache) Paths() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	paths := make([]string, 0, len(c.entries))
	for path := range c.entries {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths
}

// Match returns the sorted entry paths matching a doublestar glob pattern.
func (c *Cache) Match(pattern string) ([]string, error) {
	pattern = strings.ReplaceAll(pattern, "\\", "/")
	if !doublestar.ValidatePattern(pattern) {
		return nil, fmt.Errorf("invalid glob pattern: %s", pattern)
	}

	var matched []string
	for _, path := range c.Paths() {
		ok, err := doublestar.Match(pattern, path)
		if err != nil {
			continue
		}
		if ok {
			matched = append(matched, path)
		}
	}
	return matched, nil
}

// Prune drops entries whose path is not in keep and returns how many were removed.
func (c *Cache) Prune(keep map[string]struct{}) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for path := range c.entries {
		if _, ok := keep[path]; !ok {
			delete(c.entries, path)
			removed++
		}
	}
	return removed
}

// Persist writes the full map to path as indented JSON with sorted keys.
// The write is atomic: a crash leaves the previous document intact.
func (c *Cache) Persist(path string) error {
	c.mu.RLock()
	data, err := json.MarshalIndent(c.entries, "", "  ")
	c.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("marshaling cache: %w", err)
	}
	data = append(data, '\n')

	if err := fsutil.WriteFileAtomic(path, data, 0644); err != nil {
		return fmt.Errorf("persisting cache: %w", err)
	}
	return nil
}
