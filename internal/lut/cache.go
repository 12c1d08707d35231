package lut

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCacheSize is the number of parsed tables kept by NewCache(0).
const DefaultCacheSize = 16

type cacheKey struct {
	path    string
	modTime time.Time
	size    int64
}

// Cache keeps recently parsed tables so repeated requests for the same file
// do not re-parse it. An entry is keyed by path, modification time and size;
// editing the file on disk invalidates it. Cache is safe for concurrent use.
type Cache struct {
	entries *lru.Cache[cacheKey, LUT]
}

// NewCache creates a cache holding up to size tables.
func NewCache(size int) (*Cache, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	c, err := lru.New[cacheKey, LUT](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create LUT cache: %w", err)
	}
	return &Cache{entries: c}, nil
}

// Load returns the table for path, parsing it on a miss.
func (c *Cache) Load(path string) (LUT, error) {
	st, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat LUT: %w", err)
	}
	key := cacheKey{path: path, modTime: st.ModTime(), size: st.Size()}
	if t, ok := c.entries.Get(key); ok {
		return t, nil
	}

	t, err := ReadFile(path)
	if err != nil {
		return nil, err
	}
	c.entries.Add(key, t)
	return t, nil
}

// Len returns the number of cached tables.
func (c *Cache) Len() int {
	return c.entries.Len()
}

// Purge drops every cached table.
func (c *Cache) Purge() {
	c.entries.Purge()
}

// ListDir returns the .cube files directly inside dir, sorted by name.
func ListDir(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read LUT folder: %w", err)
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".cube") {
			continue
		}
		out = append(out, filepath.Join(dir, e.Name()))
	}
	sort.Strings(out)
	return out, nil
}
