// Package listing keeps pre-read directory listings so a view can show a
// directory without touching its backend. The engine drops the listings of
// every directory it mutates.
package listing

import (
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/arthur-debert/fsengine/pkg/fsengine/core"
)

// Snapshot is the cached listing of one directory.
type Snapshot struct {
	Dir     string
	Entries []core.PathWithType
	ReadAt  time.Time
}

// Cache maps directories to their last listing. It never changes the live
// view; callers decide when to show a cached snapshot.
//
// Cache is safe for concurrent use.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]Snapshot
}

// NewCache creates an empty cache.
func NewCache() *Cache {
	return &Cache{entries: make(map[string]Snapshot)}
}

// key normalises local and logical spellings of dir.
func key(dir string) string {
	if strings.HasPrefix(dir, `\\`) {
		return strings.ToLower(strings.TrimRight(dir, `\`))
	}
	return filepath.Clean(dir)
}

// Get returns the listing of dir if one is cached.
func (c *Cache) Get(dir string) (Snapshot, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	snap, ok := c.entries[key(dir)]
	return snap, ok
}

// Put stores a listing, replacing any previous one.
func (c *Cache) Put(dir string, entries []core.PathWithType) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key(dir)] = Snapshot{
		Dir:     dir,
		Entries: append([]core.PathWithType(nil), entries...),
		ReadAt:  time.Now(),
	}
}

// Invalidate drops the listing of dir.
func (c *Cache) Invalidate(dir string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key(dir))
}

// InvalidateTree drops the listings of dir and of every directory below it.
func (c *Cache) InvalidateTree(dir string) {
	root := key(dir)
	sep := string(filepath.Separator)
	if strings.HasPrefix(root, `\\`) {
		sep = `\`
	}
	prefix := strings.TrimSuffix(root, sep) + sep
	c.mu.Lock()
	defer c.mu.Unlock()
	for k := range c.entries {
		if k == root || strings.HasPrefix(k, prefix) {
			delete(c.entries, k)
		}
	}
}

// Len returns the number of cached directories.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
