package tools

import (
	"sync"
	"time"
)

// cacheEntry is the read cache's stored value: the file content at the time
// it was last read, split into lines, alongside each line's anchor hash.
type cacheEntry struct {
	readAt time.Time
	lines  []string
	hashes []string
}

// readCache maps absolute path to the last-read snapshot of that file.
// Populated by read_file, evicted by write_file/edit_file/patch_file. This
// is the "don't re-read a file you already read this turn" mechanism: a
// cache hit returns the stored body annotated with its age instead of
// re-touching the filesystem.
type readCache struct {
	mu      sync.Mutex
	entries map[string]cacheEntry
}

func newReadCache() *readCache {
	return &readCache{entries: make(map[string]cacheEntry)}
}

func (c *readCache) get(path string) (cacheEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[path]
	return e, ok
}

func (c *readCache) put(path string, lines, hashes []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[path] = cacheEntry{readAt: time.Now(), lines: lines, hashes: hashes}
}

func (c *readCache) invalidate(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, path)
}
