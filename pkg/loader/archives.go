package loader

import (
	"context"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"

	"github.com/Faultbox/leeds-assets/pkg/encoding"
	"github.com/Faultbox/leeds-assets/pkg/img"
)

// Archives is an ordered set of IMG archives searched as one namespace.
// Archives are searched in reverse order (last added = highest priority).
type Archives struct {
	archives []*img.Archive
	cache    *Cache
	mu       sync.RWMutex
}

// NewArchives creates an empty archive set.
func NewArchives() *Archives {
	return &Archives{cache: NewCache()}
}

// Add opens the archive at path and adds it with the highest priority.
func (m *Archives) Add(path string) error {
	a, err := img.Open(path)
	if err != nil {
		return errors.Wrapf(err, "opening archive %s", path)
	}

	m.mu.Lock()
	m.archives = append(m.archives, a)
	m.mu.Unlock()
	return nil
}

// Len returns the number of archives.
func (m *Archives) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.archives)
}

// Read returns the named entry from the highest-priority archive holding it.
func (m *Archives) Read(name string) ([]byte, error) {
	key := encoding.NormalizePath(name)
	if data, ok := m.cache.Get(key); ok {
		return data, nil
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	for i := len(m.archives) - 1; i >= 0; i-- {
		if !m.archives[i].Contains(key) {
			continue
		}
		data, err := m.archives[i].Read(key)
		if err != nil {
			return nil, err
		}
		m.cache.Set(key, data)
		return data, nil
	}
	return nil, errors.Wrap(img.ErrNotFound, name)
}

// Sources returns one source per distinct entry name matching pattern across
// all archives, taking each entry from the highest-priority archive. The
// sources read through the set's cache, so reloading them does not touch disk.
func (m *Archives) Sources(pattern string) ([]Source, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	seen := make(map[string]bool)
	var sources []Source
	for i := len(m.archives) - 1; i >= 0; i-- {
		found, err := SourcesFromArchive(m.archives[i], pattern)
		if err != nil {
			return nil, err
		}
		for _, src := range found {
			key := entryKey(src.Name)
			if seen[key] {
				continue
			}
			seen[key] = true
			src.Open = func(ctx context.Context) ([]byte, error) {
				if err := ctx.Err(); err != nil {
					return nil, err
				}
				return m.Read(key)
			}
			sources = append(sources, src)
		}
	}
	sort.Slice(sources, func(i, j int) bool { return sources[i].Name < sources[j].Name })
	return sources, nil
}

// entryKey strips the archive prefix from a source name.
func entryKey(name string) string {
	if _, entry, ok := strings.Cut(name, "/"); ok {
		return entry
	}
	return name
}

// Close closes all archives.
func (m *Archives) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var first error
	for _, a := range m.archives {
		if err := a.Close(); err != nil && first == nil {
			first = err
		}
	}
	m.archives = nil
	m.cache.Clear()
	return first
}

// Cache is an in-memory cache of entry bytes.
type Cache struct {
	data map[string][]byte
	mu   sync.RWMutex

	hits   atomic.Int64
	misses atomic.Int64
}

// NewCache creates a new cache.
func NewCache() *Cache {
	return &Cache{data: make(map[string][]byte)}
}

// Get retrieves an item from cache.
func (c *Cache) Get(key string) ([]byte, bool) {
	c.mu.RLock()
	data, ok := c.data[key]
	c.mu.RUnlock()

	if ok {
		c.hits.Add(1)
	} else {
		c.misses.Add(1)
	}
	return data, ok
}

// Set stores an item in cache.
func (c *Cache) Set(key string, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = data
}

// Clear clears the cache.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data = make(map[string][]byte)
	c.hits.Store(0)
	c.misses.Store(0)
}

// Stats returns cache statistics.
func (m *Archives) Stats() (hits, misses int64) {
	return m.cache.hits.Load(), m.cache.misses.Load()
}
