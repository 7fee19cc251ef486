package geocode

import (
	"sync"

	"github.com/couchcryptid/visit-tracker/internal/domain"
)

// placeCache is an unbounded thread-safe map from cell key to resolved
// Place, valid for the process lifetime. It is rebuilt as visits resolve
// and emptied only by an explicit data purge.
type placeCache struct {
	mu      sync.RWMutex
	entries map[string]domain.Place
}

func newPlaceCache() *placeCache {
	return &placeCache{entries: make(map[string]domain.Place)}
}

func (c *placeCache) get(key string) (domain.Place, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.entries[key]
	return p, ok
}

func (c *placeCache) put(key string, p domain.Place) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = p
}

func (c *placeCache) clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]domain.Place)
}

func (c *placeCache) len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
