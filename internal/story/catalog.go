package story

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Catalog fronts a Repository with an in-memory cache.
// Uses singleflight to dedupe concurrent loads of the same story: under
// burst traffic for one story the underlying repository is consulted once,
// not once per request. Only successful loads are cached, so a story
// published after startup becomes visible on the next ask once the backing
// repository knows it.
type Catalog struct {
	repo Repository

	mu        sync.RWMutex
	cache     map[string]*Structure
	loadGroup singleflight.Group
}

// NewCatalog creates a caching catalog over repo.
func NewCatalog(repo Repository) *Catalog {
	return &Catalog{
		repo:  repo,
		cache: make(map[string]*Structure),
	}
}

// Structure returns the structure for storyID, loading through the backing
// repository on first ask.
func (c *Catalog) Structure(ctx context.Context, storyID string) (*Structure, error) {
	c.mu.RLock()
	cached, ok := c.cache[storyID]
	c.mu.RUnlock()
	if ok {
		return cached, nil
	}

	v, err, _ := c.loadGroup.Do(storyID, func() (interface{}, error) {
		// Double-check cache after winning the singleflight slot
		c.mu.RLock()
		cached, ok := c.cache[storyID]
		c.mu.RUnlock()
		if ok {
			return cached, nil
		}

		s, err := c.repo.Structure(ctx, storyID)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		c.cache[storyID] = s
		c.mu.Unlock()
		return s, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Structure), nil
}
