package bundlecache

import (
	lru "github.com/hashicorp/golang-lru/v2"

	"mvp_sandbox_server/internal/types"
)

// Cache keeps recently generated bundles keyed by idea id so a follow-up
// deploy request can reuse them instead of regenerating. It is a bounded,
// explicitly injected component; entries are evicted LRU and nothing is
// persisted.
type Cache struct {
	bundles *lru.Cache[string, types.Bundle]
}

func New(size int) (*Cache, error) {
	bundles, err := lru.New[string, types.Bundle](size)
	if err != nil {
		return nil, err
	}
	return &Cache{bundles: bundles}, nil
}

func (c *Cache) Put(ideaID string, files types.Bundle) {
	if ideaID == "" || len(files) == 0 {
		return
	}
	c.bundles.Add(ideaID, files)
}

func (c *Cache) Get(ideaID string) (types.Bundle, bool) {
	return c.bundles.Get(ideaID)
}

func (c *Cache) Len() int {
	return c.bundles.Len()
}
