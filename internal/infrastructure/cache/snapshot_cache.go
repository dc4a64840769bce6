package cache

import (
	"strconv"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/marketsync/backend/internal/domain/catalog"
)

// DefaultSnapshotTTL bounds how long a product snapshot is kept
const DefaultSnapshotTTL = 24 * time.Hour

// SnapshotCache keeps the last seen copy of each product in memory
type SnapshotCache struct {
	items *gocache.Cache
}

// NewSnapshotCache creates a snapshot cache; ttl <= 0 uses DefaultSnapshotTTL
func NewSnapshotCache(ttl time.Duration) *SnapshotCache {
	if ttl <= 0 {
		ttl = DefaultSnapshotTTL
	}
	return &SnapshotCache{items: gocache.New(ttl, 2*ttl)}
}

// Get returns the last stored copy of a product
func (c *SnapshotCache) Get(productID int64) (*catalog.Product, bool) {
	v, ok := c.items.Get(snapshotKey(productID))
	if !ok {
		return nil, false
	}
	p, ok := v.(*catalog.Product)
	return p, ok
}

// Set stores a copy of the product
func (c *SnapshotCache) Set(p *catalog.Product) {
	if p == nil {
		return
	}
	cp := *p
	c.items.SetDefault(snapshotKey(p.ID), &cp)
}

// Len returns the number of cached snapshots
func (c *SnapshotCache) Len() int {
	return c.items.ItemCount()
}

func snapshotKey(id int64) string {
	return strconv.FormatInt(id, 10)
}

var _ catalog.SnapshotCache = (*SnapshotCache)(nil)
