package wikidata

import (
	"time"

	"github.com/patrickmn/go-cache"
)

// QueryCache stores query results keyed by the exact query text.
type QueryCache interface {
	Get(query string) ([]Record, bool)
	Set(query string, records []Record)
	Flush()
	ItemCount() int
}

// MemoryQueryCache is a process-local QueryCache with per-item TTL expiry.
type MemoryQueryCache struct {
	items *cache.Cache
}

// NewMemoryQueryCache creates a cache whose entries expire after ttl.
// Expired entries are purged every 2*ttl.
func NewMemoryQueryCache(ttl time.Duration) *MemoryQueryCache {
	return &MemoryQueryCache{items: cache.New(ttl, ttl*2)}
}

func (m *MemoryQueryCache) Get(query string) ([]Record, bool) {
	v, found := m.items.Get(query)
	if !found {
		return nil, false
	}
	records, ok := v.([]Record)
	return records, ok
}

func (m *MemoryQueryCache) Set(query string, records []Record) {
	m.items.Set(query, records, cache.DefaultExpiration)
}

func (m *MemoryQueryCache) Flush() {
	m.items.Flush()
}

func (m *MemoryQueryCache) ItemCount() int {
	return m.items.ItemCount()
}
