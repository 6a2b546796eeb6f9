package orchestrator

import (
	"sync"

	"github.com/cryoden/densitystream/gzstream"
)

// Cache deduplicates gzstream.Checkpoint values by their window fingerprint,
// so repeated decodes of maps that share long runs of identical decoded
// history (common across EMDB depositions using the same solvent-mask
// padding, for instance) don't pay to store the same 32 KiB window twice.
type Cache struct {
	mu      sync.Mutex
	entries map[uint64]*gzstream.Checkpoint
}

// NewCache returns an empty Cache.
func NewCache() *Cache {
	return &Cache{entries: make(map[uint64]*gzstream.Checkpoint)}
}

func (c *Cache) absorb(cks []*gzstream.Checkpoint) {
	if len(cks) == 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, ck := range cks {
		if _, ok := c.entries[ck.Fingerprint]; !ok {
			c.entries[ck.Fingerprint] = ck
		}
	}
}

// Lookup returns the cached checkpoint for a fingerprint, if any.
func (c *Cache) Lookup(fingerprint uint64) (*gzstream.Checkpoint, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ck, ok := c.entries[fingerprint]
	return ck, ok
}

// Len reports the number of distinct windows currently cached.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
