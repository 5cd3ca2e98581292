package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
)

// MemoryCache implements Cache with an in-process map.
//
// Embeddings are stored under content-addressed keys (SHA-256 hash of the
// text) to enable deduplication across repeated inputs. When the cache
// exceeds maxEntries it is cleared rather than evicted per-key: subtitle
// corpora are embedded in one pass, so a full reset is cheaper than LRU
// bookkeeping.
type MemoryCache struct {
	mu         sync.RWMutex
	entries    map[string][]float32
	maxEntries int
}

// NewMemoryCache creates an in-memory embedding cache. maxEntries <= 0
// selects the default of 10000.
func NewMemoryCache(maxEntries int) *MemoryCache {
	if maxEntries <= 0 {
		maxEntries = 10000
	}
	return &MemoryCache{
		entries:    make(map[string][]float32),
		maxEntries: maxEntries,
	}
}

// Get retrieves a cached embedding by content hash.
func (c *MemoryCache) Get(_ context.Context, contentHash string) ([]float32, error) {
	c.mu.RLock()
	embedding, ok := c.entries[contentHash]
	c.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("cache miss: %s", contentHash)
	}
	return embedding, nil
}

// Put stores an embedding in the cache with the given content hash.
func (c *MemoryCache) Put(_ context.Context, contentHash string, embedding []float32) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.entries) >= c.maxEntries {
		c.entries = make(map[string][]float32)
	}
	c.entries[contentHash] = embedding
	return nil
}

// Len reports the number of cached embeddings.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// ContentHash generates a SHA-256 hash of text content for use as a cache
// key.
func ContentHash(text string) string {
	hash := sha256.Sum256([]byte(text))
	return hex.EncodeToString(hash[:])
}
