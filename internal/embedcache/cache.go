package embedcache

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Cache keeps recently computed embedding vectors in memory so that
// re-ingesting unchanged text does not hit the provider again. Keys are
// content addressed over model and text, so a model switch never reuses
// vectors from another model.
type Cache struct {
	lru *expirable.LRU[string, []float32]
}

func New(size int, ttl time.Duration) *Cache {
	if size <= 0 {
		return nil
	}
	return &Cache{
		lru: expirable.NewLRU[string, []float32](size, nil, ttl),
	}
}

func cacheKey(model string, text string) string {
	h := sha256.New()
	h.Write([]byte(model))
	h.Write([]byte{0})
	h.Write([]byte(text))
	return hex.EncodeToString(h.Sum(nil))
}

// Get returns a copy of the cached vector. A nil cache never hits.
func (c *Cache) Get(model string, text string) ([]float32, bool) {
	if c == nil {
		return nil, false
	}
	vec, ok := c.lru.Get(cacheKey(model, text))
	if !ok {
		return nil, false
	}
	out := make([]float32, len(vec))
	copy(out, vec)
	return out, true
}

func (c *Cache) Put(model string, text string, vec []float32) {
	if c == nil || len(vec) == 0 {
		return
	}
	stored := make([]float32, len(vec))
	copy(stored, vec)
	_ = c.lru.Add(cacheKey(model, text), stored)
}

func (c *Cache) Len() int {
	if c == nil {
		return 0
	}
	return c.lru.Len()
}
