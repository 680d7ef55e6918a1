package model

import (
	"sync"

	"github.com/elastic/go-freelru"

	apperrors "github.com/heap-snapshot/pkg/errors"
)

// CachePolicy selects how decoded payloads are kept between reads.
type CachePolicy string

const (
	// CacheNone re-reads the payload on every access. Memory stays bounded
	// by the number of objects, not their contents.
	CacheNone CachePolicy = "none"
	// CacheLRU keeps the most recently used payloads.
	CacheLRU CachePolicy = "lru"
	// CacheUnbounded keeps every payload ever read.
	CacheUnbounded CachePolicy = "unbounded"
)

// ValueCache holds raw payload bytes keyed by their buffer offset.
type ValueCache interface {
	Get(offset int64) ([]byte, bool)
	Add(offset int64, payload []byte)
}

// NewValueCache builds a cache for policy. size is the LRU capacity.
func NewValueCache(policy CachePolicy, size int) (ValueCache, error) {
	switch policy {
	case CacheNone, "":
		return NoValueCache{}, nil
	case CacheLRU:
		return NewLRUValueCache(size)
	case CacheUnbounded:
		return NewUnboundedValueCache(), nil
	default:
		return nil, apperrors.Newf(apperrors.CodeInvalidInput, "unknown cache policy %q", policy)
	}
}

// NoValueCache never keeps anything.
type NoValueCache struct{}

func (NoValueCache) Get(int64) ([]byte, bool) { return nil, false }
func (NoValueCache) Add(int64, []byte)        {}

// LRUValueCache keeps a bounded number of payloads.
type LRUValueCache struct {
	lru *freelru.SyncedLRU[int64, []byte]
}

func hashOffset(k int64) uint32 {
	x := uint64(k)
	x ^= x >> 33
	x *= 0xff51afd7ed558ccd
	x ^= x >> 33
	return uint32(x)
}

// NewLRUValueCache creates an LRU cache holding up to size payloads.
func NewLRUValueCache(size int) (*LRUValueCache, error) {
	if size <= 0 {
		return nil, apperrors.Newf(apperrors.CodeInvalidInput, "lru cache size must be positive, got %d", size)
	}
	lru, err := freelru.NewSynced[int64, []byte](uint32(size), hashOffset)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInvalidInput, "failed to create lru cache", err)
	}
	return &LRUValueCache{lru: lru}, nil
}

func (c *LRUValueCache) Get(offset int64) ([]byte, bool) { return c.lru.Get(offset) }
func (c *LRUValueCache) Add(offset int64, payload []byte) { c.lru.Add(offset, payload) }

// Len returns the number of cached payloads.
func (c *LRUValueCache) Len() int { return c.lru.Len() }

// UnboundedValueCache keeps every payload.
type UnboundedValueCache struct {
	mu sync.RWMutex
	m  map[int64][]byte
}

// NewUnboundedValueCache creates an empty unbounded cache.
func NewUnboundedValueCache() *UnboundedValueCache {
	return &UnboundedValueCache{m: make(map[int64][]byte)}
}

func (c *UnboundedValueCache) Get(offset int64) ([]byte, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	b, ok := c.m[offset]
	return b, ok
}

func (c *UnboundedValueCache) Add(offset int64, payload []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[offset] = payload
}
