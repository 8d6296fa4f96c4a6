package cache

import (
	"container/list"
	"context"
	"strings"
	"sync"
	"time"

	"github.com/taskhub/taskhub/internal/config"
	"github.com/taskhub/taskhub/internal/observability"
)

// cleanupInterval is how often expired entries are swept from memory.
const cleanupInterval = time.Minute

// memoryCache implements an in-memory LRU cache with per-entry TTL.
type memoryCache struct {
	logger     observability.Logger
	maxEntries int

	mu       sync.Mutex
	items    map[string]*list.Element
	eviction *list.List

	stopCh chan struct{}
}

// memoryCacheEntry represents an entry in the memory cache.
type memoryCacheEntry struct {
	key       string
	value     []byte
	expiresAt time.Time
}

// newMemoryCache creates a new in-memory cache.
func newMemoryCache(cfg *config.CacheConfig, logger observability.Logger) *memoryCache {
	maxEntries := cfg.MaxEntries
	if maxEntries <= 0 {
		maxEntries = 10000
	}

	c := &memoryCache{
		logger:     logger,
		maxEntries: maxEntries,
		items:      make(map[string]*list.Element),
		eviction:   list.New(),
		stopCh:     make(chan struct{}),
	}

	go c.cleanupLoop()

	logger.Info("memory cache initialized",
		observability.Int("maxEntries", maxEntries))

	return c
}

// Get retrieves a value from the cache.
func (c *memoryCache) Get(ctx context.Context, key string) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	elem, exists := c.items[key]
	if !exists {
		return nil, ErrCacheMiss
	}

	entry := elem.Value.(*memoryCacheEntry)
	if !entry.expiresAt.IsZero() && time.Now().After(entry.expiresAt) {
		c.removeElement(elem)
		return nil, ErrCacheMiss
	}

	c.eviction.MoveToFront(elem)

	value := make([]byte, len(entry.value))
	copy(value, entry.value)
	return value, nil
}

// Set stores a value in the cache, evicting the least recently used entry
// when the cache is full.
func (c *memoryCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = time.Now().Add(ttl)
	}

	stored := make([]byte, len(value))
	copy(stored, value)

	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, exists := c.items[key]; exists {
		entry := elem.Value.(*memoryCacheEntry)
		entry.value = stored
		entry.expiresAt = expiresAt
		c.eviction.MoveToFront(elem)
		return nil
	}

	for len(c.items) >= c.maxEntries {
		oldest := c.eviction.Back()
		if oldest == nil {
			break
		}
		c.removeElement(oldest)
	}

	elem := c.eviction.PushFront(&memoryCacheEntry{
		key:       key,
		value:     stored,
		expiresAt: expiresAt,
	})
	c.items[key] = elem

	return nil
}

// Delete removes a value from the cache.
func (c *memoryCache) Delete(ctx context.Context, key string) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, exists := c.items[key]; exists {
		c.removeElement(elem)
	}
	return nil
}

// DeletePrefix removes every entry whose key starts with prefix.
func (c *memoryCache) DeletePrefix(ctx context.Context, prefix string) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for key, elem := range c.items {
		if strings.HasPrefix(key, prefix) {
			c.removeElement(elem)
		}
	}
	return nil
}

// Close stops the cleanup goroutine.
func (c *memoryCache) Close() error {
	close(c.stopCh)
	return nil
}

// removeElement removes an element. Caller must hold the lock.
func (c *memoryCache) removeElement(elem *list.Element) {
	entry := elem.Value.(*memoryCacheEntry)
	delete(c.items, entry.key)
	c.eviction.Remove(elem)
}

// cleanupLoop periodically sweeps expired entries.
func (c *memoryCache) cleanupLoop() {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopCh:
			return
		case <-ticker.C:
			c.removeExpired()
		}
	}
}

// removeExpired removes all expired entries.
func (c *memoryCache) removeExpired() {
	now := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	for _, elem := range c.items {
		entry := elem.Value.(*memoryCacheEntry)
		if !entry.expiresAt.IsZero() && now.After(entry.expiresAt) {
			c.removeElement(elem)
		}
	}
}
