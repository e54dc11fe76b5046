// ABOUTME: In-memory TTL cache for loaded threat intel snapshots.
// ABOUTME: Lets periodic refreshes reuse parsed KEV/EPSS data instead of re-reading feeds every run.

package cache

import (
	"sync"
	"time"

	"github.com/jfeddern/PatchRelay/internal/types"

	"github.com/sirupsen/logrus"
)

// DefaultTTL applies when the configured TTL is not positive
const DefaultTTL = 30 * time.Minute

const cleanupInterval = 10 * time.Minute

type CacheEntry struct {
	Data      types.Intel
	ExpiresAt time.Time
}

type IntelCache struct {
	cache  map[string]*CacheEntry
	mutex  sync.RWMutex
	ttl    time.Duration
	logger *logrus.Logger
	done   chan struct{}
	once   sync.Once
}

func NewIntelCache(ttl time.Duration, logger *logrus.Logger) *IntelCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	cache := &IntelCache{
		cache:  make(map[string]*CacheEntry),
		ttl:    ttl,
		logger: logger,
		done:   make(chan struct{}),
	}

	go cache.startCleanup()

	return cache
}

// Get returns the cached intel for a source and whether it was present and fresh
func (c *IntelCache) Get(source string) (types.Intel, bool) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	entry, exists := c.cache[source]
	if !exists {
		return types.NoIntel(), false
	}

	// Expired entries are left for cleanup to avoid a write lock here
	if time.Now().After(entry.ExpiresAt) {
		return types.NoIntel(), false
	}

	c.logger.WithField("source", source).Debug("Intel cache hit")
	return entry.Data, true
}

func (c *IntelCache) Set(source string, intel types.Intel) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.cache[source] = &CacheEntry{
		Data:      intel,
		ExpiresAt: time.Now().Add(c.ttl),
	}

	c.logger.WithField("source", source).Debug("Cached threat intel")
}

// Close stops the cleanup goroutine; safe to call more than once
func (c *IntelCache) Close() {
	c.once.Do(func() { close(c.done) })
}

func (c *IntelCache) startCleanup() {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.cleanup()
		}
	}
}

func (c *IntelCache) cleanup() {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	now := time.Now()
	expiredCount := 0

	for source, entry := range c.cache {
		if now.After(entry.ExpiresAt) {
			delete(c.cache, source)
			expiredCount++
		}
	}

	if expiredCount > 0 {
		c.logger.WithFields(logrus.Fields{
			"expired_entries":   expiredCount,
			"remaining_entries": len(c.cache),
		}).Debug("Intel cache cleanup completed")
	}
}

func (c *IntelCache) Stats() (total int, expired int) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	now := time.Now()
	total = len(c.cache)

	for _, entry := range c.cache {
		if now.After(entry.ExpiresAt) {
			expired++
		}
	}

	return total, expired
}
