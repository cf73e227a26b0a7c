// SPDX-License-Identifier: MIT

// Package cache caches generated shift plans keyed by store revision, so a
// replan request against unchanged state is a lookup instead of a full
// scheduling run.
package cache

import (
	"context"
	"sync"
	"time"

	"github.com/careshift/careshift/internal/clinical"
)

// PlanCache provides thread-safe plan caching with expiration.
type PlanCache interface {
	// Get retrieves a plan. The second return is false if absent or expired.
	Get(ctx context.Context, key string) (clinical.ScheduleResponse, bool)
	// Set stores a plan with the specified TTL.
	Set(ctx context.Context, key string, plan clinical.ScheduleResponse, ttl time.Duration)
	// Delete removes a plan.
	Delete(ctx context.Context, key string)
	// Clear removes all cached plans.
	Clear(ctx context.Context)
	// Stats returns cache statistics.
	Stats() Stats
}

// Stats holds cache performance counters.
type Stats struct {
	Hits        int64
	Misses      int64
	Sets        int64
	Evictions   int64
	CurrentSize int
}

type entry struct {
	plan       clinical.ScheduleResponse
	expiration time.Time
}

func (e *entry) isExpired() bool {
	return time.Now().After(e.expiration)
}

// memoryCache is an in-memory implementation of PlanCache.
type memoryCache struct {
	mu      sync.RWMutex
	entries map[string]*entry
	stats   Stats
	janitor *janitor
}

// NewMemory creates an in-memory plan cache with automatic cleanup.
// cleanupInterval <= 0 disables the janitor.
func NewMemory(cleanupInterval time.Duration) PlanCache {
	c := &memoryCache{entries: make(map[string]*entry)}
	if cleanupInterval > 0 {
		c.janitor = &janitor{
			interval: cleanupInterval,
			stop:     make(chan struct{}),
		}
		go c.janitor.run(c)
	}
	return c
}

func (c *memoryCache) Get(_ context.Context, key string) (clinical.ScheduleResponse, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, found := c.entries[key]
	if !found || e.isExpired() {
		c.stats.Misses++
		return clinical.ScheduleResponse{}, false
	}
	c.stats.Hits++
	return e.plan, true
}

func (c *memoryCache) Set(_ context.Context, key string, plan clinical.ScheduleResponse, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = &entry{plan: plan, expiration: time.Now().Add(ttl)}
	c.stats.Sets++
}

func (c *memoryCache) Delete(_ context.Context, key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

func (c *memoryCache) Clear(_ context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*entry)
}

func (c *memoryCache) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	stats := c.stats
	stats.CurrentSize = len(c.entries)
	return stats
}

func (c *memoryCache) deleteExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	count := 0
	for key, e := range c.entries {
		if e.isExpired() {
			delete(c.entries, key)
			count++
		}
	}
	c.stats.Evictions += int64(count)
	return count
}

// Stop stops the background cleanup goroutine.
func (c *memoryCache) Stop() {
	if c.janitor != nil {
		c.janitor.stop <- struct{}{}
	}
}

type janitor struct {
	interval time.Duration
	stop     chan struct{}
}

func (j *janitor) run(c *memoryCache) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.deleteExpired()
		case <-j.stop:
			return
		}
	}
}

// noopCache caches nothing; used when caching is disabled.
type noopCache struct{}

// NewNoop creates a cache that doesn't cache anything.
func NewNoop() PlanCache { return &noopCache{} }

func (noopCache) Get(context.Context, string) (clinical.ScheduleResponse, bool) {
	return clinical.ScheduleResponse{}, false
}
func (noopCache) Set(context.Context, string, clinical.ScheduleResponse, time.Duration) {}
func (noopCache) Delete(context.Context, string)                                        {}
func (noopCache) Clear(context.Context)                                                 {}
func (noopCache) Stats() Stats                                                          { return Stats{} }
