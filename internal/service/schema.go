package service

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cloo-solutions/licitai/internal/domain"
	"go.uber.org/zap"
)

const stateSampleSize = 200

// SchemaSnapshot is the cached key set and when it was loaded.
type SchemaSnapshot struct {
	Keys     []string  `json:"keys"`
	LoadedAt time.Time `json:"loaded_at"`
}

// SchemaCache discovers metadata keys by sampling the store and caches them
// until refreshed or invalidated. Discovery is best-effort and never fails.
type SchemaCache struct {
	repo   DocumentRepositoryInterface
	logger *zap.Logger
	now    func() time.Time

	mu       sync.RWMutex
	keys     []string
	loadedAt time.Time
}

func NewSchemaCache(repo DocumentRepositoryInterface, logger *zap.Logger) *SchemaCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SchemaCache{repo: repo, logger: logger, now: time.Now}
}

// DiscoverKeys samples one record. Failures and an empty store yield no keys.
func (c *SchemaCache) DiscoverKeys(ctx context.Context) []string {
	rows, err := c.repo.SampleMetadata(ctx, 1)
	if err != nil {
		c.logger.Warn("Schema key discovery failed", zap.Error(err))
		return []string{}
	}
	if len(rows) == 0 {
		return []string{}
	}
	keys := make([]string, 0, len(rows[0]))
	for k := range rows[0] {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// DiscoverValidStates returns the distinct upper-cased status values found in
// a sample of records, falling back to domain.DefaultValidStates.
func (c *SchemaCache) DiscoverValidStates(ctx context.Context) []string {
	rows, err := c.repo.SampleMetadata(ctx, stateSampleSize)
	if err != nil {
		c.logger.Warn("Status discovery failed, using defaults", zap.Error(err))
		return defaultStates()
	}

	seen := make(map[string]struct{})
	states := make([]string, 0)
	for _, meta := range rows {
		state := strings.ToUpper(strings.TrimSpace(meta[domain.MetaKeyStatus]))
		if state == "" {
			continue
		}
		if _, ok := seen[state]; ok {
			continue
		}
		seen[state] = struct{}{}
		states = append(states, state)
	}
	if len(states) == 0 {
		return defaultStates()
	}
	sort.Strings(states)
	return states
}

// Keys returns the cached key set, loading it on first use.
func (c *SchemaCache) Keys(ctx context.Context) []string {
	c.mu.RLock()
	if !c.loadedAt.IsZero() {
		keys := append([]string(nil), c.keys...)
		c.mu.RUnlock()
		return keys
	}
	c.mu.RUnlock()

	return c.Refresh(ctx).Keys
}

// Refresh rediscovers the key set and replaces the cache.
func (c *SchemaCache) Refresh(ctx context.Context) SchemaSnapshot {
	keys := c.DiscoverKeys(ctx)

	c.mu.Lock()
	c.keys = keys
	c.loadedAt = c.now().UTC()
	snapshot := SchemaSnapshot{Keys: append([]string(nil), keys...), LoadedAt: c.loadedAt}
	c.mu.Unlock()

	c.logger.Info("Schema keys refreshed", zap.Int("keys", len(keys)))
	return snapshot
}

// Invalidate drops the cache so the next Keys call reloads it.
func (c *SchemaCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.keys = nil
	c.loadedAt = time.Time{}
}

// LoadedAt is zero when the cache is empty.
func (c *SchemaCache) LoadedAt() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loadedAt
}

func (c *SchemaCache) Snapshot() SchemaSnapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return SchemaSnapshot{Keys: append([]string(nil), c.keys...), LoadedAt: c.loadedAt}
}

func defaultStates() []string {
	return append([]string(nil), domain.DefaultValidStates...)
}
