// Package catalog provides a read-through cache in front of the catalog store.
package catalog

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"brainrotMarket/internal/domain"
	"brainrotMarket/internal/ports"
)

const (
	keyMutations = "mutations"
	keyTraits    = "traits"
	keyItem      = "item:"

	// loadTimeout bounds a shared load, which outlives the caller that started it.
	loadTimeout = 30 * time.Second
)

// Config holds configuration for the cache.
type Config struct {
	// TTL bounds how long an entry is served without a reload. Zero keeps
	// entries until Invalidate is called.
	TTL    time.Duration
	Logger ports.Logger
}

// Snapshot is the modifier catalog loaded in one go.
type Snapshot struct {
	Mutations []domain.Mutation
	Traits    []domain.Trait
}

type entry[T any] struct {
	value    T
	loadedAt time.Time
}

// Cache memoizes catalog reads. Returned slices and items are shared between
// callers and must be treated as read-only.
type Cache struct {
	repo   ports.CatalogRepository
	logger ports.Logger
	ttl    time.Duration
	now    func() time.Time

	mu         sync.RWMutex
	generation uint64 // Bumped by Invalidate; stale loads are not stored
	mutations  *entry[[]domain.Mutation]
	traits     *entry[[]domain.Trait]
	items      map[string]entry[*domain.Item]

	group singleflight.Group
}

// New creates a cache over repo.
func New(repo ports.CatalogRepository, cfg Config) (*Cache, error) {
	if repo == nil {
		return nil, fmt.Errorf("catalog repository is required")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for catalog cache")
	}
	if cfg.TTL < 0 {
		return nil, fmt.Errorf("catalog cache TTL cannot be negative")
	}
	return &Cache{
		repo:   repo,
		logger: cfg.Logger,
		ttl:    cfg.TTL,
		now:    time.Now,
		items:  make(map[string]entry[*domain.Item]),
	}, nil
}

func (c *Cache) fresh(loadedAt time.Time) bool {
	return c.ttl == 0 || c.now().Sub(loadedAt) < c.ttl
}

// flightKey scopes a load to the generation it started in, so callers arriving
// after Invalidate never join a load that began before it.
func flightKey(key string, gen uint64) string {
	return fmt.Sprintf("%s@%d", key, gen)
}

// load runs fn once per key for all concurrent callers. fn gets a context
// detached from any single caller's cancellation; each caller still stops
// waiting when its own ctx is done.
func (c *Cache) load(ctx context.Context, key string, fn func(ctx context.Context) (interface{}, error)) (interface{}, error) {
	ch := c.group.DoChan(key, func() (interface{}, error) {
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), loadTimeout)
		defer cancel()
		return fn(loadCtx)
	})
	select {
	case res := <-ch:
		return res.Val, res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// ListMutations returns the mutation catalog, loading it on a miss.
func (c *Cache) ListMutations(ctx context.Context) ([]domain.Mutation, error) {
	c.mu.RLock()
	if e := c.mutations; e != nil && c.fresh(e.loadedAt) {
		c.mu.RUnlock()
		return e.value, nil
	}
	gen := c.generation
	c.mu.RUnlock()

	v, err := c.load(ctx, flightKey(keyMutations, gen), func(ctx context.Context) (interface{}, error) {
		mutations, err := c.repo.ListMutations(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to load mutations: %w", err)
		}
		c.mu.Lock()
		if c.generation == gen {
			c.mutations = &entry[[]domain.Mutation]{value: mutations, loadedAt: c.now()}
		}
		c.mu.Unlock()
		c.logger.Debug(ctx, "Mutation catalog loaded", map[string]interface{}{"count": len(mutations)})
		return mutations, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]domain.Mutation), nil
}

// ListTraits returns the trait catalog, loading it on a miss.
func (c *Cache) ListTraits(ctx context.Context) ([]domain.Trait, error) {
	c.mu.RLock()
	if e := c.traits; e != nil && c.fresh(e.loadedAt) {
		c.mu.RUnlock()
		return e.value, nil
	}
	gen := c.generation
	c.mu.RUnlock()

	v, err := c.load(ctx, flightKey(keyTraits, gen), func(ctx context.Context) (interface{}, error) {
		traits, err := c.repo.ListTraits(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to load traits: %w", err)
		}
		c.mu.Lock()
		if c.generation == gen {
			c.traits = &entry[[]domain.Trait]{value: traits, loadedAt: c.now()}
		}
		c.mu.Unlock()
		c.logger.Debug(ctx, "Trait catalog loaded", map[string]interface{}{"count": len(traits)})
		return traits, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]domain.Trait), nil
}

// GetItem returns an item by id. Missing items are not cached, so an item
// added later becomes visible without invalidation. Returns nil, nil if absent.
func (c *Cache) GetItem(ctx context.Context, id string) (*domain.Item, error) {
	c.mu.RLock()
	if e, ok := c.items[id]; ok && c.fresh(e.loadedAt) {
		c.mu.RUnlock()
		return e.value, nil
	}
	gen := c.generation
	c.mu.RUnlock()

	v, err := c.load(ctx, flightKey(keyItem+id, gen), func(ctx context.Context) (interface{}, error) {
		item, err := c.repo.GetItem(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("failed to load item %s: %w", id, err)
		}
		if item == nil {
			return (*domain.Item)(nil), nil
		}
		c.mu.Lock()
		if c.generation == gen {
			c.items[id] = entry[*domain.Item]{value: item, loadedAt: c.now()}
		}
		c.mu.Unlock()
		return item, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*domain.Item), nil
}

// Snapshot loads mutations and traits concurrently.
func (c *Cache) Snapshot(ctx context.Context) (Snapshot, error) {
	var snap Snapshot
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		m, err := c.ListMutations(gctx)
		snap.Mutations = m
		return err
	})
	g.Go(func() error {
		t, err := c.ListTraits(gctx)
		snap.Traits = t
		return err
	})
	if err := g.Wait(); err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}

// Invalidate drops every cached entry. Loads already in flight finish but
// their results are discarded.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	c.generation++
	c.mutations = nil
	c.traits = nil
	c.items = make(map[string]entry[*domain.Item])
	c.mu.Unlock()
	c.logger.Info(context.Background(), "Catalog cache invalidated")
}

// InvalidateItem drops a single cached item and detaches callers from any
// load of it already in flight.
func (c *Cache) InvalidateItem(id string) {
	c.mu.Lock()
	delete(c.items, id)
	c.group.Forget(flightKey(keyItem+id, c.generation))
	c.mu.Unlock()
	c.logger.Info(context.Background(), "Catalog item invalidated", map[string]interface{}{"itemID": id})
}
