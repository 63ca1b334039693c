package application

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	catalog "gridledger/internal/catalog/domain"
	"gridledger/internal/observability/metrics"
)

// DefaultCacheTTL bounds how long a cached plant list stays fresh.
const DefaultCacheTTL = time.Hour

// Clock abstracts time for TTL checks.
type Clock interface {
	Now() time.Time
}

// plantCache holds the last fetched plant list with its fetch time.
// The object is owned and injected by the directory; nothing global.
type plantCache struct {
	mu        sync.RWMutex
	value     []catalog.Plant
	fetchedAt time.Time
	ttl       time.Duration
	clock     Clock
}

func newPlantCache(ttl time.Duration, clock Clock) *plantCache {
	return &plantCache{ttl: ttl, clock: clock}
}

// fresh reports whether the cached value is still inside its TTL.
func (c *plantCache) fresh() bool {
	return c.value != nil && c.clock.Now().Sub(c.fetchedAt) < c.ttl
}

func (c *plantCache) get() ([]catalog.Plant, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.fresh() {
		return nil, false
	}
	out := make([]catalog.Plant, len(c.value))
	copy(out, c.value)
	return out, true
}

func (c *plantCache) set(plants []catalog.Plant) {
	stored := make([]catalog.Plant, len(plants))
	copy(stored, plants)
	c.mu.Lock()
	c.value = stored
	c.fetchedAt = c.clock.Now()
	c.mu.Unlock()
}

func (c *plantCache) invalidate() {
	c.mu.Lock()
	c.value = nil
	c.fetchedAt = time.Time{}
	c.mu.Unlock()
}

// Directory serves the plant list with time-boxed caching in front of
// the repository.
type Directory struct {
	repo   catalog.PlantRepository
	cache  *plantCache
	logger *log.Logger
}

// DirectoryOption configures a Directory.
type DirectoryOption func(*Directory)

// WithCacheTTL overrides the default cache TTL.
func WithCacheTTL(ttl time.Duration) DirectoryOption {
	return func(d *Directory) {
		if ttl > 0 {
			d.cache.ttl = ttl
		}
	}
}

// NewDirectory constructs a directory.
func NewDirectory(repo catalog.PlantRepository, clock Clock, logger *log.Logger, opts ...DirectoryOption) (*Directory, error) {
	if repo == nil {
		return nil, errors.New("directory: nil repository")
	}
	if clock == nil {
		return nil, errors.New("directory: nil clock")
	}
	if logger == nil {
		return nil, errors.New("directory: nil logger")
	}
	directory := &Directory{
		repo:   repo,
		cache:  newPlantCache(DefaultCacheTTL, clock),
		logger: logger,
	}
	for _, opt := range opts {
		opt(directory)
	}
	return directory, nil
}

// Plants returns the registered plants, from cache when fresh.
func (d *Directory) Plants(ctx context.Context) ([]catalog.Plant, error) {
	if cached, ok := d.cache.get(); ok {
		metrics.IncPlantCacheHit()
		return cached, nil
	}
	metrics.IncPlantCacheMiss()

	plants, err := d.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	d.cache.set(plants)
	return plants, nil
}

// Plant resolves one plant by id, served from the cached list when
// fresh so hot lookups skip the repository.
func (d *Directory) Plant(ctx context.Context, id string) (*catalog.Plant, error) {
	if id == "" {
		return nil, catalog.ErrEmptyPlantID
	}
	if cached, ok := d.cache.get(); ok {
		for i := range cached {
			if cached[i].ID == id {
				metrics.IncPlantCacheHit()
				plant := cached[i]
				return &plant, nil
			}
		}
	}
	plant, err := d.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if plant == nil {
		return nil, catalog.ErrPlantNotFound
	}
	return plant, nil
}

// Invalidate drops the cached list; the next call refetches.
func (d *Directory) Invalidate() {
	d.cache.invalidate()
	d.logger.Printf("plant cache invalidated")
}
