package cache

import (
	"time"

	"github.com/goliatone/go-document-config/internal/cacheinfra"
)

// Config exposes cache configuration options for consumers of the cache package.
type Config struct {
	Capacity           int
	NumShards          int
	TTL                time.Duration
	EvictionPercentage int
	EvictionInterval   time.Duration
}

// DefaultConfig returns a Config populated with sensible defaults.
func DefaultConfig() Config {
	return convertFromInternal(cacheinfra.DefaultConfig())
}

// Validate checks whether the configuration values are valid.
func (c Config) Validate() error {
	return c.toInternal().Validate()
}

// New constructs a standalone cache backed by sturdyc.
func New(cfg Config) (Cache, error) {
	store, err := cacheinfra.NewStore(cfg.toInternal())
	if err != nil {
		return nil, err
	}
	return &storeCache{store: store}, nil
}

func (c Config) toInternal() cacheinfra.Config {
	return cacheinfra.Config{
		Capacity:           c.Capacity,
		NumShards:          c.NumShards,
		TTL:                c.TTL,
		EvictionPercentage: c.EvictionPercentage,
		EvictionInterval:   c.EvictionInterval,
	}
}

func convertFromInternal(cfg cacheinfra.Config) Config {
	return Config{
		Capacity:           cfg.Capacity,
		NumShards:          cfg.NumShards,
		TTL:                cfg.TTL,
		EvictionPercentage: cfg.EvictionPercentage,
		EvictionInterval:   cfg.EvictionInterval,
	}
}

// storeCache adapts the internal store to the Cache contract.
type storeCache struct {
	store *cacheinfra.Store
}

func (c *storeCache) Get(key string) Lookup {
	value, absent, found := c.store.Get(key)
	switch {
	case !found:
		return Lookup{}
	case absent:
		return Absent()
	default:
		return HitOf(value)
	}
}

func (c *storeCache) Set(key string, value any) {
	if value == nil {
		c.store.SetAbsent(key)
		return
	}
	c.store.Set(key, value)
}

func (c *storeCache) MarkAbsent(key string) { c.store.SetAbsent(key) }

func (c *storeCache) Clear() { c.store.Clear() }

func (c *storeCache) Len() int { return c.store.Len() }
