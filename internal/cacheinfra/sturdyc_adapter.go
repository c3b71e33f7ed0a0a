package cacheinfra

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	errors "github.com/goliatone/go-errors"
	"github.com/viccon/sturdyc"
)

// Config holds the configuration for the sturdyc cache adapter.
type Config struct {
	// Capacity defines the maximum number of entries that the cache can store.
	// Must be greater than 0.
	Capacity int

	// NumShards determines the number of cache shards for concurrent access.
	// Must be greater than 0. Default: 64
	NumShards int

	// TTL bounds how long a property stays cached when no invalidation event
	// arrives. Must be greater than 0.
	TTL time.Duration

	// EvictionPercentage specifies what percentage of entries to evict
	// when the cache reaches its capacity. Must be between 1-100.
	EvictionPercentage int

	// EvictionInterval sets how often the cache checks for expired entries.
	// Zero value uses the default interval.
	EvictionInterval time.Duration
}

// DefaultConfig returns a Config with sensible defaults for configuration caches.
// Entries also leave the cache on TTL expiry or capacity eviction, after which
// the next lookup goes back to the store.
func DefaultConfig() Config {
	return Config{
		Capacity:           1000,
		NumShards:          64,
		TTL:                time.Hour,
		EvictionPercentage: 10,
		EvictionInterval:   0, // Use default
	}
}

// ToSturdycOptions converts the Config to sturdyc.Option slice.
// Capacity, NumShards, TTL, and EvictionPercentage are passed directly
// to sturdyc.New() and are not included in the options.
func (c Config) ToSturdycOptions() []sturdyc.Option {
	var options []sturdyc.Option

	if c.EvictionInterval > 0 {
		options = append(options, sturdyc.WithEvictionInterval(c.EvictionInterval))
	}

	return options
}

// Validate checks if the configuration values are valid.
func (c Config) Validate() error {
	err := validation.ValidateStruct(&c,
		validation.Field(&c.Capacity, validation.Required, validation.Min(1)),
		validation.Field(&c.NumShards, validation.Required, validation.Min(1)),
		validation.Field(&c.TTL, validation.Required, validation.Min(time.Nanosecond)),
		validation.Field(&c.EvictionPercentage, validation.Required, validation.Min(1), validation.Max(100)),
		validation.Field(&c.EvictionInterval, validation.Min(time.Duration(0))),
	)
	if err != nil {
		return errors.FromOzzoValidation(err, "invalid cache configuration")
	}
	return nil
}

// entry distinguishes a stored value from a remembered absence so nil never
// has to double as a marker.
type entry struct {
	value  any
	absent bool
}

// Store wraps a sturdyc client holding configuration entries.
type Store struct {
	client *sturdyc.Client[entry]
}

// NewStore validates cfg and creates the sturdyc client.
func NewStore(cfg Config) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	client := sturdyc.New[entry](
		cfg.Capacity,
		cfg.NumShards,
		cfg.TTL,
		cfg.EvictionPercentage,
		cfg.ToSturdycOptions()...,
	)

	return &Store{client: client}, nil
}

// Get returns the entry stored under key. found is false on a miss.
func (s *Store) Get(key string) (value any, absent bool, found bool) {
	e, ok := s.client.Get(key)
	if !ok {
		return nil, false, false
	}
	return e.value, e.absent, true
}

// Set stores a value.
func (s *Store) Set(key string, value any) {
	s.client.Set(key, entry{value: value})
}

// SetAbsent remembers that key has no value.
func (s *Store) SetAbsent(key string) {
	s.client.Set(key, entry{absent: true})
}

// Delete removes a single entry.
func (s *Store) Delete(key string) {
	s.client.Delete(key)
}

// Clear removes every entry. Writes racing a Clear may survive it.
func (s *Store) Clear() {
	for _, key := range s.client.ScanKeys() {
		s.client.Delete(key)
	}
}

// Len returns the number of cached entries.
func (s *Store) Len() int {
	return s.client.Size()
}
