package cache

import (
	"fmt"
	"sort"

	errors "github.com/goliatone/go-errors"
	"github.com/puzpuzpuz/xsync/v3"
)

// ErrDuplicateCache is returned when an identifier already has a live cache.
var ErrDuplicateCache = errors.New("cache identifier already in use", errors.CategoryConflict)

// Manager creates caches and keeps one per identifier.
type Manager struct {
	config Config
	caches *xsync.MapOf[string, Cache]
}

// NewManager validates cfg, which becomes the default for every cache the
// manager creates.
func NewManager(cfg Config) (*Manager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Manager{
		config: cfg,
		caches: xsync.NewMapOf[string, Cache](),
	}, nil
}

// Config returns the default cache configuration.
func (m *Manager) Config() Config {
	return m.config
}

// NewCache creates the cache registered under id using the default config.
func (m *Manager) NewCache(id string) (Cache, error) {
	return m.NewCacheWithConfig(id, m.config)
}

// NewCacheWithConfig creates the cache registered under id. It fails with
// ErrDuplicateCache while a previous cache for id has not been released.
func (m *Manager) NewCacheWithConfig(id string, cfg Config) (Cache, error) {
	if id == "" {
		return nil, errors.New("cache identifier is required", errors.CategoryValidation)
	}

	var buildErr error
	created, loaded := m.caches.LoadOrTryCompute(id, func() (Cache, bool) {
		c, err := New(cfg)
		if err != nil {
			buildErr = err
			return nil, true
		}
		return c, false
	})

	if buildErr != nil {
		return nil, errors.Wrap(buildErr, errors.CategoryInternal, fmt.Sprintf("create cache %s", id))
	}
	if loaded {
		return nil, fmt.Errorf("create cache %s: %w", id, ErrDuplicateCache)
	}
	return created, nil
}

// Get returns the live cache registered under id.
func (m *Manager) Get(id string) (Cache, bool) {
	return m.caches.Load(id)
}

// Release clears the cache registered under id and frees the identifier.
func (m *Manager) Release(id string) {
	if c, ok := m.caches.LoadAndDelete(id); ok {
		c.Clear()
	}
}

// IDs lists live cache identifiers, sorted.
func (m *Manager) IDs() []string {
	ids := make([]string, 0, m.caches.Size())
	m.caches.Range(func(id string, _ Cache) bool {
		ids = append(ids, id)
		return true
	})
	sort.Strings(ids)
	return ids
}
