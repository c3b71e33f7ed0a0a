package di

import (
	"context"
	"log/slog"

	errors "github.com/goliatone/go-errors"

	"github.com/goliatone/go-document-config/cache"
	"github.com/goliatone/go-document-config/configsource"
	"github.com/goliatone/go-document-config/convert"
	"github.com/goliatone/go-document-config/document"
	"github.com/goliatone/go-document-config/event"
)

// StoreFactory builds the document store. The publisher is the container bus;
// stores must publish their write events to it for caches to be invalidated.
type StoreFactory func(pub event.Publisher) (document.ReadWriter, error)

// Option configures a Container.
type Option func(*Container)

// WithStore replaces the default in-memory store.
func WithStore(factory StoreFactory) Option {
	return func(c *Container) {
		c.storeFactory = factory
	}
}

// WithLogger sets the logger shared by the bus and every source.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Container) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithConverter replaces the default cast based converter.
func WithConverter(conv convert.Converter) Option {
	return func(c *Container) {
		if conv != nil {
			c.converter = conv
		}
	}
}

// WithMetrics shares m between every source the container builds.
func WithMetrics(m *configsource.Metrics) Option {
	return func(c *Container) {
		c.metrics = m
	}
}

// Container wires the collaborators configuration sources depend on and
// builds sources over them. Every component is a singleton of the container.
type Container struct {
	caches        *cache.Manager
	bus           *event.Bus
	converter     convert.Converter
	store         document.ReadWriter
	metrics       *configsource.Metrics
	keySerializer cache.KeySerializer
	logger        *slog.Logger
	config        cache.Config

	storeFactory StoreFactory
}

// NewContainer creates a container whose caches use config.
func NewContainer(config cache.Config, opts ...Option) (*Container, error) {
	c := &Container{
		converter:     convert.New(),
		keySerializer: cache.NewDefaultKeySerializer(),
		logger:        slog.Default(),
		config:        config,
	}
	for _, opt := range opts {
		opt(c)
	}

	caches, err := cache.NewManager(config)
	if err != nil {
		return nil, err
	}
	c.caches = caches
	c.bus = event.NewBus(event.WithLogger(c.logger))

	if c.storeFactory == nil {
		c.store = document.NewMemoryStore(
			document.WithPublisher(c.bus),
			document.WithLogger(c.logger),
		)
		return c, nil
	}

	store, err := c.storeFactory(c.bus)
	if err != nil {
		c.bus.Close()
		return nil, errors.Wrap(err, errors.CategoryInternal, "create document store")
	}
	if store == nil {
		c.bus.Close()
		return nil, errors.New("store factory returned no store", errors.CategoryInternal)
	}
	c.store = store
	return c, nil
}

// NewContainerWithDefaults creates a container using the default cache
// configuration and an in-memory store.
func NewContainerWithDefaults(opts ...Option) (*Container, error) {
	return NewContainer(cache.DefaultConfig(), opts...)
}

// NewSource builds a document source for domain over the container's
// components. Options given here apply after the container defaults.
func (c *Container) NewSource(ctx context.Context, domain configsource.Domain, opts ...configsource.Option) (*configsource.DocumentSource, error) {
	base := []configsource.Option{
		configsource.WithLogger(c.logger),
		configsource.WithKeySerializer(c.keySerializer),
	}
	if c.metrics != nil {
		base = append(base, configsource.WithMetrics(c.metrics))
	}
	return configsource.New(ctx, domain, c.Dependencies(), append(base, opts...)...)
}

// Dependencies returns the collaborators shared by every source.
func (c *Container) Dependencies() configsource.Dependencies {
	return configsource.Dependencies{
		Caches:    c.caches,
		Bus:       c.bus,
		Store:     c.store,
		Converter: c.converter,
	}
}

// Caches returns the cache manager.
func (c *Container) Caches() *cache.Manager {
	return c.caches
}

// Bus returns the event bus stores publish to.
func (c *Container) Bus() *event.Bus {
	return c.bus
}

// Store returns the document store.
func (c *Container) Store() document.ReadWriter {
	return c.store
}

// Converter returns the value converter.
func (c *Container) Converter() convert.Converter {
	return c.converter
}

// Metrics returns the shared metrics, nil when not configured.
func (c *Container) Metrics() *configsource.Metrics {
	return c.metrics
}

// KeySerializer returns the key serializer sources use.
func (c *Container) KeySerializer() cache.KeySerializer {
	return c.keySerializer
}

// Config returns a copy of the cache configuration used by this container.
func (c *Container) Config() cache.Config {
	return c.config
}

// Close stops event delivery. Sources built by the container should be
// closed first.
func (c *Container) Close() {
	c.bus.Close()
}
