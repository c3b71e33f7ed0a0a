package configsource

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	errors "github.com/goliatone/go-errors"

	"github.com/goliatone/go-document-config/cache"
	"github.com/goliatone/go-document-config/convert"
	"github.com/goliatone/go-document-config/document"
	"github.com/goliatone/go-document-config/event"
	"github.com/goliatone/go-document-config/execution"
	"github.com/goliatone/go-document-config/reference"
)

// ConfigurationSource is a read only view over configuration properties.
type ConfigurationSource interface {
	// ContainsKey reports whether key has a non-nil, non-empty value.
	ContainsKey(ctx context.Context, key string) bool
	// Keys lists the available properties.
	Keys(ctx context.Context) []string
	// IsEmpty reports whether Keys is empty.
	IsEmpty(ctx context.Context) bool
	// Get returns the raw value of key, nil when absent.
	Get(ctx context.Context, key string) any
	// GetAs returns key converted to typ, or typ.Zero() when absent.
	GetAs(ctx context.Context, key string, typ convert.Type) any
	// GetOr returns key converted to the type of def, or def when absent.
	GetOr(ctx context.Context, key string, def any) any
}

// Dependencies are the collaborators a DocumentSource needs.
type Dependencies struct {
	Caches    *cache.Manager
	Bus       event.Subscriber
	Store     document.Store
	Converter convert.Converter
}

// Validate checks every dependency is set.
func (d Dependencies) Validate() error {
	err := validation.ValidateStruct(&d,
		validation.Field(&d.Caches, validation.Required),
		validation.Field(&d.Bus, validation.Required),
		validation.Field(&d.Store, validation.Required),
		validation.Field(&d.Converter, validation.Required),
	)
	if err != nil {
		return errors.FromOzzoValidation(err, "invalid configuration source dependencies")
	}
	return nil
}

// Option configures a DocumentSource.
type Option func(*DocumentSource)

// WithLogger sets the logger resolution and conversion failures go to.
func WithLogger(logger *slog.Logger) Option {
	return func(s *DocumentSource) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics publishes the source counters on m.
func WithMetrics(m *Metrics) Option {
	return func(s *DocumentSource) {
		s.metrics = m
	}
}

// WithExecutionProvider overrides how the source detects an execution
// context. The default reads it from the context.Context.
func WithExecutionProvider(p execution.Provider) Option {
	return func(s *DocumentSource) {
		if p != nil {
			s.exec = p
		}
	}
}

// WithKeySerializer overrides how cache keys are built.
func WithKeySerializer(ks cache.KeySerializer) Option {
	return func(s *DocumentSource) {
		if ks != nil {
			s.keys = ks
		}
	}
}

// DocumentSource reads configuration from one structured object, caching
// every property it resolves until an event about that object's class or
// wiki clears the cache.
type DocumentSource struct {
	domain    Domain
	cacheID   string
	caches    *cache.Manager
	cache     cache.Cache
	sub       *event.Subscription
	store     document.Store
	converter convert.Converter
	exec      execution.Provider
	keys      cache.KeySerializer
	logger    *slog.Logger
	metrics   *Metrics
	counters  *sourceCounters
	closeOnce sync.Once
	closed    atomic.Bool
}

var _ ConfigurationSource = (*DocumentSource)(nil)

// New creates the source for domain: it acquires the cache named after
// domain.CacheID() and registers the invalidation listener under the same
// name. The cache is released again if any later step fails.
func New(ctx context.Context, domain Domain, deps Dependencies, opts ...Option) (*DocumentSource, error) {
	if domain == nil {
		return nil, errors.New("configuration domain is required", errors.CategoryValidation)
	}
	if err := deps.Validate(); err != nil {
		return nil, err
	}

	s := &DocumentSource{
		domain:    domain,
		cacheID:   domain.CacheID(),
		caches:    deps.Caches,
		store:     deps.Store,
		converter: deps.Converter,
		exec:      execution.ContextProvider,
		keys:      cache.NewDefaultKeySerializer(),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.counters = newSourceCounters(s.metrics, s.cacheID)
	s.logger = s.logger.With(slog.String("cache_id", s.cacheID))

	c, err := s.caches.NewCache(s.cacheID)
	if err != nil {
		return nil, initializationError(s.cacheID, "acquire cache", err)
	}
	s.cache = c

	ok := false
	defer func() {
		if !ok {
			s.caches.Release(s.cacheID)
		}
	}()

	class, err := s.safeClassReference()
	if err != nil {
		return nil, initializationError(s.cacheID, "resolve class", err)
	}

	pattern := reference.ObjectPattern(class)
	filters := []event.Filter{
		{Kind: event.ObjectAdded, Pattern: pattern},
		{Kind: event.ObjectUpdated, Pattern: pattern},
		{Kind: event.ObjectDeleted, Pattern: pattern},
		{Kind: event.WikiDeleted},
	}

	s.sub, err = deps.Bus.Subscribe(s.cacheID, filters, s.onEvent)
	if err != nil {
		return nil, initializationError(s.cacheID, "subscribe listener", err)
	}

	ok = true
	s.logger.DebugContext(ctx, "configuration source registered", slog.String("class", class.String()))
	return s, nil
}

// CacheID returns the identifier of the source cache and listener.
func (s *DocumentSource) CacheID() string {
	return s.cacheID
}

// Stats returns the source counters.
func (s *DocumentSource) Stats() Stats {
	return s.counters.snapshot()
}

// Registered reports whether the invalidation listener is still active.
func (s *DocumentSource) Registered() bool {
	return s.sub != nil && !s.sub.Closed()
}

// Close clears the cache, unregisters the listener and releases the cache
// id. Lookups on a closed source read the store without caching. It is safe
// to call more than once.
func (s *DocumentSource) Close(ctx context.Context) error {
	var err error
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		s.cache.Clear()
		err = s.sub.Close()
		s.caches.Release(s.cacheID)
		s.logger.DebugContext(ctx, "configuration source closed")
	})
	return err
}

// ContainsKey reports whether key resolves to a value that is neither nil
// nor an empty string.
func (s *DocumentSource) ContainsKey(ctx context.Context, key string) bool {
	v := s.resolve(ctx, key, convert.Any)
	if v == nil {
		return false
	}
	if str, ok := v.(string); ok {
		return str != ""
	}
	return true
}

// Keys lists the fields of the configuration object in store order. Keys are
// read from the store on every call.
func (s *DocumentSource) Keys(ctx context.Context) []string {
	if _, ok := s.exec.Current(ctx); !ok {
		return []string{}
	}
	doc, ok := s.documentReference(ctx)
	if !ok {
		return []string{}
	}
	class, err := s.safeClassReference()
	if err != nil {
		s.resolutionFailed(ctx, "class", err)
		return []string{}
	}

	rec, err := s.fetch(ctx, doc, class)
	if err != nil || rec == nil {
		return []string{}
	}
	return rec.FieldNames()
}

// IsEmpty reports whether the configuration object has no fields.
func (s *DocumentSource) IsEmpty(ctx context.Context) bool {
	return len(s.Keys(ctx)) == 0
}

// Get returns the raw value of key, or nil when absent.
func (s *DocumentSource) Get(ctx context.Context, key string) any {
	return s.resolve(ctx, key, convert.Any)
}

// GetAs returns key converted to typ. Absent or unconvertible values yield
// typ.Zero().
func (s *DocumentSource) GetAs(ctx context.Context, key string, typ convert.Type) any {
	if v := s.resolve(ctx, key, typ); v != nil {
		return v
	}
	return typ.Zero()
}

// GetOr converts key to the type of def and returns def when absent.
func (s *DocumentSource) GetOr(ctx context.Context, key string, def any) any {
	if v := s.resolve(ctx, key, convert.TypeOf(def)); v != nil {
		return v
	}
	return def
}

func (s *DocumentSource) resolve(ctx context.Context, key string, typ convert.Type) any {
	doc, ok := s.documentReference(ctx)
	if !ok {
		return nil
	}

	// A closed source no longer receives invalidations, so it reads through.
	if s.closed.Load() {
		if _, ok := s.exec.Current(ctx); !ok {
			return nil
		}
		value, err := s.lookup(ctx, doc, key)
		if err != nil || value == nil {
			return nil
		}
		return s.adapt(ctx, key, value, typ)
	}

	cacheKey := s.keys.SerializeKey(doc.String(), key)

	switch l := s.cache.Get(cacheKey); l.State() {
	case cache.Hit:
		s.counters.hits.inc()
		return s.adapt(ctx, key, l.Value(), typ)
	case cache.KnownAbsent:
		s.counters.absentHits.inc()
		return nil
	}
	s.counters.misses.inc()

	if _, ok := s.exec.Current(ctx); !ok {
		return nil
	}

	value, err := s.lookup(ctx, doc, key)
	if err != nil {
		return nil
	}

	if value != nil && typ != convert.Any {
		converted, err := s.converter.Convert(typ, value)
		if err != nil {
			s.conversionFailed(ctx, key, typ, err)
			return nil
		}
		value = converted
	}

	if value == nil {
		s.cache.MarkAbsent(cacheKey)
		return nil
	}
	s.cache.Set(cacheKey, value)
	return value
}

// lookup reads the raw field. An unresolvable class yields an absent value;
// a store failure is returned so the caller skips caching.
func (s *DocumentSource) lookup(ctx context.Context, doc reference.Document, key string) (any, error) {
	class, err := s.safeClassReference()
	if err != nil {
		s.resolutionFailed(ctx, "class", err)
		return nil, nil
	}

	rec, err := s.fetch(ctx, doc, class)
	if err != nil {
		return nil, err
	}
	value, _ := rec.Field(key)
	return value, nil
}

func (s *DocumentSource) fetch(ctx context.Context, doc reference.Document, class reference.Class) (*document.Record, error) {
	s.counters.storeFetches.inc()

	rec, err := s.store.FetchRecord(ctx, doc, class)
	if err != nil {
		s.counters.resolutionErrors.inc()
		s.logError(ctx, "failed to read configuration object", err,
			slog.String("document", doc.String()),
			slog.String("class", class.String()),
		)
		return nil, err
	}
	return rec, nil
}

// adapt converts a cached value that was stored for a different type.
func (s *DocumentSource) adapt(ctx context.Context, key string, v any, typ convert.Type) any {
	if typ == convert.Any || typ.Matches(v) {
		return v
	}
	converted, err := s.converter.Convert(typ, v)
	if err != nil {
		s.conversionFailed(ctx, key, typ, err)
		return nil
	}
	return converted
}

func (s *DocumentSource) onEvent(ctx context.Context, e event.Event) error {
	s.cache.Clear()
	s.counters.invalidations.inc()
	s.logger.DebugContext(ctx, "configuration cache invalidated",
		slog.String("event_kind", string(e.Kind)),
		slog.String("reference", e.Reference),
	)
	return nil
}

// documentReference resolves the domain document. ok is false when the
// domain failed or has no document in this context.
func (s *DocumentSource) documentReference(ctx context.Context) (doc reference.Document, ok bool) {
	err := runSafely(func() error {
		var err error
		doc, err = s.domain.DocumentReference(ctx)
		return err
	})
	if err != nil {
		s.resolutionFailed(ctx, "document", fmt.Errorf("%w: %w", ErrReferenceResolution, err))
		return reference.Document{}, false
	}
	return doc, !doc.IsZero()
}

func (s *DocumentSource) safeClassReference() (class reference.Class, err error) {
	err = runSafely(func() error {
		var err error
		class, err = s.domain.ClassReference()
		return err
	})
	if err != nil {
		return reference.Class{}, fmt.Errorf("%w: %w", ErrReferenceResolution, err)
	}
	return class, nil
}

func (s *DocumentSource) resolutionFailed(ctx context.Context, what string, err error) {
	s.counters.resolutionErrors.inc()
	s.logError(ctx, "failed to resolve configuration reference", err, slog.String("reference_kind", what))
}

func (s *DocumentSource) conversionFailed(ctx context.Context, key string, typ convert.Type, err error) {
	s.counters.conversionErrors.inc()
	s.logError(ctx, "failed to convert configuration value", err,
		slog.String("key", key),
		slog.String("target", typ.String()),
	)
}

func (s *DocumentSource) logError(ctx context.Context, msg string, err error, attrs ...slog.Attr) {
	attrs = append(attrs, slog.String("error", err.Error()))
	attrs = append(attrs, errors.ToSlogAttributes(err)...)
	s.logger.LogAttrs(ctx, slog.LevelError, msg, attrs...)
}

// initializationError joins the failure of step to ErrCacheInitialization.
// The cause comes first so errors.As finds its details. Errors outside the
// go-errors taxonomy are wrapped as internal errors.
func initializationError(cacheID, step string, err error) error {
	var typed *errors.Error
	if errors.As(err, &typed) {
		return fmt.Errorf("%s: %w: %w", step, err, ErrCacheInitialization)
	}
	wrapped := errors.Wrap(err, errors.CategoryInternal, step).
		WithMetadata(map[string]any{"cache_id": cacheID})
	return fmt.Errorf("%w: %w", wrapped, ErrCacheInitialization)
}

// runSafely turns a panic in fn into an error.
func runSafely(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic recovered: %v", r)
		}
	}()
	return fn()
}
