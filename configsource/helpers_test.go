package configsource

import (
	"context"
	"io"
	"log/slog"
	"sync"

	"pgregory.net/rapid"

	"github.com/goliatone/go-document-config/cache"
	"github.com/goliatone/go-document-config/convert"
	"github.com/goliatone/go-document-config/document"
	"github.com/goliatone/go-document-config/event"
	"github.com/goliatone/go-document-config/execution"
	"github.com/goliatone/go-document-config/reference"
)

var (
	prefsDoc   = reference.NewDocument("xwiki", "XWiki", "XWikiPreferences")
	prefsClass = reference.NewClass("XWiki", "XWikiPreferences")
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fixture wires a wiki preferences source over an in-memory store.
type fixture struct {
	bus     *event.Bus
	store   *document.MemoryStore
	caches  *cache.Manager
	metrics *Metrics
	src     *DocumentSource
	ctx     context.Context
}

func newFixture(t rapid.TB, opts ...Option) *fixture {
	t.Helper()

	bus := event.NewBus(event.WithLogger(quietLogger()))
	store := document.NewMemoryStore(
		document.WithPublisher(bus),
		document.WithLogger(quietLogger()),
	)
	caches, err := cache.NewManager(cache.DefaultConfig())
	if err != nil {
		t.Fatalf("failed to create cache manager: %v", err)
	}
	metrics := NewMetrics()

	f := &fixture{
		bus:     bus,
		store:   store,
		caches:  caches,
		metrics: metrics,
		ctx:     execution.With(context.Background(), execution.Context{Wiki: "xwiki"}),
	}

	opts = append([]Option{WithLogger(quietLogger()), WithMetrics(metrics)}, opts...)
	f.src, err = New(context.Background(), NewWikiPreferencesDomain(), f.deps(), opts...)
	if err != nil {
		t.Fatalf("failed to create source: %v", err)
	}
	return f
}

func (f *fixture) deps() Dependencies {
	return Dependencies{
		Caches:    f.caches,
		Bus:       f.bus,
		Store:     f.store,
		Converter: convert.New(),
	}
}

func (f *fixture) put(pairs ...any) {
	f.store.Put(prefsDoc, prefsClass, document.RecordOf(pairs...))
}

func (f *fixture) set(t rapid.TB, name string, value any) {
	t.Helper()
	if err := f.store.SetField(f.ctx, prefsDoc, prefsClass, name, value); err != nil {
		t.Fatalf("SetField(%s) failed: %v", name, err)
	}
}

func (f *fixture) cacheLen() int {
	c, ok := f.caches.Get(WikiPreferencesCacheID)
	if !ok {
		return 0
	}
	return c.Len()
}

// countingStore wraps a store and can be told to fail.
type countingStore struct {
	mu    sync.Mutex
	inner document.Store
	calls int
	err   error
}

func (s *countingStore) FetchRecord(ctx context.Context, doc reference.Document, class reference.Class) (*document.Record, error) {
	s.mu.Lock()
	s.calls++
	err := s.err
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return s.inner.FetchRecord(ctx, doc, class)
}

func (s *countingStore) fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

func (s *countingStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// brokenDomain misbehaves on demand.
type brokenDomain struct {
	id         string
	docPanic   bool
	docErr     error
	classErr   error
	classPanic bool
}

func (d *brokenDomain) DocumentReference(context.Context) (reference.Document, error) {
	if d.docPanic {
		panic("document resolution exploded")
	}
	if d.docErr != nil {
		return reference.Document{}, d.docErr
	}
	return prefsDoc, nil
}

func (d *brokenDomain) ClassReference() (reference.Class, error) {
	if d.classPanic {
		panic("class resolution exploded")
	}
	if d.classErr != nil {
		return reference.Class{}, d.classErr
	}
	return prefsClass, nil
}

func (d *brokenDomain) CacheID() string {
	return d.id
}
