package configsource

import (
	"context"
	stderrors "errors"
	"reflect"
	"testing"
	"time"

	errors "github.com/goliatone/go-errors"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/goliatone/go-document-config/cache"
	"github.com/goliatone/go-document-config/convert"
	"github.com/goliatone/go-document-config/document"
	"github.com/goliatone/go-document-config/event"
	"github.com/goliatone/go-document-config/execution"
	"github.com/goliatone/go-document-config/reference"
)

func TestPreferencesScenario(t *testing.T) {
	f := newFixture(t)
	f.put("color", "blue", "size", "")

	if got := f.src.Keys(f.ctx); !reflect.DeepEqual(got, []string{"color", "size"}) {
		t.Errorf("expected keys [color size], got %v", got)
	}
	if !f.src.ContainsKey(f.ctx, "color") {
		t.Error("expected color to be contained")
	}
	if f.src.ContainsKey(f.ctx, "size") {
		t.Error("expected empty size not to be contained")
	}
	if got := f.src.Get(f.ctx, "color"); got != "blue" {
		t.Errorf("expected blue, got %v", got)
	}
	if got := f.src.GetOr(f.ctx, "missing", "red"); got != "red" {
		t.Errorf("expected default red, got %v", got)
	}
	if f.src.IsEmpty(f.ctx) {
		t.Error("expected source not to be empty")
	}
}

func TestMissingKeyIsFetchedOnce(t *testing.T) {
	f := newFixture(t)
	f.put("color", "blue")

	for i := 0; i < 3; i++ {
		if got := f.src.Get(f.ctx, "missing"); got != nil {
			t.Fatalf("expected nil, got %v", got)
		}
	}
	if f.store.Fetches() != 1 {
		t.Errorf("expected one store fetch, got %d", f.store.Fetches())
	}

	stats := f.src.Stats()
	if stats.Misses != 1 || stats.AbsentHits != 2 {
		t.Errorf("expected 1 miss and 2 absent hits, got %+v", stats)
	}
}

func TestTypedLookupIsCached(t *testing.T) {
	f := newFixture(t)
	f.put("count", "42")

	first := f.src.GetAs(f.ctx, "count", convert.Int)
	second := f.src.GetAs(f.ctx, "count", convert.Int)

	if first != 42 || second != 42 {
		t.Fatalf("expected 42 twice, got %v and %v", first, second)
	}
	if f.store.Fetches() != 1 {
		t.Errorf("expected one store round trip, got %d", f.store.Fetches())
	}
}

func TestCachedValueIsReconvertedInMemory(t *testing.T) {
	f := newFixture(t)
	f.put("count", "42")

	if got := f.src.Get(f.ctx, "count"); got != "42" {
		t.Fatalf("expected raw string, got %#v", got)
	}
	if got := f.src.GetAs(f.ctx, "count", convert.Int); got != 42 {
		t.Errorf("expected 42, got %#v", got)
	}
	if got := f.src.GetOr(f.ctx, "count", int64(0)); got != int64(42) {
		t.Errorf("expected int64 42, got %#v", got)
	}
	if f.store.Fetches() != 1 {
		t.Errorf("expected one store fetch, got %d", f.store.Fetches())
	}
}

func TestMatchingEventInvalidates(t *testing.T) {
	f := newFixture(t)
	f.put("color", "blue", "size", "L")

	f.src.Get(f.ctx, "color")
	f.src.Get(f.ctx, "size")
	if f.store.Fetches() != 2 {
		t.Fatalf("expected 2 fetches, got %d", f.store.Fetches())
	}

	f.set(t, "color", "red")

	if f.cacheLen() != 0 {
		t.Errorf("expected cache to be cleared, got %d entries", f.cacheLen())
	}
	if got := f.src.Get(f.ctx, "color"); got != "red" {
		t.Errorf("expected fresh value red, got %v", got)
	}
	f.src.Get(f.ctx, "size")
	f.src.Get(f.ctx, "color")
	f.src.Get(f.ctx, "size")

	if f.store.Fetches() != 4 {
		t.Errorf("expected each key to be fetched once more, got %d fetches", f.store.Fetches())
	}
	if f.src.Stats().Invalidations != 1 {
		t.Errorf("expected one invalidation, got %d", f.src.Stats().Invalidations)
	}
}

func TestSettingEmptyStringHidesKey(t *testing.T) {
	f := newFixture(t)
	f.set(t, "color", "blue")

	if !f.src.ContainsKey(f.ctx, "color") {
		t.Fatal("expected color to be contained")
	}

	f.set(t, "color", "")

	if f.src.ContainsKey(f.ctx, "color") {
		t.Error("expected empty color not to be contained")
	}
	if got := f.src.Get(f.ctx, "color"); got != "" {
		t.Errorf("expected raw empty string, got %#v", got)
	}
}

func TestInvalidationScope(t *testing.T) {
	tests := []struct {
		name       string
		event      event.Event
		invalidate bool
	}{
		{
			name:       "object of another class",
			event:      event.New(event.ObjectUpdated, "xwiki:XWiki.XWikiPreferences^XWiki.OtherClass[0]", "xwiki"),
			invalidate: false,
		},
		{
			name:       "object of the class on another document",
			event:      event.New(event.ObjectAdded, "sub:Main.WebHome^XWiki.XWikiPreferences[2]", "sub"),
			invalidate: true,
		},
		{
			name:       "object deleted",
			event:      event.New(event.ObjectDeleted, "xwiki:XWiki.XWikiPreferences^XWiki.XWikiPreferences[0]", "xwiki"),
			invalidate: true,
		},
		{
			name:       "class name prefix only",
			event:      event.New(event.ObjectUpdated, "xwiki:XWiki.XWikiPreferences^XWiki.XWikiPreferencesExtra[0]", "xwiki"),
			invalidate: false,
		},
		{
			name:       "wiki deleted",
			event:      event.New(event.WikiDeleted, "sub", "sub"),
			invalidate: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.put("color", "blue")
			f.src.Get(f.ctx, "color")

			if err := f.bus.Publish(context.Background(), tt.event); err != nil {
				t.Fatalf("publish failed: %v", err)
			}

			cleared := f.cacheLen() == 0
			if cleared != tt.invalidate {
				t.Errorf("expected invalidation=%v, got %v", tt.invalidate, cleared)
			}
		})
	}
}

func TestGetOrReturnsDefaultOnlyWhenAbsent(t *testing.T) {
	f := newFixture(t)
	f.put("timeout", "30s", "retries", "3", "enabled", "true", "empty", "")

	tests := []struct {
		key  string
		def  any
		want any
	}{
		{"timeout", time.Second, 30 * time.Second},
		{"retries", 1, 3},
		{"enabled", false, true},
		{"missing", "fallback", "fallback"},
		{"missing", 7, 7},
		{"empty", "fallback", ""},
	}

	for _, tt := range tests {
		if got := f.src.GetOr(f.ctx, tt.key, tt.def); got != tt.want {
			t.Errorf("GetOr(%s, %#v) = %#v, want %#v", tt.key, tt.def, got, tt.want)
		}
	}
}

func TestGetAsZeroValues(t *testing.T) {
	f := newFixture(t)
	f.put("languages", "en|fr,de")

	got := f.src.GetAs(f.ctx, "missing", convert.StringSlice)
	slice, ok := got.([]string)
	if !ok || slice == nil || len(slice) != 0 {
		t.Errorf("expected empty non-nil slice, got %#v", got)
	}

	if m, ok := f.src.GetAs(f.ctx, "missing", convert.StringMap).(map[string]string); !ok || m == nil {
		t.Errorf("expected empty non-nil map, got %#v", m)
	}
	if got := f.src.GetAs(f.ctx, "missing", convert.Int); got != nil {
		t.Errorf("expected nil for absent int, got %#v", got)
	}

	langs := f.src.GetAs(f.ctx, "languages", convert.StringSlice)
	if !reflect.DeepEqual(langs, []string{"en", "fr", "de"}) {
		t.Errorf("expected split languages, got %#v", langs)
	}
}

func TestNoExecutionContext(t *testing.T) {
	exec := &toggleProvider{}
	f := newFixture(t, WithExecutionProvider(exec))
	f.put("color", "blue")

	// The domain still finds its wiki in f.ctx; only the source's check fails.
	if got := f.src.Get(f.ctx, "color"); got != nil {
		t.Fatalf("expected nil without execution context, got %v", got)
	}
	if f.cacheLen() != 0 {
		t.Errorf("expected nothing cached, got %d entries", f.cacheLen())
	}
	if keys := f.src.Keys(f.ctx); keys == nil || len(keys) != 0 {
		t.Errorf("expected empty non-nil keys, got %#v", keys)
	}
	if f.store.Fetches() != 0 {
		t.Errorf("expected no store access, got %d", f.store.Fetches())
	}

	exec.available = true
	if got := f.src.Get(f.ctx, "color"); got != "blue" {
		t.Errorf("expected blue once context is available, got %v", got)
	}
	f.src.Get(f.ctx, "color")
	if f.store.Fetches() != 1 {
		t.Errorf("expected exactly one fetch, got %d", f.store.Fetches())
	}
}

func TestDomainWithoutDocumentIsSkipped(t *testing.T) {
	f := newFixture(t)
	f.put("color", "blue")

	// No wiki in the context: the wiki domain has no document to read.
	ctx := context.Background()
	if got := f.src.Get(ctx, "color"); got != nil {
		t.Errorf("expected nil, got %v", got)
	}
	if got := f.src.GetOr(ctx, "color", "white"); got != "white" {
		t.Errorf("expected default, got %v", got)
	}
	if f.src.Stats().ResolutionErrors != 0 {
		t.Error("expected a missing document not to count as an error")
	}
}

func TestWikisDoNotShareEntries(t *testing.T) {
	f := newFixture(t)
	f.put("color", "blue")
	sub := reference.NewDocument("sub", "XWiki", "XWikiPreferences")
	f.store.Put(sub, prefsClass, document.RecordOf("color", "green"))

	subCtx := execution.With(context.Background(), execution.Context{Wiki: "sub"})

	if got := f.src.Get(f.ctx, "color"); got != "blue" {
		t.Errorf("expected main wiki value, got %v", got)
	}
	if got := f.src.Get(subCtx, "color"); got != "green" {
		t.Errorf("expected sub wiki value, got %v", got)
	}
}

func TestFailingDomainDegradesToAbsent(t *testing.T) {
	tests := []struct {
		name   string
		domain *brokenDomain
	}{
		{"document panics", &brokenDomain{id: "panics", docPanic: true}},
		{"document errors", &brokenDomain{id: "errors", docErr: stderrors.New("no such wiki")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.put("color", "blue")

			src, err := New(context.Background(), tt.domain, f.deps(), WithLogger(quietLogger()))
			if err != nil {
				t.Fatalf("New failed: %v", err)
			}
			defer src.Close(context.Background())

			if got := src.Get(f.ctx, "color"); got != nil {
				t.Errorf("expected nil, got %v", got)
			}
			if src.ContainsKey(f.ctx, "color") {
				t.Error("expected key not to be contained")
			}
			if !src.IsEmpty(f.ctx) {
				t.Error("expected source to look empty")
			}
			if src.Stats().ResolutionErrors == 0 {
				t.Error("expected resolution errors to be counted")
			}
		})
	}
}

func TestClassFailureAfterConstructionCachesAbsence(t *testing.T) {
	f := newFixture(t)
	f.put("color", "blue")

	domain := &brokenDomain{id: "flaky"}
	src, err := New(context.Background(), domain, f.deps(), WithLogger(quietLogger()))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer src.Close(context.Background())

	domain.classPanic = true
	if got := src.Get(f.ctx, "color"); got != nil {
		t.Errorf("expected nil, got %v", got)
	}
	c, _ := f.caches.Get("flaky")
	if c.Len() != 1 {
		t.Errorf("expected remembered absence, got %d entries", c.Len())
	}
}

func TestConversionFailureIsNotCached(t *testing.T) {
	f := newFixture(t)
	f.put("count", "many")

	for i := 0; i < 2; i++ {
		if got := f.src.GetAs(f.ctx, "count", convert.Int); got != nil {
			t.Fatalf("expected nil for unconvertible value, got %v", got)
		}
	}
	if f.store.Fetches() != 2 {
		t.Errorf("expected failed conversion not to be cached, got %d fetches", f.store.Fetches())
	}
	if f.src.Stats().ConversionErrors != 2 {
		t.Errorf("expected 2 conversion errors, got %d", f.src.Stats().ConversionErrors)
	}
	if got := f.src.GetOr(f.ctx, "count", 5); got != 5 {
		t.Errorf("expected default on conversion failure, got %v", got)
	}
}

func TestStoreFailureIsNotCached(t *testing.T) {
	f := newFixture(t)
	f.put("color", "blue")
	f.src.Close(context.Background())

	store := &countingStore{inner: f.store}
	store.fail(stderrors.New("database unavailable"))

	deps := f.deps()
	deps.Store = store
	src, err := New(context.Background(), NewWikiPreferencesDomain(), deps, WithLogger(quietLogger()))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer src.Close(context.Background())

	if got := src.Get(f.ctx, "color"); got != nil {
		t.Fatalf("expected nil while store fails, got %v", got)
	}
	if keys := src.Keys(f.ctx); len(keys) != 0 {
		t.Errorf("expected no keys while store fails, got %v", keys)
	}

	store.fail(nil)
	if got := src.Get(f.ctx, "color"); got != "blue" {
		t.Errorf("expected recovery once the store works, got %v", got)
	}
	if store.count() != 3 {
		t.Errorf("expected 3 store calls, got %d", store.count())
	}
}

func TestNewValidation(t *testing.T) {
	f := newFixture(t)

	deps := f.deps()
	deps.Store = nil
	if _, err := New(context.Background(), &brokenDomain{id: "x"}, deps); !errors.IsValidation(err) {
		t.Errorf("expected validation error for missing store, got %v", err)
	}

	if _, err := New(context.Background(), nil, f.deps()); !errors.IsValidation(err) {
		t.Errorf("expected validation error for missing domain, got %v", err)
	}
}

func TestNewRejectsDuplicateCacheID(t *testing.T) {
	f := newFixture(t)

	_, err := New(context.Background(), NewWikiPreferencesDomain(), f.deps(), WithLogger(quietLogger()))
	if !stderrors.Is(err, ErrCacheInitialization) {
		t.Fatalf("expected ErrCacheInitialization, got %v", err)
	}
	if !stderrors.Is(err, cache.ErrDuplicateCache) {
		t.Errorf("expected duplicate cache cause, got %v", err)
	}
	if !f.src.Registered() {
		t.Error("expected the first source to stay registered")
	}
}

func TestNewReleasesCacheOnFailure(t *testing.T) {
	f := newFixture(t)

	t.Run("class resolution", func(t *testing.T) {
		domain := &brokenDomain{id: "broken-class", classErr: stderrors.New("no class")}
		_, err := New(context.Background(), domain, f.deps(), WithLogger(quietLogger()))
		if !stderrors.Is(err, ErrCacheInitialization) || !stderrors.Is(err, ErrReferenceResolution) {
			t.Fatalf("expected initialization and resolution errors, got %v", err)
		}
		if _, ok := f.caches.Get("broken-class"); ok {
			t.Error("expected cache to be released")
		}
	})

	t.Run("subscription", func(t *testing.T) {
		_, err := f.bus.Subscribe("taken", []event.Filter{{Kind: event.WikiDeleted}},
			func(context.Context, event.Event) error { return nil })
		if err != nil {
			t.Fatalf("subscribe failed: %v", err)
		}

		_, err = New(context.Background(), &brokenDomain{id: "taken"}, f.deps(), WithLogger(quietLogger()))
		if !stderrors.Is(err, event.ErrDuplicateSubscription) {
			t.Fatalf("expected duplicate subscription cause, got %v", err)
		}
		if _, ok := f.caches.Get("taken"); ok {
			t.Error("expected cache to be released")
		}
	})
}

func TestClose(t *testing.T) {
	f := newFixture(t)
	f.put("color", "blue")
	f.src.Get(f.ctx, "color")

	if err := f.src.Close(context.Background()); err != nil {
		t.Fatalf("close failed: %v", err)
	}
	if err := f.src.Close(context.Background()); err != nil {
		t.Fatalf("second close failed: %v", err)
	}

	if f.src.Registered() {
		t.Error("expected listener to be unregistered")
	}
	if len(f.bus.Names()) != 0 {
		t.Errorf("expected no bus subscriptions, got %v", f.bus.Names())
	}
	if len(f.caches.IDs()) != 0 {
		t.Errorf("expected cache id to be released, got %v", f.caches.IDs())
	}

	if got := f.src.Get(f.ctx, "color"); got != "blue" {
		t.Fatalf("expected closed source to keep reading the store, got %v", got)
	}
	f.set(t, "color", "red")
	if got := f.src.Get(f.ctx, "color"); got != "red" {
		t.Errorf("expected write after close to be visible, got %v", got)
	}
	if got := Int(f.ctx, f.src, "missing", 0); got != 0 {
		t.Errorf("expected absent value after close, got %v", got)
	}
	before := f.src.Stats().StoreFetches
	f.src.Get(f.ctx, "color")
	f.src.Get(f.ctx, "color")
	if fetched := f.src.Stats().StoreFetches - before; fetched != 2 {
		t.Errorf("expected every lookup after close to reach the store, got %d fetches", fetched)
	}

	again, err := New(context.Background(), NewWikiPreferencesDomain(), f.deps(), WithLogger(quietLogger()))
	if err != nil {
		t.Fatalf("expected id to be reusable, got %v", err)
	}
	defer again.Close(context.Background())
}

type failingSubscriber struct{}

func (failingSubscriber) Subscribe(string, []event.Filter, event.Handler) (*event.Subscription, error) {
	return nil, stderrors.New("listener registry unavailable")
}

func TestNewWrapsSubscribeFailure(t *testing.T) {
	f := newFixture(t)
	deps := f.deps()
	deps.Bus = failingSubscriber{}

	domain := StaticDomain{Document: prefsDoc, Class: prefsClass, ID: "configuration.static"}
	_, err := New(context.Background(), domain, deps, WithLogger(quietLogger()))
	if !stderrors.Is(err, ErrCacheInitialization) {
		t.Fatalf("expected ErrCacheInitialization, got %v", err)
	}

	var typed *errors.Error
	if !errors.As(err, &typed) {
		t.Fatalf("expected a go-errors error in the chain, got %T", err)
	}
	if typed.Category != errors.CategoryInternal {
		t.Errorf("expected internal category, got %s", typed.Category)
	}
	if typed.Metadata["cache_id"] != "configuration.static" {
		t.Errorf("expected cache id metadata, got %v", typed.Metadata)
	}
	if _, ok := f.caches.Get("configuration.static"); ok {
		t.Error("expected cache to be released after the failure")
	}
}

func TestMetrics(t *testing.T) {
	f := newFixture(t)
	f.put("color", "blue")

	f.src.Get(f.ctx, "color")
	f.src.Get(f.ctx, "color")
	f.src.Get(f.ctx, "missing")
	f.src.Get(f.ctx, "missing")
	f.set(t, "size", "L")

	id := WikiPreferencesCacheID
	checks := []struct {
		name string
		got  float64
		want float64
	}{
		{"hits", testutil.ToFloat64(f.metrics.hits.WithLabelValues(id)), 1},
		{"misses", testutil.ToFloat64(f.metrics.misses.WithLabelValues(id)), 2},
		{"absent hits", testutil.ToFloat64(f.metrics.absentHits.WithLabelValues(id)), 1},
		{"store fetches", testutil.ToFloat64(f.metrics.storeFetches.WithLabelValues(id)), 2},
		{"invalidations", testutil.ToFloat64(f.metrics.invalidations.WithLabelValues(id)), 1},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s: expected %v, got %v", c.name, c.want, c.got)
		}
	}

	n, err := testutil.GatherAndCount(f.metrics.Registry())
	if err != nil {
		t.Fatalf("gather failed: %v", err)
	}
	if n != 7 {
		t.Errorf("expected 7 series, got %d", n)
	}
}

type toggleProvider struct {
	available bool
}

func (p *toggleProvider) Current(context.Context) (execution.Context, bool) {
	return execution.Context{Wiki: "xwiki"}, p.available
}
