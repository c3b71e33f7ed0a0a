package configsource

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/spf13/viper"

	"github.com/goliatone/go-document-config/convert"
)

// MapSource serves properties from memory. It typically holds defaults at the
// bottom of a Composite.
type MapSource struct {
	mu        sync.RWMutex
	keys      []string
	values    map[string]any
	converter convert.Converter
	logger    *slog.Logger
}

var _ ConfigurationSource = (*MapSource)(nil)

// MapOption configures a MapSource.
type MapOption func(*MapSource)

// WithMapConverter overrides the converter used by typed lookups.
func WithMapConverter(c convert.Converter) MapOption {
	return func(m *MapSource) {
		if c != nil {
			m.converter = c
		}
	}
}

// WithMapLogger sets the logger conversion failures go to.
func WithMapLogger(logger *slog.Logger) MapOption {
	return func(m *MapSource) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// NewMapSource copies values. Keys are listed in sorted order.
func NewMapSource(values map[string]any, opts ...MapOption) *MapSource {
	m := &MapSource{
		values:    make(map[string]any, len(values)),
		converter: convert.New(),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	for k, v := range values {
		m.values[k] = v
		m.keys = append(m.keys, k)
	}
	sort.Strings(m.keys)
	return m
}

// NewViperSource exposes the settings under prefix, with the prefix and its
// dot stripped from the keys. An empty prefix exposes every setting.
func NewViperSource(v *viper.Viper, prefix string, opts ...MapOption) *MapSource {
	values := make(map[string]any)
	if prefix != "" {
		prefix = strings.ToLower(prefix) + "."
	}
	for _, key := range v.AllKeys() {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		values[strings.TrimPrefix(key, prefix)] = v.Get(key)
	}
	return NewMapSource(values, opts...)
}

// Set stores value under key, appending key if it is new.
func (m *MapSource) Set(key string, value any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.values[key]; !exists {
		m.keys = append(m.keys, key)
	}
	m.values[key] = value
}

func (m *MapSource) ContainsKey(_ context.Context, key string) bool {
	v := m.value(key)
	if v == nil {
		return false
	}
	if s, ok := v.(string); ok {
		return s != ""
	}
	return true
}

func (m *MapSource) Keys(context.Context) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, len(m.keys))
	copy(out, m.keys)
	return out
}

func (m *MapSource) IsEmpty(ctx context.Context) bool {
	return len(m.Keys(ctx)) == 0
}

func (m *MapSource) Get(_ context.Context, key string) any {
	return m.value(key)
}

func (m *MapSource) GetAs(ctx context.Context, key string, typ convert.Type) any {
	if v := m.typed(ctx, key, typ); v != nil {
		return v
	}
	return typ.Zero()
}

func (m *MapSource) GetOr(ctx context.Context, key string, def any) any {
	if v := m.typed(ctx, key, convert.TypeOf(def)); v != nil {
		return v
	}
	return def
}

func (m *MapSource) value(key string) any {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.values[key]
}

func (m *MapSource) typed(ctx context.Context, key string, typ convert.Type) any {
	v := m.value(key)
	if v == nil || typ == convert.Any || typ.Matches(v) {
		return v
	}
	converted, err := m.converter.Convert(typ, v)
	if err != nil {
		m.logger.ErrorContext(ctx, "failed to convert configuration value",
			slog.String("key", key),
			slog.String("target", typ.String()),
			slog.String("error", err.Error()),
		)
		return nil
	}
	return converted
}
