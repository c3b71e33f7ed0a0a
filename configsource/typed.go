package configsource

import (
	"context"
	"time"

	"github.com/goliatone/go-document-config/convert"
)

// Value reads key converted to the type of def, returning def when the key is
// absent or cannot be converted.
func Value[T any](ctx context.Context, src ConfigurationSource, key string, def T) T {
	if v, ok := src.GetOr(ctx, key, def).(T); ok {
		return v
	}
	return def
}

// String reads a string property, returning def when absent.
func String(ctx context.Context, src ConfigurationSource, key, def string) string {
	return Value(ctx, src, key, def)
}

// Int reads an int property, returning def when absent.
func Int(ctx context.Context, src ConfigurationSource, key string, def int) int {
	return Value(ctx, src, key, def)
}

// Int64 reads an int64 property, returning def when absent.
func Int64(ctx context.Context, src ConfigurationSource, key string, def int64) int64 {
	return Value(ctx, src, key, def)
}

// Float64 reads a float64 property, returning def when absent.
func Float64(ctx context.Context, src ConfigurationSource, key string, def float64) float64 {
	return Value(ctx, src, key, def)
}

// Bool reads a bool property, returning def when absent.
func Bool(ctx context.Context, src ConfigurationSource, key string, def bool) bool {
	return Value(ctx, src, key, def)
}

// Duration reads a duration property such as "30s", returning def when absent.
func Duration(ctx context.Context, src ConfigurationSource, key string, def time.Duration) time.Duration {
	return Value(ctx, src, key, def)
}

// Strings reads a list property. The result is never nil.
func Strings(ctx context.Context, src ConfigurationSource, key string) []string {
	if v, ok := src.GetAs(ctx, key, convert.StringSlice).([]string); ok && v != nil {
		return v
	}
	return []string{}
}

// StringMap reads a map property. The result is never nil.
func StringMap(ctx context.Context, src ConfigurationSource, key string) map[string]string {
	if v, ok := src.GetAs(ctx, key, convert.StringMap).(map[string]string); ok && v != nil {
		return v
	}
	return map[string]string{}
}
