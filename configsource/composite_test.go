package configsource

import (
	"context"
	"reflect"
	"testing"
	"time"

	"github.com/spf13/viper"

	"github.com/goliatone/go-document-config/convert"
)

func TestCompositePrecedence(t *testing.T) {
	f := newFixture(t)
	f.put("color", "blue", "size", "")

	defaults := NewMapSource(map[string]any{
		"color":   "white",
		"size":    "M",
		"timeout": "5s",
	}, WithMapLogger(quietLogger()))

	chain := NewComposite(f.src, nil, defaults)

	tests := []struct {
		key  string
		want any
	}{
		{"color", "blue"},
		{"size", "M"},
		{"timeout", "5s"},
		{"missing", nil},
	}
	for _, tt := range tests {
		if got := chain.Get(f.ctx, tt.key); got != tt.want {
			t.Errorf("Get(%s) = %#v, want %#v", tt.key, got, tt.want)
		}
	}

	if got := chain.GetAs(f.ctx, "timeout", convert.Duration); got != 5*time.Second {
		t.Errorf("expected converted default, got %#v", got)
	}
	if got := chain.GetOr(f.ctx, "missing", 3); got != 3 {
		t.Errorf("expected default, got %#v", got)
	}
	if got := chain.GetAs(f.ctx, "missing", convert.StringSlice); !reflect.DeepEqual(got, []string{}) {
		t.Errorf("expected empty slice, got %#v", got)
	}
	if len(chain.Sources()) != 2 {
		t.Errorf("expected nil source to be skipped, got %d sources", len(chain.Sources()))
	}
}

func TestCompositeKeysUnion(t *testing.T) {
	f := newFixture(t)
	f.put("color", "blue", "size", "")

	defaults := NewMapSource(map[string]any{"size": "M", "accent": "red"})
	chain := NewComposite(f.src, defaults)

	if got := chain.Keys(f.ctx); !reflect.DeepEqual(got, []string{"color", "size", "accent"}) {
		t.Errorf("unexpected keys %v", got)
	}
	if chain.IsEmpty(f.ctx) {
		t.Error("expected chain not to be empty")
	}
	if !NewComposite().IsEmpty(context.Background()) {
		t.Error("expected empty chain to be empty")
	}
}

func TestCompositeFallsThroughUnavailableSource(t *testing.T) {
	f := newFixture(t)
	f.put("color", "blue")

	chain := NewComposite(f.src, NewMapSource(map[string]any{"color": "white"}))

	// No execution context: the document source degrades to absent.
	if got := chain.Get(context.Background(), "color"); got != "white" {
		t.Errorf("expected fallback value, got %v", got)
	}
}

func TestMapSource(t *testing.T) {
	m := NewMapSource(map[string]any{"b": "2", "a": "", "c": "x"}, WithMapLogger(quietLogger()))
	ctx := context.Background()

	if got := m.Keys(ctx); !reflect.DeepEqual(got, []string{"a", "b", "c"}) {
		t.Errorf("expected sorted keys, got %v", got)
	}
	if m.ContainsKey(ctx, "a") || !m.ContainsKey(ctx, "b") {
		t.Error("unexpected ContainsKey result")
	}
	if got := m.GetAs(ctx, "b", convert.Int); got != 2 {
		t.Errorf("expected 2, got %#v", got)
	}
	if got := m.GetAs(ctx, "c", convert.Int); got != nil {
		t.Errorf("expected nil on conversion failure, got %#v", got)
	}
	if got := m.GetOr(ctx, "c", 9); got != 9 {
		t.Errorf("expected default on conversion failure, got %#v", got)
	}

	m.Set("d", true)
	if got := m.Keys(ctx); got[len(got)-1] != "d" {
		t.Errorf("expected new key appended, got %v", got)
	}
	if m.IsEmpty(ctx) || !NewMapSource(nil).IsEmpty(ctx) {
		t.Error("unexpected IsEmpty result")
	}
}

func TestViperSource(t *testing.T) {
	v := viper.New()
	v.Set("defaults.color", "white")
	v.Set("defaults.timeout", "10s")
	v.Set("db.driver", "sqlite3")

	src := NewViperSource(v, "defaults")
	ctx := context.Background()

	if got := src.Keys(ctx); !reflect.DeepEqual(got, []string{"color", "timeout"}) {
		t.Errorf("expected prefixed keys only, got %v", got)
	}
	if got := Duration(ctx, src, "timeout", time.Second); got != 10*time.Second {
		t.Errorf("expected 10s, got %v", got)
	}

	all := NewViperSource(v, "")
	if !all.ContainsKey(ctx, "db.driver") {
		t.Error("expected every key without prefix")
	}
}
