package configsource

import (
	"context"

	"github.com/goliatone/go-document-config/convert"
)

// Composite chains sources by precedence: a property is read from the first
// source that contains it.
type Composite struct {
	sources []ConfigurationSource
}

var _ ConfigurationSource = (*Composite)(nil)

// NewComposite creates a chain, highest precedence first. Nil sources are
// skipped.
func NewComposite(sources ...ConfigurationSource) *Composite {
	c := &Composite{}
	for _, src := range sources {
		c.Append(src)
	}
	return c
}

// Append adds src with the lowest precedence.
func (c *Composite) Append(src ConfigurationSource) {
	if src != nil {
		c.sources = append(c.sources, src)
	}
}

// Sources returns the chain in precedence order.
func (c *Composite) Sources() []ConfigurationSource {
	out := make([]ConfigurationSource, len(c.sources))
	copy(out, c.sources)
	return out
}

func (c *Composite) owner(ctx context.Context, key string) ConfigurationSource {
	for _, src := range c.sources {
		if src.ContainsKey(ctx, key) {
			return src
		}
	}
	return nil
}

func (c *Composite) ContainsKey(ctx context.Context, key string) bool {
	return c.owner(ctx, key) != nil
}

// Keys returns the union of every source's keys, in chain order, without
// duplicates.
func (c *Composite) Keys(ctx context.Context) []string {
	seen := make(map[string]struct{})
	keys := []string{}
	for _, src := range c.sources {
		for _, key := range src.Keys(ctx) {
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			keys = append(keys, key)
		}
	}
	return keys
}

func (c *Composite) IsEmpty(ctx context.Context) bool {
	for _, src := range c.sources {
		if !src.IsEmpty(ctx) {
			return false
		}
	}
	return true
}

func (c *Composite) Get(ctx context.Context, key string) any {
	if src := c.owner(ctx, key); src != nil {
		return src.Get(ctx, key)
	}
	return nil
}

func (c *Composite) GetAs(ctx context.Context, key string, typ convert.Type) any {
	if src := c.owner(ctx, key); src != nil {
		return src.GetAs(ctx, key, typ)
	}
	return typ.Zero()
}

func (c *Composite) GetOr(ctx context.Context, key string, def any) any {
	if src := c.owner(ctx, key); src != nil {
		return src.GetOr(ctx, key, def)
	}
	return def
}
