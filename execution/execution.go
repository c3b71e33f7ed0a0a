// Package execution carries the request scoped wiki context. Configuration
// sources only hit their backing store while an execution context is present;
// outside of one (startup, background jobs not yet bound to a wiki) lookups
// degrade to absent values without being memoized.
package execution

import (
	"context"

	"github.com/goliatone/go-document-config/reference"
)

type contextKey struct{}

// Context describes the wiki a request is running against.
type Context struct {
	Wiki string
}

// WikiReference returns the current wiki, or the main wiki when unset.
func (c Context) WikiReference() string {
	if c.Wiki == "" {
		return reference.DefaultWiki
	}
	return c.Wiki
}

// With attaches an execution context to ctx.
func With(ctx context.Context, ec Context) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, contextKey{}, ec)
}

// From extracts the execution context attached by With.
func From(ctx context.Context) (Context, bool) {
	if ctx == nil {
		return Context{}, false
	}
	ec, ok := ctx.Value(contextKey{}).(Context)
	return ec, ok
}

// Provider resolves the execution context for a call.
type Provider interface {
	Current(ctx context.Context) (Context, bool)
}

// ProviderFunc adapts a function to Provider.
type ProviderFunc func(ctx context.Context) (Context, bool)

// Current implements Provider.
func (f ProviderFunc) Current(ctx context.Context) (Context, bool) {
	return f(ctx)
}

// ContextProvider reads the execution context attached with With.
var ContextProvider Provider = ProviderFunc(From)

// Fixed always reports the same execution context, which suits single wiki
// tools such as the CLI.
func Fixed(wiki string) Provider {
	return ProviderFunc(func(context.Context) (Context, bool) {
		return Context{Wiki: wiki}, true
	})
}
