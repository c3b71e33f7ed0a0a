package execution

import (
	"context"
	"testing"
)

func TestContextRoundTrip(t *testing.T) {
	if _, ok := From(context.Background()); ok {
		t.Fatal("expected no execution context on a bare context")
	}

	ctx := With(context.Background(), Context{Wiki: "dev"})
	ec, ok := ContextProvider.Current(ctx)
	if !ok {
		t.Fatal("expected execution context to be available")
	}
	if ec.WikiReference() != "dev" {
		t.Errorf("expected wiki dev, got %s", ec.WikiReference())
	}
}

func TestWikiReferenceDefaultsToMainWiki(t *testing.T) {
	if got := (Context{}).WikiReference(); got != "xwiki" {
		t.Errorf("expected main wiki, got %s", got)
	}
}

func TestFixedProvider(t *testing.T) {
	ec, ok := Fixed("sub").Current(context.Background())
	if !ok || ec.Wiki != "sub" {
		t.Errorf("expected fixed wiki sub, got %+v (ok=%v)", ec, ok)
	}
}
