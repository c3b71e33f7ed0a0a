package configsource

import (
	"context"

	"github.com/goliatone/go-document-config/execution"
	"github.com/goliatone/go-document-config/reference"
)

const (
	// WikiPreferencesCacheID identifies the cache of the wiki preferences source.
	WikiPreferencesCacheID = "configuration.document.wiki"

	preferencesSpace = "XWiki"
	preferencesPage  = "XWikiPreferences"
)

// Domain tells a DocumentSource where its configuration lives. References are
// resolved on every lookup and never memoized, so they may depend on the
// current execution context.
type Domain interface {
	// DocumentReference returns the document holding the configuration
	// object. A zero reference with a nil error means there is nothing to
	// read in the current context.
	DocumentReference(ctx context.Context) (reference.Document, error)
	// ClassReference returns the class of the configuration object.
	ClassReference() (reference.Class, error)
	// CacheID names the cache and the invalidation listener of the source.
	CacheID() string
}

// StaticDomain reads configuration from a fixed document.
type StaticDomain struct {
	Document reference.Document
	Class    reference.Class
	ID       string
}

// DocumentReference returns the fixed document.
func (d StaticDomain) DocumentReference(context.Context) (reference.Document, error) {
	return d.Document, nil
}

// ClassReference returns the configured class once it validates.
func (d StaticDomain) ClassReference() (reference.Class, error) {
	if err := d.Class.Validate(); err != nil {
		return reference.Class{}, err
	}
	return d.Class, nil
}

// CacheID returns the configured identifier.
func (d StaticDomain) CacheID() string {
	return d.ID
}

// WikiDomain reads configuration from a page of whichever wiki the execution
// context points to.
type WikiDomain struct {
	Space string
	Page  string
	Class reference.Class
	ID    string
	// Exec defaults to execution.ContextProvider.
	Exec execution.Provider
}

// NewWikiPreferencesDomain returns the domain of the wiki wide preferences
// object, stored on XWiki.XWikiPreferences.
func NewWikiPreferencesDomain() WikiDomain {
	return WikiDomain{
		Space: preferencesSpace,
		Page:  preferencesPage,
		Class: reference.NewClass(preferencesSpace, preferencesPage),
		ID:    WikiPreferencesCacheID,
	}
}

// DocumentReference places Space.Page in the current wiki. Without an
// execution context it returns a zero reference.
func (d WikiDomain) DocumentReference(ctx context.Context) (reference.Document, error) {
	provider := d.Exec
	if provider == nil {
		provider = execution.ContextProvider
	}

	ec, ok := provider.Current(ctx)
	if !ok {
		return reference.Document{}, nil
	}

	doc := reference.NewDocument(ec.WikiReference(), d.Space, d.Page)
	if err := doc.Validate(); err != nil {
		return reference.Document{}, err
	}
	return doc, nil
}

// ClassReference returns the configured class once it validates.
func (d WikiDomain) ClassReference() (reference.Class, error) {
	if err := d.Class.Validate(); err != nil {
		return reference.Class{}, err
	}
	return d.Class, nil
}

// CacheID returns the configured identifier.
func (d WikiDomain) CacheID() string {
	return d.ID
}
