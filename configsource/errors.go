package configsource

import (
	errors "github.com/goliatone/go-errors"
)

var (
	// ErrCacheInitialization is returned by New when the source cannot acquire
	// its cache or register its invalidation listener.
	ErrCacheInitialization = errors.New("failed to initialize configuration cache", errors.CategoryInternal)

	// ErrReferenceResolution marks a domain that failed to produce its
	// document or class reference. Lookups log it and degrade to absent.
	ErrReferenceResolution = errors.New("failed to resolve configuration reference", errors.CategoryBadInput)
)
