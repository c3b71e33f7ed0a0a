package document

import (
	"context"

	"github.com/goliatone/go-document-config/reference"
)

// Store reads structured objects from documents.
type Store interface {
	// FetchRecord returns the object of class attached to doc, or nil with a
	// nil error when the document or the object does not exist.
	FetchRecord(ctx context.Context, doc reference.Document, class reference.Class) (*Record, error)
}

// Writer mutates structured objects. Every successful write publishes the
// matching object or wiki event.
type Writer interface {
	SetField(ctx context.Context, doc reference.Document, class reference.Class, name string, value any) error
	RemoveField(ctx context.Context, doc reference.Document, class reference.Class, name string) error
	DeleteObject(ctx context.Context, doc reference.Document, class reference.Class) error
	DeleteWiki(ctx context.Context, wiki string) error
}

// ReadWriter is a Store that also accepts writes.
type ReadWriter interface {
	Store
	Writer
}

// ObjectReference returns the reference of the single object of class held by
// doc. Stores keep one object per class, so its number is always zero.
func ObjectReference(doc reference.Document, class reference.Class) reference.Object {
	return reference.Object{Document: doc, Class: class}
}
