package document

import (
	"context"
	"log/slog"
	"sync"

	errors "github.com/goliatone/go-errors"

	"github.com/goliatone/go-document-config/event"
	"github.com/goliatone/go-document-config/reference"
)

type objectKey struct {
	doc   reference.Document
	class reference.Class
}

// MemoryStore keeps objects in memory. It is safe for concurrent use.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[objectKey]*Record
	fetches int
	notify  Notifier
}

// MemoryOption configures a MemoryStore.
type MemoryOption func(*memoryOptions)

type memoryOptions struct {
	publisher event.Publisher
	logger    *slog.Logger
}

// WithPublisher sets where write events are published.
func WithPublisher(p event.Publisher) MemoryOption {
	return func(o *memoryOptions) { o.publisher = p }
}

// WithLogger sets the logger for publish failures.
func WithLogger(logger *slog.Logger) MemoryOption {
	return func(o *memoryOptions) { o.logger = logger }
}

// NewMemoryStore creates an empty store.
func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	var o memoryOptions
	for _, opt := range opts {
		opt(&o)
	}
	return &MemoryStore{
		objects: make(map[objectKey]*Record),
		notify:  NewNotifier(o.publisher, o.logger),
	}
}

// FetchRecord implements Store. The returned record is a copy.
func (s *MemoryStore) FetchRecord(ctx context.Context, doc reference.Document, class reference.Class) (*Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.fetches++
	rec, ok := s.objects[objectKey{doc, class}]
	if !ok {
		return nil, nil
	}
	return rec.Clone(), nil
}

// Fetches returns how many times FetchRecord reached the store.
func (s *MemoryStore) Fetches() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.fetches
}

// Put replaces the object of class on doc without publishing anything. It is
// meant for seeding.
func (s *MemoryStore) Put(doc reference.Document, class reference.Class, rec *Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec == nil {
		rec = NewRecord()
	}
	s.objects[objectKey{doc, class}] = rec.Clone()
}

// SetField implements Writer. Creating the object publishes ObjectAdded,
// changing an existing one publishes ObjectUpdated.
func (s *MemoryStore) SetField(ctx context.Context, doc reference.Document, class reference.Class, name string, value any) error {
	if err := ValidateTarget(doc, class, name); err != nil {
		return err
	}

	s.mu.Lock()
	key := objectKey{doc, class}
	rec, exists := s.objects[key]
	if !exists {
		rec = NewRecord()
		s.objects[key] = rec
	}
	rec.Set(name, value)
	s.mu.Unlock()

	kind := event.ObjectUpdated
	if !exists {
		kind = event.ObjectAdded
	}
	s.notify.ObjectChanged(ctx, kind, doc, class)
	return nil
}

// RemoveField implements Writer. Removing a field that is not set is a no-op.
func (s *MemoryStore) RemoveField(ctx context.Context, doc reference.Document, class reference.Class, name string) error {
	if err := ValidateTarget(doc, class, name); err != nil {
		return err
	}

	s.mu.Lock()
	rec, exists := s.objects[objectKey{doc, class}]
	if !exists {
		s.mu.Unlock()
		return ObjectNotFound(doc, class)
	}
	removed := rec.Remove(name)
	s.mu.Unlock()

	if removed {
		s.notify.ObjectChanged(ctx, event.ObjectUpdated, doc, class)
	}
	return nil
}

// DeleteObject implements Writer.
func (s *MemoryStore) DeleteObject(ctx context.Context, doc reference.Document, class reference.Class) error {
	key := objectKey{doc, class}

	s.mu.Lock()
	if _, exists := s.objects[key]; !exists {
		s.mu.Unlock()
		return ObjectNotFound(doc, class)
	}
	delete(s.objects, key)
	s.mu.Unlock()

	s.notify.ObjectChanged(ctx, event.ObjectDeleted, doc, class)
	return nil
}

// DeleteWiki implements Writer. WikiDeleted is published even when the wiki
// held no objects.
func (s *MemoryStore) DeleteWiki(ctx context.Context, wiki string) error {
	if wiki == "" {
		return errors.New("wiki is required", errors.CategoryValidation)
	}

	s.mu.Lock()
	for key := range s.objects {
		if key.doc.Wiki == wiki {
			delete(s.objects, key)
		}
	}
	s.mu.Unlock()

	s.notify.WikiDeleted(ctx, wiki)
	return nil
}
