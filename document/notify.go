package document

import (
	"context"
	"log/slog"

	errors "github.com/goliatone/go-errors"

	"github.com/goliatone/go-document-config/event"
	"github.com/goliatone/go-document-config/reference"
)

// Notifier publishes store mutations. A nil publisher makes it a no-op.
type Notifier struct {
	publisher event.Publisher
	logger    *slog.Logger
}

// NewNotifier creates a notifier publishing to p.
func NewNotifier(p event.Publisher, logger *slog.Logger) Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	return Notifier{publisher: p, logger: logger}
}

// ObjectChanged publishes kind for the object of class on doc.
func (n Notifier) ObjectChanged(ctx context.Context, kind event.Kind, doc reference.Document, class reference.Class) {
	n.publish(ctx, event.New(kind, ObjectReference(doc, class).String(), doc.Wiki))
}

// WikiDeleted publishes the deletion of wiki.
func (n Notifier) WikiDeleted(ctx context.Context, wiki string) {
	n.publish(ctx, event.New(event.WikiDeleted, wiki, wiki))
}

// publish never fails the write that triggered it; the change is already
// committed.
func (n Notifier) publish(ctx context.Context, e event.Event) {
	if n.publisher == nil {
		return
	}
	if err := n.publisher.Publish(ctx, e); err != nil {
		attrs := append([]slog.Attr{
			slog.String("event_kind", string(e.Kind)),
			slog.String("reference", e.Reference),
			slog.String("error", err.Error()),
		}, errors.ToSlogAttributes(err)...)
		n.logger.LogAttrs(ctx, slog.LevelWarn, "failed to publish document event", attrs...)
	}
}

// ValidateTarget checks the references and field name of a write.
func ValidateTarget(doc reference.Document, class reference.Class, name string) error {
	if err := doc.Validate(); err != nil {
		return err
	}
	if err := class.Validate(); err != nil {
		return err
	}
	if name == "" {
		return errors.New("field name is required", errors.CategoryValidation)
	}
	return nil
}

// ObjectNotFound reports a write against an object that does not exist.
func ObjectNotFound(doc reference.Document, class reference.Class) error {
	return errors.New("object not found", errors.CategoryNotFound).
		WithTextCode("OBJECT_NOT_FOUND").
		WithMetadata(map[string]any{
			"object": ObjectReference(doc, class).String(),
		})
}
