// Package event is the observation layer document stores publish to and
// caches listen on. Subscriptions are named, filtered by event kind and by a
// pattern over the entity reference the event is about, and are closed
// explicitly by their owner.
package event

import (
	"fmt"
	"regexp"
	"time"

	errors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// Kind identifies what happened.
type Kind string

const (
	// ObjectAdded fires when a structured object is attached to a document.
	ObjectAdded Kind = "object.added"
	// ObjectUpdated fires when a field of a structured object changes.
	ObjectUpdated Kind = "object.updated"
	// ObjectDeleted fires when a structured object is removed.
	ObjectDeleted Kind = "object.deleted"
	// WikiDeleted fires when a whole wiki and its documents are dropped.
	WikiDeleted Kind = "wiki.deleted"
)

// Event is a single notification. Reference holds the serialized reference of
// the entity concerned: an object reference for object events, the wiki id
// for wiki events.
type Event struct {
	ID         string
	Kind       Kind
	Reference  string
	Wiki       string
	OccurredAt time.Time
}

// New creates an event stamped with a fresh id and the current time.
func New(kind Kind, ref, wiki string) Event {
	return Event{
		ID:         uuid.NewString(),
		Kind:       kind,
		Reference:  ref,
		Wiki:       wiki,
		OccurredAt: time.Now(),
	}
}

// Validate checks the event carries enough identity to be matched.
func (e Event) Validate() error {
	if e.Kind == "" {
		return errors.New("event kind is required", errors.CategoryValidation)
	}
	if e.Reference == "" {
		return errors.New(fmt.Sprintf("event %s has no reference", e.Kind), errors.CategoryValidation)
	}
	return nil
}

// Filter selects events of one kind, optionally restricted to references
// matching Pattern.
type Filter struct {
	Kind    Kind
	Pattern *regexp.Regexp
}

// Matches reports whether e passes the filter.
func (f Filter) Matches(e Event) bool {
	if f.Kind != e.Kind {
		return false
	}
	return f.Pattern == nil || f.Pattern.MatchString(e.Reference)
}

func matchesAny(filters []Filter, e Event) bool {
	for _, f := range filters {
		if f.Matches(e) {
			return true
		}
	}
	return false
}
