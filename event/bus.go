package event

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"

	errors "github.com/goliatone/go-errors"
)

var (
	// ErrBusClosed is returned once Close has been called.
	ErrBusClosed = errors.New("event bus closed", errors.CategoryOperation)
	// ErrDuplicateSubscription is returned when a name is already registered.
	ErrDuplicateSubscription = errors.New("subscription name already registered", errors.CategoryConflict)
)

// Handler reacts to a delivered event.
type Handler func(ctx context.Context, e Event) error

// Publisher is the write side of the bus, used by document stores.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// Subscriber is the listening side of the bus, used by caches.
type Subscriber interface {
	Subscribe(name string, filters []Filter, handler Handler) (*Subscription, error)
}

// Bus delivers events synchronously on the publisher's goroutine. Handler
// failures and panics are logged and never reach the publisher.
type Bus struct {
	mu            sync.RWMutex
	closed        bool
	subscriptions map[string]*Subscription
	logger        *slog.Logger
}

// Option configures a Bus.
type Option func(*Bus)

// WithLogger sets the logger handler failures are reported to.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Bus) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// NewBus creates an empty bus.
func NewBus(opts ...Option) *Bus {
	b := &Bus{
		subscriptions: make(map[string]*Subscription),
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Subscribe registers handler under name. Names are unique: a second
// subscription with the same name fails with ErrDuplicateSubscription until
// the first one is closed.
func (b *Bus) Subscribe(name string, filters []Filter, handler Handler) (*Subscription, error) {
	if name == "" {
		return nil, errors.New("subscription name is required", errors.CategoryValidation)
	}
	if handler == nil {
		return nil, errors.New(fmt.Sprintf("subscribe %s: nil handler", name), errors.CategoryValidation)
	}
	if len(filters) == 0 {
		return nil, errors.New(fmt.Sprintf("subscribe %s: no filters", name), errors.CategoryValidation)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, fmt.Errorf("subscribe %s: %w", name, ErrBusClosed)
	}
	if _, exists := b.subscriptions[name]; exists {
		return nil, fmt.Errorf("subscribe %s: %w", name, ErrDuplicateSubscription)
	}

	sub := &Subscription{
		name:    name,
		filters: append([]Filter(nil), filters...),
		handler: handler,
		bus:     b,
	}
	b.subscriptions[name] = sub

	return sub, nil
}

// Publish delivers e to every subscription with a matching filter.
func (b *Bus) Publish(ctx context.Context, e Event) error {
	if err := e.Validate(); err != nil {
		return err
	}

	subs, err := b.snapshot()
	if err != nil {
		return fmt.Errorf("publish %s: %w", e.Kind, err)
	}

	for _, sub := range subs {
		if sub.closed.Load() || !matchesAny(sub.filters, e) {
			continue
		}
		if err := sub.deliver(ctx, e); err != nil {
			b.logger.ErrorContext(ctx, "event handler failed",
				slog.String("subscription", sub.name),
				slog.String("event_kind", string(e.Kind)),
				slog.String("reference", e.Reference),
				slog.Any("error", err),
			)
		}
	}

	return nil
}

// Names lists active subscriptions, sorted.
func (b *Bus) Names() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	names := make([]string, 0, len(b.subscriptions))
	for name := range b.subscriptions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Close drops every subscription and rejects further use.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for _, sub := range b.subscriptions {
		sub.closed.Store(true)
	}
	b.subscriptions = make(map[string]*Subscription)
}

// snapshot returns subscriptions in name order so delivery is deterministic.
func (b *Bus) snapshot() ([]*Subscription, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, ErrBusClosed
	}

	subs := make([]*Subscription, 0, len(b.subscriptions))
	for _, sub := range b.subscriptions {
		subs = append(subs, sub)
	}
	sort.Slice(subs, func(i, j int) bool { return subs[i].name < subs[j].name })
	return subs, nil
}

func (b *Bus) unsubscribe(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if current, ok := b.subscriptions[sub.name]; ok && current == sub {
		delete(b.subscriptions, sub.name)
	}
}

// Subscription is an active registration on a Bus.
type Subscription struct {
	name    string
	filters []Filter
	handler Handler
	bus     *Bus
	closed  atomic.Bool
}

// Name returns the subscription name.
func (s *Subscription) Name() string {
	return s.name
}

// Closed reports whether the subscription stopped receiving events.
func (s *Subscription) Closed() bool {
	return s.closed.Load()
}

// Close stops delivery and frees the name. Safe to call more than once.
func (s *Subscription) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	s.bus.unsubscribe(s)
	return nil
}

func (s *Subscription) deliver(ctx context.Context, e Event) error {
	return runSafely(fmt.Sprintf("subscription %s", s.name), func() error {
		return s.handler(ctx, e)
	})
}

// runSafely executes fn and converts panics into returned errors tagged with scope.
func runSafely(scope string, fn func() error) (err error) {
	defer func() {
		recovered := recover()
		if recovered == nil {
			return
		}
		err = fmt.Errorf("%s: panic recovered: %v", scope, recovered)
	}()

	if err := fn(); err != nil {
		return fmt.Errorf("%s: %w", scope, err)
	}

	return nil
}
