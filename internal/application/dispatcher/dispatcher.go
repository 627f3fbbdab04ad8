package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/garyjia/proposal-approval/internal/domain/event"
)

// ErrClosed is returned by Dispatch after Close
var ErrClosed = errors.New("dispatcher is closed")

// Dispatcher fans a committed event out to the outbound subscribers
type Dispatcher interface {
	// Subscribe registers handler under name for the given event types, or for
	// every known type when none are given. Registering a name again for a type
	// replaces the earlier handler.
	Subscribe(name string, handler Handler, types ...event.Type)

	// Dispatch hands evt to every subscriber of its type in registration order.
	// All subscribers run even when one fails; the failures come back joined,
	// each as a *HandlerError.
	Dispatch(ctx context.Context, evt *event.Event) error

	// Close rejects further dispatches and waits for in-flight ones
	Close() error
}

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

type subscriber struct {
	name    string
	handler Handler
}

type eventDispatcher struct {
	mu          sync.RWMutex
	subscribers map[event.Type][]subscriber
	closed      bool
	inflight    sync.WaitGroup
	logger      Logger
}

// Option configures the dispatcher
type Option func(*eventDispatcher)

// WithLogger sets a logger for the dispatcher
func WithLogger(logger Logger) Option {
	return func(d *eventDispatcher) {
		d.logger = logger
	}
}

// NewDispatcher creates a new event dispatcher
func NewDispatcher(opts ...Option) Dispatcher {
	d := &eventDispatcher{
		subscribers: make(map[event.Type][]subscriber),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *eventDispatcher) Subscribe(name string, handler Handler, types ...event.Type) {
	if len(types) == 0 {
		types = event.AllTypes
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	for _, t := range types {
		subs := d.subscribers[t]
		replaced := false
		for i := range subs {
			if subs[i].name == name {
				subs[i].handler = handler
				replaced = true
			}
		}
		if !replaced {
			d.subscribers[t] = append(subs, subscriber{name: name, handler: handler})
		}
	}

	if d.logger != nil {
		d.logger.Info("Subscriber registered", "subscriber", name, "event_types", len(types))
	}
}

func (d *eventDispatcher) Dispatch(ctx context.Context, evt *event.Event) error {
	d.mu.RLock()
	if d.closed {
		d.mu.RUnlock()
		return ErrClosed
	}
	subs := append([]subscriber(nil), d.subscribers[evt.Type]...)
	d.inflight.Add(1)
	d.mu.RUnlock()
	defer d.inflight.Done()

	var failures []error
	for _, s := range subs {
		if err := d.deliver(ctx, evt, s); err != nil {
			if d.logger != nil {
				d.logger.Error("Subscriber failed",
					"subscriber", s.name,
					"event_id", evt.ID,
					"event_type", evt.Type,
					"proposal_id", evt.ProposalID,
					"error", err,
				)
			}
			failures = append(failures, &HandlerError{
				Handler:    s.name,
				EventID:    evt.ID,
				EventType:  evt.Type,
				ProposalID: evt.ProposalID,
				Err:        err,
			})
		}
	}
	return errors.Join(failures...)
}

func (d *eventDispatcher) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	d.mu.Unlock()

	d.inflight.Wait()

	if d.logger != nil {
		d.logger.Info("Dispatcher closed")
	}
	return nil
}

// deliver runs one subscriber, reporting a panic as an error
func (d *eventDispatcher) deliver(ctx context.Context, evt *event.Event, s subscriber) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return s.handler(ctx, evt)
}
