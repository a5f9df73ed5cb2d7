// Package publisher delivers audit events to a queryable store and optional
// fan-out sinks, synchronously by default or through a bounded async buffer.
package publisher

import (
	"context"
	"log/slog"
	"sync"

	id "sevagate/pkg/domain"
	audit "sevagate/pkg/platform/audit"
)

// Publisher fans audit events out to a store and any number of sinks. With an
// async buffer configured, Emit never blocks the request path; a full buffer
// drops the event rather than stalling a transition.
type Publisher struct {
	store  audit.Store
	sinks  []audit.Sink
	logger *slog.Logger

	buffer chan audit.Event
	wg     sync.WaitGroup
	once   sync.Once
}

// Option configures a Publisher.
type Option func(*Publisher)

// WithAsyncBuffer enables asynchronous delivery through a channel of the given
// capacity. Close drains remaining events.
func WithAsyncBuffer(capacity int) Option {
	return func(p *Publisher) {
		p.buffer = make(chan audit.Event, capacity)
	}
}

// WithSink registers an additional append-only destination (e.g. kafka).
func WithSink(sink audit.Sink) Option {
	return func(p *Publisher) {
		if sink != nil {
			p.sinks = append(p.sinks, sink)
		}
	}
}

// WithLogger sets the logger for delivery failures.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) { p.logger = logger }
}

func NewPublisher(store audit.Store, opts ...Option) *Publisher {
	p := &Publisher{store: store, logger: slog.Default()}
	for _, opt := range opts {
		opt(p)
	}
	if p.buffer != nil {
		p.wg.Add(1)
		go p.drain()
	}
	return p
}

// Emit delivers an event. In async mode a full buffer drops the event with a
// warning; auditing must never wedge the workflow itself.
func (p *Publisher) Emit(ctx context.Context, event audit.Event) error {
	if p.buffer == nil {
		p.deliver(ctx, event)
		return nil
	}

	select {
	case p.buffer <- event:
	default:
		p.logger.Warn("audit buffer full, dropping event",
			"action", event.Action,
			"document_id", event.DocumentID,
		)
	}
	return nil
}

// List returns the recorded events for a document, in append order.
func (p *Publisher) List(ctx context.Context, documentID id.DocumentID) ([]audit.Event, error) {
	return p.store.ListByDocument(ctx, documentID)
}

// Close stops async delivery, draining any buffered events first.
func (p *Publisher) Close() {
	p.once.Do(func() {
		if p.buffer != nil {
			close(p.buffer)
			p.wg.Wait()
		}
	})
}

func (p *Publisher) drain() {
	defer p.wg.Done()
	for event := range p.buffer {
		p.deliver(context.Background(), event)
	}
}

func (p *Publisher) deliver(ctx context.Context, event audit.Event) {
	if err := p.store.Append(ctx, event); err != nil {
		p.logger.Error("audit store append failed",
			"error", err,
			"action", event.Action,
			"document_id", event.DocumentID,
		)
	}
	for _, sink := range p.sinks {
		if err := sink.Append(ctx, event); err != nil {
			p.logger.Error("audit sink append failed",
				"error", err,
				"action", event.Action,
				"document_id", event.DocumentID,
			)
		}
	}
}
