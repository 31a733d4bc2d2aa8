package events

import (
	"context"
	"errors"
	"time"

	"github.com/wolfman30/mindbridge-triage/pkg/logging"
)

// ErrOutboxFull is returned when the outbox cannot accept another event.
var ErrOutboxFull = errors.New("events: outbox full")

// DefaultOutboxCapacity bounds pending envelopes.
const DefaultOutboxCapacity = 256

// DeliveryHandler emits events to downstream transports.
type DeliveryHandler interface {
	Handle(ctx context.Context, env Envelope) error
}

// DeliveryHandlerFunc adapts a function to DeliveryHandler.
type DeliveryHandlerFunc func(ctx context.Context, env Envelope) error

func (f DeliveryHandlerFunc) Handle(ctx context.Context, env Envelope) error {
	return f(ctx, env)
}

// Outbox is a bounded in-memory queue of envelopes awaiting delivery.
// Pending events are lost on restart.
type Outbox struct {
	pending chan Envelope
}

// NewOutbox creates an outbox holding up to capacity pending envelopes.
func NewOutbox(capacity int) *Outbox {
	if capacity <= 0 {
		capacity = DefaultOutboxCapacity
	}
	return &Outbox{pending: make(chan Envelope, capacity)}
}

// Append wraps evt in an envelope and queues it without blocking.
func (o *Outbox) Append(aggregate, correlationID string, evt CanonicalEvent) (Envelope, error) {
	env, err := NewEnvelope(aggregate, correlationID, evt)
	if err != nil {
		return Envelope{}, err
	}
	select {
	case o.pending <- env:
		return env, nil
	default:
		return Envelope{}, ErrOutboxFull
	}
}

// Len reports how many envelopes are waiting.
func (o *Outbox) Len() int {
	return len(o.pending)
}

// Deliverer drains the outbox and invokes the handler.
type Deliverer struct {
	outbox      *Outbox
	handler     DeliveryHandler
	logger      *logging.Logger
	maxAttempts int
	backoff     time.Duration
	timeout     time.Duration
}

func NewDeliverer(outbox *Outbox, handler DeliveryHandler, logger *logging.Logger) *Deliverer {
	if logger == nil {
		logger = logging.Default()
	}
	return &Deliverer{
		outbox:      outbox,
		handler:     handler,
		logger:      logger,
		maxAttempts: 3,
		backoff:     2 * time.Second,
		timeout:     15 * time.Second,
	}
}

func (d *Deliverer) WithMaxAttempts(n int) *Deliverer {
	if n > 0 {
		d.maxAttempts = n
	}
	return d
}

func (d *Deliverer) WithBackoff(backoff time.Duration) *Deliverer {
	if backoff >= 0 {
		d.backoff = backoff
	}
	return d
}

func (d *Deliverer) WithTimeout(timeout time.Duration) *Deliverer {
	if timeout > 0 {
		d.timeout = timeout
	}
	return d
}

// Start delivers envelopes until ctx is cancelled.
func (d *Deliverer) Start(ctx context.Context) error {
	if d.outbox == nil || d.handler == nil {
		<-ctx.Done()
		return nil
	}
	for {
		select {
		case <-ctx.Done():
			if n := d.outbox.Len(); n > 0 {
				d.logger.Warn("outbox stopped with pending events", "pending", n)
			}
			return nil
		case env := <-d.outbox.pending:
			d.deliver(ctx, env)
		}
	}
}

func (d *Deliverer) deliver(ctx context.Context, env Envelope) {
	for attempt := 1; attempt <= d.maxAttempts; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, d.timeout)
		err := d.handler.Handle(attemptCtx, env)
		cancel()
		if err == nil {
			d.logger.Debug("outbox delivered", "event_id", env.EventID, "type", env.EventType)
			return
		}
		d.logger.Error("outbox delivery failed",
			"error", err,
			"event_id", env.EventID,
			"type", env.EventType,
			"attempt", attempt,
		)
		if attempt == d.maxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(d.backoff * time.Duration(attempt)):
		}
	}
	d.logger.Error("outbox event dropped after retries", "event_id", env.EventID, "type", env.EventType)
}
