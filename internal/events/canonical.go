// Package events carries versioned domain events between the conversation
// layer and asynchronous consumers such as escalation notifications.
package events

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// CanonicalEvent is a versioned domain event. EventType names the payload
// schema, e.g. "triage.session.escalated.v1".
type CanonicalEvent interface {
	EventType() string
}

// Envelope is the transport form of a CanonicalEvent.
type Envelope struct {
	EventID         uuid.UUID       `json:"event_id"`
	EventType       string          `json:"event_type"`
	Aggregate       string          `json:"aggregate"`
	TimestampMicros int64           `json:"timestamp"`
	CorrelationID   string          `json:"correlation_id,omitempty"`
	Payload         json.RawMessage `json:"payload"`
}

// Time returns the envelope timestamp in UTC.
func (e Envelope) Time() time.Time {
	return time.UnixMicro(e.TimestampMicros).UTC()
}

// SessionAggregate keys events by the short session reference, never the
// full session id.
func SessionAggregate(ref string) string {
	return "session:" + ref
}

var (
	// ErrEventTypeMismatch is returned when decoding a payload into the wrong type.
	ErrEventTypeMismatch = errors.New("events: event type mismatch")

	nowFunc = time.Now
	newID   = uuid.New
)

// NewEnvelope marshals evt into an envelope keyed by aggregate.
// correlationID is usually the HTTP request id and may be empty.
func NewEnvelope(aggregate, correlationID string, evt CanonicalEvent) (Envelope, error) {
	aggregate = strings.TrimSpace(aggregate)
	switch {
	case aggregate == "":
		return Envelope{}, errors.New("events: aggregate is required")
	case evt == nil:
		return Envelope{}, errors.New("events: event is required")
	}
	eventType := strings.TrimSpace(evt.EventType())
	if eventType == "" {
		return Envelope{}, fmt.Errorf("events: %T has no event type", evt)
	}

	payload, err := json.Marshal(evt)
	if err != nil {
		return Envelope{}, fmt.Errorf("events: marshal %s: %w", eventType, err)
	}
	return Envelope{
		EventID:         newID(),
		EventType:       eventType,
		Aggregate:       aggregate,
		TimestampMicros: nowFunc().UTC().UnixMicro(),
		CorrelationID:   strings.TrimSpace(correlationID),
		Payload:         payload,
	}, nil
}

// Decode unmarshals the envelope payload into T after checking the event type.
func Decode[T CanonicalEvent](env Envelope) (T, error) {
	var evt T
	if want := evt.EventType(); env.EventType != want {
		return evt, fmt.Errorf("%w: have %q, want %q", ErrEventTypeMismatch, env.EventType, want)
	}
	if err := json.Unmarshal(env.Payload, &evt); err != nil {
		return evt, fmt.Errorf("events: decode %s: %w", env.EventType, err)
	}
	return evt, nil
}
