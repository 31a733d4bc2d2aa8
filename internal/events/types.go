package events

import "time"

// SessionEscalatedV1 is published the first time a session requires human
// intervention. It never carries user text.
type SessionEscalatedV1 struct {
	SessionRef string    `json:"session_ref"`
	Turn       int       `json:"turn"`
	Severity   string    `json:"severity"`
	Labels     []string  `json:"labels"`
	OccurredAt time.Time `json:"occurred_at"`
}

func (SessionEscalatedV1) EventType() string { return "triage.session.escalated.v1" }
