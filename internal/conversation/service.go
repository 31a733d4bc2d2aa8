package conversation

import (
	"context"
	"errors"
	"time"

	"github.com/wolfman30/mindbridge-triage/internal/catalog"
	"github.com/wolfman30/mindbridge-triage/internal/triage"
)

// ErrSessionNotFound is returned for unknown or ended session ids.
var ErrSessionNotFound = errors.New("conversation: session not found")

// Service describes the triage conversation engine.
type Service interface {
	StartSession(ctx context.Context) (*SessionStart, error)
	SubmitTurn(ctx context.Context, sessionID, text string) (*TurnResult, error)
	GetSummary(ctx context.Context, sessionID string) (*SessionSummary, error)
	EndSession(ctx context.Context, sessionID string) error
}

// NarrativeSource records which path produced a reply's narrative.
type NarrativeSource string

const (
	NarrativeGenerated NarrativeSource = "generated"
	NarrativeTemplate  NarrativeSource = "template"
)

// SessionStart is returned when a session opens.
type SessionStart struct {
	SessionID string    `json:"session_id"`
	Greeting  string    `json:"greeting"`
	CreatedAt time.Time `json:"created_at"`
}

// TurnResult is the outward-facing outcome of one submitted message.
type TurnResult struct {
	SessionID       string          `json:"session_id"`
	Turn            int             `json:"turn"`
	Message         string          `json:"message"`
	Narrative       string          `json:"narrative"`
	NarrativeSource NarrativeSource `json:"narrative_source"`
	// Resources are in delivery order with full contact details.
	Resources    []catalog.Resource `json:"resources"`
	Severity     catalog.Severity   `json:"severity"`
	PeakSeverity catalog.Severity   `json:"peak_severity"`
	// InterventionRequired stays true for every turn after a session escalates.
	InterventionRequired bool                    `json:"intervention_required"`
	NewlyEscalated       bool                    `json:"newly_escalated"`
	Assessment           triage.CrisisAssessment `json:"assessment"`
	Matches              []triage.ScenarioMatch  `json:"matches"`
	ProfileFlags         []string                `json:"profile_flags"`
	// ActionSeverity selects ImmediateActions; see triage.ActionSeverity.
	ActionSeverity   catalog.Severity `json:"action_severity"`
	ImmediateActions []string         `json:"immediate_actions"`
	// SafetyPlan is set on every turn once the session has escalated.
	SafetyPlan []string  `json:"safety_plan,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// ResourceIDs returns the ids of the recommended resources in order.
func (r *TurnResult) ResourceIDs() []string {
	ids := make([]string, 0, len(r.Resources))
	for _, res := range r.Resources {
		ids = append(ids, res.ID)
	}
	return ids
}

// TopCategory returns the category of the best scenario match, if any.
func (r *TurnResult) TopCategory() string {
	if len(r.Matches) == 0 {
		return ""
	}
	return r.Matches[0].Category
}

// Turn is one stored exchange inside a session.
type Turn struct {
	Raw             string
	Normalized      string
	ScenarioIDs     []string
	Assessment      triage.CrisisAssessment
	ResourceIDs     []string
	Reply           string
	Narrative       string
	NarrativeSource NarrativeSource
	At              time.Time
}

// SessionSummary reports accumulated session state without any user text.
type SessionSummary struct {
	SessionID            string           `json:"session_id"`
	CreatedAt            time.Time        `json:"created_at"`
	LastActivity         time.Time        `json:"last_activity"`
	TurnCount            int              `json:"turn_count"`
	PeakSeverity         catalog.Severity `json:"peak_severity"`
	Escalated            bool             `json:"escalated"`
	Concerns             []string         `json:"concerns"`
	Categories           []string         `json:"categories"`
	ProfileFlags         []string         `json:"profile_flags"`
	ResourcesRecommended []string         `json:"resources_recommended"`
	IndicatorLabels      []string         `json:"indicator_labels"`
}
