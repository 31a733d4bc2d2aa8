package notify

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/wolfman30/mindbridge-triage/internal/events"
	"github.com/wolfman30/mindbridge-triage/internal/observability/metrics"
	"github.com/wolfman30/mindbridge-triage/pkg/logging"
)

// EscalationNotifier emails on-call staff when a session escalates.
// Messages carry only the session reference, severity and indicator labels.
type EscalationNotifier struct {
	sender  EmailSender
	to      []string
	logger  *logging.Logger
	metrics *metrics.TriageMetrics
}

var _ events.DeliveryHandler = (*EscalationNotifier)(nil)

// NewEscalationNotifier returns a notifier that sends to every address in
// the comma separated recipients list.
func NewEscalationNotifier(sender EmailSender, recipients string, logger *logging.Logger, m *metrics.TriageMetrics) *EscalationNotifier {
	if logger == nil {
		logger = logging.Default()
	}
	return &EscalationNotifier{
		sender:  sender,
		to:      ParseRecipients(recipients),
		logger:  logger,
		metrics: m,
	}
}

// Handle implements events.DeliveryHandler. Event types other than
// session escalation are acknowledged and ignored.
func (n *EscalationNotifier) Handle(ctx context.Context, env events.Envelope) error {
	evt, err := events.Decode[events.SessionEscalatedV1](env)
	if err != nil {
		if errors.Is(err, events.ErrEventTypeMismatch) {
			return nil
		}
		return fmt.Errorf("notify: decode escalation: %w", err)
	}
	if n.sender == nil || len(n.to) == 0 {
		n.logger.Warn("escalation notification skipped: no recipient configured",
			"event_id", env.EventID.String(),
			"session_ref", evt.SessionRef,
		)
		return nil
	}

	msg := EscalationEmail(env.EventID.String(), evt, n.to)
	if err := n.sender.Send(ctx, msg); err != nil {
		n.metrics.ObserveNotification("failed")
		return fmt.Errorf("notify: send escalation %s: %w", env.EventID, err)
	}
	n.metrics.ObserveNotification("sent")
	n.logger.Info("escalation notification sent",
		"event_id", env.EventID.String(),
		"session_ref", evt.SessionRef,
		"severity", evt.Severity,
		"recipients", len(n.to),
	)
	return nil
}

// EscalationEmail renders the staff alert for evt.
func EscalationEmail(eventID string, evt events.SessionEscalatedV1, to []string) EmailMessage {
	labels := "none recorded"
	if len(evt.Labels) > 0 {
		labels = strings.Join(evt.Labels, ", ")
	}
	occurred := evt.OccurredAt.UTC().Format(time.RFC3339)

	var body strings.Builder
	body.WriteString("A triage session has reached the intervention threshold.\n\n")
	fmt.Fprintf(&body, "Session: %s\n", evt.SessionRef)
	fmt.Fprintf(&body, "Turn: %d\n", evt.Turn)
	fmt.Fprintf(&body, "Severity: %s\n", evt.Severity)
	fmt.Fprintf(&body, "Indicators: %s\n", labels)
	fmt.Fprintf(&body, "Occurred: %s\n", occurred)
	fmt.Fprintf(&body, "Event: %s\n\n", eventID)
	body.WriteString("Crisis resources were shown to the user. Follow your on-call protocol.\n")

	var h strings.Builder
	h.WriteString("<p>A triage session has reached the intervention threshold.</p><ul>")
	fmt.Fprintf(&h, "<li><b>Session:</b> %s</li>", html.EscapeString(evt.SessionRef))
	fmt.Fprintf(&h, "<li><b>Turn:</b> %d</li>", evt.Turn)
	fmt.Fprintf(&h, "<li><b>Severity:</b> %s</li>", html.EscapeString(evt.Severity))
	fmt.Fprintf(&h, "<li><b>Indicators:</b> %s</li>", html.EscapeString(labels))
	fmt.Fprintf(&h, "<li><b>Occurred:</b> %s</li>", occurred)
	fmt.Fprintf(&h, "<li><b>Event:</b> %s</li>", html.EscapeString(eventID))
	h.WriteString("</ul><p>Crisis resources were shown to the user. Follow your on-call protocol.</p>")

	return EmailMessage{
		To:      to,
		Subject: fmt.Sprintf("[MindBridge] Session %s escalated (%s)", evt.SessionRef, evt.Severity),
		Text:    body.String(),
		HTML:    h.String(),
	}
}
