package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/wolfman30/mindbridge-triage/internal/catalog"
	"github.com/wolfman30/mindbridge-triage/internal/observability/metrics"
	"github.com/wolfman30/mindbridge-triage/pkg/logging"
)

// DefaultReplyTimeout bounds one external generation call.
const DefaultReplyTimeout = 8 * time.Second

var composerTracer = otel.Tracer("mindbridge/conversation")

// Composition is the composed reply for one turn.
type Composition struct {
	Narrative string
	Source    NarrativeSource
	Message   string
}

// Composer builds the user-facing message. The resource list is always
// appended no matter which narrative path ran.
type Composer struct {
	generator ReplyGenerator
	timeout   time.Duration
	logger    *logging.Logger
	metrics   *metrics.TriageMetrics
}

// NewComposer returns a composer. A nil generator means template narratives only.
func NewComposer(generator ReplyGenerator, timeout time.Duration, logger *logging.Logger, m *metrics.TriageMetrics) *Composer {
	if timeout <= 0 {
		timeout = DefaultReplyTimeout
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Composer{generator: generator, timeout: timeout, logger: logger, metrics: m}
}

// Compose tries the external generator and falls back to a template on any
// failure. userText is only forwarded to the generator, never logged.
func (c *Composer) Compose(ctx context.Context, result *TurnResult, history []ChatMessage, userText string) Composition {
	ctx, span := composerTracer.Start(ctx, "conversation.compose",
		trace.WithAttributes(attribute.Int("triage.turn", result.Turn)),
	)
	defer span.End()

	reply, reason := c.generate(ctx, result, history, userText)
	source := NarrativeGenerated
	if reply == "" {
		source = NarrativeTemplate
		if reason != "" {
			c.metrics.ObserveGenerationFailure(reason)
			c.logger.Warn("reply generation unavailable, using template",
				"session", logging.SessionRef(result.SessionID),
				"turn", result.Turn,
				"reason", reason,
			)
		}
	}
	c.metrics.ObserveNarrative(string(source))
	span.SetAttributes(
		attribute.String("narrative.source", string(source)),
		attribute.String("triage.severity", result.Severity.String()),
	)

	narrative := narrativeFor(result, reply)
	return Composition{
		Narrative: narrative,
		Source:    source,
		Message:   renderMessage(narrative, result),
	}
}

// generate returns the guarded external reply, or "" and a failure reason.
// An empty reason means there was nothing to try: no generator or no text.
func (c *Composer) generate(ctx context.Context, result *TurnResult, history []ChatMessage, userText string) (string, string) {
	if c == nil || c.generator == nil {
		return "", ""
	}
	if strings.TrimSpace(userText) == "" {
		return "", ""
	}

	guard := ScanForPromptInjection(userText)
	if guard.Blocked {
		c.logger.Warn("prompt guard blocked message",
			"session", logging.SessionRef(result.SessionID),
			"score", guard.Score,
			"reasons", guard.Reasons,
		)
		return "", "blocked_input"
	}

	names := make([]string, 0, len(result.Resources))
	for _, res := range result.Resources {
		names = append(names, res.Name)
	}
	req := GenerationRequest{
		History:       history,
		UserMessage:   guard.Sanitized,
		Categories:    matchCategories(result),
		Severity:      result.Severity,
		Escalated:     result.InterventionRequired,
		ResourceNames: names,
	}

	genCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	reply, err := c.generator.GenerateReply(genCtx, req)
	if err != nil {
		switch {
		case errors.Is(err, ErrReplyFiltered):
			return "", "filtered"
		case errors.Is(err, context.DeadlineExceeded), errors.Is(genCtx.Err(), context.DeadlineExceeded):
			return "", "timeout"
		}
		return "", "error"
	}
	reply = strings.TrimSpace(reply)
	if reply == "" {
		return "", "empty_reply"
	}

	out := ScanOutputForLeaks(reply)
	cleaned := strings.TrimSpace(out.Sanitized)
	if out.Leaked {
		c.logger.Warn("output guard flagged reply",
			"session", logging.SessionRef(result.SessionID),
			"reasons", out.Reasons,
			"usable", cleaned != "",
		)
	}
	if cleaned == "" {
		return "", "blocked_output"
	}
	return cleaned, ""
}

// ComposeMessage builds the final message from a turn and an optional external
// reply. A blank reply selects the template narrative.
func ComposeMessage(result *TurnResult, externalReply string) string {
	return renderMessage(narrativeFor(result, externalReply), result)
}

func narrativeFor(result *TurnResult, reply string) string {
	if reply = strings.TrimSpace(reply); reply != "" {
		return reply
	}
	return TemplateNarrative(result)
}

func matchCategories(result *TurnResult) []string {
	var out []string
	seen := make(map[string]bool)
	for _, m := range result.Matches {
		if !seen[m.Category] {
			seen[m.Category] = true
			out = append(out, m.Category)
		}
	}
	return out
}

const (
	templateCrisis    = "crisis"
	templateHigh      = "high"
	templateEscalated = "escalated"
	templateModerate  = "moderate"
	templateDistress  = "distress"
	templateGeneral   = "general"
)

var narrativeTemplates = map[string]string{
	templateCrisis: "I'm really glad you told me, and I'm concerned about your safety right now. " +
		"You don't have to go through this alone. Please reach out to one of the crisis contacts below right away, " +
		"or call 911 if you are in immediate danger.",
	templateHigh: "I'm concerned about what you're sharing, and I think talking with a professional soon would really help. " +
		"You are not alone in this. These feelings can be overwhelming, but they are treatable. " +
		"Counseling services may be able to see you the same day, and the crisis line is there if things get more intense.",
	templateModerate: "I hear that you're going through a difficult time, and it's important to get support with it. " +
		"Would you like help connecting with any of the options below?",
	templateEscalated: "Thank you for continuing to talk with me. Because of what you shared earlier, " +
		"I want to make sure the crisis contacts below stay close at hand. They are available any time, day or night.",
	"academic-stress": "It sounds like academic pressure is weighing on you right now. " +
		"That is something a lot of students go through, and there is support that can help you get back on track.",
	"social-isolation": "Feeling disconnected from the people around you can be really hard. " +
		"Thank you for sharing that with me. There are people and groups on campus who want to help you find connection.",
	"cultural-adjustment": "Adjusting to a new place and culture takes a lot of energy, and missing home is completely understandable. " +
		"There are services here that specialize in supporting students through that transition.",
	"self-esteem": "It sounds like you're being hard on yourself. Those feelings are real, " +
		"and talking them through with someone can make a difference in how you see yourself.",
	"anxiety": "What you're describing sounds really overwhelming. Anxiety like that is exhausting, " +
		"and there are people who can help you find ways to manage it.",
	"family-relationships": "Family expectations and tension at home can be a lot to carry while you're at school. " +
		"It can help to talk it through with someone outside the situation.",
	"relationships": "Going through difficulties in a relationship can be painful. " +
		"Your feelings make sense, and you don't have to sort through them alone.",
	"financial-stress": "Money worries can add a lot of pressure on top of everything else. " +
		"There are offices and programs that can help you look at your options.",
	"provider-search": "It's a great step to look for ongoing support. " +
		"The options below can connect you with counselors and therapists, including ones in the affiliated care network.",
	templateDistress: "It sounds like things are really difficult right now. " +
		"Thank you for telling me. Talking with someone can help, and the options below are a good place to start.",
	templateGeneral: "Thank you for reaching out. I'm here to listen and help you find support that fits what you're going through.",
}

var followUpQuestions = map[string][]string{
	"academic-stress": {
		"Which part of your coursework feels the most overwhelming right now?",
		"How have you been sleeping and taking breaks while you study?",
	},
	"social-isolation": {
		"Have there been moments recently when you felt a bit more connected to someone?",
		"Are there any activities or groups you've thought about joining?",
	},
	"cultural-adjustment": {
		"What has been the hardest part about adjusting to life here?",
		"Have you been able to stay in touch with family or friends from home?",
	},
	"self-esteem": {
		"When do these thoughts about yourself tend to feel strongest?",
		"What is something you've handled well recently, even something small?",
	},
	templateGeneral: {
		"Can you tell me a bit more about what's been on your mind?",
		"How long have you been feeling this way?",
	},
}

// followUpTurns limits follow-up questions to the opening turns.
const followUpTurns = 2

// TemplateNarrative returns the deterministic narrative for a turn.
func TemplateNarrative(result *TurnResult) string {
	key := templateKey(result)
	narrative := narrativeTemplates[key]
	switch key {
	case templateCrisis, templateHigh, templateEscalated, templateModerate:
		return narrative
	}
	if result.Turn >= 1 && result.Turn <= followUpTurns {
		questionKey := key
		if key == templateDistress {
			questionKey = templateGeneral
		}
		if qs := followUpQuestions[questionKey]; len(qs) > 0 {
			narrative += " " + qs[(result.Turn-1)%len(qs)]
		}
	}
	return narrative
}

// templateKey picks the narrative by the turn's own severity first; a
// category template only speaks for turns below moderate.
func templateKey(result *TurnResult) string {
	switch {
	case result.Severity == catalog.SeverityCrisis:
		return templateCrisis
	case result.Severity == catalog.SeverityHigh:
		return templateHigh
	case result.InterventionRequired:
		return templateEscalated
	case result.Severity == catalog.SeverityModerate:
		return templateModerate
	}
	if top := result.TopCategory(); top != "" {
		if _, ok := narrativeTemplates[top]; ok {
			return top
		}
	}
	if catalog.MaxSeverity(result.Severity, result.ActionSeverity).AtLeast(catalog.SeverityLow) {
		return templateDistress
	}
	return templateGeneral
}

// renderMessage appends next steps for turns at moderate or above, then the
// resource list.
func renderMessage(narrative string, result *TurnResult) string {
	var b strings.Builder
	b.WriteString(narrative)
	if len(result.ImmediateActions) > 0 && result.ActionSeverity.AtLeast(catalog.SeverityModerate) {
		b.WriteString("\n\nNext steps:")
		for _, step := range result.ImmediateActions {
			b.WriteString("\n- ")
			b.WriteString(step)
		}
	}
	resources := result.Resources
	if len(resources) == 0 {
		return b.String()
	}
	b.WriteString("\n\nSupport options:")
	for i, res := range resources {
		fmt.Fprintf(&b, "\n%d. %s", i+1, res.Name)
		if res.Availability != "" {
			fmt.Fprintf(&b, " (%s)", res.Availability)
		}
		contacts := make([]string, 0, len(res.Contacts))
		for _, c := range res.Contacts {
			contacts = append(contacts, fmt.Sprintf("%s: %s", c.Kind, c.Value))
		}
		if len(contacts) > 0 {
			b.WriteString("\n   ")
			b.WriteString(strings.Join(contacts, " | "))
		}
	}
	return b.String()
}
