// Package notify delivers operational notifications, such as escalation
// alerts, to on-call staff by email.
package notify

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/wolfman30/mindbridge-triage/pkg/logging"
)

// DefaultFromName is the sender display name when none is configured.
const DefaultFromName = "MindBridge Triage"

var errNoRecipients = errors.New("notify: message has no recipients")

// EmailSender delivers one message to every recipient in msg.To.
type EmailSender interface {
	Send(ctx context.Context, msg EmailMessage) error
}

// EmailMessage is a staff notification. Text is required; HTML is optional.
type EmailMessage struct {
	To      []string
	Subject string
	Text    string
	HTML    string
}

// Sender identifies the From header shared by every transport.
type Sender struct {
	Email string
	Name  string
}

func (s Sender) withDefaults() Sender {
	s.Email = strings.TrimSpace(s.Email)
	s.Name = strings.TrimSpace(s.Name)
	if s.Name == "" {
		s.Name = DefaultFromName
	}
	return s
}

// Address renders the RFC 5322 From value, quoting the display name when needed.
func (s Sender) Address() string {
	return (&mail.Address{Name: s.Name, Address: s.Email}).String()
}

// ParseRecipients splits a comma separated list, dropping blanks and duplicates.
func ParseRecipients(raw string) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, part := range strings.Split(raw, ",") {
		addr := strings.TrimSpace(part)
		if addr == "" {
			continue
		}
		key := strings.ToLower(addr)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, addr)
	}
	return out
}

// SendGridConfig configures the SendGrid transport.
type SendGridConfig struct {
	APIKey string
	From   Sender
}

// SendGridSender delivers through the SendGrid v3 mail API. All recipients
// share one personalization so each alert is a single API call.
type SendGridSender struct {
	client *sendgrid.Client
	from   Sender
	logger *logging.Logger
}

// NewSendGridSender returns nil when no API key is configured.
func NewSendGridSender(cfg SendGridConfig, logger *logging.Logger) *SendGridSender {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &SendGridSender{
		client: sendgrid.NewSendClient(cfg.APIKey),
		from:   cfg.From.withDefaults(),
		logger: logger,
	}
}

func (s *SendGridSender) build(msg EmailMessage) *sgmail.SGMailV3 {
	m := sgmail.NewV3Mail()
	m.SetFrom(sgmail.NewEmail(s.from.Name, s.from.Email))
	m.Subject = msg.Subject

	p := sgmail.NewPersonalization()
	for _, to := range msg.To {
		p.AddTos(sgmail.NewEmail("", to))
	}
	m.AddPersonalizations(p)

	m.AddContent(sgmail.NewContent("text/plain", msg.Text))
	if msg.HTML != "" {
		m.AddContent(sgmail.NewContent("text/html", msg.HTML))
	}
	return m
}

// Send implements EmailSender.
func (s *SendGridSender) Send(ctx context.Context, msg EmailMessage) error {
	if s == nil || s.client == nil {
		return fmt.Errorf("notify: sendgrid client not configured")
	}
	if len(msg.To) == 0 {
		return errNoRecipients
	}

	resp, err := s.client.SendWithContext(ctx, s.build(msg))
	if err != nil {
		return fmt.Errorf("notify: sendgrid send: %w", err)
	}
	if resp.StatusCode >= 400 {
		s.logger.Error("sendgrid rejected message", "status", resp.StatusCode, "body", resp.Body)
		return fmt.Errorf("notify: sendgrid returned status %d", resp.StatusCode)
	}

	s.logger.Debug("email accepted by sendgrid", "recipients", len(msg.To), "status", resp.StatusCode)
	return nil
}

// LogEmailSender writes alerts to the log instead of delivering them. It
// backs EMAIL_PROVIDER=log for local development.
type LogEmailSender struct {
	logger *logging.Logger
}

func NewLogEmailSender(logger *logging.Logger) *LogEmailSender {
	if logger == nil {
		logger = logging.Default()
	}
	return &LogEmailSender{logger: logger}
}

// Send implements EmailSender.
func (s *LogEmailSender) Send(_ context.Context, msg EmailMessage) error {
	if len(msg.To) == 0 {
		return errNoRecipients
	}
	s.logger.Info("email not delivered (log provider)",
		"recipients", len(msg.To),
		"subject", msg.Subject,
	)
	return nil
}

var (
	_ EmailSender = (*SendGridSender)(nil)
	_ EmailSender = (*LogEmailSender)(nil)
)
