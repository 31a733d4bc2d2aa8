package bootstrap

import (
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"

	appconfig "github.com/wolfman30/mindbridge-triage/internal/config"
	"github.com/wolfman30/mindbridge-triage/internal/notify"
	"github.com/wolfman30/mindbridge-triage/pkg/logging"
)

// BuildEmailSender selects the escalation email transport from EMAIL_PROVIDER.
// It returns nil when email is disabled or misconfigured.
func BuildEmailSender(cfg *appconfig.Config, awsCfg *aws.Config, logger *logging.Logger) notify.EmailSender {
	if cfg == nil {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	if len(notify.ParseRecipients(cfg.EscalationEmailTo)) == 0 {
		logger.Info("escalation email disabled: no recipient configured")
		return nil
	}
	if strings.TrimSpace(cfg.EmailFrom) == "" && cfg.EmailProvider != "log" {
		logger.Warn("escalation email disabled: EMAIL_FROM is empty", "provider", cfg.EmailProvider)
		return nil
	}

	from := notify.Sender{Email: cfg.EmailFrom, Name: cfg.EmailFromName}
	switch cfg.EmailProvider {
	case "ses":
		if awsCfg == nil {
			logger.Warn("escalation email disabled: ses selected without aws config")
			return nil
		}
		sender := notify.NewSESSender(sesv2.NewFromConfig(*awsCfg), notify.SESConfig{
			From:             from,
			ConfigurationSet: cfg.SESConfigurationSet,
		}, logger)
		logger.Info("escalation email via ses")
		return sender
	case "sendgrid":
		sender := notify.NewSendGridSender(notify.SendGridConfig{
			APIKey: cfg.SendGridAPIKey,
			From:   from,
		}, logger)
		if sender == nil {
			logger.Warn("escalation email disabled: SENDGRID_API_KEY is empty")
			return nil
		}
		logger.Info("escalation email via sendgrid")
		return sender
	case "log":
		return notify.NewLogEmailSender(logger)
	default:
		logger.Info("escalation email disabled", "provider", cfg.EmailProvider)
		return nil
	}
}
