// Package email delivers outreach campaign emails to practices. Two
// transports are supported: the SendGrid HTTP API and direct SMTP via
// go-mail. Both render the same embedded templates; Gemini can replace
// the template body when AI personalization is requested.
package email

import (
	"context"
	"fmt"

	"practice_crm_backend/internal/practices/domain"
	"practice_crm_backend/platform/ai/gemini"
	"practice_crm_backend/platform/config"
	"practice_crm_backend/platform/logger"
)

// Sender delivers one campaign email to a practice.
type Sender interface {
	SendCampaignEmail(ctx context.Context, p *domain.Practice, templateType string, useAI bool) error
}

// NoopSender is used when email delivery is disabled. Sends succeed
// silently so the automation history still records the attempt.
type NoopSender struct{}

func (NoopSender) SendCampaignEmail(ctx context.Context, p *domain.Practice, templateType string, useAI bool) error {
	return nil
}

// NewSender picks the delivery transport from configuration.
func NewSender(cfg config.EmailConfig, ai *gemini.Client, log *logger.Logger) (Sender, error) {
	if !cfg.GetEmailEnabled() {
		log.Warn("email delivery disabled; using noop sender")
		return NoopSender{}, nil
	}

	comp := newComposer(ai, log)

	switch cfg.GetEmailProvider() {
	case "smtp":
		if cfg.GetSMTPHost() == "" {
			return nil, fmt.Errorf("email provider smtp requires SMTP_HOST")
		}
		return NewSMTPSender(
			cfg.GetSMTPHost(), cfg.GetSMTPPort(),
			cfg.GetSMTPUsername(), cfg.GetSMTPPassword(),
			cfg.GetEmailFromAddress(), cfg.GetEmailFromName(),
			comp,
		), nil
	case "", "sendgrid":
		if cfg.GetSendGridAPIKey() == "" {
			return nil, fmt.Errorf("email provider sendgrid requires SENDGRID_API_KEY")
		}
		return NewSendGridSender(
			cfg.GetSendGridAPIKey(),
			cfg.GetEmailFromName(), cfg.GetEmailFromAddress(),
			comp,
		), nil
	default:
		return nil, fmt.Errorf("unknown email provider: %s", cfg.GetEmailProvider())
	}
}
