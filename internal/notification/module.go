package notification

import (
	"context"
	"fmt"

	"practice_crm_backend/internal/events"
	"practice_crm_backend/internal/practices/domain"
	"practice_crm_backend/internal/sms"
	"practice_crm_backend/platform/logger"
)

// Module listens for domain events and fans alerts out to the team:
// Slack for everything, SMS for won deals when Twilio is configured.
type Module struct {
	notifier Notifier
	texter   *sms.Client
	log      *logger.Logger
}

func NewModule(notifier Notifier, texter *sms.Client, log *logger.Logger) *Module {
	return &Module{notifier: notifier, texter: texter, log: log}
}

func (m *Module) Name() string {
	return "notification"
}

// RegisterHandlers subscribes to the domain events this module reacts to.
func (m *Module) RegisterHandlers(bus *events.InMemoryBus) {
	bus.Subscribe(events.DealMoved{}.EventName(), m)
	bus.Subscribe(events.HotLeadDetected{}.EventName(), m)
}

// Handle routes events to the appropriate handler method.
func (m *Module) Handle(ctx context.Context, event events.Event) error {
	switch e := event.(type) {
	case events.DealMoved:
		return m.handleDealMoved(ctx, e)
	case events.HotLeadDetected:
		return m.handleHotLead(ctx, e)
	default:
		return nil
	}
}

func (m *Module) handleDealMoved(ctx context.Context, e events.DealMoved) error {
	switch e.ToStage {
	case domain.StageWon:
		msg := fmt.Sprintf(":tada: Deal won: *%s* (value €%.2f)", e.PracticeName, e.DealValue)
		if err := m.notifier.Notify(ctx, msg); err != nil {
			m.log.Error("failed to send deal-won alert", "practice_id", e.PracticeID, "error", err)
		}
		if m.texter != nil {
			text := fmt.Sprintf("Deal won: %s (value %.2f EUR)", e.PracticeName, e.DealValue)
			if err := m.texter.SendSalesAlert(ctx, text); err != nil {
				m.log.Error("failed to send deal-won sms", "practice_id", e.PracticeID, "error", err)
			}
		}
	case domain.StageLost:
		msg := fmt.Sprintf(":red_circle: Deal lost: *%s*", e.PracticeName)
		if e.Reason != "" {
			msg += " (" + e.Reason + ")"
		}
		if err := m.notifier.Notify(ctx, msg); err != nil {
			m.log.Error("failed to send deal-lost alert", "practice_id", e.PracticeID, "error", err)
		}
	}
	return nil
}

func (m *Module) handleHotLead(ctx context.Context, e events.HotLeadDetected) error {
	msg := fmt.Sprintf(":fire: New hot lead: *%s* (score %d). Next action: %s", e.PracticeName, e.Score, e.NextAction)
	if err := m.notifier.Notify(ctx, msg); err != nil {
		m.log.Error("failed to send hot-lead alert", "practice_id", e.PracticeID, "error", err)
		return err
	}
	return nil
}
