// Package notification pushes sales alerts to the team channel. The
// automation engine and the event listeners both deliver through the
// Notifier interface; Slack incoming webhooks are the default transport.
package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"practice_crm_backend/platform/config"
	"practice_crm_backend/platform/logger"
)

// Notifier delivers one alert message to the sales team.
type Notifier interface {
	Notify(ctx context.Context, message string) error
}

// NoopNotifier is used when no webhook is configured.
type NoopNotifier struct{}

func (NoopNotifier) Notify(ctx context.Context, message string) error { return nil }

// SlackNotifier posts messages to a Slack incoming webhook.
type SlackNotifier struct {
	webhookURL string
	client     *http.Client
}

func NewNotifier(cfg config.SlackConfig, log *logger.Logger) Notifier {
	if cfg.GetSlackWebhookURL() == "" {
		log.Warn("SLACK_WEBHOOK_URL not configured; sales alerts disabled")
		return NoopNotifier{}
	}
	return &SlackNotifier{
		webhookURL: cfg.GetSlackWebhookURL(),
		client:     &http.Client{Timeout: 10 * time.Second},
	}
}

type slackMessage struct {
	Text string `json:"text"`
}

func (s *SlackNotifier) Notify(ctx context.Context, message string) error {
	body, err := json.Marshal(slackMessage{Text: message})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.webhookURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("slack webhook returned %d: %s", resp.StatusCode, string(data))
	}
	return nil
}
