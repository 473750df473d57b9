// Package sms wraps the Twilio API for text alerts to the sales team.
// A nil *Client is valid and means SMS is not configured; callers check
// before use.
package sms

import (
	"context"
	"fmt"

	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"

	"practice_crm_backend/platform/config"
	"practice_crm_backend/platform/logger"
)

// Client wraps the Twilio REST API for outbound SMS.
type Client struct {
	client  *twilio.RestClient
	from    string
	alertTo string
	log     *logger.Logger
}

// NewClient returns nil (not an error) when Twilio is not configured, so
// the caller can wire the absence through without conditionals everywhere.
func NewClient(cfg config.TwilioConfig, log *logger.Logger) *Client {
	if cfg.GetTwilioAccountSID() == "" || cfg.GetTwilioAuthToken() == "" {
		log.Warn("twilio not configured; sms alerts disabled")
		return nil
	}
	if cfg.GetTwilioFromNumber() == "" || cfg.GetSalesAlertPhone() == "" {
		log.Warn("twilio from/alert number missing; sms alerts disabled")
		return nil
	}

	client := twilio.NewRestClientWithParams(
		twilio.ClientParams{
			Username: cfg.GetTwilioAccountSID(),
			Password: cfg.GetTwilioAuthToken(),
		},
	)

	return &Client{
		client:  client,
		from:    cfg.GetTwilioFromNumber(),
		alertTo: cfg.GetSalesAlertPhone(),
		log:     log,
	}
}

// SendSalesAlert texts the configured sales phone.
func (c *Client) SendSalesAlert(ctx context.Context, body string) error {
	return c.Send(ctx, c.alertTo, body)
}

// Send delivers one SMS message.
func (c *Client) Send(ctx context.Context, to, body string) error {
	params := &twilioApi.CreateMessageParams{}
	params.SetTo(to)
	params.SetFrom(c.from)
	params.SetBody(body)

	_, err := c.client.Api.CreateMessage(params)
	if err != nil {
		c.log.Error("twilio send failed", "to", to, "error", err)
		return fmt.Errorf("failed to send sms to %s: %w", to, err)
	}

	c.log.Debug("sms sent", "to", to)
	return nil
}
