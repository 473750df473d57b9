package email

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"practice_crm_backend/internal/practices/domain"
)

// SendGridSender delivers campaign emails through the SendGrid v3 API.
type SendGridSender struct {
	apiKey    string
	fromName  string
	fromEmail string
	client    *http.Client
	comp      *composer
}

func NewSendGridSender(apiKey, fromName, fromEmail string, comp *composer) *SendGridSender {
	return &SendGridSender{
		apiKey:    apiKey,
		fromName:  fromName,
		fromEmail: fromEmail,
		client:    &http.Client{Timeout: 10 * time.Second},
		comp:      comp,
	}
}

type sendGridAddress struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type sendGridRequest struct {
	Personalizations []struct {
		To []sendGridAddress `json:"to"`
	} `json:"personalizations"`
	From    sendGridAddress `json:"from"`
	Subject string          `json:"subject"`
	Content []struct {
		Type  string `json:"type"`
		Value string `json:"value"`
	} `json:"content"`
}

func (s *SendGridSender) SendCampaignEmail(ctx context.Context, p *domain.Practice, templateType string, useAI bool) error {
	if p.Email == "" {
		return fmt.Errorf("practice %d has no email address", p.ID)
	}

	subject, htmlContent, err := s.comp.Compose(ctx, p, templateType, useAI)
	if err != nil {
		return err
	}
	return s.send(ctx, p.Email, subject, htmlContent)
}

func (s *SendGridSender) send(ctx context.Context, toEmail, subject, htmlContent string) error {
	payload := sendGridRequest{
		From:    sendGridAddress{Email: s.fromEmail, Name: s.fromName},
		Subject: subject,
	}
	payload.Personalizations = []struct {
		To []sendGridAddress `json:"to"`
	}{{To: []sendGridAddress{{Email: toEmail}}}}
	payload.Content = []struct {
		Type  string `json:"type"`
		Value string `json:"value"`
	}{{Type: "text/html", Value: htmlContent}}

	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "https://api.sendgrid.com/v3/mail/send", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
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
		return fmt.Errorf("sendgrid returned %d: %s", resp.StatusCode, string(data))
	}
	return nil
}
