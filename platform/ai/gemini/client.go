// Package gemini provides AI email copy generation via the Gemini API.
// This is part of the platform layer and contains no business logic.
package gemini

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// Config holds the Gemini client settings.
type Config struct {
	APIKey string
	Model  string
}

// Client generates outreach email copy with Gemini.
type Client struct {
	client *genai.Client
	model  string
}

// NewClient creates a Gemini-backed copy generator. Returns nil when no
// API key is configured so callers can fall back to static templates.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, nil
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}

	model := cfg.Model
	if model == "" {
		model = "gemini-2.0-flash"
	}

	return &Client{client: client, model: model}, nil
}

// EmailPrompt describes the practice context for copy generation.
type EmailPrompt struct {
	PracticeName string
	Municipality string
	TemplateType string
	EmailsSent   int
	Stage        string
}

// GenerateEmailBody produces HTML body copy for an outreach email.
func (c *Client) GenerateEmailBody(ctx context.Context, prompt EmailPrompt) (string, error) {
	if c == nil || c.client == nil {
		return "", fmt.Errorf("gemini not configured")
	}

	instruction := buildInstruction(prompt)

	resp, err := c.client.Models.GenerateContent(ctx, c.model, genai.Text(instruction), nil)
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", fmt.Errorf("gemini returned empty content")
	}
	return text, nil
}

func buildInstruction(p EmailPrompt) string {
	var b strings.Builder
	b.WriteString("Write a short, friendly outreach email body in HTML for a healthcare practice.\n")
	fmt.Fprintf(&b, "Practice: %s", p.PracticeName)
	if p.Municipality != "" {
		fmt.Fprintf(&b, " in %s", p.Municipality)
	}
	b.WriteString(".\n")
	fmt.Fprintf(&b, "Email type: %s. Previous emails sent: %d.\n", p.TemplateType, p.EmailsSent)
	if p.Stage != "" {
		fmt.Fprintf(&b, "Sales stage: %s.\n", p.Stage)
	}
	b.WriteString("Keep it under 120 words, no subject line, no signature placeholders.")
	return b.String()
}
