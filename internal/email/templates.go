package email

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"

	"practice_crm_backend/internal/practices/domain"
	"practice_crm_backend/platform/ai/gemini"
	"practice_crm_backend/platform/logger"
)

//go:embed templates/*.html
var templateFS embed.FS

// Campaign template types. The automation rule table selects one of these
// per action; unknown types fall back to follow_up.
const (
	TemplateFollowUp       = "follow_up"
	TemplateHighInterest   = "high_interest"
	TemplateGentleReminder = "gentle_reminder"
	TemplateReEngagement   = "re_engagement"
	TemplateIntroduction   = "introduction"
	TemplateInterest       = "interest_detected"
)

// templateFiles maps a campaign type to its embedded body template.
var templateFiles = map[string]string{
	TemplateFollowUp:       "follow_up.html",
	TemplateHighInterest:   "high_interest.html",
	TemplateGentleReminder: "gentle_reminder.html",
	TemplateReEngagement:   "re_engagement.html",
	TemplateIntroduction:   "introduction.html",
	TemplateInterest:       "follow_up.html",
}

type campaignEmailData struct {
	Title        string
	Heading      string
	PracticeName string
	Municipality string
	AIBody       template.HTML
}

// composer turns a practice and a template type into subject and HTML body.
// Template rendering and the optional AI body share one code path so both
// transports produce identical content.
type composer struct {
	ai  *gemini.Client
	log *logger.Logger
}

func newComposer(ai *gemini.Client, log *logger.Logger) *composer {
	return &composer{ai: ai, log: log}
}

func (c *composer) Compose(ctx context.Context, p *domain.Practice, templateType string, useAI bool) (subject, html string, err error) {
	if _, ok := templateFiles[templateType]; !ok {
		templateType = TemplateFollowUp
	}
	subject = subjectFor(templateType, p)

	data := campaignEmailData{
		Title:        subject,
		Heading:      subject,
		PracticeName: practiceName(p),
		Municipality: p.Municipality,
	}

	if useAI && c.ai != nil {
		body, aiErr := c.ai.GenerateEmailBody(ctx, gemini.EmailPrompt{
			PracticeName: practiceName(p),
			Municipality: p.Municipality,
			TemplateType: templateType,
			EmailsSent:   emailsSent(p),
			Stage:        p.CurrentStage(),
		})
		if aiErr != nil {
			// Fall back to the static template when generation fails.
			c.log.Warn("ai email generation failed; using template", "practice_id", p.ID, "error", aiErr)
		} else {
			data.AIBody = template.HTML(template.HTMLEscapeString(body))
		}
	}

	html, err = renderEmailTemplate(templateFiles[templateType], data)
	if err != nil {
		return "", "", err
	}
	return subject, html, nil
}

func renderEmailTemplate(name string, data any) (string, error) {
	templates := []string{"templates/base.html", "templates/" + name}
	tmpl, err := template.New("base.html").ParseFS(templateFS, templates...)
	if err != nil {
		return "", fmt.Errorf("parse email template %s: %w", name, err)
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "email", data); err != nil {
		return "", fmt.Errorf("execute email template %s: %w", name, err)
	}
	return buf.String(), nil
}

func practiceName(p *domain.Practice) string {
	if p.Name == "" {
		return "your practice"
	}
	return p.Name
}

func emailsSent(p *domain.Practice) int {
	if p.Workflow == nil {
		return 0
	}
	return p.Workflow.EmailsSent
}
