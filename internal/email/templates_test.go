package email

import (
	"context"
	"strings"
	"testing"

	"practice_crm_backend/internal/practices/domain"
	"practice_crm_backend/platform/logger"
)

func newTestComposer() *composer {
	return newComposer(nil, logger.New("test"))
}

func TestComposeRendersTemplate(t *testing.T) {
	c := newTestComposer()
	p := &domain.Practice{ID: 1, Name: "Praktijk Jansen", Municipality: "Utrecht"}

	subject, html, err := c.Compose(context.Background(), p, TemplateFollowUp, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if subject != "Following up with Praktijk Jansen" {
		t.Fatalf("unexpected subject %q", subject)
	}
	if !strings.Contains(html, "Praktijk Jansen") {
		t.Fatal("expected practice name in rendered body")
	}
	if !strings.Contains(html, "<html") {
		t.Fatal("expected full HTML document from base layout")
	}
}

func TestComposeUnknownTypeFallsBackToFollowUp(t *testing.T) {
	c := newTestComposer()
	p := &domain.Practice{ID: 2, Name: "Praktijk West"}

	subject, _, err := c.Compose(context.Background(), p, "mystery_type", false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if subject != "Following up with Praktijk West" {
		t.Fatalf("expected follow_up fallback, got %q", subject)
	}
}

func TestComposeMissingNameUsesPlaceholder(t *testing.T) {
	c := newTestComposer()

	subject, _, err := c.Compose(context.Background(), &domain.Practice{ID: 3}, TemplateReEngagement, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if subject != "We'd love to reconnect with your practice" {
		t.Fatalf("unexpected subject %q", subject)
	}
}

func TestAllCampaignTemplatesRender(t *testing.T) {
	c := newTestComposer()
	p := &domain.Practice{ID: 4, Name: "Praktijk Noord", Municipality: "Groningen"}

	for _, templateType := range []string{
		TemplateFollowUp,
		TemplateHighInterest,
		TemplateGentleReminder,
		TemplateReEngagement,
		TemplateIntroduction,
		TemplateInterest,
	} {
		if _, _, err := c.Compose(context.Background(), p, templateType, false); err != nil {
			t.Fatalf("template %s failed to render: %v", templateType, err)
		}
	}
}

func TestSubjectForVariants(t *testing.T) {
	p := &domain.Practice{Name: "Praktijk Oost"}
	cases := map[string]string{
		TemplateHighInterest:   "Next steps for Praktijk Oost",
		TemplateGentleReminder: "A quick note for Praktijk Oost",
		TemplateIntroduction:   "An introduction for Praktijk Oost",
		TemplateInterest:       "Following up with Praktijk Oost",
	}
	for templateType, expected := range cases {
		if got := subjectFor(templateType, p); got != expected {
			t.Fatalf("%s: expected %q, got %q", templateType, expected, got)
		}
	}
}
