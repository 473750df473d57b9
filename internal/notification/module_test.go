package notification

import (
	"context"
	"strings"
	"testing"

	"practice_crm_backend/internal/events"
	"practice_crm_backend/internal/practices/domain"
	"practice_crm_backend/platform/logger"
)

type fakeNotifier struct {
	messages []string
	err      error
}

func (f *fakeNotifier) Notify(_ context.Context, message string) error {
	f.messages = append(f.messages, message)
	return f.err
}

func newTestModule() (*Module, *fakeNotifier) {
	notifier := &fakeNotifier{}
	return NewModule(notifier, nil, logger.New("test")), notifier
}

func TestHandleDealWon(t *testing.T) {
	m, notifier := newTestModule()

	err := m.Handle(context.Background(), events.DealMoved{
		PracticeID:   1,
		PracticeName: "Praktijk Jansen",
		FromStage:    domain.StageNegotiation,
		ToStage:      domain.StageWon,
		DealValue:    12500,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(notifier.messages) != 1 {
		t.Fatalf("expected one message, got %d", len(notifier.messages))
	}
	msg := notifier.messages[0]
	if !strings.Contains(msg, "Deal won") || !strings.Contains(msg, "Praktijk Jansen") {
		t.Fatalf("unexpected message %q", msg)
	}
	if !strings.Contains(msg, "12500.00") {
		t.Fatalf("expected deal value in message, got %q", msg)
	}
}

func TestHandleDealLostIncludesReason(t *testing.T) {
	m, notifier := newTestModule()

	err := m.Handle(context.Background(), events.DealMoved{
		PracticeID:   2,
		PracticeName: "Praktijk de Vries",
		FromStage:    domain.StageProposalSent,
		ToStage:      domain.StageLost,
		Reason:       "chose competitor",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(notifier.messages) != 1 {
		t.Fatalf("expected one message, got %d", len(notifier.messages))
	}
	if !strings.Contains(notifier.messages[0], "chose competitor") {
		t.Fatalf("expected reason in message, got %q", notifier.messages[0])
	}
}

func TestHandleDealMovedIgnoresIntermediateStages(t *testing.T) {
	m, notifier := newTestModule()

	err := m.Handle(context.Background(), events.DealMoved{
		PracticeID:   3,
		PracticeName: "Praktijk Bakker",
		FromStage:    domain.StageContacted,
		ToStage:      domain.StageInterested,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(notifier.messages) != 0 {
		t.Fatalf("intermediate moves must not alert, got %+v", notifier.messages)
	}
}

func TestHandleHotLead(t *testing.T) {
	m, notifier := newTestModule()

	err := m.Handle(context.Background(), events.HotLeadDetected{
		PracticeID:   4,
		PracticeName: "Praktijk Visser",
		Score:        88,
		NextAction:   "Call immediately",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(notifier.messages) != 1 {
		t.Fatalf("expected one message, got %d", len(notifier.messages))
	}
	msg := notifier.messages[0]
	if !strings.Contains(msg, "hot lead") || !strings.Contains(msg, "score 88") {
		t.Fatalf("unexpected message %q", msg)
	}
}

func TestHandleUnknownEventIsNoop(t *testing.T) {
	m, notifier := newTestModule()

	err := m.Handle(context.Background(), events.PracticeEngagement{
		PracticeID: 5,
		Activity:   "email_opened",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(notifier.messages) != 0 {
		t.Fatal("unsubscribed event types must be ignored")
	}
}
