package pipeline

import (
	"errors"
	"testing"
	"time"

	"practice_crm_backend/internal/practices/domain"
	"practice_crm_backend/platform/apperr"
	"practice_crm_backend/platform/logger"
)

var testNow = time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

func newTestService() *Service {
	return New(logger.New("test")).WithClock(func() time.Time { return testNow })
}

func TestMoveDealInitializesPipeline(t *testing.T) {
	svc := newTestService()
	p := &domain.Practice{ID: 1}

	if err := svc.MoveDeal(p, domain.StageContacted, "first email"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if p.Pipeline.CurrentStage != domain.StageContacted {
		t.Fatalf("expected stage contacted, got %s", p.Pipeline.CurrentStage)
	}
	if p.Pipeline.Probability != 10 {
		t.Fatalf("expected probability 10, got %d", p.Pipeline.Probability)
	}
	if len(p.Pipeline.History) != 1 {
		t.Fatalf("expected one history entry, got %d", len(p.Pipeline.History))
	}
	h := p.Pipeline.History[0]
	if h.FromStage != domain.StageNewLead || h.ToStage != domain.StageContacted || h.Reason != "first email" {
		t.Fatalf("unexpected transition %+v", h)
	}
	if p.Workflow == nil || p.Workflow.Status != "Contacted" {
		t.Fatalf("expected workflow status mirrored, got %+v", p.Workflow)
	}
}

func TestMoveDealRejectsUnknownStage(t *testing.T) {
	svc := newTestService()
	p := &domain.Practice{ID: 1, Pipeline: &domain.PipelineState{CurrentStage: domain.StageContacted}}

	err := svc.MoveDeal(p, "limbo", "")
	if err == nil {
		t.Fatal("expected error for unknown stage")
	}
	var appErr *apperr.Error
	if !errors.As(err, &appErr) {
		t.Fatalf("expected *apperr.Error, got %T", err)
	}
	if appErr.Kind != apperr.KindValidation || appErr.Message != "invalid stage: limbo" {
		t.Fatalf("unexpected error %+v", appErr)
	}
	if p.Pipeline.CurrentStage != domain.StageContacted {
		t.Fatalf("expected record untouched, got stage %s", p.Pipeline.CurrentStage)
	}
	if len(p.Pipeline.History) != 0 {
		t.Fatalf("expected no history entry, got %d", len(p.Pipeline.History))
	}
}

func TestMoveDealSameStageRefreshesClockWithoutHistory(t *testing.T) {
	now := testNow
	svc := New(logger.New("test")).WithClock(func() time.Time { return now })
	p := &domain.Practice{ID: 1}

	if err := svc.MoveDeal(p, domain.StageInterested, ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	firstEntered := p.Pipeline.StageEnteredAt

	now = now.Add(48 * time.Hour)
	if err := svc.MoveDeal(p, domain.StageInterested, "still interested"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(p.Pipeline.History) != 1 {
		t.Fatalf("expected no extra history for same-stage move, got %d entries", len(p.Pipeline.History))
	}
	if p.Pipeline.StageEnteredAt == firstEntered {
		t.Fatal("expected stage_entered_at refreshed on same-stage move")
	}
}

func TestAutoStageFromActivityAdvances(t *testing.T) {
	svc := newTestService()
	p := &domain.Practice{ID: 1}

	if err := svc.AutoStageFromActivity(p, "email_opened"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.CurrentStage() != domain.StageInterested {
		t.Fatalf("expected interested, got %s", p.CurrentStage())
	}
}

func TestAutoStageFromActivityNeverRegresses(t *testing.T) {
	svc := newTestService()
	p := &domain.Practice{ID: 1, Pipeline: &domain.PipelineState{CurrentStage: domain.StageProposalSent}}

	if err := svc.AutoStageFromActivity(p, "email_opened"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.CurrentStage() != domain.StageProposalSent {
		t.Fatalf("expected proposal_sent preserved, got %s", p.CurrentStage())
	}
}

func TestAutoStageFromActivityTerminalAlwaysApplies(t *testing.T) {
	svc := newTestService()
	p := &domain.Practice{ID: 1, Pipeline: &domain.PipelineState{CurrentStage: domain.StageNegotiation}}

	if err := svc.AutoStageFromActivity(p, "deal_lost"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.CurrentStage() != domain.StageLost {
		t.Fatalf("expected lost, got %s", p.CurrentStage())
	}
}

func TestAutoStageFromActivityIgnoresUnknown(t *testing.T) {
	svc := newTestService()
	p := &domain.Practice{ID: 1}

	if err := svc.AutoStageFromActivity(p, "carrier_pigeon"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Pipeline != nil {
		t.Fatal("expected no pipeline initialization for unknown activity")
	}
}

func TestGetSummaryEmptyInput(t *testing.T) {
	svc := newTestService()
	summary := svc.GetSummary(nil)

	if summary.TotalDeals != 0 || summary.WinRate != 0 || summary.LossRate != 0 {
		t.Fatalf("expected zeroed summary, got %+v", summary)
	}
	if len(summary.Stages) != len(domain.Stages) {
		t.Fatalf("expected all %d stages present, got %d", len(domain.Stages), len(summary.Stages))
	}
	for id, entry := range summary.Stages {
		if entry.Deals == nil {
			t.Fatalf("expected empty deals slice for %s, got nil", id)
		}
	}
}

func TestGetSummaryAggregates(t *testing.T) {
	svc := newTestService()
	practices := []*domain.Practice{
		{ID: 1, Pipeline: &domain.PipelineState{CurrentStage: domain.StageWon, DealValue: 1000}},
		{ID: 2, Pipeline: &domain.PipelineState{CurrentStage: domain.StageLost}},
		{ID: 3, Pipeline: &domain.PipelineState{CurrentStage: domain.StageNegotiation, DealValue: 500}},
		{ID: 4},
	}

	summary := svc.GetSummary(practices)

	if summary.TotalDeals != 4 || summary.TotalValue != 1500 {
		t.Fatalf("unexpected totals %+v", summary)
	}
	if summary.WonCount != 1 || summary.LostCount != 1 {
		t.Fatalf("unexpected won/lost counts %d/%d", summary.WonCount, summary.LostCount)
	}
	if summary.WinRate != 25 || summary.LossRate != 25 {
		t.Fatalf("unexpected rates %v/%v", summary.WinRate, summary.LossRate)
	}
	if got := summary.Stages[domain.StageNewLead]; got.Count != 1 || got.Deals[0] != 4 {
		t.Fatalf("expected practice 4 defaulted to new_lead, got %+v", got)
	}
}

func TestGetStalledDealsThresholdAndOrdering(t *testing.T) {
	svc := newTestService()
	entered := func(daysAgo int) string {
		return domain.FormatTime(testNow.AddDate(0, 0, -daysAgo))
	}
	practices := []*domain.Practice{
		{ID: 1, Pipeline: &domain.PipelineState{CurrentStage: domain.StageContacted, StageEnteredAt: entered(10)}},
		{ID: 2, Pipeline: &domain.PipelineState{CurrentStage: domain.StageInterested, StageEnteredAt: entered(30)}},
		{ID: 3, Pipeline: &domain.PipelineState{CurrentStage: domain.StageContacted, StageEnteredAt: entered(7)}},
		{ID: 4, Pipeline: &domain.PipelineState{CurrentStage: domain.StageWon, StageEnteredAt: entered(60)}},
		{ID: 5, Pipeline: &domain.PipelineState{CurrentStage: domain.StageContacted, StageEnteredAt: "garbage"}},
		{ID: 6, Pipeline: &domain.PipelineState{CurrentStage: domain.StageContacted}},
	}

	stalled := svc.GetStalledDeals(practices, 7)

	if len(stalled) != 2 {
		t.Fatalf("expected 2 stalled deals, got %d", len(stalled))
	}
	if stalled[0].Practice.ID != 2 || stalled[0].DaysInStage != 30 {
		t.Fatalf("expected most-stalled first, got %+v", stalled[0])
	}
	if stalled[1].Practice.ID != 1 || stalled[1].DaysInStage != 10 {
		t.Fatalf("unexpected second entry %+v", stalled[1])
	}
}

func TestForecastRevenueExcludesTerminalStages(t *testing.T) {
	svc := newTestService()
	practices := []*domain.Practice{
		{ID: 1, Pipeline: &domain.PipelineState{CurrentStage: domain.StageNegotiation, DealValue: 1000, Probability: 85}},
		{ID: 2, Pipeline: &domain.PipelineState{CurrentStage: domain.StageMeetingScheduled, DealValue: 400, Probability: 50}},
		{ID: 3, Pipeline: &domain.PipelineState{CurrentStage: domain.StageWon, DealValue: 9999, Probability: 100}},
		{ID: 4, Pipeline: &domain.PipelineState{CurrentStage: domain.StageLost, DealValue: 5000}},
	}

	forecast := svc.ForecastRevenue(practices)

	if forecast.TotalPipelineValue != 1400 {
		t.Fatalf("expected open pipeline value 1400, got %v", forecast.TotalPipelineValue)
	}
	if forecast.WeightedValue != 1050 {
		t.Fatalf("expected weighted value 850+200=1050, got %v", forecast.WeightedValue)
	}
	if _, ok := forecast.ByStage[domain.StageWon]; ok {
		t.Fatal("expected won stage excluded from forecast")
	}
	if entry := forecast.ByStage[domain.StageNegotiation]; entry.DealCount != 1 || entry.WeightedValue != 850 {
		t.Fatalf("unexpected negotiation entry %+v", entry)
	}
}

func TestStageTableProbabilities(t *testing.T) {
	expected := map[string]int{
		domain.StageNewLead:          5,
		domain.StageContacted:        10,
		domain.StageInterested:       25,
		domain.StageMeetingScheduled: 50,
		domain.StageProposalSent:     70,
		domain.StageNegotiation:      85,
		domain.StageWon:              100,
		domain.StageLost:             0,
	}

	for id, probability := range expected {
		stage, ok := domain.StageByID(id)
		if !ok {
			t.Fatalf("missing stage %s", id)
		}
		if stage.Probability != probability {
			t.Fatalf("stage %s: expected probability %d, got %d", id, probability, stage.Probability)
		}
	}
}
