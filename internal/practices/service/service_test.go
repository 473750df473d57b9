package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"practice_crm_backend/internal/events"
	"practice_crm_backend/internal/practices/automation"
	"practice_crm_backend/internal/practices/domain"
	"practice_crm_backend/internal/practices/pipeline"
	"practice_crm_backend/internal/practices/repository"
	"practice_crm_backend/internal/practices/scoring"
	"practice_crm_backend/platform/apperr"
	"practice_crm_backend/platform/logger"
)

var testNow = time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

func daysAgo(days int) string {
	return domain.FormatTime(testNow.AddDate(0, 0, -days))
}

// fakeRepo is an in-memory Repository that preserves insertion order.
type fakeRepo struct {
	items map[int64]*domain.Practice
	order []int64
	saved []int64
	err   error
}

func newFakeRepo(practices ...*domain.Practice) *fakeRepo {
	r := &fakeRepo{items: make(map[int64]*domain.Practice)}
	for _, p := range practices {
		r.items[p.ID] = p
		r.order = append(r.order, p.ID)
	}
	return r
}

func (r *fakeRepo) Get(_ context.Context, id int64) (*domain.Practice, error) {
	if r.err != nil {
		return nil, r.err
	}
	p, ok := r.items[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return p, nil
}

func (r *fakeRepo) GetAll(_ context.Context) ([]*domain.Practice, error) {
	if r.err != nil {
		return nil, r.err
	}
	out := make([]*domain.Practice, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.items[id])
	}
	return out, nil
}

func (r *fakeRepo) Upsert(_ context.Context, p *domain.Practice) error {
	if r.err != nil {
		return r.err
	}
	if _, ok := r.items[p.ID]; !ok {
		r.order = append(r.order, p.ID)
	}
	r.items[p.ID] = p
	r.saved = append(r.saved, p.ID)
	return nil
}

func (r *fakeRepo) BulkUpsert(ctx context.Context, practices []*domain.Practice) error {
	for _, p := range practices {
		if err := r.Upsert(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

func (r *fakeRepo) Delete(_ context.Context, id int64) error {
	if _, ok := r.items[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.items, id)
	return nil
}

// captureBus records published events synchronously.
type captureBus struct {
	published []events.Event
}

func (b *captureBus) Publish(_ context.Context, e events.Event) {
	b.published = append(b.published, e)
}

func (b *captureBus) PublishSync(_ context.Context, e events.Event) error {
	b.published = append(b.published, e)
	return nil
}

func (b *captureBus) Subscribe(string, events.Handler) {}

type fakeEmailer struct {
	sent []string
	err  error
}

func (f *fakeEmailer) SendCampaignEmail(_ context.Context, _ *domain.Practice, templateType string, _ bool) error {
	f.sent = append(f.sent, templateType)
	return f.err
}

type fakeNotifier struct {
	messages []string
}

func (f *fakeNotifier) Notify(_ context.Context, message string) error {
	f.messages = append(f.messages, message)
	return nil
}

type fixture struct {
	svc      *Service
	repo     *fakeRepo
	bus      *captureBus
	emailer  *fakeEmailer
	notifier *fakeNotifier
}

func newFixture(practices ...*domain.Practice) *fixture {
	log := logger.New("test")
	clock := func() time.Time { return testNow }

	repo := newFakeRepo(practices...)
	bus := &captureBus{}
	emailer := &fakeEmailer{}
	notifier := &fakeNotifier{}

	scorer := scoring.New(log).WithClock(clock)
	pipe := pipeline.New(log).WithClock(clock)
	engine := automation.New(emailer, notifier, scorer, log).WithClock(clock)

	svc := New(repo, scorer, pipe, engine, bus, log).WithClock(clock)
	return &fixture{svc: svc, repo: repo, bus: bus, emailer: emailer, notifier: notifier}
}

func TestGetPracticeNotFound(t *testing.T) {
	fx := newFixture()

	_, err := fx.svc.GetPractice(context.Background(), 404)
	if err == nil {
		t.Fatal("expected error for missing practice")
	}
	var appErr *apperr.Error
	if !errors.As(err, &appErr) || appErr.Kind != apperr.KindNotFound {
		t.Fatalf("expected not-found error, got %v", err)
	}
}

func TestSavePracticePreservesSubRecords(t *testing.T) {
	existing := &domain.Practice{
		ID:       1,
		Name:     "Tandartspraktijk Noord",
		Workflow: &domain.Workflow{EmailsSent: 4, EmailOpened: true},
		Pipeline: &domain.PipelineState{CurrentStage: domain.StageInterested, DealValue: 5000},
		Score:    &domain.ScoreResult{TotalScore: 52, Category: "warm"},
	}
	fx := newFixture(existing)

	saved, err := fx.svc.SavePractice(context.Background(), &domain.Practice{
		ID:    1,
		Name:  "Tandartspraktijk Noord B.V.",
		Email: "info@noord.nl",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if saved.Name != "Tandartspraktijk Noord B.V." {
		t.Fatalf("expected updated name, got %s", saved.Name)
	}
	if saved.Workflow == nil || saved.Workflow.EmailsSent != 4 {
		t.Fatalf("expected stored workflow preserved, got %+v", saved.Workflow)
	}
	if saved.Pipeline == nil || saved.Pipeline.DealValue != 5000 {
		t.Fatalf("expected stored pipeline preserved, got %+v", saved.Pipeline)
	}
	if saved.Score == nil || saved.Score.TotalScore != 52 {
		t.Fatalf("expected stored score preserved, got %+v", saved.Score)
	}
}

func TestSavePracticeNewRecordGetsWorkflow(t *testing.T) {
	fx := newFixture()

	saved, err := fx.svc.SavePractice(context.Background(), &domain.Practice{ID: 2, Name: "Praktijk Zuid"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if saved.Workflow == nil || saved.Workflow.Status != "New" {
		t.Fatalf("expected initialized workflow, got %+v", saved.Workflow)
	}
	if len(fx.repo.saved) != 1 {
		t.Fatalf("expected one upsert, got %d", len(fx.repo.saved))
	}
}

func TestImportPracticesEnsuresWorkflow(t *testing.T) {
	fx := newFixture()
	batch := []*domain.Practice{
		{ID: 10, Name: "A"},
		{ID: 11, Name: "B"},
	}

	count, err := fx.svc.ImportPractices(context.Background(), batch)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 imported, got %d", count)
	}
	for _, p := range batch {
		if p.Workflow == nil {
			t.Fatalf("practice %d missing workflow after import", p.ID)
		}
	}
}

func TestDeletePracticeNotFound(t *testing.T) {
	fx := newFixture()

	err := fx.svc.DeletePractice(context.Background(), 99)
	var appErr *apperr.Error
	if !errors.As(err, &appErr) || appErr.Kind != apperr.KindNotFound {
		t.Fatalf("expected not-found error, got %v", err)
	}
}

func TestRecordEngagementUnknownActivity(t *testing.T) {
	fx := newFixture(&domain.Practice{ID: 1})

	_, err := fx.svc.RecordEngagement(context.Background(), 1, "carrier_pigeon")
	var appErr *apperr.Error
	if !errors.As(err, &appErr) || appErr.Kind != apperr.KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
	if len(fx.repo.saved) != 0 {
		t.Fatal("rejected activity must not persist anything")
	}
}

func TestRecordEngagementEmailOpened(t *testing.T) {
	p := &domain.Practice{
		ID:    1,
		Name:  "Praktijk Oost",
		Email: "info@oost.nl",
		Workflow: &domain.Workflow{
			EmailsSent:    1,
			LastEmailDate: daysAgo(3),
		},
	}
	fx := newFixture(p)

	result, err := fx.svc.RecordEngagement(context.Background(), 1, "email_opened")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !p.Workflow.EmailOpened || p.Workflow.OpenCount != 1 {
		t.Fatalf("expected open tracked, got %+v", p.Workflow)
	}
	if p.CurrentStage() != domain.StageInterested {
		t.Fatalf("expected auto-stage to interested, got %s", p.CurrentStage())
	}
	if result.ActionsTriggered != 1 || result.Actions[0].Rule != "email_opened_no_click" {
		t.Fatalf("unexpected automation result %+v", result)
	}
	if len(result.ExecutedActions) != 0 {
		t.Fatalf("medium-priority action must not execute inline, got %+v", result.ExecutedActions)
	}
	if p.Score == nil {
		t.Fatal("expected score recomputed after engagement")
	}
	if len(fx.repo.saved) != 1 {
		t.Fatalf("expected one upsert, got %d", len(fx.repo.saved))
	}

	if len(fx.bus.published) != 1 {
		t.Fatalf("expected one event, got %d", len(fx.bus.published))
	}
	evt, ok := fx.bus.published[0].(events.PracticeEngagement)
	if !ok {
		t.Fatalf("expected PracticeEngagement, got %T", fx.bus.published[0])
	}
	if evt.PracticeID != 1 || evt.Activity != "email_opened" {
		t.Fatalf("unexpected event %+v", evt)
	}
}

func TestRecordEngagementDealWonIsTerminal(t *testing.T) {
	p := &domain.Practice{
		ID:       2,
		Pipeline: &domain.PipelineState{CurrentStage: domain.StageNegotiation},
	}
	fx := newFixture(p)

	if _, err := fx.svc.RecordEngagement(context.Background(), 2, "deal_won"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.CurrentStage() != domain.StageWon {
		t.Fatalf("expected won stage, got %s", p.CurrentStage())
	}
	if p.Pipeline.Probability != 100 {
		t.Fatalf("expected probability 100, got %d", p.Pipeline.Probability)
	}
}

func TestMoveDealPublishesEvent(t *testing.T) {
	p := &domain.Practice{ID: 3, Name: "Praktijk West"}
	fx := newFixture(p)

	moved, err := fx.svc.MoveDeal(context.Background(), 3, domain.StageContacted, "intro call")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if moved.Pipeline.CurrentStage != domain.StageContacted {
		t.Fatalf("expected contacted, got %s", moved.Pipeline.CurrentStage)
	}

	if len(fx.bus.published) != 1 {
		t.Fatalf("expected one event, got %d", len(fx.bus.published))
	}
	evt, ok := fx.bus.published[0].(events.DealMoved)
	if !ok {
		t.Fatalf("expected DealMoved, got %T", fx.bus.published[0])
	}
	if evt.FromStage != domain.StageNewLead || evt.ToStage != domain.StageContacted {
		t.Fatalf("unexpected transition %s -> %s", evt.FromStage, evt.ToStage)
	}
	if evt.Reason != "intro call" {
		t.Fatalf("unexpected reason %q", evt.Reason)
	}
}

func TestMoveDealInvalidStageDoesNotPersist(t *testing.T) {
	fx := newFixture(&domain.Practice{ID: 4})

	_, err := fx.svc.MoveDeal(context.Background(), 4, "limbo", "")
	var appErr *apperr.Error
	if !errors.As(err, &appErr) || appErr.Kind != apperr.KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
	if len(fx.repo.saved) != 0 {
		t.Fatal("invalid move must not persist")
	}
	if len(fx.bus.published) != 0 {
		t.Fatal("invalid move must not publish")
	}
}

func TestSetDealValueInitializesPipeline(t *testing.T) {
	fx := newFixture(&domain.Practice{ID: 5})

	p, err := fx.svc.SetDealValue(context.Background(), 5, 7500)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Pipeline == nil || p.Pipeline.DealValue != 7500 {
		t.Fatalf("expected deal value 7500, got %+v", p.Pipeline)
	}
	if p.Pipeline.CurrentStage != domain.StageNewLead {
		t.Fatalf("expected new_lead default, got %s", p.Pipeline.CurrentStage)
	}
}

func TestRecalculateScoresPublishesNewHotLeads(t *testing.T) {
	hotSignals := &domain.Workflow{
		EmailsSent:    2,
		EmailOpened:   true,
		EmailClicked:  true,
		Replied:       true,
		LastEmailDate: daysAgo(2),
	}
	newlyHot := &domain.Practice{
		ID: 1, Name: "Newly Hot", Email: "a@b.nl", Phone: "0101234567", Website: "https://a.nl",
		Workflow: hotSignals,
	}
	alreadyHot := &domain.Practice{
		ID: 2, Name: "Already Hot", Email: "c@d.nl", Phone: "0107654321", Website: "https://c.nl",
		Workflow: hotSignals,
		Score:    &domain.ScoreResult{TotalScore: 90, Category: scoring.CategoryHot},
	}
	cold := &domain.Practice{ID: 3, Name: "Cold", Email: "e@f.nl"}
	fx := newFixture(newlyHot, alreadyHot, cold)

	scored, err := fx.svc.RecalculateScores(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(scored) != 3 {
		t.Fatalf("expected 3 scored, got %d", len(scored))
	}

	if len(fx.bus.published) != 1 {
		t.Fatalf("expected one hot-lead event, got %d", len(fx.bus.published))
	}
	evt, ok := fx.bus.published[0].(events.HotLeadDetected)
	if !ok {
		t.Fatalf("expected HotLeadDetected, got %T", fx.bus.published[0])
	}
	if evt.PracticeID != 1 {
		t.Fatalf("expected event for practice 1, got %d", evt.PracticeID)
	}
	if evt.NextAction != "Call immediately" {
		t.Fatalf("unexpected next action %q", evt.NextAction)
	}
}

func TestHotLeadsDelegatesToScorer(t *testing.T) {
	hot := &domain.Practice{
		ID: 1, Email: "a@b.nl", Phone: "0101234567", Website: "https://a.nl",
		Workflow: &domain.Workflow{
			EmailsSent: 2, EmailOpened: true, EmailClicked: true, Replied: true,
			LastEmailDate: daysAgo(2),
		},
	}
	cold := &domain.Practice{ID: 2}
	fx := newFixture(cold, hot)

	leads, err := fx.svc.HotLeads(context.Background(), 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(leads) != 1 || leads[0].ID != 1 {
		t.Fatalf("expected only the hot practice, got %+v", leads)
	}
}

func TestRunAutomationSweep(t *testing.T) {
	p := &domain.Practice{
		ID:    1,
		Name:  "Stale Practice",
		Email: "info@stale.nl",
		Workflow: &domain.Workflow{
			LastEmailDate: daysAgo(20),
		},
	}
	fx := newFixture(p)

	res, err := fx.svc.RunAutomationSweep(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if res.PracticesScanned != 1 || res.ActionsDue != 1 {
		t.Fatalf("unexpected sweep result %+v", res)
	}
	if len(res.Executed) != 1 || !res.Executed[0].Success {
		t.Fatalf("expected one successful execution, got %+v", res.Executed)
	}
	if res.Executed[0].Action.Rule != "long_inactive" {
		t.Fatalf("expected long_inactive, got %s", res.Executed[0].Action.Rule)
	}
	if len(fx.emailer.sent) != 1 || fx.emailer.sent[0] != "re_engagement" {
		t.Fatalf("expected re_engagement email, got %+v", fx.emailer.sent)
	}
	if len(p.Workflow.AutomationHistory) != 1 {
		t.Fatalf("expected execution recorded in history, got %d entries", len(p.Workflow.AutomationHistory))
	}
	if len(fx.repo.saved) == 0 {
		t.Fatal("expected touched practice persisted")
	}
}

func TestPendingActionsDoesNotExecute(t *testing.T) {
	p := &domain.Practice{
		ID:       1,
		Email:    "info@quiet.nl",
		Workflow: &domain.Workflow{LastEmailDate: daysAgo(20)},
	}
	fx := newFixture(p)

	actions, err := fx.svc.PendingActions(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(actions) != 1 {
		t.Fatalf("expected one pending action, got %d", len(actions))
	}
	if len(fx.emailer.sent) != 0 {
		t.Fatal("pending listing must not send anything")
	}
	if len(fx.repo.saved) != 0 {
		t.Fatal("pending listing must not persist anything")
	}
}

func TestRulesExposesRuleTable(t *testing.T) {
	fx := newFixture()
	rules := fx.svc.Rules()
	if len(rules) != 6 {
		t.Fatalf("expected 6 rules, got %d", len(rules))
	}
}
