package service

import (
	"context"

	"practice_crm_backend/internal/events"
	"practice_crm_backend/internal/practices/automation"
	"practice_crm_backend/internal/practices/domain"
	"practice_crm_backend/platform/apperr"
)

// Engagement activity names accepted by RecordEngagement. Unknown activities
// are rejected before they reach the pipeline or the rule engine.
var knownActivities = map[string]bool{
	"email_sent":      true,
	"email_opened":    true,
	"email_clicked":   true,
	"email_replied":   true,
	"phone_contacted": true,
	"meeting_booked":  true,
	"proposal_sent":   true,
	"deal_won":        true,
	"deal_lost":       true,
}

// RecordEngagement applies an engagement signal to a practice: updates the
// workflow tracking flags, advances the pipeline stage when the activity
// implies one, runs the automation rules for the event (urgent actions
// execute immediately), and persists the updated record.
func (s *Service) RecordEngagement(ctx context.Context, id int64, activity string) (automation.ProcessResult, error) {
	if !knownActivities[activity] {
		return automation.ProcessResult{}, apperr.Validation("unknown activity: " + activity).WithOp("practices.engagement")
	}

	p, err := s.GetPractice(ctx, id)
	if err != nil {
		return automation.ProcessResult{}, err
	}

	s.applyActivity(p, activity)

	if err := s.pipe.AutoStageFromActivity(p, activity); err != nil {
		return automation.ProcessResult{}, err
	}

	result := s.engine.ProcessEvent(ctx, p, activity)

	score := s.scorer.CalculateScore(p)
	p.Score = &score

	if err := s.repo.Upsert(ctx, p); err != nil {
		s.log.DatabaseError("practices.engagement", err)
		return automation.ProcessResult{}, apperr.Internal("failed to persist engagement", err).WithOp("practices.engagement")
	}

	s.bus.Publish(ctx, events.PracticeEngagement{
		BaseEvent:    events.NewBaseEvent(),
		PracticeID:   p.ID,
		PracticeName: p.Name,
		Activity:     activity,
	})

	return result, nil
}

// applyActivity mutates the workflow tracking flags for one signal.
func (s *Service) applyActivity(p *domain.Practice, activity string) {
	wf := p.EnsureWorkflow()
	switch activity {
	case "email_sent":
		wf.EmailsSent++
		wf.LastEmailDate = domain.FormatTime(s.now())
	case "email_opened":
		wf.EmailOpened = true
		wf.OpenCount++
	case "email_clicked":
		wf.EmailOpened = true
		wf.EmailClicked = true
	case "email_replied":
		wf.Replied = true
	case "phone_contacted":
		wf.PhoneContacted = true
	case "meeting_booked":
		wf.MeetingBooked = true
	}
}

// PendingActions evaluates the time- and score-based rules against every
// practice and returns the due actions ordered by priority. Nothing is
// executed or persisted.
func (s *Service) PendingActions(ctx context.Context) ([]automation.Action, error) {
	practices, err := s.repo.GetAll(ctx)
	if err != nil {
		s.log.DatabaseError("automation.pending", err)
		return nil, apperr.Internal("failed to load practices", err).WithOp("automation.pending")
	}
	s.scorer.BulkScore(practices)
	return s.engine.PendingActions(practices), nil
}

// SweepResult summarizes one automation sweep.
type SweepResult struct {
	PracticesScanned int                 `json:"practices_scanned"`
	ActionsDue       int                 `json:"actions_due"`
	Executed         []automation.Result `json:"executed"`
}

// RunAutomationSweep evaluates and executes every due time- and score-based
// action, persisting each practice after its actions ran. A failed action is
// recorded in the practice's automation history and does not stop the sweep.
func (s *Service) RunAutomationSweep(ctx context.Context) (SweepResult, error) {
	practices, err := s.repo.GetAll(ctx)
	if err != nil {
		s.log.DatabaseError("automation.sweep", err)
		return SweepResult{}, apperr.Internal("failed to load practices", err).WithOp("automation.sweep")
	}
	s.scorer.BulkScore(practices)

	byID := make(map[int64]*domain.Practice, len(practices))
	for _, p := range practices {
		byID[p.ID] = p
	}

	actions := s.engine.PendingActions(practices)
	res := SweepResult{PracticesScanned: len(practices), ActionsDue: len(actions)}

	touched := make(map[int64]bool)
	for _, action := range actions {
		p, ok := byID[action.PracticeID]
		if !ok {
			continue
		}
		res.Executed = append(res.Executed, s.engine.ExecuteAction(ctx, action, p))
		touched[action.PracticeID] = true
	}

	for id := range touched {
		if err := s.repo.Upsert(ctx, byID[id]); err != nil {
			s.log.DatabaseError("automation.sweep", err)
			return res, apperr.Internal("failed to persist automation results", err).WithOp("automation.sweep")
		}
	}

	return res, nil
}

// Rules returns the configured automation rule table for inspection.
func (s *Service) Rules() []automation.RuleInfo {
	return s.engine.RuleTable()
}
