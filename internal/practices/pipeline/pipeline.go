// Package pipeline manages the sales pipeline state machine: stage moves,
// activity-driven auto-staging, stall detection and revenue forecasting.
package pipeline

import (
	"fmt"
	"sort"
	"time"

	"practice_crm_backend/internal/practices/domain"
	"practice_crm_backend/platform/apperr"
	"practice_crm_backend/platform/logger"
)

// activityStages maps the fixed activity vocabulary to target stages.
// Unknown activities are no-ops.
var activityStages = map[string]string{
	"email_sent":     domain.StageContacted,
	"email_opened":   domain.StageInterested,
	"email_clicked":  domain.StageInterested,
	"email_replied":  domain.StageMeetingScheduled,
	"meeting_booked": domain.StageMeetingScheduled,
	"proposal_sent":  domain.StageProposalSent,
	"deal_won":       domain.StageWon,
	"deal_lost":      domain.StageLost,
}

// Service manages deal stages for practices.
type Service struct {
	log *logger.Logger
	now func() time.Time
}

// New creates a new pipeline service.
func New(log *logger.Logger) *Service {
	return &Service{log: log, now: time.Now}
}

// WithClock overrides the time source.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// MoveDeal moves a practice to a new pipeline stage. The pipeline
// sub-record is lazily initialized on first move. Re-affirming the current
// stage refreshes the stall clock without creating a spurious history
// entry. Returns an invalid-stage error for unknown stage ids, leaving the
// record untouched.
func (s *Service) MoveDeal(p *domain.Practice, toStage, reason string) error {
	stage, ok := domain.StageByID(toStage)
	if !ok {
		return apperr.Validation(fmt.Sprintf("invalid stage: %s", toStage)).WithOp("pipeline.MoveDeal")
	}

	now := s.now()

	if p.Pipeline == nil {
		p.Pipeline = &domain.PipelineState{
			CurrentStage: domain.StageNewLead,
			History:      []domain.StageTransition{},
		}
	}

	oldStage := p.Pipeline.CurrentStage
	if oldStage == "" {
		oldStage = domain.StageNewLead
	}

	if oldStage != toStage {
		p.Pipeline.History = append(p.Pipeline.History, domain.StageTransition{
			FromStage: oldStage,
			ToStage:   toStage,
			MovedAt:   domain.FormatTime(now),
			Reason:    reason,
		})
	}

	p.Pipeline.CurrentStage = toStage
	p.Pipeline.StageEnteredAt = domain.FormatTime(now)
	p.Pipeline.Probability = stage.Probability
	p.EnsureWorkflow().Status = stage.Name

	if s.log != nil {
		s.log.StageMoved(p.ID, oldStage, toStage)
	}

	return nil
}

// AutoStageFromActivity moves a deal based on an observed activity.
// Moves are monotonic forward: a target stage behind the current one is
// ignored so activity noise never regresses an advanced deal, except that
// won and lost always apply.
func (s *Service) AutoStageFromActivity(p *domain.Practice, activity string) error {
	target, ok := activityStages[activity]
	if !ok {
		return nil
	}

	current := p.CurrentStage()
	if !domain.IsTerminalStage(target) && domain.StageOrder(target) <= domain.StageOrder(current) {
		return nil
	}

	return s.MoveDeal(p, target, "Auto-moved based on activity: "+activity)
}

// StageSummary aggregates deals within one stage.
type StageSummary struct {
	Count int     `json:"count"`
	Value float64 `json:"value"`
	Deals []int64 `json:"deals"`
}

// Summary aggregates the whole pipeline.
type Summary struct {
	TotalDeals int                     `json:"total_deals"`
	TotalValue float64                 `json:"total_value"`
	Stages     map[string]StageSummary `json:"stages"`
	WonCount   int                     `json:"won_count"`
	LostCount  int                     `json:"lost_count"`
	WinRate    float64                 `json:"win_rate"`
	LossRate   float64                 `json:"loss_rate"`
}

// GetSummary groups practices by stage with per-stage and global totals.
// An empty input yields zero counts without division faults.
func (s *Service) GetSummary(practices []*domain.Practice) Summary {
	summary := Summary{
		TotalDeals: len(practices),
		Stages:     make(map[string]StageSummary, len(domain.Stages)),
	}
	for _, stage := range domain.Stages {
		summary.Stages[stage.ID] = StageSummary{Deals: []int64{}}
	}

	for _, p := range practices {
		stage := p.CurrentStage()
		var value float64
		if p.Pipeline != nil {
			value = p.Pipeline.DealValue
		}

		entry := summary.Stages[stage]
		entry.Count++
		entry.Value += value
		entry.Deals = append(entry.Deals, p.ID)
		summary.Stages[stage] = entry
		summary.TotalValue += value

		switch stage {
		case domain.StageWon:
			summary.WonCount++
		case domain.StageLost:
			summary.LostCount++
		}
	}

	if summary.TotalDeals > 0 {
		summary.WinRate = float64(summary.WonCount) / float64(summary.TotalDeals) * 100
		summary.LossRate = float64(summary.LostCount) / float64(summary.TotalDeals) * 100
	}

	return summary
}

// StalledDeal annotates a practice that has sat in one stage too long.
type StalledDeal struct {
	Practice    *domain.Practice `json:"practice"`
	DaysInStage int              `json:"days_in_stage"`
}

// GetStalledDeals finds non-terminal deals whose stage entry is older than
// the given number of days, most-stalled first. Records with a missing or
// unparseable stage_entered_at are silently excluded.
func (s *Service) GetStalledDeals(practices []*domain.Practice, days int) []StalledDeal {
	now := s.now()
	cutoff := now.AddDate(0, 0, -days)
	var stalled []StalledDeal

	for _, p := range practices {
		if domain.IsTerminalStage(p.CurrentStage()) {
			continue
		}
		if p.Pipeline == nil || p.Pipeline.StageEnteredAt == "" {
			continue
		}
		entered, ok := domain.ParseTime(p.Pipeline.StageEnteredAt)
		if !ok {
			if s.log != nil {
				s.log.Warn("unparseable stage_entered_at", "practice_id", p.ID, "value", p.Pipeline.StageEnteredAt)
			}
			continue
		}
		if entered.Before(cutoff) {
			stalled = append(stalled, StalledDeal{Practice: p, DaysInStage: domain.DaysSince(now, entered)})
		}
	}

	sort.SliceStable(stalled, func(i, j int) bool {
		return stalled[i].DaysInStage > stalled[j].DaysInStage
	})
	return stalled
}

// StageForecast accumulates forecast numbers for one stage.
type StageForecast struct {
	TotalValue    float64 `json:"total_value"`
	WeightedValue float64 `json:"weighted_value"`
	DealCount     int     `json:"deal_count"`
}

// Forecast is the expected-revenue projection over open deals.
type Forecast struct {
	TotalPipelineValue float64                  `json:"total_pipeline_value"`
	WeightedValue      float64                  `json:"weighted_value"`
	ByStage            map[string]StageForecast `json:"by_stage"`
}

// ForecastRevenue projects revenue from deal values and stage
// probabilities over non-terminal deals only.
func (s *Service) ForecastRevenue(practices []*domain.Practice) Forecast {
	forecast := Forecast{ByStage: make(map[string]StageForecast)}

	for _, p := range practices {
		stage := p.CurrentStage()
		if domain.IsTerminalStage(stage) {
			continue
		}

		var value float64
		var probability float64
		if p.Pipeline != nil {
			value = p.Pipeline.DealValue
			probability = float64(p.Pipeline.Probability) / 100
		}
		weighted := value * probability

		forecast.TotalPipelineValue += value
		forecast.WeightedValue += weighted

		entry := forecast.ByStage[stage]
		entry.TotalValue += value
		entry.WeightedValue += weighted
		entry.DealCount++
		forecast.ByStage[stage] = entry
	}

	return forecast
}
