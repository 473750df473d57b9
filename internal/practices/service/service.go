// Package service orchestrates the practice CRM core: persistence, lead
// scoring, pipeline movement and the automation engine. Handlers and the
// background worker both go through this layer.
package service

import (
	"context"
	"errors"
	"fmt"
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

// Repository is the persistence surface the service needs. Implemented by
// the pgx-backed repository; tests substitute an in-memory fake.
type Repository interface {
	Get(ctx context.Context, id int64) (*domain.Practice, error)
	GetAll(ctx context.Context) ([]*domain.Practice, error)
	Upsert(ctx context.Context, p *domain.Practice) error
	BulkUpsert(ctx context.Context, practices []*domain.Practice) error
	Delete(ctx context.Context, id int64) error
}

type Service struct {
	repo   Repository
	scorer *scoring.Service
	pipe   *pipeline.Service
	engine *automation.Engine
	bus    events.Bus
	log    *logger.Logger
	now    func() time.Time
}

func New(repo Repository, scorer *scoring.Service, pipe *pipeline.Service, engine *automation.Engine, bus events.Bus, log *logger.Logger) *Service {
	return &Service{
		repo:   repo,
		scorer: scorer,
		pipe:   pipe,
		engine: engine,
		bus:    bus,
		log:    log,
		now:    time.Now,
	}
}

// WithClock overrides the time source, for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// =============================================================================
// Practice CRUD
// =============================================================================

// GetPractice returns a practice by id.
func (s *Service) GetPractice(ctx context.Context, id int64) (*domain.Practice, error) {
	p, err := s.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.NotFound(fmt.Sprintf("practice %d not found", id)).WithOp("practices.get")
		}
		s.log.DatabaseError("practices.get", err)
		return nil, apperr.Internal("failed to load practice", err).WithOp("practices.get")
	}
	return p, nil
}

// ListPractices returns all practices.
func (s *Service) ListPractices(ctx context.Context) ([]*domain.Practice, error) {
	items, err := s.repo.GetAll(ctx)
	if err != nil {
		s.log.DatabaseError("practices.list", err)
		return nil, apperr.Internal("failed to list practices", err).WithOp("practices.list")
	}
	return items, nil
}

// SavePractice inserts or updates a practice record. When the id already
// exists and the incoming record carries no workflow, pipeline or score,
// the stored sub-records are preserved.
func (s *Service) SavePractice(ctx context.Context, p *domain.Practice) (*domain.Practice, error) {
	existing, err := s.repo.Get(ctx, p.ID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		s.log.DatabaseError("practices.save", err)
		return nil, apperr.Internal("failed to load practice", err).WithOp("practices.save")
	}
	if existing != nil {
		if p.Workflow == nil {
			p.Workflow = existing.Workflow
		}
		if p.Pipeline == nil {
			p.Pipeline = existing.Pipeline
		}
		if p.Score == nil {
			p.Score = existing.Score
		}
	}

	p.EnsureWorkflow()
	if err := s.repo.Upsert(ctx, p); err != nil {
		s.log.DatabaseError("practices.save", err)
		return nil, apperr.Internal("failed to save practice", err).WithOp("practices.save")
	}
	return p, nil
}

// ImportPractices bulk-inserts a batch of practices, typically from a CRM
// export. Existing records with the same id are replaced.
func (s *Service) ImportPractices(ctx context.Context, practices []*domain.Practice) (int, error) {
	for _, p := range practices {
		p.EnsureWorkflow()
	}
	if err := s.repo.BulkUpsert(ctx, practices); err != nil {
		s.log.DatabaseError("practices.import", err)
		return 0, apperr.Internal("failed to import practices", err).WithOp("practices.import")
	}
	return len(practices), nil
}

// DeletePractice removes a practice record.
func (s *Service) DeletePractice(ctx context.Context, id int64) error {
	err := s.repo.Delete(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.NotFound(fmt.Sprintf("practice %d not found", id)).WithOp("practices.delete")
		}
		s.log.DatabaseError("practices.delete", err)
		return apperr.Internal("failed to delete practice", err).WithOp("practices.delete")
	}
	return nil
}

// =============================================================================
// Scoring
// =============================================================================

// RecalculateScores rescores every practice and persists the results.
// Practices that newly cross into the hot category are announced on the bus.
func (s *Service) RecalculateScores(ctx context.Context) ([]*domain.Practice, error) {
	practices, err := s.repo.GetAll(ctx)
	if err != nil {
		s.log.DatabaseError("scores.recalculate", err)
		return nil, apperr.Internal("failed to load practices", err).WithOp("scores.recalculate")
	}

	wasHot := make(map[int64]bool, len(practices))
	for _, p := range practices {
		wasHot[p.ID] = p.Score != nil && p.Score.Category == scoring.CategoryHot
	}

	scored := s.scorer.BulkScore(practices)

	if err := s.repo.BulkUpsert(ctx, scored); err != nil {
		s.log.DatabaseError("scores.recalculate", err)
		return nil, apperr.Internal("failed to persist scores", err).WithOp("scores.recalculate")
	}

	for _, p := range scored {
		if p.Score != nil && p.Score.Category == scoring.CategoryHot && !wasHot[p.ID] {
			s.bus.Publish(ctx, events.HotLeadDetected{
				BaseEvent:    events.NewBaseEvent(),
				PracticeID:   p.ID,
				PracticeName: p.Name,
				Score:        p.Score.TotalScore,
				NextAction:   p.Score.NextAction,
			})
		}
	}

	return scored, nil
}

// ScorePractice recomputes and persists the score for one practice.
func (s *Service) ScorePractice(ctx context.Context, id int64) (*domain.Practice, error) {
	p, err := s.GetPractice(ctx, id)
	if err != nil {
		return nil, err
	}

	result := s.scorer.CalculateScore(p)
	p.Score = &result

	if err := s.repo.Upsert(ctx, p); err != nil {
		s.log.DatabaseError("scores.practice", err)
		return nil, apperr.Internal("failed to persist score", err).WithOp("scores.practice")
	}
	return p, nil
}

// HotLeads returns the top scored practices in the hot category.
func (s *Service) HotLeads(ctx context.Context, limit int) ([]*domain.Practice, error) {
	practices, err := s.repo.GetAll(ctx)
	if err != nil {
		s.log.DatabaseError("scores.hot", err)
		return nil, apperr.Internal("failed to load practices", err).WithOp("scores.hot")
	}
	s.scorer.BulkScore(practices)
	return s.scorer.HotLeads(practices, limit), nil
}

// NeedsAttention flags practices with stale follow-ups or unanswered interest.
func (s *Service) NeedsAttention(ctx context.Context) ([]scoring.AttentionItem, error) {
	practices, err := s.repo.GetAll(ctx)
	if err != nil {
		s.log.DatabaseError("scores.attention", err)
		return nil, apperr.Internal("failed to load practices", err).WithOp("scores.attention")
	}
	s.scorer.BulkScore(practices)
	return s.scorer.NeedsAttention(practices), nil
}

// =============================================================================
// Pipeline
// =============================================================================

// MoveDeal transitions a practice to the given stage and records the move.
func (s *Service) MoveDeal(ctx context.Context, id int64, toStage, reason string) (*domain.Practice, error) {
	p, err := s.GetPractice(ctx, id)
	if err != nil {
		return nil, err
	}

	fromStage := p.CurrentStage()
	if err := s.pipe.MoveDeal(p, toStage, reason); err != nil {
		return nil, err
	}

	if err := s.repo.Upsert(ctx, p); err != nil {
		s.log.DatabaseError("pipeline.move", err)
		return nil, apperr.Internal("failed to persist stage move", err).WithOp("pipeline.move")
	}

	s.bus.Publish(ctx, events.DealMoved{
		BaseEvent:    events.NewBaseEvent(),
		PracticeID:   p.ID,
		PracticeName: p.Name,
		FromStage:    fromStage,
		ToStage:      toStage,
		Reason:       reason,
		DealValue:    p.Pipeline.DealValue,
	})

	return p, nil
}

// SetDealValue updates the expected deal value for a practice.
func (s *Service) SetDealValue(ctx context.Context, id int64, value float64) (*domain.Practice, error) {
	p, err := s.GetPractice(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.Pipeline == nil {
		p.Pipeline = &domain.PipelineState{CurrentStage: domain.StageNewLead}
	}
	p.Pipeline.DealValue = value

	if err := s.repo.Upsert(ctx, p); err != nil {
		s.log.DatabaseError("pipeline.value", err)
		return nil, apperr.Internal("failed to persist deal value", err).WithOp("pipeline.value")
	}
	return p, nil
}

// PipelineSummary aggregates all practices per stage.
func (s *Service) PipelineSummary(ctx context.Context) (pipeline.Summary, error) {
	practices, err := s.repo.GetAll(ctx)
	if err != nil {
		s.log.DatabaseError("pipeline.summary", err)
		return pipeline.Summary{}, apperr.Internal("failed to load practices", err).WithOp("pipeline.summary")
	}
	return s.pipe.GetSummary(practices), nil
}

// StalledDeals returns non-terminal deals that have sat in their stage
// longer than the given number of days.
func (s *Service) StalledDeals(ctx context.Context, days int) ([]pipeline.StalledDeal, error) {
	practices, err := s.repo.GetAll(ctx)
	if err != nil {
		s.log.DatabaseError("pipeline.stalled", err)
		return nil, apperr.Internal("failed to load practices", err).WithOp("pipeline.stalled")
	}
	return s.pipe.GetStalledDeals(practices, days), nil
}

// ForecastRevenue computes the probability-weighted pipeline value.
func (s *Service) ForecastRevenue(ctx context.Context) (pipeline.Forecast, error) {
	practices, err := s.repo.GetAll(ctx)
	if err != nil {
		s.log.DatabaseError("pipeline.forecast", err)
		return pipeline.Forecast{}, apperr.Internal("failed to load practices", err).WithOp("pipeline.forecast")
	}
	return s.pipe.ForecastRevenue(practices), nil
}

// Stages returns the ordered pipeline stage definitions.
func (s *Service) Stages() []domain.Stage {
	return domain.Stages
}
