// Package practices provides the practice CRM bounded context module:
// lead scoring, pipeline tracking and follow-up automation.
package practices

import (
	"practice_crm_backend/internal/events"
	apphttp "practice_crm_backend/internal/http"
	"practice_crm_backend/internal/practices/automation"
	"practice_crm_backend/internal/practices/handler"
	"practice_crm_backend/internal/practices/pipeline"
	"practice_crm_backend/internal/practices/repository"
	"practice_crm_backend/internal/practices/scoring"
	"practice_crm_backend/internal/practices/service"
	"practice_crm_backend/platform/logger"
	"practice_crm_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the practices bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
	service *service.Service
	repo    *repository.Repository
}

// NewModule creates and initializes the practices module. The email sender
// and sales notifier are injected so the automation engine stays free of
// transport concerns. A nil queue means manual sweeps run inline.
func NewModule(pool *pgxpool.Pool, emailer automation.EmailSender, notifier automation.SalesNotifier, bus events.Bus, queue handler.TaskQueue, val *validator.Validator, log *logger.Logger) *Module {
	repo := repository.New(pool)

	scorer := scoring.New(log)
	pipe := pipeline.New(log)
	engine := automation.New(emailer, notifier, scorer, log)

	svc := service.New(repo, scorer, pipe, engine, bus, log)
	h := handler.New(svc, val, queue)

	return &Module{
		handler: h,
		service: svc,
		repo:    repo,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "practices"
}

// Service returns the service layer for the scheduler worker.
func (m *Module) Service() *service.Service {
	return m.service
}

// RegisterRoutes mounts practice routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	g := ctx.Protected

	g.GET("/practices", m.handler.ListPractices)
	g.POST("/practices", m.handler.SavePractice)
	g.POST("/practices/import", m.handler.ImportPractices)
	g.GET("/practices/:id", m.handler.GetPractice)
	g.DELETE("/practices/:id", m.handler.DeletePractice)
	g.POST("/practices/:id/events", m.handler.RecordEngagement)
	g.POST("/practices/:id/score", m.handler.ScorePractice)
	g.POST("/practices/:id/stage", m.handler.MoveDeal)
	g.PUT("/practices/:id/deal-value", m.handler.SetDealValue)

	g.POST("/scores/recalculate", m.handler.RecalculateScores)
	g.GET("/scores/hot", m.handler.HotLeads)
	g.GET("/scores/attention", m.handler.NeedsAttention)

	g.GET("/pipeline/summary", m.handler.PipelineSummary)
	g.GET("/pipeline/stalled", m.handler.StalledDeals)
	g.GET("/pipeline/forecast", m.handler.ForecastRevenue)
	g.GET("/pipeline/stages", m.handler.ListStages)

	g.GET("/automation/pending", m.handler.PendingActions)
	g.POST("/automation/run", m.handler.RunSweep)
	g.GET("/automation/rules", m.handler.ListRules)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
