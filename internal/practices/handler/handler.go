package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"practice_crm_backend/internal/practices/service"
	"practice_crm_backend/internal/practices/transport"
	"practice_crm_backend/platform/httpkit"
	"practice_crm_backend/platform/validator"
)

// TaskQueue enqueues background work instead of running it in-request.
// Implemented by the asynq scheduler client; nil means no queue is
// configured and the work runs inline.
type TaskQueue interface {
	EnqueueAutomationSweep(ctx context.Context, requestedBy string) error
}

// Handler handles HTTP requests for the practices module.
type Handler struct {
	svc   *service.Service
	val   *validator.Validator
	queue TaskQueue
}

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
	msgInvalidID        = "invalid practice id"

	defaultHotLeadLimit = 10
	defaultStalledDays  = 14
)

// New creates a new practices handler.
func New(svc *service.Service, val *validator.Validator, queue TaskQueue) *Handler {
	return &Handler{svc: svc, val: val, queue: queue}
}

func practiceID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidID, nil)
		return 0, false
	}
	return id, true
}

// ListPractices returns all practices.
// GET /api/v1/practices
func (h *Handler) ListPractices(c *gin.Context) {
	items, err := h.svc.ListPractices(c.Request.Context())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, gin.H{"practices": items, "total": len(items)})
}

// GetPractice returns one practice by id.
// GET /api/v1/practices/:id
func (h *Handler) GetPractice(c *gin.Context) {
	id, ok := practiceID(c)
	if !ok {
		return
	}
	p, err := h.svc.GetPractice(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, p)
}

// SavePractice creates or updates a practice.
// POST /api/v1/practices
func (h *Handler) SavePractice(c *gin.Context) {
	var req transport.SavePracticeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	p, err := h.svc.SavePractice(c.Request.Context(), req.ToDomain())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, p)
}

// ImportPractices bulk-imports practices.
// POST /api/v1/practices/import
func (h *Handler) ImportPractices(c *gin.Context) {
	var req transport.ImportPracticesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	items := req.ToDomainBatch()
	n, err := h.svc.ImportPractices(c.Request.Context(), items)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ImportPracticesResponse{Imported: n})
}

// DeletePractice removes a practice.
// DELETE /api/v1/practices/:id
func (h *Handler) DeletePractice(c *gin.Context) {
	id, ok := practiceID(c)
	if !ok {
		return
	}
	if httpkit.HandleError(c, h.svc.DeletePractice(c.Request.Context(), id)) {
		return
	}
	httpkit.OK(c, gin.H{"deleted": id})
}

// RecordEngagement applies an engagement activity to a practice.
// POST /api/v1/practices/:id/events
func (h *Handler) RecordEngagement(c *gin.Context) {
	id, ok := practiceID(c)
	if !ok {
		return
	}
	var req transport.EngagementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	result, err := h.svc.RecordEngagement(c.Request.Context(), id, req.Activity)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// =============================================================================
// Scoring
// =============================================================================

// RecalculateScores rescores every practice.
// POST /api/v1/scores/recalculate
func (h *Handler) RecalculateScores(c *gin.Context) {
	scored, err := h.svc.RecalculateScores(c.Request.Context())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, gin.H{"scored": len(scored), "practices": scored})
}

// ScorePractice rescores a single practice.
// POST /api/v1/practices/:id/score
func (h *Handler) ScorePractice(c *gin.Context) {
	id, ok := practiceID(c)
	if !ok {
		return
	}
	p, err := h.svc.ScorePractice(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, p)
}

// HotLeads returns the top hot-category practices.
// GET /api/v1/scores/hot
func (h *Handler) HotLeads(c *gin.Context) {
	var q transport.HotLeadsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(q); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}
	if q.Limit == 0 {
		q.Limit = defaultHotLeadLimit
	}

	leads, err := h.svc.HotLeads(c.Request.Context(), q.Limit)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, gin.H{"hot_leads": leads, "total": len(leads)})
}

// NeedsAttention lists practices with stale or unanswered engagement.
// GET /api/v1/scores/attention
func (h *Handler) NeedsAttention(c *gin.Context) {
	items, err := h.svc.NeedsAttention(c.Request.Context())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, gin.H{"items": items, "total": len(items)})
}

// =============================================================================
// Pipeline
// =============================================================================

// MoveDeal transitions a practice to a new stage.
// POST /api/v1/practices/:id/stage
func (h *Handler) MoveDeal(c *gin.Context) {
	id, ok := practiceID(c)
	if !ok {
		return
	}
	var req transport.MoveDealRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	p, err := h.svc.MoveDeal(c.Request.Context(), id, req.Stage, req.Reason)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, p)
}

// SetDealValue updates the expected deal value for a practice.
// PUT /api/v1/practices/:id/deal-value
func (h *Handler) SetDealValue(c *gin.Context) {
	id, ok := practiceID(c)
	if !ok {
		return
	}
	var req transport.SetDealValueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	p, err := h.svc.SetDealValue(c.Request.Context(), id, *req.Value)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, p)
}

// PipelineSummary aggregates counts and values per stage.
// GET /api/v1/pipeline/summary
func (h *Handler) PipelineSummary(c *gin.Context) {
	summary, err := h.svc.PipelineSummary(c.Request.Context())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, summary)
}

// StalledDeals lists deals stuck in a stage past the threshold.
// GET /api/v1/pipeline/stalled
func (h *Handler) StalledDeals(c *gin.Context) {
	var q transport.StalledQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(q); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}
	if q.Days == 0 {
		q.Days = defaultStalledDays
	}

	deals, err := h.svc.StalledDeals(c.Request.Context(), q.Days)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, gin.H{"stalled": deals, "threshold_days": q.Days, "total": len(deals)})
}

// ForecastRevenue returns the probability-weighted pipeline forecast.
// GET /api/v1/pipeline/forecast
func (h *Handler) ForecastRevenue(c *gin.Context) {
	forecast, err := h.svc.ForecastRevenue(c.Request.Context())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, forecast)
}

// ListStages returns the ordered stage definitions.
// GET /api/v1/pipeline/stages
func (h *Handler) ListStages(c *gin.Context) {
	httpkit.OK(c, gin.H{"stages": h.svc.Stages()})
}

// =============================================================================
// Automation
// =============================================================================

// PendingActions lists due automation actions without executing them.
// GET /api/v1/automation/pending
func (h *Handler) PendingActions(c *gin.Context) {
	actions, err := h.svc.PendingActions(c.Request.Context())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, gin.H{"actions": actions, "total": len(actions)})
}

// RunSweep evaluates and executes all due automation actions. With a task
// queue configured the sweep is handed to the background worker; without
// one it runs inline and returns the full result.
// POST /api/v1/automation/run
func (h *Handler) RunSweep(c *gin.Context) {
	if h.queue != nil {
		if err := h.queue.EnqueueAutomationSweep(c.Request.Context(), "api"); err != nil {
			httpkit.Error(c, http.StatusInternalServerError, "failed to queue automation sweep", nil)
			return
		}
		httpkit.JSON(c, http.StatusAccepted, gin.H{"queued": true})
		return
	}

	result, err := h.svc.RunAutomationSweep(c.Request.Context())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// ListRules returns the automation rule table.
// GET /api/v1/automation/rules
func (h *Handler) ListRules(c *gin.Context) {
	httpkit.OK(c, gin.H{"rules": h.svc.Rules()})
}
