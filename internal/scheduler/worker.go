package scheduler

import (
	"context"
	"fmt"
	"strings"

	"github.com/hibiken/asynq"

	"practice_crm_backend/internal/notification"
	"practice_crm_backend/internal/practices/service"
	"practice_crm_backend/platform/config"
	"practice_crm_backend/platform/logger"
)

// Worker consumes the background task queue: automation sweeps, stalled-deal
// digests and periodic rescoring. It shares the practices service with the
// API process; only the entry point differs.
type Worker struct {
	server   *asynq.Server
	mux      *asynq.ServeMux
	svc      *service.Service
	notifier notification.Notifier
	log      *logger.Logger
}

func NewWorker(cfg config.SchedulerConfig, svc *service.Service, notifier notification.Notifier, log *logger.Logger) (*Worker, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	queue := cfg.GetAsynqQueueName()
	if queue == "" {
		queue = "default"
	}

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queue: 1,
		},
	})

	mux := asynq.NewServeMux()
	w := &Worker{
		server:   server,
		mux:      mux,
		svc:      svc,
		notifier: notifier,
		log:      log,
	}

	mux.HandleFunc(TaskAutomationSweep, w.handleAutomationSweep)
	mux.HandleFunc(TaskStalledDigest, w.handleStalledDigest)
	mux.HandleFunc(TaskRecalculateScores, w.handleRecalculateScores)

	return w, nil
}

func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("scheduler worker stopped", "error", err)
	}
}

func (w *Worker) handleAutomationSweep(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseAutomationSweepPayload(task)
	if err != nil {
		return err
	}

	result, err := w.svc.RunAutomationSweep(ctx)
	if err != nil {
		return err
	}

	w.log.Info("automation sweep finished",
		"requested_by", payload.RequestedBy,
		"practices_scanned", result.PracticesScanned,
		"actions_due", result.ActionsDue,
		"executed", len(result.Executed),
	)
	return nil
}

func (w *Worker) handleStalledDigest(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseStalledDigestPayload(task)
	if err != nil {
		return err
	}

	days := payload.ThresholdDays
	if days < 1 {
		days = 14
	}

	stalled, err := w.svc.StalledDeals(ctx, days)
	if err != nil {
		return err
	}
	if len(stalled) == 0 {
		w.log.Info("stalled digest: no stalled deals", "threshold_days", days)
		return nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, ":hourglass: *%d deal(s) stalled for more than %d days:*\n", len(stalled), days)
	for _, deal := range stalled {
		fmt.Fprintf(&b, "- %s (%s, %d days in stage)\n",
			deal.Practice.Name, deal.Practice.CurrentStage(), deal.DaysInStage)
	}

	if err := w.notifier.Notify(ctx, b.String()); err != nil {
		w.log.Error("failed to send stalled digest", "error", err)
		return err
	}

	w.log.Info("stalled digest sent", "threshold_days", days, "count", len(stalled))
	return nil
}

func (w *Worker) handleRecalculateScores(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseRecalculateScoresPayload(task)
	if err != nil {
		return err
	}

	scored, err := w.svc.RecalculateScores(ctx)
	if err != nil {
		return err
	}

	w.log.Info("score recalculation finished",
		"requested_by", payload.RequestedBy,
		"practices_scored", len(scored),
	)
	return nil
}
