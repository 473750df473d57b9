package scheduler

import (
	"fmt"

	"github.com/hibiken/asynq"

	"practice_crm_backend/platform/config"
	"practice_crm_backend/platform/logger"
)

// Periodic registers the recurring background tasks with asynq's scheduler:
// the automation sweep at the configured interval, daily rescoring and a
// daily stalled-deal digest.
type Periodic struct {
	scheduler *asynq.Scheduler
	log       *logger.Logger
}

func NewPeriodic(cfg config.SchedulerConfig, log *logger.Logger) (*Periodic, error) {
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

	sched := asynq.NewScheduler(opt, nil)
	p := &Periodic{scheduler: sched, log: log}

	sweepTask, err := NewAutomationSweepTask(AutomationSweepPayload{RequestedBy: "scheduler"})
	if err != nil {
		return nil, err
	}
	sweepSpec := fmt.Sprintf("@every %s", cfg.GetSweepInterval())
	if _, err := sched.Register(sweepSpec, sweepTask, asynq.Queue(queue)); err != nil {
		return nil, fmt.Errorf("register automation sweep: %w", err)
	}

	rescoreTask, err := NewRecalculateScoresTask(RecalculateScoresPayload{RequestedBy: "scheduler"})
	if err != nil {
		return nil, err
	}
	if _, err := sched.Register("0 6 * * *", rescoreTask, asynq.Queue(queue)); err != nil {
		return nil, fmt.Errorf("register score recalculation: %w", err)
	}

	digestTask, err := NewStalledDigestTask(StalledDigestPayload{ThresholdDays: cfg.GetStalledDays()})
	if err != nil {
		return nil, err
	}
	if _, err := sched.Register("0 8 * * 1-5", digestTask, asynq.Queue(queue)); err != nil {
		return nil, fmt.Errorf("register stalled digest: %w", err)
	}

	return p, nil
}

// Run blocks until the scheduler stops.
func (p *Periodic) Run() error {
	p.log.Info("periodic scheduler starting")
	return p.scheduler.Run()
}

// Shutdown stops the scheduler.
func (p *Periodic) Shutdown() {
	if p == nil || p.scheduler == nil {
		return
	}
	p.scheduler.Shutdown()
}
