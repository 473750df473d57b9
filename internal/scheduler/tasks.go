package scheduler

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const TaskAutomationSweep = "automation.sweep"

const TaskStalledDigest = "pipeline.stalled.digest"

const TaskRecalculateScores = "scores.recalculate"

type AutomationSweepPayload struct {
	// RequestedBy records what enqueued the sweep, for log correlation.
	RequestedBy string `json:"requestedBy,omitempty"`
}

type StalledDigestPayload struct {
	ThresholdDays int `json:"thresholdDays"`
}

type RecalculateScoresPayload struct {
	RequestedBy string `json:"requestedBy,omitempty"`
}

func NewAutomationSweepTask(payload AutomationSweepPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskAutomationSweep, data), nil
}

func ParseAutomationSweepPayload(task *asynq.Task) (AutomationSweepPayload, error) {
	var payload AutomationSweepPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return AutomationSweepPayload{}, err
	}
	return payload, nil
}

func NewStalledDigestTask(payload StalledDigestPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskStalledDigest, data), nil
}

func ParseStalledDigestPayload(task *asynq.Task) (StalledDigestPayload, error) {
	var payload StalledDigestPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return StalledDigestPayload{}, err
	}
	return payload, nil
}

func NewRecalculateScoresTask(payload RecalculateScoresPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskRecalculateScores, data), nil
}

func ParseRecalculateScoresPayload(task *asynq.Task) (RecalculateScoresPayload, error) {
	var payload RecalculateScoresPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return RecalculateScoresPayload{}, err
	}
	return payload, nil
}
