// Package domain holds the practice record model shared by the scoring,
// pipeline and automation services. The record mirrors the JSON document
// shape used by the external store: timestamps travel as RFC 3339 strings
// and nested sub-records may be absent until first use.
package domain

// Practice is a lead/customer record being nurtured through the pipeline.
// The core borrows the record for the duration of one call; durable storage
// is the caller's concern.
type Practice struct {
	ID           int64    `json:"id"`
	Name         string   `json:"name,omitempty"`
	Municipality string   `json:"municipality,omitempty"`
	Email        string   `json:"email,omitempty"`
	Phone        string   `json:"phone,omitempty"`
	Website      string   `json:"website,omitempty"`
	Doctors      []string `json:"doctors,omitempty"`

	Workflow *Workflow      `json:"workflow,omitempty"`
	Pipeline *PipelineState `json:"pipeline,omitempty"`
	Score    *ScoreResult   `json:"score,omitempty"`
}

// Workflow is the engagement-tracking sub-record of a practice.
type Workflow struct {
	EmailsSent          int               `json:"emails_sent"`
	LastEmailDate       string            `json:"last_email_date,omitempty"`
	EmailOpened         bool              `json:"email_opened,omitempty"`
	EmailClicked        bool              `json:"email_clicked,omitempty"`
	Replied             bool              `json:"replied,omitempty"`
	OpenCount           int               `json:"open_count,omitempty"`
	PhoneContacted      bool              `json:"phone_contacted,omitempty"`
	MeetingBooked       bool              `json:"meeting_booked,omitempty"`
	LastAutomatedEmail  string            `json:"last_automated_email,omitempty"`
	AutomatedEmailsSent int               `json:"automated_emails_sent,omitempty"`
	AutomationHistory   []AutomationEntry `json:"automation_history,omitempty"`
	Status              string            `json:"status,omitempty"`
}

// AutomationEntry is one record in the append-only automation audit log.
// Entries are recorded for failed executions too; the cooldown gate depends
// on the log existing regardless of outcome.
type AutomationEntry struct {
	Rule       string `json:"rule"`
	Action     string `json:"action"`
	ExecutedAt string `json:"executed_at"`
	Success    bool   `json:"success"`
	Message    string `json:"message,omitempty"`
}

// PipelineState tracks a practice's position in the sales pipeline.
type PipelineState struct {
	CurrentStage   string            `json:"current_stage"`
	History        []StageTransition `json:"history"`
	DealValue      float64           `json:"deal_value"`
	Probability    int               `json:"probability"`
	StageEnteredAt string            `json:"stage_entered_at,omitempty"`
}

// StageTransition is one entry in the pipeline history. Appended only when
// the stage actually changes.
type StageTransition struct {
	FromStage string `json:"from_stage"`
	ToStage   string `json:"to_stage"`
	MovedAt   string `json:"moved_at"`
	Reason    string `json:"reason,omitempty"`
}

// ScoreResult is the cached output of the lead scorer. It is recomputed on
// demand and never authoritative between recomputations.
type ScoreResult struct {
	TotalScore        int     `json:"total_score"`
	Category          string  `json:"category"`
	EngagementScore   int     `json:"engagement_score"`
	DemographicScore  int     `json:"demographic_score"`
	RecencyMultiplier float64 `json:"recency_multiplier"`
	NextAction        string  `json:"next_action"`
	Priority          int     `json:"priority"`
	CalculatedAt      string  `json:"calculated_at"`
}

// EnsureWorkflow lazily initializes the workflow sub-record.
func (p *Practice) EnsureWorkflow() *Workflow {
	if p.Workflow == nil {
		p.Workflow = &Workflow{Status: "New"}
	}
	return p.Workflow
}

// CurrentStage returns the practice's pipeline stage, defaulting to
// new_lead when the pipeline has not been initialized yet.
func (p *Practice) CurrentStage() string {
	if p.Pipeline == nil || p.Pipeline.CurrentStage == "" {
		return StageNewLead
	}
	return p.Pipeline.CurrentStage
}

// TotalScore returns the cached total score, or zero when never scored.
func (p *Practice) TotalScore() int {
	if p.Score == nil {
		return 0
	}
	return p.Score.TotalScore
}
