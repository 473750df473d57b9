// Package automation implements a small forward-chaining rule engine for
// follow-up outreach: a fixed rule table is evaluated against a practice's
// workflow state, gated by wait/cooldown timing, and executed through the
// external email and notification collaborators.
package automation

import "practice_crm_backend/internal/practices/domain"

// Trigger events. The synthetic triggers are evaluated on every sweep
// regardless of the external event name.
const (
	TriggerEmailOpened  = "email_opened"
	TriggerEmailClicked = "email_clicked"
	TriggerEmailSent    = "email_sent"
	TriggerTimeBased    = "time_based"
	TriggerScoreBased   = "score_based"
)

// Action types.
const (
	ActionSendFollowUp     = "send_follow_up"
	ActionSendReengagement = "send_reengagement"
	ActionNotifySales      = "notify_sales"
	ActionUpdateScore      = "update_score"
)

// Priorities, most urgent first.
const (
	PriorityUrgent = "urgent"
	PriorityHigh   = "high"
	PriorityMedium = "medium"
	PriorityLow    = "low"
)

var priorityRank = map[string]int{
	PriorityUrgent: 0,
	PriorityHigh:   1,
	PriorityMedium: 2,
	PriorityLow:    3,
}

// Rule pairs a trigger event and condition predicate with an action and
// its wait/cooldown policy. Predicates are plain functions over a
// practice; the table is static data, never mutated at runtime.
type Rule struct {
	Name      string
	Trigger   string
	Condition func(*domain.Practice) bool
	WaitDays  int
	Action    string
	Template  string
	Priority  string
}

// defaultRules is the fixed rule table, evaluated in order.
func defaultRules() []Rule {
	return []Rule{
		{
			Name:    "email_opened_no_click",
			Trigger: TriggerEmailOpened,
			Condition: func(p *domain.Practice) bool {
				return p.Workflow == nil || !p.Workflow.EmailClicked
			},
			WaitDays: 2,
			Action:   ActionSendFollowUp,
			Template: "interest_detected",
			Priority: PriorityMedium,
		},
		{
			Name:    "email_clicked_no_reply",
			Trigger: TriggerEmailClicked,
			Condition: func(p *domain.Practice) bool {
				return p.Workflow == nil || !p.Workflow.Replied
			},
			WaitDays: 1,
			Action:   ActionSendFollowUp,
			Template: "high_interest",
			Priority: PriorityHigh,
		},
		{
			Name:    "no_response_after_send",
			Trigger: TriggerEmailSent,
			Condition: func(p *domain.Practice) bool {
				return p.Workflow == nil || !p.Workflow.EmailOpened
			},
			WaitDays: 5,
			Action:   ActionSendFollowUp,
			Template: "gentle_reminder",
			Priority: PriorityLow,
		},
		{
			Name:    "opened_multiple_times",
			Trigger: TriggerEmailOpened,
			Condition: func(p *domain.Practice) bool {
				return p.Workflow != nil && p.Workflow.OpenCount >= 3
			},
			WaitDays: 0,
			Action:   ActionNotifySales,
			Priority: PriorityUrgent,
		},
		{
			Name:      "long_inactive",
			Trigger:   TriggerTimeBased,
			Condition: func(*domain.Practice) bool { return true },
			WaitDays:  14,
			Action:    ActionSendReengagement,
			Template:  "re_engagement",
			Priority:  PriorityLow,
		},
		{
			Name:    "hot_lead_no_contact",
			Trigger: TriggerScoreBased,
			Condition: func(p *domain.Practice) bool {
				return p.TotalScore() >= 75
			},
			WaitDays: 3,
			Action:   ActionNotifySales,
			Priority: PriorityUrgent,
		},
	}
}

// isSyntheticTrigger reports whether the trigger fires on every sweep.
func isSyntheticTrigger(trigger string) bool {
	return trigger == TriggerTimeBased || trigger == TriggerScoreBased
}
