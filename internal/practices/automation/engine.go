package automation

import (
	"context"
	"fmt"
	"sort"
	"time"

	"practice_crm_backend/internal/practices/domain"
	"practice_crm_backend/platform/logger"
)

// EmailSender is the external email collaborator. Transport details never
// reach the engine.
type EmailSender interface {
	SendCampaignEmail(ctx context.Context, p *domain.Practice, templateType string, useAI bool) error
}

// SalesNotifier is the external sales-alert collaborator.
type SalesNotifier interface {
	Notify(ctx context.Context, message string) error
}

// Scorer recomputes a practice's lead score.
type Scorer interface {
	CalculateScore(p *domain.Practice) domain.ScoreResult
}

// Action is a rule firing that passed its condition and timing gate.
type Action struct {
	Rule         string `json:"rule"`
	ActionType   string `json:"action_type"`
	Template     string `json:"template,omitempty"`
	Priority     string `json:"priority"`
	ScheduledFor string `json:"scheduled_for"`
	Reason       string `json:"reason"`
	PracticeID   int64  `json:"practice_id"`
}

// Result is the outcome of executing one action.
type Result struct {
	Success    bool   `json:"success"`
	Action     Action `json:"action"`
	ExecutedAt string `json:"executed_at"`
	Message    string `json:"message"`
}

// ProcessResult is returned by ProcessEvent.
type ProcessResult struct {
	ActionsTriggered int              `json:"actions_triggered"`
	Actions          []Action         `json:"actions"`
	ExecutedActions  []Result         `json:"executed_actions"`
	Practice         *domain.Practice `json:"updated_practice"`
}

// Engine evaluates the automation rule table against practices.
type Engine struct {
	rules    []Rule
	emailer  EmailSender
	notifier SalesNotifier
	scorer   Scorer
	log      *logger.Logger
	now      func() time.Time
}

// New creates an automation engine wired to its collaborators.
func New(emailer EmailSender, notifier SalesNotifier, scorer Scorer, log *logger.Logger) *Engine {
	return &Engine{
		rules:    defaultRules(),
		emailer:  emailer,
		notifier: notifier,
		scorer:   scorer,
		log:      log,
		now:      time.Now,
	}
}

// WithClock overrides the time source.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// RuleInfo is a serializable view of one rule, without its condition.
type RuleInfo struct {
	Name     string `json:"name"`
	Trigger  string `json:"trigger"`
	WaitDays int    `json:"wait_days"`
	Action   string `json:"action"`
	Template string `json:"template,omitempty"`
	Priority string `json:"priority"`
}

// RuleTable returns the configured rules for inspection.
func (e *Engine) RuleTable() []RuleInfo {
	infos := make([]RuleInfo, 0, len(e.rules))
	for _, r := range e.rules {
		infos = append(infos, RuleInfo{
			Name:     r.Name,
			Trigger:  r.Trigger,
			WaitDays: r.WaitDays,
			Action:   r.Action,
			Template: r.Template,
			Priority: r.Priority,
		})
	}
	return infos
}

// CheckTriggers returns the actions whose rules fire for the given event.
// A rule fires when its trigger matches the event or is synthetic, its
// condition holds, and its timing gate is open. A predicate failure skips
// that rule only; the others still run.
func (e *Engine) CheckTriggers(p *domain.Practice, event string) []Action {
	var actions []Action
	now := e.now()

	for _, rule := range e.rules {
		if rule.Trigger != event && !isSyntheticTrigger(rule.Trigger) {
			continue
		}

		matched, err := e.evalCondition(rule, p)
		if err != nil {
			if e.log != nil {
				e.log.RuleFailed(rule.Name, p.ID, err)
			}
			continue
		}
		if !matched {
			continue
		}

		shouldExecute, reason := e.ShouldExecuteNow(p, rule.Name, rule.WaitDays)
		if !shouldExecute {
			continue
		}

		actions = append(actions, Action{
			Rule:         rule.Name,
			ActionType:   rule.Action,
			Template:     rule.Template,
			Priority:     rule.Priority,
			ScheduledFor: domain.FormatTime(now),
			Reason:       reason,
			PracticeID:   p.ID,
		})
		if e.log != nil {
			e.log.RuleTriggered(rule.Name, p.ID, reason)
		}
	}

	return actions
}

// evalCondition runs a rule predicate with panic recovery so malformed
// workflow data cannot abort evaluation of the other rules.
func (e *Engine) evalCondition(rule Rule, p *domain.Practice) (matched bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			matched = false
			err = fmt.Errorf("rule %s condition panicked: %v", rule.Name, r)
		}
	}()
	return rule.Condition(p), nil
}

// ShouldExecuteNow is the timing gate. For a rule that never executed, the
// gate opens waitDays after the last outreach email, immediately when no
// last email date exists. For a rule that executed before, the gate opens
// after a cooldown of double the wait. All date parse failures open the
// gate: blocking outreach over a data glitch is worse than an extra email.
func (e *Engine) ShouldExecuteNow(p *domain.Practice, ruleName string, waitDays int) (bool, string) {
	now := e.now()
	wf := p.Workflow
	if wf == nil {
		wf = &domain.Workflow{}
	}

	// Scan from the tail: history is appended chronologically, so the
	// last matching entry is the true most recent execution.
	var lastExecution *domain.AutomationEntry
	for i := len(wf.AutomationHistory) - 1; i >= 0; i-- {
		if wf.AutomationHistory[i].Rule == ruleName {
			lastExecution = &wf.AutomationHistory[i]
			break
		}
	}

	if lastExecution == nil {
		if wf.LastEmailDate == "" {
			return true, "First execution"
		}
		last, ok := domain.ParseTime(wf.LastEmailDate)
		if !ok {
			return true, "Could not determine last email date"
		}
		daysSince := domain.DaysSince(now, last)
		if daysSince >= waitDays {
			return true, fmt.Sprintf("%d days since last email", daysSince)
		}
		return false, fmt.Sprintf("Waiting %d more days", waitDays-daysSince)
	}

	lastExec, ok := domain.ParseTime(lastExecution.ExecutedAt)
	if !ok {
		return true, "Could not determine last execution"
	}
	daysSinceExec := domain.DaysSince(now, lastExec)
	cooldown := waitDays * 2
	if daysSinceExec >= cooldown {
		return true, fmt.Sprintf("%d days since last execution", daysSinceExec)
	}
	return false, fmt.Sprintf("In cooldown period (%d days remaining)", cooldown-daysSinceExec)
}

// ExecuteAction dispatches an action by type and records it in the
// automation history. Failed executions are recorded too: the cooldown
// gate depends on the history existing regardless of outcome. Unknown
// action types produce a failed result and a warning, never an abort.
func (e *Engine) ExecuteAction(ctx context.Context, action Action, p *domain.Practice) Result {
	now := e.now()
	result := Result{
		Action:     action,
		ExecutedAt: domain.FormatTime(now),
	}

	switch action.ActionType {
	case ActionSendFollowUp, ActionSendReengagement:
		result.Success, result.Message = e.sendFollowUp(ctx, action, p, now)
	case ActionNotifySales:
		result.Success, result.Message = e.notifySales(ctx, action, p)
	case ActionUpdateScore:
		result.Success, result.Message = e.updateScore(p)
	default:
		result.Message = "Unknown action type: " + action.ActionType
		if e.log != nil {
			e.log.Warn("unknown automation action type", "action_type", action.ActionType, "rule", action.Rule)
		}
	}

	wf := p.EnsureWorkflow()
	wf.AutomationHistory = append(wf.AutomationHistory, domain.AutomationEntry{
		Rule:       action.Rule,
		Action:     action.ActionType,
		ExecutedAt: result.ExecutedAt,
		Success:    result.Success,
		Message:    result.Message,
	})

	return result
}

func (e *Engine) sendFollowUp(ctx context.Context, action Action, p *domain.Practice, now time.Time) (bool, string) {
	if e.emailer == nil {
		return false, "No email sender configured"
	}

	template := action.Template
	if template == "" {
		template = "follow_up"
	}

	if err := e.emailer.SendCampaignEmail(ctx, p, template, true); err != nil {
		if e.log != nil {
			e.log.RuleFailed(action.Rule, p.ID, err)
		}
		return false, "Email send error: " + err.Error()
	}

	wf := p.EnsureWorkflow()
	wf.LastAutomatedEmail = domain.FormatTime(now)
	wf.AutomatedEmailsSent++

	return true, fmt.Sprintf("Sent %s email to %s", template, p.Email)
}

func (e *Engine) notifySales(ctx context.Context, action Action, p *domain.Practice) (bool, string) {
	if e.notifier == nil {
		return false, "No sales notifier configured"
	}

	if err := e.notifier.Notify(ctx, buildSalesAlert(action, p)); err != nil {
		if e.log != nil {
			e.log.RuleFailed(action.Rule, p.ID, err)
		}
		return false, "Notification error: " + err.Error()
	}
	return true, "Sales team notified"
}

func (e *Engine) updateScore(p *domain.Practice) (bool, string) {
	if e.scorer == nil {
		return false, "No scorer configured"
	}
	score := e.scorer.CalculateScore(p)
	p.Score = &score
	return true, fmt.Sprintf("Updated score to %d", score.TotalScore)
}

// buildSalesAlert formats the hot-lead message for the sales channel.
func buildSalesAlert(action Action, p *domain.Practice) string {
	name := p.Name
	if name == "" {
		name = "Unknown"
	}
	municipality := p.Municipality
	if municipality == "" {
		municipality = "Unknown"
	}
	status := "Unknown"
	if p.Workflow != nil && p.Workflow.Status != "" {
		status = p.Workflow.Status
	}
	nextAction := "Review lead"
	if p.Score != nil && p.Score.NextAction != "" {
		nextAction = p.Score.NextAction
	}
	reason := action.Reason
	if reason == "" {
		reason = "Automation triggered"
	}

	return fmt.Sprintf(
		":fire: *HOT LEAD ALERT*\n\n*Practice:* %s\n*Municipality:* %s\n*Score:* %d/100\n*Status:* %s\n*Reason:* %s\n\n*Next Action:* %s",
		name, municipality, p.TotalScore(), status, reason, nextAction,
	)
}

// PendingActions evaluates both synthetic triggers for every practice and
// returns the combined actions sorted by priority, stable within a tier.
// A rule is emitted at most once per practice per sweep.
func (e *Engine) PendingActions(practices []*domain.Practice) []Action {
	var all []Action

	for _, p := range practices {
		seen := make(map[string]bool)
		for _, event := range []string{TriggerTimeBased, TriggerScoreBased} {
			for _, action := range e.CheckTriggers(p, event) {
				if seen[action.Rule] {
					continue
				}
				seen[action.Rule] = true
				all = append(all, action)
			}
		}
	}

	sort.SliceStable(all, func(i, j int) bool {
		return priorityRank[all[i].Priority] < priorityRank[all[j].Priority]
	})
	return all
}

// ProcessEvent evaluates the rules for an inbound event and synchronously
// executes only the urgent actions; the rest are returned for a later
// sweep. This bounds the cost of handling a webhook while still surfacing
// low-urgency follow-ups.
func (e *Engine) ProcessEvent(ctx context.Context, p *domain.Practice, event string) ProcessResult {
	if e.log != nil {
		e.log.Info("processing automation event", "event", event, "practice_id", p.ID)
	}

	actions := e.CheckTriggers(p, event)

	var executed []Result
	for _, action := range actions {
		if action.Priority == PriorityUrgent {
			executed = append(executed, e.ExecuteAction(ctx, action, p))
		}
	}

	return ProcessResult{
		ActionsTriggered: len(actions),
		Actions:          actions,
		ExecutedActions:  executed,
		Practice:         p,
	}
}
