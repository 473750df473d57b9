// Package scoring computes lead quality scores for practices from
// engagement, demographic completeness and contact recency signals.
package scoring

import (
	"fmt"
	"math"
	"sort"
	"time"

	"practice_crm_backend/internal/practices/domain"
	"practice_crm_backend/platform/logger"
)

// Engagement weights. Additive, not mutually exclusive: a practice that
// replied and booked a meeting saturates the cap quickly by design.
const (
	weightEmailOpened    = 10
	weightEmailClicked   = 20
	weightReplied        = 30
	weightPhoneContacted = 25
	weightMeetingBooked  = 40

	weightPerEmailSent = 3
	maxEmailSentBonus  = 15

	maxEngagementScore = 70
)

// Demographic weights.
const (
	weightHasEmail   = 10
	weightHasPhone   = 10
	weightHasWebsite = 5

	sizeBonusLarge  = 15 // 5+ doctors
	sizeBonusMedium = 10 // 2-4 doctors
	sizeBonusSmall  = 5

	maxDemographicScore = 30
)

// Recency multipliers by days since last email.
const (
	recencyToday     = 1.5
	recencyThisWeek  = 1.2
	recencyThisMonth = 1.0
	recencyOlder     = 0.7
	recencyNever     = 0.5
)

// Lead categories in descending heat.
const (
	CategoryHot    = "hot"
	CategoryWarm   = "warm"
	CategoryCold   = "cold"
	CategoryFrozen = "frozen"
)

// Service computes lead scores. Pure over the records it is handed; callers
// persist results.
type Service struct {
	log *logger.Logger
	now func() time.Time
}

// New creates a new scoring service.
func New(log *logger.Logger) *Service {
	return &Service{log: log, now: time.Now}
}

// WithClock overrides the time source. All timestamps within one call
// derive from a single read of the clock.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// CalculateScore maps a practice's current signals to a bounded 0-100
// score plus a recommendation. Deterministic and side-effect-free for a
// fixed clock; a missing workflow counts as all-false/zero.
func (s *Service) CalculateScore(p *domain.Practice) domain.ScoreResult {
	now := s.now()

	engagement := engagementScore(p.Workflow)
	demographic := demographicScore(p)
	recency := s.recencyMultiplier(p.Workflow, now)

	total := int(math.Round(float64(engagement+demographic) * recency))
	if total < 0 {
		total = 0
	}
	if total > 100 {
		total = 100
	}

	category, priority, nextAction := categorize(total)

	return domain.ScoreResult{
		TotalScore:        total,
		Category:          category,
		EngagementScore:   engagement,
		DemographicScore:  demographic,
		RecencyMultiplier: recency,
		NextAction:        nextAction,
		Priority:          priority,
		CalculatedAt:      domain.FormatTime(now),
	}
}

// BulkScore scores every practice, stores the result on the record and
// returns the slice sorted descending by total score. The sort is stable:
// ties keep their original relative order.
func (s *Service) BulkScore(practices []*domain.Practice) []*domain.Practice {
	for _, p := range practices {
		score := s.CalculateScore(p)
		p.Score = &score
	}
	sort.SliceStable(practices, func(i, j int) bool {
		return practices[i].Score.TotalScore > practices[j].Score.TotalScore
	})
	return practices
}

// HotLeads returns up to limit practices in the hot category, best first.
func (s *Service) HotLeads(practices []*domain.Practice, limit int) []*domain.Practice {
	scored := s.BulkScore(practices)
	hot := make([]*domain.Practice, 0, limit)
	for _, p := range scored {
		if p.Score.Category != CategoryHot {
			continue
		}
		hot = append(hot, p)
		if limit > 0 && len(hot) >= limit {
			break
		}
	}
	return hot
}

// AttentionItem flags a practice that needs immediate follow-up.
type AttentionItem struct {
	Practice *domain.Practice   `json:"practice"`
	Reason   string             `json:"reason"`
	Score    domain.ScoreResult `json:"score"`
}

// NeedsAttention finds practices needing immediate attention. At most one
// entry per practice; the high-score-gone-quiet condition is checked first
// and wins over opened-without-follow-up.
func (s *Service) NeedsAttention(practices []*domain.Practice) []AttentionItem {
	now := s.now()
	var flagged []AttentionItem

	for _, p := range practices {
		score := s.CalculateScore(p)
		wf := p.Workflow
		if wf == nil {
			wf = &domain.Workflow{}
		}

		if score.TotalScore >= 60 && wf.LastEmailDate != "" {
			if last, ok := domain.ParseTime(wf.LastEmailDate); ok {
				if days := domain.DaysSince(now, last); days >= 7 {
					flagged = append(flagged, AttentionItem{
						Practice: p,
						Reason:   fmt.Sprintf("High score (%d) but %d days since last contact", score.TotalScore, days),
						Score:    score,
					})
					continue
				}
			}
		}

		if wf.EmailOpened && !wf.Replied && wf.EmailsSent < 2 {
			flagged = append(flagged, AttentionItem{
				Practice: p,
				Reason:   "Opened email but no follow-up sent",
				Score:    score,
			})
		}
	}

	return flagged
}

func engagementScore(wf *domain.Workflow) int {
	if wf == nil {
		return 0
	}

	score := 0
	if wf.EmailOpened {
		score += weightEmailOpened
	}
	if wf.EmailClicked {
		score += weightEmailClicked
	}
	if wf.Replied {
		score += weightReplied
	}
	if wf.EmailsSent > 0 {
		bonus := wf.EmailsSent * weightPerEmailSent
		if bonus > maxEmailSentBonus {
			bonus = maxEmailSentBonus
		}
		score += bonus
	}
	if wf.PhoneContacted {
		score += weightPhoneContacted
	}
	if wf.MeetingBooked {
		score += weightMeetingBooked
	}

	if score > maxEngagementScore {
		score = maxEngagementScore
	}
	return score
}

func demographicScore(p *domain.Practice) int {
	score := 0
	if p.Email != "" {
		score += weightHasEmail
	}
	if p.Phone != "" {
		score += weightHasPhone
	}
	if p.Website != "" {
		score += weightHasWebsite
	}

	// Only one size bonus applies, and only when a doctors list exists.
	if p.Doctors != nil {
		switch {
		case len(p.Doctors) >= 5:
			score += sizeBonusLarge
		case len(p.Doctors) >= 2:
			score += sizeBonusMedium
		default:
			score += sizeBonusSmall
		}
	}

	if score > maxDemographicScore {
		score = maxDemographicScore
	}
	return score
}

// recencyMultiplier scales the score by how recently the practice was
// contacted. A malformed date fails open to 1.0: blocking outreach over a
// data glitch is worse than an extra email.
func (s *Service) recencyMultiplier(wf *domain.Workflow, now time.Time) float64 {
	if wf == nil || wf.LastEmailDate == "" {
		return recencyNever
	}

	last, ok := domain.ParseTime(wf.LastEmailDate)
	if !ok {
		if s.log != nil {
			s.log.Warn("unparseable last_email_date", "value", wf.LastEmailDate)
		}
		return 1.0
	}

	switch days := domain.DaysSince(now, last); {
	case days == 0:
		return recencyToday
	case days <= 7:
		return recencyThisWeek
	case days <= 30:
		return recencyThisMonth
	default:
		return recencyOlder
	}
}

// categorize thresholds are evaluated top-down; bands do not overlap.
func categorize(total int) (category string, priority int, nextAction string) {
	switch {
	case total >= 75:
		return CategoryHot, 1, "Call immediately"
	case total >= 50:
		return CategoryWarm, 2, "Send personalized follow-up"
	case total >= 25:
		return CategoryCold, 3, "Add to nurture campaign"
	default:
		return CategoryFrozen, 4, "Wait or mark as lost"
	}
}
