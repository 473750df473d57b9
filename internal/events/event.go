// Package events provides domain event definitions for decoupled,
// event-driven communication between modules.
// Infrastructure (Bus, Handler) is in platform/events.
package events

import (
	"practice_crm_backend/platform/events"
)

// Re-export platform types for convenience
type (
	Event       = events.Event
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
)

// Re-export platform functions
var NewBaseEvent = events.NewBaseEvent

// =============================================================================
// Practice Domain Events
// =============================================================================

// PracticeEngagement is published when an engagement signal (open, click,
// reply, call, meeting) is recorded against a practice.
type PracticeEngagement struct {
	BaseEvent
	PracticeID   int64  `json:"practiceId"`
	PracticeName string `json:"practiceName"`
	Activity     string `json:"activity"`
}

func (e PracticeEngagement) EventName() string { return "practices.engagement.recorded" }

// DealMoved is published when a practice transitions between pipeline stages.
type DealMoved struct {
	BaseEvent
	PracticeID   int64   `json:"practiceId"`
	PracticeName string  `json:"practiceName"`
	FromStage    string  `json:"fromStage"`
	ToStage      string  `json:"toStage"`
	Reason       string  `json:"reason,omitempty"`
	DealValue    float64 `json:"dealValue"`
}

func (e DealMoved) EventName() string { return "practices.deal.moved" }

// HotLeadDetected is published when a practice's score crosses into the
// hot category during recalculation.
type HotLeadDetected struct {
	BaseEvent
	PracticeID   int64  `json:"practiceId"`
	PracticeName string `json:"practiceName"`
	Score        int    `json:"score"`
	NextAction   string `json:"nextAction"`
}

func (e HotLeadDetected) EventName() string { return "practices.lead.hot_detected" }
