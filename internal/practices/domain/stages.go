package domain

// Pipeline stage identifiers. The set is fixed and not user-extensible.
const (
	StageNewLead          = "new_lead"
	StageContacted        = "contacted"
	StageInterested       = "interested"
	StageMeetingScheduled = "meeting_scheduled"
	StageProposalSent     = "proposal_sent"
	StageNegotiation      = "negotiation"
	StageWon              = "won"
	StageLost             = "lost"
)

// Stage describes one step of the sales pipeline.
type Stage struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Order       int    `json:"order"`
	Probability int    `json:"probability"`
	Description string `json:"description"`
}

// Stages is the ordered, fixed pipeline stage table. The order value of
// lost is used only for forward-progress comparison, not sequence.
var Stages = []Stage{
	{ID: StageNewLead, Name: "New Lead", Order: 1, Probability: 5, Description: "Just added, no contact yet"},
	{ID: StageContacted, Name: "Contacted", Order: 2, Probability: 10, Description: "First email or call sent"},
	{ID: StageInterested, Name: "Interest Shown", Order: 3, Probability: 25, Description: "Email opened or clicked"},
	{ID: StageMeetingScheduled, Name: "Meeting Scheduled", Order: 4, Probability: 50, Description: "Demo or call planned"},
	{ID: StageProposalSent, Name: "Proposal Sent", Order: 5, Probability: 70, Description: "Proposal or contract sent"},
	{ID: StageNegotiation, Name: "Negotiation", Order: 6, Probability: 85, Description: "Discussing terms"},
	{ID: StageWon, Name: "Won", Order: 7, Probability: 100, Description: "Deal closed, now a customer"},
	{ID: StageLost, Name: "Lost", Order: 8, Probability: 0, Description: "Not interested or lost"},
}

var stagesByID = func() map[string]Stage {
	m := make(map[string]Stage, len(Stages))
	for _, s := range Stages {
		m[s.ID] = s
	}
	return m
}()

// StageByID returns the stage definition for the given identifier.
func StageByID(id string) (Stage, bool) {
	s, ok := stagesByID[id]
	return s, ok
}

// IsKnownStage reports whether the identifier is part of the fixed stage set.
func IsKnownStage(id string) bool {
	_, ok := stagesByID[id]
	return ok
}

// IsTerminalStage reports whether the stage ends forward progression.
func IsTerminalStage(id string) bool {
	return id == StageWon || id == StageLost
}

// StageOrder returns the order value for forward-progress comparison,
// or zero for unknown stages.
func StageOrder(id string) int {
	return stagesByID[id].Order
}
