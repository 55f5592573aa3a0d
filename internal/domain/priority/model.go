package priority

import "github.com/handover/handover/internal/domain/normalize"

// DutyType is the shift the handover belongs to. Night duty boosts
// high-acuity topics.
type DutyType string

const (
	DutyDay     DutyType = "day"
	DutyEvening DutyType = "evening"
	DutyNight   DutyType = "night"
)

// Severity buckets for structured items.
const (
	SeverityLow    = "low"
	SeverityMedium = "medium"
	SeverityHigh   = "high"
)

// CardItem is one scored clinical fact kept on a patient card.
type CardItem struct {
	Text        string                `json:"text"`
	Topic       string                `json:"topic"`
	Score       int                   `json:"score"`
	Severity    string                `json:"severity"`
	EvidenceRef normalize.EvidenceRef `json:"evidenceRef"`
}

// TodoItem is an actionable follow-up extracted from the stream.
type TodoItem struct {
	Text        string                `json:"text"`
	Priority    string                `json:"priority"`
	Due         string                `json:"due,omitempty"`
	Owner       string                `json:"owner,omitempty"`
	EvidenceRef normalize.EvidenceRef `json:"evidenceRef"`
}

// ProblemItem is an abnormal finding attributed to a patient.
type ProblemItem struct {
	Text        string                `json:"text"`
	Topic       string                `json:"topic"`
	Severity    string                `json:"severity"`
	EvidenceRef normalize.EvidenceRef `json:"evidenceRef"`
}

// RiskItem is a coded risk with its score and level.
type RiskItem struct {
	Code        string                `json:"code"`
	Score       int                   `json:"score"`
	Level       string                `json:"level"`
	Rationale   string                `json:"rationale,omitempty"`
	EvidenceRef normalize.EvidenceRef `json:"evidenceRef"`
}

// PatientCard is the aggregated per-alias view handed to the UI.
type PatientCard struct {
	Alias    string        `json:"alias"`
	TopItems []CardItem    `json:"topItems"`
	Todos    []TodoItem    `json:"todos"`
	Problems []ProblemItem `json:"problems"`
	Risks    []RiskItem    `json:"risks"`
	Summary  string        `json:"summary"`
}

// GlobalTopItem is one entry of the cross-patient priority list.
type GlobalTopItem struct {
	Alias       string                `json:"alias"`
	Text        string                `json:"text"`
	Topic       string                `json:"topic"`
	Score       int                   `json:"score"`
	EvidenceRef normalize.EvidenceRef `json:"evidenceRef"`
}
