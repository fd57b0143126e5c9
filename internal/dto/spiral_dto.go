package dto

import (
	"time"

	"github.com/google/uuid"
)

type CreateSessionResponse struct {
	SessionId uuid.UUID `json:"session_id"`
}

type RunRoundRequest struct {
	Question string `json:"question" validate:"required,min=1"`
}

type GateDTO struct {
	Action        string   `json:"action"`
	Reason        string   `json:"reason,omitempty"`
	Clarification string   `json:"clarification,omitempty"`
	PlanTerms     []string `json:"plan_terms,omitempty"`
	Degraded      bool     `json:"degraded,omitempty"`
}

type CandidateDTO struct {
	Id         string  `json:"id"`
	Pattern    string  `json:"pattern"`
	Domain     string  `json:"domain"`
	Similarity float64 `json:"similarity"`
	Lexical    float64 `json:"lexical"`
	Score      float64 `json:"score"`
	Virtual    bool    `json:"virtual,omitempty"`
}

type DiagnosisDTO struct {
	AnchorCaseId string   `json:"anchor_case_id"`
	Pattern      string   `json:"pattern"`
	Narrative    string   `json:"narrative"`
	Coverage     float64  `json:"coverage"`
	MissingInfo  []string `json:"missing_info,omitempty"`
	Degraded     bool     `json:"degraded,omitempty"`
}

type ReviewDTO struct {
	Outcome  string   `json:"outcome"`
	Findings []string `json:"findings,omitempty"`
	Degraded bool     `json:"degraded,omitempty"`
}

type PresentationDTO struct {
	Text         string   `json:"text"`
	FollowUps    []string `json:"follow_ups,omitempty"`
	Insufficient bool     `json:"insufficient,omitempty"`
	Disclaimer   string   `json:"disclaimer"`
}

type TraceEntryDTO struct {
	Source string    `json:"source"`
	Event  string    `json:"event"`
	Detail string    `json:"detail"`
	At     time.Time `json:"at"`
}

type RoundResponse struct {
	SessionId         uuid.UUID        `json:"session_id"`
	Round             int              `json:"round"`
	Gate              *GateDTO         `json:"gate,omitempty"`
	Candidates        []CandidateDTO   `json:"candidates,omitempty"`
	Diagnosis         *DiagnosisDTO    `json:"diagnosis,omitempty"`
	Review            *ReviewDTO       `json:"review,omitempty"`
	Presentation      *PresentationDTO `json:"presentation,omitempty"`
	Trace             []TraceEntryDTO  `json:"trace"`
	Coverage          float64          `json:"coverage"`
	Converged         bool             `json:"converged"`
	ForcedConvergence bool             `json:"forced_convergence"`
	Degraded          bool             `json:"degraded"`
	Refusal           string           `json:"refusal,omitempty"`
}

type RoundSummaryDTO struct {
	Round    int       `json:"round"`
	AnchorId string    `json:"anchor_id"`
	Pattern  string    `json:"pattern"`
	Coverage float64   `json:"coverage"`
	Outcome  string    `json:"outcome"`
	Forced   bool      `json:"forced"`
	At       time.Time `json:"at"`
}

type SessionSnapshotResponse struct {
	SessionId         uuid.UUID         `json:"session_id"`
	PractitionerId    uuid.UUID         `json:"practitioner_id"`
	RoundCount        int               `json:"round_count"`
	ActiveTerms       []string          `json:"active_terms,omitempty"`
	PinnedTerms       []string          `json:"pinned_terms,omitempty"`
	NegatedTerms      []string          `json:"negated_terms,omitempty"`
	LastAnchorCaseId  string            `json:"last_anchor_case_id,omitempty"`
	LastAnchorPattern string            `json:"last_anchor_pattern,omitempty"`
	Coverage          float64           `json:"coverage"`
	Converged         bool              `json:"converged"`
	History           []RoundSummaryDTO `json:"history"`
	CreatedAt         time.Time         `json:"created_at"`
	LastUpdatedAt     time.Time         `json:"last_updated_at"`
}

type StoreStatsResponse struct {
	ResidentSessions int   `json:"resident_sessions"`
	BusySessions     int   `json:"busy_sessions"`
	Evictions        int64 `json:"evictions"`
}

// --- Bus message payloads ---

type RoundCompletedMessage struct {
	SessionId      uuid.UUID `json:"session_id"`
	PractitionerId uuid.UUID `json:"practitioner_id"`
	Round          int       `json:"round"`
	AnchorCaseId   string    `json:"anchor_case_id"`
	Pattern        string    `json:"pattern"`
	Coverage       float64   `json:"coverage"`
	Outcome        string    `json:"outcome"`
	Converged      bool      `json:"converged"`
	Forced         bool      `json:"forced"`
	Degraded       bool      `json:"degraded"`
	ElapsedMs      int64     `json:"elapsed_ms"`
}

type SecurityFlaggedMessage struct {
	SessionId      uuid.UUID `json:"session_id"`
	PractitionerId uuid.UUID `json:"practitioner_id"`
	Round          int       `json:"round"`
	Reason         string    `json:"reason"`
	Violations     []string  `json:"violations"`
	FlagCount      int       `json:"flag_count"`
}

// CaseAcceptedMessage travels over NATS to the corpus ingester when a
// converged, review-passed diagnosis is promoted into the case corpus.
type CaseAcceptedMessage struct {
	CaseId      string    `json:"case_id"`
	SessionId   uuid.UUID `json:"session_id"`
	Pattern     string    `json:"pattern"`
	Symptoms    []string  `json:"symptoms"`
	TongueTerms []string  `json:"tongue_terms"`
	PulseTerms  []string  `json:"pulse_terms"`
	ZangfuTerms []string  `json:"zangfu_terms"`
	TextRaw     string    `json:"text_raw"`
	TextCJK     string    `json:"text_cjk"`
	Domain      string    `json:"domain"`
}
