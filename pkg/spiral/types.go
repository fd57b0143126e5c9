package spiral

import (
	"github.com/google/uuid"
)

// Candidate is one corpus case as seen by a single round: a transient copy
// carrying its retrieval sub-scores. Virtual candidates are synthesized from
// the live query and never persisted.
type Candidate struct {
	ID          string
	Pattern     string
	Symptoms    []string
	TongueTerms []string
	PulseTerms  []string
	ZangfuTerms []string
	Text        string
	Domain      string
	Similarity  float64
	Lexical     float64
	Score       float64
	Virtual     bool
}

// Valid reports whether the candidate has the minimum shape expected of a
// corpus record. Invalid items are discarded during assembly.
func (c Candidate) Valid() bool {
	return c.ID != "" && c.Pattern != ""
}

// SharesTerm reports whether any of the given terms appears in one of the
// candidate's term sets.
func (c Candidate) SharesTerm(terms []string) bool {
	if len(terms) == 0 {
		return false
	}
	member := make(map[string]bool)
	for _, set := range [][]string{c.Symptoms, c.TongueTerms, c.PulseTerms, c.ZangfuTerms} {
		for _, t := range set {
			member[t] = true
		}
	}
	for _, t := range terms {
		if member[t] {
			return true
		}
	}
	return false
}

// RetrievalPlan is the Gate stage's term extraction, used for domain overlap
// tests and virtual candidate synthesis.
type RetrievalPlan struct {
	SymptomTerms []string
	TongueTerms  []string
	PulseTerms   []string
	ZangfuTerms  []string
}

func (p RetrievalPlan) Empty() bool {
	return len(p.SymptomTerms) == 0 && len(p.TongueTerms) == 0 &&
		len(p.PulseTerms) == 0 && len(p.ZangfuTerms) == 0
}

// Terms returns the union of all plan term sets, deduplicated, in input order.
func (p RetrievalPlan) Terms() []string {
	seen := make(map[string]bool)
	var out []string
	for _, set := range [][]string{p.SymptomTerms, p.TongueTerms, p.PulseTerms, p.ZangfuTerms} {
		for _, t := range set {
			if t != "" && !seen[t] {
				seen[t] = true
				out = append(out, t)
			}
		}
	}
	return out
}

type GateAction string

const (
	GateProceed GateAction = "proceed"
	GateReject  GateAction = "reject"
	GateAskMore GateAction = "ask_more"
)

type GateOutput struct {
	Action        GateAction
	Plan          RetrievalPlan
	Reason        string
	Clarification string
	Degraded      bool
}

// SubScores are the selector's component scores, kept for traceability.
type SubScores struct {
	Similarity         float64
	SymptomJaccard     float64
	TonguePulseJaccard float64
	Specificity        float64
	Blended            float64
}

type Diagnosis struct {
	AnchorCaseID string
	Pattern      string
	Narrative    string
	Coverage     float64
	MissingInfo  []string
	SubScores    SubScores
	Degraded     bool
}

type ReviewOutcome string

const (
	ReviewPassed    ReviewOutcome = "passed"
	ReviewRewritten ReviewOutcome = "rewritten"
	ReviewRejected  ReviewOutcome = "rejected"
)

type ReviewVerdict struct {
	Outcome  ReviewOutcome
	Findings []string
	Text     string
	Degraded bool
}

type Presentation struct {
	Text         string
	FollowUps    []string
	Insufficient bool
	Disclaimer   string
}

// RoundResult is everything one round produced, trace included. Terminal
// gate or review outcomes leave the downstream pointers nil.
type RoundResult struct {
	SessionID         uuid.UUID
	Round             int
	Gate              *GateOutput
	Candidates        []Candidate
	Diagnosis         *Diagnosis
	Review            *ReviewVerdict
	Presentation      *Presentation
	Trace             []TraceEntry
	Coverage          float64
	Converged         bool
	ForcedConvergence bool
	Degraded          bool
	Refusal           string
}
