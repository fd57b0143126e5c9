package spiral

import "fmt"

// Stage is the closed set of pipeline stages. A round walks them strictly
// forward; there are no backward transitions.
type Stage int

const (
	StageGate Stage = iota
	StageDiagnose
	StageReview
	StagePresent
)

func (s Stage) String() string {
	switch s {
	case StageGate:
		return "gate"
	case StageDiagnose:
		return "diagnose"
	case StageReview:
		return "review"
	case StagePresent:
		return "present"
	default:
		return fmt.Sprintf("stage(%d)", int(s))
	}
}

// Outcome is the per-stage result tag driving the transition table.
type Outcome string

const (
	OutcomeProceed   Outcome = "proceed"
	OutcomeReject    Outcome = "reject"
	OutcomeAskMore   Outcome = "ask_more"
	OutcomeOk        Outcome = "ok"
	OutcomeDegraded  Outcome = "degraded"
	OutcomePassed    Outcome = "passed"
	OutcomeRewritten Outcome = "rewritten"
	OutcomeRejected  Outcome = "rejected"
	OutcomeDone      Outcome = "done"
)

type transition struct {
	next     Stage
	terminal bool
}

// transitions is the complete state machine. Degraded stages still move
// forward; gate rejections, clarification requests and review rejections
// end the round.
var transitions = map[Stage]map[Outcome]transition{
	StageGate: {
		OutcomeProceed: {next: StageDiagnose},
		OutcomeReject:  {terminal: true},
		OutcomeAskMore: {terminal: true},
	},
	StageDiagnose: {
		OutcomeOk:       {next: StageReview},
		OutcomeDegraded: {next: StageReview},
	},
	StageReview: {
		OutcomePassed:    {next: StagePresent},
		OutcomeRewritten: {next: StagePresent},
		OutcomeRejected:  {terminal: true},
	},
	StagePresent: {
		OutcomeDone: {terminal: true},
	},
}

// Next resolves (stage, outcome) against the transition table. It returns
// the following stage, or terminal = true when the round ends here. Pairs
// outside the table are programming errors and reported as such.
func Next(s Stage, o Outcome) (Stage, bool, error) {
	row, ok := transitions[s]
	if !ok {
		return 0, false, fmt.Errorf("unknown stage: %s", s)
	}
	t, ok := row[o]
	if !ok {
		return 0, false, fmt.Errorf("outcome %q not defined for stage %s", o, s)
	}
	if t.terminal {
		return s, true, nil
	}
	return t.next, false, nil
}

// Outcomes lists the outcomes defined for a stage, for table-closure tests.
func Outcomes(s Stage) []Outcome {
	row := transitions[s]
	out := make([]Outcome, 0, len(row))
	for o := range row {
		out = append(out, o)
	}
	return out
}
