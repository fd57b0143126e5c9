package spiral

import "testing"

func TestNextTransitions(t *testing.T) {
	tests := []struct {
		name     string
		stage    Stage
		outcome  Outcome
		next     Stage
		terminal bool
	}{
		{name: "gate proceed", stage: StageGate, outcome: OutcomeProceed, next: StageDiagnose},
		{name: "gate reject ends round", stage: StageGate, outcome: OutcomeReject, next: StageGate, terminal: true},
		{name: "gate ask_more ends round", stage: StageGate, outcome: OutcomeAskMore, next: StageGate, terminal: true},
		{name: "diagnose ok", stage: StageDiagnose, outcome: OutcomeOk, next: StageReview},
		{name: "degraded diagnosis still reviewed", stage: StageDiagnose, outcome: OutcomeDegraded, next: StageReview},
		{name: "review passed", stage: StageReview, outcome: OutcomePassed, next: StagePresent},
		{name: "review rewritten", stage: StageReview, outcome: OutcomeRewritten, next: StagePresent},
		{name: "review rejected ends round", stage: StageReview, outcome: OutcomeRejected, next: StageReview, terminal: true},
		{name: "present done ends round", stage: StagePresent, outcome: OutcomeDone, next: StagePresent, terminal: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next, terminal, err := Next(tt.stage, tt.outcome)
			if err != nil {
				t.Fatalf("Next(%s, %s) returned error: %v", tt.stage, tt.outcome, err)
			}
			if next != tt.next || terminal != tt.terminal {
				t.Errorf("Next(%s, %s) = (%s, %v), want (%s, %v)",
					tt.stage, tt.outcome, next, terminal, tt.next, tt.terminal)
			}
		})
	}
}

func TestNextUndefinedPair(t *testing.T) {
	tests := []struct {
		stage   Stage
		outcome Outcome
	}{
		{stage: StageGate, outcome: OutcomeOk},
		{stage: StageDiagnose, outcome: OutcomeReject},
		{stage: StagePresent, outcome: OutcomeProceed},
		{stage: Stage(42), outcome: OutcomeProceed},
	}

	for _, tt := range tests {
		if _, _, err := Next(tt.stage, tt.outcome); err == nil {
			t.Errorf("Next(%s, %s) = nil error, want rejection of undefined pair", tt.stage, tt.outcome)
		}
	}
}

// Every defined transition either terminates or moves strictly forward.
func TestTransitionTableClosure(t *testing.T) {
	for _, s := range []Stage{StageGate, StageDiagnose, StageReview, StagePresent} {
		outcomes := Outcomes(s)
		if len(outcomes) == 0 {
			t.Fatalf("stage %s has no outcomes", s)
		}
		for _, o := range outcomes {
			next, terminal, err := Next(s, o)
			if err != nil {
				t.Errorf("Next(%s, %s) returned error: %v", s, o, err)
				continue
			}
			if !terminal && next <= s {
				t.Errorf("Next(%s, %s) = %s, want a strictly later stage", s, o, next)
			}
		}
	}
}

func TestStageString(t *testing.T) {
	tests := []struct {
		stage    Stage
		expected string
	}{
		{stage: StageGate, expected: "gate"},
		{stage: StageDiagnose, expected: "diagnose"},
		{stage: StageReview, expected: "review"},
		{stage: StagePresent, expected: "present"},
		{stage: Stage(9), expected: "stage(9)"},
	}

	for _, tt := range tests {
		if got := tt.stage.String(); got != tt.expected {
			t.Errorf("String() = %q, want %q", got, tt.expected)
		}
	}
}
