package convergence

import (
	"math"
	"reflect"
	"strings"
	"testing"

	"github.com/MKRushil/Pulse/pkg/spiral"
)

func TestEvaluateTermination(t *testing.T) {
	e := New(spiral.DefaultConfig())

	tests := []struct {
		name      string
		coverage  float64
		round     int
		converged bool
		forced    bool
	}{
		{name: "high coverage converges early", coverage: 0.85, round: 2, converged: true, forced: false},
		{name: "coverage at threshold converges", coverage: 0.8, round: 3, converged: true, forced: false},
		{name: "mid coverage keeps spiraling", coverage: 0.6, round: 3, converged: false, forced: false},
		{name: "round exhaustion under floor is forced", coverage: 0.5, round: 8, converged: true, forced: true},
		{name: "round exhaustion above floor is clean", coverage: 0.78, round: 8, converged: true, forced: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := e.Evaluate(Input{Coverage: tt.coverage, Round: tt.round})
			if v.Converged != tt.converged {
				t.Errorf("Converged = %v, want %v", v.Converged, tt.converged)
			}
			if v.Forced != tt.forced {
				t.Errorf("Forced = %v, want %v", v.Forced, tt.forced)
			}
		})
	}
}

func TestEvaluateAnchorMatch(t *testing.T) {
	e := New(spiral.DefaultConfig())

	tests := []struct {
		name     string
		in       Input
		expected float64
	}{
		{
			name:     "stable anchor counts full",
			in:       Input{AnchorID: "case-a", PrevAnchorID: "case-a", AnchorScore: 0.4},
			expected: 1.0,
		},
		{
			name:     "changed anchor uses blended score",
			in:       Input{AnchorID: "case-b", PrevAnchorID: "case-a", AnchorScore: 0.62},
			expected: 0.62,
		},
		{
			name:     "first round has no previous anchor",
			in:       Input{AnchorID: "case-a", AnchorScore: 0.62},
			expected: 0.62,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := e.Evaluate(tt.in)
			if v.AnchorMatch != tt.expected {
				t.Errorf("AnchorMatch = %v, want %v", v.AnchorMatch, tt.expected)
			}
		})
	}
}

func TestEvaluateProgressDecay(t *testing.T) {
	e := New(spiral.DefaultConfig())

	tests := []struct {
		round    int
		expected float64
	}{
		{round: 1, expected: 1.0},
		{round: 4, expected: 0.7},
		{round: 6, expected: 0.5},
		{round: 8, expected: 0.5},
	}

	for _, tt := range tests {
		v := e.Evaluate(Input{Round: tt.round})
		if math.Abs(v.Progress-tt.expected) > 1e-9 {
			t.Errorf("round %d: Progress = %v, want %v", tt.round, v.Progress, tt.expected)
		}
	}
}

func TestEvaluateScoreBlend(t *testing.T) {
	e := New(spiral.DefaultConfig())

	// 0.5*0.6 + 0.3*1.0 + 0.2*0.8 with a stable anchor at round three.
	v := e.Evaluate(Input{
		Coverage:     0.6,
		Round:        3,
		AnchorID:     "case-a",
		PrevAnchorID: "case-a",
	})
	if math.Abs(v.Score-0.76) > 1e-9 {
		t.Errorf("Score = %v, want 0.76", v.Score)
	}
}

func TestQuotaBands(t *testing.T) {
	e := New(spiral.DefaultConfig())

	tests := []struct {
		coverage float64
		expected int
	}{
		{coverage: 0.3, expected: 3},
		{coverage: 0.44, expected: 3},
		{coverage: 0.45, expected: 2},
		{coverage: 0.6, expected: 2},
		{coverage: 0.7, expected: 1},
		{coverage: 0.79, expected: 1},
		{coverage: 0.8, expected: 0},
		{coverage: 0.95, expected: 0},
	}

	for _, tt := range tests {
		got := e.Quota(tt.coverage)
		if got != tt.expected {
			t.Errorf("Quota(%v) = %d, want %d", tt.coverage, got, tt.expected)
		}
	}
}

func TestMissingCategories(t *testing.T) {
	t.Run("empty dialogue misses everything in priority order", func(t *testing.T) {
		got := MissingCategories("", 2)
		want := []string{"tongue", "pulse", "sleep", "sweat", "appetite", "stool", "urination", "emotion"}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("MissingCategories = %v, want %v", got, want)
		}
	})

	t.Run("mentioned areas drop out", func(t *testing.T) {
		got := MissingCategories("舌淡苔白，脈細弱，失眠多夢", 2)
		want := []string{"sweat", "appetite", "stool", "urination", "emotion"}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("MissingCategories = %v, want %v", got, want)
		}
	})
}

func TestQuestions(t *testing.T) {
	e := New(spiral.DefaultConfig())

	t.Run("converged coverage asks nothing", func(t *testing.T) {
		if got := e.Questions("", 0.85, 3); got != nil {
			t.Errorf("Questions = %v, want nil", got)
		}
	})

	t.Run("low coverage asks three, tongue and pulse first", func(t *testing.T) {
		got := e.Questions("最近失眠", 0.3, 1)
		if len(got) != 3 {
			t.Fatalf("len(Questions) = %d, want 3", len(got))
		}
		if !strings.Contains(got[0], "舌") {
			t.Errorf("Questions[0] = %q, want a tongue prompt", got[0])
		}
		if !strings.Contains(got[1], "脈") {
			t.Errorf("Questions[1] = %q, want a pulse prompt", got[1])
		}
	})

	t.Run("near convergence asks the single highest gap", func(t *testing.T) {
		got := e.Questions("舌淡苔白，失眠多夢", 0.75, 2)
		if len(got) != 1 {
			t.Fatalf("len(Questions) = %d, want 1", len(got))
		}
		if !strings.Contains(got[0], "脈") {
			t.Errorf("Questions[0] = %q, want a pulse prompt", got[0])
		}
	})
}
