package selector

import (
	"errors"
	"testing"

	"github.com/MKRushil/Pulse/pkg/spiral"
)

// Two candidates where the compound pattern scores barely above the
// single-organ one. WSim 0.4, WSym 0.3, WTP 0.2, WSpec 0.1:
//
//	心脾兩虛: 0.4*1.0 + 0.3*1.0  + 0 + 0.1*0.5 = 0.750
//	心血虛:   0.4*0.9 + 0.3*0.75 + 0 + 0.1*1.0 = 0.685
//
// The gap 0.065 is inside TieBreakGap 0.08.
func tieBreakCandidates(similarityB float64) []spiral.Candidate {
	return []spiral.Candidate{
		{
			ID:         "case-a",
			Pattern:    "心脾兩虛",
			Symptoms:   []string{"心悸", "失眠", "多夢"},
			Similarity: 1.0,
		},
		{
			ID:         "case-b",
			Pattern:    "心血虛",
			Symptoms:   []string{"心悸", "失眠", "多夢", "健忘"},
			Similarity: similarityB,
		},
	}
}

func TestSelectSpecificityTieBreak(t *testing.T) {
	s := New(spiral.DefaultConfig())

	res, err := s.Select(Input{
		Candidates:   tieBreakCandidates(0.9),
		SymptomTerms: []string{"心悸", "失眠", "多夢"},
	})
	if err != nil {
		t.Fatalf("Select returned error: %v", err)
	}

	if res.Anchor.ID != "case-b" {
		t.Errorf("Anchor.ID = %q, want case-b", res.Anchor.ID)
	}
	if !res.TieBreak {
		t.Error("TieBreak = false, want true")
	}
	// The ranked list keeps blended order even when the pick diverges.
	if res.Ranked[0].Candidate.ID != "case-a" {
		t.Errorf("Ranked[0] = %q, want case-a", res.Ranked[0].Candidate.ID)
	}
}

func TestSelectWideGapKeepsTop(t *testing.T) {
	s := New(spiral.DefaultConfig())

	res, err := s.Select(Input{
		Candidates:   tieBreakCandidates(0.7),
		SymptomTerms: []string{"心悸", "失眠", "多夢"},
	})
	if err != nil {
		t.Fatalf("Select returned error: %v", err)
	}

	if res.Anchor.ID != "case-a" {
		t.Errorf("Anchor.ID = %q, want case-a", res.Anchor.ID)
	}
	if res.TieBreak {
		t.Error("TieBreak = true, want false")
	}
}

func TestSelectContinuityOverridesTieBreak(t *testing.T) {
	s := New(spiral.DefaultConfig())

	res, err := s.Select(Input{
		Candidates:   tieBreakCandidates(0.9),
		SymptomTerms: []string{"心悸", "失眠", "多夢"},
		PrevAnchorID: "case-a",
	})
	if err != nil {
		t.Fatalf("Select returned error: %v", err)
	}

	if res.Anchor.ID != "case-a" {
		t.Errorf("Anchor.ID = %q, want previous anchor case-a", res.Anchor.ID)
	}
	if !res.KeptPrevious {
		t.Error("KeptPrevious = false, want true")
	}
	if res.TieBreak {
		t.Error("TieBreak = true, want false after continuity override")
	}
}

func TestSelectRegressionReleasesAnchor(t *testing.T) {
	s := New(spiral.DefaultConfig())

	res, err := s.Select(Input{
		Candidates:        tieBreakCandidates(0.9),
		SymptomTerms:      []string{"心悸", "失眠", "多夢"},
		PrevAnchorID:      "case-a",
		CoverageRegressed: true,
	})
	if err != nil {
		t.Fatalf("Select returned error: %v", err)
	}

	if res.Anchor.ID != "case-b" {
		t.Errorf("Anchor.ID = %q, want case-b once regression releases the anchor", res.Anchor.ID)
	}
	if res.KeptPrevious {
		t.Error("KeptPrevious = true, want false")
	}
}

func TestSelectContradictionReleasesAnchor(t *testing.T) {
	s := New(spiral.DefaultConfig())

	res, err := s.Select(Input{
		Candidates:   tieBreakCandidates(0.9),
		SymptomTerms: []string{"心悸", "失眠", "多夢"},
		PrevAnchorID: "case-a",
		Contradicted: true,
	})
	if err != nil {
		t.Fatalf("Select returned error: %v", err)
	}

	if res.Anchor.ID != "case-b" {
		t.Errorf("Anchor.ID = %q, want case-b once contradiction releases the anchor", res.Anchor.ID)
	}
}

func TestSelectContinuityHoldsOutrankedPrevious(t *testing.T) {
	s := New(spiral.DefaultConfig())

	// Wide gap, so no tie-break fires; continuity alone pulls the pick back.
	res, err := s.Select(Input{
		Candidates:   tieBreakCandidates(0.7),
		SymptomTerms: []string{"心悸", "失眠", "多夢"},
		PrevAnchorID: "case-b",
	})
	if err != nil {
		t.Fatalf("Select returned error: %v", err)
	}

	if res.Anchor.ID != "case-b" {
		t.Errorf("Anchor.ID = %q, want case-b", res.Anchor.ID)
	}
	if !res.KeptPrevious {
		t.Error("KeptPrevious = false, want true")
	}
}

func TestSelectNoCandidates(t *testing.T) {
	s := New(spiral.DefaultConfig())

	_, err := s.Select(Input{})
	if !errors.Is(err, ErrNoCandidates) {
		t.Errorf("Select on empty input = %v, want ErrNoCandidates", err)
	}
}

func TestContradicts(t *testing.T) {
	anchor := spiral.Candidate{
		ID:       "case-a",
		Pattern:  "心脾兩虛",
		Symptoms: []string{"心悸", "盜汗"},
	}

	tests := []struct {
		name     string
		negated  []string
		expected bool
	}{
		{name: "negated anchor symptom", negated: []string{"盜汗"}, expected: true},
		{name: "negated unrelated term", negated: []string{"口渴"}, expected: false},
		{name: "no negations", negated: nil, expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Contradicts(anchor, tt.negated)
			if got != tt.expected {
				t.Errorf("Contradicts(%v) = %v, want %v", tt.negated, got, tt.expected)
			}
		})
	}
}

func TestJaccard(t *testing.T) {
	tests := []struct {
		name     string
		a, b     []string
		expected float64
	}{
		{name: "identical sets", a: []string{"心悸", "失眠"}, b: []string{"心悸", "失眠"}, expected: 1.0},
		{name: "partial overlap", a: []string{"心悸", "失眠"}, b: []string{"心悸", "盜汗"}, expected: 1.0 / 3.0},
		{name: "empty query side", a: nil, b: []string{"心悸"}, expected: 0},
		{name: "empty candidate side", a: []string{"心悸"}, b: nil, expected: 0},
		{name: "duplicates collapse", a: []string{"心悸"}, b: []string{"心悸", "心悸"}, expected: 1.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := jaccard(tt.a, tt.b)
			if got != tt.expected {
				t.Errorf("jaccard(%v, %v) = %v, want %v", tt.a, tt.b, got, tt.expected)
			}
		})
	}
}

func TestSpecificity(t *testing.T) {
	tests := []struct {
		pattern  string
		expected float64
	}{
		{pattern: "心血虛", expected: 1.0},
		{pattern: "心脾兩虛", expected: 0.5},
		{pattern: "氣滯血瘀", expected: 0.3},
		{pattern: "膀胱濕熱", expected: 1.0},
	}

	for _, tt := range tests {
		t.Run(tt.pattern, func(t *testing.T) {
			got := specificity(tt.pattern)
			if got != tt.expected {
				t.Errorf("specificity(%q) = %v, want %v", tt.pattern, got, tt.expected)
			}
		})
	}
}

func TestIsCompoundPattern(t *testing.T) {
	tests := []struct {
		pattern  string
		expected bool
	}{
		{pattern: "心脾兩虛", expected: true},
		{pattern: "肝鬱脾虛", expected: true},
		{pattern: "氣血兩虛", expected: true},
		{pattern: "心血虛", expected: false},
		{pattern: "腎陰虛", expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.pattern, func(t *testing.T) {
			got := isCompoundPattern(tt.pattern)
			if got != tt.expected {
				t.Errorf("isCompoundPattern(%q) = %v, want %v", tt.pattern, got, tt.expected)
			}
		})
	}
}
