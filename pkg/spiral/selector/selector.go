// Package selector scores retrieval candidates and anchors one case per
// round, with a specificity tie-break and a cross-round continuity rule.
package selector

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/MKRushil/Pulse/pkg/spiral"
)

var ErrNoCandidates = errors.New("selector: no candidates to score")

type Selector struct {
	cfg spiral.Config
}

func New(cfg spiral.Config) *Selector {
	return &Selector{cfg: cfg}
}

// Input carries one round's scoring context. CoverageRegressed and
// Contradicted are computed by the caller from session history; the
// selector only consumes the verdicts.
type Input struct {
	Candidates   []spiral.Candidate
	SymptomTerms []string
	TongueTerms  []string
	PulseTerms   []string

	PrevAnchorID      string
	CoverageRegressed bool
	Contradicted      bool
}

// Scored pairs a candidate with its component scores.
type Scored struct {
	Candidate spiral.Candidate
	Scores    spiral.SubScores
}

type Result struct {
	Anchor    spiral.Candidate
	SubScores spiral.SubScores
	Ranked    []Scored
	TieBreak  bool
	// KeptPrevious is set when the continuity rule held the prior anchor
	// against a different top-scored candidate.
	KeptPrevious bool
}

// Select scores every candidate, applies the specificity tie-break, then
// the continuity rule against the previous anchor.
func (s *Selector) Select(in Input) (Result, error) {
	if len(in.Candidates) == 0 {
		return Result{}, ErrNoCandidates
	}

	ranked := make([]Scored, len(in.Candidates))
	for i, c := range in.Candidates {
		ranked[i] = Scored{Candidate: c, Scores: s.score(c, in)}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Scores.Blended > ranked[j].Scores.Blended
	})

	pick := 0
	tieBreak := false

	// Specificity tie-break: a compound pattern barely ahead of a
	// single-organ one loses to it.
	if len(ranked) >= 2 {
		top, second := ranked[0], ranked[1]
		gap := top.Scores.Blended - second.Scores.Blended
		if gap <= s.cfg.TieBreakGap &&
			isCompoundPattern(top.Candidate.Pattern) &&
			organCount(second.Candidate.Pattern) == 1 {
			pick = 1
			tieBreak = true
		}
	}

	keptPrevious := false
	if in.PrevAnchorID != "" && !in.CoverageRegressed && !in.Contradicted {
		if prev := indexOfID(ranked, in.PrevAnchorID); prev >= 0 && prev != pick {
			pick = prev
			keptPrevious = true
			tieBreak = false
		}
	}

	return Result{
		Anchor:       ranked[pick].Candidate,
		SubScores:    ranked[pick].Scores,
		Ranked:       ranked,
		TieBreak:     tieBreak,
		KeptPrevious: keptPrevious,
	}, nil
}

// Contradicts reports whether newly negated terms strike at the anchor's
// own symptom set, which releases the continuity rule.
func Contradicts(anchor spiral.Candidate, negated []string) bool {
	if len(negated) == 0 {
		return false
	}
	member := make(map[string]bool, len(anchor.Symptoms))
	for _, t := range anchor.Symptoms {
		member[t] = true
	}
	for _, t := range negated {
		if member[t] {
			return true
		}
	}
	return false
}

func (s *Selector) score(c spiral.Candidate, in Input) spiral.SubScores {
	symptomJac := jaccard(in.SymptomTerms, c.Symptoms)
	tongueJac := jaccard(in.TongueTerms, c.TongueTerms)
	pulseJac := jaccard(in.PulseTerms, c.PulseTerms)
	tpAvg := (tongueJac + pulseJac) / 2
	spec := specificity(c.Pattern)

	blended := s.cfg.WeightSimilarity*c.Similarity +
		s.cfg.WeightSymptom*symptomJac +
		s.cfg.WeightTonguePulse*tpAvg +
		s.cfg.WeightSpecificity*spec

	return spiral.SubScores{
		Similarity:         c.Similarity,
		SymptomJaccard:     symptomJac,
		TonguePulseJaccard: tpAvg,
		Specificity:        spec,
		Blended:            blended,
	}
}

// jaccard treats two empty sets as zero overlap rather than perfect
// agreement, so missing data never inflates a score.
func jaccard(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	setA := make(map[string]bool, len(a))
	for _, t := range a {
		setA[t] = true
	}
	inter := 0
	setB := make(map[string]bool, len(b))
	for _, t := range b {
		if setB[t] {
			continue
		}
		setB[t] = true
		if setA[t] {
			inter++
		}
	}
	union := len(setA) + len(setB) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

// zangfuOrgans are the organ characters counted for pattern specificity.
var zangfuOrgans = []string{"心", "肝", "脾", "肺", "腎", "膽", "胃", "腸", "膀胱", "三焦"}

var compoundMarkers = []string{"兩", "雙", "合"}

func organCount(pattern string) int {
	n := 0
	for _, organ := range zangfuOrgans {
		if strings.Contains(pattern, organ) {
			n++
		}
	}
	return n
}

func isCompoundPattern(pattern string) bool {
	if organCount(pattern) >= 2 {
		return true
	}
	for _, m := range compoundMarkers {
		if strings.Contains(pattern, m) {
			return true
		}
	}
	return false
}

// specificity favors single-organ patterns: the narrower the label, the
// more actionable the diagnosis.
func specificity(pattern string) float64 {
	switch organCount(pattern) {
	case 1:
		return 1.0
	case 2:
		return 0.5
	default:
		return 0.3
	}
}

func indexOfID(ranked []Scored, id string) int {
	for i, r := range ranked {
		if r.Candidate.ID == id {
			return i
		}
	}
	return -1
}

// Describe renders the ranked list for trace details.
func Describe(ranked []Scored) string {
	parts := make([]string, 0, len(ranked))
	for _, r := range ranked {
		parts = append(parts, fmt.Sprintf("%s(%s)=%.3f", r.Candidate.ID, r.Candidate.Pattern, r.Scores.Blended))
	}
	return strings.Join(parts, ", ")
}
