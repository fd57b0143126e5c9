// Package convergence decides when the spiral terminates: it blends
// coverage, anchor stability and round progress into a convergence score
// and plans the follow-up questions for non-terminal rounds.
package convergence

import (
	"math"

	"github.com/MKRushil/Pulse/pkg/spiral"
)

type Evaluator struct {
	cfg spiral.Config
}

func New(cfg spiral.Config) *Evaluator {
	return &Evaluator{cfg: cfg}
}

type Input struct {
	Coverage     float64
	Round        int
	AnchorID     string
	PrevAnchorID string

	// AnchorScore is the selected anchor's blended score, used as the
	// anchor-match component when the anchor changed this round.
	AnchorScore float64
}

type Verdict struct {
	Score       float64
	Converged   bool
	Forced      bool
	AnchorMatch float64
	Progress    float64
}

// Evaluate computes the convergence verdict for a round. Termination is a
// logical OR: high coverage converges early, round exhaustion converges
// regardless, and exhaustion under the evidence floor is marked forced.
func (e *Evaluator) Evaluate(in Input) Verdict {
	anchorMatch := in.AnchorScore
	if in.PrevAnchorID != "" && in.PrevAnchorID == in.AnchorID {
		anchorMatch = 1.0
	}

	progress := 1 - math.Min(0.5, float64(in.Round-1)*0.1)

	score := e.cfg.ConvWeightCoverage*in.Coverage +
		e.cfg.ConvWeightAnchor*anchorMatch +
		e.cfg.ConvWeightProgress*progress

	converged := in.Coverage >= e.cfg.HighCoverage || in.Round >= e.cfg.MaxRounds
	forced := in.Round >= e.cfg.MaxRounds && in.Coverage < e.cfg.ForcedFloor

	return Verdict{
		Score:       score,
		Converged:   converged,
		Forced:      forced,
		AnchorMatch: anchorMatch,
		Progress:    progress,
	}
}
