package spiral

import "time"

// Config carries the engine's tunables. The scoring weights and thresholds
// reproduce observed clinical behavior; they are configuration, not derived
// values, and should be overridden from the environment rather than edited.
type Config struct {
	// CandidateTarget is N, the candidate list size Diagnose works from.
	CandidateTarget int

	// SearchFields is the fixed fallback order of retrieval fields.
	SearchFields []string

	MaxRounds int

	// HighCoverage converges a round; ForcedFloor marks a forced
	// convergence as evidentially insufficient.
	HighCoverage float64
	ForcedFloor  float64

	// Selector blend weights.
	WeightSimilarity  float64
	WeightSymptom     float64
	WeightTonguePulse float64
	WeightSpecificity float64

	// TieBreakGap is the max score gap for the specificity tie-break.
	TieBreakGap float64

	// AnchorRegression is the coverage drop that releases the anchor.
	AnchorRegression float64

	// Convergence blend weights.
	ConvWeightCoverage float64
	ConvWeightAnchor   float64
	ConvWeightProgress float64

	// Follow-up volume band edges. Below FollowUpLow a round asks at least
	// three questions, below FollowUpMid at least two, below HighCoverage
	// at most one, and none once converged.
	FollowUpLow float64
	FollowUpMid float64

	StageTimeout       time.Duration
	UnavailableRetries int

	// VirtualCaseScore seeds the neutral sub-scores of a synthesized
	// candidate, which has no embedding to be scored against.
	VirtualCaseScore float64
}

func DefaultConfig() Config {
	return Config{
		CandidateTarget:    3,
		SearchFields:       []string{"bm25_cjk", "bm25_text"},
		MaxRounds:          8,
		HighCoverage:       0.8,
		ForcedFloor:        0.75,
		WeightSimilarity:   0.4,
		WeightSymptom:      0.3,
		WeightTonguePulse:  0.2,
		WeightSpecificity:  0.1,
		TieBreakGap:        0.08,
		AnchorRegression:   0.2,
		ConvWeightCoverage: 0.5,
		ConvWeightAnchor:   0.3,
		ConvWeightProgress: 0.2,
		FollowUpLow:        0.45,
		FollowUpMid:        0.7,
		StageTimeout:       30 * time.Second,
		UnavailableRetries: 2,
		VirtualCaseScore:   0.5,
	}
}
