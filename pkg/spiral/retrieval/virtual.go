package retrieval

import (
	"crypto/md5"
	"encoding/hex"

	"github.com/MKRushil/Pulse/pkg/spiral"
)

// NewVirtualCandidate synthesizes a candidate from the live query and the
// gate's plan terms. It exists only inside one round's candidate list and
// is never persisted; the neutral score stands in for the sub-scores a
// real corpus hit would carry.
func NewVirtualCandidate(query string, plan spiral.RetrievalPlan, neutralScore float64) spiral.Candidate {
	sum := md5.Sum([]byte(query))

	return spiral.Candidate{
		ID:          "virtual-" + hex.EncodeToString(sum[:])[:8],
		Pattern:     "待定",
		Symptoms:    append([]string(nil), plan.SymptomTerms...),
		TongueTerms: append([]string(nil), plan.TongueTerms...),
		PulseTerms:  append([]string(nil), plan.PulseTerms...),
		ZangfuTerms: append([]string(nil), plan.ZangfuTerms...),
		Text:        query,
		Domain:      ClassifyDomain(query),
		Similarity:  neutralScore,
		Lexical:     neutralScore,
		Score:       neutralScore,
		Virtual:     true,
	}
}
