package retrieval

import (
	"strings"

	"github.com/MKRushil/Pulse/pkg/spiral"
)

const (
	DomainDigestive     = "digestive"
	DomainGynecological = "gynecological"
	DomainGeneral       = "general"
)

var digestiveWords = []string{"胃", "脘", "脹", "噯氣", "嗳氣", "早飽", "脾胃", "食慾不振"}

var gynecologicalWords = []string{"帶下", "白帶", "陰道", "月經", "經期", "婦科"}

// ClassifyDomain assigns a coarse domain tag by keyword family. It is a
// heuristic for candidate reordering, not a diagnosis.
func ClassifyDomain(text string) string {
	if text == "" {
		return DomainGeneral
	}
	for _, w := range digestiveWords {
		if strings.Contains(text, w) {
			return DomainDigestive
		}
	}
	for _, w := range gynecologicalWords {
		if strings.Contains(text, w) {
			return DomainGynecological
		}
	}
	return DomainGeneral
}

// reorderByDomain moves candidates tagged with the query's domain to the
// front, keeping relative order inside both groups. relaxed reports that no
// candidate shared the domain and the original order was kept.
func reorderByDomain(candidates []spiral.Candidate, domain string) (out []spiral.Candidate, relaxed bool) {
	if domain == DomainGeneral {
		return candidates, false
	}

	var same, other []spiral.Candidate
	for _, c := range candidates {
		if c.Domain == domain {
			same = append(same, c)
		} else {
			other = append(other, c)
		}
	}
	if len(same) == 0 {
		return candidates, true
	}
	return append(same, other...), false
}
