package fusion

import "sort"

// keySignLexicon lists symptom mentions that carry extra diagnostic weight
// regardless of how often the patient repeats them.
var keySignLexicon = map[string]bool{
	"失眠": true,
	"心悸": true,
	"頭暈": true,
	"胸悶": true,
	"腹痛": true,
	"發熱": true,
	"咳嗽": true,
	"腰痠": true,
	"耳鳴": true,
	"盜汗": true,
}

const maxKeySigns = 5

// rankKeySigns scores active terms by repeat frequency, lexicon importance
// and cross-round persistence, and returns the top few.
func rankKeySigns(active []string, sources map[string][]int) []string {
	type scored struct {
		term  string
		score float64
	}

	ranked := make([]scored, 0, len(active))
	for _, term := range active {
		rounds := sources[term]
		score := float64(len(rounds)) * 0.3
		if keySignLexicon[term] {
			score += 0.5
		}
		distinct := make(map[int]bool)
		for _, r := range rounds {
			distinct[r] = true
		}
		if len(distinct) > 1 {
			score += 0.2
		}
		ranked = append(ranked, scored{term: term, score: score})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		return ranked[i].term < ranked[j].term
	})

	n := maxKeySigns
	if len(ranked) < n {
		n = len(ranked)
	}
	out := make([]string, n)
	for i := 0; i < n; i++ {
		out[i] = ranked[i].term
	}
	return out
}

// pinTerms picks the key signs that must survive into later rounds'
// retrieval. Later rounds pin deeper into the list.
func pinTerms(keySigns []string, round int) []string {
	n := 3
	if round >= 3 {
		n = maxKeySigns
	}
	if len(keySigns) < n {
		n = len(keySigns)
	}
	return append([]string(nil), keySigns[:n]...)
}
