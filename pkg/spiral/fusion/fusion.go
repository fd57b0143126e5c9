// Package fusion folds each round's input into the session's running
// picture of the patient: the append-only accumulated query, the positive
// symptom set, negations, and the pinned terms that must survive rounds.
package fusion

import (
	"regexp"
	"sort"
	"strings"
)

// Separators for the accumulated-query concatenation rule. The accumulated
// query is only ever extended, never rewritten.
const (
	supplementSep        = "。補充："
	furtherSupplementSep = "。再補充："
)

// Accumulate appends a round's raw input to the prior accumulated query.
// round is the 1-based number of the round being run.
func Accumulate(prior, input string, round int) string {
	if round <= 1 || prior == "" {
		return input
	}
	if round == 2 {
		return prior + supplementSep + input
	}
	return prior + furtherSupplementSep + input
}

// negationRe captures the term following a negation marker. Up to four
// characters, stopped by clause punctuation.
var negationRe = regexp.MustCompile(`(?:沒有|無|不|未)([^，。；、\s]{1,4})`)

// Negations extracts the terms a patient denies in the text.
func Negations(text string) []string {
	matches := negationRe.FindAllStringSubmatch(text, -1)
	seen := make(map[string]bool)
	var out []string
	for _, m := range matches {
		t := m[1]
		if t != "" && !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	return out
}

var tokenSplitRe = regexp.MustCompile(`[，。、；\s]+`)

// Tokenize splits free text on clause punctuation and keeps tokens of two
// to four runes, the usual length of a symptom mention.
func Tokenize(text string) []string {
	var out []string
	for _, t := range tokenSplitRe.Split(text, -1) {
		n := len([]rune(t))
		if n >= 2 && n <= 4 {
			out = append(out, t)
		}
	}
	return out
}

// State is the fused patient context carried on the session between rounds.
type State struct {
	Active   []string
	Negated  []string
	KeySigns []string
	Pinned   []string
	Sources  map[string][]int
}

// Update folds one round's input and the gate's plan terms into the running
// state. Negations drop terms from the active set; sources record which
// rounds asserted each term; the top-scored key signs become pinned.
func Update(prev State, input string, planTerms []string, round int) State {
	negatedNow := Negations(input)

	incoming := dedupe(append(Tokenize(input), planTerms...))

	active := make(map[string]bool)
	for _, t := range prev.Active {
		active[t] = true
	}
	for _, t := range incoming {
		active[t] = true
	}

	negated := make(map[string]bool)
	for _, t := range prev.Negated {
		negated[t] = true
	}
	for _, t := range negatedNow {
		negated[t] = true
		delete(active, t)
	}

	sources := make(map[string][]int, len(prev.Sources))
	for t, rounds := range prev.Sources {
		sources[t] = append([]int(nil), rounds...)
	}
	for _, t := range incoming {
		if active[t] {
			sources[t] = append(sources[t], round)
		}
	}

	activeList := make([]string, 0, len(active))
	for t := range active {
		activeList = append(activeList, t)
	}
	sort.Strings(activeList)

	negatedList := make([]string, 0, len(negated))
	for t := range negated {
		negatedList = append(negatedList, t)
	}
	sort.Strings(negatedList)

	keySigns := rankKeySigns(activeList, sources)

	return State{
		Active:   activeList,
		Negated:  negatedList,
		KeySigns: keySigns,
		Pinned:   pinTerms(keySigns, round),
		Sources:  sources,
	}
}

// ContainsAny reports whether text mentions any of the terms.
func ContainsAny(text string, terms []string) bool {
	for _, t := range terms {
		if t != "" && strings.Contains(text, t) {
			return true
		}
	}
	return false
}

func dedupe(terms []string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, t := range terms {
		if t != "" && !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	return out
}
