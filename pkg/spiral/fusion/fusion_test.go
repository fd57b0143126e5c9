package fusion

import (
	"reflect"
	"testing"
)

func TestAccumulate(t *testing.T) {
	tests := []struct {
		name     string
		prior    string
		input    string
		round    int
		expected string
	}{
		{name: "first round returns input", prior: "", input: "心悸失眠", round: 1, expected: "心悸失眠"},
		{name: "empty prior returns input regardless of round", prior: "", input: "心悸失眠", round: 4, expected: "心悸失眠"},
		{name: "second round uses supplement separator", prior: "心悸失眠", input: "食慾不佳", round: 2, expected: "心悸失眠。補充：食慾不佳"},
		{name: "third round uses further separator", prior: "心悸失眠。補充：食慾不佳", input: "沒有盜汗", round: 3, expected: "心悸失眠。補充：食慾不佳。再補充：沒有盜汗"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Accumulate(tt.prior, tt.input, tt.round)
			if got != tt.expected {
				t.Errorf("Accumulate(%q, %q, %d) = %q, want %q", tt.prior, tt.input, tt.round, got, tt.expected)
			}
		})
	}
}

func TestNegations(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{name: "single denial", input: "沒有盜汗", expected: []string{"盜汗"}},
		{name: "multiple markers", input: "沒有盜汗，無發熱", expected: []string{"盜汗", "發熱"}},
		{name: "short marker", input: "不口渴，未咳嗽", expected: []string{"口渴", "咳嗽"}},
		{name: "repeated denial deduplicated", input: "沒有盜汗，真的沒有盜汗", expected: []string{"盜汗"}},
		{name: "no negation", input: "失眠多夢", expected: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Negations(tt.input)
			if !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("Negations(%q) = %v, want %v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestTokenize(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{name: "clause punctuation splits", input: "心悸，失眠。多夢", expected: []string{"心悸", "失眠", "多夢"}},
		{name: "single rune dropped", input: "累，心悸", expected: []string{"心悸"}},
		{name: "long clause dropped", input: "最近三個月心悸，失眠", expected: []string{"失眠"}},
		{name: "whitespace separates", input: "心悸 失眠\n頭暈", expected: []string{"心悸", "失眠", "頭暈"}},
		{name: "empty input", input: "", expected: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Tokenize(tt.input)
			if !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("Tokenize(%q) = %v, want %v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestUpdateFirstRound(t *testing.T) {
	st := Update(State{}, "心悸，失眠，最近很累", []string{"心悸", "怔忡"}, 1)

	wantActive := []string{"失眠", "心悸", "怔忡", "最近很累"}
	if !reflect.DeepEqual(st.Active, wantActive) {
		t.Errorf("Active = %v, want %v", st.Active, wantActive)
	}
	if len(st.Negated) != 0 {
		t.Errorf("Negated = %v, want empty", st.Negated)
	}
	// 失眠 and 心悸 carry lexicon weight and outrank the free-text terms.
	wantPinned := []string{"失眠", "心悸", "怔忡"}
	if !reflect.DeepEqual(st.Pinned, wantPinned) {
		t.Errorf("Pinned = %v, want %v", st.Pinned, wantPinned)
	}
	if !reflect.DeepEqual(st.Sources["心悸"], []int{1}) {
		t.Errorf("Sources[心悸] = %v, want [1]", st.Sources["心悸"])
	}
}

func TestUpdateNegationDropsActiveTerm(t *testing.T) {
	prev := State{
		Active:  []string{"心悸", "盜汗"},
		Sources: map[string][]int{"心悸": {1}, "盜汗": {1}},
	}

	st := Update(prev, "一直都沒有盜汗，頭暈加重", nil, 2)

	wantActive := []string{"心悸", "頭暈加重"}
	if !reflect.DeepEqual(st.Active, wantActive) {
		t.Errorf("Active = %v, want %v", st.Active, wantActive)
	}
	if !reflect.DeepEqual(st.Negated, []string{"盜汗"}) {
		t.Errorf("Negated = %v, want [盜汗]", st.Negated)
	}
}

func TestUpdateTracksSourcesAcrossRounds(t *testing.T) {
	st := Update(State{}, "失眠", nil, 1)
	st = Update(st, "失眠，口乾", nil, 2)

	if !reflect.DeepEqual(st.Sources["失眠"], []int{1, 2}) {
		t.Errorf("Sources[失眠] = %v, want [1 2]", st.Sources["失眠"])
	}
	if !reflect.DeepEqual(st.Sources["口乾"], []int{2}) {
		t.Errorf("Sources[口乾] = %v, want [2]", st.Sources["口乾"])
	}
	// A term asserted in two distinct rounds outranks a newer single-round one.
	if len(st.KeySigns) == 0 || st.KeySigns[0] != "失眠" {
		t.Errorf("KeySigns = %v, want 失眠 first", st.KeySigns)
	}
}

func TestUpdatePinWidthGrowsWithRound(t *testing.T) {
	terms := []string{"失眠", "心悸", "頭暈", "盜汗", "耳鳴", "胸悶"}

	early := Update(State{}, "", terms, 1)
	if len(early.Pinned) != 3 {
		t.Errorf("round 1 pinned %d terms, want 3", len(early.Pinned))
	}

	late := Update(State{}, "", terms, 3)
	if len(late.Pinned) != 5 {
		t.Errorf("round 3 pinned %d terms, want 5", len(late.Pinned))
	}
}

func TestContainsAny(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		terms    []string
		expected bool
	}{
		{name: "direct mention", text: "舌淡苔白，脈細弱", terms: []string{"舌"}, expected: true},
		{name: "second term matches", text: "脈象沉細", terms: []string{"舌", "脈"}, expected: true},
		{name: "no mention", text: "失眠多夢", terms: []string{"舌", "脈"}, expected: false},
		{name: "empty terms", text: "失眠多夢", terms: nil, expected: false},
		{name: "empty term skipped", text: "失眠多夢", terms: []string{""}, expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ContainsAny(tt.text, tt.terms)
			if got != tt.expected {
				t.Errorf("ContainsAny(%q, %v) = %v, want %v", tt.text, tt.terms, got, tt.expected)
			}
		})
	}
}
