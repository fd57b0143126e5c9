package convergence

import (
	"sort"
	"strings"
)

// gapCategory is one examination area the dialogue may still be missing.
// Tongue and pulse lead the priority order; the first round promotes them
// further because no differential diagnosis works without them.
type gapCategory struct {
	name     string
	keywords []string
	template string
	priority int
}

var gapCategories = []gapCategory{
	{"tongue", []string{"舌象", "舌質", "舌苔", "舌"}, "請描述舌象（舌質顏色：紅/淡/暗，舌苔：薄白/厚膩/黃膩）", 1},
	{"pulse", []string{"脈象", "脈搏", "脈"}, "請描述脈象（浮/沉、遲/數、滑/澀、弦/細等）", 2},
	{"sleep", []string{"睡眠", "失眠", "入睡", "早醒"}, "睡眠狀況如何？（入睡困難/易醒/早醒/多夢）", 3},
	{"sweat", []string{"汗", "盜汗", "自汗"}, "出汗情況？（自汗/盜汗/無汗）", 4},
	{"appetite", []string{"食慾", "納", "飲食"}, "食慾如何？一天幾餐？", 5},
	{"stool", []string{"大便", "便秘", "腹瀉"}, "大便情況？（乾/溏/正常，次數）", 6},
	{"urination", []string{"小便", "尿"}, "小便情況？（頻數/不利/正常）", 7},
	{"emotion", []string{"情緒", "煩躁", "抑鬱"}, "情緒狀態？（易怒/抑鬱/焦慮/正常）", 8},
}

// MissingCategories returns the names of gap categories the accumulated
// query never touches, in priority order for the given round.
func MissingCategories(accumulated string, round int) []string {
	var missing []gapCategory
	for _, cat := range gapCategories {
		found := false
		for _, kw := range cat.keywords {
			if strings.Contains(accumulated, kw) {
				found = true
				break
			}
		}
		if !found {
			missing = append(missing, cat)
		}
	}

	sort.SliceStable(missing, func(i, j int) bool {
		return effectivePriority(missing[i], round) < effectivePriority(missing[j], round)
	})

	names := make([]string, len(missing))
	for i, cat := range missing {
		names[i] = cat.name
	}
	return names
}

func effectivePriority(cat gapCategory, round int) int {
	if round == 1 && (cat.name == "tongue" || cat.name == "pulse") {
		return 0
	}
	return cat.priority
}

// Quota maps a coverage ratio onto the follow-up volume policy band.
func (e *Evaluator) Quota(coverage float64) int {
	switch {
	case coverage < e.cfg.FollowUpLow:
		return 3
	case coverage < e.cfg.FollowUpMid:
		return 2
	case coverage < e.cfg.HighCoverage:
		return 1
	default:
		return 0
	}
}

// Questions plans the round's follow-up prompts: the quota for the current
// coverage band, filled from the highest-priority missing categories.
func (e *Evaluator) Questions(accumulated string, coverage float64, round int) []string {
	quota := e.Quota(coverage)
	if quota == 0 {
		return nil
	}

	missing := MissingCategories(accumulated, round)
	if len(missing) > quota {
		missing = missing[:quota]
	}

	questions := make([]string, 0, len(missing))
	for _, name := range missing {
		for _, cat := range gapCategories {
			if cat.name == name {
				questions = append(questions, cat.template)
				break
			}
		}
	}
	return questions
}
