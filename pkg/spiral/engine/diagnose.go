package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/MKRushil/Pulse/pkg/spiral"
	"github.com/MKRushil/Pulse/pkg/spiral/convergence"
	"github.com/MKRushil/Pulse/pkg/spiral/fusion"
	"github.com/MKRushil/Pulse/pkg/spiral/selector"
)

const diagnoseSystem = "你是一位經驗豐富的中醫師，擅長根據症狀進行辨證論治。" +
	"你以錨定案例為主軸推理，不虛構查詢中沒有的症狀。你只輸出 JSON，不輸出任何其他文字。"

type diagnosisPayload struct {
	Pattern   string   `json:"pattern"`
	Coverage  float64  `json:"coverage"`
	Missing   []string `json:"missing"`
	Narrative string   `json:"narrative"`
}

// runDiagnose anchors the round on a selected case and produces the pattern
// differentiation. Timeouts and malformed responses synthesize a degraded
// diagnosis from the raw top retrieval candidate so the pipeline still
// reaches presentation.
func (e *Engine) runDiagnose(ctx context.Context, accumulated string, candidates []spiral.Candidate,
	sess *spiral.Session, state fusion.State, result *spiral.RoundResult) (*spiral.Diagnosis, error) {

	regressed := sess.RoundCount >= 2 && sess.PrevCoverage-sess.LastCoverage >= e.cfg.AnchorRegression
	contradicted := false
	if sess.LastAnchorCaseID != "" {
		for _, c := range candidates {
			if c.ID == sess.LastAnchorCaseID {
				contradicted = selector.Contradicts(c, state.Negated)
				break
			}
		}
	}

	plan := result.Gate.Plan
	sel, err := e.selector.Select(selector.Input{
		Candidates:        candidates,
		SymptomTerms:      plan.SymptomTerms,
		TongueTerms:       plan.TongueTerms,
		PulseTerms:        plan.PulseTerms,
		PrevAnchorID:      sess.LastAnchorCaseID,
		CoverageRegressed: regressed,
		Contradicted:      contradicted,
	})
	if err != nil {
		return nil, err
	}

	event := "selected"
	switch {
	case sel.KeptPrevious:
		event = "kept_previous"
	case sel.TieBreak:
		event = "tie_break"
	}
	result.Trace = append(result.Trace, spiral.NewTraceEntry(spiral.TraceSelector, event, selector.Describe(sel.Ranked)))

	res := e.call(ctx, spiral.StageRequest{
		Stage:       spiral.StageDiagnose,
		System:      diagnoseSystem,
		Prompt:      buildDiagnosePrompt(accumulated, sel, sess.LastAnchorPattern),
		Temperature: 0.2,
	})
	if res.Failure == spiral.FailureUnavailable {
		return nil, spiral.ErrReasonerUnavailable
	}

	failure := res.Failure
	var parsed diagnosisPayload
	if failure == spiral.FailureNone {
		if uerr := json.Unmarshal([]byte(extractJSON(res.Text)), &parsed); uerr != nil || parsed.Narrative == "" {
			failure = spiral.FailureMalformed
		}
	}

	if failure != spiral.FailureNone {
		diag := e.degradedDiagnosis(accumulated, candidates[0], sel, sess, result.Round)
		result.Trace = append(result.Trace, spiral.NewTraceEntry(spiral.TraceDiagnose, "degraded",
			fmt.Sprintf("failure=%s anchor=%s coverage=%s", failure, diag.AnchorCaseID, formatFloat(diag.Coverage))))
		return diag, nil
	}

	pattern := parsed.Pattern
	if pattern == "" {
		pattern = sel.Anchor.Pattern
	}
	diag := &spiral.Diagnosis{
		AnchorCaseID: sel.Anchor.ID,
		Pattern:      pattern,
		Narrative:    parsed.Narrative,
		Coverage:     clamp01(parsed.Coverage),
		MissingInfo:  parsed.Missing,
		SubScores:    sel.SubScores,
	}
	result.Trace = append(result.Trace, spiral.NewTraceEntry(spiral.TraceDiagnose, "diagnosed",
		fmt.Sprintf("anchor=%s pattern=%s coverage=%s", diag.AnchorCaseID, diag.Pattern, formatFloat(diag.Coverage))))
	return diag, nil
}

// degradedDiagnosis is the deterministic fallback: the raw top retrieval
// candidate becomes the anchor, coverage carries over from the last
// accepted round, missing info comes from the gap categories.
func (e *Engine) degradedDiagnosis(accumulated string, top spiral.Candidate, sel selector.Result,
	sess *spiral.Session, round int) *spiral.Diagnosis {

	scores := spiral.SubScores{Similarity: top.Similarity, Blended: top.Score}
	for _, r := range sel.Ranked {
		if r.Candidate.ID == top.ID {
			scores = r.Scores
			break
		}
	}

	var narrative strings.Builder
	narrative.WriteString("初步判斷：")
	narrative.WriteString(top.Pattern)
	narrative.WriteString("。本輪推理服務降級，以最相近的案例直接作為參考")
	if top.Text != "" {
		narrative.WriteString("：")
		narrative.WriteString(top.Text)
	}
	narrative.WriteString("。")

	return &spiral.Diagnosis{
		AnchorCaseID: top.ID,
		Pattern:      top.Pattern,
		Narrative:    narrative.String(),
		Coverage:     sess.LastCoverage,
		MissingInfo:  convergence.MissingCategories(accumulated, round),
		SubScores:    scores,
		Degraded:     true,
	}
}

func buildDiagnosePrompt(accumulated string, sel selector.Result, prevPattern string) string {
	var prompt strings.Builder

	prompt.WriteString("<patient_description>\n")
	prompt.WriteString(accumulated)
	prompt.WriteString("\n</patient_description>\n\n")

	anchor := sel.Anchor
	prompt.WriteString("<anchor_case>\n")
	prompt.WriteString(fmt.Sprintf("編號: %s\n", anchor.ID))
	prompt.WriteString(fmt.Sprintf("證型: %s\n", anchor.Pattern))
	if len(anchor.Symptoms) > 0 {
		prompt.WriteString(fmt.Sprintf("症狀: %s\n", strings.Join(anchor.Symptoms, "、")))
	}
	if len(anchor.TongueTerms) > 0 {
		prompt.WriteString(fmt.Sprintf("舌象: %s\n", strings.Join(anchor.TongueTerms, "、")))
	}
	if len(anchor.PulseTerms) > 0 {
		prompt.WriteString(fmt.Sprintf("脈象: %s\n", strings.Join(anchor.PulseTerms, "、")))
	}
	if anchor.Text != "" {
		prompt.WriteString(fmt.Sprintf("描述: %s\n", anchor.Text))
	}
	prompt.WriteString("</anchor_case>\n\n")

	prompt.WriteString("<other_candidates>\n")
	for _, r := range sel.Ranked {
		if r.Candidate.ID == anchor.ID {
			continue
		}
		prompt.WriteString(fmt.Sprintf("%s: %s (相似度 %.2f)\n", r.Candidate.ID, r.Candidate.Pattern, r.Scores.Blended))
	}
	prompt.WriteString("</other_candidates>\n\n")

	if prevPattern != "" {
		prompt.WriteString("<previous_round>\n")
		prompt.WriteString(fmt.Sprintf("上一輪證型判斷: %s\n", prevPattern))
		prompt.WriteString("</previous_round>\n\n")
	}

	prompt.WriteString("<task>\n")
	prompt.WriteString("以錨定案例為主軸，對患者描述進行辨證:\n")
	prompt.WriteString("1. pattern: 證型名稱，以錨定案例證型為準，僅在描述明顯不符時修正\n")
	prompt.WriteString("2. coverage: 0 到 1 之間，患者主訴能被此證型解釋的比例\n")
	prompt.WriteString("3. missing: 仍缺少的關鍵資訊類別（如 舌象、脈象、睡眠）\n")
	prompt.WriteString("4. narrative: 病機分析，說明症狀如何對應證型，使用白話並附簡短解釋\n")
	prompt.WriteString("</task>\n\n")

	prompt.WriteString("<output_structure>\n")
	prompt.WriteString("{\"pattern\": \"\", \"coverage\": 0.0, \"missing\": [], \"narrative\": \"\"}\n")
	prompt.WriteString("</output_structure>\n")

	return prompt.String()
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
