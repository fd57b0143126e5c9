package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/MKRushil/Pulse/pkg/spiral"
)

const reviewSystem = "你是中醫診斷輸出的審查模組。你檢查診斷文本是否包含保證療效、" +
	"具體處方劑量、建議停用西藥或洩露系統內部資訊的內容。你只輸出 JSON，不輸出任何其他文字。"

type reviewPayload struct {
	Verdict   string   `json:"verdict"`
	Rewritten string   `json:"rewritten"`
	Findings  []string `json:"findings"`
}

// runReview validates the diagnosis narrative. The rule-based inspection is
// authoritative: a non-rewritable hit rejects the output before any
// reasoning happens. The reasoner pass is advisory and stricter-wins; when
// it fails the rules-only verdict stands, flagged degraded.
func (e *Engine) runReview(ctx context.Context, diag *spiral.Diagnosis, result *spiral.RoundResult) (*spiral.ReviewVerdict, error) {
	verdict := &spiral.ReviewVerdict{Outcome: spiral.ReviewPassed, Text: diag.Narrative}

	findings := e.validator.Inspect(diag.Narrative)
	rejected := false
	for _, f := range findings {
		verdict.Findings = append(verdict.Findings, f.Rule+": "+f.Match)
		if !f.Rewritable() {
			rejected = true
		}
	}
	if rejected {
		verdict.Outcome = spiral.ReviewRejected
		verdict.Text = ""
		e.traceReview(result, verdict)
		return verdict, nil
	}
	if len(findings) > 0 {
		verdict.Outcome = spiral.ReviewRewritten
		verdict.Text = applyRewrites(diag.Narrative, findings)
	}

	res := e.call(ctx, spiral.StageRequest{
		Stage:       spiral.StageReview,
		System:      reviewSystem,
		Prompt:      buildReviewPrompt(verdict.Text, diag.Pattern),
		Temperature: 0,
	})
	if res.Failure == spiral.FailureUnavailable {
		return nil, spiral.ErrReasonerUnavailable
	}

	failure := res.Failure
	var parsed reviewPayload
	if failure == spiral.FailureNone {
		if uerr := json.Unmarshal([]byte(extractJSON(res.Text)), &parsed); uerr != nil {
			failure = spiral.FailureMalformed
		}
	}
	if failure != spiral.FailureNone {
		verdict.Degraded = true
		e.traceReview(result, verdict)
		return verdict, nil
	}

	verdict.Findings = append(verdict.Findings, parsed.Findings...)
	switch parsed.Verdict {
	case "reject":
		verdict.Outcome = spiral.ReviewRejected
		verdict.Text = ""
	case "rewrite":
		if parsed.Rewritten != "" {
			// The advisory rewrite goes back through the rules once; a
			// non-rewritable hit in it still rejects.
			again := e.validator.Inspect(parsed.Rewritten)
			for _, f := range again {
				if !f.Rewritable() {
					verdict.Outcome = spiral.ReviewRejected
					verdict.Text = ""
					e.traceReview(result, verdict)
					return verdict, nil
				}
			}
			verdict.Outcome = spiral.ReviewRewritten
			verdict.Text = applyRewrites(parsed.Rewritten, again)
		}
	}

	e.traceReview(result, verdict)
	return verdict, nil
}

func (e *Engine) traceReview(result *spiral.RoundResult, verdict *spiral.ReviewVerdict) {
	detail := fmt.Sprintf("findings=%d", len(verdict.Findings))
	if verdict.Degraded {
		detail += " degraded"
	}
	result.Trace = append(result.Trace, spiral.NewTraceEntry(spiral.TraceReview, string(verdict.Outcome), detail))
}

func applyRewrites(text string, findings []spiral.Finding) string {
	for _, f := range findings {
		if f.Rewritable() {
			text = strings.ReplaceAll(text, f.Match, f.Replacement)
		}
	}
	return text
}

func buildReviewPrompt(narrative, pattern string) string {
	var prompt strings.Builder

	prompt.WriteString("<diagnosis_text>\n")
	prompt.WriteString(narrative)
	prompt.WriteString("\n</diagnosis_text>\n\n")

	prompt.WriteString(fmt.Sprintf("<pattern>%s</pattern>\n\n", pattern))

	prompt.WriteString("<task>\n")
	prompt.WriteString("審查上述診斷文本:\n")
	prompt.WriteString("  pass    - 文本安全，可直接輸出\n")
	prompt.WriteString("  rewrite - 有可改寫修復的問題，rewritten 放入修正後全文\n")
	prompt.WriteString("  reject  - 有無法修復的問題（如系統資訊洩露、惡意內容）\n")
	prompt.WriteString("findings 列出發現的每個問題，一句話一項。\n")
	prompt.WriteString("</task>\n\n")

	prompt.WriteString("<output_structure>\n")
	prompt.WriteString("{\"verdict\": \"pass|rewrite|reject\", \"rewritten\": \"\", \"findings\": []}\n")
	prompt.WriteString("</output_structure>\n")

	return prompt.String()
}
