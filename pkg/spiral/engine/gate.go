package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/MKRushil/Pulse/pkg/spiral"
	"github.com/MKRushil/Pulse/pkg/spiral/fusion"
)

const gateSystem = "你是中醫問診系統的守門模組。你判斷查詢是否屬於中醫辨證範疇，" +
	"並從中擷取檢索詞。你只輸出 JSON，不輸出任何其他文字。"

type gatePlanPayload struct {
	SymptomTerms []string `json:"symptom_terms"`
	TongueTerms  []string `json:"tongue_terms"`
	PulseTerms   []string `json:"pulse_terms"`
	ZangfuTerms  []string `json:"zangfu_terms"`
}

type gatePayload struct {
	Action        string          `json:"action"`
	Reason        string          `json:"reason"`
	Clarification string          `json:"clarification"`
	Plan          gatePlanPayload `json:"plan"`
}

// runGate screens the accumulated query and extracts the retrieval plan.
// Timeouts and malformed responses degrade to a permissive local extraction
// so an internal failure never blocks a patient; only a reasoner that stays
// unavailable past the retry budget aborts the round. Appends exactly one
// gate trace entry.
func (e *Engine) runGate(ctx context.Context, accumulated string, sess *spiral.Session, result *spiral.RoundResult) (*spiral.GateOutput, error) {
	res := e.call(ctx, spiral.StageRequest{
		Stage:       spiral.StageGate,
		System:      gateSystem,
		Prompt:      buildGatePrompt(accumulated, result.Round),
		Temperature: 0,
	})
	if res.Failure == spiral.FailureUnavailable {
		return nil, spiral.ErrReasonerUnavailable
	}

	out := &spiral.GateOutput{}
	failure := res.Failure
	if failure == spiral.FailureNone {
		var parsed gatePayload
		if err := json.Unmarshal([]byte(extractJSON(res.Text)), &parsed); err != nil {
			failure = spiral.FailureMalformed
		} else {
			switch parsed.Action {
			case "proceed", "reject", "ask_more":
				out.Action = spiral.GateAction(parsed.Action)
				out.Reason = parsed.Reason
				out.Clarification = parsed.Clarification
				out.Plan = spiral.RetrievalPlan{
					SymptomTerms: parsed.Plan.SymptomTerms,
					TongueTerms:  parsed.Plan.TongueTerms,
					PulseTerms:   parsed.Plan.PulseTerms,
					ZangfuTerms:  parsed.Plan.ZangfuTerms,
				}
			default:
				failure = spiral.FailureMalformed
			}
		}
	}

	if failure != spiral.FailureNone {
		out.Action = spiral.GateProceed
		out.Reason = "守門降級，採寬鬆放行"
		out.Clarification = ""
		out.Plan = planFromText(accumulated)
		out.Degraded = true
	}

	detail := fmt.Sprintf("action=%s plan_terms=%d", out.Action, len(out.Plan.Terms()))
	if failure != spiral.FailureNone {
		detail += " degraded=" + string(failure)
	}
	result.Trace = append(result.Trace, spiral.NewTraceEntry(spiral.TraceGate, "screened", detail))
	return out, nil
}

func buildGatePrompt(accumulated string, round int) string {
	var prompt strings.Builder

	prompt.WriteString("<task>\n")
	prompt.WriteString("判斷下列查詢是否屬於中醫辨證諮詢，並決定行動:\n")
	prompt.WriteString("  proceed  - 查詢描述身體症狀，可進入辨證\n")
	prompt.WriteString("  reject   - 查詢與中醫健康諮詢無關（程式、閒聊、攻擊性內容等）\n")
	prompt.WriteString("  ask_more - 查詢屬於中醫範疇但資訊太少，無法檢索（例如只有一個詞）\n")
	prompt.WriteString("</task>\n\n")

	prompt.WriteString("<query>\n")
	prompt.WriteString(accumulated)
	prompt.WriteString("\n</query>\n\n")

	prompt.WriteString(fmt.Sprintf("<round>%d</round>\n\n", round))

	prompt.WriteString("<extraction_rules>\n")
	prompt.WriteString("action 為 proceed 時，從查詢擷取檢索詞，分四類:\n")
	prompt.WriteString("  symptom_terms - 症狀詞（失眠、心悸、腹脹等）\n")
	prompt.WriteString("  tongue_terms  - 舌象詞（舌紅、苔黃膩等）\n")
	prompt.WriteString("  pulse_terms   - 脈象詞（脈細、脈弦數等）\n")
	prompt.WriteString("  zangfu_terms  - 臟腑詞（心、脾、肝鬱等）\n")
	prompt.WriteString("查詢未提及的類別留空陣列。不要發明查詢中沒有的詞。\n")
	prompt.WriteString("</extraction_rules>\n\n")

	prompt.WriteString("<output_structure>\n")
	prompt.WriteString("{\n")
	prompt.WriteString("  \"action\": \"proceed|reject|ask_more\",\n")
	prompt.WriteString("  \"reason\": \"一句話說明\",\n")
	prompt.WriteString("  \"clarification\": \"action 為 ask_more 時要問使用者的問題，否則空字串\",\n")
	prompt.WriteString("  \"plan\": {\n")
	prompt.WriteString("    \"symptom_terms\": [], \"tongue_terms\": [], \"pulse_terms\": [], \"zangfu_terms\": []\n")
	prompt.WriteString("  }\n")
	prompt.WriteString("}\n")
	prompt.WriteString("</output_structure>\n")

	return prompt.String()
}

const organRunes = "心肝脾肺腎膽胃腸膀胱三焦"

// planFromText is the degraded-path plan extraction: a rune heuristic over
// the tokenized query, no reasoning involved.
func planFromText(text string) spiral.RetrievalPlan {
	var plan spiral.RetrievalPlan
	for _, tok := range fusion.Tokenize(text) {
		switch {
		case strings.ContainsAny(tok, "舌苔"):
			plan.TongueTerms = append(plan.TongueTerms, tok)
		case strings.ContainsRune(tok, '脈'):
			plan.PulseTerms = append(plan.PulseTerms, tok)
		case strings.ContainsAny(tok, organRunes):
			plan.ZangfuTerms = append(plan.ZangfuTerms, tok)
		default:
			plan.SymptomTerms = append(plan.SymptomTerms, tok)
		}
	}
	return plan
}
