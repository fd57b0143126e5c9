package engine

import (
	"fmt"
	"strings"

	"github.com/MKRushil/Pulse/pkg/spiral"
	"github.com/MKRushil/Pulse/pkg/spiral/convergence"
)

// runPresent renders the reviewed diagnosis into the patient-facing report.
// Purely deterministic: no reasoning happens here, so presentation can never
// degrade a round that survived review.
func (e *Engine) runPresent(diag *spiral.Diagnosis, review *spiral.ReviewVerdict,
	verdict convergence.Verdict, followUps []string, result *spiral.RoundResult) *spiral.Presentation {

	var text strings.Builder

	text.WriteString("一、證型判斷\n")
	text.WriteString(diag.Pattern)
	text.WriteString(fmt.Sprintf("（覆蓋度 %.0f%%", diag.Coverage*100))
	if diag.Coverage < 0.6 {
		text.WriteString("，屬初步判斷")
	}
	text.WriteString("）\n\n")

	text.WriteString("二、病機分析\n")
	text.WriteString(review.Text)
	text.WriteString("\n\n")

	text.WriteString("三、治則建議\n")
	text.WriteString("本系統不開立處方。一般調護方向：作息規律、飲食清淡（易消化為主）、情緒平穩、適度運動。\n")
	text.WriteString("具體治則與方藥請由合格中醫師面診後擬定。\n")

	if len(diag.MissingInfo) > 0 {
		text.WriteString("\n尚缺資訊：")
		text.WriteString(strings.Join(diag.MissingInfo, "、"))
		text.WriteString("\n")
	}

	text.WriteString("\n")
	if verdict.Forced {
		text.WriteString("❗ **")
		text.WriteString(insufficiencyNotice)
		text.WriteString("**\n\n")
	}
	text.WriteString(disclaimerText)

	pres := &spiral.Presentation{
		Text:         text.String(),
		FollowUps:    followUps,
		Insufficient: verdict.Forced,
		Disclaimer:   disclaimerText,
	}

	result.Trace = append(result.Trace, spiral.NewTraceEntry(spiral.TracePresent, "rendered",
		fmt.Sprintf("follow_ups=%d forced=%v", len(followUps), verdict.Forced)))
	return pres
}
