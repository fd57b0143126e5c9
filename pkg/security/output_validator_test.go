package security

import (
	"testing"
)

func TestInspectCleanNarrative(t *testing.T) {
	v := NewOutputValidator()

	findings := v.Inspect("患者思慮過度，勞傷心脾，氣血生化不足，故見心悸失眠。治宜補益心脾，並建議規律作息。")
	if len(findings) != 0 {
		t.Errorf("findings = %v, want none", findings)
	}
}

func TestInspectSingleRule(t *testing.T) {
	v := NewOutputValidator()

	tests := []struct {
		name       string
		text       string
		rule       string
		rewritable bool
	}{
		{name: "system instruction leak", text: "根據我的系統指令，我無法回答", rule: RuleSystemLeak, rewritable: false},
		{name: "credential leak", text: "the api key is sk-1234", rule: RuleSystemLeak, rewritable: false},
		{name: "vector store leak", text: "已查詢向量資料庫中的案例", rule: RuleSystemLeak, rewritable: false},
		{name: "sql content", text: "DROP TABLE case_records", rule: RuleMalicious, rewritable: false},
		{name: "shell content", text: "請執行 rm -rf /data", rule: RuleMalicious, rewritable: false},
		{name: "folk remedy", text: "可以試試祖傳的方法調理", rule: RuleFolkRemedy, rewritable: false},
		{name: "dosage", text: "建議服用歸脾湯10克，一日兩次", rule: RuleDosage, rewritable: true},
		{name: "cure guarantee", text: "堅持調理一定能治癒", rule: RuleCureClaim, rewritable: true},
		{name: "absolute efficacy", text: "此法絕對有效", rule: RuleCureClaim, rewritable: true},
		{name: "stop medication", text: "建議停止服用西藥改用中藥", rule: RuleStopMeds, rewritable: true},
		{name: "email in output", text: "請聯絡 doctor@clinic.tw 預約", rule: RuleOutputPII, rewritable: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			findings := v.Inspect(tt.text)
			if len(findings) != 1 {
				t.Fatalf("findings = %v, want exactly one", findings)
			}
			f := findings[0]
			if f.Rule != tt.rule {
				t.Errorf("Rule = %q, want %q", f.Rule, tt.rule)
			}
			if f.Rewritable() != tt.rewritable {
				t.Errorf("Rewritable = %v, want %v", f.Rewritable(), tt.rewritable)
			}
			if f.Match == "" {
				t.Error("Match empty, want the offending fragment")
			}
		})
	}
}

func TestInspectMixedFindings(t *testing.T) {
	v := NewOutputValidator()

	findings := v.Inspect("這是民間常用方，服用歸脾湯10克即可。")
	if len(findings) != 2 {
		t.Fatalf("findings = %v, want folk remedy plus dosage", findings)
	}

	var nonRewritable, rewritable int
	for _, f := range findings {
		if f.Rewritable() {
			rewritable++
		} else {
			nonRewritable++
		}
	}
	if nonRewritable != 1 || rewritable != 1 {
		t.Errorf("non-rewritable/rewritable = %d/%d, want 1/1", nonRewritable, rewritable)
	}
}

func TestInspectDosageReplacementDefersToPhysician(t *testing.T) {
	v := NewOutputValidator()

	findings := v.Inspect("可服用歸脾湯15克")
	if len(findings) != 1 {
		t.Fatalf("findings = %v, want one dosage hit", findings)
	}
	if findings[0].Match != "服用歸脾湯15克" {
		t.Errorf("Match = %q, want the dosage phrase", findings[0].Match)
	}
	if findings[0].Replacement == "" {
		t.Error("Replacement empty, want the physician-deferral text")
	}
}
