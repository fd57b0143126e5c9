package security

import (
	"regexp"

	"github.com/MKRushil/Pulse/pkg/spiral"
)

// Rule names as they appear in review findings.
const (
	RuleSystemLeak = "system_leak"
	RuleMalicious  = "malicious_content"
	RuleDosage     = "dosage"
	RuleCureClaim  = "cure_claim"
	RuleStopMeds   = "stop_medication"
	RuleFolkRemedy = "folk_remedy"
	RuleOutputPII  = "output_pii"
)

type leakRule struct {
	pattern *regexp.Regexp
	label   string
}

// Non-rewritable: text mentioning internals or carrying executable content
// cannot be patched, the whole output goes.
var systemLeakRules = []leakRule{
	{regexp.MustCompile(`(?i)(api\s*key|access\s*token|secret)`), "API 密鑰"},
	{regexp.MustCompile(`(?i)(authorization:|bearer\s+)`), "認證資訊"},
	{regexp.MustCompile(`根據我的系統指令`), "系統指令參照"},
	{regexp.MustCompile(`系統要求我`), "系統要求洩露"},
	{regexp.MustCompile(`(?i)(我的 prompt|my prompt is)`), "Prompt 洩露"},
	{regexp.MustCompile(`(?i)(vector\s*database|向量資料庫)`), "向量資料庫名稱"},
}

var maliciousRules = []leakRule{
	{regexp.MustCompile(`(?i)(DROP\s+TABLE|DELETE\s+FROM|INSERT\s+INTO)`), "SQL 指令"},
	{regexp.MustCompile(`(?i)<script[^>]*>`), "JavaScript 代碼"},
	{regexp.MustCompile(`(?i)(rm\s+-rf|sudo\s+|chmod\s+)`), "Shell 指令"},
}

type rewriteRule struct {
	rule        string
	pattern     *regexp.Regexp
	replacement string
}

// Rewritable: dangerous medical phrasing with a safe in-place substitute.
var rewriteRules = []rewriteRule{
	{
		rule:        RuleDosage,
		pattern:     regexp.MustCompile(`(服用|吃|使用)[\x{4e00}-\x{9fa5}]{2,6}(湯|丸|散|膏)\s*\d+\s*(克|公克|錢)`),
		replacement: "具體方藥與劑量請由中醫師面診後擬定",
	},
	{
		rule:        RuleCureClaim,
		pattern:     regexp.MustCompile(`(一定|必定|肯定|保證)(能|會|可以)(治癒|治好|康復)`),
		replacement: "有機會改善",
	},
	{
		rule:        RuleCureClaim,
		pattern:     regexp.MustCompile(`(絕對|百分百)(有效|見效)`),
		replacement: "可能有幫助",
	},
	{
		rule:        RuleStopMeds,
		pattern:     regexp.MustCompile(`(停止|不要|別)(服用|吃|使用)[^，。]{0,12}(西藥|藥物)`),
		replacement: "用藥調整請先與原處方醫師討論",
	},
}

var folkRemedyRe = regexp.MustCompile(`(民間|偏方|祖傳|秘方)`)

// OutputValidator is the rule-based half of the review stage. Findings
// without a replacement force rejection; the rest are substituted in place
// by the caller.
type OutputValidator struct{}

func NewOutputValidator() *OutputValidator {
	return &OutputValidator{}
}

var _ spiral.OutputValidator = &OutputValidator{}

func (v *OutputValidator) Inspect(text string) []spiral.Finding {
	var findings []spiral.Finding

	for _, r := range systemLeakRules {
		if m := r.pattern.FindString(text); m != "" {
			findings = append(findings, spiral.Finding{Rule: RuleSystemLeak, Match: m})
		}
	}
	for _, r := range maliciousRules {
		if m := r.pattern.FindString(text); m != "" {
			findings = append(findings, spiral.Finding{Rule: RuleMalicious, Match: m})
		}
	}
	if m := folkRemedyRe.FindString(text); m != "" {
		findings = append(findings, spiral.Finding{Rule: RuleFolkRemedy, Match: m})
	}

	for _, r := range rewriteRules {
		for _, m := range r.pattern.FindAllString(text, -1) {
			findings = append(findings, spiral.Finding{Rule: r.rule, Match: m, Replacement: r.replacement})
		}
	}

	for _, r := range piiRules {
		for _, m := range r.pattern.FindAllString(text, -1) {
			findings = append(findings, spiral.Finding{Rule: RuleOutputPII, Match: m, Replacement: r.mask})
		}
	}

	return findings
}
