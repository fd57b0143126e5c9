// Package security holds the request-side and response-side content
// defenses: input sanitization with PII masking, rule-based output
// validation and the Redis rate limiter.
package security

import (
	"fmt"
	"regexp"
	"strings"
)

type ThreatLevel string

const (
	ThreatSafe       ThreatLevel = "safe"
	ThreatSuspicious ThreatLevel = "suspicious"
	ThreatBlocked    ThreatLevel = "blocked"
)

// SanitizationResult reports what the sanitizer did to one input. Cleaned
// is empty when the input is blocked.
type SanitizationResult struct {
	Cleaned    string
	Original   string
	Level      ThreatLevel
	Violations []string
	MaskedPII  map[string]int
	Safe       bool
}

const maxInputRunes = 1000

type injectionRule struct {
	pattern *regexp.Regexp
	label   string
}

type piiRule struct {
	pattern *regexp.Regexp
	mask    string
	label   string
}

var htmlTagRe = regexp.MustCompile(`<[^>]+>`)

var codeLikeRes = []*regexp.Regexp{
	regexp.MustCompile(`(?i)for\s+\w+\s+in\s+range\s*\(`),
	regexp.MustCompile(`(?i)\bdef\s+[a-zA-Z_]+\s*\(`),
	regexp.MustCompile(`\bclass\s+[A-Z][a-zA-Z_]*\b`),
	regexp.MustCompile(`(?i)\bimport\s+[a-zA-Z_]+`),
	regexp.MustCompile(`(?i)console\.log\s*\(`),
	regexp.MustCompile(`(?i)SELECT\s+\*\s+FROM`),
}

var injectionRules = []injectionRule{
	{regexp.MustCompile(`(?i)ignore\s+(previous|above|all)\s+instructions?`), "嘗試覆蓋指令 (ignore instructions)"},
	{regexp.MustCompile(`忽略(之前|上面|所有|全部)(的)?(指令|規則|要求)`), "嘗試覆蓋指令 (忽略指令)"},
	{regexp.MustCompile(`(?i)disregard\s+(above|previous)`), "嘗試忽略指令 (disregard)"},
	{regexp.MustCompile(`不要?理會(上面|之前)`), "嘗試忽略指令 (不要理會)"},
	{regexp.MustCompile(`(?i)forget\s+(everything|all)`), "嘗試重置記憶 (forget)"},
	{regexp.MustCompile(`忘記(所有|全部|一切)`), "嘗試重置記憶 (忘記)"},
	{regexp.MustCompile(`(?i)(you\s+are\s+now|now\s+you\s+are)`), "嘗試改變身份 (you are now)"},
	{regexp.MustCompile(`(你|您)現在(是|變成|成為)`), "嘗試改變身份 (你現在是)"},
	{regexp.MustCompile(`(?i)(pretend|act\s+as)\s+`), "嘗試角色扮演 (pretend/act as)"},
	{regexp.MustCompile(`(假裝|扮演|角色扮演)`), "嘗試角色扮演"},
	{regexp.MustCompile(`(?i)(show|display|reveal|output)\s+(your|the)\s+(prompt|instruction|system)`), "嘗試洩露系統提示詞"},
	{regexp.MustCompile(`(顯示|輸出|告訴我|展示)(你的|妳的|系統)?(提示詞|指令|規則|prompt)`), "嘗試洩露系統提示詞"},
	{regexp.MustCompile(`(?i)(repeat|copy)\s+your\s+(prompt|instructions?)`), "嘗試複製提示詞"},
	{regexp.MustCompile(`(?i)<\|im_(start|end)\|>`), "嘗試使用特殊標記"},
	{regexp.MustCompile(`(?i)(\|\|system\|\||###OVERRIDE###|---END---)`), "嘗試使用逃逸標記"},
	{regexp.MustCompile(`(?i)(system:|assistant:|user:)`), "嘗試偽造系統角色"},
}

var selfNameRe = regexp.MustCompile(`(我叫|我是|名叫|我的名字叫)\s*[\x{4e00}-\x{9fa5}]{2,4}`)

var piiRules = []piiRule{
	{regexp.MustCompile(`\b[A-Z]\d{9}\b`), "***身份證***", "身份證號"},
	{regexp.MustCompile(`\b(09\d{8}|\d{2,3}-\d{7,8})\b`), "***電話***", "電話號碼"},
	{regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`), "***信箱***", "Email"},
	{regexp.MustCompile(`地址[:：]\s*[\x{4e00}-\x{9fa5}\d]{5,}`), "地址: ***地址***", "地址"},
	{regexp.MustCompile(`(姓名|名字)[:：]\s*[\x{4e00}-\x{9fa5}]{2,4}`), "姓名: ***姓名***", "姓名"},
}

// Sanitizer screens raw patient input before it enters the pipeline.
// Injection, markup and code-style content is blocked outright; PII is
// masked in place. Whether the input belongs to this medical domain is
// the gate stage's decision, not the sanitizer's.
type Sanitizer struct{}

func NewSanitizer() *Sanitizer {
	return &Sanitizer{}
}

func (s *Sanitizer) Sanitize(input string) SanitizationResult {
	result := SanitizationResult{
		Original:  input,
		Level:     ThreatSafe,
		MaskedPII: make(map[string]int),
	}

	if len([]rune(input)) > maxInputRunes {
		result.Violations = append(result.Violations,
			fmt.Sprintf("輸入過長 (%d > %d)", len([]rune(input)), maxInputRunes))
		result.Level = ThreatBlocked
		return result
	}

	if htmlTagRe.MatchString(input) {
		result.Violations = append(result.Violations, "檢測到HTML/Script標籤")
		result.Level = ThreatBlocked
		return result
	}

	for _, re := range codeLikeRes {
		if re.MatchString(input) {
			result.Violations = append(result.Violations, "檢測到程式碼/指令樣式內容")
			result.Level = ThreatBlocked
			return result
		}
	}

	for _, rule := range injectionRules {
		if rule.pattern.MatchString(input) {
			result.Violations = append(result.Violations, "檢測到提示詞注入: "+rule.label)
		}
	}
	if strings.Count(input, "```") >= 2 {
		result.Violations = append(result.Violations, "檢測到可疑代碼塊標記")
	}
	if len(result.Violations) > 0 {
		result.Level = ThreatBlocked
		return result
	}

	if selfNameRe.MatchString(input) {
		result.Violations = append(result.Violations, "檢測到姓名等個資自述")
		result.Level = ThreatBlocked
		return result
	}

	cleaned := input
	for _, rule := range piiRules {
		hits := len(rule.pattern.FindAllString(cleaned, -1))
		if hits > 0 {
			result.MaskedPII[rule.label] += hits
			cleaned = rule.pattern.ReplaceAllString(cleaned, rule.mask)
		}
	}
	if len(result.MaskedPII) > 0 {
		result.Violations = append(result.Violations,
			fmt.Sprintf("檢測到 %d 項敏感資訊並已脫敏", len(result.MaskedPII)))
		result.Level = ThreatSuspicious
	}

	result.Cleaned = strings.TrimSpace(cleaned)
	result.Safe = true
	return result
}
