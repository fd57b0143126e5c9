package entity

import (
	"time"
)

type CaseSource string
type CaseDomain string

const (
	CaseSourceSeed     CaseSource = "seed"
	CaseSourceAccepted CaseSource = "accepted"

	CaseDomainDigestive     CaseDomain = "digestive"
	CaseDomainGynecological CaseDomain = "gynecological"
	CaseDomainGeneral       CaseDomain = "general"
)

// CaseRecord is one retrievable clinical case in the diagnostic corpus.
// TextRaw holds the original narrative; TextCJK is the same narrative
// pre-segmented for CJK lexical search.
type CaseRecord struct {
	Id          string
	Pattern     string
	Symptoms    []string
	TongueTerms []string
	PulseTerms  []string
	ZangfuTerms []string
	TextRaw     string
	TextCJK     string
	Domain      CaseDomain
	Embedding   []float32
	Source      CaseSource
	CreatedAt   time.Time
	UpdatedAt   *time.Time
	DeletedAt   *time.Time
}
