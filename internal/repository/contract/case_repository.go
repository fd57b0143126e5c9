package contract

import (
	"context"

	"github.com/MKRushil/Pulse/internal/entity"
	"github.com/MKRushil/Pulse/internal/repository/specification"
)

// Search fields supported by CaseRepository.SearchByField. Each maps to a
// different text column of case_records so callers can fall back from the
// segmented column to the raw one.
const (
	SearchFieldCJK  = "bm25_cjk"
	SearchFieldText = "bm25_text"
)

// ScoredCase wraps a corpus case with its retrieval sub-scores.
type ScoredCase struct {
	Case       *entity.CaseRecord
	Similarity float64 // vector cosine similarity, 0.0 to 1.0
	Lexical    float64 // lexical overlap against the searched column
	Score      float64 // blended rank score used for ordering
}

type CaseRepository interface {
	Create(ctx context.Context, record *entity.CaseRecord) error
	CreateBulk(ctx context.Context, records []*entity.CaseRecord) error
	Update(ctx context.Context, record *entity.CaseRecord) error
	Delete(ctx context.Context, id string) error
	FindOne(ctx context.Context, specs ...specification.Specification) (*entity.CaseRecord, error)
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.CaseRecord, error)
	Count(ctx context.Context, specs ...specification.Specification) (int64, error)

	// SearchByField runs a hybrid query: cosine similarity over the embedding
	// column blended with lexical matching on the column behind field.
	SearchByField(ctx context.Context, queryText string, embedding []float32, field string, limit int) ([]*ScoredCase, error)

	// SearchNearest ranks by embedding distance alone, used to top up the
	// candidate list when lexical matching leaves it short.
	SearchNearest(ctx context.Context, embedding []float32, limit int) ([]*ScoredCase, error)
}
