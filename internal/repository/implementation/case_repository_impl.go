package implementation

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"unicode"

	"github.com/MKRushil/Pulse/internal/entity"
	"github.com/MKRushil/Pulse/internal/mapper"
	"github.com/MKRushil/Pulse/internal/model"
	"github.com/MKRushil/Pulse/internal/repository/contract"
	"github.com/MKRushil/Pulse/internal/repository/specification"

	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
)

// Blend weights for hybrid ranking. Vector similarity dominates, lexical
// overlap keeps exact terminology (pattern names, pulse qualities) from
// being drowned out by embedding noise.
const (
	hybridVectorWeight  = 0.6
	hybridLexicalWeight = 0.4
)

type CaseRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.CaseMapper
}

func NewCaseRepository(db *gorm.DB) contract.CaseRepository {
	return &CaseRepositoryImpl{
		db:     db,
		mapper: mapper.NewCaseMapper(),
	}
}

func (r *CaseRepositoryImpl) applySpecifications(db *gorm.DB, specs ...specification.Specification) *gorm.DB {
	for _, spec := range specs {
		db = spec.Apply(db)
	}
	return db
}

func (r *CaseRepositoryImpl) Create(ctx context.Context, record *entity.CaseRecord) error {
	m := r.mapper.ToModel(record)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return err
	}
	*record = *r.mapper.ToEntity(m)
	return nil
}

func (r *CaseRepositoryImpl) CreateBulk(ctx context.Context, records []*entity.CaseRecord) error {
	if len(records) == 0 {
		return nil
	}
	models := r.mapper.ToModels(records)
	return r.db.WithContext(ctx).CreateInBatches(models, 100).Error
}

func (r *CaseRepositoryImpl) Update(ctx context.Context, record *entity.CaseRecord) error {
	m := r.mapper.ToModel(record)
	if err := r.db.WithContext(ctx).Save(m).Error; err != nil {
		return err
	}
	*record = *r.mapper.ToEntity(m)
	return nil
}

func (r *CaseRepositoryImpl) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&model.CaseRecord{}).Error
}

func (r *CaseRepositoryImpl) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.CaseRecord, error) {
	var m model.CaseRecord
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.ToEntity(&m), nil
}

func (r *CaseRepositoryImpl) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.CaseRecord, error) {
	var models []*model.CaseRecord
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	return r.mapper.ToEntities(models), nil
}

func (r *CaseRepositoryImpl) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	var count int64
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	err := query.Model(&model.CaseRecord{}).Count(&count).Error
	return count, err
}

// searchColumn maps a public search field name onto its backing column.
func searchColumn(field string) (string, error) {
	switch field {
	case contract.SearchFieldCJK:
		return "text_cjk", nil
	case contract.SearchFieldText:
		return "text_raw", nil
	default:
		return "", fmt.Errorf("unknown search field: %s", field)
	}
}

// SearchByField retrieves candidates whose searched column matches at least
// one query term, scored by cosine similarity blended with lexical overlap.
// Zero rows means the field had no lexical hits and the caller should fall
// back to the next field.
func (r *CaseRepositoryImpl) SearchByField(ctx context.Context, queryText string, embedding []float32, field string, limit int) ([]*contract.ScoredCase, error) {
	if limit <= 0 {
		limit = 5
	}

	column, err := searchColumn(field)
	if err != nil {
		return nil, err
	}

	terms := lexicalTerms(queryText)

	type result struct {
		model.CaseRecord
		Similarity float64
	}
	var results []result

	queryVector := pgvector.NewVector(embedding)

	query := r.db.WithContext(ctx).
		Table("case_records").
		Select("case_records.*, 1 - (embedding <=> ?) as similarity", queryVector).
		Where("deleted_at IS NULL")

	if len(terms) > 0 {
		likes := make([]string, len(terms))
		args := make([]interface{}, len(terms))
		for i, t := range terms {
			likes[i] = column + " LIKE ?"
			args[i] = "%" + t + "%"
		}
		query = query.Where(strings.Join(likes, " OR "), args...)
	}

	// Over-fetch on similarity so the lexical re-rank has room to work.
	err = query.
		Order("similarity DESC").
		Limit(limit * 3).
		Scan(&results).Error
	if err != nil {
		return nil, err
	}

	scored := make([]*contract.ScoredCase, len(results))
	for i, res := range results {
		record := res.CaseRecord
		lexical := lexicalOverlap(terms, columnText(&record, column))
		scored[i] = &contract.ScoredCase{
			Case:       r.mapper.ToEntity(&record),
			Similarity: res.Similarity,
			Lexical:    lexical,
			Score:      hybridVectorWeight*res.Similarity + hybridLexicalWeight*lexical,
		}
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})

	if len(scored) > limit {
		scored = scored[:limit]
	}
	return scored, nil
}

func (r *CaseRepositoryImpl) SearchNearest(ctx context.Context, embedding []float32, limit int) ([]*contract.ScoredCase, error) {
	if limit <= 0 {
		limit = 5
	}

	type result struct {
		model.CaseRecord
		Similarity float64
	}
	var results []result

	queryVector := pgvector.NewVector(embedding)

	err := r.db.WithContext(ctx).
		Table("case_records").
		Select("case_records.*, 1 - (embedding <=> ?) as similarity", queryVector).
		Where("deleted_at IS NULL").
		Order("similarity DESC").
		Limit(limit).
		Scan(&results).Error
	if err != nil {
		return nil, err
	}

	scored := make([]*contract.ScoredCase, len(results))
	for i, res := range results {
		record := res.CaseRecord
		scored[i] = &contract.ScoredCase{
			Case:       r.mapper.ToEntity(&record),
			Similarity: res.Similarity,
			Lexical:    0,
			Score:      res.Similarity,
		}
	}
	return scored, nil
}

func columnText(record *model.CaseRecord, column string) string {
	if column == "text_cjk" {
		return record.TextCJK
	}
	return record.TextRaw
}

// lexicalTerms splits a query into searchable units: whitespace-separated
// tokens for latin text, character bigrams for unsegmented Han runs.
func lexicalTerms(queryText string) []string {
	seen := make(map[string]bool)
	var terms []string

	add := func(t string) {
		if t != "" && !seen[t] {
			seen[t] = true
			terms = append(terms, t)
		}
	}

	for _, token := range strings.FieldsFunc(queryText, func(r rune) bool {
		return unicode.IsSpace(r) || unicode.IsPunct(r)
	}) {
		runes := []rune(token)
		if isHanRun(runes) && len(runes) > 2 {
			for i := 0; i+1 < len(runes); i++ {
				add(string(runes[i : i+2]))
			}
			continue
		}
		add(token)
	}
	return terms
}

func isHanRun(runes []rune) bool {
	for _, r := range runes {
		if !unicode.Is(unicode.Han, r) {
			return false
		}
	}
	return len(runes) > 0
}

// lexicalOverlap is the fraction of query terms present in the text.
func lexicalOverlap(terms []string, text string) float64 {
	if len(terms) == 0 {
		return 0
	}
	matched := 0
	for _, t := range terms {
		if strings.Contains(text, t) {
			matched++
		}
	}
	return float64(matched) / float64(len(terms))
}
