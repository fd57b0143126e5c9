package mapper

import (
	"time"

	"github.com/pgvector/pgvector-go"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/MKRushil/Pulse/internal/entity"
	"github.com/MKRushil/Pulse/internal/model"
)

type CaseMapper struct{}

func NewCaseMapper() *CaseMapper {
	return &CaseMapper{}
}

func (m *CaseMapper) ToEntity(c *model.CaseRecord) *entity.CaseRecord {
	if c == nil {
		return nil
	}

	var deletedAt *time.Time
	if c.DeletedAt.Valid {
		t := c.DeletedAt.Time
		deletedAt = &t
	}

	var updatedAt *time.Time
	if !c.UpdatedAt.IsZero() {
		t := c.UpdatedAt
		updatedAt = &t
	}

	return &entity.CaseRecord{
		Id:          c.Id,
		Pattern:     c.Pattern,
		Symptoms:    []string(c.Symptoms),
		TongueTerms: []string(c.TongueTerms),
		PulseTerms:  []string(c.PulseTerms),
		ZangfuTerms: []string(c.ZangfuTerms),
		TextRaw:     c.TextRaw,
		TextCJK:     c.TextCJK,
		Domain:      entity.CaseDomain(c.Domain),
		Embedding:   c.Embedding.Slice(),
		Source:      entity.CaseSource(c.Source),
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   updatedAt,
		DeletedAt:   deletedAt,
	}
}

func (m *CaseMapper) ToModel(c *entity.CaseRecord) *model.CaseRecord {
	if c == nil {
		return nil
	}

	var deletedAt gorm.DeletedAt
	if c.DeletedAt != nil {
		deletedAt = gorm.DeletedAt{Time: *c.DeletedAt, Valid: true}
	}

	var updatedAt time.Time
	if c.UpdatedAt != nil {
		updatedAt = *c.UpdatedAt
	}

	return &model.CaseRecord{
		Id:          c.Id,
		Pattern:     c.Pattern,
		Symptoms:    datatypes.NewJSONSlice(c.Symptoms),
		TongueTerms: datatypes.NewJSONSlice(c.TongueTerms),
		PulseTerms:  datatypes.NewJSONSlice(c.PulseTerms),
		ZangfuTerms: datatypes.NewJSONSlice(c.ZangfuTerms),
		TextRaw:     c.TextRaw,
		TextCJK:     c.TextCJK,
		Domain:      string(c.Domain),
		Embedding:   pgvector.NewVector(c.Embedding),
		Source:      string(c.Source),
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   updatedAt,
		DeletedAt:   deletedAt,
	}
}

func (m *CaseMapper) ToEntities(cs []*model.CaseRecord) []*entity.CaseRecord {
	entities := make([]*entity.CaseRecord, len(cs))
	for i, c := range cs {
		entities[i] = m.ToEntity(c)
	}
	return entities
}

func (m *CaseMapper) ToModels(cs []*entity.CaseRecord) []*model.CaseRecord {
	models := make([]*model.CaseRecord, len(cs))
	for i, c := range cs {
		models[i] = m.ToModel(c)
	}
	return models
}
