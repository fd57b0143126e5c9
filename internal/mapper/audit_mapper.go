package mapper

import (
	"github.com/MKRushil/Pulse/internal/entity"
	"github.com/MKRushil/Pulse/internal/model"
)

type AuditMapper struct{}

func NewAuditMapper() *AuditMapper {
	return &AuditMapper{}
}

func (m *AuditMapper) ToEntity(a *model.AuditRecord) *entity.AuditRecord {
	if a == nil {
		return nil
	}
	return &entity.AuditRecord{
		Id:             a.Id,
		SessionId:      a.SessionId,
		PractitionerId: a.PractitionerId,
		Round:          a.Round,
		Kind:           entity.AuditKind(a.Kind),
		Stage:          a.Stage,
		Detail:         a.Detail,
		CreatedAt:      a.CreatedAt,
	}
}

func (m *AuditMapper) ToModel(a *entity.AuditRecord) *model.AuditRecord {
	if a == nil {
		return nil
	}
	return &model.AuditRecord{
		Id:             a.Id,
		SessionId:      a.SessionId,
		PractitionerId: a.PractitionerId,
		Round:          a.Round,
		Kind:           string(a.Kind),
		Stage:          a.Stage,
		Detail:         a.Detail,
		CreatedAt:      a.CreatedAt,
	}
}

func (m *AuditMapper) ToEntities(as []*model.AuditRecord) []*entity.AuditRecord {
	entities := make([]*entity.AuditRecord, len(as))
	for i, a := range as {
		entities[i] = m.ToEntity(a)
	}
	return entities
}
