package mapper

import (
	"github.com/MKRushil/Pulse/internal/entity"
	"github.com/MKRushil/Pulse/internal/model"
)

type PractitionerMapper struct{}

func NewPractitionerMapper() *PractitionerMapper {
	return &PractitionerMapper{}
}

func (m *PractitionerMapper) ToEntity(p *model.Practitioner) *entity.Practitioner {
	if p == nil {
		return nil
	}
	return &entity.Practitioner{
		Id:           p.Id,
		Email:        p.Email,
		PasswordHash: p.PasswordHash,
		FullName:     p.FullName,
		LicenseNo:    p.LicenseNo,
		Role:         entity.PractitionerRole(p.Role),
		Status:       entity.PractitionerStatus(p.Status),
		CreatedAt:    p.CreatedAt,
		UpdatedAt:    p.UpdatedAt,
	}
}

func (m *PractitionerMapper) ToModel(p *entity.Practitioner) *model.Practitioner {
	if p == nil {
		return nil
	}
	return &model.Practitioner{
		Id:           p.Id,
		Email:        p.Email,
		PasswordHash: p.PasswordHash,
		FullName:     p.FullName,
		LicenseNo:    p.LicenseNo,
		Role:         string(p.Role),
		Status:       string(p.Status),
		CreatedAt:    p.CreatedAt,
		UpdatedAt:    p.UpdatedAt,
	}
}

func (m *PractitionerMapper) ToEntities(ps []*model.Practitioner) []*entity.Practitioner {
	entities := make([]*entity.Practitioner, len(ps))
	for i, p := range ps {
		entities[i] = m.ToEntity(p)
	}
	return entities
}

func (m *PractitionerMapper) RefreshTokenToEntity(t *model.PractitionerRefreshToken) *entity.PractitionerRefreshToken {
	if t == nil {
		return nil
	}
	return &entity.PractitionerRefreshToken{
		Id:             t.Id,
		PractitionerId: t.PractitionerId,
		TokenHash:      t.TokenHash,
		ExpiresAt:      t.ExpiresAt,
		Revoked:        t.Revoked,
		CreatedAt:      t.CreatedAt,
	}
}

func (m *PractitionerMapper) RefreshTokenToModel(t *entity.PractitionerRefreshToken) *model.PractitionerRefreshToken {
	if t == nil {
		return nil
	}
	return &model.PractitionerRefreshToken{
		Id:             t.Id,
		PractitionerId: t.PractitionerId,
		TokenHash:      t.TokenHash,
		ExpiresAt:      t.ExpiresAt,
		Revoked:        t.Revoked,
		CreatedAt:      t.CreatedAt,
	}
}
