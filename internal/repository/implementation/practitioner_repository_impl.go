package implementation

import (
	"context"
	"errors"

	"github.com/MKRushil/Pulse/internal/entity"
	"github.com/MKRushil/Pulse/internal/mapper"
	"github.com/MKRushil/Pulse/internal/model"
	"github.com/MKRushil/Pulse/internal/repository/contract"
	"github.com/MKRushil/Pulse/internal/repository/specification"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type PractitionerRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.PractitionerMapper
}

func NewPractitionerRepository(db *gorm.DB) contract.PractitionerRepository {
	return &PractitionerRepositoryImpl{
		db:     db,
		mapper: mapper.NewPractitionerMapper(),
	}
}

func (r *PractitionerRepositoryImpl) applySpecifications(db *gorm.DB, specs ...specification.Specification) *gorm.DB {
	for _, spec := range specs {
		db = spec.Apply(db)
	}
	return db
}

func (r *PractitionerRepositoryImpl) Create(ctx context.Context, practitioner *entity.Practitioner) error {
	m := r.mapper.ToModel(practitioner)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return err
	}
	*practitioner = *r.mapper.ToEntity(m)
	return nil
}

func (r *PractitionerRepositoryImpl) Update(ctx context.Context, practitioner *entity.Practitioner) error {
	m := r.mapper.ToModel(practitioner)
	if err := r.db.WithContext(ctx).Save(m).Error; err != nil {
		return err
	}
	*practitioner = *r.mapper.ToEntity(m)
	return nil
}

func (r *PractitionerRepositoryImpl) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&model.Practitioner{}).Error
}

func (r *PractitionerRepositoryImpl) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Practitioner, error) {
	var m model.Practitioner
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.ToEntity(&m), nil
}

func (r *PractitionerRepositoryImpl) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Practitioner, error) {
	var models []*model.Practitioner
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	return r.mapper.ToEntities(models), nil
}

func (r *PractitionerRepositoryImpl) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	var count int64
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	err := query.Model(&model.Practitioner{}).Count(&count).Error
	return count, err
}

func (r *PractitionerRepositoryImpl) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	return r.db.WithContext(ctx).Model(&model.Practitioner{}).Where("id = ?", id).Update("status", status).Error
}

func (r *PractitionerRepositoryImpl) UpdatePassword(ctx context.Context, id uuid.UUID, hash string) error {
	return r.db.WithContext(ctx).Model(&model.Practitioner{}).Where("id = ?", id).Update("password_hash", hash).Error
}

func (r *PractitionerRepositoryImpl) CreateRefreshToken(ctx context.Context, token *entity.PractitionerRefreshToken) error {
	m := r.mapper.RefreshTokenToModel(token)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return err
	}
	*token = *r.mapper.RefreshTokenToEntity(m)
	return nil
}

func (r *PractitionerRepositoryImpl) FindRefreshToken(ctx context.Context, specs ...specification.Specification) (*entity.PractitionerRefreshToken, error) {
	var m model.PractitionerRefreshToken
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.RefreshTokenToEntity(&m), nil
}

func (r *PractitionerRepositoryImpl) RevokeRefreshToken(ctx context.Context, tokenHash string) error {
	return r.db.WithContext(ctx).
		Model(&model.PractitionerRefreshToken{}).
		Where("token_hash = ?", tokenHash).
		Update("revoked", true).Error
}
