package implementation

import (
	"context"

	"github.com/MKRushil/Pulse/internal/entity"
	"github.com/MKRushil/Pulse/internal/mapper"
	"github.com/MKRushil/Pulse/internal/model"
	"github.com/MKRushil/Pulse/internal/repository/contract"
	"github.com/MKRushil/Pulse/internal/repository/specification"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type AuditRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.AuditMapper
}

func NewAuditRepository(db *gorm.DB) contract.AuditRepository {
	return &AuditRepositoryImpl{
		db:     db,
		mapper: mapper.NewAuditMapper(),
	}
}

func (r *AuditRepositoryImpl) applySpecifications(db *gorm.DB, specs ...specification.Specification) *gorm.DB {
	for _, spec := range specs {
		db = spec.Apply(db)
	}
	return db
}

func (r *AuditRepositoryImpl) Create(ctx context.Context, record *entity.AuditRecord) error {
	m := r.mapper.ToModel(record)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return err
	}
	*record = *r.mapper.ToEntity(m)
	return nil
}

func (r *AuditRepositoryImpl) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.AuditRecord, error) {
	var models []*model.AuditRecord
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	return r.mapper.ToEntities(models), nil
}

func (r *AuditRepositoryImpl) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	var count int64
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	err := query.Model(&model.AuditRecord{}).Count(&count).Error
	return count, err
}

func (r *AuditRepositoryImpl) CountBySessionAndKind(ctx context.Context, sessionID uuid.UUID, kind entity.AuditKind) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.AuditRecord{}).
		Where("session_id = ? AND kind = ?", sessionID, string(kind)).
		Count(&count).Error
	return count, err
}
