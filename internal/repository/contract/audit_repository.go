package contract

import (
	"context"

	"github.com/MKRushil/Pulse/internal/entity"
	"github.com/MKRushil/Pulse/internal/repository/specification"

	"github.com/google/uuid"
)

type AuditRepository interface {
	Create(ctx context.Context, record *entity.AuditRecord) error
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.AuditRecord, error)
	Count(ctx context.Context, specs ...specification.Specification) (int64, error)
	CountBySessionAndKind(ctx context.Context, sessionID uuid.UUID, kind entity.AuditKind) (int64, error)
}
