package contract

import (
	"context"

	"github.com/MKRushil/Pulse/internal/entity"
	"github.com/MKRushil/Pulse/internal/repository/specification"

	"github.com/google/uuid"
)

type PractitionerRepository interface {
	Create(ctx context.Context, practitioner *entity.Practitioner) error
	Update(ctx context.Context, practitioner *entity.Practitioner) error
	Delete(ctx context.Context, id uuid.UUID) error
	FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Practitioner, error)
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Practitioner, error)
	Count(ctx context.Context, specs ...specification.Specification) (int64, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) error
	UpdatePassword(ctx context.Context, id uuid.UUID, hash string) error

	// Refresh tokens live with the practitioner for cohesion.
	CreateRefreshToken(ctx context.Context, token *entity.PractitionerRefreshToken) error
	FindRefreshToken(ctx context.Context, specs ...specification.Specification) (*entity.PractitionerRefreshToken, error)
	RevokeRefreshToken(ctx context.Context, tokenHash string) error
}
