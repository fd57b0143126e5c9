package unitofwork

import (
	"context"

	"github.com/MKRushil/Pulse/internal/repository/contract"
)

type UnitOfWork interface {
	Begin(ctx context.Context) error
	Commit() error
	Rollback() error

	PractitionerRepository() contract.PractitionerRepository
	CaseRepository() contract.CaseRepository
	AuditRepository() contract.AuditRepository
}
