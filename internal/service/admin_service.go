package service

import (
	"context"
	"errors"
	"time"

	"github.com/MKRushil/Pulse/internal/dto"
	"github.com/MKRushil/Pulse/internal/pkg/logger"
	"github.com/MKRushil/Pulse/internal/repository/specification"
	"github.com/MKRushil/Pulse/internal/repository/unitofwork"

	"github.com/google/uuid"
)

type IAdminService interface {
	GetPractitioners(ctx context.Context, req *dto.PractitionerListRequest) ([]*dto.PractitionerListResponse, error)
	UpdatePractitionerStatus(ctx context.Context, id uuid.UUID, req *dto.UpdatePractitionerStatusRequest) error
	GetAuditRecords(ctx context.Context, req *dto.AuditListRequest) ([]*dto.AuditRecordResponse, error)
	GetSystemLogs(ctx context.Context, page, limit int, level string) ([]*dto.LogListResponse, error)
	GetLogDetail(ctx context.Context, logId string) (*dto.LogDetailResponse, error)
}

type adminService struct {
	uowFactory unitofwork.RepositoryFactory
	logger     logger.ILogger
}

func NewAdminService(uowFactory unitofwork.RepositoryFactory, logger logger.ILogger) IAdminService {
	return &adminService{
		uowFactory: uowFactory,
		logger:     logger,
	}
}

func normalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	return page, limit
}

func (s *adminService) GetPractitioners(ctx context.Context, req *dto.PractitionerListRequest) ([]*dto.PractitionerListResponse, error) {
	page, limit := normalizePage(req.Page, req.Limit)

	specs := []specification.Specification{
		specification.OrderBy{Field: "created_at", Desc: true},
		specification.Pagination{Limit: limit, Offset: (page - 1) * limit},
	}
	if req.Search != "" {
		specs = append(specs, specification.SearchNameOrEmail{Query: req.Search})
	}
	if req.Role != "" {
		specs = append(specs, specification.Filter("role", req.Role))
	}
	if req.Status != "" {
		specs = append(specs, specification.Filter("status", req.Status))
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	practitioners, err := uow.PractitionerRepository().FindAll(ctx, specs...)
	if err != nil {
		return nil, err
	}

	out := make([]*dto.PractitionerListResponse, 0, len(practitioners))
	for _, p := range practitioners {
		out = append(out, &dto.PractitionerListResponse{
			Id:        p.Id,
			Email:     p.Email,
			FullName:  p.FullName,
			Role:      string(p.Role),
			Status:    string(p.Status),
			CreatedAt: p.CreatedAt,
		})
	}
	return out, nil
}

func (s *adminService) UpdatePractitionerStatus(ctx context.Context, id uuid.UUID, req *dto.UpdatePractitionerStatusRequest) error {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	practitioner, err := uow.PractitionerRepository().FindOne(ctx, specification.ByID{ID: id})
	if err != nil {
		return err
	}
	if practitioner == nil {
		return errors.New("practitioner not found")
	}

	if err := uow.PractitionerRepository().UpdateStatus(ctx, id, req.Status); err != nil {
		return err
	}

	s.logger.Info("ADMIN", "Practitioner status updated", map[string]interface{}{
		"practitioner_id": id.String(),
		"status":          req.Status,
		"reason":          req.Reason,
	})
	return nil
}

func (s *adminService) GetAuditRecords(ctx context.Context, req *dto.AuditListRequest) ([]*dto.AuditRecordResponse, error) {
	page, limit := normalizePage(req.Page, req.Limit)

	specs := []specification.Specification{
		specification.OrderBy{Field: "created_at", Desc: true},
		specification.Pagination{Limit: limit, Offset: (page - 1) * limit},
	}
	if req.SessionId != "" {
		sessionID, err := uuid.Parse(req.SessionId)
		if err != nil {
			return nil, errors.New("invalid session id filter")
		}
		specs = append(specs, specification.BySession{SessionID: sessionID})
	}
	if req.PractitionerId != "" {
		practitionerID, err := uuid.Parse(req.PractitionerId)
		if err != nil {
			return nil, errors.New("invalid practitioner id filter")
		}
		specs = append(specs, specification.OwnedByPractitioner{PractitionerID: practitionerID})
	}
	if req.Kind != "" {
		specs = append(specs, specification.ByKind{Kind: req.Kind})
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	records, err := uow.AuditRepository().FindAll(ctx, specs...)
	if err != nil {
		return nil, err
	}

	out := make([]*dto.AuditRecordResponse, 0, len(records))
	for _, r := range records {
		out = append(out, &dto.AuditRecordResponse{
			Id:             r.Id,
			SessionId:      r.SessionId,
			PractitionerId: r.PractitionerId,
			Round:          r.Round,
			Kind:           string(r.Kind),
			Stage:          r.Stage,
			Detail:         r.Detail,
			CreatedAt:      r.CreatedAt,
		})
	}
	return out, nil
}

func (s *adminService) GetSystemLogs(ctx context.Context, page, limit int, level string) ([]*dto.LogListResponse, error) {
	page, limit = normalizePage(page, limit)

	entries, err := s.logger.GetLogs(level, limit, (page-1)*limit)
	if err != nil {
		return nil, err
	}

	out := make([]*dto.LogListResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, &dto.LogListResponse{
			Id:        e.Id,
			Level:     e.Level,
			Module:    e.Module,
			Message:   e.Message,
			CreatedAt: parseLogTimestamp(e.Timestamp),
		})
	}
	return out, nil
}

func (s *adminService) GetLogDetail(ctx context.Context, logId string) (*dto.LogDetailResponse, error) {
	// Log ids are content hashes, so finding one means scanning recent pages.
	const scanPages = 10
	const pageSize = 200

	for page := 1; page <= scanPages; page++ {
		entries, err := s.logger.GetLogs("", pageSize, (page-1)*pageSize)
		if err != nil {
			return nil, err
		}
		if len(entries) == 0 {
			break
		}
		for _, e := range entries {
			if e.Id == logId {
				return &dto.LogDetailResponse{
					LogListResponse: dto.LogListResponse{
						Id:        e.Id,
						Level:     e.Level,
						Module:    e.Module,
						Message:   e.Message,
						CreatedAt: parseLogTimestamp(e.Timestamp),
					},
					Details: e.Details,
				}, nil
			}
		}
	}
	return nil, errors.New("log entry not found")
}

// parseLogTimestamp reads the ISO8601 stamps zap writes; unparseable stamps
// come back zero rather than failing the listing.
func parseLogTimestamp(ts string) time.Time {
	for _, layout := range []string{"2006-01-02T15:04:05.000Z0700", time.RFC3339} {
		if t, err := time.Parse(layout, ts); err == nil {
			return t
		}
	}
	return time.Time{}
}
