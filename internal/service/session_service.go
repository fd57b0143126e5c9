package service

import (
	"github.com/MKRushil/Pulse/internal/dto"
	"github.com/MKRushil/Pulse/internal/pkg/serverutils"
	"github.com/MKRushil/Pulse/pkg/spiral"

	"github.com/google/uuid"
)

type ISessionService interface {
	Create(practitionerID uuid.UUID) (*dto.CreateSessionResponse, error)
	Snapshot(practitionerID, sessionID uuid.UUID) (*dto.SessionSnapshotResponse, error)
	Reset(practitionerID, sessionID uuid.UUID) error
	Evict(practitionerID, sessionID uuid.UUID) error
	Stats() *dto.StoreStatsResponse
}

type sessionService struct {
	store spiral.SessionStore
}

func NewSessionService(store spiral.SessionStore) ISessionService {
	return &sessionService{store: store}
}

func (s *sessionService) owned(practitionerID, sessionID uuid.UUID) (*spiral.Session, error) {
	sess, ok := s.store.Get(sessionID)
	if !ok {
		return nil, serverutils.NewAppError(404, "session not found")
	}
	if sess.PractitionerID != practitionerID {
		return nil, serverutils.NewAppError(403, "session belongs to another practitioner")
	}
	return sess, nil
}

func (s *sessionService) Create(practitionerID uuid.UUID) (*dto.CreateSessionResponse, error) {
	sess := s.store.GetOrCreate(uuid.New(), practitionerID)
	return &dto.CreateSessionResponse{SessionId: sess.ID}, nil
}

func (s *sessionService) Snapshot(practitionerID, sessionID uuid.UUID) (*dto.SessionSnapshotResponse, error) {
	sess, err := s.owned(practitionerID, sessionID)
	if err != nil {
		return nil, err
	}

	history := make([]dto.RoundSummaryDTO, 0, len(sess.History))
	for _, h := range sess.History {
		history = append(history, dto.RoundSummaryDTO{
			Round:    h.Round,
			AnchorId: h.AnchorID,
			Pattern:  h.Pattern,
			Coverage: h.Coverage,
			Outcome:  h.Outcome,
			Forced:   h.Forced,
			At:       h.At,
		})
	}

	return &dto.SessionSnapshotResponse{
		SessionId:         sess.ID,
		PractitionerId:    sess.PractitionerID,
		RoundCount:        sess.RoundCount,
		ActiveTerms:       sess.ActiveTerms,
		PinnedTerms:       sess.PinnedTerms,
		NegatedTerms:      sess.NegatedTerms,
		LastAnchorCaseId:  sess.LastAnchorCaseID,
		LastAnchorPattern: sess.LastAnchorPattern,
		Coverage:          sess.LastCoverage,
		Converged:         sess.Converged,
		History:           history,
		CreatedAt:         sess.CreatedAt,
		LastUpdatedAt:     sess.LastUpdatedAt,
	}, nil
}

func (s *sessionService) Reset(practitionerID, sessionID uuid.UUID) error {
	if _, err := s.owned(practitionerID, sessionID); err != nil {
		return err
	}
	if !s.store.Reset(sessionID) {
		return serverutils.NewAppError(409, "session is busy, retry shortly")
	}
	return nil
}

func (s *sessionService) Evict(practitionerID, sessionID uuid.UUID) error {
	if _, err := s.owned(practitionerID, sessionID); err != nil {
		return err
	}
	if !s.store.Evict(sessionID) {
		return serverutils.NewAppError(409, "session is busy, retry shortly")
	}
	return nil
}

func (s *sessionService) Stats() *dto.StoreStatsResponse {
	stats := s.store.Stats()
	return &dto.StoreStatsResponse{
		ResidentSessions: stats.Resident,
		BusySessions:     stats.Busy,
		Evictions:        stats.Evictions,
	}
}
