package service

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/MKRushil/Pulse/internal/constant"
	"github.com/MKRushil/Pulse/internal/dto"
	"github.com/MKRushil/Pulse/internal/pkg/serverutils"
	"github.com/MKRushil/Pulse/pkg/events"
	pktNats "github.com/MKRushil/Pulse/pkg/nats"
	"github.com/MKRushil/Pulse/pkg/security"
	"github.com/MKRushil/Pulse/pkg/spiral"
	"github.com/MKRushil/Pulse/pkg/spiral/engine"
	"github.com/MKRushil/Pulse/pkg/spiral/fusion"

	"github.com/google/uuid"
)

// securityRefusalText is surfaced when the sanitizer blocks an input. Fixed
// and non-descriptive: no internal detail reaches the caller.
const securityRefusalText = "您的輸入無法處理。\n請使用日常語言描述您的身體症狀。"

type IDiagnosisService interface {
	RunRound(ctx context.Context, practitionerID, sessionID uuid.UUID, req *dto.RunRoundRequest, clientIP string) (*dto.RoundResponse, error)
}

type diagnosisService struct {
	engine           *engine.Engine
	store            spiral.SessionStore
	sanitizer        *security.Sanitizer
	rateLimiter      *security.RateLimiter
	publisherService IPublisherService
	eventPublisher   *pktNats.Publisher
}

func NewDiagnosisService(
	eng *engine.Engine,
	store spiral.SessionStore,
	sanitizer *security.Sanitizer,
	rateLimiter *security.RateLimiter,
	publisherService IPublisherService,
	eventPublisher *pktNats.Publisher,
) IDiagnosisService {
	return &diagnosisService{
		engine:           eng,
		store:            store,
		sanitizer:        sanitizer,
		rateLimiter:      rateLimiter,
		publisherService: publisherService,
		eventPublisher:   eventPublisher,
	}
}

// RunRound is the core entrypoint: rate limit, sanitize, then hand the
// cleaned text to the pipeline. Sanitizer rejections are terminal for the
// round and never reach the gate.
func (s *diagnosisService) RunRound(ctx context.Context, practitionerID, sessionID uuid.UUID, req *dto.RunRoundRequest, clientIP string) (*dto.RoundResponse, error) {
	if err := s.checkRateLimits(ctx, sessionID, clientIP); err != nil {
		return nil, err
	}

	// Ownership check and sanitization run under the round latch so the
	// flag counter never races an in-flight round.
	sess, err := s.store.TryBeginRound(sessionID)
	if err != nil {
		if errors.Is(err, spiral.ErrSessionBusy) {
			return nil, serverutils.NewAppError(409, "a round for this session is already in flight")
		}
		return nil, serverutils.NewAppError(404, "session not found")
	}
	if sess.PractitionerID != practitionerID {
		s.store.EndRound(sessionID)
		return nil, serverutils.NewAppError(403, "session belongs to another practitioner")
	}

	sanitized := s.sanitizer.Sanitize(req.Question)
	if !sanitized.Safe {
		sess.SecurityFlagCount++
		flagCount := sess.SecurityFlagCount
		attempted := sess.RoundCount + 1
		s.store.EndRound(sessionID)

		s.publishSecurityFlag(ctx, practitionerID, sessionID, attempted, sanitized, flagCount)
		return &dto.RoundResponse{
			SessionId: sessionID,
			Round:     attempted,
			Refusal:   securityRefusalText,
		}, nil
	}
	s.store.EndRound(sessionID)

	started := time.Now()
	result, err := s.engine.RunRound(ctx, sessionID, sanitized.Cleaned)
	elapsed := time.Since(started)
	if err != nil {
		switch {
		case errors.Is(err, spiral.ErrSessionBusy):
			return nil, serverutils.NewAppError(409, "a round for this session is already in flight")
		case errors.Is(err, spiral.ErrSessionNotFound):
			return nil, serverutils.NewAppError(404, "session not found")
		case errors.Is(err, spiral.ErrReasonerUnavailable):
			return nil, serverutils.NewAppError(503, "diagnostic reasoning is temporarily unavailable, please retry shortly")
		case errors.Is(err, spiral.ErrRetrievalEmpty):
			return nil, serverutils.NewAppError(422, "no comparable cases found for this description")
		default:
			return nil, err
		}
	}

	s.publishRoundCompleted(ctx, practitionerID, result, elapsed)

	if shouldPromote(result) {
		s.publishCaseAccepted(ctx, sessionID, result)
	}

	return toRoundResponse(result), nil
}

func (s *diagnosisService) checkRateLimits(ctx context.Context, sessionID uuid.UUID, clientIP string) error {
	if s.rateLimiter == nil {
		return nil
	}

	// The limiter failing open beats refusing patients over a redis blip.
	allowed, err := s.rateLimiter.AllowIP(ctx, clientIP)
	if err != nil {
		log.Printf("[WARN] Rate limiter unavailable: %v", err)
		return nil
	}
	if !allowed {
		return serverutils.NewAppError(429, "too many requests, please slow down")
	}

	allowed, err = s.rateLimiter.AllowSession(ctx, sessionID)
	if err != nil {
		log.Printf("[WARN] Rate limiter unavailable: %v", err)
		return nil
	}
	if !allowed {
		return serverutils.NewAppError(429, "this session has reached its hourly round limit")
	}
	return nil
}

func (s *diagnosisService) publishRoundCompleted(ctx context.Context, practitionerID uuid.UUID, result *spiral.RoundResult, elapsed time.Duration) {
	if s.publisherService == nil {
		return
	}

	msg := dto.RoundCompletedMessage{
		SessionId:      result.SessionID,
		PractitionerId: practitionerID,
		Round:          result.Round,
		Coverage:       result.Coverage,
		Converged:      result.Converged,
		Forced:         result.ForcedConvergence,
		Degraded:       result.Degraded,
		ElapsedMs:      elapsed.Milliseconds(),
	}
	if result.Diagnosis != nil {
		msg.AnchorCaseId = result.Diagnosis.AnchorCaseID
		msg.Pattern = result.Diagnosis.Pattern
	}
	switch {
	case result.Review != nil:
		msg.Outcome = string(result.Review.Outcome)
	case result.Gate != nil:
		msg.Outcome = string(result.Gate.Action)
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return
	}
	if err := s.publisherService.Publish(ctx, constant.TopicRoundCompleted, payload); err != nil {
		log.Printf("[WARN] Failed to publish round.completed: %v", err)
	}
}

func (s *diagnosisService) publishSecurityFlag(ctx context.Context, practitionerID, sessionID uuid.UUID, round int, sanitized security.SanitizationResult, flagCount int) {
	if s.publisherService == nil {
		return
	}

	msg := dto.SecurityFlaggedMessage{
		SessionId:      sessionID,
		PractitionerId: practitionerID,
		Round:          round,
		Reason:         string(sanitized.Level),
		Violations:     sanitized.Violations,
		FlagCount:      flagCount,
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return
	}
	if err := s.publisherService.Publish(ctx, constant.TopicSecurityFlagged, payload); err != nil {
		log.Printf("[WARN] Failed to publish security.flagged: %v", err)
	}
}

// shouldPromote gates corpus write-back: only clean convergences become
// corpus cases. Forced, degraded, review-rejected and virtual-anchored
// rounds stay out of the corpus.
func shouldPromote(result *spiral.RoundResult) bool {
	if !result.Converged || result.ForcedConvergence || result.Degraded {
		return false
	}
	if result.Diagnosis == nil || result.Review == nil {
		return false
	}
	if result.Review.Outcome == spiral.ReviewRejected {
		return false
	}
	for _, c := range result.Candidates {
		if c.ID == result.Diagnosis.AnchorCaseID {
			return !c.Virtual
		}
	}
	return false
}

func (s *diagnosisService) publishCaseAccepted(ctx context.Context, sessionID uuid.UUID, result *spiral.RoundResult) {
	if s.eventPublisher == nil {
		return
	}

	sess, ok := s.store.Get(sessionID)
	if !ok {
		return
	}

	domain := "general"
	for _, c := range result.Candidates {
		if c.ID == result.Diagnosis.AnchorCaseID && c.Domain != "" {
			domain = c.Domain
			break
		}
	}

	accepted := dto.CaseAcceptedMessage{
		CaseId:      "acc-" + uuid.NewString(),
		SessionId:   sessionID,
		Pattern:     result.Diagnosis.Pattern,
		Symptoms:    sess.ActiveTerms,
		TextRaw:     sess.AccumulatedQuery,
		TextCJK:     strings.Join(fusion.Tokenize(sess.AccumulatedQuery), " "),
		Domain:      domain,
	}
	if result.Gate != nil {
		accepted.TongueTerms = result.Gate.Plan.TongueTerms
		accepted.PulseTerms = result.Gate.Plan.PulseTerms
		accepted.ZangfuTerms = result.Gate.Plan.ZangfuTerms
	}

	evt := events.BaseEvent{
		Type:       events.TypeCaseAccepted,
		Data:       toEventData(accepted),
		OccurredAt: time.Now(),
	}
	if err := s.eventPublisher.Publish(ctx, evt); err != nil {
		log.Printf("[WARN] Failed to publish CASE_ACCEPTED event: %v", err)
	}
}

func toRoundResponse(result *spiral.RoundResult) *dto.RoundResponse {
	resp := &dto.RoundResponse{
		SessionId:         result.SessionID,
		Round:             result.Round,
		Coverage:          result.Coverage,
		Converged:         result.Converged,
		ForcedConvergence: result.ForcedConvergence,
		Degraded:          result.Degraded,
		Refusal:           result.Refusal,
	}

	if result.Gate != nil {
		resp.Gate = &dto.GateDTO{
			Action:        string(result.Gate.Action),
			Reason:        result.Gate.Reason,
			Clarification: result.Gate.Clarification,
			PlanTerms:     result.Gate.Plan.Terms(),
			Degraded:      result.Gate.Degraded,
		}
	}

	for _, c := range result.Candidates {
		resp.Candidates = append(resp.Candidates, dto.CandidateDTO{
			Id:         c.ID,
			Pattern:    c.Pattern,
			Domain:     c.Domain,
			Similarity: c.Similarity,
			Lexical:    c.Lexical,
			Score:      c.Score,
			Virtual:    c.Virtual,
		})
	}

	if result.Diagnosis != nil {
		resp.Diagnosis = &dto.DiagnosisDTO{
			AnchorCaseId: result.Diagnosis.AnchorCaseID,
			Pattern:      result.Diagnosis.Pattern,
			Narrative:    result.Diagnosis.Narrative,
			Coverage:     result.Diagnosis.Coverage,
			MissingInfo:  result.Diagnosis.MissingInfo,
			Degraded:     result.Diagnosis.Degraded,
		}
	}

	if result.Review != nil {
		resp.Review = &dto.ReviewDTO{
			Outcome:  string(result.Review.Outcome),
			Findings: result.Review.Findings,
			Degraded: result.Review.Degraded,
		}
	}

	if result.Presentation != nil {
		resp.Presentation = &dto.PresentationDTO{
			Text:         result.Presentation.Text,
			FollowUps:    result.Presentation.FollowUps,
			Insufficient: result.Presentation.Insufficient,
			Disclaimer:   result.Presentation.Disclaimer,
		}
	}

	resp.Trace = make([]dto.TraceEntryDTO, 0, len(result.Trace))
	for _, t := range result.Trace {
		resp.Trace = append(resp.Trace, dto.TraceEntryDTO{
			Source: t.Source,
			Event:  t.Event,
			Detail: t.Detail,
			At:     t.At,
		})
	}

	return resp
}

// toEventData round-trips a struct through json into the map shape the
// event envelope carries.
func toEventData(v interface{}) map[string]interface{} {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	var data map[string]interface{}
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil
	}
	return data
}
