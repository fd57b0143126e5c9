package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/MKRushil/Pulse/internal/constant"
	"github.com/MKRushil/Pulse/internal/dto"
	"github.com/MKRushil/Pulse/internal/entity"
	"github.com/MKRushil/Pulse/internal/pkg/mailer"
	"github.com/MKRushil/Pulse/internal/repository/unitofwork"
	"github.com/MKRushil/Pulse/internal/websocket"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/google/uuid"
)

type IAuditConsumerService interface {
	Consume(ctx context.Context) error
}

// auditConsumerService drains the in-process bus: every completed round and
// every sanitizer hit becomes an audit row, watchers get a websocket push,
// and repeated sanitizer hits past the threshold page the ops mailbox.
type auditConsumerService struct {
	pubSub         *gochannel.GoChannel
	uowFactory     unitofwork.RepositoryFactory
	hub            *websocket.Hub
	emailService   mailer.IEmailService
	alertThreshold int
}

func NewAuditConsumerService(
	pubSub *gochannel.GoChannel,
	uowFactory unitofwork.RepositoryFactory,
	hub *websocket.Hub,
	emailService mailer.IEmailService,
	alertThreshold int,
) IAuditConsumerService {
	return &auditConsumerService{
		pubSub:         pubSub,
		uowFactory:     uowFactory,
		hub:            hub,
		emailService:   emailService,
		alertThreshold: alertThreshold,
	}
}

func (cs *auditConsumerService) Consume(ctx context.Context) error {
	rounds, err := cs.pubSub.Subscribe(ctx, constant.TopicRoundCompleted)
	if err != nil {
		return err
	}
	flags, err := cs.pubSub.Subscribe(ctx, constant.TopicSecurityFlagged)
	if err != nil {
		return err
	}

	go func() {
		for msg := range rounds {
			cs.processRoundCompleted(ctx, msg)
		}
	}()
	go func() {
		for msg := range flags {
			cs.processSecurityFlagged(ctx, msg)
		}
	}()

	return nil
}

func (cs *auditConsumerService) processRoundCompleted(ctx context.Context, msg *message.Message) {
	var payload dto.RoundCompletedMessage
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		log.Printf("[ERROR] Failed to unmarshal round.completed message: %v", err)
		msg.Ack() // Ack invalid messages to prevent infinite retry
		return
	}

	detail := fmt.Sprintf("outcome=%s pattern=%s coverage=%.2f converged=%v forced=%v degraded=%v elapsed_ms=%d",
		payload.Outcome, payload.Pattern, payload.Coverage, payload.Converged, payload.Forced, payload.Degraded, payload.ElapsedMs)

	record := &entity.AuditRecord{
		Id:             uuid.New(),
		SessionId:      payload.SessionId,
		PractitionerId: &payload.PractitionerId,
		Round:          payload.Round,
		Kind:           entity.AuditKindRoundCompleted,
		Stage:          "present",
		Detail:         detail,
		CreatedAt:      time.Now(),
	}

	uow := cs.uowFactory.NewUnitOfWork(ctx)
	if err := uow.AuditRepository().Create(ctx, record); err != nil {
		log.Printf("[ERROR] Failed to persist round audit record: %v", err)
		msg.Nack() // Nack for retriable errors
		return
	}

	if cs.hub != nil {
		cs.hub.Send(payload.SessionId, constant.WSRoundProgress, payload)
	}

	msg.Ack()
}

func (cs *auditConsumerService) processSecurityFlagged(ctx context.Context, msg *message.Message) {
	var payload dto.SecurityFlaggedMessage
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		log.Printf("[ERROR] Failed to unmarshal security.flagged message: %v", err)
		msg.Ack()
		return
	}

	detail := fmt.Sprintf("reason=%s violations=%v flag_count=%d",
		payload.Reason, payload.Violations, payload.FlagCount)

	record := &entity.AuditRecord{
		Id:             uuid.New(),
		SessionId:      payload.SessionId,
		PractitionerId: &payload.PractitionerId,
		Round:          payload.Round,
		Kind:           entity.AuditKindSecurityFlag,
		Detail:         detail,
		CreatedAt:      time.Now(),
	}

	uow := cs.uowFactory.NewUnitOfWork(ctx)
	if err := uow.AuditRepository().Create(ctx, record); err != nil {
		log.Printf("[ERROR] Failed to persist security audit record: %v", err)
		msg.Nack()
		return
	}

	if cs.alertThreshold > 0 && payload.FlagCount >= cs.alertThreshold && cs.emailService != nil {
		reason := payload.Reason
		if len(payload.Violations) > 0 {
			reason = payload.Violations[len(payload.Violations)-1]
		}
		go func() {
			if err := cs.emailService.SendSecurityAlert(payload.SessionId.String(), payload.FlagCount, reason); err != nil {
				log.Printf("[ERROR] Failed to send security alert: %v", err)
			}
		}()
	}

	msg.Ack()
}
