package service

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/MKRushil/Pulse/internal/dto"
	"github.com/MKRushil/Pulse/internal/entity"
	"github.com/MKRushil/Pulse/internal/repository/specification"
	"github.com/MKRushil/Pulse/internal/repository/unitofwork"
	"github.com/MKRushil/Pulse/pkg/embedding"
	"github.com/MKRushil/Pulse/pkg/events"
	pktNats "github.com/MKRushil/Pulse/pkg/nats"
)

type ICorpusIngestService interface {
	Start() error
}

// corpusIngestService grows the case corpus from accepted diagnoses. It
// consumes CASE_ACCEPTED events off the durable stream, embeds the case
// narrative and inserts the row; the case id in the event keeps redelivery
// idempotent.
type corpusIngestService struct {
	subscriber        *pktNats.Subscriber
	uowFactory        unitofwork.RepositoryFactory
	embeddingProvider embedding.EmbeddingProvider
}

func NewCorpusIngestService(
	subscriber *pktNats.Subscriber,
	uowFactory unitofwork.RepositoryFactory,
	embeddingProvider embedding.EmbeddingProvider,
) ICorpusIngestService {
	return &corpusIngestService{
		subscriber:        subscriber,
		uowFactory:        uowFactory,
		embeddingProvider: embeddingProvider,
	}
}

func (cs *corpusIngestService) Start() error {
	return cs.subscriber.Subscribe("events."+events.TypeCaseAccepted, "corpus-ingester", cs.handleCaseAccepted)
}

func (cs *corpusIngestService) handleCaseAccepted(ctx context.Context, event events.Event) error {
	var payload dto.CaseAcceptedMessage
	if err := decodeEventData(event.Payload(), &payload); err != nil {
		log.Printf("[ERROR] Malformed CASE_ACCEPTED payload, dropped: %v", err)
		return nil
	}
	if payload.CaseId == "" || payload.Pattern == "" || payload.TextRaw == "" {
		log.Printf("[WARN] CASE_ACCEPTED missing required fields, dropped (case_id=%q)", payload.CaseId)
		return nil
	}

	uow := cs.uowFactory.NewUnitOfWork(ctx)

	existing, err := uow.CaseRepository().FindOne(ctx, specification.ByCaseID{ID: payload.CaseId})
	if err != nil {
		return err
	}
	if existing != nil {
		log.Printf("[INFO] Corpus case %s already ingested, skipping", payload.CaseId)
		return nil
	}

	res, err := cs.embeddingProvider.Generate(payload.TextRaw, embedding.TaskPassage)
	if err != nil {
		log.Printf("[ERROR] Failed to embed case %s: %v", payload.CaseId, err)
		return err
	}

	record := &entity.CaseRecord{
		Id:          payload.CaseId,
		Pattern:     payload.Pattern,
		Symptoms:    payload.Symptoms,
		TongueTerms: payload.TongueTerms,
		PulseTerms:  payload.PulseTerms,
		ZangfuTerms: payload.ZangfuTerms,
		TextRaw:     payload.TextRaw,
		TextCJK:     payload.TextCJK,
		Domain:      caseDomain(payload.Domain),
		Embedding:   res.Embedding.Values,
		Source:      entity.CaseSourceAccepted,
		CreatedAt:   time.Now(),
	}

	if err := uow.CaseRepository().Create(ctx, record); err != nil {
		log.Printf("[ERROR] Failed to insert corpus case %s: %v", payload.CaseId, err)
		return err
	}

	log.Printf("[SUCCESS] Corpus case %s ingested (pattern=%s, session=%s)",
		payload.CaseId, payload.Pattern, payload.SessionId)
	return nil
}

func caseDomain(raw string) entity.CaseDomain {
	switch entity.CaseDomain(raw) {
	case entity.CaseDomainDigestive, entity.CaseDomainGynecological:
		return entity.CaseDomain(raw)
	default:
		return entity.CaseDomainGeneral
	}
}

// decodeEventData maps the loose event payload back onto a typed struct.
func decodeEventData(data map[string]interface{}, out interface{}) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}
