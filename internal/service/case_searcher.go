package service

import (
	"context"
	"fmt"

	"github.com/MKRushil/Pulse/internal/repository/contract"
	"github.com/MKRushil/Pulse/internal/repository/unitofwork"
	"github.com/MKRushil/Pulse/pkg/embedding"
	"github.com/MKRushil/Pulse/pkg/spiral"
	"github.com/MKRushil/Pulse/pkg/spiral/retrieval"
)

// caseSearcher feeds the retrieval assembler from the postgres corpus. Each
// query is embedded once per call; the cached provider absorbs the repeat
// embeddings across fallback fields.
type caseSearcher struct {
	uowFactory        unitofwork.RepositoryFactory
	embeddingProvider embedding.EmbeddingProvider
}

func NewCaseSearcher(uowFactory unitofwork.RepositoryFactory, embeddingProvider embedding.EmbeddingProvider) retrieval.Searcher {
	return &caseSearcher{
		uowFactory:        uowFactory,
		embeddingProvider: embeddingProvider,
	}
}

func (s *caseSearcher) Search(ctx context.Context, queryText string, field string, limit int) ([]spiral.Candidate, error) {
	res, err := s.embeddingProvider.Generate(queryText, embedding.TaskQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	scored, err := uow.CaseRepository().SearchByField(ctx, queryText, res.Embedding.Values, field, limit)
	if err != nil {
		return nil, err
	}
	return toCandidates(scored), nil
}

func (s *caseSearcher) Nearest(ctx context.Context, queryText string, limit int) ([]spiral.Candidate, error) {
	res, err := s.embeddingProvider.Generate(queryText, embedding.TaskQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	scored, err := uow.CaseRepository().SearchNearest(ctx, res.Embedding.Values, limit)
	if err != nil {
		return nil, err
	}
	return toCandidates(scored), nil
}

func toCandidates(scored []*contract.ScoredCase) []spiral.Candidate {
	out := make([]spiral.Candidate, 0, len(scored))
	for _, sc := range scored {
		if sc == nil || sc.Case == nil {
			continue
		}
		out = append(out, spiral.Candidate{
			ID:          sc.Case.Id,
			Pattern:     sc.Case.Pattern,
			Symptoms:    sc.Case.Symptoms,
			TongueTerms: sc.Case.TongueTerms,
			PulseTerms:  sc.Case.PulseTerms,
			ZangfuTerms: sc.Case.ZangfuTerms,
			Text:        sc.Case.TextRaw,
			Domain:      string(sc.Case.Domain),
			Similarity:  sc.Similarity,
			Lexical:     sc.Lexical,
			Score:       sc.Score,
		})
	}
	return out
}
