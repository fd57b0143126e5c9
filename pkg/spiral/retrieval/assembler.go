// Package retrieval assembles the ranked candidate list for one round:
// fallback across search fields, malformed-record discard, domain-aware
// reordering and virtual candidate injection.
package retrieval

import (
	"context"
	"fmt"
	"log"

	"github.com/MKRushil/Pulse/pkg/spiral"
)

// Searcher is the external hybrid-search capability. Search runs one field
// of the fallback chain; Nearest ranks by embedding alone and backs the
// list up to target size when lexical matching is too strict.
type Searcher interface {
	Search(ctx context.Context, queryText string, field string, limit int) ([]spiral.Candidate, error)
	Nearest(ctx context.Context, queryText string, limit int) ([]spiral.Candidate, error)
}

type Assembler struct {
	searcher     Searcher
	fields       []string
	target       int
	virtualScore float64
	logger       *log.Logger
}

func NewAssembler(searcher Searcher, cfg spiral.Config, logger *log.Logger) *Assembler {
	if logger == nil {
		logger = log.Default()
	}
	return &Assembler{
		searcher:     searcher,
		fields:       cfg.SearchFields,
		target:       cfg.CandidateTarget,
		virtualScore: cfg.VirtualCaseScore,
		logger:       logger,
	}
}

// Assemble builds the ordered candidate list for a round, at most target
// long, together with the trace of every fallback, discard, relaxation and
// injection that fired. ErrRetrievalEmpty is returned only when every field
// came back empty and the plan offers nothing to synthesize from.
func (a *Assembler) Assemble(ctx context.Context, query string, plan spiral.RetrievalPlan) ([]spiral.Candidate, []spiral.TraceEntry, error) {
	var trace []spiral.TraceEntry

	hits, fieldUsed, err := a.searchWithFallback(ctx, query, &trace)
	if err != nil {
		return nil, trace, err
	}

	if len(hits) == 0 {
		if plan.Empty() {
			trace = append(trace, spiral.NewTraceEntry(spiral.TraceRetrieval, "empty", "all fallback fields empty, plan has no terms"))
			return nil, trace, spiral.ErrRetrievalEmpty
		}
		virtual := NewVirtualCandidate(query, plan, a.virtualScore)
		trace = append(trace, spiral.NewTraceEntry(spiral.TraceRetrieval, "virtual_injected", "virtual case injected"))
		a.logger.Printf("[RETRIEVAL] corpus empty for query, synthesized %s", virtual.ID)
		return []spiral.Candidate{virtual}, trace, nil
	}

	hits = a.backfill(ctx, query, fieldUsed, hits, &trace)

	domain := ClassifyDomain(query)
	reordered, relaxed := reorderByDomain(hits, domain)
	if relaxed {
		trace = append(trace, spiral.NewTraceEntry(spiral.TraceRetrieval, "domain_relaxed", "domain relaxed"))
		a.logger.Printf("[RETRIEVAL] no %s-domain candidate, order kept", domain)
	}
	hits = reordered

	if planTerms := plan.Terms(); len(planTerms) > 0 && !anyShares(hits, planTerms) {
		virtual := NewVirtualCandidate(query, plan, a.virtualScore)
		keep := len(hits)
		if keep > a.target-1 {
			keep = a.target - 1
		}
		hits = append([]spiral.Candidate{virtual}, hits[:keep]...)
		trace = append(trace, spiral.NewTraceEntry(spiral.TraceRetrieval, "virtual_injected", "virtual case injected"))
		a.logger.Printf("[RETRIEVAL] no plan-term overlap, injected %s", virtual.ID)
	}

	if len(hits) > a.target {
		hits = hits[:a.target]
	}
	return hits, trace, nil
}

// searchWithFallback walks the fixed field order until one yields results.
// Malformed records are discarded and traced, never propagated.
func (a *Assembler) searchWithFallback(ctx context.Context, query string, trace *[]spiral.TraceEntry) ([]spiral.Candidate, int, error) {
	for i, field := range a.fields {
		raw, err := a.searcher.Search(ctx, query, field, a.target*2)
		if err != nil {
			return nil, i, fmt.Errorf("search on %s: %w", field, err)
		}

		valid := raw[:0:0]
		for _, c := range raw {
			if !c.Valid() {
				*trace = append(*trace, spiral.NewTraceEntry(spiral.TraceRetrieval, "malformed_discarded",
					fmt.Sprintf("discarded malformed record from field %s", field)))
				continue
			}
			valid = append(valid, c)
		}

		if len(valid) > 0 {
			if i > 0 {
				a.logger.Printf("[RETRIEVAL] field %s answered after %d fallback(s)", field, i)
			}
			return valid, i, nil
		}

		*trace = append(*trace, spiral.NewTraceEntry(spiral.TraceRetrieval, "field_fallback",
			fmt.Sprintf("field %s returned zero results", field)))
	}
	return nil, len(a.fields), nil
}

// backfill tops the list up to target using the remaining fallback fields,
// then embedding-only nearest neighbors. The corpus guarantee is: whenever
// it holds at least target records, the assembled list has exactly target.
func (a *Assembler) backfill(ctx context.Context, query string, fieldUsed int, hits []spiral.Candidate, trace *[]spiral.TraceEntry) []spiral.Candidate {
	if len(hits) >= a.target {
		return hits
	}

	have := make(map[string]bool, len(hits))
	for _, c := range hits {
		have[c.ID] = true
	}

	add := func(extra []spiral.Candidate, source string) {
		for _, c := range extra {
			if len(hits) >= a.target {
				return
			}
			if !c.Valid() || have[c.ID] {
				continue
			}
			have[c.ID] = true
			hits = append(hits, c)
			*trace = append(*trace, spiral.NewTraceEntry(spiral.TraceRetrieval, "backfill",
				fmt.Sprintf("backfilled %s from %s", c.ID, source)))
		}
	}

	for i := fieldUsed + 1; i < len(a.fields) && len(hits) < a.target; i++ {
		extra, err := a.searcher.Search(ctx, query, a.fields[i], a.target*2)
		if err != nil {
			continue
		}
		add(extra, a.fields[i])
	}

	if len(hits) < a.target {
		extra, err := a.searcher.Nearest(ctx, query, a.target*2)
		if err == nil {
			add(extra, "nearest")
		}
	}
	return hits
}

func anyShares(candidates []spiral.Candidate, terms []string) bool {
	for _, c := range candidates {
		if c.SharesTerm(terms) {
			return true
		}
	}
	return false
}
