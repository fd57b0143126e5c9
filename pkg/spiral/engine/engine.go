// Package engine is the four-stage pipeline orchestrator: it walks one
// round through gate, diagnose, review and present, composing the session
// store, retrieval assembler, case selector and convergence evaluator with
// the external reasoning capability.
package engine

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/MKRushil/Pulse/pkg/spiral"
	"github.com/MKRushil/Pulse/pkg/spiral/convergence"
	"github.com/MKRushil/Pulse/pkg/spiral/fusion"
	"github.com/MKRushil/Pulse/pkg/spiral/retrieval"
	"github.com/MKRushil/Pulse/pkg/spiral/selector"
)

type Engine struct {
	cfg         spiral.Config
	store       spiral.SessionStore
	assembler   *retrieval.Assembler
	selector    *selector.Selector
	convergence *convergence.Evaluator
	reasoner    spiral.Reasoner
	validator   spiral.OutputValidator
	logger      *log.Logger
}

func NewEngine(
	cfg spiral.Config,
	store spiral.SessionStore,
	assembler *retrieval.Assembler,
	sel *selector.Selector,
	conv *convergence.Evaluator,
	reasoner spiral.Reasoner,
	validator spiral.OutputValidator,
	logger *log.Logger,
) *Engine {
	if logger == nil {
		logger = log.Default()
	}
	return &Engine{
		cfg:         cfg,
		store:       store,
		assembler:   assembler,
		selector:    sel,
		convergence: conv,
		reasoner:    reasoner,
		validator:   validator,
		logger:      logger,
	}
}

// RunRound executes one spiral round for the session. The session is
// committed only when the round is accepted: gate rejections, clarification
// requests and empty retrieval leave the accumulated query and round count
// untouched. Concurrent rounds for the same session fail with
// ErrSessionBusy.
func (e *Engine) RunRound(ctx context.Context, sessionID uuid.UUID, input string) (*spiral.RoundResult, error) {
	sess, err := e.store.TryBeginRound(sessionID)
	if err != nil {
		return nil, err
	}
	defer e.store.EndRound(sessionID)

	round := sess.RoundCount + 1
	accumulated := fusion.Accumulate(sess.AccumulatedQuery, input, round)

	result := &spiral.RoundResult{
		SessionID: sessionID,
		Round:     round,
	}

	started := time.Now()
	e.logger.Printf("[ROUND %d] session=%s input_len=%d", round, sessionID, len([]rune(input)))

	// ── Gate ──
	gate, err := e.runGate(ctx, accumulated, sess, result)
	if err != nil {
		return nil, err
	}
	result.Gate = gate

	_, terminal, terr := spiral.Next(spiral.StageGate, gateOutcome(gate.Action))
	if terr != nil {
		return nil, terr
	}
	if terminal {
		if gate.Action == spiral.GateReject {
			result.Refusal = scopeRefusalText
		}
		e.logger.Printf("[ROUND %d] gate terminal action=%s (%.1fs)", round, gate.Action, time.Since(started).Seconds())
		return result, nil
	}

	state := fusion.Update(sessionState(sess), input, gate.Plan.Terms(), round)

	// ── Retrieval ──
	candidates, rtrace, err := e.assembler.Assemble(ctx, accumulated, gate.Plan)
	result.Trace = append(result.Trace, rtrace...)
	if err != nil {
		if errors.Is(err, spiral.ErrRetrievalEmpty) {
			e.logger.Printf("[ROUND %d] retrieval empty, round short-circuited", round)
			return result, spiral.ErrRetrievalEmpty
		}
		return nil, err
	}
	result.Candidates = candidates

	// ── Diagnose ──
	diag, err := e.runDiagnose(ctx, accumulated, candidates, sess, state, result)
	if err != nil {
		return nil, err
	}
	result.Diagnosis = diag
	result.Degraded = diag.Degraded
	result.Coverage = diag.Coverage

	diagnoseOutcome := spiral.OutcomeOk
	if diag.Degraded {
		diagnoseOutcome = spiral.OutcomeDegraded
	}
	if _, _, err := spiral.Next(spiral.StageDiagnose, diagnoseOutcome); err != nil {
		return nil, err
	}

	// ── Convergence ──
	verdict := e.convergence.Evaluate(convergence.Input{
		Coverage:     diag.Coverage,
		Round:        round,
		AnchorID:     diag.AnchorCaseID,
		PrevAnchorID: sess.LastAnchorCaseID,
		AnchorScore:  diag.SubScores.Blended,
	})
	result.Converged = verdict.Converged
	result.ForcedConvergence = verdict.Forced
	result.Trace = append(result.Trace, spiral.NewTraceEntry(spiral.TraceConvergence, "evaluated",
		describeVerdict(verdict, diag.Coverage)))

	// ── Review ──
	review, err := e.runReview(ctx, diag, result)
	if err != nil {
		return nil, err
	}
	result.Review = review

	_, terminal, terr = spiral.Next(spiral.StageReview, reviewOutcome(review.Outcome))
	if terr != nil {
		return nil, terr
	}
	if terminal {
		result.Refusal = safetyRefusalText
		e.commit(sess, accumulated, round, input, diag, verdict, state, "rejected_output")
		e.logger.Printf("[ROUND %d] review rejected output (%.1fs)", round, time.Since(started).Seconds())
		return result, nil
	}

	// ── Present ──
	followUps := e.convergence.Questions(accumulated, diag.Coverage, round)
	pres := e.runPresent(diag, review, verdict, followUps, result)
	result.Presentation = pres

	if _, _, err := spiral.Next(spiral.StagePresent, spiral.OutcomeDone); err != nil {
		return nil, err
	}

	e.commit(sess, accumulated, round, input, diag, verdict, state, string(review.Outcome))
	e.logger.Printf("[ROUND %d] done coverage=%.2f converged=%v forced=%v (%.1fs)",
		round, diag.Coverage, verdict.Converged, verdict.Forced, time.Since(started).Seconds())
	return result, nil
}

// commit applies an accepted round's mutations to the session. Runs under
// the round latch, so plain field writes are safe.
func (e *Engine) commit(sess *spiral.Session, accumulated string, round int, input string,
	diag *spiral.Diagnosis, verdict convergence.Verdict, state fusion.State, outcome string) {

	sess.AccumulatedQuery = accumulated
	sess.RoundCount = round
	sess.PrevCoverage = sess.LastCoverage
	sess.LastCoverage = diag.Coverage
	sess.LastAnchorCaseID = diag.AnchorCaseID
	sess.LastAnchorPattern = diag.Pattern
	sess.ActiveTerms = state.Active
	sess.NegatedTerms = state.Negated
	sess.PinnedTerms = state.Pinned
	sess.TermSources = state.Sources
	sess.Converged = verdict.Converged

	sess.History = append(sess.History, spiral.RoundSummary{
		Round:    round,
		Input:    input,
		AnchorID: diag.AnchorCaseID,
		Pattern:  diag.Pattern,
		Coverage: diag.Coverage,
		Outcome:  outcome,
		Forced:   verdict.Forced,
		At:       time.Now(),
	})
}

// call issues one reasoning request with the per-stage timeout, retrying
// only the unavailable failure up to the configured budget.
func (e *Engine) call(ctx context.Context, req spiral.StageRequest) spiral.StageResult {
	attempts := 1 + e.cfg.UnavailableRetries
	var res spiral.StageResult
	for i := 0; i < attempts; i++ {
		cctx, cancel := context.WithTimeout(ctx, e.cfg.StageTimeout)
		res = e.reasoner.Call(cctx, req)
		cancel()
		if res.Failure != spiral.FailureUnavailable {
			return res
		}
		e.logger.Printf("[%s] reasoner unavailable, attempt %d/%d", req.Stage, i+1, attempts)
	}
	return res
}

func sessionState(sess *spiral.Session) fusion.State {
	return fusion.State{
		Active:  sess.ActiveTerms,
		Negated: sess.NegatedTerms,
		Pinned:  sess.PinnedTerms,
		Sources: sess.TermSources,
	}
}

func gateOutcome(action spiral.GateAction) spiral.Outcome {
	switch action {
	case spiral.GateReject:
		return spiral.OutcomeReject
	case spiral.GateAskMore:
		return spiral.OutcomeAskMore
	default:
		return spiral.OutcomeProceed
	}
}

func reviewOutcome(outcome spiral.ReviewOutcome) spiral.Outcome {
	switch outcome {
	case spiral.ReviewRejected:
		return spiral.OutcomeRejected
	case spiral.ReviewRewritten:
		return spiral.OutcomeRewritten
	default:
		return spiral.OutcomePassed
	}
}

func describeVerdict(v convergence.Verdict, coverage float64) string {
	var sb strings.Builder
	sb.WriteString("coverage=")
	sb.WriteString(formatFloat(coverage))
	sb.WriteString(" score=")
	sb.WriteString(formatFloat(v.Score))
	if v.Converged {
		sb.WriteString(" converged")
	}
	if v.Forced {
		sb.WriteString(" forced")
	}
	return sb.String()
}
