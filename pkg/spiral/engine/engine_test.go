package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/MKRushil/Pulse/pkg/spiral"
	"github.com/MKRushil/Pulse/pkg/spiral/convergence"
	"github.com/MKRushil/Pulse/pkg/spiral/retrieval"
	"github.com/MKRushil/Pulse/pkg/spiral/selector"
)

// fakeStore is a minimal in-memory SessionStore for orchestration tests.
type fakeStore struct {
	sessions map[uuid.UUID]*spiral.Session
	busy     map[uuid.UUID]bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		sessions: make(map[uuid.UUID]*spiral.Session),
		busy:     make(map[uuid.UUID]bool),
	}
}

func (f *fakeStore) GetOrCreate(id, practitionerID uuid.UUID) *spiral.Session {
	if s, ok := f.sessions[id]; ok {
		return s
	}
	s := &spiral.Session{ID: id, PractitionerID: practitionerID}
	f.sessions[id] = s
	return s
}

func (f *fakeStore) Get(id uuid.UUID) (*spiral.Session, bool) {
	s, ok := f.sessions[id]
	return s, ok
}

func (f *fakeStore) TryBeginRound(id uuid.UUID) (*spiral.Session, error) {
	s, ok := f.sessions[id]
	if !ok {
		return nil, spiral.ErrSessionNotFound
	}
	if f.busy[id] {
		return nil, spiral.ErrSessionBusy
	}
	f.busy[id] = true
	return s, nil
}

func (f *fakeStore) EndRound(id uuid.UUID) { delete(f.busy, id) }

func (f *fakeStore) Reset(id uuid.UUID) bool { return !f.busy[id] }

func (f *fakeStore) Evict(id uuid.UUID) bool {
	if f.busy[id] {
		return false
	}
	delete(f.sessions, id)
	return true
}

func (f *fakeStore) Count() int { return len(f.sessions) }

func (f *fakeStore) Stats() spiral.StoreStats {
	return spiral.StoreStats{Resident: len(f.sessions), Busy: len(f.busy)}
}

// scriptedReasoner replays canned responses per stage; an exhausted queue
// repeats its last entry, an absent one reports unavailable.
type scriptedReasoner struct {
	responses map[spiral.Stage][]spiral.StageResult
	calls     map[spiral.Stage]int
}

func (r *scriptedReasoner) Call(_ context.Context, req spiral.StageRequest) spiral.StageResult {
	if r.calls == nil {
		r.calls = make(map[spiral.Stage]int)
	}
	i := r.calls[req.Stage]
	r.calls[req.Stage]++

	queue := r.responses[req.Stage]
	if len(queue) == 0 {
		return spiral.StageResult{Failure: spiral.FailureUnavailable}
	}
	if i >= len(queue) {
		i = len(queue) - 1
	}
	return queue[i]
}

type stubValidator struct {
	findings []spiral.Finding
}

func (v *stubValidator) Inspect(string) []spiral.Finding { return v.findings }

// fixedSearcher answers the first fallback field with a fixed corpus slice.
type fixedSearcher struct {
	candidates []spiral.Candidate
}

func (s *fixedSearcher) Search(_ context.Context, _ string, field string, _ int) ([]spiral.Candidate, error) {
	if field == "bm25_cjk" {
		return s.candidates, nil
	}
	return nil, nil
}

func (s *fixedSearcher) Nearest(_ context.Context, _ string, _ int) ([]spiral.Candidate, error) {
	return s.candidates, nil
}

func testCandidates() []spiral.Candidate {
	return []spiral.Candidate{
		{ID: "case-1", Pattern: "心脾兩虛", Symptoms: []string{"心悸", "失眠"}, Text: "思慮過度，心悸失眠", Similarity: 0.95},
		{ID: "case-2", Pattern: "肝氣鬱結", Symptoms: []string{"脅痛", "心悸"}, Similarity: 0.5},
		{ID: "case-3", Pattern: "腎陰虛", Symptoms: []string{"腰痠", "耳鳴"}, Similarity: 0.4},
	}
}

func newTestEngine(reasoner spiral.Reasoner, validator spiral.OutputValidator, candidates []spiral.Candidate) (*Engine, *fakeStore, uuid.UUID) {
	cfg := spiral.DefaultConfig()
	store := newFakeStore()
	sessionID := uuid.New()
	store.GetOrCreate(sessionID, uuid.New())

	logger := log.New(io.Discard, "", 0)
	asm := retrieval.NewAssembler(&fixedSearcher{candidates: candidates}, cfg, logger)
	eng := NewEngine(cfg, store, asm, selector.New(cfg), convergence.New(cfg), reasoner, validator, logger)
	return eng, store, sessionID
}

func ok(text string) spiral.StageResult { return spiral.StageResult{Text: text} }

func gateProceedJSON() string {
	return `{"action":"proceed","reason":"屬中醫辨證範疇","clarification":"","plan":` +
		`{"symptom_terms":["心悸","失眠"],"tongue_terms":[],"pulse_terms":[],"zangfu_terms":[]}}`
}

func diagnoseJSON(coverage float64, narrative string) string {
	return fmt.Sprintf(`{"pattern":"心脾兩虛","coverage":%.2f,"missing":["舌象"],"narrative":"%s"}`, coverage, narrative)
}

const reviewPassJSON = `{"verdict":"pass","rewritten":"","findings":[]}`

func findTrace(trace []spiral.TraceEntry, source string) (spiral.TraceEntry, bool) {
	for _, e := range trace {
		if e.Source == source {
			return e, true
		}
	}
	return spiral.TraceEntry{}, false
}

func TestRunRoundCommitsAcceptedRound(t *testing.T) {
	reasoner := &scriptedReasoner{responses: map[spiral.Stage][]spiral.StageResult{
		spiral.StageGate:     {ok(gateProceedJSON())},
		spiral.StageDiagnose: {ok(diagnoseJSON(0.85, "心脾兩虛，思慮傷脾，心血暗耗。"))},
		spiral.StageReview:   {ok(reviewPassJSON)},
	}}
	eng, store, sessionID := newTestEngine(reasoner, &stubValidator{}, testCandidates())

	result, err := eng.RunRound(context.Background(), sessionID, "心悸，失眠")
	if err != nil {
		t.Fatalf("RunRound returned error: %v", err)
	}

	if result.Round != 1 {
		t.Errorf("Round = %d, want 1", result.Round)
	}
	if result.Diagnosis == nil || result.Diagnosis.AnchorCaseID != "case-1" {
		t.Fatalf("Diagnosis = %+v, want anchored on case-1", result.Diagnosis)
	}
	if result.Coverage != 0.85 {
		t.Errorf("Coverage = %v, want 0.85", result.Coverage)
	}
	if !result.Converged || result.ForcedConvergence {
		t.Errorf("Converged/Forced = %v/%v, want true/false", result.Converged, result.ForcedConvergence)
	}
	if result.Presentation == nil {
		t.Fatal("Presentation = nil, want rendered report")
	}
	if !strings.HasPrefix(result.Presentation.Text, "一、證型判斷") {
		t.Errorf("Presentation.Text = %q, want the fixed section order", result.Presentation.Text)
	}
	if !strings.Contains(result.Presentation.Text, disclaimerText) {
		t.Error("Presentation.Text missing the disclaimer")
	}
	if result.Refusal != "" {
		t.Errorf("Refusal = %q, want empty", result.Refusal)
	}

	for _, source := range []string{spiral.TraceGate, spiral.TraceSelector, spiral.TraceDiagnose, spiral.TraceConvergence, spiral.TraceReview, spiral.TracePresent} {
		if n := spiral.CountBySource(result.Trace, source); n != 1 {
			t.Errorf("trace entries from %s = %d, want 1", source, n)
		}
	}

	sess, _ := store.Get(sessionID)
	if sess.RoundCount != 1 {
		t.Errorf("session RoundCount = %d, want 1", sess.RoundCount)
	}
	if sess.AccumulatedQuery != "心悸，失眠" {
		t.Errorf("AccumulatedQuery = %q, want the round input", sess.AccumulatedQuery)
	}
	if sess.LastAnchorCaseID != "case-1" || sess.LastCoverage != 0.85 {
		t.Errorf("anchor/coverage = %q/%v, want case-1/0.85", sess.LastAnchorCaseID, sess.LastCoverage)
	}
	if !sess.Converged {
		t.Error("session Converged = false, want true")
	}
	if len(sess.History) != 1 || sess.History[0].Outcome != "passed" {
		t.Errorf("History = %+v, want one passed round", sess.History)
	}
}

func TestRunRoundSecondRoundAccumulates(t *testing.T) {
	reasoner := &scriptedReasoner{responses: map[spiral.Stage][]spiral.StageResult{
		spiral.StageGate: {ok(gateProceedJSON())},
		spiral.StageDiagnose: {
			ok(diagnoseJSON(0.5, "初步傾向心脾兩虛。")),
			ok(diagnoseJSON(0.7, "補充後仍符合心脾兩虛。")),
		},
		spiral.StageReview: {ok(reviewPassJSON)},
	}}
	eng, store, sessionID := newTestEngine(reasoner, &stubValidator{}, testCandidates())

	if _, err := eng.RunRound(context.Background(), sessionID, "心悸，失眠"); err != nil {
		t.Fatalf("round 1 returned error: %v", err)
	}
	result, err := eng.RunRound(context.Background(), sessionID, "食慾不佳")
	if err != nil {
		t.Fatalf("round 2 returned error: %v", err)
	}

	if result.Round != 2 {
		t.Errorf("Round = %d, want 2", result.Round)
	}

	sess, _ := store.Get(sessionID)
	if sess.AccumulatedQuery != "心悸，失眠。補充：食慾不佳" {
		t.Errorf("AccumulatedQuery = %q, want concatenation with the supplement separator", sess.AccumulatedQuery)
	}
	if sess.RoundCount != 2 {
		t.Errorf("RoundCount = %d, want 2", sess.RoundCount)
	}
	if sess.PrevCoverage != 0.5 || sess.LastCoverage != 0.7 {
		t.Errorf("coverage history = %v/%v, want 0.5/0.7", sess.PrevCoverage, sess.LastCoverage)
	}
	if len(sess.History) != 2 {
		t.Errorf("len(History) = %d, want 2", len(sess.History))
	}
}

func TestRunRoundGateRejectLeavesSessionUntouched(t *testing.T) {
	reasoner := &scriptedReasoner{responses: map[spiral.Stage][]spiral.StageResult{
		spiral.StageGate: {ok(`{"action":"reject","reason":"與中醫健康諮詢無關","clarification":"","plan":` +
			`{"symptom_terms":[],"tongue_terms":[],"pulse_terms":[],"zangfu_terms":[]}}`)},
	}}
	eng, store, sessionID := newTestEngine(reasoner, &stubValidator{}, testCandidates())

	result, err := eng.RunRound(context.Background(), sessionID, "幫我寫一段程式")
	if err != nil {
		t.Fatalf("RunRound returned error: %v", err)
	}

	if result.Refusal != scopeRefusalText {
		t.Errorf("Refusal = %q, want the scope refusal", result.Refusal)
	}
	if result.Candidates != nil || result.Diagnosis != nil || result.Presentation != nil {
		t.Error("downstream stages ran after a gate rejection")
	}
	if n := spiral.CountBySource(result.Trace, spiral.TraceGate); n != 1 {
		t.Errorf("gate trace entries = %d, want 1", n)
	}
	if reasoner.calls[spiral.StageDiagnose] != 0 {
		t.Error("diagnose reasoner called after a gate rejection")
	}

	sess, _ := store.Get(sessionID)
	if sess.RoundCount != 0 || sess.AccumulatedQuery != "" || len(sess.History) != 0 {
		t.Errorf("session mutated by rejected round: count=%d query=%q history=%d",
			sess.RoundCount, sess.AccumulatedQuery, len(sess.History))
	}
}

func TestRunRoundGateAsksForMore(t *testing.T) {
	reasoner := &scriptedReasoner{responses: map[spiral.Stage][]spiral.StageResult{
		spiral.StageGate: {ok(`{"action":"ask_more","reason":"資訊太少","clarification":"請描述具體症狀與持續時間","plan":` +
			`{"symptom_terms":[],"tongue_terms":[],"pulse_terms":[],"zangfu_terms":[]}}`)},
	}}
	eng, store, sessionID := newTestEngine(reasoner, &stubValidator{}, testCandidates())

	result, err := eng.RunRound(context.Background(), sessionID, "失眠")
	if err != nil {
		t.Fatalf("RunRound returned error: %v", err)
	}

	if result.Refusal != "" {
		t.Errorf("Refusal = %q, want empty on a clarification request", result.Refusal)
	}
	if result.Gate.Clarification != "請描述具體症狀與持續時間" {
		t.Errorf("Clarification = %q, want passthrough", result.Gate.Clarification)
	}
	if result.Presentation != nil {
		t.Error("Presentation rendered on an ask_more round")
	}

	sess, _ := store.Get(sessionID)
	if sess.RoundCount != 0 {
		t.Errorf("RoundCount = %d, want 0", sess.RoundCount)
	}
}

func TestRunRoundGateDegrades(t *testing.T) {
	tests := []struct {
		name     string
		response spiral.StageResult
		marker   string
	}{
		{name: "malformed response", response: ok("這不是 JSON"), marker: "degraded=malformed"},
		{name: "timeout", response: spiral.StageResult{Failure: spiral.FailureTimeout}, marker: "degraded=timeout"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reasoner := &scriptedReasoner{responses: map[spiral.Stage][]spiral.StageResult{
				spiral.StageGate:     {tt.response},
				spiral.StageDiagnose: {ok(diagnoseJSON(0.6, "心脾兩虛之證。"))},
				spiral.StageReview:   {ok(reviewPassJSON)},
			}}
			eng, _, sessionID := newTestEngine(reasoner, &stubValidator{}, testCandidates())

			result, err := eng.RunRound(context.Background(), sessionID, "心悸，失眠")
			if err != nil {
				t.Fatalf("RunRound returned error: %v", err)
			}

			if !result.Gate.Degraded || result.Gate.Action != spiral.GateProceed {
				t.Errorf("Gate = %+v, want degraded permissive proceed", result.Gate)
			}
			entry, found := findTrace(result.Trace, spiral.TraceGate)
			if !found || !strings.Contains(entry.Detail, tt.marker) {
				t.Errorf("gate trace = %+v, want detail marked %s", entry, tt.marker)
			}
			if result.Presentation == nil {
				t.Error("degraded gate blocked the round, want it to proceed")
			}
		})
	}
}

func TestRunRoundReasonerUnavailableAborts(t *testing.T) {
	reasoner := &scriptedReasoner{}
	eng, store, sessionID := newTestEngine(reasoner, &stubValidator{}, testCandidates())

	_, err := eng.RunRound(context.Background(), sessionID, "心悸，失眠")
	if !errors.Is(err, spiral.ErrReasonerUnavailable) {
		t.Fatalf("err = %v, want ErrReasonerUnavailable", err)
	}

	// One initial attempt plus the configured retries, unavailable only.
	wantAttempts := 1 + spiral.DefaultConfig().UnavailableRetries
	if reasoner.calls[spiral.StageGate] != wantAttempts {
		t.Errorf("gate attempts = %d, want %d", reasoner.calls[spiral.StageGate], wantAttempts)
	}

	sess, _ := store.Get(sessionID)
	if sess.RoundCount != 0 {
		t.Errorf("RoundCount = %d, want 0 after an aborted round", sess.RoundCount)
	}
}

func TestRunRoundDiagnoseMalformedDegrades(t *testing.T) {
	reasoner := &scriptedReasoner{responses: map[spiral.Stage][]spiral.StageResult{
		spiral.StageGate:     {ok(gateProceedJSON())},
		spiral.StageDiagnose: {ok("伺服器回了一段散文而不是結構化結果")},
		spiral.StageReview:   {ok(reviewPassJSON)},
	}}
	eng, store, sessionID := newTestEngine(reasoner, &stubValidator{}, testCandidates())

	result, err := eng.RunRound(context.Background(), sessionID, "心悸，失眠")
	if err != nil {
		t.Fatalf("RunRound returned error: %v", err)
	}

	if !result.Degraded || result.Diagnosis == nil || !result.Diagnosis.Degraded {
		t.Fatalf("result degraded=%v diagnosis=%+v, want degraded fallback", result.Degraded, result.Diagnosis)
	}
	if result.Diagnosis.Pattern != "心脾兩虛" {
		t.Errorf("Pattern = %q, want the top candidate's", result.Diagnosis.Pattern)
	}
	if !strings.HasPrefix(result.Diagnosis.Narrative, "初步判斷：") {
		t.Errorf("Narrative = %q, want the fallback preamble", result.Diagnosis.Narrative)
	}
	entry, found := findTrace(result.Trace, spiral.TraceDiagnose)
	if !found || entry.Event != "degraded" {
		t.Errorf("diagnose trace = %+v, want a degraded event", entry)
	}
	if result.Presentation == nil {
		t.Fatal("Presentation = nil, want the degraded diagnosis to still present")
	}
	if len(result.Presentation.FollowUps) != 3 {
		t.Errorf("follow-ups = %d, want 3 at zero coverage", len(result.Presentation.FollowUps))
	}

	sess, _ := store.Get(sessionID)
	if sess.RoundCount != 1 {
		t.Errorf("RoundCount = %d, want the degraded round committed", sess.RoundCount)
	}
}

func TestRunRoundReviewRejectsUnsafeNarrative(t *testing.T) {
	reasoner := &scriptedReasoner{responses: map[spiral.Stage][]spiral.StageResult{
		spiral.StageGate:     {ok(gateProceedJSON())},
		spiral.StageDiagnose: {ok(diagnoseJSON(0.8, "此屬心脾兩虛，建議使用祖傳秘方調理。"))},
	}}
	validator := &stubValidator{findings: []spiral.Finding{
		{Rule: "folk_remedy", Match: "祖傳秘方"},
	}}
	eng, store, sessionID := newTestEngine(reasoner, validator, testCandidates())

	result, err := eng.RunRound(context.Background(), sessionID, "心悸，失眠")
	if err != nil {
		t.Fatalf("RunRound returned error: %v", err)
	}

	if result.Review == nil || result.Review.Outcome != spiral.ReviewRejected {
		t.Fatalf("Review = %+v, want rejected", result.Review)
	}
	if result.Refusal != safetyRefusalText {
		t.Errorf("Refusal = %q, want the safety refusal", result.Refusal)
	}
	if result.Presentation != nil {
		t.Error("Presentation rendered for a rejected output")
	}
	if reasoner.calls[spiral.StageReview] != 0 {
		t.Error("advisory review called after an authoritative rule rejection")
	}

	// A rejected output still burns the round.
	sess, _ := store.Get(sessionID)
	if sess.RoundCount != 1 {
		t.Errorf("RoundCount = %d, want 1", sess.RoundCount)
	}
	if len(sess.History) != 1 || sess.History[0].Outcome != "rejected_output" {
		t.Errorf("History = %+v, want one rejected_output round", sess.History)
	}
}

func TestRunRoundReviewRewrites(t *testing.T) {
	narrative := "心脾兩虛，可服用歸脾湯10克調理。"
	reasoner := &scriptedReasoner{responses: map[spiral.Stage][]spiral.StageResult{
		spiral.StageGate:     {ok(gateProceedJSON())},
		spiral.StageDiagnose: {ok(diagnoseJSON(0.8, narrative))},
		spiral.StageReview:   {ok(reviewPassJSON)},
	}}
	validator := &stubValidator{findings: []spiral.Finding{
		{Rule: "dosage", Match: "服用歸脾湯10克", Replacement: "由中醫師擬定方藥"},
	}}
	eng, store, sessionID := newTestEngine(reasoner, validator, testCandidates())

	result, err := eng.RunRound(context.Background(), sessionID, "心悸，失眠")
	if err != nil {
		t.Fatalf("RunRound returned error: %v", err)
	}

	if result.Review.Outcome != spiral.ReviewRewritten {
		t.Errorf("Review.Outcome = %q, want rewritten", result.Review.Outcome)
	}
	if strings.Contains(result.Review.Text, "10克") {
		t.Errorf("Review.Text = %q, still carries the dosage", result.Review.Text)
	}
	if !strings.Contains(result.Presentation.Text, "由中醫師擬定方藥") {
		t.Error("Presentation.Text missing the rewritten fragment")
	}

	sess, _ := store.Get(sessionID)
	if len(sess.History) != 1 || sess.History[0].Outcome != "rewritten" {
		t.Errorf("History = %+v, want one rewritten round", sess.History)
	}
}

func TestRunRoundRetrievalEmpty(t *testing.T) {
	reasoner := &scriptedReasoner{responses: map[spiral.Stage][]spiral.StageResult{
		spiral.StageGate: {ok(`{"action":"proceed","reason":"ok","clarification":"","plan":` +
			`{"symptom_terms":[],"tongue_terms":[],"pulse_terms":[],"zangfu_terms":[]}}`)},
	}}
	eng, store, sessionID := newTestEngine(reasoner, &stubValidator{}, nil)

	result, err := eng.RunRound(context.Background(), sessionID, "心悸，失眠")
	if !errors.Is(err, spiral.ErrRetrievalEmpty) {
		t.Fatalf("err = %v, want ErrRetrievalEmpty", err)
	}
	if result == nil || result.Gate == nil {
		t.Fatal("result = nil, want the partial round with its gate output")
	}
	if result.Candidates != nil {
		t.Errorf("Candidates = %v, want nil", result.Candidates)
	}

	sess, _ := store.Get(sessionID)
	if sess.RoundCount != 0 {
		t.Errorf("RoundCount = %d, want 0 after a short-circuited round", sess.RoundCount)
	}
}

func TestRunRoundForcedConvergence(t *testing.T) {
	reasoner := &scriptedReasoner{responses: map[spiral.Stage][]spiral.StageResult{
		spiral.StageGate:     {ok(gateProceedJSON())},
		spiral.StageDiagnose: {ok(diagnoseJSON(0.5, "資訊有限，暫以心脾兩虛為主。"))},
		spiral.StageReview:   {ok(reviewPassJSON)},
	}}
	eng, store, sessionID := newTestEngine(reasoner, &stubValidator{}, testCandidates())

	sess, _ := store.Get(sessionID)
	sess.RoundCount = spiral.DefaultConfig().MaxRounds - 1
	sess.AccumulatedQuery = "多輪累積的描述"

	result, err := eng.RunRound(context.Background(), sessionID, "仍然心悸")
	if err != nil {
		t.Fatalf("RunRound returned error: %v", err)
	}

	if !result.Converged || !result.ForcedConvergence {
		t.Errorf("Converged/Forced = %v/%v, want true/true at round exhaustion", result.Converged, result.ForcedConvergence)
	}
	if !result.Presentation.Insufficient {
		t.Error("Presentation.Insufficient = false, want true")
	}
	if !strings.Contains(result.Presentation.Text, insufficiencyNotice) {
		t.Error("Presentation.Text missing the forced-convergence notice")
	}
	if last := sess.History[len(sess.History)-1]; !last.Forced {
		t.Errorf("History entry = %+v, want Forced", last)
	}
}

func TestRunRoundSessionGuards(t *testing.T) {
	reasoner := &scriptedReasoner{responses: map[spiral.Stage][]spiral.StageResult{
		spiral.StageGate: {ok(gateProceedJSON())},
	}}
	eng, store, sessionID := newTestEngine(reasoner, &stubValidator{}, testCandidates())

	t.Run("unknown session", func(t *testing.T) {
		_, err := eng.RunRound(context.Background(), uuid.New(), "心悸")
		if !errors.Is(err, spiral.ErrSessionNotFound) {
			t.Errorf("err = %v, want ErrSessionNotFound", err)
		}
	})

	t.Run("busy session", func(t *testing.T) {
		store.busy[sessionID] = true
		defer delete(store.busy, sessionID)

		_, err := eng.RunRound(context.Background(), sessionID, "心悸")
		if !errors.Is(err, spiral.ErrSessionBusy) {
			t.Errorf("err = %v, want ErrSessionBusy", err)
		}
	})
}

func TestRunRoundKeepsPreviousAnchor(t *testing.T) {
	reasoner := &scriptedReasoner{responses: map[spiral.Stage][]spiral.StageResult{
		spiral.StageGate: {ok(gateProceedJSON())},
		// Empty pattern falls back to the anchor's.
		spiral.StageDiagnose: {ok(`{"pattern":"","coverage":0.6,"missing":[],"narrative":"沿用前一輪的錨定案例繼續辨證。"}`)},
		spiral.StageReview:   {ok(reviewPassJSON)},
	}}
	eng, store, sessionID := newTestEngine(reasoner, &stubValidator{}, testCandidates())

	sess, _ := store.Get(sessionID)
	sess.RoundCount = 1
	sess.AccumulatedQuery = "心悸，失眠"
	sess.LastAnchorCaseID = "case-2"
	sess.LastAnchorPattern = "肝氣鬱結"
	sess.LastCoverage = 0.5

	result, err := eng.RunRound(context.Background(), sessionID, "容易嘆氣")
	if err != nil {
		t.Fatalf("RunRound returned error: %v", err)
	}

	if result.Diagnosis.AnchorCaseID != "case-2" {
		t.Errorf("AnchorCaseID = %q, want the previous anchor case-2", result.Diagnosis.AnchorCaseID)
	}
	if result.Diagnosis.Pattern != "肝氣鬱結" {
		t.Errorf("Pattern = %q, want the anchor fallback 肝氣鬱結", result.Diagnosis.Pattern)
	}
	entry, found := findTrace(result.Trace, spiral.TraceSelector)
	if !found || entry.Event != "kept_previous" {
		t.Errorf("selector trace = %+v, want kept_previous", entry)
	}
}

func TestRunRoundDiagnoseTimeoutDegrades(t *testing.T) {
	reasoner := &scriptedReasoner{responses: map[spiral.Stage][]spiral.StageResult{
		spiral.StageGate:     {ok(gateProceedJSON())},
		spiral.StageDiagnose: {{Failure: spiral.FailureTimeout}},
		spiral.StageReview:   {ok(reviewPassJSON)},
	}}
	eng, store, sessionID := newTestEngine(reasoner, &stubValidator{}, testCandidates())

	result, err := eng.RunRound(context.Background(), sessionID, "心悸，失眠")
	if err != nil {
		t.Fatalf("RunRound returned error: %v", err)
	}

	if reasoner.calls[spiral.StageDiagnose] != 1 {
		t.Errorf("diagnose calls = %d, want 1 (timeouts are not retried)", reasoner.calls[spiral.StageDiagnose])
	}
	if !result.Degraded || result.Diagnosis == nil || !result.Diagnosis.Degraded {
		t.Fatalf("result degraded=%v diagnosis=%+v, want degraded fallback", result.Degraded, result.Diagnosis)
	}
	if result.Diagnosis.AnchorCaseID != "case-1" {
		t.Errorf("AnchorCaseID = %q, want the top candidate case-1", result.Diagnosis.AnchorCaseID)
	}
	if result.Diagnosis.Pattern != "心脾兩虛" {
		t.Errorf("Pattern = %q, want the top candidate's", result.Diagnosis.Pattern)
	}
	if result.Presentation == nil {
		t.Fatal("Presentation = nil, want the degraded diagnosis to still present")
	}

	sess, _ := store.Get(sessionID)
	if sess.RoundCount != 1 {
		t.Errorf("RoundCount = %d, want the degraded round committed", sess.RoundCount)
	}
}

func TestRunRoundAnchorStableAcrossCoverageClimb(t *testing.T) {
	reasoner := &scriptedReasoner{responses: map[spiral.Stage][]spiral.StageResult{
		spiral.StageGate: {ok(gateProceedJSON())},
		spiral.StageDiagnose: {
			ok(diagnoseJSON(0.45, "初診心脾兩虛，證據尚薄。")),
			ok(diagnoseJSON(0.75, "補充後心脾兩虛證象漸明。")),
			ok(diagnoseJSON(0.85, "三診心脾兩虛，證據充分。")),
		},
		spiral.StageReview: {ok(reviewPassJSON)},
	}}
	eng, store, sessionID := newTestEngine(reasoner, &stubValidator{}, testCandidates())

	inputs := []string{"心悸，失眠", "多夢健忘", "食慾不振"}
	wantCoverage := []float64{0.45, 0.75, 0.85}
	wantConverged := []bool{false, false, true}

	for i := range inputs {
		result, err := eng.RunRound(context.Background(), sessionID, inputs[i])
		if err != nil {
			t.Fatalf("round %d returned error: %v", i+1, err)
		}
		if result.Round != i+1 {
			t.Errorf("round %d: Round = %d", i+1, result.Round)
		}
		if result.Coverage != wantCoverage[i] {
			t.Errorf("round %d: Coverage = %v, want %v", i+1, result.Coverage, wantCoverage[i])
		}
		if result.Converged != wantConverged[i] {
			t.Errorf("round %d: Converged = %v, want %v", i+1, result.Converged, wantConverged[i])
		}
		if result.ForcedConvergence {
			t.Errorf("round %d: forced convergence on a clean climb", i+1)
		}
		if result.Diagnosis.AnchorCaseID != "case-1" {
			t.Errorf("round %d: AnchorCaseID = %q, want case-1 held throughout", i+1, result.Diagnosis.AnchorCaseID)
		}
	}

	sess, _ := store.Get(sessionID)
	if sess.AccumulatedQuery != "心悸，失眠。補充：多夢健忘。再補充：食慾不振" {
		t.Errorf("AccumulatedQuery = %q, want all three rounds joined with the fixed markers", sess.AccumulatedQuery)
	}
	if sess.PrevCoverage != 0.75 || sess.LastCoverage != 0.85 {
		t.Errorf("PrevCoverage/LastCoverage = %v/%v, want 0.75/0.85", sess.PrevCoverage, sess.LastCoverage)
	}
	if !sess.Converged {
		t.Error("session Converged = false after the third round")
	}
	if len(sess.History) != 3 {
		t.Fatalf("History length = %d, want 3", len(sess.History))
	}
	for i, rec := range sess.History {
		if rec.Outcome != "passed" {
			t.Errorf("History[%d].Outcome = %q, want passed", i, rec.Outcome)
		}
		if rec.AnchorID != "case-1" || rec.Coverage != wantCoverage[i] {
			t.Errorf("History[%d] = anchor %q coverage %v, want case-1 %v", i, rec.AnchorID, rec.Coverage, wantCoverage[i])
		}
	}
}
