package memory

import (
	"errors"
	"io"
	"log"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/MKRushil/Pulse/pkg/spiral"
)

func newTestStore(capacity int) *SessionStore {
	return NewSessionStore(capacity, time.Hour, time.Hour, log.New(io.Discard, "", 0))
}

func TestGetOrCreateIdempotent(t *testing.T) {
	s := newTestStore(10)
	defer s.Close()

	id := uuid.New()
	practitioner := uuid.New()

	first := s.GetOrCreate(id, practitioner)
	second := s.GetOrCreate(id, practitioner)

	if first != second {
		t.Error("GetOrCreate returned a different session for the same id")
	}
	if first.TermSources == nil {
		t.Error("TermSources not initialized on creation")
	}
	if s.Count() != 1 {
		t.Errorf("Count = %d, want 1", s.Count())
	}
}

func TestRoundLatch(t *testing.T) {
	s := newTestStore(10)
	defer s.Close()

	if _, err := s.TryBeginRound(uuid.New()); !errors.Is(err, spiral.ErrSessionNotFound) {
		t.Errorf("TryBeginRound on absent id = %v, want ErrSessionNotFound", err)
	}

	id := uuid.New()
	s.GetOrCreate(id, uuid.New())

	if _, err := s.TryBeginRound(id); err != nil {
		t.Fatalf("TryBeginRound = %v, want acquired latch", err)
	}
	if _, err := s.TryBeginRound(id); !errors.Is(err, spiral.ErrSessionBusy) {
		t.Errorf("second TryBeginRound = %v, want ErrSessionBusy", err)
	}

	s.EndRound(id)
	if _, err := s.TryBeginRound(id); err != nil {
		t.Errorf("TryBeginRound after EndRound = %v, want acquired latch", err)
	}
	s.EndRound(id)
}

func TestEndRoundStampsActivity(t *testing.T) {
	s := newTestStore(10)
	defer s.Close()

	id := uuid.New()
	sess := s.GetOrCreate(id, uuid.New())

	backdated := time.Now().Add(-time.Hour)
	sess.LastUpdatedAt = backdated

	if _, err := s.TryBeginRound(id); err != nil {
		t.Fatalf("TryBeginRound = %v", err)
	}
	s.EndRound(id)

	if !sess.LastUpdatedAt.After(backdated) {
		t.Error("EndRound did not refresh LastUpdatedAt")
	}
}

func TestResetClearsState(t *testing.T) {
	s := newTestStore(10)
	defer s.Close()

	id := uuid.New()
	sess := s.GetOrCreate(id, uuid.New())
	sess.AccumulatedQuery = "心悸失眠"
	sess.RoundCount = 3
	sess.ActiveTerms = []string{"心悸"}
	sess.LastAnchorCaseID = "case-1"
	sess.LastCoverage = 0.7
	sess.Converged = true
	sess.History = []spiral.RoundSummary{{Round: 1}}

	if !s.Reset(id) {
		t.Fatal("Reset = false, want true on an idle session")
	}

	if sess.AccumulatedQuery != "" || sess.RoundCount != 0 || sess.LastAnchorCaseID != "" {
		t.Errorf("session not cleared: query=%q rounds=%d anchor=%q",
			sess.AccumulatedQuery, sess.RoundCount, sess.LastAnchorCaseID)
	}
	if sess.Converged || sess.LastCoverage != 0 || len(sess.History) != 0 {
		t.Error("convergence state survived the reset")
	}
	if _, ok := s.Get(id); !ok {
		t.Error("Reset evicted the session, want it kept resident")
	}
}

func TestResetRefusesBusySession(t *testing.T) {
	s := newTestStore(10)
	defer s.Close()

	id := uuid.New()
	s.GetOrCreate(id, uuid.New())
	if _, err := s.TryBeginRound(id); err != nil {
		t.Fatalf("TryBeginRound = %v", err)
	}

	if s.Reset(id) {
		t.Error("Reset = true on a busy session, want false")
	}
	s.EndRound(id)
}

func TestEvict(t *testing.T) {
	s := newTestStore(10)
	defer s.Close()

	if s.Evict(uuid.New()) {
		t.Error("Evict = true on an absent id, want false")
	}

	id := uuid.New()
	s.GetOrCreate(id, uuid.New())

	if _, err := s.TryBeginRound(id); err != nil {
		t.Fatalf("TryBeginRound = %v", err)
	}
	if s.Evict(id) {
		t.Error("Evict = true on a busy session, want false")
	}
	s.EndRound(id)

	if !s.Evict(id) {
		t.Error("Evict = false on an idle session, want true")
	}
	if _, ok := s.Get(id); ok {
		t.Error("session still resident after eviction")
	}
	if got := s.Stats().Evictions; got != 1 {
		t.Errorf("Stats().Evictions = %d, want 1", got)
	}
}

func TestCapacityEvictsOldestIdle(t *testing.T) {
	s := newTestStore(3)
	defer s.Close()

	oldest := uuid.New()
	middle := uuid.New()
	newest := uuid.New()

	s.GetOrCreate(oldest, uuid.New()).LastUpdatedAt = time.Now().Add(-3 * time.Hour)
	s.GetOrCreate(middle, uuid.New()).LastUpdatedAt = time.Now().Add(-2 * time.Hour)
	s.GetOrCreate(newest, uuid.New()).LastUpdatedAt = time.Now().Add(-1 * time.Hour)

	extra := uuid.New()
	s.GetOrCreate(extra, uuid.New())

	if s.Count() != 3 {
		t.Errorf("Count = %d, want capacity 3", s.Count())
	}
	if _, ok := s.Get(oldest); ok {
		t.Error("oldest idle session survived capacity eviction")
	}
	for _, id := range []uuid.UUID{middle, newest, extra} {
		if _, ok := s.Get(id); !ok {
			t.Errorf("session %s evicted, want it kept", id)
		}
	}
}

func TestCapacityEvictionSkipsBusy(t *testing.T) {
	s := newTestStore(2)
	defer s.Close()

	busyOld := uuid.New()
	idleNew := uuid.New()

	s.GetOrCreate(busyOld, uuid.New()).LastUpdatedAt = time.Now().Add(-3 * time.Hour)
	s.GetOrCreate(idleNew, uuid.New())

	if _, err := s.TryBeginRound(busyOld); err != nil {
		t.Fatalf("TryBeginRound = %v", err)
	}

	extra := uuid.New()
	s.GetOrCreate(extra, uuid.New())

	if _, ok := s.Get(busyOld); !ok {
		t.Error("busy session evicted, want the latch to protect it")
	}
	if _, ok := s.Get(idleNew); ok {
		t.Error("idle session survived, want it evicted instead of the busy one")
	}
	s.EndRound(busyOld)
}

func TestReapIdle(t *testing.T) {
	s := NewSessionStore(10, 30*time.Minute, time.Hour, log.New(io.Discard, "", 0))
	defer s.Close()

	stale := uuid.New()
	fresh := uuid.New()
	busyStale := uuid.New()

	s.GetOrCreate(stale, uuid.New()).LastUpdatedAt = time.Now().Add(-time.Hour)
	s.GetOrCreate(fresh, uuid.New())
	s.GetOrCreate(busyStale, uuid.New()).LastUpdatedAt = time.Now().Add(-time.Hour)

	if _, err := s.TryBeginRound(busyStale); err != nil {
		t.Fatalf("TryBeginRound = %v", err)
	}

	s.reapIdle()

	if _, ok := s.Get(stale); ok {
		t.Error("stale idle session survived the reap")
	}
	if _, ok := s.Get(fresh); !ok {
		t.Error("fresh session reaped")
	}
	if _, ok := s.Get(busyStale); !ok {
		t.Error("busy session reaped, want the latch to protect it")
	}
	s.EndRound(busyStale)
}

func TestStats(t *testing.T) {
	s := newTestStore(10)
	defer s.Close()

	a := uuid.New()
	b := uuid.New()
	s.GetOrCreate(a, uuid.New())
	s.GetOrCreate(b, uuid.New())

	if _, err := s.TryBeginRound(a); err != nil {
		t.Fatalf("TryBeginRound = %v", err)
	}

	stats := s.Stats()
	if stats.Resident != 2 || stats.Busy != 1 {
		t.Errorf("Stats = %+v, want 2 resident, 1 busy", stats)
	}
	s.EndRound(a)
}

func TestZeroConfigFallsBackToDefaults(t *testing.T) {
	s := NewSessionStore(0, 0, 0, nil)
	defer s.Close()

	if s.capacity != defaultCapacity {
		t.Errorf("capacity = %d, want default %d", s.capacity, defaultCapacity)
	}
	if s.idleAfter != defaultIdleAfter || s.sweepEvery != defaultSweep {
		t.Errorf("idleAfter/sweepEvery = %v/%v, want defaults", s.idleAfter, s.sweepEvery)
	}
}
