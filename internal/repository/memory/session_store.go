package memory

import (
	"log"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/MKRushil/Pulse/pkg/spiral"
)

const (
	defaultCapacity  = 1000
	defaultIdleAfter = 24 * time.Hour
	defaultSweep     = time.Hour
)

type sessionEntry struct {
	sess *spiral.Session
	busy bool
}

// SessionStore is the in-memory spiral.SessionStore. A single mutex guards
// the map; the per-session round latch lives on the entry so a busy session
// survives both capacity eviction and the idle reaper.
type SessionStore struct {
	mu         sync.Mutex
	entries    map[uuid.UUID]*sessionEntry
	capacity   int
	idleAfter  time.Duration
	sweepEvery time.Duration
	evictions  int64

	logger   *log.Logger
	stop     chan struct{}
	stopOnce sync.Once
}

func NewSessionStore(capacity int, idleAfter, sweepEvery time.Duration, logger *log.Logger) *SessionStore {
	if capacity <= 0 {
		capacity = defaultCapacity
	}
	if idleAfter <= 0 {
		idleAfter = defaultIdleAfter
	}
	if sweepEvery <= 0 {
		sweepEvery = defaultSweep
	}
	if logger == nil {
		logger = log.Default()
	}
	s := &SessionStore{
		entries:    make(map[uuid.UUID]*sessionEntry),
		capacity:   capacity,
		idleAfter:  idleAfter,
		sweepEvery: sweepEvery,
		logger:     logger,
		stop:       make(chan struct{}),
	}
	go s.reapLoop()
	return s
}

// Close stops the idle reaper. Resident sessions stay readable.
func (s *SessionStore) Close() {
	s.stopOnce.Do(func() { close(s.stop) })
}

func (s *SessionStore) GetOrCreate(id uuid.UUID, practitionerID uuid.UUID) *spiral.Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.entries[id]; ok {
		return e.sess
	}
	if len(s.entries) >= s.capacity {
		s.evictIdleLocked(s.capacity / 10)
	}
	now := time.Now()
	sess := &spiral.Session{
		ID:             id,
		PractitionerID: practitionerID,
		TermSources:    make(map[string][]int),
		CreatedAt:      now,
		LastUpdatedAt:  now,
	}
	s.entries[id] = &sessionEntry{sess: sess}
	return sess
}

func (s *SessionStore) Get(id uuid.UUID) (*spiral.Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[id]
	if !ok {
		return nil, false
	}
	return e.sess, true
}

func (s *SessionStore) TryBeginRound(id uuid.UUID) (*spiral.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[id]
	if !ok {
		return nil, spiral.ErrSessionNotFound
	}
	if e.busy {
		return nil, spiral.ErrSessionBusy
	}
	e.busy = true
	return e.sess, nil
}

func (s *SessionStore) EndRound(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.entries[id]; ok {
		e.busy = false
		e.sess.LastUpdatedAt = time.Now()
	}
}

// Reset clears accumulated dialogue state in place. A busy session cannot
// be reset; the in-flight round would write into the cleared state.
func (s *SessionStore) Reset(id uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[id]
	if !ok || e.busy {
		return false
	}
	sess := e.sess
	sess.AccumulatedQuery = ""
	sess.RoundCount = 0
	sess.ActiveTerms = nil
	sess.TermSources = make(map[string][]int)
	sess.PinnedTerms = nil
	sess.NegatedTerms = nil
	sess.LastAnchorCaseID = ""
	sess.LastAnchorPattern = ""
	sess.LastCoverage = 0
	sess.PrevCoverage = 0
	sess.Converged = false
	sess.History = nil
	sess.LastUpdatedAt = time.Now()
	return true
}

func (s *SessionStore) Evict(id uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[id]
	if !ok || e.busy {
		return false
	}
	delete(s.entries, id)
	s.evictions++
	return true
}

func (s *SessionStore) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *SessionStore) Stats() spiral.StoreStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	busy := 0
	for _, e := range s.entries {
		if e.busy {
			busy++
		}
	}
	return spiral.StoreStats{
		Resident:  len(s.entries),
		Busy:      busy,
		Evictions: s.evictions,
	}
}

// evictIdleLocked removes up to n idle sessions, oldest LastUpdatedAt
// first. Caller holds the mutex.
func (s *SessionStore) evictIdleLocked(n int) {
	if n < 1 {
		n = 1
	}
	type aged struct {
		id uuid.UUID
		at time.Time
	}
	idle := make([]aged, 0, len(s.entries))
	for id, e := range s.entries {
		if !e.busy {
			idle = append(idle, aged{id: id, at: e.sess.LastUpdatedAt})
		}
	}
	sort.Slice(idle, func(i, j int) bool { return idle[i].at.Before(idle[j].at) })
	if n > len(idle) {
		n = len(idle)
	}
	for _, a := range idle[:n] {
		delete(s.entries, a.id)
		s.evictions++
	}
	if n > 0 {
		s.logger.Printf("[SESSION STORE] capacity eviction removed=%d resident=%d", n, len(s.entries))
	}
}

func (s *SessionStore) reapLoop() {
	ticker := time.NewTicker(s.sweepEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.reapIdle()
		case <-s.stop:
			return
		}
	}
}

func (s *SessionStore) reapIdle() {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().Add(-s.idleAfter)
	removed := 0
	for id, e := range s.entries {
		if !e.busy && e.sess.LastUpdatedAt.Before(cutoff) {
			delete(s.entries, id)
			s.evictions++
			removed++
		}
	}
	if removed > 0 {
		s.logger.Printf("[SESSION STORE] idle reap removed=%d resident=%d", removed, len(s.entries))
	}
}
