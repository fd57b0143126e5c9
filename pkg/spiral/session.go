package spiral

import (
	"time"

	"github.com/google/uuid"
)

// Session is the per-conversation state behind one diagnostic dialogue.
// It is owned by the SessionStore and mutated only between TryBeginRound
// and EndRound, so field access needs no further locking.
type Session struct {
	ID             uuid.UUID
	PractitionerID uuid.UUID

	// AccumulatedQuery grows by concatenation every accepted round and is
	// never truncated or rewritten.
	AccumulatedQuery string

	// RoundCount counts accepted rounds. Gate rejections and clarification
	// requests do not advance it.
	RoundCount int

	// ActiveTerms is the fused positive symptom set across rounds, with
	// negated terms removed. TermSources maps each term to the rounds that
	// asserted it, which drives pinning.
	ActiveTerms  []string
	TermSources  map[string][]int
	PinnedTerms  []string
	NegatedTerms []string

	LastAnchorCaseID  string
	LastAnchorPattern string

	// LastCoverage is the coverage ratio from the most recent accepted
	// round; PrevCoverage is the one before that. Both feed the anchor
	// continuity rule.
	LastCoverage float64
	PrevCoverage float64

	SecurityFlagCount int
	Converged         bool

	History []RoundSummary

	CreatedAt     time.Time
	LastUpdatedAt time.Time
}

// RoundSummary is the compact per-round record kept on the session. Full
// RoundResults are returned to the caller but not retained.
type RoundSummary struct {
	Round    int
	Input    string
	AnchorID string
	Pattern  string
	Coverage float64
	Outcome  string
	Forced   bool
	At       time.Time
}

// StoreStats is a point-in-time view of the store for operators.
type StoreStats struct {
	Resident  int
	Busy      int
	Evictions int64
}

// SessionStore guards the session map. Implementations must make every
// method atomic with respect to the others, serialize rounds per session
// via TryBeginRound, and enforce a resident capacity with oldest-idle
// eviction plus an idle timeout reaper.
type SessionStore interface {
	// GetOrCreate returns the session for id, creating it when absent.
	// Creation at capacity evicts idle sessions first.
	GetOrCreate(id uuid.UUID, practitionerID uuid.UUID) *Session

	// Get returns the session if resident.
	Get(id uuid.UUID) (*Session, bool)

	// TryBeginRound acquires the session's round latch. It fails with
	// ErrSessionBusy while another round for the same id is in flight and
	// ErrSessionNotFound when the session is not resident.
	TryBeginRound(id uuid.UUID) (*Session, error)

	// EndRound releases the round latch and stamps LastUpdatedAt.
	EndRound(id uuid.UUID)

	// Reset discards the session's accumulated state but keeps the id
	// resident, ready for a fresh first round.
	Reset(id uuid.UUID) bool

	// Evict removes the session outright. Busy sessions are not evicted.
	Evict(id uuid.UUID) bool

	Count() int
	Stats() StoreStats
}
