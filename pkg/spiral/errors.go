package spiral

import "errors"

var (
	// ErrSessionNotFound means the session id is not resident in the store.
	ErrSessionNotFound = errors.New("session not found")

	// ErrSessionBusy means a round for this session is already in flight.
	// Retryable: the caller should back off and resend.
	ErrSessionBusy = errors.New("a round for this session is already in flight")

	// ErrRetrievalEmpty means every fallback field returned nothing and no
	// virtual candidate could be synthesized. The round short-circuits with
	// all downstream stages null.
	ErrRetrievalEmpty = errors.New("retrieval empty after all fallback fields")

	// ErrReasonerUnavailable means the reasoning capability stayed
	// unavailable past the retry budget. Surfaced as a service error, never
	// degraded further.
	ErrReasonerUnavailable = errors.New("reasoning capability unavailable")
)
