package spiral

import "time"

// Trace sources. Gate/review/present entries carry the stage name so tests
// can count entries per stage; retrieval and selection decisions get their
// own source labels.
const (
	TraceGate        = "gate"
	TraceRetrieval   = "retrieval"
	TraceSelector    = "selector"
	TraceDiagnose    = "diagnose"
	TraceConvergence = "convergence"
	TraceReview      = "review"
	TracePresent     = "present"
)

// TraceEntry records one decision point inside a round. The trace is part of
// the round contract, not optional instrumentation: downstream stages and
// tests rely on it to tell "no data" from "rejected" from "degraded".
type TraceEntry struct {
	Source string
	Event  string
	Detail string
	At     time.Time
}

func NewTraceEntry(source, event, detail string) TraceEntry {
	return TraceEntry{
		Source: source,
		Event:  event,
		Detail: detail,
		At:     time.Now(),
	}
}

// CountBySource returns how many entries in the trace came from source.
func CountBySource(trace []TraceEntry, source string) int {
	n := 0
	for _, e := range trace {
		if e.Source == source {
			n++
		}
	}
	return n
}
