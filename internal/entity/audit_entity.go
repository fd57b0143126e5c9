package entity

import (
	"time"

	"github.com/google/uuid"
)

type AuditKind string

const (
	AuditKindRoundCompleted AuditKind = "round_completed"
	AuditKindSecurityFlag   AuditKind = "security_flag"
	AuditKindStageDegraded  AuditKind = "stage_degraded"
	AuditKindSessionClosed  AuditKind = "session_closed"
)

// AuditRecord is the persisted trail behind every session event the
// operators may need to reconstruct: completed rounds, sanitizer hits,
// degraded stages.
type AuditRecord struct {
	Id             uuid.UUID
	SessionId      uuid.UUID
	PractitionerId *uuid.UUID
	Round          int
	Kind           AuditKind
	Stage          string
	Detail         string
	CreatedAt      time.Time
}
