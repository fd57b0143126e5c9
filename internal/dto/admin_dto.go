package dto

import (
	"time"

	"github.com/google/uuid"
)

// --- Practitioner management ---

type PractitionerListRequest struct {
	Page   int    `query:"page"`
	Limit  int    `query:"limit"`
	Search string `query:"search"`
	Role   string `query:"role"`
	Status string `query:"status"`
}

type PractitionerListResponse struct {
	Id        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	FullName  string    `json:"full_name"`
	Role      string    `json:"role"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

type UpdatePractitionerStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=active blocked"`
	Reason string `json:"reason,omitempty"`
}

// --- Audit trail ---

type AuditListRequest struct {
	Page           int    `query:"page"`
	Limit          int    `query:"limit"`
	SessionId      string `query:"session_id"`
	PractitionerId string `query:"practitioner_id"`
	Kind           string `query:"kind"`
}

type AuditRecordResponse struct {
	Id             uuid.UUID  `json:"id"`
	SessionId      uuid.UUID  `json:"session_id"`
	PractitionerId *uuid.UUID `json:"practitioner_id,omitempty"`
	Round          int        `json:"round"`
	Kind           string     `json:"kind"`
	Stage          string     `json:"stage,omitempty"`
	Detail         string     `json:"detail"`
	CreatedAt      time.Time  `json:"created_at"`
}

// --- System logs ---

// LogListResponse uses string for Id because log IDs are MD5 hashes, not UUIDs
type LogListResponse struct {
	Id        string    `json:"id"`
	Level     string    `json:"level"`
	Module    string    `json:"module"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

type LogDetailResponse struct {
	LogListResponse
	Details map[string]interface{} `json:"details"`
}
