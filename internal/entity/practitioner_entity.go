package entity

import (
	"time"

	"github.com/google/uuid"
)

type PractitionerRole string
type PractitionerStatus string

const (
	PractitionerRoleClinician PractitionerRole = "clinician"
	PractitionerRoleAdmin     PractitionerRole = "admin"

	PractitionerStatusActive  PractitionerStatus = "active"
	PractitionerStatusBlocked PractitionerStatus = "blocked"
)

type Practitioner struct {
	Id           uuid.UUID
	Email        string
	PasswordHash *string
	FullName     string
	LicenseNo    *string
	Role         PractitionerRole
	Status       PractitionerStatus
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type PractitionerRefreshToken struct {
	Id             uuid.UUID
	PractitionerId uuid.UUID
	TokenHash      string
	ExpiresAt      time.Time
	Revoked        bool
	CreatedAt      time.Time
}
