package model

import (
	"time"

	"github.com/google/uuid"
)

type AuditRecord struct {
	Id             uuid.UUID  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	SessionId      uuid.UUID  `gorm:"type:uuid;not null;index:idx_audit_session_created,priority:1"`
	PractitionerId *uuid.UUID `gorm:"type:uuid;index"`
	Round          int        `gorm:"not null;default:0"`
	Kind           string     `gorm:"type:varchar(50);not null;index"`
	Stage          string     `gorm:"type:varchar(50)"`
	Detail         string     `gorm:"type:text"`
	CreatedAt      time.Time  `gorm:"autoCreateTime;index:idx_audit_session_created,priority:2"`
}

func (AuditRecord) TableName() string {
	return "audit_records"
}
