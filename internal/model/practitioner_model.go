package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Practitioner struct {
	Id           uuid.UUID      `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Email        string         `gorm:"type:varchar(255);uniqueIndex;not null"`
	PasswordHash *string        `gorm:"type:varchar(255)"`
	FullName     string         `gorm:"type:varchar(255);not null"`
	LicenseNo    *string        `gorm:"type:varchar(100)"`
	Role         string         `gorm:"type:varchar(50);not null;default:'clinician'"`
	Status       string         `gorm:"type:varchar(50);not null;default:'active'"`
	CreatedAt    time.Time      `gorm:"autoCreateTime"`
	UpdatedAt    time.Time      `gorm:"autoUpdateTime"`
	DeletedAt    gorm.DeletedAt `gorm:"index"`
}

func (Practitioner) TableName() string {
	return "practitioners"
}

type PractitionerRefreshToken struct {
	Id             uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	PractitionerId uuid.UUID `gorm:"type:uuid;not null;index"`
	TokenHash      string    `gorm:"type:text;not null"`
	ExpiresAt      time.Time `gorm:"not null"`
	Revoked        bool      `gorm:"default:false"`
	CreatedAt      time.Time `gorm:"autoCreateTime"`
}

func (PractitionerRefreshToken) TableName() string {
	return "practitioner_refresh_tokens"
}
