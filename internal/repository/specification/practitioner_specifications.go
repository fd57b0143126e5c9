package specification

import (
	"gorm.io/gorm"

	"github.com/google/uuid"
)

type ByEmail struct {
	Email string
}

func (s ByEmail) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("email = ?", s.Email)
}

type OwnedByPractitioner struct {
	PractitionerID uuid.UUID
}

func (s OwnedByPractitioner) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("practitioner_id = ?", s.PractitionerID)
}

type SearchNameOrEmail struct {
	Query string
}

func (s SearchNameOrEmail) Apply(db *gorm.DB) *gorm.DB {
	pattern := "%" + s.Query + "%"
	// Using ILIKE for Postgres (case insensitive)
	return db.Where("full_name ILIKE ? OR email ILIKE ?", pattern, pattern)
}

// Token Specs

type ByTokenHash struct {
	Hash string
}

func (s ByTokenHash) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("token_hash = ?", s.Hash)
}

type NotRevoked struct{}

func (s NotRevoked) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("revoked = ?", false)
}
