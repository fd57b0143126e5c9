package model

import (
	"time"

	"github.com/pgvector/pgvector-go"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type CaseRecord struct {
	Id          string                      `gorm:"type:varchar(64);primaryKey"`
	Pattern     string                      `gorm:"type:varchar(255);not null;index"`
	Symptoms    datatypes.JSONSlice[string] `gorm:"type:jsonb"`
	TongueTerms datatypes.JSONSlice[string] `gorm:"type:jsonb"`
	PulseTerms  datatypes.JSONSlice[string] `gorm:"type:jsonb"`
	ZangfuTerms datatypes.JSONSlice[string] `gorm:"type:jsonb"`
	TextRaw     string                      `gorm:"type:text;not null"`
	TextCJK     string                      `gorm:"type:text;not null"`
	Domain      string                      `gorm:"type:varchar(50);not null;default:'general';index"`
	Embedding   pgvector.Vector             `gorm:"type:vector(768)"`
	Source      string                      `gorm:"type:varchar(50);not null;default:'seed'"`
	CreatedAt   time.Time                   `gorm:"autoCreateTime"`
	UpdatedAt   time.Time                   `gorm:"autoUpdateTime"`
	DeletedAt   gorm.DeletedAt              `gorm:"index"`
}

func (CaseRecord) TableName() string {
	return "case_records"
}
