package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type VerificationTask struct {
	Id           uuid.UUID      `gorm:"type:uuid;primaryKey"`
	HistoryId    uuid.UUID      `gorm:"type:uuid;index;not null"`
	Question     string         `gorm:"type:text"`
	Answer       string         `gorm:"type:text"`
	ContextNodes datatypes.JSON `gorm:"type:jsonb"`
	Category     string         `gorm:"default:simple_admission"`
	Status       string         `gorm:"index;default:pending"`
	RetryCount   int            `gorm:"default:0"`
	MaxRetries   int            `gorm:"default:3"`
	LastError    string         `gorm:"type:text"`
	ScheduledAt  time.Time      `gorm:"index;not null"`
	ProcessingAt *time.Time
	CompletedAt  *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (VerificationTask) TableName() string {
	return "verification_tasks"
}
