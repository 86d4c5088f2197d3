package model

import (
	"time"

	"github.com/google/uuid"
)

type ChatMessage struct {
	Id                 uuid.UUID `gorm:"type:uuid;primaryKey"`
	ConversationId     uuid.UUID `gorm:"type:uuid;index;not null"`
	Role               string    `gorm:"not null"`
	Content            string    `gorm:"type:text"`
	Category           string
	AggregateScore     float64
	VerificationMode   string
	VerificationStatus string `gorm:"index"`
	CreatedAt          time.Time
	UpdatedAt          time.Time

	Conversation Conversation `gorm:"foreignKey:ConversationId;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
}

func (ChatMessage) TableName() string {
	return "chat_messages"
}
