package specification

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ByConversationID filters messages by their conversation
type ByConversationID struct {
	ConversationID uuid.UUID
}

func (s ByConversationID) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("conversation_id = ?", s.ConversationID)
}

// OwnedByVisitor filters conversations by visitor key
type OwnedByVisitor struct {
	VisitorKey string
}

func (s OwnedByVisitor) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("visitor_key = ?", s.VisitorKey)
}

// ByStatus filters verification tasks by lifecycle status
type ByStatus struct {
	Status string
}

func (s ByStatus) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("status = ?", s.Status)
}
