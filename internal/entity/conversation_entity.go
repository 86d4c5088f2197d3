package entity

import (
	"time"

	"github.com/google/uuid"
)

// Conversation is one visitor-facing chat thread. VisitorKey identifies the
// anonymous visitor (or "user:<id>" for authenticated callers).
type Conversation struct {
	Id         uuid.UUID
	VisitorKey string
	Title      string
	CreatedAt  time.Time
	UpdatedAt  *time.Time
	DeletedAt  *time.Time
	IsDeleted  bool
}
