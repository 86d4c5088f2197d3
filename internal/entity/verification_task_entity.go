package entity

import (
	"time"

	"github.com/google/uuid"
)

// VerificationTask is a durable record of a background answer re-check.
// Status moves pending -> processing -> completed, processing -> pending on
// a recoverable failure, or processing -> failed once retries are exhausted.
// Terminal tasks are never deleted; they stay for operator review.
type VerificationTask struct {
	Id           uuid.UUID
	HistoryId    uuid.UUID // answer ChatMessage being verified
	Question     string
	Answer       string
	ContextNodes []byte // serialized []store.Fragment
	Category     string
	Status       string
	RetryCount   int
	MaxRetries   int
	LastError    string
	ScheduledAt  time.Time
	ProcessingAt *time.Time
	CompletedAt  *time.Time
	CreatedAt    time.Time
	UpdatedAt    *time.Time
}
