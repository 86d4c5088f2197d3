package contract

import (
	"context"
	"time"

	"admission-chatbot-be/internal/entity"
	"admission-chatbot-be/internal/repository/specification"

	"github.com/google/uuid"
)

type VerificationTaskRepository interface {
	Create(ctx context.Context, task *entity.VerificationTask) error

	// ClaimNext atomically selects the earliest-due pending task with
	// scheduled_at <= now and moves it to processing. Returns (nil, nil)
	// when no task is eligible. Two concurrent callers never receive the
	// same task: the claim is a conditional UPDATE, not a read-then-write.
	ClaimNext(ctx context.Context, now time.Time) (*entity.VerificationTask, error)

	// Complete marks a processing task as completed and clears processing_at.
	Complete(ctx context.Context, id uuid.UUID, completedAt time.Time) error

	// Release returns a processing task to pending after a recoverable
	// failure, recording the new retry count, backoff schedule and error.
	Release(ctx context.Context, id uuid.UUID, retryCount int, scheduledAt time.Time, lastError string) error

	// Fail marks a processing task as permanently failed (retries exhausted).
	Fail(ctx context.Context, id uuid.UUID, lastError string) error

	FindOne(ctx context.Context, specs ...specification.Specification) (*entity.VerificationTask, error)
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.VerificationTask, error)
	Count(ctx context.Context, specs ...specification.Specification) (int64, error)
}
