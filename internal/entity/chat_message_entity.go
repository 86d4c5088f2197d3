package entity

import (
	"time"

	"github.com/google/uuid"
)

// ChatMessage is a persisted turn in a conversation. Answer turns carry the
// retrieval/verification metadata the pipeline produced for them.
type ChatMessage struct {
	Id             uuid.UUID
	ConversationId uuid.UUID
	Role           string // constant.ChatRoleUser | constant.ChatRoleModel
	Content        string
	Category       string
	AggregateScore float64
	// VerificationMode is the routing decision made for this answer
	// (pre_response, post_async, background). Empty for user turns.
	VerificationMode   string
	VerificationStatus string // constant.VerificationUnverified | Verified | Flagged
	CreatedAt          time.Time
	UpdatedAt          *time.Time
}
