package dto

import (
	"time"

	"github.com/google/uuid"
)

type CreateConversationResponse struct {
	Id uuid.UUID `json:"id"`
}

type GetAllConversationsResponse struct {
	Id        uuid.UUID  `json:"id"`
	Title     string     `json:"title"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at"`
}

type GetChatHistoryResponse struct {
	Id                 uuid.UUID `json:"id"`
	Role               string    `json:"role"`
	Chat               string    `json:"chat"`
	Category           string    `json:"category,omitempty"`
	VerificationStatus string    `json:"verification_status,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
}

// AskQuestionRequest submits one visitor question. ConversationId may be a
// provisional, client-generated identifier; the ack carries the durable id
// the client should switch its delivery subscription to.
type AskQuestionRequest struct {
	ConversationId string `json:"conversation_id" validate:"required,max=64"`
	Question       string `json:"question" validate:"required,max=2000"`
}

// AskQuestionAck is the 202 payload: the question was accepted and the
// answer will arrive on the conversation's delivery channel.
type AskQuestionAck struct {
	ConversationId uuid.UUID `json:"conversation_id"`
	ProvisionalId  string    `json:"provisional_id,omitempty"`
	Status         string    `json:"status"`
}

type RateLimitPolicyResponse struct {
	Limit         int    `json:"limit"`
	WindowSeconds int    `json:"window_seconds"`
	Description   string `json:"description"`
}

// --- Rate Limit Exceeded Error Types ---

// RateLimitExceededError is a custom error that carries window details
type RateLimitExceededError struct {
	Limit      int       `json:"limit"`
	Used       int64     `json:"used"`
	ResetAfter time.Time `json:"reset_after"`
}

func (e *RateLimitExceededError) Error() string {
	return "question rate limit exceeded"
}

// RateLimitExceededData is the data payload for 429 responses
type RateLimitExceededData struct {
	Limit      int       `json:"limit"`
	Used       int64     `json:"used"`
	ResetAfter time.Time `json:"reset_after"`
}
