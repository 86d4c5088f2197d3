package dto

import (
	"time"

	"github.com/google/uuid"
)

type FailedVerificationResponse struct {
	Id         uuid.UUID  `json:"id"`
	HistoryId  uuid.UUID  `json:"history_id"`
	Question   string     `json:"question"`
	Answer     string     `json:"answer"`
	Category   string     `json:"category"`
	RetryCount int        `json:"retry_count"`
	LastError  string     `json:"last_error"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  *time.Time `json:"updated_at"`
}

type QueueStatsResponse struct {
	Pending    int64 `json:"pending"`
	Processing int64 `json:"processing"`
	Completed  int64 `json:"completed"`
	Failed     int64 `json:"failed"`
}
