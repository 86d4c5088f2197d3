package mapper

import (
	"time"

	"admission-chatbot-be/internal/entity"
	"admission-chatbot-be/internal/model"

	"gorm.io/datatypes"
)

type VerificationMapper struct{}

func NewVerificationMapper() *VerificationMapper {
	return &VerificationMapper{}
}

func (m *VerificationMapper) ToEntity(t *model.VerificationTask) *entity.VerificationTask {
	if t == nil {
		return nil
	}

	var updatedAt *time.Time
	if !t.UpdatedAt.IsZero() {
		u := t.UpdatedAt
		updatedAt = &u
	}

	return &entity.VerificationTask{
		Id:           t.Id,
		HistoryId:    t.HistoryId,
		Question:     t.Question,
		Answer:       t.Answer,
		ContextNodes: []byte(t.ContextNodes),
		Category:     t.Category,
		Status:       t.Status,
		RetryCount:   t.RetryCount,
		MaxRetries:   t.MaxRetries,
		LastError:    t.LastError,
		ScheduledAt:  t.ScheduledAt,
		ProcessingAt: t.ProcessingAt,
		CompletedAt:  t.CompletedAt,
		CreatedAt:    t.CreatedAt,
		UpdatedAt:    updatedAt,
	}
}

func (m *VerificationMapper) ToModel(t *entity.VerificationTask) *model.VerificationTask {
	if t == nil {
		return nil
	}

	var updatedAt time.Time
	if t.UpdatedAt != nil {
		updatedAt = *t.UpdatedAt
	}

	return &model.VerificationTask{
		Id:           t.Id,
		HistoryId:    t.HistoryId,
		Question:     t.Question,
		Answer:       t.Answer,
		ContextNodes: datatypes.JSON(t.ContextNodes),
		Category:     t.Category,
		Status:       t.Status,
		RetryCount:   t.RetryCount,
		MaxRetries:   t.MaxRetries,
		LastError:    t.LastError,
		ScheduledAt:  t.ScheduledAt,
		ProcessingAt: t.ProcessingAt,
		CompletedAt:  t.CompletedAt,
		CreatedAt:    t.CreatedAt,
		UpdatedAt:    updatedAt,
	}
}
