package implementation

import (
	"context"
	"errors"
	"time"

	"admission-chatbot-be/internal/constant"
	"admission-chatbot-be/internal/entity"
	"admission-chatbot-be/internal/mapper"
	"admission-chatbot-be/internal/model"
	"admission-chatbot-be/internal/repository/contract"
	"admission-chatbot-be/internal/repository/specification"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type VerificationTaskRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.VerificationMapper
}

func NewVerificationTaskRepository(db *gorm.DB) contract.VerificationTaskRepository {
	return &VerificationTaskRepositoryImpl{
		db:     db,
		mapper: mapper.NewVerificationMapper(),
	}
}

func (r *VerificationTaskRepositoryImpl) applySpecifications(db *gorm.DB, specs ...specification.Specification) *gorm.DB {
	for _, spec := range specs {
		db = spec.Apply(db)
	}
	return db
}

func (r *VerificationTaskRepositoryImpl) Create(ctx context.Context, task *entity.VerificationTask) error {
	m := r.mapper.ToModel(task)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return err
	}
	*task = *r.mapper.ToEntity(m)
	return nil
}

// ClaimNext claims exactly one eligible task via a single conditional UPDATE.
// FOR UPDATE SKIP LOCKED keeps concurrent workers from blocking on (or
// double-claiming) the same row.
func (r *VerificationTaskRepositoryImpl) ClaimNext(ctx context.Context, now time.Time) (*entity.VerificationTask, error) {
	var m model.VerificationTask

	err := r.db.WithContext(ctx).Raw(`
		UPDATE verification_tasks
		SET status = ?, processing_at = ?, updated_at = ?
		WHERE id = (
			SELECT id FROM verification_tasks
			WHERE status = ? AND scheduled_at <= ?
			ORDER BY scheduled_at ASC
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		AND status = ?
		RETURNING *`,
		constant.TaskStatusProcessing, now, now,
		constant.TaskStatusPending, now,
		constant.TaskStatusPending,
	).Scan(&m).Error

	if err != nil {
		return nil, err
	}
	if m.Id == uuid.Nil {
		return nil, nil
	}
	return r.mapper.ToEntity(&m), nil
}

func (r *VerificationTaskRepositoryImpl) Complete(ctx context.Context, id uuid.UUID, completedAt time.Time) error {
	return r.db.WithContext(ctx).
		Model(&model.VerificationTask{}).
		Where("id = ? AND status = ?", id, constant.TaskStatusProcessing).
		Updates(map[string]interface{}{
			"status":        constant.TaskStatusCompleted,
			"completed_at":  completedAt,
			"processing_at": nil,
			"updated_at":    time.Now(),
		}).Error
}

func (r *VerificationTaskRepositoryImpl) Release(ctx context.Context, id uuid.UUID, retryCount int, scheduledAt time.Time, lastError string) error {
	return r.db.WithContext(ctx).
		Model(&model.VerificationTask{}).
		Where("id = ? AND status = ?", id, constant.TaskStatusProcessing).
		Updates(map[string]interface{}{
			"status":        constant.TaskStatusPending,
			"retry_count":   retryCount,
			"scheduled_at":  scheduledAt,
			"last_error":    lastError,
			"processing_at": nil,
			"updated_at":    time.Now(),
		}).Error
}

func (r *VerificationTaskRepositoryImpl) Fail(ctx context.Context, id uuid.UUID, lastError string) error {
	return r.db.WithContext(ctx).
		Model(&model.VerificationTask{}).
		Where("id = ? AND status = ?", id, constant.TaskStatusProcessing).
		Updates(map[string]interface{}{
			"status":        constant.TaskStatusFailed,
			"last_error":    lastError,
			"processing_at": nil,
			"updated_at":    time.Now(),
		}).Error
}

func (r *VerificationTaskRepositoryImpl) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.VerificationTask, error) {
	var m model.VerificationTask
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.ToEntity(&m), nil
}

func (r *VerificationTaskRepositoryImpl) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.VerificationTask, error) {
	var models []*model.VerificationTask
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	entities := make([]*entity.VerificationTask, len(models))
	for i, m := range models {
		entities[i] = r.mapper.ToEntity(m)
	}
	return entities, nil
}

func (r *VerificationTaskRepositoryImpl) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	var count int64
	query := r.applySpecifications(r.db.WithContext(ctx).Model(&model.VerificationTask{}), specs...)
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
