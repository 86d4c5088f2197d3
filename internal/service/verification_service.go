package service

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"admission-chatbot-be/internal/constant"
	"admission-chatbot-be/internal/dto"
	"admission-chatbot-be/internal/entity"
	"admission-chatbot-be/internal/repository/contract"
	"admission-chatbot-be/internal/repository/specification"
	"admission-chatbot-be/internal/repository/unitofwork"
	"admission-chatbot-be/pkg/events"
	natsclient "admission-chatbot-be/pkg/nats"
	"admission-chatbot-be/pkg/qa/verify"
	"admission-chatbot-be/pkg/store"

	"github.com/google/uuid"
)

// AnswerVerifier checks an answer against its retrieval context.
type AnswerVerifier interface {
	Verify(ctx context.Context, question, answer string, nodes []store.Fragment) (verify.Verdict, error)
}

// IVerificationService owns the durable verification queue: it enqueues
// tasks for answers delivered before their check, runs the worker pool that
// drains them, and exposes failed tasks for operator review.
type IVerificationService interface {
	// Enqueue persists a verification task. With wake=true it also signals
	// the worker pool over NATS so the task is picked up ahead of the next
	// poll tick (post_async mode).
	Enqueue(ctx context.Context, historyId uuid.UUID, question, answer, category string, nodes []store.Fragment, wake bool) error
	Start() error
	Stop()
	GetFailedTasks(ctx context.Context) ([]*dto.FailedVerificationResponse, error)
	GetQueueStats(ctx context.Context) (*dto.QueueStatsResponse, error)
}

// QueueOptions tune the worker pool and retry schedule.
type QueueOptions struct {
	PoolSize     int
	MaxRetries   int
	BackoffBase  time.Duration
	BackoffCap   time.Duration
	PollInterval time.Duration
}

func (o *QueueOptions) applyDefaults() {
	if o.PoolSize <= 0 {
		o.PoolSize = 2
	}
	if o.MaxRetries <= 0 {
		o.MaxRetries = 3
	}
	if o.BackoffBase <= 0 {
		o.BackoffBase = 30 * time.Second
	}
	if o.BackoffCap <= 0 {
		o.BackoffCap = 15 * time.Minute
	}
	if o.PollInterval <= 0 {
		o.PollInterval = 30 * time.Second
	}
}

type verificationService struct {
	uowFactory unitofwork.RepositoryFactory
	verifier   AnswerVerifier
	publisher  *natsclient.Publisher
	subscriber *natsclient.Subscriber
	opts       QueueOptions
	logger     *log.Logger

	wake chan struct{}
	stop chan struct{}
	wg   sync.WaitGroup
}

func NewVerificationService(
	uowFactory unitofwork.RepositoryFactory,
	verifier AnswerVerifier,
	publisher *natsclient.Publisher,
	subscriber *natsclient.Subscriber,
	opts QueueOptions,
	logger *log.Logger,
) IVerificationService {
	opts.applyDefaults()
	return &verificationService{
		uowFactory: uowFactory,
		verifier:   verifier,
		publisher:  publisher,
		subscriber: subscriber,
		opts:       opts,
		logger:     logger,
		wake:       make(chan struct{}, 1),
		stop:       make(chan struct{}),
	}
}

func (vs *verificationService) Enqueue(ctx context.Context, historyId uuid.UUID, question, answer, category string, nodes []store.Fragment, wake bool) error {
	serialized, err := json.Marshal(nodes)
	if err != nil {
		return err
	}

	now := time.Now()
	task := entity.VerificationTask{
		Id:           uuid.New(),
		HistoryId:    historyId,
		Question:     question,
		Answer:       answer,
		ContextNodes: serialized,
		Category:     category,
		Status:       constant.TaskStatusPending,
		MaxRetries:   vs.opts.MaxRetries,
		ScheduledAt:  now,
		CreatedAt:    now,
	}

	uow := vs.uowFactory.NewUnitOfWork(ctx)
	if err := uow.Begin(ctx); err != nil {
		return err
	}
	defer uow.Rollback()

	if err := uow.VerificationTaskRepository().Create(ctx, &task); err != nil {
		return err
	}
	if err := uow.Commit(); err != nil {
		return err
	}

	if wake {
		// Best effort: a lost wake-up only delays the task until the next
		// poll tick, the row itself is already durable.
		vs.signalWake()
		if vs.publisher != nil {
			event := events.VerificationEnqueued{
				TaskId:     task.Id.String(),
				HistoryId:  historyId.String(),
				OccurredAt: now,
			}
			if err := vs.publisher.Publish(ctx, event); err != nil {
				vs.logger.Printf("[QUEUE] Wake publish failed for task %s: %v", task.Id, err)
			}
		}
	}

	return nil
}

func (vs *verificationService) Start() error {
	if vs.subscriber != nil {
		err := vs.subscriber.Subscribe(
			"events.verification.enqueued",
			"verification-workers",
			func(ctx context.Context, event events.Event) error {
				vs.signalWake()
				return nil
			},
		)
		if err != nil {
			return err
		}
	}

	for i := 0; i < vs.opts.PoolSize; i++ {
		vs.wg.Add(1)
		go vs.workerLoop(i)
	}
	vs.logger.Printf("[QUEUE] Started %d verification worker(s)", vs.opts.PoolSize)
	return nil
}

func (vs *verificationService) Stop() {
	close(vs.stop)
	vs.wg.Wait()
}

func (vs *verificationService) signalWake() {
	select {
	case vs.wake <- struct{}{}:
	default:
	}
}

func (vs *verificationService) workerLoop(id int) {
	defer vs.wg.Done()

	ticker := time.NewTicker(vs.opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-vs.stop:
			return
		case <-vs.wake:
		case <-ticker.C:
		}

		// Drain everything due, then go back to waiting.
		for {
			select {
			case <-vs.stop:
				return
			default:
			}

			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
			processed, err := vs.processNext(ctx)
			cancel()
			if err != nil {
				vs.logger.Printf("[QUEUE] Worker %d claim error: %v", id, err)
				break
			}
			if !processed {
				break
			}
		}
	}
}

// processNext claims and settles at most one due task. The claim is atomic,
// so a pool of workers (and a fleet of instances) never double-process.
func (vs *verificationService) processNext(ctx context.Context) (bool, error) {
	uow := vs.uowFactory.NewUnitOfWork(ctx)
	repo := uow.VerificationTaskRepository()

	task, err := repo.ClaimNext(ctx, time.Now())
	if err != nil {
		return false, err
	}
	if task == nil {
		return false, nil
	}

	var nodes []store.Fragment
	if err := json.Unmarshal(task.ContextNodes, &nodes); err != nil {
		// Corrupt payloads cannot succeed on retry.
		vs.logger.Printf("[QUEUE] Task %s has corrupt context, failing: %v", task.Id, err)
		return true, repo.Fail(ctx, task.Id, "corrupt context payload: "+err.Error())
	}

	verdict, err := vs.verifier.Verify(ctx, task.Question, task.Answer, nodes)
	if err != nil {
		vs.settleRecoverable(ctx, repo, task, err)
		return true, nil
	}

	status := constant.VerificationVerified
	if verdict == verify.VerdictUnsupported {
		status = constant.VerificationFlagged
	}

	if err := uow.ChatMessageRepository().UpdateVerificationStatus(ctx, task.HistoryId, status); err != nil {
		vs.settleRecoverable(ctx, repo, task, err)
		return true, nil
	}

	if err := repo.Complete(ctx, task.Id, time.Now()); err != nil {
		vs.logger.Printf("[QUEUE] Failed to complete task %s: %v", task.Id, err)
	} else {
		vs.logger.Printf("[QUEUE] Task %s completed: answer %s is %s", task.Id, task.HistoryId, status)
	}
	return true, nil
}

// settleRecoverable returns a task to pending with exponential backoff, or
// fails it permanently once retries are exhausted.
func (vs *verificationService) settleRecoverable(ctx context.Context, repo contract.VerificationTaskRepository, task *entity.VerificationTask, cause error) {
	if task.RetryCount >= task.MaxRetries {
		vs.logger.Printf("[QUEUE] Task %s exhausted %d retries, failing: %v", task.Id, task.MaxRetries, cause)
		if err := repo.Fail(ctx, task.Id, cause.Error()); err != nil {
			vs.logger.Printf("[QUEUE] Failed to fail task %s: %v", task.Id, err)
		}
		return
	}

	retryCount := task.RetryCount + 1
	scheduledAt := time.Now().Add(vs.backoff(retryCount))
	vs.logger.Printf("[QUEUE] Task %s released for retry %d/%d at %s: %v",
		task.Id, retryCount, task.MaxRetries, scheduledAt.Format(time.RFC3339), cause)
	if err := repo.Release(ctx, task.Id, retryCount, scheduledAt, cause.Error()); err != nil {
		vs.logger.Printf("[QUEUE] Failed to release task %s: %v", task.Id, err)
	}
}

// backoff returns base * 2^retryCount capped, so the first retry already
// waits twice the base and transient LLM outages get real spacing.
func (vs *verificationService) backoff(retryCount int) time.Duration {
	delay := vs.opts.BackoffBase
	for i := 0; i < retryCount; i++ {
		delay *= 2
		if delay >= vs.opts.BackoffCap {
			return vs.opts.BackoffCap
		}
	}
	if delay > vs.opts.BackoffCap {
		delay = vs.opts.BackoffCap
	}
	return delay
}

func (vs *verificationService) GetFailedTasks(ctx context.Context) ([]*dto.FailedVerificationResponse, error) {
	uow := vs.uowFactory.NewUnitOfWork(ctx)

	tasks, err := uow.VerificationTaskRepository().FindAll(ctx,
		specification.ByStatus{Status: constant.TaskStatusFailed},
		specification.OrderBy{Field: "updated_at", Desc: true},
	)
	if err != nil {
		return nil, err
	}

	response := make([]*dto.FailedVerificationResponse, 0, len(tasks))
	for _, t := range tasks {
		response = append(response, &dto.FailedVerificationResponse{
			Id:         t.Id,
			HistoryId:  t.HistoryId,
			Question:   t.Question,
			Answer:     t.Answer,
			Category:   t.Category,
			RetryCount: t.RetryCount,
			LastError:  t.LastError,
			CreatedAt:  t.CreatedAt,
			UpdatedAt:  t.UpdatedAt,
		})
	}
	return response, nil
}

func (vs *verificationService) GetQueueStats(ctx context.Context) (*dto.QueueStatsResponse, error) {
	uow := vs.uowFactory.NewUnitOfWork(ctx)
	repo := uow.VerificationTaskRepository()

	stats := &dto.QueueStatsResponse{}
	counts := []struct {
		status string
		dest   *int64
	}{
		{constant.TaskStatusPending, &stats.Pending},
		{constant.TaskStatusProcessing, &stats.Processing},
		{constant.TaskStatusCompleted, &stats.Completed},
		{constant.TaskStatusFailed, &stats.Failed},
	}
	for _, c := range counts {
		n, err := repo.Count(ctx, specification.ByStatus{Status: c.status})
		if err != nil {
			return nil, err
		}
		*c.dest = n
	}
	return stats, nil
}
