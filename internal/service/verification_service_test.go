package service

import (
	"context"
	"errors"
	"io"
	"log"
	"sync"
	"testing"
	"time"

	"admission-chatbot-be/internal/constant"
	"admission-chatbot-be/internal/entity"
	"admission-chatbot-be/internal/repository/contract"
	"admission-chatbot-be/internal/repository/specification"
	"admission-chatbot-be/internal/repository/unitofwork"
	"admission-chatbot-be/pkg/qa/verify"
	"admission-chatbot-be/pkg/store"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memTaskRepo mirrors the SQL repository's claim semantics in memory: the
// claim is a single critical section, so concurrent callers never get the
// same task.
type memTaskRepo struct {
	mu    sync.Mutex
	tasks map[uuid.UUID]*entity.VerificationTask
}

func newMemTaskRepo() *memTaskRepo {
	return &memTaskRepo{tasks: make(map[uuid.UUID]*entity.VerificationTask)}
}

func (r *memTaskRepo) Create(ctx context.Context, task *entity.VerificationTask) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := *task
	r.tasks[task.Id] = &clone
	return nil
}

func (r *memTaskRepo) ClaimNext(ctx context.Context, now time.Time) (*entity.VerificationTask, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var best *entity.VerificationTask
	for _, t := range r.tasks {
		if t.Status != constant.TaskStatusPending || t.ScheduledAt.After(now) {
			continue
		}
		if best == nil || t.ScheduledAt.Before(best.ScheduledAt) {
			best = t
		}
	}
	if best == nil {
		return nil, nil
	}

	best.Status = constant.TaskStatusProcessing
	processingAt := now
	best.ProcessingAt = &processingAt
	clone := *best
	return &clone, nil
}

func (r *memTaskRepo) Complete(ctx context.Context, id uuid.UUID, completedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[id]
	if !ok || t.Status != constant.TaskStatusProcessing {
		return errors.New("task not in processing state")
	}
	t.Status = constant.TaskStatusCompleted
	t.ProcessingAt = nil
	t.CompletedAt = &completedAt
	return nil
}

func (r *memTaskRepo) Release(ctx context.Context, id uuid.UUID, retryCount int, scheduledAt time.Time, lastError string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[id]
	if !ok || t.Status != constant.TaskStatusProcessing {
		return errors.New("task not in processing state")
	}
	t.Status = constant.TaskStatusPending
	t.ProcessingAt = nil
	t.RetryCount = retryCount
	t.ScheduledAt = scheduledAt
	t.LastError = lastError
	return nil
}

func (r *memTaskRepo) Fail(ctx context.Context, id uuid.UUID, lastError string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[id]
	if !ok || t.Status != constant.TaskStatusProcessing {
		return errors.New("task not in processing state")
	}
	t.Status = constant.TaskStatusFailed
	t.ProcessingAt = nil
	t.LastError = lastError
	return nil
}

func (r *memTaskRepo) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.VerificationTask, error) {
	tasks, err := r.FindAll(ctx, specs...)
	if err != nil || len(tasks) == 0 {
		return nil, err
	}
	return tasks[0], nil
}

func (r *memTaskRepo) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.VerificationTask, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	status := ""
	for _, s := range specs {
		if byStatus, ok := s.(specification.ByStatus); ok {
			status = byStatus.Status
		}
	}

	var out []*entity.VerificationTask
	for _, t := range r.tasks {
		if status != "" && t.Status != status {
			continue
		}
		clone := *t
		out = append(out, &clone)
	}
	return out, nil
}

func (r *memTaskRepo) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	tasks, err := r.FindAll(ctx, specs...)
	return int64(len(tasks)), err
}

func (r *memTaskRepo) get(id uuid.UUID) entity.VerificationTask {
	r.mu.Lock()
	defer r.mu.Unlock()
	return *r.tasks[id]
}

// memChatRepo only records verification status flips.
type memChatRepo struct {
	mu       sync.Mutex
	statuses map[uuid.UUID]string
	err      error
}

func newMemChatRepo() *memChatRepo {
	return &memChatRepo{statuses: make(map[uuid.UUID]string)}
}

func (r *memChatRepo) Create(ctx context.Context, m *entity.ChatMessage) error { return nil }
func (r *memChatRepo) Update(ctx context.Context, m *entity.ChatMessage) error { return nil }
func (r *memChatRepo) UpdateVerificationStatus(ctx context.Context, id uuid.UUID, status string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.statuses[id] = status
	return nil
}
func (r *memChatRepo) DeleteByConversationId(ctx context.Context, id uuid.UUID) error { return nil }
func (r *memChatRepo) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.ChatMessage, error) {
	return nil, nil
}
func (r *memChatRepo) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.ChatMessage, error) {
	return nil, nil
}
func (r *memChatRepo) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	return 0, nil
}

type memUow struct {
	tasks *memTaskRepo
	chats *memChatRepo
}

func (u *memUow) Begin(ctx context.Context) error { return nil }
func (u *memUow) Commit() error                   { return nil }
func (u *memUow) Rollback() error                 { return nil }
func (u *memUow) ConversationRepository() contract.ConversationRepository {
	return nil
}
func (u *memUow) ChatMessageRepository() contract.ChatMessageRepository {
	return u.chats
}
func (u *memUow) VerificationTaskRepository() contract.VerificationTaskRepository {
	return u.tasks
}
func (u *memUow) DocumentChunkRepository() contract.DocumentChunkRepository {
	return nil
}

type memFactory struct {
	uow *memUow
}

func (f *memFactory) NewUnitOfWork(ctx context.Context) unitofwork.UnitOfWork {
	return f.uow
}

// scriptedVerifier errors for the first failCount calls, then returns the
// verdict.
type scriptedVerifier struct {
	mu        sync.Mutex
	failCount int
	verdict   verify.Verdict
	calls     int
}

func (v *scriptedVerifier) Verify(ctx context.Context, question, answer string, nodes []store.Fragment) (verify.Verdict, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.calls++
	if v.calls <= v.failCount {
		return "", errors.New("verification provider unreachable")
	}
	return v.verdict, nil
}

func newTestService(tasks *memTaskRepo, chats *memChatRepo, verifier AnswerVerifier, maxRetries int) *verificationService {
	svc := NewVerificationService(
		&memFactory{uow: &memUow{tasks: tasks, chats: chats}},
		verifier,
		nil,
		nil,
		QueueOptions{
			PoolSize:    1,
			MaxRetries:  maxRetries,
			BackoffBase: time.Millisecond,
			BackoffCap:  time.Millisecond,
		},
		log.New(io.Discard, "", 0),
	)
	return svc.(*verificationService)
}

func enqueueOne(t *testing.T, svc *verificationService) uuid.UUID {
	t.Helper()
	historyId := uuid.New()
	err := svc.Enqueue(context.Background(), historyId, "How much is tuition?", "Tuition is $11,200.", "simple_admission",
		[]store.Fragment{{ID: "1", Title: "Tuition", Content: "CS tuition is $11,200", Score: 0.9}}, false)
	require.NoError(t, err)
	return historyId
}

func TestEnqueue_CreatesPendingTask(t *testing.T) {
	tasks := newMemTaskRepo()
	svc := newTestService(tasks, newMemChatRepo(), &scriptedVerifier{verdict: verify.VerdictSupported}, 3)

	enqueueOne(t, svc)

	all, err := tasks.FindAll(context.Background())
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, constant.TaskStatusPending, all[0].Status)
	assert.Equal(t, 0, all[0].RetryCount)
	assert.Equal(t, 3, all[0].MaxRetries)
	assert.False(t, all[0].ScheduledAt.After(time.Now()))
}

func TestProcessNext_SupportedCompletesAndMarksHistory(t *testing.T) {
	tasks := newMemTaskRepo()
	chats := newMemChatRepo()
	svc := newTestService(tasks, chats, &scriptedVerifier{verdict: verify.VerdictSupported}, 3)

	historyId := enqueueOne(t, svc)

	processed, err := svc.processNext(context.Background())
	require.NoError(t, err)
	assert.True(t, processed)

	all, _ := tasks.FindAll(context.Background())
	require.Len(t, all, 1)
	assert.Equal(t, constant.TaskStatusCompleted, all[0].Status)
	assert.Nil(t, all[0].ProcessingAt)
	assert.NotNil(t, all[0].CompletedAt)
	assert.Equal(t, constant.VerificationVerified, chats.statuses[historyId])
}

func TestProcessNext_UnsupportedFlagsHistory(t *testing.T) {
	tasks := newMemTaskRepo()
	chats := newMemChatRepo()
	svc := newTestService(tasks, chats, &scriptedVerifier{verdict: verify.VerdictUnsupported}, 3)

	historyId := enqueueOne(t, svc)

	processed, err := svc.processNext(context.Background())
	require.NoError(t, err)
	assert.True(t, processed)
	assert.Equal(t, constant.VerificationFlagged, chats.statuses[historyId])
}

func TestProcessNext_EmptyQueue(t *testing.T) {
	svc := newTestService(newMemTaskRepo(), newMemChatRepo(), &scriptedVerifier{verdict: verify.VerdictSupported}, 3)

	processed, err := svc.processNext(context.Background())
	require.NoError(t, err)
	assert.False(t, processed)
}

// Two transient failures followed by a success must end in completed with
// the retry count preserved.
func TestProcessNext_RetriesThenSucceeds(t *testing.T) {
	tasks := newMemTaskRepo()
	chats := newMemChatRepo()
	verifier := &scriptedVerifier{failCount: 2, verdict: verify.VerdictSupported}
	svc := newTestService(tasks, chats, verifier, 3)

	historyId := enqueueOne(t, svc)

	for attempt := 0; attempt < 3; attempt++ {
		// Backoff is 1ms in tests; wait it out so the task is due again.
		time.Sleep(5 * time.Millisecond)
		processed, err := svc.processNext(context.Background())
		require.NoError(t, err)
		require.True(t, processed, "attempt %d should claim the task", attempt+1)
	}

	all, _ := tasks.FindAll(context.Background())
	require.Len(t, all, 1)
	assert.Equal(t, constant.TaskStatusCompleted, all[0].Status)
	assert.Equal(t, 2, all[0].RetryCount)
	assert.Equal(t, 3, verifier.calls)
	assert.Equal(t, constant.VerificationVerified, chats.statuses[historyId])
}

// A task that keeps failing is attempted exactly maxRetries+1 times and then
// parked as failed for operator review, never deleted.
func TestProcessNext_ExhaustsRetriesAndFails(t *testing.T) {
	tasks := newMemTaskRepo()
	verifier := &scriptedVerifier{failCount: 1000}
	svc := newTestService(tasks, newMemChatRepo(), verifier, 3)

	enqueueOne(t, svc)

	for attempt := 0; attempt < 4; attempt++ {
		time.Sleep(5 * time.Millisecond)
		processed, err := svc.processNext(context.Background())
		require.NoError(t, err)
		require.True(t, processed)
	}

	// A fifth sweep finds nothing claimable.
	time.Sleep(5 * time.Millisecond)
	processed, err := svc.processNext(context.Background())
	require.NoError(t, err)
	assert.False(t, processed)

	all, _ := tasks.FindAll(context.Background())
	require.Len(t, all, 1)
	assert.Equal(t, constant.TaskStatusFailed, all[0].Status)
	assert.Equal(t, 3, all[0].RetryCount)
	assert.NotEmpty(t, all[0].LastError)
	assert.Equal(t, 4, verifier.calls, "initial attempt plus maxRetries")
}

func TestProcessNext_HistoryUpdateFailureIsRecoverable(t *testing.T) {
	tasks := newMemTaskRepo()
	chats := newMemChatRepo()
	chats.err = errors.New("db down")
	svc := newTestService(tasks, chats, &scriptedVerifier{verdict: verify.VerdictSupported}, 3)

	enqueueOne(t, svc)

	processed, err := svc.processNext(context.Background())
	require.NoError(t, err)
	assert.True(t, processed)

	all, _ := tasks.FindAll(context.Background())
	assert.Equal(t, constant.TaskStatusPending, all[0].Status, "released for retry, not failed")
	assert.Equal(t, 1, all[0].RetryCount)
}

func TestProcessNext_CorruptContextFailsImmediately(t *testing.T) {
	tasks := newMemTaskRepo()
	svc := newTestService(tasks, newMemChatRepo(), &scriptedVerifier{verdict: verify.VerdictSupported}, 3)

	task := entity.VerificationTask{
		Id:           uuid.New(),
		HistoryId:    uuid.New(),
		Question:     "q",
		Answer:       "a",
		ContextNodes: []byte("{not json"),
		Status:       constant.TaskStatusPending,
		MaxRetries:   3,
		ScheduledAt:  time.Now().Add(-time.Second),
	}
	require.NoError(t, tasks.Create(context.Background(), &task))

	processed, err := svc.processNext(context.Background())
	require.NoError(t, err)
	assert.True(t, processed)

	got := tasks.get(task.Id)
	assert.Equal(t, constant.TaskStatusFailed, got.Status, "corrupt payloads cannot succeed on retry")
}

// Concurrent workers draining the same queue must process every task exactly
// once.
func TestClaimExclusivityUnderConcurrency(t *testing.T) {
	tasks := newMemTaskRepo()
	const total = 30

	for i := 0; i < total; i++ {
		require.NoError(t, tasks.Create(context.Background(), &entity.VerificationTask{
			Id:          uuid.New(),
			HistoryId:   uuid.New(),
			Status:      constant.TaskStatusPending,
			ScheduledAt: time.Now().Add(-time.Second),
		}))
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	claimed := make(map[uuid.UUID]int)

	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				task, err := tasks.ClaimNext(context.Background(), time.Now())
				if err != nil {
					t.Error(err)
					return
				}
				if task == nil {
					return
				}
				mu.Lock()
				claimed[task.Id]++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Len(t, claimed, total, "every task claimed")
	for id, n := range claimed {
		assert.Equal(t, 1, n, "task %s claimed more than once", id)
	}
}

func TestGetQueueStats(t *testing.T) {
	tasks := newMemTaskRepo()
	svc := newTestService(tasks, newMemChatRepo(), &scriptedVerifier{verdict: verify.VerdictSupported}, 3)

	enqueueOne(t, svc)
	enqueueOne(t, svc)

	_, err := svc.processNext(context.Background())
	require.NoError(t, err)

	stats, err := svc.GetQueueStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Pending)
	assert.Equal(t, int64(1), stats.Completed)
	assert.Zero(t, stats.Processing)
	assert.Zero(t, stats.Failed)
}

func TestBackoffSchedule(t *testing.T) {
	svc := newTestService(newMemTaskRepo(), newMemChatRepo(), &scriptedVerifier{verdict: verify.VerdictSupported}, 3)
	svc.opts.BackoffBase = 30 * time.Second
	svc.opts.BackoffCap = 15 * time.Minute

	tests := []struct {
		retryCount int
		expected   time.Duration
	}{
		{1, 60 * time.Second},  // base * 2^1
		{2, 120 * time.Second}, // base * 2^2
		{3, 240 * time.Second},
		{10, 15 * time.Minute}, // capped
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, svc.backoff(tt.retryCount), "retry %d", tt.retryCount)
	}
}
