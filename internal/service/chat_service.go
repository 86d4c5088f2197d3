package service

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"
	"unicode/utf8"

	"admission-chatbot-be/internal/constant"
	"admission-chatbot-be/internal/dto"
	"admission-chatbot-be/internal/entity"
	"admission-chatbot-be/internal/repository/specification"
	"admission-chatbot-be/internal/repository/unitofwork"
	"admission-chatbot-be/pkg/qa/delivery"
	"admission-chatbot-be/pkg/qa/pipeline"
	"admission-chatbot-be/pkg/qa/ratelimit"
	"admission-chatbot-be/pkg/qa/retrieval"
	"admission-chatbot-be/pkg/qa/verify"

	"github.com/google/uuid"
)

// IChatService is the visitor-facing conversation API.
type IChatService interface {
	CreateConversation(ctx context.Context, visitorKey string) (*dto.CreateConversationResponse, error)
	GetAllConversations(ctx context.Context, visitorKey string) ([]*dto.GetAllConversationsResponse, error)
	GetChatHistory(ctx context.Context, visitorKey string, conversationId uuid.UUID) ([]*dto.GetChatHistoryResponse, error)
	// AskQuestion accepts a question, persists the user turn and returns a
	// 202-style ack. The answer is produced asynchronously and delivered on
	// the conversation's delivery channel.
	AskQuestion(ctx context.Context, identity ratelimit.Identity, req *dto.AskQuestionRequest) (*dto.AskQuestionAck, error)
	DeleteConversation(ctx context.Context, visitorKey string, conversationId uuid.UUID) error
	Policy() *dto.RateLimitPolicyResponse
	// ResolveChannel maps a (possibly provisional) conversation id onto its
	// stable delivery channel name for websocket subscribers.
	ResolveChannel(conversationId string) string
}

type chatService struct {
	uowFactory      unitofwork.RepositoryFactory
	executor        *pipeline.Executor
	emitter         *delivery.Emitter
	limiter         *ratelimit.Limiter
	verification    IVerificationService
	pipelineTimeout time.Duration
	qaLogger        *log.Logger
}

func NewChatService(
	uowFactory unitofwork.RepositoryFactory,
	executor *pipeline.Executor,
	emitter *delivery.Emitter,
	limiter *ratelimit.Limiter,
	verification IVerificationService,
	pipelineTimeout time.Duration,
) IChatService {
	if pipelineTimeout <= 0 {
		pipelineTimeout = 60 * time.Second
	}
	return &chatService{
		uowFactory:      uowFactory,
		executor:        executor,
		emitter:         emitter,
		limiter:         limiter,
		verification:    verification,
		pipelineTimeout: pipelineTimeout,
		qaLogger:        initQALogger(),
	}
}

func initQALogger() *log.Logger {
	logPath := filepath.Join(".", "logs", "qa_pipeline.log")
	if err := os.MkdirAll(filepath.Dir(logPath), 0755); err != nil {
		log.Printf("Failed to create logs directory: %v", err)
	}
	file, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return log.New(os.Stdout, "[QA] ", log.LstdFlags)
	}
	return log.New(file, "", log.LstdFlags)
}

func (cs *chatService) CreateConversation(ctx context.Context, visitorKey string) (*dto.CreateConversationResponse, error) {
	uow := cs.uowFactory.NewUnitOfWork(ctx)
	now := time.Now()

	conversation := entity.Conversation{
		Id:         uuid.New(),
		VisitorKey: visitorKey,
		Title:      "New conversation",
		CreatedAt:  now,
	}

	if err := uow.Begin(ctx); err != nil {
		return nil, err
	}
	defer uow.Rollback()

	if err := uow.ConversationRepository().Create(ctx, &conversation); err != nil {
		return nil, err
	}
	if err := uow.Commit(); err != nil {
		return nil, err
	}

	return &dto.CreateConversationResponse{Id: conversation.Id}, nil
}

func (cs *chatService) GetAllConversations(ctx context.Context, visitorKey string) ([]*dto.GetAllConversationsResponse, error) {
	uow := cs.uowFactory.NewUnitOfWork(ctx)

	conversations, err := uow.ConversationRepository().FindAll(ctx,
		specification.OwnedByVisitor{VisitorKey: visitorKey},
		specification.OrderBy{Field: "created_at", Desc: true},
	)
	if err != nil {
		return nil, err
	}

	response := make([]*dto.GetAllConversationsResponse, 0, len(conversations))
	for _, c := range conversations {
		response = append(response, &dto.GetAllConversationsResponse{
			Id:        c.Id,
			Title:     c.Title,
			CreatedAt: c.CreatedAt,
			UpdatedAt: c.UpdatedAt,
		})
	}
	return response, nil
}

func (cs *chatService) GetChatHistory(ctx context.Context, visitorKey string, conversationId uuid.UUID) ([]*dto.GetChatHistoryResponse, error) {
	uow := cs.uowFactory.NewUnitOfWork(ctx)

	conversation, err := uow.ConversationRepository().FindOne(ctx,
		specification.ByID{ID: conversationId},
		specification.OwnedByVisitor{VisitorKey: visitorKey},
	)
	if err != nil {
		return nil, err
	}
	if conversation == nil {
		return nil, fmt.Errorf("conversation not found or access denied")
	}

	messages, err := uow.ChatMessageRepository().FindAll(ctx,
		specification.ByConversationID{ConversationID: conversationId},
		specification.OrderBy{Field: "created_at", Desc: false},
	)
	if err != nil {
		return nil, err
	}

	response := make([]*dto.GetChatHistoryResponse, 0, len(messages))
	for _, m := range messages {
		response = append(response, &dto.GetChatHistoryResponse{
			Id:                 m.Id,
			Role:               m.Role,
			Chat:               m.Content,
			Category:           m.Category,
			VerificationStatus: m.VerificationStatus,
			CreatedAt:          m.CreatedAt,
		})
	}
	return response, nil
}

func (cs *chatService) AskQuestion(ctx context.Context, identity ratelimit.Identity, req *dto.AskQuestionRequest) (*dto.AskQuestionAck, error) {
	gate := cs.limiter.CheckAndConsume(ctx, identity)
	if !gate.Allowed {
		policy := cs.limiter.Policy()
		return nil, &dto.RateLimitExceededError{
			Limit:      policy.Limit,
			Used:       int64(policy.Limit - gate.Remaining),
			ResetAfter: gate.ResetTime,
		}
	}

	conversation, provisionalId, err := cs.resolveConversation(ctx, identity.Key, req)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	userTurn := entity.ChatMessage{
		Id:             uuid.New(),
		ConversationId: conversation.Id,
		Role:           constant.ChatRoleUser,
		Content:        req.Question,
		CreatedAt:      now,
	}

	uow := cs.uowFactory.NewUnitOfWork(ctx)
	if err := uow.Begin(ctx); err != nil {
		return nil, err
	}
	defer uow.Rollback()
	if err := uow.ChatMessageRepository().Create(ctx, &userTurn); err != nil {
		return nil, err
	}
	if err := uow.Commit(); err != nil {
		return nil, err
	}

	// The pipeline runs detached from the request context: the visitor
	// disconnecting must not cancel persistence or verification.
	go cs.runPipeline(conversation.Id, identity.Key, req.Question)

	return &dto.AskQuestionAck{
		ConversationId: conversation.Id,
		ProvisionalId:  provisionalId,
		Status:         "accepted",
	}, nil
}

// resolveConversation returns the durable conversation for the request. A
// conversation id that does not resolve to an existing row is treated as a
// provisional client-side id: a durable conversation is created and the
// delivery channel rekeyed so updates published under either id reach the
// same subscribers.
func (cs *chatService) resolveConversation(ctx context.Context, visitorKey string, req *dto.AskQuestionRequest) (*entity.Conversation, string, error) {
	uow := cs.uowFactory.NewUnitOfWork(ctx)

	if id, err := uuid.Parse(req.ConversationId); err == nil {
		existing, err := uow.ConversationRepository().FindOne(ctx,
			specification.ByID{ID: id},
			specification.OwnedByVisitor{VisitorKey: visitorKey},
		)
		if err != nil {
			return nil, "", err
		}
		if existing != nil {
			return existing, "", nil
		}
	}

	now := time.Now()
	conversation := entity.Conversation{
		Id:         uuid.New(),
		VisitorKey: visitorKey,
		Title:      truncateTitle(req.Question, 60),
		CreatedAt:  now,
	}

	if err := uow.Begin(ctx); err != nil {
		return nil, "", err
	}
	defer uow.Rollback()
	if err := uow.ConversationRepository().Create(ctx, &conversation); err != nil {
		return nil, "", err
	}
	if err := uow.Commit(); err != nil {
		return nil, "", err
	}

	cs.emitter.Registry().Reconcile(req.ConversationId, conversation.Id.String())
	return &conversation, req.ConversationId, nil
}

// runPipeline produces and delivers the answer for one accepted question.
func (cs *chatService) runPipeline(conversationId uuid.UUID, visitorKey, question string) {
	ctx, cancel := context.WithTimeout(context.Background(), cs.pipelineTimeout)
	defer cancel()

	convKey := conversationId.String()
	sink := &progressSink{emitter: cs.emitter, conversationId: convKey}

	exec := cs.executor.Execute(ctx, convKey, visitorKey, question, sink)

	answerTurn := entity.ChatMessage{
		Id:                 uuid.New(),
		ConversationId:     conversationId,
		Role:               constant.ChatRoleModel,
		Content:            exec.Answer,
		Category:           string(exec.Category),
		AggregateScore:     exec.AggregateScore,
		VerificationMode:   string(exec.Mode),
		VerificationStatus: exec.VerificationStatus,
		CreatedAt:          time.Now(),
	}

	uow := cs.uowFactory.NewUnitOfWork(ctx)
	if err := uow.Begin(ctx); err != nil {
		cs.qaLogger.Printf("[ERROR] Failed to begin answer persistence for %s: %v", convKey, err)
		cs.emitter.EmitError(convKey, constant.FallbackAnswerV1)
		return
	}
	persisted := true
	if err := uow.ChatMessageRepository().Create(ctx, &answerTurn); err != nil {
		cs.qaLogger.Printf("[ERROR] Failed to persist answer for %s: %v", convKey, err)
		persisted = false
	}
	if persisted {
		if err := uow.Commit(); err != nil {
			cs.qaLogger.Printf("[ERROR] Failed to commit answer for %s: %v", convKey, err)
			persisted = false
		}
	}
	if !persisted {
		uow.Rollback()
	}

	// The answer is delivered even when persistence failed: the visitor is
	// waiting and the turn can be reconstructed from logs.
	cs.emitter.EmitResponse(convKey, exec.Answer)

	if persisted && exec.NeedsVerification {
		wake := exec.Mode == verify.ModePostAsync
		err := cs.verification.Enqueue(ctx, answerTurn.Id, question, exec.Answer, string(exec.Category), exec.Nodes, wake)
		if err != nil {
			cs.qaLogger.Printf("[ERROR] Failed to enqueue verification for %s: %v", answerTurn.Id, err)
		}
	}
}

func (cs *chatService) DeleteConversation(ctx context.Context, visitorKey string, conversationId uuid.UUID) error {
	uow := cs.uowFactory.NewUnitOfWork(ctx)

	conversation, err := uow.ConversationRepository().FindOne(ctx,
		specification.ByID{ID: conversationId},
		specification.OwnedByVisitor{VisitorKey: visitorKey},
	)
	if err != nil {
		return err
	}
	if conversation == nil {
		return fmt.Errorf("conversation not found or access denied")
	}

	if err := uow.Begin(ctx); err != nil {
		return err
	}
	defer uow.Rollback()

	if err := uow.ChatMessageRepository().DeleteByConversationId(ctx, conversationId); err != nil {
		return err
	}
	if err := uow.ConversationRepository().Delete(ctx, conversationId); err != nil {
		return err
	}
	if err := uow.Commit(); err != nil {
		return err
	}

	cs.emitter.Registry().Forget(conversationId.String())
	return nil
}

func (cs *chatService) Policy() *dto.RateLimitPolicyResponse {
	policy := cs.limiter.Policy()
	return &dto.RateLimitPolicyResponse{
		Limit:         policy.Limit,
		WindowSeconds: policy.WindowSeconds,
		Description:   policy.Description,
	}
}

func (cs *chatService) ResolveChannel(conversationId string) string {
	return cs.emitter.Registry().Channel(conversationId)
}

// progressSink streams retrieval progress onto the delivery channel.
type progressSink struct {
	emitter        *delivery.Emitter
	conversationId string
}

func (s *progressSink) RetrievalStep(step retrieval.Step, stepIndex, plannedSteps int) {
	s.emitter.EmitProgress(s.conversationId, delivery.ProgressPayload{
		Stage:        string(step.Kind),
		StepIndex:    stepIndex,
		PlannedSteps: plannedSteps,
		ContextScore: step.ContextScore,
	})
}

// truncateTitle cuts on a rune boundary: conversation titles in Vietnamese
// must never be sliced mid-character, Postgres rejects invalid UTF-8.
func truncateTitle(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
