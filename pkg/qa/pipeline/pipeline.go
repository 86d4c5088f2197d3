package pipeline

import (
	"context"
	"fmt"
	"log"
	"unicode/utf8"

	"admission-chatbot-be/internal/constant"
	"admission-chatbot-be/internal/repository/memory"
	"admission-chatbot-be/pkg/llm"
	"admission-chatbot-be/pkg/qa/classify"
	"admission-chatbot-be/pkg/qa/retrieval"
	"admission-chatbot-be/pkg/qa/verify"
	"admission-chatbot-be/pkg/store"
)

// Executor runs the four-phase answering pipeline:
// Phase 1: Classification → Phase 2: Retrieval → Phase 3: Generation →
// Phase 4: Verification routing (inline check only for pre_response).
type Executor struct {
	classifier   *classify.Classifier
	orchestrator *retrieval.Orchestrator
	verifier     *verify.Verifier
	provider     llm.LLMProvider
	thresholds   verify.Thresholds
	sessionRepo  *memory.SessionRepository
	logger       *log.Logger
}

func NewExecutor(
	classifier *classify.Classifier,
	orchestrator *retrieval.Orchestrator,
	verifier *verify.Verifier,
	provider llm.LLMProvider,
	thresholds verify.Thresholds,
	sessionRepo *memory.SessionRepository,
	logger *log.Logger,
) *Executor {
	return &Executor{
		classifier:   classifier,
		orchestrator: orchestrator,
		verifier:     verifier,
		provider:     provider,
		thresholds:   thresholds,
		sessionRepo:  sessionRepo,
		logger:       logger,
	}
}

// ExecutionResult is what the pipeline hands back to the service layer. The
// service persists the turn, delivers Answer, and acts on Mode: post_async
// and background answers still need a verification task enqueued.
type ExecutionResult struct {
	Answer             string
	Category           classify.Category
	Degraded           bool
	AggregateScore     float64
	Nodes              []store.Fragment
	Mode               verify.Mode
	VerificationStatus string
	// NeedsVerification is false for off-topic and inappropriate turns,
	// which have no claims to check.
	NeedsVerification bool
}

// Execute answers one question end to end. It never returns an error for a
// model failure: degraded paths produce a fallback answer routed to the
// background verification queue.
func (p *Executor) Execute(ctx context.Context, conversationID, visitorKey, question string, sink retrieval.ProgressSink) *ExecutionResult {
	p.logger.Printf("[PIPELINE] Starting execution for conversation %s: %s", conversationID, truncate(question, 50))

	// ═══════════════════════════════════════════════════════════════
	// PHASE 1: CLASSIFICATION
	// ═══════════════════════════════════════════════════════════════
	outcome := p.classifier.Classify(ctx, question)
	p.logger.Printf("[PHASE 1] Category: %s (degraded=%v)", outcome.Category, outcome.Degraded)

	if reply, done := cannedReply(outcome.Category); done {
		p.saveSession(conversationID, visitorKey, outcome, question)
		return &ExecutionResult{
			Answer:             reply,
			Category:           outcome.Category,
			Mode:               verify.ModeBackground,
			VerificationStatus: constant.VerificationVerified,
		}
	}

	// ═══════════════════════════════════════════════════════════════
	// PHASE 2: MULTI-STEP RETRIEVAL
	// ═══════════════════════════════════════════════════════════════
	result := p.orchestrator.Retrieve(ctx, question, outcome.Category, sink)
	p.logger.Printf("[PHASE 2] %d step(s), aggregate score %.3f", len(result.Steps), result.AggregateScore)

	// ═══════════════════════════════════════════════════════════════
	// PHASE 3: ANSWER GENERATION
	// ═══════════════════════════════════════════════════════════════
	answer, genErr := p.generate(ctx, question, result.Nodes())
	degraded := outcome.Degraded
	if genErr != nil {
		p.logger.Printf("[PHASE 3] Generation failed, using fallback: %v", genErr)
		answer = constant.FallbackAnswerV1
		degraded = true
	}

	// ═══════════════════════════════════════════════════════════════
	// PHASE 4: VERIFICATION ROUTING
	// ═══════════════════════════════════════════════════════════════
	mode := verify.DecideMode(outcome.Category, result.AggregateScore, degraded, p.thresholds)
	p.logger.Printf("[PHASE 4] Verification mode: %s", mode)

	exec := &ExecutionResult{
		Answer:             answer,
		Category:           outcome.Category,
		Degraded:           degraded,
		AggregateScore:     result.AggregateScore,
		Nodes:              result.Nodes(),
		Mode:               mode,
		VerificationStatus: constant.VerificationUnverified,
		NeedsVerification:  true,
	}

	if mode == verify.ModePreResponse {
		p.verifyInline(ctx, question, exec)
	}

	p.saveSession(conversationID, visitorKey, outcome, question)
	return exec
}

// verifyInline runs the pre-response check, regenerating once when the first
// answer is not supported by its context. An unrecoverable second miss ships
// the answer with an explicit caveat rather than blocking the visitor.
func (p *Executor) verifyInline(ctx context.Context, question string, exec *ExecutionResult) {
	verdict, err := p.verifier.Verify(ctx, question, exec.Answer, exec.Nodes)
	if err != nil {
		p.logger.Printf("[PHASE 4] Inline verification failed, deferring to background: %v", err)
		exec.Mode = verify.ModeBackground
		return
	}
	if verdict == verify.VerdictSupported {
		exec.VerificationStatus = constant.VerificationVerified
		exec.NeedsVerification = false
		return
	}

	p.logger.Printf("[PHASE 4] Answer unsupported, regenerating once")
	regenerated, err := p.generate(ctx, question, exec.Nodes)
	if err == nil {
		if verdict, err = p.verifier.Verify(ctx, question, regenerated, exec.Nodes); err == nil && verdict == verify.VerdictSupported {
			exec.Answer = regenerated
			exec.VerificationStatus = constant.VerificationVerified
			exec.NeedsVerification = false
			return
		}
		exec.Answer = regenerated
	}

	exec.Answer += constant.UnverifiedNoticeV1
	exec.VerificationStatus = constant.VerificationFlagged
	exec.NeedsVerification = false
}

func (p *Executor) generate(ctx context.Context, question string, nodes []store.Fragment) (string, error) {
	prompt := fmt.Sprintf(constant.AnswerPromptV1, verify.FormatContext(nodes), question)
	return p.provider.Generate(ctx, prompt, llm.WithTemperature(0.3), llm.WithMaxTokens(512))
}

func (p *Executor) saveSession(conversationID, visitorKey string, outcome classify.Outcome, question string) {
	p.sessionRepo.Save(&store.ConversationSession{
		ID:           conversationID,
		VisitorKey:   visitorKey,
		LastCategory: string(outcome.Category),
		LastQuestion: question,
		Degraded:     outcome.Degraded,
	})
}

func cannedReply(category classify.Category) (string, bool) {
	switch category {
	case classify.CategoryOffTopic:
		return constant.OffTopicReplyV1, true
	case classify.CategoryInappropriate:
		return constant.InappropriateReplyV1, true
	}
	return "", false
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
