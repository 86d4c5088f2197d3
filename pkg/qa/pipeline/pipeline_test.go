package pipeline

import (
	"context"
	"errors"
	"io"
	"log"
	"strings"
	"testing"
	"time"

	"admission-chatbot-be/internal/constant"
	"admission-chatbot-be/internal/repository/memory"
	"admission-chatbot-be/pkg/llm"
	"admission-chatbot-be/pkg/qa/classify"
	"admission-chatbot-be/pkg/qa/retrieval"
	"admission-chatbot-be/pkg/qa/verify"
	"admission-chatbot-be/pkg/store"

	"github.com/stretchr/testify/assert"
)

// promptRoutedLLM answers by prompt kind, so one fake serves the classifier,
// the sub-query generator, the answer generator and the verifier at once.
type promptRoutedLLM struct {
	category    string
	subQuery    string
	answer      string
	verdict     string
	answerErr   error
	verdictErr  error
	verifyCalls int
}

func (f *promptRoutedLLM) Chat(ctx context.Context, history []llm.Message, opts ...llm.Option) (string, error) {
	return "", errors.New("not used")
}

func (f *promptRoutedLLM) Generate(ctx context.Context, prompt string, opts ...llm.Option) (string, error) {
	switch {
	case strings.HasPrefix(prompt, "You are a question classifier"):
		return f.category, nil
	case strings.HasPrefix(prompt, "You are refining retrieval"):
		return f.subQuery, nil
	case strings.HasPrefix(prompt, "You are verifying"):
		f.verifyCalls++
		return f.verdict, f.verdictErr
	case strings.HasPrefix(prompt, "You are an admissions assistant"):
		return f.answer, f.answerErr
	}
	return "", errors.New("unexpected prompt")
}

type fixedSearcher struct {
	score float64
	err   error
}

func (s *fixedSearcher) Search(ctx context.Context, query string, limit int) ([]store.Fragment, error) {
	if s.err != nil {
		return nil, s.err
	}
	return []store.Fragment{{ID: "1", Title: "Tuition", Content: "CS tuition is $11,200", Score: s.score}}, nil
}

func newTestExecutor(provider llm.LLMProvider, searcher retrieval.Searcher) *Executor {
	discard := log.New(io.Discard, "", 0)
	return NewExecutor(
		classify.NewClassifier(provider, time.Second, discard),
		retrieval.NewOrchestrator(searcher, provider, 5, 0.8, discard),
		verify.NewVerifier(provider),
		provider,
		verify.DefaultThresholds(),
		memory.NewSessionRepository(),
		discard,
	)
}

func TestExecute_HighConfidenceVerifiedInline(t *testing.T) {
	provider := &promptRoutedLLM{
		category: "simple_admission",
		answer:   "CS tuition is $11,200 per year.",
		verdict:  "SUPPORTED",
	}
	e := newTestExecutor(provider, &fixedSearcher{score: 0.9})

	exec := e.Execute(context.Background(), "conv-1", "visitor:a", "How much is CS tuition?", nil)

	assert.Equal(t, verify.ModePreResponse, exec.Mode)
	assert.Equal(t, constant.VerificationVerified, exec.VerificationStatus)
	assert.False(t, exec.NeedsVerification, "inline check settles the turn")
	assert.Equal(t, "CS tuition is $11,200 per year.", exec.Answer)
	assert.Equal(t, 1, provider.verifyCalls)
}

func TestExecute_ComplexModerateGoesPostAsync(t *testing.T) {
	provider := &promptRoutedLLM{
		category: "complex_admission",
		subQuery: "NONE",
		answer:   "CS costs more than Business, both offer merit scholarships.",
		verdict:  "SUPPORTED",
	}
	e := newTestExecutor(provider, &fixedSearcher{score: 0.7})

	exec := e.Execute(context.Background(), "conv-1", "visitor:a", "Compare CS and Business tuition and scholarships", nil)

	assert.Equal(t, verify.ModePostAsync, exec.Mode)
	assert.Equal(t, constant.VerificationUnverified, exec.VerificationStatus)
	assert.True(t, exec.NeedsVerification, "answer ships first, check runs after")
	assert.Zero(t, provider.verifyCalls, "no inline verification in post_async mode")
	assert.NotEmpty(t, exec.Nodes)
}

func TestExecute_LowConfidenceGoesBackground(t *testing.T) {
	provider := &promptRoutedLLM{
		category: "simple_admission",
		answer:   "I could not find that in the admissions documents.",
	}
	e := newTestExecutor(provider, &fixedSearcher{score: 0.4})

	exec := e.Execute(context.Background(), "conv-1", "visitor:a", "How much is underwater basket weaving tuition?", nil)

	assert.Equal(t, verify.ModeBackground, exec.Mode)
	assert.True(t, exec.NeedsVerification)
}

func TestExecute_OffTopicCannedReply(t *testing.T) {
	provider := &promptRoutedLLM{category: "off_topic"}
	searcher := &fixedSearcher{score: 0.9}
	e := newTestExecutor(provider, searcher)

	exec := e.Execute(context.Background(), "conv-1", "visitor:a", "hello!", nil)

	assert.Equal(t, constant.OffTopicReplyV1, exec.Answer)
	assert.Equal(t, constant.VerificationVerified, exec.VerificationStatus)
	assert.False(t, exec.NeedsVerification, "nothing factual to check")
}

func TestExecute_GenerationFailureFallsBack(t *testing.T) {
	provider := &promptRoutedLLM{
		category:  "simple_admission",
		answerErr: errors.New("model offline"),
	}
	e := newTestExecutor(provider, &fixedSearcher{score: 0.9})

	exec := e.Execute(context.Background(), "conv-1", "visitor:a", "How much is CS tuition?", nil)

	assert.Equal(t, constant.FallbackAnswerV1, exec.Answer)
	assert.True(t, exec.Degraded)
	assert.Equal(t, verify.ModeBackground, exec.Mode, "degraded turns always queue in the background")
}

func TestExecute_UnsupportedAnswerRegeneratesOnce(t *testing.T) {
	provider := &promptRoutedLLM{
		category: "simple_admission",
		answer:   "Tuition is $99.",
		verdict:  "UNSUPPORTED",
	}
	e := newTestExecutor(provider, &fixedSearcher{score: 0.9})

	exec := e.Execute(context.Background(), "conv-1", "visitor:a", "How much is CS tuition?", nil)

	assert.Equal(t, 2, provider.verifyCalls, "original and regenerated answers both checked")
	assert.Equal(t, constant.VerificationFlagged, exec.VerificationStatus)
	assert.Contains(t, exec.Answer, constant.UnverifiedNoticeV1, "unconfirmed answer ships with a caveat")
	assert.False(t, exec.NeedsVerification)
}

func TestExecute_InlineVerifyErrorDefersToBackground(t *testing.T) {
	provider := &promptRoutedLLM{
		category:   "simple_admission",
		answer:     "CS tuition is $11,200 per year.",
		verdictErr: errors.New("model offline"),
	}
	e := newTestExecutor(provider, &fixedSearcher{score: 0.9})

	exec := e.Execute(context.Background(), "conv-1", "visitor:a", "How much is CS tuition?", nil)

	assert.Equal(t, verify.ModeBackground, exec.Mode)
	assert.Equal(t, constant.VerificationUnverified, exec.VerificationStatus)
	assert.True(t, exec.NeedsVerification)
}
