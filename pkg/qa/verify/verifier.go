package verify

import (
	"context"
	"fmt"
	"strings"

	"admission-chatbot-be/internal/constant"
	"admission-chatbot-be/pkg/llm"
	"admission-chatbot-be/pkg/store"
)

// Verdict is the outcome of checking an answer against its context.
type Verdict string

const (
	VerdictSupported   Verdict = "supported"
	VerdictUnsupported Verdict = "unsupported"
)

// Verifier checks whether an answer's claims are grounded in the retrieved
// context using the LLM as a judge.
type Verifier struct {
	provider llm.LLMProvider
}

func NewVerifier(provider llm.LLMProvider) *Verifier {
	return &Verifier{provider: provider}
}

// Verify returns the verdict for an answer. An error means the check could
// not run at all (provider failure); callers treat that as retryable, not as
// an unsupported answer.
func (v *Verifier) Verify(ctx context.Context, question, answer string, nodes []store.Fragment) (Verdict, error) {
	prompt := fmt.Sprintf(constant.VerifyPromptV1, question, answer, FormatContext(nodes))

	raw, err := v.provider.Generate(ctx, prompt, llm.WithTemperature(0), llm.WithMaxTokens(5))
	if err != nil {
		return "", fmt.Errorf("verification call: %w", err)
	}

	if strings.Contains(strings.ToUpper(raw), "UNSUPPORTED") {
		return VerdictUnsupported, nil
	}
	return VerdictSupported, nil
}

// FormatContext renders fragments as a prompt context block.
func FormatContext(nodes []store.Fragment) string {
	if len(nodes) == 0 {
		return "(no context retrieved)"
	}
	var b strings.Builder
	for i, node := range nodes {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "[%s]\n%s", node.Title, node.Content)
	}
	return b.String()
}
