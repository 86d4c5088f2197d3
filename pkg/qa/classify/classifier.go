package classify

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"admission-chatbot-be/internal/constant"
	"admission-chatbot-be/pkg/llm"
)

// Category is the routing class of an incoming question.
type Category string

const (
	CategorySimpleAdmission  Category = "simple_admission"
	CategoryComplexAdmission Category = "complex_admission"
	CategoryOffTopic         Category = "off_topic"
	CategoryInappropriate    Category = "inappropriate"
)

// Outcome carries the category plus whether the classifier had to fall back
// because the provider timed out or errored. Degraded outcomes push the
// verification router toward the background queue.
type Outcome struct {
	Category Category
	Degraded bool
}

// Classifier delegates categorisation to the LLM provider under a bounded
// timeout. The provider is a black box here: the only contract is that it
// answers within the timeout or we take the safest path.
type Classifier struct {
	provider llm.LLMProvider
	timeout  time.Duration
	logger   *log.Logger
}

func NewClassifier(provider llm.LLMProvider, timeout time.Duration, logger *log.Logger) *Classifier {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Classifier{
		provider: provider,
		timeout:  timeout,
		logger:   logger,
	}
}

// Classify returns the category for a question. On provider timeout or error
// it falls back to simple_admission (cheapest retrieval path) and flags the
// outcome as degraded.
func (c *Classifier) Classify(ctx context.Context, question string) Outcome {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	prompt := fmt.Sprintf(constant.ClassifyPromptV1, question)

	raw, err := c.provider.Generate(ctx, prompt, llm.WithTemperature(0), llm.WithMaxTokens(10))
	if err != nil {
		c.logger.Printf("[CLASSIFY] Provider failed, degraded fallback to simple_admission: %v", err)
		return Outcome{Category: CategorySimpleAdmission, Degraded: true}
	}

	return Outcome{Category: ParseCategory(raw)}
}

// ParseCategory maps raw model output onto a known category. Unknown labels
// collapse to simple_admission rather than failing the pipeline.
func ParseCategory(raw string) Category {
	normalized := strings.ToLower(strings.TrimSpace(raw))
	// Models occasionally wrap the token in punctuation or a sentence;
	// scan for the first known label.
	for _, cat := range []Category{
		CategoryComplexAdmission,
		CategorySimpleAdmission,
		CategoryOffTopic,
		CategoryInappropriate,
	} {
		if strings.Contains(normalized, string(cat)) {
			return cat
		}
	}
	return CategorySimpleAdmission
}
