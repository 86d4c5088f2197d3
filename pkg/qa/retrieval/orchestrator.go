package retrieval

import (
	"context"
	"fmt"
	"log"
	"strings"

	"admission-chatbot-be/internal/constant"
	"admission-chatbot-be/pkg/llm"
	"admission-chatbot-be/pkg/qa/classify"
	"admission-chatbot-be/pkg/store"
)

// StepKind labels a retrieval pass within one question.
type StepKind string

const (
	StepMainQuery   StepKind = "main_query"
	StepEnrichment1 StepKind = "enrichment_1"
	StepEnrichment2 StepKind = "enrichment_2"
	StepEnrichment3 StepKind = "enrichment_3"
)

var enrichmentKinds = []StepKind{StepEnrichment1, StepEnrichment2, StepEnrichment3}

// Step is one completed retrieval pass. ContextScore is the best fragment
// score of the pass, zero when the pass failed or returned nothing.
type Step struct {
	Kind         StepKind
	Query        string
	ContextScore float64
	Nodes        []store.Fragment
	Completed    bool
}

// Result aggregates all passes for a question. AggregateScore is the maximum
// step score: one strong hit is enough to trust the context, and a weak
// enrichment pass must never drag a strong main pass down.
type Result struct {
	Category       classify.Category
	Steps          []Step
	AggregateScore float64
}

// Nodes returns every fragment retrieved across all steps, in step order.
func (r *Result) Nodes() []store.Fragment {
	var all []store.Fragment
	for _, step := range r.Steps {
		all = append(all, step.Nodes...)
	}
	return all
}

// ProgressSink receives a notification after each completed retrieval step
// so the caller can stream progress to the visitor. Implementations must not
// block.
type ProgressSink interface {
	RetrievalStep(step Step, stepIndex, plannedSteps int)
}

// NopSink discards progress notifications.
type NopSink struct{}

func (NopSink) RetrievalStep(Step, int, int) {}

// Orchestrator runs the multi-step retrieval plan for a classified question:
// nothing for off-topic or inappropriate questions, a single pass for simple
// ones, and a main pass plus up to three LLM-derived enrichment passes for
// complex ones.
type Orchestrator struct {
	searcher      Searcher
	provider      llm.LLMProvider
	limit         int
	highThreshold float64
	logger        *log.Logger
}

func NewOrchestrator(searcher Searcher, provider llm.LLMProvider, limit int, highThreshold float64, logger *log.Logger) *Orchestrator {
	if limit <= 0 {
		limit = 5
	}
	return &Orchestrator{
		searcher:      searcher,
		provider:      provider,
		limit:         limit,
		highThreshold: highThreshold,
		logger:        logger,
	}
}

// Retrieve executes the plan for the category and returns the aggregated
// result. A failing pass contributes a zero score but never aborts the plan.
func (o *Orchestrator) Retrieve(ctx context.Context, question string, category classify.Category, sink ProgressSink) *Result {
	if sink == nil {
		sink = NopSink{}
	}
	result := &Result{Category: category}

	switch category {
	case classify.CategoryOffTopic, classify.CategoryInappropriate:
		return result
	case classify.CategoryComplexAdmission:
		o.runPlan(ctx, question, result, sink, 1+len(enrichmentKinds))
	default:
		o.runPlan(ctx, question, result, sink, 1)
	}

	for _, step := range result.Steps {
		if step.ContextScore > result.AggregateScore {
			result.AggregateScore = step.ContextScore
		}
	}
	return result
}

func (o *Orchestrator) runPlan(ctx context.Context, question string, result *Result, sink ProgressSink, plannedSteps int) {
	main := o.runStep(ctx, StepMainQuery, question)
	result.Steps = append(result.Steps, main)
	sink.RetrievalStep(main, 1, plannedSteps)

	if plannedSteps == 1 {
		return
	}

	best := main.ContextScore
	for i, kind := range enrichmentKinds {
		if best >= o.highThreshold {
			break
		}

		subQuery := o.deriveSubQuery(ctx, question, result)
		if subQuery == "" {
			break
		}

		step := o.runStep(ctx, kind, subQuery)
		result.Steps = append(result.Steps, step)
		sink.RetrievalStep(step, i+2, plannedSteps)

		if step.ContextScore > best {
			best = step.ContextScore
		}
	}
}

func (o *Orchestrator) runStep(ctx context.Context, kind StepKind, query string) Step {
	step := Step{Kind: kind, Query: query}

	fragments, err := o.searcher.Search(ctx, query, o.limit)
	if err != nil {
		o.logger.Printf("[RETRIEVAL] Step %s failed, scoring 0: %v", kind, err)
		return step
	}

	step.Completed = true
	step.Nodes = fragments
	for _, frag := range fragments {
		if frag.Score > step.ContextScore {
			step.ContextScore = frag.Score
		}
	}
	return step
}

// deriveSubQuery asks the model which aspect of the question the retrieved
// context has not covered yet. Returns "" when the model says nothing is
// missing or when the call fails.
func (o *Orchestrator) deriveSubQuery(ctx context.Context, question string, result *Result) string {
	var titles []string
	for _, frag := range result.Nodes() {
		titles = append(titles, "- "+frag.Title)
	}
	if len(titles) == 0 {
		titles = append(titles, "(nothing retrieved yet)")
	}

	prompt := fmt.Sprintf(constant.SubQueryPromptV1, question, strings.Join(titles, "\n"))
	raw, err := o.provider.Generate(ctx, prompt, llm.WithTemperature(0.2), llm.WithMaxTokens(60))
	if err != nil {
		o.logger.Printf("[RETRIEVAL] Sub-query generation failed, stopping enrichment: %v", err)
		return ""
	}

	subQuery := strings.TrimSpace(raw)
	if subQuery == "" || strings.EqualFold(subQuery, "NONE") {
		return ""
	}
	return subQuery
}
