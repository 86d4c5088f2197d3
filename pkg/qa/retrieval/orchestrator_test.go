package retrieval

import (
	"context"
	"errors"
	"io"
	"log"
	"testing"

	"admission-chatbot-be/pkg/llm"
	"admission-chatbot-be/pkg/qa/classify"
	"admission-chatbot-be/pkg/store"

	"github.com/stretchr/testify/assert"
)

// scriptedSearcher returns one canned result set per call, in order.
type scriptedSearcher struct {
	results [][]store.Fragment
	errs    []error
	calls   int
	queries []string
}

func (s *scriptedSearcher) Search(ctx context.Context, query string, limit int) ([]store.Fragment, error) {
	i := s.calls
	s.calls++
	s.queries = append(s.queries, query)

	var err error
	if i < len(s.errs) {
		err = s.errs[i]
	}
	if err != nil {
		return nil, err
	}
	if i < len(s.results) {
		return s.results[i], nil
	}
	return nil, nil
}

// scriptedLLM returns one canned sub-query per call, in order.
type scriptedLLM struct {
	responses []string
	err       error
	calls     int
}

func (s *scriptedLLM) Chat(ctx context.Context, history []llm.Message, opts ...llm.Option) (string, error) {
	return s.Generate(ctx, "", opts...)
}

func (s *scriptedLLM) Generate(ctx context.Context, prompt string, opts ...llm.Option) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	i := s.calls
	s.calls++
	if i < len(s.responses) {
		return s.responses[i], nil
	}
	return "NONE", nil
}

type recordingSink struct {
	steps []Step
}

func (r *recordingSink) RetrievalStep(step Step, stepIndex, plannedSteps int) {
	r.steps = append(r.steps, step)
}

func fragments(scores ...float64) []store.Fragment {
	out := make([]store.Fragment, len(scores))
	for i, s := range scores {
		out[i] = store.Fragment{ID: "f", Title: "doc", Content: "text", Score: s}
	}
	return out
}

func newTestOrchestrator(searcher Searcher, provider llm.LLMProvider) *Orchestrator {
	return NewOrchestrator(searcher, provider, 5, 0.8, log.New(io.Discard, "", 0))
}

func TestRetrieve_OffTopicSkipsRetrieval(t *testing.T) {
	searcher := &scriptedSearcher{}
	o := newTestOrchestrator(searcher, &scriptedLLM{})

	for _, cat := range []classify.Category{classify.CategoryOffTopic, classify.CategoryInappropriate} {
		result := o.Retrieve(context.Background(), "hi there", cat, nil)
		assert.Empty(t, result.Steps)
		assert.Zero(t, result.AggregateScore)
	}
	assert.Zero(t, searcher.calls)
}

func TestRetrieve_SimpleSingleStep(t *testing.T) {
	searcher := &scriptedSearcher{results: [][]store.Fragment{fragments(0.72, 0.55)}}
	o := newTestOrchestrator(searcher, &scriptedLLM{})

	result := o.Retrieve(context.Background(), "tuition for CS?", classify.CategorySimpleAdmission, nil)

	assert.Len(t, result.Steps, 1)
	assert.Equal(t, StepMainQuery, result.Steps[0].Kind)
	assert.InDelta(t, 0.72, result.AggregateScore, 1e-9)
	assert.Equal(t, 1, searcher.calls)
}

func TestRetrieve_ComplexRunsEnrichment(t *testing.T) {
	searcher := &scriptedSearcher{results: [][]store.Fragment{
		fragments(0.5),
		fragments(0.65),
		fragments(0.7),
		fragments(0.62),
	}}
	provider := &scriptedLLM{responses: []string{"scholarship amounts", "dorm cost", "deadline dates"}}
	sink := &recordingSink{}
	o := newTestOrchestrator(searcher, provider)

	result := o.Retrieve(context.Background(), "compare everything", classify.CategoryComplexAdmission, sink)

	assert.Len(t, result.Steps, 4)
	assert.Equal(t, StepMainQuery, result.Steps[0].Kind)
	assert.Equal(t, StepEnrichment3, result.Steps[3].Kind)
	assert.Equal(t, []string{"compare everything", "scholarship amounts", "dorm cost", "deadline dates"}, searcher.queries)
	assert.InDelta(t, 0.7, result.AggregateScore, 1e-9, "aggregate is the maximum step score")
	assert.Len(t, sink.steps, 4, "one progress notification per step")
}

func TestRetrieve_StopsEarlyOnHighConfidence(t *testing.T) {
	searcher := &scriptedSearcher{results: [][]store.Fragment{
		fragments(0.5),
		fragments(0.9),
	}}
	provider := &scriptedLLM{responses: []string{"scholarship amounts", "dorm cost"}}
	o := newTestOrchestrator(searcher, provider)

	result := o.Retrieve(context.Background(), "compare everything", classify.CategoryComplexAdmission, nil)

	assert.Len(t, result.Steps, 2, "a step at the high threshold ends the plan")
	assert.InDelta(t, 0.9, result.AggregateScore, 1e-9)
}

func TestRetrieve_StopsWhenNothingMissing(t *testing.T) {
	searcher := &scriptedSearcher{results: [][]store.Fragment{fragments(0.7)}}
	provider := &scriptedLLM{responses: []string{"NONE"}}
	o := newTestOrchestrator(searcher, provider)

	result := o.Retrieve(context.Background(), "compare everything", classify.CategoryComplexAdmission, nil)

	assert.Len(t, result.Steps, 1)
	assert.Equal(t, 1, searcher.calls)
}

func TestRetrieve_FailedStepScoresZeroAndContinues(t *testing.T) {
	searcher := &scriptedSearcher{
		results: [][]store.Fragment{nil, fragments(0.75)},
		errs:    []error{errors.New("vector store down"), nil},
	}
	provider := &scriptedLLM{responses: []string{"scholarship amounts", "NONE"}}
	o := newTestOrchestrator(searcher, provider)

	result := o.Retrieve(context.Background(), "compare everything", classify.CategoryComplexAdmission, nil)

	assert.False(t, result.Steps[0].Completed)
	assert.Zero(t, result.Steps[0].ContextScore)
	assert.True(t, result.Steps[1].Completed)
	assert.InDelta(t, 0.75, result.AggregateScore, 1e-9, "failure never drags a later step down")
}

func TestRetrieve_SubQueryFailureStopsEnrichment(t *testing.T) {
	searcher := &scriptedSearcher{results: [][]store.Fragment{fragments(0.5)}}
	provider := &scriptedLLM{err: errors.New("model offline")}
	o := newTestOrchestrator(searcher, provider)

	result := o.Retrieve(context.Background(), "compare everything", classify.CategoryComplexAdmission, nil)

	assert.Len(t, result.Steps, 1)
	assert.InDelta(t, 0.5, result.AggregateScore, 1e-9)
}

func TestResultNodes_PreservesStepOrder(t *testing.T) {
	result := &Result{Steps: []Step{
		{Nodes: []store.Fragment{{ID: "a"}, {ID: "b"}}},
		{Nodes: []store.Fragment{{ID: "c"}}},
	}}

	nodes := result.Nodes()
	assert.Equal(t, []string{"a", "b", "c"}, []string{nodes[0].ID, nodes[1].ID, nodes[2].ID})
}
