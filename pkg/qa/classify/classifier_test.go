package classify

import (
	"context"
	"errors"
	"io"
	"log"
	"testing"
	"time"

	"admission-chatbot-be/pkg/llm"

	"github.com/stretchr/testify/assert"
)

type fakeProvider struct {
	response string
	err      error
	delay    time.Duration
}

func (f *fakeProvider) Chat(ctx context.Context, messages []llm.Message, opts ...llm.Option) (string, error) {
	return f.Generate(ctx, "", opts...)
}

func (f *fakeProvider) Generate(ctx context.Context, prompt string, opts ...llm.Option) (string, error) {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return f.response, f.err
}

func discardLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		response string
		want     Category
	}{
		{"simple token", "simple_admission", CategorySimpleAdmission},
		{"complex token", "complex_admission", CategoryComplexAdmission},
		{"off topic", "off_topic", CategoryOffTopic},
		{"inappropriate", "inappropriate", CategoryInappropriate},
		{"wrapped in sentence", "The category is: complex_admission.", CategoryComplexAdmission},
		{"uppercase", "SIMPLE_ADMISSION", CategorySimpleAdmission},
		{"unknown label falls back", "banana", CategorySimpleAdmission},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewClassifier(&fakeProvider{response: tt.response}, time.Second, discardLogger())

			outcome := c.Classify(context.Background(), "how much is tuition?")
			assert.Equal(t, tt.want, outcome.Category)
			assert.False(t, outcome.Degraded)
		})
	}
}

func TestClassify_ProviderErrorDegrades(t *testing.T) {
	c := NewClassifier(&fakeProvider{err: errors.New("model offline")}, time.Second, discardLogger())

	outcome := c.Classify(context.Background(), "how much is tuition?")
	assert.Equal(t, CategorySimpleAdmission, outcome.Category)
	assert.True(t, outcome.Degraded)
}

func TestClassify_TimeoutDegrades(t *testing.T) {
	c := NewClassifier(&fakeProvider{response: "complex_admission", delay: time.Second}, 20*time.Millisecond, discardLogger())

	start := time.Now()
	outcome := c.Classify(context.Background(), "how much is tuition?")

	assert.Less(t, time.Since(start), 500*time.Millisecond, "must not wait for the slow provider")
	assert.Equal(t, CategorySimpleAdmission, outcome.Category)
	assert.True(t, outcome.Degraded)
}
