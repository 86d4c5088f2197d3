package verify

import (
	"testing"

	"admission-chatbot-be/pkg/qa/classify"

	"github.com/stretchr/testify/assert"
)

func TestDecideMode(t *testing.T) {
	thresholds := DefaultThresholds()

	tests := []struct {
		name     string
		category classify.Category
		score    float64
		degraded bool
		want     Mode
	}{
		{"simple high confidence", classify.CategorySimpleAdmission, 0.95, false, ModePreResponse},
		{"complex high confidence", classify.CategoryComplexAdmission, 0.85, false, ModePreResponse},
		{"exactly high threshold", classify.CategorySimpleAdmission, 0.8, false, ModePreResponse},
		{"complex moderate", classify.CategoryComplexAdmission, 0.7, false, ModePostAsync},
		{"simple moderate", classify.CategorySimpleAdmission, 0.7, false, ModeBackground},
		{"exactly low threshold complex", classify.CategoryComplexAdmission, 0.6, false, ModePostAsync},
		{"below low threshold", classify.CategoryComplexAdmission, 0.55, false, ModeBackground},
		{"zero score", classify.CategorySimpleAdmission, 0, false, ModeBackground},
		{"degraded overrides high score", classify.CategorySimpleAdmission, 0.95, true, ModeBackground},
		{"degraded moderate complex", classify.CategoryComplexAdmission, 0.7, true, ModeBackground},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DecideMode(tt.category, tt.score, tt.degraded, thresholds)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecideMode_CustomThresholds(t *testing.T) {
	tight := Thresholds{High: 0.95, Low: 0.9}

	assert.Equal(t, ModeBackground, DecideMode(classify.CategorySimpleAdmission, 0.85, false, tight))
	assert.Equal(t, ModePostAsync, DecideMode(classify.CategoryComplexAdmission, 0.92, false, tight))
	assert.Equal(t, ModePreResponse, DecideMode(classify.CategorySimpleAdmission, 0.96, false, tight))
}
