package verify

import "admission-chatbot-be/pkg/qa/classify"

// Mode decides when an answer gets verified relative to delivery.
type Mode string

const (
	// ModePreResponse verifies inline before the answer is delivered.
	ModePreResponse Mode = "pre_response"
	// ModePostAsync delivers immediately and verifies right after on the
	// async queue with a wake-up signal.
	ModePostAsync Mode = "post_async"
	// ModeBackground delivers immediately and leaves verification to the
	// background sweep of the queue.
	ModeBackground Mode = "background"
)

// Thresholds split the aggregate retrieval score into high / moderate / low
// confidence bands.
type Thresholds struct {
	High float64
	Low  float64
}

// DefaultThresholds returns the standard confidence bands.
func DefaultThresholds() Thresholds {
	return Thresholds{High: 0.8, Low: 0.6}
}

// DecideMode routes an answer to a verification mode from its retrieval
// confidence and question category. Degraded turns (classifier fallback) and
// low-confidence answers always go to the background queue: there is not
// enough signal to justify holding the response or burning a fast slot.
func DecideMode(category classify.Category, aggregateScore float64, degraded bool, t Thresholds) Mode {
	if degraded || aggregateScore < t.Low {
		return ModeBackground
	}
	if aggregateScore >= t.High {
		return ModePreResponse
	}
	// Moderate band: complex answers carry more claims, so they get the
	// faster async check; simple ones wait for the background sweep.
	if category == classify.CategoryComplexAdmission {
		return ModePostAsync
	}
	return ModeBackground
}
