package service

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestTruncateTitle(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		limit    int
		expected string
	}{
		{
			name:     "short title untouched",
			input:    "Tuition for CS?",
			limit:    60,
			expected: "Tuition for CS?",
		},
		{
			name:     "ascii cut at limit",
			input:    strings.Repeat("a", 70),
			limit:    60,
			expected: strings.Repeat("a", 60) + "...",
		},
		{
			name:     "exact limit untouched",
			input:    strings.Repeat("a", 60),
			limit:    60,
			expected: strings.Repeat("a", 60),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, truncateTitle(tt.input, tt.limit))
		})
	}
}

// Multi-byte questions must never be cut mid-character: Postgres rejects
// invalid UTF-8, which would fail conversation creation for valid input.
func TestTruncateTitleKeepsValidUTF8(t *testing.T) {
	question := "Học phí ngành Công nghệ thông tin và ngành Quản trị kinh doanh là bao nhiêu?"

	for n := 1; n < len(question); n++ {
		title := truncateTitle(question, n)
		assert.True(t, utf8.ValidString(title), "limit %d produced invalid UTF-8: %q", n, title)
		assert.True(t, strings.HasPrefix(question, strings.TrimSuffix(title, "...")),
			"limit %d produced a title that is not a prefix: %q", n, title)
	}
}
