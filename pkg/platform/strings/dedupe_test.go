package strings

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDedupeAndTrimLower(t *testing.T) {
	tests := []struct {
		name     string
		input    []string
		expected []string
	}{
		{name: "nil slice", input: nil, expected: nil},
		{name: "empty slice", input: []string{}, expected: []string{}},
		{
			name:     "normalizes case and whitespace",
			input:    []string{"  Buyer ", "SELLER", "buyer"},
			expected: []string{"buyer", "seller"},
		},
		{
			name:     "drops entries that trim to nothing",
			input:    []string{"agent", "", "   "},
			expected: []string{"agent"},
		},
		{
			name:     "keeps first-occurrence order",
			input:    []string{"seller", "agent", "Seller", "buyer"},
			expected: []string{"seller", "agent", "buyer"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, DedupeAndTrimLower(tt.input))
		})
	}
}
