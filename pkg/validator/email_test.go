package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateEmail(t *testing.T) {
	tests := []struct {
		input    string
		expected string
		err      error
	}{
		{"rider@example.com", "rider@example.com", nil},
		{"  Rider@Example.COM ", "rider@example.com", nil},
		{"", "", ErrEmptyEmail},
		{"   ", "", ErrEmptyEmail},
		{"not-an-email", "", ErrInvalidEmail},
		{"Rider <rider@example.com>", "", ErrInvalidEmail},
		{"rider@localhost", "", ErrInvalidEmail},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ValidateEmail(tt.input)
			assert.Equal(t, tt.err, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}
