package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPhoneValidator(t *testing.T) {
	validator := NewPhoneValidator()
	assert.NotNil(t, validator)
}

func TestValidate_ValidNumbers(t *testing.T) {
	validator := NewPhoneValidator()

	validNumbers := []struct {
		input    string
		expected string
		name     string
	}{
		{"0771234567", "0771234567", "Local format"},
		{"077 123 4567", "0771234567", "With spaces"},
		{"077-123-4567", "0771234567", "With dashes"},
		{"077.123.4567", "0771234567", "With dots"},
		{"(077) 123 4567", "0771234567", "With parentheses"},
		{"+94 77 123 4567", "+94771234567", "International with country code"},
		{"+14155552671", "+14155552671", "E.164"},
		{"1234567", "1234567", "Minimum length"},
		{"123456789012345", "123456789012345", "Maximum length"},
	}

	for _, tc := range validNumbers {
		t.Run(tc.name, func(t *testing.T) {
			sanitized, err := validator.Validate(tc.input)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, sanitized)
		})
	}
}

func TestValidate_InvalidNumbers(t *testing.T) {
	validator := NewPhoneValidator()

	invalidNumbers := []struct {
		input       string
		expectedErr error
		name        string
	}{
		{"", ErrEmptyPhone, "Empty string"},
		{"   ", ErrEmptyPhone, "Whitespace only"},
		{"123456", ErrInvalidLength, "Too short"},
		{"1234567890123456", ErrInvalidLength, "Too long"},
		{"077123456a", ErrInvalidFormat, "Contains letters"},
		{"077+1234567", ErrInvalidFormat, "Plus in the middle"},
		{"++94771234567", ErrInvalidFormat, "Double plus"},
	}

	for _, tc := range invalidNumbers {
		t.Run(tc.name, func(t *testing.T) {
			_, err := validator.Validate(tc.input)
			assert.ErrorIs(t, err, tc.expectedErr)
		})
	}
}

func TestSanitize(t *testing.T) {
	validator := NewPhoneValidator()

	assert.Equal(t, "+94771234567", validator.Sanitize(" +94 (77) 123-4567 "))
	assert.Equal(t, "0771234567", validator.Sanitize("077.123.4567"))
}

func TestIsValid(t *testing.T) {
	validator := NewPhoneValidator()

	assert.True(t, validator.IsValid("0771234567"))
	assert.False(t, validator.IsValid("abc"))
}

func TestValidateMultiple(t *testing.T) {
	validator := NewPhoneValidator()

	results := validator.ValidateMultiple([]string{"0771234567", "12"})
	assert.NoError(t, results["0771234567"])
	assert.ErrorIs(t, results["12"], ErrInvalidLength)
}

func TestValidateEmailCases(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
		err      error
	}{
		{"plain address", "rider@example.com", "rider@example.com", nil},
		{"trimmed and lowered", "  Rider@Example.COM ", "rider@example.com", nil},
		{"empty", "", "", ErrEmptyEmail},
		{"missing at", "rider.example.com", "", ErrInvalidEmail},
		{"display name", "Rider <rider@example.com>", "", ErrInvalidEmail},
		{"no domain dot", "rider@localhost", "", ErrInvalidEmail},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ValidateEmail(tc.input)
			if tc.err != nil {
				assert.ErrorIs(t, err, tc.err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expected, got)
		})
	}
}
