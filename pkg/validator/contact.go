package validator

import (
	"errors"
	"regexp"
	"strings"
)

var (
	// ErrEmptyEmail indicates the email address is empty
	ErrEmptyEmail = errors.New("email address cannot be empty")

	// ErrInvalidEmail indicates the email address is malformed
	ErrInvalidEmail = errors.New("email address is not valid")

	// ErrEmptyPhone indicates the phone number is empty
	ErrEmptyPhone = errors.New("phone number cannot be empty")

	// ErrInvalidPhone indicates the phone number is malformed
	ErrInvalidPhone = errors.New("phone number must be 7-15 digits, optionally prefixed with +")
)

var (
	emailRegex = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
	phoneRegex = regexp.MustCompile(`^\+?\d{7,15}$`)
)

// ContactValidator validates purchaser contact details.
type ContactValidator struct{}

// NewContactValidator creates a new contact validator instance.
func NewContactValidator() *ContactValidator {
	return &ContactValidator{}
}

// ValidateEmail validates an email address and returns it lowercased.
func (v *ContactValidator) ValidateEmail(email string) (string, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return "", ErrEmptyEmail
	}
	if !emailRegex.MatchString(email) {
		return "", ErrInvalidEmail
	}
	return strings.ToLower(email), nil
}

// ValidatePhone validates an international phone number.
// Accepts formats like +15551234567, 0771234567, 077 123 4567.
// Returns the sanitized number (digits, optional leading +).
func (v *ContactValidator) ValidatePhone(phone string) (string, error) {
	if strings.TrimSpace(phone) == "" {
		return "", ErrEmptyPhone
	}

	sanitized := v.SanitizePhone(phone)
	if !phoneRegex.MatchString(sanitized) {
		return "", ErrInvalidPhone
	}
	return sanitized, nil
}

// SanitizePhone strips spaces, dashes, dots and parentheses, keeping a
// single leading + when present.
func (v *ContactValidator) SanitizePhone(phone string) string {
	phone = strings.TrimSpace(phone)
	plus := strings.HasPrefix(phone, "+")

	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}

	if plus {
		return "+" + b.String()
	}
	return b.String()
}

// IsValidEmail is a convenience method that returns true if email is valid.
func (v *ContactValidator) IsValidEmail(email string) bool {
	_, err := v.ValidateEmail(email)
	return err == nil
}

// IsValidPhone is a convenience method that returns true if phone is valid.
func (v *ContactValidator) IsValidPhone(phone string) bool {
	_, err := v.ValidatePhone(phone)
	return err == nil
}
