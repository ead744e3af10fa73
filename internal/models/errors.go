package models

import "fmt"

// Checkout error codes. Codes in the 400 class indicate caller input
// problems; everything else maps to a 500 response.
const (
	ErrCodeInvalidRequest       = "INVALID_REQUEST"
	ErrCodeQuestionsUnanswered  = "PASSENGER_QUESTIONS_UNANSWERED"
	ErrCodeAgentContextMissing  = "AGENT_CONTEXT_MISSING"
	ErrCodeProviderFailure      = "PROVIDER_FAILURE"
	ErrCodeStoreFailure         = "STORE_FAILURE"
	ErrCodeInvoiceFailure       = "INVOICE_FAILURE"
	ErrCodeInvoicePostingFailed = "INVOICE_POSTING_FAILED"
)

// CheckoutError is the structured error returned by the checkout pipeline.
// Details carries per-field context such as the offending question key and
// the 1-based passenger index.
type CheckoutError struct {
	Code    string                 `json:"error"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

func (e *CheckoutError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsInput reports whether the error was caused by caller input and should
// map to a 400 response rather than a 500.
func (e *CheckoutError) IsInput() bool {
	switch e.Code {
	case ErrCodeInvalidRequest, ErrCodeQuestionsUnanswered, ErrCodeAgentContextMissing:
		return true
	}
	return false
}

// NewCheckoutError builds a CheckoutError with optional detail pairs.
func NewCheckoutError(code, message string, details map[string]interface{}) *CheckoutError {
	return &CheckoutError{Code: code, Message: message, Details: details}
}

// ErrQuestionsUnanswered builds the error for a required question left
// without a non-empty answer. passengerIndex is 1-based.
func ErrQuestionsUnanswered(key string, passengerIndex int) *CheckoutError {
	return &CheckoutError{
		Code:    ErrCodeQuestionsUnanswered,
		Message: fmt.Sprintf("passenger %d is missing an answer for required question %q", passengerIndex, key),
		Details: map[string]interface{}{
			"question_key":    key,
			"passenger_index": passengerIndex,
		},
	}
}
