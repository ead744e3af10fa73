package models

import (
	"encoding/json"
	"fmt"
	"strings"
)

// RawPassenger is one passenger object exactly as the caller sent it.
// Clients send camelCase or snake_case interchangeably, so field access
// goes through the fallback helpers below instead of struct tags.
type RawPassenger map[string]interface{}

// Str returns the first non-empty string value among the given keys.
func (p RawPassenger) Str(keys ...string) string {
	return pickString(p, keys...)
}

// Slice returns the first non-nil list value among the given keys.
func (p RawPassenger) Slice(keys ...string) []interface{} {
	for _, k := range keys {
		if v, ok := p[k].([]interface{}); ok {
			return v
		}
	}
	return nil
}

// ContactInfo is the purchaser contact block, normalized at the boundary.
type ContactInfo struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
}

// FullName joins first and last name for invoice descriptions.
func (c ContactInfo) FullName() string {
	return strings.TrimSpace(c.FirstName + " " + c.LastName)
}

// CheckoutRequest is the canonical typed request built once from the raw
// JSON body. All camelCase/snake_case resolution happens in
// NormalizeCheckoutRequest; nothing downstream re-reads the raw body.
type CheckoutRequest struct {
	CartID       string         `json:"cart_id"`
	TripID       string         `json:"trip_id"`
	ReturnTripID string         `json:"return_trip_id,omitempty"`
	Hold         bool           `json:"hold"`
	Branch       string         `json:"branch,omitempty"`
	Passengers   []RawPassenger `json:"passengers"`
	Contact      ContactInfo    `json:"contact"`

	// Agent signals lifted from the body; header and query variants are
	// resolved by the attribution service.
	AgentMode  string `json:"agent_mode,omitempty"`
	AgentID    string `json:"agent_id,omitempty"`
	AgentEmail string `json:"agent_email,omitempty"`
}

// NormalizeCheckoutRequest decodes a raw JSON body into the canonical
// request struct, resolving camelCase/snake_case field variants once.
func NormalizeCheckoutRequest(body []byte) (*CheckoutRequest, error) {
	var raw map[string]interface{}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("invalid request body: %w", err)
	}

	req := &CheckoutRequest{
		CartID:       pickString(raw, "cartId", "cart_id"),
		TripID:       pickString(raw, "tripId", "trip_id"),
		ReturnTripID: pickString(raw, "returnTripId", "return_trip_id"),
		Branch:       pickString(raw, "branch", "branchCode", "branch_code"),
		Hold:         pickBool(raw, "hold", "payLater", "pay_later"),
		AgentMode:    pickString(raw, "agentMode", "agent_mode"),
		AgentID:      pickString(raw, "agentId", "agent_id"),
		AgentEmail:   pickString(raw, "agentEmail", "agent_email"),
	}

	if list, ok := raw["passengers"].([]interface{}); ok {
		for _, item := range list {
			if m, ok := item.(map[string]interface{}); ok {
				req.Passengers = append(req.Passengers, RawPassenger(m))
			}
		}
	}

	contact := mapValue(raw, "contactInfo", "contact_info", "contact", "purchaser")
	if contact != nil {
		req.Contact = ContactInfo{
			FirstName: pickString(contact, "firstName", "first_name"),
			LastName:  pickString(contact, "lastName", "last_name"),
			Email:     pickString(contact, "email"),
			Phone:     pickString(contact, "phone", "phoneNumber", "phone_number"),
		}
	}

	return req, nil
}

// Validate checks the request for the input errors of the 400 class,
// itemized per offending field or passenger index.
func (r *CheckoutRequest) Validate() *CheckoutError {
	details := map[string]interface{}{}

	if r.CartID == "" {
		details["cart_id"] = "required"
	}
	if r.TripID == "" {
		details["trip_id"] = "required"
	}
	if len(r.Passengers) == 0 {
		details["passengers"] = "at least one passenger is required"
	}
	if r.Contact.Email == "" && r.Contact.Phone == "" {
		details["contact"] = "contact email or phone is required"
	}

	var missingNames []int
	for i, p := range r.Passengers {
		first := p.Str("firstName", "first_name")
		last := p.Str("lastName", "last_name")
		if first == "" && last == "" {
			missingNames = append(missingNames, i+1)
		}
	}
	if len(missingNames) > 0 {
		details["passenger_names"] = missingNames
	}

	if len(details) > 0 {
		return NewCheckoutError(ErrCodeInvalidRequest, "checkout request failed validation", details)
	}
	return nil
}

// CheckoutResponse is the success payload of the checkout endpoint.
type CheckoutResponse struct {
	Success       bool         `json:"success"`
	CartID        string       `json:"cart_id"`
	DurableCartID string       `json:"durable_cart_id"`
	Status        CartStatus   `json:"status"`
	Invoice       *InvoiceMeta `json:"invoice,omitempty"`
	NextSteps     []string     `json:"next_steps"`
}

func pickString(m map[string]interface{}, keys ...string) string {
	for _, k := range keys {
		switch v := m[k].(type) {
		case string:
			if v != "" {
				return v
			}
		case float64:
			return strings.TrimSuffix(fmt.Sprintf("%v", v), ".0")
		}
	}
	return ""
}

func pickBool(m map[string]interface{}, keys ...string) bool {
	for _, k := range keys {
		switch v := m[k].(type) {
		case bool:
			return v
		case string:
			if strings.EqualFold(v, "true") || v == "1" {
				return true
			}
		}
	}
	return false
}

func mapValue(m map[string]interface{}, keys ...string) map[string]interface{} {
	for _, k := range keys {
		if v, ok := m[k].(map[string]interface{}); ok {
			return v
		}
	}
	return nil
}
