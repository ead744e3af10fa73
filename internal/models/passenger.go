package models

import "sort"

// TicketTypeETicket is the only ticket type currently issued. The map shape
// is kept so additional types fit without a contract change.
const TicketTypeETicket = "eticket"

// DefaultSegmentID is the sentinel segment used when no segment can be
// resolved for a passenger.
const DefaultSegmentID = "default-segment"

// Provider filler fields required on every passenger update.
const (
	FillerAge     = 30
	FillerAddress = "N/A"
	FillerPhone   = "0000000000"
)

// SelectedSeat assigns a passenger to a seat on one segment.
type SelectedSeat struct {
	SegmentID string `json:"segment_id"`
	SeatID    string `json:"seat_id"`
}

// Answer is one normalized passenger-question answer. Keys are unique
// within a passenger after normalization.
type Answer struct {
	QuestionKey string `json:"question_key"`
	Value       string `json:"value"`
}

// MappedPassenger is the provider-ready passenger record built from raw
// request input. Rebuilt on every request, never persisted.
type MappedPassenger struct {
	ID            int            `json:"id"`
	FirstName     string         `json:"first_name"`
	LastName      string         `json:"last_name"`
	Category      string         `json:"category"`
	Age           int            `json:"age"`
	Address       string         `json:"address"`
	Phone         string         `json:"phone"`
	SelectedSeats []SelectedSeat `json:"selected_seats"`
	Answers       []Answer       `json:"answers"`
}

// AnswerValue returns the value for a normalized question key, or "" when
// no answer is present.
func (p *MappedPassenger) AnswerValue(key string) string {
	for _, a := range p.Answers {
		if a.QuestionKey == key {
			return a.Value
		}
	}
	return ""
}

// QuestionSchema is the per-trip required-field contract discovered from
// the live provider cart. Discovery treats every found key as required.
type QuestionSchema struct {
	Required map[string]bool
	Optional map[string]bool
	All      map[string]bool
}

// EmptyQuestionSchema returns a schema with no keys; used when discovery
// fails or the provider enforces nothing.
func EmptyQuestionSchema() *QuestionSchema {
	return &QuestionSchema{
		Required: map[string]bool{},
		Optional: map[string]bool{},
		All:      map[string]bool{},
	}
}

// Allows reports whether a key may be submitted to the provider. An empty
// schema allows everything: the provider enforces nothing in that case.
func (s *QuestionSchema) Allows(key string) bool {
	if len(s.All) == 0 {
		return true
	}
	return s.All[key]
}

// RequiredKeys returns the required key set in deterministic order.
func (s *QuestionSchema) RequiredKeys() []string {
	keys := make([]string, 0, len(s.Required))
	for k := range s.Required {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
