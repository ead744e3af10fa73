package services

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/routemart/checkout-backend/internal/models"
	"github.com/routemart/checkout-backend/internal/utils"
	"github.com/routemart/checkout-backend/pkg/busgw"
)

var digitsPattern = regexp.MustCompile(`\d+`)

// answerDefaults lists the question keys that may be backfilled from
// well-known top-level passenger fields when the caller did not answer them
// explicitly. Order matters only for readability; injection is per key.
var answerDefaults = []struct {
	key     string
	sources []string
}{
	{"gender", []string{"gender", "sex"}},
	{"dob", []string{"dob", "dateOfBirth", "date_of_birth", "birthDate", "birth_date"}},
	{"id_type", []string{"idType", "id_type", "documentType", "document_type"}},
	{"id_number", []string{"idNumber", "id_number", "documentNumber", "document_number", "nic", "passportNumber", "passport_number"}},
	{"nationality", []string{"nationality", "country", "citizenship"}},
}

// PassengerMapperService turns raw passenger input into provider-ready
// passenger records and validates them against the trip's question schema.
type PassengerMapperService struct {
	logger *logrus.Logger
}

// NewPassengerMapperService creates a new PassengerMapperService.
func NewPassengerMapperService(logger *logrus.Logger) *PassengerMapperService {
	return &PassengerMapperService{logger: logger}
}

// MapPassengers maps every raw passenger in input order and validates the
// result against the schema's required keys. No partial result is returned:
// the first passenger missing a required answer fails the whole batch.
func (s *PassengerMapperService) MapPassengers(
	raw []models.RawPassenger,
	snapshot *busgw.CartSnapshot,
	schema *models.QuestionSchema,
	tripID string,
) ([]models.MappedPassenger, *models.CheckoutError) {
	item := snapshot.ItemForTrip(tripID)

	usedIDs := map[int]bool{}
	mapped := make([]models.MappedPassenger, 0, len(raw))
	for i, p := range raw {
		mapped = append(mapped, s.mapOne(p, i, item, schema, usedIDs))
	}

	for _, key := range schema.RequiredKeys() {
		for i := range mapped {
			if mapped[i].AnswerValue(key) == "" {
				return nil, models.ErrQuestionsUnanswered(key, i+1)
			}
		}
	}

	return mapped, nil
}

func (s *PassengerMapperService) mapOne(
	p models.RawPassenger,
	index int,
	item *busgw.LineItem,
	schema *models.QuestionSchema,
	usedIDs map[int]bool,
) models.MappedPassenger {
	passenger := models.MappedPassenger{
		ID:        s.resolveID(p, index, usedIDs),
		FirstName: firstNonEmpty(p.Str("firstName", "first_name"), "Unknown"),
		LastName:  firstNonEmpty(p.Str("lastName", "last_name"), "Unknown"),
		Category:  firstNonEmpty(strings.ToLower(p.Str("category", "passengerType", "passenger_type")), "adult"),
		Age:       models.FillerAge,
		Address:   models.FillerAddress,
		Phone:     models.FillerPhone,
	}

	passenger.SelectedSeats = []models.SelectedSeat{s.resolveSeat(p, index, item)}
	passenger.Answers = s.resolveAnswers(p, schema)

	return passenger
}

// resolveID resolves the provider-required numeric passenger id. Preference
// order: explicit numeric idNumber, explicit numeric id, digits extracted
// from a non-numeric id string, then the 1-based position. Ids are deduped
// within the request so distinct passengers never collide.
func (s *PassengerMapperService) resolveID(p models.RawPassenger, index int, usedIDs map[int]bool) int {
	id := 0
	for _, candidate := range []string{p.Str("idNumber", "id_number"), p.Str("id")} {
		if candidate == "" {
			continue
		}
		if n, err := strconv.Atoi(candidate); err == nil && n > 0 {
			id = n
			break
		}
		if digits := digitsPattern.FindString(candidate); digits != "" {
			if n, err := strconv.Atoi(digits); err == nil && n > 0 {
				id = n
				break
			}
		}
	}
	if id <= 0 {
		id = index + 1
	}

	for usedIDs[id] {
		id++
	}
	usedIDs[id] = true
	return id
}

// resolveSeat resolves the passenger's segment and seat assignment through
// the fallback chain: own selected seats, an explicit segment field, the
// cart line item's first segment, then the default-segment sentinel.
func (s *PassengerMapperService) resolveSeat(p models.RawPassenger, index int, item *busgw.LineItem) models.SelectedSeat {
	placeholder := fmt.Sprintf("A%d", index+1)

	if seats := p.Slice("selectedSeats", "selected_seats", "seats"); len(seats) > 0 {
		if seat, ok := seats[0].(map[string]interface{}); ok {
			resolved := models.SelectedSeat{
				SegmentID: models.RawPassenger(seat).Str("segmentId", "segment_id", "segment"),
				SeatID:    models.RawPassenger(seat).Str("seatId", "seat_id", "seat", "number"),
			}
			if resolved.SegmentID != "" || resolved.SeatID != "" {
				if resolved.SegmentID == "" {
					resolved.SegmentID = s.fallbackSegment(p, item)
				}
				if resolved.SeatID == "" {
					resolved.SeatID = placeholder
				}
				return resolved
			}
		}
	}

	return models.SelectedSeat{
		SegmentID: s.fallbackSegment(p, item),
		SeatID:    placeholder,
	}
}

func (s *PassengerMapperService) fallbackSegment(p models.RawPassenger, item *busgw.LineItem) string {
	if segment := p.Str("segmentId", "segment_id", "segment"); segment != "" {
		return segment
	}
	if item != nil && len(item.Segments) > 0 && item.Segments[0].ID != "" {
		return item.Segments[0].ID
	}
	return models.DefaultSegmentID
}

// resolveAnswers builds the normalized answer set. Explicit answers win;
// defaults are injected only for the well-known keys the schema allows, and
// the final set is filtered against the allowed-key set once more.
func (s *PassengerMapperService) resolveAnswers(p models.RawPassenger, schema *models.QuestionSchema) []models.Answer {
	answers := []models.Answer{}
	seen := map[string]bool{}

	for _, raw := range p.Slice("answers") {
		entry, ok := raw.(map[string]interface{})
		if !ok {
			continue
		}
		key := utils.NormalizeQuestionKey(models.RawPassenger(entry).Str("questionKey", "question_key", "key"))
		value := strings.TrimSpace(models.RawPassenger(entry).Str("value", "answer"))
		if key == "" || value == "" || seen[key] {
			continue
		}
		seen[key] = true
		answers = append(answers, models.Answer{QuestionKey: key, Value: value})
	}

	for _, def := range answerDefaults {
		if seen[def.key] || !schema.Allows(def.key) {
			continue
		}
		value := strings.TrimSpace(p.Str(def.sources...))
		if value == "" {
			continue
		}
		seen[def.key] = true
		answers = append(answers, models.Answer{QuestionKey: def.key, Value: value})
	}

	filtered := answers[:0]
	for _, a := range answers {
		if !schema.Allows(a.QuestionKey) {
			continue
		}
		a.Value = normalizeAnswerValue(a.QuestionKey, a.Value)
		filtered = append(filtered, a)
	}

	return filtered
}

// normalizeAnswerValue applies the format-specific normalizers for gender,
// dob and id_type. Unrecognized values pass through unchanged.
func normalizeAnswerValue(key, value string) string {
	switch key {
	case "gender":
		switch strings.ToLower(value) {
		case "m", "male", "man":
			return "male"
		case "f", "female", "woman":
			return "female"
		}
		return value
	case "dob":
		// ISO timestamps slice down to the date part.
		if len(value) >= 10 && value[4] == '-' && value[7] == '-' {
			return value[:10]
		}
		return value
	case "id_type":
		switch strings.ToLower(strings.ReplaceAll(value, " ", "_")) {
		case "passport", "pp":
			return "passport"
		case "national_id", "nationalid", "nic":
			return "national_id"
		case "id_card", "idcard":
			return "id_card"
		case "drivers_license", "driving_license", "driver_license":
			return "drivers_license"
		}
		return value
	}
	return value
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
