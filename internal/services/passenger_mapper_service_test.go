package services

import (
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/routemart/checkout-backend/internal/models"
	"github.com/routemart/checkout-backend/pkg/busgw"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func TestMapPassengers_PositionalFallbacks(t *testing.T) {
	mapper := NewPassengerMapperService(testLogger())
	snapshot := &busgw.CartSnapshot{ID: "c1"}

	raw := []models.RawPassenger{
		{"firstName": "John", "lastName": "Doe"},
	}

	mapped, cerr := mapper.MapPassengers(raw, snapshot, models.EmptyQuestionSchema(), "t1")
	require.Nil(t, cerr)
	require.Len(t, mapped, 1)

	p := mapped[0]
	assert.Equal(t, 1, p.ID)
	assert.Equal(t, "John", p.FirstName)
	assert.Equal(t, "Doe", p.LastName)
	assert.Equal(t, "adult", p.Category)
	assert.Equal(t, models.FillerAge, p.Age)
	require.Len(t, p.SelectedSeats, 1)
	assert.Equal(t, "A1", p.SelectedSeats[0].SeatID)
	assert.Equal(t, models.DefaultSegmentID, p.SelectedSeats[0].SegmentID)
}

func TestMapPassengers_IDResolution(t *testing.T) {
	mapper := NewPassengerMapperService(testLogger())
	snapshot := &busgw.CartSnapshot{}

	tests := []struct {
		name     string
		raw      models.RawPassenger
		expected int
	}{
		{"numeric idNumber", models.RawPassenger{"firstName": "A", "idNumber": "42"}, 42},
		{"numeric id", models.RawPassenger{"firstName": "A", "id": "7"}, 7},
		{"digits from mixed id", models.RawPassenger{"firstName": "A", "id": "PAX-19"}, 19},
		{"non-numeric falls back to position", models.RawPassenger{"firstName": "A", "id": "abc"}, 1},
		{"missing falls back to position", models.RawPassenger{"firstName": "A"}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mapped, cerr := mapper.MapPassengers([]models.RawPassenger{tt.raw}, snapshot, models.EmptyQuestionSchema(), "t1")
			require.Nil(t, cerr)
			assert.Equal(t, tt.expected, mapped[0].ID)
		})
	}
}

func TestMapPassengers_IDsNeverCollide(t *testing.T) {
	mapper := NewPassengerMapperService(testLogger())
	snapshot := &busgw.CartSnapshot{}

	raw := []models.RawPassenger{
		{"firstName": "A", "idNumber": "2"},
		{"firstName": "B"}, // positional would be 2, already taken
		{"firstName": "C", "idNumber": "2"},
	}

	mapped, cerr := mapper.MapPassengers(raw, snapshot, models.EmptyQuestionSchema(), "t1")
	require.Nil(t, cerr)

	seen := map[int]bool{}
	for _, p := range mapped {
		assert.Positive(t, p.ID)
		assert.False(t, seen[p.ID], "duplicate passenger id %d", p.ID)
		seen[p.ID] = true
	}
}

func TestMapPassengers_SegmentFromCartItem(t *testing.T) {
	mapper := NewPassengerMapperService(testLogger())
	snapshot := &busgw.CartSnapshot{
		Items: []busgw.LineItem{
			{TripID: "t1", Segments: []busgw.Segment{{ID: "seg-1"}}},
		},
	}

	mapped, cerr := mapper.MapPassengers(
		[]models.RawPassenger{{"firstName": "John"}},
		snapshot, models.EmptyQuestionSchema(), "t1",
	)
	require.Nil(t, cerr)
	assert.Equal(t, "seg-1", mapped[0].SelectedSeats[0].SegmentID)
}

func TestMapPassengers_OwnSeatsWin(t *testing.T) {
	mapper := NewPassengerMapperService(testLogger())
	snapshot := &busgw.CartSnapshot{
		Items: []busgw.LineItem{{TripID: "t1", Segments: []busgw.Segment{{ID: "seg-1"}}}},
	}

	raw := models.RawPassenger{
		"firstName": "John",
		"selectedSeats": []interface{}{
			map[string]interface{}{"segmentId": "seg-9", "seatId": "12B"},
		},
	}

	mapped, cerr := mapper.MapPassengers([]models.RawPassenger{raw}, snapshot, models.EmptyQuestionSchema(), "t1")
	require.Nil(t, cerr)
	assert.Equal(t, "seg-9", mapped[0].SelectedSeats[0].SegmentID)
	assert.Equal(t, "12B", mapped[0].SelectedSeats[0].SeatID)
}

func TestMapPassengers_AnswerDefaultsAndNormalizers(t *testing.T) {
	mapper := NewPassengerMapperService(testLogger())
	schema := models.EmptyQuestionSchema()
	for _, k := range []string{"gender", "dob", "id_type", "id_number", "nationality"} {
		schema.Required[k] = true
		schema.All[k] = true
	}

	raw := models.RawPassenger{
		"firstName":   "John",
		"gender":      "M",
		"dateOfBirth": "1990-04-12T00:00:00Z",
		"idType":      "NIC",
		"idNumber":    "901234567V",
		"nationality": "LK",
	}

	mapped, cerr := mapper.MapPassengers([]models.RawPassenger{raw}, &busgw.CartSnapshot{}, schema, "t1")
	require.Nil(t, cerr)

	p := mapped[0]
	assert.Equal(t, "male", p.AnswerValue("gender"))
	assert.Equal(t, "1990-04-12", p.AnswerValue("dob"))
	assert.Equal(t, "national_id", p.AnswerValue("id_type"))
	assert.Equal(t, "901234567V", p.AnswerValue("id_number"))
	assert.Equal(t, "LK", p.AnswerValue("nationality"))
}

func TestMapPassengers_ExplicitAnswersWinOverDefaults(t *testing.T) {
	mapper := NewPassengerMapperService(testLogger())
	schema := models.EmptyQuestionSchema()
	schema.Required["gender"] = true
	schema.All["gender"] = true

	raw := models.RawPassenger{
		"firstName": "John",
		"gender":    "male",
		"answers": []interface{}{
			map[string]interface{}{"question_key": "gender", "value": "female"},
		},
	}

	mapped, cerr := mapper.MapPassengers([]models.RawPassenger{raw}, &busgw.CartSnapshot{}, schema, "t1")
	require.Nil(t, cerr)
	assert.Equal(t, "female", mapped[0].AnswerValue("gender"))
}

func TestMapPassengers_AnswersFilteredToAllowedSet(t *testing.T) {
	mapper := NewPassengerMapperService(testLogger())
	schema := models.EmptyQuestionSchema()
	schema.Required["dob"] = true
	schema.All["dob"] = true

	raw := models.RawPassenger{
		"firstName": "John",
		"answers": []interface{}{
			map[string]interface{}{"question_key": "dob", "value": "1990-01-01"},
			map[string]interface{}{"question_key": "favorite_color", "value": "blue"},
		},
	}

	mapped, cerr := mapper.MapPassengers([]models.RawPassenger{raw}, &busgw.CartSnapshot{}, schema, "t1")
	require.Nil(t, cerr)
	assert.Equal(t, "1990-01-01", mapped[0].AnswerValue("dob"))
	assert.Empty(t, mapped[0].AnswerValue("favorite_color"))
}

func TestMapPassengers_MissingRequiredQuestionFails(t *testing.T) {
	mapper := NewPassengerMapperService(testLogger())
	schema := models.EmptyQuestionSchema()
	schema.Required["dob"] = true
	schema.All["dob"] = true

	raw := []models.RawPassenger{
		{"firstName": "John", "lastName": "Doe"},
	}

	mapped, cerr := mapper.MapPassengers(raw, &busgw.CartSnapshot{}, schema, "t1")
	assert.Nil(t, mapped, "no partial submission on validation failure")
	require.NotNil(t, cerr)
	assert.Equal(t, models.ErrCodeQuestionsUnanswered, cerr.Code)
	assert.Equal(t, "dob", cerr.Details["question_key"])
	assert.Equal(t, 1, cerr.Details["passenger_index"])
}

func TestMapPassengers_UnknownNameDefaults(t *testing.T) {
	mapper := NewPassengerMapperService(testLogger())

	mapped, cerr := mapper.MapPassengers(
		[]models.RawPassenger{{"firstName": "Solo"}},
		&busgw.CartSnapshot{}, models.EmptyQuestionSchema(), "t1",
	)
	require.Nil(t, cerr)
	assert.Equal(t, "Solo", mapped[0].FirstName)
	assert.Equal(t, "Unknown", mapped[0].LastName)
}
