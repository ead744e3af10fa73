package services

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/routemart/checkout-backend/pkg/busgw"
)

func TestDiscover_NilSnapshot(t *testing.T) {
	svc := NewQuestionSchemaService(testLogger())

	schema := svc.Discover(nil, "t1")
	assert.Empty(t, schema.Required)
	assert.Empty(t, schema.All)
}

func TestDiscover_PassengerQuestionsList(t *testing.T) {
	svc := NewQuestionSchemaService(testLogger())
	snapshot := &busgw.CartSnapshot{
		ID: "c1",
		Raw: map[string]interface{}{
			"items": []interface{}{
				map[string]interface{}{
					"trip_id": "t1",
					"passenger_questions": []interface{}{
						map[string]interface{}{"key": "dateOfBirth"},
						map[string]interface{}{"name": "gender"},
						"nationality",
					},
				},
			},
		},
	}

	schema := svc.Discover(snapshot, "t1")
	assert.True(t, schema.Required["date_of_birth"])
	assert.True(t, schema.Required["gender"])
	assert.True(t, schema.Required["nationality"])
	assert.Empty(t, schema.Optional, "every discovered key is required")
}

func TestDiscover_RequiredQuestionsMap(t *testing.T) {
	svc := NewQuestionSchemaService(testLogger())
	snapshot := &busgw.CartSnapshot{
		Raw: map[string]interface{}{
			"required_passenger_questions": map[string]interface{}{
				"idType":   true,
				"idnumber": true,
			},
		},
	}

	schema := svc.Discover(snapshot, "t1")
	assert.True(t, schema.Required["id_type"])
	assert.True(t, schema.Required["id_number"])
}

func TestDiscover_FiltersByTripID(t *testing.T) {
	svc := NewQuestionSchemaService(testLogger())
	snapshot := &busgw.CartSnapshot{
		Raw: map[string]interface{}{
			"items": []interface{}{
				map[string]interface{}{
					"trip_id":   "other",
					"questions": []interface{}{"passport_number"},
				},
				map[string]interface{}{
					"trip_id":   "t1",
					"questions": []interface{}{"dob"},
				},
			},
		},
	}

	schema := svc.Discover(snapshot, "t1")
	assert.True(t, schema.Required["dob"])
	assert.False(t, schema.Required["passport_number"])
}

func TestDiscover_DepthBounded(t *testing.T) {
	svc := NewQuestionSchemaService(testLogger())

	// Bury a container deeper than the scan limit.
	deep := map[string]interface{}{
		"passenger_questions": []interface{}{"gender"},
	}
	node := interface{}(deep)
	for i := 0; i < maxScanDepth+2; i++ {
		node = map[string]interface{}{"wrapper": node}
	}

	schema := svc.Discover(&busgw.CartSnapshot{Raw: map[string]interface{}{"root": node}}, "t1")
	assert.False(t, schema.Required["gender"])
}

func TestDiscover_ReturnTripInScope(t *testing.T) {
	svc := NewQuestionSchemaService(testLogger())
	snapshot := &busgw.CartSnapshot{
		Raw: map[string]interface{}{
			"items": []interface{}{
				map[string]interface{}{"trip_id": "t2", "questions": []interface{}{"dob"}},
			},
		},
	}

	schema := svc.Discover(snapshot, "t1", "t2")
	assert.True(t, schema.Required["dob"])
}
