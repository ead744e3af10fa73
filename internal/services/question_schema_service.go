package services

import (
	"github.com/sirupsen/logrus"

	"github.com/routemart/checkout-backend/internal/models"
	"github.com/routemart/checkout-backend/internal/utils"
	"github.com/routemart/checkout-backend/pkg/busgw"
)

// maxScanDepth bounds the recursive walk over the raw cart structure.
// Provider carts nest question containers at unpredictable levels but never
// deeper than this in practice.
const maxScanDepth = 6

// QuestionSchemaService discovers which passenger questions a trip requires
// by scanning the live provider cart. Discovery is best-effort: a failed or
// empty scan yields an empty schema, never an error, because absence of a
// schema must not block checkout when the provider itself enforces nothing.
type QuestionSchemaService struct {
	logger *logrus.Logger
}

// NewQuestionSchemaService creates a new QuestionSchemaService.
func NewQuestionSchemaService(logger *logrus.Logger) *QuestionSchemaService {
	return &QuestionSchemaService{logger: logger}
}

// Discover scans the cart snapshot for question keys scoped to the given
// trip ids. Every discovered key is treated as required.
func (s *QuestionSchemaService) Discover(snapshot *busgw.CartSnapshot, tripIDs ...string) *models.QuestionSchema {
	schema := models.EmptyQuestionSchema()
	if snapshot == nil || snapshot.Raw == nil {
		return schema
	}

	inScope := map[string]bool{}
	for _, id := range tripIDs {
		if id != "" {
			inScope[id] = true
		}
	}

	defer func() {
		if r := recover(); r != nil {
			s.logger.WithField("panic", r).Warn("Question schema scan failed, proceeding without schema")
		}
	}()

	s.scan(snapshot.Raw, inScope, schema, 0)

	for k := range schema.Required {
		schema.All[k] = true
	}

	s.logger.WithFields(logrus.Fields{
		"cart_id":       snapshot.ID,
		"required_keys": schema.RequiredKeys(),
	}).Debug("Discovered passenger question schema")

	return schema
}

// scan walks one node of the raw cart structure looking for the known
// question container shapes.
func (s *QuestionSchemaService) scan(node interface{}, tripIDs map[string]bool, schema *models.QuestionSchema, depth int) {
	if depth > maxScanDepth {
		return
	}

	switch v := node.(type) {
	case map[string]interface{}:
		if !s.matchesTrip(v, tripIDs) {
			return
		}
		for key, child := range v {
			switch key {
			case "passenger_questions", "passengerQuestions",
				"passenger_questionnaire", "passengerQuestionnaire",
				"questions":
				s.collectContainer(child, schema)
			case "required_passenger_questions", "requiredPassengerQuestions":
				s.collectRequiredMap(child, schema)
			default:
				s.scan(child, tripIDs, schema, depth+1)
			}
		}
	case []interface{}:
		for _, item := range v {
			s.scan(item, tripIDs, schema, depth+1)
		}
	}
}

// matchesTrip filters nodes that carry a trip id against the in-scope set.
// Nodes without a trip id always match.
func (s *QuestionSchemaService) matchesTrip(node map[string]interface{}, tripIDs map[string]bool) bool {
	if len(tripIDs) == 0 {
		return true
	}
	for _, key := range []string{"trip_id", "tripId"} {
		if id, ok := node[key].(string); ok && id != "" {
			return tripIDs[id]
		}
	}
	return true
}

// collectContainer extracts keys from a question list or single question
// object. Questions appear as strings, or as objects with a key/name/id
// field.
func (s *QuestionSchemaService) collectContainer(node interface{}, schema *models.QuestionSchema) {
	switch v := node.(type) {
	case []interface{}:
		for _, item := range v {
			s.collectContainer(item, schema)
		}
	case map[string]interface{}:
		for _, field := range []string{"key", "question_key", "questionKey", "name", "id"} {
			if raw, ok := v[field].(string); ok && raw != "" {
				s.addKey(raw, schema)
				return
			}
		}
	case string:
		s.addKey(v, schema)
	}
}

// collectRequiredMap extracts keys from a required_passenger_questions map,
// where the map keys are the question keys.
func (s *QuestionSchemaService) collectRequiredMap(node interface{}, schema *models.QuestionSchema) {
	m, ok := node.(map[string]interface{})
	if !ok {
		return
	}
	for raw := range m {
		s.addKey(raw, schema)
	}
}

func (s *QuestionSchemaService) addKey(raw string, schema *models.QuestionSchema) {
	key := utils.NormalizeQuestionKey(raw)
	if key == "" {
		return
	}
	schema.Required[key] = true
	schema.All[key] = true
}
