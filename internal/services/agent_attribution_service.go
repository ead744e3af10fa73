package services

import (
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/routemart/checkout-backend/internal/models"
)

// AgentDirectory looks up sales agents by id. Backed by the relational
// store in production.
type AgentDirectory interface {
	GetByID(agentID string) (*models.Agent, error)
}

// AttributionSignals carries every agent signal lifted from one request,
// split by transport so precedence (header over body over query) can be
// applied in one place.
type AttributionSignals struct {
	HeaderMode string
	BodyMode   string
	QueryMode  string

	HeaderAgentID string
	BodyAgentID   string
	QueryAgentID  string

	HeaderEmail  string
	BodyEmail    string
	QueryEmail   string
	ContextEmail string // from the auth token, when present
}

// AgentAttributionService decides which sales agent, if any, gets credit
// for a booking. Resolution runs once per request, before any provider
// mutation, so an inconsistent agent context aborts cleanly.
type AgentAttributionService struct {
	directory AgentDirectory
	logger    *logrus.Logger
}

// NewAgentAttributionService creates a new AgentAttributionService.
func NewAgentAttributionService(directory AgentDirectory, logger *logrus.Logger) *AgentAttributionService {
	return &AgentAttributionService{directory: directory, logger: logger}
}

// Resolve computes the attribution for a request. persisted is the
// attribution already stored on the cart document, used as the final
// fallback when the request carries no signal at all. When agent mode is
// asserted but no email can be resolved, the booking must not proceed
// silently un-attributed and a fatal AGENT_CONTEXT_MISSING error is
// returned.
func (s *AgentAttributionService) Resolve(signals AttributionSignals, persisted *models.AgentAttribution) (*models.AgentAttribution, *models.CheckoutError) {
	mode := firstSignal(signals.HeaderMode, signals.BodyMode, signals.QueryMode)
	agentID := firstSignal(signals.HeaderAgentID, signals.BodyAgentID, signals.QueryAgentID)
	email := firstSignal(signals.HeaderEmail, signals.BodyEmail, signals.QueryEmail, signals.ContextEmail)

	modeAsserted := isTruthy(mode)

	if !modeAsserted && agentID == "" && email == "" {
		if persisted != nil && persisted.AgentMode {
			return persisted, nil
		}
		return &models.AgentAttribution{AgentMode: false}, nil
	}

	attribution := &models.AgentAttribution{
		AgentMode:  modeAsserted || agentID != "" || email != "",
		AgentID:    agentID,
		AgentEmail: strings.ToLower(email),
	}

	if attribution.AgentEmail == "" && agentID != "" {
		agent, err := s.directory.GetByID(agentID)
		if err != nil {
			s.logger.WithError(err).WithField("agent_id", agentID).Error("Agent directory lookup failed")
		} else if agent != nil {
			attribution.AgentEmail = strings.ToLower(agent.Email)
			attribution.AgentName = agent.Name
		}
	}

	if attribution.AgentEmail == "" {
		if modeAsserted {
			return nil, models.NewCheckoutError(
				models.ErrCodeAgentContextMissing,
				"agent mode was asserted but no agent email could be resolved",
				map[string]interface{}{"agent_id": agentID},
			)
		}
		// An id with no resolvable email and no asserted mode carries no
		// usable signal; fall back to what the cart already knows.
		if persisted != nil && persisted.AgentMode {
			return persisted, nil
		}
		return &models.AgentAttribution{AgentMode: false}, nil
	}

	s.logger.WithFields(logrus.Fields{
		"agent_id":    attribution.AgentID,
		"agent_email": attribution.AgentEmail,
	}).Info("Resolved agent attribution")

	return attribution, nil
}

func firstSignal(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func isTruthy(v string) bool {
	switch strings.ToLower(v) {
	case "true", "1", "yes", "on":
		return true
	}
	return false
}
