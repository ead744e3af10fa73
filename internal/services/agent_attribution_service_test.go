package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/routemart/checkout-backend/internal/models"
)

func TestResolveAttribution_NoSignals(t *testing.T) {
	svc := NewAgentAttributionService(&fakeAgentDirectory{}, testLogger())

	attr, cerr := svc.Resolve(AttributionSignals{}, nil)
	require.Nil(t, cerr)
	assert.False(t, attr.AgentMode)
	assert.Empty(t, attr.AgentEmail)
}

func TestResolveAttribution_HeaderBeatsBody(t *testing.T) {
	svc := NewAgentAttributionService(&fakeAgentDirectory{}, testLogger())

	attr, cerr := svc.Resolve(AttributionSignals{
		HeaderMode:  "true",
		HeaderEmail: "Header@Agency.com",
		BodyEmail:   "body@agency.com",
	}, nil)
	require.Nil(t, cerr)
	assert.True(t, attr.AgentMode)
	assert.Equal(t, "header@agency.com", attr.AgentEmail)
}

func TestResolveAttribution_DirectoryLookupByID(t *testing.T) {
	directory := &fakeAgentDirectory{agents: map[string]*models.Agent{
		"ag-9": {ID: "ag-9", Email: "Nine@Agency.com", Name: "Agent Nine"},
	}}
	svc := NewAgentAttributionService(directory, testLogger())

	attr, cerr := svc.Resolve(AttributionSignals{HeaderMode: "true", BodyAgentID: "ag-9"}, nil)
	require.Nil(t, cerr)
	assert.Equal(t, "nine@agency.com", attr.AgentEmail)
	assert.Equal(t, "Agent Nine", attr.AgentName)
}

func TestResolveAttribution_ContextEmailIsLastResort(t *testing.T) {
	svc := NewAgentAttributionService(&fakeAgentDirectory{}, testLogger())

	attr, cerr := svc.Resolve(AttributionSignals{
		HeaderMode:   "true",
		ContextEmail: "token@agency.com",
	}, nil)
	require.Nil(t, cerr)
	assert.Equal(t, "token@agency.com", attr.AgentEmail)
}

func TestResolveAttribution_ModeWithoutEmailFails(t *testing.T) {
	svc := NewAgentAttributionService(&fakeAgentDirectory{}, testLogger())

	attr, cerr := svc.Resolve(AttributionSignals{HeaderMode: "true"}, nil)
	assert.Nil(t, attr)
	require.NotNil(t, cerr)
	assert.Equal(t, models.ErrCodeAgentContextMissing, cerr.Code)
	assert.True(t, cerr.IsInput())
}

func TestResolveAttribution_UnknownAgentIDWithModeFails(t *testing.T) {
	svc := NewAgentAttributionService(&fakeAgentDirectory{}, testLogger())

	_, cerr := svc.Resolve(AttributionSignals{HeaderMode: "yes", HeaderAgentID: "nobody"}, nil)
	require.NotNil(t, cerr)
	assert.Equal(t, models.ErrCodeAgentContextMissing, cerr.Code)
}

func TestResolveAttribution_PersistedFallback(t *testing.T) {
	svc := NewAgentAttributionService(&fakeAgentDirectory{}, testLogger())
	persisted := &models.AgentAttribution{AgentMode: true, AgentEmail: "stored@agency.com"}

	attr, cerr := svc.Resolve(AttributionSignals{}, persisted)
	require.Nil(t, cerr)
	assert.Equal(t, persisted, attr)
}
