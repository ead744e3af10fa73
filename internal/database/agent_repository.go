package database

import (
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/routemart/checkout-backend/internal/models"
)

// AgentRepository reads the sales-agent directory.
type AgentRepository struct {
	db *sqlx.DB
}

// NewAgentRepository creates a new AgentRepository.
func NewAgentRepository(db *sqlx.DB) *AgentRepository {
	return &AgentRepository{db: db}
}

// GetByID returns the agent with the given id, or nil when unknown.
func (r *AgentRepository) GetByID(agentID string) (*models.Agent, error) {
	var agent models.Agent
	query := `SELECT id, email, name FROM agents WHERE id = $1`

	err := r.db.Get(&agent, query, agentID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get agent: %w", err)
	}
	return &agent, nil
}
