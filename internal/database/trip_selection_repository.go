package database

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/routemart/checkout-backend/internal/models"
)

// TripSelectionRepository stores the raw trip snapshots captured at search
// time. Invoice generation reads them back when the live cart no longer
// carries return-leg data.
type TripSelectionRepository struct {
	db *sqlx.DB
}

// NewTripSelectionRepository creates a new TripSelectionRepository.
func NewTripSelectionRepository(db *sqlx.DB) *TripSelectionRepository {
	return &TripSelectionRepository{db: db}
}

// Save stores one raw trip snapshot for a provider cart.
func (r *TripSelectionRepository) Save(providerCartID, tripID string, rawTrip interface{}) error {
	data, err := json.Marshal(rawTrip)
	if err != nil {
		return fmt.Errorf("failed to marshal trip snapshot: %w", err)
	}

	query := `
		INSERT INTO trip_selections (id, provider_cart_id, trip_id, raw_trip, created_at)
		VALUES ($1, $2, $3, $4, $5)`

	_, err = r.db.Exec(query, uuid.New().String(), providerCartID, tripID, data, time.Now())
	if err != nil {
		return fmt.Errorf("failed to save trip snapshot: %w", err)
	}
	return nil
}

// GetLatest returns the most recent trip snapshot for a provider cart, or
// nil when none was captured.
func (r *TripSelectionRepository) GetLatest(providerCartID string) (*models.TripSelection, error) {
	var selection models.TripSelection
	query := `
		SELECT id, provider_cart_id, trip_id, raw_trip, created_at
		FROM trip_selections
		WHERE provider_cart_id = $1
		ORDER BY created_at DESC
		LIMIT 1`

	err := r.db.Get(&selection, query, providerCartID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get trip snapshot: %w", err)
	}
	return &selection, nil
}
