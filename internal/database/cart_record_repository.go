package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/routemart/checkout-backend/internal/models"
)

// CartRecordRepository mirrors cart state into Postgres. Every write is an
// upsert keyed by durable id so repeated delivery of the same logical write
// is safe.
type CartRecordRepository struct {
	db *sqlx.DB
}

// NewCartRecordRepository creates a new CartRecordRepository.
func NewCartRecordRepository(db *sqlx.DB) *CartRecordRepository {
	return &CartRecordRepository{db: db}
}

// Upsert writes a cart record. On conflict the status only ever advances
// (confirmed/paid are never replaced by awaiting_payment) and a non-empty
// booked_by is never clobbered by an empty one.
func (r *CartRecordRepository) Upsert(record *models.CartRecord) error {
	now := time.Now()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	record.UpdatedAt = now

	query := `
		INSERT INTO cart_records (
			durable_id, provider_cart_id, status, currency, retail_price_cents,
			origin, destination, departure, arrival,
			booked_by, booking_source, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13
		)
		ON CONFLICT (durable_id) DO UPDATE SET
			provider_cart_id   = EXCLUDED.provider_cart_id,
			status             = CASE
				WHEN cart_records.status IN ('confirmed', 'paid') THEN cart_records.status
				ELSE EXCLUDED.status
			END,
			currency           = CASE WHEN EXCLUDED.currency = '' THEN cart_records.currency ELSE EXCLUDED.currency END,
			retail_price_cents = CASE WHEN EXCLUDED.retail_price_cents = 0 THEN cart_records.retail_price_cents ELSE EXCLUDED.retail_price_cents END,
			origin             = CASE WHEN EXCLUDED.origin = '' THEN cart_records.origin ELSE EXCLUDED.origin END,
			destination        = CASE WHEN EXCLUDED.destination = '' THEN cart_records.destination ELSE EXCLUDED.destination END,
			departure          = CASE WHEN EXCLUDED.departure = '' THEN cart_records.departure ELSE EXCLUDED.departure END,
			arrival            = CASE WHEN EXCLUDED.arrival = '' THEN cart_records.arrival ELSE EXCLUDED.arrival END,
			booked_by          = CASE WHEN EXCLUDED.booked_by = '' THEN cart_records.booked_by ELSE EXCLUDED.booked_by END,
			booking_source     = CASE WHEN EXCLUDED.booking_source = '' THEN cart_records.booking_source ELSE EXCLUDED.booking_source END,
			updated_at         = EXCLUDED.updated_at`

	_, err := r.db.Exec(query,
		record.DurableID, record.ProviderCartID, record.Status, record.Currency, record.RetailPriceCents,
		record.Origin, record.Destination, record.Departure, record.Arrival,
		record.BookedBy, record.BookingSource, record.CreatedAt, record.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert cart record: %w", err)
	}
	return nil
}

// GetByDurableID loads one cart record, or nil when absent.
func (r *CartRecordRepository) GetByDurableID(durableID string) (*models.CartRecord, error) {
	var record models.CartRecord
	query := `
		SELECT durable_id, provider_cart_id, status, currency, retail_price_cents,
		       origin, destination, departure, arrival,
		       booked_by, booking_source, created_at, updated_at
		FROM cart_records
		WHERE durable_id = $1`

	err := r.db.Get(&record, query, durableID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cart record: %w", err)
	}
	return &record, nil
}
