package models

import "time"

// CartStatus represents the lifecycle status of a checkout cart.
// Matches the cart_status ENUM in Postgres and the status field of the
// Mongo cart document.
type CartStatus string

const (
	CartStatusActive          CartStatus = "active"
	CartStatusAwaitingPayment CartStatus = "awaiting_payment"
	CartStatusConfirmed       CartStatus = "confirmed"
	CartStatusPaid            CartStatus = "paid"
)

// Rank orders statuses for the monotonic transition guard: a cart never
// moves from confirmed/paid back to awaiting_payment.
func (s CartStatus) Rank() int {
	switch s {
	case CartStatusActive:
		return 0
	case CartStatusAwaitingPayment:
		return 1
	case CartStatusConfirmed:
		return 2
	case CartStatusPaid:
		return 3
	}
	return -1
}

// CanTransitionTo reports whether an update to next respects the monotonic
// status invariant.
func (s CartStatus) CanTransitionTo(next CartStatus) bool {
	return next.Rank() >= s.Rank()
}

// InvoiceStatus is the lifecycle of an externally issued invoice.
type InvoiceStatus string

const (
	InvoiceStatusDraft  InvoiceStatus = "draft"
	InvoiceStatusPosted InvoiceStatus = "posted"
)

// InvoiceMeta is the locally cached view of an invoice issued by the
// external invoicing service. PNR equals the durable cart id.
type InvoiceMeta struct {
	InvoiceID  int64         `bson:"invoice_id" json:"invoice_id"`
	PNR        string        `bson:"pnr" json:"pnr"`
	TotalCents int64         `bson:"total_cents" json:"total_cents"`
	Currency   string        `bson:"currency" json:"currency"`
	ExpiresAt  time.Time     `bson:"expires_at" json:"expires_at"`
	Status     InvoiceStatus `bson:"status" json:"status"`
}

// AgentAttribution records which sales agent, if any, gets credit for a
// booking. Resolved once per request.
type AgentAttribution struct {
	AgentMode  bool   `bson:"agent_mode" json:"agent_mode"`
	AgentID    string `bson:"agent_id,omitempty" json:"agent_id,omitempty"`
	AgentEmail string `bson:"agent_email,omitempty" json:"agent_email,omitempty"`
	AgentName  string `bson:"agent_name,omitempty" json:"agent_name,omitempty"`
}

// Itinerary is the denormalized trip summary kept on the cart for display
// and invoice descriptions.
type Itinerary struct {
	Origin      string     `bson:"origin" json:"origin"`
	Destination string     `bson:"destination" json:"destination"`
	Departure   string     `bson:"departure" json:"departure"`
	Arrival     string     `bson:"arrival" json:"arrival"`
	Return      *TripLegRef `bson:"return,omitempty" json:"return,omitempty"`
}

// TripLegRef is the return leg of a round trip.
type TripLegRef struct {
	Origin      string `bson:"origin" json:"origin"`
	Destination string `bson:"destination" json:"destination"`
	Departure   string `bson:"departure" json:"departure"`
	Arrival     string `bson:"arrival" json:"arrival"`
}

// CartDocument is the document-store form of a cart. The durable id is the
// document key; the provider cart id is indexed for the idempotent
// create-or-reuse lookup.
type CartDocument struct {
	DurableID        string                 `bson:"_id" json:"durable_id"`
	ProviderCartID   string                 `bson:"provider_cart_id" json:"provider_cart_id"`
	Status           CartStatus             `bson:"status" json:"status"`
	Currency         string                 `bson:"currency,omitempty" json:"currency,omitempty"`
	RetailPriceCents int64                  `bson:"retail_price_cents,omitempty" json:"retail_price_cents,omitempty"`
	AdjustedCents    int64                  `bson:"adjusted_total_cents,omitempty" json:"adjusted_total_cents,omitempty"`
	Itinerary        *Itinerary             `bson:"itinerary,omitempty" json:"itinerary,omitempty"`
	BookedBy         string                 `bson:"booked_by,omitempty" json:"booked_by,omitempty"`
	Attribution      *AgentAttribution      `bson:"agent_attribution,omitempty" json:"agent_attribution,omitempty"`
	Invoice          *InvoiceMeta           `bson:"invoice,omitempty" json:"invoice,omitempty"`
	ProviderResponse map[string]interface{} `bson:"provider_response,omitempty" json:"provider_response,omitempty"`
	CreatedAt        time.Time              `bson:"created_at" json:"created_at"`
	UpdatedAt        time.Time              `bson:"updated_at" json:"updated_at"`
}

// CartRecord is the relational mirror of a cart, upserted after every
// orchestration step. The upsert never downgrades status and never clears a
// non-empty booked_by.
type CartRecord struct {
	DurableID        string     `db:"durable_id"`
	ProviderCartID   string     `db:"provider_cart_id"`
	Status           CartStatus `db:"status"`
	Currency         string     `db:"currency"`
	RetailPriceCents int64      `db:"retail_price_cents"`
	Origin           string     `db:"origin"`
	Destination      string     `db:"destination"`
	Departure        string     `db:"departure"`
	Arrival          string     `db:"arrival"`
	BookedBy         string     `db:"booked_by"`
	BookingSource    string     `db:"booking_source"`
	CreatedAt        time.Time  `db:"created_at"`
	UpdatedAt        time.Time  `db:"updated_at"`
}

// TripSelection is the raw snapshot of the trip the customer selected at
// search time, kept in the relational store so invoice generation can fall
// back to it when the live cart omits return-leg data.
type TripSelection struct {
	ID             string    `db:"id"`
	ProviderCartID string    `db:"provider_cart_id"`
	TripID         string    `db:"trip_id"`
	RawTrip        []byte    `db:"raw_trip"` // JSONB: segments, trip_legs, pricing
	CreatedAt      time.Time `db:"created_at"`
}

// Agent is a row in the sales-agent directory used by attribution lookup.
type Agent struct {
	ID    string `db:"id"`
	Email string `db:"email"`
	Name  string `db:"name"`
}
