package services

import (
	"context"
	"fmt"
	"time"

	"github.com/routemart/checkout-backend/internal/cache"
	"github.com/routemart/checkout-backend/internal/docstore"
	"github.com/routemart/checkout-backend/internal/models"
	"github.com/routemart/checkout-backend/pkg/busgw"
)

// fakeDocStore is an in-memory CartDocumentStore.
type fakeDocStore struct {
	byDurableID  map[string]*models.CartDocument
	byProviderID map[string]*models.CartDocument
	counters     map[string]int64
	mintCalls    int
	failMint     error
	failUpdate   error
}

func newFakeDocStore() *fakeDocStore {
	return &fakeDocStore{
		byDurableID:  map[string]*models.CartDocument{},
		byProviderID: map[string]*models.CartDocument{},
		counters:     map[string]int64{},
	}
}

func (f *fakeDocStore) GetByDurableID(_ context.Context, durableID string) (*models.CartDocument, error) {
	if doc, ok := f.byDurableID[durableID]; ok {
		return doc, nil
	}
	return nil, docstore.ErrCartNotFound
}

func (f *fakeDocStore) FindByProviderCartID(_ context.Context, providerCartID string) (*models.CartDocument, error) {
	if doc, ok := f.byProviderID[providerCartID]; ok {
		return doc, nil
	}
	return nil, docstore.ErrCartNotFound
}

func (f *fakeDocStore) MintCart(_ context.Context, providerCartID, ticketType, branchCode string) (*models.CartDocument, error) {
	f.mintCalls++
	if f.failMint != nil {
		return nil, f.failMint
	}

	key := ticketType + branchCode
	f.counters[key]++
	doc := &models.CartDocument{
		DurableID:      fmt.Sprintf("%s%s%06d", ticketType, branchCode, f.counters[key]),
		ProviderCartID: providerCartID,
		Status:         models.CartStatusActive,
		CreatedAt:      time.Now(),
		UpdatedAt:      time.Now(),
	}
	f.byDurableID[doc.DurableID] = doc
	f.byProviderID[providerCartID] = doc
	return doc, nil
}

func (f *fakeDocStore) Update(_ context.Context, durableID string, fields map[string]interface{}) error {
	if f.failUpdate != nil {
		return f.failUpdate
	}
	doc, ok := f.byDurableID[durableID]
	if !ok {
		return docstore.ErrCartNotFound
	}
	if attr, ok := fields["agent_attribution"].(*models.AgentAttribution); ok {
		doc.Attribution = attr
	}
	if bookedBy, ok := fields["booked_by"].(string); ok && bookedBy != "" {
		doc.BookedBy = bookedBy
	}
	if invoice, ok := fields["invoice"].(*models.InvoiceMeta); ok {
		doc.Invoice = invoice
	}
	return nil
}

func (f *fakeDocStore) SetStatus(_ context.Context, durableID string, status models.CartStatus) error {
	doc, ok := f.byDurableID[durableID]
	if !ok {
		return docstore.ErrCartNotFound
	}
	if doc.Status.CanTransitionTo(status) {
		doc.Status = status
	}
	return nil
}

// fakeRecordStore captures relational mirror upserts.
type fakeRecordStore struct {
	records map[string]*models.CartRecord
	upserts []models.CartRecord
	failErr error
}

func newFakeRecordStore() *fakeRecordStore {
	return &fakeRecordStore{records: map[string]*models.CartRecord{}}
}

func (f *fakeRecordStore) Upsert(record *models.CartRecord) error {
	if f.failErr != nil {
		return f.failErr
	}
	f.upserts = append(f.upserts, *record)

	existing, ok := f.records[record.DurableID]
	if !ok {
		clone := *record
		f.records[record.DurableID] = &clone
		return nil
	}
	// Mirror the conflict-aware SQL merge.
	if existing.Status.CanTransitionTo(record.Status) {
		existing.Status = record.Status
	}
	if record.BookedBy != "" {
		existing.BookedBy = record.BookedBy
	}
	if record.RetailPriceCents != 0 {
		existing.RetailPriceCents = record.RetailPriceCents
	}
	if record.Currency != "" {
		existing.Currency = record.Currency
	}
	return nil
}

func (f *fakeRecordStore) GetByDurableID(durableID string) (*models.CartRecord, error) {
	return f.records[durableID], nil
}

// fakeSelections returns a canned trip selection.
type fakeSelections struct {
	selection *models.TripSelection
	err       error
}

func (f *fakeSelections) GetLatest(string) (*models.TripSelection, error) {
	return f.selection, f.err
}

// fakeCache is an in-memory SnapshotCache.
type fakeCache struct {
	entries map[string]*busgw.CartSnapshot
	deletes []string
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: map[string]*busgw.CartSnapshot{}}
}

func (f *fakeCache) Get(_ context.Context, cartID string) (*busgw.CartSnapshot, error) {
	if s, ok := f.entries[cartID]; ok {
		return s, nil
	}
	return nil, cache.ErrCacheMiss
}

func (f *fakeCache) Set(_ context.Context, cartID string, snapshot *busgw.CartSnapshot) error {
	f.entries[cartID] = snapshot
	return nil
}

func (f *fakeCache) Delete(_ context.Context, cartID string) error {
	f.deletes = append(f.deletes, cartID)
	delete(f.entries, cartID)
	return nil
}

// fakeAgentDirectory looks up agents from a fixed map.
type fakeAgentDirectory struct {
	agents map[string]*models.Agent
	err    error
}

func (f *fakeAgentDirectory) GetByID(agentID string) (*models.Agent, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.agents[agentID], nil
}

// fakeGateway scripts the provider calls and records their order.
type fakeGateway struct {
	snapshot       *busgw.CartSnapshot
	updateResp     *busgw.PassengerUpdateResponse
	charges        *busgw.Charges
	calls          []string
	failGetCart    error
	failPassengers error
	failReturnTrip error
	failPurchaser  error
	failCharges    error
	failAccept     error

	lastPassengers  []busgw.Passenger
	lastTicketTypes map[string]string
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		snapshot: &busgw.CartSnapshot{
			ID:       "pc-1",
			Currency: "USD",
			Items: []busgw.LineItem{{
				TripID:      "t1",
				Segments:    []busgw.Segment{{ID: "seg-1", Origin: "Colombo", Destination: "Kandy"}},
				Origin:      "Colombo",
				Destination: "Kandy",
				Departure:   "2026-09-01T08:00:00Z",
				Arrival:     "2026-09-01T11:30:00Z",
			}},
			Raw: map[string]interface{}{},
		},
		updateResp: &busgw.PassengerUpdateResponse{Success: true},
		charges:    &busgw.Charges{ID: "ch-1", Total: 4800, Currency: "USD"},
	}
}

func (f *fakeGateway) GetCart(_ context.Context, cartID string) (*busgw.CartSnapshot, error) {
	f.calls = append(f.calls, "get_cart")
	if f.failGetCart != nil {
		return nil, f.failGetCart
	}
	return f.snapshot, nil
}

func (f *fakeGateway) UpdateTripPassengers(_ context.Context, cartID, tripID string, passengers []busgw.Passenger, ticketTypes map[string]string) (*busgw.PassengerUpdateResponse, error) {
	f.calls = append(f.calls, "update_passengers:"+tripID)
	f.lastPassengers = passengers
	f.lastTicketTypes = ticketTypes
	if tripID == "t2" {
		if f.failReturnTrip != nil {
			return nil, f.failReturnTrip
		}
		return f.updateResp, nil
	}
	if f.failPassengers != nil {
		return nil, f.failPassengers
	}
	return f.updateResp, nil
}

func (f *fakeGateway) UpdatePurchaser(_ context.Context, cartID string, purchaser busgw.Purchaser) error {
	f.calls = append(f.calls, "update_purchaser")
	return f.failPurchaser
}

func (f *fakeGateway) GetLatestCharges(_ context.Context, cartID string) (*busgw.Charges, error) {
	f.calls = append(f.calls, "get_charges")
	if f.failCharges != nil {
		return nil, f.failCharges
	}
	return f.charges, nil
}

func (f *fakeGateway) AcceptLatestCharges(_ context.Context, cartID string, charges *busgw.Charges) (*busgw.Charges, error) {
	f.calls = append(f.calls, "accept_charges")
	if f.failAccept != nil {
		return nil, f.failAccept
	}
	return charges, nil
}

// fakeInvoicer scripts the invoicing service.
type fakeInvoicer struct {
	configured  bool
	partnerID   int64
	invoiceID   int64
	failPartner error
	failCreate  error
	failPost    error
	posted      []int64
	lastLines   []InvoiceLine
}

func newFakeInvoicer() *fakeInvoicer {
	return &fakeInvoicer{configured: true, partnerID: 11, invoiceID: 7001}
}

func (f *fakeInvoicer) IsConfigured() bool { return f.configured }

func (f *fakeInvoicer) FindOrCreatePartner(_ context.Context, name, email, phone string) (int64, error) {
	if f.failPartner != nil {
		return 0, f.failPartner
	}
	return f.partnerID, nil
}

func (f *fakeInvoicer) FindOrCreateInvoice(_ context.Context, partnerID int64, paymentReference string, lines []InvoiceLine, expiry time.Time) (int64, error) {
	if f.failCreate != nil {
		return 0, f.failCreate
	}
	f.lastLines = lines
	return f.invoiceID, nil
}

func (f *fakeInvoicer) PostInvoice(_ context.Context, invoiceID int64) error {
	if f.failPost != nil {
		return f.failPost
	}
	f.posted = append(f.posted, invoiceID)
	return nil
}
