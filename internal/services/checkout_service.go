package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/routemart/checkout-backend/internal/cache"
	"github.com/routemart/checkout-backend/internal/docstore"
	"github.com/routemart/checkout-backend/internal/models"
	"github.com/routemart/checkout-backend/pkg/busgw"
)

// CartRecordStore mirrors cart state into the relational store.
type CartRecordStore interface {
	Upsert(record *models.CartRecord) error
	GetByDurableID(durableID string) (*models.CartRecord, error)
}

// CheckoutService drives the booking finalization pipeline: durable id
// resolution, schema discovery, passenger mapping, attribution, the ordered
// provider calls, and conditionally invoicing. Every external call is
// awaited before the next begins; any failure aborts the whole request with
// no compensation, and the caller must resubmit.
type CheckoutService struct {
	gateway        busgw.Gateway
	docStore       docstore.CartDocumentStore
	cartRecords    CartRecordStore
	selections     TripSelectionSource
	snapshots      cache.SnapshotCache
	identity       *CartIdentityService
	schemas        *QuestionSchemaService
	mapper         *PassengerMapperService
	ticketTypes    *TicketTypeService
	attribution    *AgentAttributionService
	invoiceBuilder *InvoiceBuilderService
	logger         *logrus.Logger
}

// NewCheckoutService creates a new CheckoutService.
func NewCheckoutService(
	gateway busgw.Gateway,
	docStore docstore.CartDocumentStore,
	cartRecords CartRecordStore,
	selections TripSelectionSource,
	snapshots cache.SnapshotCache,
	identity *CartIdentityService,
	schemas *QuestionSchemaService,
	mapper *PassengerMapperService,
	ticketTypes *TicketTypeService,
	attribution *AgentAttributionService,
	invoiceBuilder *InvoiceBuilderService,
	logger *logrus.Logger,
) *CheckoutService {
	return &CheckoutService{
		gateway:        gateway,
		docStore:       docStore,
		cartRecords:    cartRecords,
		selections:     selections,
		snapshots:      snapshots,
		identity:       identity,
		schemas:        schemas,
		mapper:         mapper,
		ticketTypes:    ticketTypes,
		attribution:    attribution,
		invoiceBuilder: invoiceBuilder,
		logger:         logger,
	}
}

// Checkout runs the full pipeline for one request. signals carries the
// agent attribution inputs lifted from the request by the handler;
// bookingSource is the channel detected from the user agent.
func (s *CheckoutService) Checkout(
	ctx context.Context,
	req *models.CheckoutRequest,
	signals AttributionSignals,
	bookingSource string,
) (*models.CheckoutResponse, *models.CheckoutError) {
	log := s.logger.WithFields(logrus.Fields{
		"provider_cart_id": req.CartID,
		"trip_id":          req.TripID,
	})

	// 1. Durable identity. Nothing mutates provider state without one.
	doc, err := s.identity.Resolve(ctx, req.CartID, req.Branch)
	if err != nil {
		log.WithError(err).Error("Durable id resolution failed")
		return nil, models.NewCheckoutError(models.ErrCodeStoreFailure,
			"could not resolve a durable booking id", nil)
	}
	log = log.WithField("durable_id", doc.DurableID)

	// 2. Live cart snapshot, cache-first.
	snapshot, err := s.fetchSnapshot(ctx, req.CartID)
	if err != nil {
		log.WithError(err).Error("Cart fetch failed")
		return nil, models.NewCheckoutError(models.ErrCodeProviderFailure,
			fmt.Sprintf("could not fetch cart from provider: %v", err), nil)
	}

	// 3. Required-question contract, best-effort.
	schema := s.schemas.Discover(snapshot, req.TripID, req.ReturnTripID)

	// 4. Passenger mapping and completeness validation.
	passengers, cerr := s.mapper.MapPassengers(req.Passengers, snapshot, schema, req.TripID)
	if cerr != nil {
		return nil, cerr
	}

	// 5. Agent attribution. Fails fast before any provider mutation.
	attr, cerr := s.attribution.Resolve(signals, doc.Attribution)
	if cerr != nil {
		return nil, cerr
	}
	if cerr := s.persistAttribution(ctx, doc, attr); cerr != nil {
		return nil, cerr
	}

	// 6. Ticket-type map, merged from the live cart, the cached trip
	// snapshot and the mapped passengers' seats.
	selection := s.latestSelection(req.CartID)
	ticketTypes := s.ticketTypes.Resolve(snapshot, selection, passengers, req.TripID)

	// 7. Passenger submission, outbound then return. A return-leg failure
	// aborts even though the outbound submission already landed; the
	// provider sees an at-least-once update on resubmission.
	wirePassengers := toWirePassengers(passengers)

	updateResp, err := s.gateway.UpdateTripPassengers(ctx, req.CartID, req.TripID, wirePassengers, ticketTypes)
	if err != nil {
		log.WithError(err).Error("Outbound passenger submission failed")
		return nil, models.NewCheckoutError(models.ErrCodeProviderFailure,
			fmt.Sprintf("passenger submission failed: %v", err), nil)
	}
	s.mirrorRecord(doc, snapshot, updateResp, attr, bookingSource, models.CartStatusActive, req.TripID)

	if req.ReturnTripID != "" {
		returnTypes := s.ticketTypes.Resolve(snapshot, selection, passengers, req.ReturnTripID)
		if _, err := s.gateway.UpdateTripPassengers(ctx, req.CartID, req.ReturnTripID, wirePassengers, returnTypes); err != nil {
			log.WithError(err).Error("Return passenger submission failed")
			return nil, models.NewCheckoutError(models.ErrCodeProviderFailure,
				fmt.Sprintf("return trip passenger submission failed: %v", err), nil)
		}
	}

	// 8. Purchaser submission.
	purchaser := busgw.Purchaser{
		FirstName: req.Contact.FirstName,
		LastName:  req.Contact.LastName,
		Email:     req.Contact.Email,
		Phone:     req.Contact.Phone,
	}
	if err := s.gateway.UpdatePurchaser(ctx, req.CartID, purchaser); err != nil {
		log.WithError(err).Error("Purchaser submission failed")
		return nil, models.NewCheckoutError(models.ErrCodeProviderFailure,
			fmt.Sprintf("purchaser submission failed: %v", err), nil)
	}

	// 9. Fetch charges reflecting every update so far.
	charges, err := s.gateway.GetLatestCharges(ctx, req.CartID)
	if err != nil {
		log.WithError(err).Error("Charge fetch failed")
		return nil, models.NewCheckoutError(models.ErrCodeProviderFailure,
			fmt.Sprintf("could not fetch charges: %v", err), nil)
	}
	if charges == nil {
		return nil, models.NewCheckoutError(models.ErrCodeProviderFailure,
			"provider returned no charges for this cart", nil)
	}

	// 10. Accept those same charges.
	accepted, err := s.gateway.AcceptLatestCharges(ctx, req.CartID, charges)
	if err != nil {
		log.WithError(err).Error("Charge acceptance failed")
		return nil, models.NewCheckoutError(models.ErrCodeProviderFailure,
			fmt.Sprintf("could not accept charges: %v", err), nil)
	}
	if accepted == nil {
		accepted = charges
	}

	// Snapshot is stale after the provider mutations.
	if err := s.snapshots.Delete(ctx, req.CartID); err != nil {
		log.WithError(err).Warn("Could not invalidate cart snapshot cache")
	}

	// 11. Hold requests get an invoice; everything else waits for the
	// payment phase.
	if req.Hold {
		return s.finalizeHold(ctx, log, doc, snapshot, updateResp, accepted, attr, bookingSource, req)
	}
	return s.finalizeAwaitingPayment(ctx, log, doc, snapshot, updateResp, attr, bookingSource, req)
}

// Status returns the persisted view of a booking by durable id.
func (s *CheckoutService) Status(ctx context.Context, durableID string) (*models.CartDocument, error) {
	return s.docStore.GetByDurableID(ctx, durableID)
}

func (s *CheckoutService) fetchSnapshot(ctx context.Context, cartID string) (*busgw.CartSnapshot, error) {
	cached, err := s.snapshots.Get(ctx, cartID)
	if err == nil && cached != nil {
		return cached, nil
	}
	if err != nil && !errors.Is(err, cache.ErrCacheMiss) {
		s.logger.WithError(err).Warn("Snapshot cache read failed, fetching from provider")
	}

	snapshot, err := s.gateway.GetCart(ctx, cartID)
	if err != nil {
		return nil, err
	}

	if err := s.snapshots.Set(ctx, cartID, snapshot); err != nil {
		s.logger.WithError(err).Warn("Snapshot cache write failed")
	}
	return snapshot, nil
}

func (s *CheckoutService) latestSelection(providerCartID string) *models.TripSelection {
	selection, err := s.selections.GetLatest(providerCartID)
	if err != nil {
		s.logger.WithError(err).WithField("provider_cart_id", providerCartID).
			Warn("Trip selection lookup failed")
		return nil
	}
	return selection
}

// persistAttribution writes the resolved attribution onto the cart document
// once. bookedBy mirroring happens through the record upserts, which never
// clobber a non-empty value with an empty one.
func (s *CheckoutService) persistAttribution(ctx context.Context, doc *models.CartDocument, attr *models.AgentAttribution) *models.CheckoutError {
	doc.Attribution = attr
	if attr.AgentMode && attr.AgentEmail != "" {
		doc.BookedBy = attr.AgentEmail
	}

	err := s.docStore.Update(ctx, doc.DurableID, map[string]interface{}{
		"agent_attribution": attr,
		"booked_by":         doc.BookedBy,
	})
	if err != nil {
		s.logger.WithError(err).Error("Could not persist agent attribution")
		return models.NewCheckoutError(models.ErrCodeStoreFailure,
			"could not persist agent attribution", nil)
	}
	return nil
}

func (s *CheckoutService) finalizeAwaitingPayment(
	ctx context.Context,
	log *logrus.Entry,
	doc *models.CartDocument,
	snapshot *busgw.CartSnapshot,
	updateResp *busgw.PassengerUpdateResponse,
	attr *models.AgentAttribution,
	bookingSource string,
	req *models.CheckoutRequest,
) (*models.CheckoutResponse, *models.CheckoutError) {
	if err := s.docStore.SetStatus(ctx, doc.DurableID, models.CartStatusAwaitingPayment); err != nil {
		log.WithError(err).Error("Could not persist awaiting_payment status")
		return nil, models.NewCheckoutError(models.ErrCodeStoreFailure,
			"could not persist booking status", nil)
	}
	s.mirrorRecord(doc, snapshot, updateResp, attr, bookingSource, models.CartStatusAwaitingPayment, req.TripID)

	log.Info("Checkout completed, awaiting payment")
	return &models.CheckoutResponse{
		Success:       true,
		CartID:        req.CartID,
		DurableCartID: doc.DurableID,
		Status:        models.CartStatusAwaitingPayment,
		NextSteps:     []string{"complete payment to confirm the booking"},
	}, nil
}

func (s *CheckoutService) finalizeHold(
	ctx context.Context,
	log *logrus.Entry,
	doc *models.CartDocument,
	snapshot *busgw.CartSnapshot,
	updateResp *busgw.PassengerUpdateResponse,
	charges *busgw.Charges,
	attr *models.AgentAttribution,
	bookingSource string,
	req *models.CheckoutRequest,
) (*models.CheckoutResponse, *models.CheckoutError) {
	meta, cerr := s.invoiceBuilder.BuildAndPost(ctx, doc, snapshot, updateResp, charges, req.Contact, req.TripID)

	// A created-but-unposted invoice keeps its id in persisted state so
	// manual reconciliation can pick it up.
	if meta != nil {
		if err := s.docStore.Update(ctx, doc.DurableID, map[string]interface{}{
			"invoice": meta,
		}); err != nil {
			log.WithError(err).Error("Could not persist invoice metadata")
		}
	}
	if cerr != nil {
		return nil, cerr
	}

	if err := s.docStore.SetStatus(ctx, doc.DurableID, models.CartStatusConfirmed); err != nil {
		log.WithError(err).Error("Could not persist confirmed status")
		return nil, models.NewCheckoutError(models.ErrCodeStoreFailure,
			"invoice was posted but booking status could not be persisted",
			map[string]interface{}{"invoice_id": meta.InvoiceID})
	}
	s.mirrorRecord(doc, snapshot, updateResp, attr, bookingSource, models.CartStatusConfirmed, req.TripID)

	log.WithField("invoice_id", meta.InvoiceID).Info("Checkout completed with held invoice")
	return &models.CheckoutResponse{
		Success:       true,
		CartID:        req.CartID,
		DurableCartID: doc.DurableID,
		Status:        models.CartStatusConfirmed,
		Invoice:       meta,
		NextSteps:     []string{fmt.Sprintf("pay invoice %d before %s", meta.InvoiceID, meta.ExpiresAt.Format("2006-01-02 15:04"))},
	}, nil
}

// mirrorRecord upserts the relational mirror of the cart. The upsert is
// conflict-aware: status never moves backward and booked_by is never
// cleared.
func (s *CheckoutService) mirrorRecord(
	doc *models.CartDocument,
	snapshot *busgw.CartSnapshot,
	updateResp *busgw.PassengerUpdateResponse,
	attr *models.AgentAttribution,
	bookingSource string,
	status models.CartStatus,
	tripID string,
) {
	record := &models.CartRecord{
		DurableID:      doc.DurableID,
		ProviderCartID: doc.ProviderCartID,
		Status:         status,
		Currency:       doc.Currency,
		BookedBy:       doc.BookedBy,
		BookingSource:  bookingSource,
	}
	if snapshot != nil {
		record.Currency = firstNonEmpty(snapshot.Currency, record.Currency)
		if item := snapshot.ItemForTrip(tripID); item != nil {
			record.Origin = item.Origin
			record.Destination = item.Destination
			record.Departure = item.Departure
			record.Arrival = item.Arrival
			if item.RetailPrice != nil {
				record.RetailPriceCents = item.RetailPrice.Total
			}
		}
	}
	if updateResp != nil && updateResp.RetailPrice != nil && updateResp.RetailPrice.Total > 0 {
		record.RetailPriceCents = updateResp.RetailPrice.Total
		record.Currency = firstNonEmpty(updateResp.RetailPrice.Currency, record.Currency)
	}
	if attr != nil && attr.AgentMode && attr.AgentEmail != "" {
		record.BookedBy = attr.AgentEmail
	}

	if err := s.cartRecords.Upsert(record); err != nil {
		s.logger.WithError(err).WithField("durable_id", doc.DurableID).
			Error("Cart record mirror upsert failed")
	}
}

func toWirePassengers(passengers []models.MappedPassenger) []busgw.Passenger {
	wire := make([]busgw.Passenger, 0, len(passengers))
	for _, p := range passengers {
		wp := busgw.Passenger{
			ID:        p.ID,
			FirstName: p.FirstName,
			LastName:  p.LastName,
			Category:  p.Category,
			Age:       p.Age,
			Address:   p.Address,
			Phone:     p.Phone,
		}
		for _, seat := range p.SelectedSeats {
			wp.SelectedSeats = append(wp.SelectedSeats, busgw.SeatAssignment{
				SegmentID: seat.SegmentID,
				SeatID:    seat.SeatID,
			})
		}
		for _, a := range p.Answers {
			wp.Answers = append(wp.Answers, busgw.PassengerAnswer{
				QuestionKey: a.QuestionKey,
				Value:       a.Value,
			})
		}
		wire = append(wire, wp)
	}
	return wire
}
