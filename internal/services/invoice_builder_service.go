package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/routemart/checkout-backend/internal/config"
	"github.com/routemart/checkout-backend/internal/models"
	"github.com/routemart/checkout-backend/pkg/busgw"
)

// TripSelectionSource reads back the raw trip snapshots captured at search
// time.
type TripSelectionSource interface {
	GetLatest(providerCartID string) (*models.TripSelection, error)
}

// InvoiceBuilderService assembles and posts the pay-later invoice for a
// held booking. Trip and pricing data is extracted through cascading
// fallbacks because no single source reliably carries everything: the live
// cart may omit return-leg data, the update response may omit pricing.
type InvoiceBuilderService struct {
	invoicer   Invoicer
	pricing    *PricingService
	selections TripSelectionSource
	config     *config.InvoicingConfig
	logger     *logrus.Logger
}

// NewInvoiceBuilderService creates a new InvoiceBuilderService.
func NewInvoiceBuilderService(
	invoicer Invoicer,
	pricing *PricingService,
	selections TripSelectionSource,
	cfg *config.InvoicingConfig,
	logger *logrus.Logger,
) *InvoiceBuilderService {
	return &InvoiceBuilderService{
		invoicer:   invoicer,
		pricing:    pricing,
		selections: selections,
		config:     cfg,
		logger:     logger,
	}
}

// BuildAndPost creates and finalizes the invoice for a held booking. The
// returned metadata is valid even when the error is non-nil: a created
// invoice whose posting failed keeps its id so manual recovery is possible.
func (s *InvoiceBuilderService) BuildAndPost(
	ctx context.Context,
	doc *models.CartDocument,
	snapshot *busgw.CartSnapshot,
	updateResp *busgw.PassengerUpdateResponse,
	charges *busgw.Charges,
	contact models.ContactInfo,
	tripID string,
) (*models.InvoiceMeta, *models.CheckoutError) {
	if !s.invoicer.IsConfigured() {
		return nil, models.NewCheckoutError(models.ErrCodeInvoiceFailure,
			"invoicing is not configured; cannot hold this booking", nil)
	}

	totalCents, currency := s.resolveTotal(doc, updateResp, charges)
	if totalCents <= 0 {
		return nil, models.NewCheckoutError(models.ErrCodeInvoiceFailure,
			"no invoiceable total could be resolved for this cart", nil)
	}

	outbound, returnLeg := s.extractLegs(doc, snapshot, tripID)
	description := s.describe(outbound, returnLeg, contact)
	amount := s.pricing.FormatMajor(totalCents)

	partnerID, err := s.invoicer.FindOrCreatePartner(ctx, contact.FullName(), contact.Email, contact.Phone)
	if err != nil {
		return nil, models.NewCheckoutError(models.ErrCodeInvoiceFailure,
			fmt.Sprintf("partner resolution failed: %v", err), nil)
	}

	expiry := time.Now().Add(s.config.InvoiceExpiry)
	lines := []InvoiceLine{{
		Description:   description,
		Quantity:      1,
		UnitPrice:     amount,
		AmountUntaxed: amount,
		AmountTotal:   amount,
		Currency:      currency,
	}}

	invoiceID, err := s.invoicer.FindOrCreateInvoice(ctx, partnerID, doc.DurableID, lines, expiry)
	if err != nil {
		return nil, models.NewCheckoutError(models.ErrCodeInvoiceFailure,
			fmt.Sprintf("invoice creation failed: %v", err), nil)
	}

	meta := &models.InvoiceMeta{
		InvoiceID:  invoiceID,
		PNR:        doc.DurableID,
		TotalCents: totalCents,
		Currency:   currency,
		ExpiresAt:  expiry,
		Status:     models.InvoiceStatusDraft,
	}

	if err := s.invoicer.PostInvoice(ctx, invoiceID); err != nil {
		s.logger.WithError(err).WithFields(logrus.Fields{
			"invoice_id": invoiceID,
			"durable_id": doc.DurableID,
		}).Error("Invoice created but posting failed")
		return meta, models.NewCheckoutError(models.ErrCodeInvoicePostingFailed,
			fmt.Sprintf("invoice %d was created but could not be posted", invoiceID),
			map[string]interface{}{"invoice_id": invoiceID})
	}

	meta.Status = models.InvoiceStatusPosted
	return meta, nil
}

// resolveTotal picks the invoice total through the pricing fallback chain:
// the structured retail price on the update response, the adjusted total
// cached on the cart document, then the raw charge total run through the
// same markup applied at search time.
func (s *InvoiceBuilderService) resolveTotal(
	doc *models.CartDocument,
	updateResp *busgw.PassengerUpdateResponse,
	charges *busgw.Charges,
) (int64, string) {
	if updateResp != nil && updateResp.RetailPrice != nil && updateResp.RetailPrice.Total > 0 {
		return updateResp.RetailPrice.Total, firstNonEmpty(updateResp.RetailPrice.Currency, doc.Currency)
	}
	if doc.AdjustedCents > 0 {
		return doc.AdjustedCents, doc.Currency
	}
	if charges != nil && charges.Total > 0 {
		return s.pricing.Adjust(charges.Total), firstNonEmpty(charges.Currency, doc.Currency)
	}
	return 0, doc.Currency
}

// extractLegs resolves the outbound and optional return leg details through
// the source fallback chain: the cached raw trip snapshot, the live cart's
// matching line item, then the provider response embedded on the cart
// document.
func (s *InvoiceBuilderService) extractLegs(
	doc *models.CartDocument,
	snapshot *busgw.CartSnapshot,
	tripID string,
) (*models.TripLegRef, *models.TripLegRef) {
	for _, item := range []*busgw.LineItem{
		s.cachedSelectionItem(doc.ProviderCartID),
		snapshot.ItemForTrip(tripID),
		s.embeddedResponseItem(doc),
	} {
		if item == nil {
			continue
		}
		outbound := legFromItem(item, 0)
		if outbound == nil {
			continue
		}
		return outbound, legFromItem(item, 1)
	}

	// Last resort: the itinerary summary already denormalized on the
	// document.
	if doc.Itinerary != nil {
		outbound := &models.TripLegRef{
			Origin:      doc.Itinerary.Origin,
			Destination: doc.Itinerary.Destination,
			Departure:   doc.Itinerary.Departure,
			Arrival:     doc.Itinerary.Arrival,
		}
		return outbound, doc.Itinerary.Return
	}

	return nil, nil
}

func (s *InvoiceBuilderService) cachedSelectionItem(providerCartID string) *busgw.LineItem {
	selection, err := s.selections.GetLatest(providerCartID)
	if err != nil {
		s.logger.WithError(err).WithField("provider_cart_id", providerCartID).
			Warn("Trip selection lookup failed, falling back to live cart")
		return nil
	}
	if selection == nil || len(selection.RawTrip) == 0 {
		return nil
	}

	var item busgw.LineItem
	if err := json.Unmarshal(selection.RawTrip, &item); err != nil {
		s.logger.WithError(err).Warn("Could not decode cached trip snapshot")
		return nil
	}
	return &item
}

func (s *InvoiceBuilderService) embeddedResponseItem(doc *models.CartDocument) *busgw.LineItem {
	if doc.ProviderResponse == nil {
		return nil
	}
	items, ok := doc.ProviderResponse["items"].([]interface{})
	if !ok || len(items) == 0 {
		return nil
	}

	data, err := json.Marshal(items[0])
	if err != nil {
		return nil
	}
	var item busgw.LineItem
	if err := json.Unmarshal(data, &item); err != nil {
		return nil
	}
	return &item
}

// legFromItem extracts one direction of travel from a line item. legIndex 0
// is outbound, 1 is the return. Trip legs are preferred, with the leg's
// first segment filling in origin/destination when the leg itself omits
// them; positional segments are the fallback.
func legFromItem(item *busgw.LineItem, legIndex int) *models.TripLegRef {
	if len(item.TripLegs) > legIndex {
		leg := item.TripLegs[legIndex]
		ref := &models.TripLegRef{
			Origin:      leg.Origin,
			Destination: leg.Destination,
			Departure:   leg.Departure,
			Arrival:     leg.Arrival,
		}
		if (ref.Origin == "" || ref.Destination == "") && len(leg.SegmentIDs) > 0 {
			if segment := segmentByID(item, leg.SegmentIDs[0]); segment != nil {
				ref.Origin = firstNonEmpty(ref.Origin, segment.Origin)
				ref.Destination = firstNonEmpty(ref.Destination, segment.Destination)
			}
		}
		if legIndex == 0 {
			ref.Origin = firstNonEmpty(ref.Origin, item.Origin)
			ref.Destination = firstNonEmpty(ref.Destination, item.Destination)
			ref.Departure = firstNonEmpty(ref.Departure, item.Departure)
			ref.Arrival = firstNonEmpty(ref.Arrival, item.Arrival)
		}
		if ref.Origin != "" || ref.Destination != "" || ref.Departure != "" {
			return ref
		}
		return nil
	}

	if len(item.Segments) > legIndex {
		segment := item.Segments[legIndex]
		ref := &models.TripLegRef{
			Origin:      segment.Origin,
			Destination: segment.Destination,
		}
		if legIndex == 0 {
			ref.Origin = firstNonEmpty(ref.Origin, item.Origin)
			ref.Destination = firstNonEmpty(ref.Destination, item.Destination)
			ref.Departure = item.Departure
			ref.Arrival = item.Arrival
		}
		if ref.Origin != "" || ref.Destination != "" {
			return ref
		}
	}

	if legIndex == 0 && (item.Origin != "" || item.Destination != "") {
		return &models.TripLegRef{
			Origin:      item.Origin,
			Destination: item.Destination,
			Departure:   item.Departure,
			Arrival:     item.Arrival,
		}
	}

	return nil
}

func segmentByID(item *busgw.LineItem, segmentID string) *busgw.Segment {
	for i := range item.Segments {
		if item.Segments[i].ID == segmentID {
			return &item.Segments[i]
		}
	}
	return nil
}

// describe assembles the invoice line's free-text description from the
// resolved legs and the purchaser contact.
func (s *InvoiceBuilderService) describe(outbound, returnLeg *models.TripLegRef, contact models.ContactInfo) string {
	var b strings.Builder

	b.WriteString("Bus ticket")
	if outbound != nil {
		fmt.Fprintf(&b, " %s to %s", firstNonEmpty(outbound.Origin, "?"), firstNonEmpty(outbound.Destination, "?"))
		if outbound.Departure != "" {
			fmt.Fprintf(&b, ", departing %s", outbound.Departure)
		}
		if outbound.Arrival != "" {
			fmt.Fprintf(&b, ", arriving %s", outbound.Arrival)
		}
	}
	if returnLeg != nil {
		fmt.Fprintf(&b, "; return %s to %s", firstNonEmpty(returnLeg.Origin, "?"), firstNonEmpty(returnLeg.Destination, "?"))
		if returnLeg.Departure != "" {
			fmt.Fprintf(&b, ", departing %s", returnLeg.Departure)
		}
	}

	fmt.Fprintf(&b, ". Purchaser: %s", firstNonEmpty(contact.FullName(), "Unknown"))
	if contact.Email != "" {
		fmt.Fprintf(&b, " (%s)", contact.Email)
	}
	if contact.Phone != "" {
		fmt.Fprintf(&b, ", %s", contact.Phone)
	}

	return b.String()
}
