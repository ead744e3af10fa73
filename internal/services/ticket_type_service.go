package services

import (
	"encoding/json"

	"github.com/sirupsen/logrus"

	"github.com/routemart/checkout-backend/internal/models"
	"github.com/routemart/checkout-backend/pkg/busgw"
)

// TicketTypeService derives the segment-to-ticket-type map submitted with
// every passenger update. Sources are merged first-writer-wins; the result
// is never empty.
type TicketTypeService struct {
	logger *logrus.Logger
}

// NewTicketTypeService creates a new TicketTypeService.
func NewTicketTypeService(logger *logrus.Logger) *TicketTypeService {
	return &TicketTypeService{logger: logger}
}

// Resolve builds the ticket-type map for one trip. snapshot is the live
// provider cart; selection is the raw trip snapshot captured at search time
// and covers segments the live cart may omit; passengers backfill any
// segment their seats reference.
func (s *TicketTypeService) Resolve(
	snapshot *busgw.CartSnapshot,
	selection *models.TripSelection,
	passengers []models.MappedPassenger,
	tripID string,
) map[string]string {
	ticketTypes := map[string]string{}

	if item := snapshot.ItemForTrip(tripID); item != nil {
		s.mergeItem(ticketTypes, item)
	}

	if selection != nil && len(selection.RawTrip) > 0 {
		var cached busgw.LineItem
		if err := json.Unmarshal(selection.RawTrip, &cached); err != nil {
			s.logger.WithError(err).WithField("trip_id", selection.TripID).
				Warn("Could not decode cached trip snapshot for ticket types")
		} else {
			s.mergeItem(ticketTypes, &cached)
		}
	}

	for _, p := range passengers {
		for _, seat := range p.SelectedSeats {
			if seat.SegmentID != "" {
				s.put(ticketTypes, seat.SegmentID, models.TicketTypeETicket)
			}
		}
	}

	if len(ticketTypes) == 0 {
		ticketTypes["default"] = models.TicketTypeETicket
	}

	return ticketTypes
}

// mergeItem folds one line item's three segment sources into the map:
// embedded segments, the item's own ticket_types map, and trip_legs segment
// id lists.
func (s *TicketTypeService) mergeItem(ticketTypes map[string]string, item *busgw.LineItem) {
	for _, segment := range item.Segments {
		if segment.ID != "" {
			s.put(ticketTypes, segment.ID, models.TicketTypeETicket)
		}
	}
	for segmentID, ticketType := range item.TicketTypes {
		if segmentID == "" {
			continue
		}
		if ticketType == "" {
			ticketType = models.TicketTypeETicket
		}
		s.put(ticketTypes, segmentID, ticketType)
	}
	for _, leg := range item.TripLegs {
		for _, segmentID := range leg.SegmentIDs {
			if segmentID != "" {
				s.put(ticketTypes, segmentID, models.TicketTypeETicket)
			}
		}
	}
}

func (s *TicketTypeService) put(ticketTypes map[string]string, segmentID, ticketType string) {
	if _, exists := ticketTypes[segmentID]; !exists {
		ticketTypes[segmentID] = ticketType
	}
}
