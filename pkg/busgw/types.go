package busgw

// Money is a provider money amount in minor units.
type Money struct {
	Total    int64  `json:"total"`
	Currency string `json:"currency"`
}

// Segment is one bookable leg segment of a trip.
type Segment struct {
	ID          string `json:"id"`
	Origin      string `json:"origin,omitempty"`
	Destination string `json:"destination,omitempty"`
}

// TripLeg groups the segments of one direction of travel.
type TripLeg struct {
	SegmentIDs  []string `json:"segment_ids"`
	Origin      string   `json:"origin,omitempty"`
	Destination string   `json:"destination,omitempty"`
	Departure   string   `json:"departure,omitempty"`
	Arrival     string   `json:"arrival,omitempty"`
}

// LineItem is one trip in the cart.
type LineItem struct {
	TripID      string            `json:"trip_id"`
	Segments    []Segment         `json:"segments,omitempty"`
	TicketTypes map[string]string `json:"ticket_types,omitempty"`
	TripLegs    []TripLeg         `json:"trip_legs,omitempty"`
	RetailPrice *Money            `json:"retail_price,omitempty"`
	Origin      string            `json:"origin,omitempty"`
	Destination string            `json:"destination,omitempty"`
	Departure   string            `json:"departure,omitempty"`
	Arrival     string            `json:"arrival,omitempty"`
}

// CartSnapshot is the provider's view of a cart. Raw holds the full decoded
// response body because question discovery has to scan container shapes the
// typed model does not pin down.
type CartSnapshot struct {
	ID       string                 `json:"id"`
	Currency string                 `json:"currency,omitempty"`
	Items    []LineItem             `json:"items"`
	Raw      map[string]interface{} `json:"-"`
}

// ItemForTrip returns the line item matching tripID, or the first item when
// none matches, or nil for an empty cart.
func (c *CartSnapshot) ItemForTrip(tripID string) *LineItem {
	if c == nil {
		return nil
	}
	for i := range c.Items {
		if c.Items[i].TripID == tripID {
			return &c.Items[i]
		}
	}
	if len(c.Items) > 0 {
		return &c.Items[0]
	}
	return nil
}

// SeatAssignment places one passenger on one segment.
type SeatAssignment struct {
	SegmentID string `json:"segment_id"`
	SeatID    string `json:"seat_id"`
}

// PassengerAnswer is one question answer submitted with a passenger.
type PassengerAnswer struct {
	QuestionKey string `json:"question_key"`
	Value       string `json:"value"`
}

// Passenger is the provider wire shape of a passenger record.
type Passenger struct {
	ID            int               `json:"id"`
	FirstName     string            `json:"first_name"`
	LastName      string            `json:"last_name"`
	Category      string            `json:"category"`
	Age           int               `json:"age"`
	Address       string            `json:"address"`
	Phone         string            `json:"phone"`
	SelectedSeats []SeatAssignment  `json:"selected_seats"`
	Answers       []PassengerAnswer `json:"answers"`
}

// Purchaser is the provider wire shape of the purchaser contact block.
type Purchaser struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
}

// PassengerUpdateResponse is what the provider returns from a passenger
// update. RetailPrice, when present, is the preferred invoice total.
type PassengerUpdateResponse struct {
	Success     bool                   `json:"success"`
	RetailPrice *Money                 `json:"retail_price,omitempty"`
	Raw         map[string]interface{} `json:"-"`
}

// Charges is the provider's current charge set for a cart.
type Charges struct {
	ID       string `json:"id"`
	Total    int64  `json:"total"`
	Currency string `json:"currency"`
}
