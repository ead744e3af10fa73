// Package busgw is the client for the third-party trip-booking provider.
// Only the five calls the checkout pipeline needs are modeled; everything
// else the provider offers is out of scope.
package busgw

import "context"

// Gateway defines the trip-booking provider operations consumed by the
// checkout pipeline. Calls are strictly ordered by the orchestrator; every
// implementation must surface provider-side error objects as Go errors.
type Gateway interface {
	// GetCart fetches the live cart snapshot.
	GetCart(ctx context.Context, cartID string) (*CartSnapshot, error)

	// UpdateTripPassengers submits passenger records and the ticket-type
	// map for one trip of the cart.
	UpdateTripPassengers(ctx context.Context, cartID, tripID string, passengers []Passenger, ticketTypes map[string]string) (*PassengerUpdateResponse, error)

	// UpdatePurchaser submits the purchaser contact details.
	UpdatePurchaser(ctx context.Context, cartID string, purchaser Purchaser) error

	// GetLatestCharges fetches the charges reflecting all updates so far.
	GetLatestCharges(ctx context.Context, cartID string) (*Charges, error)

	// AcceptLatestCharges finalizes the given charges.
	AcceptLatestCharges(ctx context.Context, cartID string, charges *Charges) (*Charges, error)
}
