package busgw

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

// HTTPGatewayConfig configures the HTTP provider client.
type HTTPGatewayConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// HTTPGateway talks to the trip-booking provider over its JSON API.
type HTTPGateway struct {
	config HTTPGatewayConfig
	logger *logrus.Logger
	client *http.Client
}

// NewHTTPGateway creates a provider gateway client.
func NewHTTPGateway(cfg HTTPGatewayConfig, logger *logrus.Logger) *HTTPGateway {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &HTTPGateway{
		config: cfg,
		logger: logger,
		client: &http.Client{Timeout: timeout},
	}
}

// providerError is the provider's error envelope. Any non-empty error
// object aborts the checkout step that triggered the call.
type providerError struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// GetCart fetches the live cart. The body is decoded twice: once into the
// typed snapshot and once into a raw map for question-schema discovery.
func (g *HTTPGateway) GetCart(ctx context.Context, cartID string) (*CartSnapshot, error) {
	body, err := g.do(ctx, http.MethodGet, fmt.Sprintf("/carts/%s", cartID), nil)
	if err != nil {
		return nil, err
	}

	var snapshot CartSnapshot
	if err := json.Unmarshal(body, &snapshot); err != nil {
		return nil, fmt.Errorf("failed to parse cart snapshot: %w", err)
	}
	if err := json.Unmarshal(body, &snapshot.Raw); err != nil {
		return nil, fmt.Errorf("failed to parse cart body: %w", err)
	}
	if snapshot.ID == "" {
		snapshot.ID = cartID
	}

	return &snapshot, nil
}

// UpdateTripPassengers submits passengers and ticket types for one trip.
func (g *HTTPGateway) UpdateTripPassengers(ctx context.Context, cartID, tripID string, passengers []Passenger, ticketTypes map[string]string) (*PassengerUpdateResponse, error) {
	payload := map[string]interface{}{
		"passengers":   passengers,
		"ticket_types": ticketTypes,
	}

	g.logger.WithFields(logrus.Fields{
		"cart_id":    cartID,
		"trip_id":    tripID,
		"passengers": len(passengers),
	}).Info("Submitting trip passengers to provider")

	body, err := g.do(ctx, http.MethodPut, fmt.Sprintf("/carts/%s/trips/%s/passengers", cartID, tripID), payload)
	if err != nil {
		return nil, err
	}

	var resp PassengerUpdateResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse passenger update response: %w", err)
	}
	if err := json.Unmarshal(body, &resp.Raw); err != nil {
		return nil, fmt.Errorf("failed to parse passenger update body: %w", err)
	}

	return &resp, nil
}

// UpdatePurchaser submits the purchaser details.
func (g *HTTPGateway) UpdatePurchaser(ctx context.Context, cartID string, purchaser Purchaser) error {
	_, err := g.do(ctx, http.MethodPut, fmt.Sprintf("/carts/%s/purchaser", cartID), purchaser)
	return err
}

// GetLatestCharges fetches the current charges for a cart.
func (g *HTTPGateway) GetLatestCharges(ctx context.Context, cartID string) (*Charges, error) {
	body, err := g.do(ctx, http.MethodGet, fmt.Sprintf("/carts/%s/charges", cartID), nil)
	if err != nil {
		return nil, err
	}

	var charges Charges
	if err := json.Unmarshal(body, &charges); err != nil {
		return nil, fmt.Errorf("failed to parse charges: %w", err)
	}

	return &charges, nil
}

// AcceptLatestCharges finalizes the given charges.
func (g *HTTPGateway) AcceptLatestCharges(ctx context.Context, cartID string, charges *Charges) (*Charges, error) {
	body, err := g.do(ctx, http.MethodPut, fmt.Sprintf("/carts/%s/charges", cartID), charges)
	if err != nil {
		return nil, err
	}

	var accepted Charges
	if err := json.Unmarshal(body, &accepted); err != nil {
		return nil, fmt.Errorf("failed to parse accepted charges: %w", err)
	}

	return &accepted, nil
}

func (g *HTTPGateway) do(ctx context.Context, method, path string, payload interface{}) ([]byte, error) {
	var reqBody io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		reqBody = bytes.NewBuffer(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, g.config.BaseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if g.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+g.config.APIKey)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		g.logger.WithError(err).WithFields(logrus.Fields{
			"method": method,
			"path":   path,
		}).Error("Provider call failed")
		return nil, fmt.Errorf("provider call %s %s failed: %w", method, path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read provider response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("provider returned status %d for %s %s: %s", resp.StatusCode, method, path, string(body))
	}

	// Providers sometimes return 200 with an error object in the body.
	var perr providerError
	if err := json.Unmarshal(body, &perr); err == nil && perr.Error.Message != "" {
		return nil, fmt.Errorf("provider error %s: %s", perr.Error.Code, perr.Error.Message)
	}

	return body, nil
}
