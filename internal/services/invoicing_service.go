package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/routemart/checkout-backend/internal/config"
)

// InvoicingEnvironmentURLs maps environment names to the invoicing API base
// URLs.
var InvoicingEnvironmentURLs = map[string]string{
	"sandbox":    "https://sandbox.invoicing.routemart.io/api/v1",
	"production": "https://invoicing.routemart.io/api/v1",
}

// InvoiceLine is one line of an invoice draft.
type InvoiceLine struct {
	Description   string  `json:"description"`
	Quantity      int     `json:"quantity"`
	UnitPrice     float64 `json:"unit_price"`
	AmountUntaxed float64 `json:"amount_untaxed"`
	AmountTotal   float64 `json:"amount_total"`
	Currency      string  `json:"currency"`
}

// Invoicer is the invoicing operations the invoice builder depends on.
type Invoicer interface {
	IsConfigured() bool
	FindOrCreatePartner(ctx context.Context, name, email, phone string) (int64, error)
	FindOrCreateInvoice(ctx context.Context, partnerID int64, paymentReference string, lines []InvoiceLine, expiry time.Time) (int64, error)
	PostInvoice(ctx context.Context, invoiceID int64) error
}

// InvoicingService is the HTTP client for the external invoicing platform.
type InvoicingService struct {
	config *config.InvoicingConfig
	logger *logrus.Logger
	client *http.Client
}

// NewInvoicingService creates a new InvoicingService.
func NewInvoicingService(cfg *config.InvoicingConfig, logger *logrus.Logger) *InvoicingService {
	return &InvoicingService{
		config: cfg,
		logger: logger,
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

// IsConfigured reports whether invoicing credentials are present. Hold
// requests require invoicing; everything else runs without it.
func (s *InvoicingService) IsConfigured() bool {
	return s.config.APIKey != ""
}

type partnerRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

type partnerResponse struct {
	PartnerID int64  `json:"partner_id"`
	Message   string `json:"message,omitempty"`
}

// FindOrCreatePartner resolves the invoicing-side customer record for the
// purchaser, creating it if the email is unknown.
func (s *InvoicingService) FindOrCreatePartner(ctx context.Context, name, email, phone string) (int64, error) {
	var resp partnerResponse
	err := s.post(ctx, "/partners/find-or-create", partnerRequest{Name: name, Email: email, Phone: phone}, &resp)
	if err != nil {
		return 0, fmt.Errorf("failed to find or create partner: %w", err)
	}
	if resp.PartnerID == 0 {
		return 0, fmt.Errorf("invoicing service returned no partner id: %s", resp.Message)
	}
	return resp.PartnerID, nil
}

type invoiceRequest struct {
	PartnerID        int64         `json:"partner_id"`
	PaymentReference string        `json:"payment_reference"`
	Lines            []InvoiceLine `json:"lines"`
	ExpiresAt        string        `json:"expires_at"`
}

type invoiceResponse struct {
	InvoiceID int64  `json:"invoice_id"`
	Message   string `json:"message,omitempty"`
}

// FindOrCreateInvoice creates a draft invoice, or returns the existing one
// when the payment reference was already invoiced.
func (s *InvoicingService) FindOrCreateInvoice(ctx context.Context, partnerID int64, paymentReference string, lines []InvoiceLine, expiry time.Time) (int64, error) {
	req := invoiceRequest{
		PartnerID:        partnerID,
		PaymentReference: paymentReference,
		Lines:            lines,
		ExpiresAt:        expiry.UTC().Format(time.RFC3339),
	}

	var resp invoiceResponse
	if err := s.post(ctx, "/invoices/find-or-create", req, &resp); err != nil {
		return 0, fmt.Errorf("failed to find or create invoice: %w", err)
	}
	if resp.InvoiceID == 0 {
		return 0, fmt.Errorf("invoicing service returned no invoice id: %s", resp.Message)
	}
	return resp.InvoiceID, nil
}

type postInvoiceResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// PostInvoice finalizes a draft invoice.
func (s *InvoicingService) PostInvoice(ctx context.Context, invoiceID int64) error {
	var resp postInvoiceResponse
	if err := s.post(ctx, fmt.Sprintf("/invoices/%d/post", invoiceID), nil, &resp); err != nil {
		return fmt.Errorf("failed to post invoice %d: %w", invoiceID, err)
	}
	if !resp.Success {
		return fmt.Errorf("invoicing service rejected posting invoice %d: %s", invoiceID, resp.Message)
	}
	return nil
}

func (s *InvoicingService) post(ctx context.Context, path string, payload, out interface{}) error {
	baseURL, ok := InvoicingEnvironmentURLs[s.config.Environment]
	if !ok {
		return fmt.Errorf("unknown invoicing environment: %s", s.config.Environment)
	}

	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.config.APIKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("invoicing request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		s.logger.WithFields(logrus.Fields{
			"path":   path,
			"status": resp.StatusCode,
			"body":   string(data),
		}).Error("Invoicing API error")
		return fmt.Errorf("invoicing API returned status %d", resp.StatusCode)
	}

	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}
