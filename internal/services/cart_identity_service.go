package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/routemart/checkout-backend/internal/docstore"
	"github.com/routemart/checkout-backend/internal/models"
)

// ticketTypePrefix is the durable-id prefix for the single ticket type
// currently issued.
const ticketTypePrefix = "E"

// branchCodes maps recognized branch aliases to their durable-id code.
// Anything unrecognized falls back to the head-office code.
var branchCodes = map[string]string{
	"south":   "02",
	"central": "03",
	"online":  "04",
}

const defaultBranchCode = "01"

// CartIdentityService maps provider cart ids to durable booking ids.
// Resolution is idempotent: the first request for a provider cart id mints a
// new id inside a counter transaction, every later request reuses it.
type CartIdentityService struct {
	store  docstore.CartDocumentStore
	logger *logrus.Logger
}

// NewCartIdentityService creates a new CartIdentityService.
func NewCartIdentityService(store docstore.CartDocumentStore, logger *logrus.Logger) *CartIdentityService {
	return &CartIdentityService{store: store, logger: logger}
}

// Resolve returns the cart document for a provider cart id, minting a new
// durable id when none exists yet.
func (s *CartIdentityService) Resolve(ctx context.Context, providerCartID, branch string) (*models.CartDocument, error) {
	doc, err := s.store.FindByProviderCartID(ctx, providerCartID)
	if err == nil {
		return doc, nil
	}
	if !errors.Is(err, docstore.ErrCartNotFound) {
		return nil, fmt.Errorf("cart identity lookup failed: %w", err)
	}

	branchCode := resolveBranchCode(branch)
	doc, err = s.store.MintCart(ctx, providerCartID, ticketTypePrefix, branchCode)
	if err != nil {
		return nil, fmt.Errorf("cart identity minting failed: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"durable_id":       doc.DurableID,
		"provider_cart_id": providerCartID,
		"branch_code":      branchCode,
	}).Info("Minted durable cart id")

	return doc, nil
}

func resolveBranchCode(branch string) string {
	if code, ok := branchCodes[strings.ToLower(strings.TrimSpace(branch))]; ok {
		return code
	}
	return defaultBranchCode
}
