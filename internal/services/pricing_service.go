package services

import (
	"github.com/shopspring/decimal"

	"github.com/routemart/checkout-backend/internal/config"
)

// PricingService applies the retail markup used at search time. Invoicing
// reuses it when the only available total is a raw provider charge, so the
// invoiced amount always matches what the customer was quoted.
type PricingService struct {
	config config.PricingConfig
}

// NewPricingService creates a new PricingService.
func NewPricingService(cfg config.PricingConfig) *PricingService {
	return &PricingService{config: cfg}
}

// Adjust applies the configured markup to a raw charge total in minor units
// and rounds the result up to the configured increment.
func (s *PricingService) Adjust(rawCents int64) int64 {
	if rawCents <= 0 {
		return rawCents
	}

	markup := decimal.NewFromFloat(s.config.MarkupPercent).
		Div(decimal.NewFromInt(100)).
		Add(decimal.NewFromInt(1))

	adjusted := decimal.NewFromInt(rawCents).Mul(markup)

	if s.config.RoundToCents > 1 {
		step := decimal.NewFromInt(s.config.RoundToCents)
		adjusted = adjusted.Div(step).Ceil().Mul(step)
	} else {
		adjusted = adjusted.Ceil()
	}

	return adjusted.IntPart()
}

// FormatMajor renders a minor-unit total as a major-unit decimal amount
// (5000 cents becomes 50.00). Invoicing APIs take major units.
func (s *PricingService) FormatMajor(cents int64) float64 {
	major, _ := decimal.NewFromInt(cents).Div(decimal.NewFromInt(100)).Round(2).Float64()
	return major
}
