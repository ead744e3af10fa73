package utils

import (
	ua "github.com/mssola/user_agent"
)

// Booking sources recorded on the relational cart row.
const (
	BookingSourceWeb    = "web"
	BookingSourceMobile = "mobile"
	BookingSourceAPI    = "api"
)

// DetectBookingSource classifies the caller from its User-Agent string so
// the cart record can distinguish web checkout, mobile app checkout, and
// server-to-server callers.
func DetectBookingSource(userAgent string) string {
	if userAgent == "" {
		return BookingSourceAPI
	}

	parser := ua.New(userAgent)
	if parser.Bot() {
		return BookingSourceAPI
	}
	if parser.Mobile() {
		return BookingSourceMobile
	}
	name, _ := parser.Browser()
	if name == "" {
		return BookingSourceAPI
	}
	return BookingSourceWeb
}
