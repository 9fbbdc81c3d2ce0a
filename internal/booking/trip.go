// Package booking holds the booking-eligibility and pricing rules: which dates
// can be booked, what a trip costs, how many seats may be offered and whether
// a filled form may be submitted.
//
// Everything in this package is pure. Callers pass already-fetched snapshots
// and the current time; nothing here performs I/O or keeps state between calls.
package booking

import "strings"

// TripType is the leg selection of a booking. The values are the tags the
// backend stores and returns.
type TripType string

const (
	TripOutbound  TripType = "ذهاب"
	TripReturn    TripType = "عودة"
	TripRoundTrip TripType = "ذهاب وعودة"
)

// TripTypes lists the selectable trip types in display order.
var TripTypes = []TripType{TripOutbound, TripReturn, TripRoundTrip}

var tripTypeAliases = map[string]TripType{
	"outbound":   TripOutbound,
	"one_way":    TripOutbound,
	"return":     TripReturn,
	"round_trip": TripRoundTrip,
	"roundtrip":  TripRoundTrip,
}

// ParseTripType accepts a backend tag or one of the latin aliases
// (outbound, one_way, return, round_trip).
func ParseTripType(s string) (TripType, bool) {
	s = strings.TrimSpace(s)
	for _, t := range TripTypes {
		if s == string(t) {
			return t, true
		}
	}
	t, ok := tripTypeAliases[strings.ToLower(s)]
	return t, ok
}

// Valid reports whether t is one of the known trip types.
func (t TripType) Valid() bool {
	switch t {
	case TripOutbound, TripReturn, TripRoundTrip:
		return true
	}
	return false
}

// NeedsStartPoint reports whether a pickup point must be chosen.
// A Return booking does not require one.
func (t TripType) NeedsStartPoint() bool {
	return t == TripOutbound || t == TripRoundTrip
}

// NeedsReturnTime reports whether a return time slot must be chosen.
func (t TripType) NeedsReturnTime() bool {
	return t == TripReturn || t == TripRoundTrip
}

// Label is the display text shown to riders.
func (t TripType) Label() string {
	switch t {
	case TripOutbound:
		return "ذهاب إلى الجامعة"
	case TripReturn:
		return "عودة من الجامعة"
	case TripRoundTrip:
		return "ذهاب وعودة"
	}
	return "اختر نوع الرحلة"
}

// PaymentType is how the rider intends to pay.
type PaymentType string

const (
	PaymentCash   PaymentType = "cash"
	PaymentCard   PaymentType = "card"
	PaymentWallet PaymentType = "wallet"
)

// PaymentTypes lists the payment options in display order.
var PaymentTypes = []PaymentType{PaymentCash, PaymentCard, PaymentWallet}

// ParsePaymentType is case-insensitive. An empty string yields cash.
func ParsePaymentType(s string) (PaymentType, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return PaymentCash, true
	}
	for _, p := range PaymentTypes {
		if s == string(p) {
			return p, true
		}
	}
	return "", false
}

func (p PaymentType) Label() string {
	switch p {
	case PaymentCash:
		return "كاش"
	case PaymentCard:
		return "بطاقة ائتمان"
	case PaymentWallet:
		return "محفظة إلكترونية"
	}
	return "اختر طريقة الدفع"
}
