package booking

import (
	"math"
	"strconv"
	"strings"
)

// Fares are per-seat prices.
type Fares struct {
	OneWay    Money `yaml:"one_way" json:"one_way"`
	Return    Money `yaml:"return" json:"return"`
	RoundTrip Money `yaml:"round_trip" json:"round_trip"`
}

// DefaultFares apply when a pickup point has no price of its own.
var DefaultFares = Fares{OneWay: Pounds(50), Return: Pounds(50), RoundTrip: Pounds(90)}

// For returns the per-seat fare of t, or 0 for an unknown trip type.
func (f Fares) For(t TripType) Money {
	switch t {
	case TripOutbound:
		return f.OneWay
	case TripReturn:
		return f.Return
	case TripRoundTrip:
		return f.RoundTrip
	}
	return 0
}

// PricePoint is a pickup location and its fare table. A zero price means the
// point has no price for that trip type.
type PricePoint struct {
	Name           string   `json:"place_name"`
	OneWayPrice    Money    `json:"one_way_price,omitempty"`
	ReturnPrice    Money    `json:"return_price,omitempty"`
	RoundTripPrice Money    `json:"round_trip_price,omitempty"`
	Timing         []string `json:"timing,omitempty"`
}

// FindPoint looks a pickup point up by name.
func FindPoint(points []PricePoint, name string) *PricePoint {
	if name == "" {
		return nil
	}
	for i := range points {
		if points[i].Name == name {
			return &points[i]
		}
	}
	return nil
}

// Pricing resolves trip costs against a set of default fares.
type Pricing struct {
	Defaults Fares
}

// NewPricing returns a resolver; missing defaults are taken from DefaultFares.
func NewPricing(defaults Fares) Pricing {
	if defaults.OneWay <= 0 {
		defaults.OneWay = DefaultFares.OneWay
	}
	if defaults.Return <= 0 {
		defaults.Return = DefaultFares.Return
	}
	if defaults.RoundTrip <= 0 {
		defaults.RoundTrip = DefaultFares.RoundTrip
	}
	return Pricing{Defaults: defaults}
}

// SeatPrice is the per-seat price of t at point. Fields the point leaves
// unset fall back to the defaults; a nil point uses the defaults directly.
func (p Pricing) SeatPrice(t TripType, point *PricePoint) Money {
	if point == nil {
		return p.Defaults.For(t)
	}
	fares := Fares{
		OneWay:    orDefault(point.OneWayPrice, p.Defaults.OneWay),
		Return:    orDefault(point.ReturnPrice, p.Defaults.Return),
		RoundTrip: orDefault(point.RoundTripPrice, p.Defaults.RoundTrip),
	}
	return fares.For(t)
}

// TripCost is seats times the per-seat price. It is 0 when the trip type is
// unset or unknown, seats is not positive, or the product does not fit.
func (p Pricing) TripCost(t TripType, seats int, point *PricePoint) Money {
	if !t.Valid() || seats <= 0 {
		return 0
	}
	price := p.SeatPrice(t, point)
	if price > 0 && int64(seats) > math.MaxInt64/int64(price) {
		return 0
	}
	return price * Money(seats)
}

// CalculateTripCost prices a booking against DefaultFares. seats is the raw
// form value; empty or non-numeric input costs 0.
func CalculateTripCost(t TripType, seats string, point *PricePoint) Money {
	n, ok := ParseSeats(seats)
	if !ok {
		return 0
	}
	return NewPricing(DefaultFares).TripCost(t, n, point)
}

// ParseSeats reads a raw seat count from its leading digits, after optional
// whitespace and sign, so "2.5" and "2 seats" are 2. It reports false when
// there are no leading digits or the number does not fit in an int.
func ParseSeats(s string) (int, bool) {
	s = strings.TrimSpace(s)
	end := 0
	if end < len(s) && (s[end] == '+' || s[end] == '-') {
		end++
	}
	digits := end
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == digits {
		return 0, false
	}
	n, err := strconv.Atoi(s[:end])
	if err != nil {
		return 0, false
	}
	return n, true
}

func orDefault(v, def Money) Money {
	if v <= 0 {
		return def
	}
	return v
}
