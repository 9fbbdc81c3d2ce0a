package models

import (
	"sort"

	"zeinbus/internal/booking"
)

// Trip statuses stored by the backend. Anything else counts as upcoming.
const (
	TripStatusCompleted = "completed"
	TripStatusCancelled = "cancelled"
)

// Booking is a stored trip reservation.
type Booking struct {
	ID            string              `json:"id"`
	FirstName     string              `json:"first_name"`
	LastName      string              `json:"last_name"`
	Email         string              `json:"email"`
	Phone         string              `json:"phone"`
	Destination   string              `json:"destination"`
	Date          string              `json:"date"`
	TripType      booking.TripType    `json:"trip_type"`
	TripCost      booking.Money       `json:"trip_cost"`
	Area          string              `json:"area"`
	StartPoint    string              `json:"start_point"`
	StartTime     string              `json:"start_time"`
	EndTime       string              `json:"end_time"`
	Seats         int                 `json:"seats"`
	TripStatus    string              `json:"trip_status"`
	PaymentType   booking.PaymentType `json:"payment_type"`
	PaymentStatus string              `json:"payment_status"`
	UserID        string              `json:"user_id,omitempty"`
}

// IsUpcoming reports whether the trip has neither completed nor been cancelled.
func (b *Booking) IsUpcoming() bool {
	return b.TripStatus != TripStatusCompleted && b.TripStatus != TripStatusCancelled
}

// IsCancellable reports whether the rider may still cancel the trip.
func (b *Booking) IsCancellable() bool {
	return b.IsUpcoming()
}

// StatusLabel is the rider-facing status text.
func (b *Booking) StatusLabel() string {
	switch b.TripStatus {
	case TripStatusCompleted:
		return "مكتملة"
	case TripStatusCancelled:
		return "ملغية"
	}
	return "قادمة"
}

// SplitTrips separates upcoming trips from past ones. Upcoming trips are
// ordered soonest first, past trips most recent first.
func SplitTrips(all []Booking) (upcoming, past []Booking) {
	upcoming = make([]Booking, 0, len(all))
	past = make([]Booking, 0)
	for _, b := range all {
		if b.IsUpcoming() {
			upcoming = append(upcoming, b)
		} else {
			past = append(past, b)
		}
	}
	sort.SliceStable(upcoming, func(i, j int) bool { return upcoming[i].Date < upcoming[j].Date })
	sort.SliceStable(past, func(i, j int) bool { return past[i].Date > past[j].Date })
	return upcoming, past
}

// FindBooking returns the booking with id.
func FindBooking(all []Booking, id string) *Booking {
	for i := range all {
		if all[i].ID == id {
			return &all[i]
		}
	}
	return nil
}
