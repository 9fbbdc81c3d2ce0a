package booking

import (
	"context"
	"strings"
	"time"
)

// Window is the dashboard state a submission is checked against.
type Window struct {
	Open              bool
	AvailableBookings int
	// Booked seats per leg for the window. The backend does not aggregate
	// these yet, so they are usually zero.
	OutboundBooked int
	ReturnBooked   int
	Departure      DepartureTime
}

// Remaining is the raw capacity left for t in this window.
func (w Window) Remaining(t TripType) int {
	return max(0, RemainingSeats(t, w.AvailableBookings, w.OutboundBooked, w.ReturnBooked))
}

// SeatCap is the seat ceiling offered to the rider for t.
func (w Window) SeatCap(t TripType) int {
	return CalculateAvailableSeats(t, w.AvailableBookings, w.OutboundBooked, w.ReturnBooked)
}

// Draft is an in-progress booking form.
type Draft struct {
	UserID      string
	FirstName   string
	LastName    string
	Email       string
	Phone       string
	Destination string
	Area        string

	TripType    TripType
	Date        string
	StartPoint  string
	Seats       int
	EndTime     string
	PaymentType PaymentType
	Cost        Money
}

// SetTripType changes the trip type. Switching to an outbound-only trip
// drops a previously chosen return time.
func (d *Draft) SetTripType(t TripType) {
	d.TripType = t
	if t == TripOutbound {
		d.EndTime = ""
	}
}

// Recompute refreshes Cost from the current trip type, seats and pickup point.
func (d *Draft) Recompute(p Pricing, points []PricePoint) {
	d.Cost = p.TripCost(d.TripType, d.Seats, FindPoint(points, d.StartPoint))
}

// Validate checks d against w in a fixed order and returns the first
// failure as a *ValidationError.
func Validate(d Draft, w Window) error {
	if !w.Open {
		return ErrConfigUnavailable
	}
	if !d.TripType.Valid() {
		return ErrMissingTripType
	}
	if d.TripType.NeedsStartPoint() && strings.TrimSpace(d.StartPoint) == "" {
		return ErrMissingStartPoint
	}
	if d.Seats <= 0 {
		return ErrInvalidSeatCount
	}
	if d.Seats > MaxSeatsPerBooking {
		return ErrSeatLimit
	}
	if remaining := w.Remaining(d.TripType); d.Seats > remaining {
		return ErrSeatAvailability(remaining)
	}
	if strings.TrimSpace(d.Date) == "" {
		return ErrMissingDate
	}
	if d.TripType.NeedsReturnTime() && strings.TrimSpace(d.EndTime) == "" {
		return ErrMissingReturnTime
	}
	return nil
}

// Submission is the payload of the external create-booking call.
type Submission struct {
	FirstName   string      `json:"first_name"`
	LastName    string      `json:"last_name"`
	Email       string      `json:"email"`
	Phone       string      `json:"phone"`
	Destination string      `json:"destination"`
	Date        string      `json:"date"`
	TripType    TripType    `json:"trip_type"`
	TripCost    Money       `json:"trip_cost"`
	Area        string      `json:"area"`
	StartPoint  string      `json:"start_point"`
	StartTime   string      `json:"start_time"`
	EndTime     string      `json:"end_time"`
	Seats       int         `json:"seats"`
	PaymentType PaymentType `json:"payment_type"`
	UserID      string      `json:"user_id"`
	PublishedAt time.Time   `json:"published_at"`
}

// BuildSubmission assembles the payload of a validated draft. The start time
// comes from the dashboard; the end time is the rider's choice, or
// DefaultDepartureTime when the trip type has none.
func BuildSubmission(d Draft, w Window, now time.Time) Submission {
	endTime := strings.TrimSpace(d.EndTime)
	if endTime == "" {
		endTime = DefaultDepartureTime
	}
	payment := d.PaymentType
	if payment == "" {
		payment = PaymentCash
	}
	return Submission{
		FirstName:   d.FirstName,
		LastName:    d.LastName,
		Email:       d.Email,
		Phone:       d.Phone,
		Destination: d.Destination,
		Date:        d.Date,
		TripType:    d.TripType,
		TripCost:    d.Cost,
		Area:        d.Area,
		StartPoint:  d.StartPoint,
		StartTime:   w.Departure.Resolve(),
		EndTime:     endTime,
		Seats:       d.Seats,
		PaymentType: payment,
		UserID:      d.UserID,
		PublishedAt: now.UTC(),
	}
}

// Creator is the external create-booking call. It returns the id of the
// created booking.
type Creator interface {
	CreateBooking(ctx context.Context, s Submission) (string, error)
}

// Submit validates d, builds its payload and hands it to creator. Creator
// errors are returned unchanged and never retried.
func Submit(ctx context.Context, creator Creator, d Draft, w Window, now time.Time) (string, Submission, error) {
	if err := Validate(d, w); err != nil {
		return "", Submission{}, err
	}
	sub := BuildSubmission(d, w, now)
	id, err := creator.CreateBooking(ctx, sub)
	if err != nil {
		return "", sub, err
	}
	return id, sub, nil
}
