package models

import (
	"strings"

	"zeinbus/internal/booking"
)

// DefaultBookingDays is used when the dashboard leaves booking_days_count unset.
const DefaultBookingDays = 7

// Dashboard is the operator-controlled booking configuration.
type Dashboard struct {
	BookingOpen       bool                  `json:"booking_status"`
	StartDate         string                `json:"booking_start_date"`
	DepartureTime     booking.DepartureTime `json:"departure_time"`
	DaysCount         int                   `json:"booking_days_count"`
	AvailableBookings int                   `json:"available_bookings_count"`
	CancelFriday      bool                  `json:"cancel_friday_booking"`
	EndOfDayTime      string                `json:"end_of_day_time"`
	Notes             string                `json:"notes"`
}

// WindowConfig derives the calendar parameters. A missing or unparsable start
// date leaves StartDate zero, which yields no selectable days.
func (d *Dashboard) WindowConfig() booking.WindowConfig {
	if d == nil {
		return booking.WindowConfig{}
	}
	cfg := booking.WindowConfig{
		DaysCount:    d.DaysCount,
		CancelFriday: d.CancelFriday,
		Cutoff:       booking.ParseCutoff(d.EndOfDayTime),
	}
	if cfg.DaysCount <= 0 {
		cfg.DaysCount = DefaultBookingDays
	}
	if s := strings.TrimSpace(d.StartDate); s != "" {
		if start, err := booking.ParseDate(s); err == nil {
			cfg.StartDate = start
		}
	}
	return cfg
}

// Window is the state a submission is validated against. A nil dashboard
// means the configuration could not be loaded and booking is closed.
func (d *Dashboard) Window(outboundBooked, returnBooked int) booking.Window {
	if d == nil {
		return booking.Window{}
	}
	return booking.Window{
		Open:              d.BookingOpen,
		AvailableBookings: d.AvailableBookings,
		OutboundBooked:    outboundBooked,
		ReturnBooked:      returnBooked,
		Departure:         d.DepartureTime,
	}
}

// ReturnTimes are the time slots offered for the return leg.
func (d *Dashboard) ReturnTimes() []booking.TimeOption {
	if d == nil {
		return nil
	}
	return d.DepartureTime.Options()
}
