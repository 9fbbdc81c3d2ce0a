package booking

import (
	"errors"
	"fmt"
)

// Code identifies why a booking form was rejected.
type Code string

const (
	CodeConfigUnavailable               Code = "config_unavailable"
	CodeMissingTripType                 Code = "missing_trip_type"
	CodeMissingStartPoint               Code = "missing_start_point"
	CodeInvalidSeatCount                Code = "invalid_seat_count"
	CodeSeatCountExceedsPerBookingLimit Code = "seat_count_exceeds_per_booking_limit"
	CodeSeatCountExceedsAvailability    Code = "seat_count_exceeds_availability"
	CodeMissingDate                     Code = "missing_date"
	CodeMissingReturnTime               Code = "missing_return_time"
)

// ValidationError is the single, first-failing reason a form was rejected.
// Title and Detail are the rider-facing texts.
type ValidationError struct {
	Code      Code   `json:"code"`
	Title     string `json:"title"`
	Detail    string `json:"detail,omitempty"`
	Remaining int    `json:"remaining,omitempty"`
}

func (e *ValidationError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Title, e.Detail)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Title)
}

// Is matches another *ValidationError with the same code.
func (e *ValidationError) Is(target error) bool {
	var t *ValidationError
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

var (
	ErrConfigUnavailable = &ValidationError{
		Code:   CodeConfigUnavailable,
		Title:  "الحجز غير متاح حالياً",
		Detail: "يرجى المحاولة في وقت لاحق",
	}
	ErrMissingTripType   = &ValidationError{Code: CodeMissingTripType, Title: "يرجى اختيار نوع الرحلة"}
	ErrMissingStartPoint = &ValidationError{Code: CodeMissingStartPoint, Title: "يرجى اختيار نقطة التحرك"}
	ErrInvalidSeatCount  = &ValidationError{Code: CodeInvalidSeatCount, Title: "يرجى اختيار عدد المقاعد"}
	ErrSeatLimit         = &ValidationError{
		Code:   CodeSeatCountExceedsPerBookingLimit,
		Title:  "تجاوزت الحد الأقصى للمقاعد",
		Detail: fmt.Sprintf("يمكنك حجز %d مقاعد كحد أقصى", MaxSeatsPerBooking),
	}
	ErrMissingDate       = &ValidationError{Code: CodeMissingDate, Title: "يرجى اختيار تاريخ الرحلة"}
	ErrMissingReturnTime = &ValidationError{Code: CodeMissingReturnTime, Title: "يرجى اختيار وقت العودة"}
)

// ErrSeatAvailability reports that fewer seats remain than were requested.
func ErrSeatAvailability(remaining int) *ValidationError {
	return &ValidationError{
		Code:      CodeSeatCountExceedsAvailability,
		Title:     "عدد المقاعد المتاحة غير كافي",
		Detail:    fmt.Sprintf("عدد المقاعد المتاحة حالياً: %d", remaining),
		Remaining: remaining,
	}
}

// AsValidation unwraps a *ValidationError from err.
func AsValidation(err error) (*ValidationError, bool) {
	var v *ValidationError
	if errors.As(err, &v) {
		return v, true
	}
	return nil, false
}

// IsValidation reports whether err is a form validation failure.
func IsValidation(err error) bool {
	_, ok := AsValidation(err)
	return ok
}
