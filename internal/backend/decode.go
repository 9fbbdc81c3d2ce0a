package backend

import (
	"zeinbus/internal/booking"
	"zeinbus/internal/models"
)

// The backend wraps every record as {id, attributes} inside a data envelope.

type entity[T any] struct {
	ID         string `json:"id"`
	Attributes T      `json:"attributes"`
}

type collection[T any] struct {
	Data []entity[T] `json:"data"`
}

type single[T any] struct {
	Data *entity[T] `json:"data"`
}

type placeAttrs struct {
	PlaceName      string   `json:"place_name"`
	OneWayPrice    *float64 `json:"one_way_price"`
	ReturnPrice    *float64 `json:"return_price"`
	RoundTripPrice *float64 `json:"round_trip_price"`
	Timing         []string `json:"timing"`
}

type areaAttrs struct {
	Name   string                 `json:"name"`
	Places collection[placeAttrs] `json:"places"`
}

type collegeAttrs struct {
	FacultyName string `json:"faculty_name"`
}

type universityAttrs struct {
	Name     string                   `json:"university_name"`
	Colleges collection[collegeAttrs] `json:"colleges"`
}

type bookingAttrs struct {
	FirstName     string   `json:"first_name"`
	LastName      string   `json:"last_name"`
	Email         string   `json:"email"`
	Phone         string   `json:"phone"`
	Destination   string   `json:"destination"`
	Date          string   `json:"date"`
	TripType      string   `json:"trip_type"`
	TripCost      *float64 `json:"trip_cost"`
	Area          string   `json:"area"`
	StartPoint    string   `json:"start_point"`
	StartTime     string   `json:"start_time"`
	EndTime       string   `json:"end_time"`
	Seats         int      `json:"seats"`
	TripStatus    string   `json:"trip_status"`
	PaymentType   string   `json:"payment_type"`
	PaymentStatus string   `json:"payment_status"`
}

type photoAttrs struct {
	URL string `json:"url"`
}

type userAttrs struct {
	Username     string                   `json:"username"`
	FirstName    string                   `json:"first_name"`
	LastName     string                   `json:"last_name"`
	Area         string                   `json:"area"`
	Phone        string                   `json:"phone_number"`
	Email        string                   `json:"email"`
	StartPoint   string                   `json:"start_point"`
	University   string                   `json:"university"`
	Faculty      string                   `json:"faculty"`
	Confirmed    bool                     `json:"confirmed"`
	Subscription string                   `json:"subscription"`
	Photo        single[photoAttrs]       `json:"photo"`
	Bookings     collection[bookingAttrs] `json:"bookings"`
}

type notificationAttrs struct {
	Title   string `json:"title"`
	Message string `json:"message"`
	Read    bool   `json:"read"`
}

// money converts a backend amount in pounds. Absent means zero.
func money(v *float64) booking.Money {
	if v == nil {
		return 0
	}
	return booking.MoneyFromFloat(*v)
}

func toArea(e entity[areaAttrs]) models.Area {
	area := models.Area{ID: e.ID, Name: e.Attributes.Name, Places: make([]booking.PricePoint, 0, len(e.Attributes.Places.Data))}
	for _, p := range e.Attributes.Places.Data {
		area.Places = append(area.Places, booking.PricePoint{
			Name:           p.Attributes.PlaceName,
			OneWayPrice:    money(p.Attributes.OneWayPrice),
			ReturnPrice:    money(p.Attributes.ReturnPrice),
			RoundTripPrice: money(p.Attributes.RoundTripPrice),
			Timing:         p.Attributes.Timing,
		})
	}
	return area
}

func toUniversity(e entity[universityAttrs]) models.University {
	u := models.University{ID: e.ID, Name: e.Attributes.Name}
	for _, c := range e.Attributes.Colleges.Data {
		u.Colleges = append(u.Colleges, models.College{ID: c.ID, Name: c.Attributes.FacultyName})
	}
	return u
}

func toBooking(e entity[bookingAttrs], userID string) models.Booking {
	a := e.Attributes
	return models.Booking{
		ID:            e.ID,
		FirstName:     a.FirstName,
		LastName:      a.LastName,
		Email:         a.Email,
		Phone:         a.Phone,
		Destination:   a.Destination,
		Date:          a.Date,
		TripType:      booking.TripType(a.TripType),
		TripCost:      money(a.TripCost),
		Area:          a.Area,
		StartPoint:    a.StartPoint,
		StartTime:     a.StartTime,
		EndTime:       a.EndTime,
		Seats:         a.Seats,
		TripStatus:    a.TripStatus,
		PaymentType:   booking.PaymentType(a.PaymentType),
		PaymentStatus: a.PaymentStatus,
		UserID:        userID,
	}
}

func toUser(e entity[userAttrs]) models.User {
	a := e.Attributes
	u := models.User{
		ID:           e.ID,
		Username:     a.Username,
		FirstName:    a.FirstName,
		LastName:     a.LastName,
		Email:        a.Email,
		Phone:        a.Phone,
		Area:         a.Area,
		StartPoint:   a.StartPoint,
		University:   a.University,
		Faculty:      a.Faculty,
		Confirmed:    a.Confirmed,
		Subscription: a.Subscription,
		Bookings:     make([]models.Booking, 0, len(a.Bookings.Data)),
	}
	if a.Photo.Data != nil {
		u.PhotoURL = a.Photo.Data.Attributes.URL
	}
	for _, b := range a.Bookings.Data {
		u.Bookings = append(u.Bookings, toBooking(b, e.ID))
	}
	return u
}
