package backend

import (
	"context"
	"fmt"
	"time"

	"zeinbus/internal/booking"
	"zeinbus/internal/models"
)

const (
	cacheKeyDashboard    = "dashboard"
	cacheKeyAreas        = "areas"
	cacheKeyUniversities = "universities"
)

// LoginResult is the outcome of a successful login.
type LoginResult struct {
	JWT  string `json:"jwt"`
	User struct {
		ID       string `json:"id"`
		Username string `json:"username"`
		Email    string `json:"email"`
	} `json:"user"`
}

// Login exchanges rider credentials for a session token.
func (c *Client) Login(ctx context.Context, identifier, password string) (*LoginResult, error) {
	var out struct {
		Login LoginResult `json:"login"`
	}
	vars := map[string]any{"identifier": identifier, "password": password}
	if err := c.do(ctx, "", "Login", mutationLogin, vars, &out); err != nil {
		return nil, err
	}
	return &out.Login, nil
}

// Dashboard fetches the booking configuration. It returns nil without error
// when the backend has none configured.
func (c *Client) Dashboard(ctx context.Context, token string) (*models.Dashboard, error) {
	var cached models.Dashboard
	if c.readCache(ctx, cacheKeyDashboard, &cached) {
		return &cached, nil
	}

	var out struct {
		BookingDashboards collection[models.Dashboard] `json:"bookingDashboards"`
	}
	if err := c.do(ctx, token, "GetBookingDashboards", queryDashboard, nil, &out); err != nil {
		return nil, err
	}
	if len(out.BookingDashboards.Data) == 0 {
		return nil, nil
	}
	d := out.BookingDashboards.Data[0].Attributes
	c.writeCache(ctx, cacheKeyDashboard, d)
	return &d, nil
}

// Areas fetches the service areas and their priced pickup points.
func (c *Client) Areas(ctx context.Context, token string) ([]models.Area, error) {
	var cached []models.Area
	if c.readCache(ctx, cacheKeyAreas, &cached) {
		return cached, nil
	}

	var out struct {
		Areas collection[areaAttrs] `json:"areas"`
	}
	if err := c.do(ctx, token, "GetAreas", queryAreas, nil, &out); err != nil {
		return nil, err
	}
	areas := make([]models.Area, 0, len(out.Areas.Data))
	for _, e := range out.Areas.Data {
		areas = append(areas, toArea(e))
	}
	c.writeCache(ctx, cacheKeyAreas, areas)
	return areas, nil
}

// Universities fetches the destination campuses.
func (c *Client) Universities(ctx context.Context, token string) ([]models.University, error) {
	var cached []models.University
	if c.readCache(ctx, cacheKeyUniversities, &cached) {
		return cached, nil
	}

	var out struct {
		Universities collection[universityAttrs] `json:"universities"`
	}
	if err := c.do(ctx, token, "GetUniversities", queryUniversities, nil, &out); err != nil {
		return nil, err
	}
	list := make([]models.University, 0, len(out.Universities.Data))
	for _, e := range out.Universities.Data {
		list = append(list, toUniversity(e))
	}
	c.writeCache(ctx, cacheKeyUniversities, list)
	return list, nil
}

// User fetches a rider profile with its bookings. Bookings change with every
// submit, so the profile is never cached.
func (c *Client) User(ctx context.Context, token, id string) (*models.User, error) {
	var out struct {
		User single[userAttrs] `json:"usersPermissionsUser"`
	}
	if err := c.do(ctx, token, "GetUserById", queryUser, map[string]any{"id": id}, &out); err != nil {
		return nil, err
	}
	if out.User.Data == nil {
		return nil, fmt.Errorf("user %s not found", id)
	}
	u := toUser(*out.User.Data)
	return &u, nil
}

// Notifications lists the rider's notifications.
func (c *Client) Notifications(ctx context.Context, token, userID string) ([]models.Notification, error) {
	var out struct {
		Notifications collection[notificationAttrs] `json:"notifications"`
	}
	if err := c.do(ctx, token, "GetNotifications", queryNotifications, map[string]any{"userId": userID}, &out); err != nil {
		return nil, err
	}
	list := make([]models.Notification, 0, len(out.Notifications.Data))
	for _, e := range out.Notifications.Data {
		list = append(list, models.Notification{
			ID:      e.ID,
			Title:   e.Attributes.Title,
			Message: e.Attributes.Message,
			Read:    e.Attributes.Read,
		})
	}
	return list, nil
}

// MarkNotificationRead flags a notification as read.
func (c *Client) MarkNotificationRead(ctx context.Context, token, id string) error {
	return c.do(ctx, token, "UpdateNotification", mutationNotificationRead, map[string]any{"id": id}, nil)
}

// CreateBooking submits a booking and returns the backend id.
func (c *Client) CreateBooking(ctx context.Context, token string, s booking.Submission) (string, error) {
	vars := map[string]any{
		"firstName":   s.FirstName,
		"lastName":    s.LastName,
		"email":       s.Email,
		"phone":       s.Phone,
		"destination": s.Destination,
		"date":        s.Date,
		"tripType":    string(s.TripType),
		"tripCost":    s.TripCost.Float(),
		"area":        s.Area,
		"startPoint":  s.StartPoint,
		"startTime":   s.StartTime,
		"endTime":     s.EndTime,
		"seats":       s.Seats,
		"paymentType": string(s.PaymentType),
		"userId":      s.UserID,
		"publishedAt": s.PublishedAt.UTC().Format(time.RFC3339Nano),
	}
	var out struct {
		CreateBooking struct {
			Data *struct {
				ID string `json:"id"`
			} `json:"data"`
		} `json:"createBooking"`
	}
	if err := c.do(ctx, token, "CreateBooking", mutationCreateBooking, vars, &out); err != nil {
		return "", err
	}
	if out.CreateBooking.Data == nil {
		return "", &Error{Operation: "CreateBooking", StatusCode: 200, Messages: []string{"booking was not created"}}
	}
	return out.CreateBooking.Data.ID, nil
}

// CancelBooking sets the trip status of a booking to cancelled.
func (c *Client) CancelBooking(ctx context.Context, token, id string) error {
	vars := map[string]any{
		"id":   id,
		"data": map[string]any{"trip_status": models.TripStatusCancelled},
	}
	return c.do(ctx, token, "UpdateBooking", mutationUpdateBooking, vars, nil)
}
