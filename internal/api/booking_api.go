package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"zeinbus/internal/booking"
	"zeinbus/internal/db"
	"zeinbus/internal/metrics"
	"zeinbus/internal/models"
	"zeinbus/internal/service"
	"zeinbus/internal/session"
)

const (
	defaultAttempts = 20
	maxAttempts     = 100
)

// LoginRequest is the body of POST /api/login.
type LoginRequest struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
}

// LoginResponse carries the token to send as X-Session-Token.
type LoginResponse struct {
	Token     string     `json:"token"`
	UserID    string     `json:"user_id"`
	Username  string     `json:"username"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// SeatCount is a seat count sent as a JSON number or string. Values that
// do not start with digits decode to 0 and fail validation later.
type SeatCount int

func (n *SeatCount) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	var s string
	switch v := raw.(type) {
	case string:
		s = v
	case float64:
		s = strconv.FormatFloat(v, 'f', -1, 64)
	}
	seats, _ := booking.ParseSeats(s)
	*n = SeatCount(seats)
	return nil
}

// BookingRequest is the body of POST /api/bookings. The cost and user are
// always derived server-side; a trip_cost sent by the client is ignored.
type BookingRequest struct {
	FirstName      string              `json:"first_name"`
	LastName       string              `json:"last_name"`
	Email          string              `json:"email"`
	Phone          string              `json:"phone"`
	Destination    string              `json:"destination"`
	Area           string              `json:"area"`
	TripType       string              `json:"trip_type"`
	Date           string              `json:"date"`
	StartPoint     string              `json:"start_point"`
	Seats          SeatCount           `json:"seats"`
	EndTime        string              `json:"end_time"`
	PaymentType    booking.PaymentType `json:"payment_type"`
	IdempotencyKey string              `json:"idempotency_key,omitempty"`
}

// tripType maps a backend tag or latin alias to its TripType. Unknown values
// pass through so that validation reports them.
func tripType(s string) booking.TripType {
	if t, ok := booking.ParseTripType(s); ok {
		return t
	}
	return booking.TripType(strings.TrimSpace(s))
}

func (r BookingRequest) draft() booking.Draft {
	d := booking.Draft{
		FirstName:   r.FirstName,
		LastName:    r.LastName,
		Email:       r.Email,
		Phone:       r.Phone,
		Destination: r.Destination,
		Area:        r.Area,
		Date:        r.Date,
		StartPoint:  r.StartPoint,
		Seats:       int(r.Seats),
		EndTime:     r.EndTime,
		PaymentType: r.PaymentType,
	}
	d.SetTripType(tripType(r.TripType))
	return d
}

func draftResponse(d booking.Draft) BookingRequest {
	return BookingRequest{
		FirstName:   d.FirstName,
		LastName:    d.LastName,
		Email:       d.Email,
		Phone:       d.Phone,
		Destination: d.Destination,
		Area:        d.Area,
		TripType:    string(d.TripType),
		Date:        d.Date,
		StartPoint:  d.StartPoint,
		Seats:       SeatCount(d.Seats),
		EndTime:     d.EndTime,
		PaymentType: d.PaymentType,
	}
}

// Attempt is one entry of GET /api/bookings/attempts.
type Attempt struct {
	IdempotencyKey string           `json:"idempotency_key"`
	Date           string           `json:"date,omitempty"`
	TripType       booking.TripType `json:"trip_type,omitempty"`
	Seats          int              `json:"seats"`
	Cost           booking.Money    `json:"cost"`
	Status         string           `json:"status"`
	Error          string           `json:"error,omitempty"`
	BookingID      string           `json:"booking_id,omitempty"`
	CreatedAt      time.Time        `json:"created_at"`
}

func attemptResponse(r db.SubmissionRecord) Attempt {
	return Attempt{
		IdempotencyKey: r.IdempotencyKey,
		Date:           r.TripDate,
		TripType:       booking.TripType(r.TripType),
		Seats:          r.Seats,
		Cost:           r.TripCost,
		Status:         r.Status,
		Error:          r.Error,
		BookingID:      r.BookingID,
		CreatedAt:      r.CreatedAt,
	}
}

// TripsResponse is the body of GET /api/bookings.
type TripsResponse struct {
	Upcoming []models.Booking `json:"upcoming"`
	Past     []models.Booking `json:"past"`
}

// handleLogin exchanges backend credentials for a local session token.
// POST /api/login
func (s *HTTPServer) handleLogin(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("login")

	var req LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Identifier) == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "identifier and password are required")
		return
	}

	key, token := session.NewAPIKey()
	sess, err := s.sessions.Login(r.Context(), key, req.Identifier, req.Password)
	if err != nil {
		s.logger.Info().Err(err).Msg("login failed")
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}

	resp := LoginResponse{Token: token, UserID: sess.UserID, Username: sess.Username}
	if !sess.ExpiresAt.IsZero() {
		resp.ExpiresAt = &sess.ExpiresAt
	}
	writeJSON(w, http.StatusOK, resp)
}

// DELETE /api/session
func (s *HTTPServer) handleLogout(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("logout")

	if err := s.sessions.Logout(r.Context(), sessionFrom(r.Context()).Key); err != nil {
		s.logger.Error().Err(err).Msg("logout failed")
		writeError(w, http.StatusInternalServerError, "logout failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GET /api/booking/days
func (s *HTTPServer) handleDays(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("booking_days")

	days := s.flow.AvailableDays(r.Context())
	if days == nil {
		days = []booking.SelectableDate{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"days": days})
}

// GET /api/booking/areas
func (s *HTTPServer) handleAreas(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("booking_areas")

	areas := s.flow.Areas(r.Context())
	if areas == nil {
		areas = []models.Area{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"areas": areas})
}

// GET /api/booking/universities
func (s *HTTPServer) handleUniversities(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("booking_universities")

	universities := s.flow.Universities(r.Context())
	if universities == nil {
		universities = []models.University{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"universities": universities})
}

// handleQuote prices a partially filled form.
// POST /api/booking/quote
func (s *HTTPServer) handleQuote(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("booking_quote")

	var req struct {
		TripType   string    `json:"trip_type"`
		Seats      SeatCount `json:"seats"`
		Area       string    `json:"area"`
		StartPoint string    `json:"start_point"`
	}
	if err := decodeForm(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	writeJSON(w, http.StatusOK, s.flow.Quote(r.Context(), service.QuoteRequest{
		TripType:   tripType(req.TripType),
		Seats:      strconv.Itoa(int(req.Seats)),
		Area:       req.Area,
		StartPoint: req.StartPoint,
	}))
}

// GET /api/booking/draft
func (s *HTTPServer) handleDraft(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("booking_draft")

	d, err := s.flow.StartDraft(r.Context(), sessionFrom(r.Context()))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, draftResponse(d))
}

// handleSubmit validates and creates a booking.
// POST /api/bookings
func (s *HTTPServer) handleSubmit(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("booking_submit")

	var req BookingRequest
	if err := decodeForm(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	key := strings.TrimSpace(r.Header.Get(IdempotencyHeader))
	if key == "" {
		key = strings.TrimSpace(req.IdempotencyKey)
	}

	res, err := s.flow.Submit(r.Context(), sessionFrom(r.Context()), req.draft(), key)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	status := http.StatusCreated
	if res.Duplicate {
		status = http.StatusOK
	}
	writeJSON(w, status, res)
}

// GET /api/bookings
func (s *HTTPServer) handleTrips(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("booking_trips")

	upcoming, past, err := s.flow.Trips(r.Context(), sessionFrom(r.Context()))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, TripsResponse{Upcoming: upcoming, Past: past})
}

// handleAttempts lists the rider's recent submit attempts.
// GET /api/bookings/attempts?limit=20
func (s *HTTPServer) handleAttempts(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("booking_attempts")

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 || limit > maxAttempts {
		limit = defaultAttempts
	}

	records, err := s.flow.Attempts(r.Context(), sessionFrom(r.Context()), limit)
	if err != nil {
		s.logger.Error().Err(err).Msg("list attempts failed")
		writeError(w, http.StatusInternalServerError, "could not list attempts")
		return
	}
	out := make([]Attempt, 0, len(records))
	for _, rec := range records {
		out = append(out, attemptResponse(rec))
	}
	writeJSON(w, http.StatusOK, map[string]any{"attempts": out})
}

// POST /api/bookings/{id}/cancel
func (s *HTTPServer) handleCancel(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("booking_cancel")

	id := mux.Vars(r)["id"]
	if err := s.flow.Cancel(r.Context(), sessionFrom(r.Context()), id); err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cancelled", "booking_id": id})
}

// GET /api/bookings/export.xlsx
func (s *HTTPServer) handleExport(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("booking_export")

	// Rendered in memory first; a failed export must still get an error status.
	var buf bytes.Buffer
	if err := s.flow.ExportTrips(r.Context(), sessionFrom(r.Context()), &buf); err != nil {
		s.writeServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="trips.xlsx"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// GET /api/notifications
func (s *HTTPServer) handleNotifications(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("notifications")

	items, err := s.flow.Notifications(r.Context(), sessionFrom(r.Context()))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	if items == nil {
		items = []models.Notification{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"notifications": items,
		"unread":        models.UnreadCount(items),
	})
}

// POST /api/notifications/{id}/read
func (s *HTTPServer) handleNotificationRead(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("notification_read")

	if err := s.flow.MarkNotificationRead(r.Context(), sessionFrom(r.Context()), mux.Vars(r)["id"]); err != nil {
		s.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
