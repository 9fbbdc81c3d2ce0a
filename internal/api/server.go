// Package api serves the booking flow over HTTP for the web front end.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"zeinbus/internal/booking"
	"zeinbus/internal/db"
	"zeinbus/internal/models"
	"zeinbus/internal/service"
	"zeinbus/internal/session"
)

// SessionHeader carries the opaque token returned by POST /api/login.
const SessionHeader = "X-Session-Token"

// IdempotencyHeader lets a client retry a submission safely.
const IdempotencyHeader = "Idempotency-Key"

// BookingFlow is the part of the booking service exposed over HTTP.
type BookingFlow interface {
	AvailableDays(ctx context.Context) []booking.SelectableDate
	Areas(ctx context.Context) []models.Area
	Universities(ctx context.Context) []models.University
	Quote(ctx context.Context, req service.QuoteRequest) service.Quote
	StartDraft(ctx context.Context, sess *session.Session) (booking.Draft, error)
	Submit(ctx context.Context, sess *session.Session, d booking.Draft, key string) (*service.SubmitResult, error)
	Attempts(ctx context.Context, sess *session.Session, limit int) ([]db.SubmissionRecord, error)
	Trips(ctx context.Context, sess *session.Session) (upcoming, past []models.Booking, err error)
	Cancel(ctx context.Context, sess *session.Session, bookingID string) error
	ExportTrips(ctx context.Context, sess *session.Session, w io.Writer) error
	Notifications(ctx context.Context, sess *session.Session) ([]models.Notification, error)
	MarkNotificationRead(ctx context.Context, sess *session.Session, id string) error
}

// Sessions resolves riders from their session tokens.
type Sessions interface {
	Login(ctx context.Context, key, identifier, password string) (*session.Session, error)
	Get(ctx context.Context, key string) (*session.Session, error)
	Logout(ctx context.Context, key string) error
}

// ReadyFunc reports whether the service can take traffic.
type ReadyFunc func(ctx context.Context) error

// HTTPServer exposes the booking flow as JSON endpoints.
type HTTPServer struct {
	flow     BookingFlow
	sessions Sessions
	ready    ReadyFunc
	logger   *zerolog.Logger
	server   *http.Server
}

func NewHTTPServer(port int, allowedOrigins []string, flow BookingFlow, sessions Sessions, ready ReadyFunc, logger *zerolog.Logger) *HTTPServer {
	s := &HTTPServer{
		flow:     flow,
		sessions: sessions,
		ready:    ready,
		logger:   logger,
	}

	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.handler(allowedOrigins),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
	}
	return s
}

// Handler returns the root handler with middleware applied.
func (s *HTTPServer) Handler() http.Handler {
	return s.server.Handler
}

func (s *HTTPServer) handler(allowedOrigins []string) http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/readyz", s.handleReady).Methods(http.MethodGet)

	r.HandleFunc("/api/login", s.handleLogin).Methods(http.MethodPost)
	r.HandleFunc("/api/booking/days", s.handleDays).Methods(http.MethodGet)
	r.HandleFunc("/api/booking/areas", s.handleAreas).Methods(http.MethodGet)
	r.HandleFunc("/api/booking/universities", s.handleUniversities).Methods(http.MethodGet)
	r.HandleFunc("/api/booking/quote", s.handleQuote).Methods(http.MethodPost)

	authed := r.PathPrefix("/api").Subrouter()
	authed.Use(s.requireSession)
	authed.HandleFunc("/session", s.handleLogout).Methods(http.MethodDelete)
	authed.HandleFunc("/booking/draft", s.handleDraft).Methods(http.MethodGet)
	authed.HandleFunc("/bookings", s.handleSubmit).Methods(http.MethodPost)
	authed.HandleFunc("/bookings", s.handleTrips).Methods(http.MethodGet)
	authed.HandleFunc("/bookings/attempts", s.handleAttempts).Methods(http.MethodGet)
	authed.HandleFunc("/bookings/export.xlsx", s.handleExport).Methods(http.MethodGet)
	authed.HandleFunc("/bookings/{id}/cancel", s.handleCancel).Methods(http.MethodPost)
	authed.HandleFunc("/notifications", s.handleNotifications).Methods(http.MethodGet)
	authed.HandleFunc("/notifications/{id}/read", s.handleNotificationRead).Methods(http.MethodPost)

	var h http.Handler = r
	if len(allowedOrigins) > 0 {
		h = handlers.CORS(
			handlers.AllowedOrigins(allowedOrigins),
			handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions}),
			handlers.AllowedHeaders([]string{"Content-Type", SessionHeader, IdempotencyHeader}),
		)(h)
	}
	return handlers.RecoveryHandler(handlers.RecoveryLogger(recoveryLogger{s.logger}))(h)
}

// Start serves until Shutdown is called.
func (s *HTTPServer) Start() error {
	s.logger.Info().Str("addr", s.server.Addr).Msg("HTTP API listening")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the server gracefully.
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

type sessionKey struct{}

func sessionFrom(ctx context.Context) *session.Session {
	sess, _ := ctx.Value(sessionKey{}).(*session.Session)
	return sess
}

func (s *HTTPServer) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := strings.TrimSpace(r.Header.Get(SessionHeader))
		if token == "" {
			writeError(w, http.StatusUnauthorized, "missing "+SessionHeader)
			return
		}

		sess, err := s.sessions.Get(r.Context(), session.APIKey(token))
		switch {
		case errors.Is(err, session.ErrNoSession), errors.Is(err, session.ErrExpired):
			writeError(w, http.StatusUnauthorized, err.Error())
			return
		case err != nil:
			s.logger.Error().Err(err).Msg("session lookup failed")
			writeError(w, http.StatusInternalServerError, "session lookup failed")
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), sessionKey{}, sess)))
	})
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *HTTPServer) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		if err := s.ready(r.Context()); err != nil {
			writeError(w, http.StatusServiceUnavailable, err.Error())
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func decodeJSON(r *http.Request, out any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(out)
}

// decodeForm decodes a booking form. Forms may carry client-side fields such
// as trip_cost, so unknown fields are ignored.
func decodeForm(r *http.Request, out any) error {
	return json.NewDecoder(r.Body).Decode(out)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

type validationResponse struct {
	Code      booking.Code `json:"code"`
	Title     string       `json:"title"`
	Detail    string       `json:"detail"`
	Remaining *int         `json:"remaining,omitempty"`
}

// writeServiceError maps booking flow errors to HTTP statuses. Anything not
// recognised came from the backend and is relayed as a bad gateway.
func (s *HTTPServer) writeServiceError(w http.ResponseWriter, err error) {
	if v, ok := booking.AsValidation(err); ok {
		resp := validationResponse{Code: v.Code, Title: v.Title, Detail: v.Detail}
		if v.Code == booking.CodeSeatCountExceedsAvailability {
			resp.Remaining = &v.Remaining
		}
		writeJSON(w, http.StatusUnprocessableEntity, resp)
		return
	}

	switch {
	case errors.Is(err, service.ErrBookingNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrNotCancellable), errors.Is(err, service.ErrSubmissionInProgress):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusGatewayTimeout, "backend timed out")
	default:
		s.logger.Warn().Err(err).Msg("backend call failed")
		writeError(w, http.StatusBadGateway, err.Error())
	}
}

type recoveryLogger struct {
	logger *zerolog.Logger
}

func (l recoveryLogger) Println(v ...interface{}) {
	l.logger.Error().Msg(fmt.Sprint(v...))
}
