package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"zeinbus/internal/booking"
	"zeinbus/internal/db"
	"zeinbus/internal/events"
	"zeinbus/internal/export"
	"zeinbus/internal/metrics"
	"zeinbus/internal/models"
	"zeinbus/internal/session"
)

var (
	ErrBookingNotFound      = errors.New("booking not found")
	ErrNotCancellable       = errors.New("booking can no longer be cancelled")
	ErrSubmissionInProgress = errors.New("a submission with this idempotency key is in progress")
)

// pendingSubmissionTTL bounds how long an unfinished attempt holds its key.
const pendingSubmissionTTL = 2 * time.Minute

// Backend is the remote booking backend as seen by the booking flow.
type Backend interface {
	SnapshotSource
	User(ctx context.Context, token, id string) (*models.User, error)
	Notifications(ctx context.Context, token, userID string) ([]models.Notification, error)
	MarkNotificationRead(ctx context.Context, token, id string) error
	CreateBooking(ctx context.Context, token string, s booking.Submission) (string, error)
	CancelBooking(ctx context.Context, token, id string) error
}

// SubmissionLog records every submit attempt under the user's idempotency key.
type SubmissionLog interface {
	ReserveSubmission(ctx context.Context, r *db.SubmissionRecord, staleBefore time.Time) (*db.SubmissionRecord, error)
	RecordSubmission(ctx context.Context, r *db.SubmissionRecord) error
	ListSubmissions(ctx context.Context, userID string, limit int) ([]db.SubmissionRecord, error)
}

// Options configure the booking service.
type Options struct {
	Location           *time.Location
	DefaultDestination string
}

// BookingService runs the booking flow for every front end.
type BookingService struct {
	backend   Backend
	snapshots *Snapshots
	log       SubmissionLog
	bus       *events.EventBus
	logger    *zerolog.Logger

	loc         *time.Location
	destination string
	now         func() time.Time

	pricingMu sync.RWMutex
	pricing   booking.Pricing
}

func NewBookingService(
	backend Backend,
	snapshots *Snapshots,
	log SubmissionLog,
	bus *events.EventBus,
	opts Options,
	logger *zerolog.Logger,
) *BookingService {
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}
	return &BookingService{
		backend:     backend,
		snapshots:   snapshots,
		log:         log,
		bus:         bus,
		logger:      logger,
		loc:         loc,
		destination: opts.DefaultDestination,
		now:         time.Now,
		pricing:     booking.NewPricing(booking.DefaultFares),
	}
}

// SetPricing replaces the default fares, e.g. after fares.yaml changed.
func (s *BookingService) SetPricing(p booking.Pricing) {
	s.pricingMu.Lock()
	s.pricing = p
	s.pricingMu.Unlock()
}

// Pricing returns the fares currently in effect.
func (s *BookingService) Pricing() booking.Pricing {
	s.pricingMu.RLock()
	defer s.pricingMu.RUnlock()
	return s.pricing
}

func (s *BookingService) localNow() time.Time {
	return s.now().In(s.loc)
}

// snapshot returns the current snapshot. A load failure yields an empty
// snapshot so that validation reports the booking configuration as unavailable.
func (s *BookingService) snapshot(ctx context.Context) *Snapshot {
	snap, err := s.snapshots.Get(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("booking configuration unavailable")
		return &Snapshot{}
	}
	return snap
}

// AvailableDays lists the dates a rider may book right now.
func (s *BookingService) AvailableDays(ctx context.Context) []booking.SelectableDate {
	snap := s.snapshot(ctx)
	if snap.Dashboard == nil {
		return nil
	}
	return booking.GenerateAvailableDays(snap.Dashboard.WindowConfig(), s.localNow())
}

// Areas lists the service areas with their pickup points.
func (s *BookingService) Areas(ctx context.Context) []models.Area {
	return s.snapshot(ctx).Areas
}

// Universities lists the destination campuses.
func (s *BookingService) Universities(ctx context.Context) []models.University {
	return s.snapshot(ctx).Universities
}

// pointsFor returns the pickup points of area, or of every area when area is
// unknown.
func pointsFor(snap *Snapshot, area string) []booking.PricePoint {
	if a := models.FindArea(snap.Areas, area); a != nil {
		return a.Places
	}
	var all []booking.PricePoint
	for _, a := range snap.Areas {
		all = append(all, a.Places...)
	}
	return all
}

// QuoteRequest is a partially filled form.
type QuoteRequest struct {
	TripType   booking.TripType `json:"trip_type"`
	Seats      string           `json:"seats"`
	Area       string           `json:"area"`
	StartPoint string           `json:"start_point"`
}

// Quote is what the form shows for a QuoteRequest.
type Quote struct {
	Cost        booking.Money        `json:"cost"`
	SeatCap     int                  `json:"seat_cap"`
	SeatOptions []int                `json:"seat_options"`
	ReturnTimes []booking.TimeOption `json:"return_times"`
	StartPoints []string             `json:"start_points"`
	Notes       string               `json:"notes,omitempty"`
}

// Quote prices a partially filled form and lists the choices left.
func (s *BookingService) Quote(ctx context.Context, req QuoteRequest) Quote {
	snap := s.snapshot(ctx)
	window := snap.Dashboard.Window(0, 0)
	points := pointsFor(snap, req.Area)

	seats, _ := booking.ParseSeats(req.Seats)
	cost := s.Pricing().TripCost(req.TripType, seats, booking.FindPoint(points, req.StartPoint))
	seatCap := window.SeatCap(req.TripType)

	q := Quote{
		Cost:        cost,
		SeatCap:     seatCap,
		SeatOptions: booking.SeatOptions(seatCap),
		ReturnTimes: snap.Dashboard.ReturnTimes(),
		StartPoints: models.FindArea(snap.Areas, req.Area).PlaceNames(),
	}
	if snap.Dashboard != nil {
		q.Notes = snap.Dashboard.Notes
	}
	if q.SeatOptions == nil {
		q.SeatOptions = []int{}
	}
	if q.ReturnTimes == nil {
		q.ReturnTimes = []booking.TimeOption{}
	}
	if q.StartPoints == nil {
		q.StartPoints = []string{}
	}
	return q
}

// NewDraft pre-fills a booking form from the rider profile.
func NewDraft(user *models.User, days []booking.SelectableDate, destination string) booking.Draft {
	d := booking.Draft{PaymentType: booking.PaymentCash, Destination: destination}
	if user != nil {
		d.UserID = user.ID
		d.FirstName = user.FirstName
		d.LastName = user.LastName
		d.Email = user.Email
		d.Phone = user.Phone
		d.Area = user.Area
		d.StartPoint = user.StartPoint
		if user.University != "" {
			d.Destination = user.University
		}
	}
	if len(days) > 0 {
		d.Date = days[0].Value
	}
	return d
}

// StartDraft loads the rider profile and returns a pre-filled form.
func (s *BookingService) StartDraft(ctx context.Context, sess *session.Session) (booking.Draft, error) {
	user, err := s.backend.User(ctx, sess.Token, sess.UserID)
	if err != nil {
		return booking.Draft{}, err
	}
	return NewDraft(user, s.AvailableDays(ctx), s.destination), nil
}

// SubmitResult is the outcome of an accepted submission.
type SubmitResult struct {
	BookingID      string             `json:"booking_id"`
	IdempotencyKey string             `json:"idempotency_key"`
	Submission     booking.Submission `json:"submission"`
	Duplicate      bool               `json:"duplicate,omitempty"`
}

// Submit validates d and creates the booking. Validation failures come back
// as *booking.ValidationError, backend failures unchanged. The idempotency key
// is reserved for the user before the backend is called: a key that was
// already submitted returns the earlier booking, and a key whose attempt is
// still running returns ErrSubmissionInProgress.
func (s *BookingService) Submit(ctx context.Context, sess *session.Session, d booking.Draft, key string) (*SubmitResult, error) {
	if key == "" {
		key = uuid.NewString()
	}
	logger := s.logger.With().Str("idempotency_key", key).Str("user_id", sess.UserID).Logger()
	now := s.localNow()

	rec := &db.SubmissionRecord{IdempotencyKey: key, UserID: sess.UserID, CreatedAt: now}
	held, err := s.log.ReserveSubmission(ctx, rec, now.Add(-pendingSubmissionTTL))
	if err != nil {
		return nil, fmt.Errorf("reserve submission: %w", err)
	}
	if held != nil {
		if held.Status == db.SubmissionSubmitted {
			return &SubmitResult{BookingID: held.BookingID, IdempotencyKey: key, Duplicate: true}, nil
		}
		logger.Info().Msg("submission already in progress")
		return nil, ErrSubmissionInProgress
	}

	snap := s.snapshot(ctx)

	d.UserID = sess.UserID
	d.Recompute(s.Pricing(), pointsFor(snap, d.Area))

	d.Date = strings.TrimSpace(d.Date)
	if d.Date != "" && snap.Dashboard != nil {
		days := booking.GenerateAvailableDays(snap.Dashboard.WindowConfig(), now)
		if !booking.ContainsDate(days, d.Date) {
			logger.Info().Str("date", d.Date).Msg("date outside booking window")
			d.Date = ""
		}
	}

	rec.TripDate = d.Date
	rec.TripType = string(d.TripType)
	rec.Seats = d.Seats
	rec.TripCost = d.Cost

	creator := creatorFunc(func(ctx context.Context, sub booking.Submission) (string, error) {
		return s.backend.CreateBooking(ctx, sess.Token, sub)
	})
	id, sub, err := booking.Submit(ctx, creator, d, snap.Dashboard.Window(0, 0), now)

	switch v, isValidation := booking.AsValidation(err); {
	case err == nil:
		rec.Status = db.SubmissionSubmitted
		rec.BookingID = id
		s.snapshots.Expire(ctx)
		metrics.IncBookingSubmitted(db.SubmissionSubmitted)
		s.publish(events.BookingCreated, sess.UserID, map[string]any{"booking_id": id, "date": sub.Date, "trip_type": sub.TripType, "seats": sub.Seats, "cost": sub.TripCost})
		logger.Info().Str("booking_id", id).Str("date", sub.Date).Msg("booking submitted")
	case isValidation:
		rec.Status = db.SubmissionRejected
		rec.Error = string(v.Code)
		metrics.IncBookingSubmitted(db.SubmissionRejected)
		metrics.IncBookingRejected(string(v.Code))
		s.publish(events.BookingRejected, sess.UserID, v)
		logger.Info().Str("code", string(v.Code)).Msg("booking rejected")
	default:
		rec.Status = db.SubmissionFailed
		rec.Error = err.Error()
		metrics.IncBookingSubmitted(db.SubmissionFailed)
		s.publish(events.BookingFailed, sess.UserID, map[string]any{"error": err.Error()})
		logger.Error().Err(err).Msg("backend rejected booking")
	}

	if logErr := s.log.RecordSubmission(context.WithoutCancel(ctx), rec); logErr != nil {
		logger.Error().Err(logErr).Msg("failed to record submission")
	}

	if err != nil {
		return nil, err
	}
	return &SubmitResult{BookingID: id, IdempotencyKey: key, Submission: sub}, nil
}

type creatorFunc func(ctx context.Context, s booking.Submission) (string, error)

func (f creatorFunc) CreateBooking(ctx context.Context, s booking.Submission) (string, error) {
	return f(ctx, s)
}

// Attempts lists the rider's latest submit attempts, newest first.
func (s *BookingService) Attempts(ctx context.Context, sess *session.Session, limit int) ([]db.SubmissionRecord, error) {
	return s.log.ListSubmissions(ctx, sess.UserID, limit)
}

// Trips returns the rider's trips split into upcoming and past.
func (s *BookingService) Trips(ctx context.Context, sess *session.Session) (upcoming, past []models.Booking, err error) {
	user, err := s.backend.User(ctx, sess.Token, sess.UserID)
	if err != nil {
		return nil, nil, err
	}
	upcoming, past = models.SplitTrips(user.Bookings)
	return upcoming, past, nil
}

// Cancel cancels one of the rider's upcoming trips.
func (s *BookingService) Cancel(ctx context.Context, sess *session.Session, bookingID string) error {
	user, err := s.backend.User(ctx, sess.Token, sess.UserID)
	if err != nil {
		return err
	}
	b := models.FindBooking(user.Bookings, bookingID)
	if b == nil {
		return ErrBookingNotFound
	}
	if !b.IsCancellable() {
		return ErrNotCancellable
	}
	if err := s.backend.CancelBooking(ctx, sess.Token, bookingID); err != nil {
		return err
	}

	s.snapshots.Expire(ctx)
	metrics.IncBookingCancelled()
	s.publish(events.BookingCancelled, sess.UserID, map[string]any{"booking_id": bookingID, "date": b.Date})
	s.logger.Info().Str("booking_id", bookingID).Str("user_id", sess.UserID).Msg("booking cancelled")
	return nil
}

// ExportTrips writes the rider's trips as an xlsx workbook to w.
func (s *BookingService) ExportTrips(ctx context.Context, sess *session.Session, w io.Writer) error {
	upcoming, past, err := s.Trips(ctx, sess)
	if err != nil {
		return err
	}
	if err := export.WriteTrips(w, upcoming, past); err != nil {
		return fmt.Errorf("export trips: %w", err)
	}
	return nil
}

// Notifications lists the rider's notifications.
func (s *BookingService) Notifications(ctx context.Context, sess *session.Session) ([]models.Notification, error) {
	return s.backend.Notifications(ctx, sess.Token, sess.UserID)
}

// MarkNotificationRead flags one of the rider's notifications as read.
func (s *BookingService) MarkNotificationRead(ctx context.Context, sess *session.Session, id string) error {
	return s.backend.MarkNotificationRead(ctx, sess.Token, id)
}

func (s *BookingService) publish(eventType, userID string, payload any) {
	ev, err := events.New(eventType, userID, payload)
	if err != nil {
		s.logger.Warn().Err(err).Str("event", eventType).Msg("failed to encode event")
		return
	}
	if err := s.bus.Publish(ev); err != nil {
		s.logger.Warn().Err(err).Str("event", eventType).Msg("event handler failed")
	}
}
