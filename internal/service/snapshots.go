package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"zeinbus/internal/events"
	"zeinbus/internal/metrics"
	"zeinbus/internal/models"
)

// Snapshot is the read-only configuration the booking rules run against.
// A nil Dashboard means the configuration could not be loaded.
type Snapshot struct {
	Dashboard    *models.Dashboard
	Areas        []models.Area
	Universities []models.University
	LoadedAt     time.Time
}

// SnapshotSource fetches the configuration from the backend.
type SnapshotSource interface {
	Dashboard(ctx context.Context, token string) (*models.Dashboard, error)
	Areas(ctx context.Context, token string) ([]models.Area, error)
	Universities(ctx context.Context, token string) ([]models.University, error)
	InvalidateSnapshots(ctx context.Context) error
}

// Snapshots holds the latest snapshot and refreshes it on a schedule.
type Snapshots struct {
	source SnapshotSource
	bus    *events.EventBus
	logger *zerolog.Logger

	mu      sync.RWMutex
	current *Snapshot
	stale   bool
}

func NewSnapshots(source SnapshotSource, bus *events.EventBus, logger *zerolog.Logger) *Snapshots {
	return &Snapshots{source: source, bus: bus, logger: logger}
}

// Get returns the current snapshot, loading it on first use and after
// Expire. A failed reload keeps serving the previous snapshot.
func (s *Snapshots) Get(ctx context.Context) (*Snapshot, error) {
	s.mu.RLock()
	snap, stale := s.current, s.stale
	s.mu.RUnlock()
	if snap != nil && !stale {
		return snap, nil
	}

	fresh, err := s.Refresh(ctx)
	if err != nil {
		if snap != nil {
			s.logger.Warn().Err(err).Msg("snapshot reload failed, serving previous")
			return snap, nil
		}
		return nil, err
	}
	return fresh, nil
}

// Expire marks the snapshot out of date, e.g. after a booking changed seat
// availability. The backend read cache is dropped as well so that the next
// load reaches the backend.
func (s *Snapshots) Expire(ctx context.Context) {
	if err := s.source.InvalidateSnapshots(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("snapshot cache invalidation failed")
	}
	s.mu.Lock()
	s.stale = true
	s.mu.Unlock()
}

// Refresh reloads the snapshot through the backend read cache. On failure
// the previous snapshot stays in place.
func (s *Snapshots) Refresh(ctx context.Context) (*Snapshot, error) {
	snap, err := s.load(ctx)
	if err != nil {
		metrics.IncSnapshotRefresh("error")
		return nil, err
	}

	s.mu.Lock()
	s.current = snap
	s.stale = false
	s.mu.Unlock()

	metrics.IncSnapshotRefresh("ok")
	if ev, err := events.New(events.SnapshotRefreshed, "", map[string]any{
		"areas":        len(snap.Areas),
		"booking_open": snap.Dashboard != nil && snap.Dashboard.BookingOpen,
	}); err == nil {
		if err := s.bus.Publish(ev); err != nil {
			s.logger.Warn().Err(err).Msg("snapshot event handler failed")
		}
	}
	return snap, nil
}

func (s *Snapshots) load(ctx context.Context) (*Snapshot, error) {
	dash, err := s.source.Dashboard(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("load dashboard: %w", err)
	}
	areas, err := s.source.Areas(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("load areas: %w", err)
	}
	universities, err := s.source.Universities(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("load universities: %w", err)
	}
	return &Snapshot{
		Dashboard:    dash,
		Areas:        areas,
		Universities: universities,
		LoadedAt:     time.Now(),
	}, nil
}

// StartRefresh schedules Refresh with a cron spec (for example "@every 5m")
// until ctx is done.
func (s *Snapshots) StartRefresh(ctx context.Context, spec string) error {
	c := cron.New()
	_, err := c.AddFunc(spec, func() {
		start := time.Now()
		if _, err := s.Refresh(ctx); err != nil {
			s.logger.Error().Err(err).Msg("snapshot refresh failed")
			return
		}
		s.logger.Debug().Dur("took", time.Since(start)).Msg("snapshot refreshed")
	})
	if err != nil {
		return fmt.Errorf("schedule snapshot refresh %q: %w", spec, err)
	}
	c.Start()

	go func() {
		<-ctx.Done()
		<-c.Stop().Done()
	}()
	return nil
}
