package service

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"zeinbus/internal/backend"
	"zeinbus/internal/events"
	"zeinbus/internal/models"
)

func TestSnapshots_GetLoadsOnce(t *testing.T) {
	logger := zerolog.New(io.Discard)
	backend := &mockBackend{}
	backend.On("Dashboard", mock.Anything, "").Return(openDashboard(), nil).Once()
	backend.On("Areas", mock.Anything, "").Return(testAreas(), nil).Once()
	backend.On("Universities", mock.Anything, "").Return([]models.University{}, nil).Once()

	snaps := NewSnapshots(backend, nil, &logger)

	first, err := snaps.Get(context.Background())
	require.NoError(t, err)
	second, err := snaps.Get(context.Background())
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Len(t, first.Areas, 2)
	backend.AssertExpectations(t)
}

func TestSnapshots_RefreshFailureKeepsPrevious(t *testing.T) {
	logger := zerolog.New(io.Discard)
	backend := &mockBackend{}
	backend.On("Dashboard", mock.Anything, "").Return(openDashboard(), nil).Once()
	backend.On("Dashboard", mock.Anything, "").Return(nil, errors.New("bad gateway"))
	backend.On("Areas", mock.Anything, "").Return(testAreas(), nil)
	backend.On("Universities", mock.Anything, "").Return([]models.University{}, nil)

	bus := events.NewEventBus()
	var refreshed int
	bus.Subscribe(events.SnapshotRefreshed, func(events.Event) error { refreshed++; return nil })

	snaps := NewSnapshots(backend, bus, &logger)
	first, err := snaps.Refresh(context.Background())
	require.NoError(t, err)

	_, err = snaps.Refresh(context.Background())
	assert.ErrorContains(t, err, "bad gateway")

	current, err := snaps.Get(context.Background())
	require.NoError(t, err)
	assert.Same(t, first, current)
	assert.Equal(t, 1, refreshed)
}

func TestSnapshots_ExpireReloadsOnNextGet(t *testing.T) {
	logger := zerolog.New(io.Discard)
	closed := openDashboard()
	closed.BookingOpen = false

	backend := &mockBackend{}
	backend.On("InvalidateSnapshots", mock.Anything).Return(nil).Twice()
	backend.On("Dashboard", mock.Anything, "").Return(openDashboard(), nil).Once()
	backend.On("Dashboard", mock.Anything, "").Return(closed, nil).Once()
	backend.On("Dashboard", mock.Anything, "").Return(nil, errors.New("bad gateway")).Once()
	backend.On("Areas", mock.Anything, "").Return(testAreas(), nil)
	backend.On("Universities", mock.Anything, "").Return([]models.University{}, nil)

	snaps := NewSnapshots(backend, nil, &logger)
	ctx := context.Background()

	first, err := snaps.Get(ctx)
	require.NoError(t, err)
	assert.True(t, first.Dashboard.BookingOpen)

	snaps.Expire(ctx)
	second, err := snaps.Get(ctx)
	require.NoError(t, err)
	assert.False(t, second.Dashboard.BookingOpen)

	snaps.Expire(ctx)
	third, err := snaps.Get(ctx)
	require.NoError(t, err, "a failed reload serves the previous snapshot")
	assert.Same(t, second, third)
	backend.AssertExpectations(t)
}

func TestSnapshots_RefreshReadsThroughCache(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		var req struct {
			OperationName string `json:"operationName"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		w.Header().Set("Content-Type", "application/json")
		switch req.OperationName {
		case "GetBookingDashboards":
			_, _ = w.Write([]byte(`{"data":{"bookingDashboards":{"data":[{"attributes":{"booking_status":true,"booking_start_date":"2026-10-20","departure_time":"07:30","booking_days_count":3,"available_bookings_count":20}}]}}}`))
		case "GetAreas":
			_, _ = w.Write([]byte(`{"data":{"areas":{"data":[{"id":"1","attributes":{"name":"الشروق","places":{"data":[]}}}]}}}`))
		case "GetUniversities":
			_, _ = w.Write([]byte(`{"data":{"universities":{"data":[{"id":"1","attributes":{"university_name":"جامعة الجلالة"}}]}}}`))
		default:
			w.WriteHeader(http.StatusBadRequest)
		}
	}))
	t.Cleanup(srv.Close)

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	client := backend.NewClient(srv.URL, "", time.Second)
	client.UseRedisCache(rdb, time.Minute)

	logger := zerolog.New(io.Discard)
	snaps := NewSnapshots(client, nil, &logger)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		snap, err := snaps.Refresh(ctx)
		require.NoError(t, err)
		require.NotNil(t, snap.Dashboard)
		assert.Len(t, snap.Areas, 1)
	}
	assert.Equal(t, int32(3), calls.Load(), "one backend call per snapshot part")

	snaps.Expire(ctx)
	_, err := snaps.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, int32(6), calls.Load())
}

func TestSnapshots_StartRefreshRejectsBadSpec(t *testing.T) {
	logger := zerolog.New(io.Discard)
	snaps := NewSnapshots(&mockBackend{}, nil, &logger)

	assert.Error(t, snaps.StartRefresh(context.Background(), "not a cron spec"))
}
