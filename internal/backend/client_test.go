package backend

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zeinbus/internal/booking"
)

type capturedRequest struct {
	Auth    string
	Payload gqlRequest
}

// newBackend serves canned GraphQL responses keyed by operation name.
func newBackend(t *testing.T, responses map[string]string) (*httptest.Server, *[]capturedRequest, *int32) {
	t.Helper()
	var (
		captured []capturedRequest
		calls    int32
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		var req gqlRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		captured = append(captured, capturedRequest{Auth: r.Header.Get("Authorization"), Payload: req})

		body, ok := responses[req.OperationName]
		if !ok {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"errors":[{"message":"unknown operation"}]}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, &captured, &calls
}

const dashboardResponse = `{"data":{"bookingDashboards":{"data":[{"attributes":{
	"booking_status": true,
	"booking_start_date": "2026-10-20",
	"departure_time": "07:30",
	"booking_days_count": 5,
	"available_bookings_count": 20,
	"cancel_friday_booking": true,
	"end_of_day_time": "18:00",
	"notes": ""
}}]}}}`

const areasResponse = `{"data":{"areas":{"data":[{"id":"1","attributes":{"name":"القاهرة الجديدة","places":{"data":[
	{"id":"10","attributes":{"place_name":"الرحاب","one_way_price":45.5,"return_price":null,"round_trip_price":80,"timing":["07:00"]}},
	{"id":"11","attributes":{"place_name":"مدينتي"}},
	{"id":"12","attributes":{"place_name":"الشروق","return_price":0.4}}
]}}}]}}}`

func TestClient_Dashboard(t *testing.T) {
	srv, captured, _ := newBackend(t, map[string]string{"GetBookingDashboards": dashboardResponse})
	c := NewClient(srv.URL, "api-token", time.Second)

	d, err := c.Dashboard(context.Background(), "")
	require.NoError(t, err)
	require.NotNil(t, d)

	assert.True(t, d.BookingOpen)
	assert.Equal(t, "2026-10-20", d.StartDate)
	assert.Equal(t, 5, d.DaysCount)
	assert.Equal(t, 20, d.AvailableBookings)
	assert.Equal(t, "07:30", d.DepartureTime.Resolve())
	require.Len(t, *captured, 1)
	assert.Equal(t, "Bearer api-token", (*captured)[0].Auth)
}

func TestClient_DashboardMissing(t *testing.T) {
	srv, _, _ := newBackend(t, map[string]string{"GetBookingDashboards": `{"data":{"bookingDashboards":{"data":[]}}}`})
	c := NewClient(srv.URL, "", time.Second)

	d, err := c.Dashboard(context.Background(), "")
	require.NoError(t, err)
	assert.Nil(t, d)
}

func TestClient_Areas(t *testing.T) {
	srv, _, _ := newBackend(t, map[string]string{"GetAreas": areasResponse})
	c := NewClient(srv.URL, "", time.Second)

	areas, err := c.Areas(context.Background(), "rider-token")
	require.NoError(t, err)
	require.Len(t, areas, 1)
	require.Len(t, areas[0].Places, 3)

	rehab := areas[0].Places[0]
	assert.Equal(t, "الرحاب", rehab.Name)
	assert.Equal(t, booking.Money(4550), rehab.OneWayPrice)
	assert.Zero(t, rehab.ReturnPrice)
	assert.Equal(t, booking.Pounds(80), rehab.RoundTripPrice)
	assert.Equal(t, []string{"07:00"}, rehab.Timing)

	// Fractional fares price exactly.
	assert.Equal(t, booking.Pounds(91), booking.CalculateTripCost(booking.TripOutbound, "2", &rehab))
	assert.Equal(t, booking.Money(40), booking.CalculateTripCost(booking.TripReturn, "1", &areas[0].Places[2]))

	// Absent prices fall back to the default fares.
	assert.Equal(t, booking.Pounds(100), booking.CalculateTripCost(booking.TripReturn, "2", &areas[0].Places[1]))
}

func TestClient_RedisCache(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	srv, _, calls := newBackend(t, map[string]string{"GetAreas": areasResponse, "GetBookingDashboards": dashboardResponse})
	c := NewClient(srv.URL, "", time.Second)
	c.UseRedisCache(rdb, time.Minute)
	ctx := context.Background()

	first, err := c.Areas(ctx, "")
	require.NoError(t, err)
	second, err := c.Areas(ctx, "")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), atomic.LoadInt32(calls))
	assert.True(t, mr.Exists("zeinbus:areas"))

	d1, err := c.Dashboard(ctx, "")
	require.NoError(t, err)
	d2, err := c.Dashboard(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, d1.DepartureTime.Resolve(), d2.DepartureTime.Resolve())
	assert.Equal(t, int32(2), atomic.LoadInt32(calls))

	require.NoError(t, c.InvalidateSnapshots(ctx))
	assert.False(t, mr.Exists("zeinbus:areas"))
	assert.False(t, mr.Exists("zeinbus:dashboard"))

	_, err = c.Areas(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, int32(3), atomic.LoadInt32(calls))

	mr.FastForward(2 * time.Minute)
	assert.False(t, mr.Exists("zeinbus:areas"))
}

func TestClient_Login(t *testing.T) {
	srv, captured, _ := newBackend(t, map[string]string{
		"Login": `{"data":{"login":{"jwt":"token-1","user":{"id":"7","username":"omar","email":"omar@example.com"}}}}`,
	})
	c := NewClient(srv.URL, "", time.Second)

	res, err := c.Login(context.Background(), "omar", "secret")
	require.NoError(t, err)
	assert.Equal(t, "token-1", res.JWT)
	assert.Equal(t, "7", res.User.ID)

	vars := (*captured)[0].Payload.Variables
	assert.Equal(t, "omar", vars["identifier"])
	assert.Equal(t, "secret", vars["password"])
	assert.Empty(t, (*captured)[0].Auth)
}

func TestClient_ErrorsAreRelayed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"data":null,"errors":[{"message":"Invalid identifier or password"}]}`))
	}))
	t.Cleanup(srv.Close)
	c := NewClient(srv.URL, "", time.Second)

	_, err := c.Login(context.Background(), "omar", "wrong")
	require.Error(t, err)

	var be *Error
	require.ErrorAs(t, err, &be)
	assert.Equal(t, http.StatusBadRequest, be.StatusCode)
	assert.Equal(t, "Invalid identifier or password", err.Error())
}

func TestClient_ErrorWithoutMessages(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	t.Cleanup(srv.Close)
	c := NewClient(srv.URL, "", time.Second)

	err := c.CancelBooking(context.Background(), "t", "5")
	var be *Error
	require.ErrorAs(t, err, &be)
	assert.Equal(t, "UpdateBooking: http 502", err.Error())
}

func TestClient_GraphQLErrorWithOKStatus(t *testing.T) {
	srv, _, _ := newBackend(t, map[string]string{
		"CreateBooking": `{"data":{"createBooking":null},"errors":[{"message":"Forbidden access"}]}`,
	})
	c := NewClient(srv.URL, "", time.Second)

	_, err := c.CreateBooking(context.Background(), "t", booking.Submission{})
	require.Error(t, err)
	assert.Equal(t, "Forbidden access", err.Error())
}

func TestClient_CreateBooking(t *testing.T) {
	srv, captured, _ := newBackend(t, map[string]string{
		"CreateBooking": `{"data":{"createBooking":{"data":{"id":"99"}}}}`,
	})
	c := NewClient(srv.URL, "", time.Second)

	sub := booking.Submission{
		FirstName:   "Omar",
		Date:        "2026-10-20",
		TripType:    booking.TripRoundTrip,
		TripCost:    booking.MoneyFromFloat(180.5),
		StartTime:   "07:30",
		EndTime:     "15:00",
		Seats:       2,
		PaymentType: booking.PaymentCash,
		UserID:      "7",
		PublishedAt: time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC),
	}
	id, err := c.CreateBooking(context.Background(), "rider-token", sub)
	require.NoError(t, err)
	assert.Equal(t, "99", id)

	req := (*captured)[0]
	assert.Equal(t, "Bearer rider-token", req.Auth)
	assert.Equal(t, "ذهاب وعودة", req.Payload.Variables["tripType"])
	assert.Equal(t, 180.5, req.Payload.Variables["tripCost"])
	assert.Equal(t, float64(2), req.Payload.Variables["seats"])
	assert.Equal(t, "2026-10-19T09:00:00Z", req.Payload.Variables["publishedAt"])
}

func TestClient_CancelBooking(t *testing.T) {
	srv, captured, _ := newBackend(t, map[string]string{
		"UpdateBooking": `{"data":{"updateBooking":{"data":{"id":"5","attributes":{"trip_status":"cancelled"}}}}}`,
	})
	c := NewClient(srv.URL, "", time.Second)

	require.NoError(t, c.CancelBooking(context.Background(), "t", "5"))
	vars := (*captured)[0].Payload.Variables
	assert.Equal(t, "5", vars["id"])
	assert.Equal(t, map[string]any{"trip_status": "cancelled"}, vars["data"])
}

func TestClient_UserWithBookings(t *testing.T) {
	srv, _, _ := newBackend(t, map[string]string{
		"GetUserById": `{"data":{"usersPermissionsUser":{"data":{"id":"7","attributes":{
			"username":"omar","first_name":"Omar","last_name":"Adel","area":"القاهرة الجديدة",
			"phone_number":"0100","email":"omar@example.com","start_point":"الرحاب",
			"university":"جامعة الجلالة","faculty":"الهندسة","confirmed":true,
			"photo":{"data":null},
			"bookings":{"data":[
				{"id":"1","attributes":{"date":"2026-10-20","trip_type":"ذهاب","trip_cost":100,"seats":2,"trip_status":"pending","payment_type":"cash"}},
				{"id":"2","attributes":{"date":"2026-10-01","trip_type":"عودة","trip_cost":49.6,"seats":1,"trip_status":"completed"}}
			]}
		}}}}}`,
	})
	c := NewClient(srv.URL, "", time.Second)

	u, err := c.User(context.Background(), "t", "7")
	require.NoError(t, err)
	assert.Equal(t, "Omar Adel", u.FullName())
	assert.Empty(t, u.PhotoURL)
	require.Len(t, u.Bookings, 2)
	assert.Equal(t, booking.TripOutbound, u.Bookings[0].TripType)
	assert.Equal(t, booking.Money(4960), u.Bookings[1].TripCost)
	assert.Equal(t, "7", u.Bookings[1].UserID)
}

func TestClient_UserNotFound(t *testing.T) {
	srv, _, _ := newBackend(t, map[string]string{
		"GetUserById": `{"data":{"usersPermissionsUser":{"data":null}}}`,
	})
	c := NewClient(srv.URL, "", time.Second)

	_, err := c.User(context.Background(), "t", "404")
	assert.Error(t, err)
}

func TestClient_Notifications(t *testing.T) {
	srv, captured, _ := newBackend(t, map[string]string{
		"GetNotifications":   `{"data":{"notifications":{"data":[{"id":"3","attributes":{"title":"تنبيه","message":"تم تأكيد الرحلة","read":false}}]}}}`,
		"UpdateNotification": `{"data":{"updateNotification":{"data":{"id":"3","attributes":{"read":true}}}}}`,
	})
	c := NewClient(srv.URL, "", time.Second)
	ctx := context.Background()

	list, err := c.Notifications(ctx, "t", "7")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "تنبيه", list[0].Title)
	assert.False(t, list[0].Read)

	require.NoError(t, c.MarkNotificationRead(ctx, "t", "3"))
	assert.Equal(t, "3", (*captured)[1].Payload.Variables["id"])
}

func TestClient_RateLimitHonoursContext(t *testing.T) {
	srv, _, _ := newBackend(t, map[string]string{"GetBookingDashboards": dashboardResponse})
	c := NewClient(srv.URL, "", time.Second)
	c.UseRateLimit(0.001, 1)

	_, err := c.Dashboard(context.Background(), "")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = c.Dashboard(ctx, "")
	assert.Error(t, err)
}
