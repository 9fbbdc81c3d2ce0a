package bot

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"zeinbus/internal/booking"
	"zeinbus/internal/models"
	"zeinbus/internal/service"
	"zeinbus/internal/session"
)

const chatID int64 = 4242

var testNow = time.Date(2026, 10, 19, 10, 0, 0, 0, time.UTC)

type fakeTelegram struct {
	sent     []tgbotapi.Chattable
	requests []tgbotapi.Chattable
	updates  chan tgbotapi.Update
}

func (f *fakeTelegram) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.sent = append(f.sent, c)
	return tgbotapi.Message{}, nil
}

func (f *fakeTelegram) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.requests = append(f.requests, c)
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (f *fakeTelegram) GetUpdatesChan(tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return f.updates
}

func (f *fakeTelegram) StopReceivingUpdates() {}

func (f *fakeTelegram) SelfUser() tgbotapi.User {
	return tgbotapi.User{UserName: "zeinbus_bot"}
}

func (f *fakeTelegram) lastText() string {
	for i := len(f.sent) - 1; i >= 0; i-- {
		switch m := f.sent[i].(type) {
		case tgbotapi.MessageConfig:
			return m.Text
		case tgbotapi.EditMessageTextConfig:
			return m.Text
		}
	}
	return ""
}

func (f *fakeTelegram) lastKeyboard(t *testing.T) tgbotapi.InlineKeyboardMarkup {
	t.Helper()
	require.NotEmpty(t, f.sent)
	msg, ok := f.sent[len(f.sent)-1].(tgbotapi.MessageConfig)
	require.True(t, ok, "last sent is %T", f.sent[len(f.sent)-1])
	markup, ok := msg.ReplyMarkup.(tgbotapi.InlineKeyboardMarkup)
	require.True(t, ok, "reply markup is %T", msg.ReplyMarkup)
	return markup
}

type mockFlow struct {
	mock.Mock
}

func (m *mockFlow) AvailableDays(ctx context.Context) []booking.SelectableDate {
	days, _ := m.Called(ctx).Get(0).([]booking.SelectableDate)
	return days
}

func (m *mockFlow) Quote(ctx context.Context, req service.QuoteRequest) service.Quote {
	return m.Called(ctx, req).Get(0).(service.Quote)
}

func (m *mockFlow) StartDraft(ctx context.Context, sess *session.Session) (booking.Draft, error) {
	args := m.Called(ctx, sess)
	return args.Get(0).(booking.Draft), args.Error(1)
}

func (m *mockFlow) Submit(ctx context.Context, sess *session.Session, d booking.Draft, key string) (*service.SubmitResult, error) {
	args := m.Called(ctx, sess, d, key)
	res, _ := args.Get(0).(*service.SubmitResult)
	return res, args.Error(1)
}

func (m *mockFlow) Trips(ctx context.Context, sess *session.Session) ([]models.Booking, []models.Booking, error) {
	args := m.Called(ctx, sess)
	up, _ := args.Get(0).([]models.Booking)
	past, _ := args.Get(1).([]models.Booking)
	return up, past, args.Error(2)
}

func (m *mockFlow) Cancel(ctx context.Context, sess *session.Session, id string) error {
	return m.Called(ctx, sess, id).Error(0)
}

func (m *mockFlow) Notifications(ctx context.Context, sess *session.Session) ([]models.Notification, error) {
	args := m.Called(ctx, sess)
	n, _ := args.Get(0).([]models.Notification)
	return n, args.Error(1)
}

func (m *mockFlow) MarkNotificationRead(ctx context.Context, sess *session.Session, id string) error {
	return m.Called(ctx, sess, id).Error(0)
}

type fakeSessions struct {
	sessions map[string]*session.Session
}

func (f *fakeSessions) Login(_ context.Context, key, identifier, password string) (*session.Session, error) {
	if password != "secret" {
		return nil, errors.New("Invalid identifier or password")
	}
	s := &session.Session{Key: key, Token: "jwt", UserID: "7", Username: identifier}
	f.sessions[key] = s
	return s, nil
}

func (f *fakeSessions) Get(_ context.Context, key string) (*session.Session, error) {
	s, ok := f.sessions[key]
	if !ok {
		return nil, session.ErrNoSession
	}
	return s, nil
}

func (f *fakeSessions) Logout(_ context.Context, key string) error {
	delete(f.sessions, key)
	return nil
}

func (f *fakeSessions) ListSessions(_ context.Context, _ string, _ time.Time) ([]session.Session, error) {
	out := make([]session.Session, 0, len(f.sessions))
	for _, s := range f.sessions {
		out = append(out, *s)
	}
	return out, nil
}

func setupBot(t *testing.T, loggedIn bool) (*Bot, *fakeTelegram, *mockFlow, *fakeSessions) {
	t.Helper()
	logger := zerolog.New(io.Discard)
	tg := &fakeTelegram{updates: make(chan tgbotapi.Update)}
	flow := &mockFlow{}
	sessions := &fakeSessions{sessions: map[string]*session.Session{}}
	if loggedIn {
		key := session.TelegramKey(chatID)
		sessions.sessions[key] = &session.Session{Key: key, Token: "jwt", UserID: "7", Username: "omar"}
	}

	b, err := NewWithTelegramClient(tg, flow, sessions, &logger)
	require.NoError(t, err)
	b.now = func() time.Time { return testNow }
	return b, tg, flow, sessions
}

func message(text string) *tgbotapi.Update {
	return &tgbotapi.Update{Message: &tgbotapi.Message{
		MessageID: 10,
		Text:      text,
		Chat:      &tgbotapi.Chat{ID: chatID},
		From:      &tgbotapi.User{ID: chatID},
	}}
}

func callback(data string) *tgbotapi.Update {
	return &tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID:      "cb",
		Data:    data,
		From:    &tgbotapi.User{ID: chatID},
		Message: &tgbotapi.Message{MessageID: 11, Chat: &tgbotapi.Chat{ID: chatID}},
	}}
}

func testDays() []booking.SelectableDate {
	return []booking.SelectableDate{
		{Value: "2026-10-20", Label: "الثلاثاء, 20 أكتوبر"},
		{Value: "2026-10-21", Label: "الأربعاء, 21 أكتوبر"},
		{Value: "2026-10-22", Label: "الخميس, 22 أكتوبر"},
	}
}

func testDraft() booking.Draft {
	return booking.Draft{
		UserID:      "7",
		FirstName:   "Omar",
		Destination: "جامعة الجلالة",
		Area:        "القاهرة الجديدة",
		PaymentType: booking.PaymentCash,
		Date:        "2026-10-20",
	}
}

func TestNewWithTelegramClient_NilClient(t *testing.T) {
	logger := zerolog.New(io.Discard)
	_, err := NewWithTelegramClient(nil, &mockFlow{}, &fakeSessions{}, &logger)
	assert.Error(t, err)
}

func TestBookingDialog_RoundTrip(t *testing.T) {
	b, tg, flow, _ := setupBot(t, true)
	ctx := context.Background()

	flow.On("StartDraft", mock.Anything, mock.Anything).Return(testDraft(), nil)
	flow.On("AvailableDays", mock.Anything).Return(testDays())
	flow.On("Quote", mock.Anything, mock.Anything).Return(service.Quote{
		Cost:        booking.Pounds(140),
		SeatCap:     3,
		SeatOptions: []int{1, 2, 3},
		ReturnTimes: []booking.TimeOption{{Label: "3 عصراً", Value: "15:00"}, {Label: "5 مساءً", Value: "17:00"}},
		StartPoints: []string{"الرحاب", "مدينتي"},
	})

	b.handleUpdate(ctx, message("/book"))
	assert.Equal(t, prompts[StateAskTripType], tg.lastText())
	assert.Len(t, tg.lastKeyboard(t).InlineKeyboard, 4)

	b.handleUpdate(ctx, callback("tt:2"))
	assert.Equal(t, prompts[StateAskDate], tg.lastText())
	// three days, two per row, plus navigation
	assert.Len(t, tg.lastKeyboard(t).InlineKeyboard, 3)

	b.handleUpdate(ctx, callback("date:2026-10-21"))
	assert.Equal(t, prompts[StateAskStartPoint], tg.lastText())

	b.handleUpdate(ctx, callback("sp:0"))
	assert.Equal(t, prompts[StateAskSeats], tg.lastText())
	assert.Len(t, tg.lastKeyboard(t).InlineKeyboard[0], 3)

	b.handleUpdate(ctx, callback("seats:2"))
	assert.Equal(t, prompts[StateAskReturnTime], tg.lastText())

	b.handleUpdate(ctx, callback("rt:0"))
	assert.Equal(t, prompts[StateAskPayment], tg.lastText())

	b.handleUpdate(ctx, callback("pay:wallet"))
	assert.Contains(t, tg.lastText(), "140")
	assert.Contains(t, tg.lastText(), "الرحاب")

	d := b.dialogs.get(chatID, testNow)
	require.NotNil(t, d)
	assert.Equal(t, StateConfirm, d.State)
	key := d.IdempotencyKey

	flow.On("Submit", mock.Anything, mock.Anything, mock.MatchedBy(func(d booking.Draft) bool {
		return d.TripType == booking.TripRoundTrip &&
			d.Date == "2026-10-21" &&
			d.StartPoint == "الرحاب" &&
			d.Seats == 2 &&
			d.EndTime == "15:00" &&
			d.PaymentType == booking.PaymentWallet
	}), key).Return(&service.SubmitResult{
		BookingID:  "501",
		Submission: booking.Submission{Date: "2026-10-21", TripType: booking.TripRoundTrip, StartTime: "07:30", TripCost: booking.Pounds(140)},
	}, nil).Once()

	b.handleUpdate(ctx, callback("confirm"))
	assert.Contains(t, tg.lastText(), "501")
	assert.Nil(t, b.dialogs.get(chatID, testNow))
	flow.AssertExpectations(t)
}

func TestBookingDialog_ReturnSkipsStartPoint(t *testing.T) {
	b, tg, flow, _ := setupBot(t, true)
	ctx := context.Background()

	flow.On("StartDraft", mock.Anything, mock.Anything).Return(testDraft(), nil)
	flow.On("AvailableDays", mock.Anything).Return(testDays())
	flow.On("Quote", mock.Anything, mock.Anything).Return(service.Quote{SeatOptions: []int{1, 2}})

	b.handleUpdate(ctx, message("/book"))
	b.handleUpdate(ctx, callback("tt:1"))
	b.handleUpdate(ctx, callback("date:2026-10-20"))
	assert.Equal(t, prompts[StateAskSeats], tg.lastText())

	b.handleUpdate(ctx, callback("seats:1"))
	// no configured return slots: the rider types one
	assert.Contains(t, tg.lastText(), "15:30")

	b.handleUpdate(ctx, message("4pm"))
	assert.Contains(t, tg.lastText(), "صيغة الوقت")

	b.handleUpdate(ctx, message("16:00"))
	assert.Equal(t, prompts[StateAskPayment], tg.lastText())
	assert.Equal(t, "16:00", b.dialogs.get(chatID, testNow).Draft.EndTime)
}

func TestBookingDialog_OutboundSkipsReturnTime(t *testing.T) {
	b, tg, flow, _ := setupBot(t, true)
	ctx := context.Background()

	flow.On("StartDraft", mock.Anything, mock.Anything).Return(testDraft(), nil)
	flow.On("AvailableDays", mock.Anything).Return(testDays())
	flow.On("Quote", mock.Anything, mock.Anything).Return(service.Quote{SeatOptions: []int{1}, StartPoints: []string{"الرحاب"}})

	b.handleUpdate(ctx, message("/book"))
	b.handleUpdate(ctx, callback("tt:0"))
	b.handleUpdate(ctx, callback("date:2026-10-20"))
	b.handleUpdate(ctx, callback("sp:0"))
	b.handleUpdate(ctx, callback("seats:1"))
	assert.Equal(t, prompts[StateAskPayment], tg.lastText())
}

func TestBookingDialog_StaleDate(t *testing.T) {
	b, tg, flow, _ := setupBot(t, true)
	ctx := context.Background()

	flow.On("StartDraft", mock.Anything, mock.Anything).Return(testDraft(), nil)
	flow.On("AvailableDays", mock.Anything).Return(testDays())

	b.handleUpdate(ctx, message("/book"))
	b.handleUpdate(ctx, callback("tt:0"))
	b.handleUpdate(ctx, callback("date:2026-09-01"))

	assert.Equal(t, prompts[StateAskDate], tg.lastText())
	assert.Equal(t, StateAskDate, b.dialogs.get(chatID, testNow).State)
}

func TestBookingDialog_NoSeats(t *testing.T) {
	b, tg, flow, _ := setupBot(t, true)
	ctx := context.Background()

	flow.On("StartDraft", mock.Anything, mock.Anything).Return(testDraft(), nil)
	flow.On("AvailableDays", mock.Anything).Return(testDays())
	flow.On("Quote", mock.Anything, mock.Anything).Return(service.Quote{})

	b.handleUpdate(ctx, message("/book"))
	b.handleUpdate(ctx, callback("tt:1"))
	b.handleUpdate(ctx, callback("date:2026-10-20"))

	assert.Contains(t, tg.lastText(), "لا توجد مقاعد")
	assert.Nil(t, b.dialogs.get(chatID, testNow))
}

func TestBookingDialog_ValidationReturnsToSeats(t *testing.T) {
	b, tg, flow, _ := setupBot(t, true)
	ctx := context.Background()

	flow.On("AvailableDays", mock.Anything).Return(testDays())
	flow.On("Quote", mock.Anything, mock.Anything).Return(service.Quote{SeatOptions: []int{1}, Cost: booking.Pounds(50)})
	flow.On("Submit", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil, booking.ErrSeatAvailability(1))

	d := newDialog(testDraft(), testNow)
	d.State = StateConfirm
	d.Draft.TripType = booking.TripReturn
	b.dialogs.put(chatID, d)

	b.handleUpdate(ctx, callback("confirm"))
	assert.Equal(t, StateAskSeats, b.dialogs.get(chatID, testNow).State)
	assert.Equal(t, prompts[StateAskSeats], tg.lastText())
}

func TestBookingDialog_BackendErrorKeepsConfirm(t *testing.T) {
	b, tg, flow, _ := setupBot(t, true)
	ctx := context.Background()

	flow.On("Submit", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil, errors.New("Forbidden access"))

	d := newDialog(testDraft(), testNow)
	d.State = StateConfirm
	b.dialogs.put(chatID, d)

	b.handleUpdate(ctx, callback("confirm"))
	assert.Contains(t, tg.lastText(), "Forbidden access")
	assert.Equal(t, StateConfirm, b.dialogs.get(chatID, testNow).State)
}

func TestBookingDialog_SubmitInProgress(t *testing.T) {
	b, tg, flow, _ := setupBot(t, true)
	ctx := context.Background()

	flow.On("Submit", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil, service.ErrSubmissionInProgress)

	d := newDialog(testDraft(), testNow)
	d.State = StateConfirm
	b.dialogs.put(chatID, d)

	b.handleUpdate(ctx, callback("confirm"))
	assert.Equal(t, "جاري تنفيذ الحجز، يرجى الانتظار.", tg.lastText())
	assert.Equal(t, StateConfirm, b.dialogs.get(chatID, testNow).State)
}

func TestBookingDialog_Abort(t *testing.T) {
	b, tg, flow, _ := setupBot(t, true)
	ctx := context.Background()

	flow.On("StartDraft", mock.Anything, mock.Anything).Return(testDraft(), nil)
	flow.On("AvailableDays", mock.Anything).Return(testDays())

	b.handleUpdate(ctx, message("/book"))
	b.handleUpdate(ctx, callback("abort"))
	assert.Equal(t, prompts[StateCanceled], tg.lastText())
	assert.Nil(t, b.dialogs.get(chatID, testNow))

	b.handleUpdate(ctx, callback("tt:0"))
	assert.Equal(t, msgDialogExpired, tg.lastText())
}

func TestBookingDialog_BookingClosed(t *testing.T) {
	b, tg, flow, _ := setupBot(t, true)

	flow.On("StartDraft", mock.Anything, mock.Anything).Return(testDraft(), nil)
	flow.On("AvailableDays", mock.Anything).Return([]booking.SelectableDate{})

	b.handleUpdate(context.Background(), message("/book"))
	assert.Equal(t, msgBookingClosed, tg.lastText())
}

func TestRequiresLogin(t *testing.T) {
	b, tg, flow, _ := setupBot(t, false)

	b.handleUpdate(context.Background(), message("/book"))
	assert.Equal(t, msgLoginRequired, tg.lastText())
	flow.AssertNotCalled(t, "StartDraft", mock.Anything, mock.Anything)
}

func TestLogin(t *testing.T) {
	b, tg, _, sessions := setupBot(t, false)

	b.handleUpdate(context.Background(), message("/login omar secret"))
	assert.Contains(t, tg.lastText(), "omar")
	assert.Contains(t, sessions.sessions, session.TelegramKey(chatID))

	require.Len(t, tg.requests, 1)
	del, ok := tg.requests[0].(tgbotapi.DeleteMessageConfig)
	require.True(t, ok)
	assert.Equal(t, 10, del.MessageID)

	b.handleUpdate(context.Background(), message("/login omar"))
	assert.Equal(t, msgLoginRequired, tg.lastText())

	b.handleUpdate(context.Background(), message("/logout"))
	assert.Empty(t, sessions.sessions)
}

func TestShowTripsAndCancel(t *testing.T) {
	b, tg, flow, _ := setupBot(t, true)
	ctx := context.Background()

	flow.On("Trips", mock.Anything, mock.Anything).Return(
		[]models.Booking{{ID: "1", Date: "2026-10-21", TripType: booking.TripOutbound, Seats: 1, TripCost: booking.Pounds(50)}},
		[]models.Booking{{ID: "2", TripStatus: models.TripStatusCompleted}},
		nil,
	)
	flow.On("Cancel", mock.Anything, mock.Anything, "1").Return(nil).Once()
	flow.On("Cancel", mock.Anything, mock.Anything, "2").Return(service.ErrNotCancellable)

	b.handleUpdate(ctx, message("/trips"))
	assert.Contains(t, tg.lastText(), "2026-10-21")
	kb := tg.lastKeyboard(t)
	require.Len(t, kb.InlineKeyboard, 1)
	assert.Equal(t, "cxl:1", *kb.InlineKeyboard[0][0].CallbackData)

	b.handleUpdate(ctx, callback("cxl:1"))
	assert.Equal(t, "cxlok:1", *tg.lastKeyboard(t).InlineKeyboard[0][0].CallbackData)

	b.handleUpdate(ctx, callback("cxlok:1"))
	assert.Contains(t, tg.lastText(), "تم إلغاء")

	b.handleUpdate(ctx, callback("cxlok:2"))
	assert.Equal(t, "لا يمكن إلغاء هذه الرحلة.", tg.lastText())
}

func TestRelayNotifications(t *testing.T) {
	b, tg, flow, sessions := setupBot(t, true)
	ctx := context.Background()

	flow.On("Notifications", mock.Anything, mock.Anything).Return([]models.Notification{
		{ID: "1", Title: "تغيير موعد", Message: "التحرك 7:45"},
		{ID: "2", Title: "قديم", Read: true},
	}, nil)
	flow.On("MarkNotificationRead", mock.Anything, mock.Anything, "1").Return(nil).Once()

	b.relayNotifications(ctx, sessions)

	require.Len(t, tg.sent, 1)
	assert.Contains(t, tg.lastText(), "التحرك 7:45")
	flow.AssertExpectations(t)
}

func TestStartStopsOnCancel(t *testing.T) {
	b, _, _, _ := setupBot(t, true)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		b.Start(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("bot did not stop")
	}
}
