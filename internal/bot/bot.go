// Package bot runs the booking flow as a Telegram dialog.
package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"zeinbus/internal/booking"
	"zeinbus/internal/service"
	"zeinbus/internal/session"
)

const (
	msgLoginRequired = "يرجى تسجيل الدخول أولاً:\n/login <البريد أو اسم المستخدم> <كلمة المرور>"
	msgDialogExpired = "انتهت صلاحية الحجز الجاري. /book للبدء من جديد."
	msgBookingClosed = "الحجز غير متاح حالياً."
)

// Bot is the Telegram front end of the booking flow.
type Bot struct {
	tg       telegramClient
	flow     BookingFlow
	sessions Sessions
	dialogs  *dialogStore
	fsm      *FSM
	logger   *zerolog.Logger
	now      func() time.Time
}

func New(token string, debug bool, flow BookingFlow, sessions Sessions, logger *zerolog.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	api.Debug = debug
	return newBot(&realTelegramClient{api: api}, flow, sessions, logger)
}

// NewWithTelegramClient allows injecting a mocked Telegram client for tests.
func NewWithTelegramClient(tg telegramClient, flow BookingFlow, sessions Sessions, logger *zerolog.Logger) (*Bot, error) {
	return newBot(tg, flow, sessions, logger)
}

func newBot(tg telegramClient, flow BookingFlow, sessions Sessions, logger *zerolog.Logger) (*Bot, error) {
	if tg == nil {
		return nil, fmt.Errorf("telegram client is nil")
	}
	return &Bot{
		tg:       tg,
		flow:     flow,
		sessions: sessions,
		dialogs:  newDialogStore(defaultDialogExpiry),
		fsm:      NewFSM(),
		logger:   logger,
		now:      time.Now,
	}, nil
}

// Start polls updates until ctx is done.
func (b *Bot) Start(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := b.tg.GetUpdatesChan(u)
	b.logger.Info().Str("username", b.tg.SelfUser().UserName).Msg("Telegram bot authorized")

	cleanup := time.NewTicker(5 * time.Minute)
	defer cleanup.Stop()

	for {
		select {
		case <-ctx.Done():
			b.tg.StopReceivingUpdates()
			return
		case <-cleanup.C:
			if n := b.dialogs.cleanup(b.now()); n > 0 {
				b.logger.Debug().Int("removed", n).Msg("expired dialogs removed")
			}
		case update, ok := <-updates:
			if !ok {
				return
			}
			l := b.logger.With().Str("request_id", uuid.NewString()).Logger()
			b.handleUpdate(l.WithContext(ctx), &update)
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update *tgbotapi.Update) {
	l := zerolog.Ctx(ctx)
	if update.CallbackQuery != nil {
		l.Debug().
			Int64("user_id", update.CallbackQuery.From.ID).
			Str("data", update.CallbackQuery.Data).
			Msg("Handling callback query")
		b.handleCallback(ctx, update.CallbackQuery)
		return
	}
	if update.Message != nil {
		l.Debug().
			Int64("chat_id", update.Message.Chat.ID).
			Msg("Handling message")
		b.handleMessage(ctx, update.Message)
	}
}

func (b *Bot) reply(chatID int64, text string) {
	if _, err := b.tg.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		b.logger.Warn().Err(err).Int64("chat_id", chatID).Msg("send failed")
	}
}

func (b *Bot) send(chatID int64, text string, markup any) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = markup
	if _, err := b.tg.Send(msg); err != nil {
		b.logger.Warn().Err(err).Int64("chat_id", chatID).Msg("send failed")
	}
}

// session returns the chat's login, telling the rider to log in when there is
// none.
func (b *Bot) session(ctx context.Context, chatID int64) *session.Session {
	sess, err := b.sessions.Get(ctx, session.TelegramKey(chatID))
	switch {
	case err == nil:
		return sess
	case errors.Is(err, session.ErrNoSession), errors.Is(err, session.ErrExpired):
		b.reply(chatID, msgLoginRequired)
	default:
		zerolog.Ctx(ctx).Error().Err(err).Msg("session lookup failed")
		b.reply(chatID, "حدث خطأ، حاول مرة أخرى.")
	}
	return nil
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg == nil || msg.Chat == nil {
		return
	}
	chatID := msg.Chat.ID
	text := strings.TrimSpace(msg.Text)

	switch {
	case text == "/start":
		b.dialogs.reset(chatID)
		b.send(chatID, "أهلاً بك في زين باص 🚌\n"+helpText, mainMenu)
		return
	case text == "/help" || text == btnHelp:
		b.reply(chatID, helpText)
		return
	case strings.HasPrefix(text, "/login"):
		b.handleLogin(ctx, msg)
		return
	case text == "/logout":
		b.dialogs.reset(chatID)
		if err := b.sessions.Logout(ctx, session.TelegramKey(chatID)); err != nil {
			zerolog.Ctx(ctx).Error().Err(err).Msg("logout failed")
		}
		b.reply(chatID, "تم تسجيل الخروج.")
		return
	case text == "/book" || text == btnBook:
		b.startBooking(ctx, chatID)
		return
	case text == "/trips" || text == btnTrips:
		b.showTrips(ctx, chatID, 0, 0)
		return
	case text == "/cancel":
		b.abort(chatID)
		return
	}

	d := b.dialogs.get(chatID, b.now())
	if d == nil {
		return
	}
	switch d.State {
	case StateAskStartPoint:
		if len(d.StartPoints) > 0 || text == "" {
			return
		}
		d.Draft.StartPoint = text
		b.advance(ctx, chatID, d, StateAskSeats)
	case StateAskReturnTime:
		if len(d.ReturnTimes) > 0 {
			return
		}
		clock, ok := booking.NormalizeClock(text)
		if !ok {
			b.reply(chatID, "صيغة الوقت غير صحيحة، مثال: 15:30")
			return
		}
		d.Draft.EndTime = clock
		b.advance(ctx, chatID, d, StateAskPayment)
	}
}

func (b *Bot) handleLogin(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	// The message carries a password.
	if _, err := b.tg.Request(tgbotapi.NewDeleteMessage(chatID, msg.MessageID)); err != nil {
		zerolog.Ctx(ctx).Debug().Err(err).Msg("could not delete login message")
	}

	fields := strings.Fields(msg.Text)
	if len(fields) != 3 {
		b.reply(chatID, msgLoginRequired)
		return
	}

	sess, err := b.sessions.Login(ctx, session.TelegramKey(chatID), fields[1], fields[2])
	if err != nil {
		zerolog.Ctx(ctx).Info().Err(err).Msg("telegram login failed")
		b.reply(chatID, "تعذر تسجيل الدخول: "+err.Error())
		return
	}
	b.send(chatID, fmt.Sprintf("مرحباً %s! يمكنك الآن حجز رحلة.", sess.Username), mainMenu)
}

func (b *Bot) startBooking(ctx context.Context, chatID int64) {
	sess := b.session(ctx, chatID)
	if sess == nil {
		return
	}
	draft, err := b.flow.StartDraft(ctx, sess)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("start draft failed")
		b.reply(chatID, "تعذر تحميل بياناتك: "+err.Error())
		return
	}
	if len(b.flow.AvailableDays(ctx)) == 0 {
		b.reply(chatID, msgBookingClosed)
		return
	}

	d := newDialog(draft, b.now())
	b.dialogs.put(chatID, d)
	b.advance(ctx, chatID, d, StateAskTripType)
}

func (b *Bot) abort(chatID int64) {
	if d := b.dialogs.get(chatID, b.now()); d != nil {
		b.fsm.Transition(d, StateCanceled, b.now())
	}
	b.dialogs.reset(chatID)
	b.reply(chatID, prompts[StateCanceled])
}

// advance moves d to next and shows that step.
func (b *Bot) advance(ctx context.Context, chatID int64, d *Dialog, next State) {
	if !b.fsm.Transition(d, next, b.now()) {
		zerolog.Ctx(ctx).Warn().Str("from", string(d.State)).Str("to", string(next)).Msg("dialog transition refused")
		b.reply(chatID, msgDialogExpired)
		b.dialogs.reset(chatID)
		return
	}
	b.prompt(ctx, chatID, d)
}

func (b *Bot) quote(ctx context.Context, d *Dialog) service.Quote {
	return b.flow.Quote(ctx, service.QuoteRequest{
		TripType:   d.Draft.TripType,
		Seats:      strconv.Itoa(d.Draft.Seats),
		Area:       d.Draft.Area,
		StartPoint: d.Draft.StartPoint,
	})
}

// prompt shows the question and keyboard of d's current step. Options come
// from the booking rules at the time of asking.
func (b *Bot) prompt(ctx context.Context, chatID int64, d *Dialog) {
	switch d.State {
	case StateAskTripType:
		b.send(chatID, prompts[StateAskTripType], tripTypeKeyboard())

	case StateAskDate:
		days := b.flow.AvailableDays(ctx)
		if len(days) == 0 {
			b.reply(chatID, msgBookingClosed)
			b.dialogs.reset(chatID)
			return
		}
		b.send(chatID, prompts[StateAskDate], dateKeyboard(days))

	case StateAskStartPoint:
		d.StartPoints = b.quote(ctx, d).StartPoints
		if len(d.StartPoints) == 0 {
			b.send(chatID, "اكتب نقطة التحرك:", tgbotapi.NewInlineKeyboardMarkup(navRow(StateAskDate)))
			return
		}
		b.send(chatID, prompts[StateAskStartPoint], startPointKeyboard(d.StartPoints))

	case StateAskSeats:
		q := b.quote(ctx, d)
		if len(q.SeatOptions) == 0 {
			b.reply(chatID, "لا توجد مقاعد متاحة لهذه الرحلة.")
			b.fsm.Transition(d, StateCanceled, b.now())
			b.dialogs.reset(chatID)
			return
		}
		back := StateAskDate
		if d.Draft.TripType.NeedsStartPoint() {
			back = StateAskStartPoint
		}
		b.send(chatID, prompts[StateAskSeats], seatKeyboard(q.SeatOptions, back))

	case StateAskReturnTime:
		d.ReturnTimes = b.quote(ctx, d).ReturnTimes
		if len(d.ReturnTimes) == 0 {
			b.send(chatID, "اكتب موعد العودة (مثال 15:30):", tgbotapi.NewInlineKeyboardMarkup(navRow(StateAskSeats)))
			return
		}
		b.send(chatID, prompts[StateAskReturnTime], returnTimeKeyboard(d.ReturnTimes))

	case StateAskPayment:
		b.send(chatID, prompts[StateAskPayment], paymentKeyboard(afterSeatsBack(d.Draft.TripType)))

	case StateConfirm:
		d.Draft.Cost = b.quote(ctx, d).Cost
		b.send(chatID, formatConfirmation(&d.Draft, d.Draft.Cost), confirmKeyboard())
	}
}

// afterSeatsBack is where "back" leads from the payment step.
func afterSeatsBack(t booking.TripType) State {
	if t.NeedsReturnTime() {
		return StateAskReturnTime
	}
	return StateAskSeats
}

func (b *Bot) answerCallback(id string) {
	if _, err := b.tg.Request(tgbotapi.NewCallback(id, "")); err != nil {
		b.logger.Debug().Err(err).Msg("answer callback failed")
	}
}

func (b *Bot) handleCallback(ctx context.Context, cq *tgbotapi.CallbackQuery) {
	if cq == nil || cq.Message == nil || cq.Message.Chat == nil {
		return
	}
	b.answerCallback(cq.ID)

	data := cq.Data
	chatID := cq.Message.Chat.ID

	switch {
	case data == cbNoop:
		return
	case strings.HasPrefix(data, cbTripsPage):
		page, _ := strconv.Atoi(strings.TrimPrefix(data, cbTripsPage))
		b.showTrips(ctx, chatID, cq.Message.MessageID, page)
		return
	case strings.HasPrefix(data, cbCancelAsk):
		id := strings.TrimPrefix(data, cbCancelAsk)
		b.send(chatID, fmt.Sprintf("هل تريد إلغاء الرحلة رقم %s؟", id), cancelConfirmKeyboard(id))
		return
	case strings.HasPrefix(data, cbCancelDo):
		b.cancelTrip(ctx, chatID, strings.TrimPrefix(data, cbCancelDo))
		return
	case data == cbAbort:
		b.abort(chatID)
		return
	}

	d := b.dialogs.get(chatID, b.now())
	if d == nil {
		b.reply(chatID, msgDialogExpired)
		return
	}

	switch {
	case strings.HasPrefix(data, cbBack):
		b.advance(ctx, chatID, d, State(strings.TrimPrefix(data, cbBack)))
	case strings.HasPrefix(data, cbTripType):
		b.handleTripType(ctx, chatID, d, strings.TrimPrefix(data, cbTripType))
	case strings.HasPrefix(data, cbDate):
		b.handleDate(ctx, chatID, d, strings.TrimPrefix(data, cbDate))
	case strings.HasPrefix(data, cbStartPoint):
		i, err := strconv.Atoi(strings.TrimPrefix(data, cbStartPoint))
		if err != nil || i < 0 || i >= len(d.StartPoints) || d.State != StateAskStartPoint {
			return
		}
		d.Draft.StartPoint = d.StartPoints[i]
		b.advance(ctx, chatID, d, StateAskSeats)
	case strings.HasPrefix(data, cbSeats):
		n, err := strconv.Atoi(strings.TrimPrefix(data, cbSeats))
		if err != nil || d.State != StateAskSeats {
			return
		}
		d.Draft.Seats = n
		b.advance(ctx, chatID, d, afterSeats(d.Draft.TripType))
	case strings.HasPrefix(data, cbReturnTime):
		i, err := strconv.Atoi(strings.TrimPrefix(data, cbReturnTime))
		if err != nil || i < 0 || i >= len(d.ReturnTimes) || d.State != StateAskReturnTime {
			return
		}
		d.Draft.EndTime = d.ReturnTimes[i].Value
		b.advance(ctx, chatID, d, StateAskPayment)
	case strings.HasPrefix(data, cbPayment):
		p, ok := booking.ParsePaymentType(strings.TrimPrefix(data, cbPayment))
		if !ok || d.State != StateAskPayment {
			return
		}
		d.Draft.PaymentType = p
		b.advance(ctx, chatID, d, StateConfirm)
	case data == cbConfirm:
		b.handleConfirm(ctx, chatID, d)
	}
}

func (b *Bot) handleTripType(ctx context.Context, chatID int64, d *Dialog, raw string) {
	i, err := strconv.Atoi(raw)
	if err != nil || i < 0 || i >= len(booking.TripTypes) || d.State != StateAskTripType {
		return
	}
	d.Draft.SetTripType(booking.TripTypes[i])
	b.advance(ctx, chatID, d, StateAskDate)
}

func (b *Bot) handleDate(ctx context.Context, chatID int64, d *Dialog, value string) {
	if d.State != StateAskDate {
		return
	}
	if !booking.ContainsDate(b.flow.AvailableDays(ctx), value) {
		b.reply(chatID, "هذا التاريخ لم يعد متاحاً، اختر تاريخاً آخر.")
		b.prompt(ctx, chatID, d)
		return
	}
	d.Draft.Date = value
	b.advance(ctx, chatID, d, afterDate(d.Draft.TripType))
}

func (b *Bot) handleConfirm(ctx context.Context, chatID int64, d *Dialog) {
	if d.State != StateConfirm {
		b.reply(chatID, msgDialogExpired)
		return
	}
	sess := b.session(ctx, chatID)
	if sess == nil {
		return
	}

	res, err := b.flow.Submit(ctx, sess, d.Draft, d.IdempotencyKey)
	if err == nil {
		b.fsm.Transition(d, StateComplete, b.now())
		b.dialogs.reset(chatID)
		if res.Duplicate {
			b.reply(chatID, "تم تسجيل هذا الحجز مسبقاً. رقم الحجز: "+res.BookingID)
			return
		}
		b.send(chatID, formatComplete(res.BookingID, res.Submission), mainMenu)
		return
	}

	if errors.Is(err, service.ErrSubmissionInProgress) {
		b.reply(chatID, "جاري تنفيذ الحجز، يرجى الانتظار.")
		return
	}

	v, ok := booking.AsValidation(err)
	if !ok {
		zerolog.Ctx(ctx).Error().Err(err).Msg("booking submit failed")
		b.reply(chatID, "تعذر إتمام الحجز: "+err.Error()+"\nيمكنك المحاولة مرة أخرى.")
		return
	}

	b.reply(chatID, formatValidation(v))
	switch v.Code {
	case booking.CodeInvalidSeatCount, booking.CodeSeatCountExceedsPerBookingLimit, booking.CodeSeatCountExceedsAvailability:
		b.advance(ctx, chatID, d, StateAskSeats)
	case booking.CodeMissingDate:
		b.advance(ctx, chatID, d, StateAskDate)
	default:
		b.fsm.Transition(d, StateCanceled, b.now())
		b.dialogs.reset(chatID)
	}
}

// showTrips sends a page of the rider's trips, editing messageID when set.
func (b *Bot) showTrips(ctx context.Context, chatID int64, messageID, page int) {
	sess := b.session(ctx, chatID)
	if sess == nil {
		return
	}
	upcoming, past, err := b.flow.Trips(ctx, sess)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("load trips failed")
		b.reply(chatID, "تعذر تحميل رحلاتك: "+err.Error())
		return
	}

	text, markup := renderTripsPage(upcoming, past, page)
	if messageID != 0 {
		edit := tgbotapi.NewEditMessageText(chatID, messageID, text)
		if len(markup.InlineKeyboard) > 0 {
			edit.ReplyMarkup = &markup
		}
		if _, err := b.tg.Send(edit); err != nil {
			b.logger.Warn().Err(err).Msg("edit trips page failed")
		}
		return
	}
	if len(markup.InlineKeyboard) > 0 {
		b.send(chatID, text, markup)
		return
	}
	b.reply(chatID, text)
}

func (b *Bot) cancelTrip(ctx context.Context, chatID int64, bookingID string) {
	sess := b.session(ctx, chatID)
	if sess == nil {
		return
	}
	err := b.flow.Cancel(ctx, sess, bookingID)
	switch {
	case err == nil:
		b.reply(chatID, "تم إلغاء الرحلة رقم "+bookingID+".")
	case errors.Is(err, service.ErrNotCancellable):
		b.reply(chatID, "لا يمكن إلغاء هذه الرحلة.")
	case errors.Is(err, service.ErrBookingNotFound):
		b.reply(chatID, "لم يتم العثور على الرحلة.")
	default:
		zerolog.Ctx(ctx).Error().Err(err).Str("booking_id", bookingID).Msg("cancel failed")
		b.reply(chatID, "تعذر إلغاء الرحلة: "+err.Error())
	}
}
