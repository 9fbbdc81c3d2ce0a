package bot

import (
	"context"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"zeinbus/internal/booking"
	"zeinbus/internal/models"
	"zeinbus/internal/service"
	"zeinbus/internal/session"
)

// BookingFlow is the booking service as used by the bot.
type BookingFlow interface {
	AvailableDays(ctx context.Context) []booking.SelectableDate
	Quote(ctx context.Context, req service.QuoteRequest) service.Quote
	StartDraft(ctx context.Context, sess *session.Session) (booking.Draft, error)
	Submit(ctx context.Context, sess *session.Session, d booking.Draft, key string) (*service.SubmitResult, error)
	Trips(ctx context.Context, sess *session.Session) (upcoming, past []models.Booking, err error)
	Cancel(ctx context.Context, sess *session.Session, bookingID string) error
	Notifications(ctx context.Context, sess *session.Session) ([]models.Notification, error)
	MarkNotificationRead(ctx context.Context, sess *session.Session, id string) error
}

// Sessions logs chats in and out.
type Sessions interface {
	Login(ctx context.Context, key, identifier, password string) (*session.Session, error)
	Get(ctx context.Context, key string) (*session.Session, error)
	Logout(ctx context.Context, key string) error
}

// SessionLister enumerates the logged-in chats.
type SessionLister interface {
	ListSessions(ctx context.Context, prefix string, now time.Time) ([]session.Session, error)
}

type telegramClient interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(cfg tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
	SelfUser() tgbotapi.User
}

type realTelegramClient struct {
	api *tgbotapi.BotAPI
}

func (c *realTelegramClient) Send(msg tgbotapi.Chattable) (tgbotapi.Message, error) {
	return c.api.Send(msg)
}

func (c *realTelegramClient) Request(msg tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	return c.api.Request(msg)
}

func (c *realTelegramClient) GetUpdatesChan(cfg tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return c.api.GetUpdatesChan(cfg)
}

func (c *realTelegramClient) StopReceivingUpdates() {
	c.api.StopReceivingUpdates()
}

func (c *realTelegramClient) SelfUser() tgbotapi.User {
	return c.api.Self
}
