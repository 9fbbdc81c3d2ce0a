package bot

import (
	"context"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"zeinbus/internal/session"
)

// StartNotifier relays unread backend notifications to logged-in chats every
// interval until ctx is done.
func (b *Bot) StartNotifier(ctx context.Context, lister SessionLister, interval time.Duration) {
	if b == nil || lister == nil || interval <= 0 {
		return
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				b.relayNotifications(ctx, lister)
			}
		}
	}()
}

func (b *Bot) relayNotifications(ctx context.Context, lister SessionLister) {
	sessions, err := lister.ListSessions(ctx, session.TelegramPrefix, b.now())
	if err != nil {
		b.logger.Error().Err(err).Msg("notifier: list sessions")
		return
	}

	for i := range sessions {
		sess := &sessions[i]
		chatID, ok := session.TelegramChatID(sess.Key)
		if !ok {
			continue
		}

		items, err := b.flow.Notifications(ctx, sess)
		if err != nil {
			b.logger.Warn().Err(err).Str("user_id", sess.UserID).Msg("notifier: load notifications")
			continue
		}

		for _, n := range items {
			if n.Read {
				continue
			}
			if _, err := b.tg.Send(tgbotapi.NewMessage(chatID, formatNotification(n))); err != nil {
				b.logger.Warn().Err(err).Int64("chat_id", chatID).Msg("notifier: send")
				break
			}
			if err := b.flow.MarkNotificationRead(ctx, sess, n.ID); err != nil {
				b.logger.Warn().Err(err).Str("notification_id", n.ID).Msg("notifier: mark read")
			}
		}
	}
}
