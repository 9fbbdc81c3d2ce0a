// Package session keeps the rider's authenticated state per front-end channel.
package session

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"zeinbus/internal/backend"
)

var (
	ErrNoSession = errors.New("session not found")
	ErrExpired   = errors.New("session expired")
)

// Session key prefixes per channel.
const (
	APIPrefix      = "api:"
	TelegramPrefix = "tg:"
)

// Session is an authenticated rider on one channel.
type Session struct {
	Key       string
	Token     string
	UserID    string
	Username  string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// Expired reports whether the backend token has passed its expiry. Tokens
// without an expiry never expire locally.
func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

// Store persists sessions by key.
type Store interface {
	GetSession(ctx context.Context, key string) (*Session, error)
	SaveSession(ctx context.Context, s *Session) error
	DeleteSession(ctx context.Context, key string) error
}

// Authenticator exchanges credentials for a backend token.
type Authenticator interface {
	Login(ctx context.Context, identifier, password string) (*backend.LoginResult, error)
}

// Manager logs riders in and resolves their sessions.
type Manager struct {
	store Store
	auth  Authenticator
	now   func() time.Time
}

func NewManager(store Store, auth Authenticator) *Manager {
	return &Manager{store: store, auth: auth, now: time.Now}
}

// NewAPIKey returns a fresh key for an HTTP client and the opaque token
// handed to it.
func NewAPIKey() (key, token string) {
	token = uuid.NewString()
	return APIPrefix + token, token
}

// APIKey maps an opaque HTTP token back to its session key.
func APIKey(token string) string {
	return APIPrefix + strings.TrimSpace(token)
}

// TelegramKey is the session key of a Telegram chat.
func TelegramKey(chatID int64) string {
	return TelegramPrefix + strconv.FormatInt(chatID, 10)
}

// TelegramChatID extracts the chat id from a Telegram session key.
func TelegramChatID(key string) (int64, bool) {
	rest, ok := strings.CutPrefix(key, TelegramPrefix)
	if !ok {
		return 0, false
	}
	id, err := strconv.ParseInt(rest, 10, 64)
	return id, err == nil
}

// Login authenticates against the backend and stores the session under key.
// Backend errors are returned unchanged.
func (m *Manager) Login(ctx context.Context, key, identifier, password string) (*Session, error) {
	res, err := m.auth.Login(ctx, identifier, password)
	if err != nil {
		return nil, err
	}
	if res.JWT == "" || res.User.ID == "" {
		return nil, fmt.Errorf("login: backend returned no token")
	}

	s := &Session{
		Key:       key,
		Token:     res.JWT,
		UserID:    res.User.ID,
		Username:  res.User.Username,
		CreatedAt: m.now().UTC(),
	}
	if exp, ok := TokenExpiry(res.JWT); ok {
		s.ExpiresAt = exp
	}
	if err := m.store.SaveSession(ctx, s); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}
	return s, nil
}

// Get returns the live session under key. An expired session is removed and
// reported as ErrExpired.
func (m *Manager) Get(ctx context.Context, key string) (*Session, error) {
	s, err := m.store.GetSession(ctx, key)
	if err != nil {
		return nil, err
	}
	if s.Expired(m.now()) {
		if err := m.store.DeleteSession(ctx, key); err != nil {
			return nil, fmt.Errorf("delete expired session: %w", err)
		}
		return nil, ErrExpired
	}
	return s, nil
}

// Logout forgets the session under key.
func (m *Manager) Logout(ctx context.Context, key string) error {
	return m.store.DeleteSession(ctx, key)
}

// TokenExpiry reads the exp claim of a backend JWT. The signature is not
// checked.
func TokenExpiry(token string) (time.Time, bool) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time.UTC(), true
}
