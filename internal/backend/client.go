package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"zeinbus/internal/metrics"
)

const cachePrefix = "zeinbus:"

// Client calls the booking backend's GraphQL endpoint.
type Client struct {
	endpoint   string
	apiToken   string
	httpClient *http.Client
	limiter    *rate.Limiter

	redis    *redis.Client
	cacheTTL time.Duration
}

// NewClient constructs a client for endpoint. apiToken is sent on calls made
// without a rider session.
func NewClient(endpoint, apiToken string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		endpoint:   endpoint,
		apiToken:   apiToken,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// UseRedisCache configures optional Redis caching for snapshot queries.
func (c *Client) UseRedisCache(redisClient *redis.Client, ttl time.Duration) {
	c.redis = redisClient
	c.cacheTTL = ttl
}

// UseRateLimit bounds outgoing calls to perSecond with the given burst.
// A non-positive rate disables limiting.
func (c *Client) UseRateLimit(perSecond float64, burst int) {
	if perSecond <= 0 {
		c.limiter = nil
		return
	}
	if burst <= 0 {
		burst = 1
	}
	c.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
}

// Error is a failure reported by the backend. Messages are relayed to the
// rider as they are.
type Error struct {
	Operation  string
	StatusCode int
	Messages   []string
}

func (e *Error) Error() string {
	if len(e.Messages) > 0 {
		return strings.Join(e.Messages, "; ")
	}
	return fmt.Sprintf("%s: http %d", e.Operation, e.StatusCode)
}

type gqlRequest struct {
	OperationName string         `json:"operationName,omitempty"`
	Query         string         `json:"query"`
	Variables     map[string]any `json:"variables,omitempty"`
}

type gqlError struct {
	Message string `json:"message"`
}

type gqlResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []gqlError      `json:"errors"`
}

func (c *Client) readCache(ctx context.Context, key string, out any) bool {
	if c.redis == nil || c.cacheTTL <= 0 {
		return false
	}
	val, err := c.redis.Get(ctx, cachePrefix+key).Result()
	if err != nil {
		return false
	}
	if err := json.Unmarshal([]byte(val), out); err != nil {
		return false
	}
	return true
}

func (c *Client) writeCache(ctx context.Context, key string, val any) {
	if c.redis == nil || c.cacheTTL <= 0 {
		return
	}
	data, err := json.Marshal(val)
	if err != nil {
		return
	}
	if err := c.redis.Set(ctx, cachePrefix+key, data, c.cacheTTL).Err(); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("key", key).Msg("backend cache write failed")
	}
}

// InvalidateSnapshots drops cached dashboard, area and university data.
func (c *Client) InvalidateSnapshots(ctx context.Context) error {
	if c.redis == nil {
		return nil
	}
	return c.redis.Del(ctx,
		cachePrefix+cacheKeyDashboard,
		cachePrefix+cacheKeyAreas,
		cachePrefix+cacheKeyUniversities,
	).Err()
}

// do runs one GraphQL operation and decodes its data into out. token is the
// rider's session token; when empty the configured API token is used.
func (c *Client) do(ctx context.Context, token, operation, query string, vars map[string]any, out any) error {
	defer metrics.ObserveBackend(operation, time.Now())

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
	}

	body, err := json.Marshal(gqlRequest{OperationName: operation, Query: query, Variables: vars})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	c.addHeaders(req, token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", operation, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%s: read response: %w", operation, err)
	}

	var gr gqlResponse
	decodeErr := json.Unmarshal(raw, &gr)

	if len(gr.Errors) > 0 || resp.StatusCode >= 300 {
		be := &Error{Operation: operation, StatusCode: resp.StatusCode}
		for _, e := range gr.Errors {
			if e.Message != "" {
				be.Messages = append(be.Messages, e.Message)
			}
		}
		zerolog.Ctx(ctx).Debug().
			Str("operation", operation).
			Int("status", resp.StatusCode).
			Strs("errors", be.Messages).
			Msg("backend call failed")
		return be
	}
	if decodeErr != nil {
		return fmt.Errorf("%s: decode response: %w", operation, decodeErr)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(gr.Data, out); err != nil {
		return fmt.Errorf("%s: decode data: %w", operation, err)
	}
	return nil
}

func (c *Client) addHeaders(req *http.Request, token string) {
	if token == "" {
		token = c.apiToken
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
}
