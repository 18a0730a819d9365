package apiclient

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker/v2"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"

	"github.com/jrsteele09/fleet-console/internal/config"
	"github.com/jrsteele09/fleet-console/internal/metrics"
)

const (
	DefaultTimeout    = 30 * time.Second
	defaultRetryDelay = 250 * time.Millisecond
	maxBodySize       = 10 << 20
)

// SessionHook is what the client needs from the session: a source of bearer
// tokens and somewhere to report a rejected credential.
type SessionHook interface {
	oauth2.TokenSource
	OnUnauthorized()
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithRateLimit caps outbound requests per second. A non-positive rps
// disables the limiter.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

func WithSession(s SessionHook) Option {
	return func(c *Client) {
		c.session = s
	}
}

func WithRetryDelay(d time.Duration) Option {
	return func(c *Client) {
		c.retryDelay = d
	}
}

// WithBreakerSettings replaces the default circuit breaker policy.
func WithBreakerSettings(st gobreaker.Settings) Option {
	return func(c *Client) {
		c.breakerSettings = st
	}
}

// Client is the single gateway to the fleet backend.
type Client struct {
	baseURL         string
	httpClient      *http.Client
	timeout         time.Duration
	retryDelay      time.Duration
	limiter         *rate.Limiter
	breakerSettings gobreaker.Settings
	breaker         *gobreaker.CircuitBreaker[*response]

	mu      sync.RWMutex
	session SessionHook
}

type response struct {
	status int
	body   []byte
}

var errServerStatus = errors.New("server error status")

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:         strings.TrimRight(baseURL, "/"),
		httpClient:      &http.Client{},
		timeout:         DefaultTimeout,
		retryDelay:      defaultRetryDelay,
		breakerSettings: defaultBreakerSettings(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.breaker = gobreaker.NewCircuitBreaker[*response](c.breakerSettings)
	return c
}

// NewFromConfig builds a client from the API section of the configuration.
func NewFromConfig(cfg config.APIConfig, opts ...Option) *Client {
	base := []Option{
		WithTimeout(cfg.GetAPITimeout()),
		WithRateLimit(cfg.GetAPIRateLimit(), cfg.GetAPIRateBurst()),
	}
	return New(cfg.GetAPIBaseURL(), append(base, opts...)...)
}

func defaultBreakerSettings() gobreaker.Settings {
	return gobreaker.Settings{
		Name:        "fleet-api",
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 10 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("API circuit breaker state changed")
			metrics.CircuitBreakerState.Set(breakerGauge(to))
		},
	}
}

func breakerGauge(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}

// BindSession attaches the session after construction, for wiring where the
// session itself depends on the client.
func (c *Client) BindSession(s SessionHook) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.session = s
}

func (c *Client) sessionHook() SessionHook {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.session
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

func (c *Client) endpoint(path string) string {
	if path == "" {
		return c.baseURL
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return c.baseURL + path
}

func (c *Client) Get(ctx context.Context, path string) (json.RawMessage, error) {
	return c.Request(ctx, http.MethodGet, path, nil)
}

func (c *Client) Post(ctx context.Context, path string, body any) (json.RawMessage, error) {
	return c.Request(ctx, http.MethodPost, path, body)
}

func (c *Client) Put(ctx context.Context, path string, body any) (json.RawMessage, error) {
	return c.Request(ctx, http.MethodPut, path, body)
}

func (c *Client) Patch(ctx context.Context, path string, body any) (json.RawMessage, error) {
	return c.Request(ctx, http.MethodPatch, path, body)
}

func (c *Client) Delete(ctx context.Context, path string) (json.RawMessage, error) {
	return c.Request(ctx, http.MethodDelete, path, nil)
}

// Request performs one logical call against the backend. Every failure is
// returned as *Error. GET requests are retried once after a network failure;
// mutations never are.
func (c *Client) Request(ctx context.Context, method, path string, body any) (json.RawMessage, error) {
	attempts := 1
	if method == http.MethodGet {
		attempts = 2
	}

	for attempt := 1; ; attempt++ {
		start := time.Now()
		raw, err := c.do(ctx, method, path, body)
		metrics.APIRequestDuration.WithLabelValues(method).Observe(time.Since(start).Seconds())
		metrics.APIRequests.WithLabelValues(method, outcome(err)).Inc()
		if err == nil {
			return raw, nil
		}
		if attempt >= attempts || !c.shouldRetry(ctx, err) {
			return nil, err
		}

		metrics.APIRetries.Inc()
		log.Debug().Str("method", method).Str("path", path).Err(err).Msg("retrying request")
		select {
		case <-ctx.Done():
			return nil, c.networkError(method, path, ctx.Err())
		case <-time.After(c.retryDelay):
		}
	}
}

func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	if k, ok := KindOf(err); ok {
		return k.String()
	}
	return "unknown"
}

func (c *Client) shouldRetry(ctx context.Context, err error) bool {
	if ctx.Err() != nil || !IsKind(err, NetworkError) {
		return false
	}
	return !errors.Is(err, gobreaker.ErrOpenState) && !errors.Is(err, gobreaker.ErrTooManyRequests)
}

func (c *Client) do(ctx context.Context, method, path string, body any) (json.RawMessage, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, c.networkError(method, path, err)
		}
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, &Error{Kind: ParseError, Method: method, Path: path, Message: "encode request body", Err: err}
		}
		reader = bytes.NewReader(payload)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path), reader)
	if err != nil {
		return nil, &Error{Kind: BadRequest, Method: method, Path: path, Message: "build request", Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	hook := c.sessionHook()
	if pinned, ok := pinnedBearer(ctx); ok {
		(&oauth2.Token{AccessToken: pinned}).SetAuthHeader(req)
	} else if hook != nil && !authSkipped(ctx) {
		if tok, err := hook.Token(); err == nil && tok != nil && tok.AccessToken != "" {
			tok.SetAuthHeader(req)
		}
	}

	resp, err := c.breaker.Execute(func() (*response, error) {
		httpResp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		defer httpResp.Body.Close()
		data, err := io.ReadAll(io.LimitReader(httpResp.Body, maxBodySize))
		if err != nil {
			return nil, err
		}
		r := &response{status: httpResp.StatusCode, body: data}
		if r.status >= 500 {
			return r, errServerStatus
		}
		return r, nil
	})
	if resp == nil {
		return nil, c.networkError(method, path, err)
	}

	log.Debug().Str("method", method).Str("path", path).Int("status", resp.status).Msg("api response")

	if resp.status < 200 || resp.status > 299 {
		apiErr := &Error{
			Kind:    kindForStatus(resp.status),
			Status:  resp.status,
			Method:  method,
			Path:    path,
			Message: serverMessage(resp.body),
		}
		if apiErr.Kind == Unauthorized && hook != nil && !unauthorizedHookSkipped(ctx) {
			hook.OnUnauthorized()
		}
		return nil, apiErr
	}

	if len(bytes.TrimSpace(resp.body)) == 0 {
		return nil, nil
	}
	if !json.Valid(resp.body) {
		return nil, &Error{Kind: ParseError, Status: resp.status, Method: method, Path: path, Message: "response body is not valid JSON"}
	}
	return json.RawMessage(resp.body), nil
}

func (c *Client) networkError(method, path string, err error) *Error {
	msg := "request failed"
	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		msg = "circuit breaker open"
	case errors.Is(err, context.DeadlineExceeded):
		msg = "request timed out"
	case errors.Is(err, context.Canceled):
		msg = "request canceled"
	}
	return &Error{Kind: NetworkError, Method: method, Path: path, Message: msg, Err: err}
}

// serverMessage pulls a human readable message out of an error body.
func serverMessage(body []byte) string {
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	if payload.Message != "" {
		return payload.Message
	}
	return payload.Error
}

// Decode unmarshals a response into T. A malformed payload is a ParseError.
func Decode[T any](raw json.RawMessage) (T, error) {
	var out T
	if len(raw) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, &Error{Kind: ParseError, Message: "decode response", Err: err}
	}
	return out, nil
}

// GetJSON issues a GET and decodes the body into T.
func GetJSON[T any](ctx context.Context, c *Client, path string) (T, error) {
	raw, err := c.Get(ctx, path)
	if err != nil {
		var zero T
		return zero, err
	}
	return Decode[T](raw)
}

// SendJSON issues a mutation and decodes the body into T.
func SendJSON[T any](ctx context.Context, c *Client, method, path string, body any) (T, error) {
	raw, err := c.Request(ctx, method, path, body)
	if err != nil {
		var zero T
		return zero, err
	}
	return Decode[T](raw)
}
