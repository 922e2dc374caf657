// Package commentclient adapts the comment service HTTP API to thread.Service.
package commentclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	json "github.com/goccy/go-json"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/example/threadkit/internal/platform/api"
)

// TokenSource supplies the bearer token sent with every request. An empty
// token sends the request anonymously.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// StaticToken is a TokenSource that always returns itself.
type StaticToken string

func (t StaticToken) Token(context.Context) (string, error) { return string(t), nil }

// StatusError is a non-2xx answer of the comment service.
type StatusError struct {
	Op      string
	Status  int
	Code    string
	Message string
}

func (e *StatusError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s: status %d: %s: %s", e.Op, e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: status %d", e.Op, e.Status)
}

// Temporary reports whether retrying the request later may succeed.
func (e *StatusError) Temporary() bool {
	return e.Status >= 500 || e.Status == http.StatusTooManyRequests
}

// IsStatus reports whether err carries the given HTTP status.
func IsStatus(err error, status int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Status == status
}

type Client struct {
	http   *resty.Client
	cb     *gobreaker.CircuitBreaker
	tokens TokenSource
	log    *zap.Logger

	httpClient *http.Client
	timeout    time.Duration
	retries    int
	retryWait  time.Duration
}

// Option configures the Client.
type Option func(*Client)

func WithCircuitBreaker(cb *gobreaker.CircuitBreaker) Option {
	return func(c *Client) { c.cb = cb }
}

func WithLogger(log *zap.Logger) Option {
	return func(c *Client) {
		if log != nil {
			c.log = log
		}
	}
}

// WithHTTPClient replaces the underlying transport client; its own timeout
// is kept.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithRetries sets how often idempotent reads are retried after a transport
// error, 5xx or 429. Writes are never retried.
func WithRetries(n int, wait time.Duration) Option {
	return func(c *Client) {
		if n >= 0 {
			c.retries = n
		}
		if wait > 0 {
			c.retryWait = wait
		}
	}
}

func New(baseURL string, tokens TokenSource, opts ...Option) *Client {
	if tokens == nil {
		tokens = StaticToken("")
	}
	c := &Client{
		tokens:    tokens,
		log:       zap.NewNop(),
		timeout:   10 * time.Second,
		retries:   2,
		retryWait: 200 * time.Millisecond,
	}
	for _, o := range opts {
		o(c)
	}

	var rc *resty.Client
	if c.httpClient != nil {
		rc = resty.NewWithClient(c.httpClient)
	} else {
		rc = resty.New().SetTimeout(c.timeout)
	}
	rc.SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetHeader("Accept", "application/json").
		SetRetryCount(c.retries).
		SetRetryWaitTime(c.retryWait).
		SetRetryMaxWaitTime(8 * c.retryWait).
		AddRetryCondition(retryableRead)
	c.http = rc
	return c
}

// NewBreaker builds the circuit breaker used in front of the comment
// service. Client errors (4xx) do not count as failures.
func NewBreaker(name string, failureThreshold uint32, timeout time.Duration, log *zap.Logger) *gobreaker.CircuitBreaker {
	if log == nil {
		log = zap.NewNop()
	}
	if failureThreshold == 0 {
		failureThreshold = 5
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failureThreshold
		},
		IsSuccessful: func(err error) bool {
			var se *StatusError
			if errors.As(err, &se) {
				return !se.Temporary()
			}
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Info("circuit-breaker state change", zap.String("name", name), zap.String("from", from.String()), zap.String("to", to.String()))
		},
	})
}

func retryableRead(resp *resty.Response, err error) bool {
	if resp == nil || resp.Request == nil || resp.Request.Method != http.MethodGet {
		return false
	}
	if err != nil {
		return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
	}
	code := resp.StatusCode()
	return code >= 500 || code == http.StatusTooManyRequests
}

// request prepares an authenticated request bound to ctx.
func (c *Client) request(ctx context.Context) (*resty.Request, error) {
	tok, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("token: %w", err)
	}
	req := c.http.R().SetContext(ctx)
	if tok != "" {
		req.SetAuthToken(tok)
	}
	return req, nil
}

// do runs send behind the breaker and returns the body of a 2xx answer.
func (c *Client) do(op string, send func() (*resty.Response, error)) ([]byte, error) {
	call := func() (any, error) {
		resp, err := send()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		if resp.IsError() {
			return nil, statusError(op, resp)
		}
		return resp.Body(), nil
	}

	var (
		out any
		err error
	)
	if c.cb == nil {
		out, err = call()
	} else {
		out, err = c.cb.Execute(call)
	}
	if err != nil {
		c.log.Debug("comment service call failed", zap.String("op", op), zap.Error(err))
		return nil, err
	}
	return out.([]byte), nil
}

func statusError(op string, resp *resty.Response) *StatusError {
	se := &StatusError{Op: op, Status: resp.StatusCode()}
	if e, ok := api.ParseError(resp.Body()); ok {
		se.Code = e.Code
		se.Message = e.Message
	}
	return se
}

func decode(op string, body []byte, v any) error {
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("%s: %w: %v", op, ErrInconsistentResponse, err)
	}
	return nil
}
