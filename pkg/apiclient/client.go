// Package apiclient talks to the library backend. Every operation performs a
// single round trip and folds the outcome into a Response envelope; callers
// never see transport errors directly.
package apiclient

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"

	"libadmin/pkg/circuitbreaker"
	"libadmin/pkg/logging"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	DefaultBaseURL = "http://localhost:8080"
	DefaultTimeout = 10 * time.Second

	// DefaultSoftDeleteStatus is the 2xx status a backend uses to say a book
	// was only flagged deleted, when it sends no explicit disposition.
	DefaultSoftDeleteStatus = http.StatusAccepted
)

type Client struct {
	baseURL          string
	httpClient       *http.Client
	session          *Session
	breaker          *circuitbreaker.CircuitBreaker
	softDeleteStatus int
	logger           logging.Logger
}

type Option func(*Client)

func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient = &http.Client{Timeout: d} }
}

// WithBreaker guards calls with cb. Clients may share a breaker since they
// talk to the same backend.
func WithBreaker(cb *circuitbreaker.CircuitBreaker) Option {
	return func(c *Client) { c.breaker = cb }
}

func WithSoftDeleteStatus(status int) Option {
	return func(c *Client) { c.softDeleteStatus = status }
}

func WithLogger(l logging.Logger) Option {
	return func(c *Client) { c.logger = logging.OrNop(l) }
}

func NewClient(baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL:          strings.TrimRight(baseURL, "/"),
		httpClient:       &http.Client{Timeout: DefaultTimeout},
		softDeleteStatus: DefaultSoftDeleteStatus,
		logger:           logging.Nop{},
		session:          NewSession(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Session() *Session { return c.session }

// roundTrip performs the request. err is non-nil for transport failures,
// unreadable bodies, open breakers and non-2xx statuses; status is 0 when no
// response was received.
func (c *Client) roundTrip(ctx context.Context, method, path string, payload any) (int, []byte, error) {
	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return 0, nil, fmt.Errorf("encode request body: %w", err)
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return 0, nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.session.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	var (
		status int
		data   []byte
	)
	do := func() error {
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		status = resp.StatusCode
		data, err = io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("read response body: %w", err)
		}
		if status >= http.StatusInternalServerError {
			return &StatusError{Code: status}
		}
		return nil
	}

	if c.breaker != nil {
		err = c.breaker.Execute(do)
	} else {
		err = do()
	}
	if err != nil {
		return status, data, err
	}
	if status < 200 || status > 299 {
		return status, data, &StatusError{Code: status}
	}
	return status, data, nil
}

func call[T any](ctx context.Context, c *Client, op, method, path string, payload any, decode func([]byte) (T, error)) Response[T] {
	status, body, err := c.roundTrip(ctx, method, path, payload)
	if err != nil {
		c.logger.Warn("backend request failed", "op", op, "status", status, "error", err)
		return fail[T](status, err)
	}
	data, err := decode(body)
	if err != nil {
		err = fmt.Errorf("decode %s response: %w", op, err)
		c.logger.Warn("backend response rejected", "op", op, "status", status, "error", err)
		return fail[T](status, err)
	}
	c.logger.Debug("backend request done", "op", op, "status", status)
	return ok(data, status)
}

func decodeJSON[T any](body []byte) (T, error) {
	var v T
	if len(bytes.TrimSpace(body)) == 0 {
		return v, nil
	}
	err := json.Unmarshal(body, &v)
	return v, err
}

// decodeText reads a bare string payload, sent either as a JSON string or as
// plain text.
func decodeText(body []byte) (string, error) {
	body = bytes.TrimSpace(body)
	if len(body) > 0 && body[0] == '"' {
		var s string
		if err := json.Unmarshal(body, &s); err != nil {
			return "", err
		}
		return s, nil
	}
	return string(body), nil
}
