package irisfast

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/valyala/fasthttp"
)

// HeaderProvider returns headers attached to every request and handshake.
type HeaderProvider func() map[string]string

// AuthHeaders builds the X-User-* header set Iris expects. Empty values are skipped.
func AuthHeaders(userID, email, sessionID string) HeaderProvider {
	return func() map[string]string {
		h := map[string]string{}
		if userID != "" {
			h["X-User-Id"] = userID
		}
		if email != "" {
			h["X-User-Email"] = email
		}
		if sessionID != "" {
			h["X-Session-Id"] = sessionID
		}
		return h
	}
}

// Client talks to the Iris HTTP API.
type Client struct {
	baseURL string
	http    *fasthttp.Client
	headers HeaderProvider

	timeout  time.Duration
	retryMax int
}

type Option func(*Client)

func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

func WithHeaderProvider(h HeaderProvider) Option {
	return func(c *Client) { c.headers = h }
}

// WithRetry sets the attempt count for idempotent calls.
func WithRetry(n int) Option {
	return func(c *Client) { c.retryMax = n }
}

// WithDial replaces the TCP dialer; tests use an in-memory listener.
func WithDial(d fasthttp.DialFunc) Option {
	return func(c *Client) { c.http.Dial = d }
}

func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http: &fasthttp.Client{
			Name:            "swiss-bot",
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    10 * time.Second,
			MaxConnsPerHost: 64,
		},
		timeout:  10 * time.Second,
		retryMax: 3,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) GetConfig(ctx context.Context) (*Config, error) {
	var cfg Config
	if err := c.call(ctx, fasthttp.MethodGet, "/config", nil, &cfg, c.retryMax); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// SendMessage posts a text reply. Replies are not retried so a room never
// sees the same message twice.
func (c *Client) SendMessage(ctx context.Context, room, message string) error {
	return c.call(ctx, fasthttp.MethodPost, "/reply", ReplyRequest{Type: "text", Room: room, Data: message}, nil, 1)
}

func (c *Client) SendImage(ctx context.Context, room, imageBase64 string) error {
	return c.call(ctx, fasthttp.MethodPost, "/reply", ReplyRequest{Type: "image", Room: room, Data: imageBase64}, nil, 1)
}

func (c *Client) call(ctx context.Context, method, path string, in, out any, attempts int) error {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer func() {
		fasthttp.ReleaseRequest(req)
		fasthttp.ReleaseResponse(resp)
	}()

	req.Header.SetMethod(method)
	req.SetRequestURI(c.baseURL + path)
	req.Header.SetContentType("application/json")
	if c.headers != nil {
		for k, v := range c.headers() {
			if strings.TrimSpace(k) != "" && strings.TrimSpace(v) != "" {
				req.Header.Set(k, v)
			}
		}
	}
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		req.SetBody(payload)
	}

	if attempts < 1 {
		attempts = 1
	}
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			if err := sleepCtx(ctx, backoffDuration(attempt-1)); err != nil {
				return lastErr
			}
		}
		if err := c.http.DoDeadline(req, resp, c.deadline(ctx)); err != nil {
			lastErr = fmt.Errorf("%s %s: %w", method, path, err)
			continue
		}
		status := resp.StatusCode()
		if status < 200 || status >= 300 {
			lastErr = fmt.Errorf("iris api error: status=%d body=%s", status, truncate(string(resp.Body()), 512))
			if !shouldRetryStatus(status) {
				return lastErr
			}
			continue
		}
		if out != nil {
			if err := json.Unmarshal(resp.Body(), out); err != nil {
				return fmt.Errorf("decode response: %w", err)
			}
		}
		return nil
	}
	return lastErr
}

func (c *Client) deadline(ctx context.Context) time.Time {
	own := time.Now().Add(c.timeout)
	if dl, ok := ctx.Deadline(); ok && dl.Before(own) {
		return dl
	}
	return own
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// 100ms, 200ms, 400ms ... capped at 3.2s
func backoffDuration(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if attempt > 6 {
		attempt = 6
	}
	return time.Duration(1<<uint(attempt-1)) * 100 * time.Millisecond
}

func shouldRetryStatus(code int) bool {
	switch code {
	case fasthttp.StatusInternalServerError, fasthttp.StatusBadGateway,
		fasthttp.StatusServiceUnavailable, fasthttp.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
