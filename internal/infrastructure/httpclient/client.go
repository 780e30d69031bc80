package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/oauth2"

	"holachat/pkg/errors"
	"holachat/pkg/logger"
)

const maxErrorBody = 64 << 10

// Client performs authenticated JSON calls against the messaging API. The
// bearer token comes from the session token source on every request; a nil
// source sends anonymous requests (login).
type Client struct {
	baseURL string
	tokens  oauth2.TokenSource
	base    http.RoundTripper
	timeout time.Duration
	http    *http.Client
}

type Option func(*Client)

// WithBaseTransport replaces the transport under the auth layer.
func WithBaseTransport(rt http.RoundTripper) Option {
	return func(c *Client) {
		c.base = rt
	}
}

func New(baseURL string, tokens oauth2.TokenSource, timeout time.Duration, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		tokens:  tokens,
		base:    http.DefaultTransport,
		timeout: timeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	var rt http.RoundTripper = c.base
	if c.tokens != nil {
		rt = &oauth2.Transport{Source: c.tokens, Base: c.base}
	}
	c.http = &http.Client{Transport: otelhttp.NewTransport(rt)}
	return c
}

// Do sends body (if any) as JSON and decodes a 2xx reply into out (if any).
// Failures come back as *errors.AppError.
func (c *Client) Do(ctx context.Context, method, path string, body, out interface{}) error {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return errors.BadRequest("Failed to encode request body", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return errors.BadRequest("Invalid request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())

	resp, err := c.http.Do(req)
	if err != nil {
		return classify(ctx, method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Malformed(fmt.Sprintf("Unreadable response from %s %s", method, path), err)
	}
	return nil
}

func (c *Client) Get(ctx context.Context, path string, out interface{}) error {
	return c.Do(ctx, http.MethodGet, path, nil, out)
}

func (c *Client) Post(ctx context.Context, path string, body, out interface{}) error {
	return c.Do(ctx, http.MethodPost, path, body, out)
}

// classify turns a transport failure into the client error taxonomy. An
// AppError raised by the token source (no session) passes through untouched.
func classify(ctx context.Context, method, path string, err error) error {
	var appErr *errors.AppError
	if stderrors.As(err, &appErr) {
		return appErr
	}
	if stderrors.Is(err, context.DeadlineExceeded) || stderrors.Is(ctx.Err(), context.DeadlineExceeded) {
		return errors.Timeout(fmt.Sprintf("Request timed out: %s %s", method, path), err)
	}
	if stderrors.Is(err, context.Canceled) {
		return errors.New("CANCELED", "Request canceled", 499, err)
	}
	logger.Debug("Request %s %s failed: %v", method, path, err)
	return errors.Unavailable(fmt.Sprintf("Server unreachable: %s %s", method, path), err)
}

// decodeError reads {"message"} or {"error":{"message"}}, falling back to
// the status text.
func decodeError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	var body struct {
		Message string `json:"message"`
		Error   *struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	message := ""
	if len(data) > 0 && json.Unmarshal(data, &body) == nil {
		message = body.Message
		if message == "" && body.Error != nil {
			message = body.Error.Message
		}
	}
	if message == "" {
		message = fmt.Sprintf("API error: %s", http.StatusText(resp.StatusCode))
	}
	return errors.FromStatus(resp.StatusCode, message)
}
