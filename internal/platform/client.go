package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

const maxErrorBody = 1 << 20

// Options configures a platform API client.
type Options struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
	Logger  *logrus.Entry
}

// Client talks to the platform backend. It owns the outgoing-request
// configuration: the API key, the current bearer token, and the cookie jar
// that carries the HttpOnly auth cookie set by the backend. Clients are
// constructed explicitly and passed by reference; there is no package-level
// instance.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	log     *logrus.Entry

	mu             sync.RWMutex
	token          string
	onUnauthorized func(ctx context.Context)
}

// NewClient builds a Client for the given backend.
func NewClient(opts Options) (*Client, error) {
	if opts.BaseURL == "" {
		return nil, fmt.Errorf("platform: base URL is required")
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("platform: create cookie jar: %w", err)
	}

	log := opts.Logger
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	c := &Client{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		apiKey:  opts.APIKey,
		log:     log,
	}
	c.http = &http.Client{
		Jar:       jar,
		Timeout:   timeout,
		Transport: &authTransport{client: c, base: http.DefaultTransport},
	}
	return c, nil
}

// SetToken replaces the bearer token attached to outgoing requests. An empty
// token falls back to cookie-only auth.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

// Token returns the bearer token currently attached to outgoing requests.
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// SetUnauthorizedHook registers the callback invoked when a response carries
// session-invalid 401 semantics. The token lifecycle manager registers itself
// here.
func (c *Client) SetUnauthorizedHook(fn func(ctx context.Context)) {
	c.mu.Lock()
	c.onUnauthorized = fn
	c.mu.Unlock()
}

func (c *Client) unauthorizedHook() func(ctx context.Context) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.onUnauthorized
}

type ctxKey int

const skipUnauthorizedHookKey ctxKey = iota

// WithoutUnauthorizedHook marks a context so that 401 responses to requests
// made under it do not re-trigger the unauthorized hook. The lifecycle
// manager uses this for its own recovery probes, which would otherwise
// recurse into themselves.
func WithoutUnauthorizedHook(ctx context.Context) context.Context {
	return context.WithValue(ctx, skipUnauthorizedHookKey, true)
}

func hookSuppressed(ctx context.Context) bool {
	v, _ := ctx.Value(skipUnauthorizedHookKey).(bool)
	return v
}

// authTransport attaches credentials to every outgoing request and reacts to
// session-invalid 401 responses by invoking the unauthorized hook.
type authTransport struct {
	client *Client
	base   http.RoundTripper
}

func (t *authTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	out := req.Clone(req.Context())
	if t.client.apiKey != "" {
		out.Header.Set("X-API-Key", t.client.apiKey)
	}
	if tok := t.client.Token(); tok != "" && out.Header.Get("Authorization") == "" {
		out.Header.Set("Authorization", "Bearer "+tok)
	}

	resp, err := t.base.RoundTrip(out)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusUnauthorized && !hookSuppressed(req.Context()) {
		body, readErr := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		resp.Body.Close()
		if readErr != nil {
			body = nil
		}
		resp.Body = io.NopCloser(bytes.NewReader(body))

		msg, code := decodeAPIError(body)
		if isSessionInvalid(code, msg) {
			if hook := t.client.unauthorizedHook(); hook != nil {
				t.client.log.WithField("path", req.URL.Path).Info("session-invalid 401, invoking expiration handling")
				hook(req.Context())
			}
		}
	}
	return resp, nil
}

// do performs one JSON request/response cycle against the backend. Transport
// failures come back as *NetworkError; HTTP error statuses are mapped through
// errorFromResponse.
func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	op := method + " " + path

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: encode request: %w", op, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", op, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return &NetworkError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		// Error bodies are capped; success bodies are read in full.
		data, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		if err != nil {
			return &NetworkError{Op: op, Err: err}
		}
		return c.errorFromResponse(op, resp.StatusCode, data)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return &NetworkError{Op: op, Err: err}
	}
	if out != nil && len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("%s: decode response: %w", op, err)
		}
	}
	return nil
}

func (c *Client) errorFromResponse(op string, status int, body []byte) error {
	msg, code := decodeAPIError(body)
	switch {
	case status == http.StatusUnauthorized && isSessionInvalid(code, msg):
		return &SessionExpiredError{Message: msg}
	case status == http.StatusUnauthorized:
		return &AuthError{Message: msg}
	case status == http.StatusBadRequest && code == "validation_error":
		return &ValidationError{Message: msg}
	default:
		return fmt.Errorf("%s: backend returned %d: %s", op, status, msg)
	}
}
