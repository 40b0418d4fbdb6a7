package controller

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// csrfHeader is the header the controller uses to hand out and expect
// CSRF tokens on mutating requests.
const csrfHeader = "X-Csrf-Token"

// defaultTimeout bounds every request when the config leaves it unset.
const defaultTimeout = 30 * time.Second

// Logger is the minimal logging interface the client needs.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}

// Config holds controller connection settings.
type Config struct {
	// URL is the controller base URL, e.g. "https://192.168.1.1".
	URL string

	// Site is the controller site name, e.g. "default".
	Site string

	// Username and Password are local-account credentials.
	Username string
	Password string

	// Timeout bounds each HTTP request. Zero means 30s.
	Timeout time.Duration

	// VerifySSL controls TLS certificate verification. Gateways commonly
	// serve self-signed certificates, so false is a valid deployment.
	VerifySSL bool
}

// Client is the authenticated HTTP session against one controller.
//
// Thread Safety: all methods are safe for concurrent use. Login is
// single-flight; FetchAll and SetField may run concurrently with it and
// will simply fail with ErrAuthFailed until the session is restored.
type Client struct {
	cfg        Config
	baseURL    string
	httpClient *http.Client

	csrf   string
	csrfMu sync.RWMutex

	loginMu        sync.Mutex
	authInProgress atomic.Bool

	logger Logger
}

// New creates a controller client. It does not contact the controller;
// call Login (or let the first HandleAuthError do it).
func New(cfg Config) (*Client, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("%w: missing controller URL", ErrLoginFailed)
	}
	if cfg.Site == "" {
		cfg.Site = "default"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("creating cookie jar: %w", err)
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if !cfg.VerifySSL {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // self-signed gateway certs are a supported deployment
	}

	return &Client{
		cfg:     cfg,
		baseURL: strings.TrimRight(cfg.URL, "/"),
		httpClient: &http.Client{
			Jar:       jar,
			Timeout:   cfg.Timeout,
			Transport: transport,
		},
		logger: noopLogger{},
	}, nil
}

// SetLogger sets the logger for session events.
func (c *Client) SetLogger(logger Logger) {
	c.logger = logger
}

// Login authenticates against the controller and stores the session
// cookie and CSRF token. Safe to call repeatedly; concurrent callers
// collapse into one request.
func (c *Client) Login(ctx context.Context) error {
	c.loginMu.Lock()
	defer c.loginMu.Unlock()

	c.authInProgress.Store(true)
	defer c.authInProgress.Store(false)

	body, err := json.Marshal(map[string]string{
		"username": c.cfg.Username,
		"password": c.cfg.Password,
	})
	if err != nil {
		return fmt.Errorf("encoding login payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/auth/login", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrLoginFailed, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d", ErrLoginFailed, resp.StatusCode)
	}

	if token := resp.Header.Get(csrfHeader); token != "" {
		c.csrfMu.Lock()
		c.csrf = token
		c.csrfMu.Unlock()
	}

	c.logger.Debug("controller session established", "site", c.cfg.Site)
	return nil
}

// AuthInProgress reports whether a login is currently in flight. The
// coordinator skips fetching while this is true.
func (c *Client) AuthInProgress() bool {
	return c.authInProgress.Load()
}

// IsAuthError reports whether err looks like a session/auth failure the
// client can recover from by re-logging in.
func (c *Client) IsAuthError(err error) bool {
	return errors.Is(err, ErrAuthFailed)
}

// HandleAuthError attempts recovery from an auth failure by re-logging
// in. Returns true when err was an auth error and the session was
// restored; the caller should then retry on its next cycle.
func (c *Client) HandleAuthError(ctx context.Context, err error) bool {
	if !c.IsAuthError(err) {
		return false
	}

	c.logger.Warn("controller session expired, re-authenticating")
	if loginErr := c.Login(ctx); loginErr != nil {
		c.logger.Warn("re-authentication failed", "error", loginErr)
		return false
	}
	return true
}

// do executes one API request, translating auth-flavoured status codes
// to ErrAuthFailed and decoding the response body.
func (c *Client) do(ctx context.Context, method, path string, payload any) ([]byte, error) {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encoding request payload: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	c.csrfMu.RLock()
	if c.csrf != "" {
		req.Header.Set(csrfHeader, c.csrf)
	}
	c.csrfMu.RUnlock()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnexpectedStatus, err)
	}
	defer resp.Body.Close()

	// The controller rotates CSRF tokens; keep the latest.
	if token := resp.Header.Get(csrfHeader); token != "" {
		c.csrfMu.Lock()
		c.csrf = token
		c.csrfMu.Unlock()
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("%w: status %d on %s", ErrAuthFailed, resp.StatusCode, path)
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, fmt.Errorf("%w: status %d on %s", ErrUnexpectedStatus, resp.StatusCode, path)
	}

	return data, nil
}
