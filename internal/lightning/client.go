package lightning

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/lightningnetwork/lnd/clock"
	"github.com/sirupsen/logrus"
)

const (
	// DefaultTimeout bounds each of the two network round trips.
	DefaultTimeout = 10 * time.Second

	// DefaultValidityWindow is how long a descriptor is displayed as
	// payable. It is a display hint, not the invoice's own expiry.
	DefaultValidityWindow = time.Hour

	defaultScheme    = "https"
	defaultUserAgent = "zapdesk"

	// maxResponseBytes caps LNURL response bodies.
	maxResponseBytes = 1 << 20
)

// Client handles LNURL-pay operations for generating bolt11 invoices.
// A Client is safe for concurrent use; every resolution keeps its own state.
type Client struct {
	httpClient     *http.Client
	timeout        time.Duration
	validityWindow time.Duration
	scheme         string
	userAgent      string
	clock          clock.Clock
	log            logrus.FieldLogger
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithValidityWindow sets how long built descriptors are displayed as payable.
func WithValidityWindow(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.validityWindow = d
		}
	}
}

// WithScheme overrides the discovery URL scheme. Only useful against local
// or regtest services that do not serve TLS.
func WithScheme(scheme string) Option {
	return func(c *Client) {
		if scheme != "" {
			c.scheme = scheme
		}
	}
}

// WithUserAgent sets the User-Agent header sent to LNURL services.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		if ua != "" {
			c.userAgent = ua
		}
	}
}

// WithClock replaces the wall clock used for descriptor timestamps.
func WithClock(clk clock.Clock) Option {
	return func(c *Client) {
		if clk != nil {
			c.clock = clk
		}
	}
}

// WithLogger sets the logger resolutions trace to.
func WithLogger(log logrus.FieldLogger) Option {
	return func(c *Client) {
		if log != nil {
			c.log = log
		}
	}
}

// NewClient creates a new LNURL-pay client with reasonable defaults.
func NewClient(opts ...Option) *Client {
	return NewClientWithHTTP(nil, opts...)
}

// NewClientWithHTTP creates a client with a custom http.Client (for testing).
// A nil http.Client gets one bounded by the configured timeout.
func NewClientWithHTTP(hc *http.Client, opts ...Option) *Client {
	c := &Client{
		timeout:        DefaultTimeout,
		validityWindow: DefaultValidityWindow,
		scheme:         defaultScheme,
		userAgent:      defaultUserAgent,
		clock:          clock.NewDefaultClock(),
		log:            discardLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}

	if hc == nil {
		hc = &http.Client{Timeout: c.timeout}
	}
	c.httpClient = hc

	return c
}

func discardLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// getJSON issues a single bounded GET and decodes the body into v.
// The returned status is 0 when no response was received.
func (c *Client) getJSON(ctx context.Context, url string, v any) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return resp.StatusCode, errors.New(http.StatusText(resp.StatusCode))
	}

	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(v); err != nil {
		return resp.StatusCode, err
	}

	return resp.StatusCode, nil
}

// fetchFailure builds the error for a failed round trip. A cancelled
// parent context means the resolution was superseded, not that the
// service is unreachable.
func fetchFailure(ctx context.Context, kind Kind, stage string, status int, err error) *Error {
	if errors.Is(ctx.Err(), context.Canceled) {
		return &Error{Kind: KindCancelled, Stage: stage, Err: err}
	}

	e := &Error{Kind: kind, Stage: stage, HTTPStatus: status, Err: err}
	if status != 0 && (status < 200 || status > 299) {
		// The status line already says everything.
		e.Err = nil
	}
	return e
}
