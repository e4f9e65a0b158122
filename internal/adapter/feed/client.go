// Package feed is the HTTP transport shared by the upstream open-data clients.
// Failures come back classified as domain network or shape errors.
package feed

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/couchcryptid/storm-data-shared/retry"
	"github.com/jonboulle/clockwork"

	"github.com/seoulnow/seoulnow-etl/internal/domain"
	"github.com/seoulnow/seoulnow-etl/internal/observability"
)

const (
	defaultTimeout = 30 * time.Second
	maxBackoff     = 5 * time.Second
	maxErrorBody   = 512
)

// Options configures a Client.
type Options struct {
	Feed         string // metrics label and error tag
	Timeout      time.Duration
	MaxRetries   int // additional attempts after a network failure; 0 disables retry
	RetryBackoff time.Duration
	VerifySSL    bool
	Clock        clockwork.Clock
	Metrics      *observability.Metrics
	Logger       *slog.Logger
}

// Client performs JSON GETs against one upstream feed.
type Client struct {
	feed       string
	httpClient *http.Client
	maxRetries int
	backoff    time.Duration
	clock      clockwork.Clock
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates a feed client. A zero Timeout means 30s.
func NewClient(opts Options) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	clock := opts.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if !opts.VerifySSL {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // EXTERNAL_API_VERIFY_SSL=false
	}

	return &Client{
		feed: opts.Feed,
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
		maxRetries: opts.MaxRetries,
		backoff:    opts.RetryBackoff,
		clock:      clock,
		metrics:    opts.Metrics,
		logger:     opts.Logger,
	}
}

// GetJSON issues GET rawURL?query and decodes the body into dest with numbers
// kept as json.Number. Transport failures and non-2xx statuses are network
// errors; an undecodable body is a shape error. op names the request in errors
// and logs so credentials embedded in the URL never leak.
func (c *Client) GetJSON(ctx context.Context, op, rawURL string, query url.Values, dest any) error {
	if len(query) > 0 {
		rawURL += "?" + query.Encode()
	}

	backoff := c.backoff
	for attempt := 0; ; attempt++ {
		err := c.do(ctx, op, rawURL, dest)
		if err == nil || !errors.Is(err, domain.ErrNetwork) || attempt >= c.maxRetries || ctx.Err() != nil {
			return err
		}

		wait := withJitter(backoff)
		c.logger.Warn("feed request failed, retrying",
			"feed", c.feed, "op", op, "attempt", attempt+1, "backoff", wait, "error", err)
		if !sleepWithContext(ctx, c.clock, wait) {
			return err
		}
		backoff = retry.NextBackoff(backoff, maxBackoff)
	}
}

func (c *Client) do(ctx context.Context, op, fullURL string, dest any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return domain.NewNetworkError(c.feed, op, fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Accept", "application/json")

	start := c.clock.Now()
	resp, err := c.httpClient.Do(req)
	c.metrics.FeedRequestDuration.WithLabelValues(c.feed).Observe(c.clock.Since(start).Seconds())
	if err != nil {
		c.metrics.FeedRequests.WithLabelValues(c.feed, string(domain.KindNetwork)).Inc()
		return domain.NewNetworkError(c.feed, op, redact(err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		c.metrics.FeedRequests.WithLabelValues(c.feed, string(domain.KindNetwork)).Inc()
		return domain.NewNetworkError(c.feed, op, fmt.Errorf("status %d: %s", resp.StatusCode, body))
	}

	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	if err := dec.Decode(dest); err != nil {
		c.metrics.FeedRequests.WithLabelValues(c.feed, string(domain.KindShape)).Inc()
		return domain.NewShapeError(c.feed, op, fmt.Errorf("decode response: %w", err))
	}

	c.metrics.FeedRequests.WithLabelValues(c.feed, "success").Inc()
	return nil
}

// redact drops the request URL from transport errors; both feeds carry their
// API key in the URL.
func redact(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return fmt.Errorf("%s request: %w", urlErr.Op, urlErr.Err)
	}
	return err
}
