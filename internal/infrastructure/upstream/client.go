package upstream

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/time/rate"

	"github.com/GriffinCanCode/captchaview/internal/infrastructure/resilience"
)

// Config configures the upstream HTTP client.
type Config struct {
	Timeout      time.Duration
	RetryCount   int
	RetryWaitMin time.Duration
	RetryWaitMax time.Duration
	// RequestsPerSecond caps outgoing requests. Zero means unlimited.
	RequestsPerSecond float64
	UserAgent         string
}

// DefaultConfig returns the client settings used by the provider probe.
func DefaultConfig() Config {
	return Config{
		Timeout:           5 * time.Second,
		RetryCount:        2,
		RetryWaitMin:      200 * time.Millisecond,
		RetryWaitMax:      2 * time.Second,
		RequestsPerSecond: 5,
		UserAgent:         "captchaview-probe/1.0",
	}
}

// Client wraps resty with rate limiting and a circuit breaker.
type Client struct {
	resty   *resty.Client
	limiter *rate.Limiter
	breaker *resilience.Breaker
	mu      sync.RWMutex
}

// NewClient creates an HTTP client for provider hosts.
func NewClient(cfg Config) *Client {
	// Pooled transport from the retryable client
	retryClient := retryablehttp.NewClient()
	retryClient.Logger = nil

	restyClient := resty.New().
		SetTransport(retryClient.HTTPClient.Transport).
		SetTimeout(cfg.Timeout).
		SetRetryCount(cfg.RetryCount).
		SetRetryWaitTime(cfg.RetryWaitMin).
		SetRetryMaxWaitTime(cfg.RetryWaitMax).
		SetHeader("User-Agent", cfg.UserAgent).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err != nil || r.StatusCode() >= http.StatusInternalServerError
		})

	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RequestsPerSecond > 0 {
		burst := int(cfg.RequestsPerSecond)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}

	breaker := resilience.New("provider-upstream", resilience.Settings{
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: resilience.TripAfter(5),
	})

	return &Client{
		resty:   restyClient,
		limiter: limiter,
		breaker: breaker,
	}
}

// Get fetches url. Responses with a 5xx status count against the breaker
// and are returned with an error.
func (c *Client) Get(ctx context.Context, url string) (*resty.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit error: %w", err)
	}

	var resp *resty.Response
	err := c.breaker.Execute(ctx, func(ctx context.Context) error {
		c.mu.RLock()
		req := c.resty.R().SetContext(ctx)
		c.mu.RUnlock()

		r, err := req.Get(url)
		resp = r
		if err != nil {
			return err
		}
		if r.StatusCode() >= http.StatusInternalServerError {
			return fmt.Errorf("upstream returned %s", r.Status())
		}
		return nil
	})
	return resp, err
}

// SetTransport replaces the HTTP transport.
func (c *Client) SetTransport(rt http.RoundTripper) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resty.SetTransport(rt)
}

// BreakerState returns the current circuit breaker state
func (c *Client) BreakerState() resilience.State {
	return c.breaker.State()
}
