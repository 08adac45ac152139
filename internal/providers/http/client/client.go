package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/widgetkit/internal/infrastructure/logging"
	"github.com/GriffinCanCode/widgetkit/internal/infrastructure/tracing"
)

var ErrCircuitOpen = errors.New("remote unavailable: circuit breaker open")

// StatusError is returned for responses with a 4xx or 5xx status
type StatusError struct {
	URL    string
	Status int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: unexpected status %d", e.URL, e.Status)
}

// Config tunes a Client
type Config struct {
	Name              string
	Timeout           time.Duration
	RetryMax          int
	RetryWaitMin      time.Duration
	RetryWaitMax      time.Duration
	RequestsPerSecond float64 // 0 means unlimited
	MaxFailures       uint32  // consecutive failures before the breaker opens
	OpenTimeout       time.Duration
	UserAgent         string
}

// DefaultConfig returns settings suited to fetching widget bundles
func DefaultConfig() Config {
	return Config{
		Name:         "bundle-fetch",
		Timeout:      30 * time.Second,
		RetryMax:     3,
		RetryWaitMin: time.Second,
		RetryWaitMax: 30 * time.Second,
		MaxFailures:  5,
		OpenTimeout:  30 * time.Second,
		UserAgent:    "widgetkit/1.0",
	}
}

// Client wraps resty with retries, rate limiting and a circuit breaker
type Client struct {
	resty   *resty.Client
	breaker *gobreaker.CircuitBreaker[*resty.Response]
	logger  *logging.Logger

	mu      sync.RWMutex
	limiter *rate.Limiter
}

// New creates a client. Retries happen in the transport, below the breaker,
// so one breaker sample covers a request and all its retries.
func New(cfg Config, logger *logging.Logger) *Client {
	if logger == nil {
		logger = logging.NewNop()
	}

	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = cfg.RetryMax
	retryClient.RetryWaitMin = cfg.RetryWaitMin
	retryClient.RetryWaitMax = cfg.RetryWaitMax
	retryClient.Logger = nil

	restyClient := resty.New().
		SetTimeout(cfg.Timeout).
		SetTransport(&retryablehttp.RoundTripper{Client: retryClient}).
		SetHeader("User-Agent", cfg.UserAgent)

	maxFailures := cfg.MaxFailures
	if maxFailures == 0 {
		maxFailures = 5
	}
	breaker := gobreaker.NewCircuitBreaker[*resty.Response](gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Circuit breaker state change",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
		IsSuccessful: func(err error) bool {
			// a canceled caller says nothing about the remote
			return err == nil || errors.Is(err, context.Canceled)
		},
	})

	c := &Client{
		resty:   restyClient,
		breaker: breaker,
		logger:  logger,
		limiter: rate.NewLimiter(rate.Inf, 0),
	}
	c.SetRateLimit(cfg.RequestsPerSecond)
	return c
}

// SetRateLimit sets requests per second; rps <= 0 removes the limit
func (c *Client) SetRateLimit(rps float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if rps <= 0 {
		c.limiter = rate.NewLimiter(rate.Inf, 0)
		return
	}
	burst := int(rps)
	if burst < 1 {
		burst = 1
	}
	c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
}

// Get fetches url and returns the body
func (c *Client) Get(ctx context.Context, url string) ([]byte, error) {
	c.mu.RLock()
	limiter := c.limiter
	c.mu.RUnlock()
	if err := limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit error: %w", err)
	}

	resp, err := c.breaker.Execute(func() (*resty.Response, error) {
		req := c.resty.R().SetContext(ctx)
		tracing.Inject(ctx, func(k, v string) { req.SetHeader(k, v) })
		resp, err := req.Get(url)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode() >= http.StatusBadRequest {
			return nil, &StatusError{URL: url, Status: resp.StatusCode()}
		}
		return resp, nil
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, ErrCircuitOpen
	}
	if err != nil {
		return nil, err
	}
	return resp.Body(), nil
}

// BreakerState returns the current circuit breaker state
func (c *Client) BreakerState() gobreaker.State {
	return c.breaker.State()
}

// BreakerCounts returns circuit breaker statistics
func (c *Client) BreakerCounts() gobreaker.Counts {
	return c.breaker.Counts()
}
