package middleware

import (
	"context"
	"fmt"
	"net/http"

	"golang.org/x/time/rate"
)

// RateLimitError is returned in non-blocking mode when the token bucket is
// empty.
type RateLimitError struct {
	Method string
}

func (e *RateLimitError) Error() string {
	if e.Method != "" {
		return fmt.Sprintf("middleware: rate limit exceeded for %s", e.Method)
	}
	return "middleware: rate limit exceeded"
}

// RateLimitConfig configures the token bucket.
type RateLimitConfig struct {
	// RequestsPerSecond is the bucket refill rate.
	RequestsPerSecond float64
	// BurstSize is the bucket capacity.
	BurstSize int
	// Blocking selects whether a drained bucket blocks the caller until a
	// token is available, or fails fast with *RateLimitError.
	Blocking bool
}

// DefaultRateLimitConfig returns the rate limit defaults.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerSecond: 10,
		BurstSize:         20,
		Blocking:          true,
	}
}

// RateLimit throttles outgoing calls with a token bucket.
type RateLimit struct {
	cfg     RateLimitConfig
	limiter *rate.Limiter
}

// NewRateLimit creates the middleware.
func NewRateLimit(cfg RateLimitConfig) *RateLimit {
	defaults := DefaultRateLimitConfig()
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = defaults.RequestsPerSecond
	}
	if cfg.BurstSize <= 0 {
		cfg.BurstSize = defaults.BurstSize
	}
	return &RateLimit{
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.BurstSize),
	}
}

func (rl *RateLimit) Name() string { return "rate-limit" }

// Call takes a token before dispatching, blocking or failing fast per the
// configuration.
func (rl *RateLimit) Call(ctx context.Context, req *http.Request, next Handler) (*http.Response, error) {
	if rl.cfg.Blocking {
		if err := rl.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	} else if !rl.limiter.Allow() {
		return nil, &RateLimitError{Method: MethodFromContext(ctx)}
	}
	return next(ctx, req)
}
