package middleware

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"

	"github.com/praxis/a2a-client-go/jsonrpc"
	"github.com/praxis/a2a-client-go/transport"
)

// RetryConfig controls the retry middleware's schedule and predicate.
type RetryConfig struct {
	// MaxAttempts is the total number of dispatches, the first included.
	MaxAttempts int
	// InitialDelay is the wait before the first retry.
	InitialDelay time.Duration
	// BackoffMultiplier scales the delay after each attempt.
	BackoffMultiplier float64
	// MaxDelay caps the delay between attempts.
	MaxDelay time.Duration
	// RetryOn overrides the default transient-failure predicate.
	RetryOn func(resp *http.Response, err error) bool
}

// DefaultRetryConfig returns the retry defaults.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:       3,
		InitialDelay:      500 * time.Millisecond,
		BackoffMultiplier: 2.0,
		MaxDelay:          30 * time.Second,
	}
}

// newBackOff builds the deterministic delay schedule
// min(initial × multiplier^(n-1), max).
func (c RetryConfig) newBackOff() backoff.BackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.InitialDelay
	bo.Multiplier = c.BackoffMultiplier
	bo.MaxInterval = c.MaxDelay
	bo.RandomizationFactor = 0
	bo.MaxElapsedTime = 0
	bo.Reset()
	return bo
}

// Retry re-dispatches transient failures up to MaxAttempts with capped
// exponential backoff. Non-transient failures pass through on the first
// attempt.
type Retry struct {
	cfg    RetryConfig
	clock  clockwork.Clock
	logger *logrus.Logger
}

// NewRetry creates the middleware. A nil logger defaults to logrus.New().
func NewRetry(cfg RetryConfig, logger *logrus.Logger) *Retry {
	return NewRetryWithClock(cfg, logger, clockwork.NewRealClock())
}

// NewRetryWithClock creates the middleware on an injected clock.
func NewRetryWithClock(cfg RetryConfig, logger *logrus.Logger, clock clockwork.Clock) *Retry {
	if logger == nil {
		logger = logrus.New()
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultRetryConfig().MaxAttempts
	}
	if cfg.RetryOn == nil {
		cfg.RetryOn = DefaultRetryOn
	}
	return &Retry{cfg: cfg, clock: clock, logger: logger}
}

func (r *Retry) Name() string { return "retry" }

// Call dispatches the request, retrying per the configured schedule. The
// request body is re-materialized from GetBody for every retry.
func (r *Retry) Call(ctx context.Context, req *http.Request, next Handler) (*http.Response, error) {
	bo := r.cfg.newBackOff()

	var resp *http.Response
	var err error
	for attempt := 1; ; attempt++ {
		attemptReq := req
		if attempt > 1 {
			attemptReq, err = rewindRequest(ctx, req)
			if err != nil {
				return nil, err
			}
		}

		resp, err = next(ctx, attemptReq)
		if !r.cfg.RetryOn(resp, err) || attempt >= r.cfg.MaxAttempts {
			return resp, err
		}

		// The failed response is abandoned; release its connection.
		drain(resp)
		delay := bo.NextBackOff()
		r.logger.WithFields(logrus.Fields{
			"method":  MethodFromContext(ctx),
			"attempt": attempt,
			"delay":   delay,
		}).Debug("retrying transient failure")

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-r.clock.After(delay):
		}
	}
}

// DefaultRetryOn treats timeouts, connection-level failures, 5xx and 408
// responses, and retryable JSON-RPC errors as transient.
func DefaultRetryOn(resp *http.Response, err error) bool {
	if err != nil {
		var timeoutErr *transport.TimeoutError
		if errors.As(err, &timeoutErr) {
			return true
		}
		var transportErr *transport.TransportError
		if errors.As(err, &transportErr) {
			return transportErr.Retryable()
		}
		var rpcErr *jsonrpc.Error
		if errors.As(err, &rpcErr) {
			return rpcErr.Retryable()
		}
		return false
	}
	if resp == nil {
		return false
	}
	return resp.StatusCode >= 500 || resp.StatusCode == http.StatusRequestTimeout
}

func rewindRequest(ctx context.Context, req *http.Request) (*http.Request, error) {
	clone := req.Clone(ctx)
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, err
		}
		clone.Body = body
	}
	return clone, nil
}

func drain(resp *http.Response) {
	if resp != nil && resp.Body != nil {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<20))
		resp.Body.Close()
	}
}
