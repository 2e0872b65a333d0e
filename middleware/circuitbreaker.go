package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"

	"github.com/praxis/a2a-client-go/jsonrpc"
	"github.com/praxis/a2a-client-go/transport"
)

// BreakerState is the circuit breaker's position.
type BreakerState string

const (
	StateClosed   BreakerState = "closed"
	StateOpen     BreakerState = "open"
	StateHalfOpen BreakerState = "half-open"
)

// CircuitOpenError is returned while the breaker rejects calls without
// dispatching them.
type CircuitOpenError struct {
	// RetryAfter is how long until the breaker will admit a probe.
	RetryAfter time.Duration
}

func (e *CircuitOpenError) Error() string {
	return fmt.Sprintf("middleware: circuit open, retry after %v", e.RetryAfter)
}

// CircuitBreakerConfig holds the breaker thresholds. They are deliberately
// configuration rather than constants; deployments disagree on defaults.
type CircuitBreakerConfig struct {
	// FailureThreshold is the consecutive-failure count that opens the
	// circuit from closed.
	FailureThreshold int
	// RecoveryTimeout is how long the circuit stays open before admitting
	// a half-open probe. Checked lazily on the next call.
	RecoveryTimeout time.Duration
	// SuccessThreshold is the consecutive-success count that closes the
	// circuit from half-open.
	SuccessThreshold int
	// IsFailure overrides the default failure predicate.
	IsFailure func(resp *http.Response, err error) bool
}

// DefaultCircuitBreakerConfig returns the breaker defaults.
func DefaultCircuitBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		FailureThreshold: 5,
		RecoveryTimeout:  30 * time.Second,
		SuccessThreshold: 2,
	}
}

// CircuitBreaker trips after a run of failures and fails calls fast until
// the dependency shows signs of recovery. State persists for the lifetime
// of the middleware instance.
type CircuitBreaker struct {
	cfg    CircuitBreakerConfig
	clock  clockwork.Clock
	logger *logrus.Logger

	mu                   sync.Mutex
	state                BreakerState
	consecutiveFailures  int
	consecutiveSuccesses int
	openedAt             time.Time
}

// NewCircuitBreaker creates the middleware. A nil logger defaults to
// logrus.New().
func NewCircuitBreaker(cfg CircuitBreakerConfig, logger *logrus.Logger) *CircuitBreaker {
	return NewCircuitBreakerWithClock(cfg, logger, clockwork.NewRealClock())
}

// NewCircuitBreakerWithClock creates the middleware on an injected clock.
func NewCircuitBreakerWithClock(cfg CircuitBreakerConfig, logger *logrus.Logger, clock clockwork.Clock) *CircuitBreaker {
	if logger == nil {
		logger = logrus.New()
	}
	defaults := DefaultCircuitBreakerConfig()
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = defaults.FailureThreshold
	}
	if cfg.RecoveryTimeout <= 0 {
		cfg.RecoveryTimeout = defaults.RecoveryTimeout
	}
	if cfg.SuccessThreshold <= 0 {
		cfg.SuccessThreshold = defaults.SuccessThreshold
	}
	if cfg.IsFailure == nil {
		cfg.IsFailure = DefaultIsFailure
	}
	return &CircuitBreaker{cfg: cfg, clock: clock, logger: logger, state: StateClosed}
}

func (cb *CircuitBreaker) Name() string { return "circuit-breaker" }

// State returns the breaker's current position.
func (cb *CircuitBreaker) State() BreakerState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Call admits the request unless the circuit is open, then records the
// outcome against the state machine.
func (cb *CircuitBreaker) Call(ctx context.Context, req *http.Request, next Handler) (*http.Response, error) {
	if err := cb.admit(); err != nil {
		return nil, err
	}
	resp, err := next(ctx, req)
	cb.record(cb.cfg.IsFailure(resp, err))
	return resp, err
}

// admit decides whether a call may proceed, lazily moving an expired open
// circuit to half-open.
func (cb *CircuitBreaker) admit() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state != StateOpen {
		return nil
	}
	elapsed := cb.clock.Now().Sub(cb.openedAt)
	if elapsed < cb.cfg.RecoveryTimeout {
		return &CircuitOpenError{RetryAfter: cb.cfg.RecoveryTimeout - elapsed}
	}
	cb.state = StateHalfOpen
	cb.consecutiveSuccesses = 0
	cb.logger.Debug("circuit breaker half-open, admitting probes")
	return nil
}

// record folds one outcome into the state machine.
func (cb *CircuitBreaker) record(failure bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		if failure {
			cb.consecutiveFailures++
			if cb.consecutiveFailures >= cb.cfg.FailureThreshold {
				cb.trip()
			}
			return
		}
		cb.consecutiveFailures = 0

	case StateHalfOpen:
		if failure {
			cb.trip()
			return
		}
		cb.consecutiveSuccesses++
		if cb.consecutiveSuccesses >= cb.cfg.SuccessThreshold {
			cb.state = StateClosed
			cb.consecutiveFailures = 0
			cb.consecutiveSuccesses = 0
			cb.logger.Info("circuit breaker closed")
		}

	case StateOpen:
		// A call admitted before the trip finishes after it; its outcome
		// no longer matters.
	}
}

// trip opens the circuit and restarts the recovery timer. Caller holds cb.mu.
func (cb *CircuitBreaker) trip() {
	cb.state = StateOpen
	cb.openedAt = cb.clock.Now()
	cb.consecutiveFailures = 0
	cb.consecutiveSuccesses = 0
	cb.logger.Warnf("circuit breaker opened for %v", cb.cfg.RecoveryTimeout)
}

// DefaultIsFailure counts transport-level failures, timeouts, 5xx responses
// and retryable JSON-RPC errors against the breaker. Auth rejections and
// client-side protocol errors do not trip it.
func DefaultIsFailure(resp *http.Response, err error) bool {
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
	return resp != nil && resp.StatusCode >= 500
}
