package middleware

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/praxis/a2a-client-go/transport"
)

func breakerUnderTest(t *testing.T) (*CircuitBreaker, clockwork.FakeClock) {
	t.Helper()
	clock := clockwork.NewFakeClock()
	cb := NewCircuitBreakerWithClock(CircuitBreakerConfig{
		FailureThreshold: 3,
		RecoveryTimeout:  30 * time.Second,
		SuccessThreshold: 2,
	}, nil, clock)
	return cb, clock
}

func failingHandler(calls *int) Handler {
	return func(ctx context.Context, req *http.Request) (*http.Response, error) {
		*calls++
		return nil, &transport.TransportError{Op: "send", Err: errors.New("refused")}
	}
}

func okHandler(calls *int) Handler {
	return func(ctx context.Context, req *http.Request) (*http.Response, error) {
		*calls++
		return response(http.StatusOK), nil
	}
}

func TestCircuitBreaker_FullStateMachine(t *testing.T) {
	cb, clock := breakerUnderTest(t)
	req := postRequest(t)
	ctx := context.Background()

	// Three consecutive failures open the circuit.
	var dispatched int
	for i := 0; i < 3; i++ {
		_, err := cb.Call(ctx, req, failingHandler(&dispatched))
		require.Error(t, err)
	}
	assert.Equal(t, StateOpen, cb.State())
	assert.Equal(t, 3, dispatched)

	// While open, calls fail fast without touching the handler.
	_, err := cb.Call(ctx, req, failingHandler(&dispatched))
	var openErr *CircuitOpenError
	require.ErrorAs(t, err, &openErr)
	assert.Equal(t, 3, dispatched)

	// After the recovery timeout the next call probes half-open.
	clock.Advance(30 * time.Second)
	_, err = cb.Call(ctx, req, okHandler(&dispatched))
	require.NoError(t, err)
	assert.Equal(t, StateHalfOpen, cb.State())
	assert.Equal(t, 4, dispatched)

	// A second success closes the circuit.
	_, err = cb.Call(ctx, req, okHandler(&dispatched))
	require.NoError(t, err)
	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	cb, clock := breakerUnderTest(t)
	req := postRequest(t)
	ctx := context.Background()

	var dispatched int
	for i := 0; i < 3; i++ {
		cb.Call(ctx, req, failingHandler(&dispatched))
	}
	require.Equal(t, StateOpen, cb.State())

	clock.Advance(30 * time.Second)
	_, err := cb.Call(ctx, req, failingHandler(&dispatched))
	require.Error(t, err)
	assert.Equal(t, StateOpen, cb.State(), "half-open failure must reopen")

	// The recovery timer restarted: still open just before it elapses.
	clock.Advance(29 * time.Second)
	_, err = cb.Call(ctx, req, okHandler(&dispatched))
	var openErr *CircuitOpenError
	require.ErrorAs(t, err, &openErr)

	clock.Advance(time.Second)
	_, err = cb.Call(ctx, req, okHandler(&dispatched))
	require.NoError(t, err)
	assert.Equal(t, StateHalfOpen, cb.State())
}

func TestCircuitBreaker_SuccessResetsFailureCount(t *testing.T) {
	cb, _ := breakerUnderTest(t)
	req := postRequest(t)
	ctx := context.Background()

	var dispatched int
	cb.Call(ctx, req, failingHandler(&dispatched))
	cb.Call(ctx, req, failingHandler(&dispatched))
	cb.Call(ctx, req, okHandler(&dispatched))
	cb.Call(ctx, req, failingHandler(&dispatched))
	cb.Call(ctx, req, failingHandler(&dispatched))

	assert.Equal(t, StateClosed, cb.State(), "interleaved success must reset the failure run")
}

func TestCircuitBreaker_AuthFailuresDoNotTrip(t *testing.T) {
	cb, _ := breakerUnderTest(t)
	req := postRequest(t)
	ctx := context.Background()

	next := func(ctx context.Context, req *http.Request) (*http.Response, error) {
		return response(http.StatusUnauthorized), nil
	}
	for i := 0; i < 10; i++ {
		_, err := cb.Call(ctx, req, next)
		require.NoError(t, err)
	}
	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreaker_OpenErrorReportsRemainingTime(t *testing.T) {
	cb, clock := breakerUnderTest(t)
	req := postRequest(t)
	ctx := context.Background()

	var dispatched int
	for i := 0; i < 3; i++ {
		cb.Call(ctx, req, failingHandler(&dispatched))
	}

	clock.Advance(10 * time.Second)
	_, err := cb.Call(ctx, req, okHandler(&dispatched))
	var openErr *CircuitOpenError
	require.ErrorAs(t, err, &openErr)
	assert.Equal(t, 20*time.Second, openErr.RetryAfter)
}
