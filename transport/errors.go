// Package transport provides the pooled HTTP connections the client sends
// JSON-RPC requests through.
package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"
)

// ErrPoolClosed is returned by checkouts against a closed pool.
var ErrPoolClosed = errors.New("transport: pool is closed")

// PoolTimeoutError is returned when no connection became available within
// the checkout timeout.
type PoolTimeoutError struct {
	Waited time.Duration
}

func (e *PoolTimeoutError) Error() string {
	return fmt.Sprintf("transport: no connection available after %v", e.Waited)
}

// TransportError is a connection-level failure or a non-2xx HTTP response.
type TransportError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("transport: %s: unexpected status %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("transport: %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Retryable reports whether the failure is transient: connection errors,
// 5xx responses and request timeouts (408).
func (e *TransportError) Retryable() bool {
	if e.StatusCode == 0 {
		return true
	}
	return e.StatusCode >= 500 || e.StatusCode == 408
}

// TimeoutError reports an expired deadline on dialing, sending or reading.
type TimeoutError struct {
	Op  string
	Err error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("transport: %s timed out: %v", e.Op, e.Err)
}

func (e *TimeoutError) Unwrap() error { return e.Err }

// classify maps an error from net/http into the transport taxonomy.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &TimeoutError{Op: op, Err: err}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &TimeoutError{Op: op, Err: err}
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	return &TransportError{Op: op, Err: err}
}
