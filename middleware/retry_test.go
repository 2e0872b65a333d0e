package middleware

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/praxis/a2a-client-go/transport"
)

func response(status int) *http.Response {
	return &http.Response{
		StatusCode: status,
		Header:     http.Header{},
		Body:       io.NopCloser(strings.NewReader("{}")),
	}
}

func postRequest(t *testing.T) *http.Request {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, "http://agent.example/rpc", strings.NewReader(`{"id":1}`))
	require.NoError(t, err)
	return req
}

func TestRetryConfig_DelaySequenceMonotonicAndCapped(t *testing.T) {
	cfg := RetryConfig{
		InitialDelay:      1 * time.Second,
		BackoffMultiplier: 2.0,
		MaxDelay:          10 * time.Second,
	}
	bo := cfg.newBackOff()

	want := []time.Duration{
		1 * time.Second,
		2 * time.Second,
		4 * time.Second,
		8 * time.Second,
		10 * time.Second,
		10 * time.Second,
	}
	for i, expected := range want {
		assert.Equal(t, expected, bo.NextBackOff(), "delay %d", i)
	}
}

func TestRetry_RecoversTransientFailure(t *testing.T) {
	retry := NewRetry(RetryConfig{
		MaxAttempts:       3,
		InitialDelay:      time.Millisecond,
		BackoffMultiplier: 2.0,
		MaxDelay:          5 * time.Millisecond,
	}, nil)

	attempts := 0
	next := func(ctx context.Context, req *http.Request) (*http.Response, error) {
		attempts++
		if attempts < 3 {
			return response(http.StatusServiceUnavailable), nil
		}
		return response(http.StatusOK), nil
	}

	resp, err := retry.Call(context.Background(), postRequest(t), next)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 3, attempts)
}

func TestRetry_SurfacesLastErrorAfterMaxAttempts(t *testing.T) {
	retry := NewRetry(RetryConfig{
		MaxAttempts:       3,
		InitialDelay:      time.Millisecond,
		BackoffMultiplier: 2.0,
		MaxDelay:          5 * time.Millisecond,
	}, nil)

	attempts := 0
	wantErr := &transport.TimeoutError{Op: "send", Err: errors.New("deadline")}
	next := func(ctx context.Context, req *http.Request) (*http.Response, error) {
		attempts++
		return nil, wantErr
	}

	_, err := retry.Call(context.Background(), postRequest(t), next)
	var timeoutErr *transport.TimeoutError
	require.ErrorAs(t, err, &timeoutErr)
	assert.Equal(t, 3, attempts)
}

func TestRetry_NonRetryablePassesThrough(t *testing.T) {
	retry := NewRetry(RetryConfig{MaxAttempts: 3, InitialDelay: time.Millisecond, BackoffMultiplier: 2, MaxDelay: time.Millisecond}, nil)

	attempts := 0
	next := func(ctx context.Context, req *http.Request) (*http.Response, error) {
		attempts++
		return response(http.StatusBadRequest), nil
	}

	resp, err := retry.Call(context.Background(), postRequest(t), next)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, 1, attempts, "4xx must not be retried")
}

func TestRetry_RewindsBodyPerAttempt(t *testing.T) {
	retry := NewRetry(RetryConfig{MaxAttempts: 2, InitialDelay: time.Millisecond, BackoffMultiplier: 2, MaxDelay: time.Millisecond}, nil)

	var bodies []string
	next := func(ctx context.Context, req *http.Request) (*http.Response, error) {
		body, _ := io.ReadAll(req.Body)
		bodies = append(bodies, string(body))
		return response(http.StatusBadGateway), nil
	}

	_, err := retry.Call(context.Background(), postRequest(t), next)
	require.NoError(t, err)
	require.Len(t, bodies, 2)
	assert.Equal(t, bodies[0], bodies[1], "retried request must carry the full body")
	assert.Equal(t, `{"id":1}`, bodies[1])
}

func TestRetry_ContextCancellationAbortsWait(t *testing.T) {
	retry := NewRetry(RetryConfig{MaxAttempts: 5, InitialDelay: time.Hour, BackoffMultiplier: 2, MaxDelay: time.Hour}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	next := func(ctx context.Context, req *http.Request) (*http.Response, error) {
		cancel()
		return response(http.StatusInternalServerError), nil
	}

	_, err := retry.Call(ctx, postRequest(t), next)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDefaultRetryOn(t *testing.T) {
	tests := []struct {
		name string
		resp *http.Response
		err  error
		want bool
	}{
		{"timeout error", nil, &transport.TimeoutError{Op: "send"}, true},
		{"connection error", nil, &transport.TransportError{Op: "dial", Err: errors.New("refused")}, true},
		{"http 500 as error", nil, &transport.TransportError{Op: "send", StatusCode: 500}, true},
		{"http 404 as error", nil, &transport.TransportError{Op: "send", StatusCode: 404}, false},
		{"5xx response", response(502), nil, true},
		{"408 response", response(408), nil, true},
		{"2xx response", response(200), nil, false},
		{"401 response", response(401), nil, false},
		{"other error", nil, errors.New("boom"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DefaultRetryOn(tt.resp, tt.err))
		})
	}
}
