package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"
)

// JSON-RPC error codes that signal an auth failure on an otherwise
// successful HTTP exchange.
const (
	codeAuthenticationRequired  = -32004
	codeInsufficientPermissions = -32005
)

// SendFunc dispatches a prepared request and returns its response.
type SendFunc func(ctx context.Context, req *http.Request) (*http.Response, error)

// Interceptor wraps a Strategy: it applies credentials to each request,
// detects auth rejections in the response, and when AutoRetry is enabled
// performs exactly one refresh-and-resend. The single-retry ceiling keeps a
// server that rejects freshly refreshed credentials from looping.
type Interceptor struct {
	strategy  Strategy
	autoRetry bool
	logger    *logrus.Logger
}

// NewInterceptor creates an interceptor. The strategy may be nil, in which
// case requests pass through unauthenticated. A nil logger defaults to
// logrus.New().
func NewInterceptor(strategy Strategy, autoRetry bool, logger *logrus.Logger) *Interceptor {
	if logger == nil {
		logger = logrus.New()
	}
	return &Interceptor{strategy: strategy, autoRetry: autoRetry, logger: logger}
}

// Apply delegates to the wrapped strategy.
func (i *Interceptor) Apply(ctx context.Context, req *http.Request) error {
	if i.strategy == nil {
		return nil
	}
	return i.strategy.Apply(ctx, req)
}

// Do sends the request with credentials applied. On an auth failure it
// refreshes once and resends once; a second failure, a refresh error, or a
// non-refreshable strategy surfaces the original rejection.
func (i *Interceptor) Do(ctx context.Context, req *http.Request, send SendFunc) (*http.Response, error) {
	if err := i.Apply(ctx, req); err != nil {
		return nil, err
	}
	resp, err := send(ctx, req)
	if err != nil {
		return nil, err
	}

	authErr := i.detectFailure(resp)
	if authErr == nil {
		return resp, nil
	}

	refresher, refreshable := i.strategy.(Refresher)
	if !i.autoRetry || !refreshable {
		closeBody(resp)
		return nil, authErr
	}

	i.logger.Debug("auth failure detected, refreshing credentials and retrying once")
	if refreshErr := refresher.Refresh(ctx); refreshErr != nil {
		closeBody(resp)
		return nil, &AuthenticationError{Msg: "credential refresh failed", Err: refreshErr}
	}
	closeBody(resp)

	retry, err := cloneRequest(ctx, req)
	if err != nil {
		return nil, err
	}
	if err := i.Apply(ctx, retry); err != nil {
		return nil, err
	}
	resp, err = send(ctx, retry)
	if err != nil {
		return nil, err
	}
	if retryErr := i.detectFailure(resp); retryErr != nil {
		closeBody(resp)
		return nil, retryErr
	}
	return resp, nil
}

// detectFailure inspects a response for an auth rejection: HTTP 401/403, or
// a JSON-RPC auth error code inside a JSON body. The body is restored for
// downstream consumers.
func (i *Interceptor) detectFailure(resp *http.Response) error {
	switch resp.StatusCode {
	case http.StatusUnauthorized:
		return &AuthenticationError{Msg: "server returned 401 Unauthorized"}
	case http.StatusForbidden:
		return &AuthorizationError{Msg: "server returned 403 Forbidden"}
	}

	// Streaming and non-JSON bodies are never sniffed.
	if !strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		return nil
	}
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	resp.Body = io.NopCloser(bytes.NewReader(body))
	if err != nil {
		return nil
	}

	var envelope struct {
		Error *struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if json.Unmarshal(body, &envelope) != nil || envelope.Error == nil {
		return nil
	}
	switch envelope.Error.Code {
	case codeAuthenticationRequired:
		return &AuthenticationError{Msg: fmt.Sprintf("authentication required: %s", envelope.Error.Message)}
	case codeInsufficientPermissions:
		return &AuthorizationError{Msg: fmt.Sprintf("insufficient permissions: %s", envelope.Error.Message)}
	}
	return nil
}

func cloneRequest(ctx context.Context, req *http.Request) (*http.Request, error) {
	clone := req.Clone(ctx)
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, fmt.Errorf("auth: reread request body for retry: %w", err)
		}
		clone.Body = body
	}
	return clone, nil
}

func closeBody(resp *http.Response) {
	if resp != nil && resp.Body != nil {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<20))
		resp.Body.Close()
	}
}
