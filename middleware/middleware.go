// Package middleware implements the client's resilience chain: retry with
// exponential backoff, a circuit breaker, token-bucket rate limiting and
// request logging, composed around a terminal transport handler.
package middleware

import (
	"context"
	"net/http"
)

// Handler dispatches a request and returns its response.
type Handler func(ctx context.Context, req *http.Request) (*http.Response, error)

// Middleware intercepts a call on its way to the next handler.
type Middleware interface {
	Name() string
	Call(ctx context.Context, req *http.Request, next Handler) (*http.Response, error)
}

// Chain folds middlewares around the final handler right-to-left, so the
// first middleware is outermost and sees the raw call.
func Chain(final Handler, mws ...Middleware) Handler {
	h := final
	for i := len(mws) - 1; i >= 0; i-- {
		mw := mws[i]
		next := h
		h = func(ctx context.Context, req *http.Request) (*http.Response, error) {
			return mw.Call(ctx, req, next)
		}
	}
	return h
}

type contextKey int

const methodKey contextKey = iota

// WithMethod annotates the context with the RPC method being dispatched, so
// middlewares can log and label without parsing the request body.
func WithMethod(ctx context.Context, method string) context.Context {
	return context.WithValue(ctx, methodKey, method)
}

// MethodFromContext returns the RPC method set by WithMethod, if any.
func MethodFromContext(ctx context.Context) string {
	method, _ := ctx.Value(methodKey).(string)
	return method
}
