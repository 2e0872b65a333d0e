// Package auth provides the authentication strategies the client attaches
// to outgoing requests: OAuth2 client-credentials, JWT (static or
// generated) and API keys, plus an interceptor that recovers from a single
// authentication failure by refreshing the credential.
package auth

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// expiryBuffer is how long before nominal expiry a credential is treated as
// expired, so a refresh lands before the server starts rejecting it.
const expiryBuffer = 30 * time.Second

// Credential is an issued secret with an optional expiry. Credentials are
// immutable; a refresh produces a replacement rather than mutating in place.
type Credential struct {
	Value     string
	ExpiresAt time.Time
}

// Expired reports whether the credential is missing, past expiry, or within
// the refresh buffer of it. A zero ExpiresAt never expires.
func (c *Credential) Expired(now time.Time) bool {
	if c == nil || c.Value == "" {
		return true
	}
	if c.ExpiresAt.IsZero() {
		return false
	}
	return !now.Add(expiryBuffer).Before(c.ExpiresAt)
}

// Strategy attaches credentials to an outgoing request. Applying itself to
// the request is a strategy's only externally observable effect.
type Strategy interface {
	Apply(ctx context.Context, req *http.Request) error
}

// Refresher is implemented by strategies whose credentials can be renewed
// after a rejection.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// AuthenticationError reports that the server did not accept the presented
// credentials, or that obtaining credentials failed.
type AuthenticationError struct {
	Msg string
	Err error
}

func (e *AuthenticationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("auth: %s: %v", e.Msg, e.Err)
	}
	return fmt.Sprintf("auth: %s", e.Msg)
}

func (e *AuthenticationError) Unwrap() error { return e.Err }

// AuthorizationError reports that authenticated credentials lack permission
// for the attempted operation.
type AuthorizationError struct {
	Msg string
}

func (e *AuthorizationError) Error() string {
	return fmt.Sprintf("auth: %s", e.Msg)
}
