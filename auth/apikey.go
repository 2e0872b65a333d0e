package auth

import (
	"context"
	"fmt"
	"net/http"
)

// APIKeyLocation is where an API key is placed on the request.
type APIKeyLocation string

const (
	APIKeyInHeader APIKeyLocation = "header"
	APIKeyInQuery  APIKeyLocation = "query"
	APIKeyInCookie APIKeyLocation = "cookie"
)

// APIKey implements Strategy with a named key placed in a header, query
// parameter or cookie.
type APIKey struct {
	Key  string
	Name string
	In   APIKeyLocation
}

// NewAPIKey creates the strategy. An empty location defaults to header.
func NewAPIKey(key, name string, in APIKeyLocation) (*APIKey, error) {
	if key == "" || name == "" {
		return nil, fmt.Errorf("auth: API key and name must be set")
	}
	if in == "" {
		in = APIKeyInHeader
	}
	switch in {
	case APIKeyInHeader, APIKeyInQuery, APIKeyInCookie:
	default:
		return nil, fmt.Errorf("auth: unsupported API key location %q", in)
	}
	return &APIKey{Key: key, Name: name, In: in}, nil
}

// Apply places the key on the request. Cookie placement appends to an
// existing Cookie header instead of overwriting it.
func (a *APIKey) Apply(ctx context.Context, req *http.Request) error {
	switch a.In {
	case APIKeyInQuery:
		q := req.URL.Query()
		q.Set(a.Name, a.Key)
		req.URL.RawQuery = q.Encode()
	case APIKeyInCookie:
		cookie := a.Name + "=" + a.Key
		if existing := req.Header.Get("Cookie"); existing != "" {
			cookie = existing + "; " + cookie
		}
		req.Header.Set("Cookie", cookie)
	default:
		req.Header.Set(a.Name, a.Key)
	}
	return nil
}
