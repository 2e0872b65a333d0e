package a2aclient

import (
	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"

	"github.com/praxis/a2a-client-go/a2a"
	"github.com/praxis/a2a-client-go/auth"
	"github.com/praxis/a2a-client-go/middleware"
)

// Option customizes a Client at construction time.
type Option func(*Client)

// WithLogger injects a logger; the default is logrus.New().
func WithLogger(logger *logrus.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// WithClock injects a clock, used by tests to control time-dependent
// behavior across the pool, breaker and credentials.
func WithClock(clock clockwork.Clock) Option {
	return func(c *Client) { c.clock = clock }
}

// WithAuth attaches an authentication strategy. Without one, requests go out
// unauthenticated.
func WithAuth(strategy auth.Strategy) Option {
	return func(c *Client) { c.strategy = strategy }
}

// WithMiddleware prepends custom middlewares outside the built-in chain.
func WithMiddleware(mws ...middleware.Middleware) Option {
	return func(c *Client) { c.extra = append(c.extra, mws...) }
}

// WithAgentCard supplies the agent's capability document directly, skipping
// the well-known card fetch.
func WithAgentCard(card *a2a.AgentCard) Option {
	return func(c *Client) { c.card = card }
}
