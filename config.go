// Package a2aclient is a client for the A2A agent-to-agent protocol: JSON-RPC
// 2.0 over HTTP with server-sent-events streaming, pluggable authentication,
// transport negotiation against the agent card, and a resilience middleware
// chain (logging, rate limiting, circuit breaking, retries).
package a2aclient

import (
	"fmt"
	"time"

	"github.com/praxis/a2a-client-go/a2a"
	"github.com/praxis/a2a-client-go/middleware"
	"github.com/praxis/a2a-client-go/transport"
)

// Config is the resolved client configuration. It is a plain value passed to
// New; the library performs no file or environment loading.
type Config struct {
	// AgentURL is the base URL of the target agent, used to fetch the
	// agent card when one is not supplied via WithAgentCard.
	AgentURL string

	// SupportedTransports is the client's transport preference order.
	SupportedTransports []a2a.TransportProtocol
	// UseClientPreference gives the client's order priority over the
	// agent's advertised preference during negotiation.
	UseClientPreference bool

	// Timeout bounds a whole unary call. Streaming calls are exempt; they
	// are bounded by the caller's context.
	Timeout time.Duration
	// ConnectTimeout bounds dialing and TLS setup per connection.
	ConnectTimeout time.Duration

	// PoolSize, IdleTimeout and CheckoutTimeout size the connection pool.
	PoolSize        int
	IdleTimeout     time.Duration
	CheckoutTimeout time.Duration

	Retry          middleware.RetryConfig
	CircuitBreaker middleware.CircuitBreakerConfig
	// RateLimit is optional; nil disables throttling.
	RateLimit *middleware.RateLimitConfig

	// AuthAutoRetry enables the single refresh-and-retry on auth failures.
	AuthAutoRetry bool

	// Headers are added to every outgoing request.
	Headers   map[string]string
	UserAgent string

	// StreamBuffer is the bounded event buffer per stream; the producer
	// blocks when the consumer falls this far behind.
	StreamBuffer int
}

// DefaultConfig returns the client defaults for the given agent URL.
func DefaultConfig(agentURL string) Config {
	return Config{
		AgentURL:            agentURL,
		SupportedTransports: []a2a.TransportProtocol{a2a.TransportJSONRPC, a2a.TransportHTTPJSON},
		UseClientPreference: false,
		Timeout:             60 * time.Second,
		ConnectTimeout:      10 * time.Second,
		PoolSize:            10,
		IdleTimeout:         5 * time.Minute,
		CheckoutTimeout:     30 * time.Second,
		Retry:               middleware.DefaultRetryConfig(),
		CircuitBreaker:      middleware.DefaultCircuitBreakerConfig(),
		AuthAutoRetry:       true,
		UserAgent:           "a2a-client-go",
		StreamBuffer:        64,
	}
}

// Validate checks the configuration for values the client cannot run with.
func (c *Config) Validate() error {
	if c.AgentURL == "" {
		return fmt.Errorf("a2aclient: agent URL cannot be empty")
	}
	if len(c.SupportedTransports) == 0 {
		return fmt.Errorf("a2aclient: at least one supported transport is required")
	}
	for _, tp := range c.SupportedTransports {
		switch tp {
		case a2a.TransportJSONRPC, a2a.TransportHTTPJSON:
		case a2a.TransportGRPC:
			return fmt.Errorf("a2aclient: transport %s is negotiable but has no wire implementation in this client", tp)
		default:
			return fmt.Errorf("a2aclient: unknown transport %q", tp)
		}
	}
	if c.PoolSize <= 0 {
		return fmt.Errorf("a2aclient: pool size must be positive")
	}
	if c.StreamBuffer <= 0 {
		return fmt.Errorf("a2aclient: stream buffer must be positive")
	}
	return nil
}

func (c *Config) poolConfig() transport.PoolConfig {
	return transport.PoolConfig{
		Size:            c.PoolSize,
		IdleTimeout:     c.IdleTimeout,
		CheckoutTimeout: c.CheckoutTimeout,
		ConnectTimeout:  c.ConnectTimeout,
	}
}
