package transport

import (
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Conn is a single pooled HTTP connection. Each Conn owns its own
// http.Transport so closing it actually severs the underlying sockets
// instead of returning them to a shared keep-alive pool.
type Conn struct {
	client    *http.Client
	transport *http.Transport
	clock     clockwork.Clock

	mu         sync.Mutex
	createdAt  time.Time
	lastUsedAt time.Time
	closed     bool
}

func newConn(connectTimeout, idleTimeout time.Duration, clock clockwork.Clock) *Conn {
	tr := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   connectTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout: connectTimeout,
		IdleConnTimeout:     idleTimeout,
		MaxIdleConnsPerHost: 1,
	}
	now := clock.Now()
	return &Conn{
		client:     &http.Client{Transport: tr},
		transport:  tr,
		clock:      clock,
		createdAt:  now,
		lastUsedAt: now,
	}
}

// Do sends the request and classifies any failure into the transport error
// taxonomy. Deadlines come from the request context; the connection itself
// imposes none, so it can carry long-lived event streams.
func (c *Conn) Do(req *http.Request) (*http.Response, error) {
	c.touch()
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, classify("send "+req.Method+" "+req.URL.Path, err)
	}
	return resp, nil
}

// Close severs the connection. A closed Conn fails validation and is
// discarded on checkin rather than reused.
func (c *Conn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	c.transport.CloseIdleConnections()
}

func (c *Conn) touch() {
	c.mu.Lock()
	c.lastUsedAt = c.clock.Now()
	c.mu.Unlock()
}

// idleSince returns the last moment the connection carried traffic.
func (c *Conn) idleSince() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastUsedAt
}

// valid reports whether the connection may be reused: it must be open and
// no older than maxAge.
func (c *Conn) valid(maxAge time.Duration) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	return c.clock.Now().Sub(c.createdAt) <= maxAge
}
