package transport

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"
)

// cleanupInterval bounds how often an idle sweep runs. Sweeps piggyback on
// checkouts instead of a dedicated timer goroutine.
const cleanupInterval = 60 * time.Second

// connAgeFactor caps connection lifetime at this multiple of the idle timeout.
const connAgeFactor = 10

// PoolConfig holds the sizing and timeout knobs for a connection pool.
type PoolConfig struct {
	Size            int
	IdleTimeout     time.Duration
	CheckoutTimeout time.Duration
	ConnectTimeout  time.Duration
}

// DefaultPoolConfig returns the pool defaults.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		Size:            10,
		IdleTimeout:     5 * time.Minute,
		CheckoutTimeout: 30 * time.Second,
		ConnectTimeout:  10 * time.Second,
	}
}

// Stats is a point-in-time snapshot of pool occupancy.
type Stats struct {
	Size       int
	Created    int
	Available  int
	CheckedOut int
}

// Pool is a bounded pool of reusable connections. Connections are created
// lazily up to Size; further checkouts wait for a checkin. All mutation
// happens under the pool's lock, making it safe for concurrent callers.
type Pool struct {
	cfg    PoolConfig
	clock  clockwork.Clock
	logger *logrus.Logger

	mu          sync.Mutex
	idle        []*Conn
	waiters     []chan *Conn
	created     int
	checkedOut  int
	lastCleanup time.Time
	closed      bool
}

// NewPool creates a pool. A nil logger defaults to logrus.New().
func NewPool(cfg PoolConfig, logger *logrus.Logger) *Pool {
	return NewPoolWithClock(cfg, logger, clockwork.NewRealClock())
}

// NewPoolWithClock creates a pool on an injected clock.
func NewPoolWithClock(cfg PoolConfig, logger *logrus.Logger, clock clockwork.Clock) *Pool {
	if logger == nil {
		logger = logrus.New()
	}
	if cfg.Size <= 0 {
		cfg.Size = DefaultPoolConfig().Size
	}
	return &Pool{
		cfg:         cfg,
		clock:       clock,
		logger:      logger,
		lastCleanup: clock.Now(),
	}
}

// Checkout acquires a connection, creating one lazily while fewer than Size
// exist, otherwise waiting up to CheckoutTimeout for a checkin. It returns
// a *PoolTimeoutError when the wait expires.
func (p *Pool) Checkout(ctx context.Context) (*Conn, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, ErrPoolClosed
	}
	p.maybeCleanupLocked()

	maxAge := connAgeFactor * p.cfg.IdleTimeout
	for len(p.idle) > 0 {
		conn := p.idle[len(p.idle)-1]
		p.idle = p.idle[:len(p.idle)-1]
		if !conn.valid(maxAge) {
			p.created--
			conn.Close()
			continue
		}
		p.checkedOut++
		p.mu.Unlock()
		return conn, nil
	}

	if p.created < p.cfg.Size {
		p.created++
		p.checkedOut++
		p.mu.Unlock()
		return newConn(p.cfg.ConnectTimeout, p.cfg.IdleTimeout, p.clock), nil
	}

	// Pool exhausted: queue behind the next checkin.
	waiter := make(chan *Conn, 1)
	p.waiters = append(p.waiters, waiter)
	p.mu.Unlock()

	select {
	case conn := <-waiter:
		return conn, nil
	case <-ctx.Done():
		if conn, ok := p.abandonWaiter(waiter); ok {
			return conn, nil
		}
		return nil, ctx.Err()
	case <-p.clock.After(p.cfg.CheckoutTimeout):
		if conn, ok := p.abandonWaiter(waiter); ok {
			return conn, nil
		}
		return nil, &PoolTimeoutError{Waited: p.cfg.CheckoutTimeout}
	}
}

// abandonWaiter removes the waiter from the queue. If a checkin already
// handed it a connection, that connection wins over the timeout.
func (p *Pool) abandonWaiter(waiter chan *Conn) (*Conn, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, w := range p.waiters {
		if w == waiter {
			p.waiters = append(p.waiters[:i], p.waiters[i+1:]...)
			return nil, false
		}
	}
	select {
	case conn := <-waiter:
		return conn, true
	default:
		return nil, false
	}
}

// Checkin returns a connection to the pool. Invalid connections are
// discarded and their slot freed so a later checkout can create a fresh one.
func (p *Pool) Checkin(conn *Conn) {
	if conn == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	p.checkedOut--
	if p.closed || !conn.valid(connAgeFactor*p.cfg.IdleTimeout) {
		p.created--
		conn.Close()
		return
	}
	if len(p.waiters) > 0 {
		waiter := p.waiters[0]
		p.waiters = p.waiters[1:]
		p.checkedOut++
		waiter <- conn
		return
	}
	p.idle = append(p.idle, conn)
}

// Discard drops a checked-out connection without returning it, freeing its
// slot. Used when a caller knows the connection is unusable, e.g. after an
// abandoned event stream.
func (p *Pool) Discard(conn *Conn) {
	if conn == nil {
		return
	}
	conn.Close()
	p.Checkin(conn)
}

// WithConn runs fn with a checked-out connection, guaranteeing checkin on
// every exit path.
func (p *Pool) WithConn(ctx context.Context, fn func(*Conn) error) error {
	conn, err := p.Checkout(ctx)
	if err != nil {
		return err
	}
	defer p.Checkin(conn)
	return fn(conn)
}

// Stats returns a snapshot of the pool counters.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Stats{
		Size:       p.cfg.Size,
		Created:    p.created,
		Available:  len(p.idle),
		CheckedOut: p.checkedOut,
	}
}

// Close rejects future checkouts and closes all idle connections.
// Checked-out connections are closed as they come back.
func (p *Pool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	for _, conn := range p.idle {
		conn.Close()
		p.created--
	}
	p.idle = nil
}

// maybeCleanupLocked evicts connections idle beyond IdleTimeout, at most
// once per cleanupInterval. Caller holds p.mu.
func (p *Pool) maybeCleanupLocked() {
	now := p.clock.Now()
	if now.Sub(p.lastCleanup) < cleanupInterval {
		return
	}
	p.lastCleanup = now

	kept := p.idle[:0]
	evicted := 0
	for _, conn := range p.idle {
		if now.Sub(conn.idleSince()) > p.cfg.IdleTimeout {
			conn.Close()
			p.created--
			evicted++
			continue
		}
		kept = append(kept, conn)
	}
	p.idle = kept
	if evicted > 0 {
		p.logger.Debugf("connection pool evicted %d idle connections", evicted)
	}
}
