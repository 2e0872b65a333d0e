package transport

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPool(t *testing.T, size int, checkoutTimeout time.Duration) *Pool {
	t.Helper()
	p := NewPool(PoolConfig{
		Size:            size,
		IdleTimeout:     time.Minute,
		CheckoutTimeout: checkoutTimeout,
		ConnectTimeout:  time.Second,
	}, nil)
	t.Cleanup(p.Close)
	return p
}

func TestPool_LazyCreationAndReuse(t *testing.T) {
	p := testPool(t, 2, time.Second)

	conn, err := p.Checkout(context.Background())
	require.NoError(t, err)

	stats := p.Stats()
	assert.Equal(t, 1, stats.Created)
	assert.Equal(t, 1, stats.CheckedOut)
	assert.Equal(t, 0, stats.Available)

	p.Checkin(conn)
	stats = p.Stats()
	assert.Equal(t, 1, stats.Created)
	assert.Equal(t, 0, stats.CheckedOut)
	assert.Equal(t, 1, stats.Available)

	// Reuse the idle connection instead of creating a second one.
	again, err := p.Checkout(context.Background())
	require.NoError(t, err)
	assert.Same(t, conn, again)
	assert.Equal(t, 1, p.Stats().Created)
	p.Checkin(again)
}

func TestPool_ThirdCheckoutBlocksUntilCheckin(t *testing.T) {
	p := testPool(t, 2, 5*time.Second)

	first, err := p.Checkout(context.Background())
	require.NoError(t, err)
	second, err := p.Checkout(context.Background())
	require.NoError(t, err)

	got := make(chan *Conn, 1)
	go func() {
		conn, err := p.Checkout(context.Background())
		if err == nil {
			got <- conn
		}
	}()

	select {
	case <-got:
		t.Fatal("third checkout should block while pool is exhausted")
	case <-time.After(50 * time.Millisecond):
	}

	p.Checkin(first)

	select {
	case conn := <-got:
		assert.Same(t, first, conn)
		p.Checkin(conn)
	case <-time.After(time.Second):
		t.Fatal("blocked checkout was not released by checkin")
	}
	p.Checkin(second)
}

func TestPool_CheckoutTimesOut(t *testing.T) {
	p := testPool(t, 1, 50*time.Millisecond)

	conn, err := p.Checkout(context.Background())
	require.NoError(t, err)
	defer p.Checkin(conn)

	_, err = p.Checkout(context.Background())
	var timeoutErr *PoolTimeoutError
	require.Error(t, err)
	assert.True(t, errors.As(err, &timeoutErr))
}

func TestPool_CheckoutHonorsContext(t *testing.T) {
	p := testPool(t, 1, time.Minute)

	conn, err := p.Checkout(context.Background())
	require.NoError(t, err)
	defer p.Checkin(conn)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	_, err = p.Checkout(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestPool_ClosedConnNotReused(t *testing.T) {
	p := testPool(t, 1, time.Second)

	conn, err := p.Checkout(context.Background())
	require.NoError(t, err)

	conn.Close()
	p.Checkin(conn)

	stats := p.Stats()
	assert.Equal(t, 0, stats.Created, "closed connection should free its slot")
	assert.Equal(t, 0, stats.Available)

	// The freed slot allows a fresh connection.
	fresh, err := p.Checkout(context.Background())
	require.NoError(t, err)
	assert.NotSame(t, conn, fresh)
	p.Checkin(fresh)
}

func TestPool_StatsInvariantUnderConcurrency(t *testing.T) {
	p := testPool(t, 4, time.Second)

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := p.WithConn(context.Background(), func(*Conn) error {
				time.Sleep(time.Millisecond)
				stats := p.Stats()
				assert.Equal(t, stats.Created, stats.CheckedOut+stats.Available)
				assert.LessOrEqual(t, stats.Created, stats.Size)
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	stats := p.Stats()
	assert.Equal(t, 0, stats.CheckedOut)
	assert.Equal(t, stats.Created, stats.Available)
}

func TestPool_WithConnChecksInOnError(t *testing.T) {
	p := testPool(t, 1, time.Second)

	wantErr := errors.New("boom")
	err := p.WithConn(context.Background(), func(*Conn) error { return wantErr })
	assert.ErrorIs(t, err, wantErr)

	stats := p.Stats()
	assert.Equal(t, 0, stats.CheckedOut)
	assert.Equal(t, 1, stats.Available)
}

func TestPool_CheckoutAfterClose(t *testing.T) {
	p := testPool(t, 1, time.Second)
	p.Close()

	_, err := p.Checkout(context.Background())
	assert.ErrorIs(t, err, ErrPoolClosed)
}

func TestPool_DiscardFreesSlot(t *testing.T) {
	p := testPool(t, 1, time.Second)

	conn, err := p.Checkout(context.Background())
	require.NoError(t, err)

	p.Discard(conn)

	stats := p.Stats()
	assert.Equal(t, 0, stats.Created)
	assert.Equal(t, 0, stats.CheckedOut)
}
