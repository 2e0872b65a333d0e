package a2aclient

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"

	"github.com/praxis/a2a-client-go/jsonrpc"
)

// ErrStreamClosed is returned by Next after Close or stream completion.
var ErrStreamClosed = errors.New("a2aclient: event stream closed")

// StreamEvent is one parsed streaming payload: the raw SSE frame plus the
// JSON-RPC result it carried.
type StreamEvent struct {
	// Frame is the wire-level server-sent event.
	Frame jsonrpc.Event
	// Result is the decoded JSON-RPC result payload, typically a Task,
	// Message, TaskStatusUpdateEvent or TaskArtifactUpdateEvent.
	Result json.RawMessage
}

// EventStream is a lazy, single-pass, cancellable sequence of streaming
// events. Events arrive in wire order through a bounded buffer, so an
// unhurried consumer applies backpressure to the reader. Closing the stream
// severs the underlying connection; it is never returned to the pool.
type EventStream struct {
	events chan StreamEvent
	cancel context.CancelFunc

	closeOnce sync.Once
	done      chan struct{}

	mu  sync.Mutex
	err error
}

func newEventStream(buffer int, cancel context.CancelFunc) *EventStream {
	return &EventStream{
		events: make(chan StreamEvent, buffer),
		cancel: cancel,
		done:   make(chan struct{}),
	}
}

// Events exposes the stream as a channel. The channel closes when the
// stream ends for any reason; check Err afterwards.
func (s *EventStream) Events() <-chan StreamEvent { return s.events }

// Next blocks for the next event. It returns ErrStreamClosed on normal
// completion, the stream error on failure, and the context error on
// cancellation.
func (s *EventStream) Next(ctx context.Context) (StreamEvent, error) {
	select {
	case ev, ok := <-s.events:
		if !ok {
			if err := s.Err(); err != nil {
				return StreamEvent{}, err
			}
			return StreamEvent{}, ErrStreamClosed
		}
		return ev, nil
	case <-ctx.Done():
		return StreamEvent{}, ctx.Err()
	}
}

// Err returns the error that terminated the stream, if any. A stream ended
// by the [DONE] sentinel or by Close reports nil.
func (s *EventStream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close abandons the stream and releases the connection. Safe to call
// multiple times and concurrently with consumption.
func (s *EventStream) Close() error {
	s.closeOnce.Do(func() {
		s.cancel()
		close(s.done)
	})
	return nil
}

func (s *EventStream) setErr(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}

// consume reads the SSE body to completion, decoding each event's data as a
// JSON-RPC envelope and delivering results in arrival order. It owns body
// and calls release exactly once on exit.
func (s *EventStream) consume(body io.ReadCloser, release func()) {
	defer func() {
		body.Close()
		release()
		close(s.events)
		s.Close()
	}()

	parser := jsonrpc.NewStreamParser()
	codec := jsonrpc.NewCodec()
	buf := make([]byte, 4096)

	for {
		n, readErr := body.Read(buf)
		if n > 0 {
			events, done := parser.Feed(buf[:n])
			for _, frame := range events {
				result, err := codec.ParseResponse([]byte(frame.Data))
				if err != nil {
					s.setErr(err)
					return
				}
				select {
				case s.events <- StreamEvent{Frame: frame, Result: result}:
				case <-s.done:
					return
				}
			}
			if done {
				return
			}
		}
		if readErr != nil {
			if readErr != io.EOF && !s.closed() {
				s.setErr(readErr)
			}
			return
		}
	}
}

func (s *EventStream) closed() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}
