package jsonrpc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStreamParser_SingleEvent(t *testing.T) {
	p := NewStreamParser()

	events, done := p.Feed([]byte("data: {\"a\":1}\n\n"))

	assert.False(t, done)
	require.Len(t, events, 1)
	assert.Equal(t, `{"a":1}`, events[0].Data)
}

func TestStreamParser_DoneSentinel(t *testing.T) {
	p := NewStreamParser()

	events, done := p.Feed([]byte("data: [DONE]\n\n"))

	assert.True(t, done)
	assert.Empty(t, events)
	assert.True(t, p.Done())

	// Anything after the terminator is ignored.
	events, done = p.Feed([]byte("data: {\"a\":1}\n\n"))
	assert.True(t, done)
	assert.Empty(t, events)
}

func TestStreamParser_EventSplitAcrossChunks(t *testing.T) {
	p := NewStreamParser()

	events, done := p.Feed([]byte("data: {\"a\":"))
	assert.False(t, done)
	assert.Empty(t, events)

	events, done = p.Feed([]byte("1}\n\n"))
	assert.False(t, done)
	require.Len(t, events, 1)
	assert.Equal(t, `{"a":1}`, events[0].Data)
}

func TestStreamParser_AllFields(t *testing.T) {
	p := NewStreamParser()

	events, done := p.Feed([]byte("id: 7\nevent: task-status\nretry: 1500\ndata: hello\n\n"))

	assert.False(t, done)
	require.Len(t, events, 1)
	assert.Equal(t, "7", events[0].ID)
	assert.Equal(t, "task-status", events[0].Type)
	assert.Equal(t, 1500, events[0].RetryMS)
	assert.Equal(t, "hello", events[0].Data)
}

func TestStreamParser_MultipleEventsOneChunk(t *testing.T) {
	p := NewStreamParser()

	events, done := p.Feed([]byte("data: one\n\ndata: two\n\ndata: [DONE]\n\n"))

	assert.True(t, done)
	require.Len(t, events, 2)
	assert.Equal(t, "one", events[0].Data)
	assert.Equal(t, "two", events[1].Data)
}

func TestStreamParser_MultiLineData(t *testing.T) {
	p := NewStreamParser()

	events, _ := p.Feed([]byte("data: line1\ndata: line2\n\n"))

	require.Len(t, events, 1)
	assert.Equal(t, "line1\nline2", events[0].Data)
}

func TestStreamParser_CRLFAndComments(t *testing.T) {
	p := NewStreamParser()

	events, done := p.Feed([]byte(": keep-alive\r\ndata: x\r\n\r\n"))

	assert.False(t, done)
	require.Len(t, events, 1)
	assert.Equal(t, "x", events[0].Data)
}

func TestStreamParser_BlankLinesWithoutPendingEvent(t *testing.T) {
	p := NewStreamParser()

	events, done := p.Feed([]byte("\n\n\n"))

	assert.False(t, done)
	assert.Empty(t, events)
}

func TestStreamParser_DoneAsContinuationIsData(t *testing.T) {
	// [DONE] only terminates as the first data line of an event; as a
	// continuation it is ordinary payload.
	p := NewStreamParser()

	events, done := p.Feed([]byte("data: x\ndata: [DONE]\n\n"))

	assert.False(t, done)
	require.Len(t, events, 1)
	assert.Equal(t, "x\n[DONE]", events[0].Data)
}
