package jsonrpc

import (
	"strconv"
	"strings"
)

// DoneSentinel is the data payload that terminates an event stream. It is
// consumed by the parser and never surfaced as an event.
const DoneSentinel = "[DONE]"

// Event is one parsed server-sent event.
type Event struct {
	ID      string
	Type    string
	Data    string
	RetryMS int
}

// StreamParser is an incremental server-sent-events parser. Feed it raw
// chunks as they arrive off the wire; an event split across chunk boundaries
// is held as pending state and completed by a later chunk. A StreamParser is
// single-stream and not safe for concurrent use.
type StreamParser struct {
	buf     strings.Builder // partial line carried between chunks
	pending Event
	dataSet bool
	started bool
	done    bool
}

// NewStreamParser returns a parser positioned at the start of a stream.
func NewStreamParser() *StreamParser {
	return &StreamParser{}
}

// Done reports whether the [DONE] sentinel has been consumed.
func (p *StreamParser) Done() bool { return p.done }

// Feed consumes one chunk and returns the events completed by it, plus
// whether the stream terminator was seen. Input after the terminator is
// ignored.
func (p *StreamParser) Feed(chunk []byte) ([]Event, bool) {
	if p.done {
		return nil, true
	}

	var events []Event
	for _, b := range chunk {
		if b != '\n' {
			p.buf.WriteByte(b)
			continue
		}
		line := strings.TrimSuffix(p.buf.String(), "\r")
		p.buf.Reset()
		if done := p.consumeLine(line, &events); done {
			p.done = true
			return events, true
		}
	}
	return events, false
}

// consumeLine folds a single complete line into the pending event, appending
// to events on a blank-line boundary. Returns true on the [DONE] sentinel.
func (p *StreamParser) consumeLine(line string, events *[]Event) bool {
	if line == "" {
		if p.started {
			*events = append(*events, p.pending)
		}
		p.pending = Event{}
		p.dataSet = false
		p.started = false
		return false
	}
	if strings.HasPrefix(line, ":") {
		// Comment line, used by servers as keep-alive.
		return false
	}

	field, value := line, ""
	if idx := strings.IndexByte(line, ':'); idx >= 0 {
		field = line[:idx]
		value = strings.TrimPrefix(line[idx+1:], " ")
	}

	switch field {
	case "data":
		if value == DoneSentinel && !p.dataSet {
			return true
		}
		if p.dataSet {
			p.pending.Data += "\n" + value
		} else {
			p.pending.Data = value
			p.dataSet = true
		}
		p.started = true
	case "event":
		p.pending.Type = value
		p.started = true
	case "id":
		p.pending.ID = value
		p.started = true
	case "retry":
		if ms, err := strconv.Atoi(value); err == nil {
			p.pending.RetryMS = ms
			p.started = true
		}
	default:
		// Unknown fields are ignored.
	}
	return false
}
