package jsonrpc

import (
	"encoding/json"
	"sync/atomic"

	"github.com/google/uuid"
)

// Codec builds requests with client-unique IDs and parses response
// envelopes. A single Codec instance is safe for concurrent use.
type Codec struct {
	nextID atomic.Int64
}

// NewCodec returns a Codec whose numeric IDs start at 1.
func NewCodec() *Codec {
	return &Codec{}
}

// BuildRequest assembles a request with a fresh monotonic numeric ID. IDs
// are unique per Codec, which is what the protocol requires of in-flight
// requests on one client.
func (c *Codec) BuildRequest(method string, params interface{}) *Request {
	return &Request{
		JSONRPC: Version,
		Method:  method,
		Params:  params,
		ID:      c.nextID.Add(1),
	}
}

// BuildStreamRequest assembles a request with a UUID string ID. Streaming
// responses echo the ID on every event, so a globally unique value keeps
// events attributable even when streams outlive the codec counter.
func (c *Codec) BuildStreamRequest(method string, params interface{}) *Request {
	return &Request{
		JSONRPC: Version,
		Method:  method,
		Params:  params,
		ID:      uuid.New().String(),
	}
}

// EncodeRequest marshals a request to its wire form.
func (c *Codec) EncodeRequest(req *Request) ([]byte, error) {
	data, err := json.Marshal(req)
	if err != nil {
		return nil, &ParseError{Msg: "encode request", cause: err}
	}
	return data, nil
}

// ParseResponse decodes a response envelope. It returns the raw result on
// success, the decoded *Error when the envelope carries one, and a
// *ParseError when the payload is not a valid envelope.
func (c *Codec) ParseResponse(raw []byte) (json.RawMessage, error) {
	var resp Response
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, &ParseError{Msg: "invalid JSON", cause: err}
	}
	if resp.Error != nil {
		if len(resp.Result) != 0 && string(resp.Result) != "null" {
			return nil, &ParseError{Msg: "response carries both result and error"}
		}
		return nil, resp.Error
	}
	if len(resp.Result) == 0 {
		return nil, &ParseError{Msg: "response carries neither result nor error"}
	}
	return resp.Result, nil
}
