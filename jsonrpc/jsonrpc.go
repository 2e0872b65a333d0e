// Package jsonrpc implements the JSON-RPC 2.0 envelope used by the A2A
// protocol, including the server-sent-events framing used for streaming
// responses.
package jsonrpc

import (
	"encoding/json"
	"fmt"
)

// Version is the protocol version stamped on every request and expected on
// every response.
const Version = "2.0"

// Request is a JSON-RPC 2.0 request envelope.
type Request struct {
	JSONRPC string      `json:"jsonrpc"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params,omitempty"`
	ID      interface{} `json:"id"`
}

// Response is a JSON-RPC 2.0 response envelope. Exactly one of Result and
// Error is set on a well-formed response.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
	ID      interface{}     `json:"id"`
}

// Error codes defined by JSON-RPC 2.0 plus the A2A protocol extensions.
const (
	CodeParseError                  = -32700
	CodeInvalidRequest              = -32600
	CodeMethodNotFound              = -32601
	CodeInvalidParams               = -32602
	CodeInternalError               = -32603
	CodeTaskNotFound                = -32001
	CodeTaskNotCancelable           = -32002
	CodePushNotificationUnsupported = -32003
	CodeAuthenticationRequired      = -32004
	CodeInsufficientPermissions     = -32005
	CodeRateLimitExceeded           = -32006
	CodeTransportNotSupported       = -32008
	CodeServiceUnavailable          = -32010
)

// Error is a JSON-RPC error object carried in a response envelope.
type Error struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("jsonrpc: %s (code %d)", e.Message, e.Code)
}

// AuthFailure reports whether the error is an authentication or
// authorization rejection that an auth interceptor may recover from.
func (e *Error) AuthFailure() bool {
	return e.Code == CodeAuthenticationRequired || e.Code == CodeInsufficientPermissions
}

// Retryable reports whether the error signals a transient server condition.
func (e *Error) Retryable() bool {
	return e.Code == CodeServiceUnavailable || e.Code == CodeInternalError
}

// ParseError reports malformed JSON or an invalid response envelope.
type ParseError struct {
	Msg   string
	cause error
}

func (e *ParseError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("jsonrpc: parse error: %s: %v", e.Msg, e.cause)
	}
	return fmt.Sprintf("jsonrpc: parse error: %s", e.Msg)
}

func (e *ParseError) Unwrap() error { return e.cause }
