package a2aclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"

	"github.com/praxis/a2a-client-go/a2a"
	"github.com/praxis/a2a-client-go/auth"
	"github.com/praxis/a2a-client-go/jsonrpc"
	"github.com/praxis/a2a-client-go/middleware"
	"github.com/praxis/a2a-client-go/transport"
)

// agentCardPath is the well-known location of the capability document.
const agentCardPath = "/.well-known/agent-card.json"

// ErrStreamingUnsupported is returned for streaming calls against an agent
// whose card does not advertise streaming.
var ErrStreamingUnsupported = errors.New("a2aclient: agent does not support streaming")

// Client is an A2A protocol client. All methods are safe for concurrent use.
type Client struct {
	cfg    Config
	logger *logrus.Logger
	clock  clockwork.Clock

	codec       *jsonrpc.Codec
	pool        *transport.Pool
	strategy    auth.Strategy
	interceptor *auth.Interceptor
	extra       []middleware.Middleware

	unary    middleware.Handler
	streamMW []middleware.Middleware

	mu         sync.Mutex
	card       *a2a.AgentCard
	negotiated map[string]*NegotiationResult
}

// New creates a client for the agent named by cfg.AgentURL.
func New(cfg Config, opts ...Option) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	c := &Client{
		cfg:        cfg,
		codec:      jsonrpc.NewCodec(),
		negotiated: make(map[string]*NegotiationResult),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = logrus.New()
	}
	if c.clock == nil {
		c.clock = clockwork.NewRealClock()
	}

	c.pool = transport.NewPoolWithClock(cfg.poolConfig(), c.logger, c.clock)
	c.interceptor = auth.NewInterceptor(c.strategy, cfg.AuthAutoRetry, c.logger)

	base := []middleware.Middleware{middleware.NewLoggingWithClock(c.logger, c.clock)}
	if cfg.RateLimit != nil {
		base = append(base, middleware.NewRateLimit(*cfg.RateLimit))
	}
	breaker := middleware.NewCircuitBreakerWithClock(cfg.CircuitBreaker, c.logger, c.clock)
	base = append(base, breaker)

	unaryMW := append(append([]middleware.Middleware{}, c.extra...), base...)
	unaryMW = append(unaryMW, middleware.NewRetryWithClock(cfg.Retry, c.logger, c.clock))
	c.unary = middleware.Chain(c.dispatch, unaryMW...)

	// Streams are single-pass; a retry middleware cannot safely replay a
	// partially consumed stream, so the streaming chain omits it.
	c.streamMW = append(append([]middleware.Middleware{}, c.extra...), base...)

	return c, nil
}

// Close shuts down the connection pool. In-flight streams keep their
// connections until they finish.
func (c *Client) Close() {
	c.pool.Close()
}

// PoolStats exposes connection pool occupancy for observability.
func (c *Client) PoolStats() transport.Stats {
	return c.pool.Stats()
}

// AgentCard returns the target's capability document, fetching and caching
// it on first use.
func (c *Client) AgentCard(ctx context.Context) (*a2a.AgentCard, error) {
	c.mu.Lock()
	card := c.card
	c.mu.Unlock()
	if card != nil {
		return card, nil
	}

	url := strings.TrimSuffix(c.cfg.AgentURL, "/") + agentCardPath
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("a2aclient: build card request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	c.applyHeaders(req)
	if err := c.interceptor.Apply(ctx, req); err != nil {
		return nil, err
	}

	var fetched a2a.AgentCard
	err = c.pool.WithConn(ctx, func(conn *transport.Conn) error {
		resp, err := conn.Do(req.WithContext(ctx))
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return &transport.TransportError{Op: "fetch agent card", StatusCode: resp.StatusCode}
		}
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return &transport.TransportError{Op: "read agent card", Err: err}
		}
		if err := json.Unmarshal(body, &fetched); err != nil {
			return &jsonrpc.ParseError{Msg: "decode agent card"}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.card = &fetched
	c.mu.Unlock()
	c.logger.WithFields(logrus.Fields{
		"agent":     fetched.Name,
		"streaming": fetched.Capabilities.Streaming,
	}).Debug("agent card resolved")
	return &fetched, nil
}

// endpoint negotiates (or returns the cached) transport endpoint for the
// target agent.
func (c *Client) endpoint(ctx context.Context) (*NegotiationResult, error) {
	card, err := c.AgentCard(ctx)
	if err != nil {
		return nil, err
	}

	key := card.URL
	if key == "" {
		key = c.cfg.AgentURL
	}
	c.mu.Lock()
	cached, ok := c.negotiated[key]
	c.mu.Unlock()
	if ok {
		return cached, nil
	}

	result, err := Negotiate(card, c.cfg.SupportedTransports, c.cfg.UseClientPreference)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.negotiated[key] = result
	c.mu.Unlock()
	c.logger.WithFields(logrus.Fields{
		"transport": result.Transport,
		"endpoint":  result.EndpointURL,
	}).Debug("transport negotiated")
	return result, nil
}

// Call invokes an arbitrary JSON-RPC method and returns its raw result. The
// typed operations below are wrappers over it.
func (c *Client) Call(ctx context.Context, method string, params interface{}) (json.RawMessage, error) {
	endpoint, err := c.endpoint(ctx)
	if err != nil {
		return nil, err
	}

	rpcReq := c.codec.BuildRequest(method, params)
	httpReq, err := c.newHTTPRequest(endpoint.EndpointURL, rpcReq, false)
	if err != nil {
		return nil, err
	}

	ctx = middleware.WithMethod(ctx, method)
	if c.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}

	resp, err := c.unary(ctx, httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &transport.TransportError{Op: method, StatusCode: resp.StatusCode}
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &transport.TransportError{Op: method, Err: err}
	}
	return c.codec.ParseResponse(raw)
}

// SendMessageResult is the message/send outcome: the agent replies with
// either a task or a direct message, discriminated by kind.
type SendMessageResult struct {
	Task    *a2a.Task
	Message *a2a.Message
}

// SendMessage submits a message and returns the agent's task or reply.
func (c *Client) SendMessage(ctx context.Context, params a2a.MessageSendParams) (*SendMessageResult, error) {
	raw, err := c.Call(ctx, a2a.MethodMessageSend, params)
	if err != nil {
		return nil, err
	}
	return decodeSendResult(raw)
}

// SendMessageStream submits a message on the streaming variant and returns
// the event stream. The caller must Close the stream or drain it.
func (c *Client) SendMessageStream(ctx context.Context, params a2a.MessageSendParams) (*EventStream, error) {
	return c.openStream(ctx, a2a.MethodMessageStream, params)
}

// GetTask fetches a task by ID.
func (c *Client) GetTask(ctx context.Context, params a2a.TaskQueryParams) (*a2a.Task, error) {
	raw, err := c.Call(ctx, a2a.MethodTasksGet, params)
	if err != nil {
		return nil, err
	}
	var task a2a.Task
	if err := json.Unmarshal(raw, &task); err != nil {
		return nil, &jsonrpc.ParseError{Msg: "decode task"}
	}
	return &task, nil
}

// CancelTask requests cancellation and returns the task's resulting state.
func (c *Client) CancelTask(ctx context.Context, params a2a.TaskIDParams) (*a2a.Task, error) {
	raw, err := c.Call(ctx, a2a.MethodTasksCancel, params)
	if err != nil {
		return nil, err
	}
	var task a2a.Task
	if err := json.Unmarshal(raw, &task); err != nil {
		return nil, &jsonrpc.ParseError{Msg: "decode task"}
	}
	return &task, nil
}

// Resubscribe reattaches to a task's event stream after a dropped stream.
func (c *Client) Resubscribe(ctx context.Context, params a2a.TaskIDParams) (*EventStream, error) {
	return c.openStream(ctx, a2a.MethodTasksResubscribe, params)
}

// SetPushNotificationConfig registers a webhook configuration for a task.
func (c *Client) SetPushNotificationConfig(ctx context.Context, params a2a.TaskPushNotificationConfig) (*a2a.TaskPushNotificationConfig, error) {
	raw, err := c.Call(ctx, a2a.MethodPushNotificationConfigSet, params)
	if err != nil {
		return nil, err
	}
	var cfg a2a.TaskPushNotificationConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, &jsonrpc.ParseError{Msg: "decode push notification config"}
	}
	return &cfg, nil
}

// GetPushNotificationConfig fetches one webhook configuration.
func (c *Client) GetPushNotificationConfig(ctx context.Context, params a2a.GetTaskPushNotificationConfigParams) (*a2a.TaskPushNotificationConfig, error) {
	raw, err := c.Call(ctx, a2a.MethodPushNotificationConfigGet, params)
	if err != nil {
		return nil, err
	}
	var cfg a2a.TaskPushNotificationConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, &jsonrpc.ParseError{Msg: "decode push notification config"}
	}
	return &cfg, nil
}

// ListPushNotificationConfigs lists a task's webhook configurations.
func (c *Client) ListPushNotificationConfigs(ctx context.Context, params a2a.TaskIDParams) ([]a2a.TaskPushNotificationConfig, error) {
	raw, err := c.Call(ctx, a2a.MethodPushNotificationConfigList, params)
	if err != nil {
		return nil, err
	}
	var cfgs []a2a.TaskPushNotificationConfig
	if err := json.Unmarshal(raw, &cfgs); err != nil {
		return nil, &jsonrpc.ParseError{Msg: "decode push notification configs"}
	}
	return cfgs, nil
}

// DeletePushNotificationConfig removes one webhook configuration.
func (c *Client) DeletePushNotificationConfig(ctx context.Context, params a2a.DeleteTaskPushNotificationConfigParams) error {
	_, err := c.Call(ctx, a2a.MethodPushNotificationConfigDelete, params)
	return err
}

// dispatch is the terminal unary handler: auth interception around a pooled
// send with the body buffered, so outer middlewares may inspect and retry.
func (c *Client) dispatch(ctx context.Context, req *http.Request) (*http.Response, error) {
	return c.interceptor.Do(ctx, req, c.sendPooled)
}

func (c *Client) sendPooled(ctx context.Context, req *http.Request) (*http.Response, error) {
	var resp *http.Response
	err := c.pool.WithConn(ctx, func(conn *transport.Conn) error {
		r, err := conn.Do(req.WithContext(ctx))
		if err != nil {
			return err
		}
		defer r.Body.Close()
		body, err := io.ReadAll(r.Body)
		if err != nil {
			return &transport.TransportError{Op: "read response", Err: err}
		}
		r.Body = io.NopCloser(bytes.NewReader(body))
		resp = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// openStream performs a streaming call: the connection stays checked out for
// the stream's lifetime and is discarded, never pooled, when it ends.
func (c *Client) openStream(ctx context.Context, method string, params interface{}) (*EventStream, error) {
	card, err := c.AgentCard(ctx)
	if err != nil {
		return nil, err
	}
	if !card.Capabilities.Streaming {
		return nil, ErrStreamingUnsupported
	}
	endpoint, err := c.endpoint(ctx)
	if err != nil {
		return nil, err
	}

	rpcReq := c.codec.BuildStreamRequest(method, params)
	httpReq, err := c.newHTTPRequest(endpoint.EndpointURL, rpcReq, true)
	if err != nil {
		return nil, err
	}

	sctx, cancel := context.WithCancel(middleware.WithMethod(ctx, method))

	var conn *transport.Conn
	final := func(ctx context.Context, req *http.Request) (*http.Response, error) {
		cn, err := c.pool.Checkout(ctx)
		if err != nil {
			return nil, err
		}
		resp, err := c.interceptor.Do(ctx, req, func(ctx context.Context, r *http.Request) (*http.Response, error) {
			return cn.Do(r.WithContext(ctx))
		})
		if err != nil {
			c.pool.Discard(cn)
			return nil, err
		}
		if resp.StatusCode != http.StatusOK {
			io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<20))
			resp.Body.Close()
			c.pool.Discard(cn)
			return nil, &transport.TransportError{Op: method, StatusCode: resp.StatusCode}
		}
		conn = cn
		return resp, nil
	}

	resp, err := middleware.Chain(final, c.streamMW...)(sctx, httpReq)
	if err != nil {
		cancel()
		return nil, err
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/event-stream") {
		resp.Body.Close()
		c.pool.Discard(conn)
		cancel()
		return nil, &transport.TransportError{Op: method, Err: fmt.Errorf("expected text/event-stream, got %q", ct)}
	}

	stream := newEventStream(c.cfg.StreamBuffer, cancel)
	go stream.consume(resp.Body, func() { c.pool.Discard(conn) })
	return stream, nil
}

// newHTTPRequest builds the POST carrying one JSON-RPC envelope.
func (c *Client) newHTTPRequest(endpoint string, rpcReq *jsonrpc.Request, streaming bool) (*http.Request, error) {
	body, err := c.codec.EncodeRequest(rpcReq)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequest(http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("a2aclient: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if streaming {
		req.Header.Set("Accept", "text/event-stream")
	} else {
		req.Header.Set("Accept", "application/json")
	}
	c.applyHeaders(req)
	return req, nil
}

func (c *Client) applyHeaders(req *http.Request) {
	if c.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", c.cfg.UserAgent)
	}
	for name, value := range c.cfg.Headers {
		req.Header.Set(name, value)
	}
}

func decodeSendResult(raw json.RawMessage) (*SendMessageResult, error) {
	var probe struct {
		Kind string `json:"kind"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, &jsonrpc.ParseError{Msg: "decode send result"}
	}
	switch probe.Kind {
	case "task":
		var task a2a.Task
		if err := json.Unmarshal(raw, &task); err != nil {
			return nil, &jsonrpc.ParseError{Msg: "decode task"}
		}
		return &SendMessageResult{Task: &task}, nil
	case "message":
		var msg a2a.Message
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, &jsonrpc.ParseError{Msg: "decode message"}
		}
		return &SendMessageResult{Message: &msg}, nil
	default:
		return nil, &jsonrpc.ParseError{Msg: fmt.Sprintf("unexpected result kind %q", probe.Kind)}
	}
}
