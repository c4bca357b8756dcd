// Package gateway is a client for the agent runtime's WebSocket RPC
// gateway: a connect handshake followed by id-correlated requests and a
// stream of pushed events.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/soyeahso/agentcanvas/internal/logging"
	"github.com/soyeahso/agentcanvas/internal/version"
)

var (
	ErrNotConnected = errors.New("gateway not connected")
	ErrClosed       = errors.New("gateway client closed")
)

// RPCError is an ok:false response from the gateway.
type RPCError struct {
	Code    string
	Message string
}

func (e *RPCError) Error() string {
	if e.Code == "" {
		return e.Message
	}
	return e.Code + ": " + e.Message
}

// DialOptions configures a connection.
type DialOptions struct {
	Token          string
	ConnectTimeout time.Duration
	CallTimeout    time.Duration
	Log            *logging.Logger
}

const (
	defaultConnectTimeout = 10 * time.Second
	defaultCallTimeout    = 30 * time.Second
)

// Client is a connected gateway session. It is safe for concurrent use.
type Client struct {
	conn        *websocket.Conn
	log         *logging.Logger
	hello       HelloOK
	callTimeout time.Duration

	writeMu sync.Mutex

	mu      sync.Mutex
	pending map[string]chan Frame
	subs    map[int]func(Event)
	nextSub int
	closed  bool
	err     error

	done chan struct{}
}

// Dial connects to the gateway at url and completes the connect handshake.
// A connect.challenge event from the gateway is accepted but not required.
func Dial(ctx context.Context, url string, opts DialOptions) (*Client, error) {
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = defaultConnectTimeout
	}
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = defaultCallTimeout
	}
	if opts.Log == nil {
		opts.Log = logging.New(nil, "silent")
	}

	ctx, cancel := context.WithTimeout(ctx, opts.ConnectTimeout)
	defer cancel()

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, url, http.Header{
		"User-Agent": []string{version.UserAgent()},
	})
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("dialing gateway %s: %w", url, err)
	}

	c := &Client{
		conn:        conn,
		log:         opts.Log,
		callTimeout: opts.CallTimeout,
		pending:     make(map[string]chan Frame),
		subs:        make(map[int]func(Event)),
		done:        make(chan struct{}),
	}

	hello, err := c.handshake(ctx, opts.Token)
	if err != nil {
		conn.Close()
		return nil, err
	}
	c.hello = hello

	go c.readLoop()

	c.log.Info().Str("url", url).Int("protocol", hello.Protocol).Str("connId", hello.Server.ConnID).Msg("gateway connected")
	return c, nil
}

func (c *Client) handshake(ctx context.Context, token string) (HelloOK, error) {
	if deadline, ok := ctx.Deadline(); ok {
		c.conn.SetReadDeadline(deadline)
		c.conn.SetWriteDeadline(deadline)
		defer c.conn.SetReadDeadline(time.Time{})
		defer c.conn.SetWriteDeadline(time.Time{})
	}

	params := ConnectParams{
		MinProtocol: MinProtocol,
		MaxProtocol: MaxProtocol,
		Client: ClientInfo{
			ID:          version.Name,
			DisplayName: "Agent Canvas",
			Version:     version.Version,
			Platform:    runtime.GOOS,
			Mode:        "ui",
			InstanceID:  uuid.NewString(),
		},
		Role:      "operator",
		Scopes:    []string{"operator.admin"},
		UserAgent: version.UserAgent(),
	}
	if token != "" {
		params.Auth = &ConnectAuth{Token: token}
	}

	id := uuid.NewString()
	req, err := NewRequest(id, "connect", params)
	if err != nil {
		return HelloOK{}, err
	}
	if err := c.conn.WriteJSON(req); err != nil {
		return HelloOK{}, fmt.Errorf("sending connect: %w", err)
	}

	for {
		var f Frame
		if err := c.conn.ReadJSON(&f); err != nil {
			return HelloOK{}, fmt.Errorf("reading connect response: %w", err)
		}
		switch {
		case f.Type == FrameTypeEvent && f.Event == "connect.challenge":
			c.log.Debug().Msg("gateway sent connect challenge")
		case f.Type == FrameTypeResponse && f.ID == id:
			if f.OK == nil || !*f.OK {
				return HelloOK{}, fmt.Errorf("gateway rejected connect: %w", rpcError(f))
			}
			var hello HelloOK
			if err := json.Unmarshal(f.Payload, &hello); err != nil {
				return HelloOK{}, fmt.Errorf("parsing hello: %w", err)
			}
			return hello, nil
		default:
			c.log.Debug().Str("type", f.Type).Str("event", f.Event).Msg("ignoring frame before hello")
		}
	}
}

// Hello returns the handshake payload sent by the gateway.
func (c *Client) Hello() HelloOK { return c.hello }

// Done is closed once the connection has terminated.
func (c *Client) Done() <-chan struct{} { return c.done }

// Err reports why the connection terminated, or nil while it is live.
func (c *Client) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Call sends a request and waits for its response. When out is non-nil
// the response payload is decoded into it. Without a context deadline
// the client's call timeout applies.
func (c *Client) Call(ctx context.Context, method string, params, out any) error {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.callTimeout)
		defer cancel()
	}

	id := uuid.NewString()
	req, err := NewRequest(id, method, params)
	if err != nil {
		return fmt.Errorf("encoding %s params: %w", method, err)
	}

	ch := make(chan Frame, 1)
	c.mu.Lock()
	if c.err != nil {
		err := c.err
		c.mu.Unlock()
		return err
	}
	c.pending[id] = ch
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
	}()

	c.writeMu.Lock()
	err = c.conn.WriteJSON(req)
	c.writeMu.Unlock()
	if err != nil {
		return fmt.Errorf("sending %s: %w", method, err)
	}

	select {
	case f := <-ch:
		if f.OK == nil || !*f.OK {
			return rpcError(f)
		}
		if out != nil && len(f.Payload) > 0 {
			if err := json.Unmarshal(f.Payload, out); err != nil {
				return fmt.Errorf("decoding %s response: %w", method, err)
			}
		}
		return nil
	case <-c.done:
		return c.Err()
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", method, ctx.Err())
	}
}

// Subscribe registers fn for every event pushed by the gateway and
// returns a function that removes it. fn runs on the read goroutine and
// must not block.
func (c *Client) Subscribe(fn func(Event)) func() {
	c.mu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.subs, id)
		c.mu.Unlock()
	}
}

// Close terminates the connection and fails outstanding calls with
// ErrClosed.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		<-c.done
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	c.writeMu.Lock()
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	c.writeMu.Unlock()

	err := c.conn.Close()
	<-c.done
	return err
}

func (c *Client) readLoop() {
	defer close(c.done)
	for {
		var f Frame
		if err := c.conn.ReadJSON(&f); err != nil {
			c.terminate(err)
			return
		}
		switch f.Type {
		case FrameTypeResponse:
			c.mu.Lock()
			ch, ok := c.pending[f.ID]
			c.mu.Unlock()
			if ok {
				select {
				case ch <- f:
				default:
				}
			} else {
				c.log.Debug().Str("id", f.ID).Msg("response for unknown request")
			}
		case FrameTypeEvent:
			c.dispatch(Event{Name: f.Event, Payload: f.Payload, Seq: f.Seq})
		}
	}
}

func (c *Client) dispatch(ev Event) {
	c.mu.Lock()
	fns := make([]func(Event), 0, len(c.subs))
	for _, fn := range c.subs {
		fns = append(fns, fn)
	}
	c.mu.Unlock()

	for _, fn := range fns {
		fn(ev)
	}
}

func (c *Client) terminate(readErr error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		c.err = ErrClosed
		return
	}
	c.err = fmt.Errorf("%w: %v", ErrNotConnected, readErr)
	c.log.Warn().Err(readErr).Msg("gateway connection lost")
}

func rpcError(f Frame) error {
	if f.Error == nil {
		return &RPCError{Code: "unknown", Message: "Gateway request failed."}
	}
	return &RPCError{Code: f.Error.Code, Message: f.Error.Message}
}
