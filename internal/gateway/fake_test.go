package gateway

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gorilla/websocket"

	"github.com/soyeahso/agentcanvas/internal/logging"
)

func testLog() *logging.Logger {
	return logging.New(nil, "silent")
}

type rpcHandler func(params json.RawMessage) (any, *ErrorShape)

// fakeGateway speaks the server side of the handshake and answers
// requests from a handler table.
type fakeGateway struct {
	t         *testing.T
	srv       *httptest.Server
	token     string
	challenge bool
	handlers  map[string]rpcHandler

	mu       sync.Mutex
	conns    []*websocket.Conn
	requests []Frame
	connect  ConnectParams
}

func newFakeGateway(t *testing.T) *fakeGateway {
	t.Helper()
	g := &fakeGateway{t: t, challenge: true, handlers: map[string]rpcHandler{}}
	g.srv = httptest.NewServer(http.HandlerFunc(g.serve))
	t.Cleanup(g.Close)
	return g
}

func (g *fakeGateway) URL() string {
	return "ws" + strings.TrimPrefix(g.srv.URL, "http")
}

func (g *fakeGateway) Handle(method string, h rpcHandler) {
	g.handlers[method] = h
}

func (g *fakeGateway) serve(w http.ResponseWriter, r *http.Request) {
	up := websocket.Upgrader{}
	conn, err := up.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	if g.challenge {
		ev, _ := NewEvent("connect.challenge", map[string]any{"nonce": "n-1"}, 0)
		if conn.WriteJSON(ev) != nil {
			return
		}
	}

	var req Frame
	if err := conn.ReadJSON(&req); err != nil || req.Method != "connect" {
		return
	}
	var params ConnectParams
	_ = json.Unmarshal(req.Params, &params)
	g.mu.Lock()
	g.connect = params
	g.mu.Unlock()

	if g.token != "" && (params.Auth == nil || params.Auth.Token != g.token) {
		conn.WriteJSON(NewErrorResponse(req.ID, ErrorShape{Code: "unauthorized", Message: "token_mismatch"}))
		return
	}
	hello, _ := NewResponse(req.ID, HelloOK{Type: "hello-ok", Protocol: MaxProtocol, Server: ServerInfo{Version: "test", ConnID: "c-1"}})
	if conn.WriteJSON(hello) != nil {
		return
	}

	g.mu.Lock()
	g.conns = append(g.conns, conn)
	g.mu.Unlock()

	for {
		var f Frame
		if err := conn.ReadJSON(&f); err != nil {
			return
		}
		g.mu.Lock()
		g.requests = append(g.requests, f)
		h, ok := g.handlers[f.Method]
		g.mu.Unlock()

		var res Frame
		if !ok {
			res = NewErrorResponse(f.ID, ErrorShape{Code: "unknown_method", Message: "unknown method: " + f.Method})
		} else if payload, errShape := h(f.Params); errShape != nil {
			res = NewErrorResponse(f.ID, *errShape)
		} else {
			res, _ = NewResponse(f.ID, payload)
		}
		g.mu.Lock()
		err := conn.WriteJSON(res)
		g.mu.Unlock()
		if err != nil {
			return
		}
	}
}

// Push sends an event to every connected client.
func (g *fakeGateway) Push(event string, payload any) {
	g.mu.Lock()
	defer g.mu.Unlock()
	ev, _ := NewEvent(event, payload, 1)
	for _, c := range g.conns {
		c.WriteJSON(ev)
	}
}

// Drop closes every server-side connection.
func (g *fakeGateway) Drop() {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, c := range g.conns {
		c.Close()
	}
	g.conns = nil
}

func (g *fakeGateway) Requests(method string) []Frame {
	g.mu.Lock()
	defer g.mu.Unlock()
	var out []Frame
	for _, f := range g.requests {
		if f.Method == method {
			out = append(out, f)
		}
	}
	return out
}

func (g *fakeGateway) Connect() ConnectParams {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.connect
}

func (g *fakeGateway) Close() {
	g.Drop()
	g.srv.Close()
}
