package server

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/soyeahso/agentcanvas/internal/gateway"
)

const (
	eventBuffer       = 64
	eventPingInterval = 25 * time.Second
)

// handleEvents relays gateway chat and agent events as server-sent events.
// ?sessionKey= limits the stream to one session.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	sessionKey := strings.TrimSpace(r.URL.Query().Get("sessionKey"))
	gw, err := s.dialGateway(r.Context())
	if err != nil {
		s.gatewayFailed(w, err)
		return
	}

	events := make(chan gateway.Event, eventBuffer)
	unsubscribe := gw.Subscribe(func(ev gateway.Event) {
		select {
		case events <- ev:
		default:
			s.log.Warn().Str("event", ev.Name).Msg("event stream full; dropping event")
		}
	})
	defer unsubscribe()

	rc := http.NewResponseController(w)
	// Streams outlive the server's write timeout.
	_ = rc.SetWriteDeadline(time.Time{})

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	if err := rc.Flush(); err != nil {
		return
	}

	ping := time.NewTicker(eventPingInterval)
	defer ping.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-gw.Done():
			s.log.Debug().Msg("gateway connection closed; ending event stream")
			return
		case <-ping.C:
			fmt.Fprint(w, ": ping\n\n")
		case ev := <-events:
			if !relayable(ev, sessionKey) {
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Name, ev.Payload)
		}
		if err := rc.Flush(); err != nil {
			return
		}
	}
}

// relayable reports whether ev is a chat or agent event for sessionKey.
// An empty sessionKey matches every session.
func relayable(ev gateway.Event, sessionKey string) bool {
	if ce, ok := gateway.DecodeChatEvent(ev); ok {
		return sessionKey == "" || ce.SessionKey == sessionKey
	}
	if ae, ok := gateway.DecodeAgentEvent(ev); ok {
		return sessionKey == "" || ae.SessionKey == sessionKey
	}
	return false
}
