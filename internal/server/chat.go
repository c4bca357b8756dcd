package server

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/soyeahso/agentcanvas/internal/domain"
	"github.com/soyeahso/agentcanvas/internal/gateway"
	"github.com/soyeahso/agentcanvas/internal/runlog"
	"github.com/soyeahso/agentcanvas/internal/store"
)

const (
	defaultHistoryLimit = 200
	historyConcurrency  = 4
)

type sendRequest struct {
	Message string `json:"message"`
}

type sendResult struct {
	RunID string `json:"runId"`
}

type tileHistory struct {
	TileID string `json:"tileId"`
	gateway.History
	Error string `json:"error,omitempty"`
}

func (s *Server) handleSend(w http.ResponseWriter, r *http.Request) {
	res, err := s.resolveTile(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var req sendRequest
	if err := decodeBody(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	message := strings.TrimSpace(req.Message)
	if message == "" {
		sendError(w, http.StatusBadRequest, "Message is required.")
		return
	}
	sessionKey := strings.TrimSpace(res.Tile.SessionKey)
	if sessionKey == "" {
		sendError(w, http.StatusBadRequest, "Missing session key for tile.")
		return
	}

	gw, err := s.dialGateway(r.Context())
	if err != nil {
		s.gatewayFailed(w, err)
		return
	}
	if err := gw.SessionsPatch(r.Context(), gateway.SessionsPatchParams{
		Key:           sessionKey,
		Model:         res.Tile.Model,
		ThinkingLevel: res.Tile.ThinkingLevel,
	}); err != nil {
		s.gatewayFailed(w, err)
		return
	}

	runID := uuid.NewString()
	sent, err := gw.ChatSend(r.Context(), gateway.ChatSendParams{
		SessionKey:     sessionKey,
		Message:        domain.BuildAgentInstruction(res.Tile.WorkspacePath, res.Project.RepoPath, message),
		Deliver:        false,
		IdempotencyKey: runID,
	})
	if err != nil {
		s.gatewayFailed(w, err)
		return
	}
	s.log.Debug().Str("agentId", res.Tile.AgentID).Str("runId", sent.RunID).Msg("message sent")
	s.recordRun(r.Context(), runlog.Run{
		RunID:      sent.RunID,
		ProjectID:  res.ProjectID,
		TileID:     res.TileID,
		AgentID:    res.Tile.AgentID,
		SessionKey: sessionKey,
		Message:    message,
		Status:     sent.Status,
		CreatedAt:  s.store.Now(),
	})
	sendJSON(w, http.StatusOK, sendResult{RunID: sent.RunID})
}

func (s *Server) handleTileHistory(w http.ResponseWriter, r *http.Request) {
	res, err := s.resolveTile(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	limit := historyLimit(r)
	gw, err := s.dialGateway(r.Context())
	if err != nil {
		s.gatewayFailed(w, err)
		return
	}
	history, err := s.loadHistory(r.Context(), gw, res.Tile, limit)
	if err != nil {
		s.gatewayFailed(w, err)
		return
	}
	sendJSON(w, http.StatusOK, history)
}

// handleProjectHistory loads the transcripts of every tile in a project.
// Per-tile failures are reported inline rather than failing the request.
func (s *Server) handleProjectHistory(w http.ResponseWriter, r *http.Request) {
	doc, err := s.store.Load()
	if err != nil {
		s.fail(w, r, err)
		return
	}
	res, err := store.ResolveProject(doc, chi.URLParam(r, "projectId"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	limit := historyLimit(r)
	gw, err := s.dialGateway(r.Context())
	if err != nil {
		s.gatewayFailed(w, err)
		return
	}

	results := make([]tileHistory, len(res.Project.Tiles))
	var mu sync.Mutex
	g, ctx := errgroup.WithContext(r.Context())
	g.SetLimit(historyConcurrency)
	for i, tile := range res.Project.Tiles {
		g.Go(func() error {
			h, err := s.loadHistory(ctx, gw, tile, limit)
			entry := tileHistory{TileID: tile.ID, History: h}
			if err != nil {
				entry.History = gateway.HistoryLines(nil)
				entry.Error = err.Error()
			}
			mu.Lock()
			results[i] = entry
			mu.Unlock()
			return nil
		})
	}
	g.Wait()
	sendJSON(w, http.StatusOK, map[string]any{"tiles": results})
}

func (s *Server) loadHistory(ctx context.Context, gw ChatGateway, tile domain.Tile, limit int) (gateway.History, error) {
	sessionKey := strings.TrimSpace(tile.SessionKey)
	if sessionKey == "" {
		return gateway.History{}, domain.Errorf(domain.ErrInvalid, "Missing session key for tile.")
	}
	res, err := gw.ChatHistory(ctx, sessionKey, limit)
	if err != nil {
		return gateway.History{}, err
	}
	return gateway.HistoryLines(res.Messages), nil
}

func historyLimit(r *http.Request) int {
	if n, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && n > 0 {
		return n
	}
	return defaultHistoryLimit
}

// gatewayFailed reports an upstream failure. Validation errors keep their
// own status.
func (s *Server) gatewayFailed(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		status = http.StatusBadGateway
		s.log.Warn().Err(err).Msg("gateway request failed")
	}
	sendError(w, status, err.Error())
}
