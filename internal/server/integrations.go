package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/soyeahso/agentcanvas/internal/botconfig"
	"github.com/soyeahso/agentcanvas/internal/discord"
	"github.com/soyeahso/agentcanvas/internal/store"
)

type discordRequest struct {
	GuildID   string `json:"guildId"`
	AgentID   string `json:"agentId"`
	AgentName string `json:"agentName"`
}

func (s *Server) handleDiscordChannel(w http.ResponseWriter, r *http.Request) {
	projectID := strings.TrimSpace(chi.URLParam(r, "projectId"))
	if projectID == "" {
		sendError(w, http.StatusBadRequest, "Workspace id is required.")
		return
	}
	var req discordRequest
	if err := decodeBody(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	agentID := strings.TrimSpace(req.AgentID)
	agentName := strings.TrimSpace(req.AgentName)
	if agentID == "" || agentName == "" {
		sendError(w, http.StatusBadRequest, "Agent id and name are required.")
		return
	}

	doc, err := s.store.Load()
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if _, err := store.ResolveProject(doc, projectID); err != nil {
		s.fail(w, r, err)
		return
	}

	result, err := s.discord.CreateChannelForAgent(r.Context(), discord.Request{
		GuildID:      req.GuildID,
		AgentID:      agentID,
		AgentName:    agentName,
		WorkspaceDir: s.paths.AgentWorkspaceDir(projectID, agentID),
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	sendJSON(w, http.StatusOK, result)
}

func (s *Server) handleGateway(w http.ResponseWriter, r *http.Request) {
	info, err := s.gatewayInfo()
	if err != nil {
		if errors.Is(err, botconfig.ErrMissing) {
			sendError(w, http.StatusNotFound, err.Error())
			return
		}
		s.fail(w, r, err)
		return
	}
	sendJSON(w, http.StatusOK, info)
}
