package server

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/soyeahso/agentcanvas/internal/botconfig"
	"github.com/soyeahso/agentcanvas/internal/domain"
	"github.com/soyeahso/agentcanvas/internal/store"
	"github.com/soyeahso/agentcanvas/internal/workspace"
)

type filesResult struct {
	Files []workspace.File `json:"files"`
}

type fileUpdate struct {
	Name    string          `json:"name"`
	Content json.RawMessage `json:"content"`
}

// resolveTile loads the store and looks up the tile named by the route.
func (s *Server) resolveTile(r *http.Request) (store.Resolved, error) {
	doc, err := s.store.Load()
	if err != nil {
		return store.Resolved{}, err
	}
	return store.ResolveProjectTile(doc, chi.URLParam(r, "projectId"), chi.URLParam(r, "tileId"))
}

func (s *Server) agentWorkspaceDir(res store.Resolved) string {
	return s.paths.AgentWorkspaceDir(res.ProjectID, res.Tile.AgentID)
}

func (s *Server) handleGetWorkspaceFiles(w http.ResponseWriter, r *http.Request) {
	res, err := s.resolveTile(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	dir := s.agentWorkspaceDir(res)
	if err := workspace.CheckDir(dir); err != nil {
		s.fail(w, r, err)
		return
	}
	files, err := workspace.ReadFiles(dir)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if r.URL.Query().Get("render") == "html" {
		if files, err = workspace.RenderHTML(files); err != nil {
			s.fail(w, r, err)
			return
		}
	}
	sendJSON(w, http.StatusOK, filesResult{Files: files})
}

func (s *Server) handlePutWorkspaceFiles(w http.ResponseWriter, r *http.Request) {
	res, err := s.resolveTile(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	dir := s.agentWorkspaceDir(res)
	if err := workspace.CheckDir(dir); err != nil {
		s.fail(w, r, err)
		return
	}

	var body struct {
		Files []fileUpdate `json:"files"`
	}
	if err := decodeBody(r, &body); err != nil || body.Files == nil {
		sendError(w, http.StatusBadRequest, "Files payload is invalid.")
		return
	}
	updates := make([]workspace.FileUpdate, 0, len(body.Files))
	for _, f := range body.Files {
		if !domain.IsWorkspaceFileName(f.Name) {
			sendError(w, http.StatusBadRequest, "Invalid file name: "+f.Name)
			return
		}
		var content string
		if err := json.Unmarshal(f.Content, &content); err != nil {
			sendError(w, http.StatusBadRequest, "Invalid content for "+f.Name+".")
			return
		}
		updates = append(updates, workspace.FileUpdate{Name: f.Name, Content: content})
	}

	files, err := workspace.WriteFiles(dir, updates)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	sendJSON(w, http.StatusOK, filesResult{Files: files})
}

func (s *Server) handleGetHeartbeat(w http.ResponseWriter, r *http.Request) {
	res, err := s.resolveTile(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	f, err := s.openAgentConfig()
	if err != nil {
		s.fail(w, r, err)
		return
	}
	sendJSON(w, http.StatusOK, f.ResolveHeartbeat(res.Tile.AgentID))
}

func (s *Server) handlePutHeartbeat(w http.ResponseWriter, r *http.Request) {
	res, err := s.resolveTile(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var body map[string]any
	if err := decodeBody(r, &body); err != nil {
		sendError(w, http.StatusBadRequest, "Heartbeat payload is invalid.")
		return
	}
	update, err := botconfig.ParseHeartbeatUpdate(body)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	s.agentConfigMu.Lock()
	defer s.agentConfigMu.Unlock()
	f, err := s.openAgentConfig()
	if err != nil {
		s.fail(w, r, err)
		return
	}
	state := f.SetHeartbeat(res.Tile.AgentID, update)
	if err := f.Save(); err != nil {
		s.fail(w, r, err)
		return
	}
	sendJSON(w, http.StatusOK, state)
}
