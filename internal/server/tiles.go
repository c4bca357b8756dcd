package server

import (
	"encoding/json"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/soyeahso/agentcanvas/internal/botconfig"
	"github.com/soyeahso/agentcanvas/internal/domain"
	"github.com/soyeahso/agentcanvas/internal/hooks"
	"github.com/soyeahso/agentcanvas/internal/store"
	"github.com/soyeahso/agentcanvas/internal/workspace"
)

type tileCreateRequest struct {
	Name string      `json:"name"`
	Role domain.Role `json:"role"`
}

type tileCreateResult struct {
	Store    domain.Document `json:"store"`
	Tile     domain.Tile     `json:"tile"`
	Warnings []string        `json:"warnings"`
}

// nullableString distinguishes an absent field from an explicit null.
type nullableString struct {
	Set   bool
	Value *string
}

func (n *nullableString) UnmarshalJSON(data []byte) error {
	n.Set = true
	if string(data) == "null" {
		n.Value = nil
		return nil
	}
	var v string
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	n.Value = &v
	return nil
}

type tilePatchRequest struct {
	Name          *string          `json:"name"`
	Position      *domain.Position `json:"position"`
	Size          *domain.Size     `json:"size"`
	Model         nullableString   `json:"model"`
	ThinkingLevel nullableString   `json:"thinkingLevel"`
	AvatarSeed    *string          `json:"avatarSeed"`
}

func (p tilePatchRequest) hasLayout() bool {
	return p.Position != nil || p.Size != nil || p.Model.Set || p.ThinkingLevel.Set || p.AvatarSeed != nil
}

func (p tilePatchRequest) applyLayout(t *domain.Tile) {
	if p.Position != nil {
		t.Position = *p.Position
	}
	if p.Size != nil {
		t.Size = *p.Size
	}
	if p.Model.Set {
		t.Model = p.Model.Value
	}
	if p.ThinkingLevel.Set {
		t.ThinkingLevel = p.ThinkingLevel.Value
	}
	if p.AvatarSeed != nil {
		t.AvatarSeed = *p.AvatarSeed
	}
}

func (s *Server) handleCreateTile(w http.ResponseWriter, r *http.Request) {
	projectID := strings.TrimSpace(chi.URLParam(r, "projectId"))
	if projectID == "" {
		sendError(w, http.StatusBadRequest, "Workspace id is required.")
		return
	}
	var req tileCreateRequest
	if err := decodeBody(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		sendError(w, http.StatusBadRequest, "Tile name is required.")
		return
	}
	if !req.Role.Valid() {
		sendError(w, http.StatusBadRequest, "Tile role is invalid.")
		return
	}

	var (
		tile    domain.Tile
		project domain.Project
	)
	doc, err := s.store.Update(func(doc domain.Document) (domain.Document, error) {
		res, err := store.ResolveProject(doc, projectID)
		if err != nil {
			return doc, err
		}
		project = res.Project
		agentID, err := domain.GenerateAgentID(filepath.Base(project.RepoPath), name)
		if err != nil {
			return doc, domain.Errorf(domain.ErrInvalid, "%s", err.Error())
		}
		if project.HasAgent(agentID, "") {
			return doc, domain.Errorf(domain.ErrConflict, "Agent id already exists: %s", agentID)
		}
		pos, size := domain.DefaultTileLayout(len(project.Tiles))
		tile = domain.Tile{
			ID:            uuid.NewString(),
			Name:          name,
			AgentID:       agentID,
			Role:          req.Role,
			SessionKey:    domain.BuildSessionKey(agentID),
			WorkspacePath: s.paths.AgentWorkspaceDir(projectID, agentID),
			Position:      pos,
			Size:          size,
		}
		return store.AddTile(doc, projectID, tile, s.store.Now()), nil
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}

	var warnings workspace.Warnings
	if err := workspace.ProvisionAgentWorkspace(tile.WorkspacePath, project.RepoPath, tile.Role); err != nil {
		s.fail(w, r, err)
		return
	}
	authWarnings, err := workspace.CopyAuthProfiles(s.paths, s.cfg.Workspaces.DefaultAgentID, tile.AgentID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	warnings = append(warnings, authWarnings...)
	s.updateAgentConfig(&warnings, func(f *botconfig.File) bool {
		return f.UpsertAgent(tile.AgentID, tile.Name, tile.WorkspacePath)
	})

	if len(warnings) > 0 {
		s.log.Warn().Strs("warnings", warnings).Str("agentId", tile.AgentID).Msg("tile created with warnings")
	}
	s.emit(r.Context(), hooks.EventTileCreated, map[string]any{
		"projectId":     projectID,
		"tileId":        tile.ID,
		"agentId":       tile.AgentID,
		"role":          string(tile.Role),
		"workspacePath": tile.WorkspacePath,
	})
	sendJSON(w, http.StatusOK, tileCreateResult{Store: doc, Tile: tile, Warnings: warnings.List()})
}

func (s *Server) handleUpdateTile(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "projectId")
	tileID := chi.URLParam(r, "tileId")
	if strings.TrimSpace(projectID) == "" || strings.TrimSpace(tileID) == "" {
		sendError(w, http.StatusBadRequest, "Workspace id and tile id are required.")
		return
	}
	var req tilePatchRequest
	if err := decodeBody(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}

	if req.Name == nil {
		if !req.hasLayout() {
			sendError(w, http.StatusBadRequest, "Tile name is required.")
			return
		}
		doc, err := s.store.Update(func(doc domain.Document) (domain.Document, error) {
			res, err := store.ResolveProjectTile(doc, projectID, tileID)
			if err != nil {
				return doc, err
			}
			return store.UpdateTile(doc, res.ProjectID, res.TileID, req.applyLayout, s.store.Now()), nil
		})
		if err != nil {
			s.fail(w, r, err)
			return
		}
		sendJSON(w, http.StatusOK, storeResult{Store: doc, Warnings: []string{}})
		return
	}

	name := strings.TrimSpace(*req.Name)
	if name == "" {
		sendError(w, http.StatusBadRequest, "Tile name is required.")
		return
	}
	s.renameTile(w, r, projectID, tileID, name, req)
}

func (s *Server) renameTile(w http.ResponseWriter, r *http.Request, projectID, tileID, name string, req tilePatchRequest) {
	doc, err := s.store.Load()
	if err != nil {
		s.fail(w, r, err)
		return
	}
	res, err := store.ResolveProjectTile(doc, projectID, tileID)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	nextAgentID, err := domain.GenerateAgentID(filepath.Base(res.Project.RepoPath), name)
	if err != nil {
		sendError(w, http.StatusBadRequest, err.Error())
		return
	}
	if res.Project.HasAgent(nextAgentID, res.TileID) {
		sendError(w, http.StatusConflict, "Agent id already exists: "+nextAgentID)
		return
	}

	var warnings workspace.Warnings
	prevAgentID := res.Tile.AgentID
	renamed := prevAgentID != nextAgentID
	if renamed {
		if err := workspace.RenameAgentArtifacts(s.paths, res.ProjectID, prevAgentID, nextAgentID, &warnings); err != nil {
			s.fail(w, r, err)
			return
		}
	}
	nextWorkspace := s.paths.AgentWorkspaceDir(res.ProjectID, nextAgentID)
	s.updateAgentConfig(&warnings, func(f *botconfig.File) bool {
		if renamed {
			return f.RenameAgent(prevAgentID, nextAgentID, name, nextWorkspace)
		}
		return f.UpsertAgent(nextAgentID, name, nextWorkspace)
	})

	next, err := s.store.Update(func(doc domain.Document) (domain.Document, error) {
		if err := claimAgentID(doc, res.ProjectID, res.TileID, nextAgentID); err != nil {
			return doc, err
		}
		return store.UpdateTile(doc, res.ProjectID, res.TileID, func(t *domain.Tile) {
			t.Name = name
			t.AgentID = nextAgentID
			t.SessionKey = domain.BuildSessionKey(nextAgentID)
			t.WorkspacePath = nextWorkspace
			req.applyLayout(t)
		}, s.store.Now()), nil
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}

	if renamed {
		s.emit(r.Context(), hooks.EventTileRenamed, map[string]any{
			"projectId":   res.ProjectID,
			"tileId":      res.TileID,
			"fromAgentId": prevAgentID,
			"toAgentId":   nextAgentID,
			"name":        name,
		})
	}
	sendJSON(w, http.StatusOK, storeResult{Store: next, Warnings: warnings.List()})
}

// claimAgentID checks, against the document about to be written, that the
// tile still exists and no other tile in its workspace holds agentID.
func claimAgentID(doc domain.Document, projectID, tileID, agentID string) error {
	res, err := store.ResolveProjectTile(doc, projectID, tileID)
	if err != nil {
		return err
	}
	if res.Project.HasAgent(agentID, res.TileID) {
		return domain.Errorf(domain.ErrConflict, "Agent id already exists: %s", agentID)
	}
	return nil
}

func (s *Server) handleDeleteTile(w http.ResponseWriter, r *http.Request) {
	doc, err := s.store.Load()
	if err != nil {
		s.fail(w, r, err)
		return
	}
	res, err := store.ResolveProjectTile(doc, chi.URLParam(r, "projectId"), chi.URLParam(r, "tileId"))
	if err != nil {
		s.fail(w, r, err)
		return
	}

	var warnings workspace.Warnings
	agentID := strings.TrimSpace(res.Tile.AgentID)
	if agentID == "" {
		warnings.Addf("Missing agentId for tile %s; skipped agent cleanup.", res.TileID)
	} else {
		if err := workspace.DeleteAgentArtifacts(s.paths, res.ProjectID, agentID, &warnings); err != nil {
			s.fail(w, r, err)
			return
		}
		s.updateAgentConfig(&warnings, func(f *botconfig.File) bool {
			return f.RemoveAgent(agentID)
		})
	}

	next, err := s.store.Update(func(doc domain.Document) (domain.Document, error) {
		next, removed := store.RemoveTile(doc, res.ProjectID, res.TileID, s.store.Now())
		if !removed {
			return doc, domain.Errorf(domain.ErrNotFound, "Tile not found.")
		}
		return next, nil
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}

	s.forgetRuns(res.ProjectID, res.TileID)
	s.emit(r.Context(), hooks.EventTileDeleted, map[string]any{
		"projectId": res.ProjectID,
		"tileId":    res.TileID,
		"agentId":   agentID,
	})
	sendJSON(w, http.StatusOK, storeResult{Store: next, Warnings: warnings.List()})
}
