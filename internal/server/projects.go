package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/soyeahso/agentcanvas/internal/botconfig"
	"github.com/soyeahso/agentcanvas/internal/domain"
	"github.com/soyeahso/agentcanvas/internal/hooks"
	"github.com/soyeahso/agentcanvas/internal/store"
	"github.com/soyeahso/agentcanvas/internal/workspace"
)

type storeResult struct {
	Store    domain.Document `json:"store"`
	Warnings []string        `json:"warnings"`
}

type projectCreateRequest struct {
	Name string `json:"name"`
}

type projectOpenRequest struct {
	Path string `json:"path"`
}

func (s *Server) handleListProjects(w http.ResponseWriter, r *http.Request) {
	doc, err := s.store.Load()
	if err != nil {
		s.fail(w, r, err)
		return
	}
	sendJSON(w, http.StatusOK, s.store.Normalize(doc))
}

func (s *Server) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	var req projectCreateRequest
	if err := decodeBody(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		sendError(w, http.StatusBadRequest, "Workspace name is required.")
		return
	}
	slug, err := domain.SlugifyProjectName(name)
	if err != nil {
		sendError(w, http.StatusBadRequest, err.Error())
		return
	}

	root, err := s.cfg.Workspaces.ResolveRoot()
	if err != nil {
		s.fail(w, r, err)
		return
	}
	repoPath, warnings := workspace.ResolveProjectPath(root, slug)
	gitWarnings, err := workspace.EnsureGitRepo(r.Context(), s.git, repoPath)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	warnings = append(warnings, gitWarnings...)

	project := s.newProject(name, repoPath)
	doc, err := s.store.Update(func(doc domain.Document) (domain.Document, error) {
		return store.AppendProject(doc, project, s.store.WorktreeDir), nil
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}

	if len(warnings) > 0 {
		s.log.Warn().Strs("warnings", warnings).Str("projectId", project.ID).Msg("workspace created with warnings")
	}
	s.emit(r.Context(), hooks.EventWorkspaceCreated, map[string]any{
		"projectId": project.ID,
		"name":      project.Name,
		"repoPath":  project.RepoPath,
	})
	sendJSON(w, http.StatusOK, storeResult{Store: doc, Warnings: warnings.List()})
}

func (s *Server) handleReplaceProjects(w http.ResponseWriter, r *http.Request) {
	var body json.RawMessage
	if err := decodeBody(r, &body); err != nil {
		sendError(w, http.StatusBadRequest, "Invalid workspaces payload.")
		return
	}
	var shape struct {
		Projects json.RawMessage `json:"projects"`
	}
	if err := json.Unmarshal(body, &shape); err != nil || !isJSONArray(shape.Projects) {
		sendError(w, http.StatusBadRequest, "Invalid workspaces payload.")
		return
	}
	var doc domain.Document
	if err := json.Unmarshal(body, &doc); err != nil {
		sendError(w, http.StatusBadRequest, "Invalid workspaces payload.")
		return
	}

	saved, err := s.store.Update(func(domain.Document) (domain.Document, error) {
		return s.store.Normalize(doc), nil
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	sendJSON(w, http.StatusOK, saved)
}

func (s *Server) handleOpenProject(w http.ResponseWriter, r *http.Request) {
	var req projectOpenRequest
	if err := decodeBody(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	target, err := workspace.ResolveOpenPath(req.Path)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	var warnings workspace.Warnings
	if !workspace.HasGitDir(target.Path) {
		warnings.Addf("No .git directory found for this workspace path.")
	}

	project := s.newProject(target.Name, target.Path)
	doc, err := s.store.Update(func(doc domain.Document) (domain.Document, error) {
		for _, p := range doc.Projects {
			if p.RepoPath == target.Path {
				return doc, domain.Errorf(domain.ErrConflict, "Workspace already exists for this path.")
			}
		}
		return store.AppendProject(doc, project, s.store.WorktreeDir), nil
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}

	if len(warnings) > 0 {
		s.log.Warn().Strs("warnings", warnings).Str("projectId", project.ID).Msg("workspace opened with warnings")
	}
	s.emit(r.Context(), hooks.EventWorkspaceOpened, map[string]any{
		"projectId": project.ID,
		"name":      project.Name,
		"repoPath":  project.RepoPath,
	})
	sendJSON(w, http.StatusOK, storeResult{Store: doc, Warnings: warnings.List()})
}

func (s *Server) handleDeleteProject(w http.ResponseWriter, r *http.Request) {
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

	var warnings workspace.Warnings
	agentIDs, err := workspace.DeleteTileArtifacts(s.paths, res.ProjectID, res.Project.Tiles, &warnings)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.updateAgentConfig(&warnings, func(f *botconfig.File) bool {
		changed := false
		for _, id := range agentIDs {
			if f.RemoveAgent(id) {
				changed = true
			}
		}
		return changed
	})

	next, err := s.store.Update(func(doc domain.Document) (domain.Document, error) {
		next, _ := store.RemoveProject(doc, res.ProjectID, s.store.WorktreeDir)
		return next, nil
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}

	s.forgetRuns(res.ProjectID, "")
	s.emit(r.Context(), hooks.EventWorkspaceDeleted, map[string]any{
		"projectId": res.ProjectID,
		"repoPath":  res.Project.RepoPath,
		"agentIds":  agentIDs,
	})
	sendJSON(w, http.StatusOK, storeResult{Store: next, Warnings: warnings.List()})
}

func (s *Server) handleActivateProject(w http.ResponseWriter, r *http.Request) {
	doc, err := s.store.Update(func(doc domain.Document) (domain.Document, error) {
		res, err := store.ResolveProject(doc, chi.URLParam(r, "projectId"))
		if err != nil {
			return doc, err
		}
		doc.ActiveProjectID = domain.StringPtr(res.ProjectID)
		return s.store.Normalize(doc), nil
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	sendJSON(w, http.StatusOK, doc)
}

func (s *Server) newProject(name, repoPath string) domain.Project {
	now := s.store.Now()
	return domain.Project{
		ID:        uuid.NewString(),
		Name:      name,
		RepoPath:  repoPath,
		CreatedAt: now,
		UpdatedAt: now,
		Tiles:     []domain.Tile{},
	}
}

// updateAgentConfig applies fn to moltbot.json and saves it when fn
// reports a change. Failures become warnings.
func (s *Server) updateAgentConfig(warnings *workspace.Warnings, fn func(f *botconfig.File) bool) {
	s.agentConfigMu.Lock()
	defer s.agentConfigMu.Unlock()

	f, err := s.openAgentConfig()
	if err != nil {
		warnings.Addf("Agent config not updated: %s", err)
		return
	}
	if !fn(f) {
		return
	}
	if err := f.Save(); err != nil {
		warnings.Addf("Agent config not updated: %s", err)
	}
}

func (s *Server) emit(ctx context.Context, event string, data map[string]any) {
	s.hooks.EmitAsync(context.WithoutCancel(ctx), event, data)
}

func isJSONArray(raw json.RawMessage) bool {
	trimmed := strings.TrimSpace(string(raw))
	return strings.HasPrefix(trimmed, "[")
}
