package store

import (
	"strings"

	"github.com/soyeahso/agentcanvas/internal/domain"
)

// Resolved is a project, and optionally one of its tiles, looked up by id.
type Resolved struct {
	ProjectID string
	TileID    string
	Project   domain.Project
	Tile      domain.Tile
}

// ResolveProject trims projectID and finds the project.
func ResolveProject(doc domain.Document, projectID string) (Resolved, error) {
	id := strings.TrimSpace(projectID)
	if id == "" {
		return Resolved{}, domain.Errorf(domain.ErrInvalid, "Workspace id is required.")
	}
	project, ok := doc.FindProject(id)
	if !ok {
		return Resolved{}, domain.Errorf(domain.ErrNotFound, "Workspace not found.")
	}
	return Resolved{ProjectID: id, Project: project}, nil
}

// ResolveProjectTile trims both ids and finds the project and tile.
func ResolveProjectTile(doc domain.Document, projectID, tileID string) (Resolved, error) {
	pid := strings.TrimSpace(projectID)
	tid := strings.TrimSpace(tileID)
	if pid == "" || tid == "" {
		return Resolved{}, domain.Errorf(domain.ErrInvalid, "Workspace id and tile id are required.")
	}
	project, ok := doc.FindProject(pid)
	if !ok {
		return Resolved{}, domain.Errorf(domain.ErrNotFound, "Workspace not found.")
	}
	tile, ok := project.FindTile(tid)
	if !ok {
		return Resolved{}, domain.Errorf(domain.ErrNotFound, "Tile not found.")
	}
	return Resolved{ProjectID: pid, TileID: tid, Project: project, Tile: tile}, nil
}
