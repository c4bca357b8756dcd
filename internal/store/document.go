// Package store persists the workspace document (projects.json) and provides
// pure transformations over it.
package store

import (
	"strings"

	"github.com/soyeahso/agentcanvas/internal/domain"
)

// WorktreeFunc resolves the default working directory of an agent tile.
type WorktreeFunc func(projectID, agentID string) string

// DefaultDocument is the document seeded when projects.json does not exist.
func DefaultDocument() domain.Document {
	return domain.Document{
		Version:         domain.StoreVersion,
		ActiveProjectID: nil,
		Projects:        []domain.Project{},
	}
}

// Normalize fills missing collections and tile workspace paths, and points
// activeProjectId at an existing project (the first one, or null).
func Normalize(doc domain.Document, worktree WorktreeFunc) domain.Document {
	out := doc.Clone()
	out.Version = domain.StoreVersion
	if out.Projects == nil {
		out.Projects = []domain.Project{}
	}
	for i := range out.Projects {
		p := &out.Projects[i]
		if p.Tiles == nil {
			p.Tiles = []domain.Tile{}
		}
		for j := range p.Tiles {
			t := &p.Tiles[j]
			if strings.TrimSpace(t.WorkspacePath) == "" {
				t.WorkspacePath = worktree(p.ID, t.AgentID)
			}
		}
	}

	if out.ActiveProjectID != nil {
		if _, ok := out.FindProject(*out.ActiveProjectID); ok {
			return out
		}
	}
	out.ActiveProjectID = nil
	if len(out.Projects) > 0 {
		out.ActiveProjectID = domain.StringPtr(out.Projects[0].ID)
	}
	return out
}

// AppendProject adds a project and makes it the active one.
func AppendProject(doc domain.Document, project domain.Project, worktree WorktreeFunc) domain.Document {
	next := doc.Clone()
	next.Projects = append(next.Projects, project.Clone())
	next.ActiveProjectID = domain.StringPtr(project.ID)
	return Normalize(next, worktree)
}

// RemoveProject drops a project. The active project falls back to the first
// remaining one when the removed project was active.
func RemoveProject(doc domain.Document, projectID string, worktree WorktreeFunc) (domain.Document, bool) {
	next := doc.Clone()
	kept := make([]domain.Project, 0, len(next.Projects))
	for _, p := range next.Projects {
		if p.ID != projectID {
			kept = append(kept, p)
		}
	}
	removed := len(kept) != len(next.Projects)
	next.Projects = kept
	return Normalize(next, worktree), removed
}

// AddTile appends a tile to a project and bumps its updatedAt.
func AddTile(doc domain.Document, projectID string, tile domain.Tile, now int64) domain.Document {
	next := doc.Clone()
	next.Version = domain.StoreVersion
	for i := range next.Projects {
		p := &next.Projects[i]
		if p.ID != projectID {
			continue
		}
		p.Tiles = append(p.Tiles, tile.Clone())
		p.UpdatedAt = now
	}
	return next
}

// UpdateTile applies patch to one tile and bumps the project's updatedAt.
func UpdateTile(doc domain.Document, projectID, tileID string, patch func(*domain.Tile), now int64) domain.Document {
	next := doc.Clone()
	next.Version = domain.StoreVersion
	for i := range next.Projects {
		p := &next.Projects[i]
		if p.ID != projectID {
			continue
		}
		for j := range p.Tiles {
			if p.Tiles[j].ID == tileID {
				patch(&p.Tiles[j])
			}
		}
		p.UpdatedAt = now
	}
	return next
}

// RemoveTile drops a tile from a project and reports whether it existed.
func RemoveTile(doc domain.Document, projectID, tileID string, now int64) (domain.Document, bool) {
	next := doc.Clone()
	next.Version = domain.StoreVersion
	removed := false
	for i := range next.Projects {
		p := &next.Projects[i]
		if p.ID != projectID {
			continue
		}
		kept := make([]domain.Tile, 0, len(p.Tiles))
		for _, t := range p.Tiles {
			if t.ID != tileID {
				kept = append(kept, t)
			}
		}
		removed = removed || len(kept) != len(p.Tiles)
		p.Tiles = kept
		p.UpdatedAt = now
	}
	return next, removed
}
