// Package domain defines the workspace and tile documents persisted in
// projects.json, along with the identifiers derived from them.
package domain

import "slices"

// StoreVersion is the current projects.json schema version.
const StoreVersion = 2

// Role is the job an agent tile is provisioned for.
type Role string

const (
	RoleCoding    Role = "coding"
	RoleResearch  Role = "research"
	RoleMarketing Role = "marketing"
)

// Roles lists every valid tile role.
var Roles = []Role{RoleCoding, RoleResearch, RoleMarketing}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return slices.Contains(Roles, r)
}

// Position is a tile's top-left corner on the canvas.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Size is a tile's extent on the canvas.
type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Tile is an agent placed on a workspace canvas.
type Tile struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	AgentID       string   `json:"agentId"`
	Role          Role     `json:"role"`
	SessionKey    string   `json:"sessionKey"`
	WorkspacePath string   `json:"workspacePath"`
	Model         *string  `json:"model"`
	ThinkingLevel *string  `json:"thinkingLevel"`
	AvatarSeed    string   `json:"avatarSeed,omitempty"`
	Position      Position `json:"position"`
	Size          Size     `json:"size"`
}

// Project is a registered local repository and the tiles working in it.
// Timestamps are Unix milliseconds.
type Project struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	RepoPath  string `json:"repoPath"`
	CreatedAt int64  `json:"createdAt"`
	UpdatedAt int64  `json:"updatedAt"`
	Tiles     []Tile `json:"tiles"`
}

// Document is the full contents of projects.json.
type Document struct {
	Version         int       `json:"version"`
	ActiveProjectID *string   `json:"activeProjectId"`
	Projects        []Project `json:"projects"`
}

// Clone returns a deep copy so callers can mutate without aliasing.
func (d Document) Clone() Document {
	out := Document{Version: d.Version}
	if d.ActiveProjectID != nil {
		id := *d.ActiveProjectID
		out.ActiveProjectID = &id
	}
	if d.Projects != nil {
		out.Projects = make([]Project, len(d.Projects))
		for i, p := range d.Projects {
			out.Projects[i] = p.Clone()
		}
	}
	return out
}

// Clone returns a deep copy of the project and its tiles.
func (p Project) Clone() Project {
	out := p
	if p.Tiles != nil {
		out.Tiles = make([]Tile, len(p.Tiles))
		for i, t := range p.Tiles {
			out.Tiles[i] = t.Clone()
		}
	}
	return out
}

// Clone returns a copy of the tile with its own optional fields.
func (t Tile) Clone() Tile {
	out := t
	out.Model = cloneString(t.Model)
	out.ThinkingLevel = cloneString(t.ThinkingLevel)
	return out
}

// FindProject returns the project with the given id.
func (d Document) FindProject(id string) (Project, bool) {
	for _, p := range d.Projects {
		if p.ID == id {
			return p, true
		}
	}
	return Project{}, false
}

// FindTile returns the tile with the given id.
func (p Project) FindTile(id string) (Tile, bool) {
	for _, t := range p.Tiles {
		if t.ID == id {
			return t, true
		}
	}
	return Tile{}, false
}

// HasAgent reports whether a tile other than exceptTileID uses agentID.
func (p Project) HasAgent(agentID, exceptTileID string) bool {
	for _, t := range p.Tiles {
		if t.ID != exceptTileID && t.AgentID == agentID {
			return true
		}
	}
	return false
}

const (
	tileOriginX     = 80
	tileOriginY     = 200
	tileCascadeStep = 36
	tileWidth       = 720
	tileHeight      = 560
)

// DefaultTileLayout cascades each new tile down and right of the previous one.
func DefaultTileLayout(existing int) (Position, Size) {
	offset := float64(existing * tileCascadeStep)
	return Position{X: tileOriginX + offset, Y: tileOriginY + offset},
		Size{Width: tileWidth, Height: tileHeight}
}

// StringPtr returns a pointer to s.
func StringPtr(s string) *string { return &s }

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
