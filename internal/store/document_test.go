package store

import (
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soyeahso/agentcanvas/internal/domain"
)

func testWorktree(projectID, agentID string) string {
	return filepath.Join("/state/agent-canvas/worktrees", projectID, agentID)
}

func buildDocument() domain.Document {
	tile := domain.Tile{
		ID:            "tile-1",
		Name:          "Agent One",
		AgentID:       "agent-1",
		Role:          domain.RoleCoding,
		SessionKey:    "agent:agent-1:main",
		WorkspacePath: "/tmp/worktrees/agent-1",
		Model:         domain.StringPtr("openai-codex/gpt-5.2-codex"),
		AvatarSeed:    "agent-1",
		Position:      domain.Position{X: 0, Y: 0},
		Size:          domain.Size{Width: 420, Height: 520},
	}
	project := domain.Project{
		ID:        "project-1",
		Name:      "Project One",
		RepoPath:  "/tmp/project-1",
		CreatedAt: 1,
		UpdatedAt: 1,
		Tiles:     []domain.Tile{tile},
	}
	return domain.Document{
		Version:         domain.StoreVersion,
		ActiveProjectID: domain.StringPtr(project.ID),
		Projects:        []domain.Project{project},
	}
}

func TestDefaultDocument(t *testing.T) {
	doc := DefaultDocument()
	assert.Equal(t, 2, doc.Version)
	assert.Nil(t, doc.ActiveProjectID)
	assert.NotNil(t, doc.Projects)
	assert.Empty(t, doc.Projects)
}

func TestNormalize(t *testing.T) {
	doc := domain.Document{
		Version:         1,
		ActiveProjectID: domain.StringPtr("missing"),
		Projects: []domain.Project{
			{ID: "p1", Tiles: []domain.Tile{{ID: "t1", AgentID: "a1", WorkspacePath: "  "}}},
			{ID: "p2"},
		},
	}

	got := Normalize(doc, testWorktree)

	assert.Equal(t, 2, got.Version)
	require.NotNil(t, got.ActiveProjectID)
	assert.Equal(t, "p1", *got.ActiveProjectID)
	assert.Equal(t, "/state/agent-canvas/worktrees/p1/a1", got.Projects[0].Tiles[0].WorkspacePath)
	assert.NotNil(t, got.Projects[1].Tiles)

	assert.Equal(t, "missing", *doc.ActiveProjectID, "input is not mutated")
	assert.Equal(t, "  ", doc.Projects[0].Tiles[0].WorkspacePath)
}

func TestNormalizeKeepsValidActiveAndNilsEmpty(t *testing.T) {
	doc := buildDocument()
	got := Normalize(doc, testWorktree)
	if diff := cmp.Diff(doc, got); diff != "" {
		t.Errorf("normalized valid document changed (-want +got):\n%s", diff)
	}

	empty := Normalize(domain.Document{ActiveProjectID: domain.StringPtr("x")}, testWorktree)
	assert.Nil(t, empty.ActiveProjectID)
	assert.NotNil(t, empty.Projects)
}

func TestAppendProject(t *testing.T) {
	doc := buildDocument()
	next := AppendProject(doc, domain.Project{ID: "project-2", Name: "Two"}, testWorktree)

	require.Len(t, next.Projects, 2)
	assert.Equal(t, "project-2", *next.ActiveProjectID)
	assert.NotNil(t, next.Projects[1].Tiles)
	assert.Len(t, doc.Projects, 1)
}

func TestRemoveProject(t *testing.T) {
	doc := AppendProject(buildDocument(), domain.Project{ID: "project-2"}, testWorktree)

	next, removed := RemoveProject(doc, "project-2", testWorktree)
	assert.True(t, removed)
	require.Len(t, next.Projects, 1)
	assert.Equal(t, "project-1", *next.ActiveProjectID)

	_, removed = RemoveProject(next, "missing", testWorktree)
	assert.False(t, removed)

	last, removed := RemoveProject(next, "project-1", testWorktree)
	assert.True(t, removed)
	assert.Nil(t, last.ActiveProjectID)
	assert.Empty(t, last.Projects)
}

func TestAddTile(t *testing.T) {
	doc := buildDocument()
	doc.Projects = append(doc.Projects, domain.Project{ID: "project-2", UpdatedAt: 5, Tiles: []domain.Tile{}})

	next := AddTile(doc, "project-1", domain.Tile{ID: "tile-2"}, 100)

	require.Len(t, next.Projects[0].Tiles, 2)
	assert.Equal(t, int64(100), next.Projects[0].UpdatedAt)
	assert.Equal(t, int64(5), next.Projects[1].UpdatedAt)
	assert.Len(t, doc.Projects[0].Tiles, 1)
}

func TestUpdateTile(t *testing.T) {
	doc := buildDocument()
	next := UpdateTile(doc, "project-1", "tile-1", func(tile *domain.Tile) {
		tile.Name = "Renamed"
		tile.Model = nil
	}, 200)

	assert.Equal(t, "Renamed", next.Projects[0].Tiles[0].Name)
	assert.Nil(t, next.Projects[0].Tiles[0].Model)
	assert.Equal(t, int64(200), next.Projects[0].UpdatedAt)
	assert.Equal(t, "Agent One", doc.Projects[0].Tiles[0].Name)
}

func TestRemoveTile(t *testing.T) {
	doc := buildDocument()

	next, removed := RemoveTile(doc, "project-1", "tile-1", 300)
	assert.True(t, removed)
	assert.Empty(t, next.Projects[0].Tiles)
	assert.Equal(t, int64(300), next.Projects[0].UpdatedAt)

	_, removed = RemoveTile(doc, "project-1", "missing", 300)
	assert.False(t, removed)
}

func TestResolveProject(t *testing.T) {
	doc := buildDocument()

	_, err := ResolveProject(doc, "   ")
	assert.ErrorIs(t, err, domain.ErrInvalid)
	assert.EqualError(t, err, "Workspace id is required.")

	_, err = ResolveProject(doc, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.EqualError(t, err, "Workspace not found.")

	got, err := ResolveProject(doc, " project-1 ")
	require.NoError(t, err)
	assert.Equal(t, "project-1", got.ProjectID)
	assert.Equal(t, doc.Projects[0].Name, got.Project.Name)
}

func TestResolveProjectTile(t *testing.T) {
	doc := buildDocument()

	tests := []struct {
		name      string
		projectID string
		tileID    string
		kind      error
		message   string
	}{
		{"blank tile", "project-1", " ", domain.ErrInvalid, "Workspace id and tile id are required."},
		{"unknown project", "missing", "tile-1", domain.ErrNotFound, "Workspace not found."},
		{"unknown tile", "project-1", "missing", domain.ErrNotFound, "Tile not found."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ResolveProjectTile(doc, tt.projectID, tt.tileID)
			assert.ErrorIs(t, err, tt.kind)
			assert.EqualError(t, err, tt.message)
		})
	}

	got, err := ResolveProjectTile(doc, "project-1", " tile-1 ")
	require.NoError(t, err)
	assert.Equal(t, "tile-1", got.TileID)
	if diff := cmp.Diff(doc.Projects[0].Tiles[0], got.Tile); diff != "" {
		t.Errorf("resolved tile mismatch (-want +got):\n%s", diff)
	}
}

func TestMigrateV1(t *testing.T) {
	doc := domain.Document{
		Version: 1,
		Projects: []domain.Project{{
			ID: "p1",
			Tiles: []domain.Tile{
				{ID: "t1", SessionKey: "agent:builder:main"},
				{ID: "t2", SessionKey: "legacy"},
			},
		}},
	}

	got, applied := migrate(doc, testWorktree)
	require.Len(t, applied, 1)
	assert.Equal(t, 2, got.Version)

	t1 := got.Projects[0].Tiles[0]
	assert.Equal(t, "builder", t1.AgentID)
	assert.Equal(t, domain.RoleCoding, t1.Role)
	assert.Equal(t, "/state/agent-canvas/worktrees/p1/builder", t1.WorkspacePath)
	assert.Equal(t, "main", got.Projects[0].Tiles[1].AgentID)

	_, applied = migrate(got, testWorktree)
	assert.Empty(t, applied)
}
