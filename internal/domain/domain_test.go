package domain

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoleValid(t *testing.T) {
	assert.True(t, RoleCoding.Valid())
	assert.True(t, RoleResearch.Valid())
	assert.True(t, RoleMarketing.Valid())
	assert.False(t, Role("design").Valid())
	assert.False(t, Role("").Valid())
}

func TestSlugifyProjectName(t *testing.T) {
	tests := []struct {
		input   string
		want    string
		wantErr bool
	}{
		{"My App", "my-app", false},
		{"  Hello,   World!  ", "hello-world", false},
		{"already-slugged", "already-slugged", false},
		{"Ünïcode Project 2", "n-code-project-2", false},
		{"---", "", true},
		{"", "", true},
		{"日本語", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := SlugifyProjectName(tt.input)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrEmptySlug)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGenerateAgentID(t *testing.T) {
	id, err := GenerateAgentID("my-app", "Code Reviewer")
	require.NoError(t, err)
	assert.Equal(t, "my-app-code-reviewer", id)

	id, err = GenerateAgentID("", "Solo")
	require.NoError(t, err)
	assert.Equal(t, "solo", id)

	_, err = GenerateAgentID("my-app", "!!!")
	assert.ErrorIs(t, err, ErrEmptyAgentID)

	long, err := GenerateAgentID("project", strings.Repeat("abc ", 40))
	require.NoError(t, err)
	assert.LessOrEqual(t, len(long), MaxAgentIDLength)
	assert.False(t, strings.HasSuffix(long, "-"))
}

func TestSessionKey(t *testing.T) {
	assert.Equal(t, "agent:my-app-coder:main", BuildSessionKey("my-app-coder"))

	tests := []struct {
		key  string
		want string
	}{
		{"agent:my-app-coder:main", "my-app-coder"},
		{"agent:x:thread:42", "x"},
		{"  agent:spaced:main  ", "spaced"},
		{"agent::main", "main"},
		{"agent:only", "main"},
		{"session-123", "main"},
		{"", "main"},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseAgentIDFromSessionKey(tt.key))
		})
	}
}

func TestDefaultTileLayout(t *testing.T) {
	pos, size := DefaultTileLayout(0)
	assert.Equal(t, Position{X: 80, Y: 200}, pos)
	assert.Equal(t, Size{Width: 720, Height: 560}, size)

	pos, _ = DefaultTileLayout(3)
	assert.Equal(t, Position{X: 188, Y: 308}, pos)
}

func TestBuildAgentInstruction(t *testing.T) {
	msg := BuildAgentInstruction("/tmp/worktrees/project-1/agent-2", "/repo/project-1", "  Ship it ")
	assert.Contains(t, msg, "Workspace path: /tmp/worktrees/project-1/agent-2.")
	assert.Contains(t, msg, "git worktree of /repo/project-1")
	assert.Contains(t, msg, "AGENTS.md, SOUL.md, IDENTITY.md, USER.md, HEARTBEAT.md, TOOLS.md, MEMORY.md")
	assert.True(t, strings.HasSuffix(msg, "\n\nShip it"))

	noRepo := BuildAgentInstruction("/tmp/w", "", "hi")
	assert.NotContains(t, noRepo, "git worktree")

	assert.Equal(t, "/reset", BuildAgentInstruction("/tmp/w", "/repo", " /reset "))
	assert.Equal(t, "", BuildAgentInstruction("/tmp/w", "/repo", "   "))
	assert.Equal(t, "hello", BuildAgentInstruction(" ", "/repo", "hello"))
}

func TestIsWorkspaceFileName(t *testing.T) {
	assert.True(t, IsWorkspaceFileName("MEMORY.md"))
	assert.False(t, IsWorkspaceFileName("BOOTSTRAP.md"))
	assert.False(t, IsWorkspaceFileName("../AGENTS.md"))
}

func TestDocumentJSONShape(t *testing.T) {
	doc := Document{
		Version: StoreVersion,
		Projects: []Project{{
			ID: "p1", Name: "P", RepoPath: "/r", CreatedAt: 1, UpdatedAt: 2,
			Tiles: []Tile{{ID: "t1", AgentID: "a", Role: RoleCoding, SessionKey: "agent:a:main"}},
		}},
	}
	data, err := json.Marshal(doc)
	require.NoError(t, err)

	s := string(data)
	assert.Contains(t, s, `"activeProjectId":null`)
	assert.Contains(t, s, `"model":null`)
	assert.Contains(t, s, `"thinkingLevel":null`)
	assert.Contains(t, s, `"repoPath":"/r"`)
	assert.NotContains(t, s, "avatarSeed")
}

func TestDocumentCloneIsDeep(t *testing.T) {
	active := "p1"
	doc := Document{
		Version:         StoreVersion,
		ActiveProjectID: &active,
		Projects: []Project{{
			ID:    "p1",
			Tiles: []Tile{{ID: "t1", Model: StringPtr("gpt")}},
		}},
	}

	clone := doc.Clone()
	*clone.ActiveProjectID = "p2"
	clone.Projects[0].Tiles[0].Name = "changed"
	*clone.Projects[0].Tiles[0].Model = "other"

	assert.Equal(t, "p1", *doc.ActiveProjectID)
	assert.Empty(t, doc.Projects[0].Tiles[0].Name)
	assert.Equal(t, "gpt", *doc.Projects[0].Tiles[0].Model)
}

func TestProjectLookups(t *testing.T) {
	p := Project{ID: "p1", Tiles: []Tile{{ID: "t1", AgentID: "a"}, {ID: "t2", AgentID: "b"}}}
	doc := Document{Projects: []Project{p}}

	got, ok := doc.FindProject("p1")
	require.True(t, ok)
	tile, ok := got.FindTile("t2")
	require.True(t, ok)
	assert.Equal(t, "b", tile.AgentID)

	_, ok = doc.FindProject("missing")
	assert.False(t, ok)

	assert.True(t, p.HasAgent("a", "t2"))
	assert.False(t, p.HasAgent("a", "t1"))
}

func TestErrorKinds(t *testing.T) {
	err := Errorf(ErrConflict, "Agent id already exists: %s", "a")
	assert.ErrorIs(t, err, ErrConflict)
	assert.NotErrorIs(t, err, ErrNotFound)
	assert.Equal(t, "Agent id already exists: a", err.Error())
}
