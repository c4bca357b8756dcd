package store

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soyeahso/agentcanvas/internal/config"
	"github.com/soyeahso/agentcanvas/internal/domain"
	"github.com/soyeahso/agentcanvas/internal/logging"
)

func testStore(t *testing.T) *FileStore {
	t.Helper()
	paths := config.PathsFor(filepath.Join(t.TempDir(), "state"))
	return NewFileStore(paths, logging.New(nil, "silent"))
}

func writeStoreFile(t *testing.T, s *FileStore, contents string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(s.Path()), 0o700))
	require.NoError(t, os.WriteFile(s.Path(), []byte(contents), 0o600))
}

func TestLoadSeedsDefault(t *testing.T) {
	s := testStore(t)

	doc, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, DefaultDocument(), doc)

	data, err := os.ReadFile(s.Path())
	require.NoError(t, err)
	assert.JSONEq(t, `{"version":2,"activeProjectId":null,"projects":[]}`, string(data))
}

func TestSaveWritesIndentedJSON(t *testing.T) {
	s := testStore(t)
	require.NoError(t, s.Save(buildDocument()))

	data, err := os.ReadFile(s.Path())
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "{\n  \"version\": 2,"))

	entries, err := os.ReadDir(filepath.Dir(s.Path()))
	require.NoError(t, err)
	for _, e := range entries {
		assert.False(t, strings.HasPrefix(e.Name(), ".projects-"), "temp file left behind: %s", e.Name())
	}
}

func TestLoadReturnsVersion2AsIs(t *testing.T) {
	s := testStore(t)
	writeStoreFile(t, s, `{
  "version": 2,
  "activeProjectId": "gone",
  "projects": [{"id": "p1", "name": "P", "repoPath": "/r", "createdAt": 1, "updatedAt": 1, "tiles": []}]
}`)

	doc, err := s.Load()
	require.NoError(t, err)
	require.NotNil(t, doc.ActiveProjectID)
	assert.Equal(t, "gone", *doc.ActiveProjectID, "load does not normalize")
}

func TestLoadMigratesV1(t *testing.T) {
	s := testStore(t)
	writeStoreFile(t, s, `{
  "activeProjectId": "p1",
  "projects": [{
    "id": "p1", "name": "P", "repoPath": "/r", "createdAt": 1, "updatedAt": 1,
    "tiles": [{"id": "t1", "name": "Builder", "sessionKey": "agent:builder:main",
               "position": {"x": 1, "y": 2}, "size": {"width": 3, "height": 4}}]
  }]
}`)

	doc, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, 2, doc.Version)
	tile := doc.Projects[0].Tiles[0]
	assert.Equal(t, "builder", tile.AgentID)
	assert.Equal(t, domain.RoleCoding, tile.Role)
	assert.Equal(t, s.Paths().AgentWorkspaceDir("p1", "builder"), tile.WorkspacePath)

	var onDisk map[string]any
	data, err := os.ReadFile(s.Path())
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &onDisk))
	assert.EqualValues(t, 2, onDisk["version"], "migration is persisted")
}

func TestLoadInvalidShapes(t *testing.T) {
	tests := []struct {
		name     string
		contents string
		invalid  bool
	}{
		{"projects missing", `{"version":2}`, true},
		{"projects not array", `{"version":2,"projects":{}}`, true},
		{"tiles missing", `{"version":2,"projects":[{"id":"p1"}]}`, true},
		{"tiles not array", `{"version":2,"projects":[{"id":"p1","tiles":"x"}]}`, true},
		{"top level array", `[]`, true},
		{"syntax error", `{"version":2,`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := testStore(t)
			writeStoreFile(t, s, tt.contents)

			_, err := s.Load()
			require.Error(t, err)
			var pe *ParseError
			require.ErrorAs(t, err, &pe)
			if tt.invalid {
				assert.ErrorIs(t, err, ErrInvalidDocument)
				assert.Equal(t, "Workspaces store is invalid at "+s.Path()+".", err.Error())
			} else {
				assert.True(t, strings.HasPrefix(err.Error(), "Failed to parse workspaces store at "+s.Path()+": "))
			}
		})
	}
}

func TestLoadRejectsNewerVersion(t *testing.T) {
	s := testStore(t)
	writeStoreFile(t, s, `{"version":3,"projects":[]}`)

	_, err := s.Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "newer than supported")
	var parseErr *ParseError
	assert.True(t, errors.As(err, &parseErr))

	data, err := os.ReadFile(s.Path())
	require.NoError(t, err)
	assert.JSONEq(t, `{"version":3,"projects":[]}`, string(data), "a newer store is left untouched")
}

func TestUpdate(t *testing.T) {
	s := testStore(t)

	doc, err := s.Update(func(doc domain.Document) (domain.Document, error) {
		return AppendProject(doc, domain.Project{ID: "p1", Name: "One"}, s.WorktreeDir), nil
	})
	require.NoError(t, err)
	assert.Equal(t, "p1", *doc.ActiveProjectID)

	s.Invalidate()
	reloaded, err := s.Load()
	require.NoError(t, err)
	require.Len(t, reloaded.Projects, 1)
	assert.Equal(t, "One", reloaded.Projects[0].Name)
}

func TestUpdateErrorWritesNothing(t *testing.T) {
	s := testStore(t)
	boom := errors.New("boom")

	_, err := s.Update(func(doc domain.Document) (domain.Document, error) {
		return AppendProject(doc, domain.Project{ID: "p1"}, s.WorktreeDir), boom
	})
	assert.ErrorIs(t, err, boom)

	doc, err := s.Load()
	require.NoError(t, err)
	assert.Empty(t, doc.Projects)
}

func TestLoadReturnsCopies(t *testing.T) {
	s := testStore(t)
	require.NoError(t, s.Save(buildDocument()))

	doc, err := s.Load()
	require.NoError(t, err)
	doc.Projects[0].Name = "mutated"

	again, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, "Project One", again.Projects[0].Name)
}

func TestCacheInvalidation(t *testing.T) {
	s := testStore(t)
	require.NoError(t, s.Save(buildDocument()))

	writeStoreFile(t, s, `{"version":2,"activeProjectId":null,"projects":[]}`)

	cached, err := s.Load()
	require.NoError(t, err)
	assert.Len(t, cached.Projects, 1, "cache still serves the last save")

	s.Invalidate()
	fresh, err := s.Load()
	require.NoError(t, err)
	assert.Empty(t, fresh.Projects)
}

func TestWatcherInvalidatesOnExternalWrite(t *testing.T) {
	s := testStore(t)
	require.NoError(t, s.Save(buildDocument()))

	w, err := NewWatcher(s, logging.New(nil, "silent"))
	require.NoError(t, err)
	w.debounce = 10 * time.Millisecond
	changed := make(chan struct{}, 4)
	w.OnChange(func() { changed <- struct{}{} })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	require.Eventually(t, func() bool {
		_ = os.WriteFile(s.Path(), []byte(`{"version":2,"activeProjectId":null,"projects":[]}`), 0o600)
		select {
		case <-changed:
			return true
		case <-time.After(50 * time.Millisecond):
			return false
		}
	}, 3*time.Second, 10*time.Millisecond)

	doc, err := s.Load()
	require.NoError(t, err)
	assert.Empty(t, doc.Projects)
}

func TestWatcherIgnoresOwnSaves(t *testing.T) {
	s := testStore(t)
	require.NoError(t, s.Save(buildDocument()))

	w, err := NewWatcher(s, logging.New(nil, "silent"))
	require.NoError(t, err)
	w.debounce = 10 * time.Millisecond
	changed := make(chan struct{}, 16)
	w.OnChange(func() { changed <- struct{}{} })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	external := []byte(`{"version":2,"activeProjectId":null,"projects":[]}`)
	require.Eventually(t, func() bool {
		_ = os.WriteFile(s.Path(), external, 0o600)
		select {
		case <-changed:
			return true
		case <-time.After(50 * time.Millisecond):
			return false
		}
	}, 3*time.Second, 10*time.Millisecond)
	_, err = s.Load()
	require.NoError(t, err)

	require.NoError(t, s.Save(buildDocument()))
	_, err = s.Update(func(doc domain.Document) (domain.Document, error) {
		doc.Projects[0].Name = "Renamed"
		return doc, nil
	})
	require.NoError(t, err)

	assert.Never(t, func() bool {
		select {
		case <-changed:
			return true
		default:
			return false
		}
	}, 300*time.Millisecond, 10*time.Millisecond, "saves made through the store are not reported as external changes")

	require.NoError(t, os.WriteFile(s.Path(), external, 0o600))
	assert.Eventually(t, func() bool {
		select {
		case <-changed:
			return true
		default:
			return false
		}
	}, 3*time.Second, 10*time.Millisecond)
}
