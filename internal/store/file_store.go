package store

import (
	"bytes"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/soyeahso/agentcanvas/internal/config"
	"github.com/soyeahso/agentcanvas/internal/domain"
	"github.com/soyeahso/agentcanvas/internal/logging"
)

// ErrInvalidDocument marks a projects.json that parses but has the wrong shape.
var ErrInvalidDocument = errors.New("invalid workspaces document")

// ParseError wraps a failure to decode projects.json.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	if errors.Is(e.Err, ErrInvalidDocument) {
		return fmt.Sprintf("Workspaces store is invalid at %s.", e.Path)
	}
	return fmt.Sprintf("Failed to parse workspaces store at %s: %s", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// FileStore reads and writes projects.json. All access within the process
// is serialized; the last successfully loaded document is cached until
// Invalidate is called or the store writes a new one.
type FileStore struct {
	paths config.Paths
	log   *logging.Logger
	now   func() time.Time

	mu    sync.Mutex
	cache *domain.Document
	// digest of the bytes this process last read from or wrote to disk.
	known    [sha256.Size]byte
	hasKnown bool
}

// NewFileStore creates a store rooted at paths.Store.
func NewFileStore(paths config.Paths, log *logging.Logger) *FileStore {
	return &FileStore{
		paths: paths,
		log:   log.Sub("store"),
		now:   time.Now,
	}
}

// Path returns the location of projects.json.
func (s *FileStore) Path() string { return s.paths.Store }

// Paths returns the layout the store resolves agent directories against.
func (s *FileStore) Paths() config.Paths { return s.paths }

// WorktreeDir is the WorktreeFunc backed by the store's layout.
func (s *FileStore) WorktreeDir(projectID, agentID string) string {
	return s.paths.AgentWorkspaceDir(projectID, agentID)
}

// Now returns the current time in Unix milliseconds.
func (s *FileStore) Now() int64 { return s.now().UnixMilli() }

// Normalize applies Normalize with the store's worktree layout.
func (s *FileStore) Normalize(doc domain.Document) domain.Document {
	return Normalize(doc, s.WorktreeDir)
}

// Load returns the current document, creating or migrating the file as needed.
func (s *FileStore) Load() (domain.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked()
}

// Save replaces the document on disk.
func (s *FileStore) Save(doc domain.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked(doc)
}

// Update loads the document, applies fn and saves the result atomically with
// respect to other callers in this process. If fn returns an error nothing
// is written.
func (s *FileStore) Update(fn func(doc domain.Document) (domain.Document, error)) (domain.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.loadLocked()
	if err != nil {
		return domain.Document{}, err
	}
	next, err := fn(doc)
	if err != nil {
		return domain.Document{}, err
	}
	if err := s.saveLocked(next); err != nil {
		return domain.Document{}, err
	}
	return next.Clone(), nil
}

// ChangedOnDisk reports whether projects.json differs from what this process
// last read or wrote. An unreadable file counts as changed.
func (s *FileStore) ChangedOnDisk() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.paths.Store)
	if err != nil {
		return true
	}
	return !s.hasKnown || sha256.Sum256(data) != s.known
}

// Invalidate drops the cached document so the next Load rereads the file.
func (s *FileStore) Invalidate() {
	s.mu.Lock()
	s.cache = nil
	s.mu.Unlock()
}

func (s *FileStore) loadLocked() (domain.Document, error) {
	if s.cache != nil {
		return s.cache.Clone(), nil
	}
	if err := os.MkdirAll(filepath.Dir(s.paths.Store), 0o700); err != nil {
		return domain.Document{}, fmt.Errorf("creating store dir: %w", err)
	}

	data, err := os.ReadFile(s.paths.Store)
	if errors.Is(err, os.ErrNotExist) {
		seed := DefaultDocument()
		if err := s.saveLocked(seed); err != nil {
			return domain.Document{}, err
		}
		s.log.Info().Str("path", s.paths.Store).Msg("seeded workspaces store")
		return seed.Clone(), nil
	}
	if err != nil {
		return domain.Document{}, fmt.Errorf("reading workspaces store: %w", err)
	}

	doc, err := decodeDocument(data)
	if err != nil {
		return domain.Document{}, &ParseError{Path: s.paths.Store, Err: err}
	}
	if doc.Version > domain.StoreVersion {
		return domain.Document{}, &ParseError{
			Path: s.paths.Store,
			Err:  fmt.Errorf("version %d is newer than supported version %d", doc.Version, domain.StoreVersion),
		}
	}

	if doc.Version != domain.StoreVersion {
		migrated, applied := migrate(doc, s.WorktreeDir)
		for _, name := range applied {
			s.log.Info().Str("migration", name).Msg("migrated workspaces store")
		}
		if err := s.saveLocked(migrated); err != nil {
			return domain.Document{}, err
		}
		return migrated.Clone(), nil
	}

	s.known, s.hasKnown = sha256.Sum256(data), true
	s.cache = &doc
	return doc.Clone(), nil
}

func (s *FileStore) saveLocked(doc domain.Document) error {
	dir := filepath.Dir(s.paths.Store)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("creating store dir: %w", err)
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding workspaces store: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".projects-*.json")
	if err != nil {
		return fmt.Errorf("creating temp store file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing workspaces store: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("writing workspaces store: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.paths.Store); err != nil {
		return fmt.Errorf("replacing workspaces store: %w", err)
	}

	s.known, s.hasKnown = sha256.Sum256(data), true
	saved := doc.Clone()
	s.cache = &saved
	return nil
}

// decodeDocument parses projects.json, requiring a projects array whose
// entries each carry a tiles array.
func decodeDocument(data []byte) (domain.Document, error) {
	var shape struct {
		Projects json.RawMessage `json:"projects"`
	}
	if err := json.Unmarshal(data, &shape); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return domain.Document{}, ErrInvalidDocument
		}
		return domain.Document{}, err
	}
	if !isJSONArray(shape.Projects) {
		return domain.Document{}, ErrInvalidDocument
	}
	var projects []struct {
		Tiles json.RawMessage `json:"tiles"`
	}
	if err := json.Unmarshal(shape.Projects, &projects); err != nil {
		return domain.Document{}, ErrInvalidDocument
	}
	for _, p := range projects {
		if !isJSONArray(p.Tiles) {
			return domain.Document{}, ErrInvalidDocument
		}
	}

	var doc domain.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return domain.Document{}, err
	}
	return doc, nil
}

func isJSONArray(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == '['
}
