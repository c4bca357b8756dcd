package workspace

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/yuin/goldmark"

	"github.com/soyeahso/agentcanvas/internal/domain"
)

// File is one of the editable agent documents.
type File struct {
	Name    string `json:"name"`
	Content string `json:"content"`
	Exists  bool   `json:"exists"`
	HTML    string `json:"html,omitempty"`
}

// FileUpdate replaces the content of one agent document.
type FileUpdate struct {
	Name    string
	Content string
}

// ErrWorkspaceMissing is returned when an agent has no workspace directory.
var ErrWorkspaceMissing = domain.Errorf(domain.ErrNotFound, "Agent workspace not found.")

// CheckDir confirms the agent workspace directory exists.
func CheckDir(workspaceDir string) error {
	if !exists(workspaceDir) {
		return ErrWorkspaceMissing
	}
	return nil
}

// ReadFile returns one document, reporting Exists=false when absent.
func ReadFile(workspaceDir, name string) (File, error) {
	path := filepath.Join(workspaceDir, name)
	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return File{Name: name}, nil
	}
	if err != nil {
		return File{}, err
	}
	if !info.Mode().IsRegular() {
		return File{}, fmt.Errorf("%s exists but is not a file.", name)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return File{}, err
	}
	return File{Name: name, Content: string(data), Exists: true}, nil
}

// ReadFiles returns every workspace document in canonical order.
func ReadFiles(workspaceDir string) ([]File, error) {
	files := make([]File, 0, len(domain.WorkspaceFileNames))
	for _, name := range domain.WorkspaceFileNames {
		f, err := ReadFile(workspaceDir, name)
		if err != nil {
			return nil, err
		}
		files = append(files, f)
	}
	return files, nil
}

// WriteFiles validates every update before writing any of them, then
// returns the full document set as it now exists on disk.
func WriteFiles(workspaceDir string, updates []FileUpdate) ([]File, error) {
	for _, u := range updates {
		if !domain.IsWorkspaceFileName(u.Name) {
			return nil, domain.Errorf(domain.ErrInvalid, "Invalid file name: %s", u.Name)
		}
	}
	for _, u := range updates {
		if err := os.WriteFile(filepath.Join(workspaceDir, u.Name), []byte(u.Content), 0o644); err != nil {
			return nil, err
		}
	}
	return ReadFiles(workspaceDir)
}

// RenderHTML fills in the HTML field of each existing document.
func RenderHTML(files []File) ([]File, error) {
	md := goldmark.New()
	out := make([]File, len(files))
	for i, f := range files {
		out[i] = f
		if !f.Exists || f.Content == "" {
			continue
		}
		var buf bytes.Buffer
		if err := md.Convert([]byte(f.Content), &buf); err != nil {
			return nil, fmt.Errorf("rendering %s: %w", f.Name, err)
		}
		out[i].HTML = buf.String()
	}
	return out, nil
}
