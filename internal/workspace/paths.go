package workspace

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/soyeahso/agentcanvas/internal/config"
	"github.com/soyeahso/agentcanvas/internal/domain"
)

// ResolveProjectPath returns root/slug, or the first free root/slug-N when
// that folder is taken.
func ResolveProjectPath(root, slug string) (string, Warnings) {
	var warnings Warnings
	base := filepath.Join(root, slug)
	if !exists(base) {
		return base, warnings
	}
	candidate := base
	for suffix := 2; exists(candidate); suffix++ {
		candidate = filepath.Join(root, fmt.Sprintf("%s-%d", slug, suffix))
	}
	warnings.Addf("Workspace folder already exists. Created %s instead.", candidate)
	return candidate, warnings
}

// OpenTarget is an existing directory validated for registration.
type OpenTarget struct {
	Path string
	Name string
}

// ResolveOpenPath validates a user-supplied directory for opening as a
// workspace. The returned path has "~" expanded and symlinks resolved.
func ResolveOpenPath(input string) (OpenTarget, error) {
	raw := strings.TrimSpace(input)
	if raw == "" {
		return OpenTarget{}, domain.Errorf(domain.ErrInvalid, "Workspace path is required.")
	}
	expanded, err := config.ExpandHome(raw)
	if err != nil {
		return OpenTarget{}, err
	}
	if !filepath.IsAbs(expanded) {
		return OpenTarget{}, domain.Errorf(domain.ErrInvalid, "Workspace path must be an absolute path.")
	}

	info, err := os.Stat(expanded)
	if errors.Is(err, os.ErrNotExist) {
		return OpenTarget{}, domain.Errorf(domain.ErrNotFound, "Workspace path does not exist: %s", expanded)
	}
	if err != nil {
		return OpenTarget{}, err
	}
	if !info.IsDir() {
		return OpenTarget{}, domain.Errorf(domain.ErrInvalid, "Workspace path is not a directory: %s", expanded)
	}

	resolved, err := filepath.EvalSymlinks(expanded)
	if err != nil {
		return OpenTarget{}, err
	}
	name := filepath.Base(resolved)
	if name == "" || name == string(filepath.Separator) || name == "." {
		return OpenTarget{}, domain.Errorf(domain.ErrInvalid, "Workspace path must point to a directory with a name.")
	}
	return OpenTarget{Path: resolved, Name: name}, nil
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func ensureDir(dir string) error {
	info, err := os.Stat(dir)
	if err == nil {
		if !info.IsDir() {
			return fmt.Errorf("%s exists and is not a directory.", dir)
		}
		return nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return os.MkdirAll(dir, 0o755)
}
