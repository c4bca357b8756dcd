package domain

import (
	"errors"
	"strings"
)

// MaxAgentIDLength caps generated agent ids.
const MaxAgentIDLength = 64

var (
	ErrEmptySlug    = errors.New("Workspace name produced an empty folder name.")
	ErrEmptyAgentID = errors.New("Agent name produced an empty id.")
)

// slugify lowercases s and collapses every run of characters outside
// [a-z0-9] into a single dash, trimming dashes at both ends.
func slugify(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimRight(b.String(), "-")
}

// SlugifyProjectName converts a workspace name into a folder name.
func SlugifyProjectName(name string) (string, error) {
	slug := slugify(name)
	if slug == "" {
		return "", ErrEmptySlug
	}
	return slug, nil
}

// GenerateAgentID derives a stable agent id from the workspace folder name
// and the tile name, e.g. ("my-app", "Code Reviewer") -> "my-app-code-reviewer".
func GenerateAgentID(projectSlug, tileName string) (string, error) {
	tile := slugify(tileName)
	if tile == "" {
		return "", ErrEmptyAgentID
	}
	id := tile
	if project := slugify(projectSlug); project != "" {
		id = project + "-" + tile
	}
	if len(id) > MaxAgentIDLength {
		id = strings.TrimRight(id[:MaxAgentIDLength], "-")
	}
	return id, nil
}
