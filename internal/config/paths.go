package config

import (
	"os"
	"path/filepath"
	"strings"
)

const (
	defaultStateDir = ".clawdbot"
	canvasDirName   = "agent-canvas"
)

// stateDirEnvVars are consulted in order; the first non-empty one wins.
var stateDirEnvVars = []string{"OPENCLAW_STATE_DIR", "MOLTBOT_STATE_DIR", "CLAWDBOT_STATE_DIR"}

// Paths holds resolved filesystem paths for agent canvas data.
type Paths struct {
	State     string // ~/.clawdbot
	Agents    string // ~/.clawdbot/agents
	Canvas    string // ~/.clawdbot/agent-canvas
	Store     string // ~/.clawdbot/agent-canvas/projects.json
	Worktrees string // ~/.clawdbot/agent-canvas/worktrees
	Config    string // ~/.clawdbot/agent-canvas/config.yaml
	Logs      string // ~/.clawdbot/agent-canvas/logs
	RunLog    string // ~/.clawdbot/agent-canvas/runs.db
}

// ResolveStateDir returns the agent runtime state directory.
func ResolveStateDir() (string, error) {
	for _, name := range stateDirEnvVars {
		if v := strings.TrimSpace(os.Getenv(name)); v != "" {
			return ExpandHome(v)
		}
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, defaultStateDir), nil
}

// ResolvePaths computes all standard paths from the state directory.
// AGENTCANVAS_CONFIG overrides the server config location.
func ResolvePaths() (Paths, error) {
	state, err := ResolveStateDir()
	if err != nil {
		return Paths{}, err
	}
	p := PathsFor(state)
	if v := os.Getenv("AGENTCANVAS_CONFIG"); v != "" {
		cfgPath, err := ExpandHome(v)
		if err != nil {
			return Paths{}, err
		}
		p.Config = cfgPath
	}
	return p, nil
}

// PathsFor derives the standard layout below an explicit state directory.
func PathsFor(state string) Paths {
	canvas := filepath.Join(state, canvasDirName)
	return Paths{
		State:     state,
		Agents:    filepath.Join(state, "agents"),
		Canvas:    canvas,
		Store:     filepath.Join(canvas, "projects.json"),
		Worktrees: filepath.Join(canvas, "worktrees"),
		Config:    filepath.Join(canvas, "config.yaml"),
		Logs:      filepath.Join(canvas, "logs"),
		RunLog:    filepath.Join(canvas, "runs.db"),
	}
}

// EnsureDirs creates the canvas directories if they don't exist.
func (p Paths) EnsureDirs() error {
	for _, d := range []string{p.Canvas, p.Worktrees, p.Logs} {
		if err := os.MkdirAll(d, 0o700); err != nil {
			return err
		}
	}
	return nil
}

// ProjectAgentsRoot is the directory holding every agent workspace of a project.
func (p Paths) ProjectAgentsRoot(projectID string) string {
	return filepath.Join(p.Worktrees, projectID)
}

// AgentWorkspaceDir is the per-agent working directory inside the canvas.
func (p Paths) AgentWorkspaceDir(projectID, agentID string) string {
	return filepath.Join(p.ProjectAgentsRoot(projectID), agentID)
}

// AgentStateDir is the agent runtime's private state directory.
func (p Paths) AgentStateDir(agentID string) string {
	return filepath.Join(p.Agents, agentID)
}

// AuthProfilesPath is where the agent runtime keeps provider credentials.
func (p Paths) AuthProfilesPath(agentID string) string {
	return filepath.Join(p.AgentStateDir(agentID), "agent", "auth-profiles.json")
}

// ExpandHome replaces a leading "~" with the user's home directory.
func ExpandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	if path == "~" {
		return home, nil
	}
	return filepath.Join(home, path[2:]), nil
}

// blockedKeys are keys that must never appear in config paths.
var blockedKeys = map[string]bool{
	"__proto__":   true,
	"prototype":   true,
	"constructor": true,
}

// ParseConfigPath splits a dot-separated config path into segments.
// Returns an error if any segment is blocked or empty.
func ParseConfigPath(raw string) ([]string, error) {
	if raw == "" {
		return nil, &ConfigError{Message: "empty config path"}
	}
	parts := strings.Split(raw, ".")
	for _, p := range parts {
		if p == "" {
			return nil, &ConfigError{Message: "config path contains empty segment"}
		}
		if blockedKeys[p] {
			return nil, &ConfigError{Message: "config path contains blocked key: " + p}
		}
	}
	return parts, nil
}

// GetValueAtPath traverses a nested map using the given path segments.
func GetValueAtPath(root map[string]any, path []string) (any, bool) {
	current := any(root)
	for _, key := range path {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = m[key]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

// GetMapAtPath is GetValueAtPath narrowed to nested objects.
func GetMapAtPath(root map[string]any, path []string) (map[string]any, bool) {
	v, ok := GetValueAtPath(root, path)
	if !ok {
		return nil, false
	}
	m, ok := v.(map[string]any)
	return m, ok
}

// SetValueAtPath sets a value in a nested map, creating intermediate maps as needed.
func SetValueAtPath(root map[string]any, path []string, value any) {
	current := root
	for _, key := range path[:len(path)-1] {
		next, ok := current[key]
		if !ok {
			next = map[string]any{}
			current[key] = next
		}
		m, ok := next.(map[string]any)
		if !ok {
			m = map[string]any{}
			current[key] = m
		}
		current = m
	}
	current[path[len(path)-1]] = value
}

// UnsetValueAtPath removes a value at the given path. Returns true if removed.
func UnsetValueAtPath(root map[string]any, path []string) bool {
	current := root
	for _, key := range path[:len(path)-1] {
		next, ok := current[key]
		if !ok {
			return false
		}
		m, ok := next.(map[string]any)
		if !ok {
			return false
		}
		current = m
	}
	last := path[len(path)-1]
	if _, ok := current[last]; !ok {
		return false
	}
	delete(current, last)
	return true
}
