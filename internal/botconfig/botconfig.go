// Package botconfig reads and edits the agent runtime's moltbot.json
// (formerly clawdbot.json): the agent list, heartbeat settings, channel
// bindings and the gateway address.
package botconfig

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/jsonc"

	"github.com/soyeahso/agentcanvas/internal/config"
)

const (
	configFileName       = "moltbot.json"
	legacyConfigFileName = "clawdbot.json"
)

var (
	explicitPathEnvVars = []string{"OPENCLAW_CONFIG_PATH", "MOLTBOT_CONFIG_PATH", "CLAWDBOT_CONFIG_PATH"}
	stateDirEnvVars     = []string{"OPENCLAW_STATE_DIR", "MOLTBOT_STATE_DIR", "CLAWDBOT_STATE_DIR"}
)

// ErrMissing is returned by Load when the config file does not exist.
var ErrMissing = errors.New("agent config missing")

// MissingError reports the config path that was expected to exist.
type MissingError struct {
	Path string
}

func (e *MissingError) Error() string { return fmt.Sprintf("Missing config at %s.", e.Path) }

func (e *MissingError) Unwrap() error { return ErrMissing }

// File is a loaded agent config. Data keeps every key, including ones this
// package does not understand, so saving round-trips them.
type File struct {
	Path string
	Data map[string]any
}

// CandidatePaths lists the locations probed for an existing config, in order.
func CandidatePaths() []string {
	var out []string
	seen := map[string]bool{}
	add := func(p string) {
		if p != "" && !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}

	for _, name := range stateDirEnvVars {
		if v := strings.TrimSpace(os.Getenv(name)); v != "" {
			dir, err := config.ExpandHome(v)
			if err != nil {
				continue
			}
			add(filepath.Join(dir, configFileName))
			add(filepath.Join(dir, legacyConfigFileName))
		}
	}
	if home, err := os.UserHomeDir(); err == nil {
		add(filepath.Join(home, ".moltbot", configFileName))
		add(filepath.Join(home, ".clawdbot", configFileName))
		add(filepath.Join(home, ".clawdbot", legacyConfigFileName))
	}
	return out
}

// ResolvePath picks the config location: an explicit path, then the
// *_CONFIG_PATH variables, then the first existing candidate, falling back to
// moltbot.json inside stateDir.
func ResolvePath(explicit, stateDir string) (string, error) {
	if explicit = strings.TrimSpace(explicit); explicit != "" {
		return config.ExpandHome(explicit)
	}
	for _, name := range explicitPathEnvVars {
		if v := strings.TrimSpace(os.Getenv(name)); v != "" {
			return config.ExpandHome(v)
		}
	}
	for _, candidate := range CandidatePaths() {
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, nil
		}
	}
	return filepath.Join(stateDir, configFileName), nil
}

// Load reads a config file. Comments and trailing commas are accepted.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, &MissingError{Path: path}
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	raw := map[string]any{}
	if len(strings.TrimSpace(string(data))) > 0 {
		if err := json.Unmarshal(jsonc.ToJSON(data), &raw); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
	}
	if raw == nil {
		raw = map[string]any{}
	}
	return &File{Path: path, Data: raw}, nil
}

// Open resolves the config location and loads it.
func Open(explicit, stateDir string) (*File, error) {
	path, err := ResolvePath(explicit, stateDir)
	if err != nil {
		return nil, err
	}
	return Load(path)
}

// Save writes the config back as indented JSON.
func (f *File) Save() error {
	data, err := json.MarshalIndent(f.Data, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding %s: %w", f.Path, err)
	}
	if err := os.MkdirAll(filepath.Dir(f.Path), 0o700); err != nil {
		return err
	}
	return os.WriteFile(f.Path, append(data, '\n'), 0o600)
}

func asMap(v any) (map[string]any, bool) {
	m, ok := v.(map[string]any)
	return m, ok
}

func stringField(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}
