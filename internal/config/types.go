package config

// Config is the root configuration for the agent canvas server.
type Config struct {
	Server     ServerConfig     `yaml:"server,omitempty"`
	Gateway    GatewayConfig    `yaml:"gateway,omitempty"`
	Workspaces WorkspacesConfig `yaml:"workspaces,omitempty"`
	Discord    DiscordConfig    `yaml:"discord,omitempty"`
	Logging    LoggingConfig    `yaml:"logging,omitempty"`
	Hooks      HooksConfig      `yaml:"hooks,omitempty"`
}

// ServerConfig controls the HTTP API listener.
type ServerConfig struct {
	Port           int        `yaml:"port,omitempty"`
	Bind           string     `yaml:"bind,omitempty"` // "loopback" | "lan" | "custom"
	CustomBindHost string     `yaml:"customBindHost,omitempty"`
	AllowedOrigins []string   `yaml:"allowedOrigins,omitempty"`
	Auth           ServerAuth `yaml:"auth,omitempty"`
}

// ServerAuth protects /api routes with a bearer token when Token is set.
type ServerAuth struct {
	Token string `yaml:"token,omitempty"`
}

// GatewayConfig controls how the server reaches the agent gateway.
// URL and Token override what the agent config file advertises.
type GatewayConfig struct {
	URL              string `yaml:"url,omitempty"`
	Token            string `yaml:"token,omitempty"`
	ConfigPath       string `yaml:"configPath,omitempty"` // explicit moltbot.json location
	ConnectTimeoutMs int    `yaml:"connectTimeoutMs,omitempty"`
	CallTimeoutMs    int    `yaml:"callTimeoutMs,omitempty"`
}

// WorkspacesConfig controls where new workspaces and agents are created.
type WorkspacesConfig struct {
	Root           string `yaml:"root,omitempty"`           // parent dir of created repos; defaults to $HOME
	DefaultAgentID string `yaml:"defaultAgentId,omitempty"` // source of auth profiles for new agents
	Watch          *bool  `yaml:"watch,omitempty"`          // reload projects.json on external edits; defaults to true
}

// WatchEnabled reports whether the projects.json watcher should run.
func (w WorkspacesConfig) WatchEnabled() bool {
	return w.Watch == nil || *w.Watch
}

// DiscordConfig configures per-agent channel creation.
type DiscordConfig struct {
	Token      string `yaml:"token,omitempty"`
	GuildID    string `yaml:"guildId,omitempty"`
	CategoryID string `yaml:"categoryId,omitempty"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level        string `yaml:"level,omitempty"` // "silent" | "fatal" | "error" | "warn" | "info" | "debug" | "trace"
	File         string `yaml:"file,omitempty"`
	ConsoleStyle string `yaml:"consoleStyle,omitempty"` // "pretty" | "json"
}

// HooksConfig defines shell command hooks per lifecycle event.
type HooksConfig struct {
	WorkspaceCreated []HookEntry `yaml:"workspaceCreated,omitempty"`
	WorkspaceOpened  []HookEntry `yaml:"workspaceOpened,omitempty"`
	WorkspaceDeleted []HookEntry `yaml:"workspaceDeleted,omitempty"`
	TileCreated      []HookEntry `yaml:"tileCreated,omitempty"`
	TileRenamed      []HookEntry `yaml:"tileRenamed,omitempty"`
	TileDeleted      []HookEntry `yaml:"tileDeleted,omitempty"`
	ServerStart      []HookEntry `yaml:"serverStart,omitempty"`
	ServerStop       []HookEntry `yaml:"serverStop,omitempty"`
	StoreChanged     []HookEntry `yaml:"storeChanged,omitempty"`
}

// ByEvent keys the configured hooks by hook event name.
func (h HooksConfig) ByEvent() map[string][]HookEntry {
	return map[string][]HookEntry{
		"workspace_created": h.WorkspaceCreated,
		"workspace_opened":  h.WorkspaceOpened,
		"workspace_deleted": h.WorkspaceDeleted,
		"tile_created":      h.TileCreated,
		"tile_renamed":      h.TileRenamed,
		"tile_deleted":      h.TileDeleted,
		"server_start":      h.ServerStart,
		"server_stop":       h.ServerStop,
		"store_changed":     h.StoreChanged,
	}
}

// HookEntry defines a single hook action.
type HookEntry struct {
	Command string `yaml:"command"`
	Timeout int    `yaml:"timeout,omitempty"` // milliseconds
}
