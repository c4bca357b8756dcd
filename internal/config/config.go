package config

import "fmt"

// ConfigError represents a configuration error.
type ConfigError struct {
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s", e.Message)
}

const (
	DefaultPort             = 3000
	DefaultAgentID          = "main"
	DefaultConnectTimeoutMs = 10_000
	DefaultCallTimeoutMs    = 30_000
)

// Defaults returns a Config with sensible defaults applied.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Port: DefaultPort,
			Bind: "loopback",
		},
		Gateway: GatewayConfig{
			ConnectTimeoutMs: DefaultConnectTimeoutMs,
			CallTimeoutMs:    DefaultCallTimeoutMs,
		},
		Workspaces: WorkspacesConfig{
			DefaultAgentID: DefaultAgentID,
		},
		Logging: LoggingConfig{
			Level:        "info",
			ConsoleStyle: "pretty",
		},
	}
}
