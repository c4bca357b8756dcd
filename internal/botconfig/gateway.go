package botconfig

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

const (
	DefaultGatewayHost = "127.0.0.1"
	DefaultGatewayPort = 18789
)

// GatewayInfo is what a client needs to reach the agent gateway.
type GatewayInfo struct {
	URL   string `json:"gatewayUrl"`
	Token string `json:"token"`
}

// Gateway derives the gateway WebSocket URL and auth token.
func (f *File) Gateway() GatewayInfo {
	gw, _ := asMap(f.Data["gateway"])
	host := strings.TrimSpace(stringField(gw, "host"))
	if host == "" {
		host = DefaultGatewayHost
	}
	port := DefaultGatewayPort
	switch v := gw["port"].(type) {
	case float64:
		if v > 0 {
			port = int(v)
		}
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && n > 0 {
			port = n
		}
	}
	auth, _ := asMap(gw["auth"])
	return GatewayInfo{
		URL:   fmt.Sprintf("ws://%s:%d", host, port),
		Token: stringField(auth, "token"),
	}
}

// DiscordToken returns channels.discord.token, if configured.
func (f *File) DiscordToken() string {
	channels, _ := asMap(f.Data["channels"])
	discord, _ := asMap(channels["discord"])
	return stringField(discord, "token")
}

// DiscordGuildIDs lists the guild ids configured under channels.discord.guilds.
func (f *File) DiscordGuildIDs() []string {
	channels, _ := asMap(f.Data["channels"])
	discord, _ := asMap(channels["discord"])
	guilds, _ := asMap(discord["guilds"])
	ids := make([]string, 0, len(guilds))
	for id := range guilds {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
