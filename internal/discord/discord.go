// Package discord creates a Discord text channel for an agent and routes
// it to the agent in the agent config.
package discord

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/bwmarrin/discordgo"

	"github.com/soyeahso/agentcanvas/internal/botconfig"
	"github.com/soyeahso/agentcanvas/internal/domain"
	"github.com/soyeahso/agentcanvas/internal/logging"
)

// ErrMissingToken is returned when no bot token is configured anywhere.
var ErrMissingToken = errors.New("Discord bot token is not configured.")

// ChannelAPI is the subset of *discordgo.Session used here.
type ChannelAPI interface {
	GuildChannelCreateComplex(guildID string, data discordgo.GuildChannelCreateData, options ...discordgo.RequestOption) (*discordgo.Channel, error)
}

// SessionFactory opens a Discord API session for a bot token.
type SessionFactory func(token string) (ChannelAPI, error)

// NewSession is the SessionFactory backed by discordgo.
func NewSession(token string) (ChannelAPI, error) {
	return discordgo.New("Bot " + token)
}

// Request describes the channel to create.
type Request struct {
	GuildID      string
	AgentID      string
	AgentName    string
	WorkspaceDir string
}

// Result is returned to API callers.
type Result struct {
	ChannelID   string   `json:"channelId"`
	ChannelName string   `json:"channelName"`
	GuildID     string   `json:"guildId"`
	Warnings    []string `json:"warnings"`
}

// ConfigOpener loads the agent config for binding updates.
type ConfigOpener func() (*botconfig.File, error)

// Creator creates agent channels.
type Creator struct {
	Token          string
	DefaultGuildID string
	CategoryID     string
	NewSession     SessionFactory
	OpenConfig     ConfigOpener

	// ConfigLock, when set, is held while the binding is written so other
	// writers of the agent config do not interleave with it.
	ConfigLock sync.Locker
	Log        *logging.Logger
}

// CreateChannelForAgent creates a text channel named after the agent and
// binds it to the agent id. Config failures after the channel exists are
// reported as warnings.
func (c *Creator) CreateChannelForAgent(ctx context.Context, req Request) (Result, error) {
	var warnings []string

	cfg, cfgErr := c.OpenConfig()
	if cfgErr != nil {
		warnings = append(warnings, fmt.Sprintf("Agent config not loaded: %s", cfgErr))
	}

	token := c.Token
	if token == "" && cfg != nil {
		token = cfg.DiscordToken()
	}
	if token == "" {
		return Result{}, ErrMissingToken
	}

	guildID := strings.TrimSpace(req.GuildID)
	if guildID == "" {
		guildID = c.DefaultGuildID
	}
	if guildID == "" && cfg != nil {
		if ids := cfg.DiscordGuildIDs(); len(ids) == 1 {
			guildID = ids[0]
		}
	}
	if guildID == "" {
		return Result{}, domain.Errorf(domain.ErrInvalid, "Discord guild id is required.")
	}

	name, err := domain.SlugifyProjectName(req.AgentName)
	if err != nil {
		name, err = domain.SlugifyProjectName(req.AgentID)
		if err != nil {
			return Result{}, domain.Errorf(domain.ErrInvalid, "Agent name produced an empty channel name.")
		}
	}

	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	session, err := c.NewSession(token)
	if err != nil {
		return Result{}, fmt.Errorf("opening discord session: %w", err)
	}
	data := discordgo.GuildChannelCreateData{
		Name:     name,
		Type:     discordgo.ChannelTypeGuildText,
		Topic:    fmt.Sprintf("Agent %s (%s). Workspace: %s", req.AgentName, req.AgentID, req.WorkspaceDir),
		ParentID: c.CategoryID,
	}
	channel, err := session.GuildChannelCreateComplex(guildID, data, discordgo.WithContext(ctx))
	if err != nil {
		return Result{}, fmt.Errorf("creating discord channel: %w", err)
	}

	c.Log.Info().Str("agentId", req.AgentID).Str("guildId", guildID).Str("channelId", channel.ID).Msg("discord channel created")

	if cfg != nil {
		if warning := c.bind(req.AgentID, guildID, channel.ID); warning != "" {
			warnings = append(warnings, warning)
		}
	}

	return Result{
		ChannelID:   channel.ID,
		ChannelName: channel.Name,
		GuildID:     guildID,
		Warnings:    append([]string{}, warnings...),
	}, nil
}

// bind routes channelID to agentID in a freshly loaded agent config, so edits
// made while the channel was being created are kept. It returns a warning on
// failure.
func (c *Creator) bind(agentID, guildID, channelID string) string {
	if c.ConfigLock != nil {
		c.ConfigLock.Lock()
		defer c.ConfigLock.Unlock()
	}
	cfg, err := c.OpenConfig()
	if err != nil {
		return fmt.Sprintf("Agent config not updated: %s", err)
	}
	if !cfg.BindDiscordChannel(agentID, guildID, channelID) {
		return ""
	}
	if err := cfg.Save(); err != nil {
		return fmt.Sprintf("Agent config not updated: %s", err)
	}
	return ""
}
