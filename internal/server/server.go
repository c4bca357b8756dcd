// Package server exposes the workspace and tile store over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/soyeahso/agentcanvas/internal/botconfig"
	"github.com/soyeahso/agentcanvas/internal/config"
	"github.com/soyeahso/agentcanvas/internal/discord"
	"github.com/soyeahso/agentcanvas/internal/gateway"
	"github.com/soyeahso/agentcanvas/internal/hooks"
	"github.com/soyeahso/agentcanvas/internal/logging"
	"github.com/soyeahso/agentcanvas/internal/runlog"
	"github.com/soyeahso/agentcanvas/internal/store"
	"github.com/soyeahso/agentcanvas/internal/workspace"
)

// ChatGateway is the part of the gateway client the API uses.
type ChatGateway interface {
	ChatSend(ctx context.Context, params gateway.ChatSendParams) (gateway.ChatSendResult, error)
	ChatHistory(ctx context.Context, sessionKey string, limit int) (gateway.ChatHistoryResult, error)
	SessionsPatch(ctx context.Context, params gateway.SessionsPatchParams) error
	Subscribe(fn func(gateway.Event)) func()
	// Done is closed when the connection drops.
	Done() <-chan struct{}
}

// GatewayDialer returns a live gateway connection.
type GatewayDialer func(ctx context.Context) (ChatGateway, error)

// Options wires a Server. Nil collaborators get production defaults.
type Options struct {
	Config  config.Config
	Store   *store.FileStore
	Hooks   *hooks.Manager
	Log     *logging.Logger
	Git     workspace.GitRunner
	Gateway GatewayDialer
	Discord *discord.Creator
	Runs    *runlog.DB // optional; sends are not recorded when nil

	// OpenAgentConfig loads moltbot.json. Defaults to botconfig.Open with
	// gateway.configPath and the state dir.
	OpenAgentConfig func() (*botconfig.File, error)
}

// Server is the agent canvas HTTP API.
type Server struct {
	cfg             config.Config
	paths           config.Paths
	store           *store.FileStore
	hooks           *hooks.Manager
	log             *logging.Logger
	git             workspace.GitRunner
	dialGateway     GatewayDialer
	connector       *gateway.Connector
	discord         *discord.Creator
	runs            *runlog.DB
	openAgentConfig func() (*botconfig.File, error)

	// agentConfigMu serializes read-modify-write cycles on moltbot.json.
	agentConfigMu sync.Mutex

	httpServer *http.Server
	startedAt  time.Time
}

// New creates a Server.
func New(opts Options) *Server {
	s := &Server{
		cfg:             opts.Config,
		paths:           opts.Store.Paths(),
		store:           opts.Store,
		hooks:           opts.Hooks,
		log:             opts.Log.Sub("server"),
		git:             opts.Git,
		dialGateway:     opts.Gateway,
		discord:         opts.Discord,
		runs:            opts.Runs,
		openAgentConfig: opts.OpenAgentConfig,
	}
	if s.hooks == nil {
		s.hooks = hooks.NewManager(opts.Log)
	}
	if s.git == nil {
		s.git = workspace.RunGit
	}
	if s.openAgentConfig == nil {
		s.openAgentConfig = func() (*botconfig.File, error) {
			return botconfig.Open(s.cfg.Gateway.ConfigPath, s.paths.State)
		}
	}
	if s.dialGateway == nil {
		s.connector = gateway.NewConnector(s.GatewayTarget, gateway.DialOptions{
			ConnectTimeout: time.Duration(s.cfg.Gateway.ConnectTimeoutMs) * time.Millisecond,
			CallTimeout:    time.Duration(s.cfg.Gateway.CallTimeoutMs) * time.Millisecond,
			Log:            opts.Log.Sub("gateway"),
		})
		s.connector.Subscribe(s.trackRun)
		s.dialGateway = func(ctx context.Context) (ChatGateway, error) {
			c, err := s.connector.Client(ctx)
			if err != nil {
				return nil, err
			}
			return c, nil
		}
	}
	if s.discord == nil {
		s.discord = &discord.Creator{
			Token:          s.cfg.Discord.Token,
			DefaultGuildID: s.cfg.Discord.GuildID,
			CategoryID:     s.cfg.Discord.CategoryID,
			NewSession:     discord.NewSession,
			OpenConfig:     s.openAgentConfig,
			Log:            opts.Log.Sub("discord"),
		}
	}
	if s.discord.ConfigLock == nil {
		s.discord.ConfigLock = &s.agentConfigMu
	}
	return s
}

// GatewayTarget resolves the gateway URL and token. Server config
// overrides what moltbot.json advertises.
func (s *Server) GatewayTarget() (gateway.Target, error) {
	info, err := s.gatewayInfo()
	if err != nil {
		return gateway.Target{}, err
	}
	return gateway.Target{URL: info.URL, Token: info.Token}, nil
}

func (s *Server) gatewayInfo() (botconfig.GatewayInfo, error) {
	f, err := s.openAgentConfig()
	if err != nil {
		if errors.Is(err, botconfig.ErrMissing) && s.cfg.Gateway.URL != "" {
			return botconfig.GatewayInfo{URL: s.cfg.Gateway.URL, Token: s.cfg.Gateway.Token}, nil
		}
		return botconfig.GatewayInfo{}, err
	}
	info := f.Gateway()
	if s.cfg.Gateway.URL != "" {
		info.URL = s.cfg.Gateway.URL
	}
	if s.cfg.Gateway.Token != "" {
		info.Token = s.cfg.Gateway.Token
	}
	return info, nil
}

func resolveBindAddr(cfg config.ServerConfig) string {
	switch cfg.Bind {
	case "lan":
		return fmt.Sprintf("0.0.0.0:%d", cfg.Port)
	case "custom":
		host := cfg.CustomBindHost
		if host == "" {
			host = "127.0.0.1"
		}
		return net.JoinHostPort(host, fmt.Sprint(cfg.Port))
	default:
		return fmt.Sprintf("127.0.0.1:%d", cfg.Port)
	}
}

// Start begins listening for HTTP requests.
// It blocks until the context is cancelled or an error occurs.
func (s *Server) Start(ctx context.Context) error {
	addr := resolveBindAddr(s.cfg.Server)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve handles requests on ln until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.httpServer = &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  120 * time.Second,
		BaseContext:  func(net.Listener) context.Context { return ctx },
	}
	s.startedAt = time.Now()

	if s.cfg.Server.Bind != "" && s.cfg.Server.Bind != "loopback" && s.cfg.Server.Auth.Token == "" {
		s.log.Warn().Msg("API is reachable beyond loopback without an auth token")
	}
	s.log.Info().
		Str("addr", ln.Addr().String()).
		Str("store", s.store.Path()).
		Msg("agent canvas server ready")
	s.hooks.Emit(ctx, hooks.EventServerStart, map[string]any{"addr": ln.Addr().String()})

	go func() {
		<-ctx.Done()
		s.log.Info().Msg("shutting down server")
		s.hooks.Emit(context.Background(), hooks.EventServerStop, nil)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.httpServer.Shutdown(shutdownCtx)
		if s.connector != nil {
			s.connector.Close()
		}
	}()

	if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	s.hooks.Wait()
	return nil
}
