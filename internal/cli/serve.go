package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/soyeahso/agentcanvas/internal/config"
	"github.com/soyeahso/agentcanvas/internal/hooks"
	"github.com/soyeahso/agentcanvas/internal/runlog"
	"github.com/soyeahso/agentcanvas/internal/server"
	"github.com/soyeahso/agentcanvas/internal/store"
)

func newServeCmd() *cobra.Command {
	var (
		port    int
		bind    string
		noWatch bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the agent canvas HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if port != 0 {
				cfg.Server.Port = port
			}
			if bind != "" {
				cfg.Server.Bind = bind
			}

			issues := config.Validate(&cfg)
			if len(issues) > 0 {
				for _, issue := range issues {
					log.Error().Str("path", issue.Path).Msg(issue.Message)
				}
				return fmt.Errorf("config validation failed with %d issue(s)", len(issues))
			}
			if err := paths.EnsureDirs(); err != nil {
				return fmt.Errorf("creating canvas dirs: %w", err)
			}

			hookMgr := hooks.NewManager(log)
			if n := hooks.RegisterCommands(hookMgr, cfg.Hooks); n > 0 {
				log.Info().Int("count", n).Msg("command hooks registered")
			}

			runs, err := runlog.Open(paths.RunLog, log)
			if err != nil {
				return fmt.Errorf("opening run log: %w", err)
			}
			defer runs.Close()

			st := store.NewFileStore(paths, log)
			srv := server.New(server.Options{
				Config: cfg,
				Store:  st,
				Hooks:  hookMgr,
				Log:    log,
				Runs:   runs,
			})

			// Block until SIGINT/SIGTERM
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			var watcher *store.Watcher
			if cfg.Workspaces.WatchEnabled() && !noWatch {
				if watcher, err = store.NewWatcher(st, log); err != nil {
					return fmt.Errorf("starting store watcher: %w", err)
				}
				watcher.OnChange(func() {
					hookMgr.EmitAsync(ctx, hooks.EventStoreChanged, map[string]any{"path": st.Path()})
				})
			}

			g, ctx := errgroup.WithContext(ctx)
			g.Go(func() error { return srv.Start(ctx) })
			if watcher != nil {
				g.Go(func() error { return watcher.Run(ctx) })
			}
			return g.Wait()
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "override server port")
	cmd.Flags().StringVar(&bind, "bind", "", "override bind mode (loopback, lan, custom)")
	cmd.Flags().BoolVar(&noWatch, "no-watch", false, "do not reload projects.json on external edits")

	return cmd
}
