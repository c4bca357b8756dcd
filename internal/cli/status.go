package cli

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/soyeahso/agentcanvas/internal/botconfig"
	"github.com/soyeahso/agentcanvas/internal/config"
	"github.com/soyeahso/agentcanvas/internal/store"
	"github.com/soyeahso/agentcanvas/internal/version"
)

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show paths, configuration and store summary",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "agentcanvas %s (commit %s)\n\n", version.Version, version.Commit)

			fmt.Fprintf(out, "State:   %s\n", paths.State)
			fmt.Fprintf(out, "Config:  %s\n", paths.Config)
			fmt.Fprintf(out, "Store:   %s\n", paths.Store)
			fmt.Fprintf(out, "Worktrees: %s\n", paths.Worktrees)
			fmt.Fprintf(out, "Run log: %s\n", paths.RunLog)
			fmt.Fprintln(out)

			fmt.Fprintf(out, "Server:  %s bind=%s auth=%t\n", localAddr(cfg.Server), cfg.Server.Bind, cfg.Server.Auth.Token != "")
			root, err := cfg.Workspaces.ResolveRoot()
			if err != nil {
				root = "error: " + err.Error()
			}
			fmt.Fprintf(out, "Root:    %s\n", root)

			doc, err := store.NewFileStore(paths, log).Load()
			if err != nil {
				fmt.Fprintf(out, "Store:   error loading: %v\n", err)
			} else {
				tiles := 0
				for _, p := range doc.Projects {
					tiles += len(p.Tiles)
				}
				fmt.Fprintf(out, "Store:   %d workspace(s), %d tile(s)\n", len(doc.Projects), tiles)
			}

			if f, err := botconfig.Open(cfg.Gateway.ConfigPath, paths.State); err != nil {
				fmt.Fprintf(out, "Agents:  %v\n", err)
			} else {
				fmt.Fprintf(out, "Agents:  %d configured in %s\n", len(f.AgentList()), f.Path)
			}
			if target, err := gatewayTarget(); err == nil {
				fmt.Fprintf(out, "Gateway: %s\n", target.URL)
			}

			printServerHealth(cmd.Context(), out)

			issues := config.Validate(&cfg)
			if len(issues) > 0 {
				fmt.Fprintf(out, "\nValidation issues (%d):\n", len(issues))
				for _, issue := range issues {
					fmt.Fprintf(out, "  - %s: %s\n", issue.Path, issue.Message)
				}
			}
			return nil
		},
	}

	return cmd
}

func printServerHealth(ctx context.Context, out io.Writer) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	c := newAPIClient()
	var health struct {
		Status  string `json:"status"`
		Version string `json:"version"`
		Uptime  string `json:"uptime"`
	}
	if err := c.do(ctx, http.MethodGet, "/health", nil, &health); err != nil {
		fmt.Fprintf(out, "API:     not reachable at %s\n", c.base)
		return
	}
	fmt.Fprintf(out, "API:     %s at %s (version %s, up %s)\n", health.Status, c.base, health.Version, health.Uptime)
}
