package cli

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/soyeahso/agentcanvas/internal/domain"
	"github.com/soyeahso/agentcanvas/internal/gateway"
	"github.com/soyeahso/agentcanvas/internal/runlog"
	"github.com/soyeahso/agentcanvas/internal/workspace"
)

func newTileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tile",
		Short: "Manage agent tiles in a workspace",
	}

	cmd.AddCommand(newTileListCmd())
	cmd.AddCommand(newTileCreateCmd())
	cmd.AddCommand(newTileRenameCmd())
	cmd.AddCommand(newTileDeleteCmd())
	cmd.AddCommand(newTileFilesCmd())
	cmd.AddCommand(newTileSendCmd())
	cmd.AddCommand(newTileHistoryCmd())
	cmd.AddCommand(newTileRunsCmd())
	return cmd
}

func newTileListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list <workspace>",
		Short: "List the tiles of a workspace",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := newAPIClient().resolveProject(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if len(p.Tiles) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No tiles.")
				return nil
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tAGENT\tROLE\tMODEL")
			for _, t := range p.Tiles {
				model := "-"
				if t.Model != nil {
					model = *t.Model
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", t.ID, t.Name, t.AgentID, t.Role, model)
			}
			return tw.Flush()
		},
	}
}

func newTileCreateCmd() *cobra.Command {
	var role string

	cmd := &cobra.Command{
		Use:   "create <workspace> <name>",
		Short: "Create an agent tile",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := newAPIClient()
			p, err := c.resolveProject(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			var res struct {
				Tile     domain.Tile `json:"tile"`
				Warnings []string    `json:"warnings"`
			}
			body := map[string]string{"name": args[1], "role": role}
			if err := c.do(cmd.Context(), http.MethodPost, projectPath(p.ID)+"/tiles", body, &res); err != nil {
				return err
			}
			printWarnings(cmd.ErrOrStderr(), res.Warnings)
			fmt.Fprintf(cmd.OutOrStdout(), "Created tile %s (agent %s)\n", res.Tile.ID, res.Tile.AgentID)
			return nil
		},
	}

	cmd.Flags().StringVar(&role, "role", string(domain.RoleCoding), "tile role (coding, research, marketing)")
	return cmd
}

func newTileRenameCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rename <workspace> <tile> <new-name>",
		Short: "Rename a tile and move its agent",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := newAPIClient()
			p, t, err := c.resolveTile(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			var res storeResponse
			if err := c.do(cmd.Context(), http.MethodPatch, tilePath(p.ID, t.ID), map[string]string{"name": args[2]}, &res); err != nil {
				return err
			}
			printWarnings(cmd.ErrOrStderr(), res.Warnings)
			agentID := t.AgentID
			if np, ok := res.Store.FindProject(p.ID); ok {
				if nt, ok := np.FindTile(t.ID); ok {
					agentID = nt.AgentID
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Renamed tile %s to %s (agent %s)\n", t.ID, args[2], agentID)
			return nil
		},
	}
}

func newTileDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <workspace> <tile>",
		Short: "Delete a tile and its agent files",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := newAPIClient()
			p, t, err := c.resolveTile(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			var res storeResponse
			if err := c.do(cmd.Context(), http.MethodDelete, tilePath(p.ID, t.ID), nil, &res); err != nil {
				return err
			}
			printWarnings(cmd.ErrOrStderr(), res.Warnings)
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted tile %s\n", t.Name)
			return nil
		},
	}
}

func newTileFilesCmd() *cobra.Command {
	var (
		show  string
		write string
		from  string
	)

	cmd := &cobra.Command{
		Use:   "files <workspace> <tile>",
		Short: "List, print or replace an agent's workspace files",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := newAPIClient()
			p, t, err := c.resolveTile(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			path := tilePath(p.ID, t.ID) + "/workspace-files"
			var res struct {
				Files []workspace.File `json:"files"`
			}

			if write != "" {
				content, err := readSource(cmd.InOrStdin(), from)
				if err != nil {
					return err
				}
				body := map[string]any{"files": []map[string]string{{"name": write, "content": content}}}
				if err := c.do(cmd.Context(), http.MethodPut, path, body, &res); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s (%d bytes)\n", write, len(content))
				return nil
			}

			if err := c.do(cmd.Context(), http.MethodGet, path, nil, &res); err != nil {
				return err
			}
			if show != "" {
				for _, f := range res.Files {
					if f.Name == show {
						fmt.Fprint(cmd.OutOrStdout(), f.Content)
						return nil
					}
				}
				return fmt.Errorf("unknown workspace file: %s", show)
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "FILE\tEXISTS\tBYTES")
			for _, f := range res.Files {
				fmt.Fprintf(tw, "%s\t%t\t%d\n", f.Name, f.Exists, len(f.Content))
			}
			return tw.Flush()
		},
	}

	cmd.Flags().StringVar(&show, "show", "", "print the content of one file")
	cmd.Flags().StringVar(&write, "write", "", "replace the content of one file")
	cmd.Flags().StringVar(&from, "from", "-", "source for --write (a path, or - for stdin)")
	return cmd
}

func readSource(stdin io.Reader, from string) (string, error) {
	if from == "" || from == "-" {
		data, err := io.ReadAll(stdin)
		return string(data), err
	}
	data, err := os.ReadFile(from)
	return string(data), err
}

func newTileSendCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "send <workspace> <tile> <message...>",
		Short: "Send a message to a tile's agent",
		Args:  cobra.MinimumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := newAPIClient()
			p, t, err := c.resolveTile(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			var res struct {
				RunID string `json:"runId"`
			}
			body := map[string]string{"message": strings.Join(args[2:], " ")}
			if err := c.do(cmd.Context(), http.MethodPost, tilePath(p.ID, t.ID)+"/send", body, &res); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Sent to %s (run %s)\n", t.AgentID, res.RunID)
			return nil
		},
	}
}

func newTileHistoryCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history <workspace> <tile>",
		Short: "Print a tile's chat transcript",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := newAPIClient()
			p, t, err := c.resolveTile(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			path := tilePath(p.ID, t.ID) + "/history"
			if limit > 0 {
				path += "?limit=" + strconv.Itoa(limit)
			}
			var h gateway.History
			if err := c.do(cmd.Context(), http.MethodGet, path, nil, &h); err != nil {
				return err
			}
			for _, line := range h.Lines {
				fmt.Fprintln(cmd.OutOrStdout(), line)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "maximum number of messages to load")
	return cmd
}

const runMessageWidth = 60

func newTileRunsCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "runs <workspace> <tile>",
		Short: "List the messages sent to a tile's agent",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := newAPIClient()
			p, t, err := c.resolveTile(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			path := tilePath(p.ID, t.ID) + "/runs"
			if limit > 0 {
				path += "?limit=" + strconv.Itoa(limit)
			}
			var res struct {
				Runs []runlog.Run `json:"runs"`
			}
			if err := c.do(cmd.Context(), http.MethodGet, path, nil, &res); err != nil {
				return err
			}
			if len(res.Runs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No runs.")
				return nil
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "RUN\tSTATUS\tSENT\tMESSAGE")
			for _, run := range res.Runs {
				status := run.Status
				if status == "" {
					status = "-"
				}
				sent := time.UnixMilli(run.CreatedAt).Local().Format(time.DateTime)
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", run.RunID, status, sent, truncate(run.Message, runMessageWidth))
			}
			return tw.Flush()
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "maximum number of runs to list")
	return cmd
}

// truncate shortens s to n runes on a single line.
func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
