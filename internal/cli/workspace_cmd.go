package cli

import (
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/soyeahso/agentcanvas/internal/config"
	"github.com/soyeahso/agentcanvas/internal/domain"
)

type storeResponse struct {
	Store    domain.Document `json:"store"`
	Warnings []string        `json:"warnings"`
}

func newWorkspaceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "workspace",
		Aliases: []string{"ws"},
		Short:   "Manage workspaces",
	}

	cmd.AddCommand(newWorkspaceListCmd())
	cmd.AddCommand(newWorkspaceCreateCmd())
	cmd.AddCommand(newWorkspaceOpenCmd())
	cmd.AddCommand(newWorkspaceDeleteCmd())
	cmd.AddCommand(newWorkspaceActivateCmd())
	return cmd
}

func newWorkspaceListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List workspaces",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := newAPIClient().projects(cmd.Context())
			if err != nil {
				return err
			}
			if len(doc.Projects) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No workspaces.")
				return nil
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "\tID\tNAME\tTILES\tPATH")
			for _, p := range doc.Projects {
				active := ""
				if doc.ActiveProjectID != nil && *doc.ActiveProjectID == p.ID {
					active = "*"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n", active, p.ID, p.Name, len(p.Tiles), p.RepoPath)
			}
			return tw.Flush()
		},
	}
}

func newWorkspaceCreateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "create <name>",
		Short: "Create a workspace folder with a fresh git repository",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var res storeResponse
			if err := newAPIClient().do(cmd.Context(), http.MethodPost, "/api/projects", map[string]string{"name": args[0]}, &res); err != nil {
				return err
			}
			printWarnings(cmd.ErrOrStderr(), res.Warnings)
			if p, ok := activeProject(res.Store); ok {
				fmt.Fprintf(cmd.OutOrStdout(), "Created workspace %s (%s) at %s\n", p.Name, p.ID, p.RepoPath)
			}
			return nil
		},
	}
}

func newWorkspaceOpenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "open <path>",
		Short: "Register an existing directory as a workspace",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := config.ExpandHome(args[0])
			if err != nil {
				return err
			}
			if path, err = filepath.Abs(path); err != nil {
				return err
			}
			var res storeResponse
			if err := newAPIClient().do(cmd.Context(), http.MethodPost, "/api/projects/open", map[string]string{"path": path}, &res); err != nil {
				return err
			}
			printWarnings(cmd.ErrOrStderr(), res.Warnings)
			if p, ok := activeProject(res.Store); ok {
				fmt.Fprintf(cmd.OutOrStdout(), "Opened workspace %s (%s)\n", p.Name, p.ID)
			}
			return nil
		},
	}
}

func newWorkspaceDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <workspace>",
		Short: "Remove a workspace and its agents (the repository is kept)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := newAPIClient()
			p, err := c.resolveProject(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			var res storeResponse
			if err := c.do(cmd.Context(), http.MethodDelete, projectPath(p.ID), nil, &res); err != nil {
				return err
			}
			printWarnings(cmd.ErrOrStderr(), res.Warnings)
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted workspace %s\n", p.Name)
			return nil
		},
	}
}

func newWorkspaceActivateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "activate <workspace>",
		Short: "Make a workspace the active one",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := newAPIClient()
			p, err := c.resolveProject(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if err := c.do(cmd.Context(), http.MethodPost, projectPath(p.ID)+"/activate", nil, nil); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Active workspace: %s\n", p.Name)
			return nil
		},
	}
}

func activeProject(doc domain.Document) (domain.Project, bool) {
	if doc.ActiveProjectID == nil {
		return domain.Project{}, false
	}
	return doc.FindProject(*doc.ActiveProjectID)
}

func printWarnings(w io.Writer, warnings []string) {
	for _, msg := range warnings {
		fmt.Fprintf(w, "warning: %s\n", msg)
	}
}
