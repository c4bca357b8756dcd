package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/soyeahso/agentcanvas/internal/gateway"
	"github.com/soyeahso/agentcanvas/internal/server"
	"github.com/soyeahso/agentcanvas/internal/store"
)

func newGatewayCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "gateway",
		Short: "Inspect the agent gateway connection",
	}

	cmd.AddCommand(newGatewayInfoCmd())
	cmd.AddCommand(newGatewayPingCmd())
	return cmd
}

// gatewayTarget resolves the gateway the server would connect to.
func gatewayTarget() (gateway.Target, error) {
	srv := server.New(server.Options{
		Config: cfg,
		Store:  store.NewFileStore(paths, log),
		Log:    log,
	})
	return srv.GatewayTarget()
}

func newGatewayInfoCmd() *cobra.Command {
	var showToken bool

	cmd := &cobra.Command{
		Use:   "info",
		Short: "Print the gateway URL and token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := gatewayTarget()
			if err != nil {
				return err
			}
			token := target.Token
			if !showToken {
				token = maskToken(token)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "URL:   %s\n", target.URL)
			fmt.Fprintf(cmd.OutOrStdout(), "Token: %s\n", token)
			return nil
		},
	}

	cmd.Flags().BoolVar(&showToken, "show-token", false, "print the token unmasked")
	return cmd
}

func newGatewayPingCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Connect to the gateway and print its hello",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := gatewayTarget()
			if err != nil {
				return err
			}
			start := time.Now()
			client, err := gateway.Dial(cmd.Context(), target.URL, gateway.DialOptions{
				Token:          target.Token,
				ConnectTimeout: time.Duration(cfg.Gateway.ConnectTimeoutMs) * time.Millisecond,
				Log:            log.Sub("gateway"),
			})
			if err != nil {
				return err
			}
			defer client.Close()

			hello := client.Hello()
			fmt.Fprintf(cmd.OutOrStdout(), "Connected to %s in %s\n", target.URL, time.Since(start).Round(time.Millisecond))
			fmt.Fprintf(cmd.OutOrStdout(), "Server:   %s (protocol %d)\n", hello.Server.Version, hello.Protocol)
			if len(hello.Features.Methods) > 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "Methods:  %s\n", strings.Join(hello.Features.Methods, ", "))
			}
			return nil
		},
	}
}

func maskToken(token string) string {
	switch {
	case token == "":
		return "(none)"
	case len(token) <= 4:
		return "****"
	default:
		return token[:4] + strings.Repeat("*", len(token)-4)
	}
}
