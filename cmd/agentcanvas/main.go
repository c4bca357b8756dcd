package main

import (
	"fmt"
	"os"

	"github.com/tillberg/autorestart"

	"github.com/soyeahso/agentcanvas/internal/cli"
)

func main() {
	// Development aid: re-exec when the binary is rebuilt.
	if os.Getenv("AGENTCANVAS_AUTORESTART") == "1" {
		go autorestart.RestartOnChange()
	}

	if err := cli.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
