// Package cli implements the membank commands. The serve command runs
// the protocol server; the remaining commands are a thin operator
// surface that talks to a running server through its unix socket.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/alucardeht/membank/internal/config"
	"github.com/alucardeht/membank/pkg/client"
)

var projectFlag string

// RootCmd is the top-level command.
var RootCmd = &cobra.Command{
	Use:   "membank",
	Short: "Persistent memory bank for AI coding agents",
	Long:  "An MCP server exposing a per-project knowledge store over stdio and a local socket, synchronized with agent markdown memory banks.",
}

func init() {
	RootCmd.PersistentFlags().StringVarP(&projectFlag, "project", "p", "", "Project identifier")
}

func connect(ctx context.Context) (*client.Client, error) {
	if projectFlag == "" {
		return nil, fmt.Errorf("--project is required")
	}
	return client.Dial(ctx, config.SocketPath(projectFlag))
}

func printJSON(v interface{}) {
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
}

func exitErr(msg string, err error) {
	fmt.Fprintf(os.Stderr, "error: %s: %v\n", msg, err)
	os.Exit(1)
}
