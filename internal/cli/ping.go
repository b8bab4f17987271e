package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "ping",
		Short: "Check liveness of a running server",
		Args:  cobra.NoArgs,
		Run:   runPing,
	}

	RootCmd.AddCommand(cmd)
}

func runPing(cmd *cobra.Command, args []string) {
	c, err := connect(cmd.Context())
	if err != nil {
		exitErr("connect", err)
	}
	defer c.Close()

	if err := c.Ping(cmd.Context()); err != nil {
		exitErr("ping", err)
	}

	fmt.Println("ok")
}
