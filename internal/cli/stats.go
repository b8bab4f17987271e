package cli

import (
	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show storage, cache and sync statistics",
		Args:  cobra.NoArgs,
		Run:   runStats,
	}

	RootCmd.AddCommand(cmd)
}

func runStats(cmd *cobra.Command, args []string) {
	c, err := connect(cmd.Context())
	if err != nil {
		exitErr("connect", err)
	}
	defer c.Close()

	result, err := c.Call(cmd.Context(), "memory_stats", map[string]interface{}{})
	if err != nil {
		exitErr("stats", err)
	}

	printJSON(result)
}
