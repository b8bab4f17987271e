package cli

import (
	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List memories in a running server",
		Args:  cobra.NoArgs,
		Run:   runList,
	}

	cmd.Flags().String("type", "", "Filter by memory type")

	RootCmd.AddCommand(cmd)
}

func runList(cmd *cobra.Command, args []string) {
	memType, _ := cmd.Flags().GetString("type")

	c, err := connect(cmd.Context())
	if err != nil {
		exitErr("connect", err)
	}
	defer c.Close()

	params := map[string]interface{}{}
	if memType != "" {
		params["type"] = memType
	}

	result, err := c.Call(cmd.Context(), "memory_list", params)
	if err != nil {
		exitErr("list", err)
	}

	printJSON(result)
}
