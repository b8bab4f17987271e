package cli

import (
	"strings"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Search memories in a running server",
		Args:  cobra.MinimumNArgs(1),
		Run:   runSearch,
	}

	cmd.Flags().String("type", "", "Filter by memory type")
	cmd.Flags().StringSlice("tag", nil, "Match records carrying at least one of these tags")
	cmd.Flags().IntP("limit", "l", 10, "Max results")

	RootCmd.AddCommand(cmd)
}

func runSearch(cmd *cobra.Command, args []string) {
	memType, _ := cmd.Flags().GetString("type")
	tags, _ := cmd.Flags().GetStringSlice("tag")
	limit, _ := cmd.Flags().GetInt("limit")

	c, err := connect(cmd.Context())
	if err != nil {
		exitErr("connect", err)
	}
	defer c.Close()

	params := map[string]interface{}{
		"query": strings.Join(args, " "),
		"limit": limit,
	}
	if memType != "" {
		params["type"] = memType
	}
	if len(tags) > 0 {
		params["tags"] = tags
	}

	result, err := c.Call(cmd.Context(), "memory_search", params)
	if err != nil {
		exitErr("search", err)
	}

	printJSON(result)
}
