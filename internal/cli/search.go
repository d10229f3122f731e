package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rcliao/canvas-graph/internal/model"
	"github.com/rcliao/canvas-graph/internal/store"
)

func init() {
	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Search content nodes by substring",
		Long:  "Search content titles, values and thoughts within a workspace.",
		Args:  cobra.MinimumNArgs(1),
		Run:   runSearch,
	}

	cmd.Flags().StringP("workspace", "w", "", "Workspace id (required)")
	cmd.Flags().StringP("channel", "c", "", "Filter by channel")
	cmd.Flags().String("variant", "", "Filter by variant")
	cmd.Flags().IntP("limit", "l", 20, "Max results")
	cmd.MarkFlagRequired("workspace")

	nodeCmd.AddCommand(cmd)
}

func runSearch(cmd *cobra.Command, args []string) {
	wsID, _ := cmd.Flags().GetString("workspace")
	channelID, _ := cmd.Flags().GetString("channel")
	variant, _ := cmd.Flags().GetString("variant")
	limit, _ := cmd.Flags().GetInt("limit")
	query := strings.Join(args, " ")

	a, ctx := openApp(cmd)
	defer a.Close()

	results, err := a.svc.Search(ctx, store.SearchParams{
		WorkspaceID: wsID,
		ChannelID:   channelID,
		Query:       query,
		Variant:     model.Variant(variant),
		Limit:       limit,
	})
	if err != nil {
		exitErr("search", err)
	}

	if len(results) == 0 {
		fmt.Println("[]")
		return
	}
	printJSON(results)
}
