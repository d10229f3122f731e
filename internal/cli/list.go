package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List a channel's content nodes",
		Run:   runList,
	}

	cmd.Flags().StringP("channel", "c", "", "Channel id (required)")
	cmd.MarkFlagRequired("channel")

	nodeCmd.AddCommand(cmd)
}

func runList(cmd *cobra.Command, args []string) {
	channelID, _ := cmd.Flags().GetString("channel")

	a, ctx := openApp(cmd)
	defer a.Close()

	nodes, err := a.svc.ListContent(ctx, channelID)
	if err != nil {
		exitErr("list", err)
	}

	if formatFlag == "text" {
		for _, n := range nodes {
			fmt.Printf("%s\t%s\t%s\n", n.ID, n.Variant, n.Title)
		}
		return
	}
	printJSON(nodes)
}
