package cli

import (
	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "get [content-id]",
		Short: "Show a content node",
		Args:  cobra.ExactArgs(1),
		Run:   runGet,
	}

	nodeCmd.AddCommand(cmd)
}

func runGet(cmd *cobra.Command, args []string) {
	a, ctx := openApp(cmd)
	defer a.Close()

	n, err := a.svc.GetContent(ctx, args[0])
	if err != nil {
		exitErr("get", err)
	}
	printJSON(n)
}
