package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "rm [content-id]",
		Short: "Delete a content node",
		Long:  "Delete a content node. Its placements and their edges are removed and other nodes stop threading to it.",
		Args:  cobra.ExactArgs(1),
		Run:   runRm,
	}

	nodeCmd.AddCommand(cmd)
}

func runRm(cmd *cobra.Command, args []string) {
	a, ctx := openApp(cmd)
	defer a.Close()

	if err := a.svc.DeleteContent(ctx, args[0]); err != nil {
		exitErr("rm", err)
	}
	fmt.Printf(`{"ok":true,"deleted":%q}`+"\n", args[0])
}
