package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "context [content-id]",
		Short: "Assemble AI context from a node's upstream edges",
		Long:  "Collect the Text and Link nodes wired into an AI node on its frame and render them as prompt context.",
		Args:  cobra.ExactArgs(1),
		Run:   runContext,
	}

	RootCmd.AddCommand(cmd)
}

func runContext(cmd *cobra.Command, args []string) {
	a, ctx := openApp(cmd)
	defer a.Close()

	result, err := a.svc.GatherUpstreamContext(ctx, args[0])
	if err != nil {
		exitErr("context", err)
	}

	if formatFlag == "text" {
		fmt.Print(result.ContextText)
		return
	}
	printJSON(result)
}
