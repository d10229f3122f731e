package cli

import (
	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "export [frame-id]",
		Short: "Export a frame as JSON",
		Long:  "Export a frame with its placements, edges and the content they reference.",
		Args:  cobra.ExactArgs(1),
		Run:   runExport,
	}

	RootCmd.AddCommand(cmd)
}

func runExport(cmd *cobra.Command, args []string) {
	a, ctx := openApp(cmd)
	defer a.Close()

	exp, err := a.svc.ExportFrame(ctx, args[0])
	if err != nil {
		exitErr("export", err)
	}
	printJSON(exp)
}
