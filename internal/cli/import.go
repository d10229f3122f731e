package cli

import (
	"encoding/json"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/rcliao/canvas-graph/internal/store"
)

func init() {
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import a frame from JSON",
		Long:  "Import a frame from JSON on stdin into a channel. Expects the format produced by export.",
		Run:   runImport,
	}

	cmd.Flags().StringP("channel", "c", "", "Target channel id (required)")
	cmd.MarkFlagRequired("channel")

	RootCmd.AddCommand(cmd)
}

func runImport(cmd *cobra.Command, args []string) {
	channelID, _ := cmd.Flags().GetString("channel")

	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		exitErr("read stdin", err)
	}

	var exp store.FrameExport
	if err := json.Unmarshal(data, &exp); err != nil {
		exitErr("parse json", err)
	}

	a, ctx := openApp(cmd)
	defer a.Close()

	res, err := a.svc.ImportFrame(ctx, channelID, &exp)
	if err != nil {
		exitErr("import", err)
	}
	printJSON(res)
}
