package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/rcliao/canvas-graph/internal/model"
)

func init() {
	moveCmd := &cobra.Command{
		Use:   "move [frame-id]",
		Short: "Flush a movement batch",
		Long:  `Flush a movement batch read from stdin as a JSON array of snapshots: [{"id":"p1","x":10,"y":20,"width":300}]`,
		Args:  cobra.ExactArgs(1),
		Run:   runMove,
	}

	movementsCmd := &cobra.Command{
		Use:   "movements [frame-id]",
		Short: "List a frame's movement history, oldest first",
		Args:  cobra.ExactArgs(1),
		Run:   runMovements,
	}
	movementsCmd.Flags().IntP("limit", "l", 0, "Only the most recent N batches (0 = all)")

	RootCmd.AddCommand(moveCmd, movementsCmd)
}

func runMove(cmd *cobra.Command, args []string) {
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		exitErr("read stdin", err)
	}
	var batch []model.PlacementSnapshot
	if err := json.Unmarshal(data, &batch); err != nil {
		exitErr("parse json", err)
	}

	a, ctx := openApp(cmd)
	defer a.Close()

	id, err := a.svc.FlushMovementBatch(ctx, args[0], batch)
	if err != nil {
		exitErr("move", err)
	}
	fmt.Printf(`{"ok":true,"batch_id":%q,"snapshots":%d}`+"\n", id, len(batch))
}

func runMovements(cmd *cobra.Command, args []string) {
	limit, _ := cmd.Flags().GetInt("limit")

	a, ctx := openApp(cmd)
	defer a.Close()

	batches, err := a.svc.ListMovements(ctx, args[0], limit)
	if err != nil {
		exitErr("movements", err)
	}
	printJSON(batches)
}
