package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rcliao/canvas-graph/internal/model"
	"github.com/rcliao/canvas-graph/internal/store"
)

var nodeCmd = &cobra.Command{
	Use:   "node",
	Short: "Content node management",
}

func init() {
	updateCmd := &cobra.Command{
		Use:   "update [content-id]",
		Short: "Edit a content node",
		Args:  cobra.ExactArgs(1),
		Run:   runNodeUpdate,
	}
	updateCmd.Flags().String("variant", "", "New variant")
	updateCmd.Flags().String("title", "", "New title")
	updateCmd.Flags().String("value", "", "New value")
	updateCmd.Flags().String("thought", "", "New thought")

	nodeCmd.AddCommand(updateCmd)
	RootCmd.AddCommand(nodeCmd)
}

func runNodeUpdate(cmd *cobra.Command, args []string) {
	p := store.UpdateContentParams{ID: args[0]}
	changed := false
	if cmd.Flags().Changed("variant") {
		v, _ := cmd.Flags().GetString("variant")
		variant := model.Variant(v)
		p.Variant = &variant
		changed = true
	}
	for _, f := range []struct {
		name string
		dst  **string
	}{{"title", &p.Title}, {"value", &p.Value}, {"thought", &p.Thought}} {
		if cmd.Flags().Changed(f.name) {
			v, _ := cmd.Flags().GetString(f.name)
			*f.dst = &v
			changed = true
		}
	}
	if !changed {
		exitErr("update node", fmt.Errorf("nothing to update"))
	}

	a, ctx := openApp(cmd)
	defer a.Close()

	n, err := a.svc.UpdateContent(ctx, p)
	if err != nil {
		exitErr("update node", err)
	}
	printJSON(n)
}
