package cli

import (
	"github.com/spf13/cobra"

	"github.com/rcliao/canvas-graph/internal/store"
)

func init() {
	placeCmd := &cobra.Command{
		Use:   "place",
		Short: "Placement management",
	}

	addCmd := &cobra.Command{
		Use:   "add [content-id]",
		Short: "Place existing content on a frame",
		Args:  cobra.ExactArgs(1),
		Run:   runPlaceAdd,
	}
	addCmd.Flags().String("frame", "", "Frame id (required)")
	addCmd.Flags().String("instance", "", "Instance id (default: generated)")
	addCmd.Flags().Float64("x", 0, "X position")
	addCmd.Flags().Float64("y", 0, "Y position")
	addCmd.Flags().Float64("width", 0, "Width")
	addCmd.Flags().Float64("height", 0, "Height")
	addCmd.MarkFlagRequired("frame")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List a frame's placements",
		Run:   runPlaceList,
	}
	listCmd.Flags().String("frame", "", "Frame id (required)")
	listCmd.MarkFlagRequired("frame")

	rmCmd := &cobra.Command{
		Use:   "rm [instance-id...]",
		Short: "Remove placements and their edges from a frame",
		Args:  cobra.MinimumNArgs(1),
		Run:   runPlaceRm,
	}
	rmCmd.Flags().String("frame", "", "Frame id (required)")
	rmCmd.MarkFlagRequired("frame")

	placeCmd.AddCommand(addCmd, listCmd, rmCmd)
	RootCmd.AddCommand(placeCmd)
}

func runPlaceAdd(cmd *cobra.Command, args []string) {
	frameID, _ := cmd.Flags().GetString("frame")
	instanceID, _ := cmd.Flags().GetString("instance")
	x, _ := cmd.Flags().GetFloat64("x")
	y, _ := cmd.Flags().GetFloat64("y")
	width, _ := cmd.Flags().GetFloat64("width")
	height, _ := cmd.Flags().GetFloat64("height")

	a, ctx := openApp(cmd)
	defer a.Close()

	pl, err := a.svc.AddToFrame(ctx, store.AddToFrameParams{
		FrameID:    frameID,
		ContentID:  args[0],
		InstanceID: instanceID,
		X:          x,
		Y:          y,
		Width:      width,
		Height:     height,
	})
	if err != nil {
		exitErr("place", err)
	}
	printJSON(pl)
}

func runPlaceList(cmd *cobra.Command, args []string) {
	frameID, _ := cmd.Flags().GetString("frame")

	a, ctx := openApp(cmd)
	defer a.Close()

	pls, err := a.svc.ListPlacements(ctx, frameID)
	if err != nil {
		exitErr("list placements", err)
	}
	printJSON(pls)
}

func runPlaceRm(cmd *cobra.Command, args []string) {
	frameID, _ := cmd.Flags().GetString("frame")

	a, ctx := openApp(cmd)
	defer a.Close()

	res, err := a.svc.RemovePlacements(ctx, frameID, args)
	if err != nil {
		exitErr("remove placements", err)
	}
	printJSON(res)
}
