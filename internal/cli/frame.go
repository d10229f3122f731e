package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rcliao/canvas-graph/internal/store"
)

func init() {
	frameCmd := &cobra.Command{
		Use:   "frame",
		Short: "Frame management",
	}

	createCmd := &cobra.Command{
		Use:   "create [title]",
		Short: "Create a frame at the end of a channel",
		Args:  cobra.MaximumNArgs(1),
		Run:   runFrameCreate,
	}
	createCmd.Flags().StringP("channel", "c", "", "Channel id (required)")
	createCmd.MarkFlagRequired("channel")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List a channel's frames in sort order",
		Run:   runFrameList,
	}
	listCmd.Flags().StringP("channel", "c", "", "Channel id (required)")
	listCmd.MarkFlagRequired("channel")

	getCmd := &cobra.Command{
		Use:   "get [frame-id]",
		Short: "Show a frame",
		Args:  cobra.ExactArgs(1),
		Run:   runFrameGet,
	}

	renameCmd := &cobra.Command{
		Use:   "rename [frame-id]",
		Short: "Rename or reorder a frame",
		Args:  cobra.ExactArgs(1),
		Run:   runFrameRename,
	}
	renameCmd.Flags().String("title", "", "New title")
	renameCmd.Flags().Int("order", -1, "New sort order")

	rmCmd := &cobra.Command{
		Use:   "rm [frame-id]",
		Short: "Delete a frame with its placements, edges and movements",
		Args:  cobra.ExactArgs(1),
		Run:   runFrameRm,
	}

	frameCmd.AddCommand(createCmd, listCmd, getCmd, renameCmd, rmCmd)
	RootCmd.AddCommand(frameCmd)
}

func runFrameCreate(cmd *cobra.Command, args []string) {
	channelID, _ := cmd.Flags().GetString("channel")
	var title string
	if len(args) > 0 {
		title = args[0]
	}

	a, ctx := openApp(cmd)
	defer a.Close()

	f, err := a.svc.CreateFrame(ctx, store.CreateFrameParams{ChannelID: channelID, Title: title})
	if err != nil {
		exitErr("create frame", err)
	}
	printJSON(f)
}

func runFrameList(cmd *cobra.Command, args []string) {
	channelID, _ := cmd.Flags().GetString("channel")

	a, ctx := openApp(cmd)
	defer a.Close()

	frames, err := a.svc.ListFrames(ctx, channelID)
	if err != nil {
		exitErr("list frames", err)
	}
	printJSON(frames)
}

func runFrameGet(cmd *cobra.Command, args []string) {
	a, ctx := openApp(cmd)
	defer a.Close()

	f, err := a.svc.GetFrame(ctx, args[0])
	if err != nil {
		exitErr("get frame", err)
	}
	printJSON(f)
}

func runFrameRename(cmd *cobra.Command, args []string) {
	p := store.UpdateFrameParams{ID: args[0]}
	if cmd.Flags().Changed("title") {
		title, _ := cmd.Flags().GetString("title")
		p.Title = &title
	}
	if cmd.Flags().Changed("order") {
		order, _ := cmd.Flags().GetInt("order")
		p.SortOrder = &order
	}
	if p.Title == nil && p.SortOrder == nil {
		exitErr("rename frame", fmt.Errorf("--title or --order is required"))
	}

	a, ctx := openApp(cmd)
	defer a.Close()

	f, err := a.svc.UpdateFrame(ctx, p)
	if err != nil {
		exitErr("rename frame", err)
	}
	printJSON(f)
}

func runFrameRm(cmd *cobra.Command, args []string) {
	a, ctx := openApp(cmd)
	defer a.Close()

	if err := a.svc.DeleteFrame(ctx, args[0]); err != nil {
		exitErr("delete frame", err)
	}
	fmt.Printf(`{"ok":true,"deleted":%q}`+"\n", args[0])
}
