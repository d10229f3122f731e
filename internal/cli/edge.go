package cli

import (
	"encoding/json"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/rcliao/canvas-graph/internal/model"
	"github.com/rcliao/canvas-graph/internal/store"
)

func init() {
	edgeCmd := &cobra.Command{
		Use:   "edge",
		Short: "Edge management",
	}

	listCmd := &cobra.Command{
		Use:   "list [frame-id]",
		Short: "List a frame's edges in insertion order",
		Args:  cobra.ExactArgs(1),
		Run:   runEdgeList,
	}

	reconcileCmd := &cobra.Command{
		Use:   "reconcile [frame-id]",
		Short: "Apply a change list to a frame's edges",
		Long:  `Apply a change list read from stdin: [{"type":"add","item":{"source":"a","target":"b"}},{"type":"remove","id":"b-c"}]`,
		Args:  cobra.ExactArgs(1),
		Run:   runEdgeReconcile,
	}

	connectCmd := &cobra.Command{
		Use:   "connect [frame-id] [source] [target]",
		Short: "Create or replace the edge between two placements",
		Args:  cobra.ExactArgs(3),
		Run:   runEdgeConnect,
	}
	connectCmd.Flags().String("source-handle", "", "Source handle (default: bottom)")
	connectCmd.Flags().String("target-handle", "", "Target handle (default: left)")

	rmCmd := &cobra.Command{
		Use:   "rm [frame-id] [edge-id]",
		Short: "Delete every edge row with the given id",
		Args:  cobra.ExactArgs(2),
		Run:   runEdgeRm,
	}

	edgeCmd.AddCommand(listCmd, reconcileCmd, connectCmd, rmCmd)
	RootCmd.AddCommand(edgeCmd)
}

func runEdgeList(cmd *cobra.Command, args []string) {
	a, ctx := openApp(cmd)
	defer a.Close()

	edges, err := a.svc.ListEdges(ctx, args[0])
	if err != nil {
		exitErr("list edges", err)
	}
	printJSON(edges)
}

func runEdgeReconcile(cmd *cobra.Command, args []string) {
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		exitErr("read stdin", err)
	}
	var changes []model.EdgeChange
	if err := json.Unmarshal(data, &changes); err != nil {
		exitErr("parse json", err)
	}

	a, ctx := openApp(cmd)
	defer a.Close()

	plan, err := a.svc.ReconcileEdges(ctx, args[0], changes)
	if err != nil {
		exitErr("reconcile edges", err)
	}
	printJSON(plan)
}

func runEdgeConnect(cmd *cobra.Command, args []string) {
	sourceHandle, _ := cmd.Flags().GetString("source-handle")
	targetHandle, _ := cmd.Flags().GetString("target-handle")

	a, ctx := openApp(cmd)
	defer a.Close()

	edge, err := a.svc.Connect(ctx, store.ConnectParams{
		FrameID:      args[0],
		Source:       args[1],
		Target:       args[2],
		SourceHandle: sourceHandle,
		TargetHandle: targetHandle,
	})
	if err != nil {
		exitErr("connect", err)
	}
	printJSON(edge)
}

func runEdgeRm(cmd *cobra.Command, args []string) {
	a, ctx := openApp(cmd)
	defer a.Close()

	res, err := a.svc.DeleteEdge(ctx, args[0], args[1])
	if err != nil {
		exitErr("delete edge", err)
	}
	printJSON(res)
}
