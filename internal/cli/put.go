package cli

import (
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rcliao/canvas-graph/internal/model"
	"github.com/rcliao/canvas-graph/internal/store"
)

func init() {
	cmd := &cobra.Command{
		Use:   "put [value]",
		Short: "Create a content node",
		Long:  "Create a content node. The value can be a positional arg or piped via stdin. With --frame the node is also placed on that frame.",
		Run:   runPut,
	}

	cmd.Flags().StringP("channel", "c", "", "Channel id (required)")
	cmd.Flags().String("variant", string(model.VariantText), "Variant: Text, Link, Image, AI, ...")
	cmd.Flags().StringP("title", "t", "", "Title")
	cmd.Flags().String("thought", "", "Annotation shown alongside the value")
	cmd.Flags().String("frame", "", "Place the node on this frame")
	cmd.Flags().String("instance", "", "Placement instance id (default: generated)")
	cmd.Flags().Float64("x", 0, "Placement x")
	cmd.Flags().Float64("y", 0, "Placement y")

	cmd.MarkFlagRequired("channel")

	nodeCmd.AddCommand(cmd)
}

func runPut(cmd *cobra.Command, args []string) {
	channelID, _ := cmd.Flags().GetString("channel")
	variant, _ := cmd.Flags().GetString("variant")
	title, _ := cmd.Flags().GetString("title")
	thought, _ := cmd.Flags().GetString("thought")
	frameID, _ := cmd.Flags().GetString("frame")
	instanceID, _ := cmd.Flags().GetString("instance")

	// Get value: positional arg first, then check stdin
	var value string
	if len(args) > 0 {
		value = strings.Join(args, " ")
	} else {
		stat, _ := os.Stdin.Stat()
		if (stat.Mode() & os.ModeCharDevice) == 0 {
			b, err := io.ReadAll(os.Stdin)
			if err != nil {
				exitErr("read stdin", err)
			}
			value = string(b)
		}
	}

	p := store.CreateContentParams{
		ChannelID:  channelID,
		Variant:    model.Variant(variant),
		Title:      title,
		Value:      strings.TrimSpace(value),
		Thought:    thought,
		FrameID:    frameID,
		InstanceID: instanceID,
	}
	if cmd.Flags().Changed("x") || cmd.Flags().Changed("y") {
		x, _ := cmd.Flags().GetFloat64("x")
		y, _ := cmd.Flags().GetFloat64("y")
		p.X, p.Y = &x, &y
	}

	a, ctx := openApp(cmd)
	defer a.Close()

	n, pl, err := a.svc.CreateContent(ctx, p)
	if err != nil {
		exitErr("put", err)
	}
	printJSON(map[string]any{"content": n, "placement": pl})
}
