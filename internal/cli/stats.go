package cli

import (
	"github.com/spf13/cobra"

	"github.com/rcliao/canvas-graph/internal/store"
)

func init() {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show database statistics",
		Long:  "Show database statistics. With --workspace the counts are scoped to that workspace and require membership.",
		Run:   runStats,
	}

	cmd.Flags().StringP("workspace", "w", "", "Scope to a workspace")

	RootCmd.AddCommand(cmd)
}

func runStats(cmd *cobra.Command, args []string) {
	wsID, _ := cmd.Flags().GetString("workspace")

	if wsID != "" {
		a, ctx := openApp(cmd)
		defer a.Close()

		stats, err := a.svc.Stats(ctx, wsID)
		if err != nil {
			exitErr("stats", err)
		}
		printJSON(stats)
		return
	}

	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	stats, err := s.Stats(cmd.Context(), store.StatsParams{DBPath: loadConfig().DBPath})
	if err != nil {
		exitErr("stats", err)
	}
	printJSON(stats)
}
