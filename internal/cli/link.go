package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	threadCmd := &cobra.Command{
		Use:   "thread [content-id] [other-id]",
		Short: "Thread two content nodes together",
		Args:  cobra.ExactArgs(2),
		Run:   runThread,
	}

	unthreadCmd := &cobra.Command{
		Use:   "unthread [content-id] [other-id]",
		Short: "Remove the thread between two content nodes",
		Args:  cobra.ExactArgs(2),
		Run:   runThread,
	}

	nodeCmd.AddCommand(threadCmd, unthreadCmd)
}

func runThread(cmd *cobra.Command, args []string) {
	a, ctx := openApp(cmd)
	defer a.Close()

	op := a.svc.ConnectThreads
	if cmd.Name() == "unthread" {
		op = a.svc.DisconnectThreads
	}
	if err := op(ctx, args[0], args[1]); err != nil {
		exitErr(cmd.Name(), err)
	}
	fmt.Printf(`{"ok":true,"a":%q,"b":%q}`+"\n", args[0], args[1])
}
