package cli

import (
	"github.com/spf13/cobra"

	"github.com/rcliao/canvas-graph/internal/model"
	"github.com/rcliao/canvas-graph/internal/store"
)

func init() {
	wsCmd := &cobra.Command{
		Use:   "workspace",
		Short: "Workspace management",
	}

	createCmd := &cobra.Command{
		Use:   "create [name]",
		Short: "Create a workspace owned by the acting user",
		Args:  cobra.ExactArgs(1),
		Run:   runWorkspaceCreate,
	}

	memberCmd := &cobra.Command{
		Use:   "add-member",
		Short: "Add a member or change their role",
		Run:   runWorkspaceAddMember,
	}
	memberCmd.Flags().StringP("workspace", "w", "", "Workspace id (required)")
	memberCmd.Flags().String("member", "", "User id to add (required)")
	memberCmd.Flags().StringP("role", "r", string(model.RoleEditor), "Role: owner, editor, viewer")
	memberCmd.MarkFlagRequired("workspace")
	memberCmd.MarkFlagRequired("member")

	chCmd := &cobra.Command{
		Use:   "channel",
		Short: "Channel management",
	}
	chCreateCmd := &cobra.Command{
		Use:   "create [title]",
		Short: "Create a channel",
		Args:  cobra.ExactArgs(1),
		Run:   runChannelCreate,
	}
	chCreateCmd.Flags().StringP("workspace", "w", "", "Workspace id (required)")
	chCreateCmd.Flags().String("description", "", "Channel description")
	chCreateCmd.MarkFlagRequired("workspace")

	wsCmd.AddCommand(createCmd, memberCmd)
	chCmd.AddCommand(chCreateCmd)
	RootCmd.AddCommand(wsCmd, chCmd)
}

func runWorkspaceCreate(cmd *cobra.Command, args []string) {
	a, ctx := openApp(cmd)
	defer a.Close()

	ws, err := a.svc.CreateWorkspace(ctx, args[0])
	if err != nil {
		exitErr("create workspace", err)
	}
	printJSON(ws)
}

func runWorkspaceAddMember(cmd *cobra.Command, args []string) {
	wsID, _ := cmd.Flags().GetString("workspace")
	member, _ := cmd.Flags().GetString("member")
	role, _ := cmd.Flags().GetString("role")

	a, ctx := openApp(cmd)
	defer a.Close()

	m, err := a.svc.AddMember(ctx, store.AddMemberParams{WorkspaceID: wsID, UserID: member, Role: model.Role(role)})
	if err != nil {
		exitErr("add member", err)
	}
	printJSON(m)
}

func runChannelCreate(cmd *cobra.Command, args []string) {
	wsID, _ := cmd.Flags().GetString("workspace")
	desc, _ := cmd.Flags().GetString("description")

	a, ctx := openApp(cmd)
	defer a.Close()

	ch, err := a.svc.CreateChannel(ctx, store.CreateChannelParams{WorkspaceID: wsID, Title: args[0], Description: desc})
	if err != nil {
		exitErr("create channel", err)
	}
	printJSON(ch)
}
