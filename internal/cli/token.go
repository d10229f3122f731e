package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/rcliao/canvas-graph/internal/auth"
	"github.com/rcliao/canvas-graph/internal/store"
)

func init() {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token for the acting user",
		Long:  "Issue an HS256 bearer token signed with $JWT_SECRET for local development and tests.",
		Run:   runToken,
	}

	cmd.Flags().String("ttl", "24h", "Token lifetime, e.g. 30d, 24h, 30m (0 = no expiry)")

	RootCmd.AddCommand(cmd)
}

func runToken(cmd *cobra.Command, args []string) {
	ttlStr, _ := cmd.Flags().GetString("ttl")
	var ttl time.Duration
	if ttlStr != "0" {
		var err error
		if ttl, err = store.ParseTTL(ttlStr); err != nil {
			exitErr("parse ttl", err)
		}
	}
	cfg := loadConfig()

	tok, err := auth.IssueToken(cfg.JWTSecret, cfg.JWTIssuer, getUser(), ttl)
	if err != nil {
		exitErr("issue token", err)
	}

	if formatFlag == "text" {
		fmt.Println(tok)
		return
	}
	printJSON(map[string]string{"token": tok, "user_id": getUser()})
}
