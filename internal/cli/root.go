// Package cli implements the canvas-graph CLI commands.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rcliao/canvas-graph/internal/auth"
	"github.com/rcliao/canvas-graph/internal/canvas"
	"github.com/rcliao/canvas-graph/internal/config"
	"github.com/rcliao/canvas-graph/internal/framelock"
	"github.com/rcliao/canvas-graph/internal/logging"
	"github.com/rcliao/canvas-graph/internal/store"
)

var (
	dbPath     string
	userFlag   string
	formatFlag string
	logLevel   string
)

// RootCmd is the top-level command.
var RootCmd = &cobra.Command{
	Use:   "canvas-graph",
	Short: "Spatial canvas graph engine",
	Long:  "Frames, placements, edges and AI context for a spatial canvas. SQLite-backed, single binary.",
}

func init() {
	RootCmd.PersistentFlags().StringVarP(&dbPath, "db", "d", "", "Database path (default: $CANVAS_DB or ~/.canvas-graph/canvas.db)")
	RootCmd.PersistentFlags().StringVarP(&userFlag, "user", "u", "", "Acting user id (default: $CANVAS_USER or $USER)")
	RootCmd.PersistentFlags().StringVarP(&formatFlag, "format", "f", "json", "Output format: json or text")
	RootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "Log level: debug, info, warn, error")
}

func loadConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		exitErr("load config", err)
	}
	if dbPath != "" {
		cfg.DBPath = dbPath
	}
	return cfg
}

func getUser() string {
	if userFlag != "" {
		return userFlag
	}
	if env := os.Getenv("CANVAS_USER"); env != "" {
		return env
	}
	return os.Getenv("USER")
}

func openStore() (*store.SQLiteStore, error) {
	return store.NewSQLiteStore(loadConfig().DBPath)
}

// app is the service stack a command runs against.
type app struct {
	svc    *canvas.Service
	store  *store.SQLiteStore
	locks  framelock.Locker
	logger *zap.Logger
}

// openApp builds the service and returns a context carrying the acting user.
func openApp(cmd *cobra.Command) (*app, context.Context) {
	cfg := loadConfig()
	logger, err := logging.New(logLevel, cfg.Environment)
	if err != nil {
		exitErr("init logger", err)
	}
	s, err := store.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		exitErr("open store", err)
	}
	locks, err := framelock.Open(cfg.RedisURL, cfg.FrameLockTTL, cfg.FrameLockWait, logger)
	if err != nil {
		s.Close()
		exitErr("open frame locks", err)
	}
	svc := canvas.NewService(s, canvas.Options{
		Locker:      locks,
		Logger:      logger,
		MetadataTTL: cfg.MetadataTTL,
	})
	return &app{svc: svc, store: s, locks: locks, logger: logger}, auth.WithUser(cmd.Context(), getUser())
}

func (a *app) Close() {
	a.locks.Close()
	a.store.Close()
	a.logger.Sync()
}

func printJSON(v any) {
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
}

func exitErr(msg string, err error) {
	fmt.Fprintf(os.Stderr, "error: %s: %v\n", msg, err)
	os.Exit(1)
}
