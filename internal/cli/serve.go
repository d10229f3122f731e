package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/rcliao/canvas-graph/internal/auth"
	"github.com/rcliao/canvas-graph/internal/canvas"
	"github.com/rcliao/canvas-graph/internal/config"
	"github.com/rcliao/canvas-graph/internal/framelock"
	"github.com/rcliao/canvas-graph/internal/httpapi"
	"github.com/rcliao/canvas-graph/internal/logging"
	"github.com/rcliao/canvas-graph/internal/metrics"
	"github.com/rcliao/canvas-graph/internal/store"
)

const metadataCleanInterval = time.Hour

func init() {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		Run:   runServe,
	}

	cmd.Flags().String("addr", "", "Listen address (default: $CANVAS_ADDR or :8080)")

	RootCmd.AddCommand(cmd)
}

func runServe(cmd *cobra.Command, args []string) {
	cfg := loadConfig()
	if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
		cfg.Addr = addr
	}
	level := cfg.LogLevel
	if cmd.Flags().Changed("log-level") {
		level = logLevel
	}
	logger, err := logging.New(level, cfg.Environment)
	if err != nil {
		exitErr("init logger", err)
	}
	defer logger.Sync()

	if err := serve(cmd.Context(), cfg, logger); err != nil {
		exitErr("serve", err)
	}
}

func serve(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	s, err := store.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer s.Close()

	locks, err := framelock.Open(cfg.RedisURL, cfg.FrameLockTTL, cfg.FrameLockWait, logger)
	if err != nil {
		return err
	}
	defer locks.Close()

	var tokens *auth.TokenValidator
	if cfg.JWTSecret != "" {
		if tokens, err = auth.NewTokenValidator(cfg.JWTSecret, cfg.JWTIssuer); err != nil {
			return err
		}
	} else {
		logger.Warn("JWT_SECRET not set, trusting X-User-ID header")
	}

	var m *metrics.Collector
	if cfg.EnableMetrics {
		m = metrics.NewCollector()
	}
	hub := canvas.NewHub(64)
	svc := canvas.NewService(s, canvas.Options{
		Locker:      locks,
		Metrics:     m,
		Events:      hub,
		Logger:      logger,
		MetadataTTL: cfg.MetadataTTL,
	})
	api := httpapi.NewServer(httpapi.Config{
		Service:           svc,
		Hub:               hub,
		Tokens:            tokens,
		Metrics:           m,
		Logger:            logger,
		CORSOrigins:       cfg.CORSOrigins,
		MovementListLimit: cfg.MovementListLimit,
	})

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("HTTP server listening", zap.String("addr", cfg.Addr), zap.Bool("redisLocks", cfg.RedisURL != ""))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		logger.Info("Shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		ticker := time.NewTicker(metadataCleanInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				n, err := s.CleanExpiredLinkMetadata(ctx)
				if err != nil {
					logger.Warn("Failed to clean link metadata", zap.Error(err))
					continue
				}
				logger.Debug("Cleaned link metadata", zap.Int("deleted", n))
			}
		}
	})
	return g.Wait()
}
