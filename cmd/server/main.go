package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/omochice/stranger-chat/internal/config"
	"github.com/omochice/stranger-chat/internal/matchd"
	"github.com/omochice/stranger-chat/internal/telemetry"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	v := config.NewViper()

	cmd := &cobra.Command{
		Use:          "matchd",
		Short:        "Development matching service for stranger chat",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := godotenv.Load(); err != nil {
				slog.Info("No .env file found, using environment variables")
			}
			if err := config.ReadFile(v); err != nil {
				return err
			}
			cfg, err := config.LoadServer(v)
			if err != nil {
				return err
			}
			return run(cmd.Context(), cfg)
		},
	}

	cmd.Flags().String("listen", "", "address to listen on (e.g., :3000)")
	cmd.Flags().String("log-level", "", "log level: debug, info, warn, error")
	_ = v.BindPFlag(config.KeyListen, cmd.Flags().Lookup("listen"))
	_ = v.BindPFlag(config.KeyLogLevel, cmd.Flags().Lookup("log-level"))

	return cmd
}

func run(parent context.Context, cfg *config.Server) error {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.Log.Level}))
	if cfg.Log.File != "" {
		var closer io.Closer
		logger, closer = telemetry.NewLogger(cfg.Log.File, nil, cfg.Log.Level)
		defer closer.Close()
	}
	slog.SetDefault(logger)

	srv := matchd.New(cfg.Listen, matchd.NewHub(logger), logger)

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Start()
	}()

	// Wait for either error or shutdown signal
	select {
	case err := <-errChan:
		if err != nil {
			logger.Error("server error", "error", err)
			return err
		}
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Stop(shutdownCtx); err != nil {
			logger.Error("failed to stop server", "error", err)
		}
	}

	logger.Info("matching server stopped")
	return nil
}
