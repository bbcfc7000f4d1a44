package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/omochice/stranger-chat/internal/config"
	"github.com/omochice/stranger-chat/internal/gateway"
	"github.com/omochice/stranger-chat/internal/session"
	"github.com/omochice/stranger-chat/internal/telemetry"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	v := config.NewViper()

	cmd := &cobra.Command{
		Use:          "stranger",
		Short:        "Chat one-to-one with a random stranger",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_ = godotenv.Load()
			if err := config.ReadFile(v); err != nil {
				return err
			}
			cfg, err := config.LoadClient(v)
			if err != nil {
				return err
			}
			return run(cmd.Context(), cfg, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}

	flags := cmd.Flags()
	flags.String("endpoint", "", "matching service WebSocket URL (e.g., ws://localhost:3000/ws)")
	flags.String("log-file", "", "write logs to this rotating file instead of stderr")
	flags.String("log-level", "", "log level: debug, info, warn, error")
	flags.String("metrics-file", "", "export session metrics to this rotating file")
	bindFlags(v, cmd, map[string]string{
		config.KeyEndpoint:    "endpoint",
		config.KeyLogFile:     "log-file",
		config.KeyLogLevel:    "log-level",
		config.KeyMetricsFile: "metrics-file",
	})

	return cmd
}

func bindFlags(v *viper.Viper, cmd *cobra.Command, keys map[string]string) {
	for key, flag := range keys {
		_ = v.BindPFlag(key, cmd.Flags().Lookup(flag))
	}
}

func run(parent context.Context, cfg *config.Client, in io.Reader, out io.Writer) error {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger, logCloser := telemetry.NewLogger(cfg.Log.File, os.Stderr, cfg.Log.Level)
	defer logCloser.Close()
	slog.SetDefault(logger)

	_, shutdownMetrics, err := telemetry.InitMetrics(ctx, "stranger", cfg.Metrics.File, cfg.Metrics.Interval)
	if err != nil {
		return err
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownMetrics(flushCtx); err != nil {
			logger.Error("failed to flush metrics", "error", err)
		}
	}()

	gw := gateway.New(gateway.WebSocketDialer, logger)
	if err := gw.Connect(ctx, cfg.Endpoint); err != nil {
		fmt.Fprintf(out, "Could not reach %s: %v\n", cfg.Endpoint, err)
		return err
	}
	defer gw.Disconnect()

	machine := session.NewMachine(gw, gw.LocalIdentity, session.WithLogger(logger))
	con := newConsole(nil, out)
	loop := session.NewLoop(machine, gw.Events(), con.onChange)
	con.session = loop

	con.showStatus(machine.Projection())
	con.println("Type /help for commands.")

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		if err := scanner.Err(); err != nil {
			logger.Warn("error reading input", "error", err)
		}
	}()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error {
		defer cancel()
		if err := loop.Run(gctx); !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		defer cancel()
		defer gw.Disconnect()
		for {
			select {
			case <-gctx.Done():
				return nil
			case line, ok := <-lines:
				if !ok || con.handle(gctx, line) {
					return nil
				}
			}
		}
	})

	if err := g.Wait(); err != nil {
		return err
	}
	fmt.Fprintln(out, "Bye.")
	return nil
}
