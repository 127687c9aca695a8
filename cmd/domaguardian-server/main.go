package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/domaguardian/domaguardian/internal/config"
	"github.com/domaguardian/domaguardian/internal/events"
	"github.com/domaguardian/domaguardian/internal/node"
	"github.com/domaguardian/domaguardian/internal/observability/metrics"
	"github.com/domaguardian/domaguardian/internal/reconcile"
	"github.com/domaguardian/domaguardian/internal/server"
	"github.com/domaguardian/domaguardian/internal/storage"
)

var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "domaguardian-server",
		Short:   "DomaGuardian server - paid analysis, monitoring, messaging and domain rights",
		Version: version,
	}

	// Default behavior (no subcommand) is to serve
	rootCmd.RunE = func(cmd *cobra.Command, args []string) error {
		return runServe()
	}

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newReplayCmd())
	rootCmd.AddCommand(newReconcileCmd())

	return rootCmd
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}
}

func newReplayCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "replay",
		Short: "Verify the journal by replaying it into a fresh node",
		Long: `Replay every journaled call into an in-memory node and check that each
call reproduces its recorded sequence number and hash. Nothing is written.

EXAMPLES:
  STORAGE_TYPE=postgres DATABASE_URL=postgres://... domaguardian-server replay
`,
		RunE: func(cmd *cobra.Command, args []string) error {
			n, cleanup, err := openNode(quietLogger())
			if err != nil {
				return err
			}
			defer cleanup()

			fmt.Fprintf(cmd.OutOrStdout(), "✅ Replayed %d calls (chain %d)\n", n.Seq(), n.ChainID())
			return nil
		},
	}
}

func newReconcileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "Replay the journal and compare outstanding credit with held currency",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := quietLogger()
			n, cleanup, err := openNode(logger)
			if err != nil {
				return err
			}
			defer cleanup()

			rec := reconcile.Run(n, logger)
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Outstanding: %s wei\n", rec.Outstanding)
			fmt.Fprintf(out, "Held:        %s wei\n", rec.Held)
			if !rec.Balanced() {
				return fmt.Errorf("ledger shortfall of %s wei", rec.Shortfall)
			}
			fmt.Fprintln(out, "✅ Balanced")
			return nil
		},
	}
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// openNode loads config, opens the journal and rebuilds node state from it.
func openNode(logger *slog.Logger) (*node.Node, func(), error) {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}
	n, _, cleanup, err := buildNode(cfg, logger, false)
	return n, cleanup, err
}

// buildNode opens storage and replays the journal. With publish set, events
// of new calls also go to the configured sinks. cleanup closes the sinks and
// then the store.
func buildNode(cfg *config.Config, logger *slog.Logger, publish bool) (*node.Node, storage.Store, func(), error) {
	store, err := storage.New(cfg.Storage, logger)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("initializing storage: %w", err)
	}
	if err := store.Migrate(context.Background()); err != nil {
		store.Close()
		return nil, nil, nil, fmt.Errorf("running migrations: %w", err)
	}

	var kafkaSink *events.KafkaSink
	var sinks []node.EventSink
	if publish && cfg.Kafka.Enabled {
		kafkaSink = events.NewKafkaSink(cfg.Kafka, logger)
		sinks = append(sinks, kafkaSink)
		logger.Info("publishing events to kafka", "brokers", cfg.Kafka.Brokers, "topic", cfg.Kafka.Topic)
	}
	var n *node.Node
	cleanup := func() {
		if n != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			if err := n.Close(ctx); err != nil {
				logger.Warn("draining event queue", "error", err)
			}
			cancel()
		}
		if kafkaSink != nil {
			if err := kafkaSink.Close(); err != nil {
				logger.Warn("closing event sink", "sink", kafkaSink.Name(), "error", err)
			}
		}
		store.Close()
	}

	n, err = node.New(node.Config{
		ChainID:  cfg.Chain.ID,
		Operator: cfg.Chain.OperatorAddress(),
		Price:    cfg.Chain.Price(),
	}, store, logger, sinks...)
	if err != nil {
		cleanup()
		return nil, nil, nil, fmt.Errorf("creating node: %w", err)
	}

	start := time.Now()
	applied, err := n.Replay(context.Background())
	if err != nil {
		cleanup()
		return nil, nil, nil, err
	}
	logger.Info("journal replayed", "calls", applied, "duration", time.Since(start))
	return n, store, cleanup, nil
}

// Server command

func runServe() error {
	_ = godotenv.Load()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := setupLogger(cfg)
	logger.Info("starting domaguardian-server", "version", version, "chainId", cfg.Chain.ID)

	metrics.Init(cfg.Metrics.Enabled, "domaguardian")

	n, store, cleanup, err := buildNode(cfg, logger, true)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Reconcile.Enabled {
		job, err := reconcile.Start(n, time.Duration(cfg.Reconcile.IntervalSeconds)*time.Second, logger)
		if err != nil {
			return err
		}
		defer job.Stop()
	}

	srv := server.New(cfg, n, store, logger)
	go srv.Run(ctx)

	// Create HTTP server with configurable timeouts
	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      srv.Handler(),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	select {
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		logger.Info("shutting down")
	}

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown error: %w", err)
	}

	logger.Info("server stopped", "seq", n.Seq())
	return nil
}

func setupLogger(cfg *config.Config) *slog.Logger {
	var handler slog.Handler

	opts := &slog.HandlerOptions{
		Level: parseLogLevel(cfg.Logging.Level),
	}

	if cfg.Logging.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
