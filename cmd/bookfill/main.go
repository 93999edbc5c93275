package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/rickgao/bookfill/internal/config"
	"github.com/rickgao/bookfill/internal/logging"
	"github.com/rickgao/bookfill/internal/version"
)

var (
	configPath string
	envFile    string
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "bookfill",
		Short: "Collect order-book snapshots and repair gaps in the stored history",
		Long: `bookfill keeps a PostgreSQL/TimescaleDB table of order-book snapshots for one
exchange/symbol pair free of temporal holes.

Commands:
  collect   fetch forward one day at a time from the latest stored row
  backfill  scan the history for gaps and fill them by re-fetch or interpolation
  gaps      report gaps without fetching or writing
  schema    create the snapshot table if it does not exist`,
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", "configs/bookfill.yaml", "path to config file")
	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before the config")

	root.AddCommand(
		newCollectCmd(),
		newBackfillCmd(),
		newGapsCmd(),
		newSchemaCmd(),
		newVersionCmd(),
	)
	return root
}

// app is the state shared by every command that touches the store.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
	out    io.Writer
}

// setup loads the env file and config and builds the logger.
func setup() (*app, error) {
	if err := config.LoadEnvFile(envFile); err != nil {
		return nil, err
	}

	cfg, err := config.LoadAndValidate(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger, out := logging.New(cfg.Logging)
	slog.SetDefault(logger)

	logger.Info("starting bookfill",
		"version", version.Version,
		"commit", version.Commit,
		"config", configPath,
		"exchange", cfg.Pair.Exchange,
		"symbol", cfg.Pair.Symbol,
	)

	return &app{cfg: cfg, logger: logger, out: out}, nil
}

// close flushes the log file when logging to one.
func (a *app) close() {
	if c, ok := a.out.(io.Closer); ok && a.out != os.Stdout {
		c.Close()
	}
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext(logger *slog.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-sigCh:
			logger.Info("received shutdown signal", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()

	return ctx, cancel
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "bookfill", version.String())
		},
	}
}
