package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jpalmerr/marquee"
	"github.com/jpalmerr/marquee/config"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

// runCmd polls every configured source until interrupted.
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Poll sources until interrupted",
	Long: `Start polling every configured source.

The process will:
  - Load configuration from the specified YAML file
  - Start one poller per source, staggered
  - Serve the inspection API if http.port is set
  - Publish snapshots to MQTT if mqtt.broker is set

It runs until interrupted (Ctrl+C) or it receives SIGTERM.

Example:
  marquee run -c marquee.yaml
  marquee run -c marquee.yaml --log-format text --log-level debug`,
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringP("config", "c", "", "path to config file (required)")
	_ = runCmd.MarkFlagRequired("config")
}

func runRun(cmd *cobra.Command, args []string) error {
	logger, err := newLogger(os.Stderr, logFormat, logLevel)
	if err != nil {
		return err
	}

	configFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger.Info("config loaded",
		"sources", len(cfg.Sources),
		"groups", len(cfg.Groups),
		"stagger", cfg.StaggerDuration().String(),
	)

	opts, err := config.BoardOptions(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to build sources: %w", err)
	}

	board, err := marquee.New(opts...)
	if err != nil {
		return fmt.Errorf("failed to create board: %w", err)
	}

	// cancel on SIGINT/SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	h, err := board.Start(ctx)
	if err != nil {
		return err
	}

	<-ctx.Done()

	select {
	case <-h.Done():
		logger.Info("shutdown complete")
	case <-time.After(shutdownTimeout):
		logger.Warn("shutdown timed out",
			"timeout", shutdownTimeout.String(),
			"action", "forcing exit",
		)
	}
	return nil
}
