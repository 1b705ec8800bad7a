// Package main is the entry point for the marquee CLI.
//
// marquee can be used either as a library (SDK) or as a standalone binary
// with YAML configuration. This CLI provides the standalone binary approach.
//
// Usage:
//
//	marquee run -c marquee.yaml       # Poll sources until interrupted
//	marquee validate -c marquee.yaml  # Validate configuration
//	marquee preview -c marquee.yaml   # Fetch once and print the board
//	marquee version                   # Show version info
package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"
)

// Version information, set at build time via ldflags.
// Example: go build -ldflags "-X main.version=1.0.0"
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

const defaultEnvFile = ".env"

var (
	logFormat string
	logLevel  string
	envFile   string
)

// rootCmd is the base command when called without subcommands.
// It just displays help; actual functionality is in subcommands.
var rootCmd = &cobra.Command{
	Use:   "marquee",
	Short: "Keep a transit and weather board's data fresh",
	Long: `marquee polls JSON APIs (CTA Bus and Train Tracker, weather.gov, or
anything else that speaks JSON) on independent cadences and keeps the latest
good document from each one available to a display.

Quick start:
  1. Create a config file (marquee.yaml)
  2. Put API keys in .env or the environment
  3. Run: marquee preview -c marquee.yaml

Example config:
  sources:
    - name: bus
      url: https://www.ctabustracker.com/bustime/api/v2/getpredictions
      api_key: ${CTA_BUS_KEY}
      api_key_param: key
      query: {format: json, stpid: "1234"}
  tiles:
    bus: [{route: "147", stop: "1234", walk_time: 5}]`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return loadEnvFile(envFile, cmd.Flags().Changed("env-file"))
	},
}

// Execute runs the root command.
// This is the main entry point called from main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		// cobra already printed the error
		os.Exit(1)
	}
}

func main() {
	Execute()
}

// versionCmd prints version information.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Print the version, commit hash, and build date of this marquee binary.`,
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "marquee %s\n", version)
		fmt.Fprintf(out, "  commit: %s\n", commit)
		fmt.Fprintf(out, "  built:  %s\n", date)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "json", "log output format: json or text")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn or error")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", defaultEnvFile, "file of KEY=value pairs loaded into the environment")

	rootCmd.AddCommand(versionCmd)
}

// loadEnvFile loads KEY=value pairs without overriding variables that are
// already set. A missing default file is not an error; a missing file the
// user asked for is.
func loadEnvFile(path string, explicit bool) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	return nil
}

// newLogger builds the CLI logger. json suits log shippers; text is tint's
// coloured handler for terminals.
func newLogger(w io.Writer, format, level string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q", level)
	}

	switch strings.ToLower(format) {
	case "json":
		return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl})), nil
	case "text":
		return slog.New(tint.NewHandler(w, &tint.Options{
			Level:      lvl,
			TimeFormat: time.Kitchen,
		})), nil
	default:
		return nil, fmt.Errorf("invalid log format %q (expected json or text)", format)
	}
}
