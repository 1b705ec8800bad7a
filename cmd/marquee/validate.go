package main

import (
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jpalmerr/marquee"
	"github.com/jpalmerr/marquee/config"
	"github.com/spf13/cobra"
)

// validateCmd validates a config file without polling anything.
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a config file",
	Long: `Validate a marquee configuration file without fetching anything.

This command parses the YAML, expands environment variables, builds every
source and prints the polling schedule. API keys are never printed.

Exit codes:
  0 - Config is valid
  1 - Config is invalid (error details printed to stderr)

Example:
  marquee validate -c marquee.yaml`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().StringP("config", "c", "", "path to config file (required)")
	_ = validateCmd.MarkFlagRequired("config")
}

func runValidate(cmd *cobra.Command, args []string) error {
	configFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	sources, err := config.BuildSources(cfg)
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Config is valid!\n")
	fmt.Fprintf(out, "  Stagger:        %s\n", cfg.StaggerDuration())
	fmt.Fprintf(out, "  Cadence:        %s\n", cfg.Cadence.Duration())
	fmt.Fprintf(out, "  Failure policy: %s\n", cfg.FailurePolicy)
	fmt.Fprintf(out, "  Sources:        %d direct + %d from groups = %d total\n",
		len(cfg.Sources), len(sources)-len(cfg.Sources), len(sources))
	if cfg.HTTP.Port != 0 {
		fmt.Fprintf(out, "  Inspection API: :%d\n", cfg.HTTP.Port)
	}
	if cfg.MQTT != nil {
		fmt.Fprintf(out, "  MQTT broker:    %s\n", cfg.MQTT.Broker)
	}

	printSchedule(out, sources, cfg.StaggerDuration(), time.Now())
	return nil
}

// printSchedule lists each source with its first fetch relative to start.
func printSchedule(w io.Writer, sources []marquee.Source, stagger time.Duration, now time.Time) {
	fmt.Fprintf(w, "\nSchedule:\n")
	for i, s := range sources {
		first := now.Add(time.Duration(i) * stagger)
		fmt.Fprintf(w, "  %-12s every %-8s first fetch %s\n",
			s.Name(), s.Cadence(), humanize.RelTime(first, now, "ago", "from now"))
		fmt.Fprintf(w, "  %-12s %s\n", "", s.URL())
	}
}
