package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jpalmerr/marquee"
	"github.com/jpalmerr/marquee/config"
	"github.com/spf13/cobra"
)

// Slot names the preview reads weather from. Sources with other names are
// listed under SOURCES only.
const (
	slotWeather  = "weather"
	slotForecast = "forecast"
	slotHourly   = "hourly"

	forecastPeriodsShown = 2
	placeholder          = "--"
)

// previewCmd fetches every source once and prints a text rendition of the board.
var previewCmd = &cobra.Command{
	Use:   "preview",
	Short: "Fetch every source once and print the board",
	Long: `Fetch every configured source once, without stagger, and print the
board as text: current weather and forecast from the "weather", "forecast"
and "hourly" sources, then one line per configured bus and train tile.

Sources that fail or do not answer within --wait are shown as "--".
The inspection API and MQTT publishing are not started.

Example:
  marquee preview -c marquee.yaml
  marquee preview -c marquee.yaml --wait 10s`,
	RunE: runPreview,
}

func init() {
	rootCmd.AddCommand(previewCmd)

	previewCmd.Flags().StringP("config", "c", "", "path to config file (required)")
	previewCmd.Flags().Duration("wait", 30*time.Second, "how long to wait for the first fetches")
	_ = previewCmd.MarkFlagRequired("config")
}

func runPreview(cmd *cobra.Command, args []string) error {
	logger, err := newLogger(os.Stderr, logFormat, logLevel)
	if err != nil {
		return err
	}

	configFile, _ := cmd.Flags().GetString("config")
	wait, _ := cmd.Flags().GetDuration("wait")

	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	sources, err := config.BuildSources(cfg)
	if err != nil {
		return fmt.Errorf("failed to build sources: %w", err)
	}

	opts := []marquee.Option{
		marquee.WithSources(sources...),
		marquee.WithStagger(0),
		marquee.WithFailurePolicy(marquee.FailurePolicy(cfg.FailurePolicy)),
		marquee.WithLogger(logger),
	}
	if rl := cfg.RateLimit; rl != nil {
		opts = append(opts, marquee.WithRateLimit(rl.RPS, rl.Burst))
	}
	board, err := marquee.New(opts...)
	if err != nil {
		return fmt.Errorf("failed to create board: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	h, err := board.Start(ctx)
	if err != nil {
		return err
	}
	defer h.Stop()

	waitForFirstAttempts(ctx, h, wait)

	renderBoard(cmd.OutOrStdout(), cfg, h.Get, h.Status(), time.Now())
	return nil
}

// waitForFirstAttempts returns once every source has finished one fetch,
// or after wait.
func waitForFirstAttempts(ctx context.Context, h *marquee.Handle, wait time.Duration) {
	deadline := time.NewTimer(wait)
	defer deadline.Stop()
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()

	for {
		if allAttempted(h.Status()) {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-deadline.C:
			return
		case <-ticker.C:
		}
	}
}

func allAttempted(statuses []marquee.SourceStatus) bool {
	for _, s := range statuses {
		if s.Attempts == 0 {
			return false
		}
	}
	return true
}

// renderBoard writes the text board. get returns the current snapshot for
// a source, as [marquee.Handle.Get] does.
func renderBoard(w io.Writer, cfg *config.Config, get func(string) (marquee.Snapshot, bool), statuses []marquee.SourceStatus, now time.Time) {
	fmt.Fprintln(w, "WEATHER")
	renderWeather(w, get)

	if len(cfg.Tiles.Bus) > 0 {
		fmt.Fprintln(w, "\nBUS")
		for _, tile := range cfg.Tiles.Bus {
			line := placeholder
			if snap, ok := get(tile.Source); ok {
				line = marquee.FormatMinutes(marquee.BusArrivals(snap.Document, tile.BusQuery(), now))
			}
			fmt.Fprintf(w, "  %-5s %-8s %s\n", tile.Route, tile.Stop, line)
		}
	}

	if len(cfg.Tiles.Train) > 0 {
		fmt.Fprintln(w, "\nTRAIN")
		for _, tile := range cfg.Tiles.Train {
			line := placeholder
			if snap, ok := get(tile.Source); ok {
				line = marquee.FormatMinutes(marquee.TrainArrivals(snap.Document, tile.TrainQuery(), now))
			}
			fmt.Fprintf(w, "  %-5s %-8s %s\n", tile.Route, tile.Stop, line)
		}
	}

	fmt.Fprintln(w, "\nSOURCES")
	for _, s := range statuses {
		fmt.Fprintf(w, "  %-12s %s\n", s.Source, describeStatus(s, now))
	}
}

func renderWeather(w io.Writer, get func(string) (marquee.Snapshot, bool)) {
	current := placeholder
	if snap, ok := get(slotWeather); ok {
		if f, ok := marquee.CurrentTemperature(snap.Document); ok {
			current = fmt.Sprintf("%d°F", f)
		}
	}
	fmt.Fprintf(w, "  %-16s %s\n", "Now", current)

	if snap, ok := get(slotHourly); ok {
		if p, ok := marquee.ForecastPeriodAt(snap.Document, 0); ok {
			line := fmt.Sprintf("precip %.0f%%", p.PrecipitationChance)
			if p.HasHumidity {
				line += fmt.Sprintf("  humidity %.0f%%", p.RelativeHumidity)
			}
			fmt.Fprintf(w, "  %-16s %s\n", "Next hour", line)
		}
	}

	snap, ok := get(slotForecast)
	if !ok {
		return
	}
	periods, _ := marquee.ForecastPeriods(snap.Document)
	for i, p := range periods {
		if i == forecastPeriodsShown {
			break
		}
		fmt.Fprintf(w, "  %-16s %d°F  precip %.0f%%  %s\n", p.Name, p.Fahrenheit(), p.PrecipitationChance, p.ShortForecast)
	}
}

func describeStatus(s marquee.SourceStatus, now time.Time) string {
	var desc string
	if s.Present {
		desc = "fetched " + humanize.RelTime(s.FetchedAt, now, "ago", "from now")
		if s.Stale(now) {
			desc += " (stale)"
		}
	} else {
		desc = "no snapshot yet"
	}
	if s.LastError != "" && s.ConsecutiveFailures > 0 {
		desc += fmt.Sprintf("; last %s error: %s", s.LastErrorKind, s.LastError)
	}
	if s.State == marquee.StateStopped {
		desc += "; stopped"
	}
	return desc
}
