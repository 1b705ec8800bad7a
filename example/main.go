package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jpalmerr/marquee"
	"github.com/jpalmerr/marquee/example/mockapi"
)

const mockAddr = ":9999"

func main() {
	// start mock CTA and weather.gov APIs
	go func() {
		if err := mockapi.ListenAndServe(mockAddr); err != nil {
			slog.Error("mock server error", "error", err)
		}
	}()
	time.Sleep(100 * time.Millisecond)
	base := mockapi.BaseURL(mockAddr)

	// one gridpoint, three documents, one declaration
	weather, err := marquee.NewSourceGroup(
		marquee.WithURLTemplate(base+"/gridpoints/{{.office}}/{{.x}},{{.y}}"),
		marquee.WithVars(map[string]string{"office": "LOT", "x": "75", "y": "72"}),
		marquee.WithMembers(
			marquee.Member{Name: "weather"},
			marquee.Member{Name: "forecast", Path: "/forecast"},
			marquee.Member{Name: "hourly", Path: "/forecast/hourly"},
		),
		marquee.WithGroupHeaders("User-Agent", "marquee-example"),
		marquee.WithGroupCadence(30*time.Second),
	)
	if err != nil {
		slog.Error("failed to create weather sources", "error", err)
		os.Exit(1)
	}

	bus, err := marquee.NewSource("bus", base+"/bustime/api/v2/getpredictions",
		marquee.WithAPIKey("key", "demo-key"),
		marquee.WithQuery("format", "json", "rt", "147", "stpid", "1234"),
		marquee.WithCadence(10*time.Second),
	)
	if err != nil {
		slog.Error("failed to create bus source", "error", err)
		os.Exit(1)
	}

	train, err := marquee.NewSource("train", base+"/api/1.0/ttarrivals.aspx",
		marquee.WithAPIKey("key", "demo-key"),
		marquee.WithQuery("outputType", "JSON", "rt", "Red", "stpid", "30001"),
		marquee.WithCadence(15*time.Second),
	)
	if err != nil {
		slog.Error("failed to create train source", "error", err)
		os.Exit(1)
	}

	sources := append([]marquee.Source{bus, train}, weather...)

	board, err := marquee.New(
		marquee.WithSources(sources...),
		marquee.WithStagger(time.Second),
		marquee.WithPort(8080),
		marquee.WithUpdateCallback(func(u marquee.Update) {
			if !u.OK() {
				slog.Warn("fetch failed, keeping previous snapshot", "source", u.Source, "kind", u.ErrKind)
			}
		}),
	)
	if err != nil {
		slog.Error("failed to create board", "error", err)
		os.Exit(1)
	}

	fmt.Println()
	fmt.Println("  marquee demo")
	fmt.Println()
	fmt.Println("  Sources:     bus (10s), train (15s), weather/forecast/hourly (30s)")
	fmt.Println("  Inspect:     curl localhost:8080/api/sources")
	fmt.Println("  Live feed:   curl -N localhost:8080/api/sse")
	fmt.Println("  Press Ctrl+C to stop")
	fmt.Println()

	// set up context with signal handling for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	h, err := board.Start(ctx)
	if err != nil {
		slog.Error("marquee error", "error", err)
		os.Exit(1)
	}

	// redraw the two transit rows every few seconds, as a display loop would
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-h.Done():
			return
		case now := <-ticker.C:
			fmt.Printf("  147 %-12s  Red %-12s  %s\n",
				arrivalsLine(h, "bus", now, marquee.BusArrivals, 4),
				arrivalsLine(h, "train", now, marquee.TrainArrivals, 0),
				temperatureLine(h),
			)
		}
	}
}

type arrivalsReader func(doc any, q marquee.ArrivalQuery, now time.Time) []marquee.Arrival

func arrivalsLine(h *marquee.Handle, source string, now time.Time, read arrivalsReader, limit int) string {
	snap, ok := h.Get(source)
	if !ok {
		return "--"
	}
	q := marquee.ArrivalQuery{Route: "147", Stop: "1234", WalkTime: 1, Limit: limit}
	if source == "train" {
		q.Route, q.Stop = "Red", "30001"
	}
	return marquee.FormatMinutes(read(snap.Document, q, now))
}

func temperatureLine(h *marquee.Handle) string {
	snap, ok := h.Get("weather")
	if !ok {
		return "--°F"
	}
	f, ok := marquee.CurrentTemperature(snap.Document)
	if !ok {
		return "--°F"
	}
	return fmt.Sprintf("%d°F", f)
}
