// Package marquee keeps live JSON data from unrelated web APIs fresh for a
// small always-on display, such as a pixel-matrix transit and weather board.
//
// Each configured source is polled by its own background goroutine at its own
// cadence. The latest successfully parsed document for every source is kept
// in a snapshot store that a render loop can read at any time without
// blocking. Failed fetches never clear data: a source that goes down keeps
// showing its last good snapshot.
//
// # Quick Start
//
//	bus, _ := marquee.NewSource("bus", "https://www.ctabustracker.com/bustime/api/v2/getpredictions",
//	    marquee.WithAPIKey("key", os.Getenv("CTA_BUS_KEY")),
//	    marquee.WithQuery("format", "json", "stpid", "1234"),
//	    marquee.WithCadence(time.Minute),
//	)
//	b, _ := marquee.New(marquee.WithSource(bus))
//
//	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
//	defer stop()
//
//	h, err := b.Start(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for range time.Tick(time.Second) {
//	    snap, ok := h.Get("bus")
//	    if !ok {
//	        continue // show a placeholder
//	    }
//	    arrivals := marquee.BusArrivals(snap.Document, marquee.ArrivalQuery{Route: "147", Stop: "1234", WalkTime: 5, Limit: 4}, time.Now())
//	    fmt.Println(marquee.FormatMinutes(arrivals))
//	}
//
// # Sources and groups
//
// A [Source] is an immutable endpoint description: base URL, optional path
// suffix, query parameters, credential, headers, cadence, timeout and an
// optional failure-policy override. [NewSourceGroup] builds several sources
// that share one templated base URL, e.g. the weather.gov gridpoint and its
// forecast and hourly forecast.
//
// # Polling
//
// Source i (in registration order) makes its first request after i times the
// stagger (5 seconds by default), then sleeps its cadence (120 seconds by
// default) between requests. A poller never overlaps its own requests.
//
// Every failure is a transport failure, a non-200 status, or an undecodable
// body. Under [PolicyRetry] (the default) the poller keeps the previous
// snapshot and tries again next cycle. Under [PolicyStop] it keeps the
// previous snapshot and exits; stopped pollers are not restarted and show as
// [StateStopped] in [Handle.Status].
//
// # Reading documents
//
// Snapshots hold the decoded JSON as plain Go values. [Lookup] and friends
// read them with dot paths. [ForecastPeriods], [CurrentTemperature],
// [BusArrivals] and [TrainArrivals] read the weather.gov and CTA documents the
// board displays.
//
// # Architecture
//
// The internal packages are:
//
//   - internal/store: fixed-slot snapshot store with atomic swaps and pub/sub
//   - internal/poller: HTTP client, per-source pollers and their supervisor
//   - internal/server: optional inspection API with Server-Sent Events
//   - internal/publish: optional MQTT mirror of every snapshot
//
// The internal packages are not part of the public API and may change
// without notice.
package marquee
