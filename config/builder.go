package config

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/jpalmerr/marquee"
)

// busTileLimit matches what fits on one row of the board.
const busTileLimit = 4

// BuildSources converts parsed configuration into SDK Source objects.
//
// Direct sources come first, in file order, followed by each group's members.
// The result order is the registration order, and so the stagger order.
// Sources without a cadence get the global one.
func BuildSources(cfg *Config) ([]marquee.Source, error) {
	var sources []marquee.Source

	for _, sc := range cfg.Sources {
		src, err := buildSource(sc, cfg.Cadence)
		if err != nil {
			return nil, err
		}
		sources = append(sources, src)
	}

	for i, gc := range cfg.Groups {
		members, err := buildGroup(gc, cfg.Cadence)
		if err != nil {
			return nil, fmt.Errorf("groups[%d]: %w", i, err)
		}
		sources = append(sources, members...)
	}

	return sources, nil
}

// buildSource converts a single SourceConfig to an SDK Source.
func buildSource(sc SourceConfig, cadence Duration) (marquee.Source, error) {
	var opts []marquee.SourceOption

	if sc.Path != "" {
		opts = append(opts, marquee.WithPath(sc.Path))
	}
	if len(sc.Query) > 0 {
		opts = append(opts, marquee.WithQuery(mapToKeyValuePairs(sc.Query)...))
	}
	if len(sc.Headers) > 0 {
		opts = append(opts, marquee.WithHeaders(mapToKeyValuePairs(sc.Headers)...))
	}

	switch {
	case sc.APIKeyParam != "":
		opts = append(opts, marquee.WithAPIKey(sc.APIKeyParam, sc.APIKey))
	case sc.APIKeyHeader != "":
		opts = append(opts, marquee.WithAPIKeyHeader(sc.APIKeyHeader, sc.APIKey))
	}

	if sc.Cadence != 0 {
		cadence = sc.Cadence
	}
	opts = append(opts, marquee.WithCadence(cadence.Duration()))

	if sc.Timeout != 0 {
		opts = append(opts, marquee.WithTimeout(sc.Timeout.Duration()))
	}
	if sc.FailurePolicy != "" {
		opts = append(opts, marquee.WithSourceFailurePolicy(marquee.FailurePolicy(sc.FailurePolicy)))
	}

	return marquee.NewSource(sc.Name, sc.URL, opts...)
}

// buildGroup expands a GroupConfig into one source per member.
func buildGroup(gc GroupConfig, cadence Duration) ([]marquee.Source, error) {
	opts := []marquee.GroupOption{
		marquee.WithURLTemplate(gc.URLTemplate),
		marquee.WithVars(gc.Vars),
	}

	members := make([]marquee.Member, len(gc.Members))
	for i, m := range gc.Members {
		members[i] = marquee.Member{Name: m.Name, Path: m.Path}
	}
	opts = append(opts, marquee.WithMembers(members...))

	if len(gc.Query) > 0 {
		opts = append(opts, marquee.WithGroupQuery(mapToKeyValuePairs(gc.Query)...))
	}
	if len(gc.Headers) > 0 {
		opts = append(opts, marquee.WithGroupHeaders(mapToKeyValuePairs(gc.Headers)...))
	}

	switch {
	case gc.APIKeyParam != "":
		opts = append(opts, marquee.WithGroupAPIKey(gc.APIKeyParam, gc.APIKey))
	case gc.APIKeyHeader != "":
		opts = append(opts, marquee.WithGroupAPIKeyHeader(gc.APIKeyHeader, gc.APIKey))
	}

	if gc.Cadence != 0 {
		cadence = gc.Cadence
	}
	opts = append(opts, marquee.WithGroupCadence(cadence.Duration()))

	if gc.Timeout != 0 {
		opts = append(opts, marquee.WithGroupTimeout(gc.Timeout.Duration()))
	}
	if gc.FailurePolicy != "" {
		opts = append(opts, marquee.WithGroupFailurePolicy(marquee.FailurePolicy(gc.FailurePolicy)))
	}

	return marquee.NewSourceGroup(opts...)
}

// BoardOptions builds the complete option set for [marquee.New]: sources,
// stagger, failure policy, rate limit, inspection port and MQTT.
func BoardOptions(cfg *Config, logger *slog.Logger) ([]marquee.Option, error) {
	sources, err := BuildSources(cfg)
	if err != nil {
		return nil, err
	}

	opts := []marquee.Option{
		marquee.WithSources(sources...),
		marquee.WithStagger(cfg.StaggerDuration()),
		marquee.WithFailurePolicy(marquee.FailurePolicy(cfg.FailurePolicy)),
	}
	if cfg.HTTP.Port != 0 {
		opts = append(opts, marquee.WithPort(cfg.HTTP.Port))
	}
	if logger != nil {
		opts = append(opts, marquee.WithLogger(logger))
	}
	if rl := cfg.RateLimit; rl != nil {
		opts = append(opts, marquee.WithRateLimit(rl.RPS, rl.Burst))
	}
	if m := cfg.MQTT; m != nil {
		opts = append(opts, marquee.WithMQTT(marquee.MQTTConfig{
			Broker:      m.Broker,
			TopicPrefix: m.TopicPrefix,
			ClientID:    m.ClientID,
			QoS:         m.QoS,
		}))
	}
	return opts, nil
}

// BusQuery returns the arrival query for a bus tile, capped at four arrivals.
func (t TileConfig) BusQuery() marquee.ArrivalQuery {
	return marquee.ArrivalQuery{Route: t.Route, Stop: t.Stop, WalkTime: t.WalkTime, Limit: busTileLimit}
}

// TrainQuery returns the arrival query for a train tile.
func (t TileConfig) TrainQuery() marquee.ArrivalQuery {
	return marquee.ArrivalQuery{Route: t.Route, Stop: t.Stop, WalkTime: t.WalkTime}
}

// mapToKeyValuePairs converts a map to a sorted slice of key-value pairs.
func mapToKeyValuePairs(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(m)*2)
	for _, k := range keys {
		pairs = append(pairs, k, m[k])
	}
	return pairs
}
