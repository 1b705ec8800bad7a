// Package config provides YAML configuration parsing for marquee.
//
// This package enables running marquee as a standalone binary with a
// configuration file, as an alternative to the programmatic SDK approach.
//
// Example configuration:
//
//	stagger: 5s
//	cadence: 120s
//	failure_policy: retry
//	http:
//	  port: 8080
//
//	sources:
//	  - name: bus
//	    url: https://www.ctabustracker.com/bustime/api/v2/getpredictions
//	    api_key: ${CTA_BUS_KEY}
//	    api_key_param: key
//	    query: {format: json, stpid: "1234"}
//	    cadence: 60s
//
//	groups:
//	  - url_template: https://api.weather.gov/gridpoints/{{.office}}/{{.x}},{{.y}}
//	    vars: {office: LOT, x: "75", y: "72"}
//	    headers: {User-Agent: marquee}
//	    members:
//	      - {name: weather, path: ""}
//	      - {name: forecast, path: /forecast}
//
//	tiles:
//	  bus: [{route: "147", stop: "1234", walk_time: 5}]
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"regexp"
	"text/template"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultStagger is applied when stagger is absent. An explicit 0s
	// starts every poller at once.
	DefaultStagger = 5 * time.Second

	// DefaultCadence is applied to sources that set no cadence of their own.
	DefaultCadence = 120 * time.Second

	minCadence = time.Second
	maxCadence = 24 * time.Hour
)

// Config is the root configuration structure for marquee.
//
// It maps directly to the YAML configuration file structure.
// Use [Load] or [Parse] to create a Config from YAML.
type Config struct {
	// Stagger is the start delay added per registered source.
	// Nil means [DefaultStagger].
	Stagger *Duration `yaml:"stagger"`

	// Cadence is the default time between fetches. Defaults to 120s.
	Cadence Duration `yaml:"cadence"`

	// FailurePolicy is "retry" (default) or "stop".
	FailurePolicy string `yaml:"failure_policy"`

	RateLimit *RateLimitConfig `yaml:"rate_limit"`
	HTTP      HTTPConfig       `yaml:"http"`
	MQTT      *MQTTConfig      `yaml:"mqtt"`

	Sources []SourceConfig `yaml:"sources"`
	Groups  []GroupConfig  `yaml:"groups"`

	// Tiles describe what the preview renders. Pollers ignore them.
	Tiles TilesConfig `yaml:"tiles"`
}

// RateLimitConfig caps outbound requests across all sources.
type RateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

// HTTPConfig configures the inspection API. Port 0 disables it.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// MQTTConfig enables publishing snapshots to a broker.
type MQTTConfig struct {
	// Broker supports environment variable substitution.
	Broker      string `yaml:"broker"`
	TopicPrefix string `yaml:"topic_prefix"`
	ClientID    string `yaml:"client_id"`
	QoS         byte   `yaml:"qos"`
}

// SourceConfig defines a single polled endpoint.
//
// URL, APIKey, header values and query values support environment variable
// substitution: ${VAR} or ${VAR:-default}.
type SourceConfig struct {
	Name string `yaml:"name"`
	URL  string `yaml:"url"`

	// Path is appended to URL. Must be empty or start with "/".
	Path string `yaml:"path"`

	Query   map[string]string `yaml:"query"`
	Headers map[string]string `yaml:"headers"`

	// APIKey is sent as the query parameter APIKeyParam or the header
	// APIKeyHeader. Exactly one of the two must be set with a key.
	APIKey       string `yaml:"api_key"`
	APIKeyParam  string `yaml:"api_key_param"`
	APIKeyHeader string `yaml:"api_key_header"`

	// Cadence overrides the global cadence. Must be between 1s and 24h.
	Cadence Duration `yaml:"cadence"`

	// Timeout is the request timeout. Defaults to 10s.
	Timeout Duration `yaml:"timeout"`

	// FailurePolicy overrides the global failure policy.
	FailurePolicy string `yaml:"failure_policy"`
}

// GroupConfig defines sources that share a base URL, built from a template.
//
// Every member becomes one source named after the member, fetching
// base URL + member path. All other settings are shared.
type GroupConfig struct {
	// URLTemplate is a Go template. Vars keys are available as {{.key}}.
	URLTemplate string            `yaml:"url_template"`
	Vars        map[string]string `yaml:"vars"`

	Query        map[string]string `yaml:"query"`
	Headers      map[string]string `yaml:"headers"`
	APIKey       string            `yaml:"api_key"`
	APIKeyParam  string            `yaml:"api_key_param"`
	APIKeyHeader string            `yaml:"api_key_header"`

	Cadence       Duration `yaml:"cadence"`
	Timeout       Duration `yaml:"timeout"`
	FailurePolicy string   `yaml:"failure_policy"`

	Members []MemberConfig `yaml:"members"`
}

// MemberConfig is one source within a group.
type MemberConfig struct {
	Name string `yaml:"name"`
	Path string `yaml:"path"`
}

// TilesConfig lists the transit tiles shown by the preview.
type TilesConfig struct {
	Bus   []TileConfig `yaml:"bus"`
	Train []TileConfig `yaml:"train"`
}

// TileConfig selects the arrivals for one tile.
type TileConfig struct {
	// Source is the snapshot slot to read. Defaults to "bus" for bus
	// tiles and "train" for train tiles.
	Source string `yaml:"source"`

	Route string `yaml:"route"`
	Stop  string `yaml:"stop"`

	// WalkTime in minutes. Arrivals at or below it are not shown.
	WalkTime int `yaml:"walk_time"`
}

// Duration wraps time.Duration for YAML unmarshalling.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}

	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}

	*d = Duration(parsed)
	return nil
}

// Duration returns the underlying time.Duration value.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// StaggerDuration returns the configured stagger, or [DefaultStagger].
func (c *Config) StaggerDuration() time.Duration {
	if c.Stagger == nil {
		return DefaultStagger
	}
	return c.Stagger.Duration()
}

// envVarPattern matches ${VAR} and ${VAR:-default} patterns.
// Group 1: variable name
// Group 2: the ":-default" part, present only when a default was given
// Group 3: the default value (may be empty for ${VAR:-})
var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(:-([^}]*))?\}`)

// expandEnvVars replaces ${VAR} and ${VAR:-default} patterns with environment values.
func expandEnvVars(s string) (string, error) {
	var firstErr error

	result := envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		if firstErr != nil {
			return match
		}

		sub := envVarPattern.FindStringSubmatch(match)
		name := sub[1]
		hasDefault := sub[2] != ""

		value, exists := os.LookupEnv(name)
		if !exists {
			if hasDefault {
				return sub[3]
			}
			firstErr = fmt.Errorf("environment variable %q is not set", name)
			return match
		}
		return value
	})

	if firstErr != nil {
		return "", firstErr
	}
	return result, nil
}

// expandMap expands every value of m in place.
func expandMap(m map[string]string) (key string, err error) {
	for k, v := range m {
		expanded, err := expandEnvVars(v)
		if err != nil {
			return k, err
		}
		m[k] = expanded
	}
	return "", nil
}

// Load reads and parses a YAML configuration file.
//
// Environment variables in the file are expanded after parsing, so a .env
// file must be loaded into the environment before calling Load.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse parses YAML configuration data.
//
// Defaults are applied for Cadence (120s) and FailurePolicy (retry);
// a missing Stagger reads as 5s through [Config.StaggerDuration].
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if cfg.Cadence == 0 {
		cfg.Cadence = Duration(DefaultCadence)
	}
	if cfg.FailurePolicy == "" {
		cfg.FailurePolicy = "retry"
	}
	if cfg.RateLimit != nil && cfg.RateLimit.Burst == 0 {
		cfg.RateLimit.Burst = 1
	}

	if err := cfg.expandAndValidate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// expandAndValidate expands environment variables and validates the config.
func (c *Config) expandAndValidate() error {
	if c.Stagger != nil && c.Stagger.Duration() < 0 {
		return fmt.Errorf("stagger cannot be negative, got %s", c.Stagger.Duration())
	}
	if err := validateCadence(c.Cadence); err != nil {
		return err
	}
	if err := validatePolicy(c.FailurePolicy); err != nil {
		return err
	}

	if rl := c.RateLimit; rl != nil {
		if rl.RPS <= 0 {
			return fmt.Errorf("rate_limit: rps must be positive, got %v", rl.RPS)
		}
		if rl.Burst < 1 {
			return fmt.Errorf("rate_limit: burst must be at least 1, got %d", rl.Burst)
		}
	}

	if c.HTTP.Port < 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http: port must be between 0 and 65535, got %d", c.HTTP.Port)
	}

	if m := c.MQTT; m != nil {
		broker, err := expandEnvVars(m.Broker)
		if err != nil {
			return fmt.Errorf("mqtt: broker: %w", err)
		}
		m.Broker = broker
		if m.Broker == "" {
			return errors.New("mqtt: broker is required")
		}
		if m.QoS > 2 {
			return fmt.Errorf("mqtt: qos must be 0, 1 or 2, got %d", m.QoS)
		}
	}

	names := make(map[string]string)
	claim := func(name, owner string) error {
		if prev, ok := names[name]; ok {
			return fmt.Errorf("%s: duplicate source name %q (already used by %s)", owner, name, prev)
		}
		names[name] = owner
		return nil
	}

	for i := range c.Sources {
		sc := &c.Sources[i]
		if sc.Name == "" {
			return fmt.Errorf("sources[%d]: name is required", i)
		}
		ctx := fmt.Sprintf("sources[%d] (%s)", i, sc.Name)
		if err := sc.expandAndValidate(ctx); err != nil {
			return err
		}
		if err := claim(sc.Name, ctx); err != nil {
			return err
		}
	}

	for i := range c.Groups {
		g := &c.Groups[i]
		ctx := fmt.Sprintf("groups[%d]", i)
		if err := g.expandAndValidate(ctx); err != nil {
			return err
		}
		for j, m := range g.Members {
			if err := claim(m.Name, fmt.Sprintf("%s.members[%d]", ctx, j)); err != nil {
				return err
			}
		}
	}

	if len(c.Sources) == 0 && len(c.Groups) == 0 {
		return errors.New("at least one source or group must be defined")
	}

	for i := range c.Tiles.Bus {
		if err := c.Tiles.Bus[i].validate(fmt.Sprintf("tiles.bus[%d]", i), "bus", names); err != nil {
			return err
		}
	}
	for i := range c.Tiles.Train {
		if err := c.Tiles.Train[i].validate(fmt.Sprintf("tiles.train[%d]", i), "train", names); err != nil {
			return err
		}
	}

	return nil
}

func (sc *SourceConfig) expandAndValidate(ctx string) error {
	if sc.URL == "" {
		return fmt.Errorf("%s: url is required", ctx)
	}
	expanded, err := expandEnvVars(sc.URL)
	if err != nil {
		return fmt.Errorf("%s: url: %w", ctx, err)
	}
	sc.URL = expanded

	parsedURL, err := url.Parse(sc.URL)
	if err != nil {
		return fmt.Errorf("%s: invalid url: %w", ctx, err)
	}
	if parsedURL.Scheme == "" {
		return fmt.Errorf("%s: url must have a scheme (http:// or https://)", ctx)
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return fmt.Errorf("%s: url scheme must be http or https, got %q", ctx, parsedURL.Scheme)
	}

	if sc.Path != "" && sc.Path[0] != '/' {
		return fmt.Errorf("%s: path must start with /", ctx)
	}

	key, err := expandCredentials(&sc.APIKey, sc.APIKeyParam, sc.APIKeyHeader, sc.Headers, sc.Query)
	if err != nil {
		if key != "" {
			return fmt.Errorf("%s: %s: %w", ctx, key, err)
		}
		return fmt.Errorf("%s: %w", ctx, err)
	}

	if err := validateDurations(sc.Cadence, sc.Timeout); err != nil {
		return fmt.Errorf("%s: %w", ctx, err)
	}
	if err := validatePolicy(sc.FailurePolicy); err != nil {
		return fmt.Errorf("%s: %w", ctx, err)
	}
	return nil
}

func (g *GroupConfig) expandAndValidate(ctx string) error {
	if g.URLTemplate == "" {
		return fmt.Errorf("%s: url_template is required", ctx)
	}
	expanded, err := expandEnvVars(g.URLTemplate)
	if err != nil {
		return fmt.Errorf("%s: url_template: %w", ctx, err)
	}
	g.URLTemplate = expanded

	// fail fast before the SDK tries to use an invalid template
	if _, err := template.New("").Parse(g.URLTemplate); err != nil {
		return fmt.Errorf("%s: invalid url_template: %w", ctx, err)
	}

	if k, err := expandMap(g.Vars); err != nil {
		return fmt.Errorf("%s: vars[%s]: %w", ctx, k, err)
	}
	for k, v := range g.Vars {
		if v == "" {
			return fmt.Errorf("%s: vars[%s] is empty", ctx, k)
		}
	}

	key, err := expandCredentials(&g.APIKey, g.APIKeyParam, g.APIKeyHeader, g.Headers, g.Query)
	if err != nil {
		if key != "" {
			return fmt.Errorf("%s: %s: %w", ctx, key, err)
		}
		return fmt.Errorf("%s: %w", ctx, err)
	}

	if err := validateDurations(g.Cadence, g.Timeout); err != nil {
		return fmt.Errorf("%s: %w", ctx, err)
	}
	if err := validatePolicy(g.FailurePolicy); err != nil {
		return fmt.Errorf("%s: %w", ctx, err)
	}

	if len(g.Members) == 0 {
		return fmt.Errorf("%s: at least one member is required", ctx)
	}
	for j, m := range g.Members {
		if m.Name == "" {
			return fmt.Errorf("%s.members[%d]: name is required", ctx, j)
		}
		if m.Path != "" && m.Path[0] != '/' {
			return fmt.Errorf("%s.members[%d] (%s): path must start with /", ctx, j, m.Name)
		}
	}
	return nil
}

// expandCredentials expands the api key, headers and query values, and
// checks that the key has exactly one destination. On error, field names
// the offending entry when there is one.
func expandCredentials(apiKey *string, param, header string, headers, query map[string]string) (field string, err error) {
	if k, err := expandMap(headers); err != nil {
		return "headers[" + k + "]", err
	}
	if k, err := expandMap(query); err != nil {
		return "query[" + k + "]", err
	}

	key, err := expandEnvVars(*apiKey)
	if err != nil {
		return "api_key", err
	}
	*apiKey = key

	switch {
	case param != "" && header != "":
		return "", errors.New("api_key_param and api_key_header are mutually exclusive")
	case key != "" && param == "" && header == "":
		return "", errors.New("api_key requires api_key_param or api_key_header")
	case key == "" && (param != "" || header != ""):
		return "", errors.New("api_key is empty")
	}
	return "", nil
}

func validateCadence(d Duration) error {
	if d.Duration() < minCadence {
		return fmt.Errorf("cadence must be at least %s, got %s", minCadence, d.Duration())
	}
	if d.Duration() > maxCadence {
		return fmt.Errorf("cadence must not exceed %s, got %s", maxCadence, d.Duration())
	}
	return nil
}

// validateDurations checks per-source overrides. Zero means unset.
func validateDurations(cadence, timeout Duration) error {
	if cadence != 0 {
		if err := validateCadence(cadence); err != nil {
			return err
		}
	}
	if timeout < 0 {
		return fmt.Errorf("timeout cannot be negative, got %s", timeout.Duration())
	}
	return nil
}

func validatePolicy(p string) error {
	switch p {
	case "", "retry", "stop":
		return nil
	default:
		return fmt.Errorf("failure_policy must be retry or stop, got %q", p)
	}
}

func (t *TileConfig) validate(ctx, defaultSource string, sources map[string]string) error {
	if t.Source == "" {
		t.Source = defaultSource
	}
	if _, ok := sources[t.Source]; !ok {
		return fmt.Errorf("%s: unknown source %q", ctx, t.Source)
	}
	if t.Route == "" {
		return fmt.Errorf("%s: route is required", ctx)
	}
	if t.Stop == "" {
		return fmt.Errorf("%s: stop is required", ctx)
	}
	if t.WalkTime < 0 {
		return fmt.Errorf("%s: walk_time cannot be negative, got %d", ctx, t.WalkTime)
	}
	return nil
}
