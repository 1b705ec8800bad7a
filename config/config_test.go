package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestParse_MinimalConfig(t *testing.T) {
	yaml := `
sources:
  - name: bus
    url: https://example.com/predictions
`
	cfg, err := Parse([]byte(yaml))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	// check defaults applied
	if cfg.StaggerDuration() != 5*time.Second {
		t.Errorf("StaggerDuration() = %v, want 5s", cfg.StaggerDuration())
	}
	if cfg.Cadence.Duration() != 120*time.Second {
		t.Errorf("Cadence = %v, want 120s", cfg.Cadence.Duration())
	}
	if cfg.FailurePolicy != "retry" {
		t.Errorf("FailurePolicy = %q, want retry", cfg.FailurePolicy)
	}
	if cfg.HTTP.Port != 0 {
		t.Errorf("HTTP.Port = %d, want 0 (disabled)", cfg.HTTP.Port)
	}
	if cfg.MQTT != nil || cfg.RateLimit != nil {
		t.Error("optional sections should stay nil when absent")
	}
}

func TestParse_FullConfig(t *testing.T) {
	t.Setenv("TEST_BUS_KEY", "secret")

	yaml := `
stagger: 2s
cadence: 90s
failure_policy: stop
rate_limit: {rps: 2, burst: 4}
http: {port: 9090}
mqtt: {broker: "tcp://localhost:1883", topic_prefix: board, client_id: kitchen, qos: 1}

sources:
  - name: bus
    url: https://www.ctabustracker.com/bustime/api/v2/getpredictions
    api_key: ${TEST_BUS_KEY}
    api_key_param: key
    query: {format: json, stpid: "1234"}
    cadence: 60s
    timeout: 5s
    failure_policy: retry

groups:
  - url_template: https://api.weather.gov/gridpoints/{{.office}}/{{.x}},{{.y}}
    vars: {office: LOT, x: "75", y: "72"}
    headers: {User-Agent: marquee}
    members:
      - {name: weather, path: ""}
      - {name: forecast, path: /forecast}
      - {name: hourly, path: /forecast/hourly}

tiles:
  bus: [{route: "147", stop: "1234", walk_time: 5}]
`
	cfg, err := Parse([]byte(yaml))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if cfg.StaggerDuration() != 2*time.Second {
		t.Errorf("StaggerDuration() = %v, want 2s", cfg.StaggerDuration())
	}
	if cfg.Cadence.Duration() != 90*time.Second {
		t.Errorf("Cadence = %v, want 90s", cfg.Cadence.Duration())
	}
	if cfg.FailurePolicy != "stop" {
		t.Errorf("FailurePolicy = %q, want stop", cfg.FailurePolicy)
	}
	if cfg.RateLimit == nil || cfg.RateLimit.RPS != 2 || cfg.RateLimit.Burst != 4 {
		t.Errorf("RateLimit = %+v", cfg.RateLimit)
	}
	if cfg.HTTP.Port != 9090 {
		t.Errorf("HTTP.Port = %d, want 9090", cfg.HTTP.Port)
	}
	if cfg.MQTT == nil || cfg.MQTT.Broker != "tcp://localhost:1883" || cfg.MQTT.QoS != 1 || cfg.MQTT.ClientID != "kitchen" {
		t.Errorf("MQTT = %+v", cfg.MQTT)
	}

	src := cfg.Sources[0]
	if src.APIKey != "secret" {
		t.Errorf("APIKey = %q, want expanded value", src.APIKey)
	}
	if src.Query["stpid"] != "1234" {
		t.Errorf("Query[stpid] = %q, want 1234", src.Query["stpid"])
	}
	if src.Cadence.Duration() != time.Minute || src.Timeout.Duration() != 5*time.Second {
		t.Errorf("Cadence, Timeout = %v, %v", src.Cadence.Duration(), src.Timeout.Duration())
	}

	g := cfg.Groups[0]
	if len(g.Members) != 3 || g.Members[2].Path != "/forecast/hourly" {
		t.Errorf("Members = %+v", g.Members)
	}
	if g.Headers["User-Agent"] != "marquee" {
		t.Errorf("Headers[User-Agent] = %q", g.Headers["User-Agent"])
	}

	if len(cfg.Tiles.Bus) != 1 || cfg.Tiles.Bus[0].Source != "bus" || cfg.Tiles.Bus[0].WalkTime != 5 {
		t.Errorf("Tiles.Bus = %+v", cfg.Tiles.Bus)
	}
}

func TestParse_ExplicitZeroStagger(t *testing.T) {
	yaml := `
stagger: 0s
sources:
  - {name: a, url: "https://example.com"}
`
	cfg, err := Parse([]byte(yaml))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if cfg.StaggerDuration() != 0 {
		t.Errorf("StaggerDuration() = %v, want 0", cfg.StaggerDuration())
	}
}

func TestParse_RateLimitBurstDefault(t *testing.T) {
	yaml := `
rate_limit: {rps: 1}
sources:
  - {name: a, url: "https://example.com"}
`
	cfg, err := Parse([]byte(yaml))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if cfg.RateLimit.Burst != 1 {
		t.Errorf("Burst = %d, want 1", cfg.RateLimit.Burst)
	}
}

func TestParse_TileSourceOverride(t *testing.T) {
	yaml := `
sources:
  - {name: red-line, url: "https://example.com"}
tiles:
  train: [{source: red-line, route: Red, stop: "30001"}]
`
	cfg, err := Parse([]byte(yaml))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if cfg.Tiles.Train[0].Source != "red-line" {
		t.Errorf("Source = %q, want red-line", cfg.Tiles.Train[0].Source)
	}
}

func TestParse_ValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "no sources",
			yaml:    `cadence: 60s`,
			wantErr: "at least one source or group",
		},
		{
			name:    "missing name",
			yaml:    "sources:\n  - url: https://example.com",
			wantErr: "sources[0]: name is required",
		},
		{
			name:    "missing url",
			yaml:    "sources:\n  - name: bus",
			wantErr: "sources[0] (bus): url is required",
		},
		{
			name:    "no scheme",
			yaml:    "sources:\n  - {name: bus, url: example.com}",
			wantErr: "url must have a scheme",
		},
		{
			name:    "bad scheme",
			yaml:    "sources:\n  - {name: bus, url: \"ftp://example.com\"}",
			wantErr: "url scheme must be http or https",
		},
		{
			name:    "index in message",
			yaml:    "sources:\n  - {name: a, url: \"https://a.com\"}\n  - {name: b, url: \"https://b.com\"}\n  - {name: bus, url: \"https://c.com\", cadence: 10ms}",
			wantErr: "sources[2] (bus): cadence must be at least 1s",
		},
		{
			name:    "cadence too long",
			yaml:    "cadence: 25h\nsources:\n  - {name: a, url: \"https://a.com\"}",
			wantErr: "cadence must not exceed",
		},
		{
			name:    "bad duration",
			yaml:    "cadence: soon\nsources:\n  - {name: a, url: \"https://a.com\"}",
			wantErr: "invalid duration",
		},
		{
			name:    "negative stagger",
			yaml:    "stagger: -1s\nsources:\n  - {name: a, url: \"https://a.com\"}",
			wantErr: "stagger cannot be negative",
		},
		{
			name:    "unknown policy",
			yaml:    "failure_policy: panic\nsources:\n  - {name: a, url: \"https://a.com\"}",
			wantErr: "failure_policy must be retry or stop",
		},
		{
			name:    "source policy",
			yaml:    "sources:\n  - {name: a, url: \"https://a.com\", failure_policy: never}",
			wantErr: "sources[0] (a): failure_policy",
		},
		{
			name:    "key without destination",
			yaml:    "sources:\n  - {name: a, url: \"https://a.com\", api_key: k}",
			wantErr: "api_key requires api_key_param or api_key_header",
		},
		{
			name:    "param without key",
			yaml:    "sources:\n  - {name: a, url: \"https://a.com\", api_key_param: key}",
			wantErr: "api_key is empty",
		},
		{
			name:    "both key destinations",
			yaml:    "sources:\n  - {name: a, url: \"https://a.com\", api_key: k, api_key_param: key, api_key_header: X-Key}",
			wantErr: "mutually exclusive",
		},
		{
			name:    "bad path",
			yaml:    "sources:\n  - {name: a, url: \"https://a.com\", path: forecast}",
			wantErr: "path must start with /",
		},
		{
			name:    "duplicate names",
			yaml:    "sources:\n  - {name: a, url: \"https://a.com\"}\n  - {name: a, url: \"https://b.com\"}",
			wantErr: "duplicate source name \"a\"",
		},
		{
			name:    "group member clashes with source",
			yaml:    "sources:\n  - {name: forecast, url: \"https://a.com\"}\ngroups:\n  - url_template: https://b.com\n    members: [{name: forecast}]",
			wantErr: "groups[0].members[0]: duplicate source name",
		},
		{
			name:    "group without template",
			yaml:    "groups:\n  - members: [{name: a}]",
			wantErr: "groups[0]: url_template is required",
		},
		{
			name:    "group bad template",
			yaml:    "groups:\n  - url_template: \"https://{{.x\"\n    members: [{name: a}]",
			wantErr: "invalid url_template",
		},
		{
			name:    "group without members",
			yaml:    "groups:\n  - url_template: https://a.com",
			wantErr: "at least one member",
		},
		{
			name:    "group member without name",
			yaml:    "groups:\n  - url_template: https://a.com\n    members: [{path: /x}]",
			wantErr: "groups[0].members[0]: name is required",
		},
		{
			name:    "group empty var",
			yaml:    "groups:\n  - url_template: https://a.com/{{.x}}\n    vars: {x: \"\"}\n    members: [{name: a}]",
			wantErr: "vars[x] is empty",
		},
		{
			name:    "rate limit rps",
			yaml:    "rate_limit: {rps: 0, burst: 1}\nsources:\n  - {name: a, url: \"https://a.com\"}",
			wantErr: "rps must be positive",
		},
		{
			name:    "port range",
			yaml:    "http: {port: 70000}\nsources:\n  - {name: a, url: \"https://a.com\"}",
			wantErr: "port must be between",
		},
		{
			name:    "mqtt without broker",
			yaml:    "mqtt: {topic_prefix: x}\nsources:\n  - {name: a, url: \"https://a.com\"}",
			wantErr: "mqtt: broker is required",
		},
		{
			name:    "mqtt qos",
			yaml:    "mqtt: {broker: \"tcp://b:1883\", qos: 3}\nsources:\n  - {name: a, url: \"https://a.com\"}",
			wantErr: "qos must be 0, 1 or 2",
		},
		{
			name:    "tile unknown source",
			yaml:    "sources:\n  - {name: a, url: \"https://a.com\"}\ntiles:\n  bus: [{route: \"147\", stop: \"1\"}]",
			wantErr: "tiles.bus[0]: unknown source \"bus\"",
		},
		{
			name:    "tile without stop",
			yaml:    "sources:\n  - {name: train, url: \"https://a.com\"}\ntiles:\n  train: [{route: Red}]",
			wantErr: "tiles.train[0]: stop is required",
		},
		{
			name:    "tile negative walk",
			yaml:    "sources:\n  - {name: bus, url: \"https://a.com\"}\ntiles:\n  bus: [{route: \"1\", stop: \"1\", walk_time: -2}]",
			wantErr: "walk_time cannot be negative",
		},
		{
			name:    "invalid yaml",
			yaml:    "sources: [",
			wantErr: "failed to parse YAML",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			if err == nil {
				t.Fatal("Parse() error = nil, want error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %q, want to contain %q", err.Error(), tt.wantErr)
			}
		})
	}
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("MARQUEE_SET", "value")
	t.Setenv("MARQUEE_EMPTY", "")

	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{"no vars", "https://example.com", "https://example.com", false},
		{"set var", "${MARQUEE_SET}", "value", false},
		{"embedded", "https://x/${MARQUEE_SET}/y", "https://x/value/y", false},
		{"default unused", "${MARQUEE_SET:-other}", "value", false},
		{"default used", "${MARQUEE_UNSET_VAR:-fallback}", "fallback", false},
		{"empty default", "${MARQUEE_UNSET_VAR:-}", "", false},
		{"set but empty", "${MARQUEE_EMPTY:-fallback}", "", false},
		{"missing", "${MARQUEE_UNSET_VAR}", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := expandEnvVars(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("expandEnvVars() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("expandEnvVars() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParse_ExpandsHeadersQueryAndBroker(t *testing.T) {
	t.Setenv("MARQUEE_UA", "marquee (me@example.com)")
	t.Setenv("MARQUEE_STOP", "30001")
	t.Setenv("MARQUEE_BROKER", "tcp://broker:1883")

	yaml := `
mqtt: {broker: "${MARQUEE_BROKER}"}
groups:
  - url_template: https://api.weather.gov/gridpoints/{{.office}}
    vars: {office: "${MARQUEE_OFFICE:-LOT}"}
    headers: {User-Agent: "${MARQUEE_UA}"}
    members: [{name: weather}]
sources:
  - name: train
    url: https://example.com/ttarrivals.aspx
    query: {mapid: "${MARQUEE_STOP}"}
`
	cfg, err := Parse([]byte(yaml))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if cfg.MQTT.Broker != "tcp://broker:1883" {
		t.Errorf("Broker = %q", cfg.MQTT.Broker)
	}
	if cfg.Groups[0].Vars["office"] != "LOT" {
		t.Errorf("Vars[office] = %q, want LOT", cfg.Groups[0].Vars["office"])
	}
	if cfg.Groups[0].Headers["User-Agent"] != "marquee (me@example.com)" {
		t.Errorf("Headers[User-Agent] = %q", cfg.Groups[0].Headers["User-Agent"])
	}
	if cfg.Sources[0].Query["mapid"] != "30001" {
		t.Errorf("Query[mapid] = %q", cfg.Sources[0].Query["mapid"])
	}
}

func TestParse_MissingEnvVarNamesField(t *testing.T) {
	yaml := `
sources:
  - name: bus
    url: https://example.com
    headers: {Authorization: "${MARQUEE_UNSET_TOKEN}"}
`
	_, err := Parse([]byte(yaml))
	if err == nil {
		t.Fatal("Parse() error = nil, want error")
	}
	if !strings.Contains(err.Error(), "sources[0] (bus): headers[Authorization]") {
		t.Errorf("error = %q, want field path", err.Error())
	}
	if !strings.Contains(err.Error(), "MARQUEE_UNSET_TOKEN") {
		t.Errorf("error = %q, want variable name", err.Error())
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "marquee.yaml")
	content := "sources:\n  - {name: bus, url: \"https://example.com\"}\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Sources[0].Name != "bus" {
		t.Errorf("Sources[0].Name = %q, want bus", cfg.Sources[0].Name)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil || !strings.Contains(err.Error(), "failed to read config file") {
		t.Errorf("Load() error = %v, want read error", err)
	}
}
