package marquee

import (
	"bytes"
	"log/slog"
	"net/url"
	"strings"
	"testing"
	"time"
)

func TestNewSource_Valid(t *testing.T) {
	s, err := NewSource("weather", "https://api.weather.gov/gridpoints/LOT/75,72")
	if err != nil {
		t.Fatalf("NewSource() error = %v", err)
	}

	if s.Name() != "weather" {
		t.Errorf("Name() = %v, want %v", s.Name(), "weather")
	}
	if s.URL() != "https://api.weather.gov/gridpoints/LOT/75,72" {
		t.Errorf("URL() = %v", s.URL())
	}
	if s.Timeout() != DefaultTimeout {
		t.Errorf("Timeout() = %v, want %v", s.Timeout(), DefaultTimeout)
	}
	if s.Cadence() != 0 {
		t.Errorf("Cadence() = %v, want 0 (board default)", s.Cadence())
	}
	if s.FailurePolicy() != "" {
		t.Errorf("FailurePolicy() = %q, want inherited", s.FailurePolicy())
	}
}

func TestNewSource_EmptyName(t *testing.T) {
	for _, name := range []string{"", "   "} {
		if _, err := NewSource(name, "https://example.com"); err == nil {
			t.Errorf("NewSource(%q) expected error, got nil", name)
		}
	}
}

func TestNewSource_InvalidURL(t *testing.T) {
	tests := []struct {
		name string
		url  string
	}{
		{"no scheme", "api.example.com/data"},
		{"empty url", ""},
		{"just path", "/data"},
		{"ftp scheme", "ftp://example.com/data"},
		{"no host", "https:///data"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewSource("x", tt.url); err == nil {
				t.Errorf("NewSource() expected error for URL %q, got nil", tt.url)
			}
		})
	}
}

func TestSource_URLBuilding(t *testing.T) {
	tests := []struct {
		name        string
		base        string
		opts        []SourceOption
		wantURL     string
		wantRequest string
	}{
		{
			name:        "path suffix",
			base:        "https://api.weather.gov/gridpoints/LOT/75,72",
			opts:        []SourceOption{WithPath("/forecast/hourly")},
			wantURL:     "https://api.weather.gov/gridpoints/LOT/75,72/forecast/hourly",
			wantRequest: "https://api.weather.gov/gridpoints/LOT/75,72/forecast/hourly",
		},
		{
			name:        "query and key param",
			base:        "https://www.ctabustracker.com/bustime/api/v2/getpredictions",
			opts:        []SourceOption{WithQuery("format", "json", "stpid", "1234"), WithAPIKey("key", "s3cret")},
			wantURL:     "https://www.ctabustracker.com/bustime/api/v2/getpredictions?format=json&stpid=1234",
			wantRequest: "https://www.ctabustracker.com/bustime/api/v2/getpredictions?format=json&key=s3cret&stpid=1234",
		},
		{
			name:        "base query kept",
			base:        "https://example.com/ttarrivals.aspx?mapid=40380",
			opts:        []SourceOption{WithQuery("outputType", "JSON")},
			wantURL:     "https://example.com/ttarrivals.aspx?mapid=40380&outputType=JSON",
			wantRequest: "https://example.com/ttarrivals.aspx?mapid=40380&outputType=JSON",
		},
		{
			name:        "header key leaves URL alone",
			base:        "https://example.com/data",
			opts:        []SourceOption{WithAPIKeyHeader("X-Api-Key", "s3cret")},
			wantURL:     "https://example.com/data",
			wantRequest: "https://example.com/data",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := NewSource("x", tt.base, tt.opts...)
			if err != nil {
				t.Fatalf("NewSource() error = %v", err)
			}
			if got := s.URL(); got != tt.wantURL {
				t.Errorf("URL() = %q, want %q", got, tt.wantURL)
			}
			if got := s.requestURL(); got != tt.wantRequest {
				t.Errorf("requestURL() = %q, want %q", got, tt.wantRequest)
			}
		})
	}
}

func TestSource_KeyNeverExposed(t *testing.T) {
	s, err := NewSource("bus", "https://example.com/p",
		WithAPIKey("key", "s3cret"),
		WithQuery("stpid", "1"),
	)
	if err != nil {
		t.Fatalf("NewSource() error = %v", err)
	}

	if strings.Contains(s.URL(), "s3cret") {
		t.Errorf("URL() leaks key: %s", s.URL())
	}
	if _, ok := s.Query()["key"]; ok {
		t.Error("Query() includes the key parameter")
	}
	if !s.HasAPIKey() {
		t.Error("HasAPIKey() = false, want true")
	}

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	logger.Info("registered", "source", s)
	if strings.Contains(buf.String(), "s3cret") {
		t.Errorf("log output leaks key: %s", buf.String())
	}
	if !strings.Contains(buf.String(), "source.name=bus") {
		t.Errorf("log output = %s, want source.name=bus", buf.String())
	}
}

func TestSource_HeaderKeyInRequestHeaders(t *testing.T) {
	s, err := NewSource("x", "https://example.com",
		WithHeaders("User-Agent", "marquee"),
		WithAPIKeyHeader("X-Api-Key", "s3cret"),
	)
	if err != nil {
		t.Fatalf("NewSource() error = %v", err)
	}

	if _, ok := s.Headers()["X-Api-Key"]; ok {
		t.Error("Headers() includes the key header")
	}
	h := s.requestHeaders()
	if h["X-Api-Key"] != "s3cret" || h["User-Agent"] != "marquee" {
		t.Errorf("requestHeaders() = %v", h)
	}
}

func TestSource_GettersReturnCopies(t *testing.T) {
	s, _ := NewSource("x", "https://example.com",
		WithHeaders("User-Agent", "marquee"),
		WithQuery("a", "1"),
	)

	h := s.Headers()
	h["User-Agent"] = "modified"
	q := s.Query()
	q["a"] = "modified"

	if s.Headers()["User-Agent"] != "marquee" {
		t.Error("mutating Headers() result changed the source")
	}
	if s.Query()["a"] != "1" {
		t.Error("mutating Query() result changed the source")
	}
}

func TestSource_PollerInfo(t *testing.T) {
	s, _ := NewSource("bus", "https://example.com/p",
		WithAPIKey("key", "k"),
		WithCadence(time.Minute),
		WithTimeout(3*time.Second),
		WithSourceFailurePolicy(PolicyStop),
	)

	info := s.pollerInfo()
	if info.Name != "bus" || info.Cadence != time.Minute || info.Timeout != 3*time.Second || info.Policy != PolicyStop {
		t.Errorf("pollerInfo() = %+v", info)
	}
	u, err := url.Parse(info.URL)
	if err != nil {
		t.Fatalf("pollerInfo().URL unparsable: %v", err)
	}
	if u.Query().Get("key") != "k" {
		t.Errorf("pollerInfo().URL = %s, want key param", info.URL)
	}
}

func TestSourceOptions_Validation(t *testing.T) {
	tests := []struct {
		name string
		opt  SourceOption
	}{
		{"path without slash", WithPath("forecast")},
		{"odd query", WithQuery("a")},
		{"empty query name", WithQuery("", "x")},
		{"odd headers", WithHeaders("User-Agent")},
		{"empty key param", WithAPIKey("", "k")},
		{"empty key", WithAPIKey("key", "")},
		{"empty key header", WithAPIKeyHeader("", "k")},
		{"empty header key", WithAPIKeyHeader("X-Key", "")},
		{"cadence too short", WithCadence(500 * time.Millisecond)},
		{"cadence too long", WithCadence(25 * time.Hour)},
		{"zero timeout", WithTimeout(0)},
		{"negative timeout", WithTimeout(-time.Second)},
		{"unknown policy", WithSourceFailurePolicy("explode")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewSource("x", "https://example.com", tt.opt); err == nil {
				t.Error("NewSource() expected error, got nil")
			}
		})
	}
}

func TestSourceOptions_BothKeyKindsRejected(t *testing.T) {
	_, err := NewSource("x", "https://example.com",
		WithAPIKey("key", "a"),
		WithAPIKeyHeader("X-Key", "b"),
	)
	if err == nil {
		t.Error("NewSource() expected error for query and header key, got nil")
	}
}

func TestSourceOptions_ErrorNamesSource(t *testing.T) {
	_, err := NewSource("bus", "https://example.com", WithCadence(0))
	if err == nil || !strings.Contains(err.Error(), `"bus"`) {
		t.Errorf("error = %v, want it to name the source", err)
	}
}
