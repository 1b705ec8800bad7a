package marquee

import (
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"text/template"
)

// Member is one source in a [SourceGroup]: a slot name and the path suffix
// appended to the group's base URL.
type Member struct {
	Name string
	Path string
}

// NewSourceGroup creates one [Source] per member from a shared URL template.
//
// The URL template uses Go's text/template syntax. Variable values are
// path-escaped before interpolation. Missing template keys cause an error.
// Headers, query parameters, credentials, cadence, timeout and failure policy
// are shared by every member.
//
// Sources are returned in member order, which is also their registration
// order when passed to [WithSources], so members start staggered.
//
// Example:
//
//	weather, err := marquee.NewSourceGroup(
//	    marquee.WithURLTemplate("https://api.weather.gov/gridpoints/{{.office}}/{{.x}},{{.y}}"),
//	    marquee.WithVars(map[string]string{"office": "LOT", "x": "75", "y": "72"}),
//	    marquee.WithMembers(
//	        marquee.Member{Name: "weather"},
//	        marquee.Member{Name: "forecast", Path: "/forecast"},
//	        marquee.Member{Name: "hourly", Path: "/forecast/hourly"},
//	    ),
//	    marquee.WithGroupHeaders("User-Agent", "marquee"),
//	)
func NewSourceGroup(opts ...GroupOption) ([]Source, error) {
	cfg := &groupConfig{
		vars:    make(map[string]string),
		headers: make(map[string]string),
		query:   make(map[string]string),
	}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	if cfg.urlTemplate == "" {
		return nil, errors.New("URL template required")
	}
	if len(cfg.members) == 0 {
		return nil, errors.New("at least one member required")
	}

	// missingkey=error for fail-fast behaviour
	tmpl, err := template.New("url").Option("missingkey=error").Parse(cfg.urlTemplate)
	if err != nil {
		return nil, fmt.Errorf("invalid URL template: %w", err)
	}

	baseURL, err := executeTemplate(tmpl, pathEscapeMap(cfg.vars))
	if err != nil {
		return nil, fmt.Errorf("template execution failed: %w", err)
	}

	shared := cfg.sourceOptions()
	sources := make([]Source, 0, len(cfg.members))
	for _, m := range cfg.members {
		memberOpts := append([]SourceOption{WithPath(m.Path)}, shared...)
		src, err := NewSource(m.Name, baseURL, memberOpts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create member '%s': %w", m.Name, err)
		}
		sources = append(sources, src)
	}

	return sources, nil
}

// sourceOptions converts the shared group settings into per-member options.
func (cfg *groupConfig) sourceOptions() []SourceOption {
	var opts []SourceOption
	if len(cfg.headers) > 0 {
		opts = append(opts, WithHeaders(flattenMap(cfg.headers)...))
	}
	if len(cfg.query) > 0 {
		opts = append(opts, WithQuery(flattenMap(cfg.query)...))
	}
	if cfg.apiKeyParam != "" {
		opts = append(opts, WithAPIKey(cfg.apiKeyParam, cfg.apiKey))
	}
	if cfg.apiKeyHeader != "" {
		opts = append(opts, WithAPIKeyHeader(cfg.apiKeyHeader, cfg.apiKey))
	}
	if cfg.cadence > 0 {
		opts = append(opts, WithCadence(cfg.cadence))
	}
	if cfg.timeout > 0 {
		opts = append(opts, WithTimeout(cfg.timeout))
	}
	if cfg.policy != "" {
		opts = append(opts, WithSourceFailurePolicy(cfg.policy))
	}
	return opts
}

// pathEscapeMap returns a new map with all values path-escaped.
func pathEscapeMap(m map[string]string) map[string]string {
	result := make(map[string]string, len(m))
	for k, v := range m {
		result[k] = url.PathEscape(v)
	}
	return result
}

// executeTemplate renders the template with the given data.
func executeTemplate(tmpl *template.Template, data map[string]string) (string, error) {
	var buf strings.Builder
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// flattenMap converts a map to a slice of key-value pairs for variadic functions.
// Keys are sorted for deterministic output.
func flattenMap(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	result := make([]string, 0, len(m)*2)
	for _, k := range keys {
		result = append(result, k, m[k])
	}
	return result
}
