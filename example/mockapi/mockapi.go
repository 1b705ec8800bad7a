// Package mockapi serves CTA Bus Tracker, CTA Train Tracker and weather.gov
// shaped JSON for running marquee without API keys or network access.
//
// Arrivals count down in real time and temperatures drift. Roughly one bus
// request in ten fails with 503 so the board's retention behaviour is visible.
package mockapi

import (
	"fmt"
	"hash/fnv"
	"log/slog"
	"math/rand"
	"net/http"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// CTA timestamps are local wall-clock times without an offset.
const (
	busTimeLayout   = "20060102 15:04"
	trainTimeLayout = "2006-01-02T15:04:05"
)

type server struct {
	start time.Time

	mu       sync.Mutex
	busCalls int
	tempC    float64
}

// Handler returns the mock API. Paths mirror the real services:
//
//	GET /bustime/api/v2/getpredictions?key=&rt=&stpid=
//	GET /api/1.0/ttarrivals.aspx?key=&rt=&stpid=
//	GET /gridpoints/{office}/{xy}
//	GET /gridpoints/{office}/{xy}/forecast
//	GET /gridpoints/{office}/{xy}/forecast/hourly
func Handler() http.Handler {
	s := &server{start: time.Now(), tempC: 18}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /bustime/api/v2/getpredictions", s.handleBus)
	mux.HandleFunc("GET /api/1.0/ttarrivals.aspx", s.handleTrain)
	mux.HandleFunc("GET /gridpoints/{office}/{xy}", s.requireUserAgent(s.handleGridpoint))
	mux.HandleFunc("GET /gridpoints/{office}/{xy}/forecast", s.requireUserAgent(s.handleForecast))
	mux.HandleFunc("GET /gridpoints/{office}/{xy}/forecast/hourly", s.requireUserAgent(s.handleHourly))
	return mux
}

// ListenAndServe runs [Handler] on addr.
func ListenAndServe(addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return srv.ListenAndServe()
}

func (s *server) handleBus(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get("key") == "" {
		writeJSON(w, http.StatusOK, map[string]any{
			"bustime-response": map[string]any{
				"error": []map[string]string{{"msg": "No API access key supplied"}},
			},
		})
		return
	}

	s.mu.Lock()
	s.busCalls++
	call := s.busCalls
	s.mu.Unlock()
	if call%10 == 0 {
		slog.Info("mock bus outage", "call", call)
		http.Error(w, "service unavailable", http.StatusServiceUnavailable)
		return
	}

	rt, stop := q.Get("rt"), q.Get("stpid")
	now := time.Now()
	prd := make([]map[string]string, 0, 5)
	for _, at := range s.arrivals(rt+stop, 7*time.Minute, 5, now) {
		prd = append(prd, map[string]string{
			"rt":    rt,
			"stpid": stop,
			"prdtm": at.Format(busTimeLayout),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"bustime-response": map[string]any{"prd": prd},
	})
}

func (s *server) handleTrain(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	rt, stop := q.Get("rt"), q.Get("stpid")
	now := time.Now()

	eta := make([]map[string]string, 0, 4)
	for _, at := range s.arrivals(rt+stop, 5*time.Minute, 4, now) {
		eta = append(eta, map[string]string{
			"rt":    rt,
			"stpId": stop,
			"arrT":  at.Format(trainTimeLayout),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ctatt": map[string]any{
			"tmst": now.Format(trainTimeLayout),
			"eta":  eta,
		},
	})
}

func (s *server) handleGridpoint(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"properties": map[string]any{
			"temperature": map[string]any{
				"uom": "wmoUnit:degC",
				"values": []map[string]any{
					{"validTime": time.Now().UTC().Format(time.RFC3339) + "/PT1H", "value": s.temperature()},
				},
			},
		},
	})
}

func (s *server) handleForecast(w http.ResponseWriter, r *http.Request) {
	c := s.temperature()
	writeJSON(w, http.StatusOK, map[string]any{
		"properties": map[string]any{
			"periods": []map[string]any{
				period(1, "Tonight", c-4, nil, 80, "Mostly Cloudy"),
				period(2, "Tomorrow", c+3, 40, 65, "Chance Showers"),
			},
		},
	})
}

func (s *server) handleHourly(w http.ResponseWriter, r *http.Request) {
	c := s.temperature()
	writeJSON(w, http.StatusOK, map[string]any{
		"properties": map[string]any{
			"periods": []map[string]any{
				period(1, "", c, 15, 72, "Partly Cloudy"),
			},
		},
	})
}

// requireUserAgent rejects requests without a User-Agent, as weather.gov does.
func (s *server) requireUserAgent(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") == "" {
			http.Error(w, "a User-Agent header is required", http.StatusForbidden)
			return
		}
		next(w, r)
	}
}

// arrivals returns n arrival times spaced headway apart. The schedule is
// fixed per key, so successive polls count down.
func (s *server) arrivals(key string, headway time.Duration, n int, now time.Time) []time.Time {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	offset := time.Duration(h.Sum32()%uint32(headway/time.Second)) * time.Second

	elapsed := now.Sub(s.start) + offset
	next := now.Add(headway - elapsed%headway)

	out := make([]time.Time, n)
	for i := range out {
		out[i] = next.Add(time.Duration(i) * headway)
	}
	return out
}

// temperature drifts by up to half a degree per call.
func (s *server) temperature() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tempC += rand.Float64() - 0.5
	return s.tempC
}

func period(n int, name string, tempC float64, precip any, humidity float64, short string) map[string]any {
	return map[string]any{
		"number":                     n,
		"name":                       name,
		"temperature":                int(tempC*9/5 + 32),
		"temperatureUnit":            "F",
		"probabilityOfPrecipitation": map[string]any{"unitCode": "wmoUnit:percent", "value": precip},
		"relativeHumidity":           map[string]any{"unitCode": "wmoUnit:percent", "value": humidity},
		"shortForecast":              short,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to write response", "error", err)
	}
}

// BaseURL returns the http URL for a listen address such as ":9999".
func BaseURL(addr string) string {
	return fmt.Sprintf("http://localhost%s", addr)
}
