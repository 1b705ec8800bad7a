package marquee

import (
	"strconv"
	"strings"
	"time"
)

// CTA timestamp layouts. Both are local Chicago time without an offset.
const (
	busTimeLayout   = "20060102 15:04"
	trainTimeLayout = "2006-01-02T15:04:05"
)

// Arrival is one predicted vehicle arrival at a stop.
type Arrival struct {
	Route string
	Stop  string
	At    time.Time

	// Minutes until At, rounded down.
	Minutes int
}

// ArrivalQuery selects the predictions shown on one transit tile.
type ArrivalQuery struct {
	Route string
	Stop  string

	// WalkTime in minutes. Arrivals the rider cannot reach in time
	// (Minutes <= WalkTime) are dropped.
	WalkTime int

	// Limit caps the number of arrivals returned. Zero means no limit.
	Limit int
}

// BusArrivals reads a CTA Bus Tracker getpredictions document
// (bustime-response.prd[]) and returns the arrivals matching q, soonest first
// as ordered by the API.
//
// Prediction times are interpreted in now's location. A document without
// predictions (the API reports "no arrival times" as an error entry instead)
// yields no arrivals.
func BusArrivals(doc any, q ArrivalQuery, now time.Time) []Arrival {
	prd, ok := LookupSlice(doc, "bustime-response.prd")
	if !ok {
		return nil
	}
	return arrivals(prd, q, now, "stpid", "prdtm", busTimeLayout)
}

// TrainArrivals reads a CTA Train Tracker arrivals document (ctatt.eta[])
// and returns the arrivals matching q.
//
// Arrival times are interpreted in now's location.
func TrainArrivals(doc any, q ArrivalQuery, now time.Time) []Arrival {
	eta, ok := LookupSlice(doc, "ctatt.eta")
	if !ok {
		return nil
	}
	return arrivals(eta, q, now, "stpId", "arrT", trainTimeLayout)
}

func arrivals(items []any, q ArrivalQuery, now time.Time, stopKey, timeKey, layout string) []Arrival {
	var out []Arrival
	for _, item := range items {
		rt, _ := LookupString(item, "rt")
		stop, _ := LookupString(item, stopKey)
		if rt != q.Route || stop != q.Stop {
			continue
		}

		ts, ok := LookupString(item, timeKey)
		if !ok {
			continue
		}
		at, err := time.ParseInLocation(layout, ts, now.Location())
		if err != nil {
			continue
		}

		diff := at.Sub(now)
		if diff < 0 {
			continue
		}
		minutes := int(diff / time.Minute)
		if minutes <= q.WalkTime {
			continue
		}

		out = append(out, Arrival{Route: rt, Stop: stop, At: at, Minutes: minutes})
		if q.Limit > 0 && len(out) == q.Limit {
			break
		}
	}
	return out
}

// FormatMinutes renders arrivals the way a tile shows them: "3,7,12", or
// "--" when there are none.
func FormatMinutes(arrivals []Arrival) string {
	if len(arrivals) == 0 {
		return "--"
	}
	parts := make([]string, len(arrivals))
	for i, a := range arrivals {
		parts[i] = strconv.Itoa(a.Minutes)
	}
	return strings.Join(parts, ",")
}
