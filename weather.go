package marquee

import (
	"math"
	"time"
)

// ForecastPeriod is one entry of a weather.gov forecast or hourly forecast
// document (properties.periods).
type ForecastPeriod struct {
	Number    int
	Name      string
	StartTime time.Time
	EndTime   time.Time
	IsDaytime bool

	Temperature     float64
	TemperatureUnit string

	// PrecipitationChance is a percentage. The API sends null for "none
	// expected", which is read as 0.
	PrecipitationChance float64

	// RelativeHumidity is a percentage, valid when HasHumidity is true.
	RelativeHumidity float64
	HasHumidity      bool

	ShortForecast string
}

// Fahrenheit returns the period's temperature in °F, rounded.
func (p ForecastPeriod) Fahrenheit() int {
	if p.TemperatureUnit == "C" {
		return CelsiusToFahrenheit(p.Temperature)
	}
	return int(math.Round(p.Temperature))
}

// CelsiusToFahrenheit converts and rounds to the nearest degree.
func CelsiusToFahrenheit(c float64) int {
	return int(math.Round(c*9/5 + 32))
}

// ForecastPeriods reads properties.periods from a weather.gov forecast or
// hourly forecast document. ok is false if the document has no periods array.
// Periods missing a temperature are skipped.
func ForecastPeriods(doc any) (periods []ForecastPeriod, ok bool) {
	raw, ok := LookupSlice(doc, "properties.periods")
	if !ok {
		return nil, false
	}

	periods = make([]ForecastPeriod, 0, len(raw))
	for _, item := range raw {
		temp, ok := LookupFloat(item, "temperature")
		if !ok {
			continue
		}
		p := ForecastPeriod{Temperature: temp}
		if n, ok := LookupFloat(item, "number"); ok {
			p.Number = int(n)
		}
		p.Name, _ = LookupString(item, "name")
		p.TemperatureUnit, _ = LookupString(item, "temperatureUnit")
		p.ShortForecast, _ = LookupString(item, "shortForecast")
		if v, ok := Lookup(item, "isDaytime"); ok {
			p.IsDaytime, _ = v.(bool)
		}
		if s, ok := LookupString(item, "startTime"); ok {
			p.StartTime, _ = time.Parse(time.RFC3339, s)
		}
		if s, ok := LookupString(item, "endTime"); ok {
			p.EndTime, _ = time.Parse(time.RFC3339, s)
		}
		// null and missing both read as 0
		p.PrecipitationChance, _ = LookupFloat(item, "probabilityOfPrecipitation.value")
		p.RelativeHumidity, p.HasHumidity = LookupFloat(item, "relativeHumidity.value")
		periods = append(periods, p)
	}
	return periods, true
}

// ForecastPeriodAt returns the i-th forecast period, if present.
func ForecastPeriodAt(doc any, i int) (ForecastPeriod, bool) {
	periods, ok := ForecastPeriods(doc)
	if !ok || i < 0 || i >= len(periods) {
		return ForecastPeriod{}, false
	}
	return periods[i], true
}

// CurrentTemperature reads the first value of the gridpoint temperature
// series (properties.temperature.values.0.value), converted to °F.
func CurrentTemperature(doc any) (int, bool) {
	c, ok := LookupFloat(doc, "properties.temperature.values.0.value")
	if !ok {
		return 0, false
	}
	if uom, _ := LookupString(doc, "properties.temperature.uom"); uom == "wmoUnit:degF" {
		return int(math.Round(c)), true
	}
	return CelsiusToFahrenheit(c), true
}
