package marquee

import (
	"testing"
	"time"
)

const forecastFixture = `{
	"properties": {
		"periods": [
			{
				"number": 1,
				"name": "Tonight",
				"startTime": "2024-05-06T18:00:00-05:00",
				"endTime": "2024-05-07T06:00:00-05:00",
				"isDaytime": false,
				"temperature": 58,
				"temperatureUnit": "F",
				"probabilityOfPrecipitation": {"unitCode": "wmoUnit:percent", "value": null},
				"relativeHumidity": {"unitCode": "wmoUnit:percent", "value": 84},
				"shortForecast": "Mostly Cloudy"
			},
			{
				"number": 2,
				"name": "Tuesday",
				"temperature": 21,
				"temperatureUnit": "C",
				"probabilityOfPrecipitation": {"value": 40}
			},
			{
				"number": 3,
				"name": "No temperature"
			}
		]
	}
}`

func TestForecastPeriods(t *testing.T) {
	periods, ok := ForecastPeriods(decode(t, forecastFixture))
	if !ok {
		t.Fatal("ForecastPeriods() ok = false")
	}
	if len(periods) != 2 {
		t.Fatalf("len = %d, want 2 (period without temperature skipped)", len(periods))
	}

	p := periods[0]
	if p.Number != 1 || p.Name != "Tonight" || p.IsDaytime || p.ShortForecast != "Mostly Cloudy" {
		t.Errorf("period 0 = %+v", p)
	}
	if p.PrecipitationChance != 0 {
		t.Errorf("null precipitation = %v, want 0", p.PrecipitationChance)
	}
	if !p.HasHumidity || p.RelativeHumidity != 84 {
		t.Errorf("humidity = %v (%v), want 84", p.RelativeHumidity, p.HasHumidity)
	}
	wantStart := time.Date(2024, 5, 6, 23, 0, 0, 0, time.UTC)
	if !p.StartTime.Equal(wantStart) {
		t.Errorf("StartTime = %v, want %v", p.StartTime, wantStart)
	}
	if p.Fahrenheit() != 58 {
		t.Errorf("Fahrenheit() = %d, want 58", p.Fahrenheit())
	}

	q := periods[1]
	if q.PrecipitationChance != 40 || q.HasHumidity {
		t.Errorf("period 1 = %+v", q)
	}
	if q.Fahrenheit() != 70 {
		t.Errorf("Fahrenheit() of 21C = %d, want 70", q.Fahrenheit())
	}
}

func TestForecastPeriods_NotAForecast(t *testing.T) {
	for _, doc := range []string{`{}`, `{"properties": {}}`, `{"properties": {"periods": {}}}`} {
		if _, ok := ForecastPeriods(decode(t, doc)); ok {
			t.Errorf("ForecastPeriods(%s) ok = true, want false", doc)
		}
	}
	if _, ok := ForecastPeriods(nil); ok {
		t.Error("ForecastPeriods(nil) ok = true, want false")
	}
}

func TestForecastPeriodAt(t *testing.T) {
	doc := decode(t, forecastFixture)

	if p, ok := ForecastPeriodAt(doc, 1); !ok || p.Name != "Tuesday" {
		t.Errorf("ForecastPeriodAt(1) = %+v, %v", p, ok)
	}
	for _, i := range []int{-1, 2} {
		if _, ok := ForecastPeriodAt(doc, i); ok {
			t.Errorf("ForecastPeriodAt(%d) ok = true, want false", i)
		}
	}
}

func TestCelsiusToFahrenheit(t *testing.T) {
	tests := []struct {
		c    float64
		want int
	}{
		{0, 32},
		{100, 212},
		{-40, -40},
		{21.7, 71},
		{-17.8, 0},
	}

	for _, tt := range tests {
		if got := CelsiusToFahrenheit(tt.c); got != tt.want {
			t.Errorf("CelsiusToFahrenheit(%v) = %d, want %d", tt.c, got, tt.want)
		}
	}
}

func TestCurrentTemperature(t *testing.T) {
	tests := []struct {
		name   string
		doc    string
		want   int
		wantOK bool
	}{
		{"celsius series", `{"properties":{"temperature":{"uom":"wmoUnit:degC","values":[{"validTime":"x","value":22.2}]}}}`, 72, true},
		{"fahrenheit series", `{"properties":{"temperature":{"uom":"wmoUnit:degF","values":[{"value":72.4}]}}}`, 72, true},
		{"empty series", `{"properties":{"temperature":{"values":[]}}}`, 0, false},
		{"null value", `{"properties":{"temperature":{"values":[{"value":null}]}}}`, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := CurrentTemperature(decode(t, tt.doc))
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("CurrentTemperature() = %d, %v; want %d, %v", got, ok, tt.want, tt.wantOK)
			}
		})
	}
}
