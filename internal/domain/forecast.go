package domain

import (
	"context"
	"fmt"
	"math"
	"time"
)

// HourlyVariables are the Open-Meteo hourly variables every forecast query requests.
var HourlyVariables = []string{
	"cloud_cover",
	"shortwave_radiation",
	"direct_normal_irradiance",
	"diffuse_radiation",
	"sunshine_duration",
	"is_day",
	"temperature_2m",
}

// ForecastSource fetches hourly irradiance forecasts. Implementations own
// their timeout, retry and caching policy.
type ForecastSource interface {
	FetchForecast(ctx context.Context, q ForecastQuery) (ForecastData, error)
}

// ForecastQuery asks for hourly data over whole UTC days, both ends inclusive.
type ForecastQuery struct {
	Coordinates Coordinates
	StartDate   time.Time
	EndDate     time.Time
	Variables   []string
}

// LocationInfo is the location metadata returned with a forecast.
type LocationInfo struct {
	Coordinates
	Name       string  `json:"name,omitempty"`
	ElevationM float64 `json:"elevation_m"`
	Timezone   string  `json:"timezone,omitempty"`
}

// ForecastData is a forecast response as columnar arrays. Index i of every
// array holds the value at Start + i*Interval. NaN marks a missing value and
// a nil optional array (SunshineDuration, IsDay, Temperature) means the
// source did not return that variable.
type ForecastData struct {
	Location LocationInfo
	Start    time.Time
	Interval time.Duration

	CloudCover             []float64
	ShortwaveRadiation     []float64
	DirectNormalIrradiance []float64
	DiffuseRadiation       []float64
	SunshineDuration       []float64
	IsDay                  []float64
	Temperature            []float64
}

// ParseForecast converts the columnar response into time-ordered samples.
// Rows run to the shortest of the required arrays. Missing optional values
// default to zero sunshine, daylight when GHI > 0, and the 25 °C reference
// temperature. NaN readings become zero, irradiance is floored at zero and
// cloud cover is clamped to [0, 100].
func ParseForecast(data ForecastData) ([]RawHourlySample, error) {
	if data.Start.IsZero() {
		return nil, fmt.Errorf("%w: missing base timestamp", ErrForecastUnavailable)
	}
	if data.Interval <= 0 {
		return nil, fmt.Errorf("%w: non-positive interval %s", ErrForecastUnavailable, data.Interval)
	}

	rows := minLen(data.CloudCover, data.ShortwaveRadiation, data.DirectNormalIrradiance, data.DiffuseRadiation)
	if rows == 0 {
		return nil, fmt.Errorf("%w: no hourly rows", ErrForecastUnavailable)
	}

	start := data.Start.UTC()
	samples := make([]RawHourlySample, rows)
	for i := range rows {
		ghi := nonNegative(data.ShortwaveRadiation[i])
		s := RawHourlySample{
			Time:            start.Add(time.Duration(i) * data.Interval),
			CloudCoverPct:   clamp(finite(data.CloudCover[i]), 0, 100),
			GHIWm2:          ghi,
			DNIWm2:          nonNegative(data.DirectNormalIrradiance[i]),
			DHIWm2:          nonNegative(data.DiffuseRadiation[i]),
			SunshineSeconds: nonNegative(valueAt(data.SunshineDuration, i, 0)),
			IsDay:           ghi > 0,
			AirTempC:        finite(valueAt(data.Temperature, i, ReferenceTemperatureC)),
		}
		if i < len(data.IsDay) && !math.IsNaN(data.IsDay[i]) {
			s.IsDay = data.IsDay[i] >= 0.5
		}
		samples[i] = s
	}
	return samples, nil
}

func minLen(arrays ...[]float64) int {
	n := -1
	for _, a := range arrays {
		if n < 0 || len(a) < n {
			n = len(a)
		}
	}
	return max(n, 0)
}

func valueAt(a []float64, i int, def float64) float64 {
	if i >= len(a) || math.IsNaN(a[i]) {
		return def
	}
	return a[i]
}

func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

func nonNegative(v float64) float64 {
	return math.Max(0, finite(v))
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(hi, math.Max(lo, v))
}
