package domain

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var forecastBase = time.Date(2024, time.May, 31, 0, 0, 0, 0, time.UTC)

// forecastData builds n hourly rows starting at start with a simple diurnal shape.
func forecastData(start time.Time, n int) ForecastData {
	d := ForecastData{
		Location: LocationInfo{Coordinates: Coordinates{Lat: -33.87, Lon: 151.21}, ElevationM: 39, Timezone: "GMT"},
		Start:    start,
		Interval: time.Hour,
	}
	for i := range n {
		hour := start.Add(time.Duration(i) * time.Hour).Hour()
		ghi := 0.0
		if hour >= 6 && hour <= 18 {
			ghi = 800 * math.Sin(math.Pi*float64(hour-6)/12)
		}
		isDay := 0.0
		if ghi > 0 {
			isDay = 1
		}
		d.CloudCover = append(d.CloudCover, 20)
		d.ShortwaveRadiation = append(d.ShortwaveRadiation, ghi)
		d.DirectNormalIrradiance = append(d.DirectNormalIrradiance, ghi*0.8)
		d.DiffuseRadiation = append(d.DiffuseRadiation, ghi*0.2)
		d.SunshineDuration = append(d.SunshineDuration, 3600*isDay)
		d.IsDay = append(d.IsDay, isDay)
		d.Temperature = append(d.Temperature, 20)
	}
	return d
}

func TestParseForecast_AlignsToBaseAndInterval(t *testing.T) {
	samples, err := ParseForecast(forecastData(forecastBase, 48))
	require.NoError(t, err)
	require.Len(t, samples, 48)

	for i, s := range samples {
		assert.Equal(t, forecastBase.Add(time.Duration(i)*time.Hour), s.Time)
	}
	noon := samples[12]
	assert.InDelta(t, 800.0, noon.GHIWm2, 1e-9)
	assert.InDelta(t, 640.0, noon.DNIWm2, 1e-9)
	assert.InDelta(t, 160.0, noon.DHIWm2, 1e-9)
	assert.True(t, noon.IsDay)
	assert.Equal(t, 3600.0, noon.SunshineSeconds)
	assert.Equal(t, 20.0, noon.AirTempC)
	assert.False(t, samples[0].IsDay)
}

func TestParseForecast_ConvertsStartToUTC(t *testing.T) {
	local := time.Date(2024, time.May, 31, 10, 0, 0, 0, time.FixedZone("AEST", 10*60*60))
	samples, err := ParseForecast(forecastData(local, 2))
	require.NoError(t, err)
	assert.Equal(t, time.UTC, samples[0].Time.Location())
	assert.Equal(t, forecastBase, samples[0].Time)
}

func TestParseForecast_TruncatesToShortestRequiredArray(t *testing.T) {
	d := forecastData(forecastBase, 24)
	d.DiffuseRadiation = d.DiffuseRadiation[:10]

	samples, err := ParseForecast(d)
	require.NoError(t, err)
	assert.Len(t, samples, 10)
}

func TestParseForecast_DefaultsMissingOptionalArrays(t *testing.T) {
	d := forecastData(forecastBase, 24)
	d.SunshineDuration = nil
	d.IsDay = nil
	d.Temperature = nil

	samples, err := ParseForecast(d)
	require.NoError(t, err)

	assert.Zero(t, samples[12].SunshineSeconds)
	assert.True(t, samples[12].IsDay, "daylight inferred from GHI")
	assert.False(t, samples[0].IsDay)
	assert.Equal(t, ReferenceTemperatureC, samples[12].AirTempC)
}

func TestParseForecast_SanitizesValues(t *testing.T) {
	d := forecastData(forecastBase, 3)
	d.ShortwaveRadiation[0] = -5
	d.CloudCover[0] = 140
	d.CloudCover[1] = math.NaN()
	d.DirectNormalIrradiance[1] = math.Inf(1)
	d.Temperature[2] = math.NaN()
	d.IsDay[2] = math.NaN()

	samples, err := ParseForecast(d)
	require.NoError(t, err)

	assert.Zero(t, samples[0].GHIWm2)
	assert.Equal(t, 100.0, samples[0].CloudCoverPct)
	assert.Zero(t, samples[1].CloudCoverPct)
	assert.Zero(t, samples[1].DNIWm2)
	assert.Equal(t, ReferenceTemperatureC, samples[2].AirTempC)
	assert.False(t, samples[2].IsDay)
}

func TestParseForecast_Malformed(t *testing.T) {
	cases := map[string]ForecastData{
		"no rows":        forecastData(forecastBase, 0),
		"zero start":     forecastData(time.Time{}, 3),
		"zero interval":  func() ForecastData { d := forecastData(forecastBase, 3); d.Interval = 0; return d }(),
		"missing ghi":    func() ForecastData { d := forecastData(forecastBase, 3); d.ShortwaveRadiation = nil; return d }(),
		"missing clouds": func() ForecastData { d := forecastData(forecastBase, 3); d.CloudCover = nil; return d }(),
	}
	for name, d := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseForecast(d)
			require.ErrorIs(t, err, ErrForecastUnavailable)
		})
	}
}
