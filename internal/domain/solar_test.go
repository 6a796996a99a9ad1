package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDerive_ClearSkyScenario(t *testing.T) {
	rec := Derive(RawHourlySample{
		CloudCoverPct: 5,
		GHIWm2:        750,
		DNIWm2:        700,
		DHIWm2:        50,
		IsDay:         true,
		AirTempC:      25,
	})

	assert.InDelta(t, 0.551, rec.ClearnessIndex, 0.001)
	assert.Equal(t, QualityGood, rec.IrradianceQuality)
	assert.Equal(t, ConditionClearSkyOptimal, rec.WeatherCondition)
	assert.InDelta(t, 216.0, rec.PanelOutputW, 1e-9)
	assert.InDelta(t, 90000.0, rec.LuxApprox, 1e-9)
	assert.InDelta(t, 0.75, rec.PerformanceRatio, 1e-9)
	assert.InDelta(t, 50.0/750.0, rec.DiffuseFraction, 1e-12)
	assert.InDelta(t, 700.0/750.0, rec.DirectFraction, 1e-12)
	assert.False(t, rec.IsCurrentHour)
}

func TestDerive_OvercastScenario(t *testing.T) {
	rec := Derive(RawHourlySample{CloudCoverPct: 80, GHIWm2: 150, IsDay: true, AirTempC: 25})
	assert.Equal(t, ConditionOvercast, rec.WeatherCondition)
}

func TestDerive_ZeroGHI(t *testing.T) {
	// DNI/DHI are ignored once GHI is zero.
	for _, s := range []RawHourlySample{
		{},
		{DNIWm2: 300, DHIWm2: 40, IsDay: true},
		{DNIWm2: 0, DHIWm2: 900, CloudCoverPct: 100},
	} {
		rec := Derive(s)
		assert.Equal(t, QualityNone, rec.IrradianceQuality)
		assert.Zero(t, rec.ClearnessIndex)
		assert.Zero(t, rec.DiffuseFraction)
		assert.Zero(t, rec.DirectFraction)
		assert.Zero(t, rec.PanelOutputW)
		assert.Zero(t, rec.LuxApprox)
	}
}

func TestDerive_PanelTemperatureDerating(t *testing.T) {
	hot := Derive(RawHourlySample{GHIWm2: 1000, AirTempC: 45, IsDay: true})
	// 1000 × 0.18 × 1.6 × (1 − 0.004 × 20) = 288 × 0.92
	assert.InDelta(t, 264.96, hot.PanelOutputW, 1e-9)

	cold := Derive(RawHourlySample{GHIWm2: 1000, AirTempC: 5, IsDay: true})
	assert.InDelta(t, 311.04, cold.PanelOutputW, 1e-9)

	// Temperature factor goes negative above 275 °C; output is floored at zero.
	absurd := Derive(RawHourlySample{GHIWm2: 500, AirTempC: 400, IsDay: true})
	assert.Zero(t, absurd.PanelOutputW)
}

func TestDerive_PerformanceRatioMonotonicAndSaturates(t *testing.T) {
	prev := -1.0
	for ghi := 0.0; ghi <= 1500; ghi += 25 {
		pr := Derive(RawHourlySample{GHIWm2: ghi}).PerformanceRatio
		assert.GreaterOrEqual(t, pr, prev, "ghi=%v", ghi)
		assert.LessOrEqual(t, pr, 1.0)
		if ghi >= FullSunIrradiance {
			assert.Equal(t, 1.0, pr, "ghi=%v", ghi)
		}
		prev = pr
	}
}

func TestClassifyQuality_Thresholds(t *testing.T) {
	cases := []struct {
		clearness float64
		want      IrradianceQuality
	}{
		{0, QualityPoor},
		{0.1, QualityPoor},
		{0.3, QualityPoor},
		{0.3000001, QualityFair},
		{0.5, QualityFair},
		{0.5000001, QualityGood},
		{0.7, QualityGood},
		{0.7000001, QualityExcellent},
		{1.2, QualityExcellent},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, classifyQuality(tc.clearness), "clearness=%v", tc.clearness)
	}
}

func TestClassifyQuality_PartitionIsTotal(t *testing.T) {
	valid := map[IrradianceQuality]bool{QualityPoor: true, QualityFair: true, QualityGood: true, QualityExcellent: true}
	for ci := 0.0; ci <= 1.5; ci += 0.001 {
		require.True(t, valid[classifyQuality(ci)], "clearness=%v", ci)
	}
}

func TestClassifyWeather_Order(t *testing.T) {
	cases := []struct {
		name string
		s    RawHourlySample
		want WeatherCondition
	}{
		{"night wins over clear sky", RawHourlySample{CloudCoverPct: 0, GHIWm2: 900, IsDay: false}, ConditionNight},
		{"clear sky optimal", RawHourlySample{CloudCoverPct: 9.9, GHIWm2: 601, IsDay: true}, ConditionClearSkyOptimal},
		{"clear but weak sun", RawHourlySample{CloudCoverPct: 5, GHIWm2: 600, IsDay: true}, ConditionMostlyClear},
		{"mostly clear", RawHourlySample{CloudCoverPct: 29, GHIWm2: 100, IsDay: true}, ConditionMostlyClear},
		{"partly cloudy", RawHourlySample{CloudCoverPct: 30, GHIWm2: 700, IsDay: true}, ConditionPartlyCloudy},
		{"cloudy but bright", RawHourlySample{CloudCoverPct: 60, GHIWm2: 201, IsDay: true}, ConditionCloudyButBright},
		{"overcast at boundary", RawHourlySample{CloudCoverPct: 60, GHIWm2: 200, IsDay: true}, ConditionOvercast},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, classifyWeather(tc.s))
		})
	}
}

func TestCoordinates_Validate(t *testing.T) {
	require.NoError(t, Coordinates{Lat: 90, Lon: -180}.Validate())
	require.NoError(t, Coordinates{Lat: -33.87, Lon: 151.21}.Validate())

	err := Coordinates{Lat: 90.01, Lon: 0}.Validate()
	require.ErrorIs(t, err, ErrInvalidCoordinates)
	assert.Contains(t, err.Error(), "latitude")

	err = Coordinates{Lat: 0, Lon: -180.5}.Validate()
	require.ErrorIs(t, err, ErrInvalidCoordinates)
	assert.Contains(t, err.Error(), "longitude")
}
