package domain

import (
	"fmt"
	"math"
	"time"
)

// Reference panel and irradiance constants.
const (
	LuxPerWattPerSquareMetre = 120.0
	PanelEfficiency          = 0.18
	PanelAreaM2              = 1.6
	TemperatureCoefficient   = -0.004
	ReferenceTemperatureC    = 25.0
	FullSunIrradiance        = 1000.0
	SolarConstant            = 1361.0
)

// Coordinates is a WGS-84 latitude/longitude pair.
type Coordinates struct {
	Lat float64 `json:"latitude"`
	Lon float64 `json:"longitude"`
}

// Validate returns ErrInvalidCoordinates when either component is out of range or NaN.
func (c Coordinates) Validate() error {
	if math.IsNaN(c.Lat) || c.Lat < -90 || c.Lat > 90 {
		return fmt.Errorf("%w: latitude %v out of range [-90, 90]", ErrInvalidCoordinates, c.Lat)
	}
	if math.IsNaN(c.Lon) || c.Lon < -180 || c.Lon > 180 {
		return fmt.Errorf("%w: longitude %v out of range [-180, 180]", ErrInvalidCoordinates, c.Lon)
	}
	return nil
}

// IrradianceQuality classifies the clearness index.
type IrradianceQuality string

const (
	QualityNone      IrradianceQuality = "none"
	QualityPoor      IrradianceQuality = "poor"
	QualityFair      IrradianceQuality = "fair"
	QualityGood      IrradianceQuality = "good"
	QualityExcellent IrradianceQuality = "excellent"
)

// WeatherCondition is a coarse sky label derived from cloud cover and GHI.
type WeatherCondition string

const (
	ConditionNight           WeatherCondition = "night"
	ConditionClearSkyOptimal WeatherCondition = "clear_sky_optimal"
	ConditionMostlyClear     WeatherCondition = "mostly_clear"
	ConditionPartlyCloudy    WeatherCondition = "partly_cloudy"
	ConditionCloudyButBright WeatherCondition = "cloudy_but_bright"
	ConditionOvercast        WeatherCondition = "overcast"
)

// RawHourlySample is one hour of forecast data as returned by the source.
type RawHourlySample struct {
	Time            time.Time `json:"time"`
	CloudCoverPct   float64   `json:"cloud_cover_pct"`
	GHIWm2          float64   `json:"ghi_wm2"`
	DNIWm2          float64   `json:"dni_wm2"`
	DHIWm2          float64   `json:"dhi_wm2"`
	SunshineSeconds float64   `json:"sunshine_seconds"`
	IsDay           bool      `json:"is_day"`
	AirTempC        float64   `json:"air_temp_c"`
}

// HourlyRecord is a RawHourlySample plus the metrics derived from it.
type HourlyRecord struct {
	RawHourlySample

	LuxApprox         float64           `json:"lux_approx"`
	PanelOutputW      float64           `json:"panel_output_w"`
	PerformanceRatio  float64           `json:"performance_ratio"`
	ClearnessIndex    float64           `json:"clearness_index"`
	DiffuseFraction   float64           `json:"diffuse_fraction"`
	DirectFraction    float64           `json:"direct_fraction"`
	IrradianceQuality IrradianceQuality `json:"irradiance_quality"`
	WeatherCondition  WeatherCondition  `json:"weather_condition"`
	IsCurrentHour     bool              `json:"is_current_hour"`
}

// Derive computes the per-hour metrics for one sample. It never fails;
// GHI of zero yields zero fractions and QualityNone.
func Derive(s RawHourlySample) HourlyRecord {
	rec := HourlyRecord{
		RawHourlySample:  s,
		LuxApprox:        s.GHIWm2 * LuxPerWattPerSquareMetre,
		PanelOutputW:     panelOutput(s.GHIWm2, s.AirTempC),
		PerformanceRatio: math.Min(1.0, s.GHIWm2/FullSunIrradiance),
		WeatherCondition: classifyWeather(s),
	}

	if s.GHIWm2 == 0 {
		rec.IrradianceQuality = QualityNone
		return rec
	}

	rec.ClearnessIndex = s.GHIWm2 / SolarConstant
	rec.DiffuseFraction = s.DHIWm2 / s.GHIWm2
	rec.DirectFraction = s.DNIWm2 / s.GHIWm2
	rec.IrradianceQuality = classifyQuality(rec.ClearnessIndex)
	return rec
}

// panelOutput estimates the reference panel's DC output in watts, derated
// linearly for cell temperature.
func panelOutput(ghi, airTempC float64) float64 {
	tempFactor := 1 + TemperatureCoefficient*(airTempC-ReferenceTemperatureC)
	return math.Max(0, ghi*PanelEfficiency*PanelAreaM2*tempFactor)
}

func classifyQuality(clearness float64) IrradianceQuality {
	switch {
	case clearness > 0.7:
		return QualityExcellent
	case clearness > 0.5:
		return QualityGood
	case clearness > 0.3:
		return QualityFair
	default:
		return QualityPoor
	}
}

func classifyWeather(s RawHourlySample) WeatherCondition {
	switch {
	case !s.IsDay:
		return ConditionNight
	case s.CloudCoverPct < 10 && s.GHIWm2 > 600:
		return ConditionClearSkyOptimal
	case s.CloudCoverPct < 30:
		return ConditionMostlyClear
	case s.CloudCoverPct < 60:
		return ConditionPartlyCloudy
	case s.GHIWm2 > 200:
		return ConditionCloudyButBright
	default:
		return ConditionOvercast
	}
}
