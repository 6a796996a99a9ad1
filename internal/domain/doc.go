// Package domain models device telemetry enriched with solar irradiance
// forecast data.
//
// # Data Source
//
// Hourly irradiance forecasts come from the Open-Meteo forecast API
// (https://open-meteo.com/en/docs). A query names a coordinate pair, a
// start/end date (whole UTC days) and the hourly variables to return. The
// response carries one numeric array per variable, aligned to a shared base
// timestamp with a fixed one-hour interval. [ParseForecast] is the single
// boundary where those arrays become [RawHourlySample] values; every default
// for a missing or invalid value is applied there and nowhere else.
//
// # Irradiance Conventions
//
//	GHI  global horizontal irradiance, W/m² (Open-Meteo "shortwave_radiation")
//	DNI  direct normal irradiance, W/m²     ("direct_normal_irradiance")
//	DHI  diffuse horizontal irradiance, W/m² ("diffuse_radiation")
//
// Open-Meteo reports radiation as the mean over the preceding hour, so the
// instantaneous W value of one sample is treated as that hour's Wh.
//
// # Derived Metrics
//
// Reference panel: 18% efficiency, 1.6 m², -0.4%/°C temperature coefficient
// around the 25 °C standard test condition.
//
//	lux_approx        = GHI × 120
//	panel_output_w    = max(0, GHI × 0.18 × 1.6 × (1 − 0.004 × (T − 25)))
//	performance_ratio = min(1, GHI / 1000)
//	clearness_index   = GHI / 1361 (solar constant)
//
// Irradiance quality (on clearness index, first match wins):
//
//	GHI = 0 none | > 0.7 excellent | > 0.5 good | > 0.3 fair | else poor
//
// Weather condition (first match wins):
//
//	night             is_day = false
//	clear_sky_optimal cloud < 10% and GHI > 600
//	mostly_clear      cloud < 30%
//	partly_cloudy     cloud < 60%
//	cloudy_but_bright GHI > 200
//	overcast          otherwise
//
// # Current Hour
//
// The record whose UTC (year, month, day, hour) equals the caller's "now" is
// the current hour. When the returned window does not cover "now" the last
// record is used instead and the result reports [CurrentFallback], so stale
// data is never passed off as a match.
package domain
