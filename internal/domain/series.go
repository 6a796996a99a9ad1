package domain

import "time"

// CurrentMatch tells how the current-hour record was chosen.
type CurrentMatch string

const (
	CurrentMatched  CurrentMatch = "matched"
	CurrentFallback CurrentMatch = "fallback"
	CurrentNone     CurrentMatch = "none"
)

// WindowSummary aggregates a series of hourly records.
type WindowSummary struct {
	TotalEnergyKWh       float64 `json:"total_energy_kwh"`
	AverageGHIWm2        float64 `json:"average_ghi_wm2"`
	AverageCloudCoverPct float64 `json:"average_cloud_cover_pct"`
	SampleCount          int     `json:"sample_count"`
	PeakPanelOutputW     float64 `json:"peak_panel_output_w"`
	SunshineHours        float64 `json:"sunshine_hours"`
	DaylightSamples      int     `json:"daylight_samples"`
}

// BuildSeries derives every sample in order and flags the record whose UTC
// hour matches now. Only the first matching record is flagged.
func BuildSeries(samples []RawHourlySample, now time.Time) []HourlyRecord {
	series := make([]HourlyRecord, 0, len(samples))
	flagged := false
	for _, s := range samples {
		rec := Derive(s)
		if !flagged && sameUTCHour(s.Time, now) {
			rec.IsCurrentHour = true
			flagged = true
		}
		series = append(series, rec)
	}
	return series
}

func sameUTCHour(a, b time.Time) bool {
	a, b = a.UTC(), b.UTC()
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd && a.Hour() == b.Hour()
}

// SelectCurrent returns a copy of the record flagged as the current hour. If
// none is flagged it falls back to the last record. An empty series yields nil.
func SelectCurrent(series []HourlyRecord) (*HourlyRecord, CurrentMatch) {
	if len(series) == 0 {
		return nil, CurrentNone
	}
	for i := range series {
		if series[i].IsCurrentHour {
			rec := series[i]
			return &rec, CurrentMatched
		}
	}
	rec := series[len(series)-1]
	return &rec, CurrentFallback
}

// Summarize reduces a series to its window totals. Each sample's watt value
// counts as one hour's watt-hours.
func Summarize(series []HourlyRecord) WindowSummary {
	var sum WindowSummary
	if len(series) == 0 {
		return sum
	}

	var totalWh, totalGHI, totalCloud, sunshineSeconds float64
	for _, rec := range series {
		totalWh += rec.PanelOutputW
		totalGHI += rec.GHIWm2
		totalCloud += rec.CloudCoverPct
		sunshineSeconds += rec.SunshineSeconds
		if rec.PanelOutputW > sum.PeakPanelOutputW {
			sum.PeakPanelOutputW = rec.PanelOutputW
		}
		if rec.IsDay {
			sum.DaylightSamples++
		}
	}

	n := float64(len(series))
	sum.SampleCount = len(series)
	sum.TotalEnergyKWh = totalWh / 1000
	sum.AverageGHIWm2 = totalGHI / n
	sum.AverageCloudCoverPct = totalCloud / n
	sum.SunshineHours = sunshineSeconds / 3600
	return sum
}
