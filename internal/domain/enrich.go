package domain

import (
	"context"
	"fmt"
	"time"
)

// Window is the span of hours around "now" that an enrichment covers.
type Window struct {
	PastHours   int `json:"past_hours"`
	FutureHours int `json:"future_hours"`
}

// DefaultWindow covers the previous and the next 24 hours.
var DefaultWindow = Window{PastHours: 24, FutureHours: 24}

// Validate returns ErrInvalidWindow for negative hour counts.
func (w Window) Validate() error {
	if w.PastHours < 0 || w.FutureHours < 0 {
		return fmt.Errorf("%w: past=%d future=%d", ErrInvalidWindow, w.PastHours, w.FutureHours)
	}
	return nil
}

// DateRange returns the UTC days that cover [now-past, now+future].
func (w Window) DateRange(now time.Time) (start, end time.Time) {
	now = now.UTC()
	start = truncateDay(now.Add(-time.Duration(w.PastHours) * time.Hour))
	end = truncateDay(now.Add(time.Duration(w.FutureHours) * time.Hour))
	return start, end
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// EnrichmentStatus tells the caller how complete an enrichment is.
type EnrichmentStatus string

const (
	StatusEnriched    EnrichmentStatus = "enriched"
	StatusFallback    EnrichmentStatus = "fallback"
	StatusUnavailable EnrichmentStatus = "unavailable"
)

// EnrichmentResult is the outcome of one enrichment call. It shares nothing
// with the pipeline after return.
type EnrichmentResult struct {
	Location     LocationInfo   `json:"location"`
	Window       Window         `json:"window"`
	Series       []HourlyRecord `json:"series"`
	Current      *HourlyRecord  `json:"current"`
	CurrentMatch CurrentMatch   `json:"current_match"`
	Summary      WindowSummary  `json:"summary"`
	GeneratedAt  time.Time      `json:"generated_at"`
}

// Status reports StatusFallback when the current record did not match "now".
func (r EnrichmentResult) Status() EnrichmentStatus {
	if r.CurrentMatch == CurrentMatched {
		return StatusEnriched
	}
	return StatusFallback
}

// Enrich fetches the forecast for coords once, derives the hourly series,
// selects the current hour and summarizes the window. Invalid input is
// rejected before the source is called; any source failure or empty response
// is returned wrapped in ErrForecastUnavailable.
func Enrich(ctx context.Context, src ForecastSource, coords Coordinates, now time.Time, window Window) (EnrichmentResult, error) {
	if err := coords.Validate(); err != nil {
		return EnrichmentResult{}, err
	}
	if err := window.Validate(); err != nil {
		return EnrichmentResult{}, err
	}

	start, end := window.DateRange(now)
	data, err := src.FetchForecast(ctx, ForecastQuery{
		Coordinates: coords,
		StartDate:   start,
		EndDate:     end,
		Variables:   HourlyVariables,
	})
	if err != nil {
		return EnrichmentResult{}, fmt.Errorf("%w: %w", ErrForecastUnavailable, err)
	}

	samples, err := ParseForecast(data)
	if err != nil {
		return EnrichmentResult{}, err
	}

	series := BuildSeries(samples, now)
	current, match := SelectCurrent(series)

	// The source may snap coords to its grid; the result keeps the caller's.
	loc := LocationInfo{
		Coordinates: coords,
		Name:        data.Location.Name,
		ElevationM:  data.Location.ElevationM,
		Timezone:    data.Location.Timezone,
	}

	return EnrichmentResult{
		Location:     loc,
		Window:       window,
		Series:       series,
		Current:      current,
		CurrentMatch: match,
		Summary:      Summarize(series),
		GeneratedAt:  now.UTC(),
	}, nil
}
