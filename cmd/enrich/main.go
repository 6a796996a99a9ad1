// Command enrich fetches the solar forecast for one location, prints the
// enrichment result as JSON and runs sanity checks over it.
//
// Usage:
//
//	go run ./cmd/enrich -lat -33.8688 -lon 151.2093
//	go run ./cmd/enrich -lat 51.5074 -lon -0.1278 -past 48 -future 24 -check
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"math"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/solar-enrichment-service/internal/adapter/openmeteo"
	"github.com/couchcryptid/solar-enrichment-service/internal/domain"
	"github.com/couchcryptid/solar-enrichment-service/internal/observability"
)

// phase tracks pass/fail for a group of checks.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	lat := flag.Float64("lat", 0, "latitude in decimal degrees")
	lon := flag.Float64("lon", 0, "longitude in decimal degrees")
	past := flag.Int("past", domain.DefaultWindow.PastHours, "hours of history to include")
	future := flag.Int("future", domain.DefaultWindow.FutureHours, "hours of forecast to include")
	baseURL := flag.String("base-url", openmeteo.DefaultBaseURL, "Open-Meteo forecast endpoint")
	check := flag.Bool("check", false, "run sanity checks instead of printing the series")
	timeout := flag.Duration("timeout", 15*time.Second, "overall timeout")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()

	os.Exit(run(ctx, domain.Coordinates{Lat: *lat, Lon: *lon}, domain.Window{PastHours: *past, FutureHours: *future}, *baseURL, *check))
}

func run(ctx context.Context, coords domain.Coordinates, window domain.Window, baseURL string, check bool) int {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	metrics := observability.NewMetricsForTesting()

	client := openmeteo.NewClient(baseURL, 10*time.Second, 2, metrics, logger)
	source := openmeteo.NewCachedSource(client, 8, time.Hour, nil, metrics)

	now := clockwork.NewRealClock().Now()
	result, err := domain.Enrich(ctx, source, coords, now, window)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: enrich: %v\n", err)
		return 1
	}

	if !check {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(result); err != nil {
			fmt.Fprintf(os.Stderr, "FATAL: encode result: %v\n", err)
			return 1
		}
		return 0
	}

	phases := []*phase{
		checkSeries(result, window),
		checkDerived(result.Series),
		checkSummary(result),
	}

	fmt.Println()
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
		}
		fmt.Printf("  %-36s %s\n", p.name, status)
	}
	fmt.Printf("\nLocation: %.4f, %.4f (%s), %d hourly records, current %s\n",
		result.Location.Lat, result.Location.Lon, result.Location.Timezone, len(result.Series), result.CurrentMatch)

	failed := false
	for _, p := range phases {
		if p.passed() {
			continue
		}
		failed = true
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}
	if failed {
		fmt.Println("\nChecks FAILED.")
		return 1
	}
	fmt.Println("\nAll checks passed.")
	return 0
}

func checkSeries(r domain.EnrichmentResult, window domain.Window) *phase {
	p := &phase{name: "Series (coverage and ordering)"}

	minHours := window.PastHours + window.FutureHours
	if len(r.Series) < minHours {
		p.errorf("series has %d records, want at least %d", len(r.Series), minHours)
	}
	for i := 1; i < len(r.Series); i++ {
		if !r.Series[i].Time.After(r.Series[i-1].Time) {
			p.errorf("record %d at %s not after %s", i, r.Series[i].Time, r.Series[i-1].Time)
		}
	}

	flagged := 0
	for _, rec := range r.Series {
		if rec.IsCurrentHour {
			flagged++
		}
	}
	if flagged > 1 {
		p.errorf("%d records flagged as current hour", flagged)
	}
	if r.Current == nil {
		p.errorf("no current record")
	} else if r.CurrentMatch == domain.CurrentMatched && !r.Current.IsCurrentHour {
		p.errorf("current record at %s is not flagged", r.Current.Time)
	}
	return p
}

func checkDerived(series []domain.HourlyRecord) *phase {
	p := &phase{name: "Derived metrics (ranges)"}
	for _, rec := range series {
		at := rec.Time.Format(time.RFC3339)
		for name, v := range map[string]float64{
			"ghi": rec.GHIWm2, "dni": rec.DNIWm2, "dhi": rec.DHIWm2,
			"lux": rec.LuxApprox, "panel_output": rec.PanelOutputW,
		} {
			if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
				p.errorf("%s: %s = %v", at, name, v)
			}
		}
		if rec.CloudCoverPct < 0 || rec.CloudCoverPct > 100 {
			p.errorf("%s: cloud cover %.1f outside 0-100", at, rec.CloudCoverPct)
		}
		if rec.PerformanceRatio > 1 {
			p.errorf("%s: performance ratio %.3f above 1", at, rec.PerformanceRatio)
		}
		if rec.GHIWm2 == 0 && rec.IrradianceQuality != domain.QualityNone {
			p.errorf("%s: zero GHI classified %s", at, rec.IrradianceQuality)
		}
		if !rec.IsDay && rec.WeatherCondition != domain.ConditionNight {
			p.errorf("%s: night hour classified %s", at, rec.WeatherCondition)
		}
	}
	return p
}

func checkSummary(r domain.EnrichmentResult) *phase {
	p := &phase{name: "Summary (totals)"}
	s := r.Summary
	if s.SampleCount != len(r.Series) {
		p.errorf("sample count %d, series has %d", s.SampleCount, len(r.Series))
	}

	var wh, peak float64
	daylight := 0
	for _, rec := range r.Series {
		wh += rec.PanelOutputW
		peak = math.Max(peak, rec.PanelOutputW)
		if rec.IsDay {
			daylight++
		}
	}
	if math.Abs(s.TotalEnergyKWh-wh/1000) > 1e-6 {
		p.errorf("total energy %.6f kWh, recomputed %.6f", s.TotalEnergyKWh, wh/1000)
	}
	if s.PeakPanelOutputW != peak {
		p.errorf("peak output %.3f W, recomputed %.3f", s.PeakPanelOutputW, peak)
	}
	if s.DaylightSamples != daylight {
		p.errorf("daylight samples %d, recomputed %d", s.DaylightSamples, daylight)
	}
	return p
}
