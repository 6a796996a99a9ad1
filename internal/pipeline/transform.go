package pipeline

import (
	"context"
	"errors"
	"log/slog"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/solar-enrichment-service/internal/domain"
	"github.com/couchcryptid/solar-enrichment-service/internal/observability"
)

// TransformerConfig holds the enrichment settings for a SolarTransformer.
type TransformerConfig struct {
	Fallback      domain.Coordinates
	Window        domain.Window
	AllowDegraded bool
}

// SolarTransformer implements Transformer: it enriches device samples with
// the current-hour solar forecast for their location.
type SolarTransformer struct {
	source   domain.ForecastSource
	geocoder domain.Geocoder
	cfg      TransformerConfig
	clock    clockwork.Clock
	metrics  *observability.Metrics
	logger   *slog.Logger
}

// NewTransformer creates a SolarTransformer. Pass a nil geocoder to disable
// place resolution and a nil clock to use the real clock.
func NewTransformer(source domain.ForecastSource, geocoder domain.Geocoder, cfg TransformerConfig, clock clockwork.Clock, metrics *observability.Metrics, logger *slog.Logger) *SolarTransformer {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &SolarTransformer{
		source:   source,
		geocoder: geocoder,
		cfg:      cfg,
		clock:    clock,
		metrics:  metrics,
		logger:   logger,
	}
}

func (t *SolarTransformer) Transform(ctx context.Context, raw domain.RawEvent) (domain.OutputEvent, error) {
	sample, err := domain.ParseDeviceSample(raw)
	if err != nil {
		return domain.OutputEvent{}, err
	}
	rec, err := t.Enrich(ctx, sample)
	if err != nil {
		return domain.OutputEvent{}, err
	}
	return domain.SerializeTelemetry(rec)
}

// Enrich resolves the sample's location, fetches the forecast and merges
// the current hour into a telemetry record. When the forecast is
// unavailable and degraded output is allowed, the record carries
// enrichment_status "unavailable" and no solar fields.
func (t *SolarTransformer) Enrich(ctx context.Context, sample domain.DeviceSample) (domain.TelemetryRecord, error) {
	now := t.clock.Now()
	coords, coordSource := domain.ResolveCoordinates(ctx, sample, t.geocoder, t.cfg.Fallback, t.logger)

	result, err := domain.Enrich(ctx, t.source, coords, now, t.cfg.Window)
	if err != nil {
		if !errors.Is(err, domain.ErrForecastUnavailable) || !t.cfg.AllowDegraded {
			return domain.TelemetryRecord{}, err
		}
		t.logger.Warn("forecast unavailable, forwarding unenriched record",
			"device_id", sample.DeviceID,
			"lat", coords.Lat,
			"lon", coords.Lon,
			"error", err,
		)
		t.metrics.EnrichmentResults.WithLabelValues(string(domain.StatusUnavailable)).Inc()
		rec := domain.MergeTelemetry(sample, coords, nil, now)
		rec.Location.Name = sample.Place
		return rec, nil
	}

	if sample.Place != "" {
		result.Location.Name = sample.Place
	}
	result.Location = domain.ResolvePlace(ctx, result.Location, t.geocoder, t.logger)
	status := result.Status()
	t.metrics.EnrichmentResults.WithLabelValues(string(status)).Inc()
	t.logger.Debug("sample enriched",
		"device_id", sample.DeviceID,
		"coord_source", coordSource,
		"status", status,
		"hours", len(result.Series),
	)
	return domain.MergeTelemetry(sample, coords, &result, now), nil
}
