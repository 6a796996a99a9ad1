package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// WarningTemperatureC is the device temperature at which status turns WARNING.
const WarningTemperatureC = 30.0

var validate = validator.New(validator.WithRequiredStructEnabled())

// ErrInvalidSample reports a device sample that could not be decoded or
// failed field validation.
var ErrInvalidSample = errors.New("invalid device sample")

// ParseDeviceSample decodes and validates a device sample. A missing device
// id becomes "unknown" and ReceivedAt comes from the message timestamp.
func ParseDeviceSample(raw RawEvent) (DeviceSample, error) {
	if len(bytes.TrimSpace(raw.Value)) == 0 {
		return DeviceSample{}, fmt.Errorf("%w: empty payload", ErrInvalidSample)
	}

	var s DeviceSample
	if err := json.Unmarshal(raw.Value, &s); err != nil {
		return DeviceSample{}, fmt.Errorf("%w: %w", ErrInvalidSample, err)
	}
	if err := validate.Struct(s); err != nil {
		return DeviceSample{}, fmt.Errorf("%w: %w", ErrInvalidSample, err)
	}

	s.DeviceID = strings.TrimSpace(s.DeviceID)
	if s.DeviceID == "" {
		s.DeviceID = "unknown"
	}
	s.ReceivedAt = raw.Timestamp
	return s, nil
}

// Coordinates returns the device position when both components are present,
// otherwise the fallback.
func (s DeviceSample) Coordinates(fallback Coordinates) Coordinates {
	if s.Latitude == nil || s.Longitude == nil {
		return fallback
	}
	return Coordinates{Lat: *s.Latitude, Lon: *s.Longitude}
}

// DeviceStatus labels a device temperature NORMAL below 30 °C, WARNING otherwise.
func DeviceStatus(temperatureC float64) string {
	if temperatureC < WarningTemperatureC {
		return "NORMAL"
	}
	return "WARNING"
}

// MergeTelemetry combines a device sample with its enrichment. A nil result
// produces a record with EnrichmentStatus unavailable and no solar fields.
func MergeTelemetry(s DeviceSample, coords Coordinates, result *EnrichmentResult, processedAt time.Time) TelemetryRecord {
	rec := TelemetryRecord{
		ID:               uuid.NewString(),
		DeviceID:         s.DeviceID,
		DeviceStatus:     DeviceStatus(s.Temperature),
		Temperature:      s.Temperature,
		Humidity:         s.Humidity,
		Pressure:         s.Pressure,
		Location:         LocationInfo{Coordinates: coords},
		EnrichmentStatus: StatusUnavailable,
		ProcessedAt:      processedAt.UTC(),
	}
	if result == nil {
		return rec
	}

	rec.Location = result.Location
	rec.EnrichmentStatus = result.Status()
	summary := result.Summary
	rec.Summary = &summary
	if c := result.Current; c != nil {
		rec.Solar = &SolarFields{
			ForecastTime:      c.Time,
			GHIWm2:            c.GHIWm2,
			DNIWm2:            c.DNIWm2,
			DHIWm2:            c.DHIWm2,
			CloudCoverPct:     c.CloudCoverPct,
			SunshineSeconds:   c.SunshineSeconds,
			IsDay:             c.IsDay,
			AirTempC:          c.AirTempC,
			LuxApprox:         c.LuxApprox,
			PanelOutputW:      c.PanelOutputW,
			PerformanceRatio:  c.PerformanceRatio,
			ClearnessIndex:    c.ClearnessIndex,
			DiffuseFraction:   c.DiffuseFraction,
			DirectFraction:    c.DirectFraction,
			IrradianceQuality: c.IrradianceQuality,
			WeatherCondition:  c.WeatherCondition,
		}
	}
	return rec
}

// SerializeTelemetry marshals a record for the sink, keyed by device id.
func SerializeTelemetry(rec TelemetryRecord) (OutputEvent, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return OutputEvent{}, fmt.Errorf("serialize telemetry record: %w", err)
	}
	return OutputEvent{
		Key:   []byte(rec.DeviceID),
		Value: data,
		Headers: map[string]string{
			"record_id":         rec.ID,
			"enrichment_status": string(rec.EnrichmentStatus),
			"processed_at":      rec.ProcessedAt.Format(time.RFC3339),
		},
		Timestamp: rec.ProcessedAt,
	}, nil
}
