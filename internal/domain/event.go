package domain

import (
	"context"
	"time"
)

// RawEvent represents an unprocessed device-sample message from the source
// topic or the HTTP ingest endpoint.
type RawEvent struct {
	Key       []byte
	Value     []byte
	Headers   map[string]string
	Topic     string
	Partition int
	Offset    int64
	Timestamp time.Time
	Commit    func(ctx context.Context) error
}

// DeviceSample is the telemetry a device reports. Latitude and Longitude are
// optional; without them the location comes from Place (when a geocoder is
// configured) or from the configured fallback.
type DeviceSample struct {
	DeviceID    string   `json:"device_id"`
	Temperature float64  `json:"temperature" validate:"gte=-100,lte=150"`
	Humidity    float64  `json:"humidity,omitempty" validate:"gte=0,lte=100"`
	Pressure    float64  `json:"pressure,omitempty" validate:"gte=0"`
	Latitude    *float64 `json:"latitude,omitempty" validate:"omitempty,gte=-90,lte=90"`
	Longitude   *float64 `json:"longitude,omitempty" validate:"omitempty,gte=-180,lte=180"`
	Place       string   `json:"place,omitempty" validate:"max=200"`

	ReceivedAt time.Time `json:"-"`
}

// SolarFields are the current-hour values copied into a telemetry record.
type SolarFields struct {
	ForecastTime      time.Time         `json:"forecast_time"`
	GHIWm2            float64           `json:"ghi_wm2"`
	DNIWm2            float64           `json:"dni_wm2"`
	DHIWm2            float64           `json:"dhi_wm2"`
	CloudCoverPct     float64           `json:"cloud_cover_pct"`
	SunshineSeconds   float64           `json:"sunshine_seconds"`
	IsDay             bool              `json:"is_day"`
	AirTempC          float64           `json:"air_temp_c"`
	LuxApprox         float64           `json:"lux_approx"`
	PanelOutputW      float64           `json:"panel_output_w"`
	PerformanceRatio  float64           `json:"performance_ratio"`
	ClearnessIndex    float64           `json:"clearness_index"`
	DiffuseFraction   float64           `json:"diffuse_fraction"`
	DirectFraction    float64           `json:"direct_fraction"`
	IrradianceQuality IrradianceQuality `json:"irradiance_quality"`
	WeatherCondition  WeatherCondition  `json:"weather_condition"`
}

// TelemetryRecord is the merged record forwarded to the telemetry sink.
type TelemetryRecord struct {
	ID           string `json:"id"`
	DeviceID     string `json:"device_id"`
	DeviceStatus string `json:"device_status"`

	Temperature float64 `json:"temperature"`
	Humidity    float64 `json:"humidity"`
	Pressure    float64 `json:"pressure"`

	Location         LocationInfo     `json:"location"`
	EnrichmentStatus EnrichmentStatus `json:"enrichment_status"`

	Solar   *SolarFields   `json:"solar,omitempty"`
	Summary *WindowSummary `json:"summary,omitempty"`

	ProcessedAt time.Time `json:"processed_at"`
}

// OutputEvent is the serialized form destined for the sink.
type OutputEvent struct {
	Key       []byte
	Value     []byte
	Headers   map[string]string
	Timestamp time.Time
}
