package domain

import (
	"context"
	"log/slog"
)

// Where a sample's coordinates came from.
const (
	CoordSourceDevice   = "device"
	CoordSourceForward  = "forward"
	CoordSourceFallback = "fallback"
)

// ResolveCoordinates picks the coordinates to enrich a sample with: the
// device's own position, then a forward geocode of its Place, then fallback.
// Geocoding failures degrade to the fallback.
func ResolveCoordinates(ctx context.Context, s DeviceSample, geocoder Geocoder, fallback Coordinates, logger *slog.Logger) (Coordinates, string) {
	if s.Latitude != nil && s.Longitude != nil {
		return s.Coordinates(fallback), CoordSourceDevice
	}

	if geocoder == nil || s.Place == "" {
		return fallback, CoordSourceFallback
	}

	result, err := geocoder.ForwardGeocode(ctx, s.Place)
	if err != nil {
		logger.Warn("forward geocoding failed",
			"device_id", s.DeviceID,
			"place", s.Place,
			"error", err,
		)
		return fallback, CoordSourceFallback
	}
	if result.Lat == 0 && result.Lon == 0 {
		return fallback, CoordSourceFallback
	}
	return Coordinates{Lat: result.Lat, Lon: result.Lon}, CoordSourceForward
}

// ResolvePlace fills loc.Name from a reverse geocode when it is empty. If the
// geocoder is nil or fails, loc is returned unchanged.
func ResolvePlace(ctx context.Context, loc LocationInfo, geocoder Geocoder, logger *slog.Logger) LocationInfo {
	if geocoder == nil || loc.Name != "" {
		return loc
	}

	result, err := geocoder.ReverseGeocode(ctx, loc.Lat, loc.Lon)
	if err != nil {
		logger.Warn("reverse geocoding failed",
			"lat", loc.Lat,
			"lon", loc.Lon,
			"error", err,
		)
		return loc
	}

	switch {
	case result.PlaceName != "":
		loc.Name = result.PlaceName
	case result.FormattedAddress != "":
		loc.Name = result.FormattedAddress
	}
	return loc
}
