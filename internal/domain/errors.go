package domain

import "errors"

var (
	// ErrInvalidCoordinates reports a latitude outside [-90, 90] or a
	// longitude outside [-180, 180].
	ErrInvalidCoordinates = errors.New("invalid coordinates")

	// ErrForecastUnavailable reports that the forecast source failed, returned
	// malformed data, or returned no rows.
	ErrForecastUnavailable = errors.New("forecast unavailable")

	// ErrInvalidWindow reports a negative past or future hour count.
	ErrInvalidWindow = errors.New("invalid forecast window")
)
