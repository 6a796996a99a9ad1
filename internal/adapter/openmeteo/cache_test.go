package openmeteo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/solar-enrichment-service/internal/domain"
	"github.com/couchcryptid/solar-enrichment-service/internal/observability"
)

type countingSource struct {
	calls int
	data  domain.ForecastData
	err   error
}

func (s *countingSource) FetchForecast(_ context.Context, _ domain.ForecastQuery) (domain.ForecastData, error) {
	s.calls++
	return s.data, s.err
}

func sampleData() domain.ForecastData {
	return domain.ForecastData{
		Start:                  time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC),
		Interval:               time.Hour,
		CloudCover:             []float64{10},
		ShortwaveRadiation:     []float64{500},
		DirectNormalIrradiance: []float64{400},
		DiffuseRadiation:       []float64{100},
	}
}

func TestCachedSource_HitAfterMiss(t *testing.T) {
	inner := &countingSource{data: sampleData()}
	metrics := observability.NewMetricsForTesting()
	c := NewCachedSource(inner, 10, time.Hour, nil, metrics)

	first, err := c.FetchForecast(context.Background(), testQuery())
	require.NoError(t, err)
	second, err := c.FetchForecast(context.Background(), testQuery())
	require.NoError(t, err)

	assert.Equal(t, 1, inner.calls)
	assert.Equal(t, first, second)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.ForecastCache.WithLabelValues("memory", "miss")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.ForecastCache.WithLabelValues("memory", "hit")), 0)
}

func TestCachedSource_DistinctQueries(t *testing.T) {
	inner := &countingSource{data: sampleData()}
	c := NewCachedSource(inner, 10, time.Hour, nil, observability.NewMetricsForTesting())

	q1 := testQuery()
	q2 := testQuery()
	q2.Coordinates = domain.Coordinates{Lat: 51.5074, Lon: -0.1278}

	_, _ = c.FetchForecast(context.Background(), q1)
	_, _ = c.FetchForecast(context.Background(), q2)
	assert.Equal(t, 2, inner.calls)
}

func TestCachedSource_EntriesExpire(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2024, time.June, 1, 12, 0, 0, 0, time.UTC))
	inner := &countingSource{data: sampleData()}
	c := NewCachedSource(inner, 10, 15*time.Minute, clock, observability.NewMetricsForTesting())

	_, _ = c.FetchForecast(context.Background(), testQuery())
	clock.Advance(10 * time.Minute)
	_, _ = c.FetchForecast(context.Background(), testQuery())
	assert.Equal(t, 1, inner.calls)

	clock.Advance(10 * time.Minute)
	_, _ = c.FetchForecast(context.Background(), testQuery())
	assert.Equal(t, 2, inner.calls)
}

func TestCachedSource_DoesNotCacheErrors(t *testing.T) {
	inner := &countingSource{err: errors.New("upstream down")}
	c := NewCachedSource(inner, 10, time.Hour, nil, observability.NewMetricsForTesting())

	_, err := c.FetchForecast(context.Background(), testQuery())
	require.Error(t, err)
	_, err = c.FetchForecast(context.Background(), testQuery())
	require.Error(t, err)
	assert.Equal(t, 2, inner.calls)
}

func TestCachedSource_DoesNotCacheEmpty(t *testing.T) {
	inner := &countingSource{data: domain.ForecastData{Interval: time.Hour}}
	c := NewCachedSource(inner, 10, time.Hour, nil, observability.NewMetricsForTesting())

	_, _ = c.FetchForecast(context.Background(), testQuery())
	_, _ = c.FetchForecast(context.Background(), testQuery())
	assert.Equal(t, 2, inner.calls)
}

func TestCacheKey(t *testing.T) {
	q := testQuery()
	assert.Equal(t, "-33.8688,151.2093|2024-06-01|2024-06-02|"+
		"cloud_cover,shortwave_radiation,direct_normal_irradiance,diffuse_radiation,sunshine_duration,is_day,temperature_2m",
		CacheKey(q))

	q.Variables = nil
	assert.Equal(t, CacheKey(testQuery()), CacheKey(q), "nil variables mean the default set")
}
