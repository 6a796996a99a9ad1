//go:build integration

package rediscache

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"

	"github.com/couchcryptid/solar-enrichment-service/internal/observability"
)

func startRedis(ctx context.Context, t *testing.T) string {
	t.Helper()
	container, err := tcredis.Run(ctx, "redis:7-alpine")
	require.NoError(t, err, "start redis container")
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	url, err := container.ConnectionString(ctx)
	require.NoError(t, err)
	return url
}

func TestSource_SharesForecastsThroughRedis(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	url := startRedis(ctx, t)
	client, err := Connect(ctx, url)
	require.NoError(t, err)
	defer client.Close()

	inner := &countingSource{data: sampleData()}
	metrics := observability.NewMetricsForTesting()

	// Two replicas sharing one Redis.
	a := New(client, inner, time.Minute, metrics, discardLogger())
	b := New(client, inner, time.Minute, metrics, discardLogger())

	first, err := a.FetchForecast(ctx, testQuery())
	require.NoError(t, err)
	second, err := b.FetchForecast(ctx, testQuery())
	require.NoError(t, err)

	assert.Equal(t, 1, inner.calls)
	assert.Equal(t, first.ShortwaveRadiation, second.ShortwaveRadiation)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.ForecastCache.WithLabelValues("redis", "hit")), 0)

	ttl, err := client.TTL(ctx, keyPrefix+"-33.8688,151.2093|2024-06-01|2024-06-02|cloud_cover,shortwave_radiation,direct_normal_irradiance,diffuse_radiation,sunshine_duration,is_day,temperature_2m").Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))
	require.NoError(t, a.Ping(ctx))
}
