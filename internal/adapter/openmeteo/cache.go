package openmeteo

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/solar-enrichment-service/internal/adapter/lru"
	"github.com/couchcryptid/solar-enrichment-service/internal/domain"
	"github.com/couchcryptid/solar-enrichment-service/internal/observability"
)

// CachedSource wraps a ForecastSource with an in-memory LRU cache whose
// entries expire after a TTL.
type CachedSource struct {
	inner   domain.ForecastSource
	cache   *lru.Cache[domain.ForecastData]
	metrics *observability.Metrics
}

// NewCachedSource creates a cache decorator around a forecast source.
func NewCachedSource(inner domain.ForecastSource, maxEntries int, ttl time.Duration, clock clockwork.Clock, metrics *observability.Metrics) *CachedSource {
	return &CachedSource{
		inner:   inner,
		cache:   lru.New[domain.ForecastData](maxEntries, ttl, clock),
		metrics: metrics,
	}
}

func (c *CachedSource) FetchForecast(ctx context.Context, q domain.ForecastQuery) (domain.ForecastData, error) {
	key := CacheKey(q)
	if data, ok := c.cache.Get(key); ok {
		c.metrics.ForecastCache.WithLabelValues("memory", "hit").Inc()
		return data, nil
	}
	c.metrics.ForecastCache.WithLabelValues("memory", "miss").Inc()

	data, err := c.inner.FetchForecast(ctx, q)
	if err != nil {
		return data, err
	}
	// Empty responses are not cached so the next request retries upstream.
	if len(data.ShortwaveRadiation) > 0 {
		c.cache.Put(key, data)
	}
	return data, nil
}

// CacheKey identifies a forecast query. Coordinates are rounded to four
// decimals (about 11 m), well below the forecast grid resolution.
func CacheKey(q domain.ForecastQuery) string {
	vars := q.Variables
	if len(vars) == 0 {
		vars = domain.HourlyVariables
	}
	return fmt.Sprintf("%.4f,%.4f|%s|%s|%s",
		q.Coordinates.Lat, q.Coordinates.Lon,
		q.StartDate.UTC().Format(dateLayout),
		q.EndDate.UTC().Format(dateLayout),
		strings.Join(vars, ","))
}
