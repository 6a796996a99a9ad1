// Package rediscache shares forecast responses between service replicas
// through Redis.
package rediscache

import (
	"bytes"
	"context"
	"encoding/gob"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/couchcryptid/solar-enrichment-service/internal/adapter/openmeteo"
	"github.com/couchcryptid/solar-enrichment-service/internal/domain"
	"github.com/couchcryptid/solar-enrichment-service/internal/observability"
)

const keyPrefix = "solar:forecast:"

// Source is a domain.ForecastSource decorator backed by Redis. Redis
// failures are logged and the request falls through to the inner source.
type Source struct {
	client  *redis.Client
	inner   domain.ForecastSource
	ttl     time.Duration
	metrics *observability.Metrics
	logger  *slog.Logger
}

// Connect parses a redis:// URL and verifies the server is reachable.
func Connect(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return client, nil
}

// New wraps inner with a Redis cache. Entries expire after ttl.
func New(client *redis.Client, inner domain.ForecastSource, ttl time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Source {
	return &Source{
		client:  client,
		inner:   inner,
		ttl:     ttl,
		metrics: metrics,
		logger:  logger,
	}
}

func (s *Source) FetchForecast(ctx context.Context, q domain.ForecastQuery) (domain.ForecastData, error) {
	key := keyPrefix + openmeteo.CacheKey(q)

	raw, err := s.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		data, decodeErr := decode(raw)
		if decodeErr == nil {
			s.metrics.ForecastCache.WithLabelValues("redis", "hit").Inc()
			return data, nil
		}
		s.logger.Warn("discarding undecodable cached forecast", "key", key, "error", decodeErr)
	case errors.Is(err, redis.Nil):
	default:
		s.logger.Warn("redis get failed", "key", key, "error", err)
	}
	s.metrics.ForecastCache.WithLabelValues("redis", "miss").Inc()

	data, err := s.inner.FetchForecast(ctx, q)
	if err != nil || len(data.ShortwaveRadiation) == 0 {
		return data, err
	}

	encoded, err := encode(data)
	if err != nil {
		s.logger.Warn("encode forecast for redis", "error", err)
		return data, nil
	}
	if err := s.client.Set(ctx, key, encoded, s.ttl).Err(); err != nil {
		s.logger.Warn("redis set failed", "key", key, "error", err)
	}
	return data, nil
}

// Ping reports whether Redis is reachable.
func (s *Source) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the underlying Redis client.
func (s *Source) Close() error {
	return s.client.Close()
}

// Forecast arrays carry NaN for missing values, which JSON cannot represent.
func encode(data domain.ForecastData) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(data); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decode(raw []byte) (domain.ForecastData, error) {
	var data domain.ForecastData
	err := gob.NewDecoder(bytes.NewReader(raw)).Decode(&data)
	return data, err
}
