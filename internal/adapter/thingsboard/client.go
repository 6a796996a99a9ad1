// Package thingsboard publishes telemetry records to a ThingsBoard device
// over the HTTP device API.
package thingsboard

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/couchcryptid/solar-enrichment-service/internal/config"
	"github.com/couchcryptid/solar-enrichment-service/internal/domain"
	"github.com/couchcryptid/solar-enrichment-service/internal/observability"
)

// Client posts telemetry to {baseURL}/api/v1/{token}/telemetry.
// It implements pipeline.BatchLoader.
type Client struct {
	endpoint   string
	httpClient *http.Client
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates a ThingsBoard telemetry client for one device token.
func NewClient(baseURL, token string, timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return &Client{
		endpoint:   fmt.Sprintf("%s/api/v1/%s/telemetry", baseURL, url.PathEscape(token)),
		httpClient: &http.Client{Timeout: timeout},
		metrics:    metrics,
		logger:     logger,
	}
}

// telemetry is the timestamped form of the ThingsBoard telemetry upload.
type telemetry struct {
	TS     int64          `json:"ts"`
	Values map[string]any `json:"values"`
}

// LoadBatch posts each event in order and stops at the first failure so the
// pipeline retries the whole batch.
func (c *Client) LoadBatch(ctx context.Context, events []domain.OutputEvent) error {
	for i := range events {
		if err := c.post(ctx, events[i]); err != nil {
			c.metrics.SinkWrites.WithLabelValues(config.SinkThingsBoard, "error").Inc()
			return err
		}
		c.metrics.SinkWrites.WithLabelValues(config.SinkThingsBoard, "success").Inc()
	}
	return nil
}

func (c *Client) post(ctx context.Context, event domain.OutputEvent) error {
	values, err := flattenValues(event.Value)
	if err != nil {
		return fmt.Errorf("build telemetry values: %w", err)
	}
	body, err := json.Marshal(telemetry{TS: event.Timestamp.UnixMilli(), Values: values})
	if err != nil {
		return fmt.Errorf("encode telemetry: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("thingsboard request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("thingsboard API error: status %d: %s", resp.StatusCode, msg)
	}
	c.logger.Debug("telemetry sent", "device_id", string(event.Key), "status", resp.StatusCode)
	return nil
}

// flattenValues turns a JSON object into the flat key/value map ThingsBoard
// stores as telemetry. Nested keys are joined with an underscore and nulls
// are dropped.
func flattenValues(raw []byte) (map[string]any, error) {
	var obj map[string]any
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, err
	}
	out := make(map[string]any, len(obj))
	flatten("", obj, out)
	return out, nil
}

func flatten(prefix string, obj map[string]any, out map[string]any) {
	for k, v := range obj {
		key := k
		if prefix != "" {
			key = prefix + "_" + k
		}
		switch val := v.(type) {
		case nil:
		case map[string]any:
			flatten(key, val, out)
		default:
			out[key] = val
		}
	}
}
