//go:build integration

package integration_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
	tckafka "github.com/testcontainers/testcontainers-go/modules/kafka"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// startKafka runs a single-node Kafka container and returns its broker address.
func startKafka(ctx context.Context, t *testing.T) string {
	t.Helper()
	container, err := tckafka.Run(ctx, "confluentinc/confluent-local:7.5.0", tckafka.WithClusterID("solar-test"))
	require.NoError(t, err, "start kafka container")
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	brokers, err := container.Brokers(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, brokers)
	return brokers[0]
}

// createTopic creates a single-partition topic through the cluster controller.
func createTopic(t *testing.T, broker, topic string) {
	t.Helper()
	conn, err := kafkago.Dial("tcp", broker)
	require.NoError(t, err)
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err)

	ctrl, err := kafkago.Dial("tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	require.NoError(t, err)
	defer ctrl.Close()

	require.NoError(t, ctrl.CreateTopics(kafkago.TopicConfig{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	}))
}

// fakeOpenMeteo serves a constant clear-sky forecast for whatever days are
// requested, in the unixtime format the client asks for.
func fakeOpenMeteo(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		start, err := time.Parse(time.DateOnly, q.Get("start_date"))
		if err != nil {
			http.Error(w, `{"error":true,"reason":"bad start_date"}`, http.StatusBadRequest)
			return
		}
		end, err := time.Parse(time.DateOnly, q.Get("end_date"))
		if err != nil {
			http.Error(w, `{"error":true,"reason":"bad end_date"}`, http.StatusBadRequest)
			return
		}

		hours := int(end.Sub(start)/time.Hour) + 24
		times := make([]int64, hours)
		for i := range times {
			times[i] = start.Add(time.Duration(i) * time.Hour).Unix()
		}
		fill := func(v float64) []float64 {
			out := make([]float64, hours)
			for i := range out {
				out[i] = v
			}
			return out
		}
		lat, _ := strconv.ParseFloat(q.Get("latitude"), 64)
		lon, _ := strconv.ParseFloat(q.Get("longitude"), 64)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"latitude":  lat,
			"longitude": lon,
			"elevation": 20,
			"timezone":  "GMT",
			"hourly": map[string]any{
				"time":                     times,
				"cloud_cover":              fill(5),
				"shortwave_radiation":      fill(700),
				"direct_normal_irradiance": fill(600),
				"diffuse_radiation":        fill(100),
				"sunshine_duration":        fill(3600),
				"is_day":                   fill(1),
				"temperature_2m":           fill(25),
			},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}
