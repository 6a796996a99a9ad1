// Command devicesim generates mock device samples for local runs and test
// fixtures. Samples are written to a JSON file, published to the Kafka
// source topic, or both.
//
// Usage:
//
//	go run ./cmd/devicesim -count 200 -out data/mock/device_samples.json
//	go run ./cmd/devicesim -count 50 -publish   # uses KAFKA_BROKERS / KAFKA_SOURCE_TOPIC
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math"
	"math/rand/v2"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/solar-enrichment-service/internal/config"
	"github.com/couchcryptid/solar-enrichment-service/internal/domain"
)

// site is a fixed installation the simulator places devices at.
type site struct {
	place    string
	lat, lon float64
	baseTemp float64
}

var sites = []site{
	{place: "Sydney, NSW", lat: -33.8688, lon: 151.2093, baseTemp: 18},
	{place: "Alice Springs, NT", lat: -23.6980, lon: 133.8807, baseTemp: 27},
	{place: "Perth, WA", lat: -31.9505, lon: 115.8605, baseTemp: 22},
	{place: "London, UK", lat: 51.5074, lon: -0.1278, baseTemp: 12},
	{place: "Berlin, DE", lat: 52.5200, lon: 13.4050, baseTemp: 11},
	{place: "Phoenix, AZ", lat: 33.4484, lon: -112.0740, baseTemp: 31},
	{place: "Nairobi, KE", lat: -1.2921, lon: 36.8219, baseTemp: 20},
	{place: "Santiago, CL", lat: -33.4489, lon: -70.6693, baseTemp: 15},
}

// locationMode is how a generated sample reports where it is.
type locationMode int

const (
	withCoordinates locationMode = iota
	withPlaceOnly
	withoutLocation
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	count := flag.Int("count", 100, "number of samples to generate")
	seed := flag.Uint64("seed", 42, "random seed for reproducible output")
	out := flag.String("out", "", "output path for the JSON fixture")
	publish := flag.Bool("publish", false, "publish samples to the Kafka source topic")
	flag.Parse()

	if *out == "" && !*publish {
		flag.Usage()
		return fmt.Errorf("nothing to do: set -out and/or -publish")
	}
	if *count <= 0 {
		return fmt.Errorf("-count must be positive")
	}

	samples := generate(*count, *seed)

	if *out != "" {
		if err := writeJSON(*out, samples); err != nil {
			return fmt.Errorf("writing fixture: %w", err)
		}
		log.Printf("wrote %d samples to %s", len(samples), *out)
	}

	if *publish {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		if err := publishSamples(ctx, cfg, samples); err != nil {
			return fmt.Errorf("publish: %w", err)
		}
		log.Printf("published %d samples to %s", len(samples), cfg.KafkaSourceTopic)
	}

	printStats(samples)
	return nil
}

// generate builds n samples spread across the sites. Output depends only on
// n and seed.
func generate(n int, seed uint64) []domain.DeviceSample {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	samples := make([]domain.DeviceSample, n)
	for i := range samples {
		s := sites[i%len(sites)]
		sample := domain.DeviceSample{
			DeviceID:    fmt.Sprintf("sim-%03d", i%(len(sites)*3)),
			Temperature: round1(s.baseTemp + rng.NormFloat64()*6),
			Humidity:    round1(clamp(40+rng.NormFloat64()*20, 0, 100)),
			Pressure:    round1(1013 + rng.NormFloat64()*8),
		}
		switch locationMode(rng.IntN(10) / 4) { // 0-3 coords, 4-7 place, 8-9 none
		case withCoordinates:
			lat := round4(s.lat + (rng.Float64()-0.5)*0.1)
			lon := round4(s.lon + (rng.Float64()-0.5)*0.1)
			sample.Latitude, sample.Longitude = &lat, &lon
		case withPlaceOnly:
			sample.Place = s.place
		case withoutLocation:
		}
		samples[i] = sample
	}
	return samples
}

func publishSamples(ctx context.Context, cfg *config.Config, samples []domain.DeviceSample) error {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaSourceTopic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
	}
	defer w.Close()

	now := time.Now().UTC()
	msgs := make([]kafkago.Message, 0, len(samples))
	for _, s := range samples {
		payload, err := json.Marshal(s)
		if err != nil {
			return fmt.Errorf("marshal sample: %w", err)
		}
		msgs = append(msgs, kafkago.Message{
			Key:   []byte(s.DeviceID),
			Value: payload,
			Time:  now,
			Headers: []kafkago.Header{
				{Key: "source", Value: []byte("devicesim")},
			},
		})
	}
	return w.WriteMessages(ctx, msgs...)
}

func writeJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o600)
}

type stats struct {
	withCoords int
	placeOnly  int
	noLocation int
	warning    int
}

func collectStats(samples []domain.DeviceSample) stats {
	var s stats
	for i := range samples {
		switch {
		case samples[i].Latitude != nil:
			s.withCoords++
		case samples[i].Place != "":
			s.placeOnly++
		default:
			s.noLocation++
		}
		if domain.DeviceStatus(samples[i].Temperature) == "WARNING" {
			s.warning++
		}
	}
	return s
}

func printStats(samples []domain.DeviceSample) {
	s := collectStats(samples)
	fmt.Printf("Total: %d\n", len(samples))
	fmt.Printf("Location: coordinates=%d, place-only=%d, none=%d\n", s.withCoords, s.placeOnly, s.noLocation)
	fmt.Printf("Status: NORMAL=%d, WARNING=%d\n", len(samples)-s.warning, s.warning)
}

func clamp(v, lo, hi float64) float64 { return math.Min(hi, math.Max(lo, v)) }
func round1(v float64) float64       { return math.Round(v*10) / 10 }
func round4(v float64) float64       { return math.Round(v*1e4) / 1e4 }
