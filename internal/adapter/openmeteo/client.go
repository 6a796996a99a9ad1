package openmeteo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker"

	"github.com/couchcryptid/solar-enrichment-service/internal/domain"
	"github.com/couchcryptid/solar-enrichment-service/internal/observability"
)

const (
	// DefaultBaseURL is the public Open-Meteo forecast endpoint.
	DefaultBaseURL = "https://api.open-meteo.com/v1/forecast"

	dateLayout = "2006-01-02"
)

var errCircuitOpen = errors.New("circuit breaker open")

// Client implements domain.ForecastSource using the Open-Meteo forecast API.
// Transient failures (network errors, 429, 5xx) are retried with exponential
// backoff behind a circuit breaker; other 4xx responses fail immediately.
type Client struct {
	baseURL        string
	httpClient     *http.Client
	breaker        *gobreaker.CircuitBreaker
	maxRetries     int
	initialBackoff time.Duration
	maxBackoff     time.Duration
	metrics        *observability.Metrics
	logger         *slog.Logger
}

// NewClient creates an Open-Meteo client. timeout bounds each HTTP attempt.
func NewClient(baseURL string, timeout time.Duration, maxRetries int, metrics *observability.Metrics, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL:        baseURL,
		httpClient:     &http.Client{Timeout: timeout},
		breaker:        newBreaker(logger),
		maxRetries:     maxRetries,
		initialBackoff: 500 * time.Millisecond,
		maxBackoff:     5 * time.Second,
		metrics:        metrics,
		logger:         logger,
	}
}

func newBreaker(logger *slog.Logger) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "openmeteo",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change", "breaker", name, "from", from.String(), "to", to.String())
		},
	})
}

// FetchForecast requests the hourly variables in q for whole UTC days.
func (c *Client) FetchForecast(ctx context.Context, q domain.ForecastQuery) (domain.ForecastData, error) {
	start := time.Now()
	body, err := c.fetchWithRetry(ctx, c.buildURL(q))
	c.metrics.ForecastAPIDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		c.metrics.ForecastRequests.WithLabelValues("error").Inc()
		return domain.ForecastData{}, err
	}

	var resp response
	if err := json.Unmarshal(body, &resp); err != nil {
		c.metrics.ForecastRequests.WithLabelValues("error").Inc()
		return domain.ForecastData{}, fmt.Errorf("decode forecast response: %w", err)
	}

	data, err := resp.toForecastData()
	if err != nil {
		c.metrics.ForecastRequests.WithLabelValues("error").Inc()
		return domain.ForecastData{}, err
	}

	if len(data.ShortwaveRadiation) == 0 {
		c.metrics.ForecastRequests.WithLabelValues("empty").Inc()
	} else {
		c.metrics.ForecastRequests.WithLabelValues("success").Inc()
	}
	return data, nil
}

func (c *Client) buildURL(q domain.ForecastQuery) string {
	vars := q.Variables
	if len(vars) == 0 {
		vars = domain.HourlyVariables
	}
	params := url.Values{
		"latitude":   {fmt.Sprintf("%.4f", q.Coordinates.Lat)},
		"longitude":  {fmt.Sprintf("%.4f", q.Coordinates.Lon)},
		"hourly":     {strings.Join(vars, ",")},
		"start_date": {q.StartDate.UTC().Format(dateLayout)},
		"end_date":   {q.EndDate.UTC().Format(dateLayout)},
		"timezone":   {"GMT"},
		"timeformat": {"unixtime"},
	}
	return c.baseURL + "?" + params.Encode()
}

func (c *Client) fetchWithRetry(ctx context.Context, fullURL string) ([]byte, error) {
	var body []byte
	attempt := 0

	operation := func() error {
		attempt++
		b, err := c.doRequest(ctx, fullURL)
		if err != nil {
			if attempt <= c.maxRetries {
				c.logger.Debug("forecast request failed, retrying", "attempt", attempt, "error", err)
			}
			return err
		}
		body = b
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.initialBackoff
	bo.MaxInterval = c.maxBackoff
	bo.MaxElapsedTime = 0 // bounded by maxRetries and ctx

	maxRetries := uint64(max(c.maxRetries, 0))
	if err := backoff.Retry(operation, backoff.WithContext(backoff.WithMaxRetries(bo, maxRetries), ctx)); err != nil {
		return nil, err
	}
	return body, nil
}

// doRequest performs one attempt. Errors that must not be retried are
// wrapped with backoff.Permanent.
func (c *Client) doRequest(ctx context.Context, fullURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("create request: %w", err))
	}

	result, err := c.breaker.Execute(func() (any, error) {
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("forecast request: %w", err)
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("read forecast body: %w", err)
		}
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return nil, fmt.Errorf("open-meteo API error: status %d: %s", resp.StatusCode, apiReason(body))
		}
		// Client errors do not count against the breaker.
		return httpResult{status: resp.StatusCode, body: body}, nil
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, backoff.Permanent(fmt.Errorf("%w: %w", errCircuitOpen, err))
		}
		if ctx.Err() != nil {
			return nil, backoff.Permanent(err)
		}
		return nil, err
	}

	res := result.(httpResult)
	if res.status != http.StatusOK {
		return nil, backoff.Permanent(fmt.Errorf("open-meteo API error: status %d: %s", res.status, apiReason(res.body)))
	}
	return res.body, nil
}

type httpResult struct {
	status int
	body   []byte
}

// apiReason extracts the "reason" field of an Open-Meteo error body, falling
// back to the raw body.
func apiReason(body []byte) string {
	var e struct {
		Reason string `json:"reason"`
	}
	if json.Unmarshal(body, &e) == nil && e.Reason != "" {
		return e.Reason
	}
	return string(body)
}

// Open-Meteo API response types. Values are pointers because the API emits
// null for hours it has no data for.

type response struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Elevation float64 `json:"elevation"`
	Timezone  string  `json:"timezone"`
	Hourly    hourly  `json:"hourly"`
}

type hourly struct {
	Time                   []int64    `json:"time"`
	CloudCover             []*float64 `json:"cloud_cover"`
	ShortwaveRadiation     []*float64 `json:"shortwave_radiation"`
	DirectNormalIrradiance []*float64 `json:"direct_normal_irradiance"`
	DiffuseRadiation       []*float64 `json:"diffuse_radiation"`
	SunshineDuration       []*float64 `json:"sunshine_duration"`
	IsDay                  []*float64 `json:"is_day"`
	Temperature            []*float64 `json:"temperature_2m"`
}

// toForecastData checks the time axis is evenly spaced and converts the
// columns, mapping null to NaN.
func (r response) toForecastData() (domain.ForecastData, error) {
	data := domain.ForecastData{
		Location: domain.LocationInfo{
			Coordinates: domain.Coordinates{Lat: r.Latitude, Lon: r.Longitude},
			ElevationM:  r.Elevation,
			Timezone:    r.Timezone,
		},
		Interval: time.Hour,
	}
	times := r.Hourly.Time
	if len(times) == 0 {
		return data, nil
	}

	data.Start = time.Unix(times[0], 0).UTC()
	if len(times) > 1 {
		step := times[1] - times[0]
		if step <= 0 {
			return domain.ForecastData{}, fmt.Errorf("irregular forecast time axis: step %ds", step)
		}
		for i := 2; i < len(times); i++ {
			if times[i]-times[i-1] != step {
				return domain.ForecastData{}, fmt.Errorf("irregular forecast time axis at index %d", i)
			}
		}
		data.Interval = time.Duration(step) * time.Second
	}

	n := len(times)
	data.CloudCover = column(r.Hourly.CloudCover, n)
	data.ShortwaveRadiation = column(r.Hourly.ShortwaveRadiation, n)
	data.DirectNormalIrradiance = column(r.Hourly.DirectNormalIrradiance, n)
	data.DiffuseRadiation = column(r.Hourly.DiffuseRadiation, n)
	data.SunshineDuration = column(r.Hourly.SunshineDuration, n)
	data.IsDay = column(r.Hourly.IsDay, n)
	data.Temperature = column(r.Hourly.Temperature, n)
	return data, nil
}

// column converts at most n values; a variable absent from the response stays nil.
func column(values []*float64, n int) []float64 {
	if values == nil {
		return nil
	}
	out := make([]float64, min(len(values), n))
	for i := range out {
		if values[i] == nil {
			out[i] = math.NaN()
			continue
		}
		out[i] = *values[i]
	}
	return out
}
