package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/couchcryptid/solar-enrichment-service/internal/domain"
	"github.com/couchcryptid/solar-enrichment-service/internal/observability"
)

const maxBodyBytes = 1 << 20

// ReadinessChecker reports whether the service is ready to serve traffic.
type ReadinessChecker interface {
	CheckReadiness(ctx context.Context) error
}

// Processor enriches and forwards a single device sample.
type Processor interface {
	Process(ctx context.Context, raw domain.RawEvent) (domain.OutputEvent, error)
}

// Server exposes the ingest endpoint plus health, readiness, and metrics routes.
type Server struct {
	httpServer *http.Server
	processor  Processor
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewServer creates an HTTP server with /api/data, /health, /healthz,
// /readyz, and /metrics routes.
func NewServer(addr string, ready ReadinessChecker, processor Processor, metrics *observability.Metrics, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		processor: processor,
		metrics:   metrics,
		logger:    logger,
	}

	mux.HandleFunc("POST /api/data", s.handleIngest)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", handleReady(ready))
	mux.Handle("GET /metrics", promhttp.Handler())

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

type ingestResponse struct {
	Status        string          `json:"status"`
	Message       string          `json:"message"`
	ProcessedData json.RawMessage `json:"processed_data,omitempty"`
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.respond(w, http.StatusRequestEntityTooLarge, ingestResponse{Status: "error", Message: "request body too large"})
			return
		}
		s.respond(w, http.StatusBadRequest, ingestResponse{Status: "error", Message: "read request body: " + err.Error()})
		return
	}

	raw := domain.RawEvent{
		Value:     body,
		Headers:   map[string]string{"source": "http"},
		Timestamp: time.Now().UTC(),
	}
	out, err := s.processor.Process(r.Context(), raw)
	if err != nil {
		status := statusFor(err)
		if status >= http.StatusInternalServerError {
			s.logger.Error("ingest failed", "status", status, "error", err)
		} else {
			s.logger.Debug("ingest rejected", "status", status, "error", err)
		}
		s.respond(w, status, ingestResponse{Status: "error", Message: err.Error()})
		return
	}

	s.respond(w, http.StatusOK, ingestResponse{
		Status:        "success",
		Message:       "Data processed and sent",
		ProcessedData: out.Value,
	})
}

// statusFor maps processing errors to HTTP status codes.
func statusFor(err error) int {
	var verrs validator.ValidationErrors
	switch {
	case errors.As(err, &verrs), errors.Is(err, domain.ErrInvalidCoordinates):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrInvalidSample):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrForecastUnavailable):
		return http.StatusBadGateway
	default:
		// Sink failures (pipeline.ErrSinkWrite) and anything unexpected.
		return http.StatusInternalServerError
	}
}

func (s *Server) respond(w http.ResponseWriter, status int, v any) {
	s.metrics.IngestRequests.WithLabelValues(strconv.Itoa(status)).Inc()
	writeJSON(w, status, v)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func handleReady(checker ReadinessChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := checker.CheckReadiness(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "not ready",
				"error":  err.Error(),
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort response
}
