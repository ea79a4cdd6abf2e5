// Package api exposes the analysis service over HTTP.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rewired-gh/uroflow/internal/config"
	"github.com/rewired-gh/uroflow/internal/logger"
	"github.com/rewired-gh/uroflow/internal/metrics"
	"github.com/rewired-gh/uroflow/internal/models"
	"github.com/rewired-gh/uroflow/internal/service"
)

// Service is the part of service.Service the handlers use.
type Service interface {
	Ingest(ctx context.Context, raw map[string]interface{}, receivedAt time.Time) models.IngestResult
	Location() *time.Location
	DailyStats(deviceID string, day time.Time) (models.DailyStats, error)
	PeriodStats(deviceID string, days int, now time.Time) (models.PeriodStats, error)
	Patterns(deviceID string, now time.Time) (models.PatternReport, error)
	Events(deviceID string, limit int) ([]models.VoidingEvent, error)
	CurrentEvent(deviceID string) *models.VoidingEvent
	Latest(deviceID string) (*models.SampleRecord, error)
	History(deviceID string, limit int) ([]models.SampleRecord, error)
	LatestAdvisory() (*models.AdvisoryResult, error)
	Status(now time.Time) (service.Status, error)
	Export(deviceID string, days int, now time.Time) ([]byte, error)
}

const maxBodyBytes = 1 << 20

type HTTPServer struct {
	server  *http.Server
	router  *mux.Router
	service Service
	now     func() time.Time
}

func NewHTTPServer(cfg config.ServerConfig, svc Service) *HTTPServer {
	router := mux.NewRouter()

	s := &HTTPServer{
		server: &http.Server{
			Addr:         cfg.Addr,
			Handler:      router,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		},
		router:  router,
		service: svc,
		now:     time.Now,
	}

	router.Use(s.metricsMiddleware)
	router.Use(s.loggingMiddleware)

	router.HandleFunc("/upload", s.upload).Methods("POST")

	router.HandleFunc("/color/analyze", s.analyzeColor).Methods("POST")
	router.HandleFunc("/color/chart", s.colorChart).Methods("GET")
	router.HandleFunc("/color/test", s.colorTest).Methods("GET")

	router.HandleFunc("/volume/stats", s.volumeStats).Methods("GET")
	router.HandleFunc("/volume/daily", s.volumeDaily).Methods("GET")
	router.HandleFunc("/volume/patterns", s.volumePatterns).Methods("GET")
	router.HandleFunc("/volume/events", s.volumeEvents).Methods("GET")
	router.HandleFunc("/volume/export.xlsx", s.volumeExport).Methods("GET")

	router.HandleFunc("/data/latest", s.latestData).Methods("GET")
	router.HandleFunc("/data/history", s.history).Methods("GET")
	router.HandleFunc("/ai/latest", s.latestAdvisory).Methods("GET")
	router.HandleFunc("/status", s.status).Methods("GET")

	router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	return s
}

// Handler returns the routed handler, for tests and embedding.
func (s *HTTPServer) Handler() http.Handler {
	return s.router
}

func (s *HTTPServer) Start() error {
	logger.Info("Starting HTTP server on %s", s.server.Addr)
	return s.server.ListenAndServe()
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	logger.Info("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

// responseWriter records the status code and body size.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
	size       int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	size, err := rw.ResponseWriter.Write(b)
	rw.size += size
	return size, err
}

// metricsMiddleware records request counts and latency by route template.
func (s *HTTPServer) metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)

		path := r.URL.Path
		if route := mux.CurrentRoute(r); route != nil {
			if tpl, err := route.GetPathTemplate(); err == nil {
				path = tpl
			}
		}

		metrics.HTTPRequests.WithLabelValues(r.Method, path, strconv.Itoa(rw.statusCode)).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
	})
}

func (s *HTTPServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)

		logger.Debug("HTTP %s %s?%s from %s: status=%d size=%d duration=%s",
			r.Method, r.URL.Path, r.URL.RawQuery, r.RemoteAddr, rw.statusCode, rw.size, time.Since(start))
	})
}

// envelope is the JSON body of every non-binary response. success and
// timestamp are filled in by respond.
type envelope map[string]interface{}

func (s *HTTPServer) respond(w http.ResponseWriter, status int, body envelope) {
	body["success"] = status < http.StatusBadRequest
	body["timestamp"] = s.now().Format(time.RFC3339)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Error("Failed to encode response: %v", err)
	}
}

func (s *HTTPServer) fail(w http.ResponseWriter, status int, message string) {
	s.respond(w, status, envelope{"message": message})
}

func (s *HTTPServer) internalError(w http.ResponseWriter, what string, err error) {
	logger.Error("Failed to %s: %v", what, err)
	s.fail(w, http.StatusInternalServerError, "internal server error")
}
