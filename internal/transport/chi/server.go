// Package chi exposes the detection service over HTTP: single and batch
// analysis, the manual pipeline trigger, the alert webhook, and scheduler
// introspection.
package chi

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/seclens/termwatch/internal/domain"
	"github.com/seclens/termwatch/internal/usecase/ingest"
)

// Analyzer scores one query against the sensitive-term corpus.
type Analyzer interface {
	Analyze(ctx context.Context, query string) domain.DetectionResult
}

// Pipeline runs the pull-analyze-export cycle on demand and over
// pre-fetched record batches.
type Pipeline interface {
	RunCycle(ctx context.Context, meta ingest.Meta) (ingest.Summary, []domain.DetectionResult, error)
	ProcessRecords(ctx context.Context, records []domain.Record, meta ingest.Meta) (ingest.Summary, []domain.DetectionResult)
}

// Exporter delivers one detection event to the collector.
type Exporter interface {
	Send(ctx context.Context, result domain.DetectionResult, sourcetype, originalTime string) bool
}

// StatusReporter exposes the scheduler snapshot.
type StatusReporter interface {
	Status() ingest.Status
}

// Server holds the HTTP handlers.
type Server struct {
	analyzer  Analyzer
	pipeline  Pipeline
	exporter  Exporter
	scheduler StatusReporter
	corpus    *domain.Corpus
	logger    *zap.Logger
}

// NewServer creates an HTTP API server. scheduler may be nil when the
// background pull is disabled.
func NewServer(
	analyzer Analyzer,
	pipeline Pipeline,
	exporter Exporter,
	scheduler StatusReporter,
	corpus *domain.Corpus,
	logger *zap.Logger,
) *Server {
	return &Server{
		analyzer:  analyzer,
		pipeline:  pipeline,
		exporter:  exporter,
		scheduler: scheduler,
		corpus:    corpus,
		logger:    logger,
	}
}

// Routes mounts every endpoint on the router.
func (s *Server) Routes(r chi.Router) {
	r.Get("/health", s.Health)
	r.Post("/analyze", s.Analyze)
	r.Post("/analyze/batch", s.AnalyzeBatch)
	r.Post("/analyze/detailed", s.AnalyzeDetailed)
	r.Post("/pull", s.Pull)
	r.Post("/webhook", s.Webhook)
	r.Get("/scheduler/status", s.SchedulerStatus)
	r.Handle("/metrics", promhttp.Handler())
}

// Health handles GET /health.
func (s *Server) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":       "healthy",
		"message":      "sensitive-query detection service is running",
		"terms_loaded": s.corpus.Len(),
	})
}

type analyzeRequest struct {
	Query string `json:"query"`
}

// Analyze handles POST /analyze.
func (s *Server) Analyze(w http.ResponseWriter, r *http.Request) {
	s.analyzeOne(w, r, domain.SourcetypeAnalysis)
}

// AnalyzeDetailed handles POST /analyze/detailed. Same scoring as Analyze,
// exported under its own sourcetype so downstream dashboards can split the
// traffic.
func (s *Server) AnalyzeDetailed(w http.ResponseWriter, r *http.Request) {
	s.analyzeOne(w, r, domain.SourcetypeDetailed)
}

func (s *Server) analyzeOne(w http.ResponseWriter, r *http.Request, sourcetype string) {
	var req analyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Query == "" {
		writeError(w, http.StatusBadRequest, "missing 'query' field in request")
		return
	}

	result := s.analyzer.Analyze(r.Context(), req.Query)
	result.SourceIP = clientIP(r)
	result.UserAgent = r.UserAgent()

	s.exporter.Send(r.Context(), result, sourcetype, "")

	writeJSON(w, http.StatusOK, result)
}

type analyzeBatchRequest struct {
	Queries []string `json:"queries"`
}

// AnalyzeBatch handles POST /analyze/batch.
func (s *Server) AnalyzeBatch(w http.ResponseWriter, r *http.Request) {
	var req analyzeBatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Queries == nil {
		writeError(w, http.StatusBadRequest, "missing 'queries' field in request")
		return
	}

	ip, ua := clientIP(r), r.UserAgent()
	results := make([]domain.DetectionResult, 0, len(req.Queries))
	for _, query := range req.Queries {
		result := s.analyzer.Analyze(r.Context(), query)
		result.SourceIP = ip
		result.UserAgent = ua
		results = append(results, result)

		s.exporter.Send(r.Context(), result, domain.SourcetypeAnalysis, "")
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"results": results,
		"count":   len(results),
	})
}

// Pull handles POST /pull: a manually triggered full pipeline cycle.
func (s *Server) Pull(w http.ResponseWriter, r *http.Request) {
	summary, results, err := s.pipeline.RunCycle(r.Context(), ingest.Meta{
		Trigger:    "manual",
		Sourcetype: domain.SourcetypeScheduled,
		SourceIP:   clientIP(r),
		UserAgent:  r.UserAgent(),
	})
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, domain.ErrDispatchFailed) || errors.Is(err, domain.ErrJobTimeout) {
			status = http.StatusBadGateway
		}
		writeError(w, status, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message": "pipeline cycle completed",
		"summary": summary,
		"results": results,
	})
}

// Webhook handles POST /webhook: alert payloads pushed by the search
// platform. The platform sends four shapes depending on alert configuration,
// all normalized to a record batch before processing.
func (s *Server) Webhook(w http.ResponseWriter, r *http.Request) {
	var payload any
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "no data received")
		return
	}

	records := normalizeWebhookPayload(payload)
	if len(records) == 0 {
		writeError(w, http.StatusBadRequest, "no search results found")
		return
	}

	summary, results := s.pipeline.ProcessRecords(r.Context(), records, ingest.Meta{
		Trigger:    "webhook",
		Sourcetype: domain.SourcetypeWebhook,
		SourceIP:   clientIP(r),
		UserAgent:  r.UserAgent(),
	})

	s.logger.Info("Processed webhook alerts",
		zap.Int("received", summary.Fetched),
		zap.Int("analyzed", summary.Processed),
		zap.Int("skipped", summary.Skipped))

	writeJSON(w, http.StatusOK, map[string]any{
		"message": "alerts analyzed",
		"summary": summary,
		"results": results,
	})
}

// SchedulerStatus handles GET /scheduler/status.
func (s *Server) SchedulerStatus(w http.ResponseWriter, r *http.Request) {
	if s.scheduler == nil {
		writeJSON(w, http.StatusOK, ingest.Status{})
		return
	}
	writeJSON(w, http.StatusOK, s.scheduler.Status())
}

// normalizeWebhookPayload flattens the shapes the search platform is known
// to post: a bare record, {"result": record}, {"result": [records]}, and a
// bare array of records.
func normalizeWebhookPayload(payload any) []domain.Record {
	switch v := payload.(type) {
	case []any:
		return recordsFromSlice(v)
	case map[string]any:
		inner, ok := v["result"]
		if !ok {
			return []domain.Record{domain.Record(v)}
		}
		switch res := inner.(type) {
		case []any:
			return recordsFromSlice(res)
		case map[string]any:
			return []domain.Record{domain.Record(res)}
		}
	}
	return nil
}

func recordsFromSlice(items []any) []domain.Record {
	records := make([]domain.Record, 0, len(items))
	for _, item := range items {
		if m, ok := item.(map[string]any); ok {
			records = append(records, domain.Record(m))
		}
	}
	return records
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
