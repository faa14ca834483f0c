// Package hec delivers enriched detection events to the remote HTTP event
// collector. Delivery failures are logged and absorbed so the pipeline never
// stalls on the collector.
package hec

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/seclens/termwatch/internal/domain"
	"github.com/seclens/termwatch/internal/metrics"
)

// Config holds collector settings. An empty URL disables export.
type Config struct {
	URL             string
	Token           string
	Index           string
	Source          string
	Timeout         time.Duration
	BreakerFailures uint32
	BreakerCooldown time.Duration
}

// envelope is the collector wire format.
type envelope struct {
	Time       int64  `json:"time"`
	Source     string `json:"source"`
	Sourcetype string `json:"sourcetype"`
	Index      string `json:"index"`
	Event      any    `json:"event"`
}

// Exporter sends detection events to the collector endpoint.
type Exporter struct {
	cfg     Config
	http    *http.Client
	breaker *gobreaker.CircuitBreaker
	logger  *zap.Logger
}

// New creates an exporter. A circuit breaker trips after consecutive delivery
// failures so a dead collector costs nothing per event while it cools down.
func New(cfg Config, logger *zap.Logger) *Exporter {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.BreakerFailures == 0 {
		cfg.BreakerFailures = 5
	}
	if cfg.BreakerCooldown <= 0 {
		cfg.BreakerCooldown = time.Minute
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "hec",
		MaxRequests: 3,
		Timeout:     cfg.BreakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.BreakerFailures
		},
	})

	return &Exporter{
		cfg:     cfg,
		http:    &http.Client{Timeout: cfg.Timeout},
		breaker: breaker,
		logger:  logger,
	}
}

// Enabled reports whether a collector endpoint is configured.
func (e *Exporter) Enabled() bool { return e.cfg.URL != "" }

// Send enriches the result with delivery timing and posts it to the
// collector. Returns false on any failure; failures are logged, never raised,
// and there is no per-event retry.
func (e *Exporter) Send(ctx context.Context, result domain.DetectionResult, sourcetype, originalTime string) bool {
	if !e.Enabled() {
		e.logger.Debug("Collector not configured, skipping export", zap.String("query", result.Query))
		metrics.ExportsTotal.WithLabelValues("disabled").Inc()
		return false
	}

	now := time.Now()
	if originalTime != "" {
		result.OriginalTime = normalizeTimestamp(originalTime)
		result.ProcessingLatencySeconds = latencySeconds(result.OriginalTime, now)
	}
	result.ExportTime = now.Format(simpleLayout)

	env := envelope{
		Time:       eventEpoch(result.OriginalTime, now),
		Source:     e.cfg.Source,
		Sourcetype: sourcetype,
		Index:      e.cfg.Index,
		Event:      result,
	}

	_, err := e.breaker.Execute(func() (any, error) {
		return nil, e.post(ctx, env)
	})
	if err != nil {
		metrics.ExportsTotal.WithLabelValues("failure").Inc()
		e.logger.Warn("Failed to export event",
			zap.String("query", result.Query),
			zap.String("sourcetype", sourcetype),
			zap.Error(err))
		return false
	}

	metrics.ExportsTotal.WithLabelValues("success").Inc()
	e.logger.Debug("Exported event", zap.String("query", result.Query), zap.String("sourcetype", sourcetype))
	return true
}

func (e *Exporter) post(ctx context.Context, env envelope) error {
	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Splunk "+e.cfg.Token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.http.Do(req)
	if err != nil {
		return fmt.Errorf("post event: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return fmt.Errorf("collector status %d: %s", resp.StatusCode, detail)
	}
	return nil
}
