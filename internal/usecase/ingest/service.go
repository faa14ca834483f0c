// Package ingest orchestrates the detection pipeline: pull candidate records
// from the remote search platform, score each query, and republish findings
// to the collector.
package ingest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/seclens/termwatch/internal/domain"
	"github.com/seclens/termwatch/internal/metrics"
)

// Meta labels an analysis batch with its origin.
type Meta struct {
	Trigger    string // "scheduled" / "manual" / "webhook"
	Sourcetype string
	SourceIP   string
	UserAgent  string
}

// Summary are the counters of one pipeline pass.
type Summary struct {
	Fetched   int           `json:"fetched"`
	Processed int           `json:"processed"`
	Exported  int           `json:"exported"`
	Skipped   int           `json:"skipped"`
	Duration  time.Duration `json:"-"`
}

// Service runs the pipeline body shared by the scheduler, the manual pull
// endpoint, and the webhook.
type Service struct {
	search   SearchClient
	analyzer Analyzer
	exporter Exporter
	workers  int
	logger   *zap.Logger
}

// New creates the pipeline service. workers bounds concurrent per-record
// analysis; non-positive values run sequentially.
func New(search SearchClient, analyzer Analyzer, exporter Exporter, workers int, logger *zap.Logger) *Service {
	if workers <= 0 {
		workers = 1
	}
	return &Service{
		search:   search,
		analyzer: analyzer,
		exporter: exporter,
		workers:  workers,
		logger:   logger,
	}
}

// RunCycle executes one full pull: dispatch the saved search, wait for the
// job, fetch every page, then analyze and export each record. Any stage
// failure aborts the cycle cleanly; the next tick retries independently.
func (s *Service) RunCycle(ctx context.Context, meta Meta) (Summary, []domain.DetectionResult, error) {
	runID := uuid.NewString()
	log := s.logger.With(zap.String("run_id", runID), zap.String("trigger", meta.Trigger))

	start := time.Now()
	defer func() { metrics.CycleDuration.Observe(time.Since(start).Seconds()) }()

	log.Info("Starting ingestion cycle")

	sid, err := s.search.Dispatch(ctx)
	if err != nil {
		log.Error("Failed to dispatch search job", zap.Error(err))
		return Summary{}, nil, fmt.Errorf("dispatch: %w", err)
	}

	if err := s.search.AwaitCompletion(ctx, sid); err != nil {
		log.Error("Search job did not complete", zap.String("sid", sid), zap.Error(err))
		return Summary{}, nil, fmt.Errorf("await completion: %w", err)
	}

	records, err := s.search.FetchResults(ctx, sid)
	if err != nil {
		log.Error("Failed to retrieve search results", zap.String("sid", sid), zap.Error(err))
		return Summary{}, nil, fmt.Errorf("fetch results: %w", err)
	}
	if len(records) == 0 {
		log.Info("No records to process this cycle")
		return Summary{Duration: time.Since(start)}, nil, nil
	}

	summary, results := s.ProcessRecords(ctx, records, meta)
	summary.Duration = time.Since(start)

	log.Info("Completed ingestion cycle",
		zap.Int("fetched", summary.Fetched),
		zap.Int("processed", summary.Processed),
		zap.Int("exported", summary.Exported),
		zap.Int("skipped", summary.Skipped),
		zap.Duration("duration", summary.Duration))
	return summary, results, nil
}

// ProcessRecords analyzes and exports a pre-fetched record batch. Records
// without a recognizable query field are skipped silently. Export failures
// are absorbed per event and never abort the batch.
func (s *Service) ProcessRecords(ctx context.Context, records []domain.Record, meta Meta) (Summary, []domain.DetectionResult) {
	summary := Summary{Fetched: len(records)}

	var mu sync.Mutex
	var results []domain.DetectionResult

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)

	for _, rec := range records {
		rec := rec
		g.Go(func() error {
			query := rec.QueryText()
			if query == "" {
				mu.Lock()
				summary.Skipped++
				mu.Unlock()
				return nil
			}

			analysis := s.analyzer.Analyze(gctx, query)
			analysis.SourceRecord = rec
			analysis.Source = meta.Trigger
			analysis.SourceIP = meta.SourceIP
			analysis.UserAgent = meta.UserAgent

			exported := s.exporter.Send(gctx, analysis, meta.Sourcetype, rec.EventTime())

			mu.Lock()
			summary.Processed++
			if exported {
				summary.Exported++
			}
			results = append(results, analysis)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait() // workers never return errors; failures are absorbed per record

	metrics.RecordsProcessedTotal.WithLabelValues(meta.Trigger).Add(float64(summary.Processed))
	return summary, results
}
