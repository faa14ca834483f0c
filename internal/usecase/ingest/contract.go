package ingest

import (
	"context"

	"github.com/seclens/termwatch/internal/domain"
)

// SearchClient drives the remote search platform: job dispatch, bounded
// completion wait, and paginated retrieval.
type SearchClient interface {
	Dispatch(ctx context.Context) (string, error)
	AwaitCompletion(ctx context.Context, sid string) error
	FetchResults(ctx context.Context, sid string) ([]domain.Record, error)
}

// Analyzer scores one query against the sensitive-term corpus.
type Analyzer interface {
	Analyze(ctx context.Context, query string) domain.DetectionResult
}

// Exporter delivers one detection event to the collector.
type Exporter interface {
	Send(ctx context.Context, result domain.DetectionResult, sourcetype, originalTime string) bool
}
