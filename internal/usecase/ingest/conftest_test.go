package ingest

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/seclens/termwatch/internal/domain"
)

type mockSearchClient struct {
	dispatchFn func(ctx context.Context) (string, error)
	awaitFn    func(ctx context.Context, sid string) error
	fetchFn    func(ctx context.Context, sid string) ([]domain.Record, error)
}

func (m *mockSearchClient) Dispatch(ctx context.Context) (string, error) {
	return m.dispatchFn(ctx)
}

func (m *mockSearchClient) AwaitCompletion(ctx context.Context, sid string) error {
	return m.awaitFn(ctx, sid)
}

func (m *mockSearchClient) FetchResults(ctx context.Context, sid string) ([]domain.Record, error) {
	return m.fetchFn(ctx, sid)
}

type mockAnalyzer struct {
	analyzeFn func(ctx context.Context, query string) domain.DetectionResult
}

func (m *mockAnalyzer) Analyze(ctx context.Context, query string) domain.DetectionResult {
	return m.analyzeFn(ctx, query)
}

// mockExporter records every Send and answers with sendFn, defaulting to
// success when no function is set.
type mockExporter struct {
	mu     sync.Mutex
	sent   []domain.DetectionResult
	sendFn func(result domain.DetectionResult, sourcetype, originalTime string) bool
}

func (m *mockExporter) Send(_ context.Context, result domain.DetectionResult, sourcetype, originalTime string) bool {
	m.mu.Lock()
	m.sent = append(m.sent, result)
	m.mu.Unlock()
	if m.sendFn == nil {
		return true
	}
	return m.sendFn(result, sourcetype, originalTime)
}

func (m *mockExporter) sentCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

func echoAnalyzer() *mockAnalyzer {
	return &mockAnalyzer{
		analyzeFn: func(_ context.Context, query string) domain.DetectionResult {
			return domain.DetectionResult{Query: query, MostSimilarTerm: domain.NoMatchTerm}
		},
	}
}

func staticSearch(records []domain.Record) *mockSearchClient {
	return &mockSearchClient{
		dispatchFn: func(context.Context) (string, error) { return "sid-1", nil },
		awaitFn:    func(context.Context, string) error { return nil },
		fetchFn:    func(context.Context, string) ([]domain.Record, error) { return records, nil },
	}
}

func newTestService(search SearchClient, analyzer Analyzer, exporter Exporter) *Service {
	return New(search, analyzer, exporter, 2, zap.NewNop())
}
