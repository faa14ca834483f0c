package chi

import (
	"context"
	"net/http"
	"testing"

	chirouter "github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/seclens/termwatch/internal/domain"
	"github.com/seclens/termwatch/internal/usecase/ingest"
)

type mockAnalyzer struct {
	analyzeFn func(ctx context.Context, query string) domain.DetectionResult
}

func (m *mockAnalyzer) Analyze(ctx context.Context, query string) domain.DetectionResult {
	if m.analyzeFn == nil {
		return domain.DetectionResult{Query: query, MostSimilarTerm: domain.NoMatchTerm}
	}
	return m.analyzeFn(ctx, query)
}

type mockPipeline struct {
	runCycleFn func(ctx context.Context, meta ingest.Meta) (ingest.Summary, []domain.DetectionResult, error)
	processFn  func(ctx context.Context, records []domain.Record, meta ingest.Meta) (ingest.Summary, []domain.DetectionResult)
}

func (m *mockPipeline) RunCycle(ctx context.Context, meta ingest.Meta) (ingest.Summary, []domain.DetectionResult, error) {
	return m.runCycleFn(ctx, meta)
}

func (m *mockPipeline) ProcessRecords(ctx context.Context, records []domain.Record, meta ingest.Meta) (ingest.Summary, []domain.DetectionResult) {
	return m.processFn(ctx, records, meta)
}

type mockExporter struct {
	sent   []domain.DetectionResult
	types  []string
	sendFn func(result domain.DetectionResult, sourcetype string) bool
}

func (m *mockExporter) Send(_ context.Context, result domain.DetectionResult, sourcetype, _ string) bool {
	m.sent = append(m.sent, result)
	m.types = append(m.types, sourcetype)
	if m.sendFn == nil {
		return true
	}
	return m.sendFn(result, sourcetype)
}

type mockStatusReporter struct {
	status ingest.Status
}

func (m *mockStatusReporter) Status() ingest.Status { return m.status }

func testCorpus(t *testing.T) *domain.Corpus {
	t.Helper()
	corpus, err := domain.NewCorpus(
		[]string{"delete all records", "bypass login"},
		[][]float32{{1, 0, 0}, {0, 1, 0}},
	)
	if err != nil {
		t.Fatalf("build corpus: %v", err)
	}
	return corpus
}

type serverFixture struct {
	analyzer  *mockAnalyzer
	pipeline  *mockPipeline
	exporter  *mockExporter
	scheduler *mockStatusReporter
	handler   http.Handler
}

func newTestServer(t *testing.T) *serverFixture {
	t.Helper()
	f := &serverFixture{
		analyzer:  &mockAnalyzer{},
		pipeline:  &mockPipeline{},
		exporter:  &mockExporter{},
		scheduler: &mockStatusReporter{},
	}

	srv := NewServer(f.analyzer, f.pipeline, f.exporter, f.scheduler, testCorpus(t), zap.NewNop())
	r := chirouter.NewRouter()
	srv.Routes(r)
	f.handler = r
	return f
}
