package detect

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"github.com/seclens/termwatch/internal/domain"
	"github.com/seclens/termwatch/internal/usecase/similarity"
)

// mockEmbedder implements the consumer interface for tests.
type mockEmbedder struct {
	embedFn func(ctx context.Context, text string) (domain.EmbeddingResult, error)
}

func (m *mockEmbedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	if m.embedFn != nil {
		return m.embedFn(ctx, text)
	}
	return domain.EmbeddingResult{Embedding: []float32{0, 0, 1}}, nil
}

// testCorpus builds the two-term corpus used across scenarios, with
// orthogonal embeddings so semantic scores are predictable.
func testCorpus(t *testing.T) *domain.Corpus {
	t.Helper()
	c, err := domain.NewCorpus(
		[]string{"delete all records", "bypass login"},
		[][]float32{{1, 0, 0}, {0, 1, 0}},
	)
	if err != nil {
		t.Fatalf("build corpus: %v", err)
	}
	return c
}

func newTestService(t *testing.T, emb *mockEmbedder, threshold float64) *Service {
	t.Helper()
	return New(testCorpus(t), emb, similarity.New(similarity.Weights{}), threshold, zap.NewNop())
}
