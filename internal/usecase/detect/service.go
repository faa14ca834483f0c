// Package detect ranks a query against the sensitive-term corpus and keeps
// every match above the detection threshold.
package detect

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/seclens/termwatch/internal/domain"
	"github.com/seclens/termwatch/internal/metrics"
	"github.com/seclens/termwatch/internal/usecase/similarity"
)

// DefaultThreshold is the minimum combined score for a term to count as detected.
const DefaultThreshold = 0.5

// Service analyzes queries against an immutable corpus. Safe for concurrent
// use: the corpus is read-only and the engine is stateless.
type Service struct {
	corpus    *domain.Corpus
	embed     Embedder
	engine    *similarity.Engine
	threshold float64
	logger    *zap.Logger
}

// New creates a detector. A non-positive threshold falls back to the default.
func New(corpus *domain.Corpus, embed Embedder, engine *similarity.Engine, threshold float64, logger *zap.Logger) *Service {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Service{
		corpus:    corpus,
		embed:     embed,
		engine:    engine,
		threshold: threshold,
		logger:    logger,
	}
}

// Analyze scores the query against every corpus term and returns the ranked
// detections. One embedding call per query; if the provider fails, scoring
// degrades to lexical signals only so literal matches still alert.
func (s *Service) Analyze(ctx context.Context, query string) domain.DetectionResult {
	var queryEmbedding []float32
	if res, err := s.embed.Embed(ctx, query); err != nil {
		s.logger.Warn("Query embedding failed, scoring lexically only",
			zap.String("query", query), zap.Error(err))
	} else {
		queryEmbedding = res.Embedding
	}

	matches := make([]domain.Match, 0)
	for _, term := range s.corpus.Terms() {
		semantic := domain.CosineSimilarity(queryEmbedding, term.Embedding)
		score := s.engine.Combine(query, term.Text, semantic)
		if score >= s.threshold {
			matches = append(matches, domain.Match{Term: term.Text, Score: score})
		}
	}

	// Stable: equal scores keep corpus order.
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })

	result := domain.DetectionResult{
		Query:            query,
		MostSimilarTerm:  domain.NoMatchTerm,
		SimilarityScore:  0,
		AllDetectedTerms: matches,
		Timestamp:        time.Now().Format(time.RFC3339),
	}
	if len(matches) > 0 {
		result.MostSimilarTerm = matches[0].Term
		result.SimilarityScore = matches[0].Score
		metrics.DetectionsTotal.Inc()
	}
	return result
}
