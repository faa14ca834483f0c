// Package corpus loads the sensitive-term corpus and precomputes its
// embeddings at startup.
package corpus

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/seclens/termwatch/internal/domain"
)

// LoadTerms reads the term column from a CSV file. The column position is
// discovered from the header row; empty cells are skipped.
func LoadTerms(path, column string) ([]string, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("open corpus %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read corpus %s: %w", path, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("corpus %s: %w", path, domain.ErrCorpusEmpty)
	}

	col := -1
	for i, name := range rows[0] {
		if strings.TrimSpace(name) == column {
			col = i
			break
		}
	}
	if col < 0 {
		return nil, fmt.Errorf("corpus %s has no %q column", path, column)
	}

	var terms []string
	for _, row := range rows[1:] {
		if col >= len(row) {
			continue
		}
		if term := strings.TrimSpace(row[col]); term != "" {
			terms = append(terms, term)
		}
	}
	if len(terms) == 0 {
		return nil, fmt.Errorf("corpus %s: %w", path, domain.ErrCorpusEmpty)
	}
	return terms, nil
}

// Build embeds every term and assembles the immutable corpus. Providers with
// a native batch endpoint are used as such; others fall back to one call per
// term.
func Build(ctx context.Context, terms []string, embedder domain.Embedder, logger *zap.Logger) (*domain.Corpus, error) {
	logger.Info("Precomputing sensitive term embeddings", zap.Int("terms", len(terms)))

	var embeddings [][]float32
	if be, ok := embedder.(domain.BatchEmbedder); ok {
		res, err := be.BatchEmbed(ctx, terms)
		if err != nil {
			return nil, fmt.Errorf("batch embed corpus: %w", err)
		}
		embeddings = res.Embeddings
	} else {
		res, err := domain.BatchFallback(ctx, embedder, terms)
		if err != nil {
			return nil, fmt.Errorf("embed corpus: %w", err)
		}
		embeddings = res.Embeddings
	}

	corpus, err := domain.NewCorpus(terms, embeddings)
	if err != nil {
		return nil, err
	}

	logger.Info("Corpus ready", zap.Int("distinct_terms", corpus.Len()))
	return corpus, nil
}
