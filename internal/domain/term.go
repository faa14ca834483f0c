package domain

import "fmt"

// SensitiveTerm is one corpus entry with its precomputed embedding.
type SensitiveTerm struct {
	Text      string
	Embedding []float32
}

// Corpus is the immutable set of sensitive terms loaded at startup.
// Terms and embeddings are index-aligned; iteration order is load order.
type Corpus struct {
	terms []SensitiveTerm
}

// NewCorpus builds a corpus from parallel term/embedding slices.
// Duplicate terms keep their first occurrence so ranked results never
// repeat a term.
func NewCorpus(terms []string, embeddings [][]float32) (*Corpus, error) {
	if len(terms) == 0 {
		return nil, ErrCorpusEmpty
	}
	if len(terms) != len(embeddings) {
		return nil, fmt.Errorf("corpus misaligned: %d terms, %d embeddings", len(terms), len(embeddings))
	}

	seen := make(map[string]struct{}, len(terms))
	entries := make([]SensitiveTerm, 0, len(terms))
	for i, t := range terms {
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		entries = append(entries, SensitiveTerm{Text: t, Embedding: embeddings[i]})
	}

	return &Corpus{terms: entries}, nil
}

// Len returns the number of distinct terms.
func (c *Corpus) Len() int { return len(c.terms) }

// Terms returns the term entries. Callers must treat the slice as read-only.
func (c *Corpus) Terms() []SensitiveTerm { return c.terms }
