// Package similarity scores a query against a sensitive term by blending
// substring, word-overlap, and semantic signals into one confidence value.
package similarity

import (
	"strings"
	"unicode"
)

// Weights holds the heuristic gates and semantic discounts of the combined
// score. The defaults come from tuning against production search logs and are
// kept overridable rather than hard-coded.
type Weights struct {
	SubstringGate           float64 // strong lexical match cutoff
	OverlapGate             float64 // good word overlap cutoff
	SemanticSubstringWeight float64 // semantic discount under a substring match
	SemanticOverlapWeight   float64 // semantic discount under a word-overlap match
}

// DefaultWeights returns the production defaults.
func DefaultWeights() Weights {
	return Weights{
		SubstringGate:           0.8,
		OverlapGate:             0.6,
		SemanticSubstringWeight: 0.7,
		SemanticOverlapWeight:   0.8,
	}
}

// Engine computes combined similarity scores. Stateless and safe for
// concurrent use.
type Engine struct {
	w Weights
}

// New creates an engine. Zero-valued weight fields fall back to defaults.
func New(w Weights) *Engine {
	def := DefaultWeights()
	if w.SubstringGate <= 0 {
		w.SubstringGate = def.SubstringGate
	}
	if w.OverlapGate <= 0 {
		w.OverlapGate = def.OverlapGate
	}
	if w.SemanticSubstringWeight <= 0 {
		w.SemanticSubstringWeight = def.SemanticSubstringWeight
	}
	if w.SemanticOverlapWeight <= 0 {
		w.SemanticOverlapWeight = def.SemanticOverlapWeight
	}
	return &Engine{w: w}
}

// Normalize lower-cases the text, replaces punctuation with spaces, and
// collapses whitespace, so punctuation-only differences do not affect scoring.
func Normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || unicode.IsSpace(r) {
			b.WriteRune(r)
		} else {
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// SubstringScore returns 1.0 when the normalized term occurs contiguously in
// the normalized query, otherwise the longest common contiguous substring
// length relative to the term length, capped at 1.0.
func (e *Engine) SubstringScore(query, term string) float64 {
	qn := Normalize(query)
	tn := Normalize(term)
	if tn == "" {
		return 0
	}

	if strings.Contains(qn, tn) {
		return 1
	}

	longest := longestCommonSubstring([]rune(qn), []rune(tn))
	if longest == 0 {
		return 0
	}
	score := float64(longest) / float64(len([]rune(tn)))
	if score > 1 {
		score = 1
	}
	return score
}

// WordOverlapScore returns the Jaccard similarity of the two normalized
// strings' distinct token sets.
func (e *Engine) WordOverlapScore(query, term string) float64 {
	qWords := tokenSet(Normalize(query))
	tWords := tokenSet(Normalize(term))
	if len(qWords) == 0 || len(tWords) == 0 {
		return 0
	}

	var intersection int
	for w := range tWords {
		if _, ok := qWords[w]; ok {
			intersection++
		}
	}
	union := len(qWords) + len(tWords) - intersection
	return float64(intersection) / float64(union)
}

// Combine blends the lexical scores with the precomputed semantic score.
// Literal or near-literal matches dominate over semantic noise; weaker
// lexical overlap still discounts the semantic score; otherwise the
// embedding similarity stands alone.
func (e *Engine) Combine(query, term string, semantic float64) float64 {
	if sub := e.SubstringScore(query, term); sub > e.w.SubstringGate {
		return max(sub, semantic*e.w.SemanticSubstringWeight)
	}
	if overlap := e.WordOverlapScore(query, term); overlap > e.w.OverlapGate {
		return max(overlap, semantic*e.w.SemanticOverlapWeight)
	}
	return semantic
}

func tokenSet(normalized string) map[string]struct{} {
	fields := strings.Fields(normalized)
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		set[f] = struct{}{}
	}
	return set
}

// longestCommonSubstring finds the longest contiguous run shared by a and b
// using a rolling single-row DP.
func longestCommonSubstring(a, b []rune) int {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	longest := 0

	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			if a[i-1] == b[j-1] {
				curr[j] = prev[j-1] + 1
				if curr[j] > longest {
					longest = curr[j]
				}
			} else {
				curr[j] = 0
			}
		}
		prev, curr = curr, prev
	}
	return longest
}
