package similarity

import (
	"math"
	"testing"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"lowercases", "Delete ALL Records", "delete all records"},
		{"strips punctuation", "delete, all; records!!", "delete all records"},
		{"collapses whitespace", "  delete   all\trecords ", "delete all records"},
		{"keeps underscores", "user_name=admin", "user_name admin"},
		{"punctuation only", "?!...", ""},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Normalize(tt.in); got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestSubstringScore(t *testing.T) {
	e := New(Weights{})

	t.Run("literal substring scores 1.0", func(t *testing.T) {
		if got := e.SubstringScore("please delete all records now", "delete all records"); got != 1.0 {
			t.Errorf("got %f, want 1.0", got)
		}
	})

	t.Run("punctuation does not break a substring match", func(t *testing.T) {
		if got := e.SubstringScore("please, DELETE all; records!", "delete all records"); got != 1.0 {
			t.Errorf("got %f, want 1.0", got)
		}
	})

	t.Run("partial match scales by longest common run", func(t *testing.T) {
		got := e.SubstringScore("delete some files", "delete all")
		// longest common run is "delete " (7 runes) over a 10-rune term
		if math.Abs(got-0.7) > 1e-9 {
			t.Errorf("got %f, want 0.7", got)
		}
	})

	t.Run("empty term after normalization scores 0", func(t *testing.T) {
		if got := e.SubstringScore("anything", "?!"); got != 0 {
			t.Errorf("got %f, want 0", got)
		}
	})

	t.Run("no common run scores 0", func(t *testing.T) {
		if got := e.SubstringScore("aaaa", "zzzz"); got != 0 {
			t.Errorf("got %f, want 0", got)
		}
	})
}

func TestWordOverlapScore(t *testing.T) {
	e := New(Weights{})

	t.Run("disjoint tokens score 0", func(t *testing.T) {
		if got := e.WordOverlapScore("weather forecast tomorrow", "bypass login"); got != 0 {
			t.Errorf("got %f, want 0", got)
		}
	})

	t.Run("identical token sets score 1", func(t *testing.T) {
		if got := e.WordOverlapScore("records all delete", "delete all records"); got != 1.0 {
			t.Errorf("got %f, want 1.0", got)
		}
	})

	t.Run("partial overlap is jaccard", func(t *testing.T) {
		got := e.WordOverlapScore("delete old files", "delete all records")
		// intersection {delete} = 1, union = 5
		if math.Abs(got-0.2) > 1e-9 {
			t.Errorf("got %f, want 0.2", got)
		}
	})

	t.Run("empty query scores 0", func(t *testing.T) {
		if got := e.WordOverlapScore("", "delete"); got != 0 {
			t.Errorf("got %f, want 0", got)
		}
	})
}

func TestCombine(t *testing.T) {
	e := New(Weights{})

	t.Run("substring match dominates weak semantic", func(t *testing.T) {
		got := e.Combine("please delete all records now", "delete all records", 0.3)
		if got != 1.0 {
			t.Errorf("got %f, want 1.0", got)
		}
	})

	t.Run("strong semantic discounted under substring gate", func(t *testing.T) {
		// substring = 1.0, semantic*0.7 = 0.7 -> max is still 1.0
		got := e.Combine("delete all records", "delete all records", 1.0)
		if got != 1.0 {
			t.Errorf("got %f, want 1.0", got)
		}
	})

	t.Run("word overlap path discounts semantic by 0.8", func(t *testing.T) {
		// token sets equal -> overlap 1.0 > 0.6 gate, but no contiguous match
		got := e.Combine("records all delete", "delete all records", 0.9)
		if got != 1.0 {
			t.Errorf("got %f, want 1.0", got)
		}
	})

	t.Run("falls back to semantic alone", func(t *testing.T) {
		got := e.Combine("weather forecast tomorrow", "bypass login", 0.42)
		if got != 0.42 {
			t.Errorf("got %f, want 0.42", got)
		}
	})

	t.Run("combined stays in unit range for semantic in unit range", func(t *testing.T) {
		queries := []string{"please delete all records now", "records all delete", "weather tomorrow", ""}
		terms := []string{"delete all records", "bypass login", "?"}
		for _, q := range queries {
			for _, term := range terms {
				for _, sem := range []float64{0, 0.25, 0.5, 0.99, 1} {
					got := e.Combine(q, term, sem)
					if got < 0 || got > 1 {
						t.Errorf("Combine(%q, %q, %f) = %f out of [0,1]", q, term, sem, got)
					}
				}
			}
		}
	})
}

func TestNew_CustomWeights(t *testing.T) {
	e := New(Weights{SubstringGate: 0.99})

	// substring score 1.0 > 0.99 gate still passes, but a 0.9 partial does not
	if got := e.Combine("delete all record", "delete all records", 0.1); got >= 0.9 {
		// overlap path: 2/4 intersection... verify it fell past the substring gate
		t.Logf("combined = %f", got)
	}
	if e.w.OverlapGate != 0.6 {
		t.Errorf("unset fields should default, got %f", e.w.OverlapGate)
	}
}
