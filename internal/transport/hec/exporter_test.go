package hec

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/seclens/termwatch/internal/domain"
)

func testResult() domain.DetectionResult {
	return domain.DetectionResult{
		Query:            "please delete all records now",
		MostSimilarTerm:  "delete all records",
		SimilarityScore:  1.0,
		AllDetectedTerms: []domain.Match{{Term: "delete all records", Score: 1.0}},
	}
}

func TestSend_DeliversEnvelope(t *testing.T) {
	var got struct {
		Time       int64                  `json:"time"`
		Source     string                 `json:"source"`
		Sourcetype string                 `json:"sourcetype"`
		Index      string                 `json:"index"`
		Event      domain.DetectionResult `json:"event"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if auth := r.Header.Get("Authorization"); auth != "Splunk test-token" {
			t.Errorf("auth header = %q", auth)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode envelope: %v", err)
		}
	}))
	defer srv.Close()

	exp := New(Config{
		URL:    srv.URL,
		Token:  "test-token",
		Index:  "nlp_alerts",
		Source: "nlp_alert_service",
	}, zap.NewNop())

	originalTime := time.Now().Add(-90 * time.Second).Format(time.RFC3339)
	ok := exp.Send(context.Background(), testResult(), domain.SourcetypeScheduled, originalTime)
	if !ok {
		t.Fatal("Send() = false, want true")
	}

	if got.Index != "nlp_alerts" || got.Source != "nlp_alert_service" || got.Sourcetype != domain.SourcetypeScheduled {
		t.Errorf("envelope metadata = %+v", got)
	}
	if got.Time == 0 {
		t.Error("envelope time not set")
	}

	if got.Event.OriginalTime == "" || got.Event.ExportTime == "" {
		t.Errorf("timing fields missing: %+v", got.Event)
	}
	if math.Abs(got.Event.ProcessingLatencySeconds-90) > 5 {
		t.Errorf("latency = %f, want ~90", got.Event.ProcessingLatencySeconds)
	}
}

func TestSend_UnconfiguredCollector(t *testing.T) {
	exp := New(Config{}, zap.NewNop())

	// No server at all: a network attempt would fail loudly, but Send must
	// short-circuit before any call.
	if ok := exp.Send(context.Background(), testResult(), domain.SourcetypeAnalysis, ""); ok {
		t.Fatal("Send() = true with no collector configured")
	}
}

func TestSend_CollectorFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	exp := New(Config{URL: srv.URL, Token: "t"}, zap.NewNop())
	if ok := exp.Send(context.Background(), testResult(), domain.SourcetypeAnalysis, ""); ok {
		t.Fatal("Send() = true on collector failure")
	}
}

func TestSend_BreakerFailsFast(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	exp := New(Config{URL: srv.URL, Token: "t", BreakerFailures: 2}, zap.NewNop())
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		exp.Send(ctx, testResult(), domain.SourcetypeAnalysis, "")
	}

	if calls != 2 {
		t.Errorf("collector hit %d times, want 2 (breaker open after consecutive failures)", calls)
	}
}

func TestNormalizeTimestamp(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"extended to simple", "2025-10-02T09:18:31.000-04:00", "2025-10-02 09:18:31"},
		{"zulu", "2025-10-02T09:18:31Z", "2025-10-02 09:18:31"},
		{"already simple passes through", "2025-10-02 09:18:31", "2025-10-02 09:18:31"},
		{"garbage passes through", "not a time", "not a time"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := normalizeTimestamp(tt.in); got != tt.want {
				t.Errorf("normalizeTimestamp(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestLatencySeconds(t *testing.T) {
	now := time.Date(2025, 10, 2, 9, 20, 1, 0, time.Local)

	if got := latencySeconds("2025-10-02 09:18:31", now); got != 90 {
		t.Errorf("latency = %f, want 90", got)
	}
	if got := latencySeconds("unparsable", now); got != 0 {
		t.Errorf("latency for unparsable time = %f, want 0", got)
	}
	if got := latencySeconds("", now); got != 0 {
		t.Errorf("latency for empty time = %f, want 0", got)
	}
}

func TestEventEpoch(t *testing.T) {
	now := time.Date(2025, 10, 2, 9, 20, 0, 0, time.Local)

	original := time.Date(2025, 10, 2, 9, 18, 31, 0, time.Local)
	if got := eventEpoch("2025-10-02 09:18:31", now); got != original.Unix() {
		t.Errorf("epoch = %d, want %d", got, original.Unix())
	}
	if got := eventEpoch("", now); got != now.Unix() {
		t.Errorf("epoch fallback = %d, want now (%d)", got, now.Unix())
	}
}
