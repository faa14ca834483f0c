package domain

// NoMatchTerm marks a detection result where no term cleared the threshold.
const NoMatchTerm = "none"

// Sourcetype labels attached to exported events, by origin.
const (
	SourcetypeAnalysis  = "nlp_analysis"
	SourcetypeDetailed  = "nlp_detailed_analysis"
	SourcetypeScheduled = "splunk_rest_analysis"
	SourcetypeWebhook   = "splunk_alert_analysis"
)

// Match is one (term, score) pair that cleared the detection threshold.
type Match struct {
	Term  string  `json:"term"`
	Score float64 `json:"score"`
}

// DetectionResult is the outcome of analyzing one query against the corpus.
// Immutable once built; the exporter works on its own copy when enriching
// with delivery timing fields.
type DetectionResult struct {
	Query            string  `json:"query"`
	MostSimilarTerm  string  `json:"most_similar_term"`
	SimilarityScore  float64 `json:"similarity_score"`
	AllDetectedTerms []Match `json:"all_detected_terms"`

	Timestamp    string `json:"timestamp,omitempty"`
	Source       string `json:"source,omitempty"`
	SourceIP     string `json:"source_ip,omitempty"`
	UserAgent    string `json:"user_agent,omitempty"`
	SourceRecord Record `json:"splunk_data,omitempty"`

	// Delivery timing, filled by the event exporter.
	OriginalTime             string  `json:"original_time,omitempty"`
	ExportTime               string  `json:"hec_time,omitempty"`
	ProcessingLatencySeconds float64 `json:"processing_latency_seconds,omitempty"`
}

// Detected reports whether at least one term cleared the threshold.
func (r DetectionResult) Detected() bool {
	return r.MostSimilarTerm != NoMatchTerm && r.MostSimilarTerm != ""
}
