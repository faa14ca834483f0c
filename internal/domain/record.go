package domain

// Record is one raw row returned by the remote search platform. Field names
// vary by saved search, so lookups go through an ordered fallback chain.
type Record map[string]any

// queryFields are the candidate query-bearing fields, most specific first.
var queryFields = []string{"SearchQueryText", "search", "query", "_raw"}

// QueryText returns the first non-empty query field, or "" when the record
// carries no recognizable query.
func (r Record) QueryText() string {
	for _, f := range queryFields {
		if s, ok := r[f].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

// EventTime returns the record's original event timestamp, or "" if absent.
func (r Record) EventTime() string {
	s, _ := r["_time"].(string)
	return s
}
