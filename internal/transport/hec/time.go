package hec

import "time"

// simpleLayout is the platform's plain "date time" format.
const simpleLayout = "2006-01-02 15:04:05"

// normalizeTimestamp converts an extended offset-qualified timestamp
// (2025-10-02T09:18:31.000-04:00) to the simple layout. Anything that does
// not parse passes through unchanged.
func normalizeTimestamp(s string) string {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return s
	}
	return t.Format(simpleLayout)
}

// eventEpoch derives the collector delivery timestamp: the original event
// time when it parses, otherwise now.
func eventEpoch(normalized string, now time.Time) int64 {
	if t, err := time.ParseInLocation(simpleLayout, normalized, time.Local); err == nil {
		return t.Unix()
	}
	return now.Unix()
}

// latencySeconds computes processing latency against the original event time.
// Unparsable input yields 0 rather than an error.
func latencySeconds(normalized string, now time.Time) float64 {
	t, err := time.ParseInLocation(simpleLayout, normalized, time.Local)
	if err != nil {
		return 0
	}
	return now.Sub(t).Seconds()
}
