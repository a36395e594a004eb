// Package pubdate parses the publish timestamps feeds actually emit, which
// range from strict RFC 1123 to bare dates. Parsing is defensive: callers get
// an ok flag and decide what an unparseable value means.
package pubdate

import (
	"strings"
	"time"
)

var layouts = []string{
	time.RFC1123Z,
	time.RFC1123,
	time.RFC822Z,
	time.RFC822,
	time.RFC3339,
	"Mon, 2 Jan 2006 15:04:05 -0700",
	"Mon, 2 Jan 2006 15:04:05 MST",
	"2006-01-02T15:04:05Z0700",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"2 Jan 2006",
}

// Parse interprets a raw feed timestamp as UTC. The second return is false
// when the value is empty or matches no known layout.
func Parse(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range layouts {
		if parsed, err := time.Parse(layout, raw); err == nil {
			return parsed.UTC(), true
		}
	}
	return time.Time{}, false
}

// ParseOrEpoch falls back to the Unix epoch so unparseable timestamps sort
// as the oldest possible entries.
func ParseOrEpoch(raw string) time.Time {
	if parsed, ok := Parse(raw); ok {
		return parsed
	}
	return time.Unix(0, 0).UTC()
}
