// Package ledger is the durable record of which item identities have already
// produced output. It is one JSON document at a fixed key in the object
// store, loaded once at run start, owned exclusively by the running
// orchestrator, and persisted once at run end.
package ledger

import (
	"context"
	"fmt"
	"time"
)

// DocumentKey is the well-known object-store location of the ledger.
const DocumentKey = "state/processed.json"

// SchemaVersion of the persisted document.
const SchemaVersion = 1

// DocumentStore is the narrow persistence surface the ledger needs.
type DocumentStore interface {
	GetJSON(ctx context.Context, key string, v any) (bool, error)
	PutJSON(ctx context.Context, key string, v any) error
}

// Ledger maps processed item IDs to the UTC timestamp they were produced at.
type Ledger struct {
	SchemaVersion int               `json:"schemaVersion"`
	Processed     map[string]string `json:"processed"`
}

// New returns an empty ledger at the current schema version.
func New() *Ledger {
	return &Ledger{SchemaVersion: SchemaVersion, Processed: map[string]string{}}
}

// Load reads the ledger document, defaulting to an empty ledger when the
// document does not exist yet.
func Load(ctx context.Context, store DocumentStore) (*Ledger, error) {
	led := New()
	found, err := store.GetJSON(ctx, DocumentKey, led)
	if err != nil {
		return nil, fmt.Errorf("load ledger: %w", err)
	}
	if !found || led.Processed == nil {
		led.Processed = map[string]string{}
	}
	if led.SchemaVersion == 0 {
		led.SchemaVersion = SchemaVersion
	}
	return led, nil
}

// Save persists the full document.
func (l *Ledger) Save(ctx context.Context, store DocumentStore) error {
	if err := store.PutJSON(ctx, DocumentKey, l); err != nil {
		return fmt.Errorf("save ledger: %w", err)
	}
	return nil
}

// IsProcessed reports whether the item has already produced output.
func (l *Ledger) IsProcessed(itemID string) bool {
	_, ok := l.Processed[itemID]
	return ok
}

// MarkProcessed upserts the item with the given timestamp, defaulting to the
// current UTC time. Idempotent: remarking an item just refreshes its stamp.
func (l *Ledger) MarkProcessed(itemID string, ts time.Time) {
	if l.Processed == nil {
		l.Processed = map[string]string{}
	}
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	l.Processed[itemID] = FormatTimestamp(ts)
}

// PruneExpired removes entries older than the retention window, counting
// them. Entries whose timestamps do not parse are treated as expired rather
// than retained forever. A window of zero or less is a no-op.
func (l *Ledger) PruneExpired(retentionDays int, now time.Time) int {
	if retentionDays <= 0 {
		return 0
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}
	cutoff := now.Add(-time.Duration(retentionDays) * 24 * time.Hour)

	var expired []string
	for itemID, raw := range l.Processed {
		stamp, err := ParseTimestamp(raw)
		if err != nil || stamp.Before(cutoff) {
			expired = append(expired, itemID)
		}
	}
	for _, itemID := range expired {
		delete(l.Processed, itemID)
	}
	return len(expired)
}

// FormatTimestamp renders a ledger timestamp: second-precision ISO-8601 UTC.
func FormatTimestamp(ts time.Time) string {
	return ts.UTC().Truncate(time.Second).Format("2006-01-02T15:04:05Z07:00")
}

// ParseTimestamp reads a ledger timestamp, accepting a trailing Z or an
// explicit offset.
func ParseTimestamp(raw string) (time.Time, error) {
	parsed, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse ledger timestamp %q: %w", raw, err)
	}
	return parsed.UTC(), nil
}
