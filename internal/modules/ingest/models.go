package ingest

import "time"

// RawEntry is one captured, unmodified upstream response for a team.
// Entries are append-only; IDs are assigned by the store and strictly
// increase in insertion order.
type RawEntry struct {
	ID         int64
	Team       string
	Payload    []byte
	CapturedAt time.Time
}
