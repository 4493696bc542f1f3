package statistics

import (
	"errors"
	"fmt"
	"time"
)

// ErrDifferentPlayers is returned when snapshot arithmetic is attempted
// across two different usernames
var ErrDifferentPlayers = errors.New("snapshots belong to different players")

// Snapshot is one player's cumulative counters at one point in time.
// typed/errors/secs/racesPlayed are lifetime totals reported by the
// upstream source, not per-session deltas. Snapshots are append-only and
// unique per (username, capturedAt).
type Snapshot struct {
	ID          int64
	Username    string
	Team        string
	Typed       int64
	Errors      int64
	Name        string
	RacesPlayed int32
	CapturedAt  time.Time
	Secs        int64
}

// Sub returns the element-wise difference s - earlier for the counter
// fields, keeping the identity fields of s. Both snapshots must belong
// to the same player.
func (s Snapshot) Sub(earlier Snapshot) (Snapshot, error) {
	if s.Username != earlier.Username {
		return Snapshot{}, fmt.Errorf("cannot subtract %q from %q: %w",
			earlier.Username, s.Username, ErrDifferentPlayers)
	}

	diff := s
	diff.Typed -= earlier.Typed
	diff.Errors -= earlier.Errors
	diff.Secs -= earlier.Secs
	diff.RacesPlayed -= earlier.RacesPlayed
	return diff, nil
}

// PlayerPeriodStat is a player's derived period statistics: the counter
// fields hold the difference between the latest snapshot and the earliest
// snapshot at or after the period start (the latest values unmodified
// when no baseline exists in the period).
type PlayerPeriodStat struct {
	Username        string
	Team            string
	Name            string
	Typed           int64
	Errors          int64
	Secs            int64
	RacesPlayed     int32
	CapturedAt      time.Time
	RacesPlayedDiff int32

	// Latest carries the cumulative counters behind the diff; DayAgo is
	// the earliest snapshot within the trailing 24 hours, nil when the
	// player has no capture in that window.
	Latest Snapshot
	DayAgo *Snapshot
}
