package statistics

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/typingrealm/nitrotype-tracker/internal/database"
)

// Repository handles normalized snapshot database operations
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new normalized data repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "normalized").Logger(),
	}
}

const insertSnapshot = `
INSERT OR IGNORE INTO normalized_data
    (username, team, typed, errors, name, races_played, timestamp, secs)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

// Save inserts one snapshot; an existing (username, capturedAt) pair is
// silently left in place
func (r *Repository) Save(s Snapshot) error {
	_, err := r.db.Exec(insertSnapshot,
		s.Username, s.Team, s.Typed, s.Errors, s.Name, s.RacesPlayed,
		s.CapturedAt.UTC().Format(database.TimeLayout), s.Secs)
	if err != nil {
		return fmt.Errorf("failed to save snapshot for %s: %w", s.Username, err)
	}
	return nil
}

// SaveBatch inserts snapshots atomically with insert-or-ignore semantics
// per (username, capturedAt); any failure rolls back the whole batch
func (r *Repository) SaveBatch(snapshots []Snapshot) error {
	if len(snapshots) == 0 {
		return nil
	}

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin batch: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(insertSnapshot)
	if err != nil {
		return fmt.Errorf("failed to prepare batch insert: %w", err)
	}
	defer stmt.Close()

	for _, s := range snapshots {
		if _, err := stmt.Exec(
			s.Username, s.Team, s.Typed, s.Errors, s.Name, s.RacesPlayed,
			s.CapturedAt.UTC().Format(database.TimeLayout), s.Secs,
		); err != nil {
			return fmt.Errorf("failed to save snapshot for %s: %w", s.Username, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit batch: %w", err)
	}
	return nil
}

// Cursor returns the id of the last raw entry processed, 0 when nothing
// has been processed yet
func (r *Repository) Cursor() (int64, error) {
	var id int64
	err := r.db.QueryRow(
		"SELECT last_processed_raw_id FROM processing_cursor WHERE id = 1",
	).Scan(&id)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read cursor: %w", err)
	}
	return id, nil
}

// CursorInfo returns the cursor value together with its last update time
func (r *Repository) CursorInfo() (int64, time.Time, error) {
	var id int64
	var updated string
	err := r.db.QueryRow(
		"SELECT last_processed_raw_id, last_updated FROM processing_cursor WHERE id = 1",
	).Scan(&id, &updated)
	if err == sql.ErrNoRows {
		return 0, time.Time{}, nil
	}
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("failed to read cursor: %w", err)
	}

	ts, err := time.Parse(database.TimeLayout, updated)
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("failed to parse cursor timestamp: %w", err)
	}
	return id, ts.UTC(), nil
}

// AdvanceCursor sets the cursor to newID. There is no
// optimistic-concurrency guard here: the normalizer's lease lock is the
// only thing preventing two writers from racing the cursor, so callers
// are responsible for monotonicity.
func (r *Repository) AdvanceCursor(newID int64) error {
	_, err := r.db.Exec(
		"UPDATE processing_cursor SET last_processed_raw_id = ?, last_updated = ? WHERE id = 1",
		newID, time.Now().UTC().Format(database.TimeLayout))
	if err != nil {
		return fmt.Errorf("failed to advance cursor to %d: %w", newID, err)
	}
	return nil
}

// teamStatsQuery derives the period leaderboard server-side. Per player:
// the latest snapshot, the earliest snapshot at or after the period start
// (missing baseline falls back to zero, i.e. the latest cumulative values
// pass through), and the earliest snapshot of the trailing 24h for the
// day-over-day race diff. Players whose period baseline recorded zero
// typed characters are excluded: they have not typed since the period
// start was first observed. That also hides a new player whose first
// capture happens to carry zero typed; kept as-is until product says
// otherwise.
const teamStatsQuery = `
WITH latest AS (
    SELECT username, team, typed, errors, name, races_played, timestamp, secs,
           ROW_NUMBER() OVER (PARTITION BY username ORDER BY timestamp DESC) AS rn
    FROM normalized_data
    WHERE team = ?
),
period_base AS (
    SELECT username, typed, errors, races_played, secs,
           ROW_NUMBER() OVER (PARTITION BY username ORDER BY timestamp ASC) AS rn
    FROM normalized_data
    WHERE team = ? AND timestamp >= ?
),
day_base AS (
    SELECT username, typed, errors, races_played, secs,
           ROW_NUMBER() OVER (PARTITION BY username ORDER BY timestamp ASC) AS rn
    FROM normalized_data
    WHERE team = ? AND timestamp >= ?
)
SELECT
    l.username,
    l.team,
    l.name,
    l.timestamp,
    l.typed - COALESCE(b.typed, 0),
    l.errors - COALESCE(b.errors, 0),
    l.secs - COALESCE(b.secs, 0),
    l.races_played - COALESCE(b.races_played, 0),
    COALESCE(l.races_played - d.races_played, 0),
    l.typed, l.errors, l.secs, l.races_played,
    d.typed, d.errors, d.secs, d.races_played
FROM latest l
LEFT JOIN period_base b ON b.username = l.username AND b.rn = 1
LEFT JOIN day_base d ON d.username = l.username AND d.rn = 1
WHERE l.rn = 1
  AND (b.username IS NULL OR b.typed <> 0)
ORDER BY l.typed - COALESCE(b.typed, 0) DESC`

// QueryTeamStats returns period statistics for every active player on a
// team, ordered by period typed descending. Pure read; safe under
// concurrent normalizer writes.
func (r *Repository) QueryTeamStats(team string, periodStart time.Time) ([]PlayerPeriodStat, error) {
	return r.queryTeamStats(team, periodStart, time.Now())
}

func (r *Repository) queryTeamStats(team string, periodStart, now time.Time) ([]PlayerPeriodStat, error) {
	rows, err := r.db.Query(teamStatsQuery,
		team,
		team, periodStart.UTC().Format(database.TimeLayout),
		team, now.UTC().Add(-24*time.Hour).Format(database.TimeLayout),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query team stats: %w", err)
	}
	defer rows.Close()

	var stats []PlayerPeriodStat
	for rows.Next() {
		var (
			stat       PlayerPeriodStat
			capturedAt string
			dayTyped   sql.NullInt64
			dayErrors  sql.NullInt64
			daySecs    sql.NullInt64
			dayRaces   sql.NullInt64
		)

		if err := rows.Scan(
			&stat.Username,
			&stat.Team,
			&stat.Name,
			&capturedAt,
			&stat.Typed,
			&stat.Errors,
			&stat.Secs,
			&stat.RacesPlayed,
			&stat.RacesPlayedDiff,
			&stat.Latest.Typed,
			&stat.Latest.Errors,
			&stat.Latest.Secs,
			&stat.Latest.RacesPlayed,
			&dayTyped,
			&dayErrors,
			&daySecs,
			&dayRaces,
		); err != nil {
			return nil, fmt.Errorf("failed to scan team stats row: %w", err)
		}

		ts, err := time.Parse(database.TimeLayout, capturedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to parse stats timestamp: %w", err)
		}
		stat.CapturedAt = ts.UTC()

		stat.Latest.Username = stat.Username
		stat.Latest.Team = stat.Team
		stat.Latest.Name = stat.Name
		stat.Latest.CapturedAt = stat.CapturedAt

		if dayTyped.Valid {
			stat.DayAgo = &Snapshot{
				Username:    stat.Username,
				Team:        stat.Team,
				Name:        stat.Name,
				Typed:       dayTyped.Int64,
				Errors:      dayErrors.Int64,
				Secs:        daySecs.Int64,
				RacesPlayed: int32(dayRaces.Int64),
			}
		}

		stats = append(stats, stat)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating team stats: %w", err)
	}

	return stats, nil
}

// Count returns the number of stored snapshots
func (r *Repository) Count() (int64, error) {
	var count int64
	if err := r.db.QueryRow("SELECT COUNT(*) FROM normalized_data").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count snapshots: %w", err)
	}
	return count, nil
}
