package ingest

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/typingrealm/nitrotype-tracker/internal/database"
)

// RawRepository handles raw payload database operations
type RawRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRawRepository creates a new raw data repository
func NewRawRepository(db *sql.DB, log zerolog.Logger) *RawRepository {
	return &RawRepository{
		db:  db,
		log: log.With().Str("repo", "raw").Logger(),
	}
}

// Append stores one raw payload for a team and returns the assigned id
func (r *RawRepository) Append(team string, payload []byte) (int64, error) {
	r.log.Debug().Str("team", team).Int("bytes", len(payload)).Msg("Appending raw payload")

	result, err := r.db.Exec(
		"INSERT INTO raw_data (team, data, timestamp) VALUES (?, ?, ?)",
		team,
		string(payload),
		time.Now().UTC().Format(database.TimeLayout),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to append raw payload: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read raw payload id: %w", err)
	}

	return id, nil
}

// streamPageSize bounds how many raw entries a stream buffers at once
const streamPageSize = 256

// StreamSince returns a forward-only stream of raw entries with id >
// sinceID, ordered by id ascending. team filters to one team when
// non-empty. Entries are fetched in bounded pages and each page's query
// is closed before the first entry is yielded, so the stream never holds
// a pool connection between Next calls. With a single-connection pool the
// caller is free to write to the same database while iterating. Callers
// must track their own cursor if they stop early.
func (r *RawRepository) StreamSince(sinceID int64, team string) *EntryStream {
	return &EntryStream{repo: r, team: team, lastID: sinceID}
}

// EntryStream yields raw entries one page at a time
type EntryStream struct {
	repo   *RawRepository
	team   string
	lastID int64

	buf  []RawEntry
	pos  int
	done bool
	cur  RawEntry
	err  error
}

// Next advances to the next entry, reporting false at the end of the
// stream or on a query error (check Err afterwards)
func (s *EntryStream) Next() bool {
	if s.err != nil {
		return false
	}

	if s.pos >= len(s.buf) {
		if s.done {
			return false
		}

		page, err := s.repo.listPage(s.lastID, s.team, streamPageSize)
		if err != nil {
			s.err = err
			return false
		}
		if len(page) == 0 {
			// Only an empty page ends the stream, so entries appended
			// while iterating are still drained
			s.done = true
			return false
		}

		s.buf = page
		s.pos = 0
	}

	s.cur = s.buf[s.pos]
	s.pos++
	s.lastID = s.cur.ID
	return true
}

// Entry returns the current entry; valid after Next reports true
func (s *EntryStream) Entry() RawEntry {
	return s.cur
}

// Err reports the first error hit while streaming
func (s *EntryStream) Err() error {
	return s.err
}

// listPage materializes one page of raw entries. The query is fully
// consumed and closed before returning.
func (r *RawRepository) listPage(sinceID int64, team string, limit int) ([]RawEntry, error) {
	query := "SELECT id, team, data, timestamp FROM raw_data WHERE id > ?"
	args := []interface{}{sinceID}

	if team != "" {
		query += " AND team = ?"
		args = append(args, team)
	}
	query += " ORDER BY id ASC LIMIT ?"
	args = append(args, limit)

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query raw entries: %w", err)
	}
	defer rows.Close()

	var entries []RawEntry
	for rows.Next() {
		var (
			entry               RawEntry
			payload, capturedAt string
		)
		if err := rows.Scan(&entry.ID, &entry.Team, &payload, &capturedAt); err != nil {
			return nil, fmt.Errorf("failed to scan raw entry: %w", err)
		}

		ts, err := time.Parse(database.TimeLayout, capturedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to parse raw entry timestamp: %w", err)
		}

		entry.Payload = []byte(payload)
		entry.CapturedAt = ts.UTC()
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating raw entries: %w", err)
	}
	return entries, nil
}

// Count returns the number of stored raw entries
func (r *RawRepository) Count() (int64, error) {
	var count int64
	if err := r.db.QueryRow("SELECT COUNT(*) FROM raw_data").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count raw entries: %w", err)
	}
	return count, nil
}

// CountSince returns the number of raw entries with id > sinceID
func (r *RawRepository) CountSince(sinceID int64) (int64, error) {
	var count int64
	if err := r.db.QueryRow("SELECT COUNT(*) FROM raw_data WHERE id > ?", sinceID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count raw entries: %w", err)
	}
	return count, nil
}

// LastCapturedAt returns the newest capture timestamp, or zero time when
// the store is empty
func (r *RawRepository) LastCapturedAt() (time.Time, error) {
	var ts sql.NullString
	if err := r.db.QueryRow("SELECT MAX(timestamp) FROM raw_data").Scan(&ts); err != nil {
		return time.Time{}, fmt.Errorf("failed to query last capture time: %w", err)
	}

	if !ts.Valid || ts.String == "" {
		return time.Time{}, nil
	}

	parsed, err := time.Parse(database.TimeLayout, ts.String)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse last capture time: %w", err)
	}
	return parsed.UTC(), nil
}
