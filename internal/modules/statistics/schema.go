package statistics

import "database/sql"

// NormalizedDataSchema holds deduplicated per-player snapshots plus the
// single-row cursor tracking normalization progress
const NormalizedDataSchema = `
CREATE TABLE IF NOT EXISTS normalized_data (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    username TEXT NOT NULL,
    team TEXT NOT NULL,
    typed INTEGER NOT NULL,
    errors INTEGER NOT NULL,
    name TEXT NOT NULL,
    races_played INTEGER NOT NULL,
    timestamp TEXT NOT NULL,
    secs INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_normalized_data_team ON normalized_data(team);
CREATE INDEX IF NOT EXISTS idx_normalized_data_timestamp ON normalized_data(timestamp);
CREATE INDEX IF NOT EXISTS idx_normalized_data_username ON normalized_data(username);
CREATE UNIQUE INDEX IF NOT EXISTS idx_normalized_data_username_timestamp
    ON normalized_data(username, timestamp);

CREATE TABLE IF NOT EXISTS processing_cursor (
    id INTEGER PRIMARY KEY CHECK (id = 1),
    last_processed_raw_id INTEGER NOT NULL,
    last_updated TEXT NOT NULL
);

INSERT OR IGNORE INTO processing_cursor (id, last_processed_raw_id, last_updated)
    VALUES (1, 0, '1970-01-01 00:00:00');
`

func InitSchema(db *sql.DB) error {
	_, err := db.Exec(NormalizedDataSchema)
	return err
}
