package ingest

import "database/sql"

// RawDataSchema holds raw upstream payloads exactly as fetched
const RawDataSchema = `
CREATE TABLE IF NOT EXISTS raw_data (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    team TEXT NOT NULL,
    data TEXT NOT NULL,
    timestamp TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_raw_data_team ON raw_data(team);
`

func InitSchema(db *sql.DB) error {
	_, err := db.Exec(RawDataSchema)
	return err
}
