package normalizer

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/typingrealm/nitrotype-tracker/internal/lock"
	"github.com/typingrealm/nitrotype-tracker/internal/metrics"
	"github.com/typingrealm/nitrotype-tracker/internal/modules/ingest"
	"github.com/typingrealm/nitrotype-tracker/internal/modules/statistics"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)

	require.NoError(t, ingest.InitSchema(db))
	require.NoError(t, statistics.InitSchema(db))
	return db
}

const teamPayload = `{
	"status": "OK",
	"results": {
		"season": [
			{"username": "alice", "displayName": "Alice", "typed": 1000, "errs": 50, "racesPlayed": 10, "secs": 600},
			{"username": "bob", "displayName": "", "typed": 2000, "errs": 100, "racesPlayed": 20, "secs": 1200},
			{"username": "broken", "errs": 1, "racesPlayed": 1, "secs": 1}
		]
	}
}`

func TestNormalizer_ProcessesEntriesAndAdvancesCursor(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	rawRepo := ingest.NewRawRepository(db, zerolog.Nop())
	store := statistics.NewRepository(db, zerolog.Nop())

	id, err := rawRepo.Append("KECATS", []byte(teamPayload))
	require.NoError(t, err)

	n := New(rawRepo, store, lock.NewMemoryLocker(), metrics.Nop(), zerolog.Nop())
	require.NoError(t, n.Run())

	// Two valid members; the one missing typed is dropped
	count, err := store.Count()
	require.NoError(t, err)
	assert.EqualValues(t, 2, count)

	cursor, err := store.Cursor()
	require.NoError(t, err)
	assert.Equal(t, id, cursor)
}

func TestNormalizer_RerunIsIdempotent(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	rawRepo := ingest.NewRawRepository(db, zerolog.Nop())
	store := statistics.NewRepository(db, zerolog.Nop())

	_, err := rawRepo.Append("KECATS", []byte(teamPayload))
	require.NoError(t, err)

	n := New(rawRepo, store, lock.NewMemoryLocker(), metrics.Nop(), zerolog.Nop())
	require.NoError(t, n.Run())

	// Replaying the same raw entry must not duplicate snapshots
	require.NoError(t, store.AdvanceCursor(0))
	require.NoError(t, n.Run())

	count, err := store.Count()
	require.NoError(t, err)
	assert.EqualValues(t, 2, count)
}

func TestNormalizer_EntryWithoutSeasonStillAdvancesCursor(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	rawRepo := ingest.NewRawRepository(db, zerolog.Nop())
	store := statistics.NewRepository(db, zerolog.Nop())

	id1, err := rawRepo.Append("KECATS", []byte(`{"status":"OK"}`))
	require.NoError(t, err)
	_, err = rawRepo.Append("KECATS", []byte(`not json at all`))
	require.NoError(t, err)
	id3, err := rawRepo.Append("KECATS", []byte(teamPayload))
	require.NoError(t, err)

	n := New(rawRepo, store, lock.NewMemoryLocker(), metrics.Nop(), zerolog.Nop())
	require.NoError(t, n.Run())

	assert.Greater(t, id3, id1)

	// Season-less and malformed entries count as processed
	cursor, err := store.Cursor()
	require.NoError(t, err)
	assert.Equal(t, id3, cursor)

	count, err := store.Count()
	require.NoError(t, err)
	assert.EqualValues(t, 2, count)
}

func TestNormalizer_StorageFailureStopsRun(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	rawRepo := ingest.NewRawRepository(db, zerolog.Nop())
	store := statistics.NewRepository(db, zerolog.Nop())

	_, err := rawRepo.Append("KECATS", []byte(`{"status":"OK","results":{"season":[
		{"username":"mallory","displayName":"","typed":10,"errs":1,"racesPlayed":1,"secs":5}]}}`))
	require.NoError(t, err)
	id2, err := rawRepo.Append("KECATS", []byte(teamPayload))
	require.NoError(t, err)

	// Simulate a storage failure for the first entry's batch
	_, err = db.Exec(`CREATE TRIGGER reject_mallory BEFORE INSERT ON normalized_data
		WHEN NEW.username = 'mallory'
		BEGIN SELECT RAISE(ABORT, 'storage failure'); END`)
	require.NoError(t, err)

	n := New(rawRepo, store, lock.NewMemoryLocker(), metrics.Nop(), zerolog.Nop())
	require.Error(t, n.Run())

	// The run stops at the failed entry; the later entry must not drag
	// the cursor past it
	cursor, err := store.Cursor()
	require.NoError(t, err)
	assert.Zero(t, cursor)

	count, err := store.Count()
	require.NoError(t, err)
	assert.Zero(t, count)

	// Once storage recovers, the next run picks up from the failed entry
	_, err = db.Exec(`DROP TRIGGER reject_mallory`)
	require.NoError(t, err)

	require.NoError(t, n.Run())

	cursor, err = store.Cursor()
	require.NoError(t, err)
	assert.Equal(t, id2, cursor)

	count, err = store.Count()
	require.NoError(t, err)
	assert.EqualValues(t, 3, count)
}

func TestNormalizer_BudgetExhaustedStopsEarly(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	rawRepo := ingest.NewRawRepository(db, zerolog.Nop())
	store := statistics.NewRepository(db, zerolog.Nop())

	id1, err := rawRepo.Append("KECATS", []byte(teamPayload))
	require.NoError(t, err)
	id2, err := rawRepo.Append("KECATS", []byte(`{"status":"OK"}`))
	require.NoError(t, err)

	n := New(rawRepo, store, lock.NewMemoryLocker(), metrics.Nop(), zerolog.Nop())
	n.budget = 5 * time.Minute

	// First tick reads the start time, second admits the first entry,
	// every later tick is past the budget
	base := time.Now()
	ticks := 0
	n.now = func() time.Time {
		ticks++
		if ticks <= 2 {
			return base
		}
		return base.Add(10 * time.Minute)
	}

	require.NoError(t, n.Run())

	// The first entry went through, the second waits for the next run
	cursor, err := store.Cursor()
	require.NoError(t, err)
	assert.Equal(t, id1, cursor)

	n.now = time.Now
	require.NoError(t, n.Run())

	cursor, err = store.Cursor()
	require.NoError(t, err)
	assert.Equal(t, id2, cursor)
}

func TestNormalizer_LockBusySkipsRun(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	rawRepo := ingest.NewRawRepository(db, zerolog.Nop())
	store := statistics.NewRepository(db, zerolog.Nop())

	_, err := rawRepo.Append("KECATS", []byte(teamPayload))
	require.NoError(t, err)

	locker := lock.NewMemoryLocker()
	acquired, err := locker.TryAcquire(context.Background(), lockKey, "other-run", time.Minute)
	require.NoError(t, err)
	require.True(t, acquired)

	n := New(rawRepo, store, locker, metrics.Nop(), zerolog.Nop())
	require.NoError(t, n.Run())

	// Nothing processed, cursor untouched
	count, err := store.Count()
	require.NoError(t, err)
	assert.Zero(t, count)

	cursor, err := store.Cursor()
	require.NoError(t, err)
	assert.Zero(t, cursor)
}

func TestNormalizer_ReleasesLockAfterRun(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	rawRepo := ingest.NewRawRepository(db, zerolog.Nop())
	store := statistics.NewRepository(db, zerolog.Nop())

	locker := lock.NewMemoryLocker()
	n := New(rawRepo, store, locker, metrics.Nop(), zerolog.Nop())
	require.NoError(t, n.Run())

	// The lock must be free again for the next run
	acquired, err := locker.TryAcquire(context.Background(), lockKey, "next-run", time.Minute)
	require.NoError(t, err)
	assert.True(t, acquired)
}
