package normalizer

import (
	"context"
	"fmt"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/typingrealm/nitrotype-tracker/internal/lock"
	"github.com/typingrealm/nitrotype-tracker/internal/metrics"
	"github.com/typingrealm/nitrotype-tracker/internal/modules/ingest"
	"github.com/typingrealm/nitrotype-tracker/internal/modules/statistics"
)

const (
	lockKey = "tnt:normalize"

	// The lease outlives the processing budget by one minute so the lock
	// is always released (or expires) before another run can start, even
	// with some clock drift between replicas.
	lockLease = 10 * time.Minute
	runBudget = 9 * time.Minute
)

// Normalizer incrementally converts raw payloads into normalized
// snapshots. Runs are serialized system-wide by a lease lock; losing the
// lock race is a normal outcome, not an error. Progress is tracked by the
// processing cursor, and reprocessing after a mid-run crash is harmless
// because snapshots deduplicate on (username, capturedAt).
type Normalizer struct {
	raw     *ingest.RawRepository
	store   *statistics.Repository
	locker  lock.Locker
	metrics *metrics.Metrics
	log     zerolog.Logger

	// Budget and clock are fields so tests can drive the early-stop path
	// without a nine-minute run.
	budget time.Duration
	now    func() time.Time
}

// New creates a normalizer
func New(
	raw *ingest.RawRepository,
	store *statistics.Repository,
	locker lock.Locker,
	m *metrics.Metrics,
	log zerolog.Logger,
) *Normalizer {
	return &Normalizer{
		raw:     raw,
		store:   store,
		locker:  locker,
		metrics: m,
		log:     log.With().Str("job", "normalize").Logger(),
		budget:  runBudget,
		now:     time.Now,
	}
}

// Name identifies the job in scheduler logs
func (n *Normalizer) Name() string {
	return "normalize"
}

// Run processes all raw entries past the cursor, within the time budget
func (n *Normalizer) Run() error {
	ctx := context.Background()
	lockValue := uuid.NewString()

	acquired, err := n.locker.TryAcquire(ctx, lockKey, lockValue, lockLease)
	if err != nil {
		return fmt.Errorf("failed to try normalizer lock: %w", err)
	}
	if !acquired {
		n.metrics.IncNormalizerRun("lock_busy")
		n.log.Debug().Msg("Another normalizer run holds the lock, skipping")
		return nil
	}

	defer func() {
		// Release with our own value only; if the lease already expired
		// and someone else holds the key, this is a no-op. The lease
		// expiry covers us if the release itself fails.
		if err := n.locker.Release(ctx, lockKey, lockValue); err != nil {
			n.log.Error().Err(err).Msg("Failed to release normalizer lock")
		}
	}()

	startedAt := n.now()

	cursor, err := n.store.Cursor()
	if err != nil {
		n.metrics.IncNormalizerRun("error")
		return fmt.Errorf("failed to read cursor: %w", err)
	}

	stream := n.raw.StreamSince(cursor, "")

	outcome := "completed"
	processed := 0
	for stream.Next() {
		if n.now().Sub(startedAt) > n.budget {
			// Stop well before lease expiry; the rest waits for the
			// next run.
			outcome = "budget_exhausted"
			n.log.Warn().Int("processed", processed).Msg("Processing budget exhausted, stopping early")
			break
		}

		if err := n.processEntry(stream.Entry()); err != nil {
			// Stop here: a later entry must not advance the cursor past
			// a failed one. The next run retries from the cursor and the
			// dedup constraint absorbs the replayed snapshots.
			n.metrics.IncNormalizerRun("error")
			return fmt.Errorf("failed to process raw entry %d: %w", stream.Entry().ID, err)
		}
		processed++
	}

	if err := stream.Err(); err != nil {
		n.metrics.IncNormalizerRun("error")
		return fmt.Errorf("failed to stream raw entries: %w", err)
	}

	n.metrics.IncNormalizerRun(outcome)
	if processed > 0 {
		n.log.Info().
			Int("processed", processed).
			Dur("took", time.Since(startedAt)).
			Msg("Normalizer run finished")
	}
	return nil
}

// processEntry converts and stores one raw entry. Malformed or empty
// payloads are logged and counted as processed; a storage failure is
// returned so the run stops with the cursor still behind the failed
// entry.
func (n *Normalizer) processEntry(entry ingest.RawEntry) error {
	var payload TeamPayload
	if err := json.Unmarshal(entry.Payload, &payload); err != nil {
		n.log.Warn().Err(err).Int64("id", entry.ID).Msg("Malformed raw payload, skipping entry")
		return n.advanceCursor(entry.ID)
	}

	if payload.Results == nil || payload.Results.Season == nil {
		n.log.Warn().Int64("id", entry.ID).Msg("Raw entry has no season data, skipping entry")
		return n.advanceCursor(entry.ID)
	}

	snapshots := make([]statistics.Snapshot, 0, len(payload.Results.Season))
	for _, member := range payload.Results.Season {
		snapshot, ok := ConvertMember(member, entry.Team, entry.CapturedAt)
		if !ok {
			n.log.Warn().Int64("id", entry.ID).Msg("Season member missing required fields, dropping")
			continue
		}
		snapshots = append(snapshots, snapshot)
	}

	if err := n.store.SaveBatch(snapshots); err != nil {
		return fmt.Errorf("failed to save snapshot batch: %w", err)
	}

	n.metrics.AddSnapshots(len(snapshots))
	return n.advanceCursor(entry.ID)
}

func (n *Normalizer) advanceCursor(id int64) error {
	if err := n.store.AdvanceCursor(id); err != nil {
		return fmt.Errorf("failed to advance cursor to %d: %w", id, err)
	}
	n.metrics.SetCursor(id)
	return nil
}
