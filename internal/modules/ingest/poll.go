package ingest

import (
	"context"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/typingrealm/nitrotype-tracker/internal/lock"
	"github.com/typingrealm/nitrotype-tracker/internal/metrics"
)

const fetchLockPrefix = "tnt:fetch:"

// PollJob fetches raw payloads for the configured teams. A short lease is
// taken per team before fetching and deliberately never released: its
// expiry is the cross-replica rate limit, so a fleet of pollers queries
// each team at most once per interval between them.
type PollJob struct {
	teams    []string
	client   *Client
	repo     *RawRepository
	locker   lock.Locker
	metrics  *metrics.Metrics
	interval time.Duration
	log      zerolog.Logger

	// Last stored payload hash per team. FNV is enough here; this only
	// skips writes for byte-identical responses, it is not a security
	// boundary. A replica that missed the hash just stores a duplicate
	// raw entry, which the normalized dedup absorbs.
	mu         sync.Mutex
	lastHashes map[string]uint32
}

// NewPollJob creates the raw ingest polling job
func NewPollJob(
	teams []string,
	client *Client,
	repo *RawRepository,
	locker lock.Locker,
	m *metrics.Metrics,
	interval time.Duration,
	log zerolog.Logger,
) *PollJob {
	return &PollJob{
		teams:      teams,
		client:     client,
		repo:       repo,
		locker:     locker,
		metrics:    m,
		interval:   interval,
		log:        log.With().Str("job", "ingest_poll").Logger(),
		lastHashes: make(map[string]uint32),
	}
}

// Name identifies the job in scheduler logs
func (j *PollJob) Name() string {
	return "ingest_poll"
}

// Run polls every registered team once. Failures are isolated per team;
// the next scheduler tick retries naturally.
func (j *PollJob) Run() error {
	ctx := context.Background()

	for _, team := range j.teams {
		if err := j.pollTeam(ctx, team); err != nil {
			j.metrics.IncFetch(team, "error")
			j.log.Error().Err(err).Str("team", team).Msg("Failed to poll team")
		}
	}

	return nil
}

func (j *PollJob) pollTeam(ctx context.Context, team string) error {
	acquired, err := j.locker.TryAcquire(ctx, fetchLockPrefix+team, uuid.NewString(), j.interval)
	if err != nil {
		return fmt.Errorf("failed to check fetch lease: %w", err)
	}
	if !acquired {
		// Fetched recently, here or by another replica.
		j.metrics.IncFetch(team, "skipped")
		j.log.Debug().Str("team", team).Msg("Fetch lease busy, skipping team")
		return nil
	}

	payload, err := j.client.FetchTeamData(ctx, team)
	if err != nil {
		return err
	}

	if !j.payloadChanged(team, payload) {
		j.metrics.IncFetch(team, "unchanged")
		j.log.Info().Str("team", team).Msg("Payload unchanged, skipping store")
		return nil
	}

	id, err := j.repo.Append(team, payload)
	if err != nil {
		return err
	}

	j.metrics.IncFetch(team, "stored")
	j.metrics.IncRawEntries()
	j.log.Info().Str("team", team).Int64("id", id).Msg("Stored raw team payload")
	return nil
}

func (j *PollJob) payloadChanged(team string, payload []byte) bool {
	hasher := fnv.New32a()
	_, _ = hasher.Write(payload)
	sum := hasher.Sum32()

	j.mu.Lock()
	defer j.mu.Unlock()

	if prev, ok := j.lastHashes[team]; ok && prev == sum {
		return false
	}

	j.lastHashes[team] = sum
	return true
}
