package statistics

import (
	"fmt"
	"strings"
	"time"

	"github.com/coocood/freecache"
	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/stat"

	"github.com/typingrealm/nitrotype-tracker/internal/metrics"
	"github.com/typingrealm/nitrotype-tracker/pkg/formulas"
)

// PlayerStats is the wire representation of one leaderboard row. The
// counter fields are period diffs; accuracy, averageTextLength,
// averageSpeed and timeSpent derive from them, while accuracyDiff and
// averageSpeedDiff are 24-hour movement of the cumulative metrics.
type PlayerStats struct {
	Username          string  `json:"username"`
	Team              string  `json:"team"`
	Typed             int64   `json:"typed"`
	Errors            int64   `json:"errors"`
	Name              string  `json:"name"`
	RacesPlayed       int32   `json:"racesPlayed"`
	Timestamp         string  `json:"timestamp"`
	Secs              int64   `json:"secs"`
	Accuracy          float64 `json:"accuracy"`
	AverageTextLength float64 `json:"averageTextLength"`
	AverageSpeed      float64 `json:"averageSpeed"`
	AccuracyDiff      float64 `json:"accuracyDiff"`
	AverageSpeedDiff  float64 `json:"averageSpeedDiff"`
	RacesPlayedDiff   int32   `json:"racesPlayedDiff"`
	TimeSpent         string  `json:"timeSpent"`
}

// TeamSummary aggregates a team's period statistics
type TeamSummary struct {
	Team           string  `json:"team"`
	Players        int     `json:"players"`
	TotalTyped     int64   `json:"totalTyped"`
	TotalRaces     int64   `json:"totalRaces"`
	TotalSecs      int64   `json:"totalSecs"`
	MeanAccuracy   float64 `json:"meanAccuracy"`
	StddevAccuracy float64 `json:"stddevAccuracy"`
	MeanSpeed      float64 `json:"meanSpeed"`
	StddevSpeed    float64 `json:"stddevSpeed"`
}

// Service computes team statistics responses on top of the repository,
// with a short-lived response cache in front of the period query
type Service struct {
	repo         *Repository
	cache        *freecache.Cache
	cacheTTLSecs int
	seasonStart  time.Time
	metrics      *metrics.Metrics
	log          zerolog.Logger
}

// NewService creates a new statistics service. cacheSizeMB <= 0 disables
// the response cache.
func NewService(
	repo *Repository,
	cacheSizeMB int,
	cacheTTL time.Duration,
	seasonStart time.Time,
	m *metrics.Metrics,
	log zerolog.Logger,
) *Service {
	var cache *freecache.Cache
	if cacheSizeMB > 0 {
		cache = freecache.NewCache(cacheSizeMB * 1024 * 1024)
	}

	// freecache treats expireSeconds <= 0 as "never expire", so a
	// sub-second TTL rounds up to one second instead of becoming
	// permanent
	ttlSecs := int(cacheTTL.Seconds())
	if ttlSecs < 1 {
		ttlSecs = 1
	}

	return &Service{
		repo:         repo,
		cache:        cache,
		cacheTTLSecs: ttlSecs,
		seasonStart:  seasonStart,
		metrics:      m,
		log:          log.With().Str("component", "statistics").Logger(),
	}
}

// TeamStatsJSON returns the serialized leaderboard for a team, from
// cache when fresh enough. Slight staleness is acceptable; the cache TTL
// is well under the fetch interval.
func (s *Service) TeamStatsJSON(team string) ([]byte, error) {
	team = strings.ToUpper(team)
	cacheKey := []byte("stats:" + team)

	if s.cache != nil {
		if cached, err := s.cache.Get(cacheKey); err == nil {
			s.metrics.IncStatsCacheHit()
			return cached, nil
		}
		s.metrics.IncStatsCacheMiss()
	}

	players, err := s.TeamStats(team)
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(players)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal team stats: %w", err)
	}

	if s.cache != nil {
		_ = s.cache.Set(cacheKey, body, s.cacheTTLSecs)
	}

	return body, nil
}

// TeamStats computes the leaderboard rows for a team
func (s *Service) TeamStats(team string) ([]PlayerStats, error) {
	team = strings.ToUpper(team)

	stats, err := s.repo.QueryTeamStats(team, s.seasonStart)
	if err != nil {
		return nil, err
	}

	players := make([]PlayerStats, 0, len(stats))
	for _, st := range stats {
		players = append(players, buildPlayerStats(st))
	}

	return players, nil
}

func buildPlayerStats(st PlayerPeriodStat) PlayerStats {
	p := PlayerStats{
		Username:          st.Username,
		Team:              st.Team,
		Typed:             st.Typed,
		Errors:            st.Errors,
		Name:              st.Name,
		RacesPlayed:       st.RacesPlayed,
		Timestamp:         st.CapturedAt.Format(time.RFC3339),
		Secs:              st.Secs,
		Accuracy:          formulas.Accuracy(st.Typed, st.Errors).InexactFloat64(),
		AverageTextLength: formulas.AverageTextLength(st.Typed, st.RacesPlayed).InexactFloat64(),
		AverageSpeed:      formulas.AverageSpeed(st.Typed, st.Secs).InexactFloat64(),
		RacesPlayedDiff:   st.RacesPlayedDiff,
		TimeSpent:         formulas.TimeSpent(st.Secs),
	}

	if st.DayAgo != nil {
		p.AccuracyDiff = formulas.Accuracy(st.Latest.Typed, st.Latest.Errors).
			Sub(formulas.Accuracy(st.DayAgo.Typed, st.DayAgo.Errors)).
			InexactFloat64()
		p.AverageSpeedDiff = formulas.AverageSpeed(st.Latest.Typed, st.Latest.Secs).
			Sub(formulas.AverageSpeed(st.DayAgo.Typed, st.DayAgo.Secs)).
			InexactFloat64()
	}

	return p
}

// Summary aggregates a team's leaderboard into roster-level numbers
func (s *Service) Summary(team string) (TeamSummary, error) {
	team = strings.ToUpper(team)

	players, err := s.TeamStats(team)
	if err != nil {
		return TeamSummary{}, err
	}

	summary := TeamSummary{Team: team, Players: len(players)}
	if len(players) == 0 {
		return summary, nil
	}

	accuracies := make([]float64, 0, len(players))
	speeds := make([]float64, 0, len(players))
	for _, p := range players {
		summary.TotalTyped += p.Typed
		summary.TotalRaces += int64(p.RacesPlayed)
		summary.TotalSecs += p.Secs
		accuracies = append(accuracies, p.Accuracy)
		speeds = append(speeds, p.AverageSpeed)
	}

	summary.MeanAccuracy = stat.Mean(accuracies, nil)
	summary.MeanSpeed = stat.Mean(speeds, nil)
	if len(players) > 1 {
		summary.StddevAccuracy = stat.StdDev(accuracies, nil)
		summary.StddevSpeed = stat.StdDev(speeds, nil)
	}

	return summary, nil
}
