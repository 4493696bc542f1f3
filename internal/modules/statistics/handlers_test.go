package statistics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/typingrealm/nitrotype-tracker/internal/metrics"
)

func newTestRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Get("/api/statistics/{team}", h.HandleTeamStats)
	r.Get("/api/statistics/{team}/summary", h.HandleTeamSummary)
	return r
}

func seedTeam(t *testing.T, repo *Repository, periodStart time.Time) {
	t.Helper()

	latest := time.Now().UTC().Add(-time.Hour).Truncate(time.Second)
	dayAgo := time.Now().UTC().Add(-20 * time.Hour).Truncate(time.Second)
	require.NoError(t, repo.SaveBatch([]Snapshot{
		snapshot("alice", periodStart.Add(time.Hour), 120, 5, 100, 10),
		snapshot("alice", latest, 300, 20, 400, 25),
		snapshot("bob", periodStart.Add(time.Hour), 1000, 50, 600, 10),
		snapshot("bob", dayAgo, 1500, 75, 900, 10),
		snapshot("bob", latest, 2000, 100, 1200, 30),
	}))
}

func TestHandleTeamStats(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	repo := NewRepository(db, zerolog.Nop())
	periodStart := time.Now().UTC().Add(-7 * 24 * time.Hour).Truncate(time.Second)
	seedTeam(t, repo, periodStart)

	service := NewService(repo, 0, time.Minute, periodStart, metrics.Nop(), zerolog.Nop())
	router := newTestRouter(NewHandler(service, zerolog.Nop()))

	// Lowercase team must be case-normalized before lookup
	req := httptest.NewRequest("GET", "/api/statistics/kecats", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var players []PlayerStats
	require.NoError(t, json.NewDecoder(w.Body).Decode(&players))
	require.Len(t, players, 2)

	// Ordered by period typed descending: bob 1000, alice 180
	bob := players[0]
	assert.Equal(t, "bob", bob.Username)
	assert.EqualValues(t, 1000, bob.Typed)
	assert.EqualValues(t, 20, bob.RacesPlayed)
	assert.EqualValues(t, 20, bob.RacesPlayedDiff)
	assert.InDelta(t, 95.0, bob.Accuracy, 1e-9)
	assert.InDelta(t, 50.0, bob.AverageTextLength, 1e-9)
	assert.InDelta(t, 20.0, bob.AverageSpeed, 1e-9) // 12 * 1000 / 600
	assert.Equal(t, "10 minutes", bob.TimeSpent)

	alice := players[1]
	assert.Equal(t, "alice", alice.Username)
	assert.EqualValues(t, 180, alice.Typed)
	assert.Equal(t, "5 minutes", alice.TimeSpent)
}

func TestHandleTeamStats_UnknownTeamReturnsEmptyArray(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	repo := NewRepository(db, zerolog.Nop())
	service := NewService(repo, 0, time.Minute, time.Now(), metrics.Nop(), zerolog.Nop())
	router := newTestRouter(NewHandler(service, zerolog.Nop()))

	req := httptest.NewRequest("GET", "/api/statistics/NOBODY", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, "[]", w.Body.String())
}

func TestHandleTeamStats_StorageFailureIsServerError(t *testing.T) {
	db := setupTestDB(t)

	repo := NewRepository(db, zerolog.Nop())
	service := NewService(repo, 0, time.Minute, time.Now(), metrics.Nop(), zerolog.Nop())
	router := newTestRouter(NewHandler(service, zerolog.Nop()))

	// Closed database surfaces as a failed request
	db.Close()

	req := httptest.NewRequest("GET", "/api/statistics/KECATS", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestHandleTeamSummary(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	repo := NewRepository(db, zerolog.Nop())
	periodStart := time.Now().UTC().Add(-7 * 24 * time.Hour).Truncate(time.Second)
	seedTeam(t, repo, periodStart)

	service := NewService(repo, 0, time.Minute, periodStart, metrics.Nop(), zerolog.Nop())
	router := newTestRouter(NewHandler(service, zerolog.Nop()))

	req := httptest.NewRequest("GET", "/api/statistics/KECATS/summary", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var summary TeamSummary
	require.NoError(t, json.NewDecoder(w.Body).Decode(&summary))

	assert.Equal(t, "KECATS", summary.Team)
	assert.Equal(t, 2, summary.Players)
	assert.EqualValues(t, 1180, summary.TotalTyped)
	assert.EqualValues(t, 35, summary.TotalRaces)
	assert.Greater(t, summary.MeanAccuracy, 0.0)
	assert.Greater(t, summary.StddevAccuracy, 0.0)
}

func TestNewService_ClampsSubSecondCacheTTL(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	repo := NewRepository(db, zerolog.Nop())

	// A TTL under a second must not truncate to freecache's
	// "never expire" zero
	service := NewService(repo, 1, 100*time.Millisecond, time.Now(), metrics.Nop(), zerolog.Nop())
	assert.Equal(t, 1, service.cacheTTLSecs)

	service = NewService(repo, 1, time.Minute, time.Now(), metrics.Nop(), zerolog.Nop())
	assert.Equal(t, 60, service.cacheTTLSecs)
}

func TestService_CachesSerializedResponse(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	repo := NewRepository(db, zerolog.Nop())
	periodStart := time.Now().UTC().Add(-7 * 24 * time.Hour).Truncate(time.Second)
	seedTeam(t, repo, periodStart)

	service := NewService(repo, 1, time.Minute, periodStart, metrics.Nop(), zerolog.Nop())

	first, err := service.TeamStatsJSON("KECATS")
	require.NoError(t, err)

	// New data arrives, but the cached body is served until TTL expiry
	extra := snapshot("carol", time.Now().UTC().Truncate(time.Second), 5000, 10, 900, 40)
	require.NoError(t, repo.Save(extra))

	second, err := service.TeamStatsJSON("KECATS")
	require.NoError(t, err)
	assert.Equal(t, first, second)
}
