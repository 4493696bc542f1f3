package server

import (
	"net/http"
	"time"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/typingrealm/nitrotype-tracker/internal/modules/ingest"
	"github.com/typingrealm/nitrotype-tracker/internal/modules/statistics"
)

// SystemHandlers handles monitoring endpoints
type SystemHandlers struct {
	raw   *ingest.RawRepository
	stats *statistics.Repository
	log   zerolog.Logger
}

// NewSystemHandlers creates a new system handlers instance
func NewSystemHandlers(
	raw *ingest.RawRepository,
	stats *statistics.Repository,
	log zerolog.Logger,
) *SystemHandlers {
	return &SystemHandlers{
		raw:   raw,
		stats: stats,
		log:   log.With().Str("handler", "system").Logger(),
	}
}

// SystemStatusResponse represents the system status response
type SystemStatusResponse struct {
	RawEntries        int64  `json:"raw_entries"`
	Snapshots         int64  `json:"snapshots"`
	Cursor            int64  `json:"cursor"`
	CursorUpdated     string `json:"cursor_updated,omitempty"`
	LastCapture       string `json:"last_capture,omitempty"`
	NormalizerBacklog int64  `json:"normalizer_backlog"`
}

// HandleStatus returns pipeline progress: store sizes, cursor position
// and how far behind the normalizer is
func (h *SystemHandlers) HandleStatus(w http.ResponseWriter, r *http.Request) {
	rawCount, err := h.raw.Count()
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to count raw entries")
		http.Error(w, "Failed to read system status", http.StatusInternalServerError)
		return
	}

	snapshotCount, err := h.stats.Count()
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to count snapshots")
		http.Error(w, "Failed to read system status", http.StatusInternalServerError)
		return
	}

	cursor, cursorUpdated, err := h.stats.CursorInfo()
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to read cursor")
		http.Error(w, "Failed to read system status", http.StatusInternalServerError)
		return
	}

	resp := SystemStatusResponse{
		RawEntries: rawCount,
		Snapshots:  snapshotCount,
		Cursor:     cursor,
	}

	if !cursorUpdated.IsZero() {
		resp.CursorUpdated = cursorUpdated.Format(time.RFC3339)
	}

	if lastCapture, err := h.raw.LastCapturedAt(); err == nil && !lastCapture.IsZero() {
		resp.LastCapture = lastCapture.Format(time.RFC3339)
	}

	if backlog, err := h.raw.CountSince(cursor); err == nil {
		resp.NormalizerBacklog = backlog
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode system status")
	}
}
