package statistics

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"
)

// Handler handles statistics HTTP requests
type Handler struct {
	service *Service
	log     zerolog.Logger
}

// NewHandler creates a new statistics handler
func NewHandler(service *Service, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "statistics").Logger(),
	}
}

// HandleTeamStats handles GET /api/statistics/{team} - the period
// leaderboard for a team, ordered by period typed descending
func (h *Handler) HandleTeamStats(w http.ResponseWriter, r *http.Request) {
	team := chi.URLParam(r, "team")
	if team == "" {
		http.Error(w, "Team is required", http.StatusBadRequest)
		return
	}

	body, err := h.service.TeamStatsJSON(team)
	if err != nil {
		h.log.Error().Err(err).Str("team", team).Msg("Failed to get team stats")
		http.Error(w, "Failed to retrieve team statistics", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(body)
}

// HandleTeamSummary handles GET /api/statistics/{team}/summary -
// roster-level aggregates for a team
func (h *Handler) HandleTeamSummary(w http.ResponseWriter, r *http.Request) {
	team := chi.URLParam(r, "team")
	if team == "" {
		http.Error(w, "Team is required", http.StatusBadRequest)
		return
	}

	summary, err := h.service.Summary(team)
	if err != nil {
		h.log.Error().Err(err).Str("team", team).Msg("Failed to get team summary")
		http.Error(w, "Failed to retrieve team summary", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(summary); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode team summary")
	}
}
