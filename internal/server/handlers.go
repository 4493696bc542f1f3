package server

import (
	"net/http"

	json "github.com/goccy/go-json"
)

// handleHealth returns a simple liveness response
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
