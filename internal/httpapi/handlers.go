package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/MimeLyc/ygo-judge/internal/cards"
	"github.com/MimeLyc/ygo-judge/internal/persistence"
	"github.com/MimeLyc/ygo-judge/pkg/log"
)

type searchResultsResponse struct {
	Type    string       `json:"type"`
	Results []cards.Card `json:"results"`
}

func (s *Server) handleCardSearch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	query := strings.TrimSpace(r.URL.Query().Get("q"))
	resp := searchResultsResponse{Type: "search_results", Results: []cards.Card{}}
	if query == "" {
		writeJSON(w, http.StatusOK, resp)
		return
	}

	limit := persistence.DefaultSearchLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > 50 {
			writeError(w, http.StatusBadRequest, "limit must be between 1 and 50")
			return
		}
		limit = n
	}

	results, err := s.cards.SearchCards(r.Context(), query, limit)
	if err != nil {
		log.Error("Card search for %q failed: %v", query, err)
		writeError(w, http.StatusInternalServerError, "card search failed")
		return
	}
	resp.Results = append(resp.Results, results...)
	writeJSON(w, http.StatusOK, resp)
}

type healthResponse struct {
	Status string             `json:"status"`
	Stats  *persistence.Stats `json:"stats,omitempty"`
	Error  string             `json:"error,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if s.health == nil {
		writeJSON(w, http.StatusOK, healthResponse{Status: "ok"})
		return
	}

	if err := s.health.Ping(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "unavailable", Error: err.Error()})
		return
	}
	stats, err := s.health.Stats(r.Context())
	if err != nil {
		writeJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "unavailable", Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok", Stats: &stats})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{
		"error": msg,
	})
}
