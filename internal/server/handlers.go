package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/MeKo-Tech/boxguard/internal/store"
	"github.com/MeKo-Tech/boxguard/internal/version"
)

// maxCommandsLimit caps /commands?limit=.
const maxCommandsLimit = 1000

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

// healthHandler returns server health status.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	writeJSON(w, http.StatusOK, HealthResponse{
		Status:  "healthy",
		Version: version.Version,
		Time:    time.Now().UTC().Format(time.RFC3339),
	})
}

// statusHandler returns the inspection loop's current state.
func (s *Server) statusHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.status == nil {
		writeJSON(w, http.StatusServiceUnavailable, ErrorResponse{Error: "inspection loop not running"})
		return
	}
	writeJSON(w, http.StatusOK, s.status.State())
}

// commandsHandler lists recent audit-log entries, newest first.
func (s *Server) commandsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.commands == nil {
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "audit store disabled"})
		return
	}

	limit := store.DefaultRecentLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "limit must be a positive integer"})
			return
		}
		limit = min(n, maxCommandsLimit)
	}

	events, err := s.commands.RecentCommands(r.Context(), limit)
	if err != nil {
		slog.Error("Failed to list commands", "error", err)
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "failed to list commands"})
		return
	}
	writeJSON(w, http.StatusOK, CommandsResponse{Commands: events, Count: len(events)})
}

// snapshotHandler returns the latest annotated frame as a single JPEG.
func (s *Server) snapshotHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	data := s.latestPreview()
	if data == nil {
		writeJSON(w, http.StatusServiceUnavailable, ErrorResponse{Error: "no frame rendered yet"})
		return
	}
	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(data)
}
