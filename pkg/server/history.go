package server

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/raterudder/devicerudder/pkg/log"
	"github.com/raterudder/devicerudder/pkg/types"
)

func (s *Server) handleHistoryDecisions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	now := s.now()
	start, end, err := parseTimeRange(r, now)
	if err != nil {
		writeJSONError(w, "invalid time range: "+err.Error(), http.StatusBadRequest)
		return
	}

	decisions, err := s.storage.GetDecisionHistory(ctx, s.homeID, start, end)
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to get decisions", slog.Time("start", start), slog.Time("end", end), slog.Any("error", err))
		writeJSONError(w, "failed to get decisions", http.StatusInternalServerError)
		return
	}
	if decisions == nil {
		decisions = []types.Decision{}
	}

	// If the range ends before midnight today in the home's time zone, cache
	// for 24 hours. Otherwise, cache for 1 minute.
	if end.Before(startOfDay(now)) {
		w.Header().Set("Cache-Control", "private, max-age=86400")
	} else {
		w.Header().Set("Cache-Control", "private, max-age=60")
	}

	writeJSON(w, decisions)
}

func (s *Server) handleLatestDecision(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	decision, err := s.storage.GetLatestDecision(ctx, s.homeID)
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to get latest decision", slog.Any("error", err))
		writeJSONError(w, "failed to get latest decision", http.StatusInternalServerError)
		return
	}
	if decision == nil {
		writeJSONError(w, "no decisions recorded", http.StatusNotFound)
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, decision)
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// parseTimeRange reads the RFC3339 start and end query parameters, defaulting
// to the 24 hours before now when either is missing.
func parseTimeRange(r *http.Request, now time.Time) (time.Time, time.Time, error) {
	startStr := r.URL.Query().Get("start")
	endStr := r.URL.Query().Get("end")

	if startStr == "" || endStr == "" {
		return now.Add(-24 * time.Hour), now, nil
	}

	start, err := time.Parse(time.RFC3339, startStr)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid start time: %w", err)
	}

	end, err := time.Parse(time.RFC3339, endStr)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid end time: %w", err)
	}

	if end.Before(start) {
		return time.Time{}, time.Time{}, fmt.Errorf("start time must be before end time")
	}

	if end.Sub(start) > 7*24*time.Hour {
		return time.Time{}, time.Time{}, fmt.Errorf("time range cannot exceed 7 days")
	}

	return start, end, nil
}
