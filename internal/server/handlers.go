package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/seandooa/cg4002-capstone-code/internal/command"
	"github.com/seandooa/cg4002-capstone-code/internal/feed"
	"github.com/seandooa/cg4002-capstone-code/internal/models"
)

const maxFeedBody = 64 << 10

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	online := 0
	for _, e := range s.deps.Commands.List() {
		if e.Online {
			online++
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "devices": online})
}

func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.Commands.List())
}

func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	cmd := command.Command{
		Action: command.Action(chi.URLParam(r, "action")),
		Target: chi.URLParam(r, "id"),
	}
	if cmd.Action == command.ActionSelect {
		var body struct {
			ExerciseType string `json:"exercise_type"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON: " + err.Error()})
			return
		}
		cmd.Exercise = body.ExerciseType
	}

	res, err := s.deps.Commands.Submit(r.Context(), cmd)
	switch {
	case errors.Is(err, command.ErrUnknownAction), errors.Is(err, command.ErrMissingExercise), errors.Is(err, command.ErrMissingTarget):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": err.Error()})
		return
	case err != nil:
		s.log.Error("command error", "action", cmd.Action, "target", cmd.Target, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	if res.NotFound {
		writeJSON(w, http.StatusNotFound, res)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleRecentWorkouts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit := 0
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid limit"})
			return
		}
		limit = n
	}

	rows := []models.WorkoutRow{}
	if s.deps.History != nil {
		got, err := s.deps.History.RecentWorkouts(r.Context(), q.Get("device_id"), limit)
		if err != nil {
			s.log.Error("workout query error", "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}
		if got != nil {
			rows = got
		}
	}
	writeJSON(w, http.StatusOK, rows)
}

func (s *Server) handleFeedPush(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxFeedBody))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	rec, err := feed.ParseRecord(string(body))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	s.deps.Feed.Ingest(rec)
	writeJSON(w, http.StatusAccepted, rec)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
