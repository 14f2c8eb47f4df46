package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/Fermain/night-owls-go-sub006/internal/service"
	"github.com/Fermain/night-owls-go-sub006/internal/shifts"
)

func (s *Server) handleListSchedules(w http.ResponseWriter, r *http.Request) {
	schedules, err := s.schedules.ListActive(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toScheduleResponses(schedules))
}

// parseListParams reads the from/to/limit query parameters shared by the
// slot listing endpoints. Times are RFC3339.
func parseListParams(r *http.Request) (shifts.ListParams, error) {
	var params shifts.ListParams

	if v := r.URL.Query().Get("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return params, service.ErrInvalidInput
		}
		params.From = t
	}
	if v := r.URL.Query().Get("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return params, service.ErrInvalidInput
		}
		params.To = t
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return params, service.ErrInvalidInput
		}
		params.Limit = n
	}
	return params, nil
}

func (s *Server) handleListAvailableShifts(w http.ResponseWriter, r *http.Request) {
	params, err := parseListParams(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	slots, err := s.shifts.ListAvailable(r.Context(), params)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, slots)
}
