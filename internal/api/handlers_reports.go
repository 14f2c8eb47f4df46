package api

import (
	"net/http"
	"time"

	"github.com/Fermain/night-owls-go-sub006/internal/service"
)

type reportRequest struct {
	Severity          string     `json:"severity"`
	Message           string     `json:"message"`
	Latitude          *float64   `json:"latitude,omitempty"`
	Longitude         *float64   `json:"longitude,omitempty"`
	Accuracy          *float64   `json:"accuracy,omitempty"`
	LocationTimestamp *time.Time `json:"location_timestamp,omitempty"`
}

func (req reportRequest) params() service.ReportParams {
	return service.ReportParams{
		Severity:          req.Severity,
		Message:           req.Message,
		Latitude:          req.Latitude,
		Longitude:         req.Longitude,
		Accuracy:          req.Accuracy,
		LocationTimestamp: req.LocationTimestamp,
	}
}

func (s *Server) handleShiftReport(w http.ResponseWriter, r *http.Request) {
	caller, _ := callerFromContext(r.Context())

	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	var req reportRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	report, err := s.reports.CreateShiftReport(r.Context(), id, caller.UserID, req.params())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toReportResponse(report))
}

func (s *Server) handleOffShiftReport(w http.ResponseWriter, r *http.Request) {
	caller, _ := callerFromContext(r.Context())

	var req reportRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	report, err := s.reports.CreateOffShiftReport(r.Context(), caller.UserID, req.params())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toReportResponse(report))
}
