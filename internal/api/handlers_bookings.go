package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Fermain/night-owls-go-sub006/internal/service"
	"github.com/Fermain/night-owls-go-sub006/internal/store"
)

// pathID reads the {id} route parameter.
func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id < 1 {
		return 0, service.ErrInvalidInput
	}
	return id, nil
}

type createBookingRequest struct {
	ScheduleID int64     `json:"schedule_id"`
	StartTime  time.Time `json:"start_time"`
	BuddyName  string    `json:"buddy_name,omitempty"`
}

func (s *Server) handleCreateBooking(w http.ResponseWriter, r *http.Request) {
	caller, _ := callerFromContext(r.Context())

	var req createBookingRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	booking, err := s.bookings.CreateBooking(r.Context(), caller.UserID, req.ScheduleID, req.StartTime, store.NullString(req.BuddyName))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toBookingResponse(booking))
}

func (s *Server) handleMyBookings(w http.ResponseWriter, r *http.Request) {
	caller, _ := callerFromContext(r.Context())

	bookings, err := s.bookings.GetUserBookings(r.Context(), caller.UserID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	out := make([]bookingResponse, 0, len(bookings))
	for _, b := range bookings {
		resp := toBookingResponse(b.Booking)
		resp.ScheduleName = b.ScheduleName
		out = append(out, resp)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCheckIn(w http.ResponseWriter, r *http.Request) {
	caller, _ := callerFromContext(r.Context())

	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	booking, err := s.bookings.MarkCheckIn(r.Context(), id, caller.UserID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toBookingResponse(booking))
}

type attendanceRequest struct {
	Attended bool `json:"attended"`
}

func (s *Server) handleAttendance(w http.ResponseWriter, r *http.Request) {
	caller, _ := callerFromContext(r.Context())

	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	var req attendanceRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	booking, err := s.bookings.MarkAttendance(r.Context(), id, caller.UserID, req.Attended)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toBookingResponse(booking))
}

func (s *Server) handleCancelBooking(w http.ResponseWriter, r *http.Request) {
	caller, _ := callerFromContext(r.Context())

	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	if err := s.bookings.CancelBooking(r.Context(), id, caller.UserID, caller.Role); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
