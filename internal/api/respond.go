package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/Fermain/night-owls-go-sub006/internal/cronutil"
	"github.com/Fermain/night-owls-go-sub006/internal/logging"
	"github.com/Fermain/night-owls-go-sub006/internal/service"
)

// maxBodyBytes caps request bodies; every payload here is small JSON.
const maxBodyBytes = 64 << 10

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps a service error to its status code. Only the stable
// error string reaches the client; details stay in the logs.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := statusForError(err)
	if code == http.StatusInternalServerError {
		logger := logging.WithContext(r.Context(), s.logger)
		logger.Error().Err(err).
			Str("path", r.URL.Path).
			Msg("request failed")
		err = service.ErrInternalServer
	}
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, service.ErrInvalidInput),
		errors.Is(err, service.ErrInvalidPhone),
		errors.Is(err, service.ErrInvalidTimeSlot),
		errors.Is(err, service.ErrShiftTimeInvalid),
		errors.Is(err, cronutil.ErrInvalidCronExpression):
		return http.StatusBadRequest

	case errors.Is(err, service.ErrOTPInvalid):
		return http.StatusUnauthorized

	case errors.Is(err, service.ErrForbiddenUpdate):
		return http.StatusForbidden

	case errors.Is(err, service.ErrUserNotFound),
		errors.Is(err, service.ErrScheduleNotFound),
		errors.Is(err, service.ErrBookingNotFound),
		errors.Is(err, service.ErrAssignmentNotFound),
		errors.Is(err, service.ErrReportNotFound),
		errors.Is(err, service.ErrBroadcastNotFound):
		return http.StatusNotFound

	case errors.Is(err, service.ErrBookingConflict),
		errors.Is(err, service.ErrAlreadyBookedByUser),
		errors.Is(err, service.ErrAssignmentConflict):
		return http.StatusConflict

	case errors.Is(err, service.ErrBookingTooSoon),
		errors.Is(err, service.ErrCheckInTooEarly),
		errors.Is(err, service.ErrCheckInWindowClosed),
		errors.Is(err, service.ErrAttendanceTooEarly),
		errors.Is(err, service.ErrBookingCannotBeCancelled):
		return http.StatusPreconditionFailed

	default:
		return http.StatusInternalServerError
	}
}

// decodeJSON reads a bounded JSON body into v, rejecting unknown fields.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return service.ErrInvalidInput
	}
	return nil
}
