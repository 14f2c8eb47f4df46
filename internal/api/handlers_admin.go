package api

import (
	"net/http"
	"time"

	"github.com/Fermain/night-owls-go-sub006/internal/service"
)

// scheduleRequest carries schedule fields; dates are "YYYY-MM-DD".
type scheduleRequest struct {
	Name            string `json:"name"`
	CronExpr        string `json:"cron_expr"`
	StartDate       string `json:"start_date,omitempty"`
	EndDate         string `json:"end_date,omitempty"`
	DurationMinutes int64  `json:"duration_minutes"`
	IsActive        bool   `json:"is_active"`
}

func (req scheduleRequest) params() (service.ScheduleParams, error) {
	params := service.ScheduleParams{
		Name:            req.Name,
		CronExpr:        req.CronExpr,
		DurationMinutes: req.DurationMinutes,
		IsActive:        req.IsActive,
	}
	for _, field := range []struct {
		raw  string
		dest **time.Time
	}{
		{req.StartDate, &params.StartDate},
		{req.EndDate, &params.EndDate},
	} {
		if field.raw == "" {
			continue
		}
		t, err := time.ParseInLocation("2006-01-02", field.raw, time.UTC)
		if err != nil {
			return params, service.ErrInvalidInput
		}
		*field.dest = &t
	}
	return params, nil
}

func (s *Server) handleAdminListSchedules(w http.ResponseWriter, r *http.Request) {
	schedules, err := s.schedules.ListAll(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toScheduleResponses(schedules))
}

func (s *Server) handleAdminCreateSchedule(w http.ResponseWriter, r *http.Request) {
	var req scheduleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	params, err := req.params()
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	schedule, err := s.schedules.Create(r.Context(), params)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toScheduleResponse(schedule))
}

func (s *Server) handleAdminGetSchedule(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	schedule, err := s.schedules.Get(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toScheduleResponse(schedule))
}

func (s *Server) handleAdminUpdateSchedule(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req scheduleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	params, err := req.params()
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	schedule, err := s.schedules.Update(r.Context(), id, params)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toScheduleResponse(schedule))
}

func (s *Server) handleAdminDeleteSchedule(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.schedules.Delete(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type previewRequest struct {
	CronExpr        string    `json:"cron_expr"`
	From            time.Time `json:"from"`
	To              time.Time `json:"to"`
	DurationMinutes int64     `json:"duration_minutes"`
	Limit           int       `json:"limit,omitempty"`
}

func (s *Server) handleAdminPreviewSchedule(w http.ResponseWriter, r *http.Request) {
	var req previewRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	occurrences, err := s.schedules.Preview(r.Context(), req.CronExpr, req.From, req.To, req.DurationMinutes, req.Limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, occurrences)
}

func (s *Server) handleAdminListShifts(w http.ResponseWriter, r *http.Request) {
	params, err := parseListParams(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	slots, err := s.shifts.ListAllAdmin(r.Context(), params)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, slots)
}

type assignShiftRequest struct {
	UserID     int64     `json:"user_id"`
	ScheduleID int64     `json:"schedule_id"`
	StartTime  time.Time `json:"start_time"`
}

func (s *Server) handleAdminAssignShift(w http.ResponseWriter, r *http.Request) {
	var req assignShiftRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	booking, err := s.bookings.AdminAssignUserToShift(r.Context(), req.UserID, req.ScheduleID, req.StartTime)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toBookingResponse(booking))
}

type unassignShiftRequest struct {
	ScheduleID int64     `json:"schedule_id"`
	StartTime  time.Time `json:"start_time"`
}

func (s *Server) handleAdminUnassignShift(w http.ResponseWriter, r *http.Request) {
	var req unassignShiftRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	if err := s.bookings.AdminUnassignUserFromShift(r.Context(), req.ScheduleID, req.StartTime); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type userRequest struct {
	Phone string `json:"phone"`
	Name  string `json:"name,omitempty"`
	Role  string `json:"role"`
}

func (s *Server) handleAdminListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.users.List(r.Context(), r.URL.Query().Get("search"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	out := make([]userResponse, 0, len(users))
	for _, u := range users {
		out = append(out, toUserResponse(u))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleAdminCreateUser(w http.ResponseWriter, r *http.Request) {
	var req userRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	user, err := s.users.Create(r.Context(), service.UserParams{Phone: req.Phone, Name: req.Name, Role: req.Role})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toUserResponse(user))
}

func (s *Server) handleAdminGetUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	user, err := s.users.Get(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(user))
}

func (s *Server) handleAdminUpdateUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req userRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	user, err := s.users.Update(r.Context(), id, service.UserParams{Phone: req.Phone, Name: req.Name, Role: req.Role})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(user))
}

func (s *Server) handleAdminDeleteUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.users.Delete(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type assignmentRequest struct {
	UserID      int64  `json:"user_id"`
	ScheduleID  int64  `json:"schedule_id"`
	DayOfWeek   int64  `json:"day_of_week"`
	TimeSlot    string `json:"time_slot"`
	BuddyName   string `json:"buddy_name,omitempty"`
	Description string `json:"description,omitempty"`
	IsActive    bool   `json:"is_active"`
}

func (req assignmentRequest) params() service.AssignmentParams {
	return service.AssignmentParams{
		UserID:      req.UserID,
		ScheduleID:  req.ScheduleID,
		DayOfWeek:   req.DayOfWeek,
		TimeSlot:    req.TimeSlot,
		BuddyName:   req.BuddyName,
		Description: req.Description,
		IsActive:    req.IsActive,
	}
}

func (s *Server) handleAdminListAssignments(w http.ResponseWriter, r *http.Request) {
	assignments, err := s.recurring.ListAssignments(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	out := make([]assignmentResponse, 0, len(assignments))
	for _, a := range assignments {
		out = append(out, toAssignmentResponse(a))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleAdminCreateAssignment(w http.ResponseWriter, r *http.Request) {
	var req assignmentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	assignment, err := s.recurring.CreateAssignment(r.Context(), req.params())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toAssignmentResponse(assignment))
}

func (s *Server) handleAdminGetAssignment(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	assignment, err := s.recurring.GetAssignment(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toAssignmentResponse(assignment))
}

func (s *Server) handleAdminUpdateAssignment(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req assignmentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	assignment, err := s.recurring.UpdateAssignment(r.Context(), id, req.params())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toAssignmentResponse(assignment))
}

func (s *Server) handleAdminDeleteAssignment(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.recurring.DeleteAssignment(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAdminListReports(w http.ResponseWriter, r *http.Request) {
	includeArchived := r.URL.Query().Get("include_archived") == "true"
	reports, err := s.reports.List(r.Context(), includeArchived)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	out := make([]reportResponse, 0, len(reports))
	for _, rep := range reports {
		out = append(out, toReportResponse(rep))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleAdminReportStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.reports.Stats(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	type bucket struct {
		Severity string `json:"severity"`
		Archived bool   `json:"archived"`
		Count    int64  `json:"count"`
	}
	out := make([]bucket, 0, len(stats))
	for _, row := range stats {
		out = append(out, bucket{Severity: row.Severity, Archived: row.Archived, Count: row.Count})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleAdminGetReport(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	report, err := s.reports.Get(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toReportResponse(report))
}

func (s *Server) handleAdminArchiveReport(w http.ResponseWriter, r *http.Request) {
	s.setReportArchived(w, r, true)
}

func (s *Server) handleAdminUnarchiveReport(w http.ResponseWriter, r *http.Request) {
	s.setReportArchived(w, r, false)
}

func (s *Server) setReportArchived(w http.ResponseWriter, r *http.Request, archived bool) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.reports.SetArchived(r.Context(), id, archived); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type broadcastRequest struct {
	Audience    string `json:"audience"`
	Subject     string `json:"subject,omitempty"`
	Body        string `json:"body"`
	PushEnabled bool   `json:"push_enabled"`
}

func (s *Server) handleAdminListBroadcasts(w http.ResponseWriter, r *http.Request) {
	broadcasts, err := s.broadcasts.List(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	out := make([]broadcastResponse, 0, len(broadcasts))
	for _, b := range broadcasts {
		out = append(out, toBroadcastResponse(b))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleAdminCreateBroadcast(w http.ResponseWriter, r *http.Request) {
	caller, _ := callerFromContext(r.Context())

	var req broadcastRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	broadcast, err := s.broadcasts.Create(r.Context(), service.BroadcastParams{
		AuthorUserID: caller.UserID,
		Audience:     req.Audience,
		Subject:      req.Subject,
		Body:         req.Body,
		PushEnabled:  req.PushEnabled,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toBroadcastResponse(broadcast))
}

func (s *Server) handleAdminGetBroadcast(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	broadcast, err := s.broadcasts.Get(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toBroadcastResponse(broadcast))
}

func (s *Server) handleAdminDashboard(w http.ResponseWriter, r *http.Request) {
	dash, err := s.users.Dashboard(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dash)
}
