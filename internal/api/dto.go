package api

import (
	"database/sql"
	"time"

	"github.com/Fermain/night-owls-go-sub006/internal/store"
)

// Response shapes. Nullable columns become omitted JSON fields.

type userResponse struct {
	UserID    int64     `json:"user_id"`
	Phone     string    `json:"phone"`
	Name      *string   `json:"name,omitempty"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

func toUserResponse(u store.User) userResponse {
	return userResponse{
		UserID:    u.UserID,
		Phone:     u.Phone,
		Name:      nullableString(u.Name),
		Role:      u.Role,
		CreatedAt: u.CreatedAt,
	}
}

type scheduleResponse struct {
	ScheduleID      int64      `json:"schedule_id"`
	Name            string     `json:"name"`
	CronExpr        string     `json:"cron_expr"`
	StartDate       *time.Time `json:"start_date,omitempty"`
	EndDate         *time.Time `json:"end_date,omitempty"`
	DurationMinutes int64      `json:"duration_minutes"`
	IsActive        bool       `json:"is_active"`
	CreatedAt       time.Time  `json:"created_at"`
}

func toScheduleResponse(s store.Schedule) scheduleResponse {
	return scheduleResponse{
		ScheduleID:      s.ScheduleID,
		Name:            s.Name,
		CronExpr:        s.CronExpr,
		StartDate:       nullableTime(s.StartDate),
		EndDate:         nullableTime(s.EndDate),
		DurationMinutes: s.DurationMinutes,
		IsActive:        s.IsActive,
		CreatedAt:       s.CreatedAt,
	}
}

func toScheduleResponses(schedules []store.Schedule) []scheduleResponse {
	out := make([]scheduleResponse, 0, len(schedules))
	for _, s := range schedules {
		out = append(out, toScheduleResponse(s))
	}
	return out
}

type bookingResponse struct {
	BookingID    int64      `json:"booking_id"`
	UserID       int64      `json:"user_id"`
	ScheduleID   int64      `json:"schedule_id"`
	ScheduleName string     `json:"schedule_name,omitempty"`
	ShiftStart   time.Time  `json:"shift_start"`
	ShiftEnd     time.Time  `json:"shift_end"`
	BuddyName    *string    `json:"buddy_name,omitempty"`
	CheckedInAt  *time.Time `json:"checked_in_at,omitempty"`
	Attended     *bool      `json:"attended,omitempty"`
	IsRecurring  bool       `json:"is_recurring"`
	CreatedAt    time.Time  `json:"created_at"`
}

func toBookingResponse(b store.Booking) bookingResponse {
	resp := bookingResponse{
		BookingID:   b.BookingID,
		UserID:      b.UserID,
		ScheduleID:  b.ScheduleID,
		ShiftStart:  b.ShiftStart,
		ShiftEnd:    b.ShiftEnd,
		BuddyName:   nullableString(b.BuddyName),
		CheckedInAt: nullableTime(b.CheckedInAt),
		IsRecurring: b.IsRecurring,
		CreatedAt:   b.CreatedAt,
	}
	if b.Attended.Valid {
		resp.Attended = &b.Attended.Bool
	}
	return resp
}

type assignmentResponse struct {
	RecID       int64   `json:"rec_id"`
	UserID      int64   `json:"user_id"`
	ScheduleID  int64   `json:"schedule_id"`
	DayOfWeek   int64   `json:"day_of_week"`
	TimeSlot    string  `json:"time_slot"`
	BuddyName   *string `json:"buddy_name,omitempty"`
	Description *string `json:"description,omitempty"`
	IsActive    bool    `json:"is_active"`
}

func toAssignmentResponse(a store.RecurringAssignment) assignmentResponse {
	return assignmentResponse{
		RecID:       a.RecID,
		UserID:      a.UserID,
		ScheduleID:  a.ScheduleID,
		DayOfWeek:   a.DayOfWeek,
		TimeSlot:    a.TimeSlot,
		BuddyName:   nullableString(a.BuddyName),
		Description: nullableString(a.Description),
		IsActive:    a.IsActive,
	}
}

type reportResponse struct {
	ReportID          int64      `json:"report_id"`
	BookingID         *int64     `json:"booking_id,omitempty"`
	UserID            int64      `json:"user_id"`
	Severity          string     `json:"severity"`
	Message           string     `json:"message"`
	Latitude          *float64   `json:"latitude,omitempty"`
	Longitude         *float64   `json:"longitude,omitempty"`
	Accuracy          *float64   `json:"accuracy,omitempty"`
	LocationTimestamp *time.Time `json:"location_timestamp,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	ArchivedAt        *time.Time `json:"archived_at,omitempty"`
}

func toReportResponse(r store.Report) reportResponse {
	resp := reportResponse{
		ReportID:          r.ReportID,
		UserID:            r.UserID,
		Severity:          r.Severity,
		Message:           r.Message,
		Latitude:          nullableFloat(r.Latitude),
		Longitude:         nullableFloat(r.Longitude),
		Accuracy:          nullableFloat(r.Accuracy),
		LocationTimestamp: nullableTime(r.LocationTimestamp),
		CreatedAt:         r.CreatedAt,
		ArchivedAt:        nullableTime(r.ArchivedAt),
	}
	if r.BookingID.Valid {
		resp.BookingID = &r.BookingID.Int64
	}
	return resp
}

type broadcastResponse struct {
	BroadcastID  int64      `json:"broadcast_id"`
	AuthorUserID int64      `json:"author_user_id"`
	Audience     string     `json:"audience"`
	Subject      *string    `json:"subject,omitempty"`
	Body         string     `json:"body"`
	PushEnabled  bool       `json:"push_enabled"`
	CreatedAt    time.Time  `json:"created_at"`
	ProcessedAt  *time.Time `json:"processed_at,omitempty"`
}

func toBroadcastResponse(b store.Broadcast) broadcastResponse {
	return broadcastResponse{
		BroadcastID:  b.BroadcastID,
		AuthorUserID: b.AuthorUserID,
		Audience:     b.Audience,
		Subject:      nullableString(b.Subject),
		Body:         b.Body,
		PushEnabled:  b.PushEnabled,
		CreatedAt:    b.CreatedAt,
		ProcessedAt:  nullableTime(b.ProcessedAt),
	}
}

func nullableString(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	return &v.String
}

func nullableTime(v sql.NullTime) *time.Time {
	if !v.Valid {
		return nil
	}
	return &v.Time
}

func nullableFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	return &v.Float64
}
