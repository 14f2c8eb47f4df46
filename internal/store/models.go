package store

import (
	"database/sql"
	"time"
)

// User roles.
const (
	RoleGuest = "guest"
	RoleOwl   = "owl"
	RoleAdmin = "admin"
)

// Outbox channels.
const (
	ChannelSMS  = "sms"
	ChannelPush = "push"
)

// Outbox item statuses.
const (
	OutboxPending           = "pending"
	OutboxSent              = "sent"
	OutboxFailed            = "failed"
	OutboxPermanentlyFailed = "permanently_failed"
)

// Report severities.
const (
	SeverityNormal    = "normal"
	SeveritySuspicion = "suspicion"
	SeverityIncident  = "incident"
)

// Broadcast audiences.
const (
	AudienceAll    = "all"
	AudienceAdmins = "admins"
	AudienceOwls   = "owls"
	AudienceActive = "active"
)

type User struct {
	UserID    int64
	Phone     string
	Name      sql.NullString
	Role      string
	CreatedAt time.Time
}

type Schedule struct {
	ScheduleID      int64
	Name            string
	CronExpr        string
	StartDate       sql.NullTime
	EndDate         sql.NullTime
	DurationMinutes int64
	IsActive        bool
	CreatedAt       time.Time
}

type Booking struct {
	BookingID   int64
	UserID      int64
	ScheduleID  int64
	ShiftStart  time.Time
	ShiftEnd    time.Time
	BuddyName   sql.NullString
	CheckedInAt sql.NullTime
	Attended    sql.NullBool
	IsRecurring bool
	CreatedAt   time.Time
}

// BookingWithSchedule carries the joined schedule name for user-facing lists.
type BookingWithSchedule struct {
	Booking
	ScheduleName string
}

// BookingWithUser carries the joined booker identity for slot annotation.
type BookingWithUser struct {
	Booking
	UserName  sql.NullString
	UserPhone string
}

type RecurringAssignment struct {
	RecID       int64
	UserID      int64
	ScheduleID  int64
	DayOfWeek   int64
	TimeSlot    string
	BuddyName   sql.NullString
	Description sql.NullString
	IsActive    bool
	CreatedAt   time.Time
}

type Report struct {
	ReportID          int64
	BookingID         sql.NullInt64
	UserID            int64
	Severity          string
	Message           string
	Latitude          sql.NullFloat64
	Longitude         sql.NullFloat64
	Accuracy          sql.NullFloat64
	LocationTimestamp sql.NullTime
	CreatedAt         time.Time
	ArchivedAt        sql.NullTime
}

type OutboxItem struct {
	OutboxID    int64
	UserID      sql.NullInt64
	BroadcastID sql.NullInt64
	Recipient   string
	Channel     string
	MessageType string
	Payload     sql.NullString
	Status      string
	RetryCount  int64
	SendAt      time.Time
	CreatedAt   time.Time
	SentAt      sql.NullTime
	LastError   sql.NullString
}

type Broadcast struct {
	BroadcastID  int64
	AuthorUserID int64
	Audience     string
	Subject      sql.NullString
	Body         string
	PushEnabled  bool
	CreatedAt    time.Time
	ProcessedAt  sql.NullTime
}

type PushSubscription struct {
	SubID     int64
	UserID    int64
	Endpoint  string
	P256dhKey string
	AuthKey   string
	CreatedAt time.Time
}

// NullString wraps a non-empty string.
func NullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// NullInt64 wraps a pointer into sql.NullInt64.
func NullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

// NullTime wraps a pointer into sql.NullTime.
func NullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
