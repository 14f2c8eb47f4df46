package store_test

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Fermain/night-owls-go-sub006/internal/store"
	"github.com/Fermain/night-owls-go-sub006/internal/store/storetest"
)

func TestOpenAndMigrate(t *testing.T) {
	s, err := store.Open(filepath.Join(t.TempDir(), "owls.db"), store.DefaultConfig())
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Migrate())
	// A second run must be a no-op.
	require.NoError(t, s.Migrate())

	_, err = s.CreateUser(context.Background(), store.CreateUserParams{
		Phone: "+27821234567",
		Role:  store.RoleOwl,
	})
	require.NoError(t, err)
}

func TestUserPhoneUnique(t *testing.T) {
	s := storetest.New(t)
	ctx := context.Background()

	_, err := s.CreateUser(ctx, store.CreateUserParams{Phone: "+27821230001", Role: store.RoleOwl})
	require.NoError(t, err)

	_, err = s.CreateUser(ctx, store.CreateUserParams{Phone: "+27821230001", Role: store.RoleGuest})
	require.Error(t, err)
	assert.True(t, store.IsUniqueConstraintError(err))
}

func TestBookingSlotUnique(t *testing.T) {
	s := storetest.New(t)
	ctx := context.Background()

	user, err := s.CreateUser(ctx, store.CreateUserParams{Phone: "+27821230002", Role: store.RoleOwl})
	require.NoError(t, err)
	other, err := s.CreateUser(ctx, store.CreateUserParams{Phone: "+27821230003", Role: store.RoleOwl})
	require.NoError(t, err)
	schedule, err := s.CreateSchedule(ctx, store.CreateScheduleParams{
		Name:            "Night Watch",
		CronExpr:        "0 0 * * *",
		DurationMinutes: 120,
		IsActive:        true,
	})
	require.NoError(t, err)

	start := time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC)
	_, err = s.CreateBooking(ctx, store.CreateBookingParams{
		UserID:     user.UserID,
		ScheduleID: schedule.ScheduleID,
		ShiftStart: start,
		ShiftEnd:   start.Add(2 * time.Hour),
	})
	require.NoError(t, err)

	_, err = s.CreateBooking(ctx, store.CreateBookingParams{
		UserID:     other.UserID,
		ScheduleID: schedule.ScheduleID,
		ShiftStart: start,
		ShiftEnd:   start.Add(2 * time.Hour),
	})
	require.Error(t, err)
	assert.True(t, store.IsUniqueConstraintError(err))

	// Deleting the winner frees the slot again.
	winner, err := s.GetBookingByShift(ctx, schedule.ScheduleID, start)
	require.NoError(t, err)
	require.NoError(t, s.DeleteBooking(ctx, winner.BookingID))

	_, err = s.CreateBooking(ctx, store.CreateBookingParams{
		UserID:     other.UserID,
		ScheduleID: schedule.ScheduleID,
		ShiftStart: start,
		ShiftEnd:   start.Add(2 * time.Hour),
	})
	require.NoError(t, err)
}

func TestOutboxFetchPendingOrderAndFilter(t *testing.T) {
	s := storetest.New(t)
	ctx := context.Background()
	now := time.Now().UTC()

	first, err := s.CreateOutboxItem(ctx, store.CreateOutboxItemParams{
		Recipient:   "+27821230004",
		Channel:     store.ChannelSMS,
		MessageType: "booking_confirmation",
		Payload:     store.NullString("first"),
		SendAt:      now,
	})
	require.NoError(t, err)
	second, err := s.CreateOutboxItem(ctx, store.CreateOutboxItemParams{
		Recipient:   "+27821230004",
		Channel:     store.ChannelSMS,
		MessageType: "booking_confirmation",
		Payload:     store.NullString("second"),
		SendAt:      now,
	})
	require.NoError(t, err)

	// Mark the first sent; only the second stays fetchable.
	require.NoError(t, s.UpdateOutboxStatus(ctx, store.UpdateOutboxStatusParams{
		OutboxID: first.OutboxID,
		Status:   store.OutboxSent,
		SentAt:   sql.NullTime{Time: now, Valid: true},
	}))

	items, err := s.FetchPendingOutbox(ctx, 10)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, second.OutboxID, items[0].OutboxID)
	assert.Equal(t, store.OutboxPending, items[0].Status)

	// Future send_at items are not yet due.
	_, err = s.CreateOutboxItem(ctx, store.CreateOutboxItemParams{
		Recipient:   "+27821230004",
		Channel:     store.ChannelSMS,
		MessageType: "reminder",
		SendAt:      now.Add(time.Hour),
	})
	require.NoError(t, err)

	items, err = s.FetchPendingOutbox(ctx, 10)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, second.OutboxID, items[0].OutboxID)
}

func TestOutboxRequeueFailed(t *testing.T) {
	s := storetest.New(t)
	ctx := context.Background()
	now := time.Now().UTC()

	item, err := s.CreateOutboxItem(ctx, store.CreateOutboxItemParams{
		Recipient:   "+27821230005",
		Channel:     store.ChannelSMS,
		MessageType: "booking_confirmation",
		SendAt:      now,
	})
	require.NoError(t, err)
	sent, err := s.CreateOutboxItem(ctx, store.CreateOutboxItemParams{
		Recipient:   "+27821230005",
		Channel:     store.ChannelSMS,
		MessageType: "booking_confirmation",
		SendAt:      now,
	})
	require.NoError(t, err)

	require.NoError(t, s.UpdateOutboxStatus(ctx, store.UpdateOutboxStatusParams{
		OutboxID:   item.OutboxID,
		Status:     store.OutboxFailed,
		RetryCount: 1,
		LastError:  store.NullString("boom"),
	}))
	require.NoError(t, s.UpdateOutboxStatus(ctx, store.UpdateOutboxStatusParams{
		OutboxID: sent.OutboxID,
		Status:   store.OutboxSent,
		SentAt:   sql.NullTime{Time: now, Valid: true},
	}))

	n, err := s.RequeueFailedOutbox(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	got, err := s.GetOutboxItem(ctx, item.OutboxID)
	require.NoError(t, err)
	assert.Equal(t, store.OutboxPending, got.Status)
	assert.Equal(t, int64(1), got.RetryCount)

	stillSent, err := s.GetOutboxItem(ctx, sent.OutboxID)
	require.NoError(t, err)
	assert.Equal(t, store.OutboxSent, stillSent.Status)
}

func TestBroadcastOutboxDedup(t *testing.T) {
	s := storetest.New(t)
	ctx := context.Background()
	now := time.Now().UTC()

	author, err := s.CreateUser(ctx, store.CreateUserParams{Phone: "+27821230006", Role: store.RoleAdmin})
	require.NoError(t, err)
	b, err := s.CreateBroadcast(ctx, store.CreateBroadcastParams{
		AuthorUserID: author.UserID,
		Audience:     store.AudienceAll,
		Body:         "patrol tonight",
	})
	require.NoError(t, err)

	params := store.CreateOutboxItemParams{
		UserID:      sql.NullInt64{Int64: author.UserID, Valid: true},
		BroadcastID: sql.NullInt64{Int64: b.BroadcastID, Valid: true},
		Recipient:   author.Phone,
		Channel:     store.ChannelSMS,
		MessageType: "broadcast",
		Payload:     store.NullString("patrol tonight"),
		SendAt:      now,
	}

	inserted, err := s.CreateBroadcastOutboxItem(ctx, params)
	require.NoError(t, err)
	assert.Equal(t, int64(1), inserted)

	inserted, err = s.CreateBroadcastOutboxItem(ctx, params)
	require.NoError(t, err)
	assert.Equal(t, int64(0), inserted)

	pending, err := s.CountOutboxByStatus(ctx, store.OutboxPending)
	require.NoError(t, err)
	assert.Equal(t, int64(1), pending)
}

func TestPushSubscriptionUpsertAndDelete(t *testing.T) {
	s := storetest.New(t)
	ctx := context.Background()

	user, err := s.CreateUser(ctx, store.CreateUserParams{Phone: "+27821230007", Role: store.RoleOwl})
	require.NoError(t, err)

	sub, err := s.UpsertPushSubscription(ctx, store.UpsertPushSubscriptionParams{
		UserID:    user.UserID,
		Endpoint:  "https://push.example.org/ep1",
		P256dhKey: "key1",
		AuthKey:   "auth1",
	})
	require.NoError(t, err)

	// Re-subscribing the same endpoint refreshes keys instead of duplicating.
	again, err := s.UpsertPushSubscription(ctx, store.UpsertPushSubscriptionParams{
		UserID:    user.UserID,
		Endpoint:  "https://push.example.org/ep1",
		P256dhKey: "key2",
		AuthKey:   "auth2",
	})
	require.NoError(t, err)
	assert.Equal(t, sub.SubID, again.SubID)
	assert.Equal(t, "key2", again.P256dhKey)

	subs, err := s.ListPushSubscriptionsByUser(ctx, user.UserID)
	require.NoError(t, err)
	require.Len(t, subs, 1)

	deleted, err := s.DeletePushSubscriptionForUser(ctx, user.UserID, "https://push.example.org/ep1")
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = s.DeletePushSubscriptionForUser(ctx, user.UserID, "https://push.example.org/ep1")
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestArchiveReportsIdempotent(t *testing.T) {
	s := storetest.New(t)
	ctx := context.Background()

	user, err := s.CreateUser(ctx, store.CreateUserParams{Phone: "+27821230008", Role: store.RoleOwl})
	require.NoError(t, err)
	_, err = s.CreateReport(ctx, store.CreateReportParams{
		UserID:   user.UserID,
		Severity: store.SeverityNormal,
		Message:  "all quiet",
	})
	require.NoError(t, err)

	// created_at is now; a future cutoff captures it.
	cutoff := time.Now().UTC().Add(time.Hour)
	archivedAt := time.Now().UTC()

	n, err := s.ArchiveReportsBefore(ctx, cutoff, archivedAt)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = s.ArchiveReportsBefore(ctx, cutoff, archivedAt)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestReportSurvivesBookingDeletion(t *testing.T) {
	s := storetest.New(t)
	ctx := context.Background()

	user, err := s.CreateUser(ctx, store.CreateUserParams{Phone: "+27821230009", Role: store.RoleOwl})
	require.NoError(t, err)
	schedule, err := s.CreateSchedule(ctx, store.CreateScheduleParams{
		Name:            "Night Watch",
		CronExpr:        "0 0 * * *",
		DurationMinutes: 120,
		IsActive:        true,
	})
	require.NoError(t, err)

	start := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	booking, err := s.CreateBooking(ctx, store.CreateBookingParams{
		UserID:     user.UserID,
		ScheduleID: schedule.ScheduleID,
		ShiftStart: start,
		ShiftEnd:   start.Add(2 * time.Hour),
	})
	require.NoError(t, err)

	report, err := s.CreateReport(ctx, store.CreateReportParams{
		BookingID: sql.NullInt64{Int64: booking.BookingID, Valid: true},
		UserID:    user.UserID,
		Severity:  store.SeverityIncident,
		Message:   "gate forced open",
	})
	require.NoError(t, err)

	require.NoError(t, s.DeleteBooking(ctx, booking.BookingID))

	got, err := s.GetReport(ctx, report.ReportID)
	require.NoError(t, err)
	assert.False(t, got.BookingID.Valid)
}

func TestListActiveUsers(t *testing.T) {
	s := storetest.New(t)
	ctx := context.Background()

	active, err := s.CreateUser(ctx, store.CreateUserParams{Phone: "+27821230010", Role: store.RoleOwl})
	require.NoError(t, err)
	idle, err := s.CreateUser(ctx, store.CreateUserParams{Phone: "+27821230011", Role: store.RoleOwl})
	require.NoError(t, err)
	_ = idle

	_, err = s.CreateReport(ctx, store.CreateReportParams{
		UserID:   active.UserID,
		Severity: store.SeverityNormal,
		Message:  "patrol done",
	})
	require.NoError(t, err)

	users, err := s.ListActiveUsers(ctx, time.Now().UTC().Add(-30*24*time.Hour))
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, active.UserID, users[0].UserID)
}

func TestExecTxRollsBack(t *testing.T) {
	s := storetest.New(t)
	ctx := context.Background()

	err := s.ExecTx(ctx, func(q *store.Queries) error {
		if _, err := q.CreateUser(ctx, store.CreateUserParams{Phone: "+27821230012", Role: store.RoleOwl}); err != nil {
			return err
		}
		return assert.AnError
	})
	require.ErrorIs(t, err, assert.AnError)

	_, err = s.GetUserByPhone(ctx, "+27821230012")
	require.ErrorIs(t, err, sql.ErrNoRows)
}
