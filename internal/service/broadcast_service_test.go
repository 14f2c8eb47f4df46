package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Fermain/night-owls-go-sub006/internal/service"
	"github.com/Fermain/night-owls-go-sub006/internal/store"
	"github.com/Fermain/night-owls-go-sub006/internal/store/storetest"
)

func TestBroadcastFanOutToOwls(t *testing.T) {
	s := storetest.New(t)
	ctx := context.Background()
	svc := service.NewBroadcastService(s)

	admin := newUser(t, s, "+27821000030", store.RoleAdmin)
	owls := []store.User{
		newUser(t, s, "+27821000031", store.RoleOwl),
		newUser(t, s, "+27821000032", store.RoleOwl),
		newUser(t, s, "+27821000033", store.RoleOwl),
	}
	newUser(t, s, "+27821000034", store.RoleGuest)

	broadcast, err := svc.Create(ctx, service.BroadcastParams{
		AuthorUserID: admin.UserID,
		Audience:     store.AudienceOwls,
		Subject:      "Patrol reminder",
		Body:         "Shift roster for the weekend is out.",
	})
	require.NoError(t, err)
	assert.False(t, broadcast.ProcessedAt.Valid)

	processed, err := svc.ProcessPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, processed)

	items := pendingOutbox(t, s)
	require.Len(t, items, 3, "one sms item per owl, none for admin or guest")
	recipients := map[string]bool{}
	for _, item := range items {
		assert.Equal(t, store.ChannelSMS, item.Channel)
		assert.Equal(t, service.MsgBroadcast, item.MessageType)
		assert.Equal(t, broadcast.Body, item.Payload.String)
		assert.Equal(t, broadcast.BroadcastID, item.BroadcastID.Int64)
		recipients[item.Recipient] = true
	}
	for _, owl := range owls {
		assert.True(t, recipients[owl.Phone], "missing item for %s", owl.Phone)
	}

	got, err := svc.Get(ctx, broadcast.BroadcastID)
	require.NoError(t, err)
	assert.True(t, got.ProcessedAt.Valid)

	// A second run finds nothing unprocessed and enqueues nothing.
	processed, err = svc.ProcessPending(ctx)
	require.NoError(t, err)
	assert.Zero(t, processed)
	assert.Len(t, pendingOutbox(t, s), 3)
}

func TestBroadcastPushFanOut(t *testing.T) {
	s := storetest.New(t)
	ctx := context.Background()
	svc := service.NewBroadcastService(s)

	admin := newUser(t, s, "+27821000035", store.RoleAdmin)
	owl := newUser(t, s, "+27821000036", store.RoleOwl)
	_, err := s.UpsertPushSubscription(ctx, store.UpsertPushSubscriptionParams{
		UserID:    owl.UserID,
		Endpoint:  "https://push.example.com/owl",
		P256dhKey: "p256dh",
		AuthKey:   "auth",
	})
	require.NoError(t, err)

	_, err = svc.Create(ctx, service.BroadcastParams{
		AuthorUserID: admin.UserID,
		Audience:     store.AudienceOwls,
		Body:         "Push-enabled announcement.",
		PushEnabled:  true,
	})
	require.NoError(t, err)

	_, err = svc.ProcessPending(ctx)
	require.NoError(t, err)

	items := pendingOutbox(t, s)
	require.Len(t, items, 2)
	channels := map[string]string{}
	for _, item := range items {
		channels[item.Channel] = item.Recipient
	}
	assert.Equal(t, owl.Phone, channels[store.ChannelSMS])
	assert.Equal(t, "https://push.example.com/owl", channels[store.ChannelPush])
}

func TestBroadcastActiveAudience(t *testing.T) {
	s := storetest.New(t)
	ctx := context.Background()
	svc := service.NewBroadcastService(s)

	admin := newUser(t, s, "+27821000037", store.RoleAdmin)
	active := newUser(t, s, "+27821000038", store.RoleOwl)
	newUser(t, s, "+27821000039", store.RoleOwl) // no recent activity

	schedule := newSchedule(t, s, "Night Watch", "0 0 * * *", 120)
	start := time.Now().UTC().Add(-24 * time.Hour)
	_, err := s.CreateBooking(ctx, store.CreateBookingParams{
		UserID:     active.UserID,
		ScheduleID: schedule.ScheduleID,
		ShiftStart: start,
		ShiftEnd:   start.Add(2 * time.Hour),
	})
	require.NoError(t, err)

	_, err = svc.Create(ctx, service.BroadcastParams{
		AuthorUserID: admin.UserID,
		Audience:     store.AudienceActive,
		Body:         "Thanks for patrolling this month.",
	})
	require.NoError(t, err)

	_, err = svc.ProcessPending(ctx)
	require.NoError(t, err)

	items := pendingOutbox(t, s)
	require.Len(t, items, 1)
	assert.Equal(t, active.Phone, items[0].Recipient)
}

func TestBroadcastValidation(t *testing.T) {
	s := storetest.New(t)
	ctx := context.Background()
	svc := service.NewBroadcastService(s)

	admin := newUser(t, s, "+27821000040", store.RoleAdmin)

	_, err := svc.Create(ctx, service.BroadcastParams{
		AuthorUserID: admin.UserID,
		Audience:     "everyone",
		Body:         "hello",
	})
	assert.ErrorIs(t, err, service.ErrInvalidInput)

	_, err = svc.Create(ctx, service.BroadcastParams{
		AuthorUserID: admin.UserID,
		Audience:     store.AudienceAll,
	})
	assert.ErrorIs(t, err, service.ErrInvalidInput)

	_, err = svc.Get(ctx, 99999)
	assert.ErrorIs(t, err, service.ErrBroadcastNotFound)
}
