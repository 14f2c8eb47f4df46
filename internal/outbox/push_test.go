package outbox_test

import (
	"context"
	"crypto/ecdh"
	"crypto/rand"
	"database/sql"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	webpush "github.com/SherClockHolmes/webpush-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Fermain/night-owls-go-sub006/internal/config"
	"github.com/Fermain/night-owls-go-sub006/internal/outbox"
	"github.com/Fermain/night-owls-go-sub006/internal/store"
	"github.com/Fermain/night-owls-go-sub006/internal/store/storetest"
)

// subscriptionKeys returns a valid browser key pair for web-push encryption:
// an uncompressed P-256 public point and a 16-byte auth secret.
func subscriptionKeys(t *testing.T) (p256dh, auth string) {
	t.Helper()

	key, err := ecdh.P256().GenerateKey(rand.Reader)
	require.NoError(t, err)
	secret := make([]byte, 16)
	_, err = rand.Read(secret)
	require.NoError(t, err)

	return base64.RawURLEncoding.EncodeToString(key.PublicKey().Bytes()),
		base64.RawURLEncoding.EncodeToString(secret)
}

func pushTestConfig(t *testing.T) *config.Config {
	t.Helper()
	private, public, err := webpush.GenerateVAPIDKeys()
	require.NoError(t, err)
	return &config.Config{
		VAPIDPublicKey:  public,
		VAPIDPrivateKey: private,
		VAPIDSubject:    "mailto:ops@example.com",
		PushTTL:         600 * time.Second,
	}
}

func subscribe(t *testing.T, s *store.Store, userID int64, endpoint string) store.PushSubscription {
	t.Helper()
	p256dh, auth := subscriptionKeys(t)
	sub, err := s.UpsertPushSubscription(context.Background(), store.UpsertPushSubscriptionParams{
		UserID:    userID,
		Endpoint:  endpoint,
		P256dhKey: p256dh,
		AuthKey:   auth,
	})
	require.NoError(t, err)
	return sub
}

func pushItem(userID int64, endpoint string) store.OutboxItem {
	return store.OutboxItem{
		OutboxID:  1,
		UserID:    sql.NullInt64{Int64: userID, Valid: true},
		Recipient: endpoint,
		Channel:   store.ChannelPush,
		Payload:   store.NullString(`{"title": "shift reminder"}`),
	}
}

func TestPushSenderDeliversAndPrunesDeadEndpoints(t *testing.T) {
	s := storetest.New(t)
	ctx := context.Background()

	var delivered []*http.Request
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/gone" {
			w.WriteHeader(http.StatusGone)
			return
		}
		delivered = append(delivered, r.Clone(context.Background()))
		w.WriteHeader(http.StatusCreated)
	}))
	defer ts.Close()

	user, err := s.CreateUser(ctx, store.CreateUserParams{Phone: "+27821234567", Role: store.RoleOwl})
	require.NoError(t, err)
	dead := subscribe(t, s, user.UserID, ts.URL+"/gone")
	alive := subscribe(t, s, user.UserID, ts.URL+"/ok")

	sender := outbox.NewPushSender(s, pushTestConfig(t))

	// The dropped endpoint fails permanently and its subscription is pruned.
	err = sender.Send(ctx, pushItem(user.UserID, dead.Endpoint))
	require.Error(t, err)
	assert.True(t, outbox.IsPermanent(err))
	_, err = s.GetPushSubscriptionByEndpoint(ctx, dead.Endpoint)
	assert.ErrorIs(t, err, sql.ErrNoRows)

	// The live endpoint still delivers, with the configured TTL.
	require.NoError(t, sender.Send(ctx, pushItem(user.UserID, alive.Endpoint)))
	require.Len(t, delivered, 1)
	assert.Equal(t, "600", delivered[0].Header.Get("TTL"))
	_, err = s.GetPushSubscriptionByEndpoint(ctx, alive.Endpoint)
	assert.NoError(t, err)
}

func TestPushSenderUnknownSubscription(t *testing.T) {
	s := storetest.New(t)
	sender := outbox.NewPushSender(s, pushTestConfig(t))

	err := sender.Send(context.Background(), pushItem(1, "https://push.example.com/never-registered"))
	require.Error(t, err)
	assert.True(t, outbox.IsPermanent(err), "missing subscription row cannot be retried into existence")
}

func TestPushSenderBusyEndpointIsTransient(t *testing.T) {
	s := storetest.New(t)
	ctx := context.Background()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer ts.Close()

	user, err := s.CreateUser(ctx, store.CreateUserParams{Phone: "+27821234567", Role: store.RoleOwl})
	require.NoError(t, err)
	sub := subscribe(t, s, user.UserID, ts.URL+"/busy")

	sender := outbox.NewPushSender(s, pushTestConfig(t))
	err = sender.Send(ctx, pushItem(user.UserID, sub.Endpoint))
	require.Error(t, err)
	assert.False(t, outbox.IsPermanent(err), "rate limiting is retryable")

	_, err = s.GetPushSubscriptionByEndpoint(ctx, sub.Endpoint)
	assert.NoError(t, err, "throttled subscription is kept")
}

func TestPushSenderRejectionIsPermanentButKeepsSubscription(t *testing.T) {
	s := storetest.New(t)
	ctx := context.Background()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer ts.Close()

	user, err := s.CreateUser(ctx, store.CreateUserParams{Phone: "+27821234567", Role: store.RoleOwl})
	require.NoError(t, err)
	sub := subscribe(t, s, user.UserID, ts.URL+"/forbidden")

	sender := outbox.NewPushSender(s, pushTestConfig(t))
	err = sender.Send(ctx, pushItem(user.UserID, sub.Endpoint))
	require.Error(t, err)
	assert.True(t, outbox.IsPermanent(err))

	_, err = s.GetPushSubscriptionByEndpoint(ctx, sub.Endpoint)
	assert.NoError(t, err, "only 404/410 prune the subscription")
}
