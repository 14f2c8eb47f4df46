package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/Fermain/night-owls-go-sub006/internal/logging"
	"github.com/Fermain/night-owls-go-sub006/internal/store"
)

// PushService manages a user's web-push subscriptions.
type PushService struct {
	store  *store.Store
	logger zerolog.Logger
}

func NewPushService(s *store.Store) *PushService {
	return &PushService{
		store:  s,
		logger: logging.WithComponent("push"),
	}
}

// Subscribe registers a browser endpoint for the caller. Re-subscribing the
// same endpoint refreshes its keys.
func (s *PushService) Subscribe(ctx context.Context, userID int64, endpoint, p256dh, auth string) (store.PushSubscription, error) {
	logger := logging.WithContext(ctx, s.logger)

	if endpoint == "" || p256dh == "" || auth == "" {
		return store.PushSubscription{}, fmt.Errorf("%w: endpoint and keys are required", ErrInvalidInput)
	}

	sub, err := s.store.UpsertPushSubscription(ctx, store.UpsertPushSubscriptionParams{
		UserID:    userID,
		Endpoint:  endpoint,
		P256dhKey: p256dh,
		AuthKey:   auth,
	})
	if err != nil {
		logger.Error().Err(err).Int64("user_id", userID).Msg("failed to store push subscription")
		return store.PushSubscription{}, ErrInternalServer
	}

	logger.Info().
		Str("event", "push.subscribed").
		Int64("user_id", userID).
		Msg("push subscription registered")
	return sub, nil
}

// Unsubscribe removes the caller's endpoint. Unknown endpoints are a no-op
// so client retries stay idempotent.
func (s *PushService) Unsubscribe(ctx context.Context, userID int64, endpoint string) error {
	logger := logging.WithContext(ctx, s.logger)

	if endpoint == "" {
		return fmt.Errorf("%w: endpoint is required", ErrInvalidInput)
	}

	deleted, err := s.store.DeletePushSubscriptionForUser(ctx, userID, endpoint)
	if err != nil {
		logger.Error().Err(err).Int64("user_id", userID).Msg("failed to delete push subscription")
		return ErrInternalServer
	}
	if deleted {
		logger.Info().
			Str("event", "push.unsubscribed").
			Int64("user_id", userID).
			Msg("push subscription removed")
	}
	return nil
}
