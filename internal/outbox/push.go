package outbox

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"

	webpush "github.com/SherClockHolmes/webpush-go"
	"github.com/rs/zerolog"

	"github.com/Fermain/night-owls-go-sub006/internal/config"
	"github.com/Fermain/night-owls-go-sub006/internal/logging"
	"github.com/Fermain/night-owls-go-sub006/internal/store"
)

// PushSender delivers web-push notifications with VAPID authentication. The
// outbox holds one item per endpoint; the item's recipient is the endpoint
// URL and the subscription row supplies the encryption keys.
type PushSender struct {
	store  *store.Store
	cfg    *config.Config
	logger zerolog.Logger
}

func NewPushSender(s *store.Store, cfg *config.Config) *PushSender {
	return &PushSender{
		store:  s,
		cfg:    cfg,
		logger: logging.WithComponent("push-sender"),
	}
}

func (s *PushSender) Send(ctx context.Context, item store.OutboxItem) error {
	sub, err := s.store.GetPushSubscriptionByEndpoint(ctx, item.Recipient)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: subscription no longer registered", ErrPermanent)
		}
		return fmt.Errorf("load push subscription: %w", err)
	}

	resp, err := webpush.SendNotificationWithContext(ctx, []byte(item.Payload.String), &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256dhKey,
			Auth:   sub.AuthKey,
		},
	}, &webpush.Options{
		Subscriber:      s.cfg.VAPIDSubject,
		VAPIDPublicKey:  s.cfg.VAPIDPublicKey,
		VAPIDPrivateKey: s.cfg.VAPIDPrivateKey,
		TTL:             int(s.cfg.PushTTL.Seconds()),
	})
	if err != nil {
		return fmt.Errorf("push send: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		s.logger.Debug().
			Int64("outbox_id", item.OutboxID).
			Int("status", resp.StatusCode).
			Msg("push accepted by endpoint")
		return nil

	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		// The browser dropped the subscription; remove it so future
		// notifications stop targeting the dead endpoint.
		if err := s.store.DeletePushSubscriptionByEndpoint(ctx, sub.Endpoint); err != nil {
			s.logger.Error().Err(err).
				Int64("outbox_id", item.OutboxID).
				Msg("failed to delete dead push subscription")
		} else {
			s.logger.Info().
				Str("event", "push.subscription_expired").
				Int64("user_id", sub.UserID).
				Msg("dead push subscription removed")
		}
		return fmt.Errorf("%w: endpoint gone (status %d)", ErrPermanent, resp.StatusCode)

	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return fmt.Errorf("push endpoint busy (status %d)", resp.StatusCode)

	default:
		return fmt.Errorf("%w: push endpoint rejected message (status %d)", ErrPermanent, resp.StatusCode)
	}
}
