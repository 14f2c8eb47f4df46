package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/Fermain/night-owls-go-sub006/internal/logging"
	"github.com/Fermain/night-owls-go-sub006/internal/metrics"
	"github.com/Fermain/night-owls-go-sub006/internal/store"
)

// MsgBroadcast is the outbox message type of broadcast fan-out items.
const MsgBroadcast = "BROADCAST"

// BroadcastService expands operator broadcasts into per-recipient outbox items.
type BroadcastService struct {
	store  *store.Store
	logger zerolog.Logger
}

func NewBroadcastService(s *store.Store) *BroadcastService {
	return &BroadcastService{
		store:  s,
		logger: logging.WithComponent("broadcast"),
	}
}

// BroadcastParams carries the fields of a new broadcast.
type BroadcastParams struct {
	AuthorUserID int64
	Audience     string
	Subject      string
	Body         string
	PushEnabled  bool
}

func validAudience(audience string) bool {
	switch audience {
	case store.AudienceAll, store.AudienceAdmins, store.AudienceOwls, store.AudienceActive:
		return true
	}
	return false
}

func (s *BroadcastService) Create(ctx context.Context, params BroadcastParams) (store.Broadcast, error) {
	logger := logging.WithContext(ctx, s.logger)

	if !validAudience(params.Audience) {
		return store.Broadcast{}, fmt.Errorf("%w: unknown audience %q", ErrInvalidInput, params.Audience)
	}
	if params.Body == "" {
		return store.Broadcast{}, fmt.Errorf("%w: body must not be empty", ErrInvalidInput)
	}

	broadcast, err := s.store.CreateBroadcast(ctx, store.CreateBroadcastParams{
		AuthorUserID: params.AuthorUserID,
		Audience:     params.Audience,
		Subject:      store.NullString(params.Subject),
		Body:         params.Body,
		PushEnabled:  params.PushEnabled,
	})
	if err != nil {
		logger.Error().Err(err).Msg("failed to create broadcast")
		return store.Broadcast{}, ErrInternalServer
	}

	logger.Info().
		Str("event", "broadcast.created").
		Int64("broadcast_id", broadcast.BroadcastID).
		Str("audience", broadcast.Audience).
		Bool("push_enabled", broadcast.PushEnabled).
		Msg("broadcast created")
	return broadcast, nil
}

func (s *BroadcastService) List(ctx context.Context) ([]store.Broadcast, error) {
	broadcasts, err := s.store.ListBroadcasts(ctx)
	if err != nil {
		logger := logging.WithContext(ctx, s.logger)
		logger.Error().Err(err).Msg("failed to list broadcasts")
		return nil, ErrInternalServer
	}
	return broadcasts, nil
}

func (s *BroadcastService) Get(ctx context.Context, broadcastID int64) (store.Broadcast, error) {
	broadcast, err := s.store.GetBroadcast(ctx, broadcastID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.Broadcast{}, ErrBroadcastNotFound
		}
		logger := logging.WithContext(ctx, s.logger)
		logger.Error().Err(err).Int64("broadcast_id", broadcastID).Msg("failed to load broadcast")
		return store.Broadcast{}, ErrInternalServer
	}
	return broadcast, nil
}

// ProcessPending fans every unprocessed broadcast out to its audience. All
// recipient items and the processed_at mark commit in one transaction per
// broadcast; a crash before the mark re-selects the broadcast on the next
// run and the dedup index skips rows that already exist.
func (s *BroadcastService) ProcessPending(ctx context.Context) (int, error) {
	logger := logging.WithContext(ctx, s.logger)

	broadcasts, err := s.store.ListUnprocessedBroadcasts(ctx)
	if err != nil {
		return 0, fmt.Errorf("list unprocessed broadcasts: %w", err)
	}

	processed := 0
	for _, broadcast := range broadcasts {
		recipients, err := s.resolveAudience(ctx, broadcast.Audience)
		if err != nil {
			logger.Error().Err(err).
				Int64("broadcast_id", broadcast.BroadcastID).
				Str("audience", broadcast.Audience).
				Msg("failed to resolve broadcast audience")
			continue
		}

		enqueued := int64(0)
		err = s.store.ExecTx(ctx, func(q *store.Queries) error {
			for _, user := range recipients {
				n, err := s.enqueueRecipient(ctx, q, broadcast, user)
				if err != nil {
					return err
				}
				enqueued += n
			}
			return q.MarkBroadcastProcessed(ctx, broadcast.BroadcastID, time.Now().UTC())
		})
		if err != nil {
			logger.Error().Err(err).
				Int64("broadcast_id", broadcast.BroadcastID).
				Msg("failed to process broadcast")
			continue
		}

		processed++
		metrics.RecordBroadcastRecipients(int(enqueued))
		logger.Info().
			Str("event", "broadcast.processed").
			Int64("broadcast_id", broadcast.BroadcastID).
			Str("audience", broadcast.Audience).
			Int("recipients", len(recipients)).
			Int64("items_enqueued", enqueued).
			Msg("broadcast fanned out")
	}
	return processed, nil
}

func (s *BroadcastService) resolveAudience(ctx context.Context, audience string) ([]store.User, error) {
	switch audience {
	case store.AudienceAll:
		return s.store.ListUsers(ctx, "")
	case store.AudienceAdmins:
		return s.store.ListUsersByRole(ctx, store.RoleAdmin)
	case store.AudienceOwls:
		return s.store.ListUsersByRole(ctx, store.RoleOwl)
	case store.AudienceActive:
		return s.store.ListActiveUsers(ctx, time.Now().UTC().Add(-activeUserWindow))
	default:
		return nil, fmt.Errorf("unknown audience %q", audience)
	}
}

func (s *BroadcastService) enqueueRecipient(ctx context.Context, q *store.Queries, broadcast store.Broadcast, user store.User) (int64, error) {
	broadcastID := sql.NullInt64{Int64: broadcast.BroadcastID, Valid: true}
	userID := sql.NullInt64{Int64: user.UserID, Valid: true}
	sendAt := time.Now().UTC().Add(-1 * time.Second)

	enqueued, err := q.CreateBroadcastOutboxItem(ctx, store.CreateOutboxItemParams{
		UserID:      userID,
		BroadcastID: broadcastID,
		Recipient:   user.Phone,
		Channel:     store.ChannelSMS,
		MessageType: MsgBroadcast,
		Payload:     store.NullString(broadcast.Body),
		SendAt:      sendAt,
	})
	if err != nil {
		return 0, fmt.Errorf("enqueue sms for user %d: %w", user.UserID, err)
	}

	if !broadcast.PushEnabled {
		return enqueued, nil
	}

	subs, err := q.ListPushSubscriptionsByUser(ctx, user.UserID)
	if err != nil {
		return enqueued, fmt.Errorf("list push subscriptions for user %d: %w", user.UserID, err)
	}
	for _, sub := range subs {
		n, err := q.CreateBroadcastOutboxItem(ctx, store.CreateOutboxItemParams{
			UserID:      userID,
			BroadcastID: broadcastID,
			Recipient:   sub.Endpoint,
			Channel:     store.ChannelPush,
			MessageType: MsgBroadcast,
			Payload:     store.NullString(broadcast.Body),
			SendAt:      sendAt,
		})
		if err != nil {
			return enqueued, fmt.Errorf("enqueue push for user %d: %w", user.UserID, err)
		}
		enqueued += n
	}
	return enqueued, nil
}
