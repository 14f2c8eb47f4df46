package outbox

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/Fermain/night-owls-go-sub006/internal/logging"
	"github.com/Fermain/night-owls-go-sub006/internal/metrics"
	"github.com/Fermain/night-owls-go-sub006/internal/store"
)

// sendTimeout bounds a single delivery attempt.
const sendTimeout = 30 * time.Second

// Dispatcher drains pending outbox items in batches and routes each to the
// sender of its channel. Drains are serialized; there is never more than one
// in flight per instance.
type Dispatcher struct {
	mu         sync.Mutex
	store      *store.Store
	senders    map[string]Sender
	batchSize  int64
	maxRetries int64
	logger     zerolog.Logger
}

func NewDispatcher(s *store.Store, smsSender, pushSender Sender, batchSize, maxRetries int) *Dispatcher {
	senders := map[string]Sender{}
	if smsSender != nil {
		senders[store.ChannelSMS] = smsSender
	}
	if pushSender != nil {
		senders[store.ChannelPush] = pushSender
	}
	return &Dispatcher{
		store:      s,
		senders:    senders,
		batchSize:  int64(batchSize),
		maxRetries: int64(maxRetries),
		logger:     logging.WithComponent("dispatcher"),
	}
}

// Drain requeues failed items, fetches one batch of pending items and
// delivers them. It returns how many items were sent and how many attempts
// errored; update failures count as errors but never halt the loop.
func (d *Dispatcher) Drain(ctx context.Context) (processed, errored int) {
	d.mu.Lock()
	defer d.mu.Unlock()

	logger := logging.WithContext(ctx, d.logger)

	if _, err := d.store.RequeueFailedOutbox(ctx); err != nil {
		logger.Error().Err(err).Msg("failed to requeue failed outbox items")
		return 0, 1
	}

	if pending, err := d.store.CountOutboxByStatus(ctx, store.OutboxPending); err == nil {
		metrics.SetOutboxPending(int(pending))
	}

	items, err := d.store.FetchPendingOutbox(ctx, d.batchSize)
	if err != nil {
		logger.Error().Err(err).Msg("failed to fetch pending outbox items")
		return 0, 1
	}
	if len(items) == 0 {
		return 0, 0
	}

	for _, item := range items {
		if ctx.Err() != nil {
			logger.Warn().Int("remaining", len(items)-processed-errored).Msg("drain cancelled mid-batch")
			break
		}
		if d.deliver(ctx, logger, item) {
			processed++
		} else {
			errored++
		}
	}

	logger.Info().
		Str("event", "outbox.drain.completed").
		Int("processed", processed).
		Int("errored", errored).
		Msg("outbox drain completed")
	return processed, errored
}

// deliver sends one item and records the resulting status transition.
func (d *Dispatcher) deliver(ctx context.Context, logger zerolog.Logger, item store.OutboxItem) bool {
	if item.Channel == store.ChannelPush && !item.UserID.Valid {
		d.fail(ctx, logger, item, store.OutboxPermanentlyFailed, item.RetryCount, "push item without user")
		return false
	}

	sender, ok := d.senders[item.Channel]
	if !ok {
		d.fail(ctx, logger, item, store.OutboxPermanentlyFailed, item.RetryCount, "no sender for channel "+item.Channel)
		return false
	}

	sendCtx, cancel := context.WithTimeout(ctx, sendTimeout)
	err := sender.Send(sendCtx, item)
	cancel()

	if err == nil {
		update := store.UpdateOutboxStatusParams{
			OutboxID:   item.OutboxID,
			Status:     store.OutboxSent,
			RetryCount: item.RetryCount,
			SentAt:     sql.NullTime{Time: time.Now().UTC(), Valid: true},
		}
		if updateErr := d.store.UpdateOutboxStatus(ctx, update); updateErr != nil {
			logger.Error().Err(updateErr).Int64("outbox_id", item.OutboxID).Msg("failed to mark item sent")
			return false
		}
		metrics.RecordDispatch(item.Channel, store.OutboxSent)
		return true
	}

	if IsPermanent(err) {
		d.fail(ctx, logger, item, store.OutboxPermanentlyFailed, item.RetryCount, err.Error())
		return false
	}

	retry := item.RetryCount + 1
	status := store.OutboxFailed
	if retry > d.maxRetries {
		status = store.OutboxPermanentlyFailed
	}
	d.fail(ctx, logger, item, status, retry, err.Error())
	return false
}

func (d *Dispatcher) fail(ctx context.Context, logger zerolog.Logger, item store.OutboxItem, status string, retryCount int64, reason string) {
	logger.Warn().
		Int64("outbox_id", item.OutboxID).
		Str("channel", item.Channel).
		Str("status", status).
		Int64("retry_count", retryCount).
		Str("reason", reason).
		Msg("outbox delivery failed")

	metrics.RecordDispatch(item.Channel, status)
	err := d.store.UpdateOutboxStatus(ctx, store.UpdateOutboxStatusParams{
		OutboxID:   item.OutboxID,
		Status:     status,
		RetryCount: retryCount,
		LastError:  store.NullString(reason),
	})
	if err != nil {
		logger.Error().Err(err).Int64("outbox_id", item.OutboxID).Msg("failed to record delivery failure")
	}
}
