// Package outbox delivers queued messages through channel senders and the
// periodic dispatcher that drains the durable queue.
package outbox

import (
	"context"
	"errors"

	"github.com/Fermain/night-owls-go-sub006/internal/store"
)

// ErrPermanent marks send failures that no retry can fix: dead endpoints,
// invalid recipients, misconfigured sinks. Everything else is treated as
// transient and retried up to the configured limit.
var ErrPermanent = errors.New("permanent send failure")

// Sender delivers one outbox item over its channel.
type Sender interface {
	Send(ctx context.Context, item store.OutboxItem) error
}

// IsPermanent reports whether err rules out any retry.
func IsPermanent(err error) bool {
	return errors.Is(err, ErrPermanent)
}
