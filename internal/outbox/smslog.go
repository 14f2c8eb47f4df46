package outbox

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/Fermain/night-owls-go-sub006/internal/logging"
	"github.com/Fermain/night-owls-go-sub006/internal/store"
)

// SMSLogSender appends messages to a local log file instead of sending real
// SMS. It backs development and staging; O_APPEND keeps concurrent writers
// safe at POSIX semantics.
type SMSLogSender struct {
	path   string
	logger zerolog.Logger
}

func NewSMSLogSender(path string) *SMSLogSender {
	return &SMSLogSender{
		path:   path,
		logger: logging.WithComponent("sms-log"),
	}
}

func (s *SMSLogSender) Send(ctx context.Context, item store.OutboxItem) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		// A missing directory or denied path never heals on retry.
		if errors.Is(err, fs.ErrNotExist) || errors.Is(err, fs.ErrPermission) {
			return fmt.Errorf("%w: open sms log %q: %v", ErrPermanent, s.path, err)
		}
		return fmt.Errorf("open sms log %q: %w", s.path, err)
	}
	defer f.Close()

	line := fmt.Sprintf("[%s] To: %s, Type: %s, Payload: %s\n",
		time.Now().UTC().Format(time.RFC3339), item.Recipient, item.MessageType, item.Payload.String)
	if _, err := f.WriteString(line); err != nil {
		return fmt.Errorf("append sms log: %w", err)
	}

	s.logger.Debug().
		Int64("outbox_id", item.OutboxID).
		Str("message_type", item.MessageType).
		Msg("sms written to log file")
	return nil
}
