package outbox

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/rs/zerolog"
	"github.com/twilio/twilio-go"
	twilioclient "github.com/twilio/twilio-go/client"
	twilioapi "github.com/twilio/twilio-go/rest/api/v2010"

	"github.com/Fermain/night-owls-go-sub006/internal/logging"
	"github.com/Fermain/night-owls-go-sub006/internal/store"
)

// TwilioSender delivers real SMS through the Twilio REST API. It fulfils the
// same contract as the log sender and is selected via SMS_PROVIDER=twilio.
type TwilioSender struct {
	client *twilio.RestClient
	from   string
	logger zerolog.Logger
}

func NewTwilioSender(accountSID, authToken, fromNumber string) *TwilioSender {
	return &TwilioSender{
		client: twilio.NewRestClientWithParams(twilio.ClientParams{
			Username: accountSID,
			Password: authToken,
		}),
		from:   fromNumber,
		logger: logging.WithComponent("sms-twilio"),
	}
}

func (s *TwilioSender) Send(ctx context.Context, item store.OutboxItem) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	params := &twilioapi.CreateMessageParams{}
	params.SetTo(item.Recipient)
	params.SetFrom(s.from)
	params.SetBody(item.Payload.String)

	resp, err := s.client.Api.CreateMessage(params)
	if err != nil {
		var restErr *twilioclient.TwilioRestError
		if errors.As(err, &restErr) {
			// Rejected requests (bad number, blocked recipient) never heal;
			// rate limiting and Twilio-side errors do.
			if restErr.Status >= 400 && restErr.Status < 500 && restErr.Status != http.StatusTooManyRequests {
				return fmt.Errorf("%w: twilio rejected message (status %d): %v", ErrPermanent, restErr.Status, err)
			}
		}
		return fmt.Errorf("twilio send: %w", err)
	}

	sid := ""
	if resp.Sid != nil {
		sid = *resp.Sid
	}
	s.logger.Debug().
		Int64("outbox_id", item.OutboxID).
		Str("message_sid", sid).
		Msg("sms accepted by twilio")
	return nil
}
