package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/nyaruka/phonenumbers"
	"github.com/rs/zerolog"

	"github.com/Fermain/night-owls-go-sub006/internal/auth"
	"github.com/Fermain/night-owls-go-sub006/internal/config"
	"github.com/Fermain/night-owls-go-sub006/internal/logging"
	"github.com/Fermain/night-owls-go-sub006/internal/store"
)

// MsgOTPVerification is the outbox message type of verification codes.
const MsgOTPVerification = "OTP_VERIFICATION"

// AuthService runs the phone/OTP registration flow and issues tokens.
type AuthService struct {
	store  *store.Store
	cfg    *config.Config
	otp    *auth.OTPStore
	tokens *auth.TokenIssuer
	logger zerolog.Logger
}

func NewAuthService(s *store.Store, cfg *config.Config) *AuthService {
	return &AuthService{
		store:  s,
		cfg:    cfg,
		otp:    auth.NewOTPStore(cfg.OTPTTL),
		tokens: auth.NewTokenIssuer(cfg.JWTSecret, cfg.JWTExpiry),
		logger: logging.WithComponent("auth"),
	}
}

// Tokens exposes the issuer for request authentication middleware.
func (s *AuthService) Tokens() *auth.TokenIssuer {
	return s.tokens
}

// NormalizePhone validates a phone number and returns its E.164 form.
func NormalizePhone(phone string) (string, error) {
	parsed, err := phonenumbers.Parse(phone, "")
	if err != nil || !phonenumbers.IsValidNumber(parsed) {
		return "", ErrInvalidPhone
	}
	return phonenumbers.Format(parsed, phonenumbers.E164), nil
}

// Register starts verification for a phone: a fresh OTP is generated and an
// sms outbox item carries it to the delivery channel. The user row is not
// created until the code is verified.
func (s *AuthService) Register(ctx context.Context, phone string) error {
	logger := logging.WithContext(ctx, s.logger)

	e164, err := NormalizePhone(phone)
	if err != nil {
		return err
	}

	code, err := s.otp.Generate(e164)
	if err != nil {
		logger.Error().Err(err).Msg("failed to generate otp")
		return ErrInternalServer
	}

	payload := fmt.Sprintf(`{"code": %q, "expires_in": %q}`, code, s.cfg.OTPTTL.String())
	_, err = s.store.CreateOutboxItem(ctx, store.CreateOutboxItemParams{
		Recipient:   e164,
		Channel:     store.ChannelSMS,
		MessageType: MsgOTPVerification,
		Payload:     store.NullString(payload),
		SendAt:      time.Now().UTC().Add(-1 * time.Second),
	})
	if err != nil {
		logger.Error().Err(err).Msg("failed to enqueue otp item")
		return ErrInternalServer
	}

	logger.Info().
		Str("event", "auth.otp_issued").
		Msg("verification code issued")
	return nil
}

// Verify checks the OTP and returns a signed token. The user row is created
// on first successful verification.
func (s *AuthService) Verify(ctx context.Context, phone, code, name string) (store.User, string, error) {
	logger := logging.WithContext(ctx, s.logger)

	e164, err := NormalizePhone(phone)
	if err != nil {
		return store.User{}, "", err
	}

	if !s.otp.Verify(e164, code) {
		logger.Warn().Str("event", "auth.otp_rejected").Msg("verification code rejected")
		return store.User{}, "", ErrOTPInvalid
	}

	user, err := s.getOrCreateUser(ctx, e164, name)
	if err != nil {
		logger.Error().Err(err).Msg("failed to load or create user")
		return store.User{}, "", ErrInternalServer
	}

	token, err := s.tokens.Issue(user.UserID, user.Phone, user.Role)
	if err != nil {
		logger.Error().Err(err).Int64("user_id", user.UserID).Msg("failed to issue token")
		return store.User{}, "", ErrInternalServer
	}

	logger.Info().
		Str("event", "auth.verified").
		Int64("user_id", user.UserID).
		Msg("phone verified")
	return user, token, nil
}

// DevLogin bypasses OTP verification. The HTTP layer only exposes it when
// dev mode is enabled.
func (s *AuthService) DevLogin(ctx context.Context, phone, name string) (store.User, string, error) {
	logger := logging.WithContext(ctx, s.logger)

	e164, err := NormalizePhone(phone)
	if err != nil {
		return store.User{}, "", err
	}

	user, err := s.getOrCreateUser(ctx, e164, name)
	if err != nil {
		logger.Error().Err(err).Msg("failed to load or create user for dev login")
		return store.User{}, "", ErrInternalServer
	}

	token, err := s.tokens.Issue(user.UserID, user.Phone, user.Role)
	if err != nil {
		logger.Error().Err(err).Int64("user_id", user.UserID).Msg("failed to issue token")
		return store.User{}, "", ErrInternalServer
	}

	logger.Warn().
		Str("event", "auth.dev_login").
		Int64("user_id", user.UserID).
		Msg("dev login used")
	return user, token, nil
}

func (s *AuthService) getOrCreateUser(ctx context.Context, e164, name string) (store.User, error) {
	user, err := s.store.GetUserByPhone(ctx, e164)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return store.User{}, err
	}

	user, err = s.store.CreateUser(ctx, store.CreateUserParams{
		Phone: e164,
		Name:  store.NullString(name),
		Role:  store.RoleGuest,
	})
	if err != nil {
		// A concurrent verification may have created the row first.
		if store.IsUniqueConstraintError(err) {
			return s.store.GetUserByPhone(ctx, e164)
		}
		return store.User{}, err
	}

	s.logger.Info().
		Str("event", "auth.user_created").
		Int64("user_id", user.UserID).
		Msg("user created on first verification")
	return user, nil
}
