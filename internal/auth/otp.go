package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"math/big"
	"sync"
	"time"
)

// OTPStore keeps pending verification codes in memory, keyed by phone.
// Entries expire after the configured TTL; a restart forgets pending codes.
type OTPStore struct {
	mu    sync.Mutex
	ttl   time.Duration
	codes map[string]otpEntry
}

type otpEntry struct {
	code      string
	expiresAt time.Time
}

func NewOTPStore(ttl time.Duration) *OTPStore {
	return &OTPStore{
		ttl:   ttl,
		codes: make(map[string]otpEntry),
	}
}

// Generate creates a 6-digit code for the phone, replacing any previous one.
func (s *OTPStore) Generate(phone string) (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", fmt.Errorf("generate otp: %w", err)
	}
	code := fmt.Sprintf("%06d", n.Int64())

	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweepLocked()
	s.codes[phone] = otpEntry{
		code:      code,
		expiresAt: time.Now().Add(s.ttl),
	}
	return code, nil
}

// Verify checks the code for the phone and consumes it on success.
func (s *OTPStore) Verify(phone, code string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweepLocked()

	entry, ok := s.codes[phone]
	if !ok || time.Now().After(entry.expiresAt) {
		return false
	}
	if subtle.ConstantTimeCompare([]byte(entry.code), []byte(code)) != 1 {
		return false
	}
	delete(s.codes, phone)
	return true
}

// sweepLocked drops expired entries. Callers hold the mutex.
func (s *OTPStore) sweepLocked() {
	now := time.Now()
	for phone, entry := range s.codes {
		if now.After(entry.expiresAt) {
			delete(s.codes, phone)
		}
	}
}
