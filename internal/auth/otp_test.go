package auth_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Fermain/night-owls-go-sub006/internal/auth"
)

func TestOTPGenerateAndVerify(t *testing.T) {
	s := auth.NewOTPStore(time.Minute)

	code, err := s.Generate("+27821234567")
	require.NoError(t, err)
	require.Len(t, code, 6)

	assert.False(t, s.Verify("+27821234567", "000000"), "wrong code must not verify")
	assert.True(t, s.Verify("+27821234567", code))
	assert.False(t, s.Verify("+27821234567", code), "code is consumed on success")
}

func TestOTPUnknownPhone(t *testing.T) {
	s := auth.NewOTPStore(time.Minute)
	assert.False(t, s.Verify("+27821234567", "123456"))
}

func TestOTPExpiry(t *testing.T) {
	s := auth.NewOTPStore(-time.Second)

	code, err := s.Generate("+27821234567")
	require.NoError(t, err)
	assert.False(t, s.Verify("+27821234567", code), "expired code must not verify")
}

func TestOTPRegenerateReplaces(t *testing.T) {
	s := auth.NewOTPStore(time.Minute)

	first, err := s.Generate("+27821234567")
	require.NoError(t, err)
	second, err := s.Generate("+27821234567")
	require.NoError(t, err)

	if first != second {
		assert.False(t, s.Verify("+27821234567", first), "stale code must not verify")
	}
	assert.True(t, s.Verify("+27821234567", second))
}
