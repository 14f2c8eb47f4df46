// Package storetest provides a migrated throwaway database for tests.
package storetest

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Fermain/night-owls-go-sub006/internal/store"
)

// New opens a sqlite store in a temp directory with all migrations applied.
// The store is closed when the test finishes.
func New(t *testing.T) *store.Store {
	t.Helper()

	s, err := store.Open(filepath.Join(t.TempDir(), "test.db"), store.DefaultConfig())
	require.NoError(t, err)
	require.NoError(t, s.Migrate())

	t.Cleanup(func() { _ = s.Close() })
	return s
}
