package identity

import (
	"os"
	"path/filepath"
	"testing"

	"cattleherd/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestLoadOrCreateIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "device.id")
	store := NewStore(path, zaptest.NewLogger(t))

	first, err := store.LoadOrCreate()
	require.NoError(t, err)

	second, err := store.LoadOrCreate()
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Len(t, raw, 16)
	assert.Equal(t, first.ID[:], raw)
}

func TestLoadOrCreateCorruptFile(t *testing.T) {
	testCases := []struct {
		name    string
		content []byte
	}{
		{"too short", []byte("short")},
		{"too long", make([]byte, 32)},
		{"empty", []byte{}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "device.id")
			require.NoError(t, os.WriteFile(path, tc.content, 0600))

			store := NewStore(path, zaptest.NewLogger(t))
			_, err := store.LoadOrCreate()
			assert.ErrorIs(t, err, types.ErrIdentityCorrupt)

			// A corrupt file is never overwritten
			raw, readErr := os.ReadFile(path)
			require.NoError(t, readErr)
			assert.Equal(t, tc.content, raw[:len(tc.content)])
			assert.Len(t, raw, len(tc.content))
		})
	}
}

func TestLoadOrCreateUnwritableLocation(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "not-a-dir")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0600))

	store := NewStore(filepath.Join(blocker, "sub", "device.id"), zaptest.NewLogger(t))
	_, err := store.LoadOrCreate()
	assert.ErrorIs(t, err, types.ErrIdentityUnwritable)
}

func TestKeypairRegeneratedPerLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "device.id")
	store := NewStore(path, zaptest.NewLogger(t))

	first, err := store.LoadOrCreate()
	require.NoError(t, err)
	second, err := store.LoadOrCreate()
	require.NoError(t, err)

	k1, err := first.PublicKeyBytes()
	require.NoError(t, err)
	k2, err := second.PublicKeyBytes()
	require.NoError(t, err)

	assert.NotEmpty(t, k1)
	// Keys are ephemeral per process start; same ID, different keys
	assert.NotEqual(t, k1, k2)
	assert.Equal(t, first.ID, second.ID)
}
