package monitor

import (
	"errors"
	"testing"

	"cattleherd/internal/types"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryRecordAndGet(t *testing.T) {
	reg := NewRegistry()
	id := uuid.New()

	reg.RecordHandshake("10.0.0.7:7140", "10.0.0.7:7140", []byte("key"),
		&types.InitialConnectReport{Hostname: "barn-01", DeviceID: id})
	reg.RecordUpdate("10.0.0.7:7140", &types.PeriodicUpdateReport{CPUUtilization: 12.0})

	entry, ok := reg.Get("10.0.0.7:7140")
	require.True(t, ok)
	assert.Equal(t, id.String(), entry.DeviceID)
	assert.Equal(t, "barn-01", entry.Initial.Hostname)
	assert.Equal(t, 12.0, entry.LastUpdate.CPUUtilization)
	assert.False(t, entry.LastSeen.IsZero())
	assert.Empty(t, entry.LastError)

	_, ok = reg.Get("missing")
	assert.False(t, ok)
}

func TestRegistryFailureIsExplicit(t *testing.T) {
	reg := NewRegistry()

	reg.RecordFailure("10.0.0.8:7140", "10.0.0.8:7140", errors.New("connection refused"))

	entry, ok := reg.Get("10.0.0.8:7140")
	require.True(t, ok)
	assert.Equal(t, "connection refused", entry.LastError)
	assert.False(t, entry.LastErrorAt.IsZero())
}

func TestRegistryFailureKeepsLastData(t *testing.T) {
	reg := NewRegistry()

	reg.RecordUpdate("a", &types.PeriodicUpdateReport{ProcessCount: 100})
	reg.RecordFailure("a", "a", errors.New("timeout"))

	entry, _ := reg.Get("a")
	assert.Equal(t, 100, entry.LastUpdate.ProcessCount, "stale data stays visible next to the error")
	assert.Equal(t, "timeout", entry.LastError)

	// A later success clears the error
	reg.RecordUpdate("a", &types.PeriodicUpdateReport{ProcessCount: 101})
	entry, _ = reg.Get("a")
	assert.Empty(t, entry.LastError)
}

func TestRegistryEntriesSorted(t *testing.T) {
	reg := NewRegistry()
	reg.RecordUpdate("c", &types.PeriodicUpdateReport{})
	reg.RecordUpdate("a", &types.PeriodicUpdateReport{})
	reg.RecordUpdate("b", &types.PeriodicUpdateReport{})

	entries := reg.Entries()
	require.Len(t, entries, 3)
	assert.Equal(t, "a", entries[0].Key)
	assert.Equal(t, "b", entries[1].Key)
	assert.Equal(t, "c", entries[2].Key)
}
