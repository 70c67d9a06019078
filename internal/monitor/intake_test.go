package monitor

import (
	"context"
	"net"
	"testing"
	"time"

	"cattleherd/internal/config"
	"cattleherd/internal/protocol"
	"cattleherd/internal/types"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestIntakeRecordsPushedReports(t *testing.T) {
	reg := NewRegistry()
	intake := NewIntake(config.PullConfig{ListenPort: 0}, reg, zaptest.NewLogger(t))

	require.NoError(t, intake.Start(context.Background()))
	defer intake.Stop()

	id := uuid.New()
	conn, err := net.Dial("tcp", intake.Addr().String())
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, protocol.WriteMessage(conn, protocol.SendPublicKey([]byte("pushed-key"))))
	require.NoError(t, protocol.WriteMessage(conn, protocol.SendInitialInfo(
		&types.InitialConnectReport{Hostname: "barn-02", DeviceID: id})))
	require.NoError(t, protocol.WriteMessage(conn, protocol.SendUpdate(
		&types.PeriodicUpdateReport{CPUUtilization: 33.0})))

	require.Eventually(t, func() bool {
		entry, ok := reg.Get(id.String())
		return ok && entry.LastUpdate != nil
	}, 2*time.Second, 10*time.Millisecond)

	entry, _ := reg.Get(id.String())
	assert.Equal(t, "barn-02", entry.Initial.Hostname)
	assert.Equal(t, []byte("pushed-key"), entry.PublicKey)
	assert.Equal(t, 33.0, entry.LastUpdate.CPUUtilization)
}

func TestIntakeBadSessionDoesNotAffectSiblings(t *testing.T) {
	reg := NewRegistry()
	intake := NewIntake(config.PullConfig{ListenPort: 0}, reg, zaptest.NewLogger(t))

	require.NoError(t, intake.Start(context.Background()))
	defer intake.Stop()

	// A peer that opens with garbage gets its session closed
	bad, err := net.Dial("tcp", intake.Addr().String())
	require.NoError(t, err)
	defer bad.Close()
	_, err = bad.Write([]byte{0xFF, 0, 0, 0, 0})
	require.NoError(t, err)

	// A well-behaved peer on a sibling session still gets recorded
	id := uuid.New()
	good, err := net.Dial("tcp", intake.Addr().String())
	require.NoError(t, err)
	defer good.Close()

	require.NoError(t, protocol.WriteMessage(good, protocol.SendPublicKey([]byte("k"))))
	require.NoError(t, protocol.WriteMessage(good, protocol.SendInitialInfo(
		&types.InitialConnectReport{DeviceID: id})))
	require.NoError(t, protocol.WriteMessage(good, protocol.SendUpdate(
		&types.PeriodicUpdateReport{ProcessCount: 9})))

	require.Eventually(t, func() bool {
		entry, ok := reg.Get(id.String())
		return ok && entry.LastUpdate != nil
	}, 2*time.Second, 10*time.Millisecond)
}
