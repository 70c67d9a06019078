package snapshot

import (
	"context"
	"testing"
	"time"

	"github.com/shirou/gopsutil/v3/process"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestSelectTopTieBreak(t *testing.T) {
	samples := []procSample{
		{proc: &process.Process{Pid: 101}, cpu: 50.0},
		{proc: &process.Process{Pid: 202}, cpu: 50.0},
		{proc: &process.Process{Pid: 303}, cpu: 12.5},
	}

	// Ties keep the first-encountered row, reproducibly
	for i := 0; i < 20; i++ {
		top, ok := selectTop(samples)
		require.True(t, ok)
		assert.Equal(t, int32(101), top.proc.Pid)
	}
}

func TestSelectTopHighestWins(t *testing.T) {
	samples := []procSample{
		{proc: &process.Process{Pid: 1}, cpu: 3.0},
		{proc: &process.Process{Pid: 2}, cpu: 97.2},
		{proc: &process.Process{Pid: 3}, cpu: 41.0},
	}

	top, ok := selectTop(samples)
	require.True(t, ok)
	assert.Equal(t, int32(2), top.proc.Pid)
}

func TestSelectTopEmptyTable(t *testing.T) {
	_, ok := selectTop(nil)
	assert.False(t, ok)
}

func TestClampPercent(t *testing.T) {
	testCases := []struct {
		in   float64
		want float64
	}{
		{-5.0, 0.0},
		{0.0, 0.0},
		{55.5, 55.5},
		{100.0, 100.0},
		{250.0, 100.0},
	}

	for _, tc := range testCases {
		assert.Equal(t, tc.want, clampPercent(tc.in))
	}
}

func TestUpdateReport(t *testing.T) {
	engine := NewEngine(10*time.Millisecond, zaptest.NewLogger(t))

	report, err := engine.Update(context.Background())
	require.NoError(t, err)

	assert.GreaterOrEqual(t, report.CPUUtilization, 0.0)
	assert.LessOrEqual(t, report.CPUUtilization, 100.0)
	assert.Greater(t, report.ProcessCount, 0)
	assert.NotEmpty(t, report.TopProcessName)
	assert.NotEmpty(t, report.TopProcessUser)
	assert.Greater(t, report.AvailableMemoryBytes, uint64(0))
}

func TestInitialReport(t *testing.T) {
	engine := NewEngine(10*time.Millisecond, zaptest.NewLogger(t))

	report, err := engine.Initial(context.Background())
	require.NoError(t, err)

	assert.NotEmpty(t, report.Hostname)
	assert.NotEmpty(t, report.OSName)
	assert.Greater(t, report.CPUCount, 0)
	assert.Greater(t, report.TotalMemoryBytes, uint64(0))
}

func TestUpdateAbandonsSettleOnCancel(t *testing.T) {
	engine := NewEngine(5*time.Second, zaptest.NewLogger(t))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	_, err := engine.Update(ctx)
	assert.Error(t, err)
	assert.Less(t, time.Since(start), time.Second)
}
