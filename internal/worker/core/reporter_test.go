package core_test

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/rueidis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vexlio/doorkeep/internal/worker/core"
	"go.uber.org/zap"
)

func setupMonitor(t *testing.T) (*core.Monitor, rueidis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress:  []string{mr.Addr()},
		DisableCache: true,
	})
	require.NoError(t, err)
	t.Cleanup(client.Close)

	return core.NewMonitor(client, zap.NewNop()), client
}

func TestMonitorReportStatus(t *testing.T) {
	t.Parallel()

	monitor, _ := setupMonitor(t)
	ctx := context.Background()

	status := core.Status{
		WorkerID:    "worker-1",
		WorkerType:  "validation",
		CurrentTask: "Checking member presence",
		Progress:    40,
		IsHealthy:   true,
	}

	require.NoError(t, monitor.ReportStatus(ctx, status))

	statuses, err := monitor.GetAllStatuses(ctx)
	require.NoError(t, err)
	require.Len(t, statuses, 1)

	got := statuses[0]
	assert.Equal(t, "worker-1", got.WorkerID)
	assert.Equal(t, "validation", got.WorkerType)
	assert.Equal(t, "Checking member presence", got.CurrentTask)
	assert.Equal(t, 40, got.Progress)
	assert.True(t, got.IsHealthy)
	assert.False(t, got.LastSeen.IsZero(), "LastSeen should be stamped on report")
}

func TestMonitorReportStatusOverwrites(t *testing.T) {
	t.Parallel()

	monitor, _ := setupMonitor(t)
	ctx := context.Background()

	status := core.Status{WorkerID: "worker-1", WorkerType: "validation", Progress: 10, IsHealthy: true}
	require.NoError(t, monitor.ReportStatus(ctx, status))

	status.Progress = 80
	status.IsHealthy = false
	require.NoError(t, monitor.ReportStatus(ctx, status))

	statuses, err := monitor.GetAllStatuses(ctx)
	require.NoError(t, err)
	require.Len(t, statuses, 1)
	assert.Equal(t, 80, statuses[0].Progress)
	assert.False(t, statuses[0].IsHealthy)
}

func TestStatusReporterDefaults(t *testing.T) {
	t.Parallel()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress:  []string{mr.Addr()},
		DisableCache: true,
	})
	require.NoError(t, err)
	t.Cleanup(client.Close)

	reporter := core.NewStatusReporter(client, "validation", zap.NewNop())
	assert.NotEmpty(t, reporter.GetWorkerID())

	// Stop before Start is a safe no-op.
	reporter.Stop()
	reporter.Start(context.Background())
}
