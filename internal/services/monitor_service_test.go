package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"impact-backend/internal/device"
	"impact-backend/internal/models"
	"impact-backend/internal/pipeline"
)

func newTestMonitor(t *testing.T) (*MonitorService, *fakeTransport, *fakeHandler) {
	t.Helper()

	transport := newFakeTransport()
	handler := &fakeHandler{}
	config := DefaultMonitorServiceConfig()
	config.CalibrationWindow = 30 * time.Millisecond

	ms := NewMonitorService(transport, handler, config, nil)
	t.Cleanup(func() { ms.Shutdown(context.Background()) })
	return ms, transport, handler
}

func TestMonitorStartSendsStartCommand(t *testing.T) {
	ms, transport, handler := newTestMonitor(t)
	ctx := context.Background()

	require.NoError(t, ms.Start(ctx, "puck-1"))

	writes := transport.writesTo("puck-1")
	require.Len(t, writes, 1)
	assert.Equal(t, device.UARTWriteChar, writes[0].charID)
	assert.Equal(t, device.StartCommand(device.DefaultSampleInterval), writes[0].data)

	active := ms.Active()
	require.Len(t, active, 1)
	assert.Equal(t, "puck-1", active[0].DeviceID)
	assert.Equal(t, "idle", active[0].Calibration)
	assert.Nil(t, active[0].Baseline)

	assert.Len(t, handler.notificationsOf(models.NotificationStatus), 1)

	assert.ErrorIs(t, ms.Start(ctx, "puck-1"), ErrAlreadyStreaming)
}

func TestMonitorDetectsAnomaly(t *testing.T) {
	ms, transport, handler := newTestMonitor(t)
	require.NoError(t, ms.Start(context.Background(), "puck-1"))

	for i := 0; i < pipeline.DefaultWindowSize; i++ {
		transport.push("puck-1", frame(0, 1, 0))
	}
	data := frame(0, 100, 0)
	transport.push("puck-1", data[:10])
	transport.push("puck-1", data[10:])

	require.Eventually(t, func() bool { return handler.anomalyCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	handler.mu.Lock()
	defer handler.mu.Unlock()
	assert.Equal(t, pipeline.FrontBack, handler.anomalies[0].Direction)
}

func TestMonitorStop(t *testing.T) {
	ms, transport, handler := newTestMonitor(t)
	ctx := context.Background()

	require.NoError(t, ms.Start(ctx, "puck-1"))
	require.NoError(t, ms.Stop(ctx, "puck-1"))

	writes := transport.writesTo("puck-1")
	require.Len(t, writes, 2)
	assert.Equal(t, device.StopCommand, writes[1].data)
	assert.Equal(t, []string{"puck-1"}, transport.unsubscribedDevices())
	assert.Empty(t, ms.Active())
	assert.Len(t, handler.notificationsOf(models.NotificationStatus), 2)

	assert.ErrorIs(t, ms.Stop(ctx, "puck-1"), ErrNotStreaming)
}

func TestMonitorStopTearsDownOnTransportError(t *testing.T) {
	ms, transport, _ := newTestMonitor(t)
	ctx := context.Background()

	require.NoError(t, ms.Start(ctx, "puck-1"))
	transport.writeErr = errLinkDown

	err := ms.Stop(ctx, "puck-1")
	require.ErrorIs(t, err, ErrTransport)
	assert.ErrorIs(t, err, errLinkDown)
	assert.Empty(t, ms.Active())
}

func TestMonitorCalibrateNotStreaming(t *testing.T) {
	ms, _, _ := newTestMonitor(t)

	assert.ErrorIs(t, ms.Calibrate(context.Background(), "puck-1"), ErrNotStreaming)
}

func TestMonitorBaselineSurvivesRestart(t *testing.T) {
	ms, transport, handler := newTestMonitor(t)
	ctx := context.Background()

	require.NoError(t, ms.Start(ctx, "puck-1"))
	require.NoError(t, ms.Calibrate(ctx, "puck-1"))
	transport.push("puck-1", frame(0.1, 0.2, 0.9))
	transport.push("puck-1", frame(0.1, 0.2, 1.1))

	require.Eventually(t, func() bool { return len(handler.calibrationResults()) == 1 }, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, handler.calibrationResults()[0].Err)

	require.NoError(t, ms.Stop(ctx, "puck-1"))
	require.NoError(t, ms.Start(ctx, "puck-1"))

	active := ms.Active()
	require.Len(t, active, 1)
	require.NotNil(t, active[0].Baseline)
	assert.InDelta(t, 0.1, active[0].Baseline.X, 1e-9)
	assert.InDelta(t, 0.2, active[0].Baseline.Y, 1e-9)
	assert.InDelta(t, 1.0, active[0].Baseline.Z, 1e-9)
	assert.Equal(t, 2, active[0].Baseline.Samples)

	stored, ok := ms.Baseline("puck-1")
	require.True(t, ok)
	assert.Equal(t, *active[0].Baseline, stored)
}

func TestMonitorEmptyCalibrationKeepsBaseline(t *testing.T) {
	ms, _, handler := newTestMonitor(t)
	ctx := context.Background()

	require.NoError(t, ms.Start(ctx, "puck-1"))
	require.NoError(t, ms.Calibrate(ctx, "puck-1"))

	require.Eventually(t, func() bool { return len(handler.calibrationResults()) == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.ErrorIs(t, handler.calibrationResults()[0].Err, pipeline.ErrNoCalibrationSamples)

	_, ok := ms.Baseline("puck-1")
	assert.False(t, ok)
}

func TestMonitorConnectFailure(t *testing.T) {
	ms, transport, handler := newTestMonitor(t)
	transport.connectErr = errLinkDown

	err := ms.Start(context.Background(), "puck-1")
	require.ErrorIs(t, err, ErrTransport)
	assert.ErrorIs(t, err, errLinkDown)

	assert.Empty(t, ms.Active())
	assert.Len(t, handler.notificationsOf(models.NotificationError), 1)

	// a failed start does not block the next attempt
	transport.connectErr = nil
	assert.NoError(t, ms.Start(context.Background(), "puck-1"))
}

func TestMonitorStartWriteFailure(t *testing.T) {
	ms, transport, handler := newTestMonitor(t)
	transport.writeErr = errLinkDown

	require.ErrorIs(t, ms.Start(context.Background(), "puck-1"), ErrTransport)

	assert.Empty(t, ms.Active())
	assert.Equal(t, []string{"puck-1"}, transport.unsubscribedDevices())
	assert.Len(t, handler.notificationsOf(models.NotificationError), 1)
}

func TestMonitorSubscribeFailure(t *testing.T) {
	ms, transport, _ := newTestMonitor(t)
	transport.subscribeErr = errLinkDown

	require.ErrorIs(t, ms.Start(context.Background(), "puck-1"), ErrTransport)
	assert.Empty(t, ms.Active())
	assert.Empty(t, transport.writesTo("puck-1"))
}

func TestMonitorResetAll(t *testing.T) {
	ms, transport, handler := newTestMonitor(t)
	require.NoError(t, ms.Start(context.Background(), "puck-1"))

	for i := 0; i < pipeline.DefaultWindowSize; i++ {
		transport.push("puck-1", frame(1, 0, 0))
	}

	ms.ResetAll()

	// the window is empty again, so this spike only starts a new warm-up
	transport.push("puck-1", frame(100, 0, 0))

	time.Sleep(100 * time.Millisecond)
	assert.Zero(t, handler.anomalyCount())
}

func TestMonitorShutdown(t *testing.T) {
	transport := newFakeTransport()
	ms := NewMonitorService(transport, &fakeHandler{}, DefaultMonitorServiceConfig(), nil)
	ctx := context.Background()

	require.NoError(t, ms.Start(ctx, "puck-1"))
	require.NoError(t, ms.Start(ctx, "puck-2"))
	assert.Len(t, ms.Active(), 2)

	ms.Shutdown(ctx)

	assert.Empty(t, ms.Active())
	assert.ElementsMatch(t, []string{"puck-1", "puck-2"}, transport.unsubscribedDevices())
}
