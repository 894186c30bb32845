package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"impact-backend/internal/device"
	"impact-backend/internal/metrics"
	"impact-backend/internal/models"
	"impact-backend/internal/pipeline"
)

var (
	// ErrTransport wraps connect, write and subscribe failures
	ErrTransport = errors.New("transport error")

	// ErrNotStreaming is returned for a device without a live session
	ErrNotStreaming = errors.New("device is not streaming")

	// ErrAlreadyStreaming is returned when starting a live device twice
	ErrAlreadyStreaming = errors.New("device is already streaming")
)

// EventHandler consumes pipeline output and service notifications
type EventHandler interface {
	pipeline.Handler
	Notify(n models.Notification)
}

// MonitorServiceConfig holds configuration for the monitor service
type MonitorServiceConfig struct {
	Detector          pipeline.DetectorConfig
	CalibrationWindow time.Duration
	SampleInterval    time.Duration
	ChunkQueueSize    int
}

// DefaultMonitorServiceConfig returns default configuration
func DefaultMonitorServiceConfig() MonitorServiceConfig {
	return MonitorServiceConfig{
		Detector:          pipeline.DefaultDetectorConfig(),
		CalibrationWindow: pipeline.DefaultCalibrationWindow,
		SampleInterval:    device.DefaultSampleInterval,
		ChunkQueueSize:    100,
	}
}

// DeviceStatus describes a live session
type DeviceStatus struct {
	DeviceID    string             `json:"device_id"`
	SessionID   string             `json:"session_id"`
	Calibration string             `json:"calibration"`
	Baseline    *pipeline.Baseline `json:"baseline,omitempty"`
	StartedAt   time.Time          `json:"started_at"`
}

type activeSession struct {
	session   *pipeline.Session
	sub       device.Subscription
	cancel    context.CancelFunc
	startedAt time.Time
}

// MonitorService owns the session lifecycle of every streaming device.
// A session lives from Start until Stop, transport loss or Shutdown. The
// last good baseline of each device outlives its sessions.
type MonitorService struct {
	transport device.Transport
	handler   EventHandler
	metrics   *metrics.Metrics
	config    MonitorServiceConfig

	baseCtx    context.Context
	baseCancel context.CancelFunc

	mu        sync.Mutex
	sessions  map[string]*activeSession
	starting  map[string]bool
	baselines map[string]pipeline.Baseline
}

var _ pipeline.Handler = (*MonitorService)(nil)

// NewMonitorService creates a new monitor service
func NewMonitorService(
	transport device.Transport,
	handler EventHandler,
	config MonitorServiceConfig,
	m *metrics.Metrics,
) *MonitorService {
	ctx, cancel := context.WithCancel(context.Background())
	return &MonitorService{
		transport:  transport,
		handler:    handler,
		metrics:    m,
		config:     config,
		baseCtx:    ctx,
		baseCancel: cancel,
		sessions:   make(map[string]*activeSession),
		starting:   make(map[string]bool),
		baselines:  make(map[string]pipeline.Baseline),
	}
}

// Start connects to deviceID, subscribes to its telemetry and sends the
// start command. The session runs until Stop or Shutdown.
func (ms *MonitorService) Start(ctx context.Context, deviceID string) error {
	ms.mu.Lock()
	if ms.sessions[deviceID] != nil || ms.starting[deviceID] {
		ms.mu.Unlock()
		return ErrAlreadyStreaming
	}
	ms.starting[deviceID] = true
	var seed *pipeline.Baseline
	if b, ok := ms.baselines[deviceID]; ok {
		seed = &b
	}
	ms.mu.Unlock()

	defer func() {
		ms.mu.Lock()
		delete(ms.starting, deviceID)
		ms.mu.Unlock()
	}()

	if err := ms.transport.Connect(ctx, deviceID); err != nil {
		return ms.transportFailure(deviceID, "connect", err)
	}

	session := pipeline.NewSession(pipeline.SessionConfig{
		DeviceID:          deviceID,
		Detector:          ms.config.Detector,
		CalibrationWindow: ms.config.CalibrationWindow,
		QueueSize:         ms.config.ChunkQueueSize,
		Baseline:          seed,
		Handler:           ms,
		Metrics:           ms.metrics,
	})
	sessCtx, cancel := context.WithCancel(ms.baseCtx)
	go session.Run(sessCtx)

	sub, err := ms.transport.Subscribe(ctx, deviceID, device.UARTService, device.UARTNotifyChar, func(data []byte) {
		session.Deliver(sessCtx, data)
	})
	if err != nil {
		cancel()
		<-session.Done()
		return ms.transportFailure(deviceID, "subscribe", err)
	}

	if err := ms.transport.Write(ctx, deviceID, device.UARTService, device.UARTWriteChar, device.StartCommand(ms.config.SampleInterval)); err != nil {
		cancel()
		<-session.Done()
		if uerr := ms.transport.Unsubscribe(ctx, sub); uerr != nil {
			log.Printf("MonitorService: Error unsubscribing %s: %v", deviceID, uerr)
		}
		return ms.transportFailure(deviceID, "write", err)
	}

	ms.mu.Lock()
	ms.sessions[deviceID] = &activeSession{
		session:   session,
		sub:       sub,
		cancel:    cancel,
		startedAt: time.Now(),
	}
	active := len(ms.sessions)
	ms.mu.Unlock()

	ms.metrics.SetActiveSessions(active)
	log.Printf("MonitorService: Streaming from %s (session %s)", deviceID, session.ID())
	ms.handler.Notify(models.Notification{
		Type:     models.NotificationStatus,
		DeviceID: deviceID,
		Message:  "Accelerometer started",
	})
	return nil
}

// Stop tears down the session of deviceID, then sends the stop command and
// drops the subscription. The session is gone even when the transport
// calls fail.
func (ms *MonitorService) Stop(ctx context.Context, deviceID string) error {
	ms.mu.Lock()
	active := ms.sessions[deviceID]
	if active == nil {
		ms.mu.Unlock()
		return ErrNotStreaming
	}
	delete(ms.sessions, deviceID)
	remaining := len(ms.sessions)
	ms.mu.Unlock()

	ms.metrics.SetActiveSessions(remaining)
	ms.teardown(deviceID, active)

	var errs []error
	if err := ms.transport.Write(ctx, deviceID, device.UARTService, device.UARTWriteChar, device.StopCommand); err != nil {
		errs = append(errs, ms.transportFailure(deviceID, "write", err))
	}
	if err := ms.transport.Unsubscribe(ctx, active.sub); err != nil {
		errs = append(errs, ms.transportFailure(deviceID, "unsubscribe", err))
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	log.Printf("MonitorService: Stopped %s", deviceID)
	ms.handler.Notify(models.Notification{
		Type:     models.NotificationStatus,
		DeviceID: deviceID,
		Message:  "Accelerometer stopped",
	})
	return nil
}

// Calibrate opens a calibration window on the live session of deviceID.
// The outcome arrives asynchronously through the event handler.
func (ms *MonitorService) Calibrate(ctx context.Context, deviceID string) error {
	ms.mu.Lock()
	active := ms.sessions[deviceID]
	ms.mu.Unlock()

	if active == nil || !active.session.RequestCalibration(ctx) {
		return ErrNotStreaming
	}

	log.Printf("MonitorService: Calibration requested for %s", deviceID)
	return nil
}

// ResetAll clears buffer and window of every live session. Baselines are
// kept. It is wired to transport connection loss.
func (ms *MonitorService) ResetAll() {
	ms.mu.Lock()
	sessions := make([]*activeSession, 0, len(ms.sessions))
	for _, active := range ms.sessions {
		sessions = append(sessions, active)
	}
	ms.mu.Unlock()

	for _, active := range sessions {
		active.session.RequestReset(ms.baseCtx)
	}
	log.Printf("MonitorService: Reset %d sessions", len(sessions))
}

// Active returns the live sessions sorted by device id
func (ms *MonitorService) Active() []DeviceStatus {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	statuses := make([]DeviceStatus, 0, len(ms.sessions))
	for deviceID, active := range ms.sessions {
		status := DeviceStatus{
			DeviceID:    deviceID,
			SessionID:   active.session.ID(),
			Calibration: active.session.CalibrationState().String(),
			StartedAt:   active.startedAt,
		}
		if b, ok := active.session.Baseline(); ok {
			status.Baseline = &b
		}
		statuses = append(statuses, status)
	}

	sort.Slice(statuses, func(i, j int) bool {
		return statuses[i].DeviceID < statuses[j].DeviceID
	})
	return statuses
}

// Baseline returns the last good baseline recorded for deviceID
func (ms *MonitorService) Baseline(deviceID string) (pipeline.Baseline, bool) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	b, ok := ms.baselines[deviceID]
	return b, ok
}

// Shutdown stops every live session and releases the service
func (ms *MonitorService) Shutdown(ctx context.Context) {
	log.Println("MonitorService: Shutting down...")

	ms.mu.Lock()
	deviceIDs := make([]string, 0, len(ms.sessions))
	for deviceID := range ms.sessions {
		deviceIDs = append(deviceIDs, deviceID)
	}
	ms.mu.Unlock()

	for _, deviceID := range deviceIDs {
		if err := ms.Stop(ctx, deviceID); err != nil && !errors.Is(err, ErrNotStreaming) {
			log.Printf("MonitorService: Error stopping %s: %v", deviceID, err)
		}
	}

	ms.baseCancel()
	log.Println("MonitorService: Shutdown complete")
}

// HandleAnomaly forwards an anomaly to the event handler
func (ms *MonitorService) HandleAnomaly(deviceID string, anomaly pipeline.Anomaly) {
	ms.handler.HandleAnomaly(deviceID, anomaly)
}

// HandleCalibration remembers a successful baseline for later sessions and
// forwards the result.
func (ms *MonitorService) HandleCalibration(deviceID string, result pipeline.CalibrationResult) {
	if result.Err == nil {
		ms.mu.Lock()
		ms.baselines[deviceID] = result.Baseline
		ms.mu.Unlock()
	}
	ms.handler.HandleCalibration(deviceID, result)
}

func (ms *MonitorService) teardown(deviceID string, active *activeSession) {
	active.cancel()
	<-active.session.Done()
	log.Printf("MonitorService: Session %s for %s closed", active.session.ID(), deviceID)
}

// transportFailure logs and broadcasts a transport error once and returns
// it wrapped in ErrTransport.
func (ms *MonitorService) transportFailure(deviceID, op string, err error) error {
	log.Printf("MonitorService: Transport %s failed for %s: %v", op, deviceID, err)

	ms.handler.Notify(models.Notification{
		Type:     models.NotificationError,
		DeviceID: deviceID,
		Message:  fmt.Sprintf("Failed to %s: %v", op, err),
	})
	return fmt.Errorf("%w: failed to %s %s: %w", ErrTransport, op, deviceID, err)
}
