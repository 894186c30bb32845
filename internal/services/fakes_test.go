package services

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/stretchr/testify/mock"

	"impact-backend/internal/database"
	"impact-backend/internal/device"
	"impact-backend/internal/models"
	"impact-backend/internal/pipeline"
)

var errLinkDown = errors.New("link down")

type write struct {
	deviceID string
	charID   string
	data     []byte
}

type fakeTransport struct {
	mu sync.Mutex

	connectErr     error
	subscribeErr   error
	writeErr       error
	unsubscribeErr error

	connected    []string
	writes       []write
	handlers     map[string]device.DataHandler
	unsubscribed []string
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{handlers: make(map[string]device.DataHandler)}
}

func (f *fakeTransport) Connect(ctx context.Context, deviceID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.connectErr != nil {
		return f.connectErr
	}
	f.connected = append(f.connected, deviceID)
	return nil
}

func (f *fakeTransport) Write(ctx context.Context, deviceID, serviceID, charID string, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != nil {
		return f.writeErr
	}
	f.writes = append(f.writes, write{deviceID: deviceID, charID: charID, data: data})
	return nil
}

func (f *fakeTransport) Subscribe(ctx context.Context, deviceID, serviceID, charID string, onData device.DataHandler) (device.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.subscribeErr != nil {
		return device.Subscription{}, f.subscribeErr
	}
	f.handlers[deviceID] = onData
	return device.Subscription{
		DeviceID:  deviceID,
		ServiceID: serviceID,
		CharID:    charID,
		Topic:     deviceID + "/notify",
	}, nil
}

func (f *fakeTransport) Unsubscribe(ctx context.Context, sub device.Subscription) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.unsubscribeErr != nil {
		return f.unsubscribeErr
	}
	delete(f.handlers, sub.DeviceID)
	f.unsubscribed = append(f.unsubscribed, sub.DeviceID)
	return nil
}

// push delivers data as a notification from deviceID
func (f *fakeTransport) push(deviceID string, data []byte) {
	f.mu.Lock()
	handler := f.handlers[deviceID]
	f.mu.Unlock()
	if handler != nil {
		handler(data)
	}
}

func (f *fakeTransport) writesTo(deviceID string) []write {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []write
	for _, w := range f.writes {
		if w.deviceID == deviceID {
			out = append(out, w)
		}
	}
	return out
}

func (f *fakeTransport) unsubscribedDevices() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.unsubscribed...)
}

type fakeHandler struct {
	mu            sync.Mutex
	anomalies     []pipeline.Anomaly
	calibrations  []pipeline.CalibrationResult
	notifications []models.Notification
}

func (h *fakeHandler) HandleAnomaly(deviceID string, anomaly pipeline.Anomaly) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.anomalies = append(h.anomalies, anomaly)
}

func (h *fakeHandler) HandleCalibration(deviceID string, result pipeline.CalibrationResult) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calibrations = append(h.calibrations, result)
}

func (h *fakeHandler) Notify(n models.Notification) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.notifications = append(h.notifications, n)
}

func (h *fakeHandler) anomalyCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.anomalies)
}

func (h *fakeHandler) calibrationResults() []pipeline.CalibrationResult {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]pipeline.CalibrationResult(nil), h.calibrations...)
}

func (h *fakeHandler) notificationsOf(t models.NotificationType) []models.Notification {
	h.mu.Lock()
	defer h.mu.Unlock()

	var out []models.Notification
	for _, n := range h.notifications {
		if n.Type == t {
			out = append(out, n)
		}
	}
	return out
}

type fakeBroadcaster struct {
	mu            sync.Mutex
	notifications []models.Notification
}

func (b *fakeBroadcaster) Broadcast(n models.Notification) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.notifications = append(b.notifications, n)
}

func (b *fakeBroadcaster) all() []models.Notification {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]models.Notification(nil), b.notifications...)
}

type mockStore struct {
	mock.Mock
}

var _ database.Store = (*mockStore)(nil)

func (m *mockStore) InsertInjury(ctx context.Context, record *models.InjuryRecord) error {
	args := m.Called(ctx, record)
	return args.Error(0)
}

func (m *mockStore) QueryInjuries(ctx context.Context, filter database.InjuryFilter) ([]models.InjuryRecord, error) {
	args := m.Called(ctx, filter)
	records, _ := args.Get(0).([]models.InjuryRecord)
	return records, args.Error(1)
}

func (m *mockStore) InsertManualInjury(ctx context.Context, injury *models.ManualInjury) error {
	args := m.Called(ctx, injury)
	return args.Error(0)
}

func (m *mockStore) QueryManualInjuries(ctx context.Context) ([]models.ManualInjury, error) {
	args := m.Called(ctx)
	injuries, _ := args.Get(0).([]models.ManualInjury)
	return injuries, args.Error(1)
}

func (m *mockStore) Close() error {
	return m.Called().Error(0)
}

func frame(x, y, z float64) []byte {
	return []byte(fmt.Sprintf("{\"acc\":{\"x\":%g,\"y\":%g,\"z\":%g}}\r\n", x, y, z))
}
