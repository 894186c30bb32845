package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"impact-backend/internal/models"
	"impact-backend/internal/pipeline"
)

var testNow = time.Date(2024, 7, 4, 21, 3, 9, 0, time.UTC)

func newTestSink(store *mockStore, broadcaster Broadcaster, config EventSinkConfig) *EventSink {
	sink := NewEventSink(store, broadcaster, config, nil)
	sink.now = func() time.Time { return testNow }
	return sink
}

func testAnomaly() pipeline.Anomaly {
	return pipeline.Anomaly{
		Sample:    pipeline.Vector{X: 0.5, Y: -4, Z: 1},
		Magnitude: 4.153,
		Direction: pipeline.FrontBack,
	}
}

func TestEventSinkHandleAnomaly(t *testing.T) {
	store := new(mockStore)
	broadcaster := &fakeBroadcaster{}
	sink := newTestSink(store, broadcaster, DefaultEventSinkConfig())

	saved := make(chan *models.InjuryRecord, 1)
	store.On("InsertInjury", mock.Anything, mock.AnythingOfType("*models.InjuryRecord")).
		Return(nil).
		Run(func(args mock.Arguments) { saved <- args.Get(1).(*models.InjuryRecord) })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sink.Start(ctx)

	sink.HandleAnomaly("puck-1", testAnomaly())

	events := sink.Events("puck-1")
	require.Len(t, events, 1)
	record := events[0]
	assert.Len(t, record.ID, 36)
	assert.Equal(t, "puck-1", record.DeviceID)
	assert.Equal(t, "7/4/2024", record.Date)
	assert.Equal(t, "9:03:09 PM", record.Time)
	assert.Equal(t, 1, record.InjuryCount)
	assert.Equal(t, "FRONT-BACK", record.Direction)
	assert.Equal(t, -4.0, record.Y)
	assert.Equal(t, testNow, record.RecordedAt)

	select {
	case got := <-saved:
		assert.Equal(t, record, *got)
	case <-time.After(2 * time.Second):
		t.Fatal("record not persisted")
	}

	notifications := broadcaster.all()
	require.Len(t, notifications, 1)
	assert.Equal(t, models.NotificationInjury, notifications[0].Type)
	assert.Equal(t, record.ID, notifications[0].Record.ID)
	assert.Equal(t, testNow, notifications[0].Timestamp)

	assert.Empty(t, sink.Events("puck-2"))
}

func TestEventSinkDropsWhenQueueFull(t *testing.T) {
	store := new(mockStore)
	sink := newTestSink(store, nil, EventSinkConfig{QueueSize: 1})

	// no worker is running, so the second record finds the queue full
	sink.HandleAnomaly("puck-1", testAnomaly())
	sink.HandleAnomaly("puck-1", testAnomaly())

	assert.Len(t, sink.Events("puck-1"), 2)
	assert.Len(t, sink.persistChan, 1)
	store.AssertNotCalled(t, "InsertInjury", mock.Anything, mock.Anything)
}

func TestEventSinkPersistFailureIsNotFatal(t *testing.T) {
	store := new(mockStore)
	sink := newTestSink(store, nil, DefaultEventSinkConfig())

	store.On("InsertInjury", mock.Anything, mock.Anything).Return(errors.New("disk full")).Twice()

	sink.HandleAnomaly("puck-1", testAnomaly())
	sink.HandleAnomaly("puck-1", testAnomaly())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	sink.Start(ctx)

	store.AssertNumberOfCalls(t, "InsertInjury", 2)
	assert.Len(t, sink.Events("puck-1"), 2)
	assert.Empty(t, sink.persistChan)
}

func TestEventSinkCapsDisplayList(t *testing.T) {
	store := new(mockStore)
	sink := newTestSink(store, nil, EventSinkConfig{QueueSize: 10, MaxEventsPerDevice: 3})

	for i := 0; i < 5; i++ {
		sink.HandleAnomaly("puck-1", testAnomaly())
	}

	assert.Len(t, sink.Events("puck-1"), 3)
}

func TestEventSinkHandleCalibration(t *testing.T) {
	broadcaster := &fakeBroadcaster{}
	sink := newTestSink(new(mockStore), broadcaster, DefaultEventSinkConfig())

	sink.HandleCalibration("puck-1", pipeline.CalibrationResult{Baseline: pipeline.Baseline{Samples: 3}})
	sink.HandleCalibration("puck-1", pipeline.CalibrationResult{Err: pipeline.ErrNoCalibrationSamples})

	notifications := broadcaster.all()
	require.Len(t, notifications, 2)
	assert.Equal(t, models.NotificationCalibration, notifications[0].Type)
	assert.Equal(t, models.NotificationError, notifications[1].Type)
	assert.Contains(t, notifications[1].Message, "no samples received during calibration")
}

func TestEventSinkNotifyKeepsTimestamp(t *testing.T) {
	broadcaster := &fakeBroadcaster{}
	sink := newTestSink(new(mockStore), broadcaster, DefaultEventSinkConfig())
	at := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)

	sink.Notify(models.Notification{Type: models.NotificationStatus, Timestamp: at})

	notifications := broadcaster.all()
	require.Len(t, notifications, 1)
	assert.Equal(t, at, notifications[0].Timestamp)
}
