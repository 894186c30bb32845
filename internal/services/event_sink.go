package services

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"impact-backend/internal/database"
	"impact-backend/internal/metrics"
	"impact-backend/internal/models"
	"impact-backend/internal/pipeline"
)

// persistTimeout bounds a single insert issued by the persistence worker
const persistTimeout = 5 * time.Second

// Broadcaster pushes notifications to live subscribers
type Broadcaster interface {
	Broadcast(n models.Notification)
}

// EventSinkConfig holds configuration for the event sink
type EventSinkConfig struct {
	QueueSize int

	// MaxEventsPerDevice caps the in-memory display list. Older events
	// are still in the store.
	MaxEventsPerDevice int
}

// DefaultEventSinkConfig returns default configuration
func DefaultEventSinkConfig() EventSinkConfig {
	return EventSinkConfig{
		QueueSize:          50,
		MaxEventsPerDevice: 500,
	}
}

// EventSink turns pipeline output into injury records. Records are kept
// in a per-device display list, persisted asynchronously and broadcast.
// Persistence is fire-and-forget: detection never waits on the store.
type EventSink struct {
	store       database.Store
	broadcaster Broadcaster
	metrics     *metrics.Metrics
	now         func() time.Time
	maxEvents   int

	persistChan chan *models.InjuryRecord

	mu     sync.RWMutex
	events map[string][]models.InjuryRecord
}

var _ pipeline.Handler = (*EventSink)(nil)

// NewEventSink creates a new event sink. broadcaster may be nil.
func NewEventSink(
	store database.Store,
	broadcaster Broadcaster,
	config EventSinkConfig,
	m *metrics.Metrics,
) *EventSink {
	if config.QueueSize <= 0 {
		config.QueueSize = DefaultEventSinkConfig().QueueSize
	}
	return &EventSink{
		store:       store,
		broadcaster: broadcaster,
		metrics:     m,
		now:         time.Now,
		maxEvents:   config.MaxEventsPerDevice,
		persistChan: make(chan *models.InjuryRecord, config.QueueSize),
		events:      make(map[string][]models.InjuryRecord),
	}
}

// HandleAnomaly records one detected injury
func (s *EventSink) HandleAnomaly(deviceID string, anomaly pipeline.Anomaly) {
	now := s.now()
	record := models.InjuryRecord{
		ID:          uuid.NewString(),
		DeviceID:    deviceID,
		Date:        now.Format(models.DateLayout),
		Time:        now.Format(models.TimeLayout),
		InjuryCount: 1,
		Direction:   string(anomaly.Direction),
		X:           anomaly.Sample.X,
		Y:           anomaly.Sample.Y,
		Z:           anomaly.Sample.Z,
		Magnitude:   anomaly.Magnitude,
		RecordedAt:  now,
	}

	s.mu.Lock()
	list := append(s.events[deviceID], record)
	if s.maxEvents > 0 && len(list) > s.maxEvents {
		list = list[len(list)-s.maxEvents:]
	}
	s.events[deviceID] = list
	s.mu.Unlock()

	select {
	case s.persistChan <- &record:
	default:
		s.metrics.EventDropped()
		log.Printf("EventSink: Warning: persist queue full, dropping record %s from %s", record.ID, deviceID)
	}

	s.Notify(models.Notification{
		Type:     models.NotificationInjury,
		DeviceID: deviceID,
		Message:  fmt.Sprintf("High acceleration detected (%s)", record.Direction),
		Record:   &record,
	})
}

// HandleCalibration reports the outcome of a calibration window
func (s *EventSink) HandleCalibration(deviceID string, result pipeline.CalibrationResult) {
	n := models.Notification{
		Type:     models.NotificationCalibration,
		DeviceID: deviceID,
		Message:  "Calibration complete",
	}
	if result.Err != nil {
		n.Type = models.NotificationError
		n.Message = fmt.Sprintf("Calibration failed: %v", result.Err)
	}
	s.Notify(n)
}

// Notify broadcasts n, stamping the time if unset
func (s *EventSink) Notify(n models.Notification) {
	if n.Timestamp.IsZero() {
		n.Timestamp = s.now()
	}
	if s.broadcaster != nil {
		s.broadcaster.Broadcast(n)
	}
}

// Events returns the display list for deviceID, oldest first
func (s *EventSink) Events(deviceID string) []models.InjuryRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return append([]models.InjuryRecord(nil), s.events[deviceID]...)
}

// Start runs the persistence worker until ctx is cancelled. Records
// already queued at cancellation are still written.
func (s *EventSink) Start(ctx context.Context) {
	log.Println("EventSink: Starting...")

	for {
		select {
		case <-ctx.Done():
			s.drain()
			log.Println("EventSink: Shutdown complete")
			return

		case record := <-s.persistChan:
			s.persist(context.Background(), record)
		}
	}
}

func (s *EventSink) drain() {
	for {
		select {
		case record := <-s.persistChan:
			s.persist(context.Background(), record)
		default:
			return
		}
	}
}

func (s *EventSink) persist(ctx context.Context, record *models.InjuryRecord) {
	ctx, cancel := context.WithTimeout(ctx, persistTimeout)
	defer cancel()

	if err := s.store.InsertInjury(ctx, record); err != nil {
		s.metrics.PersistFailed()
		log.Printf("EventSink: Error saving injury record %s: %v", record.ID, err)
		return
	}

	log.Printf("EventSink: Saved injury record: device=%s, direction=%s, date=%s %s",
		record.DeviceID, record.Direction, record.Date, record.Time)
}
