package pipeline

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"impact-backend/internal/metrics"
)

// controlTimeout bounds how long a control request may wait on a full
// inbox before it is dropped. Chunks never wait.
const controlTimeout = 1 * time.Second

type messageKind int

const (
	msgChunk messageKind = iota
	msgCalibrate
	msgReset
)

// message is one entry of the session inbox. Chunks and control requests
// share the inbox so they are handled in the order they were sent.
type message struct {
	kind  messageKind
	chunk []byte
}

// SessionConfig holds configuration for a device session
type SessionConfig struct {
	DeviceID          string
	Detector          DetectorConfig
	CalibrationWindow time.Duration
	QueueSize         int

	// Baseline seeds the calibrator, typically with the result of an
	// earlier session for the same device.
	Baseline *Baseline

	Handler Handler
	Metrics *metrics.Metrics
}

// Session is the pipeline state for one device connection. It is created
// when streaming starts and discarded on stop or disconnect, so nothing
// bleeds from one connection into the next.
//
// Run is the only consumer of the session inbox. The synchronous
// methods (Process, StartCalibration, FinishCalibration, Reset, Stop) exist
// for callers that drive the session directly and must not be used while
// Run is active.
type Session struct {
	id       string
	deviceID string

	reassembler *Reassembler
	calibrator  *Calibrator
	detector    *Detector

	handler Handler
	metrics *metrics.Metrics
	now     func() time.Time

	calibrationWindow time.Duration
	calTimer          *time.Timer

	inbox chan message
	done  chan struct{}
}

// NewSession creates a session with an empty buffer and warm-up window
func NewSession(config SessionConfig) *Session {
	if config.CalibrationWindow <= 0 {
		config.CalibrationWindow = DefaultCalibrationWindow
	}
	if config.QueueSize <= 0 {
		config.QueueSize = 100
	}

	s := &Session{
		id:                uuid.NewString(),
		deviceID:          config.DeviceID,
		reassembler:       NewReassembler(),
		calibrator:        NewCalibrator(),
		detector:          NewDetector(config.Detector),
		handler:           config.Handler,
		metrics:           config.Metrics,
		now:               time.Now,
		calibrationWindow: config.CalibrationWindow,
		inbox:             make(chan message, config.QueueSize),
		done:              make(chan struct{}),
	}

	if config.Baseline != nil {
		s.calibrator.SetBaseline(*config.Baseline)
	}

	return s
}

// ID returns the unique session id
func (s *Session) ID() string {
	return s.id
}

// DeviceID returns the device this session consumes
func (s *Session) DeviceID() string {
	return s.deviceID
}

// Baseline returns the active baseline, if any
func (s *Session) Baseline() (Baseline, bool) {
	return s.calibrator.Baseline()
}

// CalibrationState returns the calibrator state
func (s *Session) CalibrationState() CalibrationState {
	return s.calibrator.State()
}

// Done is closed once Run has returned and torn the session down
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Process runs one chunk through the whole pipeline and returns the
// anomalies it produced, in frame order. Bad frames are logged and skipped.
func (s *Session) Process(chunk []byte) []Anomaly {
	var anomalies []Anomaly

	overflows := s.reassembler.Overflows()
	frames := s.reassembler.Feed(chunk)
	if s.reassembler.Overflows() > overflows {
		s.metrics.FrameDropped("too_long")
		log.Printf("Session %s: Dropping unterminated data from %s longer than %d bytes", s.id[:8], s.deviceID, MaxPendingBytes)
	}

	for _, frame := range frames {
		if strings.TrimSpace(frame) == "" {
			continue
		}

		raw, err := Decode(frame)
		if err != nil {
			reason := "malformed"
			switch {
			case errors.Is(err, ErrMissingAxis):
				reason = "missing_axis"
			case errors.Is(err, ErrReadingOutOfRange):
				reason = "out_of_range"
			}
			s.metrics.FrameDropped(reason)
			log.Printf("Session %s: Dropping frame from %s: %v", s.id[:8], s.deviceID, err)
			continue
		}
		s.metrics.FrameDecoded()

		s.calibrator.Observe(raw)
		corrected := s.calibrator.Correct(raw)

		anomaly, ok := s.detector.Observe(corrected)
		if !ok {
			continue
		}

		s.metrics.AnomalyDetected(string(anomaly.Direction))
		log.Printf("Session %s: High acceleration on %s: magnitude=%.3f, deviation=%.3f (mean=%.3f, stddev=%.3f), direction=%s",
			s.id[:8], s.deviceID, anomaly.Magnitude, anomaly.Deviation, anomaly.Mean, anomaly.StdDev, anomaly.Direction)

		anomalies = append(anomalies, anomaly)
		if s.handler != nil {
			s.handler.HandleAnomaly(s.deviceID, anomaly)
		}
	}

	return anomalies
}

// StartCalibration begins a calibration run. The caller decides when the
// run ends by calling FinishCalibration.
func (s *Session) StartCalibration() {
	s.calibrator.Start()
	log.Printf("Session %s: Calibrating %s", s.id[:8], s.deviceID)
}

// FinishCalibration closes the current run and reports the result to the
// handler.
func (s *Session) FinishCalibration() (Baseline, error) {
	baseline, err := s.calibrator.Finish(s.now())
	if err != nil {
		s.metrics.Calibration("empty")
		log.Printf("Session %s: Calibration of %s failed: %v", s.id[:8], s.deviceID, err)
	} else {
		s.metrics.Calibration("ok")
		log.Printf("Session %s: Baseline for %s set to x=%.4f y=%.4f z=%.4f (%d samples)",
			s.id[:8], s.deviceID, baseline.X, baseline.Y, baseline.Z, baseline.Samples)
	}

	if s.handler != nil {
		s.handler.HandleCalibration(s.deviceID, CalibrationResult{Baseline: baseline, Err: err})
	}
	return baseline, err
}

// Reset clears the stream buffer and the sliding window. The baseline and
// any calibration run in progress are kept.
func (s *Session) Reset() {
	s.reassembler.Reset()
	s.detector.Reset()
}

// Stop cancels a pending calibration and clears buffer and window.
func (s *Session) Stop() {
	s.stopTimer()
	if s.calibrator.State() == StateCalibrating {
		s.calibrator.Cancel()
		log.Printf("Session %s: Calibration of %s cancelled", s.id[:8], s.deviceID)
	}
	s.Reset()
}

// Pending returns the buffered partial frame
func (s *Session) Pending() string {
	return s.reassembler.Pending()
}

// WindowLen returns the number of samples in the sliding window
func (s *Session) WindowLen() int {
	return s.detector.Len()
}

// Run consumes the inbox strictly in arrival order until ctx is cancelled.
// The calibration timer is owned by Run and stopped on return, so a
// pending calibration never fires after teardown.
func (s *Session) Run(ctx context.Context) {
	defer close(s.done)
	defer s.Stop()

	log.Printf("Session %s: Started for %s", s.id[:8], s.deviceID)

	for {
		select {
		case <-ctx.Done():
			log.Printf("Session %s: Shutting down...", s.id[:8])
			return

		case msg := <-s.inbox:
			s.handle(msg)

		case <-s.timerC():
			s.calTimer = nil
			s.FinishCalibration()
		}
	}
}

func (s *Session) handle(msg message) {
	switch msg.kind {
	case msgChunk:
		s.Process(msg.chunk)

	case msgCalibrate:
		s.stopTimer()
		s.StartCalibration()
		s.calTimer = time.NewTimer(s.calibrationWindow)

	case msgReset:
		s.Reset()
		log.Printf("Session %s: Stream state reset for %s", s.id[:8], s.deviceID)
	}
}

// Deliver queues a chunk for Run without blocking. The chunk is dropped
// when the inbox is full, ctx is done or the session has stopped, so a slow
// session cannot stall the transport that feeds every device.
func (s *Session) Deliver(ctx context.Context, chunk []byte) bool {
	return s.send(ctx, message{kind: msgChunk, chunk: chunk}, 0)
}

// RequestCalibration asks Run to start a calibration window. It returns
// false once the session has stopped.
func (s *Session) RequestCalibration(ctx context.Context) bool {
	return s.send(ctx, message{kind: msgCalibrate}, controlTimeout)
}

// RequestReset asks Run to clear buffer and window, e.g. after the
// transport reconnected.
func (s *Session) RequestReset(ctx context.Context) bool {
	return s.send(ctx, message{kind: msgReset}, controlTimeout)
}

// send queues msg, waiting up to wait for room in the inbox. A zero wait
// makes it non-blocking.
func (s *Session) send(ctx context.Context, msg message, wait time.Duration) bool {
	select {
	case <-s.done:
		return false
	case <-ctx.Done():
		return false
	default:
	}

	select {
	case s.inbox <- msg:
		return true
	default:
	}

	if wait > 0 {
		timer := time.NewTimer(wait)
		defer timer.Stop()

		select {
		case s.inbox <- msg:
			return true
		case <-s.done:
			return false
		case <-ctx.Done():
			return false
		case <-timer.C:
		}
	}

	s.metrics.ChunkDropped()
	log.Printf("Session %s: Warning: inbox full, dropping message for %s", s.id[:8], s.deviceID)
	return false
}

func (s *Session) timerC() <-chan time.Time {
	if s.calTimer == nil {
		return nil
	}
	return s.calTimer.C
}

func (s *Session) stopTimer() {
	if s.calTimer != nil {
		s.calTimer.Stop()
		s.calTimer = nil
	}
}
