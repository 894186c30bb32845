package pipeline

import (
	"sync"
	"time"
)

// DefaultCalibrationWindow is how long a calibration run collects samples.
const DefaultCalibrationWindow = 5 * time.Second

// CalibrationState is the calibrator state machine position.
type CalibrationState int

const (
	StateIdle CalibrationState = iota
	StateCalibrating
)

func (s CalibrationState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateCalibrating:
		return "calibrating"
	default:
		return "unknown"
	}
}

// Calibrator computes a resting Baseline from the samples delivered while
// it is CALIBRATING and applies it as a correction afterwards.
//
// The active baseline is only replaced by a calibration run that collected
// at least one sample. While a run is in progress the previous baseline (or
// none) keeps being applied.
type Calibrator struct {
	state    CalibrationState
	sum      Vector
	count    int
	baseline *Baseline

	mu sync.RWMutex
}

// NewCalibrator creates an idle calibrator with no baseline
func NewCalibrator() *Calibrator {
	return &Calibrator{}
}

// Start clears any in-progress accumulation and begins a new run.
func (c *Calibrator) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.sum = Vector{}
	c.count = 0
	c.state = StateCalibrating
}

// Observe adds a raw sample to the accumulator if a run is in progress.
func (c *Calibrator) Observe(raw Vector) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateCalibrating {
		return
	}
	c.sum.X += raw.X
	c.sum.Y += raw.Y
	c.sum.Z += raw.Z
	c.count++
}

// Finish closes the current run. With no accumulated samples it returns
// ErrNoCalibrationSamples and leaves the previous baseline in place.
func (c *Calibrator) Finish(now time.Time) (Baseline, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	count := c.count
	sum := c.sum
	c.state = StateIdle
	c.sum = Vector{}
	c.count = 0

	if count == 0 {
		return Baseline{}, ErrNoCalibrationSamples
	}

	n := float64(count)
	baseline := Baseline{
		Vector:       Vector{X: sum.X / n, Y: sum.Y / n, Z: sum.Z / n},
		Samples:      count,
		CalibratedAt: now,
	}
	c.baseline = &baseline
	return baseline, nil
}

// Cancel abandons a run without touching the baseline
func (c *Calibrator) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.state = StateIdle
	c.sum = Vector{}
	c.count = 0
}

// Correct subtracts the active baseline from raw, or returns raw unchanged
// when no baseline is set.
func (c *Calibrator) Correct(raw Vector) Vector {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.baseline == nil {
		return raw
	}
	return raw.Sub(c.baseline.Vector)
}

// SetBaseline installs a baseline computed elsewhere (e.g. by a previous
// session for the same device).
func (c *Calibrator) SetBaseline(b Baseline) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.baseline = &b
}

// Baseline returns the active baseline, if any
func (c *Calibrator) Baseline() (Baseline, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.baseline == nil {
		return Baseline{}, false
	}
	return *c.baseline, true
}

// State returns the current state
func (c *Calibrator) State() CalibrationState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Accumulated returns how many samples the current run has collected
func (c *Calibrator) Accumulated() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.count
}
