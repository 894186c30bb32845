// Package pipeline turns the raw notification byte stream of a head-mounted
// accelerometer into classified high-acceleration events.
//
// Data flows chunk -> Reassembler -> Decode -> Calibrator (correction) ->
// Detector -> Classify. A Session owns one instance of each stage for the
// lifetime of a device connection.
package pipeline

import (
	"errors"
	"math"
	"time"
)

var (
	// ErrMalformedFrame is returned when a frame is not valid JSON
	ErrMalformedFrame = errors.New("malformed frame")

	// ErrMissingAxis is returned when acc.x, acc.y or acc.z is absent
	ErrMissingAxis = errors.New("frame missing acceleration axis")

	// ErrReadingOutOfRange is returned when an axis is not finite or beyond
	// MaxAxisValue
	ErrReadingOutOfRange = errors.New("acceleration reading out of range")

	// ErrNoCalibrationSamples is returned when a calibration window closes empty
	ErrNoCalibrationSamples = errors.New("no samples received during calibration")
)

// Vector is one 3-axis acceleration reading. Raw and corrected samples
// share this type.
type Vector struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Sub returns v - o component-wise.
func (v Vector) Sub(o Vector) Vector {
	return Vector{X: v.X - o.X, Y: v.Y - o.Y, Z: v.Z - o.Z}
}

// Magnitude returns the euclidean norm of v.
func (v Vector) Magnitude() float64 {
	return math.Hypot(math.Hypot(v.X, v.Y), v.Z)
}

// Baseline is the per-axis resting offset computed by a calibration run.
type Baseline struct {
	Vector
	Samples      int       `json:"samples"`
	CalibratedAt time.Time `json:"calibrated_at"`
}

// Direction is the dominant axis of an anomalous reading.
type Direction string

const (
	LeftRight Direction = "LEFT-RIGHT" // x
	FrontBack Direction = "FRONT-BACK" // y
	TopDown   Direction = "TOP-DOWN"   // z
)

// Anomaly is a corrected sample whose magnitude deviated from the window
// mean by more than the configured number of standard deviations.
type Anomaly struct {
	Sample    Vector    `json:"sample"`
	Magnitude float64   `json:"magnitude"`
	Mean      float64   `json:"mean"`
	StdDev    float64   `json:"std_dev"`
	Deviation float64   `json:"deviation"`
	Direction Direction `json:"direction"`
}

// CalibrationResult reports the outcome of one calibration window.
type CalibrationResult struct {
	Baseline Baseline
	Err      error
}

// Handler receives pipeline output for a device. Calls are made from the
// session goroutine and must not block for long.
type Handler interface {
	HandleAnomaly(deviceID string, anomaly Anomaly)
	HandleCalibration(deviceID string, result CalibrationResult)
}
