package pipeline

import "math"

const (
	// DefaultWindowSize is the number of samples the statistics cover
	DefaultWindowSize = 20

	// DefaultNumStdDev is the deviation threshold in standard deviations
	DefaultNumStdDev = 2.0
)

// DetectorConfig holds detector parameters
type DetectorConfig struct {
	WindowSize int
	NumStdDev  float64
}

// DefaultDetectorConfig returns the window size and threshold used by the
// sensor firmware's 2 second cadence.
func DefaultDetectorConfig() DetectorConfig {
	return DetectorConfig{
		WindowSize: DefaultWindowSize,
		NumStdDev:  DefaultNumStdDev,
	}
}

// Detector flags samples whose magnitude is an outlier relative to the
// sliding window they were just added to.
type Detector struct {
	window    *Window
	numStdDev float64
}

// NewDetector creates a detector with an empty window
func NewDetector(config DetectorConfig) *Detector {
	if config.WindowSize <= 0 {
		config.WindowSize = DefaultWindowSize
	}
	if config.NumStdDev <= 0 {
		config.NumStdDev = DefaultNumStdDev
	}
	return &Detector{
		window:    NewWindow(config.WindowSize),
		numStdDev: config.NumStdDev,
	}
}

// Observe pushes sample into the window and tests it. Nothing is reported
// until the window is full. Statistics are population mean and standard
// deviation of the magnitudes currently in the window, including sample.
//
// A window of identical magnitudes has a zero standard deviation, so any
// non-zero deviation is flagged.
func (d *Detector) Observe(sample Vector) (Anomaly, bool) {
	magnitude := sample.Magnitude()
	d.window.Push(sample)

	if !d.window.Full() {
		return Anomaly{}, false
	}

	mean, stdDev := magnitudeStats(d.window.Slice())
	deviation := math.Abs(magnitude - mean)

	if deviation <= d.numStdDev*stdDev {
		return Anomaly{}, false
	}

	return Anomaly{
		Sample:    sample,
		Magnitude: magnitude,
		Mean:      mean,
		StdDev:    stdDev,
		Deviation: deviation,
		Direction: Classify(sample),
	}, true
}

// Len returns the number of samples currently in the window
func (d *Detector) Len() int {
	return d.window.Len()
}

// Reset empties the window so detection restarts from warm-up
func (d *Detector) Reset() {
	d.window.Reset()
}

// magnitudeStats computes population mean and standard deviation of the
// magnitudes of samples.
func magnitudeStats(samples []Vector) (mean, stdDev float64) {
	if len(samples) == 0 {
		return 0, 0
	}

	n := float64(len(samples))
	mags := make([]float64, len(samples))
	for i, s := range samples {
		mags[i] = s.Magnitude()
		mean += mags[i]
	}
	mean /= n

	var variance float64
	for _, m := range mags {
		diff := m - mean
		variance += diff * diff
	}
	variance /= n

	return mean, math.Sqrt(variance)
}
