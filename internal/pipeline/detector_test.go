package pipeline

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectorWarmUp(t *testing.T) {
	d := NewDetector(DefaultDetectorConfig())

	for i := 0; i < DefaultWindowSize-1; i++ {
		magnitude := float64(1 + i*i*1000)
		_, ok := d.Observe(Vector{Z: magnitude})
		assert.False(t, ok, "sample %d reported during warm-up", i)
	}
	assert.Equal(t, DefaultWindowSize-1, d.Len())
}

func TestDetectorFlagsOutlier(t *testing.T) {
	d := NewDetector(DefaultDetectorConfig())

	for i := 0; i < DefaultWindowSize; i++ {
		_, ok := d.Observe(Vector{X: 1})
		require.False(t, ok)
	}

	anomaly, ok := d.Observe(Vector{X: 100})
	require.True(t, ok)

	// window holds 19 samples of magnitude 1 and the outlier
	assert.InDelta(t, 100.0, anomaly.Magnitude, 1e-9)
	assert.InDelta(t, 5.95, anomaly.Mean, 1e-9)
	assert.InDelta(t, 21.58, anomaly.StdDev, 0.01)
	assert.Greater(t, anomaly.Deviation, DefaultNumStdDev*anomaly.StdDev)
	assert.Equal(t, LeftRight, anomaly.Direction)
	assert.Equal(t, Vector{X: 100}, anomaly.Sample)
}

func TestDetectorConstantWindowIsQuiet(t *testing.T) {
	d := NewDetector(DefaultDetectorConfig())

	for i := 0; i < 3*DefaultWindowSize; i++ {
		_, ok := d.Observe(Vector{Y: -1})
		assert.False(t, ok)
	}
}

func TestDetectorWithinThreshold(t *testing.T) {
	d := NewDetector(DetectorConfig{WindowSize: 4, NumStdDev: 2})

	for _, m := range []float64{1, 2, 1, 2, 1, 2} {
		_, ok := d.Observe(Vector{Z: m})
		assert.False(t, ok)
	}
	assert.Equal(t, 4, d.Len())
}

func TestDetectorReset(t *testing.T) {
	d := NewDetector(DetectorConfig{WindowSize: 3, NumStdDev: 1})
	for i := 0; i < 3; i++ {
		d.Observe(Vector{X: 1})
	}

	d.Reset()
	assert.Zero(t, d.Len())

	_, ok := d.Observe(Vector{X: 1000})
	assert.False(t, ok)
}

func TestDetectorDefaults(t *testing.T) {
	d := NewDetector(DetectorConfig{})

	assert.Equal(t, DefaultWindowSize, d.window.Cap())
	assert.Equal(t, DefaultNumStdDev, d.numStdDev)
}

func TestMagnitudeStats(t *testing.T) {
	mean, stdDev := magnitudeStats([]Vector{{X: 3, Y: 4}, {Z: 5}, {X: 1}, {Y: 9}})
	assert.InDelta(t, 5.0, mean, 1e-12)
	assert.InDelta(t, 2.8284271247, stdDev, 1e-9)

	mean, stdDev = magnitudeStats(nil)
	assert.Zero(t, mean)
	assert.Zero(t, stdDev)
}

func TestVectorMagnitude(t *testing.T) {
	assert.InDelta(t, 13.0, Vector{X: 3, Y: 4, Z: 12}.Magnitude(), 1e-12)
	assert.False(t, math.IsInf(Vector{X: 1e200, Y: 1e200}.Magnitude(), 0))
}
