package pipeline

import (
	"encoding/json"
	"fmt"
	"math"
)

// MaxAxisValue bounds a single raw axis reading. It sits far above any
// accelerometer's raw range while keeping window statistics finite.
const MaxAxisValue = 1e6

// framePayload mirrors the object printed by Puck.accel(). Pointers let us
// tell a missing axis apart from a zero reading.
type framePayload struct {
	Acc *struct {
		X *float64 `json:"x"`
		Y *float64 `json:"y"`
		Z *float64 `json:"z"`
	} `json:"acc"`
}

// Decode parses one frame of the form {"acc":{"x":n,"y":n,"z":n}}.
// Trailing whitespace such as the \r of Bluetooth.println is accepted.
func Decode(frame string) (Vector, error) {
	var payload framePayload
	if err := json.Unmarshal([]byte(frame), &payload); err != nil {
		return Vector{}, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}

	acc := payload.Acc
	if acc == nil || acc.X == nil || acc.Y == nil || acc.Z == nil {
		return Vector{}, ErrMissingAxis
	}

	v := Vector{X: *acc.X, Y: *acc.Y, Z: *acc.Z}
	for _, axis := range []float64{v.X, v.Y, v.Z} {
		if math.IsNaN(axis) || math.Abs(axis) > MaxAxisValue {
			return Vector{}, fmt.Errorf("%w: %g", ErrReadingOutOfRange, axis)
		}
	}
	return v, nil
}
