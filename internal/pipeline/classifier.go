package pipeline

import "math"

// Classify returns the axis with the largest absolute component of v.
// Ties resolve in x, y, z order.
func Classify(v Vector) Direction {
	ax, ay, az := math.Abs(v.X), math.Abs(v.Y), math.Abs(v.Z)

	switch {
	case ax >= ay && ax >= az:
		return LeftRight
	case ay >= az:
		return FrontBack
	default:
		return TopDown
	}
}
