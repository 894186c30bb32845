// Package gcs scores manual injury reports with the Glasgow Coma Scale.
package gcs

import (
	"errors"
	"fmt"
)

// ErrScoreOutOfRange is returned when a component is outside its scale
var ErrScoreOutOfRange = errors.New("GCS score out of range")

// Component ranges
const (
	MinEye, MaxEye       = 1, 4
	MinVerbal, MaxVerbal = 1, 5
	MinMotor, MaxMotor   = 1, 6
	MinTotal, MaxTotal   = 3, 15
)

// Severity is the clinical band of a total score
type Severity string

const (
	Severe   Severity = "Severe"   // 3-8
	Moderate Severity = "Moderate" // 9-12
	Mild     Severity = "Mild"     // 13-15
)

// Score holds the three GCS components
type Score struct {
	Eye    int `json:"eye"`
	Verbal int `json:"verbal"`
	Motor  int `json:"motor"`
}

// Validate checks every component against its range
func (s Score) Validate() error {
	if s.Eye < MinEye || s.Eye > MaxEye {
		return fmt.Errorf("%w: eye %d not in %d-%d", ErrScoreOutOfRange, s.Eye, MinEye, MaxEye)
	}
	if s.Verbal < MinVerbal || s.Verbal > MaxVerbal {
		return fmt.Errorf("%w: verbal %d not in %d-%d", ErrScoreOutOfRange, s.Verbal, MinVerbal, MaxVerbal)
	}
	if s.Motor < MinMotor || s.Motor > MaxMotor {
		return fmt.Errorf("%w: motor %d not in %d-%d", ErrScoreOutOfRange, s.Motor, MinMotor, MaxMotor)
	}
	return nil
}

// Total returns the sum of the components
func (s Score) Total() int {
	return s.Eye + s.Verbal + s.Motor
}

// Classify maps a total score to its severity band
func Classify(total int) (Severity, error) {
	switch {
	case total >= 3 && total <= 8:
		return Severe, nil
	case total >= 9 && total <= 12:
		return Moderate, nil
	case total >= 13 && total <= 15:
		return Mild, nil
	default:
		return "", fmt.Errorf("%w: total %d not in %d-%d", ErrScoreOutOfRange, total, MinTotal, MaxTotal)
	}
}

// Assess validates s and returns its total and severity
func Assess(s Score) (int, Severity, error) {
	if err := s.Validate(); err != nil {
		return 0, "", err
	}
	total := s.Total()
	severity, err := Classify(total)
	if err != nil {
		return 0, "", err
	}
	return total, severity, nil
}
