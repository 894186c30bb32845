package gcs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		total int
		want  Severity
	}{
		{3, Severe},
		{8, Severe},
		{9, Moderate},
		{12, Moderate},
		{13, Mild},
		{15, Mild},
	}

	for _, tt := range tests {
		got, err := Classify(tt.total)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "total %d", tt.total)
	}
}

func TestClassifyOutOfRange(t *testing.T) {
	for _, total := range []int{0, 2, 16} {
		_, err := Classify(total)
		assert.ErrorIs(t, err, ErrScoreOutOfRange, "total %d", total)
	}
}

func TestAssess(t *testing.T) {
	total, severity, err := Assess(Score{Eye: 3, Verbal: 4, Motor: 5})
	require.NoError(t, err)
	assert.Equal(t, 12, total)
	assert.Equal(t, Moderate, severity)

	total, severity, err = Assess(Score{Eye: 1, Verbal: 1, Motor: 1})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Equal(t, Severe, severity)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name  string
		score Score
		field string
	}{
		{"eye low", Score{Eye: 0, Verbal: 5, Motor: 6}, "eye"},
		{"eye high", Score{Eye: 5, Verbal: 5, Motor: 6}, "eye"},
		{"verbal high", Score{Eye: 4, Verbal: 6, Motor: 6}, "verbal"},
		{"motor high", Score{Eye: 4, Verbal: 5, Motor: 7}, "motor"},
		{"motor missing", Score{Eye: 4, Verbal: 5}, "motor"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.score.Validate()
			require.ErrorIs(t, err, ErrScoreOutOfRange)
			assert.Contains(t, err.Error(), tt.field)

			_, _, err = Assess(tt.score)
			assert.ErrorIs(t, err, ErrScoreOutOfRange)
		})
	}
}
