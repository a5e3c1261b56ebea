package utils

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHaversineMiles(t *testing.T) {
	// Portland, OR to Seattle, WA: roughly 145 miles great-circle
	got := HaversineMiles(45.5152, -122.6784, 47.6062, -122.3321)
	assert.InDelta(t, 145.0, got, 2.0)

	assert.Zero(t, HaversineMiles(45.5152, -122.6784, 45.5152, -122.6784))
}

func TestHaversineMilesRounding(t *testing.T) {
	got := HaversineMiles(45.5152, -122.6784, 45.5231, -122.6765)
	assert.InDelta(t, math.Round(got*10), got*10, 1e-9, "rounded to one decimal")
}

func TestFormatDistance(t *testing.T) {
	assert.Equal(t, "Very close", FormatDistance(0.05))
	assert.Equal(t, "2640 ft", FormatDistance(0.5))
	assert.Equal(t, "1.5 mi", FormatDistance(1.5))
	assert.Equal(t, "12.0 mi", FormatDistance(12))
}
