package reconstruct

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSmoothedRTTSeededByFirstSample(t *testing.T) {
	var s smoothedRTT

	_, ok := s.current()
	assert.False(t, ok)

	out := s.observe(40 * time.Millisecond)
	assert.Equal(t, 40*time.Millisecond, out.Smoothed)
	assert.False(t, out.Elevated)

	v, ok := s.current()
	require.True(t, ok)
	assert.Equal(t, 40*time.Millisecond, v)
}

func TestSmoothedRTTConverges(t *testing.T) {
	var s smoothedRTT
	s.observe(200 * time.Millisecond)

	target := 50 * time.Millisecond
	const k = 20
	for i := 0; i < k; i++ {
		s.observe(target)
	}

	v, ok := s.current()
	require.True(t, ok)

	// |srtt0 - s| * 0.875^k bounds the remaining error.
	bound := float64(200*time.Millisecond-target) * math.Pow(1-smoothedRTTAlpha, k)
	assert.InDelta(t, float64(target), float64(v), bound+float64(time.Millisecond))
}

func TestSmoothedRTTElevatedFlag(t *testing.T) {
	var s smoothedRTT
	s.observe(50 * time.Millisecond)

	// A sample far above the smoothed baseline is flagged.
	out := s.observe(200 * time.Millisecond)
	assert.True(t, out.Elevated)

	// A sample at the baseline is not.
	var steady smoothedRTT
	steady.observe(50 * time.Millisecond)
	out = steady.observe(50 * time.Millisecond)
	assert.False(t, out.Elevated)
}
