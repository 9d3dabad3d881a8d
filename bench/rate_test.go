package bench

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSample(t *testing.T) {
	for _, elapsed := range []time.Duration{time.Nanosecond, time.Millisecond, 1500 * time.Millisecond} {
		s := NewSample(1, 0, 100, elapsed)
		require.True(t, s.Measurable)
		assert.InDelta(t, 100/elapsed.Seconds(), s.Rate, 1e-9*s.Rate)
		assert.False(t, math.IsInf(s.Rate, 0))
	}
}

func TestNewSampleZeroElapsed(t *testing.T) {
	s := NewSample(3, 0, 100, 0)
	assert.False(t, s.Measurable)
	assert.Equal(t, 0.0, s.Rate)
	assert.Equal(t, "rank 3 transferred 100 MB in 0.0 ms (unmeasurable)", s.String())
}

func TestSampleString(t *testing.T) {
	s := NewSample(0, 2, 100, 250*time.Millisecond)
	assert.Equal(t, "rank 0 transferred 100 MB in 250.0 ms (400.0 MB/sec)", s.String())
}

func TestMeasure(t *testing.T) {
	s, err := Measure(2, 5, 10, func() error {
		time.Sleep(10 * time.Millisecond)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, s.Rank)
	assert.Equal(t, 5, s.Iteration)
	assert.GreaterOrEqual(t, s.Elapsed, 10*time.Millisecond)
	assert.True(t, s.Measurable)

	expected := errors.New("failed")
	_, err = Measure(0, 0, 10, func() error { return expected })
	assert.Equal(t, expected, err)
}
