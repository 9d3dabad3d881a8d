package bench

import (
	"fmt"
	"time"
)

// A Sample is the outcome of one timed collective round.
type Sample struct {
	Rank      int
	Iteration int
	SizeMB    int
	Elapsed   time.Duration

	// Rate is the throughput in MB/sec. It is only
	// meaningful if Measurable is true.
	Rate       float64
	Measurable bool
}

// NewSample computes the throughput of moving sizeMB
// megabytes in the elapsed time.
//
// A round that took no measurable time has no rate.
func NewSample(rank, iteration, sizeMB int, elapsed time.Duration) Sample {
	s := Sample{
		Rank:      rank,
		Iteration: iteration,
		SizeMB:    sizeMB,
		Elapsed:   elapsed,
	}
	if seconds := elapsed.Seconds(); seconds > 0 {
		s.Rate = float64(sizeMB) / seconds
		s.Measurable = true
	}
	return s
}

// Measure times one call to f with the monotonic clock.
func Measure(rank, iteration, sizeMB int, f func() error) (Sample, error) {
	start := time.Now()
	err := f()
	elapsed := time.Since(start)
	return NewSample(rank, iteration, sizeMB, elapsed), err
}

// Millis gets the elapsed time in milliseconds.
func (s Sample) Millis() float64 {
	return float64(s.Elapsed) / float64(time.Millisecond)
}

// String formats the sample as a report line.
func (s Sample) String() string {
	if !s.Measurable {
		return fmt.Sprintf("rank %d transferred %d MB in %.1f ms (unmeasurable)", s.Rank, s.SizeMB,
			s.Millis())
	}
	return fmt.Sprintf("rank %d transferred %d MB in %.1f ms (%.1f MB/sec)", s.Rank, s.SizeMB,
		s.Millis(), s.Rate)
}
