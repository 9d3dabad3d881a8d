package bench

import (
	"github.com/uber-go/tally/v4"
)

// Metrics tracks the collective rounds run by a worker.
type Metrics struct {
	rounds       tally.Counter
	bytesReduced tally.Counter
	unmeasurable tally.Counter
	failures     tally.Counter
	latency      tally.Timer
	rate         tally.Gauge
}

// NewMetrics returns a new Metrics struct, with all
// metrics rooted at the given tally.Scope.
func NewMetrics(scope tally.Scope) *Metrics {
	return &Metrics{
		rounds:       scope.Counter("rounds"),
		bytesReduced: scope.Counter("bytes_reduced"),
		unmeasurable: scope.Counter("unmeasurable_rounds"),
		failures:     scope.Counter("failures"),
		latency:      scope.Timer("allreduce_latency"),
		rate:         scope.Gauge("rate_mb_per_sec"),
	}
}

func (m *Metrics) record(s Sample) {
	m.rounds.Inc(1)
	m.bytesReduced.Inc(int64(s.SizeMB) * ElementsPerMB * 4)
	m.latency.Record(s.Elapsed)
	if s.Measurable {
		m.rate.Update(s.Rate)
	} else {
		m.unmeasurable.Inc(1)
	}
}
