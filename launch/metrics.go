package launch

import "github.com/uber-go/tally/v4"

// Metrics tracks worker dispatch.
type Metrics struct {
	tasksDispatched  tally.Counter
	dispatchFailures tally.Counter
}

// NewMetrics returns a new Metrics struct, with all
// metrics rooted at the given tally.Scope.
func NewMetrics(scope tally.Scope) *Metrics {
	return &Metrics{
		tasksDispatched:  scope.Counter("tasks_dispatched"),
		dispatchFailures: scope.Counter("dispatch_failures"),
	}
}
