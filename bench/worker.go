package bench

import (
	"context"
	"fmt"
	"io"

	log "github.com/sirupsen/logrus"
	"github.com/uber-go/tally/v4"
	"github.com/unixpickle/allreduce-bench/collcomm"
	"github.com/unixpickle/allreduce-bench/collcomm/allreduce"
)

// A Worker runs the benchmark loop for one rank.
type Worker struct {
	Config Config
	Rank   int

	// Out receives one report line per iteration.
	Out io.Writer

	Metrics *Metrics
}

// NewWorker creates a Worker that reports to out.
func NewWorker(cfg Config, rank int, out io.Writer, scope tally.Scope) *Worker {
	return &Worker{
		Config:  cfg,
		Rank:    rank,
		Out:     out,
		Metrics: NewMetrics(scope.Tagged(map[string]string{"backend": cfg.Backend})),
	}
}

// Run joins the process group and runs every iteration.
//
// Any rendezvous or collective failure ends the run; no
// iteration is retried.
func (w *Worker) Run(ctx context.Context) error {
	if err := w.Config.Validate(); err != nil {
		return err
	}
	logger := log.WithFields(log.Fields{"rank": w.Rank, "size": w.Config.WorldSize})
	logger.Info("initializing process group")

	comms, err := collcomm.Rendezvous(ctx, w.Config.GroupConfig(w.Rank))
	if err != nil {
		return err
	}
	defer comms.Close()

	logger.WithFields(log.Fields{
		"backend":      w.Config.Backend,
		"data_size_mb": w.Config.DataSizeMB,
		"iterations":   w.Config.Iterations,
	}).Info("process group ready")

	_, err = w.Bench(comms)
	return err
}

// Bench runs every iteration on an existing process group
// and returns the final parameter vector.
//
// Each iteration fills a gradient vector with ones, sums
// it across the group, and adds the result to the
// parameters if w.Config.Accumulate is set. Only the
// collective is timed, not the copies to and from the
// scratch vector.
func (w *Worker) Bench(comms *collcomm.Comms) ([]float32, error) {
	reducer, err := allreduce.ByName(w.Config.Backend)
	if err != nil {
		return nil, &ConfigError{Field: "backend", Reason: err.Error()}
	}

	params := make([]float32, w.Config.Elements())
	grads := make([]float32, w.Config.Elements())
	for i := 0; i < w.Config.Iterations; i++ {
		for j := range grads {
			grads[j] = 1
		}
		var sample Sample
		err := allreduce.ApplyWith(reducer, comms, grads, collcomm.Sum,
			func(reduce func() error) error {
				var err error
				sample, err = Measure(comms.Rank(), i, w.Config.DataSizeMB, reduce)
				return err
			})
		if err != nil {
			if w.Metrics != nil {
				w.Metrics.failures.Inc(1)
			}
			return nil, err
		}
		if w.Metrics != nil {
			w.Metrics.record(sample)
		}
		if w.Out != nil {
			fmt.Fprintln(w.Out, sample)
		}
		if w.Config.Accumulate {
			collcomm.Sum(params, grads)
		}
	}
	return params, nil
}
