// Package launch starts a benchmark run on a cluster.
//
// The launcher only provisions tasks and starts a worker
// on each of them. It never joins the process group.
package launch

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/uber-go/tally/v4"
	"github.com/unixpickle/allreduce-bench/bench"
	"github.com/unixpickle/allreduce-bench/cluster"
)

// A Launcher starts one worker per task of a job.
type Launcher struct {
	Cluster cluster.Launcher
	Config  bench.Config

	// Name names the job. It defaults to the run id.
	Name    string
	Options cluster.JobOptions

	// Program is the worker binary, as a local path.
	Program string

	// Upload copies Program to every task before the
	// workers are started.
	Upload bool

	// Setup commands run on every task, in order, before
	// the workers are started.
	Setup []cluster.Command

	// WorkerFlags are passed to every worker after the
	// benchmark flags.
	WorkerFlags []string

	// Out receives task addresses and instructions.
	Out io.Writer

	Metrics *Metrics
}

// Run provisions the job, starts the workers, and waits
// for them if the cluster supports it.
func (l *Launcher) Run(ctx context.Context) error {
	cfg := l.Config
	if err := cfg.Validate(); err != nil {
		return err
	}
	if cfg.RunID == "" {
		cfg.RunID = uuid.New().String()
	}
	name := l.Name
	if name == "" {
		name = cfg.RunID
	}
	out := l.Out
	if out == nil {
		out = os.Stdout
	}
	metrics := l.Metrics
	if metrics == nil {
		metrics = NewMetrics(tally.NoopScope)
	}
	logger := log.WithFields(log.Fields{"job": name, "run_id": cfg.RunID})

	logger.WithField("size", cfg.WorldSize).Info("creating job")
	job, err := l.Cluster.MakeJob(ctx, name, cfg.WorldSize, l.Options)
	if err != nil {
		return err
	}
	if len(job.Tasks) < cfg.WorldSize {
		return &cluster.ProvisioningError{Job: name, Requested: cfg.WorldSize,
			Available: len(job.Tasks)}
	}

	for i, task := range job.Tasks {
		fmt.Fprintf(out, "task %d (%s): %s\n", i, task.Name(), task.Addr())
	}
	if instructions := job.ConnectInstructions(); instructions != "" {
		fmt.Fprint(out, instructions)
	}

	programs, err := l.prepare(ctx, job)
	if err != nil {
		return err
	}

	// Rank 0 hosts the rendezvous, so every other rank
	// must reach it at the address of the first task.
	cfg.MasterAddr = job.Tasks[0].Addr()
	for rank, task := range job.Tasks {
		cmd := cluster.NewCommand(programs[rank], WorkerArgs(cfg, rank, cfg.MasterAddr)...)
		cmd.Args = append(cmd.Args, l.WorkerFlags...)
		logger.WithFields(log.Fields{"rank": rank, "task": task.Name()}).Debug("starting worker")
		if err := task.Run(ctx, cmd, false); err != nil {
			metrics.dispatchFailures.Inc(1)
			return errors.Wrapf(err, "start rank %d", rank)
		}
		metrics.tasksDispatched.Inc(1)
	}
	logger.WithField("running", job.Running()).Info("all workers started")

	return job.Wait(ctx)
}

// prepare runs the setup commands and then uploads the
// worker program. It returns the program path on each
// task.
//
// Setup stops workers left over from an earlier run, so it
// must come first: a running binary cannot be overwritten.
func (l *Launcher) prepare(ctx context.Context, job *cluster.Job) ([]string, error) {
	programs := make([]string, len(job.Tasks))
	for i, task := range job.Tasks {
		for _, cmd := range l.Setup {
			if err := task.Run(ctx, cmd, true); err != nil {
				return nil, errors.Wrap(err, "setup")
			}
		}
		programs[i] = l.Program
		if l.Upload {
			path, err := task.Upload(ctx, l.Program)
			if err != nil {
				return nil, err
			}
			programs[i] = path
		}
	}
	return programs, nil
}

// WorkerArgs builds the arguments that start the worker
// for a rank.
func WorkerArgs(cfg bench.Config, rank int, masterAddr string) []string {
	args := []string{
		"--role=worker",
		"--rank=" + strconv.Itoa(rank),
		"--num-machines=" + strconv.Itoa(cfg.WorldSize),
		"--data-size-mb=" + strconv.Itoa(cfg.DataSizeMB),
		"--num-iters=" + strconv.Itoa(cfg.Iterations),
		"--backend=" + cfg.Backend,
		"--master-addr=" + masterAddr,
		"--master-port=" + strconv.Itoa(cfg.MasterPort),
		"--run-id=" + cfg.RunID,
	}
	if cfg.RendezvousTimeout > 0 {
		args = append(args, "--rendezvous-timeout="+cfg.RendezvousTimeout.String())
	}
	if cfg.OpTimeout > 0 {
		args = append(args, "--op-timeout="+cfg.OpTimeout.String())
	}
	if !cfg.Accumulate {
		args = append(args, "--no-accumulate")
	}
	return args
}
