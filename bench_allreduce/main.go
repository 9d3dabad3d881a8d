// Command bench_allreduce measures all-reduce throughput
// across a group of machines.
//
// Started as a launcher, it provisions one task per
// worker and starts the workers, locally or on remote
// machines. Started with --role=worker, it joins the
// process group and runs the benchmark loop.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/uber-go/tally/v4"
	_ "go.uber.org/automaxprocs"

	"github.com/unixpickle/allreduce-bench/bench"
	"github.com/unixpickle/allreduce-bench/cluster"
	"github.com/unixpickle/allreduce-bench/config"
	"github.com/unixpickle/allreduce-bench/launch"
	"github.com/unixpickle/allreduce-bench/metrics"
)

const (
	exitOK          = 0
	exitFailure     = 1
	exitConfigError = 2
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	defaults, o, err := parseArgs(args, stderr)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitConfigError
	}
	setupLogging(o, stderr)

	metricsCfg := defaults.Metrics
	metricsCfg.Log = metricsCfg.Log || *o.debug
	scope, closer := metrics.InitMetricScope(&metricsCfg, "allreduce_bench",
		map[string]string{"role": *o.role})
	defer closer.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if *o.role == roleWorker {
		err = runWorker(ctx, o, stdout, scope)
	} else {
		err = runLauncher(ctx, defaults, o, stdout, stderr, scope)
	}
	if err != nil {
		log.WithError(err).Error("benchmark failed")
		return exitCode(err)
	}
	return exitOK
}

// parseArgs parses the flags twice: once to find the
// config files, then again with defaults taken from them.
func parseArgs(args []string, stderr io.Writer) (config.File, *options, error) {
	defaults := config.Default()
	app, o := newApp(defaults)
	app.UsageWriter(stderr)
	app.ErrorWriter(stderr)
	if _, err := app.Parse(args); err != nil {
		return defaults, nil, err
	}
	if len(*o.configFiles) == 0 {
		return defaults, o, nil
	}

	defaults, err := config.Load(*o.configFiles...)
	if err != nil {
		return defaults, nil, err
	}
	app, o = newApp(defaults)
	app.UsageWriter(stderr)
	app.ErrorWriter(stderr)
	if _, err := app.Parse(args); err != nil {
		return defaults, nil, err
	}
	return defaults, o, nil
}

func setupLogging(o *options, stderr io.Writer) {
	log.SetOutput(stderr)
	if *o.logJSON {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{})
	}
	if *o.debug {
		log.SetLevel(log.DebugLevel)
	} else {
		log.SetLevel(log.InfoLevel)
	}
}

func runWorker(ctx context.Context, o *options, stdout io.Writer, scope tally.Scope) error {
	cfg := o.benchConfig()
	log.WithFields(log.Fields{
		"rank":    *o.rank,
		"run_id":  cfg.RunID,
		"backend": cfg.Backend,
	}).Debug("starting worker")
	return bench.NewWorker(cfg, *o.rank, stdout, scope.SubScope("worker")).Run(ctx)
}

func runLauncher(ctx context.Context, defaults config.File, o *options, stdout, stderr io.Writer,
	scope tally.Scope) error {
	program := *o.workerProgram
	if program == "" {
		var err error
		program, err = os.Executable()
		if err != nil {
			return errors.Wrap(err, "locate worker program")
		}
	}

	l := &launch.Launcher{
		Config:  o.benchConfig(),
		Name:    *o.name,
		Program: program,
		Options: cluster.JobOptions{
			ReadyTimeout: *o.readyTimeout,
			Placement:    *o.placement,
		},
		Out:     stdout,
		Metrics: launch.NewMetrics(scope.SubScope("launcher")),
	}
	if *o.debug {
		l.WorkerFlags = append(l.WorkerFlags, "--debug")
	}
	if *o.logJSON {
		l.WorkerFlags = append(l.WorkerFlags, "--log-json")
	}

	if *o.zone == "" {
		l.Cluster = &cluster.LocalLauncher{Stdout: stdout, Stderr: stderr}
	} else {
		l.Cluster = &cluster.RemoteLauncher{
			Provisioner:  cluster.NewSSHProvisioner(defaults.SSH),
			Region:       *o.region,
			Zone:         *o.zone,
			InstanceType: *o.instanceType,
			Images:       defaults.ImageTable(),
			OSFamily:     *o.linuxType,
			ImageID:      *o.ami,
		}
		l.Upload = true
		l.Setup = []cluster.Command{
			cluster.NewCommand("sh", "-c",
				"killall "+filepath.Base(program)+" || echo failed"),
		}
	}
	return l.Run(ctx)
}

func exitCode(err error) int {
	switch errors.Cause(err).(type) {
	case *bench.ConfigError, *cluster.ConfigError, config.ValidationError:
		return exitConfigError
	}
	return exitFailure
}
