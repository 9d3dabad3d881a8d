package main

import (
	"strconv"
	"time"

	"github.com/unixpickle/allreduce-bench/bench"
	"github.com/unixpickle/allreduce-bench/collcomm/allreduce"
	"github.com/unixpickle/allreduce-bench/config"
	"gopkg.in/alecthomas/kingpin.v2"
)

const (
	roleLauncher = "launcher"
	roleWorker   = "worker"
)

type options struct {
	role        *string
	configFiles *[]string
	debug       *bool
	logJSON     *bool

	name         *string
	zone         *string
	region       *string
	instanceType *string
	placement    *bool
	ami          *string
	linuxType    *string
	readyTimeout *time.Duration

	numMachines       *int
	dataSizeMB        *int
	numIters          *int
	backend           *string
	rank              *int
	masterAddr        *string
	masterPort        *int
	runID             *string
	rendezvousTimeout *time.Duration
	opTimeout         *time.Duration
	accumulate        *bool

	workerProgram *string
}

// newApp defines the command line, taking its defaults
// from the config files.
func newApp(defaults config.File) (*kingpin.Application, *options) {
	app := kingpin.New("bench_allreduce", "Benchmark all-reduce throughput across machines.")
	app.HelpFlag.Short('h')
	b := defaults.Bench

	o := &options{
		role: app.Flag(
			"role", "Run as the launcher or as one worker").
			Default(roleLauncher).
			Enum(roleLauncher, roleWorker),

		configFiles: app.Flag(
			"config",
			"YAML config files (can be provided multiple times to merge configs)").
			Short('c').
			ExistingFiles(),

		debug: app.Flag(
			"debug", "enable debug logging and log metrics").
			Short('d').
			Default("false").
			Envar("ENABLE_DEBUG_LOGGING").
			Bool(),

		logJSON: app.Flag(
			"log-json", "log in JSON format").
			Default("false").
			Bool(),

		name: app.Flag(
			"name", "Job name (defaults to the run id)").
			Default("").
			String(),

		zone: app.Flag(
			"zone", "Availability zone to run in (empty runs every worker locally)").
			Default(defaults.Zone).
			String(),

		region: app.Flag(
			"region", "Region of the zone (set $AWS_DEFAULT_REGION to override)").
			Default(defaults.Region).
			Envar("AWS_DEFAULT_REGION").
			String(),

		instanceType: app.Flag(
			"instance-type", "Machine type of every task").
			Default(defaults.InstanceType).
			String(),

		placement: app.Flag(
			"placement", "Pack the tasks into a placement group").
			Default("false").
			Bool(),

		ami: app.Flag(
			"ami", "Machine image to use instead of the image table").
			Default("").
			String(),

		linuxType: app.Flag(
			"linux-type", "OS family used to pick the machine image").
			Default(defaults.LinuxType).
			Enum(defaults.ImageTable().Families()...),

		readyTimeout: app.Flag(
			"ready-timeout", "How long to wait for tasks to come up").
			Default(defaults.ReadyTimeout.String()).
			Duration(),

		numMachines: app.Flag(
			"num-machines", "Number of workers").
			Default(strconv.Itoa(b.WorldSize)).
			Int(),

		dataSizeMB: app.Flag(
			"data-size-mb", "Size of each reduced vector in MB").
			Default(strconv.Itoa(b.DataSizeMB)).
			Int(),

		numIters: app.Flag(
			"num-iters", "Number of all-reduce iterations").
			Default(strconv.Itoa(b.Iterations)).
			Int(),

		backend: app.Flag(
			"backend", "All-reduce algorithm").
			Default(b.Backend).
			Enum(allreduce.Names()...),

		rank: app.Flag(
			"rank", "Rank of this worker").
			Default("0").
			Int(),

		masterAddr: app.Flag(
			"master-addr", "Address of the rank 0 worker").
			Default(b.MasterAddr).
			String(),

		masterPort: app.Flag(
			"master-port", "Port the rank 0 worker listens on").
			Default(strconv.Itoa(b.MasterPort)).
			Int(),

		runID: app.Flag(
			"run-id", "Identifier shared by every worker of a run").
			Default(b.RunID).
			String(),

		rendezvousTimeout: app.Flag(
			"rendezvous-timeout", "How long workers wait for each other").
			Default(b.RendezvousTimeout.String()).
			Duration(),

		opTimeout: app.Flag(
			"op-timeout", "Timeout for each network transfer (0 disables it)").
			Default(b.OpTimeout.String()).
			Duration(),

		accumulate: app.Flag(
			"accumulate", "Add every reduced vector into the parameters").
			Default(strconv.FormatBool(b.Accumulate)).
			Bool(),

		workerProgram: app.Flag(
			"worker-program", "Worker binary (defaults to this program)").
			Hidden().
			Default("").
			String(),
	}
	return app, o
}

// benchConfig builds the benchmark settings from the
// parsed flags.
func (o *options) benchConfig() bench.Config {
	return bench.Config{
		WorldSize:         *o.numMachines,
		DataSizeMB:        *o.dataSizeMB,
		Iterations:        *o.numIters,
		Backend:           *o.backend,
		MasterAddr:        *o.masterAddr,
		MasterPort:        *o.masterPort,
		RunID:             *o.runID,
		RendezvousTimeout: *o.rendezvousTimeout,
		OpTimeout:         *o.opTimeout,
		Accumulate:        *o.accumulate,
	}
}
