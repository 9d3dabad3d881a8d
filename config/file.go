package config

import (
	"time"

	"github.com/unixpickle/allreduce-bench/bench"
	"github.com/unixpickle/allreduce-bench/cluster"
	"github.com/unixpickle/allreduce-bench/metrics"
)

// File is the layout of a config file.
//
// Every setting also has a command line flag, which takes
// precedence over the file.
type File struct {
	Bench   bench.Config       `yaml:"bench"`
	SSH     cluster.SSHConfig  `yaml:"ssh"`
	Images  cluster.ImageTable `yaml:"images"`
	Metrics metrics.Config     `yaml:"metrics"`

	Region       string        `yaml:"region"`
	Zone         string        `yaml:"zone"`
	InstanceType string        `yaml:"instance_type"`
	LinuxType    string        `yaml:"linux_type"`
	ReadyTimeout time.Duration `yaml:"ready_timeout"`
}

// Default gets the settings used for anything a config
// file leaves out.
func Default() File {
	return File{
		Bench:        bench.DefaultConfig(),
		InstanceType: "c4.8xlarge",
		LinuxType:    "ubuntu",
		ReadyTimeout: cluster.DefaultReadyTimeout,
	}
}

// Load reads config files on top of the defaults. With no
// files, it returns the defaults.
func Load(files ...string) (File, error) {
	f := Default()
	if len(files) == 0 {
		return f, nil
	}
	if err := Parse(&f, files...); err != nil {
		return f, err
	}
	return f, nil
}

// ImageTable gets the stock images with the file's
// overrides applied.
func (f File) ImageTable() cluster.ImageTable {
	return cluster.DefaultImages.Merge(f.Images)
}
