// Package bench runs the timed all-reduce loop on a
// single worker and reports its throughput.
package bench

import (
	"fmt"
	"time"

	"github.com/unixpickle/allreduce-bench/collcomm"
	"github.com/unixpickle/allreduce-bench/collcomm/allreduce"
)

// ElementsPerMB is the number of float32 entries in one
// megabyte (10^6 bytes) of payload.
const ElementsPerMB = 250 * 1000

// DefaultMasterPort is the port rank 0 listens on when
// none is configured.
const DefaultMasterPort = 6006

// Config describes one benchmark run.
//
// Every worker builds its own copy from explicit command
// line arguments, and every copy must agree on everything
// except the rank.
type Config struct {
	WorldSize  int    `yaml:"num_machines" validate:"min=1"`
	DataSizeMB int    `yaml:"data_size_mb" validate:"min=1"`
	Iterations int    `yaml:"num_iters" validate:"min=1"`
	Backend    string `yaml:"backend"`

	MasterAddr string `yaml:"master_addr"`
	MasterPort int    `yaml:"master_port"`

	RunID string `yaml:"-"`

	RendezvousTimeout time.Duration `yaml:"rendezvous_timeout"`
	OpTimeout         time.Duration `yaml:"op_timeout"`

	// Accumulate adds every reduced vector into a running
	// parameter vector, like an optimizer step would.
	Accumulate bool `yaml:"accumulate"`
}

// DefaultConfig returns the settings used when nothing
// else is specified.
func DefaultConfig() Config {
	return Config{
		WorldSize:         2,
		DataSizeMB:        100,
		Iterations:        1000,
		Backend:           "ring",
		MasterAddr:        "127.0.0.1",
		MasterPort:        DefaultMasterPort,
		RendezvousTimeout: collcomm.DefaultRendezvousTimeout,
		Accumulate:        true,
	}
}

// Elements gets the number of entries in each vector.
func (c Config) Elements() int {
	return c.DataSizeMB * ElementsPerMB
}

// Validate checks the config for values that no worker
// could run with.
func (c Config) Validate() error {
	switch {
	case c.WorldSize < 1:
		return &ConfigError{Field: "num_machines", Reason: "must be at least 1"}
	case c.DataSizeMB < 1:
		return &ConfigError{Field: "data_size_mb", Reason: "must be at least 1"}
	case c.Iterations < 1:
		return &ConfigError{Field: "num_iters", Reason: "must be at least 1"}
	case c.MasterPort <= 0 || c.MasterPort > 65535:
		return &ConfigError{Field: "master_port", Reason: fmt.Sprintf("invalid port %d", c.MasterPort)}
	case c.WorldSize > 1 && c.MasterAddr == "":
		return &ConfigError{Field: "master_addr", Reason: "required for more than one machine"}
	case c.RendezvousTimeout < 0 || c.OpTimeout < 0:
		return &ConfigError{Field: "timeout", Reason: "must not be negative"}
	}
	if _, err := allreduce.ByName(c.Backend); err != nil {
		return &ConfigError{Field: "backend", Reason: err.Error()}
	}
	return nil
}

// GroupConfig gets the rendezvous parameters for a rank.
func (c Config) GroupConfig(rank int) collcomm.GroupConfig {
	return collcomm.GroupConfig{
		Rank:       rank,
		Size:       c.WorldSize,
		MasterAddr: c.MasterAddr,
		MasterPort: c.MasterPort,
		RunID:      c.RunID,
		Timeout:    c.RendezvousTimeout,
		OpTimeout:  c.OpTimeout,
	}
}

// A ConfigError reports an invalid or inconsistent
// setting. It is detected before any process is started.
type ConfigError struct {
	Field  string
	Reason string
}

func (c *ConfigError) Error() string {
	return fmt.Sprintf("invalid %s: %s", c.Field, c.Reason)
}
