// Package metrics sets up the tally scope shared by the
// launcher and the workers.
package metrics

import (
	"io"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/uber-go/tally/v4"
)

const defaultFlushInterval = 10 * time.Second

// Config controls where metrics are reported.
type Config struct {
	// Log reports metrics through the logger on every
	// flush and once more when the scope is closed.
	Log bool `yaml:"log"`

	FlushInterval time.Duration `yaml:"flush_interval"`
}

// InitMetricScope creates a root scope and its closer.
//
// Without any enabled reporter the scope still tracks
// values, but nothing reads them.
func InitMetricScope(cfg *Config, rootMetricScope string,
	tags map[string]string) (tally.Scope, io.Closer) {
	opts := tally.ScopeOptions{
		Prefix:    rootMetricScope,
		Tags:      tags,
		Separator: "_",
	}
	interval := defaultFlushInterval
	if cfg != nil && cfg.FlushInterval > 0 {
		interval = cfg.FlushInterval
	}
	if cfg != nil && cfg.Log {
		opts.Reporter = NewLogReporter(log.StandardLogger())
	} else {
		opts.Reporter = tally.NullStatsReporter
	}
	return tally.NewRootScope(opts, interval)
}
