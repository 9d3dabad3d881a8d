package collcomm

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
)

// SpawnComms forms a process group of the given size
// inside the current process, with every member talking
// over loopback TCP, and calls f for each member in its
// own Goroutine.
//
// Every member's Comms is closed once its f returns.
// SpawnComms waits for all members and returns the
// combined errors from the rendezvous and from f.
func SpawnComms(ctx context.Context, size int, timeout time.Duration,
	f func(c *Comms) error) error {
	port, err := FreePort()
	if err != nil {
		return err
	}
	configs := make([]GroupConfig, size)
	for i := range configs {
		configs[i] = GroupConfig{
			Rank:         i,
			Size:         size,
			MasterAddr:   "127.0.0.1",
			MasterPort:   port,
			RunID:        "local",
			Timeout:      timeout,
			OpTimeout:    timeout,
			DialInterval: 10 * time.Millisecond,
		}
	}
	return SpawnConfigs(ctx, configs, f)
}

// SpawnConfigs is like SpawnComms, but lets the caller
// pick each member's config, which need not agree.
func SpawnConfigs(ctx context.Context, configs []GroupConfig, f func(c *Comms) error) error {
	errs := make([]error, len(configs))
	var wg sync.WaitGroup
	for i, cfg := range configs {
		wg.Add(1)
		go func(i int, cfg GroupConfig) {
			defer wg.Done()
			c, err := Rendezvous(ctx, cfg)
			if err != nil {
				errs[i] = err
				return
			}
			defer c.Close()
			errs[i] = f(c)
		}(i, cfg)
	}
	wg.Wait()
	return multierr.Combine(errs...)
}

// FreePort finds a loopback TCP port that nothing is
// listening on right now.
func FreePort() (int, error) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, errors.Wrap(err, "find free port")
	}
	defer listener.Close()
	return listener.Addr().(*net.TCPAddr).Port, nil
}
