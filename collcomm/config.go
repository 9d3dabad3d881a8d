package collcomm

import (
	"net"
	"strconv"
	"time"

	"github.com/pkg/errors"
)

const (
	// DefaultRendezvousTimeout bounds the time spent
	// forming a group when GroupConfig.Timeout is 0.
	DefaultRendezvousTimeout = 30 * time.Second

	// DefaultDialInterval is the minimum time between two
	// attempts to reach a peer that is not listening yet.
	DefaultDialInterval = 200 * time.Millisecond
)

// GroupConfig describes one member's view of a process
// group before the group exists.
//
// Every member must use the same Size, MasterAddr,
// MasterPort and RunID, or the rendezvous fails.
type GroupConfig struct {
	Rank int
	Size int

	// MasterAddr and MasterPort locate rank 0, which
	// coordinates the rendezvous.
	MasterAddr string
	MasterPort int

	// RunID identifies one benchmark run, so that stale
	// workers from an earlier run cannot join.
	RunID string

	// Timeout bounds the whole rendezvous.
	Timeout time.Duration

	// OpTimeout, if non-zero, bounds every send and
	// receive of a collective operation.
	OpTimeout time.Duration

	// DialInterval paces connection attempts.
	DialInterval time.Duration
}

// MasterHostPort returns the address rank 0 listens on.
func (g GroupConfig) MasterHostPort() string {
	return net.JoinHostPort(g.MasterAddr, strconv.Itoa(g.MasterPort))
}

// Validate checks the parts of the config that can be
// checked without talking to any peer.
func (g GroupConfig) Validate() error {
	if g.Size < 1 {
		return errors.Errorf("invalid world size %d", g.Size)
	}
	if g.Rank < 0 || g.Rank >= g.Size {
		return errors.Errorf("rank %d out of range for world size %d", g.Rank, g.Size)
	}
	if g.Size > 1 {
		if g.MasterAddr == "" {
			return errors.New("missing master address")
		}
		if g.MasterPort <= 0 || g.MasterPort > 65535 {
			return errors.Errorf("invalid master port %d", g.MasterPort)
		}
	}
	return nil
}

func (g GroupConfig) withDefaults() GroupConfig {
	if g.Timeout <= 0 {
		g.Timeout = DefaultRendezvousTimeout
	}
	if g.DialInterval <= 0 {
		g.DialInterval = DefaultDialInterval
	}
	return g
}
