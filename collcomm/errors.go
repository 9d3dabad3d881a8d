package collcomm

import "fmt"

// A RendezvousError is returned when a process group
// could not be formed.
//
// Rendezvous errors are fatal to the process that sees
// them. Peers that already joined will fail on their own,
// either during the rendezvous or on their next
// collective operation.
type RendezvousError struct {
	Rank int
	Err  error
}

func (r *RendezvousError) Error() string {
	return fmt.Sprintf("rendezvous failed for rank %d: %v", r.Rank, r.Err)
}

// Cause returns the underlying error.
func (r *RendezvousError) Cause() error {
	return r.Err
}

func (r *RendezvousError) Unwrap() error {
	return r.Err
}

// A CollectiveError is returned when a collective
// operation could not complete, for example because a
// peer disconnected or sent a vector of the wrong size.
//
// Once a CollectiveError occurs, the Comms is closed and
// every subsequent operation fails with the same error.
type CollectiveError struct {
	Rank  int
	Peer  int
	Round uint64
	Err   error
}

func (c *CollectiveError) Error() string {
	if c.Peer < 0 {
		return fmt.Sprintf("collective round %d failed on rank %d: %v", c.Round, c.Rank, c.Err)
	}
	return fmt.Sprintf("collective round %d failed on rank %d (peer %d): %v", c.Round, c.Rank,
		c.Peer, c.Err)
}

// Cause returns the underlying error.
func (c *CollectiveError) Cause() error {
	return c.Err
}

func (c *CollectiveError) Unwrap() error {
	return c.Err
}
