package collcomm

import (
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
)

var errClosed = errors.New("process group closed")

// Comms is one process's handle on an established
// process group. It holds a connection to every other
// member of the group.
//
// Collective operations must be issued one at a time, and
// every member must issue the same operations in the same
// order with vectors of the same length.
type Comms struct {
	rank  int
	size  int
	runID string

	opTimeout time.Duration

	// peers[i] is the connection to rank i. The entry for
	// the local rank is nil.
	peers []*peerConn

	round   uint64
	buffers [][]float32

	lock    sync.Mutex
	closed  bool
	failure *CollectiveError
}

func newComms(cfg GroupConfig) *Comms {
	return &Comms{
		rank:      cfg.Rank,
		size:      cfg.Size,
		runID:     cfg.RunID,
		opTimeout: cfg.OpTimeout,
		peers:     make([]*peerConn, cfg.Size),
	}
}

// Rank gets the local process's rank.
func (c *Comms) Rank() int {
	return c.rank
}

// Size gets the number of processes in the group.
func (c *Comms) Size() int {
	return c.size
}

// RunID gets the run identifier shared by the group.
func (c *Comms) RunID() string {
	return c.runID
}

// Buffer returns a reusable scratch vector of length n.
//
// Different slots never share memory, while the same
// slot is reused across calls. This lets collective
// algorithms avoid allocating on every round.
func (c *Comms) Buffer(slot, n int) []float32 {
	for len(c.buffers) <= slot {
		c.buffers = append(c.buffers, nil)
	}
	if cap(c.buffers[slot]) < n {
		c.buffers[slot] = make([]float32, n)
	}
	return c.buffers[slot][:n]
}

// NewRound starts the next collective operation on a
// vector of total entries.
func (c *Comms) NewRound(total int) *Round {
	c.round++
	return &Round{comms: c, id: c.round, total: total}
}

// Err returns the error that broke the group, if any.
func (c *Comms) Err() error {
	c.lock.Lock()
	defer c.lock.Unlock()
	if c.failure == nil {
		return nil
	}
	return c.failure
}

// Close closes every connection in the group.
//
// Peers that are blocked on this process will fail their
// current operation.
func (c *Comms) Close() error {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.closeLocked()
}

func (c *Comms) closeLocked() error {
	if c.closed {
		return nil
	}
	c.closed = true
	var err error
	for _, p := range c.peers {
		if p != nil {
			err = multierr.Append(err, p.Close())
		}
	}
	return err
}

// fail records the first failure of the group and closes
// every connection, so that the failure reaches the
// peers as well.
func (c *Comms) fail(round uint64, peer int, err error) error {
	c.lock.Lock()
	defer c.lock.Unlock()
	if c.failure != nil {
		return c.failure
	}
	if c.closed {
		err = errClosed
	}
	c.failure = &CollectiveError{Rank: c.rank, Peer: peer, Round: round, Err: err}
	c.closeLocked()
	return c.failure
}

func (c *Comms) peer(round uint64, rank int) (*peerConn, error) {
	if rank < 0 || rank >= c.size || rank == c.rank {
		return nil, c.fail(round, rank, errors.Errorf("invalid peer rank %d", rank))
	}
	c.lock.Lock()
	defer c.lock.Unlock()
	if c.failure != nil {
		return nil, c.failure
	}
	if c.closed {
		return nil, &CollectiveError{Rank: c.rank, Peer: rank, Round: round, Err: errClosed}
	}
	return c.peers[rank], nil
}

// A Round is a single collective operation in progress.
//
// Every chunk sent during a Round is tagged with the
// round number and the length of the full vector, so a
// receiver can detect peers that are out of step.
type Round struct {
	comms *Comms
	id    uint64
	total int
}

// ID gets the round's sequence number.
func (r *Round) ID() uint64 {
	return r.id
}

// Send sends the chunk of the vector starting at offset
// to the destination rank.
func (r *Round) Send(dst, offset int, vec []float32) error {
	p, err := r.comms.peer(r.id, dst)
	if err != nil {
		return err
	}
	header := frameHeader{
		Round:  r.id,
		Total:  uint64(r.total),
		Offset: uint64(offset),
		Count:  uint64(len(vec)),
	}
	if err := p.writeFrame(header, vec, r.comms.opTimeout); err != nil {
		return r.comms.fail(r.id, dst, errors.Wrap(err, "send"))
	}
	return nil
}

// Recv receives the chunk of the vector starting at
// offset from the source rank, storing it in vec.
//
// The chunk must have exactly len(vec) entries.
func (r *Round) Recv(src, offset int, vec []float32) error {
	p, err := r.comms.peer(r.id, src)
	if err != nil {
		return err
	}
	header, err := p.readHeader(r.comms.opTimeout)
	if err != nil {
		return r.comms.fail(r.id, src, errors.Wrap(err, "receive"))
	}
	if err := r.checkHeader(header, offset, len(vec)); err != nil {
		return r.comms.fail(r.id, src, err)
	}
	if err := p.readPayload(vec, r.comms.opTimeout); err != nil {
		return r.comms.fail(r.id, src, err)
	}
	return nil
}

// Exchange sends one chunk to dst while receiving
// another chunk from src.
//
// Both transfers happen at once, so that two peers which
// exchange data with each other do not deadlock.
func (r *Round) Exchange(dst, sendOffset int, send []float32, src, recvOffset int,
	recv []float32) error {
	sendErr := make(chan error, 1)
	go func() {
		sendErr <- r.Send(dst, sendOffset, send)
	}()
	recvErr := r.Recv(src, recvOffset, recv)
	if err := <-sendErr; err != nil {
		return err
	}
	return recvErr
}

func (r *Round) checkHeader(h frameHeader, offset, count int) error {
	switch {
	case h.Round != r.id:
		return errors.Errorf("peer is on round %d", h.Round)
	case h.Total != uint64(r.total):
		return errors.Errorf("vector length mismatch: local %d, peer %d", r.total, h.Total)
	case h.Offset != uint64(offset) || h.Count != uint64(count):
		return errors.Errorf("unexpected chunk [%d:+%d], wanted [%d:+%d]", h.Offset, h.Count,
			offset, count)
	}
	return nil
}
