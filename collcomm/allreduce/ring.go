package allreduce

import "github.com/unixpickle/allreduce-bench/collcomm"

// A RingAllreducer arranges the ranks in a ring and runs
// a reduce-scatter followed by an all-gather.
//
// The vector is split into one segment per rank. During
// the reduce-scatter, every rank passes a partially
// reduced segment to its successor, so that after Size-1
// steps each rank holds one fully reduced segment. The
// all-gather then circulates the reduced segments until
// every rank has all of them.
//
// Each rank sends and receives roughly 2*len(data) entries
// regardless of the group size.
type RingAllreducer struct{}

// Allreduce reduces data in place.
func (r RingAllreducer) Allreduce(c *collcomm.Comms, data []float32,
	fn collcomm.ReduceFn) error {
	size := c.Size()
	if size == 1 {
		return nil
	}
	round := c.NewRound(len(data))

	rank := c.Rank()
	next := (rank + 1) % size
	prev := (rank - 1 + size) % size
	segment := func(i int) (int, int) {
		i = ((i % size) + size) % size
		return i * len(data) / size, (i + 1) * len(data) / size
	}

	recvBuf := c.Buffer(slotRecv, len(data)/size+1)
	for step := 0; step < size-1; step++ {
		sendStart, sendEnd := segment(rank - step)
		recvStart, recvEnd := segment(rank - step - 1)
		incoming := recvBuf[:recvEnd-recvStart]
		err := round.Exchange(next, sendStart, data[sendStart:sendEnd], prev, recvStart, incoming)
		if err != nil {
			return err
		}
		fn(data[recvStart:recvEnd], incoming)
	}

	for step := 0; step < size-1; step++ {
		sendStart, sendEnd := segment(rank + 1 - step)
		recvStart, recvEnd := segment(rank - step)
		err := round.Exchange(next, sendStart, data[sendStart:sendEnd], prev, recvStart,
			data[recvStart:recvEnd])
		if err != nil {
			return err
		}
	}

	return nil
}
