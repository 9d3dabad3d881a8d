package allreduce

import (
	"sync"

	"github.com/unixpickle/allreduce-bench/collcomm"
	"go.uber.org/multierr"
)

// A NaiveAllreducer sends every rank's vector to every
// other rank, and each rank reduces all of them locally.
type NaiveAllreducer struct{}

// Allreduce reduces data in place.
//
// Vectors are combined in rank order, so every rank
// computes a bit-for-bit identical result.
func (n NaiveAllreducer) Allreduce(c *collcomm.Comms, data []float32,
	fn collcomm.ReduceFn) error {
	size := c.Size()
	if size == 1 {
		return nil
	}
	round := c.NewRound(len(data))

	gathered := make([][]float32, size)
	for i := range gathered {
		gathered[i] = c.Buffer(slotRecv+i, len(data))
	}
	copy(gathered[c.Rank()], data)

	var wg sync.WaitGroup
	errs := make([]error, 2*size)
	for peer := 0; peer < size; peer++ {
		if peer == c.Rank() {
			continue
		}
		wg.Add(2)
		go func(peer int) {
			defer wg.Done()
			errs[2*peer] = round.Send(peer, 0, data)
		}(peer)
		go func(peer int) {
			defer wg.Done()
			errs[2*peer+1] = round.Recv(peer, 0, gathered[peer])
		}(peer)
	}
	wg.Wait()
	if err := c.Err(); err != nil {
		return err
	}
	if err := multierr.Combine(errs...); err != nil {
		return err
	}

	copy(data, gathered[0])
	for _, vec := range gathered[1:] {
		fn(data, vec)
	}
	return nil
}
