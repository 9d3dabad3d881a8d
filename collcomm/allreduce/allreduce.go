// Package allreduce implements algorithms for summing
// vectors across the members of a process group.
package allreduce

import (
	"sort"

	"github.com/pkg/errors"
	"github.com/unixpickle/allreduce-bench/collcomm"
)

// Scratch slots used by Apply and the allreducers.
const (
	slotWork = iota
	slotRecv
)

// Allreducer is an algorithm that applies a ReduceFn to
// vectors that are distributed across a process group.
//
// Allreduce leaves the reduced vector in data on every
// rank. If it fails, data may be partially overwritten;
// use Apply to avoid that.
type Allreducer interface {
	Allreduce(c *collcomm.Comms, data []float32, fn collcomm.ReduceFn) error
}

// Apply runs an Allreducer on a scratch copy of data and
// copies the result back only if every step succeeded.
func Apply(a Allreducer, c *collcomm.Comms, data []float32, fn collcomm.ReduceFn) error {
	return ApplyWith(a, c, data, fn, func(reduce func() error) error {
		return reduce()
	})
}

// ApplyWith is like Apply, but calls around with the
// collective itself, after data has been copied to the
// scratch vector and before the result is copied back.
//
// around must call reduce exactly once and return its
// error. This lets a caller time the network transfer
// without the two copies.
func ApplyWith(a Allreducer, c *collcomm.Comms, data []float32, fn collcomm.ReduceFn,
	around func(reduce func() error) error) error {
	work := c.Buffer(slotWork, len(data))
	copy(work, data)
	err := around(func() error {
		return a.Allreduce(c, work, fn)
	})
	if err != nil {
		return err
	}
	copy(data, work)
	return nil
}

var byName = map[string]Allreducer{
	"ring":  RingAllreducer{},
	"tcp":   RingAllreducer{},
	"tree":  TreeAllreducer{},
	"naive": NaiveAllreducer{},
}

// ByName looks up an Allreducer by its backend name.
func ByName(name string) (Allreducer, error) {
	if a, ok := byName[name]; ok {
		return a, nil
	}
	return nil, errors.Errorf("unknown allreduce backend %q (options: %v)", name, Names())
}

// Names lists the known backend names.
func Names() []string {
	var res []string
	for name := range byName {
		res = append(res, name)
	}
	sort.Strings(res)
	return res
}
