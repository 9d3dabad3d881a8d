package allreduce

import "github.com/unixpickle/allreduce-bench/collcomm"

// A TreeAllreducer arranges the ranks in a binary tree
// and performs a reduction by going up the tree to the
// root, and then back down the tree to the leaves.
type TreeAllreducer struct{}

// Allreduce reduces data in place.
func (t TreeAllreducer) Allreduce(c *collcomm.Comms, data []float32,
	fn collcomm.ReduceFn) error {
	if c.Size() == 1 {
		return nil
	}
	round := c.NewRound(len(data))
	parent, children := positionInTree(c.Rank(), c.Size())

	incoming := c.Buffer(slotRecv, len(data))
	for _, child := range children {
		if err := round.Recv(child, 0, incoming); err != nil {
			return err
		}
		fn(data, incoming)
	}

	if parent >= 0 {
		if err := round.Send(parent, 0, data); err != nil {
			return err
		}
		if err := round.Recv(parent, 0, data); err != nil {
			return err
		}
	}

	for _, child := range children {
		if err := round.Send(child, 0, data); err != nil {
			return err
		}
	}

	return nil
}

// positionInTree returns the parent and child ranks for a
// rank in the reduction tree.
//
// There may be no children.
// The parent is -1 for the root.
func positionInTree(rank, size int) (parent int, children []int) {
	parent = -1
	for depth := uint(0); true; depth++ {
		rowSize := 1 << depth
		rowStart := rowSize - 1
		if rank >= rowStart+rowSize {
			continue
		}
		rowIdx := rank - rowStart
		if depth > 0 {
			parent = rowIdx/2 + (rowSize/2 - 1)
		}
		firstChild := rowIdx*2 + (rowSize*2 - 1)
		for i := 0; i < 2; i++ {
			if firstChild+i < size {
				children = append(children, firstChild+i)
			}
		}
		return
	}
	panic("unreachable")
}
