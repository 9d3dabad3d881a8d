package collcomm

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSum(t *testing.T) {
	dst := []float32{1, 2, 3}
	Sum(dst, []float32{1, 1, 1})
	assert.Equal(t, []float32{2, 3, 4}, dst)
	assert.Panics(t, func() { Sum(dst, []float32{1}) })
}

func TestBuffer(t *testing.T) {
	c := newComms(GroupConfig{Size: 1})
	a := c.Buffer(0, 10)
	b := c.Buffer(1, 10)
	require.Len(t, a, 10)
	a[0] = 1
	assert.Equal(t, float32(0), b[0])
	assert.Equal(t, float32(1), c.Buffer(0, 5)[0])
}

func TestRoundTransfersLargeVectors(t *testing.T) {
	const n = 300000
	err := SpawnComms(context.Background(), 2, 5*time.Second, func(c *Comms) error {
		round := c.NewRound(n)
		out := make([]float32, n)
		for i := range out {
			out[i] = float32(i * (c.Rank() + 1))
		}
		in := make([]float32, n)
		other := 1 - c.Rank()
		if err := round.Exchange(other, 0, out, other, 0, in); err != nil {
			return err
		}
		for i, x := range in {
			if x != float32(i*(other+1)) {
				return errors.Errorf("entry %d: %f", i, x)
			}
		}
		return nil
	})
	require.NoError(t, err)
}

func TestRoundOutOfStep(t *testing.T) {
	errs := make([]error, 2)
	err := SpawnComms(context.Background(), 2, 5*time.Second, func(c *Comms) error {
		if c.Rank() == 0 {
			// Skip a round so the sequence numbers disagree.
			c.NewRound(4)
		}
		round := c.NewRound(4)
		other := 1 - c.Rank()
		errs[c.Rank()] = round.Exchange(other, 0, make([]float32, 4), other, 0,
			make([]float32, 4))
		return nil
	})
	require.NoError(t, err)
	for rank, err := range errs {
		var collErr *CollectiveError
		require.True(t, errors.As(err, &collErr), "rank %d: %v", rank, err)
		assert.Equal(t, rank, collErr.Rank)
	}
}

func TestPeerCloseFailsGroup(t *testing.T) {
	errs := make([]error, 3)
	err := SpawnComms(context.Background(), 3, 5*time.Second, func(c *Comms) error {
		if c.Rank() == 2 {
			return c.Close()
		}
		round := c.NewRound(1)
		errs[c.Rank()] = round.Recv(2, 0, make([]float32, 1))
		return nil
	})
	require.NoError(t, err)
	for _, err := range errs[:2] {
		require.Error(t, err)
		assert.IsType(t, &CollectiveError{}, err)
	}
}

func TestFailureIsSticky(t *testing.T) {
	err := SpawnComms(context.Background(), 2, 5*time.Second, func(c *Comms) error {
		if c.Rank() == 1 {
			return c.Close()
		}
		first := c.NewRound(1).Recv(1, 0, make([]float32, 1))
		second := c.NewRound(1).Send(1, 0, make([]float32, 1))
		if first == nil || first != second || c.Err() != first {
			return errors.Errorf("errors differ: %v, %v", first, second)
		}
		return nil
	})
	require.NoError(t, err)
}
