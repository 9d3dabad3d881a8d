package allreduce

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/unixpickle/allreduce-bench/collcomm"
)

func TestRingAllreducer(t *testing.T) {
	RunAllreducerTests(t, RingAllreducer{})
}

func TestTreeAllreducer(t *testing.T) {
	RunAllreducerTests(t, TreeAllreducer{})
}

func TestNaiveAllreducer(t *testing.T) {
	RunAllreducerTests(t, NaiveAllreducer{})
}

func TestByName(t *testing.T) {
	for _, name := range Names() {
		a, err := ByName(name)
		require.NoError(t, err)
		require.NotNil(t, a)
	}
	a, err := ByName("tcp")
	require.NoError(t, err)
	assert.Equal(t, RingAllreducer{}, a)

	_, err = ByName("gloo")
	assert.Error(t, err)
}

func TestApplyWithCopiesAroundCollective(t *testing.T) {
	const numNodes = 2
	err := collcomm.SpawnComms(context.Background(), numNodes, 5*time.Second,
		func(c *collcomm.Comms) error {
			data := []float32{1, 2, 3}
			calls := 0
			err := ApplyWith(RingAllreducer{}, c, data, collcomm.Sum,
				func(reduce func() error) error {
					calls++
					if err := reduce(); err != nil {
						return err
					}
					if data[0] != 1 || data[1] != 2 || data[2] != 3 {
						return errors.Errorf("data changed inside around: %v", data)
					}
					return nil
				})
			if err != nil {
				return err
			}
			if calls != 1 {
				return errors.Errorf("around called %d times", calls)
			}
			if data[0] != 2 || data[1] != 4 || data[2] != 6 {
				return errors.Errorf("unexpected result %v", data)
			}
			return nil
		})
	require.NoError(t, err)
}

func TestApplyWithFailureLeavesData(t *testing.T) {
	err := collcomm.SpawnComms(context.Background(), 1, time.Second,
		func(c *collcomm.Comms) error {
			data := []float32{5, 6}
			err := ApplyWith(NaiveAllreducer{}, c, data, collcomm.Sum,
				func(reduce func() error) error {
					c.Buffer(slotWork, len(data))[0] = 100
					return errors.New("interrupted")
				})
			assert.EqualError(t, err, "interrupted")
			assert.Equal(t, []float32{5, 6}, data)
			return nil
		})
	require.NoError(t, err)
}

func TestPositionInTree(t *testing.T) {
	parent, children := positionInTree(0, 6)
	assert.Equal(t, -1, parent)
	assert.Equal(t, []int{1, 2}, children)

	parent, children = positionInTree(2, 6)
	assert.Equal(t, 0, parent)
	assert.Equal(t, []int{5}, children)

	parent, children = positionInTree(4, 6)
	assert.Equal(t, 1, parent)
	assert.Empty(t, children)
}

func TestMismatchedLengths(t *testing.T) {
	for name, reducer := range map[string]Allreducer{
		"ring":  RingAllreducer{},
		"tree":  TreeAllreducer{},
		"naive": NaiveAllreducer{},
	} {
		t.Run(name, func(t *testing.T) {
			const numNodes = 3
			vectors := make([][]float32, numNodes)
			errs := make([]error, numNodes)
			for i := range vectors {
				size := 10
				if i == 1 {
					size = 12
				}
				vectors[i] = make([]float32, size)
				for j := range vectors[i] {
					vectors[i][j] = float32(i + 1)
				}
			}

			err := collcomm.SpawnComms(context.Background(), numNodes, 5*time.Second,
				func(c *collcomm.Comms) error {
					errs[c.Rank()] = Apply(reducer, c, vectors[c.Rank()], collcomm.Sum)
					return nil
				})
			require.NoError(t, err)

			for i, err := range errs {
				require.Error(t, err, "rank %d", i)
				var collErr *collcomm.CollectiveError
				assert.True(t, errors.As(err, &collErr), "rank %d: %v", i, err)
				for _, x := range vectors[i] {
					assert.Equal(t, float32(i+1), x, "rank %d buffer was modified", i)
				}
			}
		})
	}
}

func TestAccumulatedRounds(t *testing.T) {
	const numNodes = 4
	const rounds = 5
	params := make([][]float32, numNodes)
	err := collcomm.SpawnComms(context.Background(), numNodes, 10*time.Second,
		func(c *collcomm.Comms) error {
			acc := make([]float32, 100)
			grads := make([]float32, 100)
			for i := 0; i < rounds; i++ {
				for j := range grads {
					grads[j] = 1
				}
				if err := Apply(RingAllreducer{}, c, grads, collcomm.Sum); err != nil {
					return err
				}
				collcomm.Sum(acc, grads)
			}
			params[c.Rank()] = acc
			return nil
		})
	require.NoError(t, err)
	for rank, acc := range params {
		for _, x := range acc {
			require.Equal(t, float32(rounds*numNodes), x, "rank %d", rank)
		}
	}
}
