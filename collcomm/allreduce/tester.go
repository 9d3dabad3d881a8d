package allreduce

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/unixpickle/allreduce-bench/collcomm"
)

// RunAllreducerTests runs a battery of tests on an
// Allreducer, with every rank in its own Goroutine.
func RunAllreducerTests(t *testing.T, reducer Allreducer) {
	for _, numNodes := range []int{1, 2, 3, 5, 8} {
		for _, size := range []int{0, 1, 7, 1337} {
			for _, rounds := range []int{1, 3} {
				testName := fmt.Sprintf("Nodes=%d,Size=%d,Rounds=%d", numNodes, size, rounds)
				t.Run(testName, func(t *testing.T) {
					vectors := make([][][]float32, rounds)
					sums := make([][]float32, rounds)
					for r := range vectors {
						vectors[r] = make([][]float32, numNodes)
						sums[r] = make([]float32, size)
						for i := range vectors[r] {
							vectors[r][i] = make([]float32, size)
							for j := range vectors[r][i] {
								vectors[r][i][j] = float32(rand.NormFloat64())
								sums[r][j] += vectors[r][i][j]
							}
						}
					}

					results := make([][][]float32, rounds)
					for r := range results {
						results[r] = make([][]float32, numNodes)
					}
					err := collcomm.SpawnComms(context.Background(), numNodes, 10*time.Second,
						func(c *collcomm.Comms) error {
							for r := 0; r < rounds; r++ {
								vec := append([]float32{}, vectors[r][c.Rank()]...)
								if err := Apply(reducer, c, vec, collcomm.Sum); err != nil {
									return err
								}
								results[r][c.Rank()] = vec
							}
							return nil
						})
					if err != nil {
						t.Fatal(err)
					}

					for r := range results {
						verifyReductionResults(t, results[r], sums[r])
					}
				})
			}
		}
	}
}

func verifyReductionResults(t *testing.T, results [][]float32, expected []float32) {
	for i, res := range results[1:] {
		if len(res) != len(expected) {
			t.Errorf("result %d has length %d but expected %d", i+1, len(res), len(expected))
			continue
		}
		for j, actual := range res {
			if actual != results[0][j] {
				t.Errorf("result %d is not identical to result 0", i+1)
				break
			}
		}
	}

	for i, x := range expected {
		if math.Abs(float64(x-results[0][i])) > 1e-3 {
			t.Errorf("sum is incorrect (expected %f but got %f at component %d)",
				x, results[0][i], i)
			break
		}
	}
}
