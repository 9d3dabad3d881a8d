package collcomm

// A ReduceFn combines src into dst, element by element.
//
// Collective algorithms call a ReduceFn with vectors of
// equal length, and must apply it in the same order on
// every rank so that all ranks end with identical
// results.
type ReduceFn func(dst, src []float32)

// Sum is a ReduceFn that adds src to dst.
func Sum(dst, src []float32) {
	if len(dst) != len(src) {
		panic("mismatching lengths")
	}
	for i, x := range src {
		dst[i] += x
	}
}
