package chunk

import (
	"sort"

	"github.com/soypat/tetramesh"
)

// visitOrder precomputes the streaming visitation order: every relative
// chunk offset of the grid, sorted by squared distance from the grid
// center. Equidistant offsets are tie-broken by a deterministic hash
// perturbation so the order is strict and reproducible across runs.
func visitOrder(count tetramesh.V3i) []tetramesh.V3i {
	half := tetramesh.V3i{count[0] / 2, count[1] / 2, count[2] / 2}
	order := make([]tetramesh.V3i, 0, count.Volume())
	for x := 0; x < count[0]; x++ {
		for y := 0; y < count[1]; y++ {
			for z := 0; z < count[2]; z++ {
				order = append(order, tetramesh.V3i{x, y, z}.Sub(half))
			}
		}
	}
	sort.Slice(order, func(i, j int) bool {
		ki := orderKey(order[i])
		kj := orderKey(order[j])
		if ki != kj {
			return ki < kj
		}
		return lexLess(order[i], order[j])
	})
	return order
}

// orderKey is the squared offset norm perturbed by a hash of the offset
// in [0, 0.5) so integer distance ties rarely survive to the
// lexicographic fallback.
func orderKey(off tetramesh.V3i) float64 {
	h := uint32(off[0]*73856093) ^ uint32(off[1]*19349663) ^ uint32(off[2]*83492791)
	h ^= h >> 15
	h *= 0x2c1b3c6d
	h ^= h >> 12
	return float64(off.Norm2()) + float64(h&0xffff)/(2*65536)
}

func lexLess(a, b tetramesh.V3i) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}
