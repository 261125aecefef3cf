package stats

import (
	"math"

	"golang.org/x/exp/rand"
)

// SamplePartition draws a partition of n items from a Chinese Restaurant
// Process with concentration alpha. The result maps item index to table
// index; table indices are a random permutation so their order carries no
// information about seating order.
func SamplePartition(rng *rand.Rand, n int, alpha float64) []int {
	assignment := make([]int, n)
	if n == 0 {
		return assignment
	}

	counts := make([]float64, 0, 8)
	logWeights := make([]float64, 0, 8)
	for i := 0; i < n; i++ {
		logWeights = logWeights[:0]
		for _, c := range counts {
			logWeights = append(logWeights, math.Log(c))
		}
		logWeights = append(logWeights, math.Log(alpha))

		k := SampleLogWeights(rng, logWeights)
		if k == len(counts) {
			counts = append(counts, 0)
		}
		counts[k]++
		assignment[i] = k
	}

	perm := rng.Perm(len(counts))
	for i, k := range assignment {
		assignment[i] = perm[k]
	}
	return assignment
}

// CRPLogWeight returns the log predictive weight of joining a table holding
// count items (or a fresh table when count is zero) out of n seated items.
func CRPLogWeight(count int, n int, alpha float64) float64 {
	if count == 0 {
		return math.Log(alpha) - math.Log(float64(n)+alpha)
	}
	return math.Log(float64(count)) - math.Log(float64(n)+alpha)
}
