package recommend

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// clusterLabels name the style buckets assigned to k-means groups.
var clusterLabels = []string{"Growth", "Value", "Defensive", "Income", "Momentum"}

const (
	kMeansRestarts = 10
	kMeansMaxIters = 100
)

// kMeans assigns each row of x to one of k clusters using k-means++
// seeding and a fixed rng seed so rebuilds are reproducible. When x has
// fewer rows than k, k is reduced to the row count.
func kMeans(x *mat.Dense, k int, seed int64) []int {
	n, _ := x.Dims()
	if k > n {
		k = n
	}
	if k <= 1 {
		return make([]int, n)
	}
	rng := rand.New(rand.NewSource(seed))

	var best []int
	bestInertia := math.Inf(1)
	for restart := 0; restart < kMeansRestarts; restart++ {
		centers := seedCenters(x, k, rng)
		assign := make([]int, n)
		for iter := 0; iter < kMeansMaxIters; iter++ {
			changed := false
			for i := 0; i < n; i++ {
				c := nearestCenter(x.RawRowView(i), centers)
				if c != assign[i] {
					assign[i] = c
					changed = true
				}
			}
			recomputeCenters(x, assign, centers, rng)
			if !changed && iter > 0 {
				break
			}
		}
		inertia := 0.0
		for i := 0; i < n; i++ {
			inertia += sqDist(x.RawRowView(i), centers[assign[i]])
		}
		if inertia < bestInertia {
			bestInertia = inertia
			best = append([]int(nil), assign...)
		}
	}
	return best
}

// seedCenters is k-means++: the first center is uniform, each further
// center is drawn proportionally to squared distance from the nearest
// chosen center.
func seedCenters(x *mat.Dense, k int, rng *rand.Rand) [][]float64 {
	n, _ := x.Dims()
	centers := make([][]float64, 0, k)
	first := rng.Intn(n)
	centers = append(centers, append([]float64(nil), x.RawRowView(first)...))

	dists := make([]float64, n)
	for len(centers) < k {
		var total float64
		for i := 0; i < n; i++ {
			d := math.Inf(1)
			for _, c := range centers {
				if v := sqDist(x.RawRowView(i), c); v < d {
					d = v
				}
			}
			dists[i] = d
			total += d
		}
		var pick int
		if total == 0 {
			pick = rng.Intn(n)
		} else {
			target := rng.Float64() * total
			for i := 0; i < n; i++ {
				target -= dists[i]
				if target <= 0 {
					pick = i
					break
				}
			}
		}
		centers = append(centers, append([]float64(nil), x.RawRowView(pick)...))
	}
	return centers
}

func recomputeCenters(x *mat.Dense, assign []int, centers [][]float64, rng *rand.Rand) {
	n, m := x.Dims()
	counts := make([]int, len(centers))
	for c := range centers {
		for j := range centers[c] {
			centers[c][j] = 0
		}
	}
	for i := 0; i < n; i++ {
		c := assign[i]
		counts[c]++
		row := x.RawRowView(i)
		for j := 0; j < m; j++ {
			centers[c][j] += row[j]
		}
	}
	for c := range centers {
		if counts[c] == 0 {
			// Empty cluster: reseed on a random row.
			copy(centers[c], x.RawRowView(rng.Intn(n)))
			continue
		}
		for j := 0; j < m; j++ {
			centers[c][j] /= float64(counts[c])
		}
	}
}

func nearestCenter(row []float64, centers [][]float64) int {
	best, bestD := 0, math.Inf(1)
	for c := range centers {
		if d := sqDist(row, centers[c]); d < bestD {
			best, bestD = c, d
		}
	}
	return best
}

func sqDist(a, b []float64) float64 {
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}
