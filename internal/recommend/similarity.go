package recommend

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// cosineSimilarity builds the pairwise cosine similarity matrix over the
// rows of x. Zero-norm rows score 0 against everything except themselves.
func cosineSimilarity(x *mat.Dense) *mat.Dense {
	n, _ := x.Dims()
	norms := make([]float64, n)
	for i := 0; i < n; i++ {
		norms[i] = floats.Norm(x.RawRowView(i), 2)
	}

	sim := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		sim.Set(i, i, 1)
		for j := i + 1; j < n; j++ {
			var v float64
			if norms[i] > 0 && norms[j] > 0 {
				v = floats.Dot(x.RawRowView(i), x.RawRowView(j)) / (norms[i] * norms[j])
			}
			sim.Set(i, j, v)
			sim.Set(j, i, v)
		}
	}
	return sim
}
