package models

import (
	"math/rand/v2"
	"testing"

	mat_ "github.com/aouyang1/go-salinity/mat"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

// generateStepData returns rows of two uniform features and one noise feature where the
// target steps on the first feature and ramps on the second
func generateStepData(t testing.TB, nObs int, seed uint64) (*mat.Dense, *mat.VecDense) {
	rng := rand.New(rand.NewPCG(seed, seed))
	data := make([][]float64, nObs)
	y := make([]float64, nObs)
	for i := 0; i < nObs; i++ {
		a := rng.Float64()
		b := rng.Float64()
		data[i] = []float64{a, b, rng.Float64()}
		y[i] = 2*b + 1
		if a > 0.5 {
			y[i] += 3
		}
	}
	x, err := mat_.NewDenseFromArray(data)
	require.Nil(t, err)
	return x, mat.NewVecDense(nObs, y)
}
