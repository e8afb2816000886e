package floatsunrolled

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/floats"
)

func TestDot(t *testing.T) {
	testData := map[string]struct {
		a        []float64
		b        []float64
		expected float64
	}{
		"empty": {
			a:        []float64{},
			b:        []float64{},
			expected: 0,
		},
		"tail only": {
			a:        []float64{1, 2, 3},
			b:        []float64{1, 2, 3},
			expected: 14,
		},
		"one batch": {
			a:        []float64{1, 2, 3, 4},
			b:        []float64{4, 3, 2, 1},
			expected: 20,
		},
		"batch and tail": {
			a:        []float64{1, 2, 3, 4, 5, 6},
			b:        []float64{1, 1, 1, 1, 2, 2},
			expected: 32,
		},
	}

	for name, td := range testData {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, td.expected, Dot(td.a, td.b))
		})
	}

	assert.PanicsWithError(t, ErrSliceLengthMismatch.Error(), func() {
		Dot([]float64{1, 2, 3}, []float64{1, 2})
	})
}

func TestAdd(t *testing.T) {
	dst := []float64{1, 2, 3, 4, 5}
	res := Add(dst, []float64{1, 1, 1, 1, 1})
	assert.Equal(t, []float64{2, 3, 4, 5, 6}, res)
	assert.Equal(t, res, dst)

	assert.PanicsWithError(t, ErrSliceLengthMismatch.Error(), func() {
		Add([]float64{1, 2, 3}, []float64{1, 2})
	})
}

func TestSubTo(t *testing.T) {
	testData := map[string]struct {
		dst      []float64
		s        []float64
		t        []float64
		expected []float64
		err      error
	}{
		"allocates": {
			s:        []float64{5, 5, 5, 5, 5},
			t:        []float64{1, 2, 3, 4, 5},
			expected: []float64{4, 3, 2, 1, 0},
		},
		"reuses dst": {
			dst:      make([]float64, 2),
			s:        []float64{1, 2},
			t:        []float64{2, 1},
			expected: []float64{-1, 1},
		},
		"input mismatch": {
			s:   []float64{1, 2},
			t:   []float64{1},
			err: ErrSliceLengthMismatch,
		},
		"output mismatch": {
			dst: make([]float64, 3),
			s:   []float64{1, 2},
			t:   []float64{1, 2},
			err: ErrOutputSliceLengthMismatch,
		},
	}

	for name, td := range testData {
		t.Run(name, func(t *testing.T) {
			if td.err != nil {
				assert.PanicsWithError(t, td.err.Error(), func() {
					SubTo(td.dst, td.s, td.t)
				})
				return
			}
			assert.Equal(t, td.expected, SubTo(td.dst, td.s, td.t))
		})
	}
}

func TestAddScaled(t *testing.T) {
	dst := []float64{1, 1, 1, 1, 1, 1, 1}
	res := AddScaled(dst, 0.5, []float64{2, 4, 6, 8, 10, 12, 14})
	assert.Equal(t, []float64{2, 3, 4, 5, 6, 7, 8}, res)

	assert.PanicsWithError(t, ErrSliceLengthMismatch.Error(), func() {
		AddScaled([]float64{1}, 1, []float64{1, 2})
	})
}

func TestMatchesGonum(t *testing.T) {
	for _, size := range []int{1, 7, 64, 1001} {
		a := generateRandomSlice(size)
		b := generateRandomSlice(size)
		assert.InDelta(t, floats.Dot(a, b), Dot(a, b), 1e-9)

		expected := floats.SubTo(make([]float64, size), a, b)
		assert.InDeltaSlice(t, expected, SubTo(nil, a, b), 1e-12)
	}
}

func generateRandomSlice(size int) []float64 {
	rng := rand.New(rand.NewPCG(uint64(size), 7))
	out := make([]float64, size)
	for i := range out {
		out[i] = rng.Float64()
	}
	return out
}

func BenchmarkDot(b *testing.B) {
	x := generateRandomSlice(4096)
	y := generateRandomSlice(4096)
	for b.Loop() {
		Dot(x, y)
	}
}

func BenchmarkNaiveDot(b *testing.B) {
	x := generateRandomSlice(4096)
	y := generateRandomSlice(4096)
	for b.Loop() {
		var sum float64
		for i := range x {
			sum += x[i] * y[i]
		}
		_ = sum
	}
}

func BenchmarkSubTo(b *testing.B) {
	x := generateRandomSlice(4096)
	y := generateRandomSlice(4096)
	dst := make([]float64, 4096)
	for b.Loop() {
		SubTo(dst, x, y)
	}
}
